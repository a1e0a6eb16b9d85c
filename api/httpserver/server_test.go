package httpserver

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type pingRoutes struct{}

func (pingRoutes) RegisterRoutes(r chi.Router) {
	r.Get("/api/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	})
}

func newTestServer(t *testing.T, origins ...string) *httptest.Server {
	t.Helper()

	srv, err := New(&HTTPServerConfig{
		Log:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		AllowedOrigins: origins,
	}, pingRoutes{})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_Routes(t *testing.T) {
	ts := newTestServer(t)

	status, body := get(t, ts.URL+"/api/ping")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "pong", body)

	status, body = get(t, ts.URL+"/livez")
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"status":"alive"}`, body)
}

func TestServer_DrainUndrain(t *testing.T) {
	ts := newTestServer(t)

	status, _ := get(t, ts.URL+"/readyz")
	require.Equal(t, http.StatusOK, status)

	_, body := get(t, ts.URL+"/drain")
	require.JSONEq(t, `{"status":"draining"}`, body)
	_, body = get(t, ts.URL+"/drain")
	require.JSONEq(t, `{"status":"already draining"}`, body)

	status, _ = get(t, ts.URL+"/readyz")
	require.Equal(t, http.StatusServiceUnavailable, status)

	_, body = get(t, ts.URL+"/undrain")
	require.JSONEq(t, `{"status":"ready"}`, body)
	status, _ = get(t, ts.URL+"/readyz")
	require.Equal(t, http.StatusOK, status)
}

func TestServer_CORS(t *testing.T) {
	ts := newTestServer(t, "https://auction.example")

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/ping", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://auction.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "https://auction.example", resp.Header.Get("Access-Control-Allow-Origin"))
}
