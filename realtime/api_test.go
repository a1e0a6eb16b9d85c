package realtime

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/flashbots/auctioneer/auction"
	"github.com/flashbots/auctioneer/coordinator"
	"github.com/flashbots/auctioneer/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	hub   *Hub
	coord *coordinator.Coordinator
	srv   *httptest.Server
}

type wireEvent struct {
	Type    auction.EventType `json:"type"`
	Payload json.RawMessage   `json:"payload"`
}

func setupTestAPI(t *testing.T) *testEnv {
	t.Helper()

	clock := clockwork.NewFakeClock()
	ledger, err := testutil.NewTestLedger(clock,
		testutil.NewTestLot(testutil.WithIndex(1), testutil.WithName("Lamp")),
		testutil.NewTestLot(testutil.WithIndex(2), testutil.WithBasePrice(450)),
	)
	require.NoError(t, err)

	log := discardLogger()
	hub := NewHub(log, 0)

	cfg := coordinator.DefaultConfig()
	cfg.Clock = clock
	cfg.Log = log
	coord, err := coordinator.New(cfg, ledger, hub)
	require.NoError(t, err)
	t.Cleanup(coord.Close)

	api := NewAPI(APIConfig{
		Dispatcher: coord,
		Hub:        hub,
		Auth: StaticTokens{
			"admin-token": testutil.Admin,
			"alice-token": testutil.Alice,
			"bob-token":   testutil.Bob,
		},
		Log: log,
	})
	r := chi.NewRouter()
	api.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testEnv{hub: hub, coord: coord, srv: srv}
}

func (e *testEnv) command(t *testing.T, token, body string) (int, wireEvent) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, e.srv.URL+"/api/commands", strings.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var ev wireEvent
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&ev))
	}
	return resp.StatusCode, ev
}

func errorPayload(t *testing.T, ev wireEvent) auction.ErrorPayload {
	t.Helper()

	var p auction.ErrorPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &p))
	return p
}

func TestAPI_State(t *testing.T) {
	e := setupTestAPI(t)

	resp, err := http.Get(e.srv.URL + "/api/state")
	require.NoError(t, err)
	var ev wireEvent
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ev))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, auction.EventIdle, ev.Type)

	status, _ := e.command(t, "admin-token", `{"type":"admin-start"}`)
	require.Equal(t, http.StatusOK, status)
	status, _ = e.command(t, "alice-token", `{"type":"place-bid","payload":{"amount":100}}`)
	require.Equal(t, http.StatusOK, status)

	resp, err = http.Get(e.srv.URL + "/api/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ev))
	require.Equal(t, auction.EventState, ev.Type)

	var snap auction.Snapshot
	require.NoError(t, json.Unmarshal(ev.Payload, &snap))
	require.Equal(t, int64(100), snap.CurrentBid)
	require.True(t, snap.HasBids)
}

func TestAPI_Commands(t *testing.T) {
	e := setupTestAPI(t)

	status, ev := e.command(t, "", `{"type":"admin-start"}`)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, auction.EventError, ev.Type)

	status, _ = e.command(t, "alice-token", `{"type":"admin-start"}`)
	require.Equal(t, http.StatusForbidden, status)

	status, ev = e.command(t, "admin-token", `{"type":"admin-start"}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, auction.EventAdminAck, ev.Type)

	status, ev = e.command(t, "alice-token", `{"type":"place-bid","payload":{"amount":100}}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, auction.EventBidReceipt, ev.Type)
	var receipt auction.BidReceipt
	require.NoError(t, json.Unmarshal(ev.Payload, &receipt))
	require.Equal(t, int64(150), receipt.NextRequired)

	status, ev = e.command(t, "bob-token", `{"type":"place-bid","payload":{"amount":100}}`)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, auction.EventBidError, ev.Type)
	p := errorPayload(t, ev)
	require.Equal(t, auction.ReasonWrongIncrement, p.Reason)
	require.Equal(t, int64(150), p.RequiredAmount)

	status, ev = e.command(t, "bob-token", `{"type":"place-bid","payload":{"amount":150,"extra":1}}`)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, auction.ReasonMalformed, errorPayload(t, ev).Reason)

	status, ev = e.command(t, "admin-token", `{"type":"admin-mark-sold","payload":{"lotId":2}}`)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, auction.ReasonStaleCommand, errorPayload(t, ev).Reason)

	status, _ = e.command(t, "bob-token", `{"type":"join"}`)
	require.Equal(t, http.StatusNoContent, status)
}

func TestStatusForError(t *testing.T) {
	guest := auction.Identity{}
	bidder := testutil.Alice

	tests := []struct {
		name string
		id   auction.Identity
		err  error
		want int
	}{
		{"guest unauthorized", guest, auction.Unauthorized("x"), http.StatusUnauthorized},
		{"bidder forbidden", bidder, auction.Unauthorized("x"), http.StatusForbidden},
		{"validation", bidder, auction.WrongIncrement(150), http.StatusBadRequest},
		{"not found", bidder, auction.Invalid(auction.ReasonNotFound, "x"), http.StatusNotFound},
		{"race", bidder, auction.Outbid(nil), http.StatusConflict},
		{"foreign", bidder, errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, StatusForError(tt.id, tt.err))
		})
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?token=query", nil)
	require.Equal(t, "query", tokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer header")
	require.Equal(t, "header", tokenFromRequest(r))

	auth := StaticTokens{"header": testutil.Bob}
	require.Equal(t, testutil.Bob, identify(r, auth))

	r = httptest.NewRequest(http.MethodGet, "/ws?token=bogus", nil)
	require.False(t, identify(r, auth).Authenticated())
}

func dialWS(t *testing.T, e *testEnv, token string) *websocket.Conn {
	t.Helper()

	before := e.hub.Count()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws"
	if token != "" {
		url += "?token=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return e.hub.Count() > before }, time.Second, time.Millisecond)
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, typ auction.EventType) wireEvent {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var ev wireEvent
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Type == typ {
			return ev
		}
	}
}

func TestWebSocket_BidFlow(t *testing.T) {
	e := setupTestAPI(t)

	alice := dialWS(t, e, "alice-token")
	guest := dialWS(t, e, "")

	require.NoError(t, alice.WriteJSON(map[string]any{"type": "join"}))
	readUntil(t, alice, auction.EventIdle)

	status, _ := e.command(t, "admin-token", `{"type":"admin-start"}`)
	require.Equal(t, http.StatusOK, status)
	readUntil(t, alice, auction.EventState)
	readUntil(t, guest, auction.EventState)

	require.NoError(t, guest.WriteJSON(map[string]any{
		"type":    "place-bid",
		"payload": map[string]any{"amount": 100},
	}))
	ev := readUntil(t, guest, auction.EventBidError)
	require.Equal(t, auction.ReasonUnauthorized, errorPayload(t, ev).Reason)

	require.NoError(t, alice.WriteJSON(map[string]any{
		"type":    "place-bid",
		"payload": map[string]any{"amount": 100},
	}))
	ev = readUntil(t, alice, auction.EventBidReceipt)
	var receipt auction.BidReceipt
	require.NoError(t, json.Unmarshal(ev.Payload, &receipt))
	require.Equal(t, testutil.DefaultWallet-100, receipt.WalletBalance)

	ev = readUntil(t, guest, auction.EventBidAccepted)
	var accepted auction.BidAccepted
	require.NoError(t, json.Unmarshal(ev.Payload, &accepted))
	require.Equal(t, "alice", accepted.Bidder)

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(`{"type":"nope"}`)))
	ev = readUntil(t, alice, auction.EventError)
	require.Equal(t, auction.ReasonMalformed, errorPayload(t, ev).Reason)
}

func TestSSE_StreamsBroadcasts(t *testing.T) {
	e := setupTestAPI(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.srv.URL+"/events", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	require.Eventually(t, func() bool { return e.hub.Count() == 1 }, time.Second, time.Millisecond)

	status, _ := e.command(t, "admin-token", `{"type":"admin-start"}`)
	require.Equal(t, http.StatusOK, status)

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadBytes('\n')
		require.NoError(t, err)
		if !bytes.HasPrefix(line, []byte("event: ")) {
			continue
		}
		require.Equal(t, "event: auction:state\n", string(line))

		data, err := reader.ReadBytes('\n')
		require.NoError(t, err)
		require.True(t, bytes.HasPrefix(data, []byte("data: ")))

		var snap auction.Snapshot
		require.NoError(t, json.Unmarshal(bytes.TrimPrefix(bytes.TrimSpace(data), []byte("data: ")), &snap))
		require.Equal(t, "Lamp", snap.Name)
		return
	}
}
