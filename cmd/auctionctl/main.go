// Command auctionctl talks to a running auctioneer.
//
// # Usage
//
//	auctionctl state
//	auctionctl send --token=admin-secret admin-start
//	auctionctl send --token=alice-secret place-bid '{"amount":100}'
//	auctionctl watch
//	auctionctl watch --ws --token=alice-secret
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/flashbots/auctioneer/auction"
	"github.com/gorilla/websocket"
	"github.com/spf13/pflag"
)

const usage = `usage: auctionctl <command> [flags]

commands:
  state                  print the current lot snapshot
  send <type> [payload]  send a command envelope
  watch                  stream broadcasts (SSE, or WebSocket with --ws)
`

type client struct {
	baseURL string
	token   string
	out     io.Writer
	http    *http.Client
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errors.New("missing command")
	}

	name, rest := args[0], args[1:]
	fs := pflag.NewFlagSet("auctionctl "+name, pflag.ContinueOnError)
	server := fs.StringP("url", "u", "http://localhost:8080", "auctioneer base URL")
	token := fs.StringP("token", "t", os.Getenv("AUCTIONEER_TOKEN"), "bearer token")
	useWS := fs.Bool("ws", false, "watch: use the WebSocket channel instead of SSE")
	if err := fs.Parse(rest); err != nil {
		return err
	}

	c := &client{
		baseURL: strings.TrimRight(*server, "/"),
		token:   *token,
		out:     out,
		http:    http.DefaultClient,
	}

	switch name {
	case "state":
		return c.state(ctx)
	case "send":
		return c.send(ctx, fs.Args())
	case "watch":
		if *useWS {
			return c.watchWS(ctx)
		}
		return c.watchSSE(ctx)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", name)
	}
}

func (c *client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *client) state(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/state", nil)
	if err != nil {
		return err
	}
	return c.do(req)
}

// send validates the envelope locally before posting it, so malformed
// commands never reach the server.
func (c *client) send(ctx context.Context, args []string) error {
	if len(args) == 0 || len(args) > 2 {
		return errors.New("send needs a command type and an optional JSON payload")
	}

	envelope := map[string]json.RawMessage{
		"type": json.RawMessage(fmt.Sprintf("%q", args[0])),
	}
	if len(args) == 2 {
		envelope["payload"] = json.RawMessage(args[1])
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	cmd, err := auction.ParseCommand(raw)
	if err != nil {
		return err
	}
	body, err := auction.EncodeCommand(cmd)
	if err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/commands", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *client) do(req *http.Request) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(body) > 0 {
		if err := printJSON(c.out, body); err != nil {
			return err
		}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return nil
}

func (c *client) watchSSE(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/events", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s", resp.Status)
	}

	var event string
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			fmt.Fprintf(c.out, "%s %s\n", event, strings.TrimPrefix(line, "data: "))
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return scanner.Err()
}

func (c *client) watchWS(ctx context.Context) error {
	u, err := url.Parse(c.baseURL + "/ws")
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	join, err := auction.EncodeCommand(auction.Join{})
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, join); err != nil {
		return err
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		fmt.Fprintf(c.out, "%s\n", data)
	}
}

func printJSON(w io.Writer, data []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		_, err = w.Write(data)
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
