package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/flashbots/auctioneer/auction"
)

// handleSSE streams broadcasts to watch-only clients. The current
// snapshot, if any, is sent first.
func (a *API) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := a.hub.Subscribe("sse")
	defer a.hub.Unsubscribe(sub)

	if snap, err := a.dispatcher.Snapshot(r.Context()); err == nil {
		if err := writeSSE(w, auction.Event{Type: auction.EventState, Payload: snap}); err != nil {
			return
		}
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-sub.Done():
			return
		case ev := <-sub.Events():
			if err := writeSSE(w, ev); err != nil {
				a.log.Debug("SSE write failed", "err", err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev auction.Event) error {
	data, err := json.Marshal(ev.Payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}
