package realtime

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/flashbots/auctioneer/auction"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHub_DeliversInOrder(t *testing.T) {
	hub := NewHub(discardLogger(), 4)
	sub := hub.Subscribe("test")
	defer hub.Unsubscribe(sub)

	hub.Publish(auction.Event{Type: auction.EventState})
	hub.Publish(auction.Event{Type: auction.EventBidAccepted})

	require.Equal(t, auction.EventState, (<-sub.Events()).Type)
	require.Equal(t, auction.EventBidAccepted, (<-sub.Events()).Type)
}

func TestHub_SlowSubscriber(t *testing.T) {
	hub := NewHub(discardLogger(), 1)
	slow := hub.Subscribe("test")
	fast := hub.Subscribe("test")
	require.Equal(t, 2, hub.Count())

	hub.Publish(auction.Event{Type: auction.EventState})
	<-fast.Events()

	// A snapshot that does not fit is dropped.
	hub.Publish(auction.Event{Type: auction.EventState})
	<-fast.Events()
	select {
	case <-slow.Done():
		t.Fatal("snapshot overflow must not evict")
	default:
	}
	require.Equal(t, 2, hub.Count())

	// A lifecycle event that does not fit evicts.
	hub.Publish(auction.Event{Type: auction.EventLotSold})
	<-slow.Done()
	require.Equal(t, 1, hub.Count())
	require.Equal(t, auction.EventLotSold, (<-fast.Events()).Type)

	hub.Unsubscribe(slow)
	hub.Unsubscribe(fast)
	require.Zero(t, hub.Count())
}

func TestStaticTokens(t *testing.T) {
	tokens := StaticTokens{
		"good":  auction.Identity{ID: 2, Role: auction.RoleBidder},
		"blank": {},
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	id, err := tokens.Authenticate(ctx, "good")
	require.NoError(t, err)
	require.Equal(t, int64(2), id.ID)

	_, err = tokens.Authenticate(ctx, "blank")
	require.ErrorIs(t, err, ErrUnknownToken)

	_, err = tokens.Authenticate(ctx, "missing")
	require.ErrorIs(t, err, ErrUnknownToken)
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(discardLogger(), 1)
	sub := hub.Subscribe("test")

	hub.Close()
	<-sub.Done()
	require.Equal(t, CloseShutdown, sub.Reason())
	require.Zero(t, hub.Count())

	late := hub.Subscribe("test")
	<-late.Done()
	require.Zero(t, hub.Count())

	hub.Unsubscribe(sub)
	require.Equal(t, CloseShutdown, sub.Reason())
}
