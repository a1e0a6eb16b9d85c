package store

import (
	"context"
	"testing"
	"time"

	"github.com/flashbots/auctioneer/auction"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Ledger(t *testing.T) {
	runLedgerSuite(t, func(t *testing.T) Store {
		return NewMemoryStore(nil)
	})
}

func TestMemoryStore_Audit(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	s := NewMemoryStore(clock)
	ctx := context.Background()

	f, err := ParseFixtures([]byte(testFixtures))
	require.NoError(t, err)
	require.NoError(t, f.Apply(ctx, s))

	now := clock.Now()
	_, err = s.OpenLot(ctx, 1, now.Add(35*time.Second), 1)
	require.NoError(t, err)
	_, err = s.CommitBid(ctx, auction.BidCommit{LotID: 1, BidderID: 2, Amount: 100, ExpectedBid: 50, At: now})
	require.NoError(t, err)
	_, err = s.ReverseLot(ctx, 1, 1)
	require.NoError(t, err)
	_, err = s.ReverseLot(ctx, 1, 1)
	require.NoError(t, err)
	_, err = s.RequeueUnsold(ctx, 1)
	require.NoError(t, err)

	entries := s.Audit()
	actions := make([]string, 0, len(entries))
	for _, e := range entries {
		actions = append(actions, e.Action)
		require.Equal(t, now, e.CreatedAt)
	}
	require.Equal(t, []string{
		auction.ActionLotOpened,
		auction.ActionPlaceBid,
		auction.ActionItemUnsold,
		auction.ActionUnsoldRequeued,
	}, actions)

	require.Equal(t, int64(2), entries[1].ActorID)
	require.Empty(t, s.Bids(1))
}

func TestMemoryStore_SeedValidation(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()

	_, err := s.AddLot(ctx, &auction.Lot{Name: "Lamp", Category: "furniture"})
	require.Error(t, err)

	_, err = s.AddLot(ctx, &auction.Lot{Name: "Lamp", BasePrice: 50, AuctionIndex: 1, Category: auction.CategoryProduct})
	require.NoError(t, err)
	_, err = s.AddLot(ctx, &auction.Lot{Name: "Vase", BasePrice: 50, AuctionIndex: 1, Category: auction.CategoryProduct})
	require.Error(t, err, "auction index must be unique")

	_, err = s.AddBidder(ctx, &auction.Bidder{Username: "dave", Role: "guest"})
	require.Error(t, err)

	b, err := s.AddBidder(ctx, &auction.Bidder{Username: "dave", Role: auction.RoleBidder, WalletBalance: 500})
	require.NoError(t, err)
	require.Equal(t, int64(1), b.ID)
}

func TestParseFixtures(t *testing.T) {
	f, err := ParseFixtures([]byte(testFixtures))
	require.NoError(t, err)
	require.Len(t, f.Bidders, 4)
	require.Len(t, f.Lots, 3)
	require.Equal(t, "technology", f.Lots[2].Category)
	require.Equal(t, int64(500), f.Lots[2].BasePrice)

	_, err = ParseFixtures([]byte("lots: [unterminated"))
	require.Error(t, err)
}
