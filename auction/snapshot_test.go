package auction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuildSnapshot_NoBids(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	end := now.Add(35 * time.Second)
	l := &Lot{ID: 7, Name: "Lamp", BasePrice: 50, CurrentBid: 50, TimerEnd: &end, Status: StatusActive, Category: CategoryProduct}

	s := BuildSnapshot(l, nil, now, time.Time{})
	require.Equal(t, int64(7), s.LotID)
	require.Equal(t, int64(35), s.SecondsRemaining)
	require.False(t, s.HasBids)
	require.Nil(t, s.LeadingBidder)
	require.Nil(t, s.SecondsSinceFirstBid)
	require.NotNil(t, s.Bids)
	require.Empty(t, s.Bids)

	// the snapshot owns its deadline
	end = end.Add(time.Hour)
	require.Equal(t, now.Add(35*time.Second), *s.TimerEnd)
}

func TestBuildSnapshot_WithBids(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	end := now.Add(1500 * time.Millisecond)
	l := &Lot{ID: 7, BasePrice: 50, CurrentBid: 150, TimerEnd: &end, Status: StatusActive}
	bids := []BidEntry{
		{Bid: Bid{Amount: 150, CreatedAt: now.Add(-time.Second)}, BidderName: "bob"},
		{Bid: Bid{Amount: 100, CreatedAt: now.Add(-4 * time.Second)}, BidderName: "alice"},
	}

	s := BuildSnapshot(l, bids, now, now.Add(-4*time.Second))
	require.True(t, s.HasBids)
	require.Equal(t, "bob", *s.LeadingBidder)
	require.Equal(t, int64(1), s.SecondsRemaining)
	require.Equal(t, int64(4), *s.SecondsSinceFirstBid)
	require.Len(t, s.Bids, 2)
	require.Equal(t, int64(150), s.Bids[0].Amount)
	require.Equal(t, "alice", s.Bids[1].Bidder)
}

func TestSecondsUntil(t *testing.T) {
	now := time.Now()
	require.Equal(t, int64(0), SecondsUntil(now.Add(-time.Second), now))
	require.Equal(t, int64(0), SecondsUntil(now, now))
	require.Equal(t, int64(0), SecondsUntil(now.Add(999*time.Millisecond), now))
	require.Equal(t, int64(34), SecondsUntil(now.Add(34900*time.Millisecond), now))
}
