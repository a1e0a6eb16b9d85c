package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/flashbots/auctioneer/auction"
	"github.com/stretchr/testify/require"
)

const testFixtures = `
bidders:
  - {id: 1, username: admin, role: admin, wallet: 0}
  - {id: 2, username: alice, role: bidder, wallet: 10000}
  - {id: 3, username: bob, role: bidder, wallet: 10000}
  - {id: 4, username: carol, role: bidder, wallet: 60}
lots:
  - {id: 1, name: Lamp, base_price: 50, auction_index: 1, category: product}
  - {id: 2, name: Chair, base_price: 450, auction_index: 2, category: product}
  - {id: 3, name: Chip, base_price: 500, auction_index: 3, category: technology}
`

// runLedgerSuite exercises the auction.Ledger contract against a store
// constructor. Each subtest gets a freshly seeded store.
func runLedgerSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Helper()

	setup := func(t *testing.T) (Store, time.Time) {
		t.Helper()
		s := newStore(t)
		f, err := ParseFixtures([]byte(testFixtures))
		require.NoError(t, err)
		require.NoError(t, f.Apply(context.Background(), s))
		return s, time.Now().UTC().Truncate(time.Millisecond)
	}

	open := func(t *testing.T, s Store, lotID int64, now time.Time) *auction.Lot {
		t.Helper()
		l, err := s.OpenLot(context.Background(), lotID, now.Add(35*time.Second), 1)
		require.NoError(t, err)
		return l
	}

	t.Run("Seed", func(t *testing.T) {
		s, _ := setup(t)
		ctx := context.Background()

		l, err := s.Lot(ctx, 2)
		require.NoError(t, err)
		require.Equal(t, int64(450), l.CurrentBid)
		require.Equal(t, auction.StatusPending, l.Status)
		require.False(t, l.IsActive)
		require.Nil(t, l.TimerEnd)

		lots, err := s.Lots(ctx)
		require.NoError(t, err)
		require.Len(t, lots, 3)

		_, err = s.Lot(ctx, 99)
		require.ErrorIs(t, err, auction.ErrNotFound)
		_, err = s.Bidder(ctx, 99)
		require.ErrorIs(t, err, auction.ErrNotFound)
	})

	t.Run("QueueAndOpen", func(t *testing.T) {
		s, now := setup(t)
		ctx := context.Background()

		n, err := s.QueuePendingLots(ctx)
		require.NoError(t, err)
		require.Equal(t, 3, n)

		l := open(t, s, 1, now)
		require.Equal(t, auction.StatusActive, l.Status)
		require.True(t, l.TimerEnd.Equal(now.Add(35*time.Second)))

		open(t, s, 2, now)
		first, err := s.Lot(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, auction.StatusPending, first.Status)
		require.Nil(t, first.TimerEnd)

		lots, err := s.Lots(ctx)
		require.NoError(t, err)
		active := 0
		for _, l := range lots {
			if l.Status == auction.StatusActive {
				active++
			}
		}
		require.Equal(t, 1, active)

		_, err = s.OpenLot(ctx, 99, now, 1)
		require.ErrorIs(t, err, auction.ErrNotFound)
	})

	t.Run("CommitBid", func(t *testing.T) {
		s, now := setup(t)
		ctx := context.Background()
		open(t, s, 1, now)

		res, err := s.CommitBid(ctx, auction.BidCommit{LotID: 1, BidderID: 2, Amount: 100, ExpectedBid: 50, At: now})
		require.NoError(t, err)
		require.Equal(t, int64(9900), res.WalletBalance)
		require.Equal(t, "alice", res.BidderName)
		require.Equal(t, int64(100), res.Lot.CurrentBid)
		require.Equal(t, int64(2), res.Lot.WinnerID)
		require.Equal(t, 1, res.Lot.BidCount)
		require.NotZero(t, res.Bid.ID)

		_, err = s.CommitBid(ctx, auction.BidCommit{LotID: 1, BidderID: 3, Amount: 100, ExpectedBid: 50, At: now})
		require.ErrorIs(t, err, auction.ErrBidConflict)

		bob, err := s.Bidder(ctx, 3)
		require.NoError(t, err)
		require.Equal(t, int64(10000), bob.WalletBalance)

		_, err = s.CommitBid(ctx, auction.BidCommit{LotID: 1, BidderID: 4, Amount: 150, ExpectedBid: 100, At: now})
		require.ErrorIs(t, err, auction.ErrInsufficientFunds)

		l, err := s.Lot(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, int64(100), l.CurrentBid, "failed debit must roll back the price")

		_, err = s.CommitBid(ctx, auction.BidCommit{LotID: 1, BidderID: 3, Amount: 150, ExpectedBid: 100, At: now.Add(35 * time.Second)})
		require.ErrorIs(t, err, auction.ErrLotClosed)

		_, err = s.CommitBid(ctx, auction.BidCommit{LotID: 2, BidderID: 3, Amount: 500, ExpectedBid: 450, At: now})
		require.ErrorIs(t, err, auction.ErrLotClosed)
	})

	t.Run("LotWithBids", func(t *testing.T) {
		s, now := setup(t)
		ctx := context.Background()
		open(t, s, 1, now)

		_, err := s.CommitBid(ctx, auction.BidCommit{LotID: 1, BidderID: 2, Amount: 100, ExpectedBid: 50, At: now})
		require.NoError(t, err)
		_, err = s.CommitBid(ctx, auction.BidCommit{LotID: 1, BidderID: 3, Amount: 150, ExpectedBid: 100, At: now.Add(time.Second)})
		require.NoError(t, err)

		l, bids, err := s.LotWithBids(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, int64(150), l.CurrentBid)
		require.Len(t, bids, 2)
		require.Equal(t, "bob", bids[0].BidderName)
		require.Equal(t, int64(150), bids[0].Amount)
		require.Equal(t, "alice", bids[1].BidderName)

		_, bids, err = s.LotWithBids(ctx, 2)
		require.NoError(t, err)
		require.Empty(t, bids)
	})

	t.Run("ConcurrentCommit", func(t *testing.T) {
		s, now := setup(t)
		ctx := context.Background()
		open(t, s, 1, now)

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			accepted  int
			conflicts int
		)
		for _, bidder := range []int64{2, 3, 2, 3, 2, 3} {
			wg.Add(1)
			go func(bidder int64) {
				defer wg.Done()
				_, err := s.CommitBid(ctx, auction.BidCommit{LotID: 1, BidderID: bidder, Amount: 100, ExpectedBid: 50, At: now})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					accepted++
				case errors.Is(err, auction.ErrBidConflict):
					conflicts++
				}
			}(bidder)
		}
		wg.Wait()

		require.Equal(t, 1, accepted)
		require.Equal(t, 5, conflicts)

		l, err := s.Lot(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, int64(100), l.CurrentBid)
		require.Equal(t, 1, l.BidCount)

		alice, err := s.Bidder(ctx, 2)
		require.NoError(t, err)
		bob, err := s.Bidder(ctx, 3)
		require.NoError(t, err)
		require.Equal(t, int64(20000-100), alice.WalletBalance+bob.WalletBalance)
	})

	t.Run("MarkSold", func(t *testing.T) {
		s, now := setup(t)
		ctx := context.Background()
		open(t, s, 1, now)

		_, err := s.MarkSold(ctx, auction.SaleRecord{LotID: 1, WinnerID: 2, Amount: 50, AdminID: 1})
		require.ErrorIs(t, err, auction.ErrNoBids)

		_, err = s.CommitBid(ctx, auction.BidCommit{LotID: 1, BidderID: 2, Amount: 100, ExpectedBid: 50, At: now})
		require.NoError(t, err)

		_, err = s.MarkSold(ctx, auction.SaleRecord{LotID: 1, WinnerID: 3, Amount: 100, AdminID: 1})
		require.ErrorIs(t, err, auction.ErrBidConflict)

		l, err := s.MarkSold(ctx, auction.SaleRecord{LotID: 1, WinnerID: 2, Amount: 100, AdminID: 1})
		require.NoError(t, err)
		require.Equal(t, auction.StatusSold, l.Status)
		require.False(t, l.IsActive)

		_, err = s.MarkSold(ctx, auction.SaleRecord{LotID: 1, WinnerID: 2, Amount: 100, AdminID: 1})
		require.ErrorIs(t, err, auction.ErrLotClosed)

		_, err = s.ReverseLot(ctx, 1, 1)
		require.ErrorIs(t, err, auction.ErrLotClosed)

		_, err = s.OpenLot(ctx, 1, now, 1)
		require.ErrorIs(t, err, auction.ErrLotClosed)
	})

	t.Run("ReverseLotRefundsOnce", func(t *testing.T) {
		s, now := setup(t)
		ctx := context.Background()
		open(t, s, 1, now)

		_, err := s.CommitBid(ctx, auction.BidCommit{LotID: 1, BidderID: 2, Amount: 100, ExpectedBid: 50, At: now})
		require.NoError(t, err)
		_, err = s.CommitBid(ctx, auction.BidCommit{LotID: 1, BidderID: 3, Amount: 150, ExpectedBid: 100, At: now})
		require.NoError(t, err)

		rev, err := s.ReverseLot(ctx, 1, 1)
		require.NoError(t, err)
		require.False(t, rev.AlreadyUnsold)
		require.Len(t, rev.Refunds, 2)
		require.Equal(t, auction.StatusUnsold, rev.Lot.Status)
		require.Equal(t, int64(50), rev.Lot.CurrentBid)
		require.Zero(t, rev.Lot.WinnerID)
		require.Zero(t, rev.Lot.BidCount)
		require.Nil(t, rev.Lot.TimerEnd)
		require.False(t, rev.Lot.IsActive)

		again, err := s.ReverseLot(ctx, 1, 1)
		require.NoError(t, err)
		require.True(t, again.AlreadyUnsold)
		require.Empty(t, again.Refunds)

		for _, id := range []int64{2, 3} {
			b, err := s.Bidder(ctx, id)
			require.NoError(t, err)
			require.Equal(t, int64(10000), b.WalletBalance)
		}

		_, bids, err := s.LotWithBids(ctx, 1)
		require.NoError(t, err)
		require.Empty(t, bids)
	})

	t.Run("RequeueUnsold", func(t *testing.T) {
		s, now := setup(t)
		ctx := context.Background()

		open(t, s, 1, now)
		_, err := s.ReverseLot(ctx, 1, 1)
		require.NoError(t, err)
		open(t, s, 3, now)
		_, err = s.ReverseLot(ctx, 3, 1)
		require.NoError(t, err)

		lots, err := s.Lots(ctx)
		require.NoError(t, err)
		require.Len(t, auction.UnsoldRetrySet(lots), 2)

		n, err := s.RequeueUnsold(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, 2, n)

		lots, err = s.Lots(ctx)
		require.NoError(t, err)
		require.Empty(t, auction.UnsoldRetrySet(lots))
		run := auction.ActiveRun(lots)
		require.Len(t, run, 2)
		for _, l := range run {
			require.Equal(t, auction.StatusPending, l.Status)
			require.Equal(t, l.BasePrice, l.CurrentBid)
		}

		n, err = s.RequeueUnsold(ctx, 1)
		require.NoError(t, err)
		require.Zero(t, n)
	})
}
