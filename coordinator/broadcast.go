package coordinator

import (
	"context"

	"github.com/flashbots/auctioneer/auction"
	"github.com/flashbots/auctioneer/metrics"
)

// publishSnapshot broadcasts the open lot's state. Failures are logged and
// swallowed; subscribers recover with the next snapshot.
func (c *Coordinator) publishSnapshot(ctx context.Context) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		c.log.Debug("Skipping snapshot broadcast", "err", err)
		return
	}
	c.pub.Publish(auction.Event{Type: auction.EventState, Payload: snap})
}

// current reports whether epoch is the running session.
func (c *Coordinator) current(epoch uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.session != nil && c.session.epoch == epoch && c.session.State == StateRunning
}

func (c *Coordinator) onTick(ctx context.Context, epoch uint64) {
	if !c.current(epoch) {
		metrics.IncStaleTick()
		return
	}
	metrics.IncTick()
	c.publishSnapshot(ctx)
}

// onExpire moves the session to StateExpired and announces the result once.
// The lot keeps its status; an admin decides whether it sold.
func (c *Coordinator) onExpire(ctx context.Context, epoch uint64) {
	c.mu.Lock()
	if c.session == nil || c.session.epoch != epoch || c.session.State != StateRunning {
		c.mu.Unlock()
		metrics.IncStaleTick()
		return
	}
	c.session.State = StateExpired
	lotID := c.session.LotID
	c.mu.Unlock()

	metrics.IncLotExpired()

	lot, bids, err := c.ledger.LotWithBids(ctx, lotID)
	if err != nil {
		c.log.Error("Failed to load expired lot", "lotId", lotID, "err", err)
		return
	}

	finished := auction.TimerFinished{
		LotID:   lot.ID,
		Name:    lot.Name,
		HasBids: len(bids) > 0,
	}
	if len(bids) > 0 {
		leader := bids[0].BidderName
		amount := bids[0].Amount
		finished.WinningBidder = &leader
		finished.WinningBid = &amount
	}

	c.log.Info("Lot timer finished", "lotId", lot.ID, "hasBids", finished.HasBids, "epoch", epoch)

	c.publishSnapshot(ctx)
	c.pub.Publish(auction.Event{Type: auction.EventTimerFinished, Payload: finished})
}
