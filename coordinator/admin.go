package coordinator

import (
	"context"
	"fmt"

	"github.com/flashbots/auctioneer/auction"
	"github.com/flashbots/auctioneer/metrics"
)

func authorizeAdmin(id auction.Identity, cmd auction.CommandType) error {
	if !id.IsAdmin() {
		return auction.Unauthorized("%s requires the admin role", cmd)
	}
	return nil
}

// requireSessionLot rejects a command addressed to a lot other than the
// one the session is on.
func (c *Coordinator) requireSessionLot(lotID int64) (Session, error) {
	sess, ok := c.Session()
	if !ok {
		return Session{}, auction.Invalid(auction.ReasonStaleCommand, "no item is open")
	}
	if lotID != 0 && sess.LotID != lotID {
		return Session{}, auction.Invalid(auction.ReasonStaleCommand,
			"item %d is no longer the current item (current is %d)", lotID, sess.LotID)
	}
	return sess, nil
}

// Start queues every pending lot and opens the first lot of the run.
func (c *Coordinator) Start(ctx context.Context, id auction.Identity) (*auction.AdminOutcome, error) {
	if err := authorizeAdmin(id, auction.CommandStart); err != nil {
		return nil, err
	}

	c.transitionMu.Lock()
	defer c.transitionMu.Unlock()

	queued, err := c.ledger.QueuePendingLots(ctx)
	if err != nil {
		return nil, c.ledgerError(err, "queueing lots")
	}

	lots, err := c.ledger.Lots(ctx)
	if err != nil {
		return nil, c.ledgerError(err, "loading lots")
	}

	c.retrying = false
	run := auction.ActiveRun(lots)
	c.log.Info("Starting auction run", "queued", queued, "runLength", len(run))

	if len(run) == 0 {
		return c.finishRun(auction.CommandStart, lots), nil
	}
	return c.openLot(ctx, id, auction.CommandStart, run[0])
}

// Next closes the open lot and opens its successor in the run. When the run
// is exhausted the session ends and either the unsold retry set or the end
// of the auction is announced.
func (c *Coordinator) Next(ctx context.Context, id auction.Identity, cmd auction.Next) (*auction.AdminOutcome, error) {
	if err := authorizeAdmin(id, auction.CommandNext); err != nil {
		return nil, err
	}

	c.transitionMu.Lock()
	defer c.transitionMu.Unlock()

	var current *auction.Lot
	sess, ok := c.Session()
	if cmd.LotID != 0 {
		if _, err := c.requireSessionLot(cmd.LotID); err != nil {
			return nil, err
		}
	}
	if ok {
		lot, err := c.ledger.Lot(ctx, sess.LotID)
		if err != nil {
			return nil, c.ledgerError(err, "loading current lot")
		}
		current = lot
	}

	c.stopCountdown(true)

	lots, err := c.ledger.Lots(ctx)
	if err != nil {
		return nil, c.ledgerError(err, "loading lots")
	}

	next := auction.NextLot(c.run(lots), current)
	if next == nil {
		return c.finishRun(auction.CommandNext, lots), nil
	}
	return c.openLot(ctx, id, auction.CommandNext, next)
}

// MarkSold confirms the leading bid on the open lot. The session stays on
// the sold lot until the next transition.
func (c *Coordinator) MarkSold(ctx context.Context, id auction.Identity, cmd auction.MarkSold) (*auction.AdminOutcome, error) {
	if err := authorizeAdmin(id, auction.CommandMarkSold); err != nil {
		return nil, err
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	c.transitionMu.Lock()
	defer c.transitionMu.Unlock()

	if _, err := c.requireSessionLot(cmd.LotID); err != nil {
		return nil, err
	}

	lot, err := c.saleCandidate(ctx, cmd)
	if err != nil {
		return nil, err
	}

	c.stopCountdown(true)

	// A bid admitted while the countdown was stopping moves the leader, so
	// the lot is read again once no further bid can be validated.
	lot, err = c.saleCandidate(ctx, cmd)
	if err != nil {
		return nil, err
	}

	sold, err := c.ledger.MarkSold(ctx, auction.SaleRecord{
		LotID:    lot.ID,
		WinnerID: lot.WinnerID,
		Amount:   lot.CurrentBid,
		AdminID:  id.ID,
	})
	if err != nil {
		return nil, c.ledgerError(err, "marking lot sold")
	}

	c.log.Info("Lot sold", "lotId", sold.ID, "winnerId", lot.WinnerID, "amount", lot.CurrentBid)
	metrics.IncLotTransition(string(auction.CommandMarkSold), auction.OutcomeSold)

	c.pub.Publish(auction.Event{
		Type: auction.EventLotSold,
		Payload: auction.LotSold{
			LotID:      sold.ID,
			Name:       sold.Name,
			WinnerID:   lot.WinnerID,
			WinningBid: lot.CurrentBid,
		},
	})
	c.publishSnapshot(ctx)

	return &auction.AdminOutcome{Command: auction.CommandMarkSold, Result: auction.OutcomeSold, LotID: sold.ID}, nil
}

func (c *Coordinator) saleCandidate(ctx context.Context, cmd auction.MarkSold) (*auction.Lot, error) {
	lot, err := c.ledger.Lot(ctx, cmd.LotID)
	if err != nil {
		return nil, c.ledgerError(err, "loading lot")
	}
	if lot.Status == auction.StatusSold || lot.Status == auction.StatusUnsold {
		return nil, auction.Invalid(auction.ReasonLotClosed, "item %d is already %s", lot.ID, lot.Status)
	}
	if lot.BidCount == 0 {
		return nil, auction.Invalid(auction.ReasonNoBids, "item %d has no bids", lot.ID)
	}
	if cmd.WinnerID != 0 && cmd.WinnerID != lot.WinnerID {
		return nil, auction.Invalid(auction.ReasonWinnerMismatch,
			"bidder %d is not leading item %d", cmd.WinnerID, lot.ID)
	}
	return lot, nil
}

// MarkUnsold reverses the open lot: every bid is refunded and deleted and
// the lot returns to its base price. Marking an already unsold lot again
// changes nothing and publishes nothing.
func (c *Coordinator) MarkUnsold(ctx context.Context, id auction.Identity, cmd auction.MarkUnsold) (*auction.AdminOutcome, error) {
	if err := authorizeAdmin(id, auction.CommandMarkUnsold); err != nil {
		return nil, err
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	c.transitionMu.Lock()
	defer c.transitionMu.Unlock()

	if _, err := c.requireSessionLot(cmd.LotID); err != nil {
		return nil, err
	}

	c.stopCountdown(true)

	rev, err := c.ledger.ReverseLot(ctx, cmd.LotID, id.ID)
	if err != nil {
		return nil, c.ledgerError(err, "reversing lot")
	}

	if rev.AlreadyUnsold {
		c.log.Info("Lot already unsold", "lotId", cmd.LotID)
		return &auction.AdminOutcome{Command: auction.CommandMarkUnsold, Result: auction.OutcomeAlreadyUnsold, LotID: cmd.LotID}, nil
	}

	var refunded int64
	for _, r := range rev.Refunds {
		refunded += r.Amount
	}
	metrics.AddRefunds(len(rev.Refunds), refunded)
	metrics.IncLotTransition(string(auction.CommandMarkUnsold), auction.OutcomeUnsold)
	c.log.Info("Lot unsold", "lotId", cmd.LotID, "refunds", len(rev.Refunds), "refunded", refunded)

	c.pub.Publish(auction.Event{
		Type: auction.EventLotUnsold,
		Payload: auction.LotUnsold{
			LotID:    rev.Lot.ID,
			Name:     rev.Lot.Name,
			Refunded: len(rev.Refunds),
		},
	})
	c.publishSnapshot(ctx)

	return &auction.AdminOutcome{Command: auction.CommandMarkUnsold, Result: auction.OutcomeUnsold, LotID: cmd.LotID}, nil
}

// StartUnsold requeues every unsold lot at its base price and opens the
// first one by AuctionIndex. With nothing to retry an unsettled lot is
// left untouched.
func (c *Coordinator) StartUnsold(ctx context.Context, id auction.Identity) (*auction.AdminOutcome, error) {
	if err := authorizeAdmin(id, auction.CommandStartUnsold); err != nil {
		return nil, err
	}

	c.transitionMu.Lock()
	defer c.transitionMu.Unlock()

	lots, err := c.ledger.Lots(ctx)
	if err != nil {
		return nil, c.ledgerError(err, "loading lots")
	}

	retry := auction.UnsoldRetrySet(lots)
	if len(retry) == 0 {
		if sess, ok := c.Session(); ok && sess.State != StateClosed {
			c.log.Info("No unsold items to retry", "lotId", sess.LotID)
			return &auction.AdminOutcome{Command: auction.CommandStartUnsold, Result: auction.OutcomeComplete}, nil
		}
		return c.finishRun(auction.CommandStartUnsold, lots), nil
	}

	c.stopCountdown(true)

	requeued, err := c.ledger.RequeueUnsold(ctx, id.ID)
	if err != nil {
		return nil, c.ledgerError(err, "requeueing unsold lots")
	}

	c.retrying = true
	c.log.Info("Starting unsold retry run", "requeued", requeued, "first", retry[0].ID)
	return c.openLot(ctx, id, auction.CommandStartUnsold, retry[0])
}

// run orders the queued lots for the pass in progress.
func (c *Coordinator) run(lots []*auction.Lot) []*auction.Lot {
	if c.retrying {
		return auction.RetryRun(lots)
	}
	return auction.ActiveRun(lots)
}

// openLot replaces the session with a fresh one on lot and starts its
// countdown. The previous countdown, if any, has exited when openLot
// persists the new deadline.
func (c *Coordinator) openLot(ctx context.Context, id auction.Identity, cmd auction.CommandType, lot *auction.Lot) (*auction.AdminOutcome, error) {
	c.stopCountdown(true)

	deadline := c.clock.Now().Add(c.cfg.LotDuration)
	opened, err := c.ledger.OpenLot(ctx, lot.ID, deadline, id.ID)
	if err != nil {
		return nil, c.ledgerError(err, fmt.Sprintf("opening lot %d", lot.ID))
	}

	c.mu.Lock()
	c.epoch++
	epoch := c.epoch
	c.session = &Session{
		LotID:    opened.ID,
		Deadline: deadline,
		State:    StateRunning,
		epoch:    epoch,
	}
	c.countdown = startCountdown(c.clock, epoch, deadline, c.cfg.TickInterval, c.onTick, c.onExpire)
	c.mu.Unlock()

	c.log.Info("Lot opened", "lotId", opened.ID, "name", opened.Name, "deadline", deadline, "epoch", epoch)
	metrics.IncLotTransition(string(cmd), auction.OutcomeLotOpened)

	c.publishSnapshot(ctx)

	return &auction.AdminOutcome{Command: cmd, Result: auction.OutcomeLotOpened, LotID: opened.ID}, nil
}

// finishRun ends the session when no lot is left to open.
func (c *Coordinator) finishRun(cmd auction.CommandType, lots []*auction.Lot) *auction.AdminOutcome {
	c.teardown()

	retry := auction.UnsoldRetrySet(lots)
	if cmd == auction.CommandNext && len(retry) > 0 {
		c.log.Info("Run finished with unsold items", "count", len(retry))
		metrics.IncLotTransition(string(cmd), auction.OutcomeUnsoldAvailable)
		c.pub.Publish(auction.Event{
			Type: auction.EventUnsoldAvailable,
			Payload: auction.UnsoldAvailable{
				Count:   len(retry),
				Message: fmt.Sprintf("%d unsold items available", len(retry)),
			},
		})
		return &auction.AdminOutcome{Command: cmd, Result: auction.OutcomeUnsoldAvailable, Count: len(retry)}
	}

	c.log.Info("Auction complete")
	metrics.IncLotTransition(string(cmd), auction.OutcomeComplete)
	c.pub.Publish(auction.Event{Type: auction.EventComplete})
	return &auction.AdminOutcome{Command: cmd, Result: auction.OutcomeComplete}
}
