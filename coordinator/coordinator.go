// Package coordinator runs the live auction: it owns the open lot's session
// and countdown, admits bids through the ledger's conditional commit,
// applies admin transitions and publishes the canonical state after every
// change.
//
// A Coordinator is safe for concurrent use. Admin transitions are
// serialised; bids are not, and rely on the ledger to reject a bid whose
// expected price went stale.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/flashbots/auctioneer/auction"
	"github.com/jonboulle/clockwork"
)

// Coordinator is the single owner of the auction session.
type Coordinator struct {
	cfg    Config
	ledger auction.Ledger
	pub    auction.Publisher
	clock  clockwork.Clock
	log    *slog.Logger

	// transitionMu serialises admin commands. It is held across ledger
	// calls and while waiting for a countdown to exit.
	transitionMu sync.Mutex
	// retrying is set while the unsold retry run is in progress. Guarded
	// by transitionMu.
	retrying bool

	// mu guards the fields below and is only held briefly. It is never
	// held while waiting on a countdown.
	mu        sync.RWMutex
	session   *Session
	countdown *countdown
	epoch     uint64
}

// New creates an idle coordinator.
func New(cfg Config, ledger auction.Ledger, pub auction.Publisher) (*Coordinator, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid coordinator config: %w", err)
	}
	if ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if pub == nil {
		return nil, errors.New("publisher is required")
	}

	return &Coordinator{
		cfg:    cfg,
		ledger: ledger,
		pub:    pub,
		clock:  cfg.Clock,
		log:    cfg.Log,
	}, nil
}

// Session returns a copy of the current session, or false when no lot is
// open.
func (c *Coordinator) Session() (Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// State returns the countdown state of the open lot.
func (c *Coordinator) State() TimerState {
	s, ok := c.Session()
	if !ok {
		return StateIdle
	}
	return s.State
}

// Snapshot assembles the canonical state of the open lot.
func (c *Coordinator) Snapshot(ctx context.Context) (*auction.Snapshot, error) {
	sess, ok := c.Session()
	if !ok {
		return nil, auction.Invalid(auction.ReasonNoActiveLot, "no active item")
	}

	lot, bids, err := c.ledger.LotWithBids(ctx, sess.LotID)
	if err != nil {
		return nil, c.ledgerError(err, "loading snapshot")
	}
	return auction.BuildSnapshot(lot, bids, c.clock.Now(), sess.FirstBidAt), nil
}

// Close stops the countdown. The session is left in place so a final
// snapshot can still be served.
func (c *Coordinator) Close() {
	c.transitionMu.Lock()
	defer c.transitionMu.Unlock()

	c.stopCountdown(false)
}

// stopCountdown detaches and stops the running countdown. With closeSession
// set the session moves to StateClosed before the countdown is awaited, so a
// tick racing with the stop is already stale.
func (c *Coordinator) stopCountdown(closeSession bool) {
	c.mu.Lock()
	cd := c.countdown
	c.countdown = nil
	if closeSession && c.session != nil {
		c.session.State = StateClosed
	}
	c.mu.Unlock()

	if cd != nil {
		cd.Stop()
	}
}

// teardown ends the session entirely.
func (c *Coordinator) teardown() {
	c.stopCountdown(true)

	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
}

// ledgerError translates ledger sentinels into request errors. Anything
// unrecognised is logged and reported as internal.
func (c *Coordinator) ledgerError(err error, op string) error {
	switch {
	case errors.Is(err, auction.ErrNotFound):
		return &auction.Error{Kind: auction.KindValidation, Reason: auction.ReasonNotFound, Message: "not found", Err: err}
	case errors.Is(err, auction.ErrLotClosed):
		return &auction.Error{Kind: auction.KindValidation, Reason: auction.ReasonLotClosed, Message: "item is closed", Err: err}
	case errors.Is(err, auction.ErrNoBids):
		return &auction.Error{Kind: auction.KindValidation, Reason: auction.ReasonNoBids, Message: "item has no bids", Err: err}
	case errors.Is(err, auction.ErrInsufficientFunds):
		return &auction.Error{Kind: auction.KindValidation, Reason: auction.ReasonInsufficientFunds, Message: "insufficient funds", Err: err}
	case errors.Is(err, auction.ErrBidConflict):
		return auction.Outbid(err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return auction.Internal(err)
	}

	c.log.Error("Ledger operation failed", "op", op, "err", err)
	return auction.Internal(err)
}
