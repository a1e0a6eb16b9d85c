package coordinator

import (
	"time"

	"github.com/flashbots/auctioneer/auction"
)

// TimerState is the countdown position of the open lot.
type TimerState int32

const (
	StateIdle TimerState = iota
	StateRunning
	StateExpired
	// StateClosed means an admin decision cancelled the countdown.
	StateClosed
)

func (s TimerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateExpired:
		return "expired"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Session is the live state of the lot currently open. It is replaced
// wholesale on every lot transition and never shared outside the
// coordinator except as a copy.
type Session struct {
	LotID      int64
	Deadline   time.Time
	FirstBidAt time.Time
	State      TimerState

	// epoch identifies the session; countdown ticks carry it and are
	// discarded when it no longer matches.
	epoch uint64
}

// Epoch returns the session generation.
func (s Session) Epoch() uint64 {
	return s.epoch
}

// admissionError rejects a bid arriving at now, or returns nil when the
// session still accepts bids.
func (s *Session) admissionError(now time.Time) error {
	switch {
	case s.State == StateClosed:
		return auction.Invalid(auction.ReasonLotClosed, "bidding on this item is closed")
	case s.State == StateExpired, !now.Before(s.Deadline):
		return auction.Invalid(auction.ReasonLateBid, "time is up for this item")
	}
	return nil
}
