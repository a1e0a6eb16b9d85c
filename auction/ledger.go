package auction

import (
	"context"
	"time"
)

// Ledger is the durable store of lots, bids, bidders and the audit log.
// Every method is atomic: it either applies all of its writes or none.
type Ledger interface {
	// Lot returns a single lot or ErrNotFound.
	Lot(ctx context.Context, id int64) (*Lot, error)

	// LotWithBids reads a lot and its bids, highest first, in one consistent
	// read.
	LotWithBids(ctx context.Context, id int64) (*Lot, []BidEntry, error)

	// Lots returns every lot.
	Lots(ctx context.Context) ([]*Lot, error)

	// Bidder returns a single bidder or ErrNotFound.
	Bidder(ctx context.Context, id int64) (*Bidder, error)

	// QueuePendingLots flags every pending lot as part of the run and
	// returns how many were queued.
	QueuePendingLots(ctx context.Context) (int, error)

	// OpenLot makes id the single active lot with the given deadline. Any
	// other active lot is parked back to pending with its timer cleared.
	OpenLot(ctx context.Context, id int64, timerEnd time.Time, actorID int64) (*Lot, error)

	// CommitBid atomically advances the lot price, debits the bidder and
	// records the bid. It returns ErrBidConflict when the lot price moved
	// away from ExpectedBid, ErrLotClosed when the lot stopped accepting
	// bids, ErrInsufficientFunds when the debit would overdraw the wallet.
	CommitBid(ctx context.Context, c BidCommit) (*BidResult, error)

	// MarkSold closes the lot in favour of its leading bidder.
	MarkSold(ctx context.Context, s SaleRecord) (*Lot, error)

	// ReverseLot refunds every bid on the lot, deletes them and resets the
	// lot to unsold. Reversing an already unsold lot is a no-op.
	ReverseLot(ctx context.Context, lotID, actorID int64) (*Reversal, error)

	// RequeueUnsold resets every unsold lot to its base price and queues it
	// for a retry run. It returns the number of lots requeued.
	RequeueUnsold(ctx context.Context, actorID int64) (int, error)
}

// BidCommit is a validated bid ready to be written.
type BidCommit struct {
	LotID       int64
	BidderID    int64
	Amount      int64
	ExpectedBid int64
	At          time.Time
}

// BidResult is the outcome of a committed bid.
type BidResult struct {
	Bid           Bid
	BidderName    string
	WalletBalance int64
	Lot           *Lot
}

// SaleRecord confirms a sale.
type SaleRecord struct {
	LotID    int64
	WinnerID int64
	Amount   int64
	AdminID  int64
}

// Refund is a single credit made by a reversal.
type Refund struct {
	BidderID int64 `json:"bidderId"`
	Amount   int64 `json:"amount"`
}

// Reversal is the outcome of ReverseLot.
type Reversal struct {
	Lot           *Lot
	Refunds       []Refund
	AlreadyUnsold bool
}
