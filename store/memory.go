package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/flashbots/auctioneer/auction"
	"github.com/jonboulle/clockwork"
)

// MemoryStore implements auction.Ledger in process memory. Every method
// holds a single mutex, which gives it the same all-or-nothing behaviour as
// a database transaction. It backs demo runs and tests.
type MemoryStore struct {
	mu    sync.Mutex
	clock clockwork.Clock

	lots    map[int64]*auction.Lot
	bidders map[int64]*auction.Bidder
	bids    []auction.Bid
	audit   []auction.AuditEntry

	nextLotID    int64
	nextBidderID int64
	nextBidID    int64
	nextAuditID  int64
}

// NewMemoryStore creates an empty in-memory ledger. Audit timestamps are
// read from clock; a nil clock means wall time.
func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{
		clock:   clock,
		lots:    make(map[int64]*auction.Lot),
		bidders: make(map[int64]*auction.Bidder),
	}
}

// AddLot seeds a lot. A zero ID is assigned, a zero CurrentBid starts at
// BasePrice and an empty status means pending.
func (s *MemoryStore) AddLot(_ context.Context, lot *auction.Lot) (*auction.Lot, error) {
	if err := validateLot(lot); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l := normalizeLot(lot)
	if l.ID == 0 {
		s.nextLotID++
		l.ID = s.nextLotID
	} else if l.ID > s.nextLotID {
		s.nextLotID = l.ID
	}
	if _, exists := s.lots[l.ID]; exists {
		return nil, fmt.Errorf("lot %d already exists", l.ID)
	}
	for _, other := range s.lots {
		if other.AuctionIndex == l.AuctionIndex {
			return nil, fmt.Errorf("auction index %d already used by lot %d", l.AuctionIndex, other.ID)
		}
	}

	s.lots[l.ID] = l
	return l.Clone(), nil
}

// AddBidder seeds a bidder. A zero ID is assigned.
func (s *MemoryStore) AddBidder(_ context.Context, bidder *auction.Bidder) (*auction.Bidder, error) {
	if err := validateBidder(bidder); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b := *bidder
	if b.ID == 0 {
		s.nextBidderID++
		b.ID = s.nextBidderID
	} else if b.ID > s.nextBidderID {
		s.nextBidderID = b.ID
	}
	if _, exists := s.bidders[b.ID]; exists {
		return nil, fmt.Errorf("bidder %d already exists", b.ID)
	}

	s.bidders[b.ID] = &b
	out := b
	return &out, nil
}

func (s *MemoryStore) Lot(_ context.Context, id int64) (*auction.Lot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lots[id]
	if !ok {
		return nil, fmt.Errorf("lot %d: %w", id, auction.ErrNotFound)
	}
	return l.Clone(), nil
}

func (s *MemoryStore) LotWithBids(_ context.Context, id int64) (*auction.Lot, []auction.BidEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lots[id]
	if !ok {
		return nil, nil, fmt.Errorf("lot %d: %w", id, auction.ErrNotFound)
	}

	var entries []auction.BidEntry
	for _, b := range s.bids {
		if b.LotID != id {
			continue
		}
		name := ""
		if bidder, ok := s.bidders[b.BidderID]; ok {
			name = bidder.Username
		}
		entries = append(entries, auction.BidEntry{Bid: b, BidderName: name})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Amount > entries[j].Amount
	})

	return l.Clone(), entries, nil
}

func (s *MemoryStore) Lots(_ context.Context) ([]*auction.Lot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*auction.Lot, 0, len(s.lots))
	for _, l := range s.lots {
		out = append(out, l.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AuctionIndex < out[j].AuctionIndex })
	return out, nil
}

func (s *MemoryStore) Bidder(_ context.Context, id int64) (*auction.Bidder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bidders[id]
	if !ok {
		return nil, fmt.Errorf("bidder %d: %w", id, auction.ErrNotFound)
	}
	out := *b
	return &out, nil
}

func (s *MemoryStore) QueuePendingLots(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queued := 0
	for _, l := range s.lots {
		if l.Status == auction.StatusPending && !l.IsActive {
			l.IsActive = true
			queued++
		}
	}
	return queued, nil
}

func (s *MemoryStore) OpenLot(_ context.Context, id int64, timerEnd time.Time, actorID int64) (*auction.Lot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lots[id]
	if !ok {
		return nil, fmt.Errorf("lot %d: %w", id, auction.ErrNotFound)
	}
	if l.Status == auction.StatusSold {
		return nil, fmt.Errorf("lot %d is sold: %w", id, auction.ErrLotClosed)
	}

	for _, other := range s.lots {
		if other.ID != id && other.Status == auction.StatusActive {
			other.Status = auction.StatusPending
			other.TimerEnd = nil
		}
	}

	end := timerEnd
	l.Status = auction.StatusActive
	l.IsActive = true
	l.TimerEnd = &end

	s.appendAudit(auction.ActionLotOpened, actorID, map[string]any{
		"lotId":    id,
		"timerEnd": timerEnd,
	})
	return l.Clone(), nil
}

func (s *MemoryStore) CommitBid(_ context.Context, c auction.BidCommit) (*auction.BidResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lots[c.LotID]
	if !ok {
		return nil, fmt.Errorf("lot %d: %w", c.LotID, auction.ErrNotFound)
	}
	if l.Status != auction.StatusActive || l.TimerEnd == nil || !l.TimerEnd.After(c.At) {
		return nil, fmt.Errorf("lot %d: %w", c.LotID, auction.ErrLotClosed)
	}
	if l.CurrentBid != c.ExpectedBid {
		return nil, fmt.Errorf("lot %d at %d, expected %d: %w", c.LotID, l.CurrentBid, c.ExpectedBid, auction.ErrBidConflict)
	}

	b, ok := s.bidders[c.BidderID]
	if !ok {
		return nil, fmt.Errorf("bidder %d: %w", c.BidderID, auction.ErrNotFound)
	}
	if b.WalletBalance < c.Amount {
		return nil, fmt.Errorf("bidder %d has %d: %w", c.BidderID, b.WalletBalance, auction.ErrInsufficientFunds)
	}

	l.CurrentBid = c.Amount
	l.WinnerID = c.BidderID
	l.BidCount++
	b.WalletBalance -= c.Amount

	s.nextBidID++
	bid := auction.Bid{
		ID:        s.nextBidID,
		LotID:     c.LotID,
		BidderID:  c.BidderID,
		Amount:    c.Amount,
		CreatedAt: c.At,
	}
	s.bids = append(s.bids, bid)

	s.appendAudit(auction.ActionPlaceBid, c.BidderID, map[string]any{
		"lotId":  c.LotID,
		"bidId":  bid.ID,
		"amount": c.Amount,
	})

	return &auction.BidResult{
		Bid:           bid,
		BidderName:    b.Username,
		WalletBalance: b.WalletBalance,
		Lot:           l.Clone(),
	}, nil
}

func (s *MemoryStore) MarkSold(_ context.Context, rec auction.SaleRecord) (*auction.Lot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lots[rec.LotID]
	if !ok {
		return nil, fmt.Errorf("lot %d: %w", rec.LotID, auction.ErrNotFound)
	}
	if l.Status == auction.StatusSold || l.Status == auction.StatusUnsold {
		return nil, fmt.Errorf("lot %d is %s: %w", rec.LotID, l.Status, auction.ErrLotClosed)
	}
	if l.BidCount == 0 {
		return nil, fmt.Errorf("lot %d: %w", rec.LotID, auction.ErrNoBids)
	}
	if l.WinnerID != rec.WinnerID || l.CurrentBid != rec.Amount {
		return nil, fmt.Errorf("lot %d led by %d at %d: %w", rec.LotID, l.WinnerID, l.CurrentBid, auction.ErrBidConflict)
	}

	l.Status = auction.StatusSold
	l.IsActive = false
	l.TimerEnd = nil

	s.appendAudit(auction.ActionItemSold, rec.AdminID, map[string]any{
		"lotId":    rec.LotID,
		"winnerId": rec.WinnerID,
		"amount":   rec.Amount,
	})
	return l.Clone(), nil
}

func (s *MemoryStore) ReverseLot(_ context.Context, lotID, actorID int64) (*auction.Reversal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lots[lotID]
	if !ok {
		return nil, fmt.Errorf("lot %d: %w", lotID, auction.ErrNotFound)
	}
	switch l.Status {
	case auction.StatusUnsold:
		return &auction.Reversal{Lot: l.Clone(), AlreadyUnsold: true}, nil
	case auction.StatusSold:
		return nil, fmt.Errorf("lot %d is sold: %w", lotID, auction.ErrLotClosed)
	}

	var refunds []auction.Refund
	kept := s.bids[:0]
	for _, b := range s.bids {
		if b.LotID != lotID {
			kept = append(kept, b)
			continue
		}
		if bidder, ok := s.bidders[b.BidderID]; ok {
			bidder.WalletBalance += b.Amount
		}
		refunds = append(refunds, auction.Refund{BidderID: b.BidderID, Amount: b.Amount})
	}
	s.bids = kept

	resetLot(l)
	l.Status = auction.StatusUnsold

	s.appendAudit(auction.ActionItemUnsold, actorID, map[string]any{
		"lotId":   lotID,
		"refunds": refunds,
	})
	return &auction.Reversal{Lot: l.Clone(), Refunds: refunds}, nil
}

func (s *MemoryStore) RequeueUnsold(_ context.Context, actorID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, l := range s.lots {
		if l.Status != auction.StatusUnsold {
			continue
		}
		resetLot(l)
		l.Status = auction.StatusPending
		l.IsActive = true
		count++
	}

	if count > 0 {
		s.appendAudit(auction.ActionUnsoldRequeued, actorID, map[string]any{"count": count})
	}
	return count, nil
}

// Bids returns the committed bids on a lot in commit order.
func (s *MemoryStore) Bids(lotID int64) []auction.Bid {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []auction.Bid
	for _, b := range s.bids {
		if b.LotID == lotID {
			out = append(out, b)
		}
	}
	return out
}

// Audit returns a copy of the audit log, oldest first.
func (s *MemoryStore) Audit() []auction.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]auction.AuditEntry, len(s.audit))
	copy(out, s.audit)
	return out
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

// appendAudit must be called with s.mu held.
func (s *MemoryStore) appendAudit(action string, actorID int64, details map[string]any) {
	s.nextAuditID++
	s.audit = append(s.audit, auction.AuditEntry{
		ID:        s.nextAuditID,
		Action:    action,
		ActorID:   actorID,
		Details:   details,
		CreatedAt: s.clock.Now(),
	})
}

func resetLot(l *auction.Lot) {
	l.IsActive = false
	l.CurrentBid = l.BasePrice
	l.WinnerID = 0
	l.TimerEnd = nil
	l.BidCount = 0
}
