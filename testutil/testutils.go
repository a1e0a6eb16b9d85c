package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flashbots/auctioneer/auction"
	"github.com/flashbots/auctioneer/store"
	"github.com/jonboulle/clockwork"
)

// Well-known identities seeded by NewTestLedger.
var (
	Admin = auction.Identity{ID: 1, Role: auction.RoleAdmin}
	Alice = auction.Identity{ID: 2, Role: auction.RoleBidder}
	Bob   = auction.Identity{ID: 3, Role: auction.RoleBidder}
	Carol = auction.Identity{ID: 4, Role: auction.RoleBidder}
)

// DefaultWallet is the starting balance of Alice and Bob.
const DefaultWallet int64 = 10000

// LotOption customises a lot built by NewTestLot.
type LotOption func(*auction.Lot)

// WithID sets the lot id.
func WithID(id int64) LotOption {
	return func(l *auction.Lot) { l.ID = id }
}

// WithBasePrice sets the starting price.
func WithBasePrice(price int64) LotOption {
	return func(l *auction.Lot) { l.BasePrice = price }
}

// WithIndex sets the auction index.
func WithIndex(idx int) LotOption {
	return func(l *auction.Lot) { l.AuctionIndex = idx }
}

// WithCategory sets the category.
func WithCategory(c auction.Category) LotOption {
	return func(l *auction.Lot) { l.Category = c }
}

// WithName sets the lot name.
func WithName(name string) LotOption {
	return func(l *auction.Lot) { l.Name = name }
}

// WithStatus sets the lot status.
func WithStatus(status auction.LotStatus) LotOption {
	return func(l *auction.Lot) { l.Status = status }
}

// NewTestLot creates a pending product lot priced at 50.
func NewTestLot(options ...LotOption) *auction.Lot {
	l := &auction.Lot{
		BasePrice: 50,
		Category:  auction.CategoryProduct,
		Status:    auction.StatusPending,
	}
	for _, opt := range options {
		opt(l)
	}
	if l.Name == "" {
		l.Name = fmt.Sprintf("Lot %d", l.AuctionIndex)
	}
	return l
}

// NewTestLedger creates a memory store holding the well-known bidders and
// the given lots. Carol's wallet only covers one step above 50.
func NewTestLedger(clock clockwork.Clock, lots ...*auction.Lot) (*store.MemoryStore, error) {
	s := store.NewMemoryStore(clock)
	ctx := context.Background()

	bidders := []*auction.Bidder{
		{ID: Admin.ID, Username: "admin", Role: auction.RoleAdmin},
		{ID: Alice.ID, Username: "alice", Role: auction.RoleBidder, WalletBalance: DefaultWallet},
		{ID: Bob.ID, Username: "bob", Role: auction.RoleBidder, WalletBalance: DefaultWallet},
		{ID: Carol.ID, Username: "carol", Role: auction.RoleBidder, WalletBalance: 60},
	}
	for _, b := range bidders {
		if _, err := s.AddBidder(ctx, b); err != nil {
			return nil, err
		}
	}
	for _, l := range lots {
		if _, err := s.AddLot(ctx, l); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// RecordingPublisher keeps every published event for inspection.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []auction.Event
	notify chan struct{}
}

// NewRecordingPublisher creates an empty recorder.
func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{notify: make(chan struct{}, 1)}
}

// Publish implements auction.Publisher.
func (p *RecordingPublisher) Publish(ev auction.Event) {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Events returns a copy of everything published so far.
func (p *RecordingPublisher) Events() []auction.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]auction.Event, len(p.events))
	copy(out, p.events)
	return out
}

// OfType returns the published events of type t in order.
func (p *RecordingPublisher) OfType(t auction.EventType) []auction.Event {
	var out []auction.Event
	for _, ev := range p.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// Count returns how many events of type t were published.
func (p *RecordingPublisher) Count(t auction.EventType) int {
	return len(p.OfType(t))
}

// Reset forgets every recorded event.
func (p *RecordingPublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = nil
}

// WaitFor blocks until at least n events of type t were published or the
// timeout elapses, and reports whether the count was reached.
func (p *RecordingPublisher) WaitFor(t auction.EventType, n int, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		if p.Count(t) >= n {
			return true
		}
		select {
		case <-p.notify:
		case <-deadline.C:
			return p.Count(t) >= n
		}
	}
}
