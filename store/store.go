// Package store provides the auction.Ledger adapters: a PostgreSQL store for
// deployments and an in-memory store for demos and tests.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/flashbots/auctioneer/auction"
)

// Store is a ledger that can be seeded and closed.
type Store interface {
	auction.Ledger
	Seeder
	Close() error
}

// Seeder loads static lots and bidders.
type Seeder interface {
	AddLot(ctx context.Context, lot *auction.Lot) (*auction.Lot, error)
	AddBidder(ctx context.Context, bidder *auction.Bidder) (*auction.Bidder, error)
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

func validateLot(l *auction.Lot) error {
	if l == nil {
		return errors.New("lot is nil")
	}
	if l.Name == "" {
		return errors.New("lot name is required")
	}
	if l.BasePrice < 0 {
		return fmt.Errorf("lot %q: negative base price", l.Name)
	}
	if !l.Category.Valid() {
		return fmt.Errorf("lot %q: invalid category %q", l.Name, l.Category)
	}
	if l.Status != "" && !l.Status.Valid() {
		return fmt.Errorf("lot %q: invalid status %q", l.Name, l.Status)
	}
	return nil
}

func validateBidder(b *auction.Bidder) error {
	if b == nil {
		return errors.New("bidder is nil")
	}
	if b.Username == "" {
		return errors.New("bidder username is required")
	}
	if !b.Role.Valid() {
		return fmt.Errorf("bidder %q: invalid role %q", b.Username, b.Role)
	}
	if b.WalletBalance < 0 {
		return fmt.Errorf("bidder %q: negative wallet balance", b.Username)
	}
	return nil
}

// normalizeLot returns a copy of a seed lot with defaults applied.
func normalizeLot(lot *auction.Lot) *auction.Lot {
	l := lot.Clone()
	if l.Status == "" {
		l.Status = auction.StatusPending
	}
	if l.CurrentBid == 0 {
		l.CurrentBid = l.BasePrice
	}
	return l
}
