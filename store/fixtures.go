package store

import (
	"context"
	"fmt"
	"os"

	"github.com/flashbots/auctioneer/auction"
	"gopkg.in/yaml.v3"
)

// Fixtures is the static catalogue loaded into a fresh store.
//
//	bidders:
//	  - {id: 1, username: admin, role: admin, wallet: 0}
//	  - {id: 2, username: alice, role: bidder, wallet: 10000}
//	lots:
//	  - {name: Lamp, base_price: 50, auction_index: 1, category: product}
type Fixtures struct {
	Bidders []BidderFixture `yaml:"bidders"`
	Lots    []LotFixture    `yaml:"lots"`
}

// BidderFixture describes a seeded bidder.
type BidderFixture struct {
	ID       int64  `yaml:"id"`
	Username string `yaml:"username"`
	Role     string `yaml:"role"`
	Wallet   int64  `yaml:"wallet"`
}

// LotFixture describes a seeded lot.
type LotFixture struct {
	ID           int64  `yaml:"id"`
	Name         string `yaml:"name"`
	Image        string `yaml:"image"`
	BasePrice    int64  `yaml:"base_price"`
	AuctionIndex int    `yaml:"auction_index"`
	Category     string `yaml:"category"`
}

// LoadFixtures reads a fixtures file.
func LoadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixtures: %w", err)
	}
	return ParseFixtures(data)
}

// ParseFixtures decodes fixtures from YAML.
func ParseFixtures(data []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing fixtures: %w", err)
	}
	return &f, nil
}

// Apply seeds every bidder then every lot.
func (f *Fixtures) Apply(ctx context.Context, s Seeder) error {
	for _, b := range f.Bidders {
		role := auction.Role(b.Role)
		if role == "" {
			role = auction.RoleBidder
		}
		_, err := s.AddBidder(ctx, &auction.Bidder{
			ID:            b.ID,
			Username:      b.Username,
			Role:          role,
			WalletBalance: b.Wallet,
		})
		if err != nil {
			return err
		}
	}

	for _, l := range f.Lots {
		_, err := s.AddLot(ctx, &auction.Lot{
			ID:           l.ID,
			Name:         l.Name,
			Image:        l.Image,
			BasePrice:    l.BasePrice,
			AuctionIndex: l.AuctionIndex,
			Category:     auction.Category(l.Category),
		})
		if err != nil {
			return err
		}
	}
	return nil
}
