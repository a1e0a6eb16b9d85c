package common

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/flashbots/auctioneer/store"
	"github.com/jonboulle/clockwork"
)

// NewLogger builds the process logger from the log section.
func NewLogger(cfg LogConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("invalid log.level %q: %w", cfg.Level, err)
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	log := slog.New(handler)
	if cfg.Service != "" {
		log = log.With("service", cfg.Service)
	}
	return log, nil
}

// OpenStore opens the configured ledger and applies fixtures when the store
// holds no lots yet.
func OpenStore(ctx context.Context, cfg StoreConfig, clock clockwork.Clock, log *slog.Logger) (store.Store, error) {
	var s store.Store
	switch cfg.Driver {
	case DriverPostgres:
		pg, err := store.NewPostgresStore(&cfg.Postgres)
		if err != nil {
			return nil, err
		}
		s = pg
	case DriverMemory, "":
		s = store.NewMemoryStore(clock)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}

	if cfg.Fixtures == "" {
		return s, nil
	}

	lots, err := s.Lots(ctx)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("checking store contents: %w", err)
	}
	if len(lots) > 0 {
		log.Info("Store already seeded, skipping fixtures", "lots", len(lots))
		return s, nil
	}

	fixtures, err := store.LoadFixtures(cfg.Fixtures)
	if err != nil {
		s.Close()
		return nil, err
	}
	if err := fixtures.Apply(ctx, s); err != nil {
		s.Close()
		return nil, fmt.Errorf("applying fixtures: %w", err)
	}
	log.Info("Applied fixtures", "path", cfg.Fixtures, "bidders", len(fixtures.Bidders), "lots", len(fixtures.Lots))
	return s, nil
}
