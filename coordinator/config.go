package coordinator

import (
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// DefaultLotDuration is how long a lot stays open once started.
	DefaultLotDuration = 35 * time.Second

	// DefaultTickInterval is the snapshot broadcast cadence while a lot runs.
	DefaultTickInterval = 500 * time.Millisecond
)

// Config contains the coordinator's timing and dependencies.
type Config struct {
	// LotDuration is the bidding window of every lot.
	LotDuration time.Duration

	// TickInterval is the countdown tick period.
	TickInterval time.Duration

	// Clock is the time source. Tests inject a fake clock.
	Clock clockwork.Clock

	// Log is the structured logger for coordinator operations.
	Log *slog.Logger
}

// DefaultConfig returns the production timings on the wall clock.
func DefaultConfig() Config {
	return Config{
		LotDuration:  DefaultLotDuration,
		TickInterval: DefaultTickInterval,
		Clock:        clockwork.NewRealClock(),
		Log:          slog.Default(),
	}
}

func (c *Config) validate() error {
	if c.LotDuration <= 0 {
		return errors.New("lot duration must be positive")
	}
	if c.TickInterval <= 0 {
		return errors.New("tick interval must be positive")
	}
	if c.TickInterval > c.LotDuration {
		return errors.New("tick interval must not exceed the lot duration")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Log == nil {
		c.Log = slog.Default()
	}
	return nil
}
