package coordinator

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/atomic"
)

// countdown drives one lot's bidding window. It calls onTick every interval
// until the deadline, then calls onExpire once and exits. Both hooks run on
// the countdown goroutine and receive the epoch the countdown was started
// for, so the owner can discard ticks that belong to a replaced session.
type countdown struct {
	epoch    uint64
	clock    clockwork.Clock
	deadline time.Time
	interval time.Duration

	onTick   func(ctx context.Context, epoch uint64)
	onExpire func(ctx context.Context, epoch uint64)

	cancel  context.CancelFunc
	done    chan struct{}
	expired atomic.Bool
}

func startCountdown(clock clockwork.Clock, epoch uint64, deadline time.Time, interval time.Duration,
	onTick, onExpire func(ctx context.Context, epoch uint64)) *countdown {

	ctx, cancel := context.WithCancel(context.Background())
	cd := &countdown{
		epoch:    epoch,
		clock:    clock,
		deadline: deadline,
		interval: interval,
		onTick:   onTick,
		onExpire: onExpire,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go cd.run(ctx)
	return cd
}

func (cd *countdown) run(ctx context.Context) {
	defer close(cd.done)

	ticker := cd.clock.NewTicker(cd.interval)
	defer ticker.Stop()

	deadline := cd.clock.NewTimer(cd.deadline.Sub(cd.clock.Now()))
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.Chan():
			if ctx.Err() != nil {
				return
			}
			cd.expired.Store(true)
			cd.onExpire(ctx, cd.epoch)
			return
		case <-ticker.Chan():
			if ctx.Err() != nil {
				return
			}
			if !cd.clock.Now().Before(cd.deadline) {
				cd.expired.Store(true)
				cd.onExpire(ctx, cd.epoch)
				return
			}
			cd.onTick(ctx, cd.epoch)
		}
	}
}

// Stop cancels the countdown and waits for its goroutine to exit. It must
// not be called from a hook. Calling Stop more than once is safe.
func (cd *countdown) Stop() {
	cd.cancel()
	<-cd.done
}

// Expired reports whether the deadline was reached before Stop.
func (cd *countdown) Expired() bool {
	return cd.expired.Load()
}
