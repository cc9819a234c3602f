package sync

import (
	"context"
	"time"
)

const (
	defaultPublishInterval = 500 * time.Millisecond
	defaultMaxSubscription = 3 * time.Hour

	// subscriberBuffer bounds each subscriber channel; a slow consumer
	// loses intermediate snapshots instead of blocking the publisher
	subscriberBuffer = 4
)

// Publisher streams periodic snapshots of the sync state to subscribers.
// Each subscription is independent and one-shot: the channel closes when
// the run goes idle, the subscription lifetime elapses, or the caller's
// context is cancelled, whichever comes first.
type Publisher struct {
	state *State

	Interval        time.Duration
	MaxSubscription time.Duration
}

// NewPublisher creates a publisher over the given state
func NewPublisher(state *State) *Publisher {
	return &Publisher{
		state:           state,
		Interval:        defaultPublishInterval,
		MaxSubscription: defaultMaxSubscription,
	}
}

// Snapshot returns the current state synchronously
func (p *Publisher) Snapshot() Snapshot {
	return p.state.Snapshot()
}

// Subscribe returns a finite sequence of snapshots emitted at the publish
// cadence. The publisher only reads the shared state; subscribers never
// mutate it.
func (p *Publisher) Subscribe(ctx context.Context) <-chan Snapshot {
	ch := make(chan Snapshot, subscriberBuffer)

	go func() {
		defer close(ch)

		ticker := time.NewTicker(p.Interval)
		defer ticker.Stop()

		deadline := time.NewTimer(p.MaxSubscription)
		defer deadline.Stop()

		for {
			snap := p.state.Snapshot()
			select {
			case ch <- snap:
			default:
				// subscriber lagging, drop this snapshot
			}

			// Idle: not running and at least one batch has completed
			if !snap.IsRunning && len(snap.BatchResults) > 0 {
				return
			}

			select {
			case <-ticker.C:
			case <-deadline.C:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}
