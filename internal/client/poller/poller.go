// Package poller asks the server what changed since the durable checkpoint
// on a fixed interval. The checkpoint advances only when the user
// acknowledges what they were shown, never because a poll happened, so a
// dismissed-without-viewing banner cannot silently swallow an unseen-content
// indicator.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vecinapp/feed-backend-go/internal/client/state"
	"github.com/vecinapp/feed-backend-go/internal/domain/feed"
)

// PollState is the small mutable state shared between the poll loop and the
// UI: explicit, passed in and out, so the merge-on-concurrent-update rules
// stay testable in isolation.
type PollState struct {
	LastCheck time.Time
	Announced bool
}

// Gate decides whether a tick should poll at all. Polling is a scheduling
// policy: suspended while backgrounded or unauthenticated.
type Gate interface {
	Foreground() bool
	Authenticated() bool
}

// Source is the delta endpoint.
type Source interface {
	NewContent(ctx context.Context, since time.Time) ([]feed.ContentDelta, error)
}

// Coordinator is the slice of the delivery coordinator the poller drives.
type Coordinator interface {
	Announce(ctx context.Context, deltas []feed.ContentDelta)
	NotifyOS(ctx context.Context, deltas []feed.ContentDelta)
}

// Poller runs the change-detection loop.
type Poller struct {
	source   Source
	gate     Gate
	coord    Coordinator
	store    *state.Store
	interval time.Duration
	timeout  time.Duration
	log      *slog.Logger

	mu      sync.Mutex
	ps      PollState
	pending []feed.ContentDelta
	gen     uint64

	wg sync.WaitGroup
}

// New creates a poller whose checkpoint is loaded from the durable store.
// interval zero means the default 30s.
func New(source Source, gate Gate, coord Coordinator, store *state.Store, interval time.Duration, log *slog.Logger) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{
		source:   source,
		gate:     gate,
		coord:    coord,
		store:    store,
		interval: interval,
		timeout:  interval / 2,
		log:      log,
		ps:       PollState{LastCheck: store.Checkpoint()},
	}
}

// State returns a copy of the current poll state.
func (p *Poller) State() PollState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ps
}

// Pending returns the merged deltas awaiting acknowledgment.
func (p *Poller) Pending() []feed.ContentDelta {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]feed.ContentDelta(nil), p.pending...)
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.wg.Wait()
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick launches one poll. The network call runs detached so a slow response
// cannot stall the ticker; a response arriving after a newer tick or an
// acknowledgment superseded it is discarded rather than applied backwards.
func (p *Poller) Tick(ctx context.Context) {
	if !p.gate.Foreground() || !p.gate.Authenticated() {
		return
	}

	p.mu.Lock()
	p.gen++
	gen := p.gen
	since := p.ps.LastCheck
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		tctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		deltas, err := p.source.NewContent(tctx, since)
		if err != nil {
			p.log.Debug("poll failed", "error", err)
			return
		}
		p.apply(ctx, gen, deltas)
	}()
}

// Wait blocks until in-flight ticks settle. Used in tests.
func (p *Poller) Wait() {
	p.wg.Wait()
}

func (p *Poller) apply(ctx context.Context, gen uint64, deltas []feed.ContentDelta) {
	p.mu.Lock()
	if gen != p.gen {
		// Superseded by a newer tick or an acknowledgment
		p.mu.Unlock()
		return
	}

	// Union with whatever is already pending (earlier ticks, push events):
	// concurrent sources merge, they never overwrite each other.
	p.pending = feed.MergeDeltas(p.pending, deltas)
	merged := append([]feed.ContentDelta(nil), p.pending...)
	announce := len(merged) > 0 && !p.ps.Announced
	if announce {
		p.ps.Announced = true
	}
	p.mu.Unlock()

	if len(merged) == 0 {
		return
	}

	// The summary toast and banner fire once per acknowledgment cycle; the
	// OS channel gets the full list every time and dedups by tag.
	if announce {
		p.coord.Announce(ctx, merged)
	}
	p.coord.NotifyOS(ctx, merged)
}

// MergePush folds deltas carried by an inbound push event into the pending
// set, so whichever of poll and push arrives first does not erase the other.
func (p *Poller) MergePush(deltas []feed.ContentDelta) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = feed.MergeDeltas(p.pending, deltas)
}

// Acknowledge advances the checkpoint to now, durably, and re-arms the
// announcement. Called when the user views the pending content (banner
// action or panel dismissal); no other path moves the checkpoint.
func (p *Poller) Acknowledge(now time.Time) error {
	p.mu.Lock()
	p.ps.LastCheck = now
	p.ps.Announced = false
	p.pending = nil
	p.gen++ // in-flight responses for the old checkpoint are now stale
	p.mu.Unlock()

	return p.store.SetCheckpoint(now)
}
