package alertfeed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/breezecue/internal/alert"
)

// FetchFailedMessage is shown to users in place of the underlying feed error.
const FetchFailedMessage = "Failed to fetch weather alerts. Please try again later."

// ErrUnknownRegion is returned when a refresh names a region that does not exist.
var ErrUnknownRegion = errors.New("unknown region")

// Snapshot is a point-in-time copy of the held alert list.
type Snapshot struct {
	Region   string        `json:"region"`
	Alerts   []alert.Alert `json:"alerts"`
	Error    string        `json:"error,omitempty"`
	Loading  bool          `json:"loading"`
	LoadedAt time.Time     `json:"loadedAt"`
	Seq      uint64        `json:"seq"`
}

// Hooks are optional callbacks fired by the holder. Nil fields are skipped.
type Hooks struct {
	OnFetch func(region string, ok bool, count int, duration float64)
}

// Holder owns the current alert list. Readers get copies; writers go through
// Refresh, where the last issued request wins.
type Holder struct {
	src    Source
	logger log.Logger
	clock  clockwork.Clock
	hooks  Hooks

	issued atomic.Uint64

	// deliverMu serializes subscriber fan-out so listeners see applied
	// snapshots in sequence order.
	deliverMu sync.Mutex

	mu      sync.RWMutex
	applied uint64
	snap    Snapshot
	subs    map[int]func(Snapshot)
	nextSub int
}

// HolderOption configures a Holder.
type HolderOption func(*Holder)

// WithClock sets the clock used for load timestamps and polling.
func WithClock(c clockwork.Clock) HolderOption {
	return func(h *Holder) { h.clock = c }
}

// WithHooks sets the holder hooks.
func WithHooks(hooks Hooks) HolderOption {
	return func(h *Holder) { h.hooks = hooks }
}

// NewHolder creates a Holder that starts out empty for the ALL region.
func NewHolder(src Source, logger log.Logger, opts ...HolderOption) *Holder {
	if logger == nil {
		logger = log.Nop()
	}
	h := &Holder{
		src:    src,
		logger: logger,
		clock:  clockwork.NewRealClock(),
		snap:   Snapshot{Region: alert.RegionAll, Alerts: []alert.Alert{}},
		subs:   make(map[int]func(Snapshot)),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Snapshot returns a copy of the current state.
func (h *Holder) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snap.clone()
}

// Alerts returns a copy of the current alert list.
func (h *Holder) Alerts() []alert.Alert {
	return h.Snapshot().Alerts
}

// Find looks up an alert in the current list.
func (h *Holder) Find(id string) (alert.Alert, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return alert.Find(h.snap.Alerts, id)
}

// Subscribe registers fn to be called after every applied refresh, in
// refresh order. fn must not call Refresh. The returned func removes the
// subscription.
func (h *Holder) Subscribe(fn func(Snapshot)) func() {
	h.mu.Lock()
	id := h.nextSub
	h.nextSub++
	h.subs[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Refresh fetches alerts for regionKey and replaces the held list. An empty
// regionKey refreshes the current region. The returned snapshot is the held
// state after the call; if a newer refresh was applied first, this result is
// discarded and the newer state is returned. A fetch error is returned along
// with the (cleared) snapshot.
func (h *Holder) Refresh(ctx context.Context, regionKey string) (Snapshot, error) {
	if regionKey == "" {
		h.mu.RLock()
		regionKey = h.snap.Region
		h.mu.RUnlock()
	}
	region, ok := alert.LookupRegion(regionKey)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownRegion, regionKey)
	}

	seq := h.issued.Add(1)
	h.markLoading(region.Key)

	start := h.clock.Now()
	alerts, err := h.src.Active(ctx, region)
	dur := h.clock.Since(start).Seconds()

	if h.hooks.OnFetch != nil {
		h.hooks.OnFetch(region.Key, err == nil, len(alerts), dur)
	}

	L := h.logger.With("region", region.Key, "seq", seq)
	if err != nil {
		L.Error(ctx, err, "alert feed fetch failed")
	}

	h.mu.Lock()
	if seq < h.applied {
		snap := h.snap.clone()
		h.mu.Unlock()
		L.Info(ctx, "discarding stale alert refresh", "applied", snap.Seq)
		return snap, err
	}

	next := Snapshot{
		Region:   region.Key,
		LoadedAt: h.clock.Now(),
		Seq:      seq,
		Loading:  seq < h.issued.Load(),
	}
	if err != nil {
		next.Alerts = []alert.Alert{}
		next.Error = FetchFailedMessage
	} else {
		next.Alerts = append([]alert.Alert{}, alerts...)
	}
	h.applied = seq
	h.snap = next
	out := next.clone()
	h.mu.Unlock()

	if err == nil {
		L.Info(ctx, "alerts refreshed", "count", len(alerts), "duration", dur)
	}
	h.deliver(seq)
	return out, err
}

// deliver fans the held snapshot out to subscribers if seq is still the
// applied refresh. A newer refresh delivers its own snapshot.
func (h *Holder) deliver(seq uint64) {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	h.mu.RLock()
	if h.applied != seq {
		h.mu.RUnlock()
		return
	}
	snap := h.snap.clone()
	subs := h.subscribers()
	h.mu.RUnlock()

	for _, fn := range subs {
		fn(snap.clone())
	}
}

// Poll refreshes the current region every interval until ctx is cancelled.
// Failed polls are logged and not retried early.
func (h *Holder) Poll(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := h.clock.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.Chan():
			_, _ = h.Refresh(ctx, "")
		}
	}
}

func (h *Holder) markLoading(region string) {
	h.mu.Lock()
	h.snap.Loading = true
	h.snap.Region = region
	h.mu.Unlock()
}

// subscribers returns the current listeners. Caller holds h.mu.
func (h *Holder) subscribers() []func(Snapshot) {
	out := make([]func(Snapshot), 0, len(h.subs))
	for _, fn := range h.subs {
		out = append(out, fn)
	}
	return out
}

func (s Snapshot) clone() Snapshot {
	cp := s
	cp.Alerts = append([]alert.Alert{}, s.Alerts...)
	return cp
}
