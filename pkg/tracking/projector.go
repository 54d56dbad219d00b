package tracking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"

	"github.com/appetiteclub/tableside/pkg/event"
	"github.com/appetiteclub/tableside/pkg/orders"
	"github.com/appetiteclub/tableside/pkg/realtime"
)

const reconcileTimeout = 10 * time.Second

var ErrNotLoaded = errors.New("order projection not loaded")

// Fetcher reads the order-of-record.
type Fetcher interface {
	GetOrder(ctx context.Context, id string) (*orders.Order, error)
}

// Source is the part of a realtime channel a projection listens to.
type Source interface {
	On(event string, fn realtime.HandlerFunc) realtime.HandlerID
	Off(event string, ids ...realtime.HandlerID)
	OnStateChange(fn func(realtime.State)) (cancel func())
}

// Projector folds a fetched snapshot and live events into one order.
type Projector struct {
	orderID string
	fetcher Fetcher
	logger  aqm.Logger
	now     func() time.Time

	mu      sync.Mutex
	order   *orders.Order
	loadErr error
	changes notifier
}

func NewProjector(orderID string, fetcher Fetcher, logger aqm.Logger) *Projector {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}

	return &Projector{
		orderID: strings.TrimSpace(orderID),
		fetcher: fetcher,
		logger:  logger.With("order_id", orderID),
		now:     time.Now,
	}
}

// Load fetches the order and makes it the current projection. On failure
// the projection becomes unavailable; Load does not retry.
func (p *Projector) Load(ctx context.Context) error {
	o, err := p.fetch(ctx)

	p.mu.Lock()
	if err != nil {
		p.order = nil
		p.loadErr = err
	} else {
		p.order = o
		p.loadErr = nil
	}
	p.mu.Unlock()

	p.changes.notify()

	if err != nil {
		p.logger.Info("order unavailable", "error", err)
		return err
	}
	return nil
}

// Reconcile re-fetches a loaded projection to recover events missed while
// disconnected. On failure the last known projection is kept, and a snapshot
// older than the projection is ignored.
func (p *Projector) Reconcile(ctx context.Context) error {
	p.mu.Lock()
	loaded := p.order != nil
	p.mu.Unlock()

	if !loaded {
		return ErrNotLoaded
	}

	o, err := p.fetch(ctx)
	if err != nil {
		p.logger.Info("reconcile failed, keeping last projection", "error", err)
		return err
	}

	p.mu.Lock()
	if p.order != nil && staleSnapshot(o, p.order) {
		current := p.order.Status
		p.mu.Unlock()
		p.logger.Debug("ignoring stale snapshot", "snapshot_status", o.Status, "status", current)
		return nil
	}
	p.order = o
	p.mu.Unlock()

	p.changes.notify()
	p.logger.Debug("projection reconciled", "status", o.Status)
	return nil
}

// Apply folds an order event onto the projection. It reports whether the
// event targeted this order. Malformed payloads are dropped.
func (p *Projector) Apply(name string, payload []byte) bool {
	switch name {
	case event.EventOrderCreated, event.EventOrderUpdated:
	default:
		return false
	}

	patch, err := orders.DecodePatch(payload)
	if err != nil {
		p.logger.Debug("dropping malformed order event", "event", name, "error", err)
		return false
	}

	p.mu.Lock()
	if p.order == nil || !patch.Matches(p.order) {
		p.mu.Unlock()
		return false
	}
	p.order.Apply(patch)
	p.mu.Unlock()

	p.changes.notify()
	return true
}

// Bind attaches the projector to src: order events are folded and every
// (re)connection triggers a reconcile. The returned func detaches it.
func (p *Projector) Bind(src Source) func() {
	handler := func(name string) realtime.HandlerFunc {
		return func(ctx context.Context, payload []byte) error {
			p.Apply(name, payload)
			return nil
		}
	}

	created := src.On(event.EventOrderCreated, handler(event.EventOrderCreated))
	updated := src.On(event.EventOrderUpdated, handler(event.EventOrderUpdated))

	cancel := src.OnStateChange(func(s realtime.State) {
		if s != realtime.StateConnected {
			return
		}
		ctx, done := context.WithTimeout(context.Background(), reconcileTimeout)
		defer done()
		_ = p.Reconcile(ctx)
	})

	return func() {
		cancel()
		src.Off(event.EventOrderCreated, created)
		src.Off(event.EventOrderUpdated, updated)
	}
}

// Watch reconciles every interval until ctx ends, so push and poll act as
// independent inputs.
func (p *Projector) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = p.Reconcile(ctx)
		}
	}
}

// Current returns a copy of the projected order, nil when unavailable.
func (p *Projector) Current() *orders.Order {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.order.Clone()
}

// Err returns the error of the last Load, if it failed.
func (p *Projector) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.loadErr
}

// View derives the presentation state at the current time.
func (p *Projector) View() View {
	return Derive(p.Current(), p.now())
}

// Changes returns a channel signalled after every projection change.
func (p *Projector) Changes() (<-chan struct{}, func()) {
	return p.changes.watch()
}

// staleSnapshot reports whether a fetched order predates what is already
// known. Orders without a timestamp are never considered stale.
func staleSnapshot(fetched, known *orders.Order) bool {
	if fetched.UpdatedAt.IsZero() || known.UpdatedAt.IsZero() {
		return false
	}
	return fetched.UpdatedAt.Before(known.UpdatedAt)
}

func (p *Projector) fetch(ctx context.Context) (*orders.Order, error) {
	if p.fetcher == nil {
		return nil, errors.New("no order fetcher configured")
	}

	o, err := p.fetcher.GetOrder(ctx, p.orderID)
	if err != nil {
		return nil, fmt.Errorf("cannot fetch order %s: %w", p.orderID, err)
	}
	if o == nil {
		return nil, fmt.Errorf("order %s not found", p.orderID)
	}
	return o, nil
}
