package tracking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"

	"github.com/appetiteclub/tableside/pkg/event"
	"github.com/appetiteclub/tableside/pkg/orders"
	"github.com/appetiteclub/tableside/pkg/realtime"
)

// Lister reads every live order from the order-of-record.
type Lister interface {
	ListOrders(ctx context.Context) ([]*orders.Order, error)
}

// Board is the admin projection over all orders of all tables.
type Board struct {
	lister Lister
	logger aqm.Logger
	now    func() time.Time

	mu      sync.Mutex
	orders  []*orders.Order
	changes notifier
}

func NewBoard(lister Lister, logger aqm.Logger) *Board {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}

	return &Board{
		lister: lister,
		logger: logger,
		now:    time.Now,
	}
}

// Load replaces the board with a fresh listing. An order the board already
// holds in a newer version than the listing keeps that version.
func (b *Board) Load(ctx context.Context) error {
	if b.lister == nil {
		return errors.New("no order lister configured")
	}

	list, err := b.lister.ListOrders(ctx)
	if err != nil {
		return fmt.Errorf("cannot list orders: %w", err)
	}

	copies := make([]*orders.Order, 0, len(list))
	for _, o := range list {
		if o != nil {
			copies = append(copies, o.Clone())
		}
	}

	b.mu.Lock()
	for i, o := range copies {
		if known := b.find(o); known != nil && staleSnapshot(o, known) {
			copies[i] = known
		}
	}
	b.orders = copies
	b.mu.Unlock()

	b.changes.notify()
	return nil
}

// Apply folds an event onto the matching order. Creation events for unknown
// orders add them; deletion events drop them.
func (b *Board) Apply(name string, payload []byte) bool {
	patch, err := orders.DecodePatch(payload)
	if err != nil {
		b.logger.Debug("dropping malformed order event", "event", name, "error", err)
		return false
	}
	if patch.Identifier() == "" {
		return false
	}

	b.mu.Lock()
	changed := b.apply(name, patch)
	b.mu.Unlock()

	if changed {
		b.changes.notify()
	}
	return changed
}

func (b *Board) apply(name string, patch orders.Patch) bool {
	i := b.indexOf(patch)

	switch name {
	case event.EventOrderDeleted:
		if i < 0 {
			return false
		}
		b.orders = append(b.orders[:i], b.orders[i+1:]...)
		return true

	case event.EventOrderCreated, event.EventOrderUpdated:
		if i >= 0 {
			b.orders[i].Apply(patch)
			return true
		}
		if name != event.EventOrderCreated {
			b.logger.Debug("update for unknown order", "order_id", patch.Identifier())
			return false
		}
		b.orders = append(b.orders, patch.ToOrder())
		return true
	}

	return false
}

func (b *Board) find(o *orders.Order) *orders.Order {
	for _, known := range b.orders {
		if (o.OrderID != "" && known.OrderID == o.OrderID) || (o.OrderID == "" && known.ID == o.ID) {
			return known
		}
	}
	return nil
}

func (b *Board) indexOf(patch orders.Patch) int {
	for i, o := range b.orders {
		if patch.Matches(o) {
			return i
		}
	}
	return -1
}

// Bind folds every order event from src and reloads on each connection.
func (b *Board) Bind(src Source) func() {
	names := []string{event.EventOrderCreated, event.EventOrderUpdated, event.EventOrderDeleted}
	ids := make([]realtime.HandlerID, len(names))

	for i, name := range names {
		name := name
		ids[i] = src.On(name, func(ctx context.Context, payload []byte) error {
			b.Apply(name, payload)
			return nil
		})
	}

	cancel := src.OnStateChange(func(s realtime.State) {
		if s != realtime.StateConnected {
			return
		}
		ctx, done := context.WithTimeout(context.Background(), reconcileTimeout)
		defer done()
		if err := b.Load(ctx); err != nil {
			b.logger.Info("board reload failed, keeping last state", "error", err)
		}
	})

	return func() {
		cancel()
		for i, name := range names {
			src.Off(name, ids[i])
		}
	}
}

// Watch reloads the board every interval until ctx ends, covering events
// the order service failed to publish.
func (b *Board) Watch(ctx context.Context, interval time.Duration) {
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
			if err := b.Load(ctx); err != nil && ctx.Err() == nil {
				b.logger.Info("board poll failed, keeping last state", "error", err)
			}
		}
	}
}

// Orders returns copies of the board's orders, newest first.
func (b *Board) Orders() []*orders.Order {
	b.mu.Lock()
	out := make([]*orders.Order, len(b.orders))
	for i, o := range b.orders {
		out[i] = o.Clone()
	}
	b.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Views derives the tracking view of every order.
func (b *Board) Views() []View {
	now := b.now()
	list := b.Orders()

	views := make([]View, len(list))
	for i, o := range list {
		views[i] = Derive(o, now)
	}
	return views
}

func (b *Board) Changes() (<-chan struct{}, func()) {
	return b.changes.watch()
}
