package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aquamarinepk/aqm"
	"github.com/shopspring/decimal"

	"github.com/appetiteclub/tableside/pkg/orders"
	"github.com/appetiteclub/tableside/pkg/pricing"
)

var (
	ErrInvalidLine = errors.New("invalid cart line")
	ErrNoTable     = errors.New("table id is required")
)

// LinePatch carries the fields an update replaces. Nil fields are left as
// they are.
type LinePatch struct {
	Name         *string          `json:"name,omitempty"`
	UnitPrice    *decimal.Decimal `json:"price,omitempty"`
	Quantity     *int             `json:"qty,omitempty"`
	Notes        *string          `json:"notes,omitempty"`
	IsVegetarian *bool            `json:"veg,omitempty"`
}

// Snapshot is a read-only view of a cart.
type Snapshot struct {
	TableID   string          `json:"tableId"`
	Lines     []orders.Line   `json:"lines"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Tax       decimal.Decimal `json:"tax"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"itemCount"`
}

func (s Snapshot) Empty() bool {
	return len(s.Lines) == 0
}

// Cart is the line collection of one table. Every mutation is persisted
// before it becomes visible; a failed save leaves the cart unchanged.
type Cart struct {
	mu        sync.Mutex
	tableID   string
	lines     []orders.Line
	persister Persister
	pricing   pricing.Engine
	logger    aqm.Logger
}

func (c *Cart) TableID() string {
	return c.tableID
}

// Add merges line into the cart. A line with the same item and notes gets
// its quantity increased by qty; qty <= 0 counts as 1.
func (c *Cart) Add(ctx context.Context, line orders.Line, qty int) error {
	if qty <= 0 {
		qty = 1
	}

	line.ItemKey = strings.TrimSpace(line.ItemKey)
	line.Notes = strings.TrimSpace(line.Notes)
	if line.ItemKey == "" {
		return fmt.Errorf("%w: item key is required", ErrInvalidLine)
	}
	if line.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidLine)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next := copyLines(c.lines)
	if i := indexOf(next, line.Key()); i >= 0 {
		next[i].Quantity += qty
	} else {
		line.Quantity = qty
		next = append(next, line)
	}

	return c.commit(ctx, next)
}

// Update replaces the patched fields of the line identified by itemKey and
// notes. A resulting quantity <= 0 removes the line. Changing notes moves
// the line to a new key and merges it with a line already there. Missing
// lines and invalid values are ignored.
func (c *Cart) Update(ctx context.Context, itemKey, notes string, patch LinePatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := indexOf(c.lines, orders.NewLineKey(itemKey, notes))
	if i < 0 {
		return nil
	}

	next := copyLines(c.lines)
	line := next[i]

	if patch.Name != nil {
		line.Name = *patch.Name
	}
	if patch.UnitPrice != nil && !patch.UnitPrice.IsNegative() {
		line.UnitPrice = *patch.UnitPrice
	}
	if patch.IsVegetarian != nil {
		line.IsVegetarian = *patch.IsVegetarian
	}
	if patch.Quantity != nil {
		line.Quantity = *patch.Quantity
	}
	if patch.Notes != nil {
		line.Notes = strings.TrimSpace(*patch.Notes)
	}

	if line.Quantity <= 0 {
		next = append(next[:i], next[i+1:]...)
		return c.commit(ctx, next)
	}

	if j := indexOf(next, line.Key()); j >= 0 && j != i {
		next[j].Quantity += line.Quantity
		next = append(next[:i], next[i+1:]...)
		return c.commit(ctx, next)
	}

	next[i] = line
	return c.commit(ctx, next)
}

// Remove deletes the matching line, if any.
func (c *Cart) Remove(ctx context.Context, itemKey, notes string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := indexOf(c.lines, orders.NewLineKey(itemKey, notes))
	if i < 0 {
		return nil
	}

	next := copyLines(c.lines)
	next = append(next[:i], next[i+1:]...)
	return c.commit(ctx, next)
}

// Clear empties the cart and erases its persisted representation.
func (c *Cart) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.persister.Delete(ctx, c.tableID); err != nil {
		return fmt.Errorf("cannot clear cart: %w", err)
	}

	c.lines = nil
	c.logger.Debug("cart cleared")
	return nil
}

// Lines returns a copy of the current lines in insertion order.
func (c *Cart) Lines() []orders.Line {
	c.mu.Lock()
	defer c.mu.Unlock()

	return copyLines(c.lines)
}

func (c *Cart) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	lines := copyLines(c.lines)
	totals := c.pricing.ComputeTotals(lines)
	if lines == nil {
		lines = []orders.Line{}
	}

	return Snapshot{
		TableID:   c.tableID,
		Lines:     lines,
		Subtotal:  totals.Subtotal,
		Tax:       totals.Tax,
		Total:     totals.Total,
		ItemCount: pricing.ItemCount(lines),
	}
}

func (c *Cart) commit(ctx context.Context, next []orders.Line) error {
	if err := c.persister.Save(ctx, c.tableID, next); err != nil {
		c.logger.Error("cannot persist cart", "error", err)
		return fmt.Errorf("cannot persist cart: %w", err)
	}

	c.lines = next
	return nil
}

func indexOf(lines []orders.Line, key orders.LineKey) int {
	for i, l := range lines {
		if l.Key() == key {
			return i
		}
	}
	return -1
}

// normalize repairs a stored collection: invalid lines are dropped and
// lines sharing a key are merged.
func normalize(lines []orders.Line) []orders.Line {
	var out []orders.Line
	for _, l := range lines {
		l.ItemKey = strings.TrimSpace(l.ItemKey)
		l.Notes = strings.TrimSpace(l.Notes)
		if l.ItemKey == "" || l.Quantity <= 0 || l.UnitPrice.IsNegative() {
			continue
		}
		if i := indexOf(out, l.Key()); i >= 0 {
			out[i].Quantity += l.Quantity
			continue
		}
		out = append(out, l)
	}
	return out
}
