package cart

import (
	"context"
	"sync"

	"github.com/appetiteclub/tableside/pkg/orders"
)

const storageKeyPrefix = "restaurant_cart_table_"

// StorageKey is the key a table's cart is persisted under.
func StorageKey(tableID string) string {
	return storageKeyPrefix + tableID
}

// Persister stores the full line collection of a table's cart.
type Persister interface {
	Load(ctx context.Context, tableID string) ([]orders.Line, error)
	Save(ctx context.Context, tableID string, lines []orders.Line) error
	Delete(ctx context.Context, tableID string) error
}

// MemoryPersister keeps carts in process memory.
type MemoryPersister struct {
	mu    sync.RWMutex
	carts map[string][]orders.Line
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{
		carts: make(map[string][]orders.Line),
	}
}

func (p *MemoryPersister) Load(ctx context.Context, tableID string) ([]orders.Line, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return copyLines(p.carts[StorageKey(tableID)]), nil
}

func (p *MemoryPersister) Save(ctx context.Context, tableID string, lines []orders.Line) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(lines) == 0 {
		delete(p.carts, StorageKey(tableID))
		return nil
	}
	p.carts[StorageKey(tableID)] = copyLines(lines)
	return nil
}

func (p *MemoryPersister) Delete(ctx context.Context, tableID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.carts, StorageKey(tableID))
	return nil
}

func copyLines(lines []orders.Line) []orders.Line {
	if len(lines) == 0 {
		return nil
	}
	out := make([]orders.Line, len(lines))
	copy(out, lines)
	return out
}
