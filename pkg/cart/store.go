package cart

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aquamarinepk/aqm"

	"github.com/appetiteclub/tableside/pkg/event"
	"github.com/appetiteclub/tableside/pkg/pricing"
)

// Store maps table ids to their carts so sessions in one process never
// share state.
type Store struct {
	mu        sync.Mutex
	carts     map[string]*Cart
	persister Persister
	pricing   pricing.Engine
	logger    aqm.Logger
}

func NewStore(persister Persister, engine pricing.Engine, logger aqm.Logger) *Store {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	if persister == nil {
		persister = NewMemoryPersister()
	}

	return &Store{
		carts:     make(map[string]*Cart),
		persister: persister,
		pricing:   engine,
		logger:    logger,
	}
}

// Cart returns the cart of tableID, restoring it from the persister the
// first time it is requested.
func (s *Store) Cart(ctx context.Context, tableID string) (*Cart, error) {
	tableID = strings.TrimSpace(tableID)
	if tableID == "" {
		return nil, ErrNoTable
	}
	if event.IsAllTables(tableID) {
		return nil, event.ErrReservedTable
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.carts[tableID]; ok {
		return c, nil
	}

	lines, err := s.persister.Load(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("cannot load cart for table %s: %w", tableID, err)
	}

	c := &Cart{
		tableID:   tableID,
		lines:     normalize(lines),
		persister: s.persister,
		pricing:   s.pricing,
		logger:    s.logger.With("table_id", tableID),
	}
	s.carts[tableID] = c

	s.logger.Debug("cart restored", "table_id", tableID, "lines", len(c.lines))
	return c, nil
}

// Evict drops the in-memory cart of tableID. The persisted copy stays and
// is restored on the next Cart call.
func (s *Store) Evict(tableID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts, strings.TrimSpace(tableID))
}
