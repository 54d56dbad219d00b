package order

import (
	"context"

	"github.com/google/uuid"

	"github.com/appetiteclub/tableside/pkg/orders"
)

// OrderRepo persists orders. Lookups return (nil, nil) when nothing matches.
type OrderRepo interface {
	Create(ctx context.Context, order *orders.Order) error
	Get(ctx context.Context, id uuid.UUID) (*orders.Order, error)
	GetByOrderID(ctx context.Context, orderID string) (*orders.Order, error)
	List(ctx context.Context) ([]*orders.Order, error)
	ListByTable(ctx context.Context, tableID string) ([]*orders.Order, error)
	Save(ctx context.Context, order *orders.Order) error
	Delete(ctx context.Context, id uuid.UUID) error
}
