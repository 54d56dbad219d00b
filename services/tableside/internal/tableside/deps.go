package tableside

import (
	"context"

	"github.com/appetiteclub/tableside/pkg/checkout"
	"github.com/appetiteclub/tableside/pkg/orders"
	"github.com/appetiteclub/tableside/pkg/tracking"
)

// OrderService is the part of the order-of-record API the tableside uses.
type OrderService interface {
	GetOrder(ctx context.Context, id string) (*orders.Order, error)
	ListOrders(ctx context.Context) ([]*orders.Order, error)
	UpdateStatus(ctx context.Context, id string, update orders.StatusUpdate) (*orders.Order, error)
	DeleteOrder(ctx context.Context, id string) error
}

// Checkout places a table's cart as an order.
type Checkout interface {
	Submit(ctx context.Context, tableID string, d checkout.Details) (*orders.Order, error)
}

// Session is a realtime subscription owned by one viewer.
type Session interface {
	tracking.Source
	SubscribeTable(tableID string) error
	Connect(ctx context.Context) error
	Close() error
}

// SessionFactory opens a fresh, unconnected session.
type SessionFactory func() Session
