package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aquamarinepk/aqm"
	"golang.org/x/sync/singleflight"

	"github.com/appetiteclub/tableside/pkg/cart"
	"github.com/appetiteclub/tableside/pkg/event"
	"github.com/appetiteclub/tableside/pkg/orders"
)

var ErrValidation = errors.New("checkout validation failed")

// Details are the customer fields collected at checkout.
type Details struct {
	CustomerName  string `json:"customerName"`
	CustomerPhone string `json:"customerPhone"`
}

// ValidationError lists every reason a checkout was rejected.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(e.Messages, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Validate returns the reasons the cart cannot be submitted yet.
func Validate(d Details, snap cart.Snapshot) []string {
	var msgs []string

	if snap.Empty() {
		msgs = append(msgs, "cart is empty")
	}
	if strings.TrimSpace(d.CustomerName) == "" {
		msgs = append(msgs, "customer name is required")
	}
	if strings.TrimSpace(d.CustomerPhone) == "" {
		msgs = append(msgs, "customer phone is required")
	}

	return msgs
}

// OrderCreator places orders with the order-of-record.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req orders.CreateRequest) (*orders.Order, error)
}

// Service turns a table cart into an order.
type Service struct {
	carts   *cart.Store
	creator OrderCreator
	logger  aqm.Logger
	group   singleflight.Group
}

func NewService(carts *cart.Store, creator OrderCreator, logger aqm.Logger) *Service {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}

	return &Service{
		carts:   carts,
		creator: creator,
		logger:  logger,
	}
}

// Submit places the table's cart as an order. Concurrent submissions for the
// same table share one request. The cart is cleared only once the order is
// accepted.
func (s *Service) Submit(ctx context.Context, tableID string, d Details) (*orders.Order, error) {
	tableID = strings.TrimSpace(tableID)
	if tableID == "" {
		return nil, cart.ErrNoTable
	}
	if event.IsAllTables(tableID) {
		return nil, event.ErrReservedTable
	}

	v, err, shared := s.group.Do(tableID, func() (interface{}, error) {
		return s.submit(ctx, tableID, d)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("checkout shared with concurrent submission", "table_id", tableID)
	}

	return v.(*orders.Order).Clone(), nil
}

func (s *Service) submit(ctx context.Context, tableID string, d Details) (*orders.Order, error) {
	c, err := s.carts.Cart(ctx, tableID)
	if err != nil {
		return nil, err
	}

	snap := c.Snapshot()
	if msgs := Validate(d, snap); len(msgs) > 0 {
		return nil, &ValidationError{Messages: msgs}
	}

	req := orders.CreateRequest{
		TableID:       tableID,
		CustomerName:  strings.TrimSpace(d.CustomerName),
		CustomerPhone: strings.TrimSpace(d.CustomerPhone),
		Lines:         snap.Lines,
	}

	o, err := s.creator.CreateOrder(ctx, req)
	if err != nil {
		s.logger.Info("order submission failed, cart kept", "table_id", tableID, "error", err)
		return nil, fmt.Errorf("cannot submit order: %w", err)
	}

	if err := c.Clear(ctx); err != nil {
		s.logger.Error("order placed but cart not cleared", "table_id", tableID, "order_id", o.Key(), "error", err)
	}

	s.logger.Info("order placed", "table_id", tableID, "order_id", o.Key(), "total", o.Total.StringFixed(2))
	return o, nil
}
