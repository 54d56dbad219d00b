package order

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/appetiteclub/tableside/pkg/orders"
)

// MockPublisher is a mock implementation of events.Publisher for testing
type MockPublisher struct {
	PublishFunc func(ctx context.Context, topic string, msg []byte) error

	mu       sync.Mutex
	messages []published
}

type published struct {
	topic string
	msg   []byte
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	m.mu.Lock()
	m.messages = append(m.messages, published{topic: topic, msg: msg})
	m.mu.Unlock()

	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, topic, msg)
	}
	return nil
}

func (m *MockPublisher) Messages() []published {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]published(nil), m.messages...)
}

// MockOrderRepo is a mock implementation of OrderRepo for testing
type MockOrderRepo struct {
	mu         sync.RWMutex
	orders     map[uuid.UUID]*orders.Order
	createdBy  map[uuid.UUID]string
	CreateFunc func(ctx context.Context, order *orders.Order) error
	GetFunc    func(ctx context.Context, id uuid.UUID) (*orders.Order, error)
	ListFunc   func(ctx context.Context) ([]*orders.Order, error)
	SaveFunc   func(ctx context.Context, order *orders.Order) error
	DeleteFunc func(ctx context.Context, id uuid.UUID) error
}

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{
		orders:    make(map[uuid.UUID]*orders.Order),
		createdBy: make(map[uuid.UUID]string),
	}
}

func (m *MockOrderRepo) Create(ctx context.Context, order *orders.Order) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, order)
	}
	return m.CreateAs(ctx, order, "")
}

func (m *MockOrderRepo) CreateAs(ctx context.Context, order *orders.Order, createdBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = order.Clone()
	m.createdBy[order.ID] = createdBy
	return nil
}

func (m *MockOrderRepo) Get(ctx context.Context, id uuid.UUID) (*orders.Order, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.orders[id].Clone(), nil
}

func (m *MockOrderRepo) GetByOrderID(ctx context.Context, orderID string) (*orders.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.orders {
		if o.OrderID == orderID {
			return o.Clone(), nil
		}
	}
	return nil, nil
}

func (m *MockOrderRepo) List(ctx context.Context) ([]*orders.Order, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*orders.Order
	for _, o := range m.orders {
		result = append(result, o.Clone())
	}
	return result, nil
}

func (m *MockOrderRepo) ListByTable(ctx context.Context, tableID string) ([]*orders.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*orders.Order
	for _, o := range m.orders {
		if o.TableID == tableID {
			result = append(result, o.Clone())
		}
	}
	return result, nil
}

func (m *MockOrderRepo) Save(ctx context.Context, order *orders.Order) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, order)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = order.Clone()
	return nil
}

func (m *MockOrderRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.orders, id)
	return nil
}

func (m *MockOrderRepo) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.orders)
}
