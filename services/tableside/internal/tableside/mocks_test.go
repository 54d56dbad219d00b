package tableside

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/appetiteclub/tableside/pkg/checkout"
	"github.com/appetiteclub/tableside/pkg/orderapi"
	"github.com/appetiteclub/tableside/pkg/orders"
	"github.com/appetiteclub/tableside/pkg/realtime"
)

// MockOrderService is a mock implementation of OrderService for testing
type MockOrderService struct {
	GetOrderFunc     func(ctx context.Context, id string) (*orders.Order, error)
	ListOrdersFunc   func(ctx context.Context) ([]*orders.Order, error)
	UpdateStatusFunc func(ctx context.Context, id string, update orders.StatusUpdate) (*orders.Order, error)
	DeleteOrderFunc  func(ctx context.Context, id string) error
}

func (m *MockOrderService) GetOrder(ctx context.Context, id string) (*orders.Order, error) {
	if m.GetOrderFunc != nil {
		return m.GetOrderFunc(ctx, id)
	}
	return nil, orderapi.ErrNoData
}

func (m *MockOrderService) ListOrders(ctx context.Context) ([]*orders.Order, error) {
	if m.ListOrdersFunc != nil {
		return m.ListOrdersFunc(ctx)
	}
	return nil, nil
}

func (m *MockOrderService) UpdateStatus(ctx context.Context, id string, update orders.StatusUpdate) (*orders.Order, error) {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, update)
	}
	return nil, orderapi.ErrNoData
}

func (m *MockOrderService) DeleteOrder(ctx context.Context, id string) error {
	if m.DeleteOrderFunc != nil {
		return m.DeleteOrderFunc(ctx, id)
	}
	return nil
}

// MockCheckout is a mock implementation of Checkout for testing
type MockCheckout struct {
	SubmitFunc func(ctx context.Context, tableID string, d checkout.Details) (*orders.Order, error)
}

func (m *MockCheckout) Submit(ctx context.Context, tableID string, d checkout.Details) (*orders.Order, error) {
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, tableID, d)
	}
	return sampleOrder(), nil
}

// fakeSession records what a handler does with its realtime session and lets
// tests push events and state changes synchronously.
type fakeSession struct {
	mu        sync.Mutex
	handlers  map[string]map[realtime.HandlerID]realtime.HandlerFunc
	listeners map[int]func(realtime.State)
	nextID    realtime.HandlerID
	nextLis   int
	table     string
	connected bool
	closed    bool

	SubscribeErr error
	ConnectErr   error
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		handlers:  make(map[string]map[realtime.HandlerID]realtime.HandlerFunc),
		listeners: make(map[int]func(realtime.State)),
	}
}

func (s *fakeSession) On(event string, fn realtime.HandlerFunc) realtime.HandlerID {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	if s.handlers[event] == nil {
		s.handlers[event] = make(map[realtime.HandlerID]realtime.HandlerFunc)
	}
	s.handlers[event][s.nextID] = fn
	return s.nextID
}

func (s *fakeSession) Off(event string, ids ...realtime.HandlerID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		delete(s.handlers[event], id)
	}
}

func (s *fakeSession) OnStateChange(fn func(realtime.State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextLis++
	id := s.nextLis
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *fakeSession) SubscribeTable(tableID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.SubscribeErr != nil {
		return s.SubscribeErr
	}
	s.table = tableID
	return nil
}

func (s *fakeSession) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ConnectErr != nil {
		return s.ConnectErr
	}
	s.connected = true
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

func (s *fakeSession) fire(event string, payload []byte) {
	s.mu.Lock()
	var fns []realtime.HandlerFunc
	for _, fn := range s.handlers[event] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		_ = fn(context.Background(), payload)
	}
}

func (s *fakeSession) setState(st realtime.State) {
	s.mu.Lock()
	var fns []func(realtime.State)
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

func (s *fakeSession) handlerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, m := range s.handlers {
		n += len(m)
	}
	return n
}

func (s *fakeSession) snapshot() (table string, connected, closed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.table, s.connected, s.closed
}

// streamRecorder is a ResponseWriter safe to read while a stream writes.
type streamRecorder struct {
	mu     sync.Mutex
	header http.Header
	buf    bytes.Buffer
	code   int
}

func newStreamRecorder() *streamRecorder {
	return &streamRecorder{header: make(http.Header)}
}

func (r *streamRecorder) Header() http.Header {
	return r.header
}

func (r *streamRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.code == 0 {
		r.code = http.StatusOK
	}
	return r.buf.Write(p)
}

func (r *streamRecorder) WriteHeader(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.code == 0 {
		r.code = code
	}
}

func (r *streamRecorder) Flush() {}

func (r *streamRecorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.buf.String()
}

func (r *streamRecorder) Code() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.code
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

var sampleID = uuid.MustParse("5f0c6f5e-2a4b-4c8e-9d2f-0b7c1c9e8a11")

func sampleOrder() *orders.Order {
	created := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	return &orders.Order{
		ID:            sampleID,
		OrderID:       "ORD-20260304-ABC123",
		TableID:       "12",
		CustomerName:  "Ana",
		CustomerPhone: "555-0101",
		Lines: []orders.Line{
			{ItemKey: "soup", Name: "Soup", UnitPrice: decimal.RequireFromString("6.50"), Quantity: 2},
		},
		Subtotal:  decimal.RequireFromString("13.00"),
		Tax:       decimal.RequireFromString("1.30"),
		Total:     decimal.RequireFromString("14.30"),
		Status:    "received",
		CreatedAt: created,
		UpdatedAt: created,
	}
}
