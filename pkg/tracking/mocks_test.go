package tracking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/appetiteclub/tableside/pkg/orders"
	"github.com/appetiteclub/tableside/pkg/realtime"
)

type MockFetcher struct {
	GetOrderFunc func(ctx context.Context, id string) (*orders.Order, error)

	mu    sync.Mutex
	calls int
}

func (m *MockFetcher) GetOrder(ctx context.Context, id string) (*orders.Order, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.GetOrderFunc != nil {
		return m.GetOrderFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockFetcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls
}

type MockLister struct {
	ListOrdersFunc func(ctx context.Context) ([]*orders.Order, error)
}

func (m *MockLister) ListOrders(ctx context.Context) ([]*orders.Order, error) {
	if m.ListOrdersFunc != nil {
		return m.ListOrdersFunc(ctx)
	}
	return nil, nil
}

// fakeSource drives handlers synchronously.
type fakeSource struct {
	mu        sync.Mutex
	next      realtime.HandlerID
	handlers  map[string]map[realtime.HandlerID]realtime.HandlerFunc
	listeners map[int]func(realtime.State)
	nextLis   int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		handlers:  make(map[string]map[realtime.HandlerID]realtime.HandlerFunc),
		listeners: make(map[int]func(realtime.State)),
	}
}

func (s *fakeSource) On(event string, fn realtime.HandlerFunc) realtime.HandlerID {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	if s.handlers[event] == nil {
		s.handlers[event] = make(map[realtime.HandlerID]realtime.HandlerFunc)
	}
	s.handlers[event][s.next] = fn
	return s.next
}

func (s *fakeSource) Off(event string, ids ...realtime.HandlerID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(ids) == 0 {
		delete(s.handlers, event)
		return
	}
	for _, id := range ids {
		delete(s.handlers[event], id)
	}
}

func (s *fakeSource) OnStateChange(fn func(realtime.State)) func() {
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

func (s *fakeSource) fire(event, payload string) {
	s.mu.Lock()
	fns := make([]realtime.HandlerFunc, 0, len(s.handlers[event]))
	for _, fn := range s.handlers[event] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		_ = fn(context.Background(), []byte(payload))
	}
}

func (s *fakeSource) setState(st realtime.State) {
	s.mu.Lock()
	fns := make([]func(realtime.State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

func (s *fakeSource) handlerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.listeners)
	for _, hs := range s.handlers {
		n += len(hs)
	}
	return n
}

// testConn is a minimal realtime.Conn for wiring a real Channel in tests.
type testConn struct {
	sink realtime.Sink
	done chan struct{}
	once sync.Once
}

func (c *testConn) Join(ctx context.Context, tableID string) error { return nil }

func (c *testConn) Done() <-chan struct{} { return c.done }

func (c *testConn) Close() error {
	c.drop()
	return nil
}

func (c *testConn) drop() {
	c.once.Do(func() { close(c.done) })
}

type testDialer struct {
	mu    sync.Mutex
	conns []*testConn
}

func (d *testDialer) Dial(ctx context.Context, sink realtime.Sink) (realtime.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c := &testConn{sink: sink, done: make(chan struct{})}
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *testDialer) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.conns)
}

func (d *testDialer) Last() *testConn {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

var sampleID = uuid.MustParse("3f2b8f7e-8c1a-4c55-9e4c-2b1f0a9d7c11")

func sampleOrder() *orders.Order {
	created := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	return &orders.Order{
		ID:            sampleID,
		OrderID:       "ORD-20260304-ABC123",
		TableID:       "12",
		CustomerName:  "Ana",
		CustomerPhone: "555-0100",
		Lines: []orders.Line{
			{ItemKey: "m1", Name: "Soup", UnitPrice: decimal.RequireFromString("6.50"), Quantity: 2},
		},
		Subtotal:  decimal.RequireFromString("13.00"),
		Tax:       decimal.RequireFromString("1.30"),
		Total:     decimal.RequireFromString("14.30"),
		Status:    "received",
		CreatedAt: created,
		UpdatedAt: created,
	}
}
