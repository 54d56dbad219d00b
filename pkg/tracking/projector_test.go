package tracking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/appetiteclub/tableside/pkg/event"
	"github.com/appetiteclub/tableside/pkg/orders"
	"github.com/appetiteclub/tableside/pkg/realtime"
)

func loadedProjector(t *testing.T) (*Projector, *MockFetcher) {
	t.Helper()

	fetcher := &MockFetcher{
		GetOrderFunc: func(ctx context.Context, id string) (*orders.Order, error) {
			return sampleOrder(), nil
		},
	}

	p := NewProjector("ORD-20260304-ABC123", fetcher, nil)
	if err := p.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return p, fetcher
}

func TestProjectorLoad(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		p, _ := loadedProjector(t)

		v := p.View()
		if !v.Found {
			t.Fatal("expected projection to be found")
		}
		if v.Status != "received" {
			t.Errorf("Status = %q, want received", v.Status)
		}
		if p.Err() != nil {
			t.Errorf("Err() = %v, want nil", p.Err())
		}
	})

	t.Run("fetchFailure", func(t *testing.T) {
		fetcher := &MockFetcher{
			GetOrderFunc: func(ctx context.Context, id string) (*orders.Order, error) {
				return nil, errors.New("boom")
			},
		}
		p := NewProjector("ORD-1", fetcher, nil)

		if err := p.Load(context.Background()); err == nil {
			t.Fatal("expected error")
		}
		if p.View().Found {
			t.Error("expected unavailable view")
		}
		if p.Err() == nil {
			t.Error("expected recorded error")
		}
		if fetcher.Calls() != 1 {
			t.Errorf("expected a single fetch, got %d", fetcher.Calls())
		}
	})

	t.Run("missingOrder", func(t *testing.T) {
		p := NewProjector("ORD-1", &MockFetcher{}, nil)

		if err := p.Load(context.Background()); err == nil {
			t.Fatal("expected error for missing order")
		}
		if p.Current() != nil {
			t.Error("expected nil projection")
		}
	})

	t.Run("failureAfterSuccessClears", func(t *testing.T) {
		p, fetcher := loadedProjector(t)
		fetcher.GetOrderFunc = func(ctx context.Context, id string) (*orders.Order, error) {
			return nil, errors.New("boom")
		}

		_ = p.Load(context.Background())
		if p.Current() != nil {
			t.Error("expected Load failure to clear the projection")
		}
	})
}

func TestProjectorApply(t *testing.T) {
	tests := []struct {
		name    string
		event   string
		payload string
		applied bool
		check   func(t *testing.T, o *orders.Order)
	}{
		{
			name:    "statusByOrderID",
			event:   event.EventOrderUpdated,
			payload: `{"orderId":"ORD-20260304-ABC123","status":"preparing"}`,
			applied: true,
			check: func(t *testing.T, o *orders.Order) {
				if o.Status != "preparing" {
					t.Errorf("Status = %q", o.Status)
				}
			},
		},
		{
			name:    "statusByRecordID",
			event:   event.EventOrderUpdated,
			payload: `{"_id":"3f2b8f7e-8c1a-4c55-9e4c-2b1f0a9d7c11","status":"ready"}`,
			applied: true,
			check: func(t *testing.T, o *orders.Order) {
				if o.Status != "ready" {
					t.Errorf("Status = %q", o.Status)
				}
			},
		},
		{
			name:    "partialKeepsContents",
			event:   event.EventOrderUpdated,
			payload: `{"orderId":"ORD-20260304-ABC123","status":"preparing","lines":[],"total":null}`,
			applied: true,
			check: func(t *testing.T, o *orders.Order) {
				if len(o.Lines) != 1 {
					t.Errorf("expected lines kept, got %d", len(o.Lines))
				}
				if o.Total.String() != "14.3" {
					t.Errorf("Total = %s, want 14.3", o.Total)
				}
				if o.CustomerName != "Ana" {
					t.Errorf("CustomerName = %q", o.CustomerName)
				}
			},
		},
		{
			name:    "etaFromEvent",
			event:   event.EventOrderUpdated,
			payload: `{"orderId":"ORD-20260304-ABC123","estimatedReadyAt":"2026-03-04T12:20:00Z"}`,
			applied: true,
			check: func(t *testing.T, o *orders.Order) {
				if o.EstimatedReadyAt == nil || o.EstimatedReadyAt.Minute() != 20 {
					t.Errorf("EstimatedReadyAt = %v", o.EstimatedReadyAt)
				}
			},
		},
		{
			name:    "otherOrder",
			event:   event.EventOrderUpdated,
			payload: `{"orderId":"ORD-20260304-ZZZ999","status":"ready"}`,
		},
		{
			name:    "canonicalOrderIDWins",
			event:   event.EventOrderUpdated,
			payload: `{"orderId":"ORD-20260304-ZZZ999","_id":"3f2b8f7e-8c1a-4c55-9e4c-2b1f0a9d7c11","status":"ready"}`,
		},
		{
			name:    "deleteIgnored",
			event:   event.EventOrderDeleted,
			payload: `{"orderId":"ORD-20260304-ABC123"}`,
		},
		{
			name:    "malformed",
			event:   event.EventOrderUpdated,
			payload: `{"orderId":`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := loadedProjector(t)

			got := p.Apply(tt.event, []byte(tt.payload))
			if got != tt.applied {
				t.Fatalf("Apply() = %v, want %v", got, tt.applied)
			}

			o := p.Current()
			if !tt.applied {
				if o.Status != "received" {
					t.Errorf("expected untouched order, status %q", o.Status)
				}
				return
			}
			tt.check(t, o)
		})
	}
}

func TestProjectorApplyBeforeLoad(t *testing.T) {
	p := NewProjector("ORD-20260304-ABC123", &MockFetcher{}, nil)

	if p.Apply(event.EventOrderUpdated, []byte(`{"orderId":"ORD-20260304-ABC123","status":"ready"}`)) {
		t.Error("expected events before load to be ignored")
	}
}

func TestProjectorReconcile(t *testing.T) {
	t.Run("notLoaded", func(t *testing.T) {
		p := NewProjector("ORD-1", &MockFetcher{}, nil)

		if err := p.Reconcile(context.Background()); !errors.Is(err, ErrNotLoaded) {
			t.Errorf("Reconcile() error = %v, want ErrNotLoaded", err)
		}
	})

	t.Run("replacesProjection", func(t *testing.T) {
		p, fetcher := loadedProjector(t)
		fetcher.GetOrderFunc = func(ctx context.Context, id string) (*orders.Order, error) {
			o := sampleOrder()
			o.Status = "served"
			return o, nil
		}

		if err := p.Reconcile(context.Background()); err != nil {
			t.Fatalf("Reconcile() error = %v", err)
		}
		if got := p.Current().Status; got != "served" {
			t.Errorf("Status = %q, want served", got)
		}
	})

	t.Run("failureKeepsLastProjection", func(t *testing.T) {
		p, fetcher := loadedProjector(t)
		p.Apply(event.EventOrderUpdated, []byte(`{"orderId":"ORD-20260304-ABC123","status":"ready"}`))
		fetcher.GetOrderFunc = func(ctx context.Context, id string) (*orders.Order, error) {
			return nil, errors.New("unreachable")
		}

		if err := p.Reconcile(context.Background()); err == nil {
			t.Fatal("expected error")
		}
		o := p.Current()
		if o == nil || o.Status != "ready" {
			t.Errorf("expected last projection kept, got %+v", o)
		}
	})
}

func TestProjectorReconcileIgnoresOlderSnapshot(t *testing.T) {
	snapshot := sampleOrder()
	snapshot.Status = "preparing"

	release := make(chan struct{})
	fetching := make(chan struct{}, 1)
	calls := 0
	fetcher := &MockFetcher{
		GetOrderFunc: func(ctx context.Context, id string) (*orders.Order, error) {
			calls++
			if calls > 1 {
				fetching <- struct{}{}
				<-release
			}
			return snapshot.Clone(), nil
		},
	}

	p := NewProjector("ORD-20260304-ABC123", fetcher, nil)
	if err := p.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- p.Reconcile(context.Background())
	}()
	<-fetching

	if !p.Apply(event.EventOrderUpdated, []byte(`{"orderId":"ORD-20260304-ABC123","status":"ready","updatedAt":"2026-03-04T12:05:00Z"}`)) {
		t.Fatal("expected event to apply")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	if got := p.Current().Status; got != "ready" {
		t.Errorf("Status = %q after an older snapshot, want ready", got)
	}
}

func TestProjectorReconcileAdoptsNewerSnapshot(t *testing.T) {
	p, fetcher := loadedProjector(t)
	p.Apply(event.EventOrderUpdated, []byte(`{"orderId":"ORD-20260304-ABC123","status":"preparing","updatedAt":"2026-03-04T12:05:00Z"}`))

	fetcher.GetOrderFunc = func(ctx context.Context, id string) (*orders.Order, error) {
		o := sampleOrder()
		o.Status = "served"
		o.UpdatedAt = time.Date(2026, 3, 4, 12, 20, 0, 0, time.UTC)
		return o, nil
	}

	if err := p.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if got := p.Current().Status; got != "served" {
		t.Errorf("Status = %q, want served", got)
	}
}

func TestProjectorBind(t *testing.T) {
	p, fetcher := loadedProjector(t)
	src := newFakeSource()

	unbind := p.Bind(src)

	src.fire(event.EventOrderUpdated, `{"orderId":"ORD-20260304-ABC123","status":"preparing"}`)
	if got := p.Current().Status; got != "preparing" {
		t.Fatalf("Status = %q, want preparing", got)
	}

	fetcher.GetOrderFunc = func(ctx context.Context, id string) (*orders.Order, error) {
		o := sampleOrder()
		o.Status = "ready"
		return o, nil
	}

	src.setState(realtime.StateConnecting)
	if fetcher.Calls() != 1 {
		t.Errorf("expected no refetch while connecting, got %d calls", fetcher.Calls())
	}

	src.setState(realtime.StateConnected)
	if fetcher.Calls() != 2 {
		t.Errorf("expected refetch on connect, got %d calls", fetcher.Calls())
	}
	if got := p.Current().Status; got != "ready" {
		t.Errorf("Status = %q, want ready", got)
	}

	unbind()
	if n := src.handlerCount(); n != 0 {
		t.Errorf("expected all handlers detached, %d left", n)
	}

	src.fire(event.EventOrderUpdated, `{"orderId":"ORD-20260304-ABC123","status":"served"}`)
	if got := p.Current().Status; got != "ready" {
		t.Errorf("expected unbound projector to ignore events, got %q", got)
	}
}

func TestProjectorChanges(t *testing.T) {
	p, _ := loadedProjector(t)

	ch, cancel := p.Changes()
	defer cancel()

	p.Apply(event.EventOrderUpdated, []byte(`{"orderId":"ORD-20260304-ABC123","status":"preparing"}`))
	p.Apply(event.EventOrderUpdated, []byte(`{"orderId":"ORD-20260304-ABC123","status":"ready"}`))

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected change signal")
	}

	select {
	case <-ch:
		t.Fatal("expected coalesced signal")
	default:
	}
}

func TestProjectorWatch(t *testing.T) {
	p, fetcher := loadedProjector(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Watch(ctx, 5*time.Millisecond)
		close(done)
	}()

	waitFor(t, "periodic refetch", func() bool { return fetcher.Calls() >= 3 })
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watch did not stop")
	}
}

// Reconnecting through a real channel must leave exactly one live
// registration and a projection reconciled after every connect.
func TestProjectorReconnectIdempotent(t *testing.T) {
	var mu sync.Mutex
	status := "received"

	fetcher := &MockFetcher{
		GetOrderFunc: func(ctx context.Context, id string) (*orders.Order, error) {
			mu.Lock()
			defer mu.Unlock()
			o := sampleOrder()
			o.Status = status
			return o, nil
		},
	}

	p := NewProjector("ORD-20260304-ABC123", fetcher, nil)
	if err := p.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	dialer := &testDialer{}
	ch := realtime.NewChannel(dialer, realtime.WithBackoff(time.Millisecond, 4*time.Millisecond))
	defer ch.Close()

	var applied int
	var appliedMu sync.Mutex
	counter := ch.On(event.EventOrderUpdated, func(ctx context.Context, payload []byte) error {
		appliedMu.Lock()
		applied++
		appliedMu.Unlock()
		return nil
	})
	defer ch.Off(event.EventOrderUpdated, counter)

	unbind := p.Bind(ch)
	defer unbind()

	if err := ch.SubscribeTable("12"); err != nil {
		t.Fatalf("SubscribeTable() error = %v", err)
	}
	if err := ch.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	for i := 1; i <= 3; i++ {
		waitFor(t, "connection", func() bool { return dialer.Count() == i && ch.Connected() })
		waitFor(t, "reconcile", func() bool { return fetcher.Calls() >= i+1 })

		mu.Lock()
		status = "preparing"
		mu.Unlock()

		if i < 3 {
			dialer.Last().drop()
		}
	}

	dialer.Last().sink(realtime.Message{
		Event:   event.EventOrderUpdated,
		Payload: []byte(`{"orderId":"ORD-20260304-ABC123","status":"ready"}`),
	})

	waitFor(t, "event applied", func() bool {
		appliedMu.Lock()
		defer appliedMu.Unlock()
		return applied == 1
	})
	waitFor(t, "projection updated", func() bool { return p.Current().Status == "ready" })

	appliedMu.Lock()
	defer appliedMu.Unlock()
	if applied != 1 {
		t.Errorf("expected one delivery after reconnects, got %d", applied)
	}
}
