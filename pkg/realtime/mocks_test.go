package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeConn struct {
	sink Sink
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	joins   []string
	closed  bool
	JoinErr error
}

func (c *fakeConn) Join(ctx context.Context, tableID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.JoinErr != nil {
		return c.JoinErr
	}
	c.joins = append(c.joins, tableID)
	return nil
}

func (c *fakeConn) Done() <-chan struct{} {
	return c.done
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.drop()
	return nil
}

// drop simulates a transport loss.
func (c *fakeConn) drop() {
	c.once.Do(func() {
		close(c.done)
	})
}

func (c *fakeConn) emit(event string, payload string) {
	c.sink(Message{Event: event, Payload: []byte(payload)})
}

func (c *fakeConn) Joins() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]string(nil), c.joins...)
}

func (c *fakeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

type fakeDialer struct {
	mu       sync.Mutex
	failNext int
	failAll  bool
	dials    int
	conns    []*fakeConn
}

var errDialRefused = errors.New("connection refused")

func (d *fakeDialer) Dial(ctx context.Context, sink Sink) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dials++
	if d.failAll {
		return nil, errDialRefused
	}
	if d.failNext > 0 {
		d.failNext--
		return nil, errDialRefused
	}

	c := &fakeConn{sink: sink, done: make(chan struct{})}
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.dials
}

func (d *fakeDialer) Conns() []*fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]*fakeConn(nil), d.conns...)
}

func (d *fakeDialer) Last() *fakeConn {
	conns := d.Conns()
	if len(conns) == 0 {
		return nil
	}
	return conns[len(conns)-1]
}

func (d *fakeDialer) SetFailNext(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.failNext = n
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

func newTestChannel(d Dialer, opts ...Option) *Channel {
	base := []Option{WithBackoff(time.Millisecond, 4*time.Millisecond)}
	return NewChannel(d, append(base, opts...)...)
}
