package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/appetiteclub/tableside/pkg/orders"
)

// MockPersister wraps a MemoryPersister and lets tests override calls.
type MockPersister struct {
	inner      *MemoryPersister
	LoadFunc   func(ctx context.Context, tableID string) ([]orders.Line, error)
	SaveFunc   func(ctx context.Context, tableID string, lines []orders.Line) error
	DeleteFunc func(ctx context.Context, tableID string) error
}

func NewMockPersister() *MockPersister {
	return &MockPersister{inner: NewMemoryPersister()}
}

func (m *MockPersister) Load(ctx context.Context, tableID string) ([]orders.Line, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx, tableID)
	}
	return m.inner.Load(ctx, tableID)
}

func (m *MockPersister) Save(ctx context.Context, tableID string, lines []orders.Line) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tableID, lines)
	}
	return m.inner.Save(ctx, tableID, lines)
}

func (m *MockPersister) Delete(ctx context.Context, tableID string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, tableID)
	}
	return m.inner.Delete(ctx, tableID)
}

// fakeRedis implements the handful of commands RedisPersister issues.
type fakeRedis struct {
	redis.Cmdable

	mu       sync.Mutex
	data     map[string]string
	ttls     map[string]time.Duration
	failures int
	calls    int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		data: make(map[string]string),
		ttls: make(map[string]time.Duration),
	}
}

var errConnRefused = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")

func (f *fakeRedis) fail() bool {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return true
	}
	return false
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	cmd := redis.NewStringCmd(ctx, "get", key)
	if f.fail() {
		cmd.SetErr(errConnRefused)
		return cmd
	}

	v, ok := f.data[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(v)
	return cmd
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	cmd := redis.NewStatusCmd(ctx, "set", key)
	if f.fail() {
		cmd.SetErr(errConnRefused)
		return cmd
	}

	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = expiration
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	cmd := redis.NewIntCmd(ctx, "del")
	if f.fail() {
		cmd.SetErr(errConnRefused)
		return cmd
	}

	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	cmd.SetVal(n)
	return cmd
}
