package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/nats-io/nats.go"

	"github.com/appetiteclub/tableside/pkg/event"
)

const defaultDialTimeout = 2 * time.Second

// NATSDialer opens NATS connections with client side reconnection turned
// off; the Channel owns the reconnect policy.
type NATSDialer struct {
	URL     string
	Name    string
	Timeout time.Duration
	logger  aqm.Logger
}

func NewNATSDialer(url, name string, logger aqm.Logger) *NATSDialer {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &NATSDialer{
		URL:     url,
		Name:    name,
		Timeout: defaultDialTimeout,
		logger:  logger,
	}
}

func (d *NATSDialer) Dial(ctx context.Context, sink Sink) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := &natsConn{
		sink:   sink,
		done:   make(chan struct{}),
		logger: d.logger,
	}

	nc, err := nats.Connect(d.URL,
		nats.Name(d.Name),
		nats.Timeout(d.Timeout),
		nats.NoReconnect(),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				d.logger.Info("NATS connection dropped", "error", err)
			}
			c.lost()
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			c.lost()
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to NATS: %w", err)
	}

	if err := ctx.Err(); err != nil {
		nc.Close()
		return nil, err
	}

	c.nc = nc
	return c, nil
}

// natsClient is the part of *nats.Conn a natsConn uses.
type natsClient interface {
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
	FlushTimeout(timeout time.Duration) error
	Close()
}

type natsConn struct {
	nc       natsClient
	sink     Sink
	logger   aqm.Logger
	done     chan struct{}
	lostOnce sync.Once

	mu  sync.Mutex
	sub *nats.Subscription
}

// Join subscribes to the table subject, replacing any previous table. The
// subscription only counts as joined once the server confirmed it.
func (c *natsConn) Join(ctx context.Context, tableID string) error {
	subject := event.TableSubject(tableID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sub != nil && c.sub.Subject == subject {
		return nil
	}

	sub, err := c.nc.Subscribe(subject, c.handle)
	if err != nil {
		return fmt.Errorf("cannot subscribe to %s: %w", subject, err)
	}

	timeout := defaultDialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left > 0 {
			timeout = left
		}
	}
	if err := c.nc.FlushTimeout(timeout); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("cannot confirm subscription to %s: %w", subject, err)
	}

	if c.sub != nil {
		_ = c.sub.Unsubscribe()
	}
	c.sub = sub

	return nil
}

func (c *natsConn) handle(msg *nats.Msg) {
	env, err := event.DecodeOrderEnvelope(msg.Data)
	if err != nil {
		c.logger.Debug("dropping malformed order event", "subject", msg.Subject, "error", err)
		return
	}

	c.sink(Message{Event: env.Event, Payload: env.Payload})
}

func (c *natsConn) Done() <-chan struct{} {
	return c.done
}

func (c *natsConn) Close() error {
	c.nc.Close()
	c.lost()
	return nil
}

func (c *natsConn) lost() {
	c.lostOnce.Do(func() {
		close(c.done)
	})
}
