package realtime

import (
	"context"
)

// Message is one named event received from the transport.
type Message struct {
	Event   string
	Payload []byte
}

// Sink receives messages from a live connection. It may be called from any
// goroutine.
type Sink func(Message)

// Conn is one physical connection. Done is closed when the connection is
// lost; the channel then decides whether to dial again.
type Conn interface {
	Join(ctx context.Context, tableID string) error
	Done() <-chan struct{}
	Close() error
}

// Dialer opens physical connections that deliver into sink.
type Dialer interface {
	Dial(ctx context.Context, sink Sink) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, sink Sink) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, sink Sink) (Conn, error) {
	return f(ctx, sink)
}
