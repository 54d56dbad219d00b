package realtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"
)

const (
	DefaultMaxAttempts  = 5
	DefaultBackoffFloor = 1 * time.Second
	DefaultBackoffCap   = 5 * time.Second

	inboxSize   = 64
	joinTimeout = 5 * time.Second
)

var (
	ErrClosed  = errors.New("realtime channel closed")
	ErrNoTable = errors.New("table id is required")
)

// HandlerFunc handles the payload of one named event.
type HandlerFunc func(ctx context.Context, payload []byte) error

// HandlerID identifies a registration made with On.
type HandlerID uint64

type registration struct {
	id HandlerID
	fn HandlerFunc
}

// dispatch is either a transport message or a state notification. Both go
// through the same queue so callbacks never run concurrently and a
// connected notification precedes the events of that connection.
type dispatch struct {
	msg   *Message
	state State
}

// Channel keeps the logical subscription of a client session (table,
// handlers) apart from the physical connection, and replays the former on
// every new connection.
type Channel struct {
	dialer      Dialer
	logger      aqm.Logger
	maxAttempts int
	floor       time.Duration
	ceiling     time.Duration

	mu        sync.Mutex
	state     State
	conn      Conn
	table     string
	joined    string
	handlers  map[string][]registration
	listeners map[int]func(State)
	nextID    HandlerID
	nextLis   int
	running   bool
	closed    bool
	cancel    context.CancelFunc

	joinMu       sync.Mutex
	inbox        chan dispatch
	done         chan struct{}
	dispatchOnce sync.Once
	wg           sync.WaitGroup
}

// Option configures a Channel.
type Option func(*Channel)

// WithLogger sets the logger.
func WithLogger(logger aqm.Logger) Option {
	return func(c *Channel) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMaxAttempts sets how many consecutive failed connection attempts are
// made before the channel degrades.
func WithMaxAttempts(n int) Option {
	return func(c *Channel) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBackoff sets the first reconnect delay and its ceiling.
func WithBackoff(floor, ceiling time.Duration) Option {
	return func(c *Channel) {
		if floor > 0 {
			c.floor = floor
		}
		if ceiling >= c.floor {
			c.ceiling = ceiling
		}
	}
}

func NewChannel(dialer Dialer, opts ...Option) *Channel {
	c := &Channel{
		dialer:      dialer,
		logger:      aqm.NewNoopLogger(),
		maxAttempts: DefaultMaxAttempts,
		floor:       DefaultBackoffFloor,
		ceiling:     DefaultBackoffCap,
		state:       StateDisconnected,
		handlers:    make(map[string][]registration),
		listeners:   make(map[int]func(State)),
		inbox:       make(chan dispatch, inboxSize),
		done:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Connect starts connecting in the background and returns immediately.
// It is a no-op while a connection loop is already running. Calling it on a
// degraded channel starts a fresh attempt budget.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.running {
		c.mu.Unlock()
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true
	c.wg.Add(1)
	c.mu.Unlock()

	c.dispatchOnce.Do(func() {
		go c.dispatchLoop()
	})

	go c.run(runCtx)
	return nil
}

// SubscribeTable remembers tableID and joins it when connected. The join is
// issued again after every reconnect.
func (c *Channel) SubscribeTable(tableID string) error {
	tableID = strings.TrimSpace(tableID)
	if tableID == "" {
		return ErrNoTable
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.table = tableID
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		c.logger.Debug("join deferred until connected", "table_id", tableID)
		return nil
	}

	return c.join(conn)
}

// Table returns the last requested table.
func (c *Channel) Table() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.table
}

// On registers fn for event. Registrations survive reconnects.
func (c *Channel) On(event string, fn HandlerFunc) HandlerID {
	if fn == nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0
	}

	c.nextID++
	id := c.nextID
	c.handlers[event] = append(c.handlers[event], registration{id: id, fn: fn})
	return id
}

// Off removes the given handlers of event, or all of them when no id is
// passed.
func (c *Channel) Off(event string, ids ...HandlerID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(ids) == 0 {
		delete(c.handlers, event)
		return
	}

	regs := c.handlers[event]
	kept := regs[:0:0]
	for _, r := range regs {
		if !containsID(ids, r.id) {
			kept = append(kept, r)
		}
	}

	if len(kept) == 0 {
		delete(c.handlers, event)
		return
	}
	c.handlers[event] = kept
}

// OnStateChange registers fn to be told about state transitions. fn runs on
// the dispatch goroutine, in order with event handlers.
func (c *Channel) OnStateChange(fn func(State)) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || fn == nil {
		return func() {}
	}

	c.nextLis++
	id := c.nextLis
	c.listeners[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

func (c *Channel) Connected() bool {
	return c.State() == StateConnected
}

// Degraded reports whether the reconnect budget is exhausted.
func (c *Channel) Degraded() bool {
	return c.State() == StateDegraded
}

// Close tears the channel down whatever its state: the connection loop
// stops, the transport is closed and every handler is detached. Safe to
// call more than once and from inside a handler.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}

	c.closed = true
	c.state = StateDisconnected
	conn := c.conn
	c.conn = nil
	c.joined = ""
	c.handlers = make(map[string][]registration)
	c.listeners = make(map[int]func(State))
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	close(c.done)

	var err error
	if conn != nil {
		err = conn.Close()
	}

	c.wg.Wait()
	c.logger.Debug("realtime channel closed")
	return err
}

func (c *Channel) run(ctx context.Context) {
	defer c.wg.Done()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	var wait time.Duration
	failures := 0

	for {
		if wait > 0 && !sleepContext(ctx, wait) {
			return
		}

		if !c.setState(StateConnecting) {
			return
		}

		conn, err := c.dialer.Dial(ctx, c.deliver)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			failures++
			if failures >= c.maxAttempts {
				c.logger.Error("realtime connection degraded", "attempts", failures, "error", err)
				c.setState(StateDegraded)
				return
			}

			wait = c.backoff(failures)
			c.logger.Info("realtime connection failed", "attempt", failures, "retry_in", wait, "error", err)
			continue
		}

		failures = 0
		if !c.attach(conn) {
			_ = conn.Close()
			return
		}

		c.logger.Info("realtime connection established")
		if err := c.join(conn); err != nil {
			c.logger.Error("cannot join table after connect", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-conn.Done():
		}

		if !c.detach(conn) {
			return
		}

		c.logger.Info("realtime connection lost, reconnecting")
		wait = c.floor
	}
}

// backoff returns the delay after the given number of consecutive failures:
// floor, doubled per failure, capped at ceiling.
func (c *Channel) backoff(failures int) time.Duration {
	d := c.floor
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= c.ceiling {
			return c.ceiling
		}
	}
	return min(d, c.ceiling)
}

func (c *Channel) attach(conn Conn) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.conn = conn
	c.joined = ""
	c.state = StateConnected
	c.mu.Unlock()

	c.notify(StateConnected)
	return true
}

func (c *Channel) detach(conn Conn) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	if c.conn == conn {
		c.conn = nil
		c.joined = ""
	}
	c.state = StateConnecting
	c.mu.Unlock()

	_ = conn.Close()
	c.notify(StateConnecting)
	return true
}

// join sends the remembered table on conn unless conn already joined it.
func (c *Channel) join(conn Conn) error {
	c.joinMu.Lock()
	defer c.joinMu.Unlock()

	c.mu.Lock()
	table := c.table
	current := c.conn == conn && c.state == StateConnected
	already := c.joined == table
	c.mu.Unlock()

	if table == "" || !current || already {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), joinTimeout)
	defer cancel()

	if err := conn.Join(ctx, table); err != nil {
		return fmt.Errorf("cannot join table %s: %w", table, err)
	}

	c.mu.Lock()
	if c.conn == conn {
		c.joined = table
	}
	c.mu.Unlock()

	c.logger.Debug("joined table", "table_id", table)
	return nil
}

// setState records s unless the channel is closed, and queues a
// notification for listeners.
func (c *Channel) setState(s State) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	changed := c.state != s
	c.state = s
	c.mu.Unlock()

	if changed {
		c.notify(s)
	}
	return true
}

func (c *Channel) notify(s State) {
	select {
	case c.inbox <- dispatch{state: s}:
	case <-c.done:
	}
}

// deliver is the Sink handed to the transport. It blocks while the
// dispatch queue is full so events are not dropped.
func (c *Channel) deliver(msg Message) {
	select {
	case c.inbox <- dispatch{msg: &msg}:
	case <-c.done:
	}
}

func (c *Channel) dispatchLoop() {
	for {
		select {
		case <-c.done:
			return
		case d := <-c.inbox:
			if d.msg != nil {
				c.dispatchMessage(*d.msg)
				continue
			}
			c.dispatchState(d.state)
		}
	}
}

func (c *Channel) dispatchMessage(msg Message) {
	c.mu.Lock()
	regs := append([]registration(nil), c.handlers[msg.Event]...)
	c.mu.Unlock()

	if len(regs) == 0 {
		c.logger.Debug("no handler for event", "event", msg.Event)
		return
	}

	for _, r := range regs {
		if !c.registered(msg.Event, r.id) {
			continue
		}
		if err := r.fn(context.Background(), msg.Payload); err != nil {
			c.logger.Error("event handler failed", "event", msg.Event, "error", err)
		}
	}
}

func (c *Channel) dispatchState(s State) {
	c.mu.Lock()
	fns := make([]func(State), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

func (c *Channel) registered(event string, id HandlerID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range c.handlers[event] {
		if r.id == id {
			return true
		}
	}
	return false
}

func containsID(ids []HandlerID, id HandlerID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
