package tableside

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"

	"github.com/appetiteclub/tableside/pkg/event"
	"github.com/appetiteclub/tableside/pkg/tracking"
)

// AdminFeed keeps the board subscribed to the events of every table for the
// lifetime of the service, and polls it every interval.
type AdminFeed struct {
	board    *tracking.Board
	session  Session
	interval time.Duration
	logger   aqm.Logger

	mu        sync.Mutex
	unbind    func()
	stopWatch context.CancelFunc
	watchDone chan struct{}
}

func NewAdminFeed(board *tracking.Board, session Session, interval time.Duration, logger aqm.Logger) *AdminFeed {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}

	return &AdminFeed{
		board:    board,
		session:  session,
		interval: interval,
		logger:   logger,
	}
}

// Start seeds the board and connects the session. An unreachable
// order-of-record is logged; the board reloads on every connection.
func (f *AdminFeed) Start(ctx context.Context) error {
	f.mu.Lock()
	f.unbind = f.board.Bind(f.session)
	f.mu.Unlock()

	if err := f.session.SubscribeTable(event.AllTables); err != nil {
		return fmt.Errorf("cannot join all tables: %w", err)
	}

	if err := f.board.Load(ctx); err != nil {
		f.logger.Info("initial board load failed", "error", err)
	}

	if err := f.session.Connect(context.Background()); err != nil {
		return fmt.Errorf("cannot connect admin feed: %w", err)
	}

	if f.interval > 0 {
		watchCtx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		f.mu.Lock()
		f.stopWatch = cancel
		f.watchDone = done
		f.mu.Unlock()

		go func() {
			defer close(done)
			f.board.Watch(watchCtx, f.interval)
		}()
	}

	f.logger.Info("admin feed started", "poll_interval", f.interval.String())
	return nil
}

func (f *AdminFeed) Stop(ctx context.Context) error {
	f.mu.Lock()
	unbind := f.unbind
	f.unbind = nil
	stopWatch, watchDone := f.stopWatch, f.watchDone
	f.stopWatch, f.watchDone = nil, nil
	f.mu.Unlock()

	if stopWatch != nil {
		stopWatch()
		<-watchDone
	}
	if unbind != nil {
		unbind()
	}

	f.logger.Info("admin feed stopped")
	return f.session.Close()
}
