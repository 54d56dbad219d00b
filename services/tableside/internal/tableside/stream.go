package tableside

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/appetiteclub/tableside/pkg/event"
	"github.com/appetiteclub/tableside/pkg/realtime"
	"github.com/appetiteclub/tableside/pkg/tracking"
)

const (
	eventOrderView  = "order-view"
	eventBoard      = "board"
	eventConnection = "connection"

	retryMillis = 2000
)

type connectionState struct {
	State    string `json:"state"`
	Degraded bool   `json:"degraded"`
}

// StreamOrder pushes the tracking view of one order. Each stream owns a
// realtime session joined to the order's table and a projector bound to it;
// both go away with the client.
func (h *Handler) StreamOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	subscriberID := uuid.New().String()
	log := h.log(r).With("subscriber_id", subscriberID)

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	proj := tracking.NewProjector(orderID, h.orders, log)

	if err := proj.Load(ctx); err != nil {
		h.respondLoadError(w, log, err)
		return
	}

	tableID := strings.TrimSpace(r.URL.Query().Get("table"))
	if tableID == "" {
		tableID = proj.Current().TableID
	}
	if event.IsAllTables(tableID) {
		log.Debug("diner stream cannot join every table", "table_id", tableID)
		aqm.RespondError(w, http.StatusBadRequest, "Invalid table")
		return
	}

	session := h.sessions()
	defer session.Close()

	unbind := proj.Bind(session)
	defer unbind()

	states := make(chan realtime.State, 4)
	stopStates := session.OnStateChange(func(s realtime.State) {
		select {
		case states <- s:
		default:
		}
	})
	defer stopStates()

	changes, stopChanges := proj.Changes()
	defer stopChanges()

	if err := session.SubscribeTable(tableID); err != nil {
		log.Error("cannot join table", "table_id", tableID, "error", err)
		aqm.RespondError(w, http.StatusBadRequest, "Invalid table")
		return
	}
	if err := session.Connect(ctx); err != nil {
		log.Error("cannot open realtime session", "error", err)
		aqm.RespondError(w, http.StatusServiceUnavailable, "Realtime unavailable")
		return
	}

	go proj.Watch(ctx, h.pollInterval)

	log.Info("new order stream", "order_id", orderID, "table_id", tableID)
	startStream(w)
	h.sendJSON(w, log, eventOrderView, proj.View())

	h.pump(ctx, w, log, changes, states, func() {
		h.sendJSON(w, log, eventOrderView, proj.View())
	})

	log.Info("order stream closed", "order_id", orderID)
}

// StreamBoard pushes the admin board after every change.
func (h *Handler) StreamBoard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subscriberID := uuid.New().String()
	log := h.log(r).With("subscriber_id", subscriberID)

	changes, stop := h.board.Changes()
	defer stop()

	log.Info("new board stream")
	startStream(w)
	h.sendJSON(w, log, eventBoard, h.board.Views())

	h.pump(ctx, w, log, changes, nil, func() {
		h.sendJSON(w, log, eventBoard, h.board.Views())
	})

	log.Info("board stream closed")
}

func (h *Handler) pump(ctx context.Context, w http.ResponseWriter, log aqm.Logger, changes <-chan struct{}, states <-chan realtime.State, send func()) {
	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flush(w)

		case <-changes:
			send()

		case s := <-states:
			h.sendJSON(w, log, eventConnection, connectionState{
				State:    s.String(),
				Degraded: s == realtime.StateDegraded,
			})
		}
	}
}

func startStream(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	fmt.Fprintf(w, ": connected\n\n")
	fmt.Fprintf(w, "retry: %d\n\n", retryMillis)
	flush(w)
}

func (h *Handler) sendJSON(w http.ResponseWriter, log aqm.Logger, eventType string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error("cannot encode stream event", "event", eventType, "error", err)
		return
	}
	sendSSEEvent(w, eventType, string(data))
}

// sendSSEEvent writes one event, prefixing every data line.
func sendSSEEvent(w http.ResponseWriter, eventType string, data string) {
	data = strings.TrimSpace(data)

	fmt.Fprintf(w, "event: %s\n", eventType)
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprintf(w, "\n")

	flush(w)
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
