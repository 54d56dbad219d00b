package tableside

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/telemetry"
	"github.com/go-chi/chi/v5"

	"github.com/appetiteclub/tableside/pkg/cart"
	"github.com/appetiteclub/tableside/pkg/checkout"
	"github.com/appetiteclub/tableside/pkg/event"
	"github.com/appetiteclub/tableside/pkg/orderapi"
	"github.com/appetiteclub/tableside/pkg/orders"
	"github.com/appetiteclub/tableside/pkg/pricing"
	"github.com/appetiteclub/tableside/pkg/tracking"
)

const MaxBodyBytes = 1 << 20

type Handler struct {
	logger       aqm.Logger
	config       *aqm.Config
	tlm          *telemetry.HTTP
	carts        *cart.Store
	checkout     Checkout
	orders       OrderService
	sessions     SessionFactory
	board        *tracking.Board
	pollInterval time.Duration
	keepAlive    time.Duration
	now          func() time.Time
}

type HandlerDeps struct {
	Carts        *cart.Store
	Checkout     Checkout
	Orders       OrderService
	Sessions     SessionFactory
	Board        *tracking.Board
	PollInterval time.Duration
}

func NewHandler(hd HandlerDeps, config *aqm.Config, logger aqm.Logger) *Handler {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}

	return &Handler{
		logger:       logger,
		config:       config,
		tlm:          telemetry.NewHTTP(),
		carts:        hd.Carts,
		checkout:     hd.Checkout,
		orders:       hd.Orders,
		sessions:     hd.Sessions,
		board:        hd.Board,
		pollInterval: hd.PollInterval,
		keepAlive:    30 * time.Second,
		now:          time.Now,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/tables/{tableID}", func(r chi.Router) {
		r.Get("/cart", h.GetCart)
		r.Delete("/cart", h.ClearCart)
		r.Post("/cart/lines", h.AddLine)
		r.Patch("/cart/lines", h.UpdateLine)
		r.Delete("/cart/lines", h.RemoveLine)
		r.Post("/checkout", h.Checkout)
	})

	r.Get("/orders/{orderID}/view", h.GetOrderView)
	r.Get("/orders/{orderID}/events", h.StreamOrder)

	r.Route("/admin/orders", func(r chi.Router) {
		r.Get("/", h.ListAdminOrders)
		r.Get("/events", h.StreamBoard)
		r.Patch("/{id}/status", h.UpdateAdminOrderStatus)
		r.Delete("/{id}", h.DeleteAdminOrder)
	})
}

// cartResponse adds the two decimal display strings to a snapshot.
type cartResponse struct {
	cart.Snapshot
	Display map[string]string `json:"display"`
}

func newCartResponse(snap cart.Snapshot) cartResponse {
	totals := pricing.Totals{Subtotal: snap.Subtotal, Tax: snap.Tax, Total: snap.Total}
	return cartResponse{Snapshot: snap, Display: totals.Display()}
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetCart")
	defer finish()

	c, ok := h.tableCart(w, r)
	if !ok {
		return
	}

	aqm.RespondSuccess(w, newCartResponse(c.Snapshot()))
}

func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.AddLine")
	defer finish()

	log := h.log(r)

	var line orders.Line
	if !h.decodePayload(w, r, log, &line) {
		return
	}

	c, ok := h.tableCart(w, r)
	if !ok {
		return
	}

	if err := c.Add(r.Context(), line, line.Quantity); err != nil {
		h.respondCartError(w, log, err)
		return
	}

	log.Debug("line added", "table_id", c.TableID(), "menu_item_id", line.ItemKey)
	aqm.RespondSuccess(w, newCartResponse(c.Snapshot()))
}

func (h *Handler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateLine")
	defer finish()

	log := h.log(r)

	itemKey, notes, ok := lineQuery(w, r)
	if !ok {
		return
	}

	var patch cart.LinePatch
	if !h.decodePayload(w, r, log, &patch) {
		return
	}

	c, ok := h.tableCart(w, r)
	if !ok {
		return
	}

	if err := c.Update(r.Context(), itemKey, notes, patch); err != nil {
		h.respondCartError(w, log, err)
		return
	}

	aqm.RespondSuccess(w, newCartResponse(c.Snapshot()))
}

func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.RemoveLine")
	defer finish()

	log := h.log(r)

	itemKey, notes, ok := lineQuery(w, r)
	if !ok {
		return
	}

	c, ok := h.tableCart(w, r)
	if !ok {
		return
	}

	if err := c.Remove(r.Context(), itemKey, notes); err != nil {
		h.respondCartError(w, log, err)
		return
	}

	aqm.RespondSuccess(w, newCartResponse(c.Snapshot()))
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ClearCart")
	defer finish()

	log := h.log(r)

	c, ok := h.tableCart(w, r)
	if !ok {
		return
	}

	if err := c.Clear(r.Context()); err != nil {
		h.respondCartError(w, log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Checkout")
	defer finish()

	log := h.log(r)

	var details checkout.Details
	if !h.decodePayload(w, r, log, &details) {
		return
	}

	tableID := chi.URLParam(r, "tableID")
	order, err := h.checkout.Submit(r.Context(), tableID, details)
	if err != nil {
		var verr *checkout.ValidationError
		switch {
		case errors.As(err, &verr):
			aqm.RespondError(w, http.StatusBadRequest, strings.Join(verr.Messages, "; "))
		case errors.Is(err, cart.ErrNoTable):
			aqm.RespondError(w, http.StatusBadRequest, "Missing table id")
		case errors.Is(err, event.ErrReservedTable):
			aqm.RespondError(w, http.StatusBadRequest, "Invalid table id")
		default:
			log.Error("checkout failed", "table_id", tableID, "error", err)
			aqm.RespondError(w, http.StatusBadGateway, "Could not place order")
		}
		return
	}

	log.Info("checkout completed", "table_id", tableID, "order_id", order.Key())

	w.WriteHeader(http.StatusCreated)
	aqm.RespondSuccess(w, order)
}

func (h *Handler) GetOrderView(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetOrderView")
	defer finish()

	log := h.log(r)

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	proj := tracking.NewProjector(orderID, h.orders, log)

	if err := proj.Load(r.Context()); err != nil {
		if orderMissing(err) {
			log.Debug("order not found", "order_id", orderID)
			w.WriteHeader(http.StatusNotFound)
			aqm.RespondSuccess(w, proj.View())
			return
		}
		h.respondLoadError(w, log, err)
		return
	}

	aqm.RespondSuccess(w, proj.View())
}

func orderMissing(err error) bool {
	return errors.Is(err, orderapi.ErrNotFound) || errors.Is(err, orderapi.ErrNoData)
}

func (h *Handler) respondLoadError(w http.ResponseWriter, log aqm.Logger, err error) {
	if orderMissing(err) {
		aqm.RespondError(w, http.StatusNotFound, "Order not found")
		return
	}
	log.Info("order unavailable", "error", err)
	aqm.RespondError(w, http.StatusBadGateway, "Order unavailable")
}

func (h *Handler) tableCart(w http.ResponseWriter, r *http.Request) (*cart.Cart, bool) {
	c, err := h.carts.Cart(r.Context(), chi.URLParam(r, "tableID"))
	if err != nil {
		h.respondCartError(w, h.log(r), err)
		return nil, false
	}
	return c, true
}

func (h *Handler) respondCartError(w http.ResponseWriter, log aqm.Logger, err error) {
	switch {
	case errors.Is(err, cart.ErrNoTable):
		aqm.RespondError(w, http.StatusBadRequest, "Missing table id")
	case errors.Is(err, event.ErrReservedTable):
		aqm.RespondError(w, http.StatusBadRequest, "Invalid table id")
	case errors.Is(err, cart.ErrInvalidLine):
		aqm.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error("cart operation failed", "error", err)
		aqm.RespondError(w, http.StatusInternalServerError, "Could not update cart")
	}
}

func lineQuery(w http.ResponseWriter, r *http.Request) (itemKey, notes string, ok bool) {
	q := r.URL.Query()
	itemKey = strings.TrimSpace(q.Get("item"))
	if itemKey == "" {
		aqm.RespondError(w, http.StatusBadRequest, "Missing item parameter")
		return "", "", false
	}
	return itemKey, q.Get("notes"), true
}

func (h *Handler) decodePayload(w http.ResponseWriter, r *http.Request, log aqm.Logger, dest interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Debug("failed to read request body", "error", err)
		aqm.RespondError(w, http.StatusBadRequest, "Failed to read request body")
		return false
	}

	if err := json.Unmarshal(body, dest); err != nil {
		log.Debug("failed to decode request body", "error", err)
		aqm.RespondError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return false
	}

	return true
}

func (h *Handler) log(r *http.Request) aqm.Logger {
	return h.logger.With("request_id", aqm.RequestIDFrom(r.Context()))
}
