package order

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
	"github.com/aquamarinepk/aqm/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/appetiteclub/tableside/pkg/orders"
	"github.com/appetiteclub/tableside/pkg/pricing"
)

const MaxBodyBytes = 1 << 20

type Handler struct {
	logger    aqm.Logger
	config    *aqm.Config
	tlm       *telemetry.HTTP
	orderRepo OrderRepo
	pricing   pricing.Engine
	events    *EventPublisher
	now       func() time.Time
}

type HandlerDeps struct {
	OrderRepo OrderRepo
	Pricing   pricing.Engine
	Publisher events.Publisher
}

func NewHandler(hd HandlerDeps, config *aqm.Config, logger aqm.Logger) *Handler {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}

	return &Handler{
		config:    config,
		logger:    logger,
		tlm:       telemetry.NewHTTP(),
		orderRepo: hd.OrderRepo,
		pricing:   hd.Pricing,
		events:    NewEventPublisher(hd.Publisher, logger),
		now:       time.Now,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.CreateOrder)
		r.Get("/", h.ListOrders)
		r.Get("/{id}", h.GetOrder)
		r.Patch("/{id}/status", h.UpdateOrderStatus)
		r.Delete("/{id}", h.DeleteOrder)
	})
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CreateOrder")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	var req orders.CreateRequest
	if !h.decodePayload(w, r, log, &req) {
		return
	}

	if msgs := ValidateCreate(req); len(msgs) > 0 {
		log.Debug("invalid create order request", "errors", msgs)
		aqm.RespondError(w, http.StatusBadRequest, strings.Join(msgs, "; "))
		return
	}

	order := BuildOrder(req, h.pricing, h.now())

	if err := h.orderRepo.Create(ctx, order); err != nil {
		log.Error("cannot create order", "error", err)
		aqm.RespondError(w, http.StatusInternalServerError, "Could not create order")
		return
	}

	h.events.Created(ctx, order)
	log.Info("order created", "order_id", order.OrderID, "table_id", order.TableID, "total", order.Total.StringFixed(2))

	links := aqm.RESTfulLinksFor(order)
	w.WriteHeader(http.StatusCreated)
	aqm.RespondSuccess(w, order, links...)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetOrder")
	defer finish()

	log := h.log(r)

	order, ok := h.findOrder(w, r, log)
	if !ok {
		return
	}

	links := aqm.RESTfulLinksFor(order)
	aqm.RespondSuccess(w, order, links...)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListOrders")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	var list []*orders.Order
	var err error

	if tableID := strings.TrimSpace(r.URL.Query().Get("table")); tableID != "" {
		list, err = h.orderRepo.ListByTable(ctx, tableID)
	} else {
		list, err = h.orderRepo.List(ctx)
	}

	if err != nil {
		log.Error("error retrieving orders", "error", err)
		aqm.RespondError(w, http.StatusInternalServerError, "Could not retrieve orders")
		return
	}

	if list == nil {
		list = []*orders.Order{}
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})

	aqm.RespondCollection(w, list, "order")
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateOrderStatus")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	var req orders.StatusUpdate
	if !h.decodePayload(w, r, log, &req) {
		return
	}

	order, ok := h.findOrder(w, r, log)
	if !ok {
		return
	}

	previous := order.Status
	if _, err := ApplyStatus(order, req, h.now()); err != nil {
		log.Debug("invalid status", "status", req.Status)
		aqm.RespondError(w, http.StatusBadRequest, "Invalid status")
		return
	}

	if err := h.orderRepo.Save(ctx, order); err != nil {
		log.Error("cannot update order", "error", err)
		aqm.RespondError(w, http.StatusInternalServerError, "Could not update order")
		return
	}

	h.events.StatusChanged(ctx, order)
	log.Info("order status changed", "order_id", order.OrderID, "from", previous, "to", order.Status)

	links := aqm.RESTfulLinksFor(order)
	aqm.RespondSuccess(w, order, links...)
}

func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.DeleteOrder")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	order, ok := h.findOrder(w, r, log)
	if !ok {
		return
	}

	if err := h.orderRepo.Delete(ctx, order.ID); err != nil {
		log.Error("cannot delete order", "error", err)
		aqm.RespondError(w, http.StatusInternalServerError, "Could not delete order")
		return
	}

	h.events.Deleted(ctx, order)
	log.Info("order deleted", "order_id", order.OrderID)

	w.WriteHeader(http.StatusNoContent)
}

// findOrder resolves the id path parameter as a record id first and as an
// order number otherwise. It answers the request when nothing is found.
func (h *Handler) findOrder(w http.ResponseWriter, r *http.Request, log aqm.Logger) (*orders.Order, bool) {
	idStr := strings.TrimSpace(chi.URLParam(r, "id"))
	if idStr == "" {
		log.Debug("missing id parameter")
		aqm.RespondError(w, http.StatusBadRequest, "Missing id parameter")
		return nil, false
	}

	order, err := h.lookup(r.Context(), idStr)
	if err != nil {
		log.Error("error loading order", "error", err, "id", idStr)
		aqm.RespondError(w, http.StatusInternalServerError, "Could not load order")
		return nil, false
	}

	if order == nil {
		aqm.RespondError(w, http.StatusNotFound, "Order not found")
		return nil, false
	}

	return order, true
}

func (h *Handler) lookup(ctx context.Context, id string) (*orders.Order, error) {
	if parsed, err := uuid.Parse(id); err == nil {
		order, err := h.orderRepo.Get(ctx, parsed)
		if err != nil || order != nil {
			return order, err
		}
	}
	return h.orderRepo.GetByOrderID(ctx, id)
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
