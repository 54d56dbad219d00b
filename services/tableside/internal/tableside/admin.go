package tableside

import (
	"net/http"
	"strings"

	"github.com/aquamarinepk/aqm"
	"github.com/go-chi/chi/v5"

	"github.com/appetiteclub/tableside/pkg/orders"
	"github.com/appetiteclub/tableside/pkg/tracking"
)

func (h *Handler) ListAdminOrders(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListAdminOrders")
	defer finish()

	log := h.log(r)

	if err := h.board.Load(r.Context()); err != nil {
		log.Error("cannot load orders board", "error", err)
		aqm.RespondError(w, http.StatusBadGateway, "Could not retrieve orders")
		return
	}

	aqm.RespondSuccess(w, h.board.Views())
}

// UpdateAdminOrderStatus forwards the change to the order-of-record. The
// board only moves when the resulting event arrives.
func (h *Handler) UpdateAdminOrderStatus(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateAdminOrderStatus")
	defer finish()

	log := h.log(r)

	var req orders.StatusUpdate
	if !h.decodePayload(w, r, log, &req) {
		return
	}

	req.Status = strings.TrimSpace(req.Status)
	if req.Status == "" {
		aqm.RespondError(w, http.StatusBadRequest, "status is required")
		return
	}

	id := strings.TrimSpace(chi.URLParam(r, "id"))
	order, err := h.orders.UpdateStatus(r.Context(), id, req)
	if err != nil {
		log.Error("cannot update order status", "order_id", id, "status", req.Status, "error", err)
		aqm.RespondError(w, http.StatusBadGateway, "Could not update order status")
		return
	}

	log.Info("order status updated", "order_id", order.Key(), "status", order.Status)
	aqm.RespondSuccess(w, tracking.Derive(order, h.now()))
}

func (h *Handler) DeleteAdminOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.DeleteAdminOrder")
	defer finish()

	log := h.log(r)

	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if err := h.orders.DeleteOrder(r.Context(), id); err != nil {
		log.Error("cannot delete order", "order_id", id, "error", err)
		aqm.RespondError(w, http.StatusBadGateway, "Could not delete order")
		return
	}

	log.Info("order deleted", "order_id", id)
	w.WriteHeader(http.StatusNoContent)
}
