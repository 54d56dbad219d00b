package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/aquamarinepk/aqm"

	"github.com/appetiteclub/tableside/pkg/enums/orderstatus"
	"github.com/appetiteclub/tableside/pkg/event"
	"github.com/appetiteclub/tableside/pkg/orders"
	"github.com/appetiteclub/tableside/pkg/pricing"
)

// ValidateCreate lists every problem with a create request.
func ValidateCreate(req orders.CreateRequest) []string {
	var msgs []string

	if strings.TrimSpace(req.TableID) == "" {
		msgs = append(msgs, "tableId is required")
	} else if event.IsAllTables(req.TableID) {
		msgs = append(msgs, "tableId is reserved")
	}
	if strings.TrimSpace(req.CustomerName) == "" {
		msgs = append(msgs, "customerName is required")
	}
	if strings.TrimSpace(req.CustomerPhone) == "" {
		msgs = append(msgs, "customerPhone is required")
	}
	if len(req.Lines) == 0 {
		msgs = append(msgs, "at least one line is required")
	}

	for i, l := range req.Lines {
		if strings.TrimSpace(l.ItemKey) == "" {
			msgs = append(msgs, fmt.Sprintf("lines[%d].menuItemId is required", i))
		}
		if l.Quantity <= 0 {
			msgs = append(msgs, fmt.Sprintf("lines[%d].qty must be positive", i))
		}
		if l.UnitPrice.IsNegative() {
			msgs = append(msgs, fmt.Sprintf("lines[%d].price cannot be negative", i))
		}
	}

	return msgs
}

// BuildOrder turns a validated request into a new order priced server side.
func BuildOrder(req orders.CreateRequest, engine pricing.Engine, now time.Time) *orders.Order {
	lines := make([]orders.Line, len(req.Lines))
	for i, l := range req.Lines {
		l.ItemKey = strings.TrimSpace(l.ItemKey)
		l.Notes = strings.TrimSpace(l.Notes)
		lines[i] = l
	}

	totals := engine.ComputeTotals(lines)
	now = now.UTC()

	return &orders.Order{
		ID:            aqm.GenerateNewID(),
		OrderID:       orders.NewNumber(now),
		TableID:       strings.TrimSpace(req.TableID),
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		Lines:         lines,
		Subtotal:      totals.Subtotal,
		Tax:           totals.Tax,
		Total:         totals.Total,
		Status:        orderstatus.Statuses.Received.Name,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// ApplyStatus validates and applies a status change. It returns the
// normalized status or an error for unknown values.
func ApplyStatus(o *orders.Order, update orders.StatusUpdate, now time.Time) (string, error) {
	status := orderstatus.ByName(update.Status)
	if status == nil {
		return "", fmt.Errorf("unknown status %q", update.Status)
	}

	now = now.UTC()
	o.Status = status.Name
	if readyAt := update.ReadyAt(now); readyAt != nil {
		o.EstimatedReadyAt = readyAt
	}
	o.UpdatedAt = now

	return status.Name, nil
}

// statusChange is the partial payload of order_updated.
type statusChange struct {
	ID               string     `json:"_id"`
	OrderID          string     `json:"orderId"`
	TableID          string     `json:"tableId"`
	Status           string     `json:"status"`
	EstimatedReadyAt *time.Time `json:"estimatedReadyAt,omitempty"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

func newStatusChange(o *orders.Order) statusChange {
	return statusChange{
		ID:               o.ID.String(),
		OrderID:          o.OrderID,
		TableID:          o.TableID,
		Status:           o.Status,
		EstimatedReadyAt: o.EstimatedReadyAt,
		UpdatedAt:        o.UpdatedAt,
	}
}

// removal is the payload of order_deleted.
type removal struct {
	ID      string `json:"_id"`
	OrderID string `json:"orderId"`
	TableID string `json:"tableId"`
}
