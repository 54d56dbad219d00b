package orders

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Patch is a partial order as carried by order_created and order_updated
// events. Absent fields decode to nil and never overwrite known values.
type Patch struct {
	OrderID          *string          `json:"orderId"`
	ID               *string          `json:"_id"`
	TableID          *string          `json:"tableId"`
	CustomerName     *string          `json:"customerName"`
	CustomerPhone    *string          `json:"customerPhone"`
	Lines            []Line           `json:"lines"`
	Subtotal         *decimal.Decimal `json:"subtotal"`
	Tax              *decimal.Decimal `json:"tax"`
	Total            *decimal.Decimal `json:"total"`
	Status           *string          `json:"status"`
	EstimatedReadyAt *time.Time       `json:"estimatedReadyAt"`
	CreatedAt        *time.Time       `json:"createdAt"`
	UpdatedAt        *time.Time       `json:"updatedAt"`
}

// DecodePatch parses an event payload. Unknown fields are ignored.
func DecodePatch(payload []byte) (Patch, error) {
	var p Patch
	if err := json.Unmarshal(payload, &p); err != nil {
		return Patch{}, fmt.Errorf("cannot decode order patch: %w", err)
	}
	return p, nil
}

// Identifier returns the id the patch refers to, orderId first.
func (p Patch) Identifier() string {
	if id := strValue(p.OrderID); id != "" {
		return id
	}
	return strValue(p.ID)
}

// Matches reports whether the patch targets o. orderId is canonical: when
// both sides carry one they alone decide. Otherwise _id is compared against
// either identifier of the order.
func (p Patch) Matches(o *Order) bool {
	if o == nil {
		return false
	}

	orderID := strValue(p.OrderID)
	recordID := strValue(p.ID)

	if orderID != "" && o.OrderID != "" {
		return orderID == o.OrderID
	}
	if recordID != "" {
		return o.HasID(recordID)
	}
	return orderID != "" && o.HasID(orderID)
}

// Apply merges the fields present in p onto o. Lines and money are only
// replaced by non-empty values; identifiers are adopted when o lacks them.
func (o *Order) Apply(p Patch) {
	if o.OrderID == "" {
		o.OrderID = strValue(p.OrderID)
	}
	if o.ID == uuid.Nil && p.ID != nil {
		if id, err := uuid.Parse(strings.TrimSpace(*p.ID)); err == nil {
			o.ID = id
		}
	}

	if v := strValue(p.TableID); v != "" {
		o.TableID = v
	}
	if p.CustomerName != nil {
		o.CustomerName = *p.CustomerName
	}
	if p.CustomerPhone != nil {
		o.CustomerPhone = *p.CustomerPhone
	}

	if len(p.Lines) > 0 {
		o.Lines = make([]Line, len(p.Lines))
		copy(o.Lines, p.Lines)
	}
	if p.Subtotal != nil {
		o.Subtotal = *p.Subtotal
	}
	if p.Tax != nil {
		o.Tax = *p.Tax
	}
	if p.Total != nil {
		o.Total = *p.Total
	}

	if v := strValue(p.Status); v != "" {
		o.Status = v
	}
	if p.EstimatedReadyAt != nil {
		eta := *p.EstimatedReadyAt
		o.EstimatedReadyAt = &eta
	}
	if p.CreatedAt != nil && !p.CreatedAt.IsZero() {
		o.CreatedAt = *p.CreatedAt
	}
	if p.UpdatedAt != nil && !p.UpdatedAt.IsZero() {
		o.UpdatedAt = *p.UpdatedAt
	}
}

// ToOrder builds an order from a patch, for viewers that learn about an
// order through its creation event.
func (p Patch) ToOrder() *Order {
	o := &Order{}
	o.Apply(p)
	return o
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
