package orders

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Line is one orderable entry. The JSON names follow the public order API.
type Line struct {
	ItemKey      string          `json:"menuItemId"`
	Name         string          `json:"name"`
	UnitPrice    decimal.Decimal `json:"price"`
	Quantity     int             `json:"qty"`
	Notes        string          `json:"notes,omitempty"`
	IsVegetarian bool            `json:"veg"`
}

// LineKey identifies a line inside a cart. Two lines with the same item but
// different notes are distinct.
type LineKey struct {
	ItemKey string
	Notes   string
}

// NewLineKey builds a key from raw values, normalizing surrounding spaces.
func NewLineKey(itemKey, notes string) LineKey {
	return LineKey{
		ItemKey: strings.TrimSpace(itemKey),
		Notes:   strings.TrimSpace(notes),
	}
}

func (l Line) Key() LineKey {
	return NewLineKey(l.ItemKey, l.Notes)
}

// Amount is unit price times quantity.
func (l Line) Amount() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order is the order-of-record: an immutable contents and price snapshot
// plus a mutable status envelope.
type Order struct {
	ID               uuid.UUID       `json:"_id"`
	OrderID          string          `json:"orderId"`
	TableID          string          `json:"tableId"`
	CustomerName     string          `json:"customerName"`
	CustomerPhone    string          `json:"customerPhone"`
	Lines            []Line          `json:"lines"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	Tax              decimal.Decimal `json:"tax"`
	Total            decimal.Decimal `json:"total"`
	Status           string          `json:"status"`
	EstimatedReadyAt *time.Time      `json:"estimatedReadyAt,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

func (o *Order) GetID() uuid.UUID {
	return o.ID
}

func (o *Order) ResourceType() string {
	return "order"
}

// Key returns the identifier viewers use for the order: orderId when
// assigned, the storage id otherwise.
func (o *Order) Key() string {
	if o.OrderID != "" {
		return o.OrderID
	}
	if o.ID != uuid.Nil {
		return o.ID.String()
	}
	return ""
}

// Clone returns a deep copy safe to hand out to readers.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}

	c := *o
	if o.Lines != nil {
		c.Lines = make([]Line, len(o.Lines))
		copy(c.Lines, o.Lines)
	}
	if o.EstimatedReadyAt != nil {
		eta := *o.EstimatedReadyAt
		c.EstimatedReadyAt = &eta
	}
	return &c
}

// HasID reports whether id names this order, either as orderId or _id.
func (o *Order) HasID(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	if o.OrderID != "" && id == o.OrderID {
		return true
	}
	return o.ID != uuid.Nil && strings.EqualFold(id, o.ID.String())
}
