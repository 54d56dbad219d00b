package orders

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Document is the stored form of an order. Money is kept as decimal strings
// so no precision is lost in the database.
type Document struct {
	ID               string         `bson:"_id"`
	OrderID          string         `bson:"order_id"`
	TableID          string         `bson:"table_id"`
	CustomerName     string         `bson:"customer_name"`
	CustomerPhone    string         `bson:"customer_phone"`
	Lines            []LineDocument `bson:"lines"`
	Subtotal         string         `bson:"subtotal"`
	Tax              string         `bson:"tax"`
	Total            string         `bson:"total"`
	Status           string         `bson:"status"`
	EstimatedReadyAt *time.Time     `bson:"estimated_ready_at,omitempty"`
	CreatedAt        time.Time      `bson:"created_at"`
	UpdatedAt        time.Time      `bson:"updated_at"`
	CreatedBy        string         `bson:"created_by,omitempty"`
}

type LineDocument struct {
	MenuItemID string `bson:"menu_item_id"`
	Name       string `bson:"name"`
	Price      string `bson:"price"`
	Qty        int    `bson:"qty"`
	Notes      string `bson:"notes,omitempty"`
	Vegetarian bool   `bson:"vegetarian"`
}

// NewDocument maps o to its stored form. createdBy marks who wrote it.
func NewDocument(o *Order, createdBy string) Document {
	lines := make([]LineDocument, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = LineDocument{
			MenuItemID: l.ItemKey,
			Name:       l.Name,
			Price:      l.UnitPrice.String(),
			Qty:        l.Quantity,
			Notes:      l.Notes,
			Vegetarian: l.IsVegetarian,
		}
	}

	return Document{
		ID:               o.ID.String(),
		OrderID:          o.OrderID,
		TableID:          o.TableID,
		CustomerName:     o.CustomerName,
		CustomerPhone:    o.CustomerPhone,
		Lines:            lines,
		Subtotal:         o.Subtotal.String(),
		Tax:              o.Tax.String(),
		Total:            o.Total.String(),
		Status:           o.Status,
		EstimatedReadyAt: o.EstimatedReadyAt,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
		CreatedBy:        createdBy,
	}
}

// Order maps the stored form back to an order.
func (d Document) Order() (*Order, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid order id %q: %w", d.ID, err)
	}

	money := func(field, raw string) (decimal.Decimal, error) {
		if raw == "" {
			return decimal.Zero, nil
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid %s %q: %w", field, raw, err)
		}
		return v, nil
	}

	lines := make([]Line, len(d.Lines))
	for i, l := range d.Lines {
		price, err := money("line price", l.Price)
		if err != nil {
			return nil, err
		}
		lines[i] = Line{
			ItemKey:      l.MenuItemID,
			Name:         l.Name,
			UnitPrice:    price,
			Quantity:     l.Qty,
			Notes:        l.Notes,
			IsVegetarian: l.Vegetarian,
		}
	}

	subtotal, err := money("subtotal", d.Subtotal)
	if err != nil {
		return nil, err
	}
	tax, err := money("tax", d.Tax)
	if err != nil {
		return nil, err
	}
	total, err := money("total", d.Total)
	if err != nil {
		return nil, err
	}

	var eta *time.Time
	if d.EstimatedReadyAt != nil {
		t := d.EstimatedReadyAt.UTC()
		eta = &t
	}

	return &Order{
		ID:               id,
		OrderID:          d.OrderID,
		TableID:          d.TableID,
		CustomerName:     d.CustomerName,
		CustomerPhone:    d.CustomerPhone,
		Lines:            lines,
		Subtotal:         subtotal,
		Tax:              tax,
		Total:            total,
		Status:           d.Status,
		EstimatedReadyAt: eta,
		CreatedAt:        d.CreatedAt.UTC(),
		UpdatedAt:        d.UpdatedAt.UTC(),
	}, nil
}
