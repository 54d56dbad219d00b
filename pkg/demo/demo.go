// Package demo holds the sample orders used by the demo seeders.
package demo

import (
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/shopspring/decimal"

	"github.com/appetiteclub/tableside/pkg/orders"
	"github.com/appetiteclub/tableside/pkg/pricing"
)

const (
	// CreatedBy marks stored demo orders so they can be cleared.
	CreatedBy = "demo-seed"
	// SeedID identifies the demo order seed in the seed tracker.
	SeedID      = "2026-03-04_demo_orders_v1"
	Application = "order_demo"
)

type scenario struct {
	tableID  string
	customer string
	phone    string
	status   string
	age      time.Duration
	eta      time.Duration
	lines    []orders.Line
}

// Orders builds the demo orders relative to now, priced with engine.
func Orders(now time.Time, engine pricing.Engine) []*orders.Order {
	now = now.UTC()
	scenarios := scenarios()

	list := make([]*orders.Order, 0, len(scenarios))
	for _, sc := range scenarios {
		created := now.Add(-sc.age)
		totals := engine.ComputeTotals(sc.lines)

		o := &orders.Order{
			ID:            aqm.GenerateNewID(),
			OrderID:       orders.NewNumber(created),
			TableID:       sc.tableID,
			CustomerName:  sc.customer,
			CustomerPhone: sc.phone,
			Lines:         sc.lines,
			Subtotal:      totals.Subtotal,
			Tax:           totals.Tax,
			Total:         totals.Total,
			Status:        sc.status,
			CreatedAt:     created,
			UpdatedAt:     now,
		}
		if sc.eta != 0 {
			readyAt := now.Add(sc.eta)
			o.EstimatedReadyAt = &readyAt
		}

		list = append(list, o)
	}

	return list
}

// Tables lists the tables that carry demo orders.
func Tables() []string {
	var tables []string
	for _, sc := range scenarios() {
		tables = append(tables, sc.tableID)
	}
	return tables
}

func scenarios() []scenario {
	price := decimal.RequireFromString

	return []scenario{
		{
			tableID: "1", customer: "Lucia Romero", phone: "555-0101",
			status: "received", age: 2 * time.Minute,
			lines: []orders.Line{
				{ItemKey: "margherita", Name: "Margherita Pizza", UnitPrice: price("11.50"), Quantity: 1, IsVegetarian: true},
				{ItemKey: "lemonade", Name: "Lemonade", UnitPrice: price("3.25"), Quantity: 2, IsVegetarian: true},
			},
		},
		{
			tableID: "4", customer: "Tom Becker", phone: "555-0144",
			status: "preparing", age: 9 * time.Minute, eta: 12 * time.Minute,
			lines: []orders.Line{
				{ItemKey: "ribeye", Name: "Ribeye Steak", UnitPrice: price("24.90"), Quantity: 2, Notes: "medium rare"},
				{ItemKey: "fries", Name: "Fries", UnitPrice: price("4.00"), Quantity: 1, IsVegetarian: true},
			},
		},
		{
			tableID: "7", customer: "Mei Chen", phone: "555-0177",
			status: "ready", age: 21 * time.Minute, eta: -time.Minute,
			lines: []orders.Line{
				{ItemKey: "ramen", Name: "Shoyu Ramen", UnitPrice: price("13.75"), Quantity: 1},
				{ItemKey: "gyoza", Name: "Vegetable Gyoza", UnitPrice: price("6.20"), Quantity: 1, IsVegetarian: true},
			},
		},
		{
			tableID: "12", customer: "Ana Souza", phone: "555-0112",
			status: "served", age: 40 * time.Minute,
			lines: []orders.Line{
				{ItemKey: "tiramisu", Name: "Tiramisu", UnitPrice: price("7.80"), Quantity: 2, IsVegetarian: true},
				{ItemKey: "espresso", Name: "Espresso", UnitPrice: price("2.40"), Quantity: 2, IsVegetarian: true},
			},
		},
	}
}
