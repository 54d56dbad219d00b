package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// OrderTablesTopic prefixes every table scoped order subject.
	OrderTablesTopic = "orders.tables"
	// AllTables is the table id an admin view joins to observe every table.
	AllTables = "*"

	// OrderEventsStream is the JetStream stream retaining order events.
	OrderEventsStream = "ORDER_EVENTS"

	EventOrderCreated = "order_created"
	EventOrderUpdated = "order_updated"
	EventOrderDeleted = "order_deleted"
)

// ErrReservedTable rejects AllTables where a single table is required.
var ErrReservedTable = errors.New("table id is reserved")

// OrderEnvelope wraps an order payload published on a table subject.
// Payload is the partial or full order as seen by the order service.
type OrderEnvelope struct {
	Event      string          `json:"event"`
	TableID    string          `json:"tableId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

// TableSubject returns the subject carrying order events for tableID.
// AllTables maps to a wildcard over every table subject.
func TableSubject(tableID string) string {
	if IsAllTables(tableID) {
		return OrderTablesTopic + ".*"
	}
	return OrderTablesTopic + "." + subjectToken(tableID)
}

// IsAllTables reports whether tableID names every table rather than one.
func IsAllTables(tableID string) bool {
	return strings.TrimSpace(tableID) == AllTables
}

// AllTablesSubject matches the subjects of every table.
func AllTablesSubject() string {
	return TableSubject(AllTables)
}

// NewOrderEnvelope marshals payload and wraps it for tableID.
func NewOrderEnvelope(name, tableID string, payload interface{}) (OrderEnvelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return OrderEnvelope{}, fmt.Errorf("cannot encode %s payload: %w", name, err)
	}

	return OrderEnvelope{
		Event:      name,
		TableID:    tableID,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}, nil
}

// DecodeOrderEnvelope parses a message published on a table subject.
func DecodeOrderEnvelope(data []byte) (OrderEnvelope, error) {
	var env OrderEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return OrderEnvelope{}, fmt.Errorf("cannot decode order envelope: %w", err)
	}

	if env.Event == "" {
		return OrderEnvelope{}, errors.New("order envelope without event name")
	}

	return env, nil
}

// subjectToken turns a table id into a single NATS subject token. Letters,
// digits and '-' pass through; every other byte, '_' included, is written as
// %XX, so distinct ids never share a token. The empty id maps to "_".
func subjectToken(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return "_"
	}

	var b strings.Builder
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}
