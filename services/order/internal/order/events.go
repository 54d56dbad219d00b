package order

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"

	"github.com/appetiteclub/tableside/pkg/event"
	"github.com/appetiteclub/tableside/pkg/orders"
)

// EventPublisher announces order changes on the subject of the order's table.
type EventPublisher struct {
	publisher events.Publisher
	logger    aqm.Logger
}

func NewEventPublisher(publisher events.Publisher, logger aqm.Logger) *EventPublisher {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &EventPublisher{
		publisher: publisher,
		logger:    logger,
	}
}

func (p *EventPublisher) Created(ctx context.Context, o *orders.Order) {
	p.publish(ctx, event.EventOrderCreated, o.TableID, o)
}

func (p *EventPublisher) StatusChanged(ctx context.Context, o *orders.Order) {
	p.publish(ctx, event.EventOrderUpdated, o.TableID, newStatusChange(o))
}

func (p *EventPublisher) Deleted(ctx context.Context, o *orders.Order) {
	p.publish(ctx, event.EventOrderDeleted, o.TableID, removal{
		ID:      o.ID.String(),
		OrderID: o.OrderID,
		TableID: o.TableID,
	})
}

// publish never fails the caller: the order is already persisted and viewers
// recover missed events by re-fetching.
func (p *EventPublisher) publish(ctx context.Context, name, tableID string, payload interface{}) {
	if p == nil || p.publisher == nil {
		return
	}

	data, err := encodeEnvelope(name, tableID, payload)
	if err != nil {
		p.logger.Error("cannot encode order event", "event", name, "error", err)
		return
	}

	subject := event.TableSubject(tableID)
	if err := p.publisher.Publish(ctx, subject, data); err != nil {
		p.logger.Error("cannot publish order event", "event", name, "subject", subject, "error", err)
		return
	}

	p.logger.Debug("published order event", "event", name, "subject", subject)
}

func encodeEnvelope(name, tableID string, payload interface{}) ([]byte, error) {
	env, err := event.NewOrderEnvelope(name, tableID, payload)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("cannot encode %s envelope: %w", name, err)
	}
	return data, nil
}
