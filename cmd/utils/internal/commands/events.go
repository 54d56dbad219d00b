package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"

	"github.com/appetiteclub/tableside/pkg"
	"github.com/appetiteclub/tableside/pkg/event"
	"github.com/appetiteclub/tableside/pkg/orders"
)

// ReplayEvents prints the order events retained in the JetStream stream,
// oldest first. replay.table narrows the output to one table.
func ReplayEvents(ctx context.Context, config *aqm.Config, logger aqm.Logger, out io.Writer) error {
	limit := 0
	if raw, _ := config.GetString("replay.limit"); strings.TrimSpace(raw) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("invalid replay.limit %q: %w", raw, err)
		}
		limit = n
	}

	stream, err := pkg.NewNATSStream(ctx, pkg.NATSStreamConfig{
		URL:        config.GetStringOrDef("nats.url", defaultNATSURL),
		Name:       connectionName,
		StreamName: event.OrderEventsStream,
		Subjects:   []string{event.OrderTablesTopic + ".>"},
		MaxAge:     24 * time.Hour,
	})
	if err != nil {
		return err
	}
	defer stream.Close()

	subject := subjectFor(config)
	messages, err := stream.Replay(ctx, subject, limit)
	if err != nil {
		return err
	}

	for _, msg := range messages {
		fmt.Fprintln(out, formatStreamMessage(msg))
	}

	logger.Info("Replayed order events", "subject", subject, "count", len(messages))
	return nil
}

// WatchEvents prints live order events until ctx ends.
func WatchEvents(ctx context.Context, config *aqm.Config, logger aqm.Logger, out io.Writer) error {
	sub, err := pkg.NewNATSSubscriber(config.GetStringOrDef("nats.url", defaultNATSURL), connectionName, logger)
	if err != nil {
		return err
	}
	defer sub.Close()

	subject := subjectFor(config)
	err = sub.Subscribe(ctx, subject, func(ctx context.Context, data []byte) error {
		fmt.Fprintln(out, time.Now().UTC().Format(time.RFC3339), formatEnvelope(data))
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("Watching order events", "subject", subject)
	<-ctx.Done()
	return nil
}

func subjectFor(config *aqm.Config) string {
	table, _ := config.GetString("replay.table")
	if strings.TrimSpace(table) == "" {
		return event.OrderTablesTopic + ".>"
	}
	return event.TableSubject(table)
}

func formatStreamMessage(msg events.StreamMessage) string {
	at := time.Unix(0, msg.Timestamp).UTC().Format(time.RFC3339)
	return fmt.Sprintf("#%d %s %s", msg.Sequence, at, formatEnvelope(msg.Data))
}

func formatEnvelope(data []byte) string {
	env, err := event.DecodeOrderEnvelope(data)
	if err != nil {
		return fmt.Sprintf("undecodable event: %v", err)
	}

	line := fmt.Sprintf("%s table=%s", env.Event, env.TableID)

	patch, err := orders.DecodePatch(env.Payload)
	if err != nil {
		return line
	}
	if id := patch.Identifier(); id != "" {
		line += " order=" + id
	}
	if patch.Status != nil {
		line += " status=" + *patch.Status
	}
	return line
}
