package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/seed"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/appetiteclub/tableside/pkg/demo"
	"github.com/appetiteclub/tableside/pkg/orders"
	"github.com/appetiteclub/tableside/pkg/pricing"
)

// DemoWriter stores orders tagged with their author so demo data can be
// cleared later.
type DemoWriter interface {
	CreateAs(ctx context.Context, order *orders.Order, createdBy string) error
}

// ApplyDemoSeeds creates a handful of orders spread across the lifecycle.
func ApplyDemoSeeds(ctx context.Context, writer DemoWriter, engine pricing.Engine, db *mongo.Database, logger aqm.Logger) error {
	if db == nil {
		return errors.New("database is required for demo seeding")
	}
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}

	demoSeeds := buildDemoOrderSeeds(writer, engine, logger)
	tracker := seed.NewMongoTracker(db)

	logger.Info("Applying demo order seeds")
	if err := seed.Apply(ctx, tracker, demoSeeds, demo.Application); err != nil {
		return err
	}
	logger.Info("Demo order seeds applied successfully")
	return nil
}

func buildDemoOrderSeeds(writer DemoWriter, engine pricing.Engine, logger aqm.Logger) []seed.Seed {
	return []seed.Seed{
		{
			ID:          demo.SeedID,
			Description: "Create demo orders for the tableside tracking screens",
			Run: func(ctx context.Context) error {
				return SeedDemoOrders(ctx, writer, engine, time.Now(), logger)
			},
		},
	}
}

// SeedDemoOrders inserts the demo orders relative to now.
func SeedDemoOrders(ctx context.Context, writer DemoWriter, engine pricing.Engine, now time.Time, logger aqm.Logger) error {
	if writer == nil {
		return errors.New("order repository is required for demo seeding")
	}
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}

	for _, o := range demo.Orders(now, engine) {
		if err := writer.CreateAs(ctx, o, demo.CreatedBy); err != nil {
			return fmt.Errorf("create demo order for table %s: %w", o.TableID, err)
		}
		logger.Debug("demo order created", "order_id", o.OrderID, "table_id", o.TableID, "status", o.Status)
	}

	logger.Info("Demo orders created successfully")
	return nil
}

func DemoSeedingFunc(seedCtx context.Context, writer DemoWriter, engine pricing.Engine, db *mongo.Database, logger aqm.Logger) func(ctx context.Context) error {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}

	return func(ctx context.Context) error {
		logger.Info("Starting demo order seeding in background")
		go func() {
			if err := ApplyDemoSeeds(seedCtx, writer, engine, db, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("demo order seeds failed", "error", err)
			} else if err == nil {
				logger.Info("Demo order seeding completed")
			}
		}()
		return nil
	}
}
