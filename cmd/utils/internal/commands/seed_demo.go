package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/seed"

	"github.com/appetiteclub/tableside/cmd/utils/internal/seeding"
	"github.com/appetiteclub/tableside/pkg/demo"
	"github.com/appetiteclub/tableside/pkg/pricing"
)

// SeedDemo applies the demo order seed unless the tracker says it already ran.
func SeedDemo(ctx context.Context, config *aqm.Config, logger aqm.Logger) error {
	logger.Info("Starting demo seeding process...")

	taxRate, _ := config.GetString("pricing.tax.rate")
	engine, err := pricing.ParseRate(taxRate)
	if err != nil {
		return err
	}

	client, db, err := connect(ctx, config, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(ctx)

	seeds := []seed.Seed{
		{
			ID:          demo.SeedID,
			Description: "Create demo orders for the tableside tracking screens",
			Run: func(ctx context.Context) error {
				n, err := seeding.SeedOrders(ctx, db, engine, time.Now())
				if err != nil {
					return err
				}
				logger.Info("Demo orders created", "count", n)
				return nil
			},
		},
	}

	if err := seed.Apply(ctx, seed.NewMongoTracker(db), seeds, demo.Application); err != nil {
		return fmt.Errorf("seed order demo: %w", err)
	}

	logger.Info("Order demo seeds applied")
	return nil
}
