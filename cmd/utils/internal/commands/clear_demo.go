package commands

import (
	"context"
	"fmt"

	"github.com/aquamarinepk/aqm"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/appetiteclub/tableside/cmd/utils/internal/seeding"
	"github.com/appetiteclub/tableside/pkg/demo"
)

// ClearDemo removes demo orders and the tracker entry so seed-demo runs again.
func ClearDemo(ctx context.Context, config *aqm.Config, logger aqm.Logger) error {
	logger.Info("Starting demo data cleanup...")

	client, db, err := connect(ctx, config, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(ctx)

	ordersResult, err := db.Collection(seeding.OrdersCollection).DeleteMany(ctx, bson.M{"created_by": demo.CreatedBy})
	if err != nil {
		return fmt.Errorf("delete demo orders: %w", err)
	}
	logger.Info("Deleted demo orders", "count", ordersResult.DeletedCount)

	trackerResult, err := db.Collection(seedsCollection).DeleteOne(ctx, bson.M{"_id": demo.SeedID})
	if err != nil {
		return fmt.Errorf("delete order seed tracker: %w", err)
	}
	logger.Info("Cleared order seed tracker", "deleted", trackerResult.DeletedCount)

	return nil
}
