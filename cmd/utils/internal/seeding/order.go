package seeding

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/appetiteclub/tableside/pkg/demo"
	"github.com/appetiteclub/tableside/pkg/orders"
	"github.com/appetiteclub/tableside/pkg/pricing"
)

// OrdersCollection is where the order service keeps its orders.
const OrdersCollection = "orders"

// DemoDocuments builds the stored form of the demo orders relative to now.
func DemoDocuments(now time.Time, engine pricing.Engine) []orders.Document {
	list := demo.Orders(now, engine)

	docs := make([]orders.Document, len(list))
	for i, o := range list {
		docs[i] = orders.NewDocument(o, demo.CreatedBy)
	}
	return docs
}

// SeedOrders inserts the demo orders. Existing documents are left untouched.
func SeedOrders(ctx context.Context, db *mongo.Database, engine pricing.Engine, now time.Time) (int, error) {
	collection := db.Collection(OrdersCollection)

	inserted := 0
	for _, doc := range DemoDocuments(now, engine) {
		res, err := collection.UpdateOne(ctx,
			bson.M{"order_id": doc.OrderID},
			bson.M{"$setOnInsert": doc},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return inserted, fmt.Errorf("cannot create demo order for table %s: %w", doc.TableID, err)
		}
		if res.UpsertedCount > 0 {
			inserted++
		}
	}

	return inserted, nil
}
