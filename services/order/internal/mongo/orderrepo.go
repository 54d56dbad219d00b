package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/appetiteclub/tableside/pkg/orders"
)

const ordersCollection = "orders"

var ErrOrderNotFound = errors.New("order not found")

type OrderRepo struct {
	collection *mongo.Collection
}

func NewOrderRepo(db *mongo.Database) *OrderRepo {
	return &OrderRepo{
		collection: db.Collection(ordersCollection),
	}
}

// EnsureIndexes creates the lookup indexes used by the handlers.
func (r *OrderRepo) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "order_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "table_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("cannot create order indexes: %w", err)
	}
	return nil
}

func (r *OrderRepo) Create(ctx context.Context, o *orders.Order) error {
	return r.CreateAs(ctx, o, "")
}

// CreateAs inserts o tagged with createdBy. Inserting an existing id is a
// no-op so seeds can be replayed.
func (r *OrderRepo) CreateAs(ctx context.Context, o *orders.Order, createdBy string) error {
	if o == nil {
		return fmt.Errorf("order is nil")
	}

	doc := orders.NewDocument(o, createdBy)
	filter := bson.M{"_id": doc.ID}
	update := bson.M{"$setOnInsert": doc}

	if _, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("cannot create order: %w", err)
	}

	return nil
}

func (r *OrderRepo) Get(ctx context.Context, id uuid.UUID) (*orders.Order, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

func (r *OrderRepo) GetByOrderID(ctx context.Context, orderID string) (*orders.Order, error) {
	return r.findOne(ctx, bson.M{"order_id": orderID})
}

func (r *OrderRepo) List(ctx context.Context) ([]*orders.Order, error) {
	return r.find(ctx, bson.M{})
}

func (r *OrderRepo) ListByTable(ctx context.Context, tableID string) ([]*orders.Order, error) {
	return r.find(ctx, bson.M{"table_id": tableID})
}

func (r *OrderRepo) Save(ctx context.Context, o *orders.Order) error {
	if o == nil {
		return fmt.Errorf("order is nil")
	}

	doc := orders.NewDocument(o, "")
	filter := bson.M{"_id": doc.ID}
	update := bson.M{"$set": bson.M{
		"status":             doc.Status,
		"estimated_ready_at": doc.EstimatedReadyAt,
		"updated_at":         doc.UpdatedAt,
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("cannot update order: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrOrderNotFound
	}

	return nil
}

func (r *OrderRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return fmt.Errorf("cannot delete order: %w", err)
	}

	if result.DeletedCount == 0 {
		return ErrOrderNotFound
	}

	return nil
}

func (r *OrderRepo) findOne(ctx context.Context, filter bson.M) (*orders.Order, error) {
	var doc orders.Document
	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot get order: %w", err)
	}

	return doc.Order()
}

func (r *OrderRepo) find(ctx context.Context, filter bson.M) ([]*orders.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot list orders: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []orders.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("cannot decode orders: %w", err)
	}

	result := make([]*orders.Order, 0, len(docs))
	for _, doc := range docs {
		o, err := doc.Order()
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}

	return result, nil
}
