package mongodriver

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection is the set of collection operations the query builder
// needs. Reads go through Aggregate, writes through the rest.
type Collection interface {
	Name() string
	Aggregate(ctx context.Context, pipeline mongo.Pipeline, results any) error
	InsertOne(ctx context.Context, doc any) (any, error)
	InsertMany(ctx context.Context, docs []any) ([]any, error)
	UpdateMany(ctx context.Context, filter, update any) (UpdateResult, error)
	FindOneAndUpdate(ctx context.Context, filter, update any, result any) error
	DeleteMany(ctx context.Context, filter any) (int64, error)
}

type UpdateResult struct {
	Matched  int64
	Modified int64
}

// Wrap adapts a driver collection.
func Wrap(c *mongo.Collection) Collection {
	return &collection{c: c}
}

type collection struct {
	c *mongo.Collection
}

func (c *collection) Name() string {
	return c.c.Name()
}

// Aggregate runs the pipeline and decodes every document into results,
// which must be a pointer to a slice.
func (c *collection) Aggregate(ctx context.Context, pipeline mongo.Pipeline, results any) error {
	cursor, err := c.c.Aggregate(ctx, pipeline)
	if err != nil {
		return fmt.Errorf("mongodriver: aggregate: %w", err)
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, results); err != nil {
		return fmt.Errorf("mongodriver: aggregate decode: %w", err)
	}
	return nil
}

func (c *collection) InsertOne(ctx context.Context, doc any) (any, error) {
	res, err := c.c.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("mongodriver: insertOne: %w", err)
	}
	return res.InsertedID, nil
}

func (c *collection) InsertMany(ctx context.Context, docs []any) ([]any, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	res, err := c.c.InsertMany(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("mongodriver: insertMany: %w", err)
	}
	return res.InsertedIDs, nil
}

func (c *collection) UpdateMany(ctx context.Context, filter, update any) (UpdateResult, error) {
	res, err := c.c.UpdateMany(ctx, filter, update)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("mongodriver: updateMany: %w", err)
	}
	return UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

// FindOneAndUpdate applies update to the first match and decodes the
// updated document into result. It returns mongo.ErrNoDocuments (wrapped)
// when nothing matched.
func (c *collection) FindOneAndUpdate(ctx context.Context, filter, update any, result any) error {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := c.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(result); err != nil {
		return fmt.Errorf("mongodriver: findOneAndUpdate: %w", err)
	}
	return nil
}

func (c *collection) DeleteMany(ctx context.Context, filter any) (int64, error) {
	res, err := c.c.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("mongodriver: deleteMany: %w", err)
	}
	return res.DeletedCount, nil
}
