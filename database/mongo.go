package database

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var errEmptyUpdate = errors.New("empty update")

// MongoDatabase adapts a *mongo.Database to Database.
type MongoDatabase struct {
	db *mongo.Database
}

func NewMongoDatabase(db *mongo.Database) *MongoDatabase {
	return &MongoDatabase{db: db}
}

func (d *MongoDatabase) Collection(name string) Collection {
	return &mongoCollection{coll: d.db.Collection(name)}
}

func (d *MongoDatabase) Ping(ctx context.Context) error {
	return d.db.Client().Ping(ctx, readpref.Primary())
}

type mongoCollection struct {
	coll *mongo.Collection
}

func (c *mongoCollection) InsertOne(ctx context.Context, doc any) error {
	_, err := c.coll.InsertOne(ctx, doc)
	return err
}

func (c *mongoCollection) FindOne(ctx context.Context, filter bson.M, out any) error {
	return c.coll.FindOne(ctx, filter).Decode(out)
}

func (c *mongoCollection) Find(ctx context.Context, filter bson.M, opts FindOptions, out any) error {
	findOpts := options.Find()
	if opts.SortField != "" {
		direction := 1
		if opts.SortDesc {
			direction = -1
		}
		findOpts.SetSort(bson.D{{Key: opts.SortField, Value: direction}})
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}

	cursor, err := c.coll.Find(ctx, filter, findOpts)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	return cursor.All(ctx, out)
}

func (c *mongoCollection) FindOneAndUpdate(ctx context.Context, filter bson.M, update Update, out any) error {
	if update.IsEmpty() {
		return errEmptyUpdate
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	return c.coll.FindOneAndUpdate(ctx, filter, update.Document(), opts).Decode(out)
}

func (c *mongoCollection) UpdateOne(ctx context.Context, filter bson.M, update Update) (int64, error) {
	if update.IsEmpty() {
		return 0, errEmptyUpdate
	}
	result, err := c.coll.UpdateOne(ctx, filter, update.Document())
	if err != nil {
		return 0, err
	}
	return result.MatchedCount, nil
}

func (c *mongoCollection) DeleteOne(ctx context.Context, filter bson.M) (int64, error) {
	result, err := c.coll.DeleteOne(ctx, filter)
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

func (c *mongoCollection) CountDocuments(ctx context.Context, filter bson.M) (int64, error) {
	return c.coll.CountDocuments(ctx, filter)
}
