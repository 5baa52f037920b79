package database

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrNoDocuments is returned when a lookup or conditional update matches nothing.
var ErrNoDocuments = mongo.ErrNoDocuments

// ErrDuplicateKey is returned by the in-memory backend on a unique key clash.
var ErrDuplicateKey = errors.New("duplicate key")

func IsDuplicateKey(err error) bool {
	return errors.Is(err, ErrDuplicateKey) || mongo.IsDuplicateKeyError(err)
}

// Update is an atomic single-document update.
type Update struct {
	Set      bson.M
	Unset    []string
	Inc      bson.M
	AddToSet bson.M
	// Pull removes array elements; the value is either a literal or a query on the element.
	Pull bson.M
}

func (u Update) IsEmpty() bool {
	return len(u.Set) == 0 && len(u.Unset) == 0 && len(u.Inc) == 0 && len(u.AddToSet) == 0 && len(u.Pull) == 0
}

// Document renders the update in MongoDB operator form, omitting empty operators.
func (u Update) Document() bson.M {
	doc := bson.M{}
	if len(u.Set) > 0 {
		doc["$set"] = u.Set
	}
	if len(u.Unset) > 0 {
		unset := bson.M{}
		for _, field := range u.Unset {
			unset[field] = ""
		}
		doc["$unset"] = unset
	}
	if len(u.Inc) > 0 {
		doc["$inc"] = u.Inc
	}
	if len(u.AddToSet) > 0 {
		doc["$addToSet"] = u.AddToSet
	}
	if len(u.Pull) > 0 {
		doc["$pull"] = u.Pull
	}
	return doc
}

type FindOptions struct {
	SortField string
	SortDesc  bool
	Limit     int64
}

// Collection is the document-store surface the typed repositories are built on.
// Every write touches exactly one document and is atomic on it.
type Collection interface {
	InsertOne(ctx context.Context, doc any) error
	FindOne(ctx context.Context, filter bson.M, out any) error
	Find(ctx context.Context, filter bson.M, opts FindOptions, out any) error
	// FindOneAndUpdate applies update to the first document matching filter and
	// decodes the post-update document into out.
	FindOneAndUpdate(ctx context.Context, filter bson.M, update Update, out any) error
	UpdateOne(ctx context.Context, filter bson.M, update Update) (int64, error)
	DeleteOne(ctx context.Context, filter bson.M) (int64, error)
	CountDocuments(ctx context.Context, filter bson.M) (int64, error)
}

type Database interface {
	Collection(name string) Collection
	Ping(ctx context.Context) error
}
