package database

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

type testDoc struct {
	ID       string     `bson:"id"`
	Status   string     `bson:"status"`
	Owner    *string    `bson:"owner,omitempty"`
	Count    int        `bson:"count"`
	Tags     []string   `bson:"tags,omitempty"`
	Items    []testItem `bson:"items"`
	Created  time.Time  `bson:"created"`
	Optional *time.Time `bson:"optional,omitempty"`
}

type testItem struct {
	Key  string `bson:"key"`
	Name string `bson:"name"`
}

func seed(t *testing.T, coll Collection, docs ...testDoc) {
	t.Helper()
	for _, doc := range docs {
		if err := coll.InsertOne(context.Background(), doc); err != nil {
			t.Fatalf("insert %s: %v", doc.ID, err)
		}
	}
}

func TestMemoryConditionalUpdate(t *testing.T) {
	ctx := context.Background()
	coll := NewMemoryDatabase().Collection(AssetsCollection)
	seed(t, coll, testDoc{ID: "a1", Status: "Available"})

	var out testDoc
	err := coll.FindOneAndUpdate(ctx,
		bson.M{"id": "a1", "status": "Available"},
		Update{Set: bson.M{"status": "Pending Offer"}},
		&out)
	if err != nil {
		t.Fatalf("first update: %v", err)
	}
	if out.Status != "Pending Offer" {
		t.Fatalf("expected post-update document, got %q", out.Status)
	}

	err = coll.FindOneAndUpdate(ctx,
		bson.M{"id": "a1", "status": "Available"},
		Update{Set: bson.M{"status": "Pending Offer"}},
		&out)
	if !errors.Is(err, ErrNoDocuments) {
		t.Fatalf("expected ErrNoDocuments on stale condition, got %v", err)
	}
}

func TestMemoryConcurrentConditionalUpdateHasOneWinner(t *testing.T) {
	ctx := context.Background()
	coll := NewMemoryDatabase().Collection(AssetsCollection)
	seed(t, coll, testDoc{ID: "a1", Status: "Available"})

	var wg sync.WaitGroup
	results := make(chan int64, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := coll.UpdateOne(ctx, bson.M{"id": "a1", "status": "Available"}, Update{Set: bson.M{"status": "Pending Offer"}})
			if err != nil {
				t.Errorf("update: %v", err)
			}
			results <- n
		}()
	}
	wg.Wait()
	close(results)

	var winners int64
	for n := range results {
		winners += n
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

func TestMemoryOperators(t *testing.T) {
	ctx := context.Background()
	coll := NewMemoryDatabase().Collection(OfferRequestsCollection)
	owner := "b1"
	seed(t, coll,
		testDoc{ID: "r1", Status: "Pending", Owner: &owner, Created: time.Unix(100, 0)},
		testDoc{ID: "r2", Status: "Quoted", Created: time.Unix(300, 0)},
		testDoc{ID: "r3", Status: "Rejected", Owner: &owner, Created: time.Unix(200, 0)},
	)

	count := func(filter bson.M) int64 {
		t.Helper()
		n, err := coll.CountDocuments(ctx, filter)
		if err != nil {
			t.Fatalf("count %v: %v", filter, err)
		}
		return n
	}

	if n := count(bson.M{"status": bson.M{"$in": []string{"Pending", "Quoted"}}}); n != 2 {
		t.Errorf("$in: got %d", n)
	}
	if n := count(bson.M{"status": bson.M{"$ne": "Pending"}}); n != 2 {
		t.Errorf("$ne: got %d", n)
	}
	if n := count(bson.M{"owner": nil}); n != 1 {
		t.Errorf("null equality should match missing field: got %d", n)
	}
	if n := count(bson.M{"owner": bson.M{"$exists": true}}); n != 2 {
		t.Errorf("$exists: got %d", n)
	}
	if n := count(bson.M{"$or": []bson.M{{"id": "r1"}, {"status": "Quoted"}}}); n != 2 {
		t.Errorf("$or: got %d", n)
	}
	if n := count(bson.M{"created": bson.M{"$gte": time.Unix(200, 0)}}); n != 2 {
		t.Errorf("$gte on dates: got %d", n)
	}

	var sorted []testDoc
	if err := coll.Find(ctx, bson.M{}, FindOptions{SortField: "created", SortDesc: true}, &sorted); err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(sorted) != 3 || sorted[0].ID != "r2" || sorted[2].ID != "r1" {
		t.Fatalf("unexpected order: %+v", sorted)
	}
}

func TestMemoryArrayOperatorsAndUnset(t *testing.T) {
	ctx := context.Background()
	coll := NewMemoryDatabase().Collection(CampaignsCollection)
	owner := "b1"
	seed(t, coll, testDoc{ID: "c1", Owner: &owner, Items: []testItem{}})

	add := Update{AddToSet: bson.M{"items": testItem{Key: "a1", Name: "North"}}, Inc: bson.M{"count": 1}}
	for i := 0; i < 2; i++ {
		if _, err := coll.UpdateOne(ctx, bson.M{"id": "c1"}, add); err != nil {
			t.Fatalf("addToSet: %v", err)
		}
	}

	var out testDoc
	if err := coll.FindOne(ctx, bson.M{"id": "c1"}, &out); err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(out.Items) != 1 {
		t.Fatalf("$addToSet must be idempotent, got %d items", len(out.Items))
	}
	if out.Count != 2 {
		t.Fatalf("expected $inc to apply twice, got %d", out.Count)
	}
	if n, _ := coll.CountDocuments(ctx, bson.M{"items.key": "a1"}); n != 1 {
		t.Fatalf("dotted path into array should match")
	}

	err := coll.FindOneAndUpdate(ctx, bson.M{"id": "c1"},
		Update{Pull: bson.M{"items": bson.M{"key": "a1"}}, Unset: []string{"owner"}}, &out)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if len(out.Items) != 0 || out.Owner != nil {
		t.Fatalf("expected pulled item and unset owner, got %+v", out)
	}
}

func TestMemoryUniqueKeys(t *testing.T) {
	ctx := context.Background()
	coll := NewMemoryDatabase().Collection(UsersCollection)

	type user struct {
		ID    string `bson:"id"`
		Email string `bson:"email"`
	}
	if err := coll.InsertOne(ctx, user{ID: "u1", Email: "a@x.io"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err := coll.InsertOne(ctx, user{ID: "u2", Email: "a@x.io"})
	if !IsDuplicateKey(err) {
		t.Fatalf("expected duplicate key error, got %v", err)
	}

	deleted, err := coll.DeleteOne(ctx, bson.M{"id": "u1"})
	if err != nil || deleted != 1 {
		t.Fatalf("delete: %d %v", deleted, err)
	}
	if err := coll.InsertOne(ctx, user{ID: "u2", Email: "a@x.io"}); err != nil {
		t.Fatalf("insert after delete: %v", err)
	}
}

func TestUpdateDocumentOmitsEmptyOperators(t *testing.T) {
	doc := Update{Set: bson.M{"status": "Live"}, Unset: []string{"buyer_id"}}.Document()
	if _, ok := doc["$inc"]; ok {
		t.Fatalf("empty $inc must be omitted")
	}
	unset, ok := doc["$unset"].(bson.M)
	if !ok || unset["buyer_id"] != "" {
		t.Fatalf("unexpected $unset: %v", doc["$unset"])
	}
}
