package docstore

import (
	"context"
	"testing"
)

func openTestStore(t *testing.T) *BoltDocStore {
	t.Helper()
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestInsertOneAndFindOne(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	col, err := store.Collection("widgets")
	if err != nil {
		t.Fatalf("Collection() error = %v", err)
	}
	if err := col.CreateIndex(ctx, IndexSpec{Name: "widget.name", Fields: []string{"name"}, Unique: true}); err != nil {
		t.Fatalf("CreateIndex() error = %v", err)
	}

	if err := col.InsertOne(ctx, M{"_id": "w1", "name": "sprocket", "count": 3}); err != nil {
		t.Fatalf("InsertOne() error = %v", err)
	}

	got, err := col.FindOne(ctx, Filter{Eq: M{"name": "sprocket"}})
	if err != nil {
		t.Fatalf("FindOne() error = %v", err)
	}
	if got["count"].(float64) != 3 {
		t.Errorf("count = %v, want 3", got["count"])
	}
}

func TestInsertOneDuplicateIndex(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	col, _ := store.Collection("widgets")
	col.CreateIndex(ctx, IndexSpec{Name: "widget.name", Fields: []string{"name"}, Unique: true})

	if err := col.InsertOne(ctx, M{"_id": "w1", "name": "sprocket"}); err != nil {
		t.Fatalf("first InsertOne() error = %v", err)
	}
	err := col.InsertOne(ctx, M{"_id": "w2", "name": "sprocket"})
	if !IsDuplicateKey(err) {
		t.Fatalf("second InsertOne() error = %v, want DuplicateKeyError", err)
	}
}

func TestFindOneNotFound(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	col, _ := store.Collection("widgets")

	_, err := col.FindOne(ctx, Filter{Eq: M{"name": "missing"}})
	if err != ErrNoDocuments {
		t.Fatalf("FindOne() error = %v, want ErrNoDocuments", err)
	}
}

func TestFindSortAndLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	col, _ := store.Collection("widgets")

	for i, name := range []string{"c", "a", "b"} {
		col.InsertOne(ctx, M{"_id": name, "name": name, "order": float64(i)})
	}

	cur, err := col.Find(ctx, Filter{}, FindOptions{Sort: []SortField{{Field: "name"}}, Limit: 2})
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	defer cur.Close(ctx)

	var names []string
	for cur.Next(ctx) {
		names = append(names, cur.Decode()["name"].(string))
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("names = %v, want [a b]", names)
	}
}

func TestUpdateOneSetAndUnset(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	col, _ := store.Collection("widgets")
	col.InsertOne(ctx, M{"_id": "w1", "name": "sprocket", "meta": M{"consensus": false}})

	matched, err := col.UpdateOne(ctx, Filter{Eq: M{"name": "sprocket"}}, Update{
		Set:   M{"meta.consensus": true},
		Unset: []string{"name"},
	})
	if err != nil {
		t.Fatalf("UpdateOne() error = %v", err)
	}
	if matched != 1 {
		t.Fatalf("matched = %d, want 1", matched)
	}

	got, err := col.FindOne(ctx, Filter{Eq: M{"_id": "w1"}})
	if err != nil {
		t.Fatalf("FindOne() error = %v", err)
	}
	if _, exists := got["name"]; exists {
		t.Errorf("name field should have been unset")
	}
	if meta, ok := got["meta"].(map[string]interface{}); !ok || meta["consensus"] != true {
		t.Errorf("meta.consensus = %v, want true", got["meta"])
	}
}

func TestCountDocuments(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	col, _ := store.Collection("widgets")
	col.InsertOne(ctx, M{"_id": "w1", "kind": "a"})
	col.InsertOne(ctx, M{"_id": "w2", "kind": "a"})
	col.InsertOne(ctx, M{"_id": "w3", "kind": "b"})

	n, err := col.CountDocuments(ctx, Filter{Eq: M{"kind": "a"}})
	if err != nil {
		t.Fatalf("CountDocuments() error = %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}
