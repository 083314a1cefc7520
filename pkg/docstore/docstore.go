package docstore

import (
	"context"
	"errors"
)

// M is a loosely-typed document, the unit of storage for every
// collection. Field names follow the dotted convention used throughout
// the engine (e.g. "meta.blockHeight").
type M map[string]interface{}

// ErrNoDocuments is returned by FindOne when no document matches the
// filter. It is the docstore-level analogue of sql.ErrNoRows.
var ErrNoDocuments = errors.New("docstore: no documents in result")

// DuplicateKeyError is returned by InsertOne/InsertMany when a write
// would violate a unique index. Index names the violated index spec so
// callers (and tests) can assert exactly which uniqueness constraint
// fired.
type DuplicateKeyError struct {
	Index string
	Key   string
}

func (e *DuplicateKeyError) Error() string {
	return "docstore: duplicate key for index " + e.Index
}

// IsDuplicateKey reports whether err is (or wraps) a DuplicateKeyError.
func IsDuplicateKey(err error) bool {
	var d *DuplicateKeyError
	return errors.As(err, &d)
}

// Filter is a conjunction of field predicates. A zero-value Filter
// matches every document. Each map keys a field path to a predicate
// value; multiple predicate maps in the same Filter are ANDed together.
// This is intentionally not a general query DSL — the engine only ever
// needs the predicate shapes exercised by pkg/ledger, mirroring how the
// teacher's BoltStore scans with simple equality checks instead of a
// query language of its own.
type Filter struct {
	Eq     M
	In     map[string][]interface{}
	Lt     M
	Lte    M
	Gt     M
	Gte    M
	Ne     M
	Exists map[string]bool
}

// SortField names a field and direction for an ORDER BY clause.
type SortField struct {
	Field string
	Desc  bool
}

// FindOptions controls a Find call's sort order and row limit.
type FindOptions struct {
	Sort  []SortField
	Limit int
}

// Update is a restricted mutation: set/unset scalar fields, or
// append/remove values from an array field without duplicates. It
// mirrors the set/unset/push-unique/pull-all primitives spec.md's
// DocStore contract requires.
type Update struct {
	Set   M
	Unset []string
	Push  map[string]interface{} // append one value, skip if already present
	Pull  map[string]interface{} // remove all matching values
}

// IndexSpec describes one index to install on a collection.
type IndexSpec struct {
	Name   string
	Fields []string
	Unique bool
	Sparse bool
}

// Cursor iterates a Find result set, already sorted and limited.
type Cursor interface {
	Next(ctx context.Context) bool
	Decode() M
	Err() error
	Close(ctx context.Context) error
}

// Collection is the single-collection slice of the DocStore contract
// (spec.md §6.1): atomic inserts with duplicate-key detection, indexed
// find/findOne, restricted update, and a document count.
type Collection interface {
	Name() string
	CreateIndex(ctx context.Context, spec IndexSpec) error
	InsertOne(ctx context.Context, doc M) error
	InsertMany(ctx context.Context, docs []M) (inserted int, dupKeys []string, err error)
	FindOne(ctx context.Context, filter Filter) (M, error)
	Find(ctx context.Context, filter Filter, opts FindOptions) (Cursor, error)
	UpdateOne(ctx context.Context, filter Filter, update Update) (matched int64, err error)
	CountDocuments(ctx context.Context, filter Filter) (int64, error)
}

// DocStore is the process-wide handle to the embedded document store: it
// opens/creates named collections on demand. Exactly one DocStore is
// shared by every ledger in the process, matching spec.md §5's "shared
// resource policy".
type DocStore interface {
	Collection(name string) (Collection, error)
	DropCollection(ctx context.Context, name string) error
	Close() error
}
