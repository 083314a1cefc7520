package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/webledger/ledgerstore/pkg/docstore"
	"github.com/webledger/ledgerstore/pkg/events"
	"github.com/webledger/ledgerstore/pkg/hash"
	"github.com/webledger/ledgerstore/pkg/ledgererr"
	"github.com/webledger/ledgerstore/pkg/types"
)

// registryCollectionName is the single collection backing the registry
// itself, distinct from the per-ledger block/event/operation
// collections it hands out names for.
const registryCollectionName = "ledgers"

// LedgerRegistry is the process-wide entry point spec.md §5 describes:
// it opens, looks up, iterates, and soft-removes ledgers against the
// one shared DocStore, assigning each a fresh, collision-free set of
// block/event/operation collections.
type LedgerRegistry struct {
	store  docstore.DocStore
	rows   docstore.Collection
	hasher hash.Hasher
	broker *events.Broker
	logger zerolog.Logger
}

// NewLedgerRegistry opens the registry's own bookkeeping collection and
// returns a LedgerRegistry ready for Add/Get/Remove/Iterate.
func NewLedgerRegistry(store docstore.DocStore, hasher hash.Hasher, broker *events.Broker, logger zerolog.Logger) (*LedgerRegistry, error) {
	rows, err := store.Collection(registryCollectionName)
	if err != nil {
		return nil, err
	}
	if err := rows.CreateIndex(context.Background(), docstore.IndexSpec{
		Name: "ledger.ledgerId.core.1", Fields: []string{"ledgerId"}, Unique: true,
	}); err != nil {
		return nil, err
	}
	return &LedgerRegistry{
		store:  store,
		rows:   rows,
		hasher: hasher,
		broker: broker,
		logger: logger.With().Str("component", "ledger_registry").Logger(),
	}, nil
}

// Add opens a new ledger: it assigns a fresh storage ID and collection
// set, installs the core indexes plus whatever a plugin's
// ExpandIndexes contributes, persists the registry row, and returns a
// bound StorageHandle. plugins maps a plugin name to its instance; pass
// an empty map for a ledger with no plugins.
func (r *LedgerRegistry) Add(ctx context.Context, ledgerID string, plugins map[string]Plugin) (*StorageHandle, error) {
	if ledgerID == "" {
		return nil, ledgererr.TypeError("ledgerId must be a non-empty string", nil)
	}

	storageID := uuid.NewString()
	ledgerNodeID := uuid.NewString()
	blockColName := "block_" + storageID
	eventColName := "event_" + storageID
	opColName := "operation_" + storageID

	host := NewPluginHost()
	pluginNames := make([]string, 0, len(plugins))
	for name, plugin := range plugins {
		if err := host.Register(name, plugin); err != nil {
			return nil, err
		}
		pluginNames = append(pluginNames, name)
	}

	blockCol, err := r.store.Collection(blockColName)
	if err != nil {
		return nil, err
	}
	eventCol, err := r.store.Collection(eventColName)
	if err != nil {
		return nil, err
	}
	opCol, err := r.store.Collection(opColName)
	if err != nil {
		return nil, err
	}
	if err := installIndexes(ctx, blockCol, BlockIndexes()); err != nil {
		return nil, err
	}
	if err := installIndexes(ctx, eventCol, EventIndexes()); err != nil {
		return nil, err
	}
	if err := installIndexes(ctx, opCol, OperationIndexes()); err != nil {
		return nil, err
	}
	if err := host.ExpandIndexes(blockCol, eventCol, opCol); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	row := types.Ledger{
		StorageID:           storageID,
		LedgerID:            ledgerID,
		LedgerNodeID:        ledgerNodeID,
		BlockCollection:     blockColName,
		EventCollection:     eventColName,
		OperationCollection: opColName,
		Plugins:             pluginNames,
		Meta:                types.Meta{Created: now, Updated: now},
	}
	if err := r.insertRow(ctx, row); err != nil {
		return nil, err
	}

	return r.buildHandle(row, blockCol, eventCol, opCol, host), nil
}

func installIndexes(ctx context.Context, col docstore.Collection, specs []docstore.IndexSpec) error {
	for _, spec := range specs {
		if err := col.CreateIndex(ctx, spec); err != nil {
			return err
		}
	}
	return nil
}

func (r *LedgerRegistry) insertRow(ctx context.Context, row types.Ledger) error {
	err := r.rows.InsertOne(ctx, rowToDoc(row))
	if err != nil {
		if docstore.IsDuplicateKey(err) {
			return ledgererr.Duplicate("ledger already exists", map[string]interface{}{"ledgerId": row.LedgerID})
		}
		return err
	}
	return nil
}

func rowToDoc(row types.Ledger) docstore.M {
	return docstore.M{
		"_id":                 row.LedgerID,
		"ledgerId":            row.LedgerID,
		"storageId":           row.StorageID,
		"ledgerNodeId":        row.LedgerNodeID,
		"blockCollection":     row.BlockCollection,
		"eventCollection":     row.EventCollection,
		"operationCollection": row.OperationCollection,
		"plugins":             toInterfaceSlice(row.Plugins),
		"meta": docstore.M{
			"created": formatTime(row.Meta.Created),
			"updated": formatTime(row.Meta.Updated),
		},
	}
}

func rowFromDoc(doc docstore.M) types.Ledger {
	meta, _ := doc["meta"].(map[string]interface{})
	var plugins []string
	if raw, ok := doc["plugins"].([]interface{}); ok {
		for _, p := range raw {
			if s, ok := p.(string); ok {
				plugins = append(plugins, s)
			}
		}
	}
	return types.Ledger{
		StorageID:           asString(doc["storageId"]),
		LedgerID:            asString(doc["ledgerId"]),
		LedgerNodeID:        asString(doc["ledgerNodeId"]),
		BlockCollection:     asString(doc["blockCollection"]),
		EventCollection:     asString(doc["eventCollection"]),
		OperationCollection: asString(doc["operationCollection"]),
		Plugins:             plugins,
		Meta:                types.Meta{Consensus: asBool(meta["consensus"])},
	}
}

// Get reopens the handle for an already-registered ledger. plugins must
// name the same set the ledger was opened with via Add, or a subset the
// caller still wants bound; any name in the registry row's Plugins list
// that is missing from plugins is simply left unbound on the returned
// handle.
func (r *LedgerRegistry) Get(ctx context.Context, ledgerID string, plugins map[string]Plugin) (*StorageHandle, error) {
	doc, err := r.rows.FindOne(ctx, docstore.Filter{
		Eq:     docstore.M{"ledgerId": ledgerID},
		Exists: map[string]bool{"meta.deleted": false},
	})
	if err != nil {
		if err == docstore.ErrNoDocuments {
			return nil, ledgererr.NotFound("ledger not found", map[string]interface{}{"ledgerId": ledgerID})
		}
		return nil, err
	}
	row := rowFromDoc(doc)

	blockCol, err := r.store.Collection(row.BlockCollection)
	if err != nil {
		return nil, err
	}
	eventCol, err := r.store.Collection(row.EventCollection)
	if err != nil {
		return nil, err
	}
	opCol, err := r.store.Collection(row.OperationCollection)
	if err != nil {
		return nil, err
	}

	host := NewPluginHost()
	for _, name := range row.Plugins {
		plugin, ok := plugins[name]
		if !ok {
			continue
		}
		if err := host.Register(name, plugin); err != nil {
			return nil, err
		}
	}

	return r.buildHandle(row, blockCol, eventCol, opCol, host), nil
}

func (r *LedgerRegistry) buildHandle(row types.Ledger, blockCol, eventCol, opCol docstore.Collection, host *PluginHost) *StorageHandle {
	eventStore := NewEventStore(eventCol, opCol, r.logger)
	opStore := NewOperationStore(opCol, eventCol, r.logger)
	blockStore := NewBlockStore(blockCol, eventStore, r.hasher, r.broker, row.LedgerNodeID, r.logger)

	return &StorageHandle{
		LedgerID:     row.LedgerID,
		LedgerNodeID: row.LedgerNodeID,
		StorageID:    row.StorageID,
		Blocks:       blockStore,
		Events:       eventStore,
		Operations:   opStore,
		Driver:       r.store,
		plugins:      host,
	}
}

// Remove soft-deletes the registry row for ledgerID. The underlying
// block/event/operation collections are left in place; nothing in this
// engine ever hard-deletes data.
func (r *LedgerRegistry) Remove(ctx context.Context, ledgerID string) error {
	now := time.Now().UTC()
	matched, err := r.rows.UpdateOne(ctx, docstore.Filter{
		Eq:     docstore.M{"ledgerId": ledgerID},
		Exists: map[string]bool{"meta.deleted": false},
	}, docstore.Update{
		Set: docstore.M{"meta.deleted": formatTime(now), "meta.updated": formatTime(now)},
	})
	if err != nil {
		return err
	}
	if matched == 0 {
		return ledgererr.NotFound("ledger not found", map[string]interface{}{"ledgerId": ledgerID})
	}
	return nil
}

// LedgerIterator walks the non-deleted registry rows in no particular
// order, the same linear-scan shape docstore.BoltCollection.Find uses
// internally. Per spec.md §4.1, iterate() is a finite, forward-only,
// lazy sequence of StorageHandle — each step opens the ledger named by
// the current row on demand via Handle, rather than eagerly opening
// every ledger's collections up front.
type LedgerIterator struct {
	registry *LedgerRegistry
	cur      docstore.Cursor
}

// Iterate returns a LedgerIterator over every non-deleted registered
// ledger.
func (r *LedgerRegistry) Iterate(ctx context.Context) (*LedgerIterator, error) {
	cur, err := r.rows.Find(ctx, docstore.Filter{Exists: map[string]bool{"meta.deleted": false}}, docstore.FindOptions{})
	if err != nil {
		return nil, err
	}
	return &LedgerIterator{registry: r, cur: cur}, nil
}

// Next advances the iterator, returning false once exhausted or on
// error (check Err afterward).
func (it *LedgerIterator) Next(ctx context.Context) bool {
	return it.cur.Next(ctx)
}

// Row decodes the current registry row without opening its collections.
func (it *LedgerIterator) Row() types.Ledger {
	return rowFromDoc(it.cur.Decode())
}

// Handle opens the current row's ledger on demand, binding plugins the
// same way Get does, and returns a ready StorageHandle.
func (it *LedgerIterator) Handle(ctx context.Context, plugins map[string]Plugin) (*StorageHandle, error) {
	return it.registry.Get(ctx, it.Row().LedgerID, plugins)
}

// Err returns any error the iteration encountered.
func (it *LedgerIterator) Err() error {
	return it.cur.Err()
}

// Close releases the iterator's underlying cursor.
func (it *LedgerIterator) Close(ctx context.Context) error {
	return it.cur.Close(ctx)
}
