package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/webledger/ledgerstore/pkg/docstore"
	"github.com/webledger/ledgerstore/pkg/ledgererr"
	"github.com/webledger/ledgerstore/pkg/metrics"
	"github.com/webledger/ledgerstore/pkg/types"
)

const eventStoreLabel = "event"

// EventStore persists events and hydrates operation events by joining
// the operation collection on read, the middle tier of spec.md §3's
// write order.
type EventStore struct {
	col    docstore.Collection
	opCol  docstore.Collection
	logger zerolog.Logger
}

// NewEventStore builds an EventStore bound to its own collection and,
// for operation-event validation/hydration, the owning ledger's
// operation collection.
func NewEventStore(col, opCol docstore.Collection, logger zerolog.Logger) *EventStore {
	return &EventStore{col: col, opCol: opCol, logger: logger.With().Str("component", "event_store").Logger()}
}

func eventToDoc(event types.Event, meta types.EventMeta) docstore.M {
	metaDoc := docstore.M{
		"created":   formatTime(meta.Created),
		"updated":   formatTime(meta.Updated),
		"eventHash": meta.EventHash,
		"consensus": meta.Consensus,
	}
	if meta.ConsensusDate != nil {
		metaDoc["consensusDate"] = formatTime(*meta.ConsensusDate)
	}
	if meta.BlockHeight != nil {
		metaDoc["blockHeight"] = float64(*meta.BlockHeight)
	}
	if meta.BlockOrder != nil {
		metaDoc["blockOrder"] = float64(*meta.BlockOrder)
	}
	if meta.EffectiveConfiguration {
		metaDoc["effectiveConfiguration"] = true
	}
	eventDoc := docstore.M{
		"@context": toInterfaceSlice(event.Context),
		"type":     string(event.Type),
	}
	for k, v := range event.Fields {
		eventDoc[k] = v
	}
	return docstore.M{
		"_id":   meta.EventHash,
		"event": eventDoc,
		"meta":  metaDoc,
	}
}

// reservedEventFields names the event-document keys eventToDoc/hydrate
// manage directly; everything else in the stored event document is
// type-specific payload that round-trips through Event.Fields.
var reservedEventFields = map[string]struct{}{
	"@context": {},
	"type":     {},
}

// Add validates and persists a single event. Operation events must
// carry a non-empty OperationHash list, each entry already present in
// the operation collection under this EventHash with an assigned
// EventOrder; non-operation events must carry none.
func (s *EventStore) Add(ctx context.Context, event types.Event, meta types.EventMeta) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StoreOperationDuration, eventStoreLabel, "add")
	metrics.StoreOperationsTotal.WithLabelValues(eventStoreLabel, "add").Inc()

	if meta.EventHash == "" {
		return ledgererr.DataError("meta.eventHash is required", nil)
	}
	if event.Type == types.EventTypeOperation {
		if len(meta.OperationHash) == 0 {
			return ledgererr.DataError("operation event requires operationHash", map[string]interface{}{"eventHash": meta.EventHash})
		}
		for _, opHash := range meta.OperationHash {
			ok, err := s.operationStoreExists(ctx, meta.EventHash, opHash)
			if err != nil {
				return err
			}
			if !ok {
				return ledgererr.InvalidState("referenced operation not found for event", map[string]interface{}{
					"eventHash":     meta.EventHash,
					"operationHash": opHash,
				})
			}
		}
	} else if len(meta.OperationHash) != 0 {
		return ledgererr.DataError("non-operation event must not carry operationHash", map[string]interface{}{"eventHash": meta.EventHash})
	}

	now := time.Now().UTC()
	if meta.Created.IsZero() {
		meta.Created = now
	}
	if meta.Updated.IsZero() {
		meta.Updated = now
	}

	doc := eventToDoc(event, meta)
	if err := s.col.InsertOne(ctx, doc); err != nil {
		if docstore.IsDuplicateKey(err) {
			return ledgererr.Duplicate("duplicate event hash", map[string]interface{}{"eventHash": meta.EventHash})
		}
		return err
	}
	return nil
}

func (s *EventStore) operationStoreExists(ctx context.Context, eventHash, operationHash string) (bool, error) {
	n, err := s.opCol.CountDocuments(ctx, docstore.Filter{
		Eq: docstore.M{"meta.eventHash": eventHash, "meta.operationHash": operationHash},
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// EventInput pairs an event payload with its meta for batch insertion.
type EventInput struct {
	Event types.Event
	Meta  types.EventMeta
}

// AddMany performs ordered, best-effort-skip-on-duplicate insertion per
// spec.md §4.3: on a duplicate at position i, the hash is recorded as
// skipped, entries [0..i] are discarded, and the remainder is retried.
func (s *EventStore) AddMany(ctx context.Context, inputs []EventInput) ([]string, error) {
	var skipped []string
	remaining := inputs
	for len(remaining) > 0 {
		dupAt := -1
		for i, in := range remaining {
			err := s.Add(ctx, in.Event, in.Meta)
			if err != nil {
				if ledgererr.Is(err, ledgererr.KindDuplicateError) {
					skipped = append(skipped, in.Meta.EventHash)
					dupAt = i
					break
				}
				return skipped, err
			}
		}
		if dupAt == -1 {
			break
		}
		remaining = remaining[dupAt+1:]
	}
	return skipped, nil
}

// Exists reports whether every non-deleted hash in hashes is present.
func (s *EventStore) Exists(ctx context.Context, hashes ...string) (bool, error) {
	for _, h := range hashes {
		n, err := s.col.CountDocuments(ctx, docstore.Filter{
			Eq:     docstore.M{"meta.eventHash": h},
			Exists: map[string]bool{"meta.deleted": false},
		})
		if err != nil {
			return false, err
		}
		if n == 0 {
			return false, nil
		}
	}
	return true, nil
}

// ExistsAtHeight reports whether every hash in hashes names a
// non-deleted event whose meta.blockHeight equals blockHeight, per
// spec.md §4.1's block-membership invariant ("an event with that hash
// exists and carries meta.blockHeight equal to this block's").
func (s *EventStore) ExistsAtHeight(ctx context.Context, hashes []string, blockHeight int64) (bool, error) {
	n, err := s.col.CountDocuments(ctx, docstore.Filter{
		In:     map[string][]interface{}{"meta.eventHash": toInterfaceSlice(hashes)},
		Eq:     docstore.M{"meta.blockHeight": float64(blockHeight)},
		Exists: map[string]bool{"meta.deleted": false},
	})
	if err != nil {
		return false, err
	}
	return n == int64(len(hashes)), nil
}

// Difference returns the subset of hashes not present (non-deleted),
// preserving input order.
func (s *EventStore) Difference(ctx context.Context, hashes []string) ([]string, error) {
	var missing []string
	for _, h := range hashes {
		ok, err := s.Exists(ctx, h)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, h)
		}
	}
	return missing, nil
}

// Get fetches one event by hash, hydrating its operations when it is an
// operation event.
func (s *EventStore) Get(ctx context.Context, eventHash string) (*types.StoredEvent, error) {
	doc, err := s.col.FindOne(ctx, docstore.Filter{
		Eq:     docstore.M{"meta.eventHash": eventHash},
		Exists: map[string]bool{"meta.deleted": false},
	})
	if err != nil {
		if err == docstore.ErrNoDocuments {
			return nil, ledgererr.NotFound("event not found", map[string]interface{}{"eventHash": eventHash})
		}
		return nil, err
	}
	stored, err := s.hydrate(ctx, doc)
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// GetManyOptions selects the scope for GetMany: either an explicit hash
// list (result order follows input order) or all events of one block
// (sorted by blockOrder).
type GetManyOptions struct {
	EventHashes []string
	BlockHeight *int64
}

// GetMany returns the hydrated events named by opts, in the order
// spec.md §4.3 assigns to each mode.
func (s *EventStore) GetMany(ctx context.Context, opts GetManyOptions) ([]types.StoredEvent, error) {
	if opts.BlockHeight != nil {
		cur, err := s.col.Find(ctx, docstore.Filter{
			Eq:     docstore.M{"meta.blockHeight": float64(*opts.BlockHeight)},
			Exists: map[string]bool{"meta.deleted": false},
		}, docstore.FindOptions{Sort: []docstore.SortField{{Field: "meta.blockOrder"}}})
		if err != nil {
			return nil, err
		}
		defer cur.Close(ctx)
		var out []types.StoredEvent
		for cur.Next(ctx) {
			stored, err := s.hydrate(ctx, cur.Decode())
			if err != nil {
				return nil, err
			}
			out = append(out, *stored)
		}
		return out, cur.Err()
	}

	out := make([]types.StoredEvent, 0, len(opts.EventHashes))
	for _, h := range opts.EventHashes {
		stored, err := s.Get(ctx, h)
		if err != nil {
			return nil, err
		}
		out = append(out, *stored)
	}
	return out, nil
}

// GetLatestConfig returns the configuration event with the greatest
// (blockHeight, blockOrder).
func (s *EventStore) GetLatestConfig(ctx context.Context) (*types.StoredEvent, error) {
	cur, err := s.col.Find(ctx, docstore.Filter{
		Eq:     docstore.M{"event.type": string(types.EventTypeConfiguration)},
		Exists: map[string]bool{"meta.deleted": false},
	}, docstore.FindOptions{Sort: []docstore.SortField{
		{Field: "meta.blockHeight", Desc: true},
		{Field: "meta.blockOrder", Desc: true},
	}, Limit: 1})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	if !cur.Next(ctx) {
		return nil, ledgererr.NotFound("no configuration event", nil)
	}
	return s.hydrate(ctx, cur.Decode())
}

// GetActiveConfig returns the configuration event effective at
// blockHeight: the latest config strictly below it, since a config
// event included in block H becomes effective only after block H.
func (s *EventStore) GetActiveConfig(ctx context.Context, blockHeight int64) (*types.StoredEvent, error) {
	cur, err := s.col.Find(ctx, docstore.Filter{
		Eq:     docstore.M{"event.type": string(types.EventTypeConfiguration)},
		Lt:     docstore.M{"meta.blockHeight": float64(blockHeight)},
		Exists: map[string]bool{"meta.deleted": false},
	}, docstore.FindOptions{Sort: []docstore.SortField{
		{Field: "meta.blockHeight", Desc: true},
		{Field: "meta.blockOrder", Desc: true},
	}, Limit: 1})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	if !cur.Next(ctx) {
		return nil, ledgererr.NotFound("no active configuration below block height", map[string]interface{}{"blockHeight": blockHeight})
	}
	return s.hydrate(ctx, cur.Decode())
}

// GetCount returns the number of events matching the optional consensus
// and type filters.
func (s *EventStore) GetCount(ctx context.Context, consensus *bool, eventType *types.EventType) (int64, error) {
	filter := docstore.Filter{Exists: map[string]bool{"meta.deleted": false}, Eq: docstore.M{}}
	if consensus != nil {
		filter.Eq["meta.consensus"] = *consensus
	}
	if eventType != nil {
		filter.Eq["event.type"] = string(*eventType)
	}
	return s.col.CountDocuments(ctx, filter)
}

// Update applies a restricted meta.* patch to the event named by
// eventHash.
func (s *EventStore) Update(ctx context.Context, eventHash string, patches []Patch) error {
	update, err := buildUpdate(patches)
	if err != nil {
		return err
	}
	matched, err := s.col.UpdateOne(ctx, docstore.Filter{Eq: docstore.M{"meta.eventHash": eventHash}}, update)
	if err != nil {
		return err
	}
	if matched == 0 {
		return ledgererr.NotFound("event not found", map[string]interface{}{"eventHash": eventHash})
	}
	return nil
}

// Remove soft-deletes the event named by eventHash.
func (s *EventStore) Remove(ctx context.Context, eventHash string) error {
	now := time.Now().UTC()
	matched, err := s.col.UpdateOne(ctx, docstore.Filter{
		Eq:     docstore.M{"meta.eventHash": eventHash},
		Exists: map[string]bool{"meta.deleted": false},
	}, docstore.Update{
		Set: docstore.M{"meta.deleted": formatTime(now), "meta.updated": formatTime(now)},
	})
	if err != nil {
		return err
	}
	if matched == 0 {
		return ledgererr.NotFound("event not found", map[string]interface{}{"eventHash": eventHash})
	}
	return nil
}

// hydrate decodes a raw event document and, for operation events,
// joins in its operations sorted by eventOrder.
func (s *EventStore) hydrate(ctx context.Context, doc map[string]interface{}) (*types.StoredEvent, error) {
	eventDoc, _ := doc["event"].(map[string]interface{})
	metaDoc, _ := doc["meta"].(map[string]interface{})

	event := types.Event{Type: types.EventType(asString(eventDoc["type"]))}
	if ctxVal, ok := eventDoc["@context"].([]interface{}); ok {
		for _, c := range ctxVal {
			if s, ok := c.(string); ok {
				event.Context = append(event.Context, s)
			}
		}
	}
	for k, v := range eventDoc {
		if _, reserved := reservedEventFields[k]; reserved {
			continue
		}
		if event.Fields == nil {
			event.Fields = make(map[string]interface{})
		}
		event.Fields[k] = v
	}

	meta := types.EventMeta{
		Meta: types.Meta{Consensus: asBool(metaDoc["consensus"])},
	}
	meta.EventHash = asString(metaDoc["eventHash"])
	if v, ok := metaDoc["blockHeight"]; ok && v != nil {
		bh := int64(asFloat(v))
		meta.BlockHeight = &bh
	}
	if v, ok := metaDoc["blockOrder"]; ok && v != nil {
		bo := int64(asFloat(v))
		meta.BlockOrder = &bo
	}

	if event.Type == types.EventTypeOperation {
		cur, err := s.opCol.Find(ctx, docstore.Filter{Eq: docstore.M{"meta.eventHash": meta.EventHash}},
			docstore.FindOptions{Sort: []docstore.SortField{{Field: "meta.eventOrder"}}})
		if err != nil {
			return nil, err
		}
		defer cur.Close(ctx)
		for cur.Next(ctx) {
			opDoc := cur.Decode()
			opBody, _ := opDoc["operation"].(map[string]interface{})
			event.Operation = append(event.Operation, operationFromDoc(opBody))
			opMeta, _ := opDoc["meta"].(map[string]interface{})
			meta.OperationHash = append(meta.OperationHash, asString(opMeta["operationHash"]))
		}
		if err := cur.Err(); err != nil {
			return nil, err
		}
	}

	return &types.StoredEvent{Event: event, Meta: meta}, nil
}

func asBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func toInterfaceSlice(strs []string) []interface{} {
	out := make([]interface{}, len(strs))
	for i, s := range strs {
		out[i] = s
	}
	return out
}

// sortStoredEvents orders a slice in place by (blockHeight, blockOrder),
// for event slices assembled outside of GetMany's own cursor-sorted path.
// Nothing in this package calls it.
func sortStoredEvents(events []types.StoredEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		hi, hj := events[i].Meta.BlockHeight, events[j].Meta.BlockHeight
		if hi != nil && hj != nil && *hi != *hj {
			return *hi < *hj
		}
		bi, bj := events[i].Meta.BlockOrder, events[j].Meta.BlockOrder
		if bi == nil || bj == nil {
			return false
		}
		return *bi < *bj
	})
}
