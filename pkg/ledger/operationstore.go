package ledger

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/webledger/ledgerstore/pkg/docstore"
	"github.com/webledger/ledgerstore/pkg/ledgererr"
	"github.com/webledger/ledgerstore/pkg/metrics"
	"github.com/webledger/ledgerstore/pkg/types"
)

const operationStoreLabel = "operation"

// maxBatchBytes and maxBatchDocs are the chunking limits spec.md §4.2
// assigns to OperationStore.AddMany: each insert batch must be at most
// 0.95*16MiB of BSON-equivalent size and at most 250 documents.
const (
	maxBatchBytes = int(float64(16*1024*1024) * 0.95)
	maxBatchDocs  = 250
)

// OperationStore persists operations and reconstructs per-record
// history, the bottom tier of the write-order in spec.md §3
// ("operations are written first").
type OperationStore struct {
	col      docstore.Collection
	eventCol docstore.Collection
	logger   zerolog.Logger
}

// NewOperationStore builds an OperationStore bound to its own collection
// and, for the join GetRecordHistory performs, the owning ledger's event
// collection.
func NewOperationStore(col, eventCol docstore.Collection, logger zerolog.Logger) *OperationStore {
	return &OperationStore{col: col, eventCol: eventCol, logger: logger.With().Str("component", "operation_store").Logger()}
}

// ExistsQuery is the argument to Exists: set semantics over operation
// hashes, optionally scoped to one event, or a bare record lookup.
type ExistsQuery struct {
	OperationHash []string
	EventHash     string
	RecordID      string
}

func operationToDoc(op types.StoredOperation) docstore.M {
	return docstore.M{
		"recordId": op.RecordID,
		"operation": docstore.M{
			"type":        string(op.Operation.Type),
			"record":      op.Operation.Record,
			"recordPatch": op.Operation.RecordPatch,
		},
		"meta": docstore.M{
			"created":       formatTime(op.Meta.Created),
			"updated":       formatTime(op.Meta.Updated),
			"eventHash":     op.Meta.EventHash,
			"eventOrder":    float64(op.Meta.EventOrder),
			"operationHash": op.Meta.OperationHash,
		},
	}
}

// AddMany persists ops, estimating aggregate size to split into chunks
// that stay within the 0.95*16MiB / 250-document limits, inserting each
// chunk unordered. When ignoreDuplicate is true, duplicate-key
// collisions are swallowed per chunk; otherwise the first one found is
// surfaced as DuplicateError.
func (s *OperationStore) AddMany(ctx context.Context, ops []types.StoredOperation, ignoreDuplicate bool) (int, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StoreOperationDuration, operationStoreLabel, "add_many")
	metrics.StoreOperationsTotal.WithLabelValues(operationStoreLabel, "add_many").Inc()

	now := time.Now().UTC()
	docs := make([]docstore.M, 0, len(ops))
	for _, op := range ops {
		if op.Meta.Created.IsZero() {
			op.Meta.Created = now
		}
		if op.Meta.Updated.IsZero() {
			op.Meta.Updated = now
		}
		docs = append(docs, operationToDoc(op))
	}

	chunks := chunkDocuments(docs)
	metrics.AddManyChunksTotal.WithLabelValues(operationStoreLabel).Add(float64(len(chunks)))

	inserted := 0
	for _, chunk := range chunks {
		metrics.AddManyChunkSize.WithLabelValues(operationStoreLabel).Observe(float64(len(chunk)))
		n, dupKeys, err := s.col.InsertMany(ctx, chunk)
		inserted += n
		if err != nil {
			return inserted, err
		}
		if len(dupKeys) > 0 {
			metrics.DuplicateSkipsTotal.WithLabelValues(operationStoreLabel).Add(float64(len(dupKeys)))
			if !ignoreDuplicate {
				return inserted, ledgererr.Duplicate("duplicate operation", map[string]interface{}{"index": dupKeys[0]})
			}
		}
	}
	return inserted, nil
}

// chunkDocuments splits docs into batches of at most maxBatchDocs
// documents whose aggregate JSON-marshaled size stays under
// maxBatchBytes, standing in for the aggregate BSON-size estimate a
// real document-store driver would compute.
func chunkDocuments(docs []docstore.M) [][]docstore.M {
	var chunks [][]docstore.M
	var current []docstore.M
	size := 0
	for _, doc := range docs {
		b, _ := json.Marshal(doc)
		docSize := len(b)
		if len(current) > 0 && (len(current) >= maxBatchDocs || size+docSize > maxBatchBytes) {
			chunks = append(chunks, current)
			current = nil
			size = 0
		}
		current = append(current, doc)
		size += docSize
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

// Exists reports whether every hash named in q is present. When only
// RecordID is supplied, it reports whether any non-deleted operation
// exists for that record.
func (s *OperationStore) Exists(ctx context.Context, q ExistsQuery) (bool, error) {
	if len(q.OperationHash) == 0 {
		if q.RecordID == "" {
			return false, ledgererr.TypeError("exists requires operationHash or recordId", nil)
		}
		n, err := s.col.CountDocuments(ctx, docstore.Filter{
			Eq:     docstore.M{"recordId": q.RecordID},
			Exists: map[string]bool{"meta.deleted": false},
		})
		if err != nil {
			return false, err
		}
		return n > 0, nil
	}

	seen := make(map[string]struct{}, len(q.OperationHash))
	for _, h := range q.OperationHash {
		seen[h] = struct{}{}
	}
	for h := range seen {
		filter := docstore.Filter{Eq: docstore.M{"meta.operationHash": h}}
		if q.EventHash != "" {
			filter.Eq["meta.eventHash"] = q.EventHash
		}
		n, err := s.col.CountDocuments(ctx, filter)
		if err != nil {
			return false, err
		}
		if n == 0 {
			return false, nil
		}
	}
	return true, nil
}

// existsForEvent reports whether an operation row with the given
// eventHash/operationHash pair exists with an assigned eventOrder — the
// check EventStore.Add performs before accepting an operation event.
func (s *OperationStore) existsForEvent(ctx context.Context, eventHash, operationHash string) (bool, error) {
	n, err := s.col.CountDocuments(ctx, docstore.Filter{
		Eq: docstore.M{"meta.eventHash": eventHash, "meta.operationHash": operationHash},
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetRecordHistory reconstructs the consensus operation history for
// recordID, sorted by (blockHeight, blockOrder, eventOrder) per
// spec.md §3's canonical ordering authority.
func (s *OperationStore) GetRecordHistory(ctx context.Context, recordID string, maxBlockHeight *int64) ([]types.RecordHistoryEntry, error) {
	if recordID == "" {
		return nil, ledgererr.TypeError("recordId must be a non-empty string", nil)
	}
	if maxBlockHeight != nil && *maxBlockHeight < 0 {
		return nil, ledgererr.TypeError("maxBlockHeight must be an integer >= 0", map[string]interface{}{"maxBlockHeight": *maxBlockHeight})
	}

	cur, err := s.col.Find(ctx, docstore.Filter{
		Eq:     docstore.M{"recordId": recordID},
		Exists: map[string]bool{"meta.deleted": false},
	}, docstore.FindOptions{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var entries []types.RecordHistoryEntry
	for cur.Next(ctx) {
		doc := cur.Decode()
		meta, _ := doc["meta"].(map[string]interface{})
		eventHash, _ := meta["eventHash"].(string)
		eventOrder := int64(asFloat(meta["eventOrder"]))

		eventDoc, err := s.eventCol.FindOne(ctx, docstore.Filter{Eq: docstore.M{"meta.eventHash": eventHash}})
		if err != nil {
			if err == docstore.ErrNoDocuments {
				continue
			}
			return nil, err
		}
		eventMeta, _ := eventDoc["meta"].(map[string]interface{})
		consensus, _ := eventMeta["consensus"].(bool)
		if !consensus {
			continue
		}
		blockHeightVal, ok := eventMeta["blockHeight"]
		if !ok || blockHeightVal == nil {
			continue
		}
		blockHeight := int64(asFloat(blockHeightVal))
		if maxBlockHeight != nil && blockHeight > *maxBlockHeight {
			continue
		}
		blockOrder := int64(asFloat(eventMeta["blockOrder"]))

		opDoc, _ := doc["operation"].(map[string]interface{})
		entries = append(entries, types.RecordHistoryEntry{
			Operation:   operationFromDoc(opDoc),
			EventHash:   eventHash,
			BlockHeight: blockHeight,
			BlockOrder:  blockOrder,
			EventOrder:  eventOrder,
			Consensus:   consensus,
		})
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.BlockHeight != b.BlockHeight {
			return a.BlockHeight < b.BlockHeight
		}
		if a.BlockOrder != b.BlockOrder {
			return a.BlockOrder < b.BlockOrder
		}
		return a.EventOrder < b.EventOrder
	})

	if len(entries) == 0 {
		return nil, ledgererr.NotFound("no operation history for record", map[string]interface{}{"recordId": recordID})
	}
	return entries, nil
}

func operationFromDoc(doc map[string]interface{}) types.Operation {
	if doc == nil {
		return types.Operation{}
	}
	op := types.Operation{Type: types.OperationType(asString(doc["type"]))}
	if rec, ok := doc["record"].(map[string]interface{}); ok {
		op.Record = rec
	}
	if patch, ok := doc["recordPatch"].(map[string]interface{}); ok {
		op.RecordPatch = patch
	}
	return op
}

func asFloat(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
