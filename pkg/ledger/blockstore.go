package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/webledger/ledgerstore/pkg/docstore"
	"github.com/webledger/ledgerstore/pkg/events"
	"github.com/webledger/ledgerstore/pkg/hash"
	"github.com/webledger/ledgerstore/pkg/ledgererr"
	"github.com/webledger/ledgerstore/pkg/metrics"
	"github.com/webledger/ledgerstore/pkg/types"
)

const blockStoreLabel = "block"

// BlockStore persists blocks and notifies subscribers of new additions,
// the top tier of spec.md §3's write order ("blocks are written last").
type BlockStore struct {
	col          docstore.Collection
	events       *EventStore
	hasher       hash.Hasher
	broker       *events.Broker
	ledgerNodeID string
	logger       zerolog.Logger
}

// NewBlockStore builds a BlockStore bound to its own collection, the
// owning ledger's EventStore (for the event-count invariant check), a
// Hasher for computing block.id's hashed index key, and an events.Broker
// to publish block.add notifications on.
func NewBlockStore(col docstore.Collection, eventStore *EventStore, hasher hash.Hasher, broker *events.Broker, ledgerNodeID string, logger zerolog.Logger) *BlockStore {
	return &BlockStore{
		col:          col,
		events:       eventStore,
		hasher:       hasher,
		broker:       broker,
		ledgerNodeID: ledgerNodeID,
		logger:       logger.With().Str("component", "block_store").Logger(),
	}
}

func blockToDoc(block types.Block, meta types.BlockMeta, hashedID string) docstore.M {
	metaDoc := docstore.M{
		"created":    formatTime(meta.Created),
		"updated":    formatTime(meta.Updated),
		"blockHash":  meta.BlockHash,
		"blockOrder": float64(meta.BlockOrder),
		"consensus":  meta.Consensus,
	}
	if meta.ConsensusDate != nil {
		metaDoc["consensusDate"] = formatTime(*meta.ConsensusDate)
	}

	blockDoc := docstore.M{
		"@context":          toInterfaceSlice(block.Context),
		"id":                block.ID,
		"type":              block.Type,
		"blockHeight":       float64(block.BlockHeight),
		"previousBlock":     block.PreviousBlock,
		"previousBlockHash": block.PreviousBlockHash,
		"consensusMethod":   block.ConsensusMethod,
		"event":             toInterfaceSlice(block.Event),
	}
	for k, v := range block.Fields {
		blockDoc[k] = v
	}

	return docstore.M{
		"_id":   hashedID,
		"block": blockDoc,
		"meta":  metaDoc,
	}
}

// reservedBlockFields names the block-document keys blockToDoc/
// blockFromDoc manage directly; everything else is opaque payload that
// round-trips through Block.Fields.
var reservedBlockFields = map[string]struct{}{
	"@context":          {},
	"id":                {},
	"type":              {},
	"blockHeight":       {},
	"previousBlock":     {},
	"previousBlockHash": {},
	"consensusMethod":   {},
	"event":             {},
}

// Add validates and persists a single block. block.Event must be
// non-empty, and the number of non-deleted events whose meta.eventHash is
// in block.Event and whose meta.blockHeight equals block.BlockHeight must
// equal len(block.Event); otherwise Add fails InvalidState.
func (s *BlockStore) Add(ctx context.Context, block types.Block, meta types.BlockMeta) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StoreOperationDuration, blockStoreLabel, "add")
	metrics.StoreOperationsTotal.WithLabelValues(blockStoreLabel, "add").Inc()

	if meta.BlockHash == "" {
		return ledgererr.DataError("meta.blockHash is required", nil)
	}
	if len(block.Event) == 0 {
		return ledgererr.DataError("block must reference at least one event", map[string]interface{}{"blockId": block.ID})
	}
	ok, err := s.events.ExistsAtHeight(ctx, block.Event, block.BlockHeight)
	if err != nil {
		return err
	}
	if !ok {
		return ledgererr.InvalidState("block references an event that does not exist at this block's height", map[string]interface{}{
			"blockId":     block.ID,
			"blockHeight": block.BlockHeight,
		})
	}

	now := time.Now().UTC()
	if meta.Created.IsZero() {
		meta.Created = now
	}
	if meta.Updated.IsZero() {
		meta.Updated = now
	}

	hashedID := s.hasher.HashString(block.ID)
	doc := blockToDoc(block, meta, hashedID)
	if err := s.col.InsertOne(ctx, doc); err != nil {
		if docstore.IsDuplicateKey(err) {
			return ledgererr.Duplicate("duplicate block", map[string]interface{}{"blockId": block.ID, "blockHeight": block.BlockHeight})
		}
		return err
	}

	metrics.LatestBlockHeight.WithLabelValues(s.ledgerNodeID).Set(float64(block.BlockHeight))

	if s.broker != nil {
		s.broker.Publish(&events.Event{
			Type:    events.EventBlockAdd,
			Message: fmt.Sprintf("block %s added at height %d", block.ID, block.BlockHeight),
			Metadata: map[string]string{
				"ledgerNodeId": s.ledgerNodeID,
				"blockId":      block.ID,
				"blockHash":    meta.BlockHash,
				"blockHeight":  fmt.Sprintf("%d", block.BlockHeight),
			},
		})
	}
	return nil
}

// Get fetches one block by its ID and consensus flag, expanding its
// events via EventStore per spec.md §4.4's event-expansion contract.
func (s *BlockStore) Get(ctx context.Context, blockID string, consensus bool) (*types.StoredBlock, error) {
	doc, err := s.col.FindOne(ctx, docstore.Filter{Eq: docstore.M{
		"_id":            s.hasher.HashString(blockID),
		"meta.consensus": consensus,
	}})
	if err != nil {
		if err == docstore.ErrNoDocuments {
			return nil, ledgererr.NotFound("block not found", map[string]interface{}{"blockId": blockID})
		}
		return nil, err
	}
	return s.expand(ctx, blockFromDoc(doc))
}

// GetByHeight fetches the consensus block at blockHeight, events expanded.
func (s *BlockStore) GetByHeight(ctx context.Context, blockHeight int64) (*types.StoredBlock, error) {
	doc, err := s.col.FindOne(ctx, docstore.Filter{Eq: docstore.M{
		"block.blockHeight": float64(blockHeight),
		"meta.consensus":    true,
	}})
	if err != nil {
		if err == docstore.ErrNoDocuments {
			return nil, ledgererr.NotFound("block not found", map[string]interface{}{"blockHeight": blockHeight})
		}
		return nil, err
	}
	return s.expand(ctx, blockFromDoc(doc))
}

// GetGenesis returns the consensus block at height 0, events expanded.
func (s *BlockStore) GetGenesis(ctx context.Context) (*types.StoredBlock, error) {
	return s.GetByHeight(ctx, 0)
}

// GetLatest returns the consensus block with the greatest blockHeight,
// events expanded. Returns an empty StoredBlock (no error) when the
// ledger has no consensus blocks yet, per spec.md §4.4's
// "{eventBlock: {}}" sentinel.
func (s *BlockStore) GetLatest(ctx context.Context) (*types.StoredBlock, error) {
	cur, err := s.col.Find(ctx, docstore.Filter{Eq: docstore.M{"meta.consensus": true}}, docstore.FindOptions{
		Sort:  []docstore.SortField{{Field: "block.blockHeight", Desc: true}},
		Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	if !cur.Next(ctx) {
		return &types.StoredBlock{}, nil
	}
	return s.expand(ctx, blockFromDoc(cur.Decode()))
}

// expand fills block.Events with every non-deleted event whose
// meta.blockHeight equals the block's height, hydrated and sorted by
// meta.blockOrder ascending, via the owning EventStore.
func (s *BlockStore) expand(ctx context.Context, block *types.StoredBlock) (*types.StoredBlock, error) {
	height := block.Block.BlockHeight
	hydrated, err := s.events.GetMany(ctx, GetManyOptions{BlockHeight: &height})
	if err != nil {
		return nil, err
	}
	block.Events = hydrated
	return block, nil
}

// GetLatestBlockHeight returns the greatest blockHeight with
// meta.consensus = true. Fails NotFound if the ledger has no consensus
// blocks.
func (s *BlockStore) GetLatestBlockHeight(ctx context.Context) (int64, error) {
	cur, err := s.col.Find(ctx, docstore.Filter{Eq: docstore.M{"meta.consensus": true}}, docstore.FindOptions{
		Sort:  []docstore.SortField{{Field: "block.blockHeight", Desc: true}},
		Limit: 1,
	})
	if err != nil {
		return 0, err
	}
	defer cur.Close(ctx)
	if !cur.Next(ctx) {
		return 0, ledgererr.NotFound("ledger has no consensus blocks", nil)
	}
	return int64(asFloat(docGet(cur.Decode(), "block", "blockHeight"))), nil
}

// docGet reads a nested field from a decoded document, returning nil if
// any segment along path is absent.
func docGet(doc map[string]interface{}, path ...string) interface{} {
	var cur interface{} = doc
	for _, p := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur = m[p]
	}
	return cur
}

// GetLatestSummary returns the BlockSummary (omitting block.fields) for
// the latest consensus block. Unlike GetLatest, an empty ledger fails
// NotFound rather than returning an empty sentinel — there is no
// summary to project.
func (s *BlockStore) GetLatestSummary(ctx context.Context) (*types.BlockSummary, error) {
	height, err := s.GetLatestBlockHeight(ctx)
	if err != nil {
		return nil, err
	}
	block, err := s.GetByHeight(ctx, height)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, block)
}

// GetSummary returns the BlockSummary for one block by ID, matching
// consensus blocks by default.
//
// Deprecated: kept for API completeness; Get returns the same block with
// its events expanded.
func (s *BlockStore) GetSummary(ctx context.Context, blockID string) (*types.BlockSummary, error) {
	block, err := s.Get(ctx, blockID, true)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, block)
}

// GetSummaryByHeight returns the BlockSummary for the block at
// blockHeight.
//
// Deprecated: this method exists only to preserve a height-indexed
// lookup path the original API exposed; GetByHeight returns the same
// block with its events expanded.
func (s *BlockStore) GetSummaryByHeight(ctx context.Context, blockHeight int64) (*types.BlockSummary, error) {
	block, err := s.GetByHeight(ctx, blockHeight)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, block)
}

func (s *BlockStore) summarize(ctx context.Context, block *types.StoredBlock) (*types.BlockSummary, error) {
	return &types.BlockSummary{
		Context:           block.Block.Context,
		ID:                block.Block.ID,
		BlockHeight:       block.Block.BlockHeight,
		ConsensusMethod:   block.Block.ConsensusMethod,
		Type:              block.Block.Type,
		PreviousBlock:     block.Block.PreviousBlock,
		PreviousBlockHash: block.Block.PreviousBlockHash,
		Meta:              block.Meta,
		EventHash:         block.Block.Event,
	}, nil
}

// Update applies a restricted meta.* patch to the block named by
// blockID.
func (s *BlockStore) Update(ctx context.Context, blockID string, patches []Patch) error {
	update, err := buildUpdate(patches)
	if err != nil {
		return err
	}
	matched, err := s.col.UpdateOne(ctx, docstore.Filter{Eq: docstore.M{"_id": s.hasher.HashString(blockID)}}, update)
	if err != nil {
		return err
	}
	if matched == 0 {
		return ledgererr.NotFound("block not found", map[string]interface{}{"blockId": blockID})
	}
	return nil
}

// Remove soft-deletes the block named by blockID.
func (s *BlockStore) Remove(ctx context.Context, blockID string) error {
	now := time.Now().UTC()
	matched, err := s.col.UpdateOne(ctx, docstore.Filter{
		Eq:     docstore.M{"_id": s.hasher.HashString(blockID)},
		Exists: map[string]bool{"meta.deleted": false},
	}, docstore.Update{
		Set: docstore.M{"meta.deleted": formatTime(now), "meta.updated": formatTime(now)},
	})
	if err != nil {
		return err
	}
	if matched == 0 {
		return ledgererr.NotFound("block not found", map[string]interface{}{"blockId": blockID})
	}
	return nil
}

func blockFromDoc(doc map[string]interface{}) *types.StoredBlock {
	blockDoc, _ := doc["block"].(map[string]interface{})
	metaDoc, _ := doc["meta"].(map[string]interface{})

	block := types.Block{
		Type:              asString(blockDoc["type"]),
		ID:                asString(blockDoc["id"]),
		BlockHeight:       int64(asFloat(blockDoc["blockHeight"])),
		PreviousBlock:     asString(blockDoc["previousBlock"]),
		PreviousBlockHash: asString(blockDoc["previousBlockHash"]),
		ConsensusMethod:   asString(blockDoc["consensusMethod"]),
	}
	if ctxVal, ok := blockDoc["@context"].([]interface{}); ok {
		for _, c := range ctxVal {
			if s, ok := c.(string); ok {
				block.Context = append(block.Context, s)
			}
		}
	}
	if evs, ok := blockDoc["event"].([]interface{}); ok {
		for _, e := range evs {
			if s, ok := e.(string); ok {
				block.Event = append(block.Event, s)
			}
		}
	}
	for k, v := range blockDoc {
		if _, reserved := reservedBlockFields[k]; reserved {
			continue
		}
		if block.Fields == nil {
			block.Fields = make(map[string]interface{})
		}
		block.Fields[k] = v
	}

	meta := types.BlockMeta{
		Meta:       types.Meta{Consensus: asBool(metaDoc["consensus"])},
		BlockHash:  asString(metaDoc["blockHash"]),
		BlockOrder: int64(asFloat(metaDoc["blockOrder"])),
	}

	return &types.StoredBlock{HashedID: asString(doc["_id"]), Block: block, Meta: meta}
}
