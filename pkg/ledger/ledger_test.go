package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/webledger/ledgerstore/pkg/docstore"
	"github.com/webledger/ledgerstore/pkg/hash"
	"github.com/webledger/ledgerstore/pkg/types"
)

// testLedger opens a fresh BoltDocStore under t.TempDir() and registers
// one ledger on it, returning the handle and its registry for tests
// that also exercise Get/Remove/Iterate.
func testLedger(t *testing.T) (*StorageHandle, *LedgerRegistry) {
	t.Helper()
	store, err := docstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	registry, err := NewLedgerRegistry(store, hash.New(), nil, zerolog.Nop())
	require.NoError(t, err)

	handle, err := registry.Add(context.Background(), "urn:uuid:test-ledger", nil)
	require.NoError(t, err)
	return handle, registry
}

// addOperation inserts one create-record operation for recordID under
// eventHash/eventOrder, returning its operationHash.
func addOperation(t *testing.T, h *StorageHandle, recordID, eventHash string, eventOrder int64) string {
	t.Helper()
	opHash := "op:" + recordID + ":" + eventHash
	n, err := h.Operations.AddMany(context.Background(), []types.StoredOperation{
		{
			RecordID: recordID,
			Operation: types.Operation{
				Type:   types.OperationTypeCreate,
				Record: map[string]interface{}{"id": recordID},
			},
			Meta: types.OperationMeta{
				EventHash:     eventHash,
				EventOrder:    eventOrder,
				OperationHash: opHash,
			},
		},
	}, false)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	return opHash
}

// addEvent inserts one consensus operation event at the given block
// position, referencing opHashes.
func addEvent(t *testing.T, h *StorageHandle, eventHash string, opHashes []string, blockHeight, blockOrder int64) {
	t.Helper()
	bh, bo := blockHeight, blockOrder
	err := h.Events.Add(context.Background(), types.Event{
		Type: types.EventTypeOperation,
	}, types.EventMeta{
		Meta:          types.Meta{Consensus: true},
		EventHash:     eventHash,
		OperationHash: opHashes,
		BlockHeight:   &bh,
		BlockOrder:    &bo,
	})
	require.NoError(t, err)
}

// addBlock inserts one consensus block. A block above height 0 links to
// "hash:urn:uuid:block-<height-1>", the hash addBlock gives the block one
// height below it.
func addBlock(t *testing.T, h *StorageHandle, blockID string, blockHeight int64, eventHashes []string) {
	t.Helper()
	var previousBlockHash string
	if blockHeight > 0 {
		previousBlockHash = fmt.Sprintf("hash:urn:uuid:block-%d", blockHeight-1)
	}
	err := h.Blocks.Add(context.Background(), types.Block{
		ID:                blockID,
		Type:              "WebLedgerEventBlock",
		BlockHeight:       blockHeight,
		PreviousBlockHash: previousBlockHash,
		Event:             eventHashes,
	}, types.BlockMeta{
		Meta:      types.Meta{Consensus: true, ConsensusDate: timePtr(time.Now().UTC())},
		BlockHash: "hash:" + blockID,
	})
	require.NoError(t, err)
}

func timePtr(t time.Time) *time.Time { return &t }
