package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/webledger/ledgerstore/pkg/ledgererr"
	"github.com/webledger/ledgerstore/pkg/types"
)

func TestBlockStoreAddRequiresKnownEvents(t *testing.T) {
	handle, _ := testLedger(t)
	ctx := context.Background()

	err := handle.Blocks.Add(ctx, types.Block{
		ID:          "urn:uuid:block-0",
		Type:        "WebLedgerEventBlock",
		BlockHeight: 0,
		Event:       []string{"urn:uuid:event-missing"},
	}, types.BlockMeta{BlockHash: "hash:block-0"})
	require.True(t, ledgererr.Is(err, ledgererr.KindInvalidState))
}

func TestBlockStoreAddRejectsEventAtWrongHeight(t *testing.T) {
	handle, _ := testLedger(t)
	ctx := context.Background()

	op0 := addOperation(t, handle, "urn:uuid:record-1", "urn:uuid:event-0", 0)
	addEvent(t, handle, "urn:uuid:event-0", []string{op0}, 1, 0)

	err := handle.Blocks.Add(ctx, types.Block{
		ID:          "urn:uuid:block-0",
		Type:        "WebLedgerEventBlock",
		BlockHeight: 5,
		Event:       []string{"urn:uuid:event-0"},
	}, types.BlockMeta{BlockHash: "hash:block-0"})
	require.True(t, ledgererr.Is(err, ledgererr.KindInvalidState))
}

func TestBlockStoreAddRejectsEmptyEventList(t *testing.T) {
	handle, _ := testLedger(t)
	err := handle.Blocks.Add(context.Background(), types.Block{
		ID:          "urn:uuid:block-0",
		BlockHeight: 0,
	}, types.BlockMeta{BlockHash: "hash:block-0"})
	require.True(t, ledgererr.Is(err, ledgererr.KindDataError))
}

func TestBlockStoreAddGetGenesisAndLatest(t *testing.T) {
	handle, _ := testLedger(t)
	ctx := context.Background()

	op0 := addOperation(t, handle, "urn:uuid:record-1", "urn:uuid:event-0", 0)
	addEvent(t, handle, "urn:uuid:event-0", []string{op0}, 0, 0)
	addBlock(t, handle, "urn:uuid:block-0", 0, []string{"urn:uuid:event-0"})

	op1 := addOperation(t, handle, "urn:uuid:record-1", "urn:uuid:event-1", 0)
	addEvent(t, handle, "urn:uuid:event-1", []string{op1}, 1, 0)
	addBlock(t, handle, "urn:uuid:block-1", 1, []string{"urn:uuid:event-1"})

	genesis, err := handle.Blocks.GetGenesis(ctx)
	require.NoError(t, err)
	require.Equal(t, "urn:uuid:block-0", genesis.Block.ID)
	require.Len(t, genesis.Events, 1)
	require.Equal(t, "urn:uuid:event-0", genesis.Events[0].Meta.EventHash)
	require.Len(t, genesis.Events[0].Event.Operation, 1)

	latest, err := handle.Blocks.GetLatest(ctx)
	require.NoError(t, err)
	require.Equal(t, "urn:uuid:block-1", latest.Block.ID)
	require.Len(t, latest.Events, 1)

	height, err := handle.Blocks.GetLatestBlockHeight(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), height)
}

func TestBlockStoreGetLatestEmptySentinel(t *testing.T) {
	handle, _ := testLedger(t)
	ctx := context.Background()

	latest, err := handle.Blocks.GetLatest(ctx)
	require.NoError(t, err)
	require.Empty(t, latest.Block.ID)
	require.Empty(t, latest.Events)

	_, err = handle.Blocks.GetLatestBlockHeight(ctx)
	require.True(t, ledgererr.Is(err, ledgererr.KindNotFound))
}

func TestBlockStoreAddRejectsDuplicateHash(t *testing.T) {
	handle, _ := testLedger(t)
	ctx := context.Background()

	op0 := addOperation(t, handle, "urn:uuid:record-1", "urn:uuid:event-0", 0)
	addEvent(t, handle, "urn:uuid:event-0", []string{op0}, 0, 0)
	addBlock(t, handle, "urn:uuid:block-0", 0, []string{"urn:uuid:event-0"})

	err := handle.Blocks.Add(ctx, types.Block{
		ID:          "urn:uuid:block-0",
		Type:        "WebLedgerEventBlock",
		BlockHeight: 0,
		Event:       []string{"urn:uuid:event-0"},
	}, types.BlockMeta{BlockHash: "hash:block-0"})
	require.True(t, ledgererr.Is(err, ledgererr.KindDuplicateError))
}

func TestBlockStoreGetSummaryOmitsNothingButFields(t *testing.T) {
	handle, _ := testLedger(t)
	ctx := context.Background()

	op0 := addOperation(t, handle, "urn:uuid:record-1", "urn:uuid:event-0", 0)
	addEvent(t, handle, "urn:uuid:event-0", []string{op0}, 0, 0)
	addBlock(t, handle, "urn:uuid:block-0", 0, []string{"urn:uuid:event-0"})

	summary, err := handle.Blocks.GetSummary(ctx, "urn:uuid:block-0")
	require.NoError(t, err)
	require.Equal(t, "urn:uuid:block-0", summary.ID)
	require.Equal(t, []string{"urn:uuid:event-0"}, summary.EventHash)

	byHeight, err := handle.Blocks.GetSummaryByHeight(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, summary.ID, byHeight.ID)
}

func TestBlockStoreRoundTripsOpaqueFields(t *testing.T) {
	handle, _ := testLedger(t)
	ctx := context.Background()

	op0 := addOperation(t, handle, "urn:uuid:record-1", "urn:uuid:event-0", 0)
	addEvent(t, handle, "urn:uuid:event-0", []string{op0}, 0, 0)

	err := handle.Blocks.Add(ctx, types.Block{
		ID:          "urn:uuid:block-0",
		Type:        "WebLedgerEventBlock",
		BlockHeight: 0,
		Event:       []string{"urn:uuid:event-0"},
		Fields:      map[string]interface{}{"electionResult": "accepted"},
	}, types.BlockMeta{
		Meta:      types.Meta{Consensus: true},
		BlockHash: "hash:block-0",
	})
	require.NoError(t, err)

	got, err := handle.Blocks.Get(ctx, "urn:uuid:block-0", true)
	require.NoError(t, err)
	require.Equal(t, "accepted", got.Block.Fields["electionResult"])
}

func TestBlockStoreUpdateAndRemove(t *testing.T) {
	handle, _ := testLedger(t)
	ctx := context.Background()

	op0 := addOperation(t, handle, "urn:uuid:record-1", "urn:uuid:event-0", 0)
	addEvent(t, handle, "urn:uuid:event-0", []string{op0}, 0, 0)
	addBlock(t, handle, "urn:uuid:block-0", 0, []string{"urn:uuid:event-0"})

	err := handle.Blocks.Update(ctx, "urn:uuid:block-0", []Patch{
		{Op: PatchSet, Path: "meta.consensus", Value: true},
	})
	require.NoError(t, err)

	require.NoError(t, handle.Blocks.Remove(ctx, "urn:uuid:block-0"))
	err = handle.Blocks.Remove(ctx, "urn:uuid:block-0")
	require.True(t, ledgererr.Is(err, ledgererr.KindNotFound))
}
