package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/webledger/ledgerstore/pkg/ledgererr"
	"github.com/webledger/ledgerstore/pkg/types"
)

func TestOperationStoreAddManyAndExists(t *testing.T) {
	handle, _ := testLedger(t)
	ctx := context.Background()

	opHash := addOperation(t, handle, "urn:uuid:record-1", "urn:uuid:event-1", 0)

	ok, err := handle.Operations.Exists(ctx, ExistsQuery{OperationHash: []string{opHash}})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = handle.Operations.Exists(ctx, ExistsQuery{RecordID: "urn:uuid:record-1"})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = handle.Operations.Exists(ctx, ExistsQuery{OperationHash: []string{"urn:uuid:missing"}})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOperationStoreExistsRequiresOperationHashOrRecordID(t *testing.T) {
	handle, _ := testLedger(t)
	_, err := handle.Operations.Exists(context.Background(), ExistsQuery{})
	require.True(t, ledgererr.Is(err, ledgererr.KindTypeError))
}

func TestOperationStoreAddManyDuplicate(t *testing.T) {
	handle, _ := testLedger(t)
	ctx := context.Background()

	op := types.StoredOperation{
		RecordID: "urn:uuid:record-1",
		Operation: types.Operation{
			Type:   types.OperationTypeCreate,
			Record: map[string]interface{}{"id": "urn:uuid:record-1"},
		},
		Meta: types.OperationMeta{
			EventHash:     "urn:uuid:event-1",
			EventOrder:    0,
			OperationHash: "urn:uuid:op-1",
		},
	}

	n, err := handle.Operations.AddMany(ctx, []types.StoredOperation{op}, false)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = handle.Operations.AddMany(ctx, []types.StoredOperation{op}, false)
	require.True(t, ledgererr.Is(err, ledgererr.KindDuplicateError))

	n, err = handle.Operations.AddMany(ctx, []types.StoredOperation{op}, true)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestOperationStoreGetRecordHistoryRejectsInvalidArgs(t *testing.T) {
	handle, _ := testLedger(t)
	ctx := context.Background()

	_, err := handle.Operations.GetRecordHistory(ctx, "", nil)
	require.True(t, ledgererr.Is(err, ledgererr.KindTypeError))

	neg := int64(-1)
	_, err = handle.Operations.GetRecordHistory(ctx, "urn:uuid:record-1", &neg)
	require.True(t, ledgererr.Is(err, ledgererr.KindTypeError))
}

func TestOperationStoreGetRecordHistoryOrdersByBlockThenEvent(t *testing.T) {
	handle, _ := testLedger(t)
	ctx := context.Background()
	recordID := "urn:uuid:record-1"

	op0 := addOperation(t, handle, recordID, "urn:uuid:event-0", 0)
	addEvent(t, handle, "urn:uuid:event-0", []string{op0}, 0, 0)
	addBlock(t, handle, "urn:uuid:block-0", 0, []string{"urn:uuid:event-0"})

	op1 := addOperation(t, handle, recordID, "urn:uuid:event-1", 0)
	addEvent(t, handle, "urn:uuid:event-1", []string{op1}, 1, 0)
	addBlock(t, handle, "urn:uuid:block-1", 1, []string{"urn:uuid:event-1"})

	history, err := handle.Operations.GetRecordHistory(ctx, recordID, nil)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, int64(0), history[0].BlockHeight)
	require.Equal(t, int64(1), history[1].BlockHeight)

	maxHeight := int64(0)
	history, err = handle.Operations.GetRecordHistory(ctx, recordID, &maxHeight)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, int64(0), history[0].BlockHeight)
}

func TestOperationStoreGetRecordHistoryNotFound(t *testing.T) {
	handle, _ := testLedger(t)
	_, err := handle.Operations.GetRecordHistory(context.Background(), "urn:uuid:missing-record", nil)
	require.True(t, ledgererr.Is(err, ledgererr.KindNotFound))
}
