package ledger

import "github.com/webledger/ledgerstore/pkg/docstore"

// BlockIndexes returns the index set spec.md §6.3 names for the block
// collection.
func BlockIndexes() []docstore.IndexSpec {
	return []docstore.IndexSpec{
		{Name: "block.id.core.1", Fields: []string{"_id"}, Unique: true},
		{Name: "block.blockHash.core.1", Fields: []string{"meta.blockHash"}, Unique: true},
		{Name: "block.type.blockHeight.core.1", Fields: []string{"block.type", "block.blockHeight"}, Unique: true},
		{Name: "block.consensus.previousBlockHash.core.1", Fields: []string{"meta.consensus", "block.previousBlockHash"}, Unique: true},
		{Name: "block.consensus.core.1", Fields: []string{"meta.consensus"}},
		{Name: "block.consensusDate.core.1", Fields: []string{"meta.consensusDate"}},
		{Name: "block.deleted.core.1", Fields: []string{"meta.deleted"}},
	}
}

// EventIndexes returns the index set spec.md §6.3 names for the event
// collection.
func EventIndexes() []docstore.IndexSpec {
	return []docstore.IndexSpec{
		{Name: "event.eventHash.core.1", Fields: []string{"meta.eventHash"}, Unique: true},
		{Name: "event.deleted.eventHash.core.1", Fields: []string{"meta.deleted", "meta.eventHash"}, Unique: true},
		{Name: "event.blockHeight.blockOrder.core.1", Fields: []string{"meta.blockHeight", "meta.blockOrder"}, Sparse: true},
		{Name: "event.consensus.type.blockHeight.core.1", Fields: []string{"meta.consensus", "event.type", "meta.blockHeight"}},
		{Name: "event.type.created.core.1", Fields: []string{"event.type", "meta.created"}},
		{Name: "event.type.consensusDate.core.1", Fields: []string{"event.type", "meta.consensusDate"}},
	}
}

// OperationIndexes returns the index set spec.md §6.3 names for the
// operation collection, preserving the spec's literal index names
// (operationIndex1/2, operation.operationHash.core.1) since spec.md §4.2
// says tests may assert on them directly.
func OperationIndexes() []docstore.IndexSpec {
	return []docstore.IndexSpec{
		{
			Name:   "operationIndex1",
			Fields: []string{"meta.eventHash", "meta.eventOrder", "meta.operationHash", "meta.deleted"},
			Unique: true,
		},
		{Name: "operationIndex2", Fields: []string{"recordId"}},
		{Name: "operation.operationHash.core.1", Fields: []string{"meta.operationHash"}},
	}
}
