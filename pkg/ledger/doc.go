// Package ledger implements the web ledger storage engine: a registry
// of independently-addressable ledgers, each backed by three
// collections in the shared DocStore.
//
//	LedgerRegistry
//	    │
//	    ├── Add / Get / Remove / Iterate ── types.Ledger (registry row)
//	    │
//	    └── StorageHandle
//	            │
//	            ├── Blocks     (*BlockStore)     block_<storageId>
//	            ├── Events     (*EventStore)     event_<storageId>
//	            └── Operations (*OperationStore) operation_<storageId>
//
// Writes flow bottom-up — operations first, then the event that
// references them, then the block that references the event — and
// reads flow top-down via hash joins performed as direct method calls,
// never inline nesting: a block only ever stores event hashes, and an
// event stores neither its operations nor their hashes (both are
// rehydrated from the operation collection by eventHash on Get/GetMany).
//
// (blockHeight, blockOrder, eventOrder) is the one ordering authority
// the engine recognizes; GetRecordHistory is the place that triple gets
// assembled end to end.
//
// Store methods report their own failures as a *ledgererr.LedgerError
// from the pkg/ledgererr taxonomy, so callers can branch with
// ledgererr.Is instead of string-matching; errors from the underlying
// DocStore are returned as they come.
package ledger
