/*
Package types defines the core data structures of the web ledger storage
engine: ledgers, blocks, events, and operations, plus the meta envelope
shared by all three.

# Data model

	┌──────────────── LEDGER ────────────────┐
	│  block collection   (hash-addressed)   │
	│  event collection   (hash-addressed)   │
	│  operation collection (composite key)  │
	└─────────────────────────────────────────┘

A Block never embeds its events; Block.Event is a list of event hashes.
An Event of type WebLedgerOperationEvent never embeds its operations on
disk; they are joined in from the operation collection on read by
event hash, and EventMeta.OperationHash is rebuilt from the joined rows. An Operation carries a denormalized RecordID so
that a record's full history can be looked up without scanning events.

Absolute ordering across all three collections is the triple
(BlockHeight, BlockOrder, EventOrder).
*/
package types
