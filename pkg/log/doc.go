/*
Package log provides structured logging for the ledger storage engine
using zerolog.

The log package wraps zerolog to give every store JSON-structured or
human-readable console logging, component-scoped child loggers, and
helper functions for the common log levels. All logs include
timestamps.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	logger := log.Logger.With().Str("component", "block_store").Logger()
	logger.Debug().Msg("block inserted")

# Child Loggers

Every store constructor in pkg/ledger takes a base zerolog.Logger and
scopes it with a "component" field via zerolog's own With() builder
(e.g. NewBlockStore, NewEventStore, NewOperationStore, NewLedgerRegistry).
There is no wrapper for this in pkg/log: the base logger passed in is
whatever the caller already has in hand (log.Logger at the process root,
or a further-scoped logger a caller built itself), so the scoping has to
compose onto an arbitrary logger rather than always the package global.

# Design Notes

No log.Fatal call ever appears in library code (pkg/...); it is reserved
for cmd/ledgerctl, where a fatal condition should actually terminate the
process. Store code returns a *ledgererr.LedgerError instead and lets the
caller decide what to do about it.
*/
package log
