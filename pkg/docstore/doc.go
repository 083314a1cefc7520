/*
Package docstore is the concrete, bbolt-backed implementation of the
DocStore contract spec.md §6.1 treats as an external collaborator:
indexed collections with atomic single-document writes, duplicate-key
detection, filtered/sorted find, and a restricted update primitive.

# Architecture

	┌──────────────────── BOLT DOCUMENT STORE ───────────────────┐
	│                                                              │
	│  ┌──────────────────────────────────────────────┐          │
	│  │              BoltDocStore                     │          │
	│  │  - File: <dataDir>/ledger.db                  │          │
	│  │  - One top-level bucket per collection        │          │
	│  └──────────────────┬─────────────────────────────┘         │
	│                     │                                        │
	│  ┌──────────────────▼─────────────────────────┐            │
	│  │         <collection> bucket                  │            │
	│  │   docs/       doc id -> JSON document        │            │
	│  │   idx/<name>/ composite key -> doc id        │            │
	│  │   idx_specs/  index name -> IndexSpec JSON   │            │
	│  └──────────────────────────────────────────────┘            │
	└──────────────────────────────────────────────────────────────┘

There is no query planner and no aggregation pipeline: bbolt exposes
neither, so Find performs an in-memory scan of a collection's docs
bucket, filters, sorts, and limits — the same trade the teacher's
BoltStore makes in GetServiceByName's ForEach scan, just generalized to
an arbitrary Filter/SortField. Joins across collections (event ->
operations, block -> events) are not expressed as a lookup stage here;
pkg/ledger performs them directly as Go method calls between
Collection handles, which is the idiomatic Go rendering of a
correlated subquery.
*/
package docstore
