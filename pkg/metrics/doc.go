/*
Package metrics provides Prometheus metrics collection and exposition for
the ledger storage engine.

The metrics package defines and registers the engine's metrics using the
Prometheus client library, giving an operator visibility into store
operation counts, AddMany chunking behavior, duplicate-key skips, and
the latest committed block height per ledger. Metrics are exposed via an
HTTP handler for scraping by a Prometheus server.

# Metrics Catalog

Store Operation Metrics:

ledgerstore_store_operations_total{store, operation}:
  - Type: Counter
  - Description: Total store operations by store ("block"/"event"/"operation") and operation name
  - Example: ledgerstore_store_operations_total{store="block",operation="add"} 120

ledgerstore_store_operation_duration_seconds{store, operation}:
  - Type: Histogram
  - Description: Store operation duration in seconds
  - Buckets: Default Prometheus buckets

AddMany Chunking Metrics:

ledgerstore_add_many_chunks_total{store}:
  - Type: Counter
  - Description: Total number of chunks an AddMany batch was split into

ledgerstore_add_many_chunk_size_documents{store}:
  - Type: Histogram
  - Description: Number of documents per AddMany chunk
  - Buckets: 1, 10, 25, 50, 100, 150, 200, 250

ledgerstore_duplicate_skips_total{store}:
  - Type: Counter
  - Description: Documents discarded from a batch insert due to a duplicate key

Block Height Metrics:

ledgerstore_latest_block_height{ledgerNodeId}:
  - Type: Gauge
  - Description: Highest committed block height, per ledger node

# Usage

	timer := metrics.NewTimer()
	err := blockStore.Add(ctx, block, meta)
	metrics.StoreOperationsTotal.WithLabelValues("block", "add").Inc()
	timer.ObserveDurationVec(metrics.StoreOperationDuration, "block", "add")

Exposing the endpoint:

	http.Handle("/metrics", metrics.Handler())
	http.ListenAndServe(":9090", nil)

# Design Patterns

Package Init Registration:
  - All metrics registered in init() function
  - MustRegister panics on duplicate registration

Timer Pattern:
  - Create a Timer at operation start
  - Call ObserveDuration/ObserveDurationVec at completion
  - Supports both simple and vector histograms
*/
package metrics
