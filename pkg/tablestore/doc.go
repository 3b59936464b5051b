// Package tablestore provides a partitioned entity store on a Redis backend.
//
// Entities are JSON documents addressed by (table, partition key, row key).
// Each partition keeps its row keys in a sorted-set index, so a partition can
// be paged through with a stable offset/count window. This serves two roles:
//
//   - the show catalog: partition "show" holds one row per known show ID,
//     which the batch enumerator walks window by window
//   - the tracking tables: import progress records, retry attempt records and
//     data health metrics, each addressed point-wise by partition and row key
//
// # Basic Usage
//
//	store := tablestore.NewStore(redisClient)
//
//	// Point write and read
//	err := store.Put(ctx, "importtracking", "show_episodes_import", importID, record)
//	err = store.Get(ctx, "importtracking", "show_episodes_import", importID, &record)
//	if errors.Is(err, tablestore.ErrNotFound) {
//		// no such record
//	}
//
//	// Ordered partition window
//	keys, err := store.RowKeys(ctx, "showids", "show", 0, 1000)
//
// # Metrics
//
// The store exports Prometheus metrics:
//
//   - tablestore_operations_total{operation,table} - successful operations
//   - tablestore_errors_total{operation,table} - failed operations
package tablestore
