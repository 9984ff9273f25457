// Package sim provides the core cache simulation engine for cachesim.
//
// # Reading Guide
//
// Start with these three files to understand the engine:
//   - geometry.go: cache shape (s, E, b) and address decomposition into tag/set/offset
//   - cache.go: the line arena and the per-access hit / fill / evict-LRU procedure
//   - statistics.go: hit/miss/eviction counters and the JSON results record
//
// # Architecture
//
// The engine consumes already-normalized AccessEvents; everything around it
// lives in sub-packages:
//   - sim/workload/: Valgrind lackey ingestion, zstd input, normalized CSV traces
//   - sim/trace/: per-access decision records and their summaries
//
// # Recency
//
// LRU order is tracked with a logical clock that advances once per processed
// access, never with wall-clock time, so identical inputs always produce
// identical statistics. A Cache is single-owner and not safe for concurrent
// use; independent geometries may be simulated in parallel with one Cache each.
package sim
