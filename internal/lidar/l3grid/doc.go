// Package l3grid owns Layer 3 (Grid) of the sweepcast data model.
//
// Responsibilities: the time-bounded sliding window of normalised points,
// grid aggregation into per-cell centroids, and deterministic stride
// limiting of the emitted batch.
// Key types: Window, Entry, Aggregator, AggregatedPoint.
//
// Dependency rule: L3 may depend on L1-L2, but never on L4+.
package l3grid
