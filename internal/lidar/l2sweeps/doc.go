// Package l2sweeps owns Layer 2 (Sweeps) of the sweepcast data model.
//
// Responsibilities: detecting scan-cycle wraparound from the raw angle
// stream and numbering sweeps. The detector looks at every raw angle, before
// the distance gate and ROI filter, so that sweeps are counted even when the
// ROI is empty.
//
// Dependency rule: L2 may depend on L1, but never on L3+.
package l2sweeps
