// Package l1samples owns Layer 1 (Samples) of the sweepcast data model.
//
// Responsibilities: distance gating of raw angle/distance samples, the
// polar to Cartesian frame transform, and ROI clipping with normalisation
// into the unit square. Everything here is a pure function of its inputs and
// the current config snapshot.
//
// Dependency rule: L1 has no inward dependencies on higher layers.
package l1samples
