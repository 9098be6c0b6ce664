// Package pipeline runs the per-sample processing cycle.
//
// It wires together stages from L1 Samples, L2 Sweeps and L3 Grid with an
// output encoder and a datagram sink. The pipeline does not own domain logic;
// it sequences the layer packages once per sample on a single goroutine and
// decides when to emit.
package pipeline
