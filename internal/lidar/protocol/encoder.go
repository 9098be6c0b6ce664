// Package protocol serialises outbound batches into wire payloads.
//
// One Encoder is chosen per deployment. All encoders are pure: they hold only
// immutable options and may be shared between goroutines.
package protocol

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/banshee-data/sweepcast/internal/lidar/l1samples"
)

// Batch is one emission: the limited point set plus the metadata every
// payload format carries.
type Batch struct {
	Time     time.Time
	Sweep    int
	Detect   bool
	Points   []l1samples.NormalizedPoint
	ROIWidth float64 // millimetres
	ROIDepth float64 // millimetres
}

// Count returns the number of points in the batch.
func (b Batch) Count() int {
	return len(b.Points)
}

// SweepMarker is the lightweight boundary message sent when a new sweep
// starts and sweep-synchronised output is enabled.
type SweepMarker struct {
	Time  time.Time
	Sweep int
}

// Encoder turns batches and sweep markers into datagram payloads.
type Encoder interface {
	Name() string
	ContentType() string
	EncodeBatch(Batch) ([]byte, error)
	EncodeSweep(SweepMarker) ([]byte, error)
}

// Options configures encoders that have format-specific settings.
type Options struct {
	OSCPrefix string // address prefix for OSC messages, default "/lidar"
	TSVMeta   bool   // emit the leading meta line in TSV payloads
}

// Format names accepted by NewEncoder.
const (
	FormatJSON  = "json"
	FormatOSC   = "osc"
	FormatTSV   = "tsv"
	FormatProto = "proto"
)

// Formats lists every supported format name.
var Formats = []string{FormatJSON, FormatOSC, FormatTSV, FormatProto}

// NewEncoder returns the encoder registered under name.
func NewEncoder(name string, opts Options) (Encoder, error) {
	switch strings.ToLower(name) {
	case FormatJSON:
		return JSONEncoder{}, nil
	case FormatOSC:
		return NewOSCEncoder(opts.OSCPrefix), nil
	case FormatTSV:
		return TableEncoder{Meta: opts.TSVMeta}, nil
	case FormatProto:
		return ProtoEncoder{}, nil
	}
	return nil, fmt.Errorf("unknown output format %q (want one of %s)", name, strings.Join(Formats, ", "))
}

// epochSeconds converts t to fractional seconds since the Unix epoch.
func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// round4 rounds v to four decimal places.
func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// checkFinite returns an error for the first non-finite coordinate. Points
// are clamped upstream, so a failure here indicates a defect.
func checkFinite(points []l1samples.NormalizedPoint) error {
	for i, p := range points {
		if math.IsNaN(p.X) || math.IsInf(p.X, 0) || math.IsNaN(p.Y) || math.IsInf(p.Y, 0) {
			return fmt.Errorf("point %d is not finite: (%v, %v)", i, p.X, p.Y)
		}
	}
	return nil
}
