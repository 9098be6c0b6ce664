package l1samples

import "github.com/banshee-data/sweepcast/internal/config"

// Ingest runs a raw sample through the distance gate, the frame transform and
// the ROI normaliser using one config snapshot.
func Ingest(s RawSample, cfg *config.RuntimeConfig) (NormalizedPoint, Outcome) {
	if !Gate(s, cfg.MinDist, cfg.MaxDist) {
		return NormalizedPoint{}, RejectedDistance
	}
	p, ok := Normalize(ToCartesian(s, cfg.AngleOffset), cfg.ROIWidth, cfg.ROIDepth)
	if !ok {
		return NormalizedPoint{}, OutsideROI
	}
	return p, Accepted
}
