package protocol

import (
	"encoding/json"
	"fmt"
)

type jsonPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type jsonROI struct {
	Width float64 `json:"width"`
	Depth float64 `json:"depth"`
}

// JSONBatch is the structured batch payload.
type JSONBatch struct {
	Type   string      `json:"type"`
	T      float64     `json:"t"`
	Sweep  int         `json:"sweep"`
	Count  int         `json:"count"`
	Detect bool        `json:"detect"`
	Points []jsonPoint `json:"points"`
	ROI    jsonROI     `json:"roi"`
}

// JSONSweep is the structured sweep marker payload.
type JSONSweep struct {
	Type  string  `json:"type"`
	T     float64 `json:"t"`
	Sweep int     `json:"sweep"`
}

// JSONEncoder produces one JSON object per datagram. Coordinates are rounded
// to four decimal places.
type JSONEncoder struct{}

func (JSONEncoder) Name() string        { return FormatJSON }
func (JSONEncoder) ContentType() string { return "application/json" }

func (JSONEncoder) EncodeBatch(b Batch) ([]byte, error) {
	if err := checkFinite(b.Points); err != nil {
		return nil, err
	}
	points := make([]jsonPoint, len(b.Points))
	for i, p := range b.Points {
		points[i] = jsonPoint{X: round4(p.X), Y: round4(p.Y)}
	}
	data, err := json.Marshal(JSONBatch{
		Type:   "lidar_points",
		T:      epochSeconds(b.Time),
		Sweep:  b.Sweep,
		Count:  len(points),
		Detect: b.Detect,
		Points: points,
		ROI:    jsonROI{Width: b.ROIWidth, Depth: b.ROIDepth},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch: %w", err)
	}
	return data, nil
}

func (JSONEncoder) EncodeSweep(m SweepMarker) ([]byte, error) {
	data, err := json.Marshal(JSONSweep{Type: "sweep", T: epochSeconds(m.Time), Sweep: m.Sweep})
	if err != nil {
		return nil, fmt.Errorf("failed to encode sweep marker: %w", err)
	}
	return data, nil
}
