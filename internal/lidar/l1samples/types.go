package l1samples

import "fmt"

// RawSample is one measurement from the rotating sensor.
type RawSample struct {
	Angle    float64 // degrees, nominally [0, 360)
	Distance float64 // millimetres; zero or negative means no return
}

// CartesianPoint is a sample in the sensor-centred frame, in millimetres.
// Y points forward (angle 0) and X is lateral.
type CartesianPoint struct {
	X, Y float64
}

// NormalizedPoint is a point inside the ROI scaled to [0,1]x[0,1]. X 0 is the
// left ROI edge and Y 0 is the sensor origin.
type NormalizedPoint struct {
	X, Y float64
}

// GridCell identifies an aggregation bucket.
type GridCell struct {
	GX, GY int
}

func (c GridCell) String() string {
	return fmt.Sprintf("(%d,%d)", c.GX, c.GY)
}

// Outcome is the result of running one sample through Ingest.
type Outcome int

const (
	Accepted Outcome = iota
	RejectedDistance
	OutsideROI
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case RejectedDistance:
		return "rejected_distance"
	case OutsideROI:
		return "outside_roi"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}
