package l1samples

import (
	"math"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"
)

// Gate reports whether the sample's distance lies within [minDist, maxDist]
// and its angle is finite.
func Gate(s RawSample, minDist, maxDist float64) bool {
	if math.IsNaN(s.Angle) || math.IsInf(s.Angle, 0) {
		return false
	}
	return s.Distance >= minDist && s.Distance <= maxDist
}

// ToCartesian rotates the sample by offsetDeg and projects it onto the plane:
// x = d*sin(a), y = d*cos(a).
func ToCartesian(s RawSample, offsetDeg float64) CartesianPoint {
	rad := (s.Angle + offsetDeg) * math.Pi / 180
	sin, cos := math.Sincos(rad)
	return CartesianPoint{X: s.Distance * sin, Y: s.Distance * cos}
}

// ROIRect returns the region of interest as a closed rectangle: width centred
// on the sensor axis, depth extending forward from the origin.
func ROIRect(width, depth float64) r2.Rect {
	return r2.Rect{
		X: r1.Interval{Lo: -width / 2, Hi: width / 2},
		Y: r1.Interval{Lo: 0, Hi: depth},
	}
}

// Normalize maps p into the unit square. It returns false when p lies outside
// the ROI; boundary points are inside.
func Normalize(p CartesianPoint, width, depth float64) (NormalizedPoint, bool) {
	if !ROIRect(width, depth).ContainsPoint(r2.Point{X: p.X, Y: p.Y}) {
		return NormalizedPoint{}, false
	}
	return NormalizedPoint{
		X: clamp01((p.X + width/2) / width),
		Y: clamp01(p.Y / depth),
	}, true
}

// Quantize returns the grid cell containing p for the given step.
func Quantize(p NormalizedPoint, step float64) GridCell {
	return GridCell{
		GX: int(math.Floor(p.X / step)),
		GY: int(math.Floor(p.Y / step)),
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
