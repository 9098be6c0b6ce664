package l3grid

import (
	"cmp"
	"slices"

	"github.com/banshee-data/sweepcast/internal/lidar/l1samples"
)

// AggregatedPoint is the centroid of all window entries sharing a cell.
type AggregatedPoint struct {
	Cell  l1samples.GridCell
	Point l1samples.NormalizedPoint
	Hits  int
}

type cellSum struct {
	hits       int
	sumX, sumY float64
}

// Aggregator groups window entries by grid cell. Its cell map is reused
// between calls so that steady-state aggregation does not allocate.
type Aggregator struct {
	cells map[l1samples.GridCell]cellSum
}

// NewAggregator returns an Aggregator ready for use.
func NewAggregator() *Aggregator {
	return &Aggregator{cells: make(map[l1samples.GridCell]cellSum)}
}

// Aggregate returns one centroid per cell holding at least minHits entries,
// sorted by (GY, GX). Entries quantised with a different step than step are
// re-quantised so that a GRID_STEP change applies to the whole window at
// once. Results are appended to dst.
func (a *Aggregator) Aggregate(w *Window, step float64, minHits int, dst []AggregatedPoint) []AggregatedPoint {
	if a.cells == nil {
		a.cells = make(map[l1samples.GridCell]cellSum)
	}
	clear(a.cells)

	for i := 0; i < w.Len(); i++ {
		e := w.At(i)
		cell := e.Cell
		if e.Step != step {
			cell = l1samples.Quantize(e.Point, step)
		}
		s := a.cells[cell]
		s.hits++
		s.sumX += e.Point.X
		s.sumY += e.Point.Y
		a.cells[cell] = s
	}

	start := len(dst)
	for cell, s := range a.cells {
		if s.hits < minHits {
			continue
		}
		n := float64(s.hits)
		dst = append(dst, AggregatedPoint{
			Cell:  cell,
			Point: l1samples.NormalizedPoint{X: s.sumX / n, Y: s.sumY / n},
			Hits:  s.hits,
		})
	}
	slices.SortFunc(dst[start:], func(a, b AggregatedPoint) int {
		if c := cmp.Compare(a.Cell.GY, b.Cell.GY); c != 0 {
			return c
		}
		return cmp.Compare(a.Cell.GX, b.Cell.GX)
	})
	return dst
}
