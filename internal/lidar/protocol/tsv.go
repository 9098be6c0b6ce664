package protocol

import (
	"bytes"
	"fmt"
	"strconv"
)

// TableEncoder produces newline-separated text: an optional meta line, the
// header "x\ty", then one "%.4f\t%.4f" row per point.
type TableEncoder struct {
	Meta bool
}

func (TableEncoder) Name() string        { return FormatTSV }
func (TableEncoder) ContentType() string { return "text/tab-separated-values" }

func (e TableEncoder) EncodeBatch(b Batch) ([]byte, error) {
	if err := checkFinite(b.Points); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Grow(32 + len(b.Points)*14)
	if e.Meta {
		detect := 0
		if b.Detect {
			detect = 1
		}
		fmt.Fprintf(&buf, "meta\tsweep\t%d\tdetect\t%d\tcount\t%d\twidth_mm\t%s\tdepth_mm\t%s\n",
			b.Sweep, detect, len(b.Points), formatMM(b.ROIWidth), formatMM(b.ROIDepth))
	}
	buf.WriteString("x\ty")
	for _, p := range b.Points {
		fmt.Fprintf(&buf, "\n%.4f\t%.4f", p.X, p.Y)
	}
	return buf.Bytes(), nil
}

func (TableEncoder) EncodeSweep(m SweepMarker) ([]byte, error) {
	return []byte("meta\tsweep\t" + strconv.Itoa(m.Sweep)), nil
}

func formatMM(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
