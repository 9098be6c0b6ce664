package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/sweepcast/internal/lidar/protocol"
)

// datagram is what one captured payload decodes to.
type datagram struct {
	Format string
	Marker bool
	Sweep  int
	Points int
	Detect bool
}

// Summary aggregates every decoded datagram of a capture.
type Summary struct {
	Datagrams   int            `json:"datagrams"`
	Undecoded   int            `json:"undecoded"`
	Formats     map[string]int `json:"formats"`
	Batches     int            `json:"batches"`
	Markers     int            `json:"markers"`
	Detections  int            `json:"detections"`
	FirstSweep  int            `json:"first_sweep"`
	LastSweep   int            `json:"last_sweep"`
	PointsMean  float64        `json:"points_mean"`
	PointsStd   float64        `json:"points_stddev"`
	PointsMax   int            `json:"points_max"`
	DurationSec float64        `json:"duration_secs"`
	BatchRateHz float64        `json:"batch_rate_hz"`

	counts      []float64
	first, last time.Time
	seenSweep   bool
}

func newSummary() *Summary {
	return &Summary{Formats: make(map[string]int)}
}

// Add decodes one payload captured at ts and folds it into the summary.
func (s *Summary) Add(ts time.Time, payload []byte) error {
	s.Datagrams++
	if s.first.IsZero() || ts.Before(s.first) {
		s.first = ts
	}
	if ts.After(s.last) {
		s.last = ts
	}

	d, err := decode(payload)
	if err != nil {
		s.Undecoded++
		return err
	}
	s.Formats[d.Format]++

	if !s.seenSweep {
		s.FirstSweep = d.Sweep
		s.seenSweep = true
	}
	s.LastSweep = d.Sweep

	if d.Marker {
		s.Markers++
		return nil
	}
	s.Batches++
	if d.Detect {
		s.Detections++
	}
	s.counts = append(s.counts, float64(d.Points))
	s.PointsMax = max(s.PointsMax, d.Points)
	return nil
}

// Finish computes the derived fields.
func (s *Summary) Finish() {
	switch len(s.counts) {
	case 0:
	case 1:
		s.PointsMean = s.counts[0]
	default:
		s.PointsMean, s.PointsStd = stat.MeanStdDev(s.counts, nil)
	}
	s.DurationSec = s.last.Sub(s.first).Seconds()
	if s.DurationSec > 0 {
		s.BatchRateHz = float64(s.Batches) / s.DurationSec
	}
}

func decode(payload []byte) (datagram, error) {
	switch f := protocol.Sniff(payload); f {
	case protocol.FormatJSON:
		return decodeJSON(payload)
	case protocol.FormatOSC:
		return decodeOSC(payload)
	case protocol.FormatTSV:
		return decodeTSV(payload)
	case protocol.FormatProto:
		m, err := protocol.DecodeStruct(payload)
		if err != nil {
			return datagram{}, err
		}
		return fromObject(protocol.FormatProto, m)
	default:
		return datagram{}, fmt.Errorf("unrecognised payload (%d bytes)", len(payload))
	}
}

func decodeJSON(payload []byte) (datagram, error) {
	var m map[string]interface{}
	if err := json.Unmarshal(payload, &m); err != nil {
		return datagram{}, fmt.Errorf("bad json payload: %w", err)
	}
	return fromObject(protocol.FormatJSON, m)
}

// fromObject reads the fields shared by the JSON and protobuf Struct payloads.
func fromObject(format string, m map[string]interface{}) (datagram, error) {
	d := datagram{Format: format}
	sweep, _ := m["sweep"].(float64)
	d.Sweep = int(sweep)
	switch m["type"] {
	case "sweep":
		d.Marker = true
	case "lidar_points":
		points, _ := m["points"].([]interface{})
		d.Points = len(points)
		d.Detect, _ = m["detect"].(bool)
	default:
		return datagram{}, fmt.Errorf("unknown %s payload type %v", format, m["type"])
	}
	return d, nil
}

func decodeOSC(payload []byte) (datagram, error) {
	_, msgs, err := protocol.DecodeBundle(payload)
	if err != nil {
		return datagram{}, err
	}
	d := datagram{Format: protocol.FormatOSC}
	for _, m := range msgs {
		leaf := m.Address[strings.LastIndex(m.Address, "/")+1:]
		var arg int32
		if len(m.Args) > 0 {
			arg, _ = m.Args[0].(int32)
		}
		switch leaf {
		case "point":
			d.Points++
		case "sweep":
			d.Marker = true
		case "sweep_index":
			d.Sweep = int(arg)
		case "detect":
			d.Detect = arg != 0
		}
	}
	return d, nil
}

func decodeTSV(payload []byte) (datagram, error) {
	d := datagram{Format: protocol.FormatTSV}
	lines := bytes.Split(payload, []byte("\n"))
	if bytes.HasPrefix(lines[0], []byte("meta\t")) {
		fields := strings.Split(string(lines[0]), "\t")
		for i := 1; i+1 < len(fields); i += 2 {
			switch fields[i] {
			case "sweep":
				d.Sweep, _ = strconv.Atoi(fields[i+1])
			case "detect":
				d.Detect = fields[i+1] == "1"
			}
		}
		lines = lines[1:]
		if len(lines) == 0 {
			d.Marker = true
			return d, nil
		}
	}
	if len(lines) == 0 || string(lines[0]) != "x\ty" {
		return datagram{}, fmt.Errorf("tsv payload without header")
	}
	for _, l := range lines[1:] {
		if len(l) > 0 {
			d.Points++
		}
	}
	return d, nil
}
