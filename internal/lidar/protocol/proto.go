package protocol

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ProtoEncoder produces the JSON payload shape as a marshalled
// google.protobuf.Struct, for consumers that already speak protobuf.
type ProtoEncoder struct{}

func (ProtoEncoder) Name() string        { return FormatProto }
func (ProtoEncoder) ContentType() string { return "application/x-protobuf" }

func (ProtoEncoder) EncodeBatch(b Batch) ([]byte, error) {
	if err := checkFinite(b.Points); err != nil {
		return nil, err
	}
	points := make([]interface{}, len(b.Points))
	for i, p := range b.Points {
		points[i] = map[string]interface{}{"x": round4(p.X), "y": round4(p.Y)}
	}
	return marshalStruct(map[string]interface{}{
		"type":   "lidar_points",
		"t":      epochSeconds(b.Time),
		"sweep":  b.Sweep,
		"count":  len(b.Points),
		"detect": b.Detect,
		"points": points,
		"roi":    map[string]interface{}{"width": b.ROIWidth, "depth": b.ROIDepth},
	})
}

func (ProtoEncoder) EncodeSweep(m SweepMarker) ([]byte, error) {
	return marshalStruct(map[string]interface{}{
		"type":  "sweep",
		"t":     epochSeconds(m.Time),
		"sweep": m.Sweep,
	})
}

func marshalStruct(fields map[string]interface{}) ([]byte, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build struct payload: %w", err)
	}
	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal struct payload: %w", err)
	}
	return data, nil
}

// DecodeStruct unmarshals a ProtoEncoder payload back into a plain map.
func DecodeStruct(data []byte) (map[string]interface{}, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal struct payload: %w", err)
	}
	return s.AsMap(), nil
}
