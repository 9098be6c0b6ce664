package protocol

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sweepcast/internal/lidar/l1samples"
)

func TestBundleRoundTripBitExact(t *testing.T) {
	t.Parallel()
	x, y := float32(0.123456789), float32(0.987654321)
	in := []Message{
		{Address: "/lidar/point", Args: []interface{}{x, y}},
		{Address: "/lidar/sweep", Args: []interface{}{int32(1)}},
	}

	data, err := AppendBundle(nil, TimetagImmediately, in)
	require.NoError(t, err)

	timetag, out, err := DecodeBundle(data)
	require.NoError(t, err)
	assert.Equal(t, TimetagImmediately, timetag)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("round trip mismatch (-in +out):\n%s", diff)
	}
	assert.Equal(t, math.Float32bits(x), math.Float32bits(out[0].Args[0].(float32)))
	assert.Equal(t, math.Float32bits(y), math.Float32bits(out[0].Args[1].(float32)))

	for i := range in {
		wantTags, err := in[i].TypeTags()
		require.NoError(t, err)
		gotTags, err := out[i].TypeTags()
		require.NoError(t, err)
		assert.Equal(t, wantTags, gotTags)
	}
}

func TestBundleByteLayout(t *testing.T) {
	t.Parallel()
	data, err := AppendBundle(nil, TimetagImmediately, []Message{
		{Address: "/lidar/sweep", Args: []interface{}{int32(1)}},
	})
	require.NoError(t, err)

	want := []byte{
		'#', 'b', 'u', 'n', 'd', 'l', 'e', 0,
		0, 0, 0, 0, 0, 0, 0, 1,
		0, 0, 0, 24,
		'/', 'l', 'i', 'd', 'a', 'r', '/', 's', 'w', 'e', 'e', 'p', 0, 0, 0, 0,
		',', 'i', 0, 0,
		0, 0, 0, 1,
	}
	assert.Equal(t, want, data)
}

func TestMessagePadding(t *testing.T) {
	t.Parallel()
	tests := []struct {
		addr    string
		wantLen int
	}{
		{"/a", 4 + 4},
		{"/abc", 8 + 4},
		{"/abcdefg", 12 + 4},
	}
	for _, tt := range tests {
		data, err := AppendMessage(nil, Message{Address: tt.addr})
		require.NoError(t, err)
		assert.Len(t, data, tt.wantLen, tt.addr)

		m, err := DecodeMessage(data)
		require.NoError(t, err)
		assert.Equal(t, tt.addr, m.Address)
		assert.Empty(t, m.Args)
	}
}

func TestAppendMessageErrors(t *testing.T) {
	t.Parallel()
	_, err := AppendMessage(nil, Message{Address: "lidar/point"})
	assert.Error(t, err)

	_, err = AppendMessage(nil, Message{Address: "/p", Args: []interface{}{1.5}})
	assert.Error(t, err, "float64 is not an OSC type here")

	_, err = AppendMessage(nil, Message{Address: "/p", Args: []interface{}{float32(math.NaN())}})
	assert.Error(t, err)
}

func TestDecodeBundleErrors(t *testing.T) {
	t.Parallel()
	good, err := AppendBundle(nil, TimetagImmediately, []Message{{Address: "/x", Args: []interface{}{int32(7)}}})
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{"no marker", []byte("#bundlX\x00\x00\x00\x00\x00\x00\x00\x00\x01")},
		{"short header", good[:12]},
		{"truncated length", good[:18]},
		{"truncated element", good[:len(good)-2]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeBundle(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestOSCEncoderBatch(t *testing.T) {
	t.Parallel()
	enc := NewOSCEncoder("")
	data, err := enc.EncodeBatch(Batch{
		Time:   time.Unix(1700000000, 0),
		Sweep:  42,
		Detect: true,
		Points: []l1samples.NormalizedPoint{{X: 0.25, Y: 0.5}, {X: 1, Y: 0}},
	})
	require.NoError(t, err)

	timetag, msgs, err := DecodeBundle(data)
	require.NoError(t, err)
	assert.Equal(t, TimetagImmediately, timetag)

	want := []Message{
		{Address: "/lidar/detect", Args: []interface{}{int32(1)}},
		{Address: "/lidar/sweep_index", Args: []interface{}{int32(42)}},
		{Address: "/lidar/point", Args: []interface{}{float32(0.25), float32(0.5)}},
		{Address: "/lidar/point", Args: []interface{}{float32(1), float32(0)}},
	}
	assert.Equal(t, want, msgs)
}

func TestOSCEncoderSweepAndPrefix(t *testing.T) {
	t.Parallel()
	enc := NewOSCEncoder("touch/")
	assert.Equal(t, "/touch/point", enc.Address("point"))

	data, err := enc.EncodeSweep(SweepMarker{Sweep: 3})
	require.NoError(t, err)
	_, msgs, err := DecodeBundle(data)
	require.NoError(t, err)
	assert.Equal(t, []Message{
		{Address: "/touch/sweep", Args: []interface{}{int32(1)}},
		{Address: "/touch/sweep_index", Args: []interface{}{int32(3)}},
	}, msgs)
}

func TestOSCEncoderRejectsNonFinite(t *testing.T) {
	t.Parallel()
	_, err := NewOSCEncoder("").EncodeBatch(Batch{Points: []l1samples.NormalizedPoint{{X: math.Inf(1), Y: 0}}})
	assert.Error(t, err)
}
