package l1samples

import (
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sweepcast/internal/config"
)

func TestGate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		s    RawSample
		want bool
	}{
		{"inside", RawSample{Angle: 10, Distance: 500}, true},
		{"at min", RawSample{Angle: 10, Distance: 50}, true},
		{"at max", RawSample{Angle: 10, Distance: 3000}, true},
		{"zero distance", RawSample{Angle: 10, Distance: 0}, false},
		{"below min", RawSample{Angle: 10, Distance: 49.9}, false},
		{"above max", RawSample{Angle: 10, Distance: 3000.1}, false},
		{"nan distance", RawSample{Angle: 10, Distance: math.NaN()}, false},
		{"nan angle", RawSample{Angle: math.NaN(), Distance: 500}, false},
		{"inf angle", RawSample{Angle: math.Inf(1), Distance: 500}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Gate(tt.s, 50, 3000))
		})
	}
}

func TestToCartesian(t *testing.T) {
	t.Parallel()
	opt := cmpopts.EquateApprox(0, 1e-9)
	tests := []struct {
		name   string
		s      RawSample
		offset float64
		want   CartesianPoint
	}{
		{"forward", RawSample{Angle: 0, Distance: 500}, 0, CartesianPoint{X: 0, Y: 500}},
		{"right", RawSample{Angle: 90, Distance: 500}, 0, CartesianPoint{X: 500, Y: 0}},
		{"behind", RawSample{Angle: 180, Distance: 200}, 0, CartesianPoint{X: 0, Y: -200}},
		{"offset rotates", RawSample{Angle: 0, Distance: 500}, 90, CartesianPoint{X: 500, Y: 0}},
		{"negative offset", RawSample{Angle: 90, Distance: 500}, -90, CartesianPoint{X: 0, Y: 500}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToCartesian(tt.s, tt.offset)
			if diff := cmp.Diff(tt.want, got, opt); diff != "" {
				t.Errorf("ToCartesian mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		p      CartesianPoint
		want   NormalizedPoint
		wantOK bool
	}{
		{"centre", CartesianPoint{X: 0, Y: 500}, NormalizedPoint{X: 0.5, Y: 0.5}, true},
		{"left edge", CartesianPoint{X: -500, Y: 0}, NormalizedPoint{X: 0, Y: 0}, true},
		{"right far corner", CartesianPoint{X: 500, Y: 1000}, NormalizedPoint{X: 1, Y: 1}, true},
		{"too far left", CartesianPoint{X: -500.01, Y: 10}, NormalizedPoint{}, false},
		{"behind sensor", CartesianPoint{X: 0, Y: -1}, NormalizedPoint{}, false},
		{"beyond depth", CartesianPoint{X: 0, Y: 1000.5}, NormalizedPoint{}, false},
		{"nan", CartesianPoint{X: math.NaN(), Y: 10}, NormalizedPoint{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.p, 1000, 1000)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeAlwaysWithinUnitSquare(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10000; i++ {
		s := RawSample{Angle: rng.Float64() * 360, Distance: rng.Float64() * 4000}
		w := 1 + rng.Float64()*3000
		d := 1 + rng.Float64()*3000
		p, ok := Normalize(ToCartesian(s, rng.Float64()*720-360), w, d)
		if !ok {
			continue
		}
		require.GreaterOrEqual(t, p.X, 0.0)
		require.LessOrEqual(t, p.X, 1.0)
		require.GreaterOrEqual(t, p.Y, 0.0)
		require.LessOrEqual(t, p.Y, 1.0)
	}
}

func TestQuantize(t *testing.T) {
	t.Parallel()
	assert.Equal(t, GridCell{GX: 12, GY: 3}, Quantize(NormalizedPoint{X: 0.125, Y: 0.0351}, 0.01))
	assert.Equal(t, GridCell{GX: 0, GY: 0}, Quantize(NormalizedPoint{X: 0, Y: 0}, 0.25))
	assert.Equal(t, GridCell{GX: 4, GY: 2}, Quantize(NormalizedPoint{X: 1, Y: 0.5}, 0.25))
	assert.Equal(t, "(4,2)", GridCell{GX: 4, GY: 2}.String())
}

func TestIngestScenario(t *testing.T) {
	t.Parallel()
	cfg := config.Default()

	p, outcome := Ingest(RawSample{Angle: 0, Distance: 500}, &cfg)
	require.Equal(t, Accepted, outcome)
	assert.InDelta(t, 0.5, p.X, 1e-12)
	assert.InDelta(t, 0.5, p.Y, 1e-12)
}

func TestIngestOutcomes(t *testing.T) {
	t.Parallel()
	cfg := config.Default()

	_, outcome := Ingest(RawSample{Angle: 0, Distance: 10}, &cfg)
	assert.Equal(t, RejectedDistance, outcome)
	assert.Equal(t, "rejected_distance", outcome.String())

	_, outcome = Ingest(RawSample{Angle: 180, Distance: 500}, &cfg)
	assert.Equal(t, OutsideROI, outcome)
	assert.Equal(t, "outside_roi", outcome.String())

	_, outcome = Ingest(RawSample{Angle: 0, Distance: 2000}, &cfg)
	assert.Equal(t, OutsideROI, outcome)
}

func TestIngestDistanceGateNeverAccepts(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.MinDist = 200
	cfg.MaxDist = 800
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 5000; i++ {
		d := rng.Float64() * 200
		if i%2 == 1 {
			d = 800 + 1e-6 + rng.Float64()*5000
		}
		_, outcome := Ingest(RawSample{Angle: rng.Float64() * 360, Distance: d}, &cfg)
		require.Equal(t, RejectedDistance, outcome, "distance %v", d)
	}
}
