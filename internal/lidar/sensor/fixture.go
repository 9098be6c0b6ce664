package sensor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/banshee-data/sweepcast/internal/lidar/l1samples"
	"github.com/banshee-data/sweepcast/internal/timeutil"
)

// ParseFixture reads "angle<TAB or comma>distance" lines. Blank lines, lines
// starting with '#', and a leading "angle" header are skipped.
func ParseFixture(r io.Reader) ([]l1samples.RawSample, error) {
	var samples []l1samples.RawSample
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.FieldsFunc(text, func(r rune) bool { return r == '\t' || r == ',' })
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: expected angle and distance, got %q", line, text)
		}
		angle, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
		if err != nil {
			if len(samples) == 0 && strings.EqualFold(strings.TrimSpace(fields[0]), "angle") {
				continue
			}
			return nil, fmt.Errorf("line %d: bad angle: %w", line, err)
		}
		distance, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad distance: %w", line, err)
		}
		samples = append(samples, l1samples.RawSample{Angle: angle, Distance: distance})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	return samples, nil
}

// FixtureSource replays recorded samples at a fixed rate.
type FixtureSource struct {
	samples []l1samples.RawSample
	loop    bool

	mu   sync.Mutex
	pace *pacer
	pos  int
}

// NewFixtureSource replays samples at rate samples per second using clock.
// A rate of zero replays as fast as the caller pulls. When loop is false
// Next returns ErrExhausted after the last sample.
func NewFixtureSource(samples []l1samples.RawSample, rate float64, loop bool, clock timeutil.Clock) *FixtureSource {
	return &FixtureSource{
		samples: samples,
		loop:    loop,
		pace:    newPacer(clock, rate),
	}
}

// OpenFixture loads a fixture file and returns a looping source.
func OpenFixture(path string, rate float64, clock timeutil.Clock) (*FixtureSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixture %s: %w", path, err)
	}
	defer f.Close()

	samples, err := ParseFixture(f)
	if err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("fixture %s has no samples", path)
	}
	return NewFixtureSource(samples, rate, true, clock), nil
}

// Len returns the number of distinct samples in the fixture.
func (f *FixtureSource) Len() int {
	return len(f.samples)
}

// Next returns the next recorded sample.
func (f *FixtureSource) Next(ctx context.Context) (l1samples.RawSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.samples) == 0 || (!f.loop && f.pos >= len(f.samples)) {
		return l1samples.RawSample{}, ErrExhausted
	}
	if _, err := f.pace.wait(ctx); err != nil {
		return l1samples.RawSample{}, err
	}
	s := f.samples[f.pos%len(f.samples)]
	f.pos++
	return s, nil
}
