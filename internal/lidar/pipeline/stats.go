package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/sweepcast/internal/lidar/l1samples"
	"github.com/banshee-data/sweepcast/internal/monitoring"
	"github.com/banshee-data/sweepcast/internal/timeutil"
)

// maxBatchSamples caps the batch sizes kept between two LogStats calls.
const maxBatchSamples = 4096

// Stats counts pipeline activity. Counters are written by the cycle goroutine
// and read from anywhere.
type Stats struct {
	samples          atomic.Uint64
	accepted         atomic.Uint64
	rejectedDistance atomic.Uint64
	outsideROI       atomic.Uint64
	emitted          atomic.Uint64
	dropped          atomic.Uint64
	suppressed       atomic.Uint64
	encodeErrors     atomic.Uint64
	sweeps           atomic.Uint64
	markers          atomic.Uint64
	lastCount        atomic.Int64

	mu         sync.Mutex
	batchSizes []float64
	prev       StatsSnapshot
	prevAt     time.Time
	clock      timeutil.Clock
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	Samples          uint64 `json:"samples"`
	Accepted         uint64 `json:"accepted"`
	RejectedDistance uint64 `json:"rejected_distance"`
	OutsideROI       uint64 `json:"outside_roi"`
	Emitted          uint64 `json:"emitted"`
	Dropped          uint64 `json:"dropped"`
	Suppressed       uint64 `json:"suppressed"`
	EncodeErrors     uint64 `json:"encode_errors"`
	Sweeps           uint64 `json:"sweeps"`
	Markers          uint64 `json:"markers"`
	LastCount        int    `json:"last_count"`
}

// NewStats creates a Stats that measures log intervals with clock. A nil
// clock uses the real clock.
func NewStats(clock timeutil.Clock) *Stats {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Stats{clock: clock, prevAt: clock.Now()}
}

func (s *Stats) recordOutcome(o l1samples.Outcome) {
	s.samples.Add(1)
	switch o {
	case l1samples.Accepted:
		s.accepted.Add(1)
	case l1samples.RejectedDistance:
		s.rejectedDistance.Add(1)
	case l1samples.OutsideROI:
		s.outsideROI.Add(1)
	}
}

func (s *Stats) recordEmission(count int, queued bool) {
	s.lastCount.Store(int64(count))
	if !queued {
		s.dropped.Add(1)
		return
	}
	s.emitted.Add(1)

	s.mu.Lock()
	if len(s.batchSizes) < maxBatchSamples {
		s.batchSizes = append(s.batchSizes, float64(count))
	}
	s.mu.Unlock()
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Samples:          s.samples.Load(),
		Accepted:         s.accepted.Load(),
		RejectedDistance: s.rejectedDistance.Load(),
		OutsideROI:       s.outsideROI.Load(),
		Emitted:          s.emitted.Load(),
		Dropped:          s.dropped.Load(),
		Suppressed:       s.suppressed.Load(),
		EncodeErrors:     s.encodeErrors.Load(),
		Sweeps:           s.sweeps.Load(),
		Markers:          s.markers.Load(),
		LastCount:        int(s.lastCount.Load()),
	}
}

// BatchSummary returns the mean and standard deviation of batch sizes
// recorded since the last LogStats call and resets the samples.
func (s *Stats) BatchSummary() (mean, stddev float64, n int) {
	s.mu.Lock()
	sizes := s.batchSizes
	s.batchSizes = nil
	s.mu.Unlock()

	switch len(sizes) {
	case 0:
		return 0, 0, 0
	case 1:
		return sizes[0], 0, 1
	}
	mean, stddev = stat.MeanStdDev(sizes, nil)
	return mean, stddev, len(sizes)
}

// LogStats logs rates since the previous call plus the batch size summary.
func (s *Stats) LogStats() {
	cur := s.Snapshot()
	now := s.clock.Now()
	mean, stddev, n := s.BatchSummary()

	s.mu.Lock()
	prev, prevAt := s.prev, s.prevAt
	s.prev, s.prevAt = cur, now
	s.mu.Unlock()

	secs := now.Sub(prevAt).Seconds()
	if secs <= 0 {
		secs = 1
	}
	rate := func(c, p uint64) float64 { return float64(c-p) / secs }

	monitoring.Logf("[pipeline] %.1f samples/s (%.1f accepted/s, %.1f rejected/s, %.1f outside ROI/s), %.1f packets/s, %d dropped, %d suppressed, sweep %d",
		rate(cur.Samples, prev.Samples),
		rate(cur.Accepted, prev.Accepted),
		rate(cur.RejectedDistance, prev.RejectedDistance),
		rate(cur.OutsideROI, prev.OutsideROI),
		rate(cur.Emitted, prev.Emitted),
		cur.Dropped-prev.Dropped,
		cur.Suppressed-prev.Suppressed,
		cur.Sweeps)
	if n > 0 {
		monitoring.Logf("[pipeline] batch size %.1f ± %.1f points over %d packets", mean, stddev, n)
	}
}

// Run calls LogStats every interval until ctx is done.
func (s *Stats) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.LogStats()
		}
	}
}
