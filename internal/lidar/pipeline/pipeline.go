package pipeline

import (
	"sync/atomic"
	"time"

	"github.com/banshee-data/sweepcast/internal/config"
	"github.com/banshee-data/sweepcast/internal/lidar/l1samples"
	"github.com/banshee-data/sweepcast/internal/lidar/l2sweeps"
	"github.com/banshee-data/sweepcast/internal/lidar/l3grid"
	"github.com/banshee-data/sweepcast/internal/lidar/protocol"
	"github.com/banshee-data/sweepcast/internal/monitoring"
)

// logEvery is the number of emitted packets between progress log lines.
const logEvery = 100

// ConfigSource yields the current RuntimeConfig snapshot.
type ConfigSource interface {
	Snapshot() config.RuntimeConfig
}

// Sink accepts encoded payloads without blocking. It reports false when the
// payload was dropped.
type Sink interface {
	SendAsync(payload []byte) bool
}

// Config holds the collaborators of a Pipeline.
type Config struct {
	Source  ConfigSource
	Encoder protocol.Encoder
	Sink    Sink
	Stats   *Stats        // optional, created when nil
	Rule    l2sweeps.Rule // sweep wrap rule, hysteresis by default
	Window  int           // initial window capacity, optional
}

// Pipeline runs the per-sample cycle. Process must be called from a single
// goroutine; LastBatch and Stats are safe to read concurrently.
type Pipeline struct {
	cfg     ConfigSource
	encoder protocol.Encoder
	sink    Sink
	stats   *Stats

	sweeps l2sweeps.Detector
	window *l3grid.Window
	agg    *l3grid.Aggregator
	sched  Scheduler

	aggBuf  []l3grid.AggregatedPoint
	packets uint64

	last atomic.Pointer[protocol.Batch]
}

// New creates a Pipeline. Source, Encoder and Sink are required.
func New(c Config) *Pipeline {
	if c.Stats == nil {
		c.Stats = NewStats(nil)
	}
	return &Pipeline{
		cfg:     c.Source,
		encoder: c.Encoder,
		sink:    c.Sink,
		stats:   c.Stats,
		sweeps:  l2sweeps.Detector{Rule: c.Rule},
		window:  l3grid.NewWindow(c.Window),
		agg:     l3grid.NewAggregator(),
	}
}

// Stats returns the pipeline counters.
func (p *Pipeline) Stats() *Stats {
	return p.stats
}

// LastBatch returns the most recently emitted batch. The returned batch must
// not be modified.
func (p *Pipeline) LastBatch() (*protocol.Batch, bool) {
	b := p.last.Load()
	return b, b != nil
}

// Process runs one cycle for sample at now using a fresh config snapshot.
func (p *Pipeline) Process(sample l1samples.RawSample, now time.Time) {
	cfg := p.cfg.Snapshot()
	p.ProcessWith(&cfg, sample, now)
}

// ProcessWith runs one cycle against an already taken snapshot. Every stage
// of the cycle reads the same snapshot.
func (p *Pipeline) ProcessWith(cfg *config.RuntimeConfig, sample l1samples.RawSample, now time.Time) {
	p.sweeps.High = cfg.WrapHighDeg
	p.sweeps.Low = cfg.WrapLowDeg
	if ev, ok := p.sweeps.Observe(sample.Angle); ok {
		p.stats.sweeps.Add(1)
		if monitoring.DebugEnabled() {
			monitoring.Debugf("[pipeline] sweep %d: %.2f -> %.2f deg", ev.Index, ev.Previous, ev.Angle)
		}
		if cfg.SweepSync {
			// The pending batch belongs to the sweep that just ended.
			p.window.Purge(now, cfg.Window())
			p.emit(cfg, now, ev.Index-1)
			p.sendMarker(now, ev.Index)
		}
	}

	pt, outcome := l1samples.Ingest(sample, cfg)
	p.stats.recordOutcome(outcome)
	if outcome == l1samples.Accepted {
		p.window.Add(now, pt, cfg.GridStep)
	}
	p.window.Purge(now, cfg.Window())

	if p.sched.Due(now, cfg.SendPeriod()) {
		p.emit(cfg, now, p.sweeps.Index())
	}
}

// Flush emits whatever the window currently yields, outside the regular
// cadence.
func (p *Pipeline) Flush(now time.Time) {
	cfg := p.cfg.Snapshot()
	p.window.Purge(now, cfg.Window())
	p.emit(&cfg, now, p.sweeps.Index())
}

// Batch builds the batch the window yields under cfg without sending it.
func (p *Pipeline) Batch(cfg *config.RuntimeConfig, now time.Time, sweep int) protocol.Batch {
	var points []l1samples.NormalizedPoint
	if cfg.Aggregate {
		p.aggBuf = p.agg.Aggregate(p.window, cfg.GridStep, cfg.MinHits, p.aggBuf[:0])
		points = make([]l1samples.NormalizedPoint, len(p.aggBuf))
		for i, a := range p.aggBuf {
			points[i] = a.Point
		}
	} else {
		points = p.window.Points(make([]l1samples.NormalizedPoint, 0, p.window.Len()))
	}
	points = l3grid.Limit(points, cfg.MaxPoints)

	return protocol.Batch{
		Time:     now,
		Sweep:    sweep,
		Detect:   len(points) >= cfg.DetectMinPoints,
		Points:   points,
		ROIWidth: cfg.ROIWidth,
		ROIDepth: cfg.ROIDepth,
	}
}

func (p *Pipeline) emit(cfg *config.RuntimeConfig, now time.Time, sweep int) {
	p.sched.Mark(now)
	batch := p.Batch(cfg, now, sweep)
	if batch.Count() == 0 && !cfg.SendEmpty {
		p.stats.suppressed.Add(1)
		return
	}

	payload, err := p.encoder.EncodeBatch(batch)
	if err != nil {
		p.stats.encodeErrors.Add(1)
		monitoring.Logf("[pipeline] encode %s batch: %v", p.encoder.Name(), err)
		return
	}
	queued := p.sink.SendAsync(payload)
	p.stats.recordEmission(batch.Count(), queued)
	p.last.Store(&batch)

	p.packets++
	if p.packets%logEvery == 0 {
		monitoring.Logf("[pipeline] Sent %d packets. Points in ROI: %d", p.packets, batch.Count())
	}
	if monitoring.DebugEnabled() {
		monitoring.Debugf("[pipeline] batch sweep=%d points=%d detect=%t bytes=%d queued=%t",
			batch.Sweep, batch.Count(), batch.Detect, len(payload), queued)
	}
}

func (p *Pipeline) sendMarker(now time.Time, sweep int) {
	payload, err := p.encoder.EncodeSweep(protocol.SweepMarker{Time: now, Sweep: sweep})
	if err != nil {
		p.stats.encodeErrors.Add(1)
		monitoring.Logf("[pipeline] encode %s sweep marker: %v", p.encoder.Name(), err)
		return
	}
	if p.sink.SendAsync(payload) {
		p.stats.markers.Add(1)
	} else {
		p.stats.dropped.Add(1)
	}
}
