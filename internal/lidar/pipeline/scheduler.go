package pipeline

import "time"

// Scheduler gates emissions to a fixed period measured against the time of
// the last emission. The first call to Due starts the cadence, so the first
// regular emission happens one period after the first sample.
type Scheduler struct {
	last    time.Time
	started bool
}

// Due reports whether at least period has elapsed since the last Mark.
func (s *Scheduler) Due(now time.Time, period time.Duration) bool {
	if !s.started {
		s.Mark(now)
		return false
	}
	return now.Sub(s.last) >= period
}

// Mark records an emission at now. Out-of-cadence emissions (sweep flushes)
// call Mark too, which restarts the period.
func (s *Scheduler) Mark(now time.Time) {
	s.last = now
	s.started = true
}

// Last returns the time of the last emission, or the zero time before the
// cadence has started.
func (s *Scheduler) Last() time.Time {
	return s.last
}
