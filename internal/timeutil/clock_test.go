package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClock_NowAndSince(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
	if d := clock.Since(time.Now().Add(-time.Second)); d < time.Second {
		t.Errorf("Since() returned %v, expected >= 1s", d)
	}
}

func TestMockClock_SleepAdvances(t *testing.T) {
	start := time.Unix(1700000000, 0)
	clock := NewMockClock(start)

	clock.Sleep(250 * time.Millisecond)
	clock.Sleep(750 * time.Millisecond)

	assert.Equal(t, start.Add(time.Second), clock.Now())
	assert.Equal(t, []time.Duration{250 * time.Millisecond, 750 * time.Millisecond}, clock.Sleeps())
	assert.Equal(t, time.Second, clock.Since(start))
}

func TestMockClock_TickerFiresOnAdvance(t *testing.T) {
	start := time.Unix(1700000000, 0)
	clock := NewMockClock(start)
	ticker := clock.NewTicker(time.Second)

	clock.Advance(500 * time.Millisecond)
	select {
	case <-ticker.C():
		t.Fatal("ticker fired early")
	default:
	}

	clock.Advance(500 * time.Millisecond)
	select {
	case got := <-ticker.C():
		assert.Equal(t, start.Add(time.Second), got)
	default:
		t.Fatal("ticker did not fire")
	}

	ticker.Stop()
	clock.Advance(5 * time.Second)
	select {
	case <-ticker.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}
