package config

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreMalformedUpdateKeepsPreviousValue(t *testing.T) {
	s := NewStore(Default())

	_, err := s.ApplyJSON("test", []byte(`{"MIN_HITS": 3}`))
	require.NoError(t, err)
	assert.Equal(t, 3, s.Snapshot().MinHits)

	_, err = s.ApplyJSON("test", []byte(`{MIN_HITS`))
	require.ErrorIs(t, err, ErrMalformedUpdate)
	assert.Equal(t, 3, s.Snapshot().MinHits)
}

func TestStoreUnknownKeysDoNotPublish(t *testing.T) {
	s := NewStore(Default())
	calls := 0
	s.Subscribe(func(Update) { calls++ })

	u, err := s.ApplyJSON("test", []byte(`{"FOO": 1}`))
	require.NoError(t, err)
	assert.Empty(t, u.Applied)
	assert.Equal(t, 0, calls)
	assert.Equal(t, Default(), s.Snapshot())
}

func TestStoreSubscribersSeeUpdate(t *testing.T) {
	s := NewStore(Default())
	var got []Update
	s.Subscribe(func(u Update) { got = append(got, u) })

	_, err := s.ApplyJSON("udp:127.0.0.1:9999", []byte(`{"MOTOR_PWM": 660, "SEND_HZ": 30}`))
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "udp:127.0.0.1:9999", got[0].Source)
	assert.Equal(t, []string{"MOTOR_PWM", "SEND_HZ"}, got[0].Applied)
	assert.Equal(t, 500, got[0].Previous.MotorPWM)
	assert.Equal(t, 660, got[0].Config.MotorPWM)
	assert.Equal(t, 30.0, got[0].Config.SendHz)
}

func TestStoreReplace(t *testing.T) {
	s := NewStore(Default())

	cfg := Default()
	cfg.ROIWidth = 1500
	_, err := s.Replace("restore", cfg)
	require.NoError(t, err)
	assert.Equal(t, 1500.0, s.Snapshot().ROIWidth)

	cfg.GridStep = 0
	_, err = s.Replace("restore", cfg)
	require.Error(t, err)
	assert.Equal(t, 0.01, s.Snapshot().GridStep)
}

func TestStoreConcurrentWritersAndReaders(t *testing.T) {
	s := NewStore(Default())

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := s.ApplyJSON("test", []byte(fmt.Sprintf(`{"MIN_HITS": %d, "MAX_POINTS": %d}`, n, n)))
			assert.NoError(t, err)
		}(i)
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				snap := s.Snapshot()
				if snap.MinHits != 2 {
					assert.Equal(t, snap.MinHits, snap.MaxPoints, "torn snapshot")
				}
			}
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.Equal(t, snap.MinHits, snap.MaxPoints)
}
