// Package config holds the live-tunable runtime configuration.
//
// A RuntimeConfig is an immutable value: every accepted update produces a new
// value that replaces the previous one wholesale through a Store. Pipeline
// stages take one snapshot at the start of each cycle and never observe a
// half-applied update.
package config

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"time"
)

// RuntimeConfig is the complete set of live-tunable parameters. The JSON tags
// are the wire names accepted by the command channel, the admin API and
// configuration files.
type RuntimeConfig struct {
	// Sliding window and aggregation
	WindowMS  int     `json:"WINDOW_MS"`
	GridStep  float64 `json:"GRID_STEP"`
	MinHits   int     `json:"MIN_HITS"`
	MaxPoints int     `json:"MAX_POINTS"`

	// Distance gate (millimetres)
	MinDist float64 `json:"MIN_DIST"`
	MaxDist float64 `json:"MAX_DIST"`

	// Region of interest (millimetres) and mounting orientation (degrees)
	ROIWidth    float64 `json:"ROI_WIDTH"`
	ROIDepth    float64 `json:"ROI_DEPTH"`
	AngleOffset float64 `json:"ANGLE_OFFSET"`

	// Emission
	SendHz          float64 `json:"SEND_HZ"`
	DetectMinPoints int     `json:"DETECT_MIN_POINTS"`
	Aggregate       bool    `json:"AGGREGATE"`
	SweepSync       bool    `json:"SWEEP_SYNC"`
	SendEmpty       bool    `json:"SEND_EMPTY"`

	// Sweep wrap detection band (degrees)
	WrapHighDeg float64 `json:"WRAP_HIGH_DEG"`
	WrapLowDeg  float64 `json:"WRAP_LOW_DEG"`

	// Device
	MotorPWM int `json:"MOTOR_PWM"`
}

// Parameter limits enforced by Validate.
const (
	// MaxMotorPWM is the largest PWM duty value the sensor accepts.
	MaxMotorPWM = 1023
	// MaxWindowMS bounds the sliding window to one minute.
	MaxWindowMS = 60000
	// MinGridStep keeps grid indices well inside int range.
	MinGridStep = 1e-6
	// MinSendHz and MaxSendHz bound the emission cadence.
	MinSendHz = 0.1
	MaxSendHz = 1000
	// MaxBatchPoints keeps a batch inside one UDP datagram in every
	// output format.
	MaxBatchPoints = 1500
)

// Default returns the configuration used when nothing else is supplied.
func Default() RuntimeConfig {
	return RuntimeConfig{
		WindowMS:        70,
		GridStep:        0.01,
		MinHits:         2,
		MaxPoints:       600,
		MinDist:         50,
		MaxDist:         3000,
		ROIWidth:        1000,
		ROIDepth:        1000,
		AngleOffset:     0,
		SendHz:          60,
		DetectMinPoints: 6,
		Aggregate:       true,
		SweepSync:       false,
		SendEmpty:       true,
		WrapHighDeg:     350,
		WrapLowDeg:      10,
		MotorPWM:        500,
	}
}

// Window returns the sliding window length.
func (c RuntimeConfig) Window() time.Duration {
	return time.Duration(c.WindowMS) * time.Millisecond
}

// SendPeriod returns the emission cadence, 1/SEND_HZ.
func (c RuntimeConfig) SendPeriod() time.Duration {
	if c.SendHz <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / c.SendHz)
}

// Validate checks that the configuration can drive the pipeline without
// producing division by zero, empty batches by construction, or non-finite
// coordinates.
func (c RuntimeConfig) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	for _, f := range []struct {
		key string
		v   float64
	}{
		{"GRID_STEP", c.GridStep}, {"MIN_DIST", c.MinDist}, {"MAX_DIST", c.MaxDist},
		{"ROI_WIDTH", c.ROIWidth}, {"ROI_DEPTH", c.ROIDepth}, {"ANGLE_OFFSET", c.AngleOffset},
		{"SEND_HZ", c.SendHz}, {"WRAP_HIGH_DEG", c.WrapHighDeg}, {"WRAP_LOW_DEG", c.WrapLowDeg},
	} {
		check(!math.IsNaN(f.v) && !math.IsInf(f.v, 0), "%s must be finite, got %v", f.key, f.v)
	}

	check(c.WindowMS >= 1 && c.WindowMS <= MaxWindowMS, "WINDOW_MS must be within [1, %d], got %d", MaxWindowMS, c.WindowMS)
	check(c.GridStep >= MinGridStep && c.GridStep <= 1, "GRID_STEP must be within [%g, 1], got %v", MinGridStep, c.GridStep)
	check(c.MinHits >= 1, "MIN_HITS must be at least 1, got %d", c.MinHits)
	check(c.MaxPoints >= 1 && c.MaxPoints <= MaxBatchPoints, "MAX_POINTS must be within [1, %d], got %d", MaxBatchPoints, c.MaxPoints)
	check(c.MinDist >= 0, "MIN_DIST must be non-negative, got %v", c.MinDist)
	check(c.MaxDist >= c.MinDist, "MAX_DIST (%v) must not be below MIN_DIST (%v)", c.MaxDist, c.MinDist)
	check(c.ROIWidth > 0, "ROI_WIDTH must be positive, got %v", c.ROIWidth)
	check(c.ROIDepth > 0, "ROI_DEPTH must be positive, got %v", c.ROIDepth)
	check(c.SendHz >= MinSendHz && c.SendHz <= MaxSendHz, "SEND_HZ must be within [%g, %g], got %v", MinSendHz, float64(MaxSendHz), c.SendHz)
	check(c.DetectMinPoints >= 0, "DETECT_MIN_POINTS must be non-negative, got %d", c.DetectMinPoints)
	check(c.WrapHighDeg >= 0 && c.WrapHighDeg <= 360, "WRAP_HIGH_DEG must be within [0, 360], got %v", c.WrapHighDeg)
	check(c.WrapLowDeg >= 0 && c.WrapLowDeg <= 360, "WRAP_LOW_DEG must be within [0, 360], got %v", c.WrapLowDeg)
	check(c.WrapLowDeg < c.WrapHighDeg, "WRAP_LOW_DEG (%v) must be below WRAP_HIGH_DEG (%v)", c.WrapLowDeg, c.WrapHighDeg)
	check(c.MotorPWM >= 0 && c.MotorPWM <= MaxMotorPWM, "MOTOR_PWM must be within [0, %d], got %d", MaxMotorPWM, c.MotorPWM)

	return errors.Join(errs...)
}

// fieldIndex maps wire names to struct field positions.
var fieldIndex = func() map[string]int {
	t := reflect.TypeOf(RuntimeConfig{})
	idx := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		idx[t.Field(i).Tag.Get("json")] = i
	}
	return idx
}()

// Keys returns every recognised wire name in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(fieldIndex))
	for k := range fieldIndex {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsKey reports whether key is a recognised parameter name.
func IsKey(key string) bool {
	_, ok := fieldIndex[key]
	return ok
}
