package main

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/banshee-data/sweepcast/internal/lidar/rplidar"
	"github.com/banshee-data/sweepcast/internal/lidar/sensor"
	"github.com/banshee-data/sweepcast/internal/timeutil"
)

type sourceOptions struct {
	Dev         bool
	Fixture     string
	FixtureRate float64
	Port        string
	Baud        int
	MotorPWM    int
	Clock       timeutil.Clock
}

// openSource picks the sample source: a fixture file, the synthetic scan,
// or the serial device, in that order of precedence.
func openSource(ctx context.Context, o sourceOptions) (sensor.Source, error) {
	switch {
	case o.Fixture != "":
		f, err := sensor.OpenFixture(o.Fixture, o.FixtureRate, o.Clock)
		if err != nil {
			return nil, err
		}
		log.Printf("replaying %d samples from %s", f.Len(), o.Fixture)
		return f, nil
	case o.Dev:
		log.Printf("dev mode: synthetic scan")
		return sensor.NewSyntheticSource(o.Clock, time.Now().UnixNano()), nil
	default:
		dev, err := rplidar.Open(ctx, o.Port, rplidar.Options{
			Port:     rplidar.PortOptions{BaudRate: o.Baud},
			MotorPWM: o.MotorPWM,
			Clock:    o.Clock,
		})
		if err != nil {
			return nil, err
		}
		return dev, nil
	}
}

// parseTargets splits a comma-separated destination list, dropping empty
// entries and duplicates.
func parseTargets(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
