// Package sensor reads the environment sensor of a board profile through
// periph.io and converts the readings into station measurements.
package sensor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"tempstation/internal/board"
	"tempstation/internal/station"
)

var (
	// ErrChecksum means a frame arrived but its checksum did not match.
	ErrChecksum = errors.New("sensor checksum mismatch")
	// ErrTimeout means the sensor did not answer in time.
	ErrTimeout = errors.New("sensor timeout")
)

// Device is an attached environment sensor.
type Device interface {
	// Read takes one reading and returns a measurement per supported metric.
	Read(ctx context.Context) ([]station.Measurement, error)
	// Metrics lists what Read returns.
	Metrics() []station.Metric
	Close() error
	String() string
}

type Options struct {
	I2CBus string
	// BME280Address is 0 to probe the usual addresses.
	BME280Address uint16
}

// Init loads the periph host drivers. It is safe to call more than once.
func Init() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("host init: %w", err)
	}
	return nil
}

// Open attaches the sensor described by the profile. Init must have run.
func Open(p board.SensorSpec, opts Options) (Device, error) {
	switch p.Model {
	case board.SensorBME280:
		return OpenBME280(opts.I2CBus, opts.BME280Address)
	case board.SensorDHT22:
		return OpenDHT22(p.Pin)
	default:
		return nil, fmt.Errorf("unsupported sensor model %q", p.Model)
	}
}

// hPa converts a periph pressure to hectopascal.
func hPa(p physic.Pressure) float64 {
	return float64(p) / float64(100*physic.Pascal)
}

// percentRH converts a periph relative humidity to percent.
func percentRH(h physic.RelativeHumidity) float64 {
	return float64(h) / float64(physic.PercentRH)
}

// measurements turns env into one measurement per metric in want, in the
// order of station.Metrics.
func measurements(env physic.Env, want []station.Metric, at time.Time) []station.Measurement {
	has := map[station.Metric]bool{}
	for _, m := range want {
		has[m] = true
	}
	out := make([]station.Measurement, 0, len(want))
	for _, m := range station.Metrics {
		if !has[m] {
			continue
		}
		var v float64
		switch m {
		case station.Temperature:
			v = env.Temperature.Celsius()
		case station.Humidity:
			v = percentRH(env.Humidity)
		case station.Pressure:
			v = hPa(env.Pressure)
		}
		out = append(out, station.NewMeasurement(m, v, at))
	}
	return out
}
