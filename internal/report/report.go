// Package report delivers the readings of one cycle to every configured
// destination. The remote API is the primary sink; MQTT and InfluxDB are
// optional mirrors.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tempstation/internal/station"
	"tempstation/internal/threshold"
)

// Cycle is everything one loop iteration produced.
type Cycle struct {
	ID           string
	Station      station.Station
	At           time.Time
	Measurements []station.Measurement
	Verdicts     []threshold.Verdict
}

type Sink interface {
	Name() string
	Report(ctx context.Context, c Cycle) error
}

type Poster interface {
	PostMeasurement(ctx context.Context, stationID int, m station.Measurement) error
}

// APISink posts every measurement separately. A failed post does not stop
// the remaining ones.
type APISink struct {
	poster Poster
	logger *slog.Logger
}

func NewAPISink(p Poster, logger *slog.Logger) *APISink {
	return &APISink{poster: p, logger: logger}
}

func (s *APISink) Name() string { return "api" }

func (s *APISink) Report(ctx context.Context, c Cycle) error {
	var errs []error
	for _, m := range c.Measurements {
		if err := s.poster.PostMeasurement(ctx, c.Station.ID, m); err != nil {
			s.logger.Warn("post failed", "cycle", c.ID, "metric", m.Metric, "value", m.Value, "error", err)
			errs = append(errs, err)
			continue
		}
		s.logger.Info("posted", "cycle", c.ID, "metric", m.Metric, "value", m.Value, "unit_id", m.Metric.UnitID())
	}
	return errors.Join(errs...)
}

type TelemetryPublisher interface {
	PublishTelemetry(t station.Telemetry) error
}

// MQTTSink publishes one telemetry document per cycle.
type MQTTSink struct {
	pub TelemetryPublisher
}

func NewMQTTSink(p TelemetryPublisher) *MQTTSink { return &MQTTSink{pub: p} }

func (s *MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) Report(_ context.Context, c Cycle) error {
	if len(c.Measurements) == 0 {
		return nil
	}
	return s.pub.PublishTelemetry(station.NewTelemetry(c.Station, c.ID, c.At, c.Measurements))
}

type PointWriter interface {
	Write(ctx context.Context, st station.Station, at time.Time, ms []station.Measurement) error
}

// InfluxSink writes one point per cycle.
type InfluxSink struct {
	w PointWriter
}

func NewInfluxSink(w PointWriter) *InfluxSink { return &InfluxSink{w: w} }

func (s *InfluxSink) Name() string { return "influx" }

func (s *InfluxSink) Report(ctx context.Context, c Cycle) error {
	return s.w.Write(ctx, c.Station, c.At, c.Measurements)
}

// Fanout reports to every sink in order and joins their errors.
type Fanout struct {
	sinks   []Sink
	logger  *slog.Logger
	observe func(sink string, err error)
}

// NewFanout builds a fan-out. observe, when set, sees every sink result.
func NewFanout(logger *slog.Logger, observe func(string, error), sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks, logger: logger, observe: observe}
}

func (f *Fanout) Names() []string {
	out := make([]string, 0, len(f.sinks))
	for _, s := range f.sinks {
		out = append(out, s.Name())
	}
	return out
}

func (f *Fanout) Report(ctx context.Context, c Cycle) error {
	var errs []error
	for _, s := range f.sinks {
		err := s.Report(ctx, c)
		if f.observe != nil {
			f.observe(s.Name(), err)
		}
		if err != nil {
			f.logger.Warn("report failed", "sink", s.Name(), "cycle", c.ID, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
