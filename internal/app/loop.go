package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/xid"

	"tempstation/internal/report"
	"tempstation/internal/station"
	"tempstation/internal/status"
	"tempstation/internal/telemetry"
	"tempstation/internal/threshold"
	"tempstation/internal/utils"
)

type Reader interface {
	Read(ctx context.Context) ([]station.Measurement, error)
}

type Signaller interface {
	Signal(ctx context.Context, vs []threshold.Verdict) error
	Activity(on bool)
}

type Reporter interface {
	Report(ctx context.Context, c report.Cycle) error
}

type LoopOptions struct {
	Station  station.Station
	Sensor   Reader
	LEDs     Signaller
	Reporter Reporter
	Metrics  *telemetry.Metrics
	Tracker  *status.Tracker
	Logger   *slog.Logger

	// SignalFirst shows the LED verdict before reporting instead of after.
	SignalFirst  bool
	StartupDelay time.Duration
}

// Loop measures, evaluates, signals and reports once per station interval.
type Loop struct {
	opts LoopOptions

	now   func() time.Time
	newID func() string
	sleep func(context.Context, time.Duration) error
}

func NewLoop(opts LoopOptions) *Loop {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Loop{
		opts:  opts,
		now:   time.Now,
		newID: func() string { return xid.New().String() },
		sleep: utils.Sleep,
	}
}

// Run waits the startup delay and then runs cycles until ctx is done.
// Failed cycles are logged and skipped.
func (l *Loop) Run(ctx context.Context) error {
	l.opts.Logger.Info("measurement loop starting",
		"station_id", l.opts.Station.ID,
		"interval", l.opts.Station.Interval,
		"startup_delay", l.opts.StartupDelay,
	)
	if err := l.sleep(ctx, l.opts.StartupDelay); err != nil {
		return err
	}
	for {
		if _, err := l.RunOnce(ctx); err != nil && ctx.Err() == nil {
			l.opts.Logger.Warn("cycle skipped", "error", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.sleep(ctx, l.opts.Station.Interval); err != nil {
			return err
		}
	}
}

// RunOnce performs one cycle. It returns an error only when no reading
// could be taken or ctx was cancelled; report failures are logged, counted
// and kept in the status snapshot.
func (l *Loop) RunOnce(ctx context.Context) (report.Cycle, error) {
	start := l.now()
	c := report.Cycle{ID: l.newID(), Station: l.opts.Station, At: start}
	logger := l.opts.Logger.With("cycle", c.ID)

	ms, err := l.opts.Sensor.Read(ctx)
	if err != nil {
		err = fmt.Errorf("read sensor: %w", err)
		l.finish(c, start, err, []string{err.Error()})
		return c, err
	}
	c.Measurements = ms
	c.Verdicts = threshold.EvaluateAll(ms, l.opts.Station.Thresholds)
	for _, v := range c.Verdicts {
		logger.Info("measured", "metric", v.Measurement.Metric, "value", v.Measurement.Value, "status", v.Status)
	}
	if l.opts.Metrics != nil {
		l.opts.Metrics.ObserveVerdicts(c.Verdicts)
	}

	var problems []string
	if l.opts.SignalFirst {
		if err := l.signal(ctx, c.Verdicts); err != nil {
			problems = append(problems, err.Error())
		}
	}

	l.opts.LEDs.Activity(true)
	if err := l.opts.Reporter.Report(ctx, c); err != nil {
		problems = append(problems, err.Error())
	}
	l.opts.LEDs.Activity(false)

	if !l.opts.SignalFirst {
		if err := l.signal(ctx, c.Verdicts); err != nil {
			problems = append(problems, err.Error())
		}
	}

	l.finish(c, start, nil, problems)
	if err := ctx.Err(); err != nil {
		return c, err
	}
	return c, nil
}

func (l *Loop) signal(ctx context.Context, vs []threshold.Verdict) error {
	err := l.opts.LEDs.Signal(ctx, vs)
	if err != nil && !errors.Is(err, context.Canceled) {
		l.opts.Logger.Warn("led signal failed", "error", err)
	}
	return err
}

func (l *Loop) finish(c report.Cycle, start time.Time, readErr error, problems []string) {
	end := l.now()
	took := end.Sub(start)
	if l.opts.Metrics != nil {
		l.opts.Metrics.ObserveCycle(end, took, readErr)
	}
	if l.opts.Tracker != nil {
		l.opts.Tracker.Record(status.Cycle{
			ID:       c.ID,
			At:       c.At,
			Took:     took.Round(time.Millisecond).String(),
			Verdicts: c.Verdicts,
			Errors:   problems,
		})
	}
	l.opts.Logger.Debug("cycle done", "cycle", c.ID, "took", took, "problems", len(problems))
}
