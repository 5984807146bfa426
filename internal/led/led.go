// Package led drives the status LEDs of a tempstation board: the onboard
// activity LED and an optional RGB LED used to signal threshold verdicts.
package led

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"

	"tempstation/internal/board"
	"tempstation/internal/station"
	"tempstation/internal/threshold"
	"tempstation/internal/utils"
)

// Light is a single LED on a GPIO pin.
type Light struct {
	pin       gpio.PinOut
	activeLow bool
}

func NewLight(pin gpio.PinOut, activeLow bool) *Light {
	return &Light{pin: pin, activeLow: activeLow}
}

// Set drives the pin so the LED is lit when on is true.
func (l *Light) Set(on bool) error {
	if l == nil {
		return nil
	}
	lvl := gpio.Level(on)
	if l.activeLow {
		lvl = !lvl
	}
	if err := l.pin.Out(lvl); err != nil {
		return fmt.Errorf("led %s: %w", l.pin.Name(), err)
	}
	return nil
}

func (l *Light) On() error  { return l.Set(true) }
func (l *Light) Off() error { return l.Set(false) }

// Color is a set of RGB channels.
type Color uint8

const (
	Red Color = 1 << iota
	Green
	Blue

	Magenta = Red | Blue
	Cyan    = Green | Blue
	Yellow  = Red | Green
)

func (c Color) String() string {
	switch c {
	case 0:
		return "off"
	case Red:
		return "red"
	case Green:
		return "green"
	case Blue:
		return "blue"
	case Magenta:
		return "magenta"
	case Cyan:
		return "cyan"
	case Yellow:
		return "yellow"
	case Red | Green | Blue:
		return "white"
	default:
		return fmt.Sprintf("color(%d)", uint8(c))
	}
}

// RGB is a common-package RGB LED. Any channel may be unwired.
type RGB struct {
	Red, Green, Blue *Light
}

func (r *RGB) wired() Color {
	if r == nil {
		return 0
	}
	var c Color
	if r.Red != nil {
		c |= Red
	}
	if r.Green != nil {
		c |= Green
	}
	if r.Blue != nil {
		c |= Blue
	}
	return c
}

// Render returns the channels actually lit for c: the wired subset of c,
// or red alone when none of c's channels is wired. Zero means the colour
// cannot be shown on this board.
func (r *RGB) Render(c Color) Color {
	w := r.wired()
	if got := c & w; got != 0 {
		return got
	}
	return Red & w
}

// RenderAlarm is Render for out-of-range signals. An alarm colour is shown
// only when all of its channels are wired; otherwise red stands in, so a
// partial render can never look like the green in-range blink.
func (r *RGB) RenderAlarm(c Color) Color {
	w := r.wired()
	if c != 0 && c&w == c {
		return c
	}
	return Red & w
}

// Show lights exactly the channels in c.
func (r *RGB) Show(c Color) error {
	if r == nil {
		return nil
	}
	for _, ch := range []struct {
		bit   Color
		light *Light
	}{
		{Red, r.Red},
		{Green, r.Green},
		{Blue, r.Blue},
	} {
		if err := ch.light.Set(c&ch.bit != 0); err != nil {
			return err
		}
	}
	return nil
}

func (r *RGB) Off() error { return r.Show(0) }

// Pattern is a colour blinked Times times.
type Pattern struct {
	Color Color
	Times int
	On    time.Duration
	Off   time.Duration
	// Alarm patterns render through RGB.RenderAlarm.
	Alarm bool
}

const (
	blinkOn  = time.Second
	blinkOff = time.Second
	alarms   = 3
)

var alarmColor = map[station.Metric]Color{
	station.Temperature: Red,
	station.Humidity:    Cyan,
	station.Pressure:    Magenta,
}

// PatternFor maps a verdict to the pattern that announces it. Unchecked
// verdicts have no pattern.
func PatternFor(v threshold.Verdict) (Pattern, bool) {
	switch v.Status {
	case threshold.InRange:
		return Pattern{Color: Green, Times: 1, On: blinkOn, Off: blinkOff}, true
	case threshold.OutOfRange:
		c, ok := alarmColor[v.Measurement.Metric]
		if !ok {
			c = Red
		}
		return Pattern{Color: c, Times: alarms, On: blinkOn, Off: blinkOff, Alarm: true}, true
	default:
		return Pattern{}, false
	}
}

// SelfTestColors is the sequence shown by SelfTest.
var SelfTestColors = []Color{Red, Green, Blue, Magenta, Cyan, Yellow}

type Signaller struct {
	activity *Light
	rgb      *RGB
	logger   *slog.Logger
	sleep    func(context.Context, time.Duration) error
}

func NewSignaller(activity *Light, rgb *RGB, logger *slog.Logger) *Signaller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Signaller{
		activity: activity,
		rgb:      rgb,
		logger:   logger,
		sleep:    utils.Sleep,
	}
}

// Open resolves the LED pins of a board profile through the periph
// registry and switches every LED off. host.Init must have run.
func Open(spec board.LEDSpec, logger *slog.Logger) (*Signaller, error) {
	open := func(role string, ps *board.PinSpec) (*Light, error) {
		if ps == nil {
			return nil, nil
		}
		p := gpioreg.ByName(ps.Pin)
		if p == nil {
			return nil, fmt.Errorf("led %s: no gpio pin %q", role, ps.Pin)
		}
		l := NewLight(p, ps.ActiveLow)
		if err := l.Off(); err != nil {
			return nil, err
		}
		return l, nil
	}

	activity, err := open("activity", spec.Activity)
	if err != nil {
		return nil, err
	}
	var rgb *RGB
	if spec.HasSignal() {
		rgb = &RGB{}
		if rgb.Red, err = open("red", spec.Red); err != nil {
			return nil, err
		}
		if rgb.Green, err = open("green", spec.Green); err != nil {
			return nil, err
		}
		if rgb.Blue, err = open("blue", spec.Blue); err != nil {
			return nil, err
		}
	}
	return NewSignaller(activity, rgb, logger), nil
}

// CanSignal reports whether an RGB LED is wired at all.
func (s *Signaller) CanSignal() bool {
	return s.rgb.wired() != 0
}

// Activity switches the activity LED. Boards without one ignore it.
func (s *Signaller) Activity(on bool) {
	if err := s.activity.Set(on); err != nil {
		s.logger.Warn("activity led", "error", err)
	}
}

// Blink plays p and leaves the LED off. It returns early with the context
// error when ctx is cancelled.
func (s *Signaller) Blink(ctx context.Context, p Pattern) error {
	c := s.colorOf(p)
	if c == 0 {
		return nil
	}
	defer func() {
		if err := s.rgb.Off(); err != nil {
			s.logger.Warn("rgb led off", "error", err)
		}
	}()
	for i := 0; i < p.Times; i++ {
		if err := s.rgb.Show(c); err != nil {
			return err
		}
		if err := s.sleep(ctx, p.On); err != nil {
			return err
		}
		if err := s.rgb.Off(); err != nil {
			return err
		}
		if err := s.sleep(ctx, p.Off); err != nil {
			return err
		}
	}
	return nil
}

func (s *Signaller) colorOf(p Pattern) Color {
	if p.Alarm {
		return s.rgb.RenderAlarm(p.Color)
	}
	return s.rgb.Render(p.Color)
}

// Signal announces each verdict in order.
func (s *Signaller) Signal(ctx context.Context, vs []threshold.Verdict) error {
	if !s.CanSignal() {
		return nil
	}
	for _, v := range vs {
		p, ok := PatternFor(v)
		if !ok {
			continue
		}
		s.logger.Debug("led signal",
			"metric", v.Measurement.Metric,
			"status", v.Status,
			"color", s.colorOf(p),
		)
		if err := s.Blink(ctx, p); err != nil {
			return fmt.Errorf("signal %s: %w", v.Measurement.Metric, err)
		}
	}
	return nil
}

// SelfTest shows every colour of SelfTestColors once.
func (s *Signaller) SelfTest(ctx context.Context) error {
	if !s.CanSignal() {
		return nil
	}
	names := make([]string, 0, len(SelfTestColors))
	for _, c := range SelfTestColors {
		names = append(names, c.String())
		if err := s.Blink(ctx, Pattern{Color: c, Times: 1, On: blinkOn, Off: blinkOff}); err != nil {
			return fmt.Errorf("self test %s: %w", c, err)
		}
	}
	s.logger.Info("led self test done", "colors", strings.Join(names, ","))
	return nil
}

// Close switches every LED off.
func (s *Signaller) Close() error {
	if err := s.rgb.Off(); err != nil {
		return err
	}
	return s.activity.Off()
}
