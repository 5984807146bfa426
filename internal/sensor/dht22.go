package sensor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"

	"tempstation/internal/station"
	"tempstation/internal/utils"
)

// AM2302/DHT22 single-wire timings.
const (
	dhtStartLow   = 2 * time.Millisecond
	dhtBitOne     = 50 * time.Microsecond // high pulses longer than this are 1
	dhtFrameTime  = 10 * time.Millisecond
	dhtMinGap     = 2 * time.Second
	dhtFrameBits  = 40
	dhtFrameBytes = dhtFrameBits / 8
)

// DHT22 is an AM2302/DHT22 on a GPIO data pin.
type DHT22 struct {
	pin     gpio.PinIO
	now     func() time.Time
	sleep   func(context.Context, time.Duration) error
	capture func() ([]time.Duration, error)

	mu       sync.Mutex
	lastRead time.Time
}

func OpenDHT22(pinName string) (*DHT22, error) {
	p := gpioreg.ByName(pinName)
	if p == nil {
		return nil, fmt.Errorf("dht22: no gpio pin %q", pinName)
	}
	if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("dht22 %s: %w", pinName, err)
	}
	return newDHT22(p), nil
}

func newDHT22(p gpio.PinIO) *DHT22 {
	d := &DHT22{pin: p, now: time.Now, sleep: utils.Sleep}
	d.capture = d.captureLine
	return d
}

func (d *DHT22) Read(ctx context.Context) ([]station.Measurement, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// The sensor needs two seconds between conversions.
	if wait := dhtMinGap - d.now().Sub(d.lastRead); !d.lastRead.IsZero() && wait > 0 {
		if err := d.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	highs, err := d.capture()
	d.lastRead = d.now()
	if err != nil {
		return nil, err
	}
	frame, err := frameFromPulses(highs)
	if err != nil {
		return nil, err
	}
	temp, hum, err := parseFrame(frame)
	if err != nil {
		return nil, err
	}
	at := d.now()
	return []station.Measurement{
		station.NewMeasurement(station.Temperature, temp, at),
		station.NewMeasurement(station.Humidity, hum, at),
	}, nil
}

// captureLine sends the start signal and returns the width of every high pulse
// the sensor drives until the line stays idle.
func (d *DHT22) captureLine() ([]time.Duration, error) {
	if err := d.pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("dht22 start: %w", err)
	}
	time.Sleep(dhtStartLow)
	if err := d.pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("dht22 release: %w", err)
	}

	highs := make([]time.Duration, 0, dhtFrameBits+2)
	deadline := time.Now().Add(dhtFrameTime)
	level := d.pin.Read()
	since := time.Now()
	for {
		now := time.Now()
		if now.After(deadline) {
			break
		}
		l := d.pin.Read()
		if l == level {
			continue
		}
		if level == gpio.High {
			highs = append(highs, now.Sub(since))
		}
		level, since = l, now
	}
	if len(highs) < dhtFrameBits {
		return nil, fmt.Errorf("dht22: %d of %d bits: %w", len(highs), dhtFrameBits, ErrTimeout)
	}
	return highs, nil
}

func (d *DHT22) Metrics() []station.Metric {
	return []station.Metric{station.Temperature, station.Humidity}
}

func (d *DHT22) String() string { return "DHT22{" + d.pin.Name() + "}" }

func (d *DHT22) Close() error { return d.pin.Halt() }

// frameFromPulses decodes the last 40 high pulses into a frame. Anything
// before them is the sensor's response preamble.
func frameFromPulses(highs []time.Duration) ([dhtFrameBytes]byte, error) {
	var frame [dhtFrameBytes]byte
	if len(highs) < dhtFrameBits {
		return frame, fmt.Errorf("dht22: %d of %d bits: %w", len(highs), dhtFrameBits, ErrTimeout)
	}
	bits := highs[len(highs)-dhtFrameBits:]
	for i, w := range bits {
		frame[i/8] <<= 1
		if w > dhtBitOne {
			frame[i/8] |= 1
		}
	}
	return frame, nil
}

// parseFrame validates the checksum and returns °C and %RH.
func parseFrame(f [dhtFrameBytes]byte) (float64, float64, error) {
	sum := f[0] + f[1] + f[2] + f[3]
	if sum != f[4] {
		return 0, 0, fmt.Errorf("dht22: frame % x: %w", f, ErrChecksum)
	}
	hum := float64(uint16(f[0])<<8|uint16(f[1])) / 10
	temp := float64(uint16(f[2]&0x7f)<<8|uint16(f[3])) / 10
	if f[2]&0x80 != 0 {
		temp = -temp
	}
	return temp, hum, nil
}
