package sensor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"

	"tempstation/internal/station"
)

// ProbeAddresses are tried in order when no BME280 address is configured.
var ProbeAddresses = []uint16{0x76, 0x77}

type senser interface {
	Sense(env *physic.Env) error
	Halt() error
	String() string
}

// BME280 is a Bosch BME280 (or BMP280, which lacks humidity) on I2C.
type BME280 struct {
	bus     i2c.BusCloser
	dev     senser
	metrics []station.Metric
	now     func() time.Time
}

func OpenBME280(busName string, addr uint16) (*BME280, error) {
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}

	addrs := ProbeAddresses
	if addr != 0 {
		addrs = []uint16{addr}
	}
	var errs []error
	for _, a := range addrs {
		dev, err := bmxx80.NewI2C(bus, a, &bmxx80.DefaultOpts)
		if err != nil {
			errs = append(errs, fmt.Errorf("address %#x: %w", a, err))
			continue
		}
		return newBME280(bus, dev), nil
	}
	_ = bus.Close()
	return nil, fmt.Errorf("no bme280 on bus %q: %w", busName, errors.Join(errs...))
}

func newBME280(bus i2c.BusCloser, dev senser) *BME280 {
	metrics := []station.Metric{station.Temperature, station.Humidity, station.Pressure}
	if strings.HasPrefix(dev.String(), "BMP280") {
		metrics = []station.Metric{station.Temperature, station.Pressure}
	}
	return &BME280{bus: bus, dev: dev, metrics: metrics, now: time.Now}
}

func (b *BME280) Read(ctx context.Context) ([]station.Measurement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var env physic.Env
	if err := b.dev.Sense(&env); err != nil {
		return nil, fmt.Errorf("bme280 sense: %w", err)
	}
	return measurements(env, b.metrics, b.now()), nil
}

func (b *BME280) Metrics() []station.Metric { return b.metrics }

func (b *BME280) String() string { return b.dev.String() }

func (b *BME280) Close() error {
	err := b.dev.Halt()
	if b.bus != nil {
		err = errors.Join(err, b.bus.Close())
	}
	return err
}
