// Package board describes the hardware variants a tempstation can run on:
// which sensor is attached, which LEDs are wired to which pins, and in what
// order the loop signals and reports.
package board

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrUnknownProfile = errors.New("unknown board profile")

type SensorModel string

const (
	SensorBME280 SensorModel = "bme280"
	SensorDHT22  SensorModel = "dht22"
)

type SensorSpec struct {
	Model SensorModel `yaml:"model"`
	// Pin is the data pin for single-wire sensors.
	Pin string `yaml:"pin,omitempty"`
}

type PinSpec struct {
	Pin       string `yaml:"pin"`
	ActiveLow bool   `yaml:"active_low"`
}

type LEDSpec struct {
	Activity *PinSpec `yaml:"activity,omitempty"`
	Red      *PinSpec `yaml:"red,omitempty"`
	Green    *PinSpec `yaml:"green,omitempty"`
	Blue     *PinSpec `yaml:"blue,omitempty"`
}

// HasSignal reports whether any colour channel is wired.
func (l LEDSpec) HasSignal() bool {
	return l.Red != nil || l.Green != nil || l.Blue != nil
}

type Profile struct {
	Name               string     `yaml:"name"`
	Sensor             SensorSpec `yaml:"sensor"`
	LEDs               LEDSpec    `yaml:"leds"`
	SignalBeforeReport bool       `yaml:"signal_before_report"`
	SelfTest           bool       `yaml:"self_test"`
}

func (p Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("profile name is empty")
	}
	switch p.Sensor.Model {
	case SensorBME280:
	case SensorDHT22:
		if p.Sensor.Pin == "" {
			return fmt.Errorf("profile %q: dht22 needs sensor.pin", p.Name)
		}
	default:
		return fmt.Errorf("profile %q: unsupported sensor model %q", p.Name, p.Sensor.Model)
	}

	seen := map[string]string{}
	if p.Sensor.Pin != "" {
		seen[p.Sensor.Pin] = "sensor"
	}
	for _, l := range []struct {
		role string
		spec *PinSpec
	}{
		{"activity", p.LEDs.Activity},
		{"red", p.LEDs.Red},
		{"green", p.LEDs.Green},
		{"blue", p.LEDs.Blue},
	} {
		if l.spec == nil {
			continue
		}
		if l.spec.Pin == "" {
			return fmt.Errorf("profile %q: led %s has no pin", p.Name, l.role)
		}
		if other, ok := seen[l.spec.Pin]; ok {
			return fmt.Errorf("profile %q: pin %s used by both %s and %s", p.Name, l.spec.Pin, other, l.role)
		}
		seen[l.spec.Pin] = l.role
	}
	if p.SelfTest && !p.LEDs.HasSignal() {
		return fmt.Errorf("profile %q: self_test needs at least one colour led", p.Name)
	}
	return nil
}

func activeLow(pin string) *PinSpec { return &PinSpec{Pin: pin, ActiveLow: true} }

var builtin = map[string]Profile{
	"dht22": {
		Name:   "dht22",
		Sensor: SensorSpec{Model: SensorDHT22, Pin: "GPIO4"},
		LEDs:   LEDSpec{Activity: activeLow("GPIO2")},
	},
	"dht22-rg": {
		Name:   "dht22-rg",
		Sensor: SensorSpec{Model: SensorDHT22, Pin: "GPIO4"},
		LEDs: LEDSpec{
			Activity: activeLow("GPIO2"),
			Red:      activeLow("GPIO13"),
			Green:    activeLow("GPIO12"),
		},
	},
	"dht22-rg-early": {
		Name:   "dht22-rg-early",
		Sensor: SensorSpec{Model: SensorDHT22, Pin: "GPIO4"},
		LEDs: LEDSpec{
			Activity: activeLow("GPIO2"),
			Red:      activeLow("GPIO13"),
			Green:    activeLow("GPIO12"),
		},
		SignalBeforeReport: true,
	},
	"bme280-rgb": {
		Name:   "bme280-rgb",
		Sensor: SensorSpec{Model: SensorBME280},
		LEDs: LEDSpec{
			Activity: activeLow("GPIO2"),
			Red:      activeLow("GPIO13"),
			Green:    activeLow("GPIO15"),
			Blue:     activeLow("GPIO12"),
		},
		SelfTest: true,
	},
}

// Names lists the built-in profiles.
func Names() []string {
	out := make([]string, 0, len(builtin))
	for k := range builtin {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Builtin returns a copy of a built-in profile. The caller may modify it
// freely, pin specs included.
func Builtin(name string) (Profile, error) {
	p, ok := builtin[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Profile{}, fmt.Errorf("%w %q (known: %s)", ErrUnknownProfile, name, strings.Join(Names(), ", "))
	}
	p.LEDs = p.LEDs.clone()
	return p, nil
}

func (l LEDSpec) clone() LEDSpec {
	cp := func(ps *PinSpec) *PinSpec {
		if ps == nil {
			return nil
		}
		c := *ps
		return &c
	}
	return LEDSpec{
		Activity: cp(l.Activity),
		Red:      cp(l.Red),
		Green:    cp(l.Green),
		Blue:     cp(l.Blue),
	}
}

// Parse decodes and validates a YAML profile.
func Parse(b []byte) (Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(b, &p); err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	p.Sensor.Model = SensorModel(strings.ToLower(string(p.Sensor.Model)))
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// LoadFile reads a YAML profile from disk.
func LoadFile(path string) (Profile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile %s: %w", path, err)
	}
	return Parse(b)
}

// Resolve picks the profile file when one is given, otherwise the named
// built-in.
func Resolve(name, file string) (Profile, error) {
	if file != "" {
		return LoadFile(file)
	}
	return Builtin(name)
}
