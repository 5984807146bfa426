package board

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestBuiltin_AllValid(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			p, err := Builtin(name)
			if err != nil {
				t.Fatalf("Builtin(%q) error = %v", name, err)
			}
			if err := p.Validate(); err != nil {
				t.Fatalf("Validate() = %v", err)
			}
			if p.Name != name {
				t.Errorf("Name = %q, want %q", p.Name, name)
			}
		})
	}
}

func TestBuiltin_Unknown(t *testing.T) {
	_, err := Builtin("esp8266-lcd")
	if !errors.Is(err, ErrUnknownProfile) {
		t.Fatalf("Builtin error = %v, want ErrUnknownProfile", err)
	}
}

func TestBuiltin_CaseInsensitive(t *testing.T) {
	p, err := Builtin("  BME280-RGB ")
	if err != nil {
		t.Fatalf("Builtin error = %v", err)
	}
	if p.Sensor.Model != SensorBME280 || !p.SelfTest {
		t.Errorf("profile = %+v", p)
	}
}

func TestBuiltin_ReturnsIndependentCopy(t *testing.T) {
	p, err := Builtin("dht22-rg")
	if err != nil {
		t.Fatalf("Builtin error = %v", err)
	}
	p.LEDs.Red.ActiveLow = false
	p.LEDs.Red.Pin = "GPIO99"
	p.LEDs.Activity = nil

	again, err := Builtin("dht22-rg")
	if err != nil {
		t.Fatalf("Builtin error = %v", err)
	}
	if again.LEDs.Red.Pin != "GPIO13" || !again.LEDs.Red.ActiveLow {
		t.Errorf("built-in red changed through a copy: %+v", again.LEDs.Red)
	}
	if again.LEDs.Activity == nil {
		t.Error("built-in activity led removed through a copy")
	}
}

func TestParse(t *testing.T) {
	const doc = `
name: garage
sensor:
  model: DHT22
  pin: GPIO17
leds:
  activity: {pin: GPIO27, active_low: false}
  red: {pin: GPIO22, active_low: true}
signal_before_report: true
`
	p, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse error = %v", err)
	}
	if p.Name != "garage" || p.Sensor.Model != SensorDHT22 || p.Sensor.Pin != "GPIO17" {
		t.Errorf("profile = %+v", p)
	}
	if p.LEDs.Activity == nil || p.LEDs.Activity.ActiveLow {
		t.Errorf("activity = %+v, want active-high GPIO27", p.LEDs.Activity)
	}
	if p.LEDs.Red == nil || !p.LEDs.Red.ActiveLow {
		t.Errorf("red = %+v, want active-low GPIO22", p.LEDs.Red)
	}
	if p.LEDs.Green != nil || p.LEDs.Blue != nil {
		t.Errorf("unexpected green/blue: %+v", p.LEDs)
	}
	if !p.SignalBeforeReport {
		t.Error("SignalBeforeReport = false, want true")
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "not yaml", doc: "name: [unterminated"},
		{name: "no name", doc: "sensor: {model: bme280}"},
		{name: "unknown sensor", doc: "name: x\nsensor: {model: sht31}"},
		{name: "dht without pin", doc: "name: x\nsensor: {model: dht22}"},
		{name: "led without pin", doc: "name: x\nsensor: {model: bme280}\nleds:\n  red: {active_low: true}"},
		{name: "shared pin", doc: "name: x\nsensor: {model: dht22, pin: GPIO4}\nleds:\n  red: {pin: GPIO4}"},
		{name: "self test without colours", doc: "name: x\nsensor: {model: bme280}\nself_test: true\nleds:\n  activity: {pin: GPIO2}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); err == nil {
				t.Fatal("Parse error = nil, want non-nil")
			}
		})
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "board.yaml")
	if err := os.WriteFile(path, []byte("name: file\nsensor: {model: bme280}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	p, err := Resolve("dht22", path)
	if err != nil {
		t.Fatalf("Resolve(file) error = %v", err)
	}
	if p.Name != "file" {
		t.Errorf("Resolve prefers file: got %q", p.Name)
	}

	p, err = Resolve("dht22", "")
	if err != nil {
		t.Fatalf("Resolve(builtin) error = %v", err)
	}
	if p.Name != "dht22" {
		t.Errorf("Resolve(builtin) = %q, want dht22", p.Name)
	}

	if _, err := Resolve("dht22", filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Resolve(missing file) error = nil, want non-nil")
	}
}
