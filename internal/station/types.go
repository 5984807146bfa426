package station

import (
	"fmt"
	"time"
)

// Metric identifies one measured quantity.
type Metric string

const (
	Temperature Metric = "temperature"
	Humidity    Metric = "humidity"
	Pressure    Metric = "pressure"
)

// Metrics lists every metric in reporting order.
var Metrics = []Metric{Temperature, Humidity, Pressure}

// UnitID is the numeric tag the remote API expects with a posted value.
func (m Metric) UnitID() int {
	switch m {
	case Temperature:
		return 1
	case Humidity:
		return 2
	case Pressure:
		return 3
	default:
		return 0
	}
}

// Unit is the physical unit a value of m is expressed in.
func (m Metric) Unit() string {
	switch m {
	case Temperature:
		return "°C"
	case Humidity:
		return "%RH"
	case Pressure:
		return "hPa"
	default:
		return ""
	}
}

// MetricForCriticalValue maps a threshold record id to its metric.
// Pressure thresholds are published as 11; 3 is accepted as well.
func MetricForCriticalValue(id int) (Metric, bool) {
	switch id {
	case 1:
		return Temperature, true
	case 2:
		return Humidity, true
	case 3, 11:
		return Pressure, true
	default:
		return "", false
	}
}

// Measurement is a single sensor value. It lives for one loop cycle.
type Measurement struct {
	Metric Metric    `json:"metric"`
	Value  float64   `json:"value"`
	Unit   string    `json:"unit"`
	At     time.Time `json:"at"`
}

// NewMeasurement stamps the metric's unit onto the value.
func NewMeasurement(m Metric, v float64, at time.Time) Measurement {
	return Measurement{Metric: m, Value: v, Unit: m.Unit(), At: at}
}

func (m Measurement) String() string {
	return fmt.Sprintf("%s=%.2f%s", m.Metric, m.Value, m.Metric.Unit())
}

// Range is a critical value pair. Both bounds are inclusive.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Thresholds holds the configured range per metric.
type Thresholds map[Metric]Range

// Station is the configuration record fetched once at startup.
type Station struct {
	ID         int           `json:"id"`
	HardwareID string        `json:"hardware_id"`
	Thresholds Thresholds    `json:"thresholds"`
	Interval   time.Duration `json:"interval"`
}

// Telemetry is the per-cycle document mirrored to MQTT.
type Telemetry struct {
	StationID   int       `json:"station_id"`
	HardwareID  string    `json:"hardware_id"`
	Cycle       string    `json:"cycle"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature *float64  `json:"temperature_c,omitempty"`
	Humidity    *float64  `json:"humidity_pct,omitempty"`
	Pressure    *float64  `json:"pressure_hpa,omitempty"`
}

// NewTelemetry folds the measurements of one cycle into a Telemetry document.
func NewTelemetry(st Station, cycle string, at time.Time, ms []Measurement) Telemetry {
	t := Telemetry{
		StationID:  st.ID,
		HardwareID: st.HardwareID,
		Cycle:      cycle,
		Timestamp:  at,
	}
	for _, m := range ms {
		v := m.Value
		switch m.Metric {
		case Temperature:
			t.Temperature = &v
		case Humidity:
			t.Humidity = &v
		case Pressure:
			t.Pressure = &v
		}
	}
	return t
}
