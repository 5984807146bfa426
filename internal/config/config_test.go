package config

import (
	"log/slog"
	"testing"
	"time"
)

// setRequired fills the variables LoadFromEnv refuses to default and
// clears the optional ones.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("CONFIG_URL", "http://api.local/controllers/{hardware_id}")
	t.Setenv("DATA_URL", "http://api.local/stations/{station_id}/data")
	for _, k := range []string{
		"BOARD", "BOARD_FILE", "HARDWARE_ID", "NETWORK_INTERFACE", "NETWORK_WAIT",
		"POLL_INTERVAL_UNIT", "STARTUP_DELAY", "API_TIMEOUT", "API_BREAKER_FAILURES",
		"API_BREAKER_OPEN_FOR", "BME280_ADDRESS", "I2C_BUS", "MQTT_BROKER", "MQTT_PORT",
		"MQTT_CLIENT_ID", "MQTT_USERNAME", "MQTT_PASSWORD", "MQTT_TOPIC_PREFIX", "INFLUX_URL", "INFLUX_TOKEN", "INFLUX_ORG", "INFLUX_BUCKET",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	setRequired(t)

	got, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v, want nil", err)
	}

	if got.AppEnv != "dev" {
		t.Errorf("AppEnv = %q, want %q", got.AppEnv, "dev")
	}
	if got.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", got.LogLevel, slog.LevelInfo)
	}
	if got.Board != "bme280-rgb" {
		t.Errorf("Board = %q, want %q", got.Board, "bme280-rgb")
	}
	if got.NetworkInterface != "wlan0" {
		t.Errorf("NetworkInterface = %q, want %q", got.NetworkInterface, "wlan0")
	}
	if got.NetworkWait != time.Second {
		t.Errorf("NetworkWait = %v, want %v", got.NetworkWait, time.Second)
	}
	if got.IntervalUnit != time.Millisecond {
		t.Errorf("IntervalUnit = %v, want %v", got.IntervalUnit, time.Millisecond)
	}
	if got.StartupDelay != 2*time.Second {
		t.Errorf("StartupDelay = %v, want %v", got.StartupDelay, 2*time.Second)
	}
	if got.APITimeout != 10*time.Second {
		t.Errorf("APITimeout = %v, want %v", got.APITimeout, 10*time.Second)
	}
	if got.APIBreakerFailures != 5 {
		t.Errorf("APIBreakerFailures = %d, want 5", got.APIBreakerFailures)
	}
	if got.BME280Address != 0 {
		t.Errorf("BME280Address = %#x, want 0 (probe)", got.BME280Address)
	}
	if got.MQTTBroker != "" || got.MQTTPort != 1883 || got.MQTTClientID != "tempstation" {
		t.Errorf("MQTT = (%q, %d, %q), want (\"\", 1883, tempstation)", got.MQTTBroker, got.MQTTPort, got.MQTTClientID)
	}
	if got.MQTTTopicPrefix != "stations" {
		t.Errorf("MQTTTopicPrefix = %q, want stations", got.MQTTTopicPrefix)
	}
	if got.InfluxURL != "" {
		t.Errorf("InfluxURL = %q, want empty", got.InfluxURL)
	}
}

func TestLoadFromEnv_HTTPAddr(t *testing.T) {
	t.Run("empty disables listener", func(t *testing.T) {
		setRequired(t)
		t.Setenv("HTTP_ADDR", "")
		got, err := LoadFromEnv()
		if err != nil {
			t.Fatalf("LoadFromEnv() error = %v, want nil", err)
		}
		if got.HTTPAddr != "" {
			t.Errorf("HTTPAddr = %q, want empty (disabled)", got.HTTPAddr)
		}
	})

	t.Run("trims whitespace", func(t *testing.T) {
		setRequired(t)
		t.Setenv("HTTP_ADDR", "  :9090  ")
		got, err := LoadFromEnv()
		if err != nil {
			t.Fatalf("LoadFromEnv() error = %v, want nil", err)
		}
		if got.HTTPAddr != ":9090" {
			t.Errorf("HTTPAddr = %q, want %q", got.HTTPAddr, ":9090")
		}
	})
}

func TestLoadFromEnv_AppEnv_Invalid(t *testing.T) {
	for _, appEnv := range []string{"staging", "DEV", "whatever"} {
		t.Run(appEnv, func(t *testing.T) {
			setRequired(t)
			t.Setenv("APP_ENV", appEnv)
			if _, err := LoadFromEnv(); err == nil {
				t.Fatalf("LoadFromEnv() error = nil, want non-nil")
			}
		})
	}
}

func TestLoadFromEnv_URLs(t *testing.T) {
	tests := []struct {
		name      string
		configURL string
		dataURL   string
		wantErr   bool
	}{
		{name: "valid", configURL: "http://a/{hardware_id}", dataURL: "http://a/{station_id}"},
		{name: "original casing of station placeholder", configURL: "http://a/{hardware_id}", dataURL: "http://a/{station_ID}"},
		{name: "missing config url", configURL: "", dataURL: "http://a/{station_id}", wantErr: true},
		{name: "missing data url", configURL: "http://a/{hardware_id}", dataURL: "", wantErr: true},
		{name: "config url without placeholder", configURL: "http://a/", dataURL: "http://a/{station_id}", wantErr: true},
		{name: "data url without placeholder", configURL: "http://a/{hardware_id}", dataURL: "http://a/data", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv("CONFIG_URL", tt.configURL)
			t.Setenv("DATA_URL", tt.dataURL)
			_, err := LoadFromEnv()
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadFromEnv() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromEnv_IntervalUnit(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "", want: time.Millisecond},
		{in: "ms", want: time.Millisecond},
		{in: " S ", want: time.Second},
		{in: "minutes", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			setRequired(t)
			t.Setenv("POLL_INTERVAL_UNIT", tt.in)
			got, err := LoadFromEnv()
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadFromEnv() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got.IntervalUnit != tt.want {
				t.Errorf("IntervalUnit = %v, want %v", got.IntervalUnit, tt.want)
			}
		})
	}
}

func TestLoadFromEnv_BME280Address(t *testing.T) {
	tests := []struct {
		in      string
		want    uint16
		wantErr bool
	}{
		{in: "auto", want: 0},
		{in: "0x77", want: 0x77},
		{in: "118", want: 0x76},
		{in: "0x1ffff", wantErr: true},
		{in: "nope", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			setRequired(t)
			t.Setenv("BME280_ADDRESS", tt.in)
			got, err := LoadFromEnv()
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadFromEnv() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got.BME280Address != tt.want {
				t.Errorf("BME280Address = %#x, want %#x", got.BME280Address, tt.want)
			}
		})
	}
}

func TestLoadFromEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		key, val string
	}{
		{"NETWORK_WAIT", "soon"},
		{"NETWORK_WAIT", "0s"},
		{"STARTUP_DELAY", "-1s"},
		{"API_TIMEOUT", "0s"},
		{"API_BREAKER_FAILURES", "0"},
		{"API_BREAKER_FAILURES", "-3"},
		{"API_BREAKER_OPEN_FOR", "later"},
		{"API_BREAKER_OPEN_FOR", "0s"},
		{"API_BREAKER_OPEN_FOR", "-5s"},
		{"MQTT_PORT", "abc"},
		{"MQTT_TOPIC_PREFIX", "site/#"},
		{"INFLUX_URL", "http://influx:8086"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.val, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.val)
			if _, err := LoadFromEnv(); err == nil {
				t.Fatalf("LoadFromEnv() error = nil, want non-nil")
			}
		})
	}
}

func TestLoadFromEnv_Influx(t *testing.T) {
	setRequired(t)
	t.Setenv("INFLUX_URL", "http://influx:8086")
	t.Setenv("INFLUX_TOKEN", "tok")
	t.Setenv("INFLUX_ORG", "home")
	t.Setenv("INFLUX_BUCKET", "env")

	got, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v, want nil", err)
	}
	if got.InfluxURL != "http://influx:8086" || got.InfluxOrg != "home" || got.InfluxBucket != "env" || got.InfluxToken != "tok" {
		t.Errorf("influx config = %+v", got)
	}
}

func TestParseLogLevel_Valid(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want slog.Level
	}{
		{name: "debug", in: "debug", want: slog.LevelDebug},
		{name: "info", in: "info", want: slog.LevelInfo},
		{name: "warn", in: "warn", want: slog.LevelWarn},
		{name: "warning", in: "warning", want: slog.LevelWarn},
		{name: "error", in: "error", want: slog.LevelError},
		{name: "case insensitive", in: "DeBuG", want: slog.LevelDebug},
		{name: "trims whitespace", in: "  warn \n", want: slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLogLevel(tt.in)
			if err != nil {
				t.Fatalf("parseLogLevel(%q) error = %v, want nil", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseLogLevel_Invalid(t *testing.T) {
	for _, in := range []string{"", "nope", "warns", "1"} {
		t.Run(in, func(t *testing.T) {
			got, err := parseLogLevel(in)
			if err == nil {
				t.Fatalf("parseLogLevel(%q) error = nil, want non-nil", in)
			}
			if got != slog.LevelInfo {
				t.Errorf("parseLogLevel(%q) = %v, want %v on error", in, got, slog.LevelInfo)
			}
		})
	}
}
