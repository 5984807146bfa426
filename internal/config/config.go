package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	Board     string
	BoardFile string

	ConfigURL        string
	DataURL          string
	HardwareID       string
	NetworkInterface string
	NetworkWait      time.Duration
	IntervalUnit     time.Duration
	StartupDelay     time.Duration

	APITimeout         time.Duration
	APIBreakerFailures uint32
	APIBreakerOpenFor  time.Duration

	// BME280Address is 0 when the address should be probed.
	BME280Address uint16
	I2CBus        string

	MQTTBroker      string
	MQTTPort        int
	MQTTClientID    string
	MQTTUsername    string
	MQTTPassword    string
	MQTTTopicPrefix string

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string
}

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	httpAddr, ok := os.LookupEnv("HTTP_ADDR")
	httpAddr = strings.TrimSpace(httpAddr)
	if !ok {
		httpAddr = ":8080"
	}

	board := strings.TrimSpace(os.Getenv("BOARD"))
	if board == "" {
		board = "bme280-rgb"
	}
	boardFile := strings.TrimSpace(os.Getenv("BOARD_FILE"))

	configURL := strings.TrimSpace(os.Getenv("CONFIG_URL"))
	if configURL == "" {
		return Config{}, fmt.Errorf("CONFIG_URL is required")
	}
	if !strings.Contains(configURL, "{hardware_id}") {
		return Config{}, fmt.Errorf("CONFIG_URL %q must contain {hardware_id}", configURL)
	}
	dataURL := strings.TrimSpace(os.Getenv("DATA_URL"))
	if dataURL == "" {
		return Config{}, fmt.Errorf("DATA_URL is required")
	}
	if !strings.Contains(strings.ToLower(dataURL), "{station_id}") {
		return Config{}, fmt.Errorf("DATA_URL %q must contain {station_id}", dataURL)
	}

	hardwareID := strings.ToLower(strings.TrimSpace(os.Getenv("HARDWARE_ID")))

	networkInterface := strings.TrimSpace(os.Getenv("NETWORK_INTERFACE"))
	if networkInterface == "" {
		networkInterface = "wlan0"
	}

	networkWait, err := durationEnv("NETWORK_WAIT", "1s")
	if err != nil {
		return Config{}, err
	}
	if networkWait <= 0 {
		return Config{}, fmt.Errorf("NETWORK_WAIT must be positive, got %v", networkWait)
	}

	intervalUnit, err := parseIntervalUnit(os.Getenv("POLL_INTERVAL_UNIT"))
	if err != nil {
		return Config{}, err
	}

	startupDelay, err := durationEnv("STARTUP_DELAY", "2s")
	if err != nil {
		return Config{}, err
	}
	if startupDelay < 0 {
		return Config{}, fmt.Errorf("STARTUP_DELAY must not be negative, got %v", startupDelay)
	}

	apiTimeout, err := durationEnv("API_TIMEOUT", "10s")
	if err != nil {
		return Config{}, err
	}
	if apiTimeout <= 0 {
		return Config{}, fmt.Errorf("API_TIMEOUT must be positive, got %v", apiTimeout)
	}

	breakerFailuresStr := strings.TrimSpace(os.Getenv("API_BREAKER_FAILURES"))
	if breakerFailuresStr == "" {
		breakerFailuresStr = "5"
	}
	breakerFailures, err := strconv.ParseUint(breakerFailuresStr, 10, 32)
	if err != nil {
		return Config{}, fmt.Errorf("invalid API_BREAKER_FAILURES %q: %w", breakerFailuresStr, err)
	}
	if breakerFailures == 0 {
		return Config{}, fmt.Errorf("API_BREAKER_FAILURES must be at least 1")
	}

	breakerOpenFor, err := durationEnv("API_BREAKER_OPEN_FOR", "30s")
	if err != nil {
		return Config{}, err
	}
	if breakerOpenFor <= 0 {
		return Config{}, fmt.Errorf("API_BREAKER_OPEN_FOR must be positive, got %v", breakerOpenFor)
	}

	bme280AddressStr := strings.ToLower(strings.TrimSpace(os.Getenv("BME280_ADDRESS")))
	var bme280Address uint64
	if bme280AddressStr != "" && bme280AddressStr != "auto" {
		bme280Address, err = strconv.ParseUint(bme280AddressStr, 0, 16)
		if err != nil {
			return Config{}, fmt.Errorf("invalid BME280_ADDRESS %q: %w", bme280AddressStr, err)
		}
	}

	i2cBus := strings.TrimSpace(os.Getenv("I2C_BUS"))

	mqttBroker := strings.TrimSpace(os.Getenv("MQTT_BROKER"))

	mqttPortStr := strings.TrimSpace(os.Getenv("MQTT_PORT"))
	if mqttPortStr == "" {
		mqttPortStr = "1883"
	}
	mqttPort, err := strconv.Atoi(mqttPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %q: %w", mqttPortStr, err)
	}

	mqttClientID := strings.TrimSpace(os.Getenv("MQTT_CLIENT_ID"))
	if mqttClientID == "" {
		mqttClientID = "tempstation"
	}
	mqttUsername := strings.TrimSpace(os.Getenv("MQTT_USERNAME"))
	mqttPassword := os.Getenv("MQTT_PASSWORD")
	mqttTopicPrefix := strings.Trim(strings.TrimSpace(os.Getenv("MQTT_TOPIC_PREFIX")), "/")
	if mqttTopicPrefix == "" {
		mqttTopicPrefix = "stations"
	}
	if strings.ContainsAny(mqttTopicPrefix, "+#") {
		return Config{}, fmt.Errorf("invalid MQTT_TOPIC_PREFIX %q: wildcards are not allowed", mqttTopicPrefix)
	}

	influxURL := strings.TrimSpace(os.Getenv("INFLUX_URL"))
	influxToken := strings.TrimSpace(os.Getenv("INFLUX_TOKEN"))
	influxOrg := strings.TrimSpace(os.Getenv("INFLUX_ORG"))
	influxBucket := strings.TrimSpace(os.Getenv("INFLUX_BUCKET"))
	if influxURL != "" && (influxOrg == "" || influxBucket == "") {
		return Config{}, fmt.Errorf("INFLUX_ORG and INFLUX_BUCKET are required when INFLUX_URL is set")
	}

	return Config{
		AppEnv:             appEnv,
		LogLevel:           level,
		HTTPAddr:           httpAddr,
		Board:              board,
		BoardFile:          boardFile,
		ConfigURL:          configURL,
		DataURL:            dataURL,
		HardwareID:         hardwareID,
		NetworkInterface:   networkInterface,
		NetworkWait:        networkWait,
		IntervalUnit:       intervalUnit,
		StartupDelay:       startupDelay,
		APITimeout:         apiTimeout,
		APIBreakerFailures: uint32(breakerFailures),
		APIBreakerOpenFor:  breakerOpenFor,
		BME280Address:      uint16(bme280Address),
		I2CBus:             i2cBus,
		MQTTBroker:         mqttBroker,
		MQTTPort:           mqttPort,
		MQTTClientID:       mqttClientID,
		MQTTUsername:       mqttUsername,
		MQTTPassword:       mqttPassword,
		MQTTTopicPrefix:    mqttTopicPrefix,
		InfluxURL:          influxURL,
		InfluxToken:        influxToken,
		InfluxOrg:          influxOrg,
		InfluxBucket:       influxBucket,
	}, nil
}

func durationEnv(key, def string) (time.Duration, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		s = def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return d, nil
}

func parseIntervalUnit(s string) (time.Duration, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ms":
		return time.Millisecond, nil
	case "s":
		return time.Second, nil
	default:
		return 0, fmt.Errorf("invalid POLL_INTERVAL_UNIT %q (allowed: ms, s)", s)
	}
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
