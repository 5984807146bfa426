// Package api talks to the remote tempstation API: it fetches the station
// configuration for this controller and posts measured values.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"tempstation/internal/station"
)

var (
	// ErrStationNotFound means the API knows no station for the hardware id.
	ErrStationNotFound = errors.New("station not found")
	// ErrSkipped means the breaker is open and the request was not sent.
	ErrSkipped = errors.New("api unavailable, request skipped")
)

// StatusError is a non-2xx answer.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

type Options struct {
	ConfigURL string
	DataURL   string
	// IntervalUnit scales settings.measureDuration.
	IntervalUnit time.Duration
	Timeout      time.Duration

	BreakerFailures uint32
	BreakerOpenFor  time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	http      *http.Client
	configURL string
	dataURL   string
	unit      time.Duration
	timeout   time.Duration
	cb        *gobreaker.CircuitBreaker
	logger    *slog.Logger
}

var stationPlaceholder = regexp.MustCompile(`(?i)\{station_id\}`)

func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	unit := opts.IntervalUnit
	if unit <= 0 {
		unit = time.Millisecond
	}
	failures := opts.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	c := &Client{
		http:      hc,
		configURL: opts.ConfigURL,
		dataURL:   opts.DataURL,
		unit:      unit,
		timeout:   opts.Timeout,
		logger:    logger,
	}
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "tempstation-api",
		MaxRequests: 1,
		Timeout:     opts.BreakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// A missing station is an answer, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrStationNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("api breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// BreakerState is the current breaker state: closed, half-open or open.
func (c *Client) BreakerState() string {
	return c.cb.State().String()
}

// ConfigURL is the fetch URL for a hardware id.
func (c *Client) ConfigURL(hardwareID string) string {
	return strings.ReplaceAll(c.configURL, "{hardware_id}", url.PathEscape(hardwareID))
}

// DataURL is the post URL for a station.
func (c *Client) DataURL(stationID int) string {
	return stationPlaceholder.ReplaceAllLiteralString(c.dataURL, strconv.Itoa(stationID))
}

type criticalValue struct {
	ID       int     `json:"id"`
	MinValue float64 `json:"minValue"`
	MaxValue float64 `json:"maxValue"`
}

type controllerResponse struct {
	ID       *int `json:"id"`
	Location struct {
		CriticalValues []criticalValue `json:"criticalValues"`
	} `json:"location"`
	Settings struct {
		MeasureDuration float64 `json:"measureDuration"`
	} `json:"settings"`
}

// FetchStation loads the station configured for hardwareID. It makes one
// attempt.
func (c *Client) FetchStation(ctx context.Context, hardwareID string) (station.Station, error) {
	u := c.ConfigURL(hardwareID)

	var body []byte
	err := c.do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		b, err := c.send(req)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) && se.Code == http.StatusNotFound {
				return fmt.Errorf("%w: hardware id %s", ErrStationNotFound, hardwareID)
			}
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return station.Station{}, fmt.Errorf("fetch station: %w", err)
	}

	st, err := c.decodeStation(body, hardwareID)
	if err != nil {
		return station.Station{}, fmt.Errorf("fetch station: %w", err)
	}
	return st, nil
}

func (c *Client) decodeStation(body []byte, hardwareID string) (station.Station, error) {
	var resp controllerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return station.Station{}, fmt.Errorf("decode controller: %w", err)
	}
	if resp.ID == nil {
		return station.Station{}, errors.New("decode controller: missing id")
	}
	if resp.Settings.MeasureDuration <= 0 {
		return station.Station{}, fmt.Errorf("decode controller: measureDuration must be positive, got %v", resp.Settings.MeasureDuration)
	}

	th := station.Thresholds{}
	for _, cv := range resp.Location.CriticalValues {
		m, ok := station.MetricForCriticalValue(cv.ID)
		if !ok {
			c.logger.Debug("ignoring critical value", "id", cv.ID)
			continue
		}
		if cv.MinValue > cv.MaxValue {
			c.logger.Warn("critical value range is inverted, every value will be out of range",
				"metric", m, "min", cv.MinValue, "max", cv.MaxValue)
		}
		th[m] = station.Range{Min: cv.MinValue, Max: cv.MaxValue}
	}

	return station.Station{
		ID:         *resp.ID,
		HardwareID: hardwareID,
		Thresholds: th,
		Interval:   time.Duration(resp.Settings.MeasureDuration * float64(c.unit)),
	}, nil
}

type measurementBody struct {
	Value  float64 `json:"value"`
	UnitID int     `json:"unitId"`
}

// PostMeasurement sends one value to the station's data endpoint.
func (c *Client) PostMeasurement(ctx context.Context, stationID int, m station.Measurement) error {
	payload, err := json.Marshal(measurementBody{Value: m.Value, UnitID: m.Metric.UnitID()})
	if err != nil {
		return fmt.Errorf("encode %s: %w", m.Metric, err)
	}
	u := c.DataURL(stationID)

	err = c.do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		_, err = c.send(req)
		return err
	})
	if err != nil {
		return fmt.Errorf("post %s: %w", m.Metric, err)
	}
	return nil
}

// do runs fn through the breaker with the per-request timeout applied.
func (c *Client) do(ctx context.Context, fn func(context.Context) error) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		if c.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		return nil, fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrSkipped, err)
	}
	return err
}

func (c *Client) send(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", req.Method, req.URL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Method: req.Method,
			URL:    req.URL.String(),
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(body)),
		}
	}
	c.logger.Debug("api response", "method", req.Method, "url", req.URL.String(), "status", resp.StatusCode, "body", strings.TrimSpace(string(body)))
	return body, nil
}
