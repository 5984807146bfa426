package influx

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempstation/internal/config"
	"tempstation/internal/station"
)

type writeRequest struct {
	path  string
	query map[string]string
	auth  string
	body  string
}

func fakeInflux(t *testing.T, status int) (*httptest.Server, chan writeRequest) {
	t.Helper()
	reqs := make(chan writeRequest, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		reqs <- writeRequest{
			path: r.URL.Path,
			query: map[string]string{
				"org":    r.URL.Query().Get("org"),
				"bucket": r.URL.Query().Get("bucket"),
			},
			auth: r.Header.Get("Authorization"),
			body: string(b),
		}
		if status != http.StatusNoContent {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"code":"invalid","message":"bad point"}`)
			return
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, reqs
}

func TestWriter_Write(t *testing.T) {
	srv, reqs := fakeInflux(t, http.StatusNoContent)
	w, err := NewWriter(config.Config{InfluxURL: srv.URL, InfluxToken: "tok", InfluxOrg: "home", InfluxBucket: "env"}, "bme280-rgb")
	require.NoError(t, err)
	defer w.Close()

	at := time.Unix(1700000000, 0)
	st := station.Station{ID: 7, HardwareID: "a020a60fbeef"}
	ms := []station.Measurement{
		{Metric: station.Temperature, Value: 21.5},
		{Metric: station.Humidity, Value: 40},
		{Metric: station.Pressure, Value: 1013.25},
	}
	require.NoError(t, w.Write(context.Background(), st, at, ms))

	req := <-reqs
	assert.Equal(t, "/api/v2/write", req.path)
	assert.Equal(t, "home", req.query["org"])
	assert.Equal(t, "env", req.query["bucket"])
	assert.Equal(t, "Token tok", req.auth)

	line := strings.TrimSpace(req.body)
	assert.True(t, strings.HasPrefix(line, "environment,"), "line = %q", line)
	for _, part := range []string{
		"board=bme280-rgb",
		"hardware=a020a60fbeef",
		"station=7",
		"temperature=21.5",
		"humidity=40",
		"pressure=1013.25",
	} {
		assert.Contains(t, line, part)
	}
	assert.True(t, strings.HasSuffix(line, " 1700000000000000000"), "line = %q", line)
}

func TestWriter_NoMeasurements(t *testing.T) {
	srv, reqs := fakeInflux(t, http.StatusNoContent)
	w, err := NewWriter(config.Config{InfluxURL: srv.URL, InfluxOrg: "o", InfluxBucket: "b"}, "dht22")
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Write(context.Background(), station.Station{ID: 1}, time.Now(), nil))
	assert.Len(t, reqs, 0)
}

func TestWriter_ServerError(t *testing.T) {
	srv, _ := fakeInflux(t, http.StatusBadRequest)
	w, err := NewWriter(config.Config{InfluxURL: srv.URL, InfluxOrg: "o", InfluxBucket: "b"}, "dht22")
	require.NoError(t, err)
	defer w.Close()

	err = w.Write(context.Background(), station.Station{ID: 1}, time.Now(), []station.Measurement{{Metric: station.Temperature, Value: 1}})
	assert.Error(t, err)
}

func TestNewWriter_Incomplete(t *testing.T) {
	_, err := NewWriter(config.Config{InfluxURL: "http://influx:8086"}, "dht22")
	assert.Error(t, err)
}
