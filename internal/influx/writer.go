// Package influx writes station cycles to InfluxDB v2.
package influx

import (
	"context"
	"fmt"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"tempstation/internal/config"
	"tempstation/internal/station"
)

const Measurement = "environment"

type Writer struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	board    string
}

func NewWriter(cfg config.Config, board string) (*Writer, error) {
	if cfg.InfluxURL == "" || cfg.InfluxOrg == "" || cfg.InfluxBucket == "" {
		return nil, fmt.Errorf("influx config incomplete")
	}

	client := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
	return &Writer{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		board:    board,
	}, nil
}

// Write stores one point per cycle with a field per measured metric.
func (w *Writer) Write(ctx context.Context, st station.Station, at time.Time, ms []station.Measurement) error {
	if len(ms) == 0 {
		return nil
	}
	tags := map[string]string{
		"station":  strconv.Itoa(st.ID),
		"hardware": st.HardwareID,
		"board":    w.board,
	}
	fields := make(map[string]interface{}, len(ms))
	for _, m := range ms {
		fields[string(m.Metric)] = m.Value
	}

	point := influxdb2.NewPoint(Measurement, tags, fields, at)
	if err := w.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	return nil
}

func (w *Writer) Close() {
	w.client.Close()
}
