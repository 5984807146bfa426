// Package httpapi serves the local status surface of a station: health,
// Prometheus metrics, the last cycle as JSON and a status page.
package httpapi

import (
	"fmt"
	"net/http"

	"tempstation/internal/status"
)

type StatusSource interface {
	Snapshot() status.Snapshot
}

func NewMux(src StatusSource, metrics http.Handler) (*http.ServeMux, error) {
	mux := http.NewServeMux()
	registerHealthcheck(mux)
	registerStatus(mux, src)
	if err := registerPage(mux, src); err != nil {
		return nil, fmt.Errorf("status page: %w", err)
	}
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	return mux, nil
}
