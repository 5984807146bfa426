package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"tempstation/internal/config"
)

// NewServer wraps the mux with request logging. The listener is local to the
// station, so write and idle timeouts stay short.
func NewServer(cfg config.Config, mux http.Handler, logger *slog.Logger) *http.Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           requestLogger(logger.With("component", "httpapi"), mux),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       time.Minute,
	}
}
