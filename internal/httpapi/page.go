package httpapi

import (
	"bytes"
	"log/slog"
	"math"
	"net/http"
	"time"

	"tempstation/internal/httpapi/views"
	"tempstation/internal/utils"
)

const defaultRefresh = 30 * time.Second

type pageHandler struct {
	src StatusSource
}

func (h *pageHandler) handlePage(w http.ResponseWriter, _ *http.Request) {
	if h.src == nil {
		utils.WriteError(w, http.StatusServiceUnavailable, "station not configured yet")
		return
	}
	snap := h.src.Snapshot()

	refresh := defaultRefresh
	if d, err := time.ParseDuration(snap.Interval); err == nil && d > 0 {
		refresh = d
	}

	var buf bytes.Buffer
	if err := views.RenderStatus(&buf, &views.StatusPage{
		Snapshot:       snap,
		RefreshSeconds: refreshSeconds(refresh),
	}); err != nil {
		slog.Error("render status page", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

func registerPage(mux *http.ServeMux, src StatusSource) error {
	if err := views.LoadTemplates(); err != nil {
		return err
	}
	h := &pageHandler{src: src}
	mux.HandleFunc("GET /{$}", h.handlePage)
	return nil
}

// refreshSeconds rounds up so sub-second intervals never yield a zero
// (reload immediately) meta refresh.
func refreshSeconds(d time.Duration) int {
	return max(1, int(math.Ceil(d.Seconds())))
}
