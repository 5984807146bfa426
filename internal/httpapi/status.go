package httpapi

import (
	"net/http"

	"tempstation/internal/utils"
)

type statusHandler struct {
	src StatusSource
}

func (h *statusHandler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	if h.src == nil {
		utils.WriteError(w, http.StatusServiceUnavailable, "station not configured yet")
		return
	}
	utils.WriteJSON(w, http.StatusOK, h.src.Snapshot())
}

func registerStatus(mux *http.ServeMux, src StatusSource) {
	h := &statusHandler{src: src}
	mux.HandleFunc("GET /api/v1/status", h.handleStatus)
}
