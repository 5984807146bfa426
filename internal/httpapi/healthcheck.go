package httpapi

import (
	"net/http"

	"tempstation/internal/utils"
)

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func registerHealthcheck(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealthz)
}
