package handler

import (
	"net/http"
	"sync/atomic"
)

type healthHandler struct {
	healthy atomic.Bool
}

func NewHealthHandler() *healthHandler {
	return &healthHandler{}
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.healthy.Load() {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
}

func (h *healthHandler) SetHealth(state bool) {
	h.healthy.Store(state)
}
