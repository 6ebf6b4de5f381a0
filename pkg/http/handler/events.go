package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/dockerplatform/registry-gate/pkg"
	"github.com/dockerplatform/registry-gate/pkg/domain"
	"github.com/dockerplatform/registry-gate/pkg/registry"
)

type eventsHandler struct {
	sync domain.SyncService
}

func NewEventsHandler(sync domain.SyncService) *eventsHandler {
	return &eventsHandler{sync: sync}
}

// ServeHTTP receives registry webhook deliveries. It always answers 200
// with an empty body: an error status would make the registry retry (or
// back off) the delivery, which never helps with application-level failures.
// Problems are logged and the offending events dropped.
func (h *eventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := pkg.LoggerFromContext(r.Context())

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.WithError(err).Error("Error while reading notification body")
		w.WriteHeader(http.StatusOK)
		return
	}

	var notification registry.Notification
	if err := json.Unmarshal(body, &notification); err != nil {
		logger.WithError(err).Warn("Ignoring malformed registry notification")
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.sync.HandleNotification(r.Context(), &notification); err != nil {
		logger.WithError(err).Error("Error while processing registry notification")
	}

	w.WriteHeader(http.StatusOK)
}
