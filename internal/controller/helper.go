package controller

import (
	"errors"
	"net/http"

	"github.com/watchroom/server/internal/service/room"
	"github.com/watchroom/server/internal/service/sync"
	"github.com/watchroom/server/pkg/rest"
)

// writeServiceError maps service sentinels to stable status codes. Store
// failures stay distinguishable from not-found: the service never masks them.
func (c *controller) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var status int

	switch {
	case errors.Is(err, room.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, room.ErrForbidden), errors.Is(err, sync.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, sync.ErrUnknownAction):
		status = http.StatusBadRequest
	case errors.Is(err, room.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError {
		c.logger.ErrorContext(r.Context(), "request failed", "error", err)
	}

	rest.WriteJSON(w, status, rest.Envelope{"error": err.Error()})
}
