package handler

import (
	"context"
	"net/http"

	internal_errors "github.com/teofly/gallery-api/internal/errors"
	"github.com/teofly/gallery-api/internal/utils"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	storage Pinger
}

func NewHealth(storage Pinger) *HealthHandler {
	return &HealthHandler{storage: storage}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.Ping(r.Context()); err != nil {
		utils.WriteError(w, &internal_errors.ErrorWithStatusCode{
			Message:    "Storage unavailable",
			StatusCode: http.StatusServiceUnavailable,
			Code:       internal_errors.CodeServerError,
		})
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
