package handler

import (
	"github.com/teofly/gallery-api/internal/service"
)

type Handler struct {
	auth service.AuthService
}

func New(auth service.AuthService) *Handler {
	return &Handler{auth: auth}
}
