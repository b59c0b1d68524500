package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/teofly/gallery-api/internal/domain"
	internal_errors "github.com/teofly/gallery-api/internal/errors"
	"github.com/teofly/gallery-api/internal/middleware"
	"github.com/teofly/gallery-api/internal/utils"
)

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.auth.ListUsers(r.Context())
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	public := make([]domain.PublicUser, 0, len(users))
	for i := range users {
		public = append(public, users[i].Public())
	}
	utils.WriteJSON(w, http.StatusOK, public)
}

type setActiveRequest struct {
	IsActive *bool `validate:"required" json:"isActive"`
}

// SetUserActive toggles an account. Deactivation takes effect on the next
// request: the auth middleware rejects inactive users regardless of what
// tokens they still hold.
func (h *Handler) SetUserActive(w http.ResponseWriter, r *http.Request) {
	id, err := userIdParam(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var req setActiveRequest
	if err := utils.DecodeValidate(r.Body, &req); err != nil {
		utils.WriteError(w, err)
		return
	}

	if err := h.auth.SetUserActive(r.Context(), id, *req.IsActive); err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "User updated successfully"})
}

// RevokeTokens bumps the user's token version, invalidating every token
// issued before the bump.
func (h *Handler) RevokeTokens(w http.ResponseWriter, r *http.Request) {
	id, err := userIdParam(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	if err := h.auth.RevokeTokens(r.Context(), id); err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "Tokens revoked successfully"})
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := userIdParam(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	actor := middleware.GetUserFromContext(r)
	if err := h.auth.DeleteUser(r.Context(), actor, id); err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})
}

func userIdParam(r *http.Request) (domain.UserId, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, &internal_errors.ErrorWithStatusCode{
			Message:    "Invalid user id",
			StatusCode: http.StatusBadRequest,
			Code:       internal_errors.CodeInvalidInput,
		}
	}
	return id, nil
}
