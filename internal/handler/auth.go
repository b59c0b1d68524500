package handler

import (
	"net/http"

	"github.com/teofly/gallery-api/internal/domain"
	internal_errors "github.com/teofly/gallery-api/internal/errors"
	"github.com/teofly/gallery-api/internal/middleware"
	"github.com/teofly/gallery-api/internal/token"
	"github.com/teofly/gallery-api/internal/utils"
)

type credentials struct {
	Email    string `validate:"required,email" json:"email"`
	Password string `validate:"required" json:"password"`
}

type loginResponse struct {
	token.Pair
	User domain.PublicUser `json:"user"`
}

// Login verifies credentials and hands out a token pair. The rate limit
// middleware in front of this handler has already counted the attempt.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := utils.DecodeValidate(r.Body, &creds); err != nil {
		utils.WriteError(w, err)
		return
	}

	pair, user, err := h.auth.Login(r.Context(), domain.Credentials{Email: creds.Email, Password: creds.Password})
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, loginResponse{Pair: pair, User: user.Public()})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh rotates a refresh token into a brand-new pair.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := utils.DecodeValidate(r.Body, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	if req.RefreshToken == "" {
		utils.WriteError(w, &internal_errors.ErrorWithStatusCode{
			Message:    "Refresh token is required",
			StatusCode: http.StatusBadRequest,
			Code:       internal_errors.CodeRefreshTokenMissing,
		})
		return
	}

	pair, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, pair)
}

// CreateFirstAdmin bootstraps the first admin account over HTTP. It only
// works with the configured bootstrap credentials and while no admin
// exists, so it is safe to leave public.
func (h *Handler) CreateFirstAdmin(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := utils.DecodeValidate(r.Body, &creds); err != nil {
		utils.WriteError(w, err)
		return
	}

	user, err := h.auth.CreateFirstAdmin(r.Context(), domain.Credentials{Email: creds.Email, Password: creds.Password})
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, user.Public())
}

type registerRequest struct {
	Email    string `validate:"required,email" json:"email"`
	Password string `validate:"required" json:"password"`
	Name     string `validate:"required" json:"name"`
}

// Register creates another admin account. Admin-gated in the router.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := utils.DecodeValidate(r.Body, &req); err != nil {
		utils.WriteError(w, err)
		return
	}

	user, err := h.auth.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, user.Public())
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r)
	utils.WriteJSON(w, http.StatusOK, user.Public())
}

type updateProfileRequest struct {
	Name  string `json:"name"`
	Email string `validate:"omitempty,email" json:"email"`
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := utils.DecodeValidate(r.Body, &req); err != nil {
		utils.WriteError(w, err)
		return
	}

	user := middleware.GetUserFromContext(r)
	updated, err := h.auth.UpdateProfile(r.Context(), user.Id, req.Name, req.Email)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, updated.Public())
}

type changePasswordRequest struct {
	CurrentPassword string `validate:"required" json:"currentPassword"`
	NewPassword     string `validate:"required" json:"newPassword"`
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := utils.DecodeValidate(r.Body, &req); err != nil {
		utils.WriteError(w, err)
		return
	}

	user := middleware.GetUserFromContext(r)
	if err := h.auth.ChangePassword(r.Context(), user, req.CurrentPassword, req.NewPassword); err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}

// Logout is a client-side operation: tokens are stateless, so the server
// only acknowledges. Clients drop their pair; admins can revoke server-side
// via the token-version bump.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}
