package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teofly/gallery-api/internal/domain"
	internal_errors "github.com/teofly/gallery-api/internal/errors"
	"github.com/teofly/gallery-api/internal/token"
)

type mockUserStore struct {
	UserByIdFunc func(ctx context.Context, id domain.UserId) (domain.User, error)
}

func (m *mockUserStore) UserById(ctx context.Context, id domain.UserId) (domain.User, error) {
	return m.UserByIdFunc(ctx, id)
}

func newTokens(t *testing.T) *token.Service {
	t.Helper()
	svc, err := token.New("access-secret", "refresh-secret", time.Hour, 7*24*time.Hour)
	require.NoError(t, err)
	return svc
}

func activeUser() domain.User {
	return domain.User{
		Id:       uuid.New(),
		Email:    "ana@teofly.com",
		Name:     "Ana",
		Role:     domain.RoleAdmin,
		IsActive: true,
	}
}

func storeWith(user domain.User) *mockUserStore {
	return &mockUserStore{
		UserByIdFunc: func(ctx context.Context, id domain.UserId) (domain.User, error) {
			if id == user.Id {
				return user, nil
			}
			return domain.User{}, &internal_errors.ErrorWithStatusCode{
				Message:    "User not found",
				StatusCode: http.StatusNotFound,
				Code:       internal_errors.CodeUserNotFound,
			}
		},
	}
}

// echoUser writes the resolved context user's email, or "anonymous".
func echoUser(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	if user == nil {
		fmt.Fprint(w, "anonymous")
		return
	}
	fmt.Fprint(w, user.Email)
}

func errCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body.Code
}

func TestRequireAuth(t *testing.T) {
	tokens := newTokens(t)
	user := activeUser()

	pair, err := tokens.Issue(&user)
	require.NoError(t, err)

	expiredTokens, err := token.New("access-secret", "refresh-secret", -time.Minute, 7*24*time.Hour)
	require.NoError(t, err)
	expiredPair, err := expiredTokens.Issue(&user)
	require.NoError(t, err)

	deactivated := user
	deactivated.IsActive = false

	revoked := user
	revoked.TokenVersion = 3

	tests := []struct {
		name       string
		authHeader string
		store      UserStore
		wantStatus int
		wantCode   string
	}{
		{
			name:       "valid token",
			authHeader: "Bearer " + pair.AccessToken,
			store:      storeWith(user),
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing header",
			authHeader: "",
			store:      storeWith(user),
			wantStatus: http.StatusUnauthorized,
			wantCode:   internal_errors.CodeTokenMissing,
		},
		{
			name:       "bare token without bearer scheme",
			authHeader: pair.AccessToken,
			store:      storeWith(user),
			wantStatus: http.StatusUnauthorized,
			wantCode:   internal_errors.CodeTokenMissing,
		},
		{
			name:       "malformed token",
			authHeader: "Bearer not.a.jwt",
			store:      storeWith(user),
			wantStatus: http.StatusUnauthorized,
			wantCode:   internal_errors.CodeInvalidToken,
		},
		{
			name:       "expired token",
			authHeader: "Bearer " + expiredPair.AccessToken,
			store:      storeWith(user),
			wantStatus: http.StatusUnauthorized,
			wantCode:   internal_errors.CodeTokenExpired,
		},
		{
			name:       "refresh token on access route",
			authHeader: "Bearer " + pair.RefreshToken,
			store:      storeWith(user),
			wantStatus: http.StatusUnauthorized,
			wantCode:   internal_errors.CodeInvalidTokenType,
		},
		{
			name:       "user deleted",
			authHeader: "Bearer " + pair.AccessToken,
			store:      storeWith(activeUser()),
			wantStatus: http.StatusUnauthorized,
			wantCode:   internal_errors.CodeUserNotFound,
		},
		{
			name:       "deactivated account",
			authHeader: "Bearer " + pair.AccessToken,
			store:      storeWith(deactivated),
			wantStatus: http.StatusUnauthorized,
			wantCode:   internal_errors.CodeAccountDeactivated,
		},
		{
			name:       "revoked token version",
			authHeader: "Bearer " + pair.AccessToken,
			store:      storeWith(revoked),
			wantStatus: http.StatusUnauthorized,
			wantCode:   internal_errors.CodeTokenRevoked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := NewAuth(tokens, tt.store)
			handler := auth.RequireAuth()(http.HandlerFunc(echoUser))

			req := httptest.NewRequest(http.MethodGet, "/v1/auth/profile", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, errCode(t, rr))
			} else {
				assert.Equal(t, user.Email, rr.Body.String())
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	tokens := newTokens(t)
	user := activeUser()

	pair, err := tokens.Issue(&user)
	require.NoError(t, err)

	t.Run("valid token resolves user", func(t *testing.T) {
		auth := NewAuth(tokens, storeWith(user))
		handler := auth.OptionalAuth()(http.HandlerFunc(echoUser))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, user.Email, rr.Body.String())
	})

	t.Run("no token degrades to anonymous", func(t *testing.T) {
		auth := NewAuth(tokens, storeWith(user))
		handler := auth.OptionalAuth()(http.HandlerFunc(echoUser))

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "anonymous", rr.Body.String())
	})

	t.Run("bad token degrades to anonymous", func(t *testing.T) {
		auth := NewAuth(tokens, storeWith(user))
		handler := auth.OptionalAuth()(http.HandlerFunc(echoUser))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "anonymous", rr.Body.String())
	})
}

func TestRequireRole(t *testing.T) {
	admin := activeUser()

	handler := RequireRole(domain.RoleAdmin)(http.HandlerFunc(echoUser))

	t.Run("admin passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/admin/users", nil)
		req = req.WithContext(WithUser(req.Context(), &admin))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("anonymous rejected", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/admin/users", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, internal_errors.CodeAuthRequired, errCode(t, rr))
	})

	t.Run("wrong role rejected", func(t *testing.T) {
		viewer := activeUser()
		viewer.Role = "viewer"

		req := httptest.NewRequest(http.MethodGet, "/v1/admin/users", nil)
		req = req.WithContext(WithUser(req.Context(), &viewer))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Equal(t, internal_errors.CodeAdminAccessRequired, errCode(t, rr))
	})
}
