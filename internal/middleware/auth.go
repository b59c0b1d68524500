package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/teofly/gallery-api/internal/domain"
	internal_errors "github.com/teofly/gallery-api/internal/errors"
	"github.com/teofly/gallery-api/internal/middleware/metrics"
	"github.com/teofly/gallery-api/internal/token"
	"github.com/teofly/gallery-api/internal/utils"
)

// UserStore is the slice of the storage layer the authenticator needs.
type UserStore interface {
	UserById(ctx context.Context, id domain.UserId) (domain.User, error)
}

// Key to store the resolved user in the request context
type key int

const userKey key = 0

// Auth resolves a request's caller identity from a bearer access token.
type Auth struct {
	tokens *token.Service
	users  UserStore
}

func NewAuth(tokens *token.Service, users UserStore) *Auth {
	return &Auth{tokens: tokens, users: users}
}

// RequireAuth rejects the request unless a valid access token resolves to
// an active user. The user is attached to the request context.
func (a *Auth) RequireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := a.authenticate(r)
			if err != nil {
				if e, ok := err.(*internal_errors.ErrorWithStatusCode); ok && e.StatusCode == http.StatusUnauthorized {
					metrics.RecordAuthFailure(e.Code)
				}
				utils.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// OptionalAuth attaches the user when a valid token is presented and
// degrades every failure mode to anonymous access. Downstream handlers
// treat a nil user as anonymous, never as an error.
func (a *Auth) OptionalAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user, err := a.authenticate(r); err == nil {
				r = r.WithContext(WithUser(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole gates a route on the resolved identity holding one of the
// required roles. Compose it after RequireAuth or OptionalAuth.
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUserFromContext(r)
			if user == nil {
				utils.WriteError(w, &internal_errors.ErrorWithStatusCode{
					Message:    "Authentication required",
					StatusCode: http.StatusUnauthorized,
					Code:       internal_errors.CodeAuthRequired,
				})
				return
			}
			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			utils.WriteError(w, &internal_errors.ErrorWithStatusCode{
				Message:    "Admin access required",
				StatusCode: http.StatusForbidden,
				Code:       internal_errors.CodeAdminAccessRequired,
			})
		})
	}
}

// authenticate is the single verification path both variants share.
// It returns the loaded user or the coded error describing why the
// presented identity is unusable.
func (a *Auth) authenticate(r *http.Request) (*domain.User, error) {
	tokenString, isBearer := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !isBearer {
		return nil, tokenError(token.ErrMissing)
	}

	claims, err := a.tokens.VerifyAccess(tokenString)
	if err != nil {
		return nil, tokenError(err)
	}

	userId, err := claims.UserId()
	if err != nil {
		return nil, tokenError(err)
	}

	user, err := a.users.UserById(r.Context(), userId)
	if err != nil {
		if e, ok := err.(*internal_errors.ErrorWithStatusCode); ok && e.StatusCode == http.StatusNotFound {
			return nil, &internal_errors.ErrorWithStatusCode{
				Message:    "User not found",
				StatusCode: http.StatusUnauthorized,
				Code:       internal_errors.CodeUserNotFound,
			}
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, &internal_errors.ErrorWithStatusCode{
			Message:    "Account is deactivated",
			StatusCode: http.StatusUnauthorized,
			Code:       internal_errors.CodeAccountDeactivated,
		}
	}

	// Tokens minted before the user's version bump are dead, even when
	// their signature and expiry still check out.
	if claims.TokenVersion != user.TokenVersion {
		return nil, &internal_errors.ErrorWithStatusCode{
			Message:    "Token has been revoked",
			StatusCode: http.StatusUnauthorized,
			Code:       internal_errors.CodeTokenRevoked,
		}
	}

	return &user, nil
}

// tokenError maps token service failures onto the stable wire codes.
func tokenError(err error) error {
	switch err {
	case token.ErrMissing:
		return &internal_errors.ErrorWithStatusCode{Message: "Access token required", StatusCode: http.StatusUnauthorized, Code: internal_errors.CodeTokenMissing}
	case token.ErrExpired:
		return &internal_errors.ErrorWithStatusCode{Message: "Token expired", StatusCode: http.StatusUnauthorized, Code: internal_errors.CodeTokenExpired}
	case token.ErrWrongPurpose:
		return &internal_errors.ErrorWithStatusCode{Message: "Invalid token type", StatusCode: http.StatusUnauthorized, Code: internal_errors.CodeInvalidTokenType}
	default:
		return &internal_errors.ErrorWithStatusCode{Message: "Invalid token", StatusCode: http.StatusUnauthorized, Code: internal_errors.CodeInvalidToken}
	}
}

// WithUser attaches the resolved user to a context. Exposed so handler
// tests can build authenticated requests without a real token.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// GetUserFromContext retrieves the authenticated user, nil when anonymous.
func GetUserFromContext(r *http.Request) *domain.User {
	user, ok := r.Context().Value(userKey).(*domain.User)
	if !ok {
		return nil
	}
	return user
}
