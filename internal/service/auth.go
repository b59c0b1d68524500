package service

import (
	"context"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/teofly/gallery-api/internal/config"
	"github.com/teofly/gallery-api/internal/domain"
	"github.com/teofly/gallery-api/internal/errors"
	"github.com/teofly/gallery-api/internal/logger"
	"github.com/teofly/gallery-api/internal/token"
)

type AuthService interface {
	Login(ctx context.Context, creds domain.Credentials) (token.Pair, domain.User, error)
	Refresh(ctx context.Context, refreshToken string) (token.Pair, error)
	Register(ctx context.Context, email domain.Email, password domain.Password, name string) (domain.User, error)
	CreateFirstAdmin(ctx context.Context, creds domain.Credentials) (domain.User, error)

	UpdateProfile(ctx context.Context, userId domain.UserId, name string, email domain.Email) (domain.User, error)
	ChangePassword(ctx context.Context, user *domain.User, current, new domain.Password) error

	ListUsers(ctx context.Context) ([]domain.User, error)
	SetUserActive(ctx context.Context, userId domain.UserId, active bool) error
	RevokeTokens(ctx context.Context, userId domain.UserId) error
	DeleteUser(ctx context.Context, actor *domain.User, userId domain.UserId) error
}

type UserStorage interface {
	SaveUser(ctx context.Context, user domain.User) (domain.User, error)
	UserByEmail(ctx context.Context, email domain.Email) (domain.User, error)
	UserById(ctx context.Context, id domain.UserId) (domain.User, error)
	Users(ctx context.Context) ([]domain.User, error)
	HasAdmin(ctx context.Context) (bool, error)
	UpdateProfile(ctx context.Context, id domain.UserId, name string, email domain.Email) (domain.User, error)
	UpdatePassword(ctx context.Context, id domain.UserId, passHash string) error
	UpdateLastLogin(ctx context.Context, id domain.UserId, at time.Time) error
	SetActive(ctx context.Context, id domain.UserId, active bool) error
	BumpTokenVersion(ctx context.Context, id domain.UserId) error
	DeleteUser(ctx context.Context, id domain.UserId) error
}

type TokenService interface {
	Issue(user *domain.User) (token.Pair, error)
	VerifyRefresh(tokenStr string) (*token.Claims, error)
}

type Auth struct {
	storage UserStorage
	tokens  TokenService
	cfg     *config.Config
}

func NewAuth(storage UserStorage, tokens TokenService, cfg *config.Config) *Auth {
	return &Auth{storage: storage, tokens: tokens, cfg: cfg}
}

// Login verifies credentials and returns a fresh token pair plus the user.
// Unknown emails and wrong passwords produce the same error, to not leak
// which accounts exist.
func (a *Auth) Login(ctx context.Context, creds domain.Credentials) (token.Pair, domain.User, error) {
	email := strings.ToLower(creds.Email)

	user, err := a.storage.UserByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return token.Pair{}, domain.User{}, invalidCredentialsError()
		}
		return token.Pair{}, domain.User{}, err
	}

	if !user.IsActive {
		return token.Pair{}, domain.User{}, &errors.ErrorWithStatusCode{
			Message:    "Account is deactivated",
			StatusCode: http.StatusUnauthorized,
			Code:       errors.CodeAccountDeactivated,
		}
	}

	if !verifyPassword(user.PassHash, creds.Password) {
		return token.Pair{}, domain.User{}, invalidCredentialsError()
	}

	now := time.Now().UTC()
	if err := a.storage.UpdateLastLogin(ctx, user.Id, now); err != nil {
		// Not worth failing the login over.
		logger.Log.Warn("failed to update last login", "user_id", user.Id, "error", err)
	} else {
		user.LastLogin = now
	}

	pair, err := a.tokens.Issue(&user)
	if err != nil {
		logger.Log.Error("failed to issue token pair", "user_id", user.Id, "error", err)
		return token.Pair{}, domain.User{}, err
	}

	return pair, user, nil
}

// Refresh redeems a refresh token for a brand-new pair (rotation). The user
// is re-loaded so deactivation and token-version bumps cut the session off
// here too. Every failure collapses into one stable code.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (token.Pair, error) {
	claims, err := a.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return token.Pair{}, invalidRefreshTokenError()
	}

	userId, err := claims.UserId()
	if err != nil {
		return token.Pair{}, invalidRefreshTokenError()
	}

	user, err := a.storage.UserById(ctx, userId)
	if err != nil {
		if isNotFound(err) {
			return token.Pair{}, invalidRefreshTokenError()
		}
		return token.Pair{}, err
	}

	if !user.IsActive || claims.TokenVersion != user.TokenVersion {
		return token.Pair{}, invalidRefreshTokenError()
	}

	pair, err := a.tokens.Issue(&user)
	if err != nil {
		logger.Log.Error("failed to issue token pair", "user_id", user.Id, "error", err)
		return token.Pair{}, err
	}
	return pair, nil
}

// Register creates a new admin account. Callers are already behind the
// admin role gate.
func (a *Auth) Register(ctx context.Context, email domain.Email, password domain.Password, name string) (domain.User, error) {
	if err := checkPasswordStrength(password); err != nil {
		return domain.User{}, err
	}
	return a.createUser(ctx, strings.ToLower(email), password, name)
}

// CreateFirstAdmin bootstraps the very first admin account. The supplied
// credentials must match the configured bootstrap pair, and it refuses to
// run once any admin exists.
func (a *Auth) CreateFirstAdmin(ctx context.Context, creds domain.Credentials) (domain.User, error) {
	if a.cfg.Private.AdminEmail == "" ||
		creds.Email != a.cfg.Private.AdminEmail ||
		creds.Password != a.cfg.Private.AdminPassword {
		return domain.User{}, &errors.ErrorWithStatusCode{
			Message:    "Invalid credentials for admin creation",
			StatusCode: http.StatusUnauthorized,
			Code:       errors.CodeInvalidCredentials,
		}
	}

	exists, err := a.storage.HasAdmin(ctx)
	if err != nil {
		return domain.User{}, err
	}
	if exists {
		return domain.User{}, &errors.ErrorWithStatusCode{
			Message:    "Admin already exists",
			StatusCode: http.StatusBadRequest,
			Code:       errors.CodeAdminExists,
		}
	}

	return a.createUser(ctx, strings.ToLower(creds.Email), creds.Password, "Admin")
}

// EnsureBootstrapAdmin creates the configured admin account at startup when
// no admin exists yet. Idempotent across restarts.
func (a *Auth) EnsureBootstrapAdmin(ctx context.Context) error {
	if a.cfg.Private.AdminEmail == "" {
		logger.Log.Info("no bootstrap admin configured, skipping")
		return nil
	}

	exists, err := a.storage.HasAdmin(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	user, err := a.createUser(ctx, strings.ToLower(a.cfg.Private.AdminEmail), a.cfg.Private.AdminPassword, "Admin")
	if err != nil {
		return err
	}
	logger.Log.Info("bootstrap admin created", "email", user.Email)
	return nil
}

func (a *Auth) createUser(ctx context.Context, email domain.Email, password domain.Password, name string) (domain.User, error) {
	passHash, err := hashPassword(password)
	if err != nil {
		logger.Log.Error("failed to hash password", "error", err)
		return domain.User{}, err
	}

	return a.storage.SaveUser(ctx, domain.User{
		Id:       uuid.New(),
		Email:    email,
		PassHash: passHash,
		Name:     name,
		Role:     domain.RoleAdmin,
		IsActive: true,
	})
}

// UpdateProfile changes name and/or email; empty fields keep their current
// value. The password hash is never touched here.
func (a *Auth) UpdateProfile(ctx context.Context, userId domain.UserId, name string, email domain.Email) (domain.User, error) {
	current, err := a.storage.UserById(ctx, userId)
	if err != nil {
		return domain.User{}, err
	}

	if name == "" {
		name = current.Name
	}
	if email == "" {
		email = current.Email
	}

	return a.storage.UpdateProfile(ctx, userId, name, strings.ToLower(email))
}

// ChangePassword verifies the current password, checks the new one's
// strength and persists a freshly derived hash.
func (a *Auth) ChangePassword(ctx context.Context, user *domain.User, current, newPassword domain.Password) error {
	if !verifyPassword(user.PassHash, current) {
		return &errors.ErrorWithStatusCode{
			Message:    "Current password is incorrect",
			StatusCode: http.StatusBadRequest,
			Code:       errors.CodeInvalidCredentials,
		}
	}

	if err := checkPasswordStrength(newPassword); err != nil {
		return err
	}

	passHash, err := hashPassword(newPassword)
	if err != nil {
		logger.Log.Error("failed to hash password", "error", err)
		return err
	}

	return a.storage.UpdatePassword(ctx, user.Id, passHash)
}

func (a *Auth) ListUsers(ctx context.Context) ([]domain.User, error) {
	return a.storage.Users(ctx)
}

// SetUserActive deactivates or reactivates an account. Deactivation takes
// effect on the next authenticated request, since the authenticator
// re-loads the user every time.
func (a *Auth) SetUserActive(ctx context.Context, userId domain.UserId, active bool) error {
	return a.storage.SetActive(ctx, userId, active)
}

// RevokeTokens bumps the user's token version, invalidating every token
// issued so far.
func (a *Auth) RevokeTokens(ctx context.Context, userId domain.UserId) error {
	return a.storage.BumpTokenVersion(ctx, userId)
}

// DeleteUser removes an account. The acting admin cannot delete their own.
func (a *Auth) DeleteUser(ctx context.Context, actor *domain.User, userId domain.UserId) error {
	if actor.Id == userId {
		return &errors.ErrorWithStatusCode{
			Message:    "Cannot delete your own account",
			StatusCode: http.StatusBadRequest,
			Code:       errors.CodeInvalidInput,
		}
	}
	return a.storage.DeleteUser(ctx, userId)
}

func isNotFound(err error) bool {
	e, ok := err.(*errors.ErrorWithStatusCode)
	return ok && e.StatusCode == http.StatusNotFound
}

func invalidCredentialsError() error {
	return &errors.ErrorWithStatusCode{
		Message:    "Invalid credentials",
		StatusCode: http.StatusUnauthorized,
		Code:       errors.CodeInvalidCredentials,
	}
}

func invalidRefreshTokenError() error {
	return &errors.ErrorWithStatusCode{
		Message:    "Invalid refresh token",
		StatusCode: http.StatusUnauthorized,
		Code:       errors.CodeInvalidRefreshToken,
	}
}

func hashPassword(password domain.Password) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// verifyPassword never errors on mismatch, it just reports false. bcrypt's
// comparison is constant-time against the stored hash.
func verifyPassword(passHash string, password domain.Password) bool {
	return bcrypt.CompareHashAndPassword([]byte(passHash), []byte(password)) == nil
}

// checkPasswordStrength enforces the minimum rule set: 8+ characters with
// upper, lower, digit and special.
func checkPasswordStrength(password domain.Password) error {
	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}
	if len(password) < 8 || !hasUpper || !hasLower || !hasDigit || !hasSpecial {
		return &errors.ErrorWithStatusCode{
			Message:    "Password must be at least 8 characters long and include uppercase, lowercase, numbers, and special characters",
			StatusCode: http.StatusBadRequest,
			Code:       errors.CodeWeakPassword,
		}
	}
	return nil
}
