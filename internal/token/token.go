package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/teofly/gallery-api/internal/domain"
)

// Purpose tags what a token may be used for. It is checked explicitly on
// every verification, never inferred from which secret happened to verify.
type Purpose string

const (
	PurposeAccess  Purpose = "access"
	PurposeRefresh Purpose = "refresh"
)

var (
	ErrMissing      = errors.New("no token presented")
	ErrMalformed    = errors.New("token malformed or bad signature")
	ErrExpired      = errors.New("token expired")
	ErrWrongPurpose = errors.New("wrong token purpose")
)

type Claims struct {
	Purpose      Purpose `json:"purpose"`
	TokenVersion int64   `json:"token_version"`
	jwt.RegisteredClaims
}

// UserId parses the subject claim back into a user id.
func (c *Claims) UserId() (domain.UserId, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, ErrMalformed
	}
	return id, nil
}

// Pair is the access/refresh token pair minted together at login and on
// every refresh (rotation).
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Service signs and verifies the two token kinds with distinct secrets.
type Service struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// New fails when either secret is absent. Callers construct the service at
// startup, so a missing secret aborts the process before any request is
// served.
func New(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*Service, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, fmt.Errorf("token signing secrets are not configured")
	}
	return &Service{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}, nil
}

// Issue mints a fresh access/refresh pair for the user. The user's current
// token version is embedded so bumping it on the record invalidates every
// previously issued token.
func (s *Service) Issue(user *domain.User) (Pair, error) {
	access, err := s.sign(user, PurposeAccess, s.accessSecret, s.accessTTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := s.sign(user, PurposeRefresh, s.refreshSecret, s.refreshTTL)
	if err != nil {
		return Pair{}, err
	}
	return Pair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) sign(user *domain.User, purpose Purpose, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Purpose:      purpose,
		TokenVersion: user.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			// A fresh jti per token makes every rotation produce new
			// strings even within the same second.
			ID:        uuid.NewString(),
			Subject:   user.Id.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", purpose, err)
	}
	return signed, nil
}

// VerifyAccess validates an access token and returns its claims.
func (s *Service) VerifyAccess(tokenStr string) (*Claims, error) {
	return s.verify(tokenStr, PurposeAccess, s.accessSecret)
}

// VerifyRefresh validates a refresh token and returns its claims.
func (s *Service) VerifyRefresh(tokenStr string) (*Claims, error) {
	return s.verify(tokenStr, PurposeRefresh, s.refreshSecret)
}

func (s *Service) verify(tokenStr string, purpose Purpose, secret []byte) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrMissing
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrMalformed
	}
	if !token.Valid {
		return nil, ErrMalformed
	}

	if claims.Purpose != purpose {
		return nil, ErrWrongPurpose
	}

	return claims, nil
}
