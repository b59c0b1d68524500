package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lib/pq"

	"github.com/teofly/gallery-api/internal/domain"
	internal_errors "github.com/teofly/gallery-api/internal/errors"
)

const userColumns = "id, email, password_hash, name, role, is_active, last_login, token_version, created_at, updated_at"

// pq error class 23505 = unique_violation; the only unique constraint on
// users is the email index.
const uniqueViolation = "23505"

// =========================================================================
// Public methods (satisfy service.UserStorage and middleware.UserStore)
// =========================================================================

// SaveUser inserts a new user record. Emails are persisted as given; the
// service layer lowercases them, which together with the unique index
// makes duplicates case-insensitive.
func (s *Storage) SaveUser(ctx context.Context, user domain.User) (domain.User, error) {
	var saved domain.User
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		saved, err = s.saveUser(tx, user)
		return err
	})
	return saved, err
}

// UserByEmail fetches a user by email, read-only on the pool.
func (s *Storage) UserByEmail(ctx context.Context, email domain.Email) (domain.User, error) {
	return s.scanUser(s.db.QueryRow("SELECT "+userColumns+" FROM users WHERE email = $1", email))
}

func (s *Storage) UserById(ctx context.Context, id domain.UserId) (domain.User, error) {
	return s.scanUser(s.db.QueryRow("SELECT "+userColumns+" FROM users WHERE id = $1", id))
}

// Users returns all user records, newest first.
func (s *Storage) Users(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.Query("SELECT " + userColumns + " FROM users ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// HasAdmin reports whether any admin account exists. Consulted by the
// bootstrap flow only.
func (s *Storage) HasAdmin(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.QueryRow("SELECT EXISTS(SELECT 1 FROM users WHERE role = $1)", domain.RoleAdmin).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check for admin: %w", err)
	}
	return exists, nil
}

// UpdateProfile changes name and/or email. The password hash is untouched.
func (s *Storage) UpdateProfile(ctx context.Context, id domain.UserId, name string, email domain.Email) (domain.User, error) {
	var updated domain.User
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRow(
			"UPDATE users SET name = $2, email = $3, updated_at = now() WHERE id = $1 RETURNING "+userColumns,
			id, name, email)
		var err error
		updated, err = s.scanUser(row)
		return err
	})
	if isUniqueViolation(err) {
		return domain.User{}, duplicateEmailError()
	}
	return updated, err
}

// UpdatePassword replaces the stored hash. Callers pass a derived hash,
// never a plaintext.
func (s *Storage) UpdatePassword(ctx context.Context, id domain.UserId, passHash string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return execForUser(tx, "UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1", id, passHash)
	})
}

// UpdateLastLogin stamps a successful login.
func (s *Storage) UpdateLastLogin(ctx context.Context, id domain.UserId, at time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return execForUser(tx, "UPDATE users SET last_login = $2, updated_at = now() WHERE id = $1", id, at)
	})
}

// SetActive flips the account's active flag.
func (s *Storage) SetActive(ctx context.Context, id domain.UserId, active bool) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return execForUser(tx, "UPDATE users SET is_active = $2, updated_at = now() WHERE id = $1", id, active)
	})
}

// BumpTokenVersion invalidates every token issued for the user so far.
func (s *Storage) BumpTokenVersion(ctx context.Context, id domain.UserId) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return execForUser(tx, "UPDATE users SET token_version = token_version + 1, updated_at = now() WHERE id = $1", id)
	})
}

func (s *Storage) DeleteUser(ctx context.Context, id domain.UserId) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return execForUser(tx, "DELETE FROM users WHERE id = $1", id)
	})
}

// =========================================================================
// Internal methods
// =========================================================================

func (s *Storage) saveUser(q Querier, user domain.User) (domain.User, error) {
	row := q.QueryRow(
		`INSERT INTO users(id, email, password_hash, name, role, is_active)
		 VALUES($1, $2, $3, $4, $5, $6)
		 RETURNING `+userColumns,
		user.Id, user.Email, user.PassHash, user.Name, user.Role, user.IsActive)

	saved, err := s.scanUser(row)
	if isUniqueViolation(err) {
		return domain.User{}, duplicateEmailError()
	}
	if err != nil {
		return domain.User{}, err
	}
	return saved, nil
}

func (s *Storage) scanUser(row *sql.Row) (domain.User, error) {
	var user domain.User
	var lastLogin sql.NullTime
	err := row.Scan(&user.Id, &user.Email, &user.PassHash, &user.Name, &user.Role,
		&user.IsActive, &lastLogin, &user.TokenVersion, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, userNotFoundError()
		}
		if isUniqueViolation(err) {
			return domain.User{}, err
		}
		return domain.User{}, fmt.Errorf("failed to scan user: %w", err)
	}
	user.LastLogin = lastLogin.Time
	return user, nil
}

func scanUserRow(rows *sql.Rows) (domain.User, error) {
	var user domain.User
	var lastLogin sql.NullTime
	err := rows.Scan(&user.Id, &user.Email, &user.PassHash, &user.Name, &user.Role,
		&user.IsActive, &lastLogin, &user.TokenVersion, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to scan user: %w", err)
	}
	user.LastLogin = lastLogin.Time
	return user, nil
}

func execForUser(q Querier, query string, id domain.UserId, args ...interface{}) error {
	res, err := q.Exec(query, append([]interface{}{id}, args...)...)
	if err != nil {
		if isUniqueViolation(err) {
			return duplicateEmailError()
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return userNotFoundError()
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func duplicateEmailError() error {
	return &internal_errors.ErrorWithStatusCode{
		Message:    "User with this email already exists",
		StatusCode: http.StatusBadRequest,
		Code:       internal_errors.CodeEmailExists,
	}
}

func userNotFoundError() error {
	return &internal_errors.ErrorWithStatusCode{
		Message:    "User not found",
		StatusCode: http.StatusNotFound,
		Code:       internal_errors.CodeUserNotFound,
	}
}
