package domain

import (
	"time"

	"github.com/google/uuid"
)

type (
	Email    = string
	Password = string
	UserId   = uuid.UUID
)

// Role is a closed enumeration. Authorization checks are set-membership
// tests against a per-route list, so adding roles later only touches the
// route wiring.
type Role string

const RoleAdmin Role = "admin"

func (r Role) Valid() bool {
	return r == RoleAdmin
}

// User is the persisted identity record. PassHash must never leave the
// process serialized; use Public() for any outward representation.
type User struct {
	Id           UserId
	Email        Email
	PassHash     string
	Name         string
	Role         Role
	IsActive     bool
	LastLogin    time.Time
	TokenVersion int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the external representation of a user. It has no password
// hash field at all, so it cannot be serialized out by accident.
type PublicUser struct {
	Id        UserId    `json:"id"`
	Email     Email     `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"isActive"`
	LastLogin time.Time `json:"lastLogin"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		Id:        u.Id,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		IsActive:  u.IsActive,
		LastLogin: u.LastLogin,
		CreatedAt: u.CreatedAt,
	}
}

type Credentials struct {
	Email    Email
	Password Password
}
