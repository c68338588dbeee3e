package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

type User struct {
	ID                    uuid.UUID
	Name                  string
	Email                 string
	Role                  string
	IsVerified            bool
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time

	// PasswordHash is the bcrypt hash; it never leaves the service layer.
	PasswordHash []byte
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
