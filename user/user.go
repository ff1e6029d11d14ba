package user

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleInvestor   Role = "investor"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsSuperAdmin reports whether u only observes projects. Super admins never
// vote or propose spending.
func (u User) IsSuperAdmin() bool {
	return u.Role == RoleSuperAdmin
}

// IsPrivileged reports whether u can see every project regardless of membership.
func (u User) IsPrivileged() bool {
	return u.Role == RoleSuperAdmin || u.Role == RoleAdmin
}

// DisplayName falls back to the email when no name was set.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

type Repository interface {
	Register(ctx context.Context, name, email, password string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]User, error)
	ListIDsByRole(ctx context.Context, role Role) ([]uuid.UUID, error)
	VerifyPassword(hashedPassword, password string) error
	UpdateName(ctx context.Context, userID uuid.UUID, name string) error
}
