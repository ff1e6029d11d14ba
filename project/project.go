package project

import (
	"context"
	"time"

	"github.com/billbatista/acasinha-spend/user"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type MemberRole string

const (
	RoleActive  MemberRole = "active"
	RolePassive MemberRole = "passive"
)

type Member struct {
	UserID uuid.UUID  `json:"user_id"`
	Role   MemberRole `json:"role"`
}

type Project struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	TargetAmount decimal.Decimal `json:"target_amount"`
	Status       string          `json:"status"`
	CreatedBy    uuid.UUID       `json:"created_by"`
	Members      []Member        `json:"members"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Repository is read-only: membership is managed by the project owners'
// own tooling.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Project, error)
	ListAll(ctx context.Context) ([]Project, error)
	ListForMember(ctx context.Context, userID uuid.UUID) ([]Project, error)
}

// Directory resolves the users behind member references.
type Directory interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]user.User, error)
	ListIDsByRole(ctx context.Context, role user.Role) ([]uuid.UUID, error)
}

// MemberIDs returns the creator followed by members in roster order, deduplicated.
func (p Project) MemberIDs() []uuid.UUID {
	seen := map[uuid.UUID]bool{p.CreatedBy: true}
	ids := []uuid.UUID{p.CreatedBy}
	for _, m := range p.Members {
		if seen[m.UserID] {
			continue
		}
		seen[m.UserID] = true
		ids = append(ids, m.UserID)
	}
	return ids
}
