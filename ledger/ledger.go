package ledger

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/billbatista/acasinha-spend/apperr"
	"github.com/google/uuid"
)

type Ledger struct {
	ID         uuid.UUID `json:"id,omitempty"`
	ProjectID  uuid.UUID `json:"project_id,omitempty"`
	Name       string    `json:"name,omitempty"`
	SubLedgers []string  `json:"sub_ledgers"`
	CreatedBy  uuid.UUID `json:"created_by,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

var (
	ErrEmptyName       = apperr.BadRequest("name can't be empty")
	ErrNotFound        = apperr.NotFound("ledger not found")
	ErrNotInCatalog    = apperr.BadRequest("sub-ledger is not in the ledger catalog")
	ErrProjectMismatch = apperr.BadRequest("ledger belongs to another project")
)

type Repository interface {
	Create(ctx context.Context, l Ledger) error
	Update(ctx context.Context, l Ledger) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*Ledger, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]Ledger, error)
	ListByProjects(ctx context.Context, projectIDs []uuid.UUID) ([]Ledger, error)
	ListAll(ctx context.Context) ([]Ledger, error)
}

func NewLedger(projectID uuid.UUID, name string, subLedgers []string, createdBy uuid.UUID) (Ledger, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Ledger{}, ErrEmptyName
	}

	now := time.Now().UTC()

	return Ledger{
		ID:         uuid.New(),
		ProjectID:  projectID,
		Name:       name,
		SubLedgers: NormalizeCatalog(subLedgers),
		CreatedBy:  createdBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// NormalizeCatalog trims entries and drops blanks and duplicates, keeping
// first-seen order.
func NormalizeCatalog(entries []string) []string {
	catalog := make([]string, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" || slices.Contains(catalog, e) {
			continue
		}
		catalog = append(catalog, e)
	}
	return catalog
}

// Accepts reports whether sub may be filed under l. An empty catalog accepts
// any value.
func (l Ledger) Accepts(sub string) bool {
	if len(l.SubLedgers) == 0 {
		return true
	}
	return slices.Contains(l.SubLedgers, sub)
}

func (l Ledger) ValidateSubLedger(sub string) error {
	if sub == "" || l.Accepts(sub) {
		return nil
	}
	return ErrNotInCatalog
}
