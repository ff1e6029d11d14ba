package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/billbatista/acasinha-spend/project"
	"github.com/billbatista/acasinha-spend/user"
	"github.com/google/uuid"
)

type Access interface {
	Authorize(ctx context.Context, projectID uuid.UUID, actor user.User) (*project.Roster, error)
	AuthorizeLedgerWrite(ctx context.Context, projectID uuid.UUID, actor user.User) (*project.Roster, error)
	Accessible(ctx context.Context, actor user.User) ([]project.Project, error)
}

type Input struct {
	ProjectID  uuid.UUID `json:"project_id"`
	Name       string    `json:"name"`
	SubLedgers []string  `json:"sub_ledgers"`
}

type Service struct {
	repo   Repository
	access Access
}

func NewService(repo Repository, access Access) *Service {
	return &Service{repo: repo, access: access}
}

func (s *Service) Create(ctx context.Context, actor user.User, in Input) (*Ledger, error) {
	if _, err := s.access.AuthorizeLedgerWrite(ctx, in.ProjectID, actor); err != nil {
		return nil, err
	}

	l, err := NewLedger(in.ProjectID, in.Name, in.SubLedgers, actor.ID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, l); err != nil {
		return nil, fmt.Errorf("creating ledger: %w", err)
	}

	slog.InfoContext(ctx, "ledger created", "ledger_id", l.ID, "project_id", l.ProjectID, "sub_ledgers", len(l.SubLedgers))
	return &l, nil
}

// Update renames the ledger and replaces its catalog. Existing spendings keep
// whatever sub-ledger they were filed under.
func (s *Service) Update(ctx context.Context, actor user.User, id uuid.UUID, in Input) (*Ledger, error) {
	l, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if _, err := s.access.AuthorizeLedgerWrite(ctx, l.ProjectID, actor); err != nil {
		return nil, err
	}

	updated, err := NewLedger(l.ProjectID, in.Name, in.SubLedgers, l.CreatedBy)
	if err != nil {
		return nil, err
	}
	updated.ID = l.ID
	updated.CreatedAt = l.CreatedAt
	updated.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, fmt.Errorf("updating ledger: %w", err)
	}
	return &updated, nil
}

// Delete does not cascade: spendings keep their ledger name snapshot.
func (s *Service) Delete(ctx context.Context, actor user.User, id uuid.UUID) error {
	l, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	if _, err := s.access.AuthorizeLedgerWrite(ctx, l.ProjectID, actor); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting ledger: %w", err)
	}

	slog.InfoContext(ctx, "ledger deleted", "ledger_id", id, "project_id", l.ProjectID)
	return nil
}

func (s *Service) Get(ctx context.Context, actor user.User, id uuid.UUID) (*Ledger, error) {
	l, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if _, err := s.access.Authorize(ctx, l.ProjectID, actor); err != nil {
		return nil, err
	}
	return l, nil
}

// List returns the ledgers of projectID, or when it is nil every ledger the
// actor can see.
func (s *Service) List(ctx context.Context, actor user.User, projectID *uuid.UUID) ([]Ledger, error) {
	if projectID != nil {
		if _, err := s.access.Authorize(ctx, *projectID, actor); err != nil {
			return nil, err
		}
		return s.repo.ListByProjects(ctx, []uuid.UUID{*projectID})
	}

	if actor.IsPrivileged() {
		return s.repo.ListAll(ctx)
	}

	projects, err := s.access.Accessible(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	if len(projects) == 0 {
		return []Ledger{}, nil
	}

	ids := make([]uuid.UUID, len(projects))
	for i, p := range projects {
		ids[i] = p.ID
	}
	return s.repo.ListByProjects(ctx, ids)
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*Ledger, error) {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading ledger: %w", err)
	}
	if l == nil {
		return nil, ErrNotFound
	}
	return l, nil
}
