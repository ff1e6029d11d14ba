package project

import (
	"context"
	"fmt"

	"github.com/billbatista/acasinha-spend/apperr"
	"github.com/billbatista/acasinha-spend/user"
	"github.com/google/uuid"
)

var (
	ErrProjectNotFound = apperr.NotFound("project not found")
	ErrNoAccess        = apperr.Forbidden("you are not a member of this project")
	ErrLedgerWrite     = apperr.Forbidden("only the creator or active investors can manage ledgers")
)

type Resolver struct {
	projects Repository
	users    Directory
}

func NewResolver(projects Repository, users Directory) *Resolver {
	return &Resolver{projects: projects, users: users}
}

func (r *Resolver) Roster(ctx context.Context, projectID uuid.UUID) (*Roster, error) {
	p, err := r.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("loading project: %w", err)
	}
	if p == nil {
		return nil, ErrProjectNotFound
	}
	return r.rosterFor(ctx, *p)
}

func (r *Resolver) rosterFor(ctx context.Context, p Project) (*Roster, error) {
	users, err := r.users.GetByIDs(ctx, p.MemberIDs())
	if err != nil {
		return nil, fmt.Errorf("loading members: %w", err)
	}

	observers, err := r.users.ListIDsByRole(ctx, user.RoleSuperAdmin)
	if err != nil {
		return nil, fmt.Errorf("loading observers: %w", err)
	}

	observerUsers, err := r.users.GetByIDs(ctx, observers)
	if err != nil {
		return nil, fmt.Errorf("loading observers: %w", err)
	}

	return NewRoster(p, append(users, observerUsers...), observers), nil
}

// Authorize returns the roster when actor may read the project.
func (r *Resolver) Authorize(ctx context.Context, projectID uuid.UUID, actor user.User) (*Roster, error) {
	roster, err := r.Roster(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !roster.CanAccess(actor) {
		return nil, ErrNoAccess
	}
	return roster, nil
}

func (r *Resolver) AuthorizeLedgerWrite(ctx context.Context, projectID uuid.UUID, actor user.User) (*Roster, error) {
	roster, err := r.Authorize(ctx, projectID, actor)
	if err != nil {
		return nil, err
	}
	if !roster.CanWriteLedgers(actor) {
		return nil, ErrLedgerWrite
	}
	return roster, nil
}

// Accessible lists the projects actor can read.
func (r *Resolver) Accessible(ctx context.Context, actor user.User) ([]Project, error) {
	if actor.IsPrivileged() {
		return r.projects.ListAll(ctx)
	}
	return r.projects.ListForMember(ctx, actor.ID)
}

// AccessibleRosters loads a roster per accessible project.
func (r *Resolver) AccessibleRosters(ctx context.Context, actor user.User) ([]*Roster, error) {
	projects, err := r.Accessible(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}

	rosters := make([]*Roster, 0, len(projects))
	for _, p := range projects {
		roster, err := r.rosterFor(ctx, p)
		if err != nil {
			return nil, err
		}
		rosters = append(rosters, roster)
	}
	return rosters, nil
}
