package project

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *repository {
	return &repository{db: db}
}

const selectProject = `SELECT id, name, target_amount, status, created_by, created_at FROM projects`

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Project, error) {
	projects, err := r.query(ctx, selectProject+` WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, nil
	}
	return &projects[0], nil
}

func (r *repository) ListAll(ctx context.Context) ([]Project, error) {
	return r.query(ctx, selectProject+` ORDER BY created_at`)
}

func (r *repository) ListForMember(ctx context.Context, userID uuid.UUID) ([]Project, error) {
	query := selectProject + `
              WHERE created_by = $1
                 OR id IN (SELECT project_id FROM project_members WHERE user_id = $1)
              ORDER BY created_at`
	return r.query(ctx, query, userID)
}

func (r *repository) query(ctx context.Context, query string, args ...any) ([]Project, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		err := rows.Scan(&p.ID, &p.Name, &p.TargetAmount, &p.Status, &p.CreatedBy, &p.CreatedAt)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachMembers(ctx, projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (r *repository) attachMembers(ctx context.Context, projects []Project) error {
	if len(projects) == 0 {
		return nil
	}

	ids := make([]string, len(projects))
	index := make(map[uuid.UUID]int, len(projects))
	for i, p := range projects {
		ids[i] = p.ID.String()
		index[p.ID] = i
	}

	query := `SELECT project_id, user_id, role FROM project_members
              WHERE project_id = ANY($1::uuid[])
              ORDER BY project_id, position`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("querying project members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var projectID uuid.UUID
		var m Member
		if err := rows.Scan(&projectID, &m.UserID, &m.Role); err != nil {
			return err
		}
		i := index[projectID]
		projects[i].Members = append(projects[i].Members, m)
	}

	return rows.Err()
}
