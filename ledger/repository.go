package ledger

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

func (r *repository) Create(ctx context.Context, l Ledger) error {
	query := `INSERT INTO ledgers (id, project_id, name, sub_ledgers, created_by, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		l.ID,
		l.ProjectID,
		l.Name,
		pq.Array(l.SubLedgers),
		l.CreatedBy,
		l.CreatedAt,
		l.UpdatedAt,
	)
	return err
}

func (r *repository) Update(ctx context.Context, l Ledger) error {
	query := `UPDATE ledgers SET name = $1, sub_ledgers = $2, updated_at = $3 WHERE id = $4`
	_, err := r.db.ExecContext(ctx, query, l.Name, pq.Array(l.SubLedgers), l.UpdatedAt, l.ID)
	return err
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM ledgers WHERE id = $1`, id)
	return err
}

const selectLedger = `SELECT id, project_id, name, sub_ledgers, created_by, created_at, updated_at FROM ledgers`

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Ledger, error) {
	ledgers, err := r.query(ctx, selectLedger+` WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(ledgers) == 0 {
		return nil, nil
	}
	return &ledgers[0], nil
}

func (r *repository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]Ledger, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.query(ctx, selectLedger+` WHERE id = ANY($1::uuid[])`, pq.Array(idStrings(ids)))
}

func (r *repository) ListByProjects(ctx context.Context, projectIDs []uuid.UUID) ([]Ledger, error) {
	return r.query(ctx, selectLedger+` WHERE project_id = ANY($1::uuid[]) ORDER BY name`, pq.Array(idStrings(projectIDs)))
}

func (r *repository) ListAll(ctx context.Context) ([]Ledger, error) {
	return r.query(ctx, selectLedger+` ORDER BY name`)
}

func (r *repository) query(ctx context.Context, query string, args ...any) ([]Ledger, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying ledgers: %w", err)
	}
	defer rows.Close()

	ledgers := make([]Ledger, 0)
	for rows.Next() {
		var l Ledger
		err := rows.Scan(
			&l.ID,
			&l.ProjectID,
			&l.Name,
			pq.Array(&l.SubLedgers),
			&l.CreatedBy,
			&l.CreatedAt,
			&l.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		if l.SubLedgers == nil {
			l.SubLedgers = []string{}
		}
		ledgers = append(ledgers, l)
	}

	return ledgers, rows.Err()
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
