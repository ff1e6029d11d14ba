package spending

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, s Spending) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `INSERT INTO spendings (id, project_id, amount, category, description, spent_at, added_by, funded_by,
                  ledger_id, ledger_name, sub_ledger, product_name, paid_to_person, paid_to_place, status, version,
                  created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	_, err = tx.ExecContext(
		ctx,
		query,
		s.ID,
		s.ProjectID,
		s.Amount,
		s.Category,
		s.Description,
		s.SpentAt,
		s.AddedBy,
		s.FundedBy,
		s.LedgerID,
		s.LedgerName,
		s.SubLedger,
		s.ProductName,
		s.PaidToPerson,
		s.PaidToPlace,
		s.Status,
		s.Version,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return err
	}

	for _, v := range s.Votes {
		if err := insertVote(ctx, tx, s.ID, v); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func insertVote(ctx context.Context, tx *sql.Tx, spendingID uuid.UUID, v Vote) error {
	query := `INSERT INTO spending_votes (spending_id, voter_id, decision, voter_name, cast_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := tx.ExecContext(ctx, query, spendingID, v.VoterID, v.Decision, v.VoterName, v.CastAt)
	return err
}

func (r *repository) AppendVote(ctx context.Context, id uuid.UUID, v Vote, status Status, expectedVersion int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := bumpVersion(ctx, tx, id, status, expectedVersion); err != nil {
		return err
	}
	if err := insertVote(ctx, tx, id, v); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, expectedVersion int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := bumpVersion(ctx, tx, id, status, expectedVersion); err != nil {
		return err
	}

	return tx.Commit()
}

func bumpVersion(ctx context.Context, tx *sql.Tx, id uuid.UUID, status Status, expectedVersion int64) error {
	query := `UPDATE spendings SET status = $1, version = version + 1, updated_at = $2 WHERE id = $3 AND version = $4`
	result, err := tx.ExecContext(ctx, query, status, time.Now().UTC(), id, expectedVersion)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConcurrentUpdate
	}
	return nil
}

const selectSpending = `SELECT id, project_id, amount, category, description, spent_at, added_by, funded_by, ledger_id,
              COALESCE(ledger_name, ''), COALESCE(sub_ledger, ''), COALESCE(product_name, ''),
              COALESCE(paid_to_person, ''), COALESCE(paid_to_place, ''), status, version, created_at, updated_at
              FROM spendings`

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Spending, error) {
	list, err := r.query(ctx, selectSpending+` WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

func (r *repository) Find(ctx context.Context, f Filter) ([]Spending, error) {
	if len(f.ProjectIDs) == 0 {
		return []Spending{}, nil
	}

	where, args := f.sql()
	query := selectSpending + where + ` ORDER BY spent_at DESC, created_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	}
	return r.query(ctx, query, args...)
}

func (r *repository) Count(ctx context.Context, f Filter) (int, error) {
	if len(f.ProjectIDs) == 0 {
		return 0, nil
	}

	where, args := f.sql()
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM spendings`+where, args...).Scan(&count)
	return count, err
}

func (r *repository) SumAmount(ctx context.Context, projectID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount), 0) FROM spendings WHERE project_id = $1`, projectID).Scan(&sum)
	return sum, err
}

func (r *repository) TotalsByProject(ctx context.Context, projectIDs []uuid.UUID) ([]Totals, error) {
	if len(projectIDs) == 0 {
		return nil, nil
	}

	query := `SELECT project_id, status, COALESCE(SUM(amount), 0), COUNT(*)
              FROM spendings
              WHERE project_id = ANY($1::uuid[])
              GROUP BY project_id, status`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(idStrings(projectIDs)))
	if err != nil {
		return nil, fmt.Errorf("aggregating spendings: %w", err)
	}
	defer rows.Close()

	var totals []Totals
	for rows.Next() {
		var t Totals
		if err := rows.Scan(&t.ProjectID, &t.Status, &t.Amount, &t.Count); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// sql renders f as a WHERE clause with positional arguments.
func (f Filter) sql() (string, []any) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conds = append(conds, "project_id = ANY("+arg(pq.Array(idStrings(f.ProjectIDs)))+"::uuid[])")
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		conds = append(conds, "status = ANY("+arg(pq.Array(statuses))+")")
	}
	if f.AttributedTo.Valid {
		conds = append(conds, "COALESCE(funded_by, added_by) = "+arg(f.AttributedTo.UUID))
	}
	if f.LedgerID.Valid {
		conds = append(conds, "ledger_id = "+arg(f.LedgerID.UUID))
	}
	if f.SubLedger != "" {
		conds = append(conds, "sub_ledger = "+arg(f.SubLedger))
	}
	if !f.From.IsZero() {
		conds = append(conds, "spent_at >= "+arg(f.From))
	}
	if !f.To.IsZero() {
		conds = append(conds, "spent_at < "+arg(f.To))
	}
	if text := strings.TrimSpace(f.Text); text != "" {
		p := arg(strings.ToLower(text))
		conds = append(conds, fmt.Sprintf(`(strpos(lower(description), %[1]s) > 0 OR strpos(lower(category), %[1]s) > 0
              OR strpos(lower(sub_ledger), %[1]s) > 0 OR strpos(to_char(spent_at AT TIME ZONE 'UTC', 'YYYY-MM-DD'), %[1]s) > 0
              OR strpos(amount::text, %[1]s) > 0)`, p))
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *repository) query(ctx context.Context, query string, args ...any) ([]Spending, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying spendings: %w", err)
	}
	defer rows.Close()

	list := make([]Spending, 0)
	for rows.Next() {
		var s Spending
		err := rows.Scan(
			&s.ID,
			&s.ProjectID,
			&s.Amount,
			&s.Category,
			&s.Description,
			&s.SpentAt,
			&s.AddedBy,
			&s.FundedBy,
			&s.LedgerID,
			&s.LedgerName,
			&s.SubLedger,
			&s.ProductName,
			&s.PaidToPerson,
			&s.PaidToPlace,
			&s.Status,
			&s.Version,
			&s.CreatedAt,
			&s.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachVotes(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *repository) attachVotes(ctx context.Context, list []Spending) error {
	if len(list) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(list))
	index := make(map[uuid.UUID]int, len(list))
	for i, s := range list {
		ids[i] = s.ID
		index[s.ID] = i
	}

	query := `SELECT spending_id, voter_id, decision, COALESCE(voter_name, ''), cast_at
              FROM spending_votes
              WHERE spending_id = ANY($1::uuid[])
              ORDER BY seq`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(idStrings(ids)))
	if err != nil {
		return fmt.Errorf("querying votes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var spendingID uuid.UUID
		var v Vote
		if err := rows.Scan(&spendingID, &v.VoterID, &v.Decision, &v.VoterName, &v.CastAt); err != nil {
			return err
		}
		i := index[spendingID]
		list[i].Votes = append(list[i].Votes, v)
	}

	return rows.Err()
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
