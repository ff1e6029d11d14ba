package spending

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/billbatista/acasinha-spend/apperr"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Terminal reports whether no more votes are accepted.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

func (s Status) Valid() bool {
	return s == StatusPending || s.Terminal()
}

type Category string

const (
	CategoryProduct Category = "product"
	CategoryService Category = "service"
	CategoryOther   Category = "other"
)

type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

func (d Decision) Valid() bool {
	return d == DecisionApproved || d == DecisionRejected
}

var (
	ErrNotFound               = apperr.NotFound("spending not found")
	ErrInvalidAmount          = apperr.BadRequest("amount must be positive")
	ErrAmountPrecision        = apperr.BadRequest("amount must have at most 2 decimal places")
	ErrMissingProductName     = apperr.BadRequest("product name is required for product spending")
	ErrMissingPaidTo          = apperr.BadRequest("paid-to person and place are required for service spending")
	ErrFunderNotMember        = apperr.BadRequest("funded-by user is not a project member")
	ErrSubLedgerWithoutLedger = apperr.BadRequest("sub-ledger requires a ledger")
	ErrInvalidDecision        = apperr.BadRequest("decision must be approved or rejected")
	ErrInvalidStatus          = apperr.BadRequest("unknown spending status")
	ErrCapacityExceeded       = apperr.BadRequest("amount exceeds the project target")
	ErrObserver               = apperr.Forbidden("super admins observe spending and cannot propose or vote")
	ErrNotActiveInvestor      = apperr.Forbidden("only active investors can propose or vote on spending")
	ErrTerminal               = apperr.Conflict("spending is already finalized")
	ErrConcurrentUpdate       = apperr.Conflict("spending was modified concurrently, try again")
)

// CapacityError reports how much of the project target is still available.
type CapacityError struct {
	Remaining decimal.Decimal
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s: remaining amount is %s", ErrCapacityExceeded, e.Remaining.StringFixed(2))
}

func (e *CapacityError) Unwrap() error { return ErrCapacityExceeded }

// Vote is one entry of a spending's append-only decision log.
type Vote struct {
	VoterID   uuid.UUID `json:"voter_id"`
	Decision  Decision  `json:"decision"`
	VoterName string    `json:"voter_name"`
	CastAt    time.Time `json:"cast_at"`
}

type Spending struct {
	ID           uuid.UUID       `json:"id"`
	ProjectID    uuid.UUID       `json:"project_id"`
	Amount       decimal.Decimal `json:"amount"`
	Category     Category        `json:"category"`
	Description  string          `json:"description"`
	SpentAt      time.Time       `json:"spent_at"`
	AddedBy      uuid.UUID       `json:"added_by"`
	FundedBy     uuid.NullUUID   `json:"funded_by"`
	LedgerID     uuid.NullUUID   `json:"ledger_id"`
	LedgerName   string          `json:"-"`
	SubLedger    string          `json:"sub_ledger"`
	ProductName  string          `json:"product_name"`
	PaidToPerson string          `json:"paid_to_person"`
	PaidToPlace  string          `json:"paid_to_place"`
	Status       Status          `json:"status"`
	Votes        []Vote          `json:"votes"`
	Version      int64           `json:"version"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Funder is the member the spending is attributed to. Older rows have no
// funded-by and fall back to the proposer.
func (s Spending) Funder() uuid.UUID {
	if s.FundedBy.Valid {
		return s.FundedBy.UUID
	}
	return s.AddedBy
}

// Approvals is the latest decision per voter.
func (s Spending) Approvals() map[uuid.UUID]Vote {
	current := make(map[uuid.UUID]Vote, len(s.Votes))
	for _, v := range s.Votes {
		current[v.VoterID] = v
	}
	return current
}

func (s Spending) HasVoted(voter uuid.UUID) bool {
	_, ok := s.Approvals()[voter]
	return ok
}

// ApprovedBy lists the eligible voters whose current decision is an approval,
// in eligible order. Votes from users who are no longer eligible don't count.
func (s Spending) ApprovedBy(eligible []uuid.UUID) []uuid.UUID {
	current := s.Approvals()
	approved := make([]uuid.UUID, 0, len(eligible))
	for _, id := range eligible {
		if v, ok := current[id]; ok && v.Decision == DecisionApproved {
			approved = append(approved, id)
		}
	}
	return approved
}

func hasQuorum(approved, eligible int) bool {
	return eligible > 0 && approved >= eligible
}

// Cast appends v to the log and applies the transition it triggers. It
// reports whether the spending reached a terminal status.
func (s *Spending) Cast(v Vote, eligible []uuid.UUID) (bool, error) {
	if s.Status.Terminal() {
		return false, ErrTerminal
	}
	if !v.Decision.Valid() {
		return false, ErrInvalidDecision
	}

	s.Votes = append(s.Votes, v)

	if v.Decision == DecisionRejected {
		s.Status = StatusRejected
		return true, nil
	}
	return s.Reconcile(eligible), nil
}

// Reconcile approves a pending spending whose approvals already cover the
// given eligible set.
func (s *Spending) Reconcile(eligible []uuid.UUID) bool {
	if s.Status != StatusPending {
		return false
	}
	if !hasQuorum(len(s.ApprovedBy(eligible)), len(eligible)) {
		return false
	}
	s.Status = StatusApproved
	return true
}

// Draft is a spending proposal as submitted by a member.
type Draft struct {
	ProjectID    uuid.UUID       `json:"project_id"`
	Amount       decimal.Decimal `json:"amount"`
	Category     Category        `json:"category"`
	Description  string          `json:"description"`
	SpentAt      time.Time       `json:"spent_at"`
	FundedBy     uuid.NullUUID   `json:"funded_by"`
	LedgerID     uuid.NullUUID   `json:"ledger_id"`
	SubLedger    string          `json:"sub_ledger"`
	ProductName  string          `json:"product_name"`
	PaidToPerson string          `json:"paid_to_person"`
	PaidToPlace  string          `json:"paid_to_place"`
}

func (d *Draft) trim() {
	d.Description = strings.TrimSpace(d.Description)
	d.SubLedger = strings.TrimSpace(d.SubLedger)
	d.ProductName = strings.TrimSpace(d.ProductName)
	d.PaidToPerson = strings.TrimSpace(d.PaidToPerson)
	d.PaidToPlace = strings.TrimSpace(d.PaidToPlace)
	if d.Category == "" {
		d.Category = CategoryOther
	}
}

func (d Draft) Validate() error {
	if !d.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	// amounts are stored as NUMERIC(14, 2)
	if !d.Amount.Equal(d.Amount.Round(2)) {
		return ErrAmountPrecision
	}

	switch d.Category {
	case CategoryProduct:
		if d.ProductName == "" {
			return ErrMissingProductName
		}
	case CategoryService:
		if d.PaidToPerson == "" || d.PaidToPlace == "" {
			return ErrMissingPaidTo
		}
	}

	if d.SubLedger != "" && !d.LedgerID.Valid {
		return ErrSubLedgerWithoutLedger
	}
	return nil
}

type Repository interface {
	Create(ctx context.Context, s Spending) error
	GetByID(ctx context.Context, id uuid.UUID) (*Spending, error)
	// AppendVote stores v and the resulting status when the spending is still
	// at expectedVersion, otherwise it returns ErrConcurrentUpdate.
	AppendVote(ctx context.Context, id uuid.UUID, v Vote, status Status, expectedVersion int64) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, expectedVersion int64) error
	Find(ctx context.Context, f Filter) ([]Spending, error)
	Count(ctx context.Context, f Filter) (int, error)
	SumAmount(ctx context.Context, projectID uuid.UUID) (decimal.Decimal, error)
	TotalsByProject(ctx context.Context, projectIDs []uuid.UUID) ([]Totals, error)
}

// Filter selects spendings. Find returns nothing when ProjectIDs is empty.
type Filter struct {
	ProjectIDs []uuid.UUID
	Statuses   []Status
	// AttributedTo matches the funder, or the proposer when funded-by is unset.
	AttributedTo uuid.NullUUID
	LedgerID     uuid.NullUUID
	SubLedger    string
	From         time.Time // inclusive, zero means unbounded
	To           time.Time // exclusive, zero means unbounded
	Text         string
	Limit        int
	Offset       int
}

// Totals is one row of the per project, per status aggregation.
type Totals struct {
	ProjectID uuid.UUID
	Status    Status
	Amount    decimal.Decimal
	Count     int
}

// Match applies f to a single spending. Repositories that filter in memory
// use it; SQL repositories translate the same rules.
func (f Filter) Match(s Spending) bool {
	if !slices.Contains(f.ProjectIDs, s.ProjectID) {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, s.Status) {
		return false
	}
	if f.AttributedTo.Valid && s.Funder() != f.AttributedTo.UUID {
		return false
	}
	if f.LedgerID.Valid && (!s.LedgerID.Valid || s.LedgerID.UUID != f.LedgerID.UUID) {
		return false
	}
	if f.SubLedger != "" && s.SubLedger != f.SubLedger {
		return false
	}
	if !f.From.IsZero() && s.SpentAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !s.SpentAt.Before(f.To) {
		return false
	}
	if f.Text != "" && !matchesText(s, f.Text) {
		return false
	}
	return true
}

func matchesText(s Spending, text string) bool {
	needle := strings.ToLower(strings.TrimSpace(text))
	fields := []string{
		s.Description,
		string(s.Category),
		s.SubLedger,
		s.SpentAt.UTC().Format(time.DateOnly),
		s.Amount.String(),
	}
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}
