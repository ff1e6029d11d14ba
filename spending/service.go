package spending

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/billbatista/acasinha-spend/ledger"
	"github.com/billbatista/acasinha-spend/notify"
	"github.com/billbatista/acasinha-spend/project"
	"github.com/billbatista/acasinha-spend/user"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	maxVoteAttempts = 3
	defaultPageSize = 20
	maxPageSize     = 100
)

type Rosters interface {
	Roster(ctx context.Context, projectID uuid.UUID) (*project.Roster, error)
	Authorize(ctx context.Context, projectID uuid.UUID, actor user.User) (*project.Roster, error)
	AccessibleRosters(ctx context.Context, actor user.User) ([]*project.Roster, error)
}

type Ledgers interface {
	GetByID(ctx context.Context, id uuid.UUID) (*ledger.Ledger, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]ledger.Ledger, error)
}

type Service struct {
	repo     Repository
	rosters  Rosters
	ledgers  Ledgers
	notifier notify.Notifier
	now      func() time.Time
}

func NewService(repo Repository, rosters Rosters, ledgers Ledgers, notifier notify.Notifier) *Service {
	return &Service{
		repo:     repo,
		rosters:  rosters,
		ledgers:  ledgers,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Add validates and stores a proposal. The proposer's approval is recorded
// up front; a project with a single eligible voter approves immediately.
func (s *Service) Add(ctx context.Context, actor user.User, d Draft) (*View, error) {
	roster, err := s.rosters.Roster(ctx, d.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := requireVoter(roster, actor); err != nil {
		return nil, err
	}

	d.trim()
	if err := d.Validate(); err != nil {
		return nil, err
	}

	funder := actor.ID
	if d.FundedBy.Valid {
		funder = d.FundedBy.UUID
	}
	if !roster.IsMember(funder) {
		return nil, ErrFunderNotMember
	}

	l, err := s.resolveLedger(ctx, d)
	if err != nil {
		return nil, err
	}

	if err := s.checkCapacity(ctx, roster.Project, d.Amount); err != nil {
		return nil, err
	}

	now := s.now()
	spentAt := d.SpentAt
	if spentAt.IsZero() {
		spentAt = now
	}

	sp := Spending{
		ID:           uuid.New(),
		ProjectID:    d.ProjectID,
		Amount:       d.Amount,
		Category:     d.Category,
		Description:  d.Description,
		SpentAt:      spentAt.UTC(),
		AddedBy:      actor.ID,
		FundedBy:     uuid.NullUUID{UUID: funder, Valid: true},
		LedgerID:     d.LedgerID,
		SubLedger:    d.SubLedger,
		ProductName:  d.ProductName,
		PaidToPerson: d.PaidToPerson,
		PaidToPlace:  d.PaidToPlace,
		Status:       StatusPending,
		Votes: []Vote{{
			VoterID:   actor.ID,
			Decision:  DecisionApproved,
			VoterName: roster.Name(actor.ID),
			CastAt:    now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if l != nil {
		sp.LedgerName = l.Name
	}

	eligible := roster.EligibleVoters()
	if len(eligible) == 1 {
		sp.Status = StatusApproved
	}

	if err := s.repo.Create(ctx, sp); err != nil {
		return nil, fmt.Errorf("saving spending: %w", err)
	}

	slog.InfoContext(ctx, "spending added",
		"spending_id", sp.ID,
		"project_id", sp.ProjectID,
		"amount", sp.Amount.String(),
		"status", sp.Status,
		"eligible_voters", len(eligible))

	if sp.Status == StatusPending {
		recipients := append(eligible, roster.SuperAdminIDs()...)
		notify.Fanout(ctx, s.notifier, recipients, []uuid.UUID{actor.ID},
			notify.WithTitle("New spending awaiting approval"),
			notify.WithBody(fmt.Sprintf("%s proposed %s for %s", roster.Name(actor.ID), sp.Amount.StringFixed(2), roster.Project.Name)),
			notify.WithPayload(payload(sp)),
		)
	}

	v := newView(sp, roster, l)
	return &v, nil
}

func requireVoter(roster *project.Roster, actor user.User) error {
	if actor.IsSuperAdmin() {
		return ErrObserver
	}
	if !roster.IsActiveInvestor(actor.ID) {
		return ErrNotActiveInvestor
	}
	return nil
}

func (s *Service) resolveLedger(ctx context.Context, d Draft) (*ledger.Ledger, error) {
	if !d.LedgerID.Valid {
		return nil, nil
	}

	l, err := s.ledgers.GetByID(ctx, d.LedgerID.UUID)
	if err != nil {
		return nil, fmt.Errorf("loading ledger: %w", err)
	}
	if l == nil {
		return nil, ledger.ErrNotFound
	}
	if l.ProjectID != d.ProjectID {
		return nil, ledger.ErrProjectMismatch
	}
	if err := l.ValidateSubLedger(d.SubLedger); err != nil {
		return nil, err
	}
	return l, nil
}

// checkCapacity counts spendings of every status against the target. Two
// concurrent proposals can both pass; the check is best effort.
func (s *Service) checkCapacity(ctx context.Context, p project.Project, amount decimal.Decimal) error {
	spent, err := s.repo.SumAmount(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("summing project spending: %w", err)
	}

	remaining := p.TargetAmount.Sub(spent)
	if amount.GreaterThan(remaining) {
		return &CapacityError{Remaining: decimal.Max(remaining, decimal.Zero)}
	}
	return nil
}

// Vote records actor's decision. A stale read is retried so concurrent voters
// never overwrite each other.
func (s *Service) Vote(ctx context.Context, actor user.User, spendingID uuid.UUID, decision Decision) (*View, error) {
	for attempt := 1; attempt <= maxVoteAttempts; attempt++ {
		view, err := s.vote(ctx, actor, spendingID, decision)
		if errors.Is(err, ErrConcurrentUpdate) {
			slog.WarnContext(ctx, "vote raced with another update, retrying", "spending_id", spendingID, "attempt", attempt)
			continue
		}
		return view, err
	}
	return nil, ErrConcurrentUpdate
}

func (s *Service) vote(ctx context.Context, actor user.User, spendingID uuid.UUID, decision Decision) (*View, error) {
	sp, err := s.load(ctx, spendingID)
	if err != nil {
		return nil, err
	}
	if sp.Status.Terminal() {
		return nil, ErrTerminal
	}
	if !decision.Valid() {
		return nil, ErrInvalidDecision
	}

	roster, err := s.rosters.Roster(ctx, sp.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := requireVoter(roster, actor); err != nil {
		return nil, err
	}

	v := Vote{
		VoterID:   actor.ID,
		Decision:  decision,
		VoterName: roster.Name(actor.ID),
		CastAt:    s.now(),
	}

	readVersion := sp.Version
	finalized, err := sp.Cast(v, roster.EligibleVoters())
	if err != nil {
		return nil, err
	}

	if err := s.repo.AppendVote(ctx, sp.ID, v, sp.Status, readVersion); err != nil {
		if errors.Is(err, ErrConcurrentUpdate) {
			return nil, err
		}
		return nil, fmt.Errorf("saving vote: %w", err)
	}
	sp.Version = readVersion + 1

	slog.InfoContext(ctx, "vote recorded",
		"spending_id", sp.ID,
		"voter_id", actor.ID,
		"decision", decision,
		"status", sp.Status)

	if finalized {
		s.notifyFinalized(ctx, roster, *sp, actor.ID)
	}

	l, err := s.currentLedger(ctx, *sp)
	if err != nil {
		return nil, err
	}
	view := newView(*sp, roster, l)
	return &view, nil
}

func (s *Service) notifyFinalized(ctx context.Context, roster *project.Roster, sp Spending, actorID uuid.UUID) {
	recipients := append([]uuid.UUID{sp.AddedBy}, roster.SuperAdminIDs()...)
	notify.Fanout(ctx, s.notifier, recipients, []uuid.UUID{actorID},
		notify.WithTitle(fmt.Sprintf("Spending %s", sp.Status)),
		notify.WithBody(fmt.Sprintf("Spending of %s in %s was %s", sp.Amount.StringFixed(2), roster.Project.Name, sp.Status)),
		notify.WithPayload(payload(sp)),
	)
}

func payload(sp Spending) map[string]string {
	return map[string]string{
		"spending_id": sp.ID.String(),
		"project_id":  sp.ProjectID.String(),
		"status":      string(sp.Status),
	}
}

// ListFilter narrows FindAll.
type ListFilter struct {
	Status Status
	From   time.Time
	To     time.Time
}

// FindAll lists a project's spendings after re-evaluating pending ones
// against the current eligible voters.
func (s *Service) FindAll(ctx context.Context, actor user.User, projectID uuid.UUID, lf ListFilter) ([]View, error) {
	roster, err := s.rosters.Authorize(ctx, projectID, actor)
	if err != nil {
		return nil, err
	}

	f := Filter{ProjectIDs: []uuid.UUID{projectID}, From: lf.From, To: lf.To}
	if lf.Status != "" {
		if !lf.Status.Valid() {
			return nil, ErrInvalidStatus
		}
		f.Statuses = []Status{lf.Status}
	}

	s.reconcile(ctx, roster)

	list, err := s.repo.Find(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("listing spendings: %w", err)
	}
	return s.views(ctx, rosterIndex(roster), list)
}

// reconcile approves pending spendings that already have every currently
// eligible approval. Each spending is handled on its own; failures are logged.
func (s *Service) reconcile(ctx context.Context, roster *project.Roster) int {
	pending, err := s.repo.Find(ctx, Filter{
		ProjectIDs: []uuid.UUID{roster.Project.ID},
		Statuses:   []Status{StatusPending},
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to load pending spendings for reconciliation", "error", err, "project_id", roster.Project.ID)
		return 0
	}

	eligible := roster.EligibleVoters()
	flipped := 0
	for _, sp := range pending {
		if !sp.Reconcile(eligible) {
			continue
		}
		if err := s.repo.UpdateStatus(ctx, sp.ID, sp.Status, sp.Version); err != nil {
			slog.ErrorContext(ctx, "failed to reconcile spending", "error", err, "spending_id", sp.ID)
			continue
		}
		flipped++
		slog.InfoContext(ctx, "spending approved on reconciliation", "spending_id", sp.ID, "eligible_voters", len(eligible))
		notify.Fanout(ctx, s.notifier, []uuid.UUID{sp.AddedBy}, nil,
			notify.WithTitle("Spending approved"),
			notify.WithBody(fmt.Sprintf("Spending of %s in %s was approved", sp.Amount.StringFixed(2), roster.Project.Name)),
			notify.WithPayload(payload(sp)),
		)
	}
	return flipped
}

type SearchQuery struct {
	Status Status
	Text   string
	Page   int
	Limit  int
}

type Page struct {
	Items []View `json:"items"`
	Total int    `json:"total"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Pages int    `json:"pages"`
}

func pageBounds(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

// Search pages through a project's spendings. Unlike FindAll it does not
// reconcile, so a pending spending may show pending here until the next list.
func (s *Service) Search(ctx context.Context, actor user.User, projectID uuid.UUID, q SearchQuery) (*Page, error) {
	roster, err := s.rosters.Authorize(ctx, projectID, actor)
	if err != nil {
		return nil, err
	}

	f := Filter{ProjectIDs: []uuid.UUID{projectID}, Text: q.Text}
	if q.Status != "" {
		if !q.Status.Valid() {
			return nil, ErrInvalidStatus
		}
		f.Statuses = []Status{q.Status}
	}
	return s.page(ctx, rosterIndex(roster), f, q.Page, q.Limit)
}

func (s *Service) page(ctx context.Context, rosters map[uuid.UUID]*project.Roster, f Filter, page, limit int) (*Page, error) {
	page, limit = pageBounds(page, limit)

	total, err := s.repo.Count(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("counting spendings: %w", err)
	}

	f.Limit = limit
	f.Offset = (page - 1) * limit
	list, err := s.repo.Find(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("listing spendings: %w", err)
	}

	items, err := s.views(ctx, rosters, list)
	if err != nil {
		return nil, err
	}

	return &Page{
		Items: items,
		Total: total,
		Page:  page,
		Limit: limit,
		Pages: (total + limit - 1) / limit,
	}, nil
}

// ExpenseFilter narrows the viewer's own expense history.
type ExpenseFilter struct {
	ProjectID uuid.NullUUID
	LedgerID  uuid.NullUUID
	SubLedger string
	Status    Status
	From      time.Time
	To        time.Time
	Page      int
	Limit     int
}

// MyExpenses pages through the spendings attributed to actor across every
// project they can access.
func (s *Service) MyExpenses(ctx context.Context, actor user.User, ef ExpenseFilter) (*Page, error) {
	rosters, f, err := s.expenseScope(ctx, actor, ef)
	if err != nil {
		return nil, err
	}
	return s.page(ctx, rosters, f, ef.Page, ef.Limit)
}

// ExpenseHistory is MyExpenses without paging, for exports.
func (s *Service) ExpenseHistory(ctx context.Context, actor user.User, ef ExpenseFilter) ([]View, error) {
	rosters, f, err := s.expenseScope(ctx, actor, ef)
	if err != nil {
		return nil, err
	}

	list, err := s.repo.Find(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("listing spendings: %w", err)
	}
	return s.views(ctx, rosters, list)
}

func (s *Service) expenseScope(ctx context.Context, actor user.User, ef ExpenseFilter) (map[uuid.UUID]*project.Roster, Filter, error) {
	f := Filter{
		AttributedTo: uuid.NullUUID{UUID: actor.ID, Valid: true},
		LedgerID:     ef.LedgerID,
		SubLedger:    ef.SubLedger,
		From:         ef.From,
		To:           ef.To,
	}
	if ef.Status != "" {
		if !ef.Status.Valid() {
			return nil, f, ErrInvalidStatus
		}
		f.Statuses = []Status{ef.Status}
	}

	if ef.ProjectID.Valid {
		roster, err := s.rosters.Authorize(ctx, ef.ProjectID.UUID, actor)
		if err != nil {
			return nil, f, err
		}
		f.ProjectIDs = []uuid.UUID{roster.Project.ID}
		return rosterIndex(roster), f, nil
	}

	rosters, err := s.rosters.AccessibleRosters(ctx, actor)
	if err != nil {
		return nil, f, err
	}
	index := rosterIndex(rosters...)
	for id := range index {
		f.ProjectIDs = append(f.ProjectIDs, id)
	}
	return index, f, nil
}

// PendingApprovals lists spendings waiting for actor's vote: pending, actor
// is eligible, hasn't voted and didn't propose it.
func (s *Service) PendingApprovals(ctx context.Context, actor user.User) ([]View, error) {
	rosters, err := s.rosters.AccessibleRosters(ctx, actor)
	if err != nil {
		return nil, err
	}

	index := make(map[uuid.UUID]*project.Roster)
	var projectIDs []uuid.UUID
	for _, r := range rosters {
		for _, id := range r.EligibleVoters() {
			if id == actor.ID {
				index[r.Project.ID] = r
				projectIDs = append(projectIDs, r.Project.ID)
				break
			}
		}
	}
	if len(projectIDs) == 0 {
		return []View{}, nil
	}

	pending, err := s.repo.Find(ctx, Filter{ProjectIDs: projectIDs, Statuses: []Status{StatusPending}})
	if err != nil {
		return nil, fmt.Errorf("listing pending spendings: %w", err)
	}

	waiting := make([]Spending, 0, len(pending))
	for _, sp := range pending {
		if sp.AddedBy == actor.ID || sp.HasVoted(actor.ID) {
			continue
		}
		waiting = append(waiting, sp)
	}
	return s.views(ctx, index, waiting)
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*Spending, error) {
	sp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading spending: %w", err)
	}
	if sp == nil {
		return nil, ErrNotFound
	}
	return sp, nil
}

func (s *Service) currentLedger(ctx context.Context, sp Spending) (*ledger.Ledger, error) {
	if !sp.LedgerID.Valid {
		return nil, nil
	}
	l, err := s.ledgers.GetByID(ctx, sp.LedgerID.UUID)
	if err != nil {
		return nil, fmt.Errorf("loading ledger: %w", err)
	}
	return l, nil
}

// views enriches list. Every spending's project must be in rosters.
func (s *Service) views(ctx context.Context, rosters map[uuid.UUID]*project.Roster, list []Spending) ([]View, error) {
	var ledgerIDs []uuid.UUID
	seen := make(map[uuid.UUID]bool)
	for _, sp := range list {
		if sp.LedgerID.Valid && !seen[sp.LedgerID.UUID] {
			seen[sp.LedgerID.UUID] = true
			ledgerIDs = append(ledgerIDs, sp.LedgerID.UUID)
		}
	}

	ledgers := make(map[uuid.UUID]*ledger.Ledger)
	if len(ledgerIDs) > 0 {
		found, err := s.ledgers.GetByIDs(ctx, ledgerIDs)
		if err != nil {
			return nil, fmt.Errorf("loading ledgers: %w", err)
		}
		for i := range found {
			ledgers[found[i].ID] = &found[i]
		}
	}

	views := make([]View, 0, len(list))
	for _, sp := range list {
		roster, ok := rosters[sp.ProjectID]
		if !ok {
			continue
		}
		var current *ledger.Ledger
		if sp.LedgerID.Valid {
			current = ledgers[sp.LedgerID.UUID]
		}
		views = append(views, newView(sp, roster, current))
	}
	return views, nil
}

func rosterIndex(rosters ...*project.Roster) map[uuid.UUID]*project.Roster {
	index := make(map[uuid.UUID]*project.Roster, len(rosters))
	for _, r := range rosters {
		index[r.Project.ID] = r
	}
	return index
}
