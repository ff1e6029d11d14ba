// Package report aggregates spendings into analytics, project summaries and
// exports.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/billbatista/acasinha-spend/export"
	"github.com/billbatista/acasinha-spend/ledger"
	"github.com/billbatista/acasinha-spend/project"
	"github.com/billbatista/acasinha-spend/spending"
	"github.com/billbatista/acasinha-spend/user"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type Spendings interface {
	FindAll(ctx context.Context, actor user.User, projectID uuid.UUID, lf spending.ListFilter) ([]spending.View, error)
	ExpenseHistory(ctx context.Context, actor user.User, ef spending.ExpenseFilter) ([]spending.View, error)
	PendingApprovals(ctx context.Context, actor user.User) ([]spending.View, error)
}

type Aggregator interface {
	TotalsByProject(ctx context.Context, projectIDs []uuid.UUID) ([]spending.Totals, error)
}

type Rosters interface {
	Authorize(ctx context.Context, projectID uuid.UUID, actor user.User) (*project.Roster, error)
	Accessible(ctx context.Context, actor user.User) ([]project.Project, error)
}

type Ledgers interface {
	GetByID(ctx context.Context, id uuid.UUID) (*ledger.Ledger, error)
	ListByProjects(ctx context.Context, projectIDs []uuid.UUID) ([]ledger.Ledger, error)
}

type Service struct {
	spendings Spendings
	totals    Aggregator
	rosters   Rosters
	ledgers   Ledgers
	now       func() time.Time
}

func NewService(spendings Spendings, totals Aggregator, rosters Rosters, ledgers Ledgers) *Service {
	return &Service{
		spendings: spendings,
		totals:    totals,
		rosters:   rosters,
		ledgers:   ledgers,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Analytics summarizes the spendings attributed to actor across every
// accessible project.
func (s *Service) Analytics(ctx context.Context, actor user.User, r Range) (*Analytics, error) {
	views, err := s.spendings.ExpenseHistory(ctx, actor, spending.ExpenseFilter{From: r.From, To: r.To})
	if err != nil {
		return nil, err
	}
	return analyze(views, r), nil
}

func (s *Service) Summary(ctx context.Context, actor user.User, projectID uuid.UUID) (*Summary, error) {
	roster, err := s.rosters.Authorize(ctx, projectID, actor)
	if err != nil {
		return nil, err
	}

	totals, err := s.totals.TotalsByProject(ctx, []uuid.UUID{projectID})
	if err != nil {
		return nil, fmt.Errorf("aggregating project spending: %w", err)
	}

	summary := newSummary(roster.Project, totals)
	return &summary, nil
}

// BulkSummary returns one summary per requested id, in request order. Ids the
// actor can't see, or that don't exist, get a zeroed summary.
func (s *Service) BulkSummary(ctx context.Context, actor user.User, ids []uuid.UUID) ([]Summary, error) {
	accessible, err := s.rosters.Accessible(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	projects := make(map[uuid.UUID]project.Project, len(accessible))
	for _, p := range accessible {
		projects[p.ID] = p
	}

	var requested, visible []uuid.UUID
	seen := make(map[uuid.UUID]bool)
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		requested = append(requested, id)
		if _, ok := projects[id]; ok {
			visible = append(visible, id)
		}
	}

	grouped := make(map[uuid.UUID][]spending.Totals)
	if len(visible) > 0 {
		totals, err := s.totals.TotalsByProject(ctx, visible)
		if err != nil {
			return nil, fmt.Errorf("aggregating project spending: %w", err)
		}
		for _, t := range totals {
			grouped[t.ProjectID] = append(grouped[t.ProjectID], t)
		}
	}

	summaries := make([]Summary, 0, len(requested))
	for _, id := range requested {
		p, ok := projects[id]
		if !ok {
			summaries = append(summaries, zeroSummary(id))
			continue
		}
		summaries = append(summaries, newSummary(p, grouped[id]))
	}
	return summaries, nil
}

func (s *Service) PendingApprovals(ctx context.Context, actor user.User) ([]spending.View, error) {
	return s.spendings.PendingApprovals(ctx, actor)
}

// ExportExpenses renders actor's expense history with the same filters as
// the paged listing.
func (s *Service) ExportExpenses(ctx context.Context, actor user.User, ef spending.ExpenseFilter, format export.Format) (*export.Result, error) {
	format, err := export.ParseFormat(string(format))
	if err != nil {
		return nil, err
	}

	var (
		views       []spending.View
		projectName string
		ledgerName  string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		views, err = s.spendings.ExpenseHistory(gctx, actor, ef)
		return err
	})
	if ef.ProjectID.Valid {
		g.Go(func() error {
			roster, err := s.rosters.Authorize(gctx, ef.ProjectID.UUID, actor)
			if err != nil {
				return err
			}
			projectName = roster.Project.Name
			return nil
		})
	}
	if ef.LedgerID.Valid {
		g.Go(func() error {
			l, err := s.ledgers.GetByID(gctx, ef.LedgerID.UUID)
			if err != nil {
				return fmt.Errorf("loading ledger: %w", err)
			}
			if l == nil {
				return ledger.ErrNotFound
			}
			if _, err := s.rosters.Authorize(gctx, l.ProjectID, actor); err != nil {
				return err
			}
			ledgerName = l.Name
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var filters []export.Filter
	for _, f := range []export.Filter{
		{Label: "Project", Value: projectName},
		{Label: "Ledger", Value: ledgerName},
		{Label: "Sub-ledger", Value: ef.SubLedger},
		{Label: "Status", Value: string(ef.Status)},
	} {
		if f.Value != "" {
			filters = append(filters, f)
		}
	}

	doc := export.Document{
		Title:       "My expenses",
		GeneratedAt: s.now(),
		Period:      period(ef.From, ef.To),
		Filters:     filters,
		Rows:        rows(views),
	}

	result, err := export.Render(doc, format, "my_expenses", projectName, ledgerName, ef.SubLedger)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "expenses exported", "user_id", actor.ID, "format", format, "records", len(doc.Rows))
	return result, nil
}

// ExportProject renders every spending of the project together with its
// members and ledger catalog.
func (s *Service) ExportProject(ctx context.Context, actor user.User, projectID uuid.UUID, format export.Format) (*export.Result, error) {
	format, err := export.ParseFormat(string(format))
	if err != nil {
		return nil, err
	}

	roster, err := s.rosters.Authorize(ctx, projectID, actor)
	if err != nil {
		return nil, err
	}

	var (
		views   []spending.View
		ledgers []ledger.Ledger
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		views, err = s.spendings.FindAll(gctx, actor, projectID, spending.ListFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		ledgers, err = s.ledgers.ListByProjects(gctx, []uuid.UUID{projectID})
		if err != nil {
			return fmt.Errorf("listing ledgers: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	doc := export.Document{
		Title:       roster.Project.Name,
		GeneratedAt: s.now(),
		Filters:     []export.Filter{{Label: "Project", Value: roster.Project.Name}},
		Rows:        rows(views),
		Members:     members(roster, views),
		Ledgers:     catalog(ledgers),
	}

	result, err := export.Render(doc, format, "project", roster.Project.Name)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "project exported", "project_id", projectID, "user_id", actor.ID, "format", format, "records", len(doc.Rows))
	return result, nil
}

func rows(views []spending.View) []export.Row {
	out := make([]export.Row, 0, len(views))
	for _, v := range views {
		out = append(out, export.Row{
			Date:         v.Date,
			Time:         v.Time,
			Project:      v.ProjectName,
			Description:  v.Description,
			Category:     string(v.Category),
			Amount:       v.Amount,
			Status:       string(v.Status),
			AddedBy:      v.AddedByName,
			FundedBy:     v.FundedByName,
			Mode:         string(v.Detail.Mode),
			Ledger:       v.Detail.LedgerName,
			SubLedger:    v.Detail.SubLedger,
			Product:      v.Detail.ProductName,
			PaidToPerson: v.Detail.PaidToPerson,
			PaidToPlace:  v.Detail.PaidToPlace,
			Approvals:    fmt.Sprintf("%d/%d", len(v.ApprovalSummary.ApprovedBy), v.ApprovalSummary.RequiredApproverCount),
		})
	}
	return out
}

func members(roster *project.Roster, views []spending.View) []export.Member {
	type funded struct {
		count    int
		approved decimal.Decimal
	}
	byFunder := make(map[uuid.UUID]*funded)
	for _, v := range views {
		f, ok := byFunder[v.Funder()]
		if !ok {
			f = &funded{approved: decimal.Zero}
			byFunder[v.Funder()] = f
		}
		f.count++
		if v.Status == spending.StatusApproved {
			f.approved = f.approved.Add(v.Amount)
		}
	}

	p := roster.Project
	roles := map[uuid.UUID]string{p.CreatedBy: "creator"}
	for _, m := range p.Members {
		if _, ok := roles[m.UserID]; !ok {
			roles[m.UserID] = string(m.Role)
		}
	}

	out := make([]export.Member, 0, len(roles))
	for _, id := range p.MemberIDs() {
		m := export.Member{Name: roster.Name(id), Role: roles[id], Approved: decimal.Zero}
		if f, ok := byFunder[id]; ok {
			m.Count = f.count
			m.Approved = f.approved
		}
		out = append(out, m)
	}
	return out
}

func catalog(ledgers []ledger.Ledger) []export.Ledger {
	out := make([]export.Ledger, 0, len(ledgers))
	for _, l := range ledgers {
		out = append(out, export.Ledger{Name: l.Name, SubLedgers: l.SubLedgers})
	}
	return out
}

// period describes [from, to) with an inclusive end date.
func period(from, to time.Time) string {
	switch {
	case from.IsZero() && to.IsZero():
		return ""
	case to.IsZero():
		return "From " + from.Format(time.DateOnly)
	case from.IsZero():
		return "Until " + to.AddDate(0, 0, -1).Format(time.DateOnly)
	default:
		return from.Format(time.DateOnly) + " to " + to.AddDate(0, 0, -1).Format(time.DateOnly)
	}
}
