package spending_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/billbatista/acasinha-spend/apperr"
	"github.com/billbatista/acasinha-spend/detail"
	"github.com/billbatista/acasinha-spend/ledger"
	"github.com/billbatista/acasinha-spend/memstore"
	"github.com/billbatista/acasinha-spend/notify"
	"github.com/billbatista/acasinha-spend/project"
	"github.com/billbatista/acasinha-spend/spending"
	"github.com/billbatista/acasinha-spend/user"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	store   *memstore.Store
	svc     *spending.Service
	project project.Project
	solo    project.Project

	alice, bob, carol, passive, super, outsider user.User
}

func newEnv(t *testing.T) *env {
	t.Helper()

	e := &env{
		store:    memstore.New(time.Hour),
		alice:    user.User{ID: uuid.New(), Name: "Alice", Role: user.RoleInvestor},
		bob:      user.User{ID: uuid.New(), Name: "Bob", Role: user.RoleInvestor},
		carol:    user.User{ID: uuid.New(), Name: "Carol", Role: user.RoleInvestor},
		passive:  user.User{ID: uuid.New(), Name: "Pat", Role: user.RoleInvestor},
		super:    user.User{ID: uuid.New(), Name: "Root", Role: user.RoleSuperAdmin},
		outsider: user.User{ID: uuid.New(), Name: "Olga", Role: user.RoleInvestor},
	}
	for _, u := range []user.User{e.alice, e.bob, e.carol, e.passive, e.super, e.outsider} {
		e.store.Users.Put(u)
	}

	e.project = project.Project{
		ID:           uuid.New(),
		Name:         "Farm",
		TargetAmount: decimal.NewFromInt(100000),
		CreatedBy:    e.alice.ID,
		Members: []project.Member{
			{UserID: e.alice.ID, Role: project.RoleActive},
			{UserID: e.bob.ID, Role: project.RoleActive},
			{UserID: e.passive.ID, Role: project.RolePassive},
		},
	}
	e.solo = project.Project{
		ID:           uuid.New(),
		Name:         "Solo",
		TargetAmount: decimal.NewFromInt(10000),
		CreatedBy:    e.alice.ID,
	}
	e.store.Projects.Put(e.project)
	e.store.Projects.Put(e.solo)

	resolver := project.NewResolver(e.store.Projects, e.store.Users)
	e.svc = spending.NewService(e.store.Spendings, resolver, e.store.Ledgers, e.store.Inbox)
	return e
}

func (e *env) draft(amount int64) spending.Draft {
	return spending.Draft{
		ProjectID:   e.project.ID,
		Amount:      decimal.NewFromInt(amount),
		Category:    spending.CategoryProduct,
		Description: "Inputs",
		ProductName: "Fertilizer",
	}
}

func (e *env) addLedger(t *testing.T, projectID uuid.UUID, name string, catalog ...string) ledger.Ledger {
	t.Helper()
	l, err := ledger.NewLedger(projectID, name, catalog, e.alice.ID)
	require.NoError(t, err)
	require.NoError(t, e.store.Ledgers.Create(context.Background(), l))
	return l
}

func TestAddSoloCreatorApprovesImmediately(t *testing.T) {
	e := newEnv(t)
	d := e.draft(5000)
	d.ProjectID = e.solo.ID

	v, err := e.svc.Add(context.Background(), e.alice, d)
	require.NoError(t, err)

	assert.Equal(t, spending.StatusApproved, v.Status)
	require.Len(t, v.Votes, 1)
	assert.Equal(t, e.alice.ID, v.Votes[0].VoterID)
	assert.Equal(t, spending.DecisionApproved, v.Votes[0].Decision)
	assert.Equal(t, 1, v.ApprovalSummary.RequiredApproverCount)
	assert.Empty(t, e.store.Inbox.Sent())
}

func TestTwoInvestorsApprove(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	v, err := e.svc.Add(ctx, e.alice, e.draft(5000))
	require.NoError(t, err)
	assert.Equal(t, spending.StatusPending, v.Status)
	assert.Equal(t, spending.DecisionApproved, v.Approvals()[e.alice.ID].Decision)
	assert.Len(t, v.Approvals(), 1)
	assert.ElementsMatch(t, []uuid.UUID{e.bob.ID, e.super.ID}, e.store.Inbox.Recipients())
	assert.Equal(t, []spending.Person{{ID: e.bob.ID, Name: "Bob"}}, v.ApprovalSummary.WaitingFor)

	e.store.Inbox.Reset()
	voted, err := e.svc.Vote(ctx, e.bob, v.ID, spending.DecisionApproved)
	require.NoError(t, err)
	assert.Equal(t, spending.StatusApproved, voted.Status)
	assert.ElementsMatch(t, []uuid.UUID{e.alice.ID, e.super.ID}, e.store.Inbox.Recipients())
	assert.Len(t, voted.ApprovalSummary.ApprovedBy, 2)
	assert.Empty(t, voted.ApprovalSummary.WaitingFor)

	stored, err := e.store.Spendings.GetByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, spending.StatusApproved, stored.Status)
	assert.Len(t, stored.Votes, 2)
}

func TestRejectFinalizesAndBlocksVoting(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	v, err := e.svc.Add(ctx, e.alice, e.draft(5000))
	require.NoError(t, err)

	voted, err := e.svc.Vote(ctx, e.bob, v.ID, spending.DecisionRejected)
	require.NoError(t, err)
	assert.Equal(t, spending.StatusRejected, voted.Status)

	_, err = e.svc.Vote(ctx, e.alice, v.ID, spending.DecisionApproved)
	assert.ErrorIs(t, err, spending.ErrTerminal)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestPendingUntilEveryEligibleApproves(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.project.Members = append(e.project.Members, project.Member{UserID: e.carol.ID, Role: project.RoleActive})
	e.store.Projects.Put(e.project)

	v, err := e.svc.Add(ctx, e.alice, e.draft(100))
	require.NoError(t, err)

	voted, err := e.svc.Vote(ctx, e.bob, v.ID, spending.DecisionApproved)
	require.NoError(t, err)
	assert.Equal(t, spending.StatusPending, voted.Status)

	// a repeated approval is not a new voter
	voted, err = e.svc.Vote(ctx, e.bob, v.ID, spending.DecisionApproved)
	require.NoError(t, err)
	assert.Equal(t, spending.StatusPending, voted.Status)

	voted, err = e.svc.Vote(ctx, e.carol, v.ID, spending.DecisionApproved)
	require.NoError(t, err)
	assert.Equal(t, spending.StatusApproved, voted.Status)
}

func TestAddValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	d := e.draft(-10)
	_, err := e.svc.Add(ctx, e.alice, d)
	assert.ErrorIs(t, err, spending.ErrInvalidAmount)
	assert.ErrorIs(t, err, apperr.ErrBadRequest)
	assert.EqualError(t, err, "amount must be positive")

	d = e.draft(0)
	_, err = e.svc.Add(ctx, e.alice, d)
	assert.ErrorIs(t, err, spending.ErrInvalidAmount)

	for _, amount := range []string{"0.004", "10.005"} {
		d = e.draft(0)
		d.Amount = decimal.RequireFromString(amount)
		_, err = e.svc.Add(ctx, e.alice, d)
		assert.ErrorIs(t, err, spending.ErrAmountPrecision, amount)
		assert.ErrorIs(t, err, apperr.ErrBadRequest, amount)
	}
	total, err := e.store.Spendings.SumAmount(ctx, e.project.ID)
	require.NoError(t, err)
	assert.True(t, total.IsZero())

	d = e.draft(0)
	d.Amount = decimal.RequireFromString("10.500")
	v, err := e.svc.Add(ctx, e.alice, d)
	require.NoError(t, err)
	assert.Equal(t, "10.50", v.Amount.StringFixed(2))

	d = e.draft(10)
	d.ProductName = " "
	_, err = e.svc.Add(ctx, e.alice, d)
	assert.ErrorIs(t, err, spending.ErrMissingProductName)

	d = e.draft(10)
	d.Category = spending.CategoryService
	d.PaidToPerson = "Joe"
	_, err = e.svc.Add(ctx, e.alice, d)
	assert.ErrorIs(t, err, spending.ErrMissingPaidTo)

	d.PaidToPlace = "Market"
	v, err = e.svc.Add(ctx, e.alice, d)
	require.NoError(t, err)
	assert.Equal(t, detail.ModeService, v.Detail.Mode)

	d = e.draft(10)
	d.FundedBy = uuid.NullUUID{UUID: e.outsider.ID, Valid: true}
	_, err = e.svc.Add(ctx, e.alice, d)
	assert.ErrorIs(t, err, spending.ErrFunderNotMember)

	d.FundedBy = uuid.NullUUID{UUID: e.passive.ID, Valid: true}
	v, err = e.svc.Add(ctx, e.alice, d)
	require.NoError(t, err)
	assert.Equal(t, e.passive.ID, v.Funder())
	assert.Equal(t, "Pat", v.FundedByName)
	assert.Equal(t, "Alice", v.AddedByName)
}

func TestAddForbidden(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.Add(ctx, e.passive, e.draft(10))
	assert.ErrorIs(t, err, spending.ErrNotActiveInvestor)

	_, err = e.svc.Add(ctx, e.super, e.draft(10))
	assert.ErrorIs(t, err, spending.ErrObserver)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = e.svc.Add(ctx, e.outsider, e.draft(10))
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	d := e.draft(10)
	d.ProjectID = uuid.New()
	_, err = e.svc.Add(ctx, e.alice, d)
	assert.ErrorIs(t, err, project.ErrProjectNotFound)
}

func TestAddCapacity(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.project.TargetAmount = decimal.NewFromInt(1000)
	e.store.Projects.Put(e.project)

	first, err := e.svc.Add(ctx, e.alice, e.draft(400))
	require.NoError(t, err)
	_, err = e.svc.Vote(ctx, e.bob, first.ID, spending.DecisionRejected)
	require.NoError(t, err)
	_, err = e.svc.Add(ctx, e.alice, e.draft(200))
	require.NoError(t, err)

	_, err = e.svc.Add(ctx, e.alice, e.draft(500))
	var capErr *spending.CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.True(t, decimal.NewFromInt(400).Equal(capErr.Remaining), "remaining %s", capErr.Remaining)
	assert.ErrorIs(t, err, spending.ErrCapacityExceeded)
	assert.ErrorIs(t, err, apperr.ErrBadRequest)
	assert.Contains(t, err.Error(), "400.00")

	_, err = e.svc.Add(ctx, e.alice, e.draft(400))
	assert.NoError(t, err)
}

func TestAddLedger(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	l := e.addLedger(t, e.project.ID, "Inputs", "Seeds", "Labor")
	foreign := e.addLedger(t, e.solo.ID, "Elsewhere")

	d := e.draft(10)
	d.Category = spending.CategoryOther
	d.LedgerID = uuid.NullUUID{UUID: l.ID, Valid: true}
	d.SubLedger = "Transport"
	_, err := e.svc.Add(ctx, e.alice, d)
	assert.ErrorIs(t, err, ledger.ErrNotInCatalog)

	d.SubLedger = "Seeds"
	v, err := e.svc.Add(ctx, e.alice, d)
	require.NoError(t, err)
	assert.Equal(t, detail.ModeLedger, v.Detail.Mode)
	assert.Equal(t, "Inputs", v.Detail.LedgerName)
	assert.Equal(t, "Seeds", v.Detail.SubLedger)

	d.LedgerID = uuid.NullUUID{UUID: foreign.ID, Valid: true}
	d.SubLedger = ""
	_, err = e.svc.Add(ctx, e.alice, d)
	assert.ErrorIs(t, err, ledger.ErrProjectMismatch)

	d.LedgerID = uuid.NullUUID{UUID: uuid.New(), Valid: true}
	_, err = e.svc.Add(ctx, e.alice, d)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	d.LedgerID = uuid.NullUUID{}
	d.SubLedger = "Seeds"
	_, err = e.svc.Add(ctx, e.alice, d)
	assert.ErrorIs(t, err, spending.ErrSubLedgerWithoutLedger)
}

func TestDeletedLedgerKeepsSnapshot(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	l := e.addLedger(t, e.project.ID, "Inputs", "Seeds")

	d := e.draft(10)
	d.LedgerID = uuid.NullUUID{UUID: l.ID, Valid: true}
	v, err := e.svc.Add(ctx, e.alice, d)
	require.NoError(t, err)

	require.NoError(t, e.store.Ledgers.Delete(ctx, l.ID))

	list, err := e.svc.FindAll(ctx, e.alice, e.project.ID, spending.ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, v.ID, list[0].ID)
	assert.Equal(t, "Inputs", list[0].Detail.LedgerName)
	assert.Equal(t, detail.ModeLedger, list[0].Detail.Mode)
}

func TestVoteForbidden(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	v, err := e.svc.Add(ctx, e.alice, e.draft(10))
	require.NoError(t, err)

	_, err = e.svc.Vote(ctx, e.super, v.ID, spending.DecisionApproved)
	assert.ErrorIs(t, err, spending.ErrObserver)

	_, err = e.svc.Vote(ctx, e.passive, v.ID, spending.DecisionApproved)
	assert.ErrorIs(t, err, spending.ErrNotActiveInvestor)

	_, err = e.svc.Vote(ctx, e.bob, v.ID, spending.Decision("maybe"))
	assert.ErrorIs(t, err, spending.ErrInvalidDecision)

	_, err = e.svc.Vote(ctx, e.bob, uuid.New(), spending.DecisionApproved)
	assert.ErrorIs(t, err, spending.ErrNotFound)
}

func TestFindAllReconcilesAfterMembershipChange(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.project.Members = append(e.project.Members, project.Member{UserID: e.carol.ID, Role: project.RoleActive})
	e.store.Projects.Put(e.project)

	v, err := e.svc.Add(ctx, e.alice, e.draft(10))
	require.NoError(t, err)
	_, err = e.svc.Vote(ctx, e.bob, v.ID, spending.DecisionApproved)
	require.NoError(t, err)

	// carol becomes passive: alice and bob already cover the eligible set
	e.project.Members[3].Role = project.RolePassive
	e.store.Projects.Put(e.project)

	page, err := e.svc.Search(ctx, e.alice, e.project.ID, spending.SearchQuery{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, spending.StatusPending, page.Items[0].Status)

	e.store.Inbox.Reset()
	list, err := e.svc.FindAll(ctx, e.alice, e.project.ID, spending.ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, spending.StatusApproved, list[0].Status)
	assert.Equal(t, []uuid.UUID{e.alice.ID}, e.store.Inbox.Recipients())

	stored, err := e.store.Spendings.GetByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, spending.StatusApproved, stored.Status)
}

func TestFindAllRejectsUnknownStatusBeforeReconciling(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.project.Members = append(e.project.Members, project.Member{UserID: e.carol.ID, Role: project.RoleActive})
	e.store.Projects.Put(e.project)

	v, err := e.svc.Add(ctx, e.alice, e.draft(10))
	require.NoError(t, err)
	_, err = e.svc.Vote(ctx, e.bob, v.ID, spending.DecisionApproved)
	require.NoError(t, err)

	e.project.Members = e.project.Members[:3]
	e.store.Projects.Put(e.project)
	e.store.Inbox.Reset()

	_, err = e.svc.FindAll(ctx, e.alice, e.project.ID, spending.ListFilter{Status: "bogus"})
	assert.ErrorIs(t, err, spending.ErrInvalidStatus)

	stored, err := e.store.Spendings.GetByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, spending.StatusPending, stored.Status)
	assert.Empty(t, e.store.Inbox.Sent())
}

// failingUpdates fails UpdateStatus for the listed ids.
type failingUpdates struct {
	*memstore.Spendings
	fail map[uuid.UUID]error
}

func (f *failingUpdates) UpdateStatus(ctx context.Context, id uuid.UUID, status spending.Status, expectedVersion int64) error {
	if err := f.fail[id]; err != nil {
		return err
	}
	return f.Spendings.UpdateStatus(ctx, id, status, expectedVersion)
}

func TestReconcileFailureDoesNotAbortListing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.project.Members = append(e.project.Members, project.Member{UserID: e.carol.ID, Role: project.RoleActive})
	e.store.Projects.Put(e.project)

	first, err := e.svc.Add(ctx, e.alice, e.draft(10))
	require.NoError(t, err)
	second, err := e.svc.Add(ctx, e.alice, e.draft(20))
	require.NoError(t, err)
	for _, id := range []uuid.UUID{first.ID, second.ID} {
		_, err = e.svc.Vote(ctx, e.bob, id, spending.DecisionApproved)
		require.NoError(t, err)
	}

	e.project.Members = e.project.Members[:3]
	e.store.Projects.Put(e.project)

	repo := &failingUpdates{Spendings: e.store.Spendings, fail: map[uuid.UUID]error{first.ID: errors.New("disk full")}}
	svc := spending.NewService(repo, project.NewResolver(e.store.Projects, e.store.Users), e.store.Ledgers, e.store.Inbox)

	list, err := svc.FindAll(ctx, e.alice, e.project.ID, spending.ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)

	statuses := map[uuid.UUID]spending.Status{}
	for _, v := range list {
		statuses[v.ID] = v.Status
	}
	assert.Equal(t, spending.StatusPending, statuses[first.ID])
	assert.Equal(t, spending.StatusApproved, statuses[second.ID])
}

func TestFindAllFilters(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	d := e.draft(10)
	d.SpentAt = time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	old, err := e.svc.Add(ctx, e.alice, d)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", old.Date)
	assert.Equal(t, "10:30", old.Time)

	d.SpentAt = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	recent, err := e.svc.Add(ctx, e.alice, d)
	require.NoError(t, err)
	_, err = e.svc.Vote(ctx, e.bob, recent.ID, spending.DecisionRejected)
	require.NoError(t, err)

	list, err := e.svc.FindAll(ctx, e.passive, e.project.ID, spending.ListFilter{Status: spending.StatusRejected})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, recent.ID, list[0].ID)

	list, err = e.svc.FindAll(ctx, e.alice, e.project.ID, spending.ListFilter{
		From: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, old.ID, list[0].ID)

	_, err = e.svc.FindAll(ctx, e.outsider, e.project.ID, spending.ListFilter{})
	assert.ErrorIs(t, err, project.ErrNoAccess)

	_, err = e.svc.FindAll(ctx, e.alice, e.project.ID, spending.ListFilter{Status: "bogus"})
	assert.ErrorIs(t, err, spending.ErrInvalidStatus)
}

func TestSearch(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	for i, desc := range []string{"Seeds for north field", "Tractor repair", "Seeds for south field"} {
		d := e.draft(int64(100 + i))
		d.Description = desc
		d.SpentAt = time.Date(2026, 1, i+1, 0, 0, 0, 0, time.UTC)
		_, err := e.svc.Add(ctx, e.alice, d)
		require.NoError(t, err)
	}

	page, err := e.svc.Search(ctx, e.alice, e.project.ID, spending.SearchQuery{Text: "seeds", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 2, page.Pages)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Seeds for south field", page.Items[0].Description)

	page, err = e.svc.Search(ctx, e.alice, e.project.ID, spending.SearchQuery{Text: "seeds", Page: 2, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Seeds for north field", page.Items[0].Description)

	page, err = e.svc.Search(ctx, e.alice, e.project.ID, spending.SearchQuery{Text: "2026-01-02"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Tractor repair", page.Items[0].Description)

	page, err = e.svc.Search(ctx, e.alice, e.project.ID, spending.SearchQuery{Text: "102"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	for _, text := range []string{"_", "%"} {
		page, err = e.svc.Search(ctx, e.alice, e.project.ID, spending.SearchQuery{Text: text})
		require.NoError(t, err)
		assert.Equal(t, 0, page.Total, text)
	}

	page, err = e.svc.Search(ctx, e.alice, e.project.ID, spending.SearchQuery{Status: spending.StatusApproved})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	assert.Empty(t, page.Items)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.Limit)
}

func TestPendingApprovals(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	mine, err := e.svc.Add(ctx, e.alice, e.draft(10))
	require.NoError(t, err)
	voted, err := e.svc.Add(ctx, e.bob, e.draft(20))
	require.NoError(t, err)
	waiting, err := e.svc.Add(ctx, e.bob, e.draft(30))
	require.NoError(t, err)
	_, err = e.svc.Vote(ctx, e.alice, voted.ID, spending.DecisionApproved)
	require.NoError(t, err)

	inbox, err := e.svc.PendingApprovals(ctx, e.alice)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, waiting.ID, inbox[0].ID)
	assert.NotEqual(t, mine.ID, inbox[0].ID)

	inbox, err = e.svc.PendingApprovals(ctx, e.passive)
	require.NoError(t, err)
	assert.Empty(t, inbox)

	inbox, err = e.svc.PendingApprovals(ctx, e.super)
	require.NoError(t, err)
	assert.Empty(t, inbox)
}

func TestMyExpenses(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	l := e.addLedger(t, e.project.ID, "Inputs", "Seeds", "Labor")

	d := e.draft(10)
	d.LedgerID = uuid.NullUUID{UUID: l.ID, Valid: true}
	d.SubLedger = "Seeds"
	seeds, err := e.svc.Add(ctx, e.alice, d)
	require.NoError(t, err)

	d.SubLedger = "Labor"
	d.FundedBy = uuid.NullUUID{UUID: e.bob.ID, Valid: true}
	_, err = e.svc.Add(ctx, e.alice, d)
	require.NoError(t, err)

	solo := e.draft(5)
	solo.ProjectID = e.solo.ID
	_, err = e.svc.Add(ctx, e.alice, solo)
	require.NoError(t, err)

	page, err := e.svc.MyExpenses(ctx, e.alice, spending.ExpenseFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	page, err = e.svc.MyExpenses(ctx, e.alice, spending.ExpenseFilter{
		ProjectID: uuid.NullUUID{UUID: e.project.ID, Valid: true},
		LedgerID:  uuid.NullUUID{UUID: l.ID, Valid: true},
		SubLedger: "Seeds",
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, seeds.ID, page.Items[0].ID)
	assert.Equal(t, "Farm", page.Items[0].ProjectName)

	page, err = e.svc.MyExpenses(ctx, e.bob, spending.ExpenseFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	_, err = e.svc.MyExpenses(ctx, e.outsider, spending.ExpenseFilter{ProjectID: uuid.NullUUID{UUID: e.project.ID, Valid: true}})
	assert.ErrorIs(t, err, project.ErrNoAccess)

	history, err := e.svc.ExpenseHistory(ctx, e.outsider, spending.ExpenseFilter{})
	require.NoError(t, err)
	assert.Empty(t, history)
}

// racingRepo lets another voter slip in between the service's read and write.
type racingRepo struct {
	*memstore.Spendings
	intruder spending.Vote
	raced    bool
}

func (r *racingRepo) AppendVote(ctx context.Context, id uuid.UUID, v spending.Vote, status spending.Status, expectedVersion int64) error {
	if !r.raced {
		r.raced = true
		if err := r.Spendings.AppendVote(ctx, id, r.intruder, spending.StatusPending, expectedVersion); err != nil {
			return err
		}
	}
	return r.Spendings.AppendVote(ctx, id, v, status, expectedVersion)
}

func TestVoteRetriesOnConcurrentUpdate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.project.Members = append(e.project.Members, project.Member{UserID: e.carol.ID, Role: project.RoleActive})
	e.store.Projects.Put(e.project)

	v, err := e.svc.Add(ctx, e.alice, e.draft(10))
	require.NoError(t, err)

	repo := &racingRepo{
		Spendings: e.store.Spendings,
		intruder:  spending.Vote{VoterID: e.carol.ID, Decision: spending.DecisionApproved, VoterName: "Carol", CastAt: time.Now()},
	}
	resolver := project.NewResolver(e.store.Projects, e.store.Users)
	svc := spending.NewService(repo, resolver, e.store.Ledgers, e.store.Inbox)

	voted, err := svc.Vote(ctx, e.bob, v.ID, spending.DecisionApproved)
	require.NoError(t, err)
	assert.Equal(t, spending.StatusApproved, voted.Status)

	stored, err := e.store.Spendings.GetByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Votes, 3)
	assert.Equal(t, spending.StatusApproved, stored.Status)
}

type failingSender struct{}

func (failingSender) Send(context.Context, notify.Notification) error {
	return errors.New("push service unavailable")
}

func TestNotificationFailureKeepsSpending(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	worker := notify.NewWorker(failingSender{}, 10)
	worker.Start()
	resolver := project.NewResolver(e.store.Projects, e.store.Users)
	svc := spending.NewService(e.store.Spendings, resolver, e.store.Ledgers, worker)

	v, err := svc.Add(ctx, e.alice, e.draft(10))
	require.NoError(t, err)
	worker.Shutdown()

	stored, err := e.store.Spendings.GetByID(ctx, v.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, spending.StatusPending, stored.Status)
}
