package report_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/billbatista/acasinha-spend/apperr"
	"github.com/billbatista/acasinha-spend/export"
	"github.com/billbatista/acasinha-spend/ledger"
	"github.com/billbatista/acasinha-spend/memstore"
	"github.com/billbatista/acasinha-spend/project"
	"github.com/billbatista/acasinha-spend/report"
	"github.com/billbatista/acasinha-spend/spending"
	"github.com/billbatista/acasinha-spend/user"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fixture struct {
	store     *memstore.Store
	spendings *spending.Service
	reports   *report.Service

	farm, solo        project.Project
	ana, bruno, super user.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: memstore.New(time.Hour),
		ana:   user.User{ID: uuid.New(), Name: "Ana", Role: user.RoleInvestor},
		bruno: user.User{ID: uuid.New(), Name: "Bruno", Role: user.RoleInvestor},
		super: user.User{ID: uuid.New(), Name: "Root", Role: user.RoleSuperAdmin},
	}
	for _, u := range []user.User{f.ana, f.bruno, f.super} {
		f.store.Users.Put(u)
	}

	f.farm = project.Project{ID: uuid.New(), Name: "Farm", TargetAmount: decimal.NewFromInt(1000), CreatedBy: f.ana.ID,
		Members: []project.Member{{UserID: f.bruno.ID, Role: project.RoleActive}}}
	f.solo = project.Project{ID: uuid.New(), Name: "Solo", TargetAmount: decimal.NewFromInt(10000), CreatedBy: f.ana.ID}
	f.store.Projects.Put(f.farm)
	f.store.Projects.Put(f.solo)

	resolver := project.NewResolver(f.store.Projects, f.store.Users)
	f.spendings = spending.NewService(f.store.Spendings, resolver, f.store.Ledgers, f.store.Inbox)
	f.reports = report.NewService(f.spendings, f.store.Spendings, resolver, f.store.Ledgers)
	return f
}

func day(month time.Month, d int) time.Time {
	return time.Date(2026, month, d, 12, 0, 0, 0, time.UTC)
}

// seed gives Ana two approved solo spendings, one pending and one rejected
// farm spending.
func (f *fixture) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	add := func(d spending.Draft) *spending.View {
		v, err := f.spendings.Add(ctx, f.ana, d)
		require.NoError(t, err)
		return v
	}

	add(spending.Draft{ProjectID: f.solo.ID, Amount: decimal.NewFromInt(300), Category: spending.CategoryProduct, ProductName: "Seeds", SpentAt: day(time.January, 10)})
	add(spending.Draft{ProjectID: f.solo.ID, Amount: decimal.NewFromInt(100), Category: spending.CategoryService, PaidToPerson: "Joe", PaidToPlace: "Town", SpentAt: day(time.February, 5)})
	add(spending.Draft{ProjectID: f.farm.ID, Amount: decimal.NewFromInt(50), Description: "Fuel", SpentAt: day(time.February, 20)})
	rejected := add(spending.Draft{ProjectID: f.farm.ID, Amount: decimal.NewFromInt(70), Description: "Gadget", SpentAt: day(time.February, 21)})

	_, err := f.spendings.Vote(ctx, f.bruno, rejected.ID, spending.DecisionRejected)
	require.NoError(t, err)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestAnalyticsWithoutProjects(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	outsider := user.User{ID: uuid.New(), Role: user.RoleInvestor}

	a, err := f.reports.Analytics(context.Background(), outsider, report.Range{})
	require.NoError(t, err)

	assert.True(t, a.Totals.Total.IsZero())
	assert.True(t, a.Totals.Approved.IsZero())
	assert.True(t, a.Totals.Pending.IsZero())
	assert.True(t, a.Totals.DailyAverage.IsZero())
	assert.NotNil(t, a.Categories)
	assert.Empty(t, a.Categories)
	assert.NotNil(t, a.Monthly)
	assert.Empty(t, a.Monthly)
	assert.NotNil(t, a.Projects)
	assert.Empty(t, a.Projects)
}

func TestAnalytics(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	a, err := f.reports.Analytics(ctx, f.ana, report.Range{})
	require.NoError(t, err)

	assertDecimal(t, "400", a.Totals.Approved)
	assertDecimal(t, "50", a.Totals.Pending)
	assertDecimal(t, "450", a.Totals.Total)
	// Jan 10 through Feb 20 is 42 days
	assertDecimal(t, "10.71", a.Totals.DailyAverage)

	require.Len(t, a.Categories, 2)
	assert.Equal(t, "product", a.Categories[0].Key)
	assertDecimal(t, "75", a.Categories[0].Percentage)
	assert.Equal(t, "service", a.Categories[1].Key)
	assertDecimal(t, "25", a.Categories[1].Percentage)

	require.Len(t, a.Monthly, 2)
	assert.Equal(t, "2026-01", a.Monthly[0].Month)
	assertDecimal(t, "300", a.Monthly[0].Amount)
	assert.Equal(t, "2026-02", a.Monthly[1].Month)
	assertDecimal(t, "100", a.Monthly[1].Amount)

	require.Len(t, a.Projects, 1)
	assert.Equal(t, "Solo", a.Projects[0].Label)
	assertDecimal(t, "100", a.Projects[0].Percentage)

	feb, err := f.reports.Analytics(ctx, f.ana, report.Range{From: day(time.February, 1).Truncate(24 * time.Hour), To: day(time.March, 1).Truncate(24 * time.Hour)})
	require.NoError(t, err)
	assertDecimal(t, "150", feb.Totals.Total)
	assertDecimal(t, "5.36", feb.Totals.DailyAverage)
	require.Len(t, feb.Categories, 1)
	assert.Equal(t, "service", feb.Categories[0].Key)
}

func TestSummary(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	farm, err := f.reports.Summary(ctx, f.bruno, f.farm.ID)
	require.NoError(t, err)
	assertDecimal(t, "120", farm.Total.Amount)
	assert.Equal(t, 2, farm.Total.Count)
	assertDecimal(t, "50", farm.Pending.Amount)
	assertDecimal(t, "70", farm.Rejected.Amount)
	assert.Zero(t, farm.Approved.Count)
	assertDecimal(t, "1000", farm.Remaining)

	solo, err := f.reports.Summary(ctx, f.ana, f.solo.ID)
	require.NoError(t, err)
	assertDecimal(t, "9600", solo.Remaining)

	f.solo.TargetAmount = decimal.NewFromInt(250)
	f.store.Projects.Put(f.solo)
	solo, err = f.reports.Summary(ctx, f.ana, f.solo.ID)
	require.NoError(t, err)
	assert.True(t, solo.Remaining.IsZero())

	_, err = f.reports.Summary(ctx, f.bruno, f.solo.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestBulkSummary(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	unknown := uuid.New()

	summaries, err := f.reports.BulkSummary(context.Background(), f.bruno, []uuid.UUID{f.solo.ID, f.farm.ID, unknown, f.farm.ID})
	require.NoError(t, err)
	require.Len(t, summaries, 3)

	assert.Equal(t, f.solo.ID, summaries[0].ProjectID)
	assert.True(t, summaries[0].Total.Amount.IsZero())
	assert.True(t, summaries[0].TargetAmount.IsZero())

	assert.Equal(t, f.farm.ID, summaries[1].ProjectID)
	assertDecimal(t, "120", summaries[1].Total.Amount)

	assert.Equal(t, unknown, summaries[2].ProjectID)
	assert.Zero(t, summaries[2].Total.Count)

	all, err := f.reports.BulkSummary(context.Background(), f.super, []uuid.UUID{f.solo.ID})
	require.NoError(t, err)
	assertDecimal(t, "400", all[0].Approved.Amount)
}

func TestPendingApprovals(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	inbox, err := f.reports.PendingApprovals(context.Background(), f.bruno)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "Fuel", inbox[0].Description)
}

func TestExportExpenses(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	res, err := f.reports.ExportExpenses(ctx, f.ana, spending.ExpenseFilter{
		ProjectID: uuid.NullUUID{UUID: f.solo.ID, Valid: true},
	}, export.FormatCSV)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Filename, "my_expenses_solo_"))
	assert.True(t, strings.HasSuffix(res.Filename, ".csv"))
	assert.Contains(t, res.Content, "Filters,Project: Solo\n")
	assert.Contains(t, res.Content, "Records,2\n")
	assert.Contains(t, res.Content, "Total Amount,400.00\n")

	_, err = f.reports.ExportExpenses(ctx, f.ana, spending.ExpenseFilter{}, "pdf")
	assert.ErrorIs(t, err, export.ErrUnsupportedFormat)

	_, err = f.reports.ExportExpenses(ctx, f.bruno, spending.ExpenseFilter{
		ProjectID: uuid.NullUUID{UUID: f.solo.ID, Valid: true},
	}, export.FormatCSV)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.reports.ExportExpenses(ctx, f.ana, spending.ExpenseFilter{
		LedgerID: uuid.NullUUID{UUID: uuid.New(), Valid: true},
	}, export.FormatCSV)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestExportProject(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	l, err := ledger.NewLedger(f.farm.ID, "Inputs", []string{"Seeds", "Labor"}, f.ana.ID)
	require.NoError(t, err)
	require.NoError(t, f.store.Ledgers.Create(ctx, l))

	res, err := f.reports.ExportProject(ctx, f.bruno, f.farm.ID, export.FormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, "base64", res.Encoding)
	assert.True(t, strings.HasPrefix(res.Filename, "project_farm_"))

	raw, err := base64.StdEncoding.DecodeString(res.Content)
	require.NoError(t, err)
	wb, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer wb.Close()

	assert.Equal(t, []string{"Summary", "Spendings", "Members", "Ledgers"}, wb.GetSheetList())

	members, err := wb.GetRows("Members")
	require.NoError(t, err)
	require.Len(t, members, 3)
	assert.Equal(t, []string{"Ana", "creator", "2"}, members[1][:3])
	assert.Equal(t, "Bruno", members[2][0])

	ledgers, err := wb.GetRows("Ledgers")
	require.NoError(t, err)
	assert.Equal(t, []string{"Inputs", "Seeds, Labor"}, ledgers[1])

	data, err := wb.GetRows("Spendings")
	require.NoError(t, err)
	assert.Len(t, data, 4)

	_, err = f.reports.ExportProject(ctx, f.bruno, f.solo.ID, export.FormatCSV)
	assert.ErrorIs(t, err, project.ErrNoAccess)
}
