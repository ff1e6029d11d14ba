package report

import (
	"cmp"
	"slices"
	"time"

	"github.com/billbatista/acasinha-spend/spending"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Range bounds analytics by spend date. From is inclusive, To exclusive; a
// zero value leaves that side open.
type Range struct {
	From time.Time
	To   time.Time
}

type Totals struct {
	Total        decimal.Decimal `json:"total"`
	Approved     decimal.Decimal `json:"approved"`
	Pending      decimal.Decimal `json:"pending"`
	DailyAverage decimal.Decimal `json:"daily_average"`
}

type Share struct {
	Key        string          `json:"key"`
	Label      string          `json:"label"`
	Amount     decimal.Decimal `json:"amount"`
	Count      int             `json:"count"`
	Percentage decimal.Decimal `json:"percentage"`
}

type MonthPoint struct {
	Month  string          `json:"month"`
	Amount decimal.Decimal `json:"amount"`
	Count  int             `json:"count"`
}

type Analytics struct {
	Totals     Totals       `json:"totals"`
	Categories []Share      `json:"categories"`
	Monthly    []MonthPoint `json:"monthly"`
	Projects   []Share      `json:"projects"`
}

func emptyAnalytics() *Analytics {
	return &Analytics{
		Totals: Totals{
			Total:        decimal.Zero,
			Approved:     decimal.Zero,
			Pending:      decimal.Zero,
			DailyAverage: decimal.Zero,
		},
		Categories: []Share{},
		Monthly:    []MonthPoint{},
		Projects:   []Share{},
	}
}

// analyze folds the viewer's spendings. Total counts approved and pending
// amounts; the breakdowns and trend only count approved ones.
func analyze(views []spending.View, r Range) *Analytics {
	a := emptyAnalytics()

	categories := make(map[string]*Share)
	projects := make(map[string]*Share)
	months := make(map[string]*MonthPoint)

	var counted []spending.View
	for _, v := range views {
		switch v.Status {
		case spending.StatusPending:
			counted = append(counted, v)
			a.Totals.Pending = a.Totals.Pending.Add(v.Amount)
		case spending.StatusApproved:
			counted = append(counted, v)
			a.Totals.Approved = a.Totals.Approved.Add(v.Amount)
			bump(categories, string(v.Category), string(v.Category), v.Amount)
			bump(projects, v.ProjectID.String(), v.ProjectName, v.Amount)

			month := v.SpentAt.UTC().Format("2006-01")
			p, ok := months[month]
			if !ok {
				p = &MonthPoint{Month: month, Amount: decimal.Zero}
				months[month] = p
			}
			p.Amount = p.Amount.Add(v.Amount)
			p.Count++
		}
	}

	a.Totals.Total = a.Totals.Approved.Add(a.Totals.Pending)
	a.Totals.DailyAverage = a.Totals.Total.Div(decimal.NewFromInt(r.days(counted))).Round(2)

	a.Categories = shares(categories, a.Totals.Approved)
	a.Projects = shares(projects, a.Totals.Approved)
	for _, p := range months {
		a.Monthly = append(a.Monthly, *p)
	}
	slices.SortFunc(a.Monthly, func(x, y MonthPoint) int { return cmp.Compare(x.Month, y.Month) })
	return a
}

func bump(m map[string]*Share, key, label string, amount decimal.Decimal) {
	s, ok := m[key]
	if !ok {
		s = &Share{Key: key, Label: label, Amount: decimal.Zero}
		m[key] = s
	}
	s.Amount = s.Amount.Add(amount)
	s.Count++
}

// shares orders by amount, largest first, and computes each share's
// percentage of total.
func shares(m map[string]*Share, total decimal.Decimal) []Share {
	out := make([]Share, 0, len(m))
	for _, s := range m {
		s.Percentage = decimal.Zero
		if total.IsPositive() {
			s.Percentage = s.Amount.Mul(hundred).Div(total).Round(2)
		}
		out = append(out, *s)
	}
	slices.SortFunc(out, func(x, y Share) int {
		if c := y.Amount.Cmp(x.Amount); c != 0 {
			return c
		}
		return cmp.Compare(x.Label, y.Label)
	})
	return out
}

// days is the length of the range in days, at least 1. An open side is
// closed by the earliest or latest spending.
func (r Range) days(views []spending.View) int64 {
	from, to := r.From, r.To
	for _, v := range views {
		day := v.SpentAt.UTC().Truncate(24 * time.Hour)
		if r.From.IsZero() && (from.IsZero() || day.Before(from)) {
			from = day
		}
		if r.To.IsZero() && (to.IsZero() || !day.Before(to)) {
			to = day.Add(24 * time.Hour)
		}
	}
	if from.IsZero() || to.IsZero() {
		return 1
	}

	days := int64(to.Sub(from).Hours() / 24)
	if to.Sub(from)%(24*time.Hour) != 0 {
		days++
	}
	return max(days, 1)
}
