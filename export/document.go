// Package export renders spending line items as delimited text or as an
// excelize workbook. Both encodings are built from the same Document, so the
// totals they report always agree.
package export

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Row is one spending line item with every display field already resolved.
type Row struct {
	Date         string
	Time         string
	Project      string
	Description  string
	Category     string
	Amount       decimal.Decimal
	Status       string
	AddedBy      string
	FundedBy     string
	Mode         string
	Ledger       string
	SubLedger    string
	Product      string
	PaidToPerson string
	PaidToPlace  string
	Approvals    string
}

func (r Row) cells() []string {
	return []string{
		r.Date, r.Time, r.Project, r.Description, r.Category,
		r.Amount.StringFixed(2), r.Status, r.AddedBy, r.FundedBy, r.Mode,
		r.Ledger, r.SubLedger, r.Product, r.PaidToPerson, r.PaidToPlace, r.Approvals,
	}
}

var header = []string{
	"Date", "Time", "Project", "Description", "Category",
	"Amount", "Status", "Added By", "Funded By", "Detail Mode",
	"Ledger", "Sub-ledger", "Product", "Paid To (Person)", "Paid To (Place)", "Approvals",
}

// amountColumn is the 1-based column of Amount in header.
const amountColumn = 6

type Filter struct {
	Label string
	Value string
}

type Member struct {
	Name     string
	Role     string
	Count    int
	Approved decimal.Decimal
}

type Ledger struct {
	Name       string
	SubLedgers []string
}

// Document is everything an export shows. Members and Ledgers are only set
// for project exports.
type Document struct {
	Title       string
	GeneratedAt time.Time
	Period      string
	Filters     []Filter
	Rows        []Row
	Members     []Member
	Ledgers     []Ledger
}

func (d Document) project() bool {
	return d.Members != nil || d.Ledgers != nil
}

type Bucket struct {
	Label  string
	Count  int
	Amount decimal.Decimal
}

type Summary struct {
	Count      int
	Total      decimal.Decimal
	ByStatus   []Bucket
	ByCategory []Bucket
	ByLedger   []Bucket
	ByMember   []Bucket
}

// Summarize aggregates rows. Total is always the sum of the row amounts.
func Summarize(rows []Row) Summary {
	s := Summary{Count: len(rows), Total: decimal.Zero}

	status := newTally()
	category := newTally()
	ledgers := newTally()
	members := newTally()
	for _, r := range rows {
		s.Total = s.Total.Add(r.Amount)
		status.add(r.Status, r.Amount)
		category.add(orNone(r.Category), r.Amount)
		ledgers.add(orNone(r.Ledger), r.Amount)
		members.add(orNone(r.FundedBy), r.Amount)
	}

	s.ByStatus = status.buckets()
	s.ByCategory = category.sorted()
	s.ByLedger = ledgers.sorted()
	s.ByMember = members.sorted()
	return s
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

type tally struct {
	order []string
	byKey map[string]*Bucket
}

func newTally() *tally {
	return &tally{byKey: make(map[string]*Bucket)}
}

func (t *tally) add(label string, amount decimal.Decimal) {
	b, ok := t.byKey[label]
	if !ok {
		b = &Bucket{Label: label, Amount: decimal.Zero}
		t.byKey[label] = b
		t.order = append(t.order, label)
	}
	b.Count++
	b.Amount = b.Amount.Add(amount)
}

// buckets keeps first-seen order.
func (t *tally) buckets() []Bucket {
	out := make([]Bucket, 0, len(t.order))
	for _, label := range t.order {
		out = append(out, *t.byKey[label])
	}
	return out
}

// sorted orders by amount, largest first.
func (t *tally) sorted() []Bucket {
	out := t.buckets()
	slices.SortStableFunc(out, func(a, b Bucket) int {
		if c := b.Amount.Cmp(a.Amount); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
	return out
}
