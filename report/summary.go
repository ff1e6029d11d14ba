package report

import (
	"github.com/billbatista/acasinha-spend/project"
	"github.com/billbatista/acasinha-spend/spending"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Amount struct {
	Amount decimal.Decimal `json:"amount"`
	Count  int             `json:"count"`
}

func (a *Amount) add(t spending.Totals) {
	a.Amount = a.Amount.Add(t.Amount)
	a.Count += t.Count
}

// Summary splits a project's spending by status. Total covers every status;
// Remaining is measured against approved spending only and never negative.
type Summary struct {
	ProjectID    uuid.UUID       `json:"project_id"`
	ProjectName  string          `json:"project_name"`
	TargetAmount decimal.Decimal `json:"target_amount"`
	Total        Amount          `json:"total"`
	Approved     Amount          `json:"approved"`
	Pending      Amount          `json:"pending"`
	Rejected     Amount          `json:"rejected"`
	Remaining    decimal.Decimal `json:"remaining"`
}

func zeroSummary(id uuid.UUID) Summary {
	return Summary{
		ProjectID:    id,
		TargetAmount: decimal.Zero,
		Total:        Amount{Amount: decimal.Zero},
		Approved:     Amount{Amount: decimal.Zero},
		Pending:      Amount{Amount: decimal.Zero},
		Rejected:     Amount{Amount: decimal.Zero},
		Remaining:    decimal.Zero,
	}
}

func newSummary(p project.Project, totals []spending.Totals) Summary {
	s := zeroSummary(p.ID)
	s.ProjectName = p.Name
	s.TargetAmount = p.TargetAmount

	for _, t := range totals {
		s.Total.add(t)
		switch t.Status {
		case spending.StatusApproved:
			s.Approved.add(t)
		case spending.StatusPending:
			s.Pending.add(t)
		case spending.StatusRejected:
			s.Rejected.add(t)
		}
	}
	s.Remaining = decimal.Max(p.TargetAmount.Sub(s.Approved.Amount), decimal.Zero)
	return s
}
