package spending

import (
	"time"

	"github.com/billbatista/acasinha-spend/detail"
	"github.com/billbatista/acasinha-spend/ledger"
	"github.com/billbatista/acasinha-spend/project"
	"github.com/google/uuid"
)

type Person struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type ApprovalSummary struct {
	RequiredApproverCount int      `json:"required_approver_count"`
	ApprovedBy            []Person `json:"approved_by"`
	WaitingFor            []Person `json:"waiting_for"`
}

// View is a spending as returned to clients and exporters.
type View struct {
	Spending
	ProjectName     string          `json:"project_name"`
	AddedByName     string          `json:"added_by_name"`
	FundedByName    string          `json:"funded_by_name"`
	Date            string          `json:"date"`
	Time            string          `json:"time"`
	Detail          detail.Bundle   `json:"detail"`
	ApprovalSummary ApprovalSummary `json:"approval_summary"`
}

// Summarize computes who approved and who is still expected to, against the
// roster's current eligible voters.
func Summarize(s Spending, roster *project.Roster) ApprovalSummary {
	eligible := roster.EligibleVoters()
	summary := ApprovalSummary{
		RequiredApproverCount: len(eligible),
		ApprovedBy:            []Person{},
		WaitingFor:            []Person{},
	}

	approved := make(map[uuid.UUID]bool)
	for _, id := range s.ApprovedBy(eligible) {
		approved[id] = true
		summary.ApprovedBy = append(summary.ApprovedBy, Person{ID: id, Name: roster.Name(id)})
	}

	if s.Status != StatusPending {
		return summary
	}
	for _, id := range eligible {
		if !approved[id] {
			summary.WaitingFor = append(summary.WaitingFor, Person{ID: id, Name: roster.Name(id)})
		}
	}
	return summary
}

// DetailOf normalizes the display fields of s. current is the ledger s
// references when it still exists.
func DetailOf(s Spending, current *ledger.Ledger) detail.Bundle {
	in := detail.Input{
		Category:     string(s.Category),
		LedgerID:     s.LedgerID,
		LedgerName:   s.LedgerName,
		SubLedger:    s.SubLedger,
		ProductName:  s.ProductName,
		PaidToPerson: s.PaidToPerson,
		PaidToPlace:  s.PaidToPlace,
	}
	if current != nil {
		in.LedgerName = current.Name
		in.Catalog = current.SubLedgers
	}
	return detail.Normalize(in)
}

func newView(s Spending, roster *project.Roster, current *ledger.Ledger) View {
	spentAt := s.SpentAt.UTC()
	return View{
		Spending:        s,
		ProjectName:     roster.Project.Name,
		AddedByName:     roster.Name(s.AddedBy),
		FundedByName:    roster.Name(s.Funder()),
		Date:            spentAt.Format(time.DateOnly),
		Time:            spentAt.Format("15:04"),
		Detail:          DetailOf(s, current),
		ApprovalSummary: Summarize(s, roster),
	}
}
