package api

import (
	"net/http"

	"github.com/billbatista/acasinha-spend/spending"
)

func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.Projects.Accessible(r.Context(), actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (h *Handler) listSpendings(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "projectID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	from, to, err := dateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	views, err := h.Spendings.FindAll(r.Context(), actor(r), projectID, spending.ListFilter{
		Status: spending.Status(r.URL.Query().Get("status")),
		From:   from,
		To:     to,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) searchSpendings(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "projectID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := queryInt(r, "page")
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.Spendings.Search(r.Context(), actor(r), projectID, spending.SearchQuery{
		Status: spending.Status(r.URL.Query().Get("status")),
		Text:   r.URL.Query().Get("q"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) addSpending(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "projectID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var d spending.Draft
	if err := decode(r, &d); err != nil {
		writeError(w, r, err)
		return
	}
	d.ProjectID = projectID

	view, err := h.Spendings.Add(r.Context(), actor(r), d)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) vote(w http.ResponseWriter, r *http.Request) {
	spendingID, err := pathID(r, "spendingID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in struct {
		Decision spending.Decision `json:"decision"`
	}
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	view, err := h.Spendings.Vote(r.Context(), actor(r), spendingID, in.Decision)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) myExpenses(w http.ResponseWriter, r *http.Request) {
	ef, err := expenseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.Spendings.MyExpenses(r.Context(), actor(r), ef)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func expenseFilter(r *http.Request) (spending.ExpenseFilter, error) {
	var ef spending.ExpenseFilter
	var err error
	q := r.URL.Query()

	if ef.ProjectID, err = queryID(r, "projectId"); err != nil {
		return ef, err
	}
	if ef.LedgerID, err = queryID(r, "ledgerId"); err != nil {
		return ef, err
	}
	if ef.From, ef.To, err = dateRange(r); err != nil {
		return ef, err
	}
	if ef.Page, err = queryInt(r, "page"); err != nil {
		return ef, err
	}
	if ef.Limit, err = queryInt(r, "limit"); err != nil {
		return ef, err
	}
	ef.SubLedger = q.Get("subLedger")
	ef.Status = spending.Status(q.Get("status"))
	return ef, nil
}
