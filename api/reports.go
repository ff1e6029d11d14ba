package api

import (
	"net/http"

	"github.com/billbatista/acasinha-spend/apperr"
	"github.com/billbatista/acasinha-spend/export"
	"github.com/billbatista/acasinha-spend/report"
	"github.com/google/uuid"
)

const maxBulkSummaries = 100

func (h *Handler) analytics(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.Reports.Analytics(r.Context(), actor(r), report.Range{From: from, To: to})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) pendingApprovals(w http.ResponseWriter, r *http.Request) {
	views, err := h.Reports.PendingApprovals(r.Context(), actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "projectID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.Reports.Summary(r.Context(), actor(r), projectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) bulkSummary(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ProjectIDs []uuid.UUID `json:"project_ids"`
	}
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if len(in.ProjectIDs) > maxBulkSummaries {
		writeError(w, r, apperr.BadRequest("too many project ids"))
		return
	}

	list, err := h.Reports.BulkSummary(r.Context(), actor(r), in.ProjectIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) exportMyExpenses(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	ef, err := expenseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.Reports.ExportExpenses(r.Context(), actor(r), ef, format)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) exportProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "projectID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.Reports.ExportProject(r.Context(), actor(r), projectID, format)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
