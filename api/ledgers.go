package api

import (
	"net/http"

	"github.com/billbatista/acasinha-spend/ledger"
	"github.com/google/uuid"
)

func (h *Handler) listLedgers(w http.ResponseWriter, r *http.Request) {
	projectID, err := queryID(r, "projectId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var scope *uuid.UUID
	if projectID.Valid {
		scope = &projectID.UUID
	}

	list, err := h.Ledgers.List(r.Context(), actor(r), scope)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) createLedger(w http.ResponseWriter, r *http.Request) {
	var in ledger.Input
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	created, err := h.Ledgers.Create(r.Context(), actor(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) getLedger(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "ledgerID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	found, err := h.Ledgers.Get(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (h *Handler) updateLedger(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "ledgerID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in ledger.Input
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := h.Ledgers.Update(r.Context(), actor(r), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteLedger(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "ledgerID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.Ledgers.Delete(r.Context(), actor(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
