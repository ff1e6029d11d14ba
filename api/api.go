// Package api exposes the spending services over JSON HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/billbatista/acasinha-spend/ledger"
	"github.com/billbatista/acasinha-spend/middleware"
	"github.com/billbatista/acasinha-spend/notify"
	"github.com/billbatista/acasinha-spend/project"
	"github.com/billbatista/acasinha-spend/report"
	"github.com/billbatista/acasinha-spend/session"
	"github.com/billbatista/acasinha-spend/spending"
	"github.com/billbatista/acasinha-spend/user"
	chimiddleware "github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Inbox lists stored notifications.
type Inbox interface {
	ListForRecipient(ctx context.Context, recipient uuid.UUID, limit int) ([]notify.Notification, error)
}

type Deps struct {
	Users     user.Repository
	Sessions  session.Repository
	Projects  *project.Resolver
	Spendings *spending.Service
	Ledgers   *ledger.Service
	Reports   *report.Service
	// Inbox is optional; without it the notifications route answers 404.
	Inbox Inbox
	// Health reports readiness, e.g. a database ping. Optional.
	Health func(ctx context.Context) error
}

type Handler struct {
	Deps
}

func NewHandler(d Deps) *Handler {
	return &Handler{Deps: d}
}

func NewRouter(h *Handler) http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.AuthMiddleware(h.Sessions, h.Users))

	router.Get("/health", h.health)

	router.Post("/users/register", h.register)
	router.Post("/users/login", h.login)

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		r.Post("/users/logout", h.logout)

		r.Get("/me", h.me)
		r.Patch("/me", h.updateMe)
		r.Get("/me/expenses", h.myExpenses)
		r.Get("/me/expenses/export", h.exportMyExpenses)
		r.Get("/me/analytics", h.analytics)
		r.Get("/me/pending-approvals", h.pendingApprovals)
		r.Get("/me/notifications", h.notifications)

		r.Get("/projects", h.listProjects)
		r.Post("/projects/summaries", h.bulkSummary)
		r.Route("/projects/{projectID}", func(r chi.Router) {
			r.Get("/spendings", h.listSpendings)
			r.Post("/spendings", h.addSpending)
			r.Get("/spendings/search", h.searchSpendings)
			r.Get("/summary", h.summary)
			r.Get("/export", h.exportProject)
		})

		r.Post("/spendings/{spendingID}/votes", h.vote)

		r.Get("/ledgers", h.listLedgers)
		r.Post("/ledgers", h.createLedger)
		r.Get("/ledgers/{ledgerID}", h.getLedger)
		r.Put("/ledgers/{ledgerID}", h.updateLedger)
		r.Delete("/ledgers/{ledgerID}", h.deleteLedger)
	})

	return router
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		if err := h.Health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "unavailable"})
			return
		}
	}
	w.Write([]byte("ok"))
}

func actor(r *http.Request) user.User {
	a, _ := middleware.ActorFrom(r.Context())
	return a
}
