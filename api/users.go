package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/billbatista/acasinha-spend/apperr"
	"github.com/billbatista/acasinha-spend/session"
	"github.com/billbatista/acasinha-spend/user"
)

const notificationLimit = 50

var errInvalidCredentials = apperr.BadRequest("invalid email or password")

type credentials struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	User      *user.User `json:"user"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	registered, err := h.Users.Register(r.Context(), in.Name, in.Email, in.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.startSession(w, r, registered, http.StatusCreated)
	slog.Info("user registered", "user_id", registered.ID)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	found, err := h.Users.GetByEmail(r.Context(), in.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if found == nil || h.Users.VerifyPassword(found.PasswordHash, in.Password) != nil {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: errInvalidCredentials.Error()})
		return
	}

	h.startSession(w, r, found, http.StatusOK)
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, u *user.User, status int) {
	sess, err := h.Sessions.Create(r.Context(), u.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, status, authResponse{User: u, Token: sess.Token, ExpiresAt: sess.ExpiresAt})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	token := ""
	if v, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		token = strings.TrimSpace(v)
	} else if cookie, err := r.Cookie(session.CookieName); err == nil {
		token = cookie.Value
	}
	if token != "" {
		if err := h.Sessions.Delete(r.Context(), token); err != nil {
			slog.Error("failed to delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:   session.CookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	a := actor(r)
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) updateMe(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name string `json:"name"`
	}
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		writeError(w, r, apperr.BadRequest("name can't be blank"))
		return
	}

	a := actor(r)
	if err := h.Users.UpdateName(r.Context(), a.ID, name); err != nil {
		writeError(w, r, err)
		return
	}
	a.Name = name
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) notifications(w http.ResponseWriter, r *http.Request) {
	if h.Inbox == nil {
		writeError(w, r, apperr.NotFound("notifications are not stored"))
		return
	}

	list, err := h.Inbox.ListForRecipient(r.Context(), actor(r).ID, notificationLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
