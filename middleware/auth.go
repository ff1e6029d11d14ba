package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/billbatista/acasinha-spend/session"
	"github.com/billbatista/acasinha-spend/user"
	"github.com/google/uuid"
)

type contextKey string

const actorKey contextKey = "actor"

// Users is the part of the user repository the middleware needs.
type Users interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// AuthMiddleware resolves the session token, from the session cookie or an
// Authorization bearer header, to the acting user.
func AuthMiddleware(sessionRepo session.Repository, users Users) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, fromCookie := sessionToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			sess, err := sessionRepo.GetByToken(r.Context(), token)
			if err != nil {
				slog.Info("invalid/expired session", "error", err)
				if fromCookie {
					http.SetCookie(w, &http.Cookie{
						Name:   session.CookieName,
						Value:  "",
						Path:   "/",
						MaxAge: -1,
					})
				}
				next.ServeHTTP(w, r)
				return
			}

			actor, err := users.GetByID(r.Context(), sess.UserID)
			if err != nil {
				slog.Error("failed to load session user", "error", err, "user_id", sess.UserID)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			if actor == nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), *actor)))
		})
	}
}

func sessionToken(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token), false
		}
	}
	if cookie, err := r.Cookie(session.CookieName); err == nil {
		return cookie.Value, true
	}
	return "", false
}

// RequireAuth answers 401 when no user was resolved.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAuthenticated(r.Context()) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithActor(ctx context.Context, actor user.User) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFrom extracts the acting user from context
func ActorFrom(ctx context.Context) (user.User, bool) {
	actor, ok := ctx.Value(actorKey).(user.User)
	return actor, ok
}

// IsAuthenticated checks if user is authenticated
func IsAuthenticated(ctx context.Context) bool {
	_, ok := ActorFrom(ctx)
	return ok
}
