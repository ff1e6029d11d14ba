// Package notify delivers best-effort notifications to users. Callers hand
// notifications to a Worker and never learn whether delivery succeeded.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Notification struct {
	ID          uuid.UUID         `json:"id"`
	RecipientID uuid.UUID         `json:"recipient_id"`
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Payload     map[string]string `json:"payload,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

type Option func(*Notification)

func To(recipient uuid.UUID) Option {
	return func(n *Notification) {
		n.RecipientID = recipient
	}
}

func WithTitle(title string) Option {
	return func(n *Notification) {
		n.Title = title
	}
}

func WithBody(body string) Option {
	return func(n *Notification) {
		n.Body = body
	}
}

func WithPayload(payload map[string]string) Option {
	return func(n *Notification) {
		for k, v := range payload {
			n.Payload[k] = v
		}
	}
}

func New(opts ...Option) Notification {
	n := Notification{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
		Payload:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(&n)
	}
	return n
}

// Sender performs the actual delivery.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// Notifier accepts notifications without reporting failures.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Fanout sends the same message to every recipient, skipping duplicates and
// the ids in except.
func Fanout(ctx context.Context, notifier Notifier, recipients []uuid.UUID, except []uuid.UUID, opts ...Option) int {
	skip := make(map[uuid.UUID]bool, len(except)+len(recipients))
	for _, id := range except {
		skip[id] = true
	}

	sent := 0
	for _, id := range recipients {
		if skip[id] {
			continue
		}
		skip[id] = true
		notifier.Notify(ctx, New(append(opts, To(id))...))
		sent++
	}
	return sent
}
