package notify

import (
	"context"
	"log/slog"
)

// LogSender only records notifications in the application log. Used when no
// broker is configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, n Notification) error {
	slog.InfoContext(ctx, "notification", "recipient_id", n.RecipientID, "title", n.Title, "body", n.Body)
	return nil
}

// MultiSender delivers to every sender and returns the first error.
type MultiSender []Sender

func (m MultiSender) Send(ctx context.Context, n Notification) error {
	var first error
	for _, s := range m {
		if err := s.Send(ctx, n); err != nil && first == nil {
			first = err
		}
	}
	return first
}
