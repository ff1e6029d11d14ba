package notify

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
)

// sqlInbox stores notifications for the recipients to read later.
type sqlInbox struct {
	db *sql.DB
}

func NewSQLInbox(db *sql.DB) *sqlInbox {
	return &sqlInbox{
		db: db,
	}
}

func (s *sqlInbox) Send(ctx context.Context, n Notification) error {
	jsonPayload, err := json.Marshal(n.Payload)
	if err != nil {
		return err
	}
	statement := `INSERT INTO notifications (id, recipient_id, title, body, payload, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = s.db.ExecContext(ctx, statement, n.ID, n.RecipientID, n.Title, n.Body, jsonPayload, n.CreatedAt)
	return err
}

func (s *sqlInbox) ListForRecipient(ctx context.Context, recipient uuid.UUID, limit int) ([]Notification, error) {
	query := `SELECT id, recipient_id, title, body, payload, created_at FROM notifications
              WHERE recipient_id = $1 ORDER BY created_at DESC LIMIT $2`
	result, err := s.db.QueryContext(ctx, query, recipient, limit)
	if err != nil {
		return nil, err
	}
	defer result.Close()

	notifications := make([]Notification, 0)
	for result.Next() {
		var n Notification
		var jsonPayload []byte
		if err := result.Scan(&n.ID, &n.RecipientID, &n.Title, &n.Body, &jsonPayload, &n.CreatedAt); err != nil {
			return notifications, err
		}
		if err := json.Unmarshal(jsonPayload, &n.Payload); err != nil {
			return notifications, err
		}
		notifications = append(notifications, n)
	}

	return notifications, result.Err()
}
