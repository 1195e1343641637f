package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campushub/helpdesk-service/internal/domain"
)

// MessageRepository manages the append-only reply thread of an issue.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.ThreadMessage) error
	ListByIssue(ctx context.Context, issueID string) ([]domain.ThreadMessage, error)
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository builds repository.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

func (r *messageRepository) Create(ctx context.Context, msg *domain.ThreadMessage) error {
	const query = `
        INSERT INTO issue_messages (issue_id, sender_id, sender_name, sender_type, text, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id`
	return r.pool.QueryRow(ctx, query,
		msg.IssueID,
		msg.SenderID,
		msg.SenderName,
		msg.SenderType,
		msg.Text,
		msg.CreatedAt,
	).Scan(&msg.ID)
}

func (r *messageRepository) ListByIssue(ctx context.Context, issueID string) ([]domain.ThreadMessage, error) {
	const query = `
        SELECT id, issue_id, sender_id, sender_name, sender_type, text, created_at
        FROM issue_messages WHERE issue_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ThreadMessage
	for rows.Next() {
		var msg domain.ThreadMessage
		if err := rows.Scan(
			&msg.ID,
			&msg.IssueID,
			&msg.SenderID,
			&msg.SenderName,
			&msg.SenderType,
			&msg.Text,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}
