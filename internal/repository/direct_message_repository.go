package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campushub/helpdesk-service/internal/domain"
)

// DirectMessageRepository stores private user-to-user conversations.
type DirectMessageRepository interface {
	Create(ctx context.Context, msg *domain.DirectMessage) error
	ListBetween(ctx context.Context, userA, userB string) ([]domain.DirectMessage, error)
	Partners(ctx context.Context, userID string) ([]string, error)
}

type directMessageRepository struct {
	pool *pgxpool.Pool
}

// NewDirectMessageRepository builds repository.
func NewDirectMessageRepository(pool *pgxpool.Pool) DirectMessageRepository {
	return &directMessageRepository{pool: pool}
}

func (r *directMessageRepository) Create(ctx context.Context, msg *domain.DirectMessage) error {
	const query = `
        INSERT INTO direct_messages (sender_id, receiver_id, text, image, created_at)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id`
	return r.pool.QueryRow(ctx, query,
		msg.SenderID,
		msg.ReceiverID,
		msg.Text,
		msg.Image,
		msg.CreatedAt,
	).Scan(&msg.ID)
}

func (r *directMessageRepository) ListBetween(ctx context.Context, userA, userB string) ([]domain.DirectMessage, error) {
	const query = `
        SELECT id, sender_id, receiver_id, text, image, created_at
        FROM direct_messages
        WHERE (sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1)
        ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, userA, userB)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.DirectMessage
	for rows.Next() {
		msg, err := scanDirectMessage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *msg)
	}
	return result, rows.Err()
}

func (r *directMessageRepository) Partners(ctx context.Context, userID string) ([]string, error) {
	const query = `
        SELECT DISTINCT CASE WHEN sender_id=$1 THEN receiver_id ELSE sender_id END::text AS peer
        FROM direct_messages
        WHERE sender_id=$1 OR receiver_id=$1
        ORDER BY peer`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	partners := []string{}
	for rows.Next() {
		var peer string
		if err := rows.Scan(&peer); err != nil {
			return nil, err
		}
		partners = append(partners, peer)
	}
	return partners, rows.Err()
}

func scanDirectMessage(row pgx.Row) (*domain.DirectMessage, error) {
	var msg domain.DirectMessage
	if err := row.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Text, &msg.Image, &msg.CreatedAt); err != nil {
		return nil, err
	}
	return &msg, nil
}
