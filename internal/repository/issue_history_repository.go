package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campushub/helpdesk-service/internal/domain"
)

// HistoryRepository stores transition audit entries.
type HistoryRepository interface {
	Create(ctx context.Context, entry *domain.IssueHistory) error
	ListByIssue(ctx context.Context, issueID string) ([]domain.IssueHistory, error)
}

type historyRepository struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository builds repository.
func NewHistoryRepository(pool *pgxpool.Pool) HistoryRepository {
	return &historyRepository{pool: pool}
}

func (r *historyRepository) Create(ctx context.Context, entry *domain.IssueHistory) error {
	const query = `
        INSERT INTO issue_history (issue_id, actor_id, from_status, to_status, reason, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id`
	return r.pool.QueryRow(ctx, query,
		entry.IssueID,
		entry.ActorID,
		entry.FromStatus,
		entry.ToStatus,
		entry.Reason,
		entry.CreatedAt,
	).Scan(&entry.ID)
}

func (r *historyRepository) ListByIssue(ctx context.Context, issueID string) ([]domain.IssueHistory, error) {
	const query = `
        SELECT id, issue_id, actor_id, from_status, to_status, reason, created_at
        FROM issue_history WHERE issue_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.IssueHistory
	for rows.Next() {
		var entry domain.IssueHistory
		if err := rows.Scan(
			&entry.ID,
			&entry.IssueID,
			&entry.ActorID,
			&entry.FromStatus,
			&entry.ToStatus,
			&entry.Reason,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
