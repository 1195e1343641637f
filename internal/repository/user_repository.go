package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campushub/helpdesk-service/internal/domain"
)

// UserFilter narrows directory listings.
type UserFilter struct {
	Department *domain.Department
	Roles      []domain.Role
	// IDs restricts the listing to these users; an empty non-nil slice matches nobody.
	IDs []string
	// ExcludeID drops one user, usually the caller.
	ExcludeID string
	// Search matches full name or email, case-insensitively.
	Search string
}

// UserRepository defines persistence access for the user directory.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, filter UserFilter) ([]domain.User, error)
	RecordResolution(ctx context.Context, staffID string, solved bool) (domain.PerformanceMetrics, error)
	SetMetrics(ctx context.Context, staffID string, metrics domain.PerformanceMetrics) error
	ResetMetrics(ctx context.Context, roles []domain.Role, at time.Time) (int64, error)
	SetPresence(ctx context.Context, id string, online bool, at time.Time) error
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*domain.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// ProfileUpdate holds the self-service profile fields; nil leaves a field unchanged.
type ProfileUpdate struct {
	FullName   *string
	ProfilePic *string
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, email, password_hash, full_name, profile_pic, role, department,
        total_issues, solved_issues, percentage, metrics_reset_at, is_online, last_seen, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (email, password_hash, full_name, profile_pic, role, department)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, last_seen, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		user.Email,
		user.PasswordHash,
		user.FullName,
		user.ProfilePic,
		user.Role,
		user.Department,
	).Scan(&user.ID, &user.LastSeen, &user.CreatedAt, &user.UpdatedAt)
	return translateUnique(err)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	return scanUser(r.pool.QueryRow(ctx, query, strings.ToLower(email)))
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	clauses, args := userClauses(filter)
	if filter.IDs != nil && len(filter.IDs) == 0 {
		return nil, nil
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *user)
	}
	return result, rows.Err()
}

func (r *userRepository) RecordResolution(ctx context.Context, staffID string, solved bool) (domain.PerformanceMetrics, error) {
	const query = `
        UPDATE users SET
            total_issues = total_issues + 1,
            solved_issues = solved_issues + $2,
            percentage = ROUND(((solved_issues + $2) * 100.0) / (total_issues + 1))::int,
            updated_at = NOW()
        WHERE id=$1
        RETURNING total_issues, solved_issues, percentage`

	inc := 0
	if solved {
		inc = 1
	}
	var metrics domain.PerformanceMetrics
	err := r.pool.QueryRow(ctx, query, staffID, inc).Scan(&metrics.TotalIssues, &metrics.SolvedIssues, &metrics.Percentage)
	return metrics, err
}

func (r *userRepository) SetMetrics(ctx context.Context, staffID string, metrics domain.PerformanceMetrics) error {
	const query = `
        UPDATE users SET total_issues=$2, solved_issues=$3, percentage=$4, updated_at=NOW()
        WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, staffID, metrics.TotalIssues, metrics.SolvedIssues, metrics.Percentage)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) ResetMetrics(ctx context.Context, roles []domain.Role, at time.Time) (int64, error) {
	query := `UPDATE users SET total_issues=0, solved_issues=0, percentage=0, metrics_reset_at=$1, updated_at=$1`
	args := []any{at}
	if len(roles) > 0 {
		placeholders := make([]string, len(roles))
		for i, role := range roles {
			args = append(args, role)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		query += fmt.Sprintf(" WHERE role IN (%s)", strings.Join(placeholders, ","))
	}
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *userRepository) SetPresence(ctx context.Context, id string, online bool, at time.Time) error {
	const query = `UPDATE users SET is_online=$2, last_seen=$3 WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, id, online, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*domain.User, error) {
	query := `
        UPDATE users SET
            full_name = COALESCE($2, full_name),
            profile_pic = COALESCE($3, profile_pic),
            updated_at = NOW()
        WHERE id=$1
        RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, query, id, update.FullName, update.ProfilePic))
}

func (r *userRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const query = `UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, id, passwordHash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func userClauses(filter UserFilter) ([]string, []any) {
	clauses := []string{}
	args := []any{}
	if filter.Department != nil {
		args = append(args, *filter.Department)
		clauses = append(clauses, fmt.Sprintf("department=$%d", len(args)))
	}
	if len(filter.Roles) > 0 {
		placeholders := make([]string, len(filter.Roles))
		for i, role := range filter.Roles {
			args = append(args, role)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("role IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.IDs) > 0 {
		args = append(args, filter.IDs)
		clauses = append(clauses, fmt.Sprintf("id::text = ANY($%d)", len(args)))
	}
	if filter.ExcludeID != "" {
		args = append(args, filter.ExcludeID)
		clauses = append(clauses, fmt.Sprintf("id::text <> $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		clauses = append(clauses, fmt.Sprintf("(full_name ILIKE $%d OR email ILIKE $%d)", len(args), len(args)))
	}
	return clauses, args
}

func escapeLike(raw string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(raw)
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FullName,
		&user.ProfilePic,
		&user.Role,
		&user.Department,
		&user.PerformanceMetrics.TotalIssues,
		&user.PerformanceMetrics.SolvedIssues,
		&user.PerformanceMetrics.Percentage,
		&user.MetricsResetAt,
		&user.IsOnline,
		&user.LastSeen,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}
