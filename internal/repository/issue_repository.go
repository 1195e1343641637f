package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campushub/helpdesk-service/internal/domain"
)

// FeedView selects which slice of a department's issues a caller may see.
type FeedView int

const (
	// FeedFull returns every issue in the department.
	FeedFull FeedView = iota
	// FeedSender returns only issues opened by ViewerID.
	FeedSender
	// FeedStaffQueue returns the open queue plus issues assigned to ViewerID.
	FeedStaffQueue
)

// IssueFilter describes a department feed query.
type IssueFilter struct {
	Department domain.Department
	View       FeedView
	ViewerID   string
}

// ExpireFilter scopes an overdue sweep. Nil fields are unconstrained.
type ExpireFilter struct {
	IssueID    *string
	Department *domain.Department
	StaffID    *string
	SenderID   *string
}

// IssueCounts aggregates a department's issues by status.
type IssueCounts struct {
	Total     int
	Open      int
	Assigned  int
	Solved    int
	NotSolved int
}

// DailyCount is the number of issues created on one UTC day.
type DailyCount struct {
	Day    time.Time
	Total  int
	Solved int
}

// IssueRepository is the department issue ledger.
//
// Every transition method is a single conditional write; ErrTransitionRejected
// means the precondition did not hold at write time.
type IssueRepository interface {
	Create(ctx context.Context, issue *domain.Issue) error
	GetByID(ctx context.Context, id string) (*domain.Issue, error)
	FindActiveForSender(ctx context.Context, dept domain.Department, senderID string) (*domain.Issue, error)
	FindAssignedForStaff(ctx context.Context, dept domain.Department, staffID string) (*domain.Issue, error)
	ListByDepartment(ctx context.Context, filter IssueFilter) ([]domain.Issue, error)
	Accept(ctx context.Context, id, staffID, staffName string, at time.Time) (*domain.Issue, error)
	Solve(ctx context.Context, id, staffID string, at, cutoff time.Time) (*domain.Issue, error)
	MarkNotSolved(ctx context.Context, id string, at time.Time) (*domain.Issue, error)
	ExpireAssigned(ctx context.Context, filter ExpireFilter, cutoff, at time.Time) ([]domain.Issue, error)
	CountResolvedForStaff(ctx context.Context, staffID string, since *time.Time) (total, solved int, err error)
	CountByDepartment(ctx context.Context, dept domain.Department) (IssueCounts, error)
	DailyCounts(ctx context.Context, dept domain.Department, from, to time.Time) ([]DailyCount, error)
}

type issueRepository struct {
	pool *pgxpool.Pool
}

// NewIssueRepository instantiates the Postgres ledger.
func NewIssueRepository(pool *pgxpool.Pool) IssueRepository {
	return &issueRepository{pool: pool}
}

const issueColumns = `id, department, sender_id, sender_name, sender_type, text, status,
        assigned_staff_id, assigned_staff_name, created_at, accepted_at, solved_at, failed_at, updated_at`

func (r *issueRepository) Create(ctx context.Context, issue *domain.Issue) error {
	const query = `
        INSERT INTO department_issues (department, sender_id, sender_name, sender_type, text, status, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
        RETURNING id, updated_at`
	err := r.pool.QueryRow(ctx, query,
		issue.Department,
		issue.SenderID,
		issue.SenderName,
		issue.SenderType,
		issue.Text,
		issue.Status,
		issue.CreatedAt,
	).Scan(&issue.ID, &issue.UpdatedAt)
	return translateUnique(err)
}

func (r *issueRepository) GetByID(ctx context.Context, id string) (*domain.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM department_issues WHERE id=$1`
	return scanIssue(r.pool.QueryRow(ctx, query, id))
}

func (r *issueRepository) FindActiveForSender(ctx context.Context, dept domain.Department, senderID string) (*domain.Issue, error) {
	query := `SELECT ` + issueColumns + `
        FROM department_issues
        WHERE department=$1 AND sender_id=$2 AND status IN ('open','assigned')
        ORDER BY created_at DESC LIMIT 1`
	return scanIssue(r.pool.QueryRow(ctx, query, dept, senderID))
}

func (r *issueRepository) FindAssignedForStaff(ctx context.Context, dept domain.Department, staffID string) (*domain.Issue, error) {
	query := `SELECT ` + issueColumns + `
        FROM department_issues
        WHERE department=$1 AND assigned_staff_id=$2 AND status='assigned'
        ORDER BY accepted_at DESC LIMIT 1`
	return scanIssue(r.pool.QueryRow(ctx, query, dept, staffID))
}

func (r *issueRepository) ListByDepartment(ctx context.Context, filter IssueFilter) ([]domain.Issue, error) {
	args := []any{filter.Department}
	clauses := []string{"department=$1"}

	switch filter.View {
	case FeedSender:
		args = append(args, filter.ViewerID)
		clauses = append(clauses, fmt.Sprintf("sender_id=$%d", len(args)))
	case FeedStaffQueue:
		args = append(args, filter.ViewerID)
		clauses = append(clauses, fmt.Sprintf("(status='open' OR (status='assigned' AND assigned_staff_id=$%d))", len(args)))
	case FeedFull:
	default:
		return nil, fmt.Errorf("unknown feed view %d", filter.View)
	}

	query := fmt.Sprintf(`SELECT %s FROM department_issues WHERE %s ORDER BY created_at ASC, id ASC`,
		issueColumns, strings.Join(clauses, " AND "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIssues(rows)
}

func (r *issueRepository) Accept(ctx context.Context, id, staffID, staffName string, at time.Time) (*domain.Issue, error) {
	query := `
        UPDATE department_issues
        SET status='assigned', assigned_staff_id=$2, assigned_staff_name=$3, accepted_at=$4, updated_at=$4
        WHERE id=$1 AND status='open'
        RETURNING ` + issueColumns
	issue, err := scanIssue(r.pool.QueryRow(ctx, query, id, staffID, staffName, at))
	return issue, transitionError(err)
}

func (r *issueRepository) Solve(ctx context.Context, id, staffID string, at, cutoff time.Time) (*domain.Issue, error) {
	query := `
        UPDATE department_issues
        SET status='solved', solved_at=$3, updated_at=$3
        WHERE id=$1 AND status='assigned' AND assigned_staff_id=$2 AND accepted_at > $4
        RETURNING ` + issueColumns
	issue, err := scanIssue(r.pool.QueryRow(ctx, query, id, staffID, at, cutoff))
	return issue, transitionError(err)
}

func (r *issueRepository) MarkNotSolved(ctx context.Context, id string, at time.Time) (*domain.Issue, error) {
	query := `
        UPDATE department_issues
        SET status='not_solved', failed_at=$2, updated_at=$2
        WHERE id=$1 AND status='assigned'
        RETURNING ` + issueColumns
	issue, err := scanIssue(r.pool.QueryRow(ctx, query, id, at))
	return issue, transitionError(err)
}

func (r *issueRepository) ExpireAssigned(ctx context.Context, filter ExpireFilter, cutoff, at time.Time) ([]domain.Issue, error) {
	args := []any{at, cutoff}
	clauses := []string{"status='assigned'", "accepted_at <= $2"}

	if filter.IssueID != nil {
		args = append(args, *filter.IssueID)
		clauses = append(clauses, fmt.Sprintf("id=$%d", len(args)))
	}
	if filter.Department != nil {
		args = append(args, *filter.Department)
		clauses = append(clauses, fmt.Sprintf("department=$%d", len(args)))
	}
	if filter.StaffID != nil {
		args = append(args, *filter.StaffID)
		clauses = append(clauses, fmt.Sprintf("assigned_staff_id=$%d", len(args)))
	}
	if filter.SenderID != nil {
		args = append(args, *filter.SenderID)
		clauses = append(clauses, fmt.Sprintf("sender_id=$%d", len(args)))
	}

	query := fmt.Sprintf(`
        UPDATE department_issues
        SET status='not_solved', failed_at=$1, updated_at=$1
        WHERE %s
        RETURNING %s`, strings.Join(clauses, " AND "), issueColumns)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIssues(rows)
}

func (r *issueRepository) CountResolvedForStaff(ctx context.Context, staffID string, since *time.Time) (int, int, error) {
	const query = `
        SELECT COUNT(*), COUNT(*) FILTER (WHERE status='solved')
        FROM department_issues
        WHERE assigned_staff_id=$1
          AND status IN ('solved','not_solved')
          AND ($2::timestamptz IS NULL OR COALESCE(solved_at, failed_at) > $2::timestamptz)`
	var total, solved int
	err := r.pool.QueryRow(ctx, query, staffID, since).Scan(&total, &solved)
	return total, solved, err
}

func (r *issueRepository) CountByDepartment(ctx context.Context, dept domain.Department) (IssueCounts, error) {
	const query = `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE status='open'),
               COUNT(*) FILTER (WHERE status='assigned'),
               COUNT(*) FILTER (WHERE status='solved'),
               COUNT(*) FILTER (WHERE status='not_solved')
        FROM department_issues WHERE department=$1`
	var counts IssueCounts
	err := r.pool.QueryRow(ctx, query, dept).Scan(
		&counts.Total,
		&counts.Open,
		&counts.Assigned,
		&counts.Solved,
		&counts.NotSolved,
	)
	return counts, err
}

func (r *issueRepository) DailyCounts(ctx context.Context, dept domain.Department, from, to time.Time) ([]DailyCount, error) {
	const query = `
        SELECT date_trunc('day', created_at AT TIME ZONE 'UTC') AS day,
               COUNT(*),
               COUNT(*) FILTER (WHERE status='solved')
        FROM department_issues
        WHERE department=$1 AND created_at >= $2 AND created_at < $3
        GROUP BY day
        ORDER BY day ASC`
	rows, err := r.pool.Query(ctx, query, dept, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []DailyCount
	for rows.Next() {
		var day DailyCount
		if err := rows.Scan(&day.Day, &day.Total, &day.Solved); err != nil {
			return nil, err
		}
		day.Day = time.Date(day.Day.Year(), day.Day.Month(), day.Day.Day(), 0, 0, 0, 0, time.UTC)
		result = append(result, day)
	}
	return result, rows.Err()
}

func transitionError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrTransitionRejected
	}
	return translateUnique(err)
}

func scanIssue(row pgx.Row) (*domain.Issue, error) {
	var issue domain.Issue
	if err := row.Scan(
		&issue.ID,
		&issue.Department,
		&issue.SenderID,
		&issue.SenderName,
		&issue.SenderType,
		&issue.Text,
		&issue.Status,
		&issue.AssignedStaff,
		&issue.AssignedStaffName,
		&issue.CreatedAt,
		&issue.AcceptedAt,
		&issue.SolvedAt,
		&issue.FailedAt,
		&issue.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &issue, nil
}

func scanIssues(rows pgx.Rows) ([]domain.Issue, error) {
	var result []domain.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *issue)
	}
	return result, rows.Err()
}
