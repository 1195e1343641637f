package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrActiveIssueExists is returned when a sender already holds an open or assigned issue.
	ErrActiveIssueExists = errors.New("active issue already exists for sender")
	// ErrStaffAlreadyAssigned is returned when a staff member already holds an assigned issue.
	ErrStaffAlreadyAssigned = errors.New("staff already holds an assigned issue")
	// ErrTransitionRejected is returned when a conditional transition matched no row.
	ErrTransitionRejected = errors.New("issue transition rejected")
	// ErrEmailTaken is returned when a user email is already registered.
	ErrEmailTaken = errors.New("email already registered")
)

const (
	uniqueViolation = "23505"

	constraintActiveSender  = "uq_department_issues_active_sender"
	constraintAssignedStaff = "uq_department_issues_assigned_staff"
	constraintUserEmail     = "users_email_key"
)

// translateUnique maps unique violations on known constraints to sentinel errors.
func translateUnique(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case constraintActiveSender:
		return ErrActiveIssueExists
	case constraintAssignedStaff:
		return ErrStaffAlreadyAssigned
	case constraintUserEmail:
		return ErrEmailTaken
	}
	return err
}
