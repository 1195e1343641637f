package domain

import "time"

// Role enumerates what a directory user is allowed to do.
type Role string

const (
	RoleStudent Role = "student"
	RoleStaff   Role = "staff"
	RoleManager Role = "manager"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleStaff, RoleManager:
		return true
	}
	return false
}

// IsStaff reports whether r handles issues for a department (staff or manager).
func (r Role) IsStaff() bool {
	return r == RoleStaff || r == RoleManager
}

// User is a directory entry for students, staff and managers.
type User struct {
	ID                 string
	Email              string
	PasswordHash       string
	FullName           string
	ProfilePic         string
	Role               Role
	Department         *Department
	PerformanceMetrics PerformanceMetrics
	MetricsResetAt     *time.Time
	IsOnline           bool
	LastSeen           time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// InDepartment reports whether the user belongs to dept.
func (u *User) InDepartment(dept Department) bool {
	return u != nil && u.Department != nil && *u.Department == dept
}

// SenderType maps a role onto the issue sender vocabulary.
func (u *User) SenderType() SenderType {
	if u.Role == RoleStudent {
		return SenderStudent
	}
	return SenderStaff
}
