package domain

import "time"

// Token describes an issued access token.
type Token struct {
	SubjectID  string
	Role       Role
	Department *Department
	ExpiresAt  time.Time
	IssuedAt   time.Time
}
