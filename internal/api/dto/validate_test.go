package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/campushub/helpdesk-service/pkg/util/errorutil"
)

func TestValidatorSignup(t *testing.T) {
	v := NewValidator()
	dept := "IT department"

	require.NoError(t, v.Struct(SignupRequest{
		FullName:   "Ada Staff",
		Email:      "ada@campus.edu",
		Password:   "secret1",
		Role:       "staff",
		Department: &dept,
	}))

	bad := "Cafeteria"
	err := v.Struct(SignupRequest{
		FullName:   "A",
		Email:      "not-an-email",
		Password:   "123",
		Role:       "janitor",
		Department: &bad,
	})
	require.Error(t, err)
	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeValidation, domainErr.Code)
	assert.Equal(t, "unknown department", domainErr.Details["department"])
	assert.Equal(t, "unknown role", domainErr.Details["role"])
	assert.Equal(t, "must be a valid email", domainErr.Details["email"])
	assert.Contains(t, domainErr.Details, "password")
	assert.Contains(t, domainErr.Details, "fullName")
}

func TestValidatorSendMessage(t *testing.T) {
	v := NewValidator()
	assert.NoError(t, v.Struct(SendMessageRequest{Text: "printer is broken"}))
	assert.True(t, apperrors.HasCode(v.Struct(SendMessageRequest{}), apperrors.CodeValidation))
}

func TestParsedDepartment(t *testing.T) {
	title := "EU(Exam Unit)"
	req := SignupRequest{Department: &title}
	require.NotNil(t, req.ParsedDepartment())
	assert.Equal(t, "EU", string(*req.ParsedDepartment()))
	assert.Nil(t, SignupRequest{}.ParsedDepartment())
}
