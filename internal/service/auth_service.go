package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/campushub/helpdesk-service/internal/auth"
	"github.com/campushub/helpdesk-service/internal/config"
	"github.com/campushub/helpdesk-service/internal/domain"
	"github.com/campushub/helpdesk-service/internal/repository"
	apperrors "github.com/campushub/helpdesk-service/pkg/util/errorutil"
)

// SignupInput carries the fields of a new directory entry.
type SignupInput struct {
	FullName   string
	Email      string
	Password   string
	Role       domain.Role
	Department *domain.Department
}

// AuthResult is a user with a freshly issued token.
type AuthResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// AuthService coordinates signup, login and session checks.
type AuthService struct {
	users       repository.UserRepository
	tokenMgr    *auth.TokenManager
	bcryptCost  int
	managers    map[string]struct{}
	emailDomain string
	logger      *zap.Logger
}

// ProfileInput carries self-service profile changes; nil fields are kept.
type ProfileInput struct {
	FullName   *string
	ProfilePic *string
}

var studentIDPattern = regexp.MustCompile(`^b\d{7}$`)

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo repository.UserRepository
	Logger   *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	managers := make(map[string]struct{}, len(cfg.ManagerEmails))
	for _, email := range cfg.ManagerEmails {
		managers[strings.ToLower(strings.TrimSpace(email))] = struct{}{}
	}
	return &AuthService{
		users:       deps.UserRepo,
		tokenMgr:    auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		bcryptCost:  cfg.BcryptCost,
		managers:    managers,
		emailDomain: strings.ToLower(strings.TrimPrefix(strings.TrimSpace(cfg.EmailDomain), "@")),
		logger:      logger,
	}
}

// TokenManager exposes the token manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// Signup creates a directory entry and logs it in. Staff and managers must
// name a department; students never carry one.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Role == "" {
		in.Role = domain.RoleStudent
	}

	details := map[string]any{}
	if in.FullName == "" {
		details["fullName"] = "required"
	}
	if in.Email == "" {
		details["email"] = "required"
	}
	if len(in.Password) < auth.MinPasswordLength {
		details["password"] = "must be at least 6 characters"
	}
	if !in.Role.Valid() {
		details["role"] = "unknown role"
	}
	if in.Role.IsStaff() && (in.Department == nil || !in.Department.Valid()) {
		details["department"] = "required for staff and managers"
	}
	if _, ok := details["email"]; !ok {
		if msg := s.checkCampusEmail(in.Email, in.Role); msg != "" {
			details["email"] = msg
		}
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid signup", details)
	}
	if in.Role == domain.RoleManager {
		if _, ok := s.managers[in.Email]; !ok {
			return nil, apperrors.NewForbidden("manager accounts are provisioned by an administrator")
		}
	}
	if in.Role == domain.RoleStudent {
		in.Department = nil
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Email:        in.Email,
		PasswordHash: hash,
		FullName:     in.FullName,
		Role:         in.Role,
		Department:   in.Department,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, apperrors.NewConflict("email already registered", map[string]any{"email": in.Email})
		}
		return nil, apperrors.MapError(err)
	}

	s.logger.Info("user signed up", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return s.issue(user)
}

// Login authenticates by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	return s.issue(user)
}

// UpdateProfile changes the caller's display name or avatar URL.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*domain.User, error) {
	update := repository.ProfileUpdate{ProfilePic: in.ProfilePic}
	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		if name == "" {
			return nil, apperrors.NewValidationError("invalid profile", map[string]any{"fullName": "must not be empty"})
		}
		update.FullName = &name
	}
	if update.FullName == nil && update.ProfilePic == nil {
		return nil, apperrors.NewValidationError("nothing to update", nil)
	}

	user, err := s.users.UpdateProfile(ctx, userID, update)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewUnauthorized("user not found")
	}
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// ChangePassword replaces the caller's password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewUnauthorized("user not found")
	}
	if err != nil {
		return apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, current); err != nil {
		return apperrors.NewValidationError("current password is incorrect", map[string]any{"currentPassword": "incorrect"})
	}
	if len(next) < auth.MinPasswordLength {
		return apperrors.NewValidationError("invalid password", map[string]any{"newPassword": "must be at least 6 characters"})
	}

	hash, err := auth.HashPassword(next, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return apperrors.MapError(err)
	}
	s.logger.Info("password changed", zap.String("user_id", userID))
	return nil
}

// Check reloads the caller so clients see current metrics and presence.
func (s *AuthService) Check(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewUnauthorized("user not found")
	}
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// checkCampusEmail applies the campus address rules when a domain is
// configured: students sign up as b<7 digits>, staff need a 3+ char mailbox.
func (s *AuthService) checkCampusEmail(email string, role domain.Role) string {
	if s.emailDomain == "" {
		return ""
	}
	local, domainPart, ok := strings.Cut(email, "@")
	if !ok || domainPart != s.emailDomain {
		return "must be a @" + s.emailDomain + " address"
	}
	if role == domain.RoleStudent {
		if !studentIDPattern.MatchString(local) {
			return "student id must be 'b' followed by 7 digits"
		}
		return ""
	}
	if len(local) < 3 {
		return "staff mailbox must be at least 3 characters"
	}
	return ""
}

func (s *AuthService) issue(user *domain.User) (*AuthResult, error) {
	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: exp}, nil
}
