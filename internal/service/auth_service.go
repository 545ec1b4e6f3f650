package service

import (
	"context"
	"log/slog"
	"strings"

	"inkwell/internal/auth"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// AuthService registers accounts and checks credentials.
type AuthService struct {
	userRepo repository.UserRepository
	hasher   *auth.PasswordHasher
}

type RegisterInput struct {
	Email    string
	Name     string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

func NewAuthService(userRepo repository.UserRepository, hasher *auth.PasswordHasher) *AuthService {
	return &AuthService{userRepo: userRepo, hasher: hasher}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account. The very first account becomes the administrator.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (user *models.User, err error) {
	span, ctx := observability.StartSpan(ctx, "AuthService", "Register")
	defer func() { span.End(err) }()

	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user = &models.User{
		Email:    normalizeEmail(in.Email),
		Name:     strings.TrimSpace(in.Name),
		Password: hashed,
	}
	if err := s.userRepo.CreateAccount(ctx, user); err != nil {
		if models.IsCode(err, models.CodeConflict) {
			observability.AuthEvents.WithLabelValues("register", "duplicate").Inc()
			return nil, models.NewConflictError("Email already registered", ErrDuplicateEmail)
		}
		observability.AuthEvents.WithLabelValues("register", "error").Inc()
		return nil, err
	}
	if user.IsAdmin {
		middleware.Logger.InfoContext(ctx, "first account granted admin", slog.Uint64("user_id", uint64(user.ID)))
	}

	observability.AuthEvents.WithLabelValues("register", "success").Inc()
	return user, nil
}

// Login verifies credentials and returns the matching user.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (user *models.User, err error) {
	span, ctx := observability.StartSpan(ctx, "AuthService", "Login")
	defer func() { span.End(err) }()

	user, err = s.userRepo.GetByEmail(ctx, normalizeEmail(in.Email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		observability.AuthEvents.WithLabelValues("login", "unknown_email").Inc()
		return nil, models.NewUnauthorizedError("Invalid credentials", ErrUserNotFound)
	}

	ok, needsRehash, verifyErr := s.hasher.Verify(user.Password, in.Password)
	if verifyErr != nil {
		middleware.Logger.WarnContext(ctx, "stored password hash could not be verified",
			slog.Uint64("user_id", uint64(user.ID)),
			slog.String("error", verifyErr.Error()),
		)
	}
	if !ok {
		observability.AuthEvents.WithLabelValues("login", "wrong_password").Inc()
		return nil, models.NewUnauthorizedError("Invalid credentials", ErrWrongPassword)
	}

	if needsRehash {
		s.upgradeHash(ctx, user, in.Password)
	}

	observability.AuthEvents.WithLabelValues("login", "success").Inc()
	return user, nil
}

func (s *AuthService) upgradeHash(ctx context.Context, user *models.User, raw string) {
	span, ctx := observability.StartSpan(ctx, "AuthService", "UpgradeHash",
		attribute.Int64("user.id", int64(user.ID)))

	hashed, err := s.hasher.Hash(raw)
	if err == nil {
		err = s.userRepo.UpdatePassword(ctx, user.ID, hashed)
	}
	span.End(err)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "password hash upgrade failed",
			slog.Uint64("user_id", uint64(user.ID)),
			slog.String("error", err.Error()),
		)
		return
	}
	user.Password = hashed
}

// GetUser loads a user by id.
func (s *AuthService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// IsAdmin reports whether userID holds the admin flag. Unknown users are not admins.
func (s *AuthService) IsAdmin(ctx context.Context, userID uint) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.IsAdmin, nil
}

// RecordLogout counts a logout.
func (s *AuthService) RecordLogout() {
	observability.AuthEvents.WithLabelValues("logout", "success").Inc()
}
