package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"gitlab.com/yelinaung/expense-claims/internal/logger"
	"gitlab.com/yelinaung/expense-claims/internal/models"
)

var (
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrUnauthenticated      = errors.New("authentication required")
	ErrEmailTaken           = errors.New("email already registered")
	ErrRegistrationDisabled = errors.New("registration is disabled")
	ErrInvalidEmail         = errors.New("invalid email address")
	ErrInvalidName          = errors.New("name is required")
	ErrInvalidRole          = errors.New("invalid role")
	ErrWeakPassword         = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
)

// dummyHash keeps login timing similar for unknown emails.
var dummyHash = sync.OnceValue(func() string {
	hash, _ := HashPassword("not-a-real-password")
	return hash
})

// UserStore persists users.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// SessionStore persists sessions keyed by token hash.
type SessionStore interface {
	Create(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	GetUser(ctx context.Context, tokenHash string) (*models.User, error)
	Delete(ctx context.Context, tokenHash string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// Recorder appends audit entries.
type Recorder interface {
	Record(ctx context.Context, action models.AuditAction, actingUserID string, details models.AuditDetails) (*models.AuditLogEntry, error)
}

// Config holds session and registration settings.
type Config struct {
	SessionTTL        time.Duration
	AllowRegistration bool
}

// Service issues and resolves sessions.
type Service struct {
	users    UserStore
	sessions SessionStore
	recorder Recorder
	cfg      Config
	now      func() time.Time
}

// NewService creates a Service.
func NewService(users UserStore, sessions SessionStore, recorder Recorder, cfg Config) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * 24 * time.Hour
	}
	return &Service{users: users, sessions: sessions, recorder: recorder, cfg: cfg, now: time.Now}
}

// RegisterInput is a new account as submitted.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Register creates an employee account through self-service signup.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if !s.cfg.AllowRegistration {
		return nil, ErrRegistrationDisabled
	}
	return s.CreateUser(ctx, in, models.RoleEmployee)
}

// CreateUser creates an account with the given role and records USER_REGISTER
// with the new user as actor.
func (s *Service) CreateUser(ctx context.Context, in RegisterInput, role models.Role) (*models.User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrInvalidName
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(in.Email))
	if err != nil || addr.Address != strings.TrimSpace(in.Email) {
		return nil, ErrInvalidEmail
	}
	if len([]rune(in.Password)) < MinPasswordLength {
		return nil, ErrWeakPassword
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:         name,
		Email:        addr.Address,
		Role:         role,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	logger.Log.Info().
		Str("user", logger.HashUserID(user.ID)).
		Str("role", string(role)).
		Msg("User registered")

	s.audit(ctx, user.ID, models.UserRegisteredDetails{Email: user.Email, Role: user.Role})
	return user, nil
}

// Login checks credentials and issues a session token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			CheckPassword(dummyHash(), password)
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !CheckPassword(user.PasswordHash, password) {
		logger.Log.Warn().Str("user", logger.HashUserID(user.ID)).Msg("Failed login attempt")
		return "", nil, ErrInvalidCredentials
	}

	token, err := GenerateSessionToken()
	if err != nil {
		return "", nil, err
	}
	if err := s.sessions.Create(ctx, HashToken(token), user.ID, s.now().Add(s.cfg.SessionTTL)); err != nil {
		return "", nil, fmt.Errorf("failed to create session: %w", err)
	}

	logger.Log.Info().Str("user", logger.HashUserID(user.ID)).Msg("User logged in")
	s.audit(ctx, user.ID, models.UserLoginDetails{Email: user.Email})
	return token, user, nil
}

// Resolve returns the current user for a bearer token.
func (s *Service) Resolve(ctx context.Context, token string) (models.CurrentUser, error) {
	if token == "" {
		return models.CurrentUser{}, ErrUnauthenticated
	}
	user, err := s.sessions.GetUser(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.CurrentUser{}, ErrUnauthenticated
		}
		return models.CurrentUser{}, fmt.Errorf("failed to resolve session: %w", err)
	}
	return models.CurrentUser{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role}, nil
}

// Logout revokes a session token.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.sessions.Delete(ctx, HashToken(token)); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	return nil
}

// PruneSessions removes expired sessions.
func (s *Service) PruneSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to prune sessions: %w", err)
	}
	return n, nil
}

func (s *Service) audit(ctx context.Context, userID string, details models.AuditDetails) {
	if _, err := s.recorder.Record(ctx, details.Action(), userID, details); err != nil {
		logger.Log.Error().
			Err(err).
			Str("action", string(details.Action())).
			Str("user", logger.HashUserID(userID)).
			Msg("Failed to record audit entry")
	}
}
