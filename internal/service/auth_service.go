package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/intervention-service/internal/auth"
	"github.com/spec-kit/intervention-service/internal/config"
	"github.com/spec-kit/intervention-service/internal/domain"
	"github.com/spec-kit/intervention-service/internal/repository"
	apperrors "github.com/spec-kit/intervention-service/pkg/util/errorutil"
)

const invalidCredentials = "invalid credentials"

// AuthService coordinates login flows.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo repository.UserRepository
	Logger   *zap.Logger
}

// Session is the result of a successful login.
type Session struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.UserRepo,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
		logger:     logger,
	}
}

// Login authenticates a user by username and password. Unknown users,
// inactive users and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, username, password string) (*Session, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorized(invalidCredentials)
		}
		return nil, failure(s.logger, "login", err)
	}
	if !user.Active {
		return nil, apperrors.NewUnauthorized(invalidCredentials)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized(invalidCredentials)
	}
	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Roles)
	if err != nil {
		return nil, failure(s.logger, "issue token", err)
	}
	return &Session{User: user, Token: token, ExpiresAt: exp}, nil
}

// RegisterUser creates an account; used by the seeding command.
func (s *AuthService) RegisterUser(ctx context.Context, username, displayName, email, password string, roles []domain.Role) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperrors.NewValidationError("username and password are required", nil)
	}
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, failure(s.logger, "hash password", err)
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		DisplayName:  strings.TrimSpace(displayName),
		Email:        strings.TrimSpace(email),
		PasswordHash: hash,
		Roles:        roles,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("username already registered", map[string]any{"field": "username"})
		}
		return nil, failure(s.logger, "create user", err)
	}
	return user, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
