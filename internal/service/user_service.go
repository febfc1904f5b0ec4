package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/intervention-service/internal/access"
	"github.com/spec-kit/intervention-service/internal/audit"
	"github.com/spec-kit/intervention-service/internal/auth"
	"github.com/spec-kit/intervention-service/internal/domain"
	"github.com/spec-kit/intervention-service/internal/repository"
	apperrors "github.com/spec-kit/intervention-service/pkg/util/errorutil"
)

// UserService administers accounts. Everything except Technicians is
// reserved to administrators.
type UserService struct {
	users      repository.UserRepository
	auth       *AuthService
	audit      audit.Recorder
	bcryptCost int
	logger     *zap.Logger
}

// UserDependencies bundles collaborators for the user service.
type UserDependencies struct {
	Users      repository.UserRepository
	Auth       *AuthService
	Audit      audit.Recorder
	BcryptCost int
	Logger     *zap.Logger
}

// UserCreateInput describes a new account.
type UserCreateInput struct {
	Username    string
	DisplayName string
	Email       string
	Password    string
	Roles       []domain.Role
}

// UserUpdateInput carries the fields an administrator may change. Nil leaves
// a field untouched.
type UserUpdateInput struct {
	DisplayName *string
	Email       *string
	Roles       []domain.Role
	Active      *bool
}

// NewUserService constructs the service.
func NewUserService(deps UserDependencies) *UserService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		users:      deps.Users,
		auth:       deps.Auth,
		audit:      deps.Audit,
		bcryptCost: deps.BcryptCost,
		logger:     logger,
	}
}

func requireAdmin(actor domain.Actor) error {
	if !actor.HasRole(domain.RoleAdmin) {
		return apperrors.NewForbidden(access.ReasonInsufficientRoles)
	}
	return nil
}

func validRoles(roles []domain.Role) error {
	if len(roles) == 0 {
		return apperrors.NewValidationError("at least one role is required", map[string]any{"field": "roles"})
	}
	for _, role := range roles {
		if !role.Valid() {
			return apperrors.NewValidationError("unknown role "+string(role), map[string]any{"field": "roles"})
		}
	}
	return nil
}

// List returns every account ordered by username.
func (s *UserService) List(ctx context.Context, actor domain.Actor) ([]domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx, repository.UserFilter{})
	if err != nil {
		return nil, failure(s.logger, "list users", err)
	}
	return users, nil
}

// Get returns one account.
func (s *UserService) Get(ctx context.Context, id string, actor domain.Actor) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

func (s *UserService) load(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, failure(s.logger, "get user", notFoundOr(err, "user", id))
	}
	return user, nil
}

// Create registers an account. Usernames are unique.
func (s *UserService) Create(ctx context.Context, input UserCreateInput, actor domain.Actor) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.DisplayName) == "" {
		return nil, apperrors.NewValidationError("displayName is required", map[string]any{"field": "displayName"})
	}
	if err := validRoles(input.Roles); err != nil {
		return nil, err
	}
	user, err := s.auth.RegisterUser(ctx, input.Username, input.DisplayName, input.Email, input.Password, input.Roles)
	if err != nil {
		return nil, err
	}
	recordChange(ctx, s.audit, s.logger, audit.Change{
		Action:   domain.AuditCreate,
		Entity:   domain.EntityUser,
		EntityID: user.ID,
		Actor:    actor,
		After:    audit.UserSnapshot(user),
	})
	return user, nil
}

// Update changes profile fields, roles or the active flag.
func (s *UserService) Update(ctx context.Context, id string, input UserUpdateInput, actor domain.Actor) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	before := audit.UserSnapshot(user)

	if input.DisplayName != nil {
		name := strings.TrimSpace(*input.DisplayName)
		if name == "" {
			return nil, apperrors.NewValidationError("displayName cannot be empty", map[string]any{"field": "displayName"})
		}
		user.DisplayName = name
	}
	if input.Email != nil {
		user.Email = strings.TrimSpace(*input.Email)
	}
	if input.Roles != nil {
		if err := validRoles(input.Roles); err != nil {
			return nil, err
		}
		user.Roles = input.Roles
	}
	if input.Active != nil {
		if !*input.Active && user.ID == actor.UserID {
			return nil, apperrors.NewValidationError("administrators cannot deactivate themselves", map[string]any{"field": "isActive"})
		}
		user.Active = *input.Active
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, failure(s.logger, "update user", notFoundOr(err, "user", id))
	}
	recordChange(ctx, s.audit, s.logger, audit.Change{
		Action:   domain.AuditUpdate,
		Entity:   domain.EntityUser,
		EntityID: user.ID,
		Actor:    actor,
		Before:   before,
		After:    audit.UserSnapshot(user),
	})
	return user, nil
}

// ResetPassword replaces the password of an account.
func (s *UserService) ResetPassword(ctx context.Context, id, password string, actor domain.Actor) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if password == "" {
		return apperrors.NewValidationError("password is required", map[string]any{"field": "password"})
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return failure(s.logger, "hash password", err)
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return failure(s.logger, "reset password", notFoundOr(err, "user", id))
	}
	recordChange(ctx, s.audit, s.logger, audit.Change{
		Action:   domain.AuditUpdate,
		Entity:   domain.EntityUser,
		EntityID: user.ID,
		Actor:    actor,
		After:    map[string]any{"passwordReset": true},
	})
	return nil
}

// Technicians lists active technicians ordered by username, for assignment pickers.
func (s *UserService) Technicians(ctx context.Context) ([]domain.User, error) {
	role := domain.RoleTechnician
	users, err := s.users.List(ctx, repository.UserFilter{Role: &role, ActiveOnly: true})
	if err != nil {
		return nil, failure(s.logger, "list technicians", err)
	}
	return users, nil
}
