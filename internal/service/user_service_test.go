package service

import (
	"context"
	"testing"

	"github.com/spec-kit/intervention-service/internal/audit"
	"github.com/spec-kit/intervention-service/internal/auth"
	"github.com/spec-kit/intervention-service/internal/config"
	"github.com/spec-kit/intervention-service/internal/domain"
	"github.com/spec-kit/intervention-service/internal/repository/memstore"
	apperrors "github.com/spec-kit/intervention-service/pkg/util/errorutil"
)

func newUserService(t *testing.T) (*UserService, *memstore.Store, *captureRecorder) {
	t.Helper()
	store := memstore.New()
	cfg := config.Config{Auth: config.AuthConfig{JWTSecret: "secret", AccessTokenTTLMinutes: 30, BcryptCost: 4}}
	recorder := &captureRecorder{}
	svc := NewUserService(UserDependencies{
		Users:      store.Users(),
		Auth:       NewAuthService(cfg, AuthDependencies{UserRepo: store.Users()}),
		Audit:      recorder,
		BcryptCost: 4,
	})
	return svc, store, recorder
}

func TestUserLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, store, recorder := newUserService(t)

	user, err := svc.Create(ctx, UserCreateInput{
		Username:    "marta",
		DisplayName: "Marta Gil",
		Password:    "first-pass",
		Roles:       []domain.Role{domain.RoleTechnician},
	}, admin)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !user.Active || user.PasswordHash == "" {
		t.Errorf("user = %+v", user)
	}
	if _, leaked := audit.Sanitize(recorder.changes[0].After)["passwordHash"]; leaked {
		t.Error("audit snapshot keeps the password hash")
	}

	name := "Marta G."
	inactive := false
	updated, err := svc.Update(ctx, user.ID, UserUpdateInput{
		DisplayName: &name,
		Roles:       []domain.Role{domain.RoleTechnician, domain.RoleSupervisor},
		Active:      &inactive,
	}, admin)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.DisplayName != name || len(updated.Roles) != 2 || updated.Active {
		t.Errorf("updated = %+v", updated)
	}
	if techs, _ := svc.Technicians(ctx); len(techs) != 0 {
		t.Errorf("inactive user still listed as technician: %+v", techs)
	}

	if err := svc.ResetPassword(ctx, user.ID, "second-pass", admin); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	stored, _ := store.Users().GetByID(ctx, user.ID)
	if auth.ComparePassword(stored.PasswordHash, "second-pass") != nil {
		t.Error("password not replaced")
	}
	if got := len(recorder.changes); got != 3 {
		t.Errorf("audit changes = %d, expected 3", got)
	}

	all, err := svc.List(ctx, admin)
	if err != nil || len(all) != 1 {
		t.Errorf("List = %+v, %v", all, err)
	}
}

func TestUserAdministrationRules(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newUserService(t)
	manager := domain.Actor{UserID: "ges-1", Roles: []domain.Role{domain.RoleManager}}

	t.Run("managers cannot list", func(t *testing.T) {
		_, err := svc.List(ctx, manager)
		assertKind(t, err, apperrors.KindPermission)
	})
	t.Run("technicians cannot create", func(t *testing.T) {
		_, err := svc.Create(ctx, UserCreateInput{Username: "x", DisplayName: "X", Password: "p", Roles: []domain.Role{domain.RoleTechnician}}, tech1)
		assertKind(t, err, apperrors.KindPermission)
	})
	t.Run("unknown role", func(t *testing.T) {
		_, err := svc.Create(ctx, UserCreateInput{Username: "x", DisplayName: "X", Password: "p", Roles: []domain.Role{"JEFE"}}, admin)
		assertKind(t, err, apperrors.KindValidation)
	})
	t.Run("no roles", func(t *testing.T) {
		_, err := svc.Create(ctx, UserCreateInput{Username: "x", DisplayName: "X", Password: "p"}, admin)
		assertKind(t, err, apperrors.KindValidation)
	})
	t.Run("missing user", func(t *testing.T) {
		_, err := svc.Get(ctx, "nope", admin)
		assertKind(t, err, apperrors.KindNotFound)
	})
	t.Run("empty password", func(t *testing.T) {
		assertKind(t, svc.ResetPassword(ctx, "nope", "", admin), apperrors.KindValidation)
	})

	self, err := svc.Create(ctx, UserCreateInput{Username: "root", DisplayName: "Root", Password: "p", Roles: []domain.Role{domain.RoleAdmin}}, admin)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	inactive := false
	_, err = svc.Update(ctx, self.ID, UserUpdateInput{Active: &inactive}, domain.Actor{UserID: self.ID, Roles: self.Roles})
	assertKind(t, err, apperrors.KindValidation)
}
