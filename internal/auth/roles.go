package auth

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/intervention-service/internal/access"
	"github.com/spec-kit/intervention-service/internal/audit"
	"github.com/spec-kit/intervention-service/internal/domain"
	apperrors "github.com/spec-kit/intervention-service/pkg/util/errorutil"
)

// RoleGate rejects authenticated actors lacking every allowed role.
type RoleGate struct {
	recorder audit.Recorder
	logger   *zap.Logger
}

// NewRoleGate builds a gate that records denials on recorder when set.
func NewRoleGate(recorder audit.Recorder, logger *zap.Logger) *RoleGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleGate{recorder: recorder, logger: logger}
}

// Require ensures the actor carries one of the allowed roles.
func (g *RoleGate) Require(allowed ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !actor.HasAnyRole(allowed...) {
			recordDenial(c, g.recorder, g.logger, actor.UserID, access.ReasonInsufficientRoles)
			return apperrors.NewForbidden(access.ReasonInsufficientRoles)
		}
		return c.Next()
	}
}

// FieldRoles may use the intervention routes.
var FieldRoles = []domain.Role{domain.RoleAdmin, domain.RoleManager, domain.RoleSupervisor, domain.RoleTechnician}
