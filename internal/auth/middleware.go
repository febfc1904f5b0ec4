package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/intervention-service/internal/audit"
	"github.com/spec-kit/intervention-service/internal/domain"
	"github.com/spec-kit/intervention-service/internal/repository"
	apperrors "github.com/spec-kit/intervention-service/pkg/util/errorutil"
)

const actorKey = "auth_actor"

// AuthMiddleware validates bearer tokens and resolves the calling actor.
type AuthMiddleware struct {
	tokens   *TokenManager
	users    repository.UserRepository
	recorder audit.Recorder
	logger   *zap.Logger
}

// NewAuthMiddleware constructs middleware. recorder may be nil.
func NewAuthMiddleware(tokens *TokenManager, users repository.UserRepository, recorder audit.Recorder, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{tokens: tokens, users: users, recorder: recorder, logger: logger}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return m.deny(c, "", "missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return m.deny(c, "", "invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return m.deny(c, "", "invalid token")
	}

	user, err := m.users.GetByID(c.UserContext(), claims.SubjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return m.deny(c, claims.SubjectID, "user not found")
		}
		return apperrors.MapError(err)
	}
	if !user.Active {
		return m.deny(c, user.ID, "user inactive")
	}

	c.Locals(actorKey, domain.Actor{
		UserID:    user.ID,
		Roles:     append([]domain.Role(nil), user.Roles...),
		IP:        c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	})
	return c.Next()
}

func (m *AuthMiddleware) deny(c *fiber.Ctx, userID, reason string) error {
	recordDenial(c, m.recorder, m.logger, userID, reason)
	return apperrors.NewUnauthorized(reason)
}

// ActorFromContext retrieves the authenticated actor.
func ActorFromContext(c *fiber.Ctx) (domain.Actor, bool) {
	actor, ok := c.Locals(actorKey).(domain.Actor)
	return actor, ok
}

func recordDenial(c *fiber.Ctx, recorder audit.Recorder, logger *zap.Logger, userID, reason string) {
	if recorder == nil {
		return
	}
	err := recorder.RecordSecurityEvent(c.UserContext(), audit.SecurityEvent{
		Type:      audit.SecurityUnauthorizedAccess,
		UserID:    userID,
		IP:        c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
		Details: map[string]any{
			"reason": reason,
			"method": c.Method(),
			"path":   c.Path(),
		},
	})
	if err != nil {
		logger.Warn("security event not recorded", zap.String("reason", reason), zap.Error(err))
	}
}
