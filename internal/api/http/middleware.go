package http

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/spec-kit/intervention-service/internal/observability"
	apperrors "github.com/spec-kit/intervention-service/pkg/util/errorutil"
)

var kindStatus = map[apperrors.Kind]int{
	apperrors.KindValidation:   http.StatusBadRequest,
	apperrors.KindNotFound:     http.StatusNotFound,
	apperrors.KindConflict:     http.StatusConflict,
	apperrors.KindPermission:   http.StatusForbidden,
	apperrors.KindUnauthorized: http.StatusUnauthorized,
	apperrors.KindRateLimited:  http.StatusTooManyRequests,
	apperrors.KindInternal:     http.StatusInternalServerError,
}

var statusKind = map[int]apperrors.Kind{
	http.StatusBadRequest:            apperrors.KindValidation,
	http.StatusNotFound:              apperrors.KindNotFound,
	http.StatusMethodNotAllowed:      apperrors.KindNotFound,
	http.StatusConflict:              apperrors.KindConflict,
	http.StatusForbidden:             apperrors.KindPermission,
	http.StatusUnauthorized:          apperrors.KindUnauthorized,
	http.StatusTooManyRequests:       apperrors.KindRateLimited,
	http.StatusRequestEntityTooLarge: apperrors.KindValidation,
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(kind apperrors.Kind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
// The request logger sits outside error handling so it sees the rendered status.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	app.Use(requestid.New())
	app.Use(observability.RequestLogger(logger, metrics))
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(errorHandlingMiddleware(logger, metrics))
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				err = renderError(c, logger, metrics, err)
			}
		}()
		return c.Next()
	}
}

// ErrorHandler renders errors raised outside the middleware chain, such as
// oversized bodies rejected by fiber itself.
func ErrorHandler(logger *zap.Logger, metrics *observability.Metrics) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		return renderError(c, logger, metrics, err)
	}
}

func renderError(c *fiber.Ctx, logger *zap.Logger, metrics *observability.Metrics, err error) error {
	domainErr := toDomainError(err)
	status := StatusOf(domainErr.Kind)
	metrics.RecordError(routeOf(c), c.Method(), string(domainErr.Kind))

	body := fiber.Map{
		"code":    domainErr.Kind,
		"message": domainErr.Message,
	}
	if len(domainErr.Details) > 0 && domainErr.Kind != apperrors.KindInternal {
		body["details"] = domainErr.Details
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": body})
}

func toDomainError(err error) *apperrors.DomainError {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		if kind, ok := statusKind[fe.Code]; ok {
			return apperrors.NewDomainError(kind, fe.Message, nil)
		}
	}
	return apperrors.ToDomainError(err)
}

func routeOf(c *fiber.Ctx) string {
	if r := c.Route(); r != nil && r.Path != "" {
		return r.Path
	}
	return c.Path()
}

// NewApp builds the fiber app with the global middlewares attached.
func NewApp(name string, bodyLimit int, timeout time.Duration, logger *zap.Logger, metrics *observability.Metrics) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      name,
		BodyLimit:    bodyLimit,
		ErrorHandler: ErrorHandler(logger, metrics),
	})
	RegisterMiddlewares(app, logger, metrics, timeout)
	return app
}
