package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/intervention-service/internal/api/dto"
	"github.com/spec-kit/intervention-service/internal/auth"
	"github.com/spec-kit/intervention-service/internal/billing"
	"github.com/spec-kit/intervention-service/internal/domain"
	"github.com/spec-kit/intervention-service/internal/service"
	apperrors "github.com/spec-kit/intervention-service/pkg/util/errorutil"
)

func actorFrom(c *fiber.Ctx) (domain.Actor, error) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return actor, nil
}

// parseBody decodes the JSON body into req and validates its tags.
func parseBody(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return dto.Validate(req)
}

func toField[T any](n dto.Nullable[T]) service.Field[T] {
	return service.Field[T]{Set: n.Set, Value: n.Value}
}

func enumField[T ~string](n dto.Nullable[string]) service.Field[T] {
	if !n.Set || n.Value == nil {
		return service.Field[T]{Set: n.Set}
	}
	return service.SetTo(T(*n.Value))
}

func enumPtr[T ~string](s *string) *T {
	if s == nil {
		return nil
	}
	v := T(*s)
	return &v
}

func parseTime(field string, value *string) (*time.Time, error) {
	t, err := billing.ParseOptionalTimestamp(value)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid timestamp", map[string]any{"field": field})
	}
	return t, nil
}

func timeField(field string, n dto.Nullable[string]) (service.Field[time.Time], error) {
	if !n.Set || n.Value == nil {
		return service.Field[time.Time]{Set: n.Set}, nil
	}
	t, err := parseTime(field, n.Value)
	if err != nil {
		return service.Field[time.Time]{}, err
	}
	return service.SetTo(*t), nil
}

func optionalQuery(c *fiber.Ctx, key string) *string {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil
	}
	return &value
}

func paging(c *fiber.Ctx) (int, int, error) {
	page := c.QueryInt("page", 0)
	pageSize := c.QueryInt("pageSize", 0)
	if c.Query("page") != "" && page == 0 {
		return 0, 0, apperrors.NewValidationError("page must be at least 1", map[string]any{"field": "page"})
	}
	if c.Query("pageSize") != "" && pageSize == 0 {
		return 0, 0, apperrors.NewValidationError("pageSize must be between 1 and 100", map[string]any{"field": "pageSize"})
	}
	return page, pageSize, nil
}

func paginationResponse(p service.Pagination) dto.PaginationResponse {
	return dto.PaginationResponse{Page: p.Page, PageSize: p.PageSize, Total: p.Total, TotalPages: p.TotalPages}
}
