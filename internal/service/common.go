package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/intervention-service/internal/audit"
	"github.com/spec-kit/intervention-service/internal/repository"
	apperrors "github.com/spec-kit/intervention-service/pkg/util/errorutil"
)

// Paging defaults shared by list operations.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Field is an optional update value. Set reports whether the payload carried
// the field at all; a Set field with a nil Value clears it.
type Field[T any] struct {
	Set   bool
	Value *T
}

// SetTo returns a Field carrying v.
func SetTo[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: &v}
}

// Cleared returns a Field that clears the value.
func Cleared[T any]() Field[T] {
	return Field[T]{Set: true}
}

// apply returns the value after the update.
func (f Field[T]) apply(current *T) *T {
	if !f.Set {
		return current
	}
	return f.Value
}

// Pagination is the metadata of a listed page.
type Pagination struct {
	Page       int
	PageSize   int
	Total      int
	TotalPages int
}

// normalizePage validates a 1-based page request. Zero values select defaults.
func normalizePage(page, pageSize int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	if page < 1 {
		return 0, 0, apperrors.NewValidationError("page must be at least 1", map[string]any{"field": "page"})
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		return 0, 0, apperrors.NewValidationError("pageSize must be between 1 and 100", map[string]any{"field": "pageSize"})
	}
	return page, pageSize, nil
}

func paginate(page, pageSize, total int) Pagination {
	totalPages := 0
	if total > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	return Pagination{Page: page, PageSize: pageSize, Total: total, TotalPages: totalPages}
}

// notFoundOr maps repository.ErrNotFound onto a typed not-found error for
// resource and passes every other error through.
func notFoundOr(err error, resource, key string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(resource, map[string]any{"id": key})
	}
	return err
}

// withDetail returns err with an extra detail when it is a DomainError.
func withDetail(err error, key string, value any) error {
	var de *apperrors.DomainError
	if !errors.As(err, &de) {
		return err
	}
	details := make(map[string]any, len(de.Details)+1)
	for k, v := range de.Details {
		details[k] = v
	}
	details[key] = value
	return apperrors.NewDomainError(de.Kind, de.Message, details)
}

// outcomeOf labels an operation result for metrics.
func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	return string(apperrors.KindOf(err))
}

// finalize converts untyped failures into internal errors so nothing from the
// persistence layer leaks to callers.
func finalize(err error) error {
	if err == nil {
		return nil
	}
	var de *apperrors.DomainError
	if errors.As(err, &de) {
		return err
	}
	return apperrors.NewInternalError(err)
}

// failure finalizes err and logs it when it is an internal error.
func failure(logger *zap.Logger, op string, err error) error {
	err = finalize(err)
	if apperrors.IsKind(err, apperrors.KindInternal) {
		logger.Error(op, zap.Error(err))
	}
	return err
}

// recordChange emits an audit record; failures are logged and swallowed.
func recordChange(ctx context.Context, recorder audit.Recorder, logger *zap.Logger, change audit.Change) {
	if recorder == nil {
		return
	}
	if err := recorder.RecordChange(ctx, change); err != nil {
		logger.Warn("audit record failed",
			zap.String("entity", change.Entity),
			zap.String("entity_id", change.EntityID),
			zap.String("action", string(change.Action)),
			zap.Error(err))
	}
}
