// Package audit turns lifecycle changes into sanitized audit log entries.
package audit

import (
	"context"

	"github.com/google/uuid"

	"github.com/spec-kit/intervention-service/internal/domain"
)

// Security event types recorded by the HTTP layer.
const (
	SecurityRateLimited        = "RATE_LIMITED"
	SecurityUnauthorizedAccess = "UNAUTHORIZED_ACCESS"
)

// Change is a single CREATE/UPDATE/DELETE on an audited entity.
type Change struct {
	Action   domain.AuditAction
	Entity   string
	EntityID string
	Actor    domain.Actor
	Before   map[string]any
	After    map[string]any
}

// SecurityEvent is a denied or throttled request.
type SecurityEvent struct {
	Type      string
	UserID    string
	IP        string
	UserAgent string
	Details   map[string]any
}

// Recorder is the audit sink consumed by services and middleware. Callers
// treat failures as non-fatal.
type Recorder interface {
	RecordChange(ctx context.Context, change Change) error
	RecordSecurityEvent(ctx context.Context, event SecurityEvent) error
}

// Sink persists finished entries. repository.AuditRepository satisfies it.
type Sink interface {
	Create(ctx context.Context, entry *domain.AuditEntry) error
}

type sinkRecorder struct {
	sink Sink
}

// NewRecorder returns a Recorder writing sanitized entries to sink.
func NewRecorder(sink Sink) Recorder {
	return &sinkRecorder{sink: sink}
}

func (r *sinkRecorder) RecordChange(ctx context.Context, change Change) error {
	entry := &domain.AuditEntry{
		ID:        uuid.NewString(),
		UserID:    optional(change.Actor.UserID),
		Entity:    change.Entity,
		EntityID:  change.EntityID,
		Action:    string(change.Action),
		Before:    Sanitize(change.Before),
		After:     Sanitize(change.After),
		IP:        optional(change.Actor.IP),
		UserAgent: optional(change.Actor.UserAgent),
	}
	return r.sink.Create(ctx, entry)
}

func (r *sinkRecorder) RecordSecurityEvent(ctx context.Context, event SecurityEvent) error {
	entry := &domain.AuditEntry{
		ID:        uuid.NewString(),
		UserID:    optional(event.UserID),
		Entity:    domain.EntitySecurity,
		EntityID:  event.Type,
		Action:    event.Type,
		After:     Sanitize(event.Details),
		IP:        optional(event.IP),
		UserAgent: optional(event.UserAgent),
	}
	return r.sink.Create(ctx, entry)
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
