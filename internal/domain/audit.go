package domain

import "time"

// AuditAction enumerates recorded change kinds.
type AuditAction string

const (
	AuditCreate AuditAction = "CREATE"
	AuditUpdate AuditAction = "UPDATE"
	AuditDelete AuditAction = "DELETE"
)

// Audited entity kinds.
const (
	EntityIntervention = "Intervencion"
	EntityMaterial     = "IntervencionMaterial"
	EntityTicket       = "Ticket"
	EntityClient       = "Cliente"
	EntityContract     = "Contrato"
	EntityUser         = "Usuario"
	EntitySecurity     = "Security"
)

// AuditEntry is an immutable audit trail record.
type AuditEntry struct {
	ID        string
	UserID    *string
	Entity    string
	EntityID  string
	Action    string
	Before    map[string]any
	After     map[string]any
	IP        *string
	UserAgent *string
	CreatedAt time.Time
}
