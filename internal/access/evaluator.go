// Package access decides who may read or mutate interventions.
package access

import (
	"github.com/spec-kit/intervention-service/internal/domain"
	apperrors "github.com/spec-kit/intervention-service/pkg/util/errorutil"
)

// Action is what the actor wants to do with an intervention.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
	// ActionReassign moves an intervention to the technician in Target.AssignedTechnicianID.
	ActionReassign Action = "reassign"
)

// Capability is the capability class derived from an actor's roles.
type Capability int

const (
	CapabilityNone Capability = iota
	CapabilityTechnician
	CapabilityPrivileged
)

// Denial reasons surfaced to callers.
const (
	ReasonCreateOwnOnly     = "can only create interventions assigned to self"
	ReasonNotAssigned       = "insufficient permission to access this intervention"
	ReasonFinalizedDelete   = "cannot delete a finalized intervention"
	ReasonInsufficientRoles = "insufficient permissions"
)

// PrivilegedRoles bypass all ownership checks.
var PrivilegedRoles = []domain.Role{domain.RoleAdmin, domain.RoleManager, domain.RoleSupervisor}

// CapabilityOf classifies roles. Privilege wins over technician when both are held.
func CapabilityOf(roles []domain.Role) Capability {
	capability := CapabilityNone
	for _, role := range roles {
		for _, privileged := range PrivilegedRoles {
			if role == privileged {
				return CapabilityPrivileged
			}
		}
		if role == domain.RoleTechnician {
			capability = CapabilityTechnician
		}
	}
	return capability
}

// IsPrivileged reports whether the actor bypasses ownership checks.
func IsPrivileged(actor domain.Actor) bool {
	return CapabilityOf(actor.Roles) == CapabilityPrivileged
}

// Target describes the intervention an action applies to.
// For create, only AssignedTechnicianID is meaningful.
type Target struct {
	AssignedTechnicianID string
	TicketTechnicianID   *string
	State                domain.TaskState
}

// TargetOf builds the Target for an existing intervention.
func TargetOf(intervention *domain.Intervention) Target {
	return Target{
		AssignedTechnicianID: intervention.TechnicianID,
		TicketTechnicianID:   intervention.TicketTechnicianID,
		State:                intervention.State,
	}
}

// Check returns nil when the actor may perform action on target, otherwise a
// permission error carrying the denial reason.
func Check(actor domain.Actor, action Action, target Target) error {
	switch CapabilityOf(actor.Roles) {
	case CapabilityPrivileged:
		return nil
	case CapabilityTechnician:
		if action == ActionRead {
			return nil
		}
		return checkTechnician(actor.UserID, action, target)
	default:
		if action == ActionRead {
			return nil
		}
		return apperrors.NewForbidden(ReasonInsufficientRoles)
	}
}

func checkTechnician(actorID string, action Action, target Target) error {
	switch action {
	case ActionCreate:
		if target.AssignedTechnicianID != actorID {
			return apperrors.NewForbidden(ReasonCreateOwnOnly)
		}
		return nil
	case ActionReassign:
		if target.AssignedTechnicianID != actorID {
			return apperrors.NewForbidden(ReasonNotAssigned)
		}
		return nil
	case ActionWrite, ActionDelete:
		if !owns(actorID, target) {
			return apperrors.NewForbidden(ReasonNotAssigned)
		}
		if action == ActionDelete && target.State == domain.TaskStateFinished {
			return apperrors.NewForbidden(ReasonFinalizedDelete)
		}
		return nil
	default:
		return apperrors.NewForbidden(ReasonInsufficientRoles)
	}
}

func owns(actorID string, target Target) bool {
	if actorID == "" {
		return false
	}
	if target.AssignedTechnicianID == actorID {
		return true
	}
	return target.TicketTechnicianID != nil && *target.TicketTechnicianID == actorID
}

// Scope returns the technician id a listing must be restricted to, or nil when
// the actor sees every intervention.
func Scope(actor domain.Actor) *string {
	if IsPrivileged(actor) {
		return nil
	}
	id := actor.UserID
	return &id
}
