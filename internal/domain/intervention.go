package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaskState enumerates lifecycle stages of an intervention.
type TaskState string

const (
	TaskStatePending    TaskState = "Pendiente"
	TaskStateInProgress TaskState = "EnCurso"
	TaskStateFinished   TaskState = "Finalizada"
	TaskStateCancelled  TaskState = "Cancelada"
)

// TaskStates lists every task state in lifecycle order.
var TaskStates = []TaskState{TaskStatePending, TaskStateInProgress, TaskStateFinished, TaskStateCancelled}

// Valid reports whether s is a known task state.
func (s TaskState) Valid() bool { return oneOf(s, TaskStates) }

// ActionType enumerates the kind of work performed.
type ActionType string

const (
	ActionDiagnosis     ActionType = "Diagnostico"
	ActionRepair        ActionType = "Reparacion"
	ActionReplacement   ActionType = "Sustitucion"
	ActionConfiguration ActionType = "Configuracion"
	ActionCall          ActionType = "Llamada"
	ActionReview        ActionType = "Revision"
)

// ActionTypes lists every action type.
var ActionTypes = []ActionType{ActionDiagnosis, ActionRepair, ActionReplacement, ActionConfiguration, ActionCall, ActionReview}

// Valid reports whether a is a known action type.
func (a ActionType) Valid() bool { return oneOf(a, ActionTypes) }

// Outcome enumerates the result of an intervention.
type Outcome string

const (
	OutcomeResolved     Outcome = "Resuelto"
	OutcomeNotResolved  Outcome = "NoResuelto"
	OutcomePendingParts Outcome = "PendientePiezas"
	OutcomeEscalated    Outcome = "Escalado"
)

// Outcomes lists every outcome.
var Outcomes = []Outcome{OutcomeResolved, OutcomeNotResolved, OutcomePendingParts, OutcomeEscalated}

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool { return oneOf(o, Outcomes) }

// Location enumerates where the work took place.
type Location string

const (
	LocationRemote   Location = "Remota"
	LocationCustomer Location = "Cliente"
	LocationWorkshop Location = "Taller"
)

// Locations lists every location.
var Locations = []Location{LocationRemote, LocationCustomer, LocationWorkshop}

// Valid reports whether l is a known location.
func (l Location) Valid() bool { return oneOf(l, Locations) }

func oneOf[T comparable](value T, set []T) bool {
	for _, candidate := range set {
		if candidate == value {
			return true
		}
	}
	return false
}

// TechnicianRef is the display identity of the assigned technician.
type TechnicianRef struct {
	ID          string
	DisplayName string
}

// Intervention is a single unit of technician work against a ticket.
type Intervention struct {
	ID                 string
	TicketNumber       string
	ScheduledAt        *time.Time
	StartedAt          *time.Time
	EndedAt            *time.Time
	TechnicianID       string
	ActionType         ActionType
	Description        *string
	State              TaskState
	DurationMinutes    *int
	EstimatedCost      *decimal.Decimal
	Outcome            *Outcome
	SignatureURL       *string
	Location           *Location
	Attachments        AttachmentSet
	Materials          []Material
	Technician         TechnicianRef
	TicketTechnicianID *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Totals is the live rollup over the current material lines.
type Totals struct {
	Amount        decimal.Decimal
	MaterialCount int
}

// Totals sums the stored line totals; it never recomputes individual lines.
func (i *Intervention) Totals() Totals {
	sum := decimal.Zero
	for _, m := range i.Materials {
		sum = sum.Add(m.Total)
	}
	return Totals{Amount: sum, MaterialCount: len(i.Materials)}
}
