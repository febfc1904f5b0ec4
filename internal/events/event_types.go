package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/intervention-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventInterventionCreated          EventType = "intervention_created"
	EventInterventionStateChanged     EventType = "intervention_state_changed"
	EventInterventionMaterialsChanged EventType = "intervention_materials_changed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	TicketNumber   string    `json:"numeroTicket"`
	InterventionID string    `json:"intervencionId"`
	ActorID        string    `json:"actorId"`
	Timestamp      time.Time `json:"timestamp"`
	Payload        any       `json:"payload"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType EventType, intervention *domain.Intervention, actorID string, payload any) Event {
	return Event{
		ID:             uuid.NewString(),
		Type:           eventType,
		TicketNumber:   intervention.TicketNumber,
		InterventionID: intervention.ID,
		ActorID:        actorID,
		Timestamp:      time.Now().UTC(),
		Payload:        payload,
	}
}

// InterventionCreatedPayload payload.
type InterventionCreatedPayload struct {
	TechnicianID string           `json:"tecnicoAsignadoId"`
	State        domain.TaskState `json:"estadoTarea"`
}

// InterventionStateChangedPayload payload.
type InterventionStateChangedPayload struct {
	OldState domain.TaskState `json:"oldState"`
	NewState domain.TaskState `json:"newState"`
}

// InterventionMaterialsChangedPayload payload.
type InterventionMaterialsChangedPayload struct {
	Action        string   `json:"action"`
	MaterialIDs   []string `json:"materialIds"`
	ImporteTotal  float64  `json:"importeTotal"`
	MaterialCount int      `json:"cantidadMateriales"`
}
