package dto

import "github.com/spec-kit/intervention-service/internal/domain"

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	CodigoCliente     string  `json:"codigoCliente" validate:"required"`
	TecnicoAsignadoID *string `json:"tecnicoAsignadoId"`
	ContratoID        *string `json:"contratoId"`
	NumeroSerie       *string `json:"numeroSerie"`
	Detalle           *string `json:"detalle" validate:"omitempty,max=4000"`
	Urgencia          string  `json:"urgencia" validate:"omitempty,oneof=BAJA NORMAL ALTA CRITICA"`
}

// UpdateTicketRequest payload.
type UpdateTicketRequest struct {
	TecnicoAsignadoID Nullable[string] `json:"tecnicoAsignadoId"`
	ContratoID        Nullable[string] `json:"contratoId"`
	NumeroSerie       Nullable[string] `json:"numeroSerie"`
	Detalle           Nullable[string] `json:"detalle"`
	Estado            *string          `json:"estado" validate:"omitempty,oneof=ABIERTO EN_PROCESO PENDIENTE CERRADO"`
	Urgencia          *string          `json:"urgencia" validate:"omitempty,oneof=BAJA NORMAL ALTA CRITICA"`
}

// TicketResponse is the formatted ticket.
type TicketResponse struct {
	NumeroTicket      string  `json:"numeroTicket"`
	CodigoCliente     string  `json:"codigoCliente"`
	TecnicoAsignadoID *string `json:"tecnicoAsignadoId"`
	ContratoID        *string `json:"contratoId"`
	NumeroSerie       *string `json:"numeroSerie"`
	Detalle           *string `json:"detalle"`
	Estado            string  `json:"estado"`
	Urgencia          string  `json:"urgencia"`
	CreadoPor         string  `json:"creadoPor"`
	FechaCreacion     string  `json:"fechaCreacion"`
	FechaCierre       *string `json:"fechaCierre"`
	UpdatedAt         string  `json:"updatedAt"`
}

// TicketListResponse is one page of tickets.
type TicketListResponse struct {
	Data       []TicketResponse   `json:"data"`
	Pagination PaginationResponse `json:"pagination"`
}

// NewTicketResponse formats a ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		NumeroTicket:      t.Number,
		CodigoCliente:     t.ClientCode,
		TecnicoAsignadoID: t.TechnicianID,
		ContratoID:        t.ContractID,
		NumeroSerie:       t.SerialNumber,
		Detalle:           t.Detail,
		Estado:            string(t.Status),
		Urgencia:          string(t.Urgency),
		CreadoPor:         t.CreatedBy,
		FechaCreacion:     FormatTime(t.CreatedAt),
		FechaCierre:       FormatOptionalTime(t.ClosedAt),
		UpdatedAt:         FormatTime(t.UpdatedAt),
	}
}
