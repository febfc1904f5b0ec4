package dto

import (
	"github.com/shopspring/decimal"

	"github.com/spec-kit/intervention-service/internal/domain"
)

// CreateInterventionRequest payload.
type CreateInterventionRequest struct {
	FechaHoraProgramada *string          `json:"fechaHoraProgramada"`
	FechaHoraInicio     *string          `json:"fechaHoraInicio"`
	FechaHoraFin        *string          `json:"fechaHoraFin"`
	TecnicoAsignadoID   string           `json:"tecnicoAsignadoId" validate:"required"`
	TipoAccion          string           `json:"tipoAccion" validate:"required,oneof=Diagnostico Reparacion Sustitucion Configuracion Llamada Revision"`
	Descripcion         *string          `json:"descripcion" validate:"omitempty,max=4000"`
	EstadoTarea         *string          `json:"estadoTarea" validate:"omitempty,oneof=Pendiente EnCurso Finalizada Cancelada"`
	CosteEstimado       *decimal.Decimal `json:"costeEstimado"`
	Resultado           *string          `json:"resultado" validate:"omitempty,oneof=Resuelto NoResuelto PendientePiezas Escalado"`
	FirmaClienteURL     *string          `json:"firmaClienteUrl"`
	Ubicacion           *string          `json:"ubicacion" validate:"omitempty,oneof=Remota Cliente Taller"`
	AdjuntosJSON        *AttachmentSet   `json:"adjuntosJson"`
}

// UpdateInterventionRequest payload. Nullable fields may be cleared with null.
type UpdateInterventionRequest struct {
	FechaHoraProgramada Nullable[string]          `json:"fechaHoraProgramada"`
	FechaHoraInicio     Nullable[string]          `json:"fechaHoraInicio"`
	FechaHoraFin        Nullable[string]          `json:"fechaHoraFin"`
	TecnicoAsignadoID   *string                   `json:"tecnicoAsignadoId" validate:"omitempty,min=1"`
	TipoAccion          *string                   `json:"tipoAccion" validate:"omitempty,oneof=Diagnostico Reparacion Sustitucion Configuracion Llamada Revision"`
	Descripcion         Nullable[string]          `json:"descripcion"`
	EstadoTarea         *string                   `json:"estadoTarea" validate:"omitempty,oneof=Pendiente EnCurso Finalizada Cancelada"`
	CosteEstimado       Nullable[decimal.Decimal] `json:"costeEstimado"`
	Resultado           Nullable[string]          `json:"resultado"`
	FirmaClienteURL     Nullable[string]          `json:"firmaClienteUrl"`
	Ubicacion           Nullable[string]          `json:"ubicacion"`
}

// UpdateAdjuntosRequest replaces the attachment list.
type UpdateAdjuntosRequest struct {
	Files []AttachmentEntry `json:"files" validate:"dive"`
}

// AttachmentSet mirrors the adjuntosJson column.
type AttachmentSet struct {
	Files []AttachmentEntry `json:"files" validate:"dive"`
}

// AttachmentEntry is one stored file reference.
type AttachmentEntry struct {
	ID          string  `json:"id" validate:"required"`
	Name        string  `json:"name" validate:"required"`
	URL         string  `json:"url" validate:"required"`
	Size        int64   `json:"size" validate:"gte=0"`
	ContentType string  `json:"contentType"`
	UploadedAt  *string `json:"uploadedAt,omitempty"`
	UploadedBy  string  `json:"uploadedBy,omitempty"`
}

// InterventionResponse is the formatted intervention record.
type InterventionResponse struct {
	ID                  string                         `json:"id"`
	NumeroTicket        string                         `json:"numeroTicket"`
	FechaHoraProgramada *string                        `json:"fechaHoraProgramada"`
	FechaHoraInicio     *string                        `json:"fechaHoraInicio"`
	FechaHoraFin        *string                        `json:"fechaHoraFin"`
	TecnicoAsignadoID   string                         `json:"tecnicoAsignadoId"`
	TipoAccion          string                         `json:"tipoAccion"`
	Descripcion         *string                        `json:"descripcion"`
	EstadoTarea         string                         `json:"estadoTarea"`
	DuracionMinutos     *int                           `json:"duracionMinutos"`
	CosteEstimado       *float64                       `json:"costeEstimado"`
	Resultado           *string                        `json:"resultado"`
	FirmaClienteURL     *string                        `json:"firmaClienteUrl"`
	Ubicacion           *string                        `json:"ubicacion"`
	AdjuntosJSON        AttachmentSet                  `json:"adjuntosJson"`
	Materiales          []MaterialResponse             `json:"materiales"`
	Tecnico             InterventionTechnicianResponse `json:"tecnico"`
	Totales             TotalsResponse                 `json:"totales"`
	CreatedAt           string                         `json:"createdAt"`
	UpdatedAt           string                         `json:"updatedAt"`
}

// InterventionTechnicianResponse is the technician's display identity.
type InterventionTechnicianResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// TotalsResponse is the live material rollup.
type TotalsResponse struct {
	ImporteTotal       float64 `json:"importeTotal"`
	CantidadMateriales int     `json:"cantidadMateriales"`
}

// InterventionListResponse is one page of interventions.
type InterventionListResponse struct {
	Data       []InterventionResponse `json:"data"`
	Pagination PaginationResponse     `json:"pagination"`
}

// NewInterventionResponse formats an intervention; totals come from the
// current material lines.
func NewInterventionResponse(in *domain.Intervention) InterventionResponse {
	materials := make([]MaterialResponse, len(in.Materials))
	for i := range in.Materials {
		materials[i] = NewMaterialResponse(&in.Materials[i])
	}
	totals := in.Totals()
	resp := InterventionResponse{
		ID:                  in.ID,
		NumeroTicket:        in.TicketNumber,
		FechaHoraProgramada: FormatOptionalTime(in.ScheduledAt),
		FechaHoraInicio:     FormatOptionalTime(in.StartedAt),
		FechaHoraFin:        FormatOptionalTime(in.EndedAt),
		TecnicoAsignadoID:   in.TechnicianID,
		TipoAccion:          string(in.ActionType),
		Descripcion:         in.Description,
		EstadoTarea:         string(in.State),
		DuracionMinutos:     in.DurationMinutes,
		Resultado:           enumString(in.Outcome),
		FirmaClienteURL:     in.SignatureURL,
		Ubicacion:           enumString(in.Location),
		AdjuntosJSON:        NewAttachmentSet(in.Attachments),
		Materiales:          materials,
		Tecnico:             InterventionTechnicianResponse{ID: in.TechnicianID, DisplayName: in.Technician.DisplayName},
		Totales: TotalsResponse{
			ImporteTotal:       totals.Amount.InexactFloat64(),
			CantidadMateriales: totals.MaterialCount,
		},
		CreatedAt: FormatTime(in.CreatedAt),
		UpdatedAt: FormatTime(in.UpdatedAt),
	}
	if in.EstimatedCost != nil {
		cost := in.EstimatedCost.InexactFloat64()
		resp.CosteEstimado = &cost
	}
	return resp
}

// NewAttachmentSet formats stored attachment metadata.
func NewAttachmentSet(set domain.AttachmentSet) AttachmentSet {
	files := make([]AttachmentEntry, len(set.Files))
	for i, f := range set.Files {
		files[i] = AttachmentEntry{
			ID:          f.ID,
			Name:        f.Name,
			URL:         f.URL,
			Size:        f.Size,
			ContentType: f.ContentType,
			UploadedAt:  FormatOptionalTime(f.UploadedAt),
			UploadedBy:  f.UploadedBy,
		}
	}
	return AttachmentSet{Files: files}
}
