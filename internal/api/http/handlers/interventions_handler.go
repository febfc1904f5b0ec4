package handlers

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/intervention-service/internal/api/dto"
	"github.com/spec-kit/intervention-service/internal/domain"
	"github.com/spec-kit/intervention-service/internal/service"
	apperrors "github.com/spec-kit/intervention-service/pkg/util/errorutil"
)

// InterventionsHandler exposes the intervention lifecycle and its materials.
type InterventionsHandler struct {
	service *service.InterventionService
}

// NewInterventionsHandler constructs handler.
func NewInterventionsHandler(interventionService *service.InterventionService) *InterventionsHandler {
	return &InterventionsHandler{service: interventionService}
}

// List GET /tickets/:numero/intervenciones.
func (h *InterventionsHandler) List(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	page, pageSize, err := paging(c)
	if err != nil {
		return err
	}
	from, err := parseTime("fechaDesde", optionalQuery(c, "fechaDesde"))
	if err != nil {
		return err
	}
	to, err := parseTime("fechaHasta", optionalQuery(c, "fechaHasta"))
	if err != nil {
		return err
	}
	result, err := h.service.ListByTicket(c.UserContext(), c.Params("numero"), service.InterventionListFilter{
		State:        enumPtr[domain.TaskState](optionalQuery(c, "estadoTarea")),
		TechnicianID: optionalQuery(c, "tecnicoAsignadoId"),
		StartFrom:    from,
		StartTo:      to,
		Page:         page,
		PageSize:     pageSize,
	}, actor)
	if err != nil {
		return err
	}
	items := make([]dto.InterventionResponse, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, dto.NewInterventionResponse(&result.Items[i]))
	}
	return c.JSON(dto.InterventionListResponse{Data: items, Pagination: paginationResponse(result.Pagination)})
}

// Create POST /tickets/:numero/intervenciones.
func (h *InterventionsHandler) Create(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateInterventionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	input, err := createInput(req)
	if err != nil {
		return err
	}
	created, err := h.service.Create(c.UserContext(), c.Params("numero"), input, actor)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewInterventionResponse(created)})
}

// Get GET /intervenciones/:id.
func (h *InterventionsHandler) Get(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	in, err := h.service.GetByID(c.UserContext(), c.Params("id"), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewInterventionResponse(in)})
}

// Update PUT /intervenciones/:id.
func (h *InterventionsHandler) Update(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.UpdateInterventionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	input, err := updateInput(req)
	if err != nil {
		return err
	}
	updated, err := h.service.Update(c.UserContext(), c.Params("id"), input, actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewInterventionResponse(updated)})
}

// Delete DELETE /intervenciones/:id.
func (h *InterventionsHandler) Delete(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), c.Params("id"), actor); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// AddMaterials POST /intervenciones/:id/materiales. Accepts one line or an array.
func (h *InterventionsHandler) AddMaterials(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	reqs, err := decodeMaterials(c)
	if err != nil {
		return err
	}
	lines := make([]service.MaterialInput, len(reqs))
	for i, req := range reqs {
		if err := dto.Validate(&req); err != nil {
			return withIndex(err, i)
		}
		lines[i] = service.MaterialInput{
			ArticleCode: strings.TrimSpace(req.CodigoArticulo),
			Units:       *req.UnidadesUtilizadas,
			UnitPrice:   *req.Precio,
		}
		if req.Descuento != nil {
			lines[i].Discount = *req.Descuento
		}
	}
	updated, err := h.service.AddMaterials(c.UserContext(), c.Params("id"), lines, actor)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewInterventionResponse(updated)})
}

// UpdateMaterial PUT /intervenciones/:id/materiales/:materialId.
func (h *InterventionsHandler) UpdateMaterial(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.UpdateMaterialRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	updated, err := h.service.UpdateMaterial(c.UserContext(), c.Params("id"), c.Params("materialId"), service.MaterialUpdateInput{
		ArticleCode: req.CodigoArticulo,
		Units:       req.UnidadesUtilizadas,
		UnitPrice:   req.Precio,
		Discount:    req.Descuento,
	}, actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewInterventionResponse(updated)})
}

// DeleteMaterial DELETE /intervenciones/:id/materiales/:materialId.
func (h *InterventionsHandler) DeleteMaterial(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	updated, err := h.service.DeleteMaterial(c.UserContext(), c.Params("id"), c.Params("materialId"), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewInterventionResponse(updated)})
}

// UpdateAdjuntos PUT /intervenciones/:id/adjuntos replaces the attachment list.
func (h *InterventionsHandler) UpdateAdjuntos(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.UpdateAdjuntosRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	files := make([]domain.Attachment, len(req.Files))
	for i, f := range req.Files {
		uploadedAt, err := parseTime("uploadedAt", f.UploadedAt)
		if err != nil {
			return withIndex(err, i)
		}
		files[i] = domain.Attachment{
			ID:          f.ID,
			Name:        f.Name,
			URL:         f.URL,
			Size:        f.Size,
			ContentType: f.ContentType,
			UploadedAt:  uploadedAt,
			UploadedBy:  f.UploadedBy,
		}
	}
	updated, err := h.service.UpdateAdjuntos(c.UserContext(), c.Params("id"), files, actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewInterventionResponse(updated)})
}

func decodeMaterials(c *fiber.Ctx) ([]dto.MaterialRequest, error) {
	body := bytes.TrimSpace(c.Body())
	if len(body) == 0 {
		return nil, apperrors.NewValidationError("at least one material is required", nil)
	}
	decode := c.App().Config().JSONDecoder
	if body[0] == '[' {
		var reqs []dto.MaterialRequest
		if err := decode(body, &reqs); err != nil {
			return nil, apperrors.NewValidationError("invalid payload", nil)
		}
		if len(reqs) == 0 {
			return nil, apperrors.NewValidationError("at least one material is required", nil)
		}
		return reqs, nil
	}
	var req dto.MaterialRequest
	if err := decode(body, &req); err != nil {
		return nil, apperrors.NewValidationError("invalid payload", nil)
	}
	return []dto.MaterialRequest{req}, nil
}

func withIndex(err error, index int) error {
	domainErr := apperrors.ToDomainError(err)
	details := map[string]any{"index": index}
	for k, v := range domainErr.Details {
		details[k] = v
	}
	return apperrors.NewValidationError(domainErr.Message, details)
}

func createInput(req dto.CreateInterventionRequest) (service.InterventionCreateInput, error) {
	scheduled, err := parseTime("fechaHoraProgramada", req.FechaHoraProgramada)
	if err != nil {
		return service.InterventionCreateInput{}, err
	}
	started, err := parseTime("fechaHoraInicio", req.FechaHoraInicio)
	if err != nil {
		return service.InterventionCreateInput{}, err
	}
	ended, err := parseTime("fechaHoraFin", req.FechaHoraFin)
	if err != nil {
		return service.InterventionCreateInput{}, err
	}
	input := service.InterventionCreateInput{
		TechnicianID:  strings.TrimSpace(req.TecnicoAsignadoID),
		ScheduledAt:   scheduled,
		StartedAt:     started,
		EndedAt:       ended,
		ActionType:    domain.ActionType(req.TipoAccion),
		Description:   req.Descripcion,
		State:         enumPtr[domain.TaskState](req.EstadoTarea),
		EstimatedCost: req.CosteEstimado,
		Outcome:       enumPtr[domain.Outcome](req.Resultado),
		SignatureURL:  req.FirmaClienteURL,
		Location:      enumPtr[domain.Location](req.Ubicacion),
	}
	if req.AdjuntosJSON != nil {
		for _, f := range req.AdjuntosJSON.Files {
			uploadedAt, err := parseTime("uploadedAt", f.UploadedAt)
			if err != nil {
				return service.InterventionCreateInput{}, err
			}
			input.Attachments = append(input.Attachments, domain.Attachment{
				ID: f.ID, Name: f.Name, URL: f.URL, Size: f.Size,
				ContentType: f.ContentType, UploadedAt: uploadedAt, UploadedBy: f.UploadedBy,
			})
		}
	}
	return input, nil
}

func updateInput(req dto.UpdateInterventionRequest) (service.InterventionUpdateInput, error) {
	var input service.InterventionUpdateInput
	var err error
	if input.ScheduledAt, err = timeField("fechaHoraProgramada", req.FechaHoraProgramada); err != nil {
		return input, err
	}
	if input.StartedAt, err = timeField("fechaHoraInicio", req.FechaHoraInicio); err != nil {
		return input, err
	}
	if input.EndedAt, err = timeField("fechaHoraFin", req.FechaHoraFin); err != nil {
		return input, err
	}
	input.TechnicianID = req.TecnicoAsignadoID
	input.ActionType = enumPtr[domain.ActionType](req.TipoAccion)
	input.Description = toField(req.Descripcion)
	input.State = enumPtr[domain.TaskState](req.EstadoTarea)
	input.EstimatedCost = toField(req.CosteEstimado)
	input.Outcome = enumField[domain.Outcome](req.Resultado)
	input.SignatureURL = toField(req.FirmaClienteURL)
	input.Location = enumField[domain.Location](req.Ubicacion)
	return input, nil
}
