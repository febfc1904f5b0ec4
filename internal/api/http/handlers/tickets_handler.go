package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/intervention-service/internal/api/dto"
	"github.com/spec-kit/intervention-service/internal/domain"
	"github.com/spec-kit/intervention-service/internal/service"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.Create(c.UserContext(), service.TicketCreateInput{
		ClientCode:   strings.TrimSpace(req.CodigoCliente),
		TechnicianID: req.TecnicoAsignadoID,
		ContractID:   req.ContratoID,
		SerialNumber: req.NumeroSerie,
		Detail:       req.Detalle,
		Urgency:      domain.TicketUrgency(req.Urgencia),
	}, actor)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
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
	result, err := h.service.List(c.UserContext(), service.TicketListFilter{
		ClientCode:   optionalQuery(c, "codigoCliente"),
		TechnicianID: optionalQuery(c, "tecnicoAsignadoId"),
		Status:       enumPtr[domain.TicketStatus](optionalQuery(c, "estado")),
		Urgency:      enumPtr[domain.TicketUrgency](optionalQuery(c, "urgencia")),
		CreatedFrom:  from,
		CreatedTo:    to,
		SearchTerm:   optionalQuery(c, "q"),
		Page:         page,
		PageSize:     pageSize,
	})
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, dto.NewTicketResponse(&result.Items[i]))
	}
	return c.JSON(dto.TicketListResponse{Data: items, Pagination: paginationResponse(result.Pagination)})
}

// GetTicket GET /tickets/:numero.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.service.Get(c.UserContext(), c.Params("numero"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// UpdateTicket PUT /tickets/:numero.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.Update(c.UserContext(), c.Params("numero"), service.TicketUpdateInput{
		TechnicianID: toField(req.TecnicoAsignadoID),
		ContractID:   toField(req.ContratoID),
		SerialNumber: toField(req.NumeroSerie),
		Detail:       toField(req.Detalle),
		Status:       enumPtr[domain.TicketStatus](req.Estado),
		Urgency:      enumPtr[domain.TicketUrgency](req.Urgencia),
	}, actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// CloseTicket POST /tickets/:numero/close.
func (h *TicketsHandler) CloseTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.Close(c.UserContext(), c.Params("numero"), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// DeleteTicket DELETE /tickets/:numero.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), c.Params("numero"), actor); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
