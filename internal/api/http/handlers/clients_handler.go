package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/intervention-service/internal/api/dto"
	"github.com/spec-kit/intervention-service/internal/service"
)

// ClientsHandler exposes client and contract reference data.
type ClientsHandler struct {
	service *service.ClientService
}

// NewClientsHandler constructs handler.
func NewClientsHandler(clientService *service.ClientService) *ClientsHandler {
	return &ClientsHandler{service: clientService}
}

// CreateClient POST /clients.
func (h *ClientsHandler) CreateClient(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateClientRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	client, err := h.service.Create(c.UserContext(), service.ClientCreateInput{
		Code:        req.CodigoCliente,
		CompanyName: req.RazonSocial,
		Contact:     req.Contacto,
		Phone:       req.Telefono,
		Email:       req.Email,
	}, actor)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewClientResponse(client)})
}

// ListClients GET /clients.
func (h *ClientsHandler) ListClients(c *fiber.Ctx) error {
	clients, err := h.service.List(c.UserContext(), optionalQuery(c, "q"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewClientList(clients)})
}

// GetClient GET /clients/:codigoCliente.
func (h *ClientsHandler) GetClient(c *fiber.Ctx) error {
	client, err := h.service.Get(c.UserContext(), c.Params("codigoCliente"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewClientResponse(client)})
}

// ClientContracts GET /clients/:codigoCliente/contracts.
func (h *ClientsHandler) ClientContracts(c *fiber.Ctx) error {
	contracts, err := h.service.Contracts(c.UserContext(), c.Params("codigoCliente"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewContractList(contracts)})
}

// CreateContract POST /clients/:codigoCliente/contracts.
func (h *ClientsHandler) CreateContract(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateContractRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	contract, err := h.service.CreateContract(c.UserContext(), service.ContractCreateInput{
		ID:           req.ID,
		ClientCode:   c.Params("codigoCliente"),
		ContractType: req.TipoContrato,
		SerialNumber: req.NumeroSerie,
	}, actor)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewContractResponse(contract, nil)})
}

// ListContracts GET /contracts.
func (h *ClientsHandler) ListContracts(c *fiber.Ctx) error {
	views, err := h.service.ListContracts(c.UserContext(), optionalQuery(c, "qNumeroSerie"))
	if err != nil {
		return err
	}
	items := make([]dto.ContractResponse, len(views))
	for i := range views {
		items[i] = dto.NewContractResponse(&views[i].Contract, views[i].Client)
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetContract GET /contracts/:id.
func (h *ClientsHandler) GetContract(c *fiber.Ctx) error {
	view, err := h.service.GetContract(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewContractResponse(&view.Contract, view.Client)})
}
