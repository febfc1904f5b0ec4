package dto

import "github.com/spec-kit/intervention-service/internal/domain"

// CreateClientRequest payload.
type CreateClientRequest struct {
	CodigoCliente string  `json:"codigoCliente" validate:"required,max=32"`
	RazonSocial   string  `json:"razonSocial" validate:"required,max=200"`
	Contacto      *string `json:"contacto" validate:"omitempty,max=200"`
	Telefono      *string `json:"telefono" validate:"omitempty,max=32"`
	Email         *string `json:"email" validate:"omitempty,email"`
}

// CreateContractRequest payload. The client comes from the route.
type CreateContractRequest struct {
	ID           string  `json:"id" validate:"omitempty,max=64"`
	TipoContrato string  `json:"tipoContrato" validate:"required,max=64"`
	NumeroSerie  *string `json:"numeroSerie" validate:"omitempty,max=64"`
}

// ClientResponse is the formatted client.
type ClientResponse struct {
	CodigoCliente  string  `json:"codigoCliente"`
	RazonSocial    string  `json:"razonSocial"`
	Contacto       *string `json:"contacto"`
	Telefono       *string `json:"telefono"`
	Email          *string `json:"email"`
	TotalContratos int     `json:"totalContratos"`
	TotalTickets   int     `json:"totalTickets"`
	CreatedAt      string  `json:"createdAt"`
}

// ClientSummary is the client as embedded in a contract.
type ClientSummary struct {
	CodigoCliente string `json:"codigoCliente"`
	RazonSocial   string `json:"razonSocial"`
}

// ContractResponse is the formatted contract.
type ContractResponse struct {
	ID            string         `json:"id"`
	CodigoCliente string         `json:"codigoCliente"`
	TipoContrato  string         `json:"tipoContrato"`
	NumeroSerie   *string        `json:"numeroSerie"`
	TotalTickets  int            `json:"totalTickets"`
	CreatedAt     string         `json:"createdAt"`
	Cliente       *ClientSummary `json:"cliente,omitempty"`
}

// NewClientResponse formats a client.
func NewClientResponse(c *domain.Client) ClientResponse {
	return ClientResponse{
		CodigoCliente:  c.Code,
		RazonSocial:    c.CompanyName,
		Contacto:       c.Contact,
		Telefono:       c.Phone,
		Email:          c.Email,
		TotalContratos: c.ContractCount,
		TotalTickets:   c.TicketCount,
		CreatedAt:      FormatTime(c.CreatedAt),
	}
}

// NewClientList formats a slice of clients.
func NewClientList(clients []domain.Client) []ClientResponse {
	out := make([]ClientResponse, len(clients))
	for i := range clients {
		out[i] = NewClientResponse(&clients[i])
	}
	return out
}

// NewContractResponse formats a contract. client may be nil.
func NewContractResponse(c *domain.Contract, client *domain.Client) ContractResponse {
	resp := ContractResponse{
		ID:            c.ID,
		CodigoCliente: c.ClientCode,
		TipoContrato:  c.ContractType,
		NumeroSerie:   c.SerialNumber,
		TotalTickets:  c.TicketCount,
		CreatedAt:     FormatTime(c.CreatedAt),
	}
	if client != nil {
		resp.Cliente = &ClientSummary{CodigoCliente: client.Code, RazonSocial: client.CompanyName}
	}
	return resp
}

// NewContractList formats contracts of a single client.
func NewContractList(contracts []domain.Contract) []ContractResponse {
	out := make([]ContractResponse, len(contracts))
	for i := range contracts {
		out[i] = NewContractResponse(&contracts[i], nil)
	}
	return out
}
