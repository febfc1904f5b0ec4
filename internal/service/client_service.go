package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/intervention-service/internal/access"
	"github.com/spec-kit/intervention-service/internal/audit"
	"github.com/spec-kit/intervention-service/internal/domain"
	"github.com/spec-kit/intervention-service/internal/repository"
	apperrors "github.com/spec-kit/intervention-service/pkg/util/errorutil"
)

// ClientService manages the client and contract reference data tickets point at.
type ClientService struct {
	store  repository.Store
	audit  audit.Recorder
	logger *zap.Logger
}

// ClientDependencies bundles collaborators for the client service.
type ClientDependencies struct {
	Store  repository.Store
	Audit  audit.Recorder
	Logger *zap.Logger
}

// ClientCreateInput describes a new client.
type ClientCreateInput struct {
	Code        string
	CompanyName string
	Contact     *string
	Phone       *string
	Email       *string
}

// ContractCreateInput describes a new contract. An empty ID is generated.
type ContractCreateInput struct {
	ID           string
	ClientCode   string
	ContractType string
	SerialNumber *string
}

// ContractView is a contract with the client it belongs to.
type ContractView struct {
	domain.Contract
	Client *domain.Client
}

// NewClientService constructs the service.
func NewClientService(deps ClientDependencies) *ClientService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClientService{store: deps.Store, audit: deps.Audit, logger: logger}
}

// Create registers a client. Codes are unique.
func (s *ClientService) Create(ctx context.Context, input ClientCreateInput, actor domain.Actor) (*domain.Client, error) {
	if !access.IsPrivileged(actor) {
		return nil, apperrors.NewForbidden(access.ReasonInsufficientRoles)
	}
	client := &domain.Client{
		Code:        strings.TrimSpace(input.Code),
		CompanyName: strings.TrimSpace(input.CompanyName),
		Contact:     trimmed(input.Contact),
		Phone:       trimmed(input.Phone),
		Email:       trimmed(input.Email),
	}
	if client.Code == "" {
		return nil, apperrors.NewValidationError("codigoCliente is required", map[string]any{"field": "codigoCliente"})
	}
	if client.CompanyName == "" {
		return nil, apperrors.NewValidationError("razonSocial is required", map[string]any{"field": "razonSocial"})
	}
	if err := s.store.Clients().Create(ctx, client); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("client code already exists", map[string]any{"field": "codigoCliente"})
		}
		return nil, failure(s.logger, "create client", err)
	}
	recordChange(ctx, s.audit, s.logger, audit.Change{
		Action:   domain.AuditCreate,
		Entity:   domain.EntityClient,
		EntityID: client.Code,
		Actor:    actor,
		After:    audit.ClientSnapshot(client),
	})
	return client, nil
}

// Get returns a client by code.
func (s *ClientService) Get(ctx context.Context, code string) (*domain.Client, error) {
	client, err := s.store.Clients().Get(ctx, code)
	if err != nil {
		return nil, failure(s.logger, "get client", notFoundOr(err, "client", code))
	}
	return client, nil
}

// List returns clients by company name, optionally matching search against
// the code or the name.
func (s *ClientService) List(ctx context.Context, search *string) ([]domain.Client, error) {
	clients, err := s.store.Clients().List(ctx, search)
	if err != nil {
		return nil, failure(s.logger, "list clients", err)
	}
	return clients, nil
}

// Contracts lists the contracts of one client, newest first.
func (s *ClientService) Contracts(ctx context.Context, code string) ([]domain.Contract, error) {
	if _, err := s.Get(ctx, code); err != nil {
		return nil, err
	}
	contracts, err := s.store.Clients().ListContracts(ctx, repository.ContractFilter{ClientCode: &code})
	if err != nil {
		return nil, failure(s.logger, "list client contracts", err)
	}
	return contracts, nil
}

// ListContracts lists every contract, optionally by serial number fragment.
func (s *ClientService) ListContracts(ctx context.Context, serial *string) ([]ContractView, error) {
	contracts, err := s.store.Clients().ListContracts(ctx, repository.ContractFilter{SerialNumber: serial})
	if err != nil {
		return nil, failure(s.logger, "list contracts", err)
	}
	clients := map[string]*domain.Client{}
	views := make([]ContractView, len(contracts))
	for i, contract := range contracts {
		client, ok := clients[contract.ClientCode]
		if !ok {
			client, err = s.store.Clients().Get(ctx, contract.ClientCode)
			if err != nil {
				return nil, failure(s.logger, "load contract client", err)
			}
			clients[contract.ClientCode] = client
		}
		views[i] = ContractView{Contract: contract, Client: client}
	}
	return views, nil
}

// GetContract returns a contract with its client.
func (s *ClientService) GetContract(ctx context.Context, id string) (*ContractView, error) {
	contract, err := s.store.Clients().GetContract(ctx, id)
	if err != nil {
		return nil, failure(s.logger, "get contract", notFoundOr(err, "contract", id))
	}
	client, err := s.store.Clients().Get(ctx, contract.ClientCode)
	if err != nil {
		return nil, failure(s.logger, "load contract client", err)
	}
	return &ContractView{Contract: *contract, Client: client}, nil
}

// CreateContract adds a contract to an existing client.
func (s *ClientService) CreateContract(ctx context.Context, input ContractCreateInput, actor domain.Actor) (*domain.Contract, error) {
	if !access.IsPrivileged(actor) {
		return nil, apperrors.NewForbidden(access.ReasonInsufficientRoles)
	}
	contract := &domain.Contract{
		ID:           strings.TrimSpace(input.ID),
		ClientCode:   strings.TrimSpace(input.ClientCode),
		ContractType: strings.TrimSpace(input.ContractType),
		SerialNumber: trimmed(input.SerialNumber),
	}
	if contract.ID == "" {
		contract.ID = uuid.NewString()
	}
	if contract.ContractType == "" {
		return nil, apperrors.NewValidationError("tipoContrato is required", map[string]any{"field": "tipoContrato"})
	}
	if _, err := s.Get(ctx, contract.ClientCode); err != nil {
		return nil, err
	}
	if err := s.store.Clients().CreateContract(ctx, contract); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("contract id already exists", map[string]any{"field": "id"})
		}
		return nil, failure(s.logger, "create contract", err)
	}
	recordChange(ctx, s.audit, s.logger, audit.Change{
		Action:   domain.AuditCreate,
		Entity:   domain.EntityContract,
		EntityID: contract.ID,
		Actor:    actor,
		After:    audit.ContractSnapshot(contract),
	})
	return contract, nil
}
