package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/intervention-service/internal/access"
	"github.com/spec-kit/intervention-service/internal/audit"
	"github.com/spec-kit/intervention-service/internal/domain"
	"github.com/spec-kit/intervention-service/internal/observability"
	"github.com/spec-kit/intervention-service/internal/repository"
	apperrors "github.com/spec-kit/intervention-service/pkg/util/errorutil"
)

// ReasonTicketAlreadyClosed is the conflict reason for closing a closed ticket.
const ReasonTicketAlreadyClosed = "ticket is already closed"

// numberAttempts bounds ticket number allocation: one try plus one retry.
const numberAttempts = 2

// TicketService coordinates ticket workflows.
type TicketService struct {
	store   repository.Store
	audit   audit.Recorder
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store   repository.Store
	Audit   audit.Recorder
	Metrics *observability.Metrics
	Logger  *zap.Logger
	// Now overrides the clock used for ticket numbering.
	Now func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	ClientCode   string
	TechnicianID *string
	ContractID   *string
	SerialNumber *string
	Detail       *string
	Urgency      domain.TicketUrgency
}

// TicketUpdateInput is a partial ticket update.
type TicketUpdateInput struct {
	TechnicianID Field[string]
	ContractID   Field[string]
	SerialNumber Field[string]
	Detail       Field[string]
	Status       *domain.TicketStatus
	Urgency      *domain.TicketUrgency
}

// TicketListFilter describes ticket listing filters.
type TicketListFilter struct {
	ClientCode   *string
	TechnicianID *string
	Status       *domain.TicketStatus
	Urgency      *domain.TicketUrgency
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	SearchTerm   *string
	Page         int
	PageSize     int
}

// TicketPage is one page of tickets.
type TicketPage struct {
	Items []domain.Ticket
	Pagination
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &TicketService{
		store:   deps.Store,
		audit:   deps.Audit,
		metrics: deps.Metrics,
		logger:  logger,
		now:     now,
	}
}

// Create opens a ticket under the next number of the current month.
func (s *TicketService) Create(ctx context.Context, input TicketCreateInput, actor domain.Actor) (*domain.Ticket, error) {
	if !access.IsPrivileged(actor) {
		return nil, apperrors.NewForbidden(access.ReasonInsufficientRoles)
	}
	urgency := input.Urgency
	if urgency == "" {
		urgency = domain.TicketUrgencyNormal
	}
	if !urgency.Valid() {
		return nil, apperrors.NewValidationError("unknown urgencia", map[string]any{"field": "urgencia"})
	}
	clientCode := strings.TrimSpace(input.ClientCode)
	if clientCode == "" {
		return nil, apperrors.NewValidationError("codigoCliente is required", map[string]any{"field": "codigoCliente"})
	}

	ticket := &domain.Ticket{
		ClientCode:   clientCode,
		TechnicianID: input.TechnicianID,
		ContractID:   input.ContractID,
		SerialNumber: trimmed(input.SerialNumber),
		Detail:       trimmed(input.Detail),
		Status:       domain.TicketStatusOpen,
		Urgency:      urgency,
		CreatedBy:    actor.UserID,
	}

	var err error
	for attempt := 1; attempt <= numberAttempts; attempt++ {
		err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
			if err := s.checkReferences(ctx, tx, ticket); err != nil {
				return err
			}
			at := s.now()
			latest, err := tx.Tickets().LatestNumber(ctx, domain.TicketNumberPrefix(at))
			if err != nil {
				return err
			}
			number, err := domain.NextTicketNumber(at, latest)
			if err != nil {
				return err
			}
			ticket.Number = number
			return tx.Tickets().Create(ctx, ticket)
		})
		if !errors.Is(err, repository.ErrDuplicate) {
			break
		}
		s.logger.Warn("ticket number collision", zap.String("numero_ticket", ticket.Number), zap.Int("attempt", attempt))
	}
	if errors.Is(err, repository.ErrDuplicate) {
		err = fmt.Errorf("allocate ticket number: %w", err)
	}
	s.metrics.ObserveOperation("create_ticket", outcomeOf(err))
	if err != nil {
		return nil, failure(s.logger, "create ticket", err)
	}

	recordChange(ctx, s.audit, s.logger, audit.Change{
		Action:   domain.AuditCreate,
		Entity:   domain.EntityTicket,
		EntityID: ticket.Number,
		Actor:    actor,
		After:    audit.TicketSnapshot(ticket),
	})
	return ticket, nil
}

// Get returns a ticket by number.
func (s *TicketService) Get(ctx context.Context, number string) (*domain.Ticket, error) {
	ticket, err := s.store.Tickets().Get(ctx, number)
	if err != nil {
		return nil, failure(s.logger, "get ticket", notFoundOr(err, "ticket", number))
	}
	return ticket, nil
}

// List pages through tickets, newest first.
func (s *TicketService) List(ctx context.Context, filter TicketListFilter) (*TicketPage, error) {
	page, pageSize, err := normalizePage(filter.Page, filter.PageSize)
	if err != nil {
		return nil, err
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, apperrors.NewValidationError("unknown estado", map[string]any{"field": "estado"})
	}
	if filter.Urgency != nil && !filter.Urgency.Valid() {
		return nil, apperrors.NewValidationError("unknown urgencia", map[string]any{"field": "urgencia"})
	}
	if filter.CreatedFrom != nil && filter.CreatedTo != nil && filter.CreatedTo.Before(*filter.CreatedFrom) {
		return nil, apperrors.NewValidationError("fechaDesde must not be after fechaHasta", map[string]any{"field": "fechaHasta"})
	}

	items, total, err := s.store.Tickets().List(ctx, repository.TicketFilter{
		ClientCode:   filter.ClientCode,
		TechnicianID: filter.TechnicianID,
		Status:       filter.Status,
		Urgency:      filter.Urgency,
		CreatedFrom:  filter.CreatedFrom,
		CreatedTo:    filter.CreatedTo,
		SearchTerm:   trimmed(filter.SearchTerm),
		Limit:        pageSize,
		Offset:       (page - 1) * pageSize,
	})
	if err != nil {
		return nil, failure(s.logger, "list tickets", err)
	}
	if items == nil {
		items = []domain.Ticket{}
	}
	return &TicketPage{Items: items, Pagination: paginate(page, pageSize, total)}, nil
}

// Update applies a partial update. Moving to CERRADO stamps the closure time;
// moving away from it reopens the ticket.
func (s *TicketService) Update(ctx context.Context, number string, input TicketUpdateInput, actor domain.Actor) (*domain.Ticket, error) {
	if !access.IsPrivileged(actor) {
		return nil, apperrors.NewForbidden(access.ReasonInsufficientRoles)
	}
	if input.Status != nil && !input.Status.Valid() {
		return nil, apperrors.NewValidationError("unknown estado", map[string]any{"field": "estado"})
	}
	if input.Urgency != nil && !input.Urgency.Valid() {
		return nil, apperrors.NewValidationError("unknown urgencia", map[string]any{"field": "urgencia"})
	}

	var before, updated *domain.Ticket
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		current, err := tx.Tickets().Get(ctx, number)
		if err != nil {
			return notFoundOr(err, "ticket", number)
		}
		next := *current
		next.TechnicianID = input.TechnicianID.apply(current.TechnicianID)
		next.ContractID = input.ContractID.apply(current.ContractID)
		next.SerialNumber = trimmed(input.SerialNumber.apply(current.SerialNumber))
		next.Detail = trimmed(input.Detail.apply(current.Detail))
		if input.Urgency != nil {
			next.Urgency = *input.Urgency
		}
		if input.Status != nil {
			next.Status = *input.Status
			switch {
			case next.Status == domain.TicketStatusClosed && next.ClosedAt == nil:
				closedAt := s.now()
				next.ClosedAt = &closedAt
			case next.Status != domain.TicketStatusClosed:
				next.ClosedAt = nil
			}
		}
		if err := s.checkReferences(ctx, tx, &next); err != nil {
			return err
		}
		if err := tx.Tickets().Update(ctx, &next); err != nil {
			return notFoundOr(err, "ticket", number)
		}
		before = current
		updated, err = tx.Tickets().Get(ctx, number)
		return err
	})
	s.metrics.ObserveOperation("update_ticket", outcomeOf(err))
	if err != nil {
		return nil, failure(s.logger, "update ticket", err)
	}

	recordChange(ctx, s.audit, s.logger, audit.Change{
		Action:   domain.AuditUpdate,
		Entity:   domain.EntityTicket,
		EntityID: number,
		Actor:    actor,
		Before:   audit.TicketSnapshot(before),
		After:    audit.TicketSnapshot(updated),
	})
	return updated, nil
}

// Close marks the ticket CERRADO. Closed tickets accept no new interventions.
func (s *TicketService) Close(ctx context.Context, number string, actor domain.Actor) (*domain.Ticket, error) {
	current, err := s.Get(ctx, number)
	if err != nil {
		return nil, err
	}
	if current.IsClosed() {
		return nil, apperrors.NewConflict(ReasonTicketAlreadyClosed, map[string]any{"numeroTicket": number})
	}
	closed := domain.TicketStatusClosed
	return s.Update(ctx, number, TicketUpdateInput{Status: &closed}, actor)
}

// Delete removes a ticket together with its interventions and materials.
func (s *TicketService) Delete(ctx context.Context, number string, actor domain.Actor) error {
	if !access.IsPrivileged(actor) {
		return apperrors.NewForbidden(access.ReasonInsufficientRoles)
	}
	var deleted *domain.Ticket
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		current, err := tx.Tickets().Get(ctx, number)
		if err != nil {
			return notFoundOr(err, "ticket", number)
		}
		if err := tx.Tickets().Delete(ctx, number); err != nil {
			return notFoundOr(err, "ticket", number)
		}
		deleted = current
		return nil
	})
	s.metrics.ObserveOperation("delete_ticket", outcomeOf(err))
	if err != nil {
		return failure(s.logger, "delete ticket", err)
	}

	recordChange(ctx, s.audit, s.logger, audit.Change{
		Action:   domain.AuditDelete,
		Entity:   domain.EntityTicket,
		EntityID: number,
		Actor:    actor,
		Before:   audit.TicketSnapshot(deleted),
	})
	return nil
}

// checkReferences validates the client, contract and technician a ticket points at.
func (s *TicketService) checkReferences(ctx context.Context, tx repository.Store, ticket *domain.Ticket) error {
	if _, err := tx.Clients().Get(ctx, ticket.ClientCode); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewValidationError("codigoCliente does not reference a client", map[string]any{"field": "codigoCliente"})
		}
		return err
	}
	if ticket.ContractID != nil {
		contract, err := tx.Clients().GetContract(ctx, *ticket.ContractID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if err != nil || contract.ClientCode != ticket.ClientCode {
			return apperrors.NewValidationError("contratoId does not belong to the client", map[string]any{"field": "contratoId"})
		}
	}
	if ticket.TechnicianID != nil {
		return ensureTechnician(ctx, tx, *ticket.TechnicianID)
	}
	return nil
}
