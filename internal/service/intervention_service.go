package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/intervention-service/internal/access"
	"github.com/spec-kit/intervention-service/internal/audit"
	"github.com/spec-kit/intervention-service/internal/billing"
	"github.com/spec-kit/intervention-service/internal/domain"
	"github.com/spec-kit/intervention-service/internal/events"
	"github.com/spec-kit/intervention-service/internal/observability"
	"github.com/spec-kit/intervention-service/internal/repository"
	"github.com/spec-kit/intervention-service/internal/workflow"
	apperrors "github.com/spec-kit/intervention-service/pkg/util/errorutil"
)

// ReasonTicketClosed is the conflict reason for creating on a closed ticket.
const ReasonTicketClosed = "cannot create interventions on closed tickets"

// InterventionService orchestrates intervention and material workflows.
// Every operation runs permission, then transition, then calculation, then
// persistence; audit and events follow a successful commit only.
type InterventionService struct {
	store      repository.Store
	audit      audit.Recorder
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	newID      func() string
}

// InterventionDependencies bundles collaborators for the intervention service.
type InterventionDependencies struct {
	Store      repository.Store
	Audit      audit.Recorder
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// InterventionCreateInput describes an intervention creation payload.
type InterventionCreateInput struct {
	TechnicianID  string
	ScheduledAt   *time.Time
	StartedAt     *time.Time
	EndedAt       *time.Time
	ActionType    domain.ActionType
	Description   *string
	State         *domain.TaskState
	EstimatedCost *decimal.Decimal
	Outcome       *domain.Outcome
	SignatureURL  *string
	Location      *domain.Location
	Attachments   []domain.Attachment
}

// InterventionUpdateInput is a partial update; unset fields keep their value.
type InterventionUpdateInput struct {
	TechnicianID  *string
	ScheduledAt   Field[time.Time]
	StartedAt     Field[time.Time]
	EndedAt       Field[time.Time]
	ActionType    *domain.ActionType
	Description   Field[string]
	State         *domain.TaskState
	EstimatedCost Field[decimal.Decimal]
	Outcome       Field[domain.Outcome]
	SignatureURL  Field[string]
	Location      Field[domain.Location]
}

// InterventionListFilter narrows ListByTicket.
type InterventionListFilter struct {
	State        *domain.TaskState
	TechnicianID *string
	StartFrom    *time.Time
	StartTo      *time.Time
	Page         int
	PageSize     int
}

// InterventionPage is one page of interventions.
type InterventionPage struct {
	Items []domain.Intervention
	Pagination
}

// MaterialInput describes a new material line.
type MaterialInput struct {
	ArticleCode string
	Units       decimal.Decimal
	UnitPrice   decimal.Decimal
	Discount    decimal.Decimal
}

// MaterialUpdateInput is a partial material update.
type MaterialUpdateInput struct {
	ArticleCode *string
	Units       *decimal.Decimal
	UnitPrice   *decimal.Decimal
	Discount    *decimal.Decimal
}

// NewInterventionService constructs the service.
func NewInterventionService(deps InterventionDependencies) *InterventionService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InterventionService{
		store:      deps.Store,
		audit:      deps.Audit,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		newID:      uuid.NewString,
	}
}

// Create adds an intervention to an open ticket.
func (s *InterventionService) Create(ctx context.Context, ticketNumber string, input InterventionCreateInput, actor domain.Actor) (*domain.Intervention, error) {
	var created *domain.Intervention
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		ticket, err := tx.Tickets().Get(ctx, ticketNumber)
		if err != nil {
			return notFoundOr(err, "ticket", ticketNumber)
		}
		if ticket.IsClosed() {
			return apperrors.NewConflict(ReasonTicketClosed, map[string]any{"numeroTicket": ticketNumber})
		}
		if err := access.Check(actor, access.ActionCreate, access.Target{AssignedTechnicianID: input.TechnicianID}); err != nil {
			return err
		}

		state := domain.TaskStatePending
		if input.State != nil {
			state = *input.State
		}
		if err := workflow.Check(domain.TaskStatePending, state, input.StartedAt != nil, input.EndedAt != nil); err != nil {
			return err
		}
		if err := validateInterventionFields(&input.ActionType, input.Outcome, input.Location, input.EstimatedCost); err != nil {
			return err
		}
		if err := validateAttachments(input.Attachments); err != nil {
			return err
		}
		if err := ensureTechnician(ctx, tx, input.TechnicianID); err != nil {
			return err
		}

		duration, err := billing.DurationMinutes(input.StartedAt, input.EndedAt)
		if err != nil {
			return withDetail(err, "field", "fechaHoraFin")
		}

		in := &domain.Intervention{
			ID:              s.newID(),
			TicketNumber:    ticket.Number,
			ScheduledAt:     input.ScheduledAt,
			StartedAt:       input.StartedAt,
			EndedAt:         input.EndedAt,
			TechnicianID:    input.TechnicianID,
			ActionType:      input.ActionType,
			Description:     trimmed(input.Description),
			State:           state,
			DurationMinutes: duration,
			EstimatedCost:   input.EstimatedCost,
			Outcome:         input.Outcome,
			SignatureURL:    input.SignatureURL,
			Location:        input.Location,
			Attachments:     domain.AttachmentSet{Files: append([]domain.Attachment{}, input.Attachments...)},
		}
		if err := tx.Interventions().Create(ctx, in); err != nil {
			return err
		}
		created, err = tx.Interventions().Get(ctx, in.ID)
		return err
	})
	s.metrics.ObserveOperation("create", outcomeOf(err))
	if err != nil {
		return nil, s.fail("create intervention", err)
	}

	s.recordChange(ctx, audit.Change{
		Action:   domain.AuditCreate,
		Entity:   domain.EntityIntervention,
		EntityID: created.ID,
		Actor:    actor,
		After:    audit.InterventionSnapshot(created),
	})
	s.publish(ctx, events.New(events.EventInterventionCreated, created, actor.UserID, events.InterventionCreatedPayload{
		TechnicianID: created.TechnicianID,
		State:        created.State,
	}))
	return created, nil
}

// Update applies a partial update, validating any state change against the
// record as it will be after the update.
func (s *InterventionService) Update(ctx context.Context, id string, input InterventionUpdateInput, actor domain.Actor) (*domain.Intervention, error) {
	var before, updated *domain.Intervention
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		current, err := tx.Interventions().Get(ctx, id)
		if err != nil {
			return notFoundOr(err, "intervention", id)
		}
		if err := access.Check(actor, access.ActionWrite, access.TargetOf(current)); err != nil {
			return err
		}
		reassigned := input.TechnicianID != nil && *input.TechnicianID != current.TechnicianID
		if reassigned {
			if err := access.Check(actor, access.ActionReassign, access.Target{AssignedTechnicianID: *input.TechnicianID}); err != nil {
				return err
			}
		}

		next := *current
		if reassigned {
			next.TechnicianID = *input.TechnicianID
		}
		next.ScheduledAt = input.ScheduledAt.apply(current.ScheduledAt)
		next.StartedAt = input.StartedAt.apply(current.StartedAt)
		next.EndedAt = input.EndedAt.apply(current.EndedAt)
		if input.ActionType != nil {
			next.ActionType = *input.ActionType
		}
		next.Description = trimmed(input.Description.apply(current.Description))
		next.EstimatedCost = input.EstimatedCost.apply(current.EstimatedCost)
		next.Outcome = input.Outcome.apply(current.Outcome)
		next.SignatureURL = input.SignatureURL.apply(current.SignatureURL)
		next.Location = input.Location.apply(current.Location)

		if input.State != nil {
			if err := workflow.Check(current.State, *input.State, next.StartedAt != nil, next.EndedAt != nil); err != nil {
				return err
			}
			next.State = *input.State
		}
		if err := validateInterventionFields(&next.ActionType, next.Outcome, next.Location, next.EstimatedCost); err != nil {
			return err
		}
		if reassigned {
			if err := ensureTechnician(ctx, tx, next.TechnicianID); err != nil {
				return err
			}
		}

		if input.StartedAt.Set || input.EndedAt.Set {
			duration, err := billing.DurationMinutes(next.StartedAt, next.EndedAt)
			if err != nil {
				return withDetail(err, "field", "fechaHoraFin")
			}
			next.DurationMinutes = duration
		}

		if err := tx.Interventions().Update(ctx, &next); err != nil {
			return notFoundOr(err, "intervention", id)
		}
		before = current
		updated, err = tx.Interventions().Get(ctx, id)
		return err
	})
	s.metrics.ObserveOperation("update", outcomeOf(err))
	if err != nil {
		return nil, s.fail("update intervention", err)
	}

	s.recordChange(ctx, audit.Change{
		Action:   domain.AuditUpdate,
		Entity:   domain.EntityIntervention,
		EntityID: id,
		Actor:    actor,
		Before:   audit.InterventionSnapshot(before),
		After:    audit.InterventionSnapshot(updated),
	})
	if before.State != updated.State {
		s.publish(ctx, events.New(events.EventInterventionStateChanged, updated, actor.UserID, events.InterventionStateChangedPayload{
			OldState: before.State,
			NewState: updated.State,
		}))
	}
	return updated, nil
}

// Delete removes an intervention together with its materials.
func (s *InterventionService) Delete(ctx context.Context, id string, actor domain.Actor) error {
	var deleted *domain.Intervention
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		current, err := tx.Interventions().Get(ctx, id)
		if err != nil {
			return notFoundOr(err, "intervention", id)
		}
		if err := access.Check(actor, access.ActionDelete, access.TargetOf(current)); err != nil {
			return err
		}
		if err := tx.Interventions().Delete(ctx, id); err != nil {
			return notFoundOr(err, "intervention", id)
		}
		deleted = current
		return nil
	})
	s.metrics.ObserveOperation("delete", outcomeOf(err))
	if err != nil {
		return s.fail("delete intervention", err)
	}

	s.recordChange(ctx, audit.Change{
		Action:   domain.AuditDelete,
		Entity:   domain.EntityIntervention,
		EntityID: id,
		Actor:    actor,
		Before:   audit.InterventionSnapshot(deleted),
	})
	return nil
}

// GetByID returns one intervention. Actors outside its scope get not-found.
func (s *InterventionService) GetByID(ctx context.Context, id string, actor domain.Actor) (*domain.Intervention, error) {
	in, err := s.store.Interventions().Get(ctx, id)
	if err != nil {
		return nil, s.fail("get intervention", notFoundOr(err, "intervention", id))
	}
	if err := access.Check(actor, access.ActionRead, access.TargetOf(in)); err != nil {
		return nil, err
	}
	if scope := access.Scope(actor); scope != nil {
		owner := in.TechnicianID == *scope || (in.TicketTechnicianID != nil && *in.TicketTechnicianID == *scope)
		if !owner {
			return nil, apperrors.NewNotFound("intervention", map[string]any{"id": id})
		}
	}
	return in, nil
}

// CanWrite loads the intervention and checks that actor may modify it, without
// changing anything. Callers use it before side effects outside the store.
func (s *InterventionService) CanWrite(ctx context.Context, id string, actor domain.Actor) (*domain.Intervention, error) {
	in, err := s.store.Interventions().Get(ctx, id)
	if err != nil {
		return nil, s.fail("get intervention", notFoundOr(err, "intervention", id))
	}
	if err := access.Check(actor, access.ActionWrite, access.TargetOf(in)); err != nil {
		return nil, err
	}
	return in, nil
}

// ListByTicket pages through a ticket's interventions. Non-privileged actors
// only see interventions assigned to them directly or through the ticket.
func (s *InterventionService) ListByTicket(ctx context.Context, ticketNumber string, filter InterventionListFilter, actor domain.Actor) (*InterventionPage, error) {
	if err := access.Check(actor, access.ActionRead, access.Target{}); err != nil {
		return nil, err
	}
	page, pageSize, err := normalizePage(filter.Page, filter.PageSize)
	if err != nil {
		return nil, err
	}
	if filter.State != nil && !filter.State.Valid() {
		return nil, apperrors.NewValidationError("unknown task state", map[string]any{"field": "estadoTarea"})
	}
	if filter.StartFrom != nil && filter.StartTo != nil && filter.StartTo.Before(*filter.StartFrom) {
		return nil, apperrors.NewValidationError("fechaDesde must not be after fechaHasta", map[string]any{"field": "fechaHasta"})
	}
	if _, err := s.store.Tickets().Get(ctx, ticketNumber); err != nil {
		return nil, s.fail("list interventions", notFoundOr(err, "ticket", ticketNumber))
	}

	items, total, err := s.store.Interventions().List(ctx, repository.InterventionFilter{
		TicketNumber: &ticketNumber,
		State:        filter.State,
		TechnicianID: filter.TechnicianID,
		StartFrom:    filter.StartFrom,
		StartTo:      filter.StartTo,
		ScopeActorID: access.Scope(actor),
		Limit:        pageSize,
		Offset:       (page - 1) * pageSize,
	})
	if err != nil {
		return nil, s.fail("list interventions", err)
	}
	if items == nil {
		items = []domain.Intervention{}
	}
	return &InterventionPage{Items: items, Pagination: paginate(page, pageSize, total)}, nil
}

// AddMaterials appends material lines to an intervention atomically.
func (s *InterventionService) AddMaterials(ctx context.Context, interventionID string, lines []MaterialInput, actor domain.Actor) (*domain.Intervention, error) {
	var (
		before, updated *domain.Intervention
		created         []domain.Material
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		parent, err := s.loadForWrite(ctx, tx, interventionID, actor)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return apperrors.NewValidationError("at least one material is required", map[string]any{"field": "materiales"})
		}
		materials := make([]domain.Material, len(lines))
		for i, line := range lines {
			total, err := lineTotal(line.ArticleCode, line.Units, line.UnitPrice, line.Discount)
			if err != nil {
				return withDetail(err, "index", i)
			}
			materials[i] = domain.Material{
				ID:             s.newID(),
				InterventionID: parent.ID,
				ArticleCode:    strings.TrimSpace(line.ArticleCode),
				Units:          line.Units,
				UnitPrice:      line.UnitPrice,
				Discount:       line.Discount,
				Total:          total,
			}
		}
		for i := range materials {
			if err := tx.Materials().Create(ctx, &materials[i]); err != nil {
				return err
			}
		}
		before, created = parent, materials
		updated, err = tx.Interventions().Get(ctx, parent.ID)
		return err
	})
	s.metrics.ObserveOperation("add_materials", outcomeOf(err))
	if err != nil {
		return nil, s.fail("add materials", err)
	}

	ids := make([]string, len(created))
	for i := range created {
		ids[i] = created[i].ID
		s.recordChange(ctx, audit.Change{
			Action:   domain.AuditCreate,
			Entity:   domain.EntityMaterial,
			EntityID: created[i].ID,
			Actor:    actor,
			After:    audit.MaterialSnapshot(&created[i]),
		})
	}
	s.materialsChanged(ctx, "ADD", before, updated, ids, actor)
	return updated, nil
}

// UpdateMaterial changes one material line and recomputes its stored total.
func (s *InterventionService) UpdateMaterial(ctx context.Context, interventionID, materialID string, input MaterialUpdateInput, actor domain.Actor) (*domain.Intervention, error) {
	var (
		before, updated  *domain.Intervention
		oldLine, newLine *domain.Material
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		parent, err := s.loadForWrite(ctx, tx, interventionID, actor)
		if err != nil {
			return err
		}
		current, err := materialOf(ctx, tx, interventionID, materialID)
		if err != nil {
			return err
		}

		next := *current
		if input.ArticleCode != nil {
			next.ArticleCode = strings.TrimSpace(*input.ArticleCode)
		}
		if input.Units != nil {
			next.Units = *input.Units
		}
		if input.UnitPrice != nil {
			next.UnitPrice = *input.UnitPrice
		}
		if input.Discount != nil {
			next.Discount = *input.Discount
		}
		next.Total, err = lineTotal(next.ArticleCode, next.Units, next.UnitPrice, next.Discount)
		if err != nil {
			return err
		}
		if err := tx.Materials().Update(ctx, &next); err != nil {
			return notFoundOr(err, "material", materialID)
		}
		before, oldLine, newLine = parent, current, &next
		updated, err = tx.Interventions().Get(ctx, interventionID)
		return err
	})
	s.metrics.ObserveOperation("update_material", outcomeOf(err))
	if err != nil {
		return nil, s.fail("update material", err)
	}

	s.recordChange(ctx, audit.Change{
		Action:   domain.AuditUpdate,
		Entity:   domain.EntityMaterial,
		EntityID: materialID,
		Actor:    actor,
		Before:   audit.MaterialSnapshot(oldLine),
		After:    audit.MaterialSnapshot(newLine),
	})
	s.materialsChanged(ctx, "UPDATE", before, updated, []string{materialID}, actor)
	return updated, nil
}

// DeleteMaterial removes one material line.
func (s *InterventionService) DeleteMaterial(ctx context.Context, interventionID, materialID string, actor domain.Actor) (*domain.Intervention, error) {
	var (
		before, updated *domain.Intervention
		removed         *domain.Material
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		parent, err := s.loadForWrite(ctx, tx, interventionID, actor)
		if err != nil {
			return err
		}
		current, err := materialOf(ctx, tx, interventionID, materialID)
		if err != nil {
			return err
		}
		if err := tx.Materials().Delete(ctx, materialID); err != nil {
			return notFoundOr(err, "material", materialID)
		}
		before, removed = parent, current
		updated, err = tx.Interventions().Get(ctx, interventionID)
		return err
	})
	s.metrics.ObserveOperation("delete_material", outcomeOf(err))
	if err != nil {
		return nil, s.fail("delete material", err)
	}

	s.recordChange(ctx, audit.Change{
		Action:   domain.AuditDelete,
		Entity:   domain.EntityMaterial,
		EntityID: materialID,
		Actor:    actor,
		Before:   audit.MaterialSnapshot(removed),
	})
	s.materialsChanged(ctx, "DELETE", before, updated, []string{materialID}, actor)
	return updated, nil
}

// UpdateAdjuntos replaces the attachment list wholesale.
func (s *InterventionService) UpdateAdjuntos(ctx context.Context, id string, files []domain.Attachment, actor domain.Actor) (*domain.Intervention, error) {
	return s.mutateAttachments(ctx, id, actor, func(domain.AttachmentSet) (domain.AttachmentSet, error) {
		return domain.AttachmentSet{Files: append([]domain.Attachment{}, files...)}, nil
	})
}

// AppendAttachments adds files after the existing ones in one transaction.
func (s *InterventionService) AppendAttachments(ctx context.Context, id string, files []domain.Attachment, actor domain.Actor) (*domain.Intervention, error) {
	return s.mutateAttachments(ctx, id, actor, func(current domain.AttachmentSet) (domain.AttachmentSet, error) {
		return current.With(files...), nil
	})
}

// RemoveAttachment drops one attachment entry and returns it so the caller
// can delete the stored object.
func (s *InterventionService) RemoveAttachment(ctx context.Context, id, fileID string, actor domain.Actor) (*domain.Intervention, *domain.Attachment, error) {
	var removed domain.Attachment
	updated, err := s.mutateAttachments(ctx, id, actor, func(current domain.AttachmentSet) (domain.AttachmentSet, error) {
		found, ok := current.Find(fileID)
		if !ok {
			return current, apperrors.NewNotFound("attachment", map[string]any{"id": fileID})
		}
		removed = found
		return current.Without(fileID), nil
	})
	if err != nil {
		return nil, nil, err
	}
	return updated, &removed, nil
}

func (s *InterventionService) mutateAttachments(ctx context.Context, id string, actor domain.Actor, mutate func(domain.AttachmentSet) (domain.AttachmentSet, error)) (*domain.Intervention, error) {
	var before, updated *domain.Intervention
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		current, err := s.loadForWrite(ctx, tx, id, actor)
		if err != nil {
			return err
		}
		set, err := mutate(current.Attachments)
		if err != nil {
			return err
		}
		if err := validateAttachments(set.Files); err != nil {
			return err
		}
		next := *current
		next.Attachments = set
		if err := tx.Interventions().Update(ctx, &next); err != nil {
			return notFoundOr(err, "intervention", id)
		}
		before = current
		updated, err = tx.Interventions().Get(ctx, id)
		return err
	})
	s.metrics.ObserveOperation("update_adjuntos", outcomeOf(err))
	if err != nil {
		return nil, s.fail("update adjuntos", err)
	}

	s.recordChange(ctx, audit.Change{
		Action:   domain.AuditUpdate,
		Entity:   domain.EntityIntervention,
		EntityID: id,
		Actor:    actor,
		Before:   map[string]any{"adjuntos": attachmentIDs(before.Attachments)},
		After:    map[string]any{"adjuntos": attachmentIDs(updated.Attachments)},
	})
	return updated, nil
}

// loadForWrite locks the parent intervention and checks write permission.
func (s *InterventionService) loadForWrite(ctx context.Context, tx repository.Store, id string, actor domain.Actor) (*domain.Intervention, error) {
	if err := tx.Interventions().Lock(ctx, id); err != nil {
		return nil, notFoundOr(err, "intervention", id)
	}
	current, err := tx.Interventions().Get(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "intervention", id)
	}
	if err := access.Check(actor, access.ActionWrite, access.TargetOf(current)); err != nil {
		return nil, err
	}
	return current, nil
}

func (s *InterventionService) materialsChanged(ctx context.Context, action string, before, after *domain.Intervention, ids []string, actor domain.Actor) {
	snapshot := audit.InterventionSnapshot(after)
	snapshot["materialAction"] = action
	s.recordChange(ctx, audit.Change{
		Action:   domain.AuditUpdate,
		Entity:   domain.EntityIntervention,
		EntityID: after.ID,
		Actor:    actor,
		Before:   audit.InterventionSnapshot(before),
		After:    snapshot,
	})
	totals := after.Totals()
	s.publish(ctx, events.New(events.EventInterventionMaterialsChanged, after, actor.UserID, events.InterventionMaterialsChangedPayload{
		Action:        action,
		MaterialIDs:   ids,
		ImporteTotal:  totals.Amount.InexactFloat64(),
		MaterialCount: totals.MaterialCount,
	}))
}

func (s *InterventionService) recordChange(ctx context.Context, change audit.Change) {
	recordChange(ctx, s.audit, s.logger, change)
}

func (s *InterventionService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func (s *InterventionService) fail(op string, err error) error {
	return failure(s.logger, op, err)
}

func materialOf(ctx context.Context, tx repository.Store, interventionID, materialID string) (*domain.Material, error) {
	m, err := tx.Materials().Get(ctx, materialID)
	if err != nil {
		return nil, notFoundOr(err, "material", materialID)
	}
	if m.InterventionID != interventionID {
		return nil, apperrors.NewNotFound("material", map[string]any{"id": materialID})
	}
	return m, nil
}

func lineTotal(articleCode string, units, unitPrice, discount decimal.Decimal) (decimal.Decimal, error) {
	if strings.TrimSpace(articleCode) == "" {
		return decimal.Zero, apperrors.NewValidationError("codigoArticulo is required", map[string]any{"field": "codigoArticulo"})
	}
	return billing.LineTotalDecimal(units, unitPrice, discount)
}

// ensureTechnician checks that id names an active user holding the technician role.
func ensureTechnician(ctx context.Context, tx repository.Store, id string) error {
	invalid := apperrors.NewValidationError("tecnicoAsignadoId does not reference an active technician", map[string]any{"field": "tecnicoAsignadoId"})
	if strings.TrimSpace(id) == "" {
		return invalid
	}
	user, err := tx.Users().GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return invalid
	}
	if err != nil {
		return err
	}
	if !user.Active || !user.HasRole(domain.RoleTechnician) {
		return invalid
	}
	return nil
}

func validateInterventionFields(actionType *domain.ActionType, outcome *domain.Outcome, location *domain.Location, cost *decimal.Decimal) error {
	if actionType == nil || !actionType.Valid() {
		return apperrors.NewValidationError("unknown tipoAccion", map[string]any{"field": "tipoAccion"})
	}
	if outcome != nil && !outcome.Valid() {
		return apperrors.NewValidationError("unknown resultado", map[string]any{"field": "resultado"})
	}
	if location != nil && !location.Valid() {
		return apperrors.NewValidationError("unknown ubicacion", map[string]any{"field": "ubicacion"})
	}
	if cost != nil && cost.IsNegative() {
		return apperrors.NewValidationError("costeEstimado cannot be negative", map[string]any{"field": "costeEstimado"})
	}
	return nil
}

func validateAttachments(files []domain.Attachment) error {
	seen := make(map[string]struct{}, len(files))
	for i, f := range files {
		if f.ID == "" || f.Name == "" || f.URL == "" {
			return apperrors.NewValidationError("attachment requires id, name and url", map[string]any{"field": "adjuntos", "index": i})
		}
		if f.Size < 0 {
			return apperrors.NewValidationError("attachment size cannot be negative", map[string]any{"field": "adjuntos", "index": i})
		}
		if _, dup := seen[f.ID]; dup {
			return apperrors.NewValidationError("duplicate attachment id", map[string]any{"field": "adjuntos", "index": i})
		}
		seen[f.ID] = struct{}{}
	}
	return nil
}

func attachmentIDs(set domain.AttachmentSet) []any {
	ids := make([]any, len(set.Files))
	for i, f := range set.Files {
		ids[i] = f.ID
	}
	return ids
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
