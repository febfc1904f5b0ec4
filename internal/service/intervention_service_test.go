package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/intervention-service/internal/access"
	"github.com/spec-kit/intervention-service/internal/audit"
	"github.com/spec-kit/intervention-service/internal/domain"
	"github.com/spec-kit/intervention-service/internal/events"
	"github.com/spec-kit/intervention-service/internal/repository/memstore"
	apperrors "github.com/spec-kit/intervention-service/pkg/util/errorutil"
)

const testTicket = "T202401-0001"

var (
	admin  = domain.Actor{UserID: "adm", Roles: []domain.Role{domain.RoleAdmin}, IP: "10.0.0.1"}
	tech1  = domain.Actor{UserID: "tec-1", Roles: []domain.Role{domain.RoleTechnician}}
	tech2  = domain.Actor{UserID: "tec-2", Roles: []domain.Role{domain.RoleTechnician}}
	nobody = domain.Actor{UserID: "guest"}
	t0     = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	dec    = decimal.RequireFromString
)

type captureRecorder struct {
	changes  []audit.Change
	security []audit.SecurityEvent
	err      error
}

func (c *captureRecorder) RecordChange(_ context.Context, change audit.Change) error {
	c.changes = append(c.changes, change)
	return c.err
}

func (c *captureRecorder) RecordSecurityEvent(_ context.Context, event audit.SecurityEvent) error {
	c.security = append(c.security, event)
	return c.err
}

type fixture struct {
	store    *memstore.Store
	recorder *captureRecorder
	events   []events.Event
	svc      *InterventionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	for _, u := range []domain.User{
		{ID: "adm", Username: "admin", DisplayName: "Admin", Roles: []domain.Role{domain.RoleAdmin}, Active: true},
		{ID: "tec-1", Username: "tec1", DisplayName: "Ana Tecnica", Roles: []domain.Role{domain.RoleTechnician}, Active: true},
		{ID: "tec-2", Username: "tec2", DisplayName: "Luis Tecnico", Roles: []domain.Role{domain.RoleTechnician}, Active: true},
		{ID: "tec-off", Username: "tecoff", DisplayName: "Baja", Roles: []domain.Role{domain.RoleTechnician}, Active: false},
	} {
		u := u
		if err := store.Users().Create(ctx, &u); err != nil {
			t.Fatalf("create user %s: %v", u.ID, err)
		}
	}
	if err := store.Clients().Create(ctx, &domain.Client{Code: "C001", CompanyName: "Acme"}); err != nil {
		t.Fatalf("create client: %v", err)
	}
	if err := store.Tickets().Create(ctx, &domain.Ticket{Number: testTicket, ClientCode: "C001", Status: domain.TicketStatusOpen, Urgency: domain.TicketUrgencyNormal}); err != nil {
		t.Fatalf("create ticket: %v", err)
	}

	f := &fixture{store: store, recorder: &captureRecorder{}}
	dispatcher := events.NewInMemoryDispatcher()
	for _, et := range []events.EventType{events.EventInterventionCreated, events.EventInterventionStateChanged, events.EventInterventionMaterialsChanged} {
		dispatcher.Subscribe(et, func(_ context.Context, e events.Event) error {
			f.events = append(f.events, e)
			return nil
		})
	}
	f.svc = NewInterventionService(InterventionDependencies{Store: store, Audit: f.recorder, Dispatcher: dispatcher})
	return f
}

func (f *fixture) create(t *testing.T, input InterventionCreateInput, actor domain.Actor) *domain.Intervention {
	t.Helper()
	in, err := f.svc.Create(context.Background(), testTicket, input, actor)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return in
}

func assertKind(t *testing.T, err error, kind apperrors.Kind) {
	t.Helper()
	if !apperrors.IsKind(err, kind) {
		t.Fatalf("error = %v (%s), expected %s", err, apperrors.KindOf(err), kind)
	}
}

func assertForbidden(t *testing.T, err error, reason string) {
	t.Helper()
	assertKind(t, err, apperrors.KindPermission)
	if got := apperrors.MessageOf(err); got != reason {
		t.Fatalf("reason = %q, expected %q", got, reason)
	}
}

func TestInterventionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := f.create(t, InterventionCreateInput{TechnicianID: "tec-1", ActionType: domain.ActionRepair}, admin)
	if in.State != domain.TaskStatePending || in.DurationMinutes != nil {
		t.Fatalf("created = %+v", in)
	}
	if in.Technician.DisplayName != "Ana Tecnica" {
		t.Errorf("technician = %+v", in.Technician)
	}

	start, end := t0, t0.Add(45*time.Minute)
	state := domain.TaskStateFinished
	updated, err := f.svc.Update(ctx, in.ID, InterventionUpdateInput{
		StartedAt: SetTo(start),
		EndedAt:   SetTo(end),
		State:     &state,
	}, tech1)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.DurationMinutes == nil || *updated.DurationMinutes != 45 {
		t.Fatalf("duration = %v, expected 45", updated.DurationMinutes)
	}

	err = f.svc.Delete(ctx, in.ID, tech1)
	assertForbidden(t, err, access.ReasonFinalizedDelete)

	withMaterials, err := f.svc.AddMaterials(ctx, in.ID, []MaterialInput{
		{ArticleCode: "ART-1", Units: dec("2"), UnitPrice: dec("15.50"), Discount: dec("10")},
		{ArticleCode: "ART-2", Units: dec("1"), UnitPrice: dec("25"), Discount: dec("0")},
	}, admin)
	if err != nil {
		t.Fatalf("AddMaterials: %v", err)
	}
	totals := withMaterials.Totals()
	if !totals.Amount.Equal(dec("52.90")) || totals.MaterialCount != 2 {
		t.Fatalf("totals = %s / %d, expected 52.90 / 2", totals.Amount, totals.MaterialCount)
	}

	if err := f.svc.Delete(ctx, in.ID, admin); err != nil {
		t.Fatalf("admin Delete: %v", err)
	}
	if _, err := f.svc.GetByID(ctx, in.ID, admin); !apperrors.IsKind(err, apperrors.KindNotFound) {
		t.Fatalf("GetByID after delete = %v", err)
	}
	left, _ := f.store.Materials().ListByIntervention(ctx, in.ID)
	if len(left) != 0 {
		t.Errorf("materials survived delete: %d", len(left))
	}

	var types []events.EventType
	for _, e := range f.events {
		types = append(types, e.Type)
	}
	expected := []events.EventType{events.EventInterventionCreated, events.EventInterventionStateChanged, events.EventInterventionMaterialsChanged}
	if len(types) != len(expected) {
		t.Fatalf("events = %v, expected %v", types, expected)
	}
	for i := range expected {
		if types[i] != expected[i] {
			t.Errorf("event[%d] = %s, expected %s", i, types[i], expected[i])
		}
	}
}

func TestCreateOnClosedTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	closed := t0
	ticket, _ := f.store.Tickets().Get(ctx, testTicket)
	ticket.ClosedAt = &closed
	ticket.Status = domain.TicketStatusClosed
	if err := f.store.Tickets().Update(ctx, ticket); err != nil {
		t.Fatalf("close ticket: %v", err)
	}

	_, err := f.svc.Create(ctx, testTicket, InterventionCreateInput{TechnicianID: "tec-1", ActionType: domain.ActionCall}, admin)
	assertKind(t, err, apperrors.KindConflict)
	if apperrors.MessageOf(err) != ReasonTicketClosed {
		t.Errorf("message = %q", apperrors.MessageOf(err))
	}
	if len(f.recorder.changes) != 0 || len(f.events) != 0 {
		t.Errorf("failed create emitted side effects")
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inProgress := domain.TaskStateInProgress
	finished := domain.TaskStateFinished
	start := t0
	end := t0.Add(-time.Minute)
	negative := dec("-1")
	bogusOutcome := domain.Outcome("Tal vez")

	cases := []struct {
		name  string
		input InterventionCreateInput
		actor domain.Actor
		kind  apperrors.Kind
	}{
		{"missing technician", InterventionCreateInput{ActionType: domain.ActionRepair}, admin, apperrors.KindValidation},
		{"inactive technician", InterventionCreateInput{TechnicianID: "tec-off", ActionType: domain.ActionRepair}, admin, apperrors.KindValidation},
		{"admin is not a technician", InterventionCreateInput{TechnicianID: "adm", ActionType: domain.ActionRepair}, admin, apperrors.KindValidation},
		{"unknown action", InterventionCreateInput{TechnicianID: "tec-1", ActionType: "Magia"}, admin, apperrors.KindValidation},
		{"unknown outcome", InterventionCreateInput{TechnicianID: "tec-1", ActionType: domain.ActionRepair, Outcome: &bogusOutcome}, admin, apperrors.KindValidation},
		{"negative cost", InterventionCreateInput{TechnicianID: "tec-1", ActionType: domain.ActionRepair, EstimatedCost: &negative}, admin, apperrors.KindValidation},
		{"in progress without start", InterventionCreateInput{TechnicianID: "tec-1", ActionType: domain.ActionRepair, State: &inProgress}, admin, apperrors.KindValidation},
		{"finished without end", InterventionCreateInput{TechnicianID: "tec-1", ActionType: domain.ActionRepair, State: &finished, StartedAt: &start}, admin, apperrors.KindValidation},
		{"end before start", InterventionCreateInput{TechnicianID: "tec-1", ActionType: domain.ActionRepair, StartedAt: &start, EndedAt: &end}, admin, apperrors.KindValidation},
		{"attachment without url", InterventionCreateInput{TechnicianID: "tec-1", ActionType: domain.ActionRepair, Attachments: []domain.Attachment{{ID: "a", Name: "a.pdf"}}}, admin, apperrors.KindValidation},
		{"technician for someone else", InterventionCreateInput{TechnicianID: "tec-2", ActionType: domain.ActionRepair}, tech1, apperrors.KindPermission},
		{"role without access", InterventionCreateInput{TechnicianID: "tec-1", ActionType: domain.ActionRepair}, nobody, apperrors.KindPermission},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, testTicket, tc.input, tc.actor)
			assertKind(t, err, tc.kind)
		})
	}

	_, err := f.svc.Create(ctx, "T202401-9999", InterventionCreateInput{TechnicianID: "tec-1", ActionType: domain.ActionRepair}, admin)
	assertKind(t, err, apperrors.KindNotFound)
}

func TestCreateAsTechnician(t *testing.T) {
	f := newFixture(t)
	state := domain.TaskStateInProgress
	start := t0
	in := f.create(t, InterventionCreateInput{TechnicianID: "tec-1", ActionType: domain.ActionDiagnosis, State: &state, StartedAt: &start}, tech1)
	if in.State != domain.TaskStateInProgress || in.DurationMinutes != nil {
		t.Errorf("created = %+v", in)
	}
	if len(f.recorder.changes) != 1 || f.recorder.changes[0].Action != domain.AuditCreate {
		t.Fatalf("audit = %+v", f.recorder.changes)
	}
}

func TestUpdatePermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := f.create(t, InterventionCreateInput{TechnicianID: "tec-1", ActionType: domain.ActionRepair}, admin)

	_, err := f.svc.Update(ctx, in.ID, InterventionUpdateInput{Description: SetTo("x")}, tech2)
	assertForbidden(t, err, access.ReasonNotAssigned)

	other := "tec-2"
	_, err = f.svc.Update(ctx, in.ID, InterventionUpdateInput{TechnicianID: &other}, tech1)
	assertForbidden(t, err, access.ReasonNotAssigned)

	reassigned, err := f.svc.Update(ctx, in.ID, InterventionUpdateInput{TechnicianID: &other}, admin)
	if err != nil {
		t.Fatalf("admin reassign: %v", err)
	}
	if reassigned.TechnicianID != "tec-2" || reassigned.Technician.DisplayName != "Luis Tecnico" {
		t.Errorf("reassigned = %+v", reassigned)
	}

	_, err = f.svc.Update(ctx, "missing", InterventionUpdateInput{}, admin)
	assertKind(t, err, apperrors.KindNotFound)
}

func TestTicketTechnicianOwnsInterventions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket, _ := f.store.Tickets().Get(ctx, testTicket)
	owner := "tec-2"
	ticket.TechnicianID = &owner
	if err := f.store.Tickets().Update(ctx, ticket); err != nil {
		t.Fatalf("update ticket: %v", err)
	}
	in := f.create(t, InterventionCreateInput{TechnicianID: "tec-1", ActionType: domain.ActionRepair}, admin)

	updated, err := f.svc.Update(ctx, in.ID, InterventionUpdateInput{Description: SetTo("  revisado  ")}, tech2)
	if err != nil {
		t.Fatalf("ticket technician update: %v", err)
	}
	if updated.Description == nil || *updated.Description != "revisado" {
		t.Errorf("description = %v", updated.Description)
	}
	if _, err := f.svc.GetByID(ctx, in.ID, tech2); err != nil {
		t.Errorf("ticket technician GetByID: %v", err)
	}
}

func TestUpdateTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := f.create(t, InterventionCreateInput{TechnicianID: "tec-1", ActionType: domain.ActionRepair}, admin)

	finished := domain.TaskStateFinished
	_, err := f.svc.Update(ctx, in.ID, InterventionUpdateInput{State: &finished, StartedAt: SetTo(t0)}, admin)
	assertKind(t, err, apperrors.KindValidation)

	current, _ := f.svc.GetByID(ctx, in.ID, admin)
	if current.State != domain.TaskStatePending || current.StartedAt != nil {
		t.Fatalf("rejected update was persisted: %+v", current)
	}

	cancelled := domain.TaskStateCancelled
	if _, err := f.svc.Update(ctx, in.ID, InterventionUpdateInput{State: &cancelled}, admin); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	inProgress := domain.TaskStateInProgress
	_, err = f.svc.Update(ctx, in.ID, InterventionUpdateInput{State: &inProgress, StartedAt: SetTo(t0)}, admin)
	assertKind(t, err, apperrors.KindValidation)

	// Updates without a state never run the transition check.
	if _, err := f.svc.Update(ctx, in.ID, InterventionUpdateInput{Description: SetTo("nota")}, admin); err != nil {
		t.Fatalf("description update on cancelled: %v", err)
	}
}

func TestUpdateRecomputesDuration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start, end := t0, t0.Add(90*time.Minute)
	in := f.create(t, InterventionCreateInput{TechnicianID: "tec-1", ActionType: domain.ActionRepair, StartedAt: &start, EndedAt: &end}, admin)
	if in.DurationMinutes == nil || *in.DurationMinutes != 90 {
		t.Fatalf("duration = %v, expected 90", in.DurationMinutes)
	}

	updated, err := f.svc.Update(ctx, in.ID, InterventionUpdateInput{EndedAt: Cleared[time.Time]()}, admin)
	if err != nil {
		t.Fatalf("clear end: %v", err)
	}
	if updated.DurationMinutes != nil {
		t.Errorf("duration = %v, expected nil", *updated.DurationMinutes)
	}

	updated, err = f.svc.Update(ctx, in.ID, InterventionUpdateInput{EndedAt: SetTo(t0.Add(30 * time.Minute))}, admin)
	if err != nil {
		t.Fatalf("set end: %v", err)
	}
	if updated.DurationMinutes == nil || *updated.DurationMinutes != 30 {
		t.Errorf("duration = %v, expected 30", updated.DurationMinutes)
	}

	_, err = f.svc.Update(ctx, in.ID, InterventionUpdateInput{StartedAt: SetTo(t0.Add(time.Hour))}, admin)
	assertKind(t, err, apperrors.KindValidation)
}

func TestUpdateAuditsBeforeAndAfter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := f.create(t, InterventionCreateInput{TechnicianID: "tec-1", ActionType: domain.ActionRepair}, admin)

	if _, err := f.svc.Update(ctx, in.ID, InterventionUpdateInput{Description: SetTo("cambio")}, admin); err != nil {
		t.Fatalf("Update: %v", err)
	}
	last := f.recorder.changes[len(f.recorder.changes)-1]
	if last.Action != domain.AuditUpdate || last.Before == nil || last.After == nil {
		t.Fatalf("audit = %+v", last)
	}
	if last.Before["descripcion"] != nil || last.After["descripcion"] != "cambio" {
		t.Errorf("before/after = %v / %v", last.Before["descripcion"], last.After["descripcion"])
	}
	for _, e := range f.events {
		if e.Type == events.EventInterventionStateChanged {
			t.Errorf("state event published without a state change")
		}
	}
}

func TestAuditFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.recorder.err = errors.New("audit down")

	in, err := f.svc.Create(context.Background(), testTicket, InterventionCreateInput{TechnicianID: "tec-1", ActionType: domain.ActionRepair}, admin)
	if err != nil {
		t.Fatalf("Create with failing audit: %v", err)
	}
	if _, err := f.svc.GetByID(context.Background(), in.ID, admin); err != nil {
		t.Fatalf("intervention not committed: %v", err)
	}
}

func TestGetByIDScoping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := f.create(t, InterventionCreateInput{TechnicianID: "tec-1", ActionType: domain.ActionRepair}, admin)

	if _, err := f.svc.GetByID(ctx, in.ID, tech1); err != nil {
		t.Errorf("owner GetByID: %v", err)
	}
	_, err := f.svc.GetByID(ctx, in.ID, tech2)
	assertKind(t, err, apperrors.KindNotFound)
	_, err = f.svc.GetByID(ctx, "missing", admin)
	assertKind(t, err, apperrors.KindNotFound)
}

func TestListByTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		f.create(t, InterventionCreateInput{TechnicianID: "tec-1", ActionType: domain.ActionRepair}, admin)
	}
	f.create(t, InterventionCreateInput{TechnicianID: "tec-2", ActionType: domain.ActionCall}, admin)

	page, err := f.svc.ListByTicket(ctx, testTicket, InterventionListFilter{PageSize: 2}, admin)
	if err != nil {
		t.Fatalf("ListByTicket: %v", err)
	}
	if len(page.Items) != 2 || page.Total != 4 || page.TotalPages != 2 || page.Page != 1 {
		t.Errorf("admin page = %d items, %+v", len(page.Items), page.Pagination)
	}

	scoped, err := f.svc.ListByTicket(ctx, testTicket, InterventionListFilter{}, tech2)
	if err != nil {
		t.Fatalf("scoped ListByTicket: %v", err)
	}
	if scoped.Total != 1 || scoped.Items[0].TechnicianID != "tec-2" || scoped.PageSize != DefaultPageSize {
		t.Errorf("scoped page = %+v", scoped.Pagination)
	}

	empty, err := f.svc.ListByTicket(ctx, testTicket, InterventionListFilter{Page: 9}, admin)
	if err != nil {
		t.Fatalf("out of range page: %v", err)
	}
	if len(empty.Items) != 0 || empty.Total != 4 {
		t.Errorf("out of range page = %+v", empty)
	}

	from, to := t0, t0.Add(-time.Hour)
	for name, filter := range map[string]InterventionListFilter{
		"negative page":       {Page: -1},
		"page size too large": {PageSize: MaxPageSize + 1},
		"inverted range":      {StartFrom: &from, StartTo: &to},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.ListByTicket(ctx, testTicket, filter, admin)
			assertKind(t, err, apperrors.KindValidation)
		})
	}

	_, err = f.svc.ListByTicket(ctx, "T202401-9999", InterventionListFilter{}, admin)
	assertKind(t, err, apperrors.KindNotFound)
}

func TestMaterials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := f.create(t, InterventionCreateInput{TechnicianID: "tec-1", ActionType: domain.ActionReplacement}, admin)

	t.Run("empty list", func(t *testing.T) {
		_, err := f.svc.AddMaterials(ctx, in.ID, nil, tech1)
		assertKind(t, err, apperrors.KindValidation)
	})

	t.Run("invalid line rolls back the batch", func(t *testing.T) {
		_, err := f.svc.AddMaterials(ctx, in.ID, []MaterialInput{
			{ArticleCode: "OK", Units: dec("1"), UnitPrice: dec("1"), Discount: dec("0")},
			{ArticleCode: "BAD", Units: dec("1"), UnitPrice: dec("1"), Discount: dec("101")},
		}, tech1)
		assertKind(t, err, apperrors.KindValidation)
		if de := apperrors.ToDomainError(err); de.Details["index"] != 1 {
			t.Errorf("details = %v", de.Details)
		}
		lines, _ := f.store.Materials().ListByIntervention(ctx, in.ID)
		if len(lines) != 0 {
			t.Errorf("partial batch persisted: %d lines", len(lines))
		}
	})

	t.Run("values the columns cannot hold", func(t *testing.T) {
		for _, line := range []MaterialInput{
			{ArticleCode: "P", Units: dec("1.00005"), UnitPrice: dec("10000"), Discount: dec("12.345")},
			{ArticleCode: "Q", Units: dec("10000000000"), UnitPrice: dec("100000")},
		} {
			_, err := f.svc.AddMaterials(ctx, in.ID, []MaterialInput{line}, tech1)
			assertKind(t, err, apperrors.KindValidation)
		}
	})

	t.Run("blank article code", func(t *testing.T) {
		_, err := f.svc.AddMaterials(ctx, in.ID, []MaterialInput{{ArticleCode: "  ", Units: dec("1"), UnitPrice: dec("1")}}, tech1)
		assertKind(t, err, apperrors.KindValidation)
	})

	t.Run("not assigned", func(t *testing.T) {
		_, err := f.svc.AddMaterials(ctx, in.ID, []MaterialInput{{ArticleCode: "A", Units: dec("1"), UnitPrice: dec("1")}}, tech2)
		assertForbidden(t, err, access.ReasonNotAssigned)
	})

	added, err := f.svc.AddMaterials(ctx, in.ID, []MaterialInput{{ArticleCode: "A", Units: dec("3"), UnitPrice: dec("9.99"), Discount: dec("0")}}, tech1)
	if err != nil {
		t.Fatalf("AddMaterials: %v", err)
	}
	line := added.Materials[0]
	if !line.Total.Equal(dec("29.97")) {
		t.Fatalf("total = %s, expected 29.97", line.Total)
	}

	discount := dec("50")
	updated, err := f.svc.UpdateMaterial(ctx, in.ID, line.ID, MaterialUpdateInput{Discount: &discount}, tech1)
	if err != nil {
		t.Fatalf("UpdateMaterial: %v", err)
	}
	if got := updated.Materials[0].Total; !got.Equal(dec("14.99")) {
		t.Errorf("recomputed total = %s, expected 14.99", got)
	}

	other := f.create(t, InterventionCreateInput{TechnicianID: "tec-1", ActionType: domain.ActionReplacement}, admin)
	_, err = f.svc.UpdateMaterial(ctx, other.ID, line.ID, MaterialUpdateInput{Discount: &discount}, admin)
	assertKind(t, err, apperrors.KindNotFound)
	_, err = f.svc.DeleteMaterial(ctx, in.ID, "missing", admin)
	assertKind(t, err, apperrors.KindNotFound)

	emptied, err := f.svc.DeleteMaterial(ctx, in.ID, line.ID, tech1)
	if err != nil {
		t.Fatalf("DeleteMaterial: %v", err)
	}
	if totals := emptied.Totals(); !totals.Amount.IsZero() || totals.MaterialCount != 0 {
		t.Errorf("totals after delete = %+v", totals)
	}

	var materialRecords, parentRecords int
	for _, c := range f.recorder.changes {
		switch {
		case c.Entity == domain.EntityMaterial:
			materialRecords++
		case c.Entity == domain.EntityIntervention && c.After["materialAction"] != nil:
			parentRecords++
		}
	}
	// add, update, delete: one line record and one parent record each.
	if materialRecords != 3 || parentRecords != 3 {
		t.Errorf("material audit = %d, parent audit = %d, expected 3/3", materialRecords, parentRecords)
	}
}

func TestAttachments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := f.create(t, InterventionCreateInput{TechnicianID: "tec-1", ActionType: domain.ActionRepair}, admin)

	first := domain.Attachment{ID: "adjuntos/1-a-foto.jpg", Name: "foto.jpg", URL: "/uploads/adjuntos/1-a-foto.jpg", Size: 10, ContentType: "image/jpeg"}
	second := domain.Attachment{ID: "adjuntos/2-b-acta.pdf", Name: "acta.pdf", URL: "/uploads/adjuntos/2-b-acta.pdf", Size: 20, ContentType: "application/pdf"}

	got, err := f.svc.AppendAttachments(ctx, in.ID, []domain.Attachment{first}, tech1)
	if err != nil {
		t.Fatalf("AppendAttachments: %v", err)
	}
	got, err = f.svc.AppendAttachments(ctx, in.ID, []domain.Attachment{second}, tech1)
	if err != nil {
		t.Fatalf("AppendAttachments: %v", err)
	}
	if len(got.Attachments.Files) != 2 || got.Attachments.Files[1].ID != second.ID {
		t.Fatalf("attachments = %+v", got.Attachments.Files)
	}

	_, err = f.svc.AppendAttachments(ctx, in.ID, []domain.Attachment{first}, tech1)
	assertKind(t, err, apperrors.KindValidation)

	got, removed, err := f.svc.RemoveAttachment(ctx, in.ID, first.ID, tech1)
	if err != nil {
		t.Fatalf("RemoveAttachment: %v", err)
	}
	if removed.URL != first.URL || len(got.Attachments.Files) != 1 {
		t.Errorf("removed = %+v, remaining = %+v", removed, got.Attachments.Files)
	}
	_, _, err = f.svc.RemoveAttachment(ctx, in.ID, first.ID, tech1)
	assertKind(t, err, apperrors.KindNotFound)

	_, err = f.svc.UpdateAdjuntos(ctx, in.ID, nil, tech2)
	assertForbidden(t, err, access.ReasonNotAssigned)

	cleared, err := f.svc.UpdateAdjuntos(ctx, in.ID, nil, admin)
	if err != nil {
		t.Fatalf("UpdateAdjuntos: %v", err)
	}
	if len(cleared.Attachments.Files) != 0 {
		t.Errorf("attachments = %+v", cleared.Attachments.Files)
	}
}
