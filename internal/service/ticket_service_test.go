package service

import (
	"context"
	"testing"
	"time"

	"github.com/spec-kit/intervention-service/internal/domain"
	"github.com/spec-kit/intervention-service/internal/repository"
	"github.com/spec-kit/intervention-service/internal/repository/memstore"
	apperrors "github.com/spec-kit/intervention-service/pkg/util/errorutil"
)

// staleStore reports an outdated latest ticket number for the first
// staleReads lookups, as a concurrent allocator would observe.
type staleStore struct {
	repository.Store
	staleReads *int
}

func (s staleStore) Tickets() repository.TicketRepository {
	return staleTickets{TicketRepository: s.Store.Tickets(), staleReads: s.staleReads}
}

func (s staleStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		return fn(ctx, staleStore{Store: tx, staleReads: s.staleReads})
	})
}

type staleTickets struct {
	repository.TicketRepository
	staleReads *int
}

func (t staleTickets) LatestNumber(ctx context.Context, prefix string) (string, error) {
	if *t.staleReads > 0 {
		*t.staleReads--
		return "", nil
	}
	return t.TicketRepository.LatestNumber(ctx, prefix)
}

func newTicketService(t *testing.T, store repository.Store) (*TicketService, *captureRecorder) {
	t.Helper()
	recorder := &captureRecorder{}
	svc := NewTicketService(TicketDependencies{
		Store: store,
		Audit: recorder,
		Now:   func() time.Time { return t0 },
	})
	return svc, recorder
}

func seedTicketData(t *testing.T) *memstore.Store {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	if err := store.Users().Create(ctx, &domain.User{ID: "tec-1", Username: "tec1", DisplayName: "Ana", Roles: []domain.Role{domain.RoleTechnician}, Active: true}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	for _, code := range []string{"C001", "C002"} {
		if err := store.Clients().Create(ctx, &domain.Client{Code: code, CompanyName: code}); err != nil {
			t.Fatalf("create client: %v", err)
		}
	}
	if err := store.Clients().CreateContract(ctx, &domain.Contract{ID: "K-1", ClientCode: "C001", ContractType: "Mantenimiento"}); err != nil {
		t.Fatalf("create contract: %v", err)
	}
	return store
}

func TestTicketNumbering(t *testing.T) {
	store := seedTicketData(t)
	svc, recorder := newTicketService(t, store)
	ctx := context.Background()

	for _, expected := range []string{"T202401-0001", "T202401-0002"} {
		ticket, err := svc.Create(ctx, TicketCreateInput{ClientCode: "C001"}, admin)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if ticket.Number != expected || ticket.Status != domain.TicketStatusOpen || ticket.Urgency != domain.TicketUrgencyNormal {
			t.Errorf("ticket = %+v, expected number %s", ticket, expected)
		}
	}
	if len(recorder.changes) != 2 || recorder.changes[0].Entity != domain.EntityTicket {
		t.Errorf("audit = %+v", recorder.changes)
	}
}

func TestTicketNumberCollisionRetriesOnce(t *testing.T) {
	store := seedTicketData(t)
	ctx := context.Background()
	plain, _ := newTicketService(t, store)
	if _, err := plain.Create(ctx, TicketCreateInput{ClientCode: "C001"}, admin); err != nil {
		t.Fatalf("seed ticket: %v", err)
	}

	stale := 1
	svc, _ := newTicketService(t, staleStore{Store: store, staleReads: &stale})
	ticket, err := svc.Create(ctx, TicketCreateInput{ClientCode: "C001"}, admin)
	if err != nil {
		t.Fatalf("Create after collision: %v", err)
	}
	if ticket.Number != "T202401-0002" {
		t.Errorf("number = %s, expected T202401-0002", ticket.Number)
	}

	stale = 2
	_, err = svc.Create(ctx, TicketCreateInput{ClientCode: "C001"}, admin)
	assertKind(t, err, apperrors.KindInternal)
}

func TestTicketCreateValidation(t *testing.T) {
	store := seedTicketData(t)
	svc, _ := newTicketService(t, store)
	ctx := context.Background()
	contract := "K-1"
	missing := "nope"
	tech := "tec-1"

	cases := []struct {
		name  string
		input TicketCreateInput
		actor domain.Actor
		kind  apperrors.Kind
	}{
		{"technician cannot create", TicketCreateInput{ClientCode: "C001"}, tech1, apperrors.KindPermission},
		{"missing client", TicketCreateInput{}, admin, apperrors.KindValidation},
		{"unknown client", TicketCreateInput{ClientCode: "C999"}, admin, apperrors.KindValidation},
		{"contract of another client", TicketCreateInput{ClientCode: "C002", ContractID: &contract}, admin, apperrors.KindValidation},
		{"unknown contract", TicketCreateInput{ClientCode: "C001", ContractID: &missing}, admin, apperrors.KindValidation},
		{"unknown technician", TicketCreateInput{ClientCode: "C001", TechnicianID: &missing}, admin, apperrors.KindValidation},
		{"unknown urgency", TicketCreateInput{ClientCode: "C001", Urgency: "YA"}, admin, apperrors.KindValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.input, tc.actor)
			assertKind(t, err, tc.kind)
		})
	}

	ticket, err := svc.Create(ctx, TicketCreateInput{ClientCode: "C001", ContractID: &contract, TechnicianID: &tech, Urgency: domain.TicketUrgencyHigh}, admin)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ticket.Number != "T202401-0001" {
		t.Errorf("failed creates consumed numbers: %s", ticket.Number)
	}
}

func TestTicketCloseAndReopen(t *testing.T) {
	store := seedTicketData(t)
	svc, _ := newTicketService(t, store)
	ctx := context.Background()
	ticket, err := svc.Create(ctx, TicketCreateInput{ClientCode: "C001"}, admin)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	closed, err := svc.Close(ctx, ticket.Number, admin)
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !closed.IsClosed() || closed.Status != domain.TicketStatusClosed {
		t.Fatalf("closed = %+v", closed)
	}
	_, err = svc.Close(ctx, ticket.Number, admin)
	assertKind(t, err, apperrors.KindConflict)

	open := domain.TicketStatusInProgress
	reopened, err := svc.Update(ctx, ticket.Number, TicketUpdateInput{Status: &open}, admin)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.IsClosed() {
		t.Errorf("reopened ticket still has fechaCierre")
	}

	_, err = svc.Update(ctx, ticket.Number, TicketUpdateInput{Detail: SetTo("x")}, tech1)
	assertKind(t, err, apperrors.KindPermission)
	_, err = svc.Close(ctx, "T202401-0404", admin)
	assertKind(t, err, apperrors.KindNotFound)
}

func TestTicketDeleteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := f.create(t, InterventionCreateInput{TechnicianID: "tec-1", ActionType: domain.ActionRepair}, admin)
	svc, _ := newTicketService(t, f.store)

	err := svc.Delete(ctx, testTicket, tech1)
	assertKind(t, err, apperrors.KindPermission)

	if err := svc.Delete(ctx, testTicket, admin); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := f.store.Interventions().Get(ctx, in.ID); err == nil {
		t.Errorf("intervention survived ticket delete")
	}
	_, err = svc.Get(ctx, testTicket)
	assertKind(t, err, apperrors.KindNotFound)
}

func TestTicketList(t *testing.T) {
	store := seedTicketData(t)
	svc, _ := newTicketService(t, store)
	ctx := context.Background()
	serial := "SN-778"
	for _, input := range []TicketCreateInput{
		{ClientCode: "C001", SerialNumber: &serial},
		{ClientCode: "C002", Urgency: domain.TicketUrgencyCritical},
		{ClientCode: "C002"},
	} {
		if _, err := svc.Create(ctx, input, admin); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	client := "C002"
	page, err := svc.List(ctx, TicketListFilter{ClientCode: &client})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 2 || page.Items[0].Number != "T202401-0003" {
		t.Errorf("client page = %+v", page)
	}

	term := "sn-77"
	found, err := svc.List(ctx, TicketListFilter{SearchTerm: &term})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if found.Total != 1 || found.Items[0].Number != "T202401-0001" {
		t.Errorf("search page = %+v", found)
	}

	_, err = svc.List(ctx, TicketListFilter{PageSize: 500})
	assertKind(t, err, apperrors.KindValidation)
}
