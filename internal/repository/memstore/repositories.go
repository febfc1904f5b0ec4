package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spec-kit/intervention-service/internal/domain"
	"github.com/spec-kit/intervention-service/internal/repository"
)

type tickets struct{ h *handle }

func (r *tickets) Create(ctx context.Context, ticket *domain.Ticket) error {
	return r.h.write(ctx, func(t *tables) error {
		if _, ok := t.tickets[ticket.Number]; ok {
			return fmt.Errorf("%w: tickets_pkey", repository.ErrDuplicate)
		}
		now := r.h.now()
		ticket.CreatedAt, ticket.UpdatedAt = now, now
		t.tickets[ticket.Number] = row[domain.Ticket]{value: cloneTicket(*ticket), seq: t.next()}
		return nil
	})
}

func (r *tickets) Update(ctx context.Context, ticket *domain.Ticket) error {
	return r.h.write(ctx, func(t *tables) error {
		existing, ok := t.tickets[ticket.Number]
		if !ok {
			return repository.ErrNotFound
		}
		ticket.CreatedAt = existing.value.CreatedAt
		ticket.UpdatedAt = r.h.now()
		existing.value = cloneTicket(*ticket)
		t.tickets[ticket.Number] = existing
		return nil
	})
}

func (r *tickets) Get(_ context.Context, number string) (*domain.Ticket, error) {
	var out *domain.Ticket
	err := r.h.read(func(t *tables) error {
		existing, ok := t.tickets[number]
		if !ok {
			return repository.ErrNotFound
		}
		ticket := cloneTicket(existing.value)
		out = &ticket
		return nil
	})
	return out, err
}

func (r *tickets) Delete(ctx context.Context, number string) error {
	return r.h.write(ctx, func(t *tables) error {
		if _, ok := t.tickets[number]; !ok {
			return repository.ErrNotFound
		}
		delete(t.tickets, number)
		for id, in := range t.interventions {
			if in.value.TicketNumber == number {
				deleteIntervention(t, id)
			}
		}
		return nil
	})
}

func (r *tickets) LatestNumber(_ context.Context, prefix string) (string, error) {
	var latest string
	err := r.h.read(func(t *tables) error {
		for number := range t.tickets {
			if strings.HasPrefix(number, prefix) && domain.TicketNumberLess(latest, number) {
				latest = number
			}
		}
		return nil
	})
	return latest, err
}

func (r *tickets) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, int, error) {
	search := ""
	if filter.SearchTerm != nil {
		search = strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
	}
	keep := func(ticket domain.Ticket) bool {
		switch {
		case filter.ClientCode != nil && ticket.ClientCode != *filter.ClientCode:
			return false
		case filter.TechnicianID != nil && (ticket.TechnicianID == nil || *ticket.TechnicianID != *filter.TechnicianID):
			return false
		case filter.Status != nil && ticket.Status != *filter.Status:
			return false
		case filter.Urgency != nil && ticket.Urgency != *filter.Urgency:
			return false
		case filter.CreatedFrom != nil && ticket.CreatedAt.Before(*filter.CreatedFrom):
			return false
		case filter.CreatedTo != nil && ticket.CreatedAt.After(*filter.CreatedTo):
			return false
		}
		if search != "" {
			number := ticket.Number
			return containsFold(&number, search) || containsFold(ticket.Detail, search) || containsFold(ticket.SerialNumber, search)
		}
		return true
	}

	var (
		result []domain.Ticket
		total  int
	)
	err := r.h.read(func(t *tables) error {
		rows := sortedRows(t.tickets, keep)
		total = len(rows)
		all := make([]domain.Ticket, 0, len(rows))
		for i := len(rows) - 1; i >= 0; i-- {
			all = append(all, cloneTicket(rows[i].value))
		}
		result = page(all, filter.Limit, filter.Offset)
		return nil
	})
	return result, total, err
}

type interventions struct{ h *handle }

func (r *interventions) Create(ctx context.Context, in *domain.Intervention) error {
	return r.h.write(ctx, func(t *tables) error {
		if _, ok := t.interventions[in.ID]; ok {
			return fmt.Errorf("%w: interventions_pkey", repository.ErrDuplicate)
		}
		if _, ok := t.tickets[in.TicketNumber]; !ok {
			return fmt.Errorf("ticket %s: %w", in.TicketNumber, repository.ErrNotFound)
		}
		now := r.h.now()
		in.CreatedAt, in.UpdatedAt = now, now
		t.interventions[in.ID] = row[domain.Intervention]{value: cloneIntervention(*in), seq: t.next()}
		return nil
	})
}

func (r *interventions) Update(ctx context.Context, in *domain.Intervention) error {
	return r.h.write(ctx, func(t *tables) error {
		existing, ok := t.interventions[in.ID]
		if !ok {
			return repository.ErrNotFound
		}
		in.CreatedAt = existing.value.CreatedAt
		in.UpdatedAt = r.h.now()
		stored := cloneIntervention(*in)
		stored.TicketNumber = existing.value.TicketNumber
		existing.value = stored
		t.interventions[in.ID] = existing
		return nil
	})
}

func (r *interventions) Get(_ context.Context, id string) (*domain.Intervention, error) {
	var out *domain.Intervention
	err := r.h.read(func(t *tables) error {
		existing, ok := t.interventions[id]
		if !ok {
			return repository.ErrNotFound
		}
		hydrated := hydrate(t, existing.value)
		out = &hydrated
		return nil
	})
	return out, err
}

func (r *interventions) Lock(_ context.Context, id string) error {
	return r.h.read(func(t *tables) error {
		if _, ok := t.interventions[id]; !ok {
			return repository.ErrNotFound
		}
		return nil
	})
}

func (r *interventions) Delete(ctx context.Context, id string) error {
	return r.h.write(ctx, func(t *tables) error {
		if _, ok := t.interventions[id]; !ok {
			return repository.ErrNotFound
		}
		deleteIntervention(t, id)
		return nil
	})
}

func (r *interventions) List(_ context.Context, filter repository.InterventionFilter) ([]domain.Intervention, int, error) {
	var (
		result []domain.Intervention
		total  int
	)
	err := r.h.read(func(t *tables) error {
		keep := func(in domain.Intervention) bool {
			switch {
			case filter.TicketNumber != nil && in.TicketNumber != *filter.TicketNumber:
				return false
			case filter.State != nil && in.State != *filter.State:
				return false
			case filter.TechnicianID != nil && in.TechnicianID != *filter.TechnicianID:
				return false
			case filter.StartFrom != nil && (in.StartedAt == nil || in.StartedAt.Before(*filter.StartFrom)):
				return false
			case filter.StartTo != nil && (in.StartedAt == nil || in.StartedAt.After(*filter.StartTo)):
				return false
			}
			if filter.ScopeActorID != nil {
				actor := *filter.ScopeActorID
				if in.TechnicianID == actor {
					return true
				}
				ticket, ok := t.tickets[in.TicketNumber]
				return ok && ticket.value.TechnicianID != nil && *ticket.value.TechnicianID == actor
			}
			return true
		}
		rows := sortedRows(t.interventions, keep)
		total = len(rows)
		all := make([]domain.Intervention, 0, len(rows))
		for i := len(rows) - 1; i >= 0; i-- {
			all = append(all, hydrate(t, rows[i].value))
		}
		result = page(all, filter.Limit, filter.Offset)
		return nil
	})
	return result, total, err
}

// hydrate joins the technician identity, the ticket technician and the
// current materials onto a stored intervention.
func hydrate(t *tables, stored domain.Intervention) domain.Intervention {
	in := cloneIntervention(stored)
	in.Technician = domain.TechnicianRef{ID: in.TechnicianID}
	if user, ok := t.users[in.TechnicianID]; ok {
		in.Technician.DisplayName = user.value.DisplayName
	}
	in.TicketTechnicianID = nil
	if ticket, ok := t.tickets[in.TicketNumber]; ok {
		in.TicketTechnicianID = clonePtr(ticket.value.TechnicianID)
	}
	in.Materials = materialsOf(t, in.ID)
	return in
}

func materialsOf(t *tables, interventionID string) []domain.Material {
	rows := sortedRows(t.materials, func(m domain.Material) bool { return m.InterventionID == interventionID })
	if len(rows) == 0 {
		return nil
	}
	out := make([]domain.Material, len(rows))
	for i, r := range rows {
		out[i] = r.value
	}
	return out
}

func deleteIntervention(t *tables, id string) {
	delete(t.interventions, id)
	for materialID, m := range t.materials {
		if m.value.InterventionID == id {
			delete(t.materials, materialID)
		}
	}
}

type materials struct{ h *handle }

func (r *materials) Create(ctx context.Context, m *domain.Material) error {
	return r.h.write(ctx, func(t *tables) error {
		if _, ok := t.materials[m.ID]; ok {
			return fmt.Errorf("%w: intervention_materials_pkey", repository.ErrDuplicate)
		}
		if _, ok := t.interventions[m.InterventionID]; !ok {
			return fmt.Errorf("intervention %s: %w", m.InterventionID, repository.ErrNotFound)
		}
		now := r.h.now()
		m.CreatedAt, m.UpdatedAt = now, now
		t.materials[m.ID] = row[domain.Material]{value: *m, seq: t.next()}
		return nil
	})
}

func (r *materials) Update(ctx context.Context, m *domain.Material) error {
	return r.h.write(ctx, func(t *tables) error {
		existing, ok := t.materials[m.ID]
		if !ok {
			return repository.ErrNotFound
		}
		m.CreatedAt = existing.value.CreatedAt
		m.InterventionID = existing.value.InterventionID
		m.UpdatedAt = r.h.now()
		existing.value = *m
		t.materials[m.ID] = existing
		return nil
	})
}

func (r *materials) Get(_ context.Context, id string) (*domain.Material, error) {
	var out *domain.Material
	err := r.h.read(func(t *tables) error {
		existing, ok := t.materials[id]
		if !ok {
			return repository.ErrNotFound
		}
		m := existing.value
		out = &m
		return nil
	})
	return out, err
}

func (r *materials) Delete(ctx context.Context, id string) error {
	return r.h.write(ctx, func(t *tables) error {
		if _, ok := t.materials[id]; !ok {
			return repository.ErrNotFound
		}
		delete(t.materials, id)
		return nil
	})
}

func (r *materials) ListByIntervention(_ context.Context, interventionID string) ([]domain.Material, error) {
	var out []domain.Material
	err := r.h.read(func(t *tables) error {
		out = materialsOf(t, interventionID)
		return nil
	})
	return out, err
}

type users struct{ h *handle }

func (r *users) Create(ctx context.Context, user *domain.User) error {
	return r.h.write(ctx, func(t *tables) error {
		if _, ok := t.users[user.ID]; ok {
			return fmt.Errorf("%w: users_pkey", repository.ErrDuplicate)
		}
		for _, existing := range t.users {
			if existing.value.Username == user.Username {
				return fmt.Errorf("%w: users_username_key", repository.ErrDuplicate)
			}
		}
		now := r.h.now()
		user.CreatedAt, user.UpdatedAt = now, now
		stored := *user
		stored.Roles = append([]domain.Role(nil), user.Roles...)
		t.users[user.ID] = row[domain.User]{value: stored, seq: t.next()}
		return nil
	})
}

func (r *users) Update(ctx context.Context, user *domain.User) error {
	return r.h.write(ctx, func(t *tables) error {
		existing, ok := t.users[user.ID]
		if !ok {
			return repository.ErrNotFound
		}
		user.Username = existing.value.Username
		user.CreatedAt = existing.value.CreatedAt
		user.UpdatedAt = r.h.now()
		stored := *user
		stored.Roles = append([]domain.Role(nil), user.Roles...)
		existing.value = stored
		t.users[user.ID] = existing
		return nil
	})
}

func (r *users) List(_ context.Context, filter repository.UserFilter) ([]domain.User, error) {
	var out []domain.User
	err := r.h.read(func(t *tables) error {
		for _, existing := range sortedRows(t.users, func(u domain.User) bool {
			if filter.ActiveOnly && !u.Active {
				return false
			}
			return filter.Role == nil || u.HasRole(*filter.Role)
		}) {
			user := existing.value
			user.Roles = append([]domain.Role(nil), existing.value.Roles...)
			out = append(out, user)
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, err
}

func (r *users) GetByID(_ context.Context, id string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.ID == id })
}

func (r *users) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Username == username })
}

func (r *users) find(match func(domain.User) bool) (*domain.User, error) {
	var out *domain.User
	err := r.h.read(func(t *tables) error {
		for _, existing := range t.users {
			if match(existing.value) {
				user := existing.value
				user.Roles = append([]domain.Role(nil), existing.value.Roles...)
				out = &user
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

type clients struct{ h *handle }

func (r *clients) Create(ctx context.Context, client *domain.Client) error {
	return r.h.write(ctx, func(t *tables) error {
		if _, ok := t.clients[client.Code]; ok {
			return fmt.Errorf("%w: clients_pkey", repository.ErrDuplicate)
		}
		client.CreatedAt = r.h.now()
		t.clients[client.Code] = row[domain.Client]{value: *client, seq: t.next()}
		return nil
	})
}

func (r *clients) Get(_ context.Context, code string) (*domain.Client, error) {
	var out *domain.Client
	err := r.h.read(func(t *tables) error {
		existing, ok := t.clients[code]
		if !ok {
			return repository.ErrNotFound
		}
		client := withClientCounts(t, existing.value)
		out = &client
		return nil
	})
	return out, err
}

func (r *clients) CreateContract(ctx context.Context, contract *domain.Contract) error {
	return r.h.write(ctx, func(t *tables) error {
		if _, ok := t.contracts[contract.ID]; ok {
			return fmt.Errorf("%w: contracts_pkey", repository.ErrDuplicate)
		}
		if _, ok := t.clients[contract.ClientCode]; !ok {
			return fmt.Errorf("client %s: %w", contract.ClientCode, repository.ErrNotFound)
		}
		contract.CreatedAt = r.h.now()
		t.contracts[contract.ID] = row[domain.Contract]{value: *contract, seq: t.next()}
		return nil
	})
}

func (r *clients) GetContract(_ context.Context, id string) (*domain.Contract, error) {
	var out *domain.Contract
	err := r.h.read(func(t *tables) error {
		existing, ok := t.contracts[id]
		if !ok {
			return repository.ErrNotFound
		}
		contract := withContractCount(t, existing.value)
		out = &contract
		return nil
	})
	return out, err
}

func (r *clients) List(_ context.Context, search *string) ([]domain.Client, error) {
	needle := ""
	if search != nil {
		needle = strings.ToLower(strings.TrimSpace(*search))
	}
	var out []domain.Client
	err := r.h.read(func(t *tables) error {
		for _, existing := range sortedRows(t.clients, func(c domain.Client) bool {
			return needle == "" || containsFold(&c.Code, needle) || containsFold(&c.CompanyName, needle)
		}) {
			out = append(out, withClientCounts(t, existing.value))
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CompanyName < out[j].CompanyName })
	return out, err
}

func (r *clients) ListContracts(_ context.Context, filter repository.ContractFilter) ([]domain.Contract, error) {
	serial := ""
	if filter.SerialNumber != nil {
		serial = strings.ToLower(strings.TrimSpace(*filter.SerialNumber))
	}
	var out []domain.Contract
	err := r.h.read(func(t *tables) error {
		rows := sortedRows(t.contracts, func(c domain.Contract) bool {
			if filter.ClientCode != nil && c.ClientCode != *filter.ClientCode {
				return false
			}
			return serial == "" || containsFold(c.SerialNumber, serial)
		})
		for i := len(rows) - 1; i >= 0; i-- {
			out = append(out, withContractCount(t, rows[i].value))
		}
		return nil
	})
	return out, err
}

func withClientCounts(t *tables, client domain.Client) domain.Client {
	client.ContractCount, client.TicketCount = 0, 0
	for _, c := range t.contracts {
		if c.value.ClientCode == client.Code {
			client.ContractCount++
		}
	}
	for _, ticket := range t.tickets {
		if ticket.value.ClientCode == client.Code {
			client.TicketCount++
		}
	}
	return client
}

func withContractCount(t *tables, contract domain.Contract) domain.Contract {
	contract.TicketCount = 0
	for _, ticket := range t.tickets {
		if ticket.value.ContractID != nil && *ticket.value.ContractID == contract.ID {
			contract.TicketCount++
		}
	}
	return contract
}

type audit struct{ h *handle }

func (r *audit) Create(ctx context.Context, entry *domain.AuditEntry) error {
	return r.h.write(ctx, func(t *tables) error {
		entry.CreatedAt = r.h.now()
		t.audit = append(t.audit, *entry)
		return nil
	})
}

func (r *audit) ListByEntity(_ context.Context, entity, entityID string) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	err := r.h.read(func(t *tables) error {
		for _, entry := range t.audit {
			if entry.Entity == entity && entry.EntityID == entityID {
				out = append(out, entry)
			}
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
		return nil
	})
	return out, err
}
