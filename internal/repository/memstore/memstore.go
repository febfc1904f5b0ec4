// Package memstore is an in-process repository.Store. Transactions run against
// a private copy of every table that replaces the live tables on commit; writes
// are serialized, so a reader never observes a half-applied transaction.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/intervention-service/internal/domain"
	"github.com/spec-kit/intervention-service/internal/repository"
)

type row[T any] struct {
	value T
	seq   int64
}

type tables struct {
	seq           int64
	tickets       map[string]row[domain.Ticket]
	interventions map[string]row[domain.Intervention]
	materials     map[string]row[domain.Material]
	users         map[string]row[domain.User]
	clients       map[string]row[domain.Client]
	contracts     map[string]row[domain.Contract]
	audit         []domain.AuditEntry
}

func newTables() *tables {
	return &tables{
		tickets:       map[string]row[domain.Ticket]{},
		interventions: map[string]row[domain.Intervention]{},
		materials:     map[string]row[domain.Material]{},
		users:         map[string]row[domain.User]{},
		clients:       map[string]row[domain.Client]{},
		contracts:     map[string]row[domain.Contract]{},
	}
}

func (t *tables) next() int64 {
	t.seq++
	return t.seq
}

func (t *tables) clone() *tables {
	out := &tables{
		seq:           t.seq,
		tickets:       cloneMap(t.tickets),
		interventions: cloneMap(t.interventions),
		materials:     cloneMap(t.materials),
		users:         cloneMap(t.users),
		clients:       cloneMap(t.clients),
		contracts:     cloneMap(t.contracts),
		audit:         append([]domain.AuditEntry(nil), t.audit...),
	}
	return out
}

// Rows hold values copied on the way in and out, so a shallow map copy is a
// full snapshot.
func cloneMap[T any](in map[string]row[T]) map[string]row[T] {
	out := make(map[string]row[T], len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Store is the shared in-memory database.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	data *tables
	now  func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{data: newTables(), now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// handle is a Store view. A nil work table means the live tables are used
// with per-call locking.
type handle struct {
	s    *Store
	work *tables
}

var (
	_ repository.Store = (*handle)(nil)
	_ repository.Store = (*Store)(nil)
)

// AsStore exposes the store through the repository interface.
func (s *Store) AsStore() repository.Store {
	return &handle{s: s}
}

func (s *Store) Tickets() repository.TicketRepository             { return s.AsStore().Tickets() }
func (s *Store) Interventions() repository.InterventionRepository { return s.AsStore().Interventions() }
func (s *Store) Materials() repository.MaterialRepository         { return s.AsStore().Materials() }
func (s *Store) Users() repository.UserRepository                 { return s.AsStore().Users() }
func (s *Store) Clients() repository.ClientRepository             { return s.AsStore().Clients() }
func (s *Store) Audit() repository.AuditRepository                { return s.AsStore().Audit() }

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	return s.AsStore().WithinTx(ctx, fn)
}

// AuditEntries returns a copy of every recorded audit entry in insertion order.
func (s *Store) AuditEntries() []domain.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.AuditEntry(nil), s.data.audit...)
}

func (h *handle) Tickets() repository.TicketRepository             { return &tickets{h} }
func (h *handle) Interventions() repository.InterventionRepository { return &interventions{h} }
func (h *handle) Materials() repository.MaterialRepository         { return &materials{h} }
func (h *handle) Users() repository.UserRepository                 { return &users{h} }
func (h *handle) Clients() repository.ClientRepository             { return &clients{h} }
func (h *handle) Audit() repository.AuditRepository                { return &audit{h} }

func (h *handle) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	if h.work != nil {
		return fn(ctx, h)
	}
	h.s.txMu.Lock()
	defer h.s.txMu.Unlock()

	h.s.mu.RLock()
	work := h.s.data.clone()
	h.s.mu.RUnlock()

	if err := fn(ctx, &handle{s: h.s, work: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	h.s.mu.Lock()
	h.s.data = work
	h.s.mu.Unlock()
	return nil
}

func (h *handle) read(fn func(t *tables) error) error {
	if h.work != nil {
		return fn(h.work)
	}
	h.s.mu.RLock()
	defer h.s.mu.RUnlock()
	return fn(h.s.data)
}

// write applies a single-statement change. Outside a transaction it runs as
// its own transaction so a failing statement leaves no trace.
func (h *handle) write(ctx context.Context, fn func(t *tables) error) error {
	if h.work != nil {
		return fn(h.work)
	}
	return h.WithinTx(ctx, func(_ context.Context, tx repository.Store) error {
		return fn(tx.(*handle).work)
	})
}

func (h *handle) now() time.Time {
	return h.s.now()
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneIntervention(in domain.Intervention) domain.Intervention {
	out := in
	out.ScheduledAt = clonePtr(in.ScheduledAt)
	out.StartedAt = clonePtr(in.StartedAt)
	out.EndedAt = clonePtr(in.EndedAt)
	out.Description = clonePtr(in.Description)
	out.DurationMinutes = clonePtr(in.DurationMinutes)
	out.EstimatedCost = clonePtr(in.EstimatedCost)
	out.Outcome = clonePtr(in.Outcome)
	out.SignatureURL = clonePtr(in.SignatureURL)
	out.Location = clonePtr(in.Location)
	out.TicketTechnicianID = clonePtr(in.TicketTechnicianID)
	out.Attachments = domain.AttachmentSet{Files: append([]domain.Attachment{}, in.Attachments.Files...)}
	out.Materials = nil
	return out
}

func cloneTicket(t domain.Ticket) domain.Ticket {
	out := t
	out.TechnicianID = clonePtr(t.TechnicianID)
	out.ContractID = clonePtr(t.ContractID)
	out.SerialNumber = clonePtr(t.SerialNumber)
	out.Detail = clonePtr(t.Detail)
	out.ClosedAt = clonePtr(t.ClosedAt)
	return out
}

func sortedRows[T any](m map[string]row[T], keep func(T) bool) []row[T] {
	out := make([]row[T], 0, len(m))
	for _, r := range m {
		if keep == nil || keep(r.value) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func page[T any](items []T, limit, offset int) []T {
	limit, offset = repository.Page(limit, offset)
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func containsFold(haystack *string, needle string) bool {
	return haystack != nil && strings.Contains(strings.ToLower(*haystack), needle)
}
