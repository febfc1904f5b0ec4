package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/intervention-service/internal/domain"
)

// TicketFilter captures ticket search parameters.
type TicketFilter struct {
	ClientCode   *string
	TechnicianID *string
	Status       *domain.TicketStatus
	Urgency      *domain.TicketUrgency
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	SearchTerm   *string
	Limit        int
	Offset       int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	Get(ctx context.Context, number string) (*domain.Ticket, error)
	Delete(ctx context.Context, number string) error
	// LatestNumber returns the highest ticket number starting with prefix, or ""
	// when the month has no tickets yet.
	LatestNumber(ctx context.Context, prefix string) (string, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error)
}

type ticketRepository struct {
	db DBTX
}

const ticketColumns = `numero_ticket, client_code, technician_id, contract_id, serial_number, detail,
               status, urgency, created_by, created_at, updated_at, closed_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (numero_ticket, client_code, technician_id, contract_id, serial_number, detail, status, urgency, created_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		ticket.Number,
		ticket.ClientCode,
		ticket.TechnicianID,
		ticket.ContractID,
		ticket.SerialNumber,
		ticket.Detail,
		ticket.Status,
		ticket.Urgency,
		ticket.CreatedBy,
	).Scan(&ticket.CreatedAt, &ticket.UpdatedAt)
	return translate(err)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET technician_id=$1, contract_id=$2, serial_number=$3, detail=$4,
            status=$5, urgency=$6, closed_at=$7, updated_at=NOW()
        WHERE numero_ticket=$8
        RETURNING updated_at`
	err := r.db.QueryRow(ctx, query,
		ticket.TechnicianID,
		ticket.ContractID,
		ticket.SerialNumber,
		ticket.Detail,
		ticket.Status,
		ticket.Urgency,
		ticket.ClosedAt,
		ticket.Number,
	).Scan(&ticket.UpdatedAt)
	return translate(err)
}

func (r *ticketRepository) Get(ctx context.Context, number string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE numero_ticket=$1`
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, number))
	if err != nil {
		return nil, translate(err)
	}
	return ticket, nil
}

// Delete removes the ticket; interventions and materials go with it through
// ON DELETE CASCADE.
func (r *ticketRepository) Delete(ctx context.Context, number string) error {
	return expectAffected(r.db.Exec(ctx, `DELETE FROM tickets WHERE numero_ticket=$1`, number))
}

func (r *ticketRepository) LatestNumber(ctx context.Context, prefix string) (string, error) {
	const query = `
        SELECT numero_ticket FROM tickets
        WHERE numero_ticket LIKE $1
        ORDER BY length(numero_ticket) DESC, numero_ticket DESC
        LIMIT 1`
	var number string
	err := r.db.QueryRow(ctx, query, prefix+"%").Scan(&number)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", translate(err)
	}
	return number, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ClientCode != nil {
		args = append(args, *filter.ClientCode)
		clauses = append(clauses, fmt.Sprintf("client_code=$%d", len(args)))
	}
	if filter.TechnicianID != nil {
		args = append(args, *filter.TechnicianID)
		clauses = append(clauses, fmt.Sprintf("technician_id=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Urgency != nil {
		args = append(args, *filter.Urgency)
		clauses = append(clauses, fmt.Sprintf("urgency=$%d", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(
			"(LOWER(numero_ticket) LIKE %s OR LOWER(COALESCE(detail,'')) LIKE %s OR LOWER(COALESCE(serial_number,'')) LIKE %s)",
			placeholder, placeholder, placeholder))
	}
	where := strings.Join(clauses, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, translate(err)
	}

	limit, offset := Page(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, where, limit, offset)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, translate(err)
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *ticket)
	}
	return result, total, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.Number,
		&ticket.ClientCode,
		&ticket.TechnicianID,
		&ticket.ContractID,
		&ticket.SerialNumber,
		&ticket.Detail,
		&ticket.Status,
		&ticket.Urgency,
		&ticket.CreatedBy,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
