package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/intervention-service/internal/domain"
)

// InterventionFilter captures intervention listing parameters.
type InterventionFilter struct {
	TicketNumber *string
	State        *domain.TaskState
	TechnicianID *string
	// StartFrom and StartTo are inclusive bounds on the start timestamp.
	StartFrom *time.Time
	StartTo   *time.Time
	// ScopeActorID restricts rows to those where the actor is the assigned
	// technician or the parent ticket's technician.
	ScopeActorID *string
	Limit        int
	Offset       int
}

// InterventionRepository encapsulates intervention persistence. Reads return
// the intervention hydrated with its materials and technician identity.
type InterventionRepository interface {
	Create(ctx context.Context, intervention *domain.Intervention) error
	Update(ctx context.Context, intervention *domain.Intervention) error
	Get(ctx context.Context, id string) (*domain.Intervention, error)
	// Lock takes a row lock on the intervention for the rest of the transaction.
	Lock(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter InterventionFilter) ([]domain.Intervention, int, error)
}

type interventionRepository struct {
	db DBTX
}

const interventionSelect = `
        SELECT i.id, i.numero_ticket, i.scheduled_at, i.started_at, i.ended_at, i.technician_id,
               i.action_type, i.description, i.state, i.duration_minutes, i.estimated_cost,
               i.outcome, i.signature_url, i.location, i.adjuntos_json, i.created_at, i.updated_at,
               COALESCE(u.display_name, ''), t.technician_id
        FROM interventions i
        JOIN tickets t ON t.numero_ticket = i.numero_ticket
        LEFT JOIN users u ON u.id = i.technician_id`

func (r *interventionRepository) Create(ctx context.Context, in *domain.Intervention) error {
	adjuntos, err := json.Marshal(in.Attachments)
	if err != nil {
		return fmt.Errorf("encode adjuntos: %w", err)
	}
	const query = `
        INSERT INTO interventions (id, numero_ticket, scheduled_at, started_at, ended_at, technician_id, action_type,
            description, state, duration_minutes, estimated_cost, outcome, signature_url, location, adjuntos_json)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
        RETURNING created_at, updated_at`
	err = r.db.QueryRow(ctx, query,
		in.ID,
		in.TicketNumber,
		in.ScheduledAt,
		in.StartedAt,
		in.EndedAt,
		in.TechnicianID,
		in.ActionType,
		in.Description,
		in.State,
		in.DurationMinutes,
		nullDecimal(in.EstimatedCost),
		in.Outcome,
		in.SignatureURL,
		in.Location,
		adjuntos,
	).Scan(&in.CreatedAt, &in.UpdatedAt)
	return translate(err)
}

func (r *interventionRepository) Update(ctx context.Context, in *domain.Intervention) error {
	adjuntos, err := json.Marshal(in.Attachments)
	if err != nil {
		return fmt.Errorf("encode adjuntos: %w", err)
	}
	const query = `
        UPDATE interventions SET scheduled_at=$1, started_at=$2, ended_at=$3, technician_id=$4, action_type=$5,
            description=$6, state=$7, duration_minutes=$8, estimated_cost=$9, outcome=$10, signature_url=$11,
            location=$12, adjuntos_json=$13, updated_at=NOW()
        WHERE id=$14
        RETURNING updated_at`
	err = r.db.QueryRow(ctx, query,
		in.ScheduledAt,
		in.StartedAt,
		in.EndedAt,
		in.TechnicianID,
		in.ActionType,
		in.Description,
		in.State,
		in.DurationMinutes,
		nullDecimal(in.EstimatedCost),
		in.Outcome,
		in.SignatureURL,
		in.Location,
		adjuntos,
		in.ID,
	).Scan(&in.UpdatedAt)
	return translate(err)
}

func (r *interventionRepository) Get(ctx context.Context, id string) (*domain.Intervention, error) {
	in, err := scanIntervention(r.db.QueryRow(ctx, interventionSelect+` WHERE i.id=$1`, id))
	if err != nil {
		return nil, translate(err)
	}
	materials, err := loadMaterials(ctx, r.db, []string{in.ID})
	if err != nil {
		return nil, err
	}
	in.Materials = materials[in.ID]
	return in, nil
}

func (r *interventionRepository) Lock(ctx context.Context, id string) error {
	var locked string
	err := r.db.QueryRow(ctx, `SELECT id FROM interventions WHERE id=$1 FOR UPDATE`, id).Scan(&locked)
	return translate(err)
}

// Delete removes the intervention; its materials go with it through ON DELETE CASCADE.
func (r *interventionRepository) Delete(ctx context.Context, id string) error {
	return expectAffected(r.db.Exec(ctx, `DELETE FROM interventions WHERE id=$1`, id))
}

func (r *interventionRepository) List(ctx context.Context, filter InterventionFilter) ([]domain.Intervention, int, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.TicketNumber != nil {
		args = append(args, *filter.TicketNumber)
		clauses = append(clauses, fmt.Sprintf("i.numero_ticket=$%d", len(args)))
	}
	if filter.State != nil {
		args = append(args, *filter.State)
		clauses = append(clauses, fmt.Sprintf("i.state=$%d", len(args)))
	}
	if filter.TechnicianID != nil {
		args = append(args, *filter.TechnicianID)
		clauses = append(clauses, fmt.Sprintf("i.technician_id=$%d", len(args)))
	}
	if filter.StartFrom != nil {
		args = append(args, *filter.StartFrom)
		clauses = append(clauses, fmt.Sprintf("i.started_at >= $%d", len(args)))
	}
	if filter.StartTo != nil {
		args = append(args, *filter.StartTo)
		clauses = append(clauses, fmt.Sprintf("i.started_at <= $%d", len(args)))
	}
	if filter.ScopeActorID != nil {
		args = append(args, *filter.ScopeActorID)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(i.technician_id=%s OR t.technician_id=%s)", placeholder, placeholder))
	}
	where := strings.Join(clauses, " AND ")

	countQuery := `SELECT COUNT(*) FROM interventions i JOIN tickets t ON t.numero_ticket = i.numero_ticket WHERE ` + where
	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, translate(err)
	}

	limit, offset := Page(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`%s WHERE %s ORDER BY i.created_at DESC, i.id LIMIT %d OFFSET %d`,
		interventionSelect, where, limit, offset)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, translate(err)
	}
	defer rows.Close()

	var result []domain.Intervention
	for rows.Next() {
		in, err := scanIntervention(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *in)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	ids := make([]string, len(result))
	for i := range result {
		ids[i] = result[i].ID
	}
	materials, err := loadMaterials(ctx, r.db, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range result {
		result[i].Materials = materials[result[i].ID]
	}
	return result, total, nil
}

func scanIntervention(row pgx.Row) (*domain.Intervention, error) {
	var (
		in       domain.Intervention
		cost     decimal.NullDecimal
		adjuntos []byte
	)
	if err := row.Scan(
		&in.ID,
		&in.TicketNumber,
		&in.ScheduledAt,
		&in.StartedAt,
		&in.EndedAt,
		&in.TechnicianID,
		&in.ActionType,
		&in.Description,
		&in.State,
		&in.DurationMinutes,
		&cost,
		&in.Outcome,
		&in.SignatureURL,
		&in.Location,
		&adjuntos,
		&in.CreatedAt,
		&in.UpdatedAt,
		&in.Technician.DisplayName,
		&in.TicketTechnicianID,
	); err != nil {
		return nil, err
	}
	in.Technician.ID = in.TechnicianID
	if cost.Valid {
		value := cost.Decimal
		in.EstimatedCost = &value
	}
	if len(adjuntos) > 0 {
		if err := json.Unmarshal(adjuntos, &in.Attachments); err != nil {
			return nil, fmt.Errorf("decode adjuntos of %s: %w", in.ID, err)
		}
	}
	if in.Attachments.Files == nil {
		in.Attachments.Files = []domain.Attachment{}
	}
	return &in, nil
}

func nullDecimal(value *decimal.Decimal) decimal.NullDecimal {
	if value == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *value, Valid: true}
}
