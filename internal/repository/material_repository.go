package repository

import (
	"context"

	"github.com/spec-kit/intervention-service/internal/domain"
)

// MaterialRepository persists material line items. Callers store the computed
// total; the repository never derives it.
type MaterialRepository interface {
	Create(ctx context.Context, material *domain.Material) error
	Update(ctx context.Context, material *domain.Material) error
	Get(ctx context.Context, id string) (*domain.Material, error)
	Delete(ctx context.Context, id string) error
	ListByIntervention(ctx context.Context, interventionID string) ([]domain.Material, error)
}

type materialRepository struct {
	db DBTX
}

const materialColumns = `id, intervention_id, article_code, units, unit_price, discount, total, created_at, updated_at`

func (r *materialRepository) Create(ctx context.Context, m *domain.Material) error {
	const query = `
        INSERT INTO intervention_materials (id, intervention_id, article_code, units, unit_price, discount, total)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		m.ID,
		m.InterventionID,
		m.ArticleCode,
		m.Units,
		m.UnitPrice,
		m.Discount,
		m.Total,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	return translate(err)
}

func (r *materialRepository) Update(ctx context.Context, m *domain.Material) error {
	const query = `
        UPDATE intervention_materials SET article_code=$1, units=$2, unit_price=$3, discount=$4, total=$5, updated_at=NOW()
        WHERE id=$6
        RETURNING updated_at`
	err := r.db.QueryRow(ctx, query,
		m.ArticleCode,
		m.Units,
		m.UnitPrice,
		m.Discount,
		m.Total,
		m.ID,
	).Scan(&m.UpdatedAt)
	return translate(err)
}

func (r *materialRepository) Get(ctx context.Context, id string) (*domain.Material, error) {
	var m domain.Material
	err := r.db.QueryRow(ctx, `SELECT `+materialColumns+` FROM intervention_materials WHERE id=$1`, id).Scan(
		&m.ID,
		&m.InterventionID,
		&m.ArticleCode,
		&m.Units,
		&m.UnitPrice,
		&m.Discount,
		&m.Total,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (r *materialRepository) Delete(ctx context.Context, id string) error {
	return expectAffected(r.db.Exec(ctx, `DELETE FROM intervention_materials WHERE id=$1`, id))
}

func (r *materialRepository) ListByIntervention(ctx context.Context, interventionID string) ([]domain.Material, error) {
	materials, err := loadMaterials(ctx, r.db, []string{interventionID})
	if err != nil {
		return nil, err
	}
	return materials[interventionID], nil
}

// line_seq keeps the submission order of lines inserted in one transaction.
const materialsByParentQuery = `SELECT ` + materialColumns + ` FROM intervention_materials
        WHERE intervention_id = ANY($1) ORDER BY line_seq`

// loadMaterials fetches the lines of every intervention in ids, grouped by
// intervention and ordered by insertion.
func loadMaterials(ctx context.Context, db DBTX, ids []string) (map[string][]domain.Material, error) {
	result := make(map[string][]domain.Material, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	rows, err := db.Query(ctx, materialsByParentQuery, ids)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	for rows.Next() {
		var m domain.Material
		if err := rows.Scan(
			&m.ID,
			&m.InterventionID,
			&m.ArticleCode,
			&m.Units,
			&m.UnitPrice,
			&m.Discount,
			&m.Total,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result[m.InterventionID] = append(result[m.InterventionID], m)
	}
	return result, rows.Err()
}
