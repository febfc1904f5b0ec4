package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spec-kit/intervention-service/internal/domain"
)

// AuditRepository stores audit entries. Entries are append-only.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditEntry) error
	ListByEntity(ctx context.Context, entity, entityID string) ([]domain.AuditEntry, error)
}

type auditRepository struct {
	db DBTX
}

func (r *auditRepository) Create(ctx context.Context, entry *domain.AuditEntry) error {
	before, err := marshalSnapshot(entry.Before)
	if err != nil {
		return err
	}
	after, err := marshalSnapshot(entry.After)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO audit_log (id, user_id, entity, entity_id, action, before_json, after_json, ip, user_agent)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING created_at`
	err = r.db.QueryRow(ctx, query,
		entry.ID,
		entry.UserID,
		entry.Entity,
		entry.EntityID,
		entry.Action,
		before,
		after,
		entry.IP,
		entry.UserAgent,
	).Scan(&entry.CreatedAt)
	return translate(err)
}

func (r *auditRepository) ListByEntity(ctx context.Context, entity, entityID string) ([]domain.AuditEntry, error) {
	const query = `
        SELECT id, user_id, entity, entity_id, action, before_json, after_json, ip, user_agent, created_at
        FROM audit_log WHERE entity=$1 AND entity_id=$2 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, entity, entityID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []domain.AuditEntry
	for rows.Next() {
		var (
			entry         domain.AuditEntry
			before, after []byte
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.Entity,
			&entry.EntityID,
			&entry.Action,
			&before,
			&after,
			&entry.IP,
			&entry.UserAgent,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		if entry.Before, err = unmarshalSnapshot(before); err != nil {
			return nil, err
		}
		if entry.After, err = unmarshalSnapshot(after); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func marshalSnapshot(snapshot map[string]any) ([]byte, error) {
	if snapshot == nil {
		return nil, nil
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("encode audit snapshot: %w", err)
	}
	return raw, nil
}

func unmarshalSnapshot(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var snapshot map[string]any
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("decode audit snapshot: %w", err)
	}
	return snapshot, nil
}
