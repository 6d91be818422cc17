package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/soyapp/soy-backend/internal/model"
	"github.com/soyapp/soy-backend/internal/repository"
)

const defaultAuditLimit = 100

type auditRepository struct {
	BaseRepository
}

func NewAuditRepository(base BaseRepository) repository.AuditRepository {
	return &auditRepository{base}
}

func (r *auditRepository) Create(ctx context.Context, log *model.AuditLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	query := `
        INSERT INTO audit_logs (
            id, actor, action, entity_type, entity_id, changes, metadata, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, query,
			log.ID,
			log.Actor,
			log.Action,
			log.EntityType,
			log.EntityID,
			nullJSON(log.Changes),
			nullJSON(log.Metadata),
			log.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create audit log: %w", err)
		}
		return nil
	})
}

func (r *auditRepository) List(ctx context.Context, filter model.AuditFilter) ([]*model.AuditLog, error) {
	query := `
        SELECT id, actor, action, entity_type, entity_id, changes, metadata, created_at
        FROM audit_logs WHERE 1=1
    `
	var args []interface{}

	if filter.EntityType != "" {
		args = append(args, filter.EntityType)
		query += fmt.Sprintf(" AND entity_type = $%d", len(args))
	}
	if filter.EntityID != "" {
		args = append(args, filter.EntityID)
		query += fmt.Sprintf(" AND entity_id = $%d", len(args))
	}
	if filter.Action != "" {
		args = append(args, filter.Action)
		query += fmt.Sprintf(" AND action = $%d", len(args))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	var logs []*model.AuditLog
	if err := r.GetDB().SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}

	return logs, nil
}

func (r *auditRepository) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.GetDB().ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup audit logs: %w", err)
	}

	return result.RowsAffected()
}

// nullJSON keeps empty payloads out of JSONB columns.
func nullJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
