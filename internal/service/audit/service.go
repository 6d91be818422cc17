package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/soyapp/soy-backend/internal/model"
	"github.com/soyapp/soy-backend/internal/repository"
)

type actorKey struct{}

// WithActor attaches the operator responsible for a request to ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the operator in ctx, or the system actor.
func ActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return model.AuditActorSystem
}

type Service struct {
	repo repository.AuditRepository
	now  func() time.Time
}

func NewService(repo repository.AuditRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

type LogOptions struct {
	Changes  interface{}
	Metadata interface{}
}

// Log creates an audit log entry
func (s *Service) Log(ctx context.Context, action, entityType, entityID string, opts *LogOptions) error {
	var changes, metadata json.RawMessage
	var err error

	if opts != nil {
		if opts.Changes != nil {
			if changes, err = json.Marshal(opts.Changes); err != nil {
				return fmt.Errorf("failed to marshal audit changes: %w", err)
			}
		}
		if opts.Metadata != nil {
			if metadata, err = json.Marshal(opts.Metadata); err != nil {
				return fmt.Errorf("failed to marshal audit metadata: %w", err)
			}
		}
	}

	return s.repo.Create(ctx, &model.AuditLog{
		ID:         uuid.New(),
		Actor:      ActorFromContext(ctx),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Changes:    changes,
		Metadata:   metadata,
		CreatedAt:  s.now().UTC(),
	})
}

func (s *Service) List(ctx context.Context, filter model.AuditFilter) ([]*model.AuditLog, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	return s.repo.Cleanup(ctx, before)
}
