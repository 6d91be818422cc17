package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soyapp/soy-backend/internal/model"
	"github.com/soyapp/soy-backend/internal/repository"
)

// AuditLog keeps audit entries in memory when no database is configured.
type AuditLog struct {
	mu   sync.Mutex
	logs []*model.AuditLog
}

func NewAuditLog() *AuditLog { return &AuditLog{} }

var _ repository.AuditRepository = (*AuditLog)(nil)

func (a *AuditLog) Create(_ context.Context, log *model.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	cp := *log
	a.logs = append(a.logs, &cp)
	return nil
}

func (a *AuditLog) List(_ context.Context, filter model.AuditFilter) ([]*model.AuditLog, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*model.AuditLog
	for _, l := range a.logs {
		if filter.EntityType != "" && l.EntityType != filter.EntityType {
			continue
		}
		if filter.EntityID != "" && l.EntityID != filter.EntityID {
			continue
		}
		if filter.Action != "" && l.Action != filter.Action {
			continue
		}
		cp := *l
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (a *AuditLog) Cleanup(_ context.Context, before time.Time) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	kept := a.logs[:0]
	var removed int64
	for _, l := range a.logs {
		if l.CreatedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	a.logs = kept
	return removed, nil
}

// Outbox keeps outbox events in memory when no database is configured.
type Outbox struct {
	mu     sync.Mutex
	events []*model.OutboxEvent
}

func NewOutbox() *Outbox { return &Outbox{} }

var _ repository.OutboxRepository = (*Outbox)(nil)

func (o *Outbox) Create(_ context.Context, event *model.OutboxEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now().UTC()
	event.ID = uuid.New()
	event.Status = string(model.OutboxStatusPending)
	event.CreatedAt = now
	event.UpdatedAt = now
	cp := *event
	o.events = append(o.events, &cp)
	return nil
}

func (o *Outbox) GetPendingEvents(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []*model.OutboxEvent
	for _, e := range o.events {
		if e.Status != string(model.OutboxStatusPending) {
			continue
		}
		cp := *e
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (o *Outbox) UpdateStatus(_ context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, e := range o.events {
		if e.ID != id {
			continue
		}
		now := time.Now().UTC()
		e.Status = string(status)
		e.ErrorMessage = errMsg
		e.UpdatedAt = now
		if errMsg != nil {
			e.RetryCount++
		}
		if status == model.OutboxStatusProcessed {
			e.ProcessedAt = &now
		}
		return nil
	}
	return repository.ErrNotFound
}

func (o *Outbox) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	kept := o.events[:0]
	var removed int64
	for _, e := range o.events {
		if e.Status == string(model.OutboxStatusProcessed) && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	o.events = kept
	return removed, nil
}

// Events returns a snapshot of every stored event.
func (o *Outbox) Events() []model.OutboxEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]model.OutboxEvent, 0, len(o.events))
	for _, e := range o.events {
		out = append(out, *e)
	}
	return out
}
