package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/soyapp/soy-backend/internal/model"
)

type messageRepository struct {
	base
}

func (r *messageRepository) ListDue(ctx context.Context, now time.Time) ([]*model.ScheduledMessage, error) {
	docs, err := r.client.Collection(collectionMessages).
		Where("fechaEnvio", "<=", now).
		Where("enviado", "==", false).
		Documents(ctx).GetAll()
	if err := r.observe("message.list_due", err); err != nil {
		return nil, err
	}

	out := make([]*model.ScheduledMessage, 0, len(docs))
	for _, d := range docs {
		var m model.ScheduledMessage
		if err := d.DataTo(&m); err != nil {
			return nil, fmt.Errorf("failed to decode scheduled message %s: %w", d.Ref.ID, err)
		}
		m.ID = d.Ref.ID
		out = append(out, &m)
	}
	return out, nil
}

func (r *messageRepository) MarkSent(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, "message.mark_sent", collectionMessages, id,
		firestore.Update{Path: "enviado", Value: true},
		firestore.Update{Path: "enviadoAt", Value: at},
	)
}
