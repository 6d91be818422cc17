package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/soyapp/soy-backend/internal/model"
)

type entradaRepository struct {
	base
}

func (r *entradaRepository) ListByUser(ctx context.Context, userID string) ([]*model.Entrada, error) {
	docs, err := r.client.Collection(collectionEntradas).
		Where("userId", "==", userID).
		Documents(ctx).GetAll()
	if err := r.observe("entrada.list", err); err != nil {
		return nil, err
	}

	out := make([]*model.Entrada, 0, len(docs))
	for _, d := range docs {
		var e model.Entrada
		if err := d.DataTo(&e); err != nil {
			return nil, fmt.Errorf("failed to decode entrada %s: %w", d.Ref.ID, err)
		}
		e.ID = d.Ref.ID
		out = append(out, &e)
	}
	return out, nil
}

func (r *entradaRepository) SetPublic(ctx context.Context, id string, public bool) error {
	return r.update(ctx, "entrada.set_public", collectionEntradas, id,
		firestore.Update{Path: "isPublic", Value: public})
}
