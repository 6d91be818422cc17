package firestore

import (
	"context"
	"fmt"

	"github.com/soyapp/soy-backend/internal/model"
)

type testigoRepository struct {
	base
}

// ListByUser returns every testigo of the user unordered. Ordering happens in
// model.PrimaryTestigo so documents missing a priority are not dropped by an
// OrderBy query.
func (r *testigoRepository) ListByUser(ctx context.Context, userID string) ([]*model.Testigo, error) {
	docs, err := r.client.Collection(collectionTestigos).
		Where("userId", "==", userID).
		Documents(ctx).GetAll()
	if err := r.observe("testigo.list", err); err != nil {
		return nil, err
	}

	out := make([]*model.Testigo, 0, len(docs))
	for _, d := range docs {
		var t model.Testigo
		if err := d.DataTo(&t); err != nil {
			return nil, fmt.Errorf("failed to decode testigo %s: %w", d.Ref.ID, err)
		}
		t.ID = d.Ref.ID
		out = append(out, &t)
	}
	return out, nil
}
