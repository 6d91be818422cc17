package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/soyapp/soy-backend/internal/model"
)

type userRepository struct {
	base
}

func (r *userRepository) Get(ctx context.Context, id string) (*model.User, error) {
	snap, err := r.client.Collection(collectionUsers).Doc(id).Get(ctx)
	if err := r.observe("user.get", err); err != nil {
		return nil, err
	}
	var u model.User
	if err := snap.DataTo(&u); err != nil {
		return nil, fmt.Errorf("failed to decode user %s: %w", id, err)
	}
	u.ID = snap.Ref.ID
	return &u, nil
}

func (r *userRepository) MarkDeceased(ctx context.Context, id string) error {
	return r.update(ctx, "user.mark_deceased", collectionUsers, id,
		firestore.Update{Path: "isDeceased", Value: true})
}

func (r *userRepository) SetPremium(ctx context.Context, id string, premium bool) error {
	return r.update(ctx, "user.set_premium", collectionUsers, id,
		firestore.Update{Path: "isPremium", Value: premium})
}
