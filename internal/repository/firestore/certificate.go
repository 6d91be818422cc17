package firestore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/soyapp/soy-backend/internal/model"
	"github.com/soyapp/soy-backend/internal/repository"
)

type certificateRepository struct {
	base
}

func (r *certificateRepository) Get(ctx context.Context, id string) (*model.Certificate, error) {
	snap, err := r.client.Collection(collectionCertificates).Doc(id).Get(ctx)
	if err := r.observe("certificate.get", err); err != nil {
		return nil, err
	}
	return decodeCertificate(snap)
}

func (r *certificateRepository) ListByStatus(ctx context.Context, status model.CertificateStatus) ([]*model.Certificate, error) {
	docs, err := r.client.Collection(collectionCertificates).
		Where("status", "==", string(status)).
		Documents(ctx).GetAll()
	if err := r.observe("certificate.list", err); err != nil {
		return nil, err
	}
	return decodeCertificates(docs)
}

// ListAwaitingNotification filters in memory so documents written before the
// testigoNotified field existed are included.
func (r *certificateRepository) ListAwaitingNotification(ctx context.Context) ([]*model.Certificate, error) {
	approved, err := r.ListByStatus(ctx, model.CertificateStatusApproved)
	if err != nil {
		return nil, err
	}
	out := approved[:0]
	for _, c := range approved {
		if !c.TestigoNotified {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *certificateRepository) TransitionStatus(ctx context.Context, id string, from, to model.CertificateStatus) error {
	ref := r.client.Collection(collectionCertificates).Doc(id)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		current, err := snap.DataAt("status")
		if err != nil {
			return fmt.Errorf("certificate %s has no status: %w", id, err)
		}
		if s, _ := current.(string); model.CertificateStatus(s) != from {
			return repository.ErrStatusConflict
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "status", Value: string(to)},
			{Path: "updatedAt", Value: firestore.ServerTimestamp},
		})
	})
	return r.observe("certificate.transition", err)
}

func (r *certificateRepository) ClaimTestigoNotification(ctx context.Context, id string, now, leaseUntil time.Time) error {
	ref := r.client.Collection(collectionCertificates).Doc(id)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		c, err := decodeCertificate(snap)
		if err != nil {
			return err
		}
		if c.TestigoNotified || (c.NotifyLeaseUntil != nil && c.NotifyLeaseUntil.After(now)) {
			return repository.ErrStatusConflict
		}
		return tx.Update(ref, []firestore.Update{{Path: "notifyLeaseUntil", Value: leaseUntil}})
	})
	return r.observe("certificate.claim_notification", err)
}

func (r *certificateRepository) ReleaseTestigoNotification(ctx context.Context, id string) error {
	return r.update(ctx, "certificate.release_notification", collectionCertificates, id,
		firestore.Update{Path: "notifyLeaseUntil", Value: firestore.Delete},
	)
}

func (r *certificateRepository) MarkTestigoNotified(ctx context.Context, id, testigoID string) error {
	return r.update(ctx, "certificate.mark_notified", collectionCertificates, id,
		firestore.Update{Path: "testigoNotified", Value: true},
		firestore.Update{Path: "testigoId", Value: testigoID},
		firestore.Update{Path: "notifyLeaseUntil", Value: firestore.Delete},
		firestore.Update{Path: "updatedAt", Value: firestore.ServerTimestamp},
	)
}

func decodeCertificate(snap *firestore.DocumentSnapshot) (*model.Certificate, error) {
	var c model.Certificate
	if err := snap.DataTo(&c); err != nil {
		return nil, fmt.Errorf("failed to decode certificate %s: %w", snap.Ref.ID, err)
	}
	c.ID = snap.Ref.ID
	return &c, nil
}

func decodeCertificates(docs []*firestore.DocumentSnapshot) ([]*model.Certificate, error) {
	out := make([]*model.Certificate, 0, len(docs))
	for _, d := range docs {
		c, err := decodeCertificate(d)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
