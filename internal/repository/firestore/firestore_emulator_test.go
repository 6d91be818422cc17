//go:build integration
// +build integration

package firestore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyapp/soy-backend/internal/model"
	"github.com/soyapp/soy-backend/internal/repository"
	"github.com/soyapp/soy-backend/pkg/metrics"
)

// These tests run against the Firestore emulator
// (gcloud emulators firestore start) addressed by FIRESTORE_EMULATOR_HOST.
func setupStore(t *testing.T) (repository.Store, func(collection, id string, data interface{})) {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	client, err := NewClient(ctx, "soy-test", "")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	put := func(collection, id string, data interface{}) {
		_, err := client.Collection(collection).Doc(id).Set(ctx, data)
		require.NoError(t, err)
	}
	return NewStore(client, metrics.NewNop()), put
}

func TestCertificateTransitionStatusEmulator(t *testing.T) {
	store, put := setupStore(t)
	ctx := context.Background()
	id := uuid.NewString()

	put(collectionCertificates, id, model.Certificate{
		FileName: "acta.pdf",
		FilePath: "certificados/acta.pdf",
		UserID:   "user-1",
		Status:   model.CertificateStatusPending,
	})

	require.NoError(t, store.Certificates.TransitionStatus(ctx, id, model.CertificateStatusPending, model.CertificateStatusApproved))
	err := store.Certificates.TransitionStatus(ctx, id, model.CertificateStatusPending, model.CertificateStatusRejected)
	assert.ErrorIs(t, err, repository.ErrStatusConflict)

	cert, err := store.Certificates.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.CertificateStatusApproved, cert.Status)
	assert.Equal(t, id, cert.ID)

	_, err = store.Certificates.Get(ctx, uuid.NewString())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCertificateNotificationClaimEmulator(t *testing.T) {
	store, put := setupStore(t)
	ctx := context.Background()
	id := uuid.NewString()
	now := time.Now().UTC()

	put(collectionCertificates, id, model.Certificate{UserID: "user-1", Status: model.CertificateStatusApproved})

	require.NoError(t, store.Certificates.ClaimTestigoNotification(ctx, id, now, now.Add(time.Minute)))
	err := store.Certificates.ClaimTestigoNotification(ctx, id, now, now.Add(time.Minute))
	assert.ErrorIs(t, err, repository.ErrStatusConflict)

	require.NoError(t, store.Certificates.ReleaseTestigoNotification(ctx, id))
	require.NoError(t, store.Certificates.ClaimTestigoNotification(ctx, id, now, now.Add(time.Minute)))
	require.NoError(t, store.Certificates.MarkTestigoNotified(ctx, id, ""))

	cert, err := store.Certificates.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, cert.TestigoNotified)
	assert.Nil(t, cert.NotifyLeaseUntil)

	awaiting, err := store.Certificates.ListAwaitingNotification(ctx)
	require.NoError(t, err)
	for _, c := range awaiting {
		assert.NotEqual(t, id, c.ID)
	}
}

func TestMessagesListDueEmulator(t *testing.T) {
	store, put := setupStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	due := uuid.NewString()

	put(collectionMessages, due, model.ScheduledMessage{Email: "a@b.c", FechaEnvio: now.Add(-time.Minute)})
	put(collectionMessages, uuid.NewString(), model.ScheduledMessage{Email: "a@b.c", FechaEnvio: now.Add(time.Hour)})

	msgs, err := store.Messages.ListDue(ctx, now)
	require.NoError(t, err)

	var found bool
	for _, m := range msgs {
		if m.ID == due {
			found = true
		}
		assert.False(t, m.FechaEnvio.After(now))
	}
	assert.True(t, found)

	require.NoError(t, store.Messages.MarkSent(ctx, due, now))
	msgs, err = store.Messages.ListDue(ctx, now)
	require.NoError(t, err)
	for _, m := range msgs {
		assert.NotEqual(t, due, m.ID)
	}
}
