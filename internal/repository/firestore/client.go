// Package firestore implements the document store gateway on Cloud Firestore.
package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/soyapp/soy-backend/internal/repository"
	"github.com/soyapp/soy-backend/pkg/metrics"
)

const (
	collectionCertificates = "certificados"
	collectionUsers        = "users"
	collectionTestigos     = "testigos"
	collectionEntradas     = "entradas"
	collectionMessages     = "mensajesProgramados"
)

// NewClient opens a Firestore client. An empty credentials file falls back to
// application default credentials.
func NewClient(ctx context.Context, projectID, credentialsFile string) (*firestore.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return client, nil
}

// NewStore wires every document repository onto one client.
func NewStore(client *firestore.Client, m *metrics.Metrics) repository.Store {
	b := base{client: client, metrics: m}
	return repository.Store{
		Certificates: &certificateRepository{b},
		Users:        &userRepository{b},
		Testigos:     &testigoRepository{b},
		Entradas:     &entradaRepository{b},
		Messages:     &messageRepository{b},
	}
}

type base struct {
	client  *firestore.Client
	metrics *metrics.Metrics
}

// observe counts the operation and maps gRPC not-found onto the repository
// sentinel.
func (b base) observe(op string, err error) error {
	if err != nil && status.Code(err) == codes.NotFound {
		err = fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}
	if b.metrics != nil {
		result := "ok"
		switch {
		case err == nil:
		case errors.Is(err, repository.ErrNotFound):
			result = "not_found"
		case errors.Is(err, repository.ErrStatusConflict):
			result = "conflict"
		default:
			result = "error"
		}
		b.metrics.StoreOperations.WithLabelValues(op, result).Inc()
	}
	return err
}

func (b base) update(ctx context.Context, op, collection, id string, updates ...firestore.Update) error {
	_, err := b.client.Collection(collection).Doc(id).Update(ctx, updates)
	return b.observe(op, err)
}
