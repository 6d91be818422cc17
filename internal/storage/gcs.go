// Package storage adapts Cloud Storage to repository.FileStorage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/soyapp/soy-backend/internal/repository"
)

type GCS struct {
	client *storage.Client
	bucket string
}

var _ repository.FileStorage = (*GCS)(nil)

func NewGCS(ctx context.Context, bucket, credentialsFile string) (*GCS, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}

func (g *GCS) Download(ctx context.Context, path string) ([]byte, error) {
	r, err := g.client.Bucket(g.bucket).Object(path).NewReader(ctx)
	if err != nil {
		return nil, mapErr(path, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func (g *GCS) Upload(ctx context.Context, path, contentType string, data []byte) error {
	w := g.client.Bucket(g.bucket).Object(path).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to upload %s: %w", path, err)
	}
	return nil
}

func (g *GCS) Delete(ctx context.Context, path string) error {
	if err := g.client.Bucket(g.bucket).Object(path).Delete(ctx); err != nil {
		return mapErr(path, err)
	}
	return nil
}

// List returns object names under prefix in the order the service lists them.
func (g *GCS) List(ctx context.Context, prefix string) ([]string, error) {
	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

func (g *GCS) URI(path string) string {
	return fmt.Sprintf("gs://%s/%s", g.bucket, path)
}

func mapErr(path string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("object %s: %w", path, repository.ErrNotFound)
	}
	return fmt.Errorf("object %s: %w", path, err)
}
