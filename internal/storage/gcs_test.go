package storage

import (
	"errors"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"

	"github.com/soyapp/soy-backend/internal/repository"
)

func TestURI(t *testing.T) {
	g := &GCS{bucket: "soy-certificados"}
	assert.Equal(t, "gs://soy-certificados/ocr/tmp/1/input.pdf", g.URI("ocr/tmp/1/input.pdf"))
}

func TestMapErr(t *testing.T) {
	err := mapErr("certificados/a.pdf", storage.ErrObjectNotExist)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Contains(t, err.Error(), "certificados/a.pdf")

	boom := errors.New("boom")
	err = mapErr("x", boom)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, repository.ErrNotFound)
}
