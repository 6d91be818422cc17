package ocr

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyapp/soy-backend/internal/repository/memory"
	"github.com/soyapp/soy-backend/pkg/logger"
	"github.com/soyapp/soy-backend/pkg/metrics"
)

type fakeAnnotator struct {
	files     *memory.Files
	imageText string
	shards    map[string]string
	err       error
	block     bool

	images    int
	pdfInput  string
	pdfOutput string
}

func (f *fakeAnnotator) DetectText(_ context.Context, image []byte) (string, error) {
	f.images++
	return f.imageText, f.err
}

func (f *fakeAnnotator) AnnotatePDF(ctx context.Context, inputURI, outputURI string) error {
	f.pdfInput, f.pdfOutput = inputURI, outputURI
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	prefix := strings.TrimPrefix(outputURI, "gs://bucket/")
	for name, body := range f.shards {
		_ = f.files.Upload(ctx, prefix+name, "application/json", []byte(body))
	}
	return f.err
}

func newTestService(a *fakeAnnotator, files *memory.Files) *Service {
	svc := NewService(a, files, Config{TempPrefix: "ocr/tmp", PDFTimeout: time.Second}, logger.Nop(), metrics.NewNop())
	svc.newID = func() string { return "job" }
	return svc
}

func TestExtractTextImage(t *testing.T) {
	files := memory.NewFiles("bucket")
	a := &fakeAnnotator{files: files, imageText: "ACTA DE DEFUNCION"}
	svc := newTestService(a, files)

	text, err := svc.ExtractText(context.Background(), File{Path: "c/1.png", MimeType: MimePNG, Content: []byte("png")})
	require.NoError(t, err)
	assert.Equal(t, "ACTA DE DEFUNCION", text)
	assert.Equal(t, 1, a.images)
	assert.Equal(t, 0, files.Len())
}

func TestExtractTextImageNoAnnotation(t *testing.T) {
	files := memory.NewFiles("bucket")
	svc := newTestService(&fakeAnnotator{files: files}, files)

	text, err := svc.ExtractText(context.Background(), File{MimeType: MimeJPEG, Content: []byte("jpg")})
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestExtractTextUnsupported(t *testing.T) {
	files := memory.NewFiles("bucket")
	a := &fakeAnnotator{files: files}
	svc := newTestService(a, files)

	_, err := svc.ExtractText(context.Background(), File{MimeType: "image/tiff"})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Equal(t, 0, a.images)
}

func TestExtractTextPDF(t *testing.T) {
	files := memory.NewFiles("bucket")
	require.NoError(t, files.Upload(context.Background(), "certificados/u1/acta.pdf", MimePDF, []byte("%PDF")))

	a := &fakeAnnotator{
		files: files,
		shards: map[string]string{
			"output-1-to-2.json": `{"responses":[{"fullTextAnnotation":{"text":"CERTIFICADO "}},{"fullTextAnnotation":{"text":"DE "}}],"totalPages":3}`,
			"output-3-to-3.json": `{"responses":[{"fullTextAnnotation":{"text":"DEFUNCION"}}]}`,
		},
	}
	svc := newTestService(a, files)

	text, err := svc.ExtractText(context.Background(), File{Path: "certificados/u1/acta.pdf", MimeType: MimePDF})
	require.NoError(t, err)
	assert.Equal(t, "CERTIFICADO DE DEFUNCION", text)
	assert.Equal(t, "gs://bucket/ocr/tmp/job/input.pdf", a.pdfInput)
	assert.Equal(t, "gs://bucket/ocr/tmp/job/output/", a.pdfOutput)

	// only the original upload remains
	assert.Equal(t, 1, files.Len())
}

func TestExtractTextPDFCleansUpOnFailure(t *testing.T) {
	files := memory.NewFiles("bucket")
	a := &fakeAnnotator{
		files:  files,
		shards: map[string]string{"output-1-to-1.json": `{}`},
		err:    errors.New("quota exceeded"),
	}
	svc := newTestService(a, files)

	_, err := svc.ExtractText(context.Background(), File{Path: "x.pdf", MimeType: MimePDF, Content: []byte("%PDF")})
	assert.EqualError(t, err, "quota exceeded")
	assert.Equal(t, 0, files.Len())
}

func TestExtractTextPDFTimeout(t *testing.T) {
	files := memory.NewFiles("bucket")
	a := &fakeAnnotator{files: files, block: true}
	svc := NewService(a, files, Config{PDFTimeout: 20 * time.Millisecond}, logger.Nop(), metrics.NewNop())

	_, err := svc.ExtractText(context.Background(), File{Path: "x.pdf", MimeType: MimePDF, Content: []byte("%PDF")})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, files.Len())
}

func TestShardTextMalformed(t *testing.T) {
	_, err := shardText([]byte("not json"))
	assert.Error(t, err)
}
