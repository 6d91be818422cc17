// Package ocr extracts text from certificate images and PDFs.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protojson"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"

	"github.com/soyapp/soy-backend/internal/repository"
	"github.com/soyapp/soy-backend/pkg/logger"
	"github.com/soyapp/soy-backend/pkg/metrics"
)

const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
	MimePDF  = "application/pdf"
)

// ErrUnsupportedFormat is returned for media types the extractor cannot read.
var ErrUnsupportedFormat = errors.New("unsupported format")

// File is the input to ExtractText. Content may be empty for PDFs, in which
// case the object at Path is read from storage.
type File struct {
	Path     string
	MimeType string
	Content  []byte
}

// Annotator is the OCR backend.
type Annotator interface {
	// DetectText returns the top text annotation of an image, or "".
	DetectText(ctx context.Context, image []byte) (string, error)
	// AnnotatePDF runs document text detection on the PDF at inputURI and
	// blocks until the result shards are written under outputURI.
	AnnotatePDF(ctx context.Context, inputURI, outputURI string) error
}

type Config struct {
	TempPrefix string
	PDFTimeout time.Duration
}

type Service struct {
	annotator Annotator
	files     repository.FileStorage
	cfg       Config
	logger    *logger.Logger
	metrics   *metrics.Metrics
	newID     func() string
}

func NewService(annotator Annotator, files repository.FileStorage, cfg Config, log *logger.Logger, m *metrics.Metrics) *Service {
	if cfg.TempPrefix == "" {
		cfg.TempPrefix = "ocr/tmp"
	}
	return &Service{
		annotator: annotator,
		files:     files,
		cfg:       cfg,
		logger:    log.With("ocr"),
		metrics:   m,
		newID:     uuid.NewString,
	}
}

// ExtractText dispatches on the media type. API errors are returned unchanged.
func (s *Service) ExtractText(ctx context.Context, f File) (string, error) {
	start := time.Now()
	switch f.MimeType {
	case MimeJPEG, MimePNG:
		defer s.observe("image", start)
		return s.extractImage(ctx, f)
	case MimePDF:
		defer s.observe("pdf", start)
		return s.extractPDF(ctx, f)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, f.MimeType)
	}
}

func (s *Service) observe(kind string, start time.Time) {
	s.metrics.OCRDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

func (s *Service) extractImage(ctx context.Context, f File) (string, error) {
	text, err := s.annotator.DetectText(ctx, f.Content)
	if err != nil {
		return "", err
	}
	s.logger.Debug("text extracted from image", "path", f.Path, "chars", len(text))
	return text, nil
}

func (s *Service) extractPDF(ctx context.Context, f File) (string, error) {
	data := f.Content
	if len(data) == 0 {
		var err error
		if data, err = s.files.Download(ctx, f.Path); err != nil {
			return "", err
		}
	}

	dir := path.Join(s.cfg.TempPrefix, s.newID())
	input := path.Join(dir, "input.pdf")
	outputPrefix := path.Join(dir, "output") + "/"

	if err := s.files.Upload(ctx, input, MimePDF, data); err != nil {
		return "", err
	}
	// Temporary objects are removed whether or not annotation succeeds.
	defer s.cleanup(input, outputPrefix)

	waitCtx := ctx
	if s.cfg.PDFTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.cfg.PDFTimeout)
		defer cancel()
	}
	if err := s.annotator.AnnotatePDF(waitCtx, s.files.URI(input), s.files.URI(outputPrefix)); err != nil {
		return "", err
	}

	shards, err := s.files.List(ctx, outputPrefix)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, shard := range shards {
		raw, err := s.files.Download(ctx, shard)
		if err != nil {
			return "", err
		}
		text, err := shardText(raw)
		if err != nil {
			return "", fmt.Errorf("shard %s: %w", shard, err)
		}
		sb.WriteString(text)
	}

	s.logger.Debug("text extracted from pdf", "path", f.Path, "shards", len(shards), "chars", sb.Len())
	return sb.String(), nil
}

// cleanup uses a detached context so a cancelled request still releases its
// scratch objects.
func (s *Service) cleanup(input, outputPrefix string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	paths := []string{input}
	if shards, err := s.files.List(ctx, outputPrefix); err != nil {
		s.logger.Error(err, "failed to list ocr output for cleanup", "prefix", outputPrefix)
	} else {
		paths = append(paths, shards...)
	}
	for _, p := range paths {
		if err := s.files.Delete(ctx, p); err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.logger.Error(err, "failed to delete ocr temp object", "path", p)
		}
	}
}

// shardText concatenates the full text of every page in one output shard.
func shardText(raw []byte) (string, error) {
	var resp visionpb.AnnotateFileResponse
	if err := (protojson.UnmarshalOptions{DiscardUnknown: true}).Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, page := range resp.GetResponses() {
		sb.WriteString(page.GetFullTextAnnotation().GetText())
	}
	return sb.String(), nil
}
