package router

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	certhandler "github.com/soyapp/soy-backend/internal/handler/certificate"
	"github.com/soyapp/soy-backend/internal/handler/prometheus"
	"github.com/soyapp/soy-backend/internal/middleware"
	"github.com/soyapp/soy-backend/internal/model"
	"github.com/soyapp/soy-backend/internal/ocr"
	"github.com/soyapp/soy-backend/internal/repository/memory"
	"github.com/soyapp/soy-backend/internal/service/audit"
	"github.com/soyapp/soy-backend/internal/service/certificate"
	"github.com/soyapp/soy-backend/internal/service/event"
	"github.com/soyapp/soy-backend/internal/service/notification"
	"github.com/soyapp/soy-backend/pkg/logger"
	"github.com/soyapp/soy-backend/pkg/metrics"
)

// slowAnnotator answers PDF requests after delay unless its context ends first.
type slowAnnotator struct {
	files *memory.Files
	delay time.Duration

	mu       sync.Mutex
	deadline time.Duration
}

func (a *slowAnnotator) DetectText(context.Context, []byte) (string, error) {
	return "", nil
}

func (a *slowAnnotator) AnnotatePDF(ctx context.Context, _, outputURI string) error {
	if d, ok := ctx.Deadline(); ok {
		a.mu.Lock()
		a.deadline = time.Until(d)
		a.mu.Unlock()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(a.delay):
	}
	prefix := strings.TrimPrefix(outputURI, "gs://bucket/")
	return a.files.Upload(ctx, prefix+"output-1-to-1.json", "application/json",
		[]byte(`{"responses":[{"fullTextAnnotation":{"text":"ACTA DE DEFUNCION"}}]}`))
}

type yesClassifier struct{}

func (yesClassifier) IsValidDeathCertificate(context.Context, string) (bool, error) {
	return true, nil
}

type nopMail struct{}

func (nopMail) SendCustom(context.Context, string, string, string) error { return nil }

func newWorkflowRouter(t *testing.T, cfg RouterConfig, annotator *slowAnnotator) (http.Handler, *memory.DB) {
	t.Helper()
	db := memory.NewDB()
	store := db.Store()
	m := metrics.NewNop()

	db.PutUser(model.User{ID: "U1", Name: "Ana"})
	db.PutCertificate(model.Certificate{ID: "C1", FileName: "acta.pdf", FilePath: "certificados/U1/acta.pdf", UserID: "U1", Status: model.CertificateStatusPending})
	require.NoError(t, annotator.files.Upload(context.Background(), "certificados/U1/acta.pdf", ocr.MimePDF, []byte("%PDF")))

	svc := certificate.NewService(certificate.Deps{
		Store:      store,
		Files:      annotator.files,
		Extractor:  ocr.NewService(annotator, annotator.files, ocr.Config{PDFTimeout: time.Second}, logger.Nop(), m),
		Classifier: yesClassifier{},
		Notifier:   notification.NewService(store.Users, store.Testigos, nopMail{}, "https://tuapp.com/view-message", logger.Nop(), m),
		Auditor:    audit.NewService(memory.NewAuditLog()),
		Events:     event.NewEventService(memory.NewOutbox()),
		Logger:     logger.Nop(),
		Metrics:    m,
	})

	cfg.CORS = middleware.DefaultCORSConfig()
	r := NewRouter(nil, Handlers{Certificate: certhandler.NewHandler(svc)}, prometheus.New("soy", promclient.NewRegistry()), cfg)
	r.Setup()
	return r.Engine(), db
}

func TestCertificateRoutesOutlastRequestTimeout(t *testing.T) {
	a := &slowAnnotator{files: memory.NewFiles("bucket"), delay: 150 * time.Millisecond}
	h, db := newWorkflowRouter(t, RouterConfig{Timeout: 50 * time.Millisecond, WorkflowTimeout: 2 * time.Second}, a)

	w := do(h, http.MethodPost, "/certificado/procesar", `{"certificadoId":"C1"}`, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	cert, ok := db.Certificate("C1")
	require.True(t, ok)
	assert.Equal(t, model.CertificateStatusApproved, cert.Status)

	a.mu.Lock()
	defer a.mu.Unlock()
	assert.Greater(t, a.deadline, 500*time.Millisecond, "pdf wait is bounded by the ocr timeout")
}

func TestCertificateRoutesDefaultToRequestTimeout(t *testing.T) {
	a := &slowAnnotator{files: memory.NewFiles("bucket"), delay: 500 * time.Millisecond}
	h, db := newWorkflowRouter(t, RouterConfig{Timeout: 50 * time.Millisecond}, a)

	w := do(h, http.MethodPost, "/certificado/procesar", `{"certificadoId":"C1"}`, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	cert, ok := db.Certificate("C1")
	require.True(t, ok)
	assert.Equal(t, model.CertificateStatusPending, cert.Status)
}
