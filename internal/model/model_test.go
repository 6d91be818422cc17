package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to CertificateStatus
		want     bool
	}{
		{CertificateStatusPending, CertificateStatusApproved, true},
		{CertificateStatusPending, CertificateStatusRejected, true},
		{CertificateStatusApproved, CertificateStatusConfirmed, true},
		{CertificateStatusPending, CertificateStatusConfirmed, false},
		{CertificateStatusApproved, CertificateStatusPending, false},
		{CertificateStatusRejected, CertificateStatusApproved, false},
		{CertificateStatusConfirmed, CertificateStatusApproved, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestCertificateKind(t *testing.T) {
	tests := []struct {
		name     string
		kind     FileKind
		mimeType string
	}{
		{"acta.PDF", FileKindPDF, "application/pdf"},
		{"acta.jpeg", FileKindImage, "image/jpeg"},
		{"acta.jpg", FileKindImage, "image/jpeg"},
		{"acta.png", FileKindImage, "image/png"},
		{"acta.docx", FileKindUnsupported, "application/octet-stream"},
	}
	for _, tt := range tests {
		c := &Certificate{FileName: tt.name, ContentType: "application/octet-stream"}
		assert.Equal(t, tt.kind, c.Kind(), tt.name)
		assert.Equal(t, tt.mimeType, c.MimeType(), tt.name)
	}
}

func TestPrimaryTestigo(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Nil(t, PrimaryTestigo(nil))

	testigos := []*Testigo{
		{ID: "c", Priority: 2, CreatedAt: base},
		{ID: "b", Priority: 1, CreatedAt: base.Add(time.Hour)},
		{ID: "a", Priority: 1, CreatedAt: base.Add(time.Hour)},
		{ID: "d", Priority: 1, CreatedAt: base.Add(2 * time.Hour)},
	}
	assert.Equal(t, "a", PrimaryTestigo(testigos).ID)
	assert.Equal(t, "c", testigos[0].ID, "input order is left untouched")
}

func TestScheduledMessageIsDue(t *testing.T) {
	now := time.Now()

	assert.True(t, (&ScheduledMessage{FechaEnvio: now}).IsDue(now))
	assert.True(t, (&ScheduledMessage{FechaEnvio: now.Add(-time.Minute)}).IsDue(now))
	assert.False(t, (&ScheduledMessage{FechaEnvio: now.Add(time.Minute)}).IsDue(now))
	assert.False(t, (&ScheduledMessage{FechaEnvio: now.Add(-time.Minute), Enviado: true}).IsDue(now))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Usuario", (&User{}).DisplayName())
	assert.Equal(t, "Ana", (&User{Name: "Ana"}).DisplayName())
}
