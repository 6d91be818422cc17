package model

import (
	"path"
	"strings"
	"time"
)

type CertificateStatus string

const (
	CertificateStatusPending   CertificateStatus = "pending"
	CertificateStatusApproved  CertificateStatus = "approved"
	CertificateStatusRejected  CertificateStatus = "rejected"
	CertificateStatusConfirmed CertificateStatus = "confirmed"
)

// Certificate is an uploaded death certificate awaiting review.
type Certificate struct {
	ID              string            `firestore:"-" json:"id"`
	FileName        string            `firestore:"fileName" json:"fileName"`
	FilePath        string            `firestore:"filePath" json:"filePath"`
	ContentType     string            `firestore:"contentType,omitempty" json:"contentType,omitempty"`
	UserID          string            `firestore:"userId" json:"userId"`
	Status          CertificateStatus `firestore:"status" json:"status"`
	TestigoID       string            `firestore:"testigoId,omitempty" json:"testigoId,omitempty"`
	TestigoNotified bool              `firestore:"testigoNotified" json:"testigoNotified"`
	// NotifyLeaseUntil is set while a caller is sending the testigo e-mail.
	NotifyLeaseUntil *time.Time `firestore:"notifyLeaseUntil,omitempty" json:"-"`
	UploadedAt      time.Time         `firestore:"uploadedAt,omitempty" json:"uploadedAt,omitempty"`
	UpdatedAt       time.Time         `firestore:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// FileKind classifies the certificate by the extension of its file name.
type FileKind string

const (
	FileKindPDF         FileKind = "pdf"
	FileKindImage       FileKind = "image"
	FileKindUnsupported FileKind = "unsupported"
)

func (c *Certificate) Kind() FileKind {
	switch strings.ToLower(path.Ext(c.FileName)) {
	case ".pdf":
		return FileKindPDF
	case ".jpg", ".jpeg", ".png":
		return FileKindImage
	default:
		return FileKindUnsupported
	}
}

// MimeType derives the media type from the file extension, which is what the
// text extractor dispatches on.
func (c *Certificate) MimeType() string {
	switch strings.ToLower(path.Ext(c.FileName)) {
	case ".pdf":
		return "application/pdf"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return c.ContentType
	}
}

var certificateTransitions = map[CertificateStatus][]CertificateStatus{
	CertificateStatusPending:  {CertificateStatusApproved, CertificateStatusRejected},
	CertificateStatusApproved: {CertificateStatusConfirmed},
}

// CanTransition reports whether a certificate may move from one status to
// another. Statuses only ever advance.
func CanTransition(from, to CertificateStatus) bool {
	for _, next := range certificateTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
