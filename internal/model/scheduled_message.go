package model

import "time"

// ScheduledMessage is a message a user left for a beneficiary, delivered once
// the send date has passed and the user is confirmed deceased.
type ScheduledMessage struct {
	ID             string     `firestore:"-" json:"id"`
	UserID         string     `firestore:"userId" json:"userId"`
	BeneficiarioID string     `firestore:"beneficiarioId" json:"beneficiarioId"`
	Email          string     `firestore:"email" json:"email"`
	FechaEnvio     time.Time  `firestore:"fechaEnvio" json:"fechaEnvio"`
	Media          string     `firestore:"media,omitempty" json:"media,omitempty"`
	MediaType      string     `firestore:"mediaType,omitempty" json:"mediaType,omitempty"`
	Enviado        bool       `firestore:"enviado" json:"enviado"`
	EnviadoAt      *time.Time `firestore:"enviadoAt,omitempty" json:"enviadoAt,omitempty"`
}

// IsDue reports whether the message should go out at now.
func (m *ScheduledMessage) IsDue(now time.Time) bool {
	return !m.Enviado && !m.FechaEnvio.After(now)
}
