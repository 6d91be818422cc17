// Package email delivers transactional e-mail.
package email

import (
	"context"
	"errors"
)

var ErrNoRecipient = errors.New("email: no recipient")

type Service interface {
	SendCustom(ctx context.Context, to string, subject string, content string) error
}

// Sender identifies the From address of outgoing mail.
type Sender struct {
	Address string
	Name    string
}
