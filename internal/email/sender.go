package email

import (
	"context"
	"errors"
	"time"
)

// Sender define la interfaz para envio de correos de activacion.
type Sender interface {
	SendActivationLink(ctx context.Context, toEmail string, link string, expiresAt time.Time) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendActivationLink(_ context.Context, _ string, _ string, _ time.Time) error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}
