package sms

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Sender define la interfaz para envio de mensajes SMS.
type Sender interface {
	Send(ctx context.Context, phone string, body string) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) Send(_ context.Context, _ string, _ string) error {
	if s.reason == "" {
		return errors.New("sms sender disabled")
	}
	return errors.New(s.reason)
}

// LogSender escribe el mensaje al log en lugar de enviarlo. Pensado para
// desarrollo local.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, phone string, body string) error {
	if s.logger != nil {
		s.logger.Info("sms (log only)", zap.String("phone", phone), zap.String("body", body))
	}
	return nil
}
