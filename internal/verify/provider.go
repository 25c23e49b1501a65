package verify

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// Provider emite y comprueba codigos de un solo uso para un telefono.
//
// Hay a lo sumo un codigo vivo por telefono: Send invalida cualquier codigo
// pendiente y emite uno nuevo. Dos Send concurrentes para el mismo telefono
// compiten y gana el ultimo en completarse; el codigo del perdedor queda
// invalido. Eso es perdida de actualizacion aceptada, no un bug.
type Provider interface {
	Send(ctx context.Context, phone string) error
	Check(ctx context.Context, phone, code string) (bool, error)
}

// ErrUnavailable señala una falla transitoria del proveedor (timeout, red).
// Es el unico error elegible para reintento automatico.
var ErrUnavailable = errors.New("verification provider unavailable")

type disabledProvider struct {
	reason string
}

func NewDisabledProvider(reason string) Provider {
	return &disabledProvider{reason: reason}
}

func (p *disabledProvider) Send(_ context.Context, _ string) error {
	return p.err()
}

func (p *disabledProvider) Check(_ context.Context, _, _ string) (bool, error) {
	return false, p.err()
}

func (p *disabledProvider) err() error {
	if p.reason == "" {
		return errors.New("verification provider disabled")
	}
	return errors.New(p.reason)
}

// generateCode produce un codigo numerico de 6 digitos.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
