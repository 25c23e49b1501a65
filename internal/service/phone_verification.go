package service

import (
	"context"
	"errors"
	"sync"
	"time"
	"unicode"

	"go.uber.org/zap"

	"accounts-api/internal/domain"
	"accounts-api/internal/repository"
	"accounts-api/internal/verify"
)

var (
	ErrAlreadyVerified     = errors.New("already verified")
	ErrInvalidCode         = errors.New("invalid code")
	ErrRateLimited         = errors.New("rate limited")
	ErrProviderUnavailable = errors.New("verification provider unavailable")
)

const (
	codeRequestWindow = 10 * time.Minute
	codeRequestMax    = 3
	providerTimeout   = 5 * time.Second
)

// PhoneVerificationService gobierna la transicion Unverified -> Verified del
// telefono de una cuenta. La transicion es terminal: no hay des-verificacion.
type PhoneVerificationService struct {
	logger   *zap.Logger
	accounts repository.AccountRepository
	provider verify.Provider
	limiter  CodeRateLimiter
}

func NewPhoneVerificationService(logger *zap.Logger, accounts repository.AccountRepository, provider verify.Provider, limiter CodeRateLimiter) *PhoneVerificationService {
	if limiter == nil {
		limiter = NewCodeRateLimiter(codeRequestWindow, codeRequestMax)
	}
	return &PhoneVerificationService{
		logger:   logger,
		accounts: accounts,
		provider: provider,
		limiter:  limiter,
	}
}

// RequestCode pide al proveedor un codigo nuevo para el telefono de la
// cuenta. El proveedor invalida cualquier codigo pendiente; dos requests
// concurrentes compiten y gana el ultimo Send en completarse.
func (s *PhoneVerificationService) RequestCode(ctx context.Context, account domain.Account) error {
	if account.Phone == "" {
		return fieldError("phone", CodeRequired)
	}
	if s.limiter != nil && !s.limiter.Allow(account.Phone) {
		return ErrRateLimited
	}

	err := s.withRetry(func() error {
		sendCtx, cancel := context.WithTimeout(ctx, providerTimeout)
		defer cancel()
		return s.provider.Send(sendCtx, account.Phone)
	})
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("send verification code failed", zap.Error(err), zap.String("account_id", account.ID))
		}
		return err
	}
	return nil
}

// Confirm comprueba el codigo enviado y, si es correcto, fija
// phone_verified_at. El guard AlreadyVerified corre ANTES de consultar al
// proveedor para no quemar un check valido sobre una cuenta ya resuelta.
func (s *PhoneVerificationService) Confirm(ctx context.Context, account domain.Account, code string) error {
	if account.PhoneVerifiedAt != nil {
		return ErrAlreadyVerified
	}
	if !isValidCodeFormat(code) {
		return ErrInvalidCode
	}

	var ok bool
	err := s.withRetry(func() error {
		checkCtx, cancel := context.WithTimeout(ctx, providerTimeout)
		defer cancel()
		var checkErr error
		ok, checkErr = s.provider.Check(checkCtx, account.Phone, code)
		return checkErr
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCode
	}

	// La escritura condicional del repo cierra la carrera entre confirms
	// concurrentes: solo uno observa la transicion.
	changed, err := s.accounts.MarkPhoneVerified(ctx, account.ID, time.Now().UTC())
	if err != nil {
		return err
	}
	if !changed {
		return ErrAlreadyVerified
	}
	return nil
}

// withRetry ejecuta fn y reintenta una sola vez ante falla transitoria del
// proveedor. Cualquier otro error se propaga sin reintento.
func (s *PhoneVerificationService) withRetry(fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	if !errors.Is(err, verify.ErrUnavailable) {
		return err
	}
	retryErr := fn()
	if retryErr == nil {
		return nil
	}
	if errors.Is(retryErr, verify.ErrUnavailable) {
		return ErrProviderUnavailable
	}
	return retryErr
}

func isValidCodeFormat(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// CodeRateLimiter limita la frecuencia de solicitudes de codigo por telefono.
type CodeRateLimiter interface {
	Allow(key string) bool
}

type codeRateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	hits   map[string][]time.Time
}

// NewCodeRateLimiter crea un rate limiter en memoria.
func NewCodeRateLimiter(window time.Duration, max int) CodeRateLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &codeRateLimiter{
		window: window,
		max:    max,
		hits:   make(map[string][]time.Time),
	}
}

func (l *codeRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now().UTC()
	cutoff := now.Add(-l.window)
	entries := l.hits[key]
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.hits[key] = kept
		return false
	}
	kept = append(kept, now)
	l.hits[key] = kept
	return true
}
