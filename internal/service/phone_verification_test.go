package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"accounts-api/internal/domain"
	"accounts-api/internal/verify"
)

type mockProvider struct {
	sendCalls  int
	checkCalls int
	lastPhone  string
	lastCode   string

	sendErrs  []error
	checkErrs []error
	valid     bool
}

func (p *mockProvider) Send(_ context.Context, phone string) error {
	p.lastPhone = phone
	idx := p.sendCalls
	p.sendCalls++
	if idx < len(p.sendErrs) {
		return p.sendErrs[idx]
	}
	return nil
}

func (p *mockProvider) Check(_ context.Context, phone, code string) (bool, error) {
	p.lastPhone = phone
	p.lastCode = code
	idx := p.checkCalls
	p.checkCalls++
	if idx < len(p.checkErrs) {
		return false, p.checkErrs[idx]
	}
	return p.valid, nil
}

type allowAllLimiter struct{}

func (allowAllLimiter) Allow(string) bool { return true }

type denyAllLimiter struct{}

func (denyAllLimiter) Allow(string) bool { return false }

func TestPhoneVerificationRequestCode(t *testing.T) {
	repo := newMockAccountRepo()
	account := seedAccount(t, repo, domain.Account{ID: "a1", Username: "user", Email: "user@example.com", Phone: "12312123"})

	t.Run("delegates send to provider", func(t *testing.T) {
		provider := &mockProvider{}
		svc := NewPhoneVerificationService(zap.NewNop(), repo, provider, allowAllLimiter{})
		if err := svc.RequestCode(context.Background(), account); err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if provider.sendCalls != 1 || provider.lastPhone != "12312123" {
			t.Fatalf("expected one send for phone, got %d calls to %q", provider.sendCalls, provider.lastPhone)
		}
	})

	t.Run("missing phone", func(t *testing.T) {
		provider := &mockProvider{}
		svc := NewPhoneVerificationService(zap.NewNop(), repo, provider, allowAllLimiter{})
		err := svc.RequestCode(context.Background(), domain.Account{ID: "a2"})
		if !hasFieldError(err, "phone", CodeRequired) {
			t.Fatalf("expected required phone, got %v", err)
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		provider := &mockProvider{}
		svc := NewPhoneVerificationService(zap.NewNop(), repo, provider, denyAllLimiter{})
		if err := svc.RequestCode(context.Background(), account); !errors.Is(err, ErrRateLimited) {
			t.Fatalf("expected ErrRateLimited, got %v", err)
		}
		if provider.sendCalls != 0 {
			t.Fatalf("expected no send when rate limited")
		}
	})

	t.Run("transient failure retried once", func(t *testing.T) {
		provider := &mockProvider{sendErrs: []error{fmt.Errorf("%w: timeout", verify.ErrUnavailable)}}
		svc := NewPhoneVerificationService(zap.NewNop(), repo, provider, allowAllLimiter{})
		if err := svc.RequestCode(context.Background(), account); err != nil {
			t.Fatalf("expected retry to succeed, got %v", err)
		}
		if provider.sendCalls != 2 {
			t.Fatalf("expected 2 send attempts, got %d", provider.sendCalls)
		}
	})

	t.Run("provider down after retry", func(t *testing.T) {
		down := fmt.Errorf("%w: timeout", verify.ErrUnavailable)
		provider := &mockProvider{sendErrs: []error{down, down}}
		svc := NewPhoneVerificationService(zap.NewNop(), repo, provider, allowAllLimiter{})
		if err := svc.RequestCode(context.Background(), account); !errors.Is(err, ErrProviderUnavailable) {
			t.Fatalf("expected ErrProviderUnavailable, got %v", err)
		}
		if provider.sendCalls != 2 {
			t.Fatalf("expected exactly one retry, got %d attempts", provider.sendCalls)
		}
	})
}

func TestPhoneVerificationConfirm_SuccessThenAlreadyVerified(t *testing.T) {
	repo := newMockAccountRepo()
	account := seedAccount(t, repo, domain.Account{ID: "a1", Username: "user", Email: "user@example.com", Phone: "12312123"})
	provider := &mockProvider{valid: true}
	svc := NewPhoneVerificationService(zap.NewNop(), repo, provider, allowAllLimiter{})

	if err := svc.Confirm(context.Background(), account, "777777"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if provider.lastCode != "777777" {
		t.Fatalf("expected code forwarded to provider, got %q", provider.lastCode)
	}
	stored, _ := repo.GetByID(context.Background(), "a1")
	if stored.PhoneVerifiedAt == nil {
		t.Fatalf("expected phone_verified_at set")
	}

	// El segundo confirm ve el snapshot verificado y no toca al proveedor.
	checksBefore := provider.checkCalls
	if err := svc.Confirm(context.Background(), stored, "777777"); !errors.Is(err, ErrAlreadyVerified) {
		t.Fatalf("expected ErrAlreadyVerified, got %v", err)
	}
	if provider.checkCalls != checksBefore {
		t.Fatalf("expected no provider check for already verified account")
	}
}

func TestPhoneVerificationConfirm_InvalidCode(t *testing.T) {
	repo := newMockAccountRepo()
	account := seedAccount(t, repo, domain.Account{ID: "a1", Username: "user", Email: "user@example.com", Phone: "12312123"})
	provider := &mockProvider{valid: false}
	svc := NewPhoneVerificationService(zap.NewNop(), repo, provider, allowAllLimiter{})

	if err := svc.Confirm(context.Background(), account, "000000"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
	stored, _ := repo.GetByID(context.Background(), "a1")
	if stored.PhoneVerifiedAt != nil {
		t.Fatalf("expected phone still unverified")
	}
}

func TestPhoneVerificationConfirm_MalformedCodeSkipsProvider(t *testing.T) {
	repo := newMockAccountRepo()
	account := seedAccount(t, repo, domain.Account{ID: "a1", Username: "user", Email: "user@example.com", Phone: "12312123"})
	provider := &mockProvider{valid: true}
	svc := NewPhoneVerificationService(zap.NewNop(), repo, provider, allowAllLimiter{})

	for _, code := range []string{"", "12345", "1234567", "12a456"} {
		if err := svc.Confirm(context.Background(), account, code); !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("expected ErrInvalidCode for %q, got %v", code, err)
		}
	}
	if provider.checkCalls != 0 {
		t.Fatalf("expected malformed codes rejected before provider")
	}
}

func TestPhoneVerificationConfirm_ConcurrentWinnerTurnsLoserIntoAlreadyVerified(t *testing.T) {
	repo := newMockAccountRepo()
	account := seedAccount(t, repo, domain.Account{ID: "a1", Username: "user", Email: "user@example.com", Phone: "12312123"})
	provider := &mockProvider{valid: true}
	svc := NewPhoneVerificationService(zap.NewNop(), repo, provider, allowAllLimiter{})

	// Otro confirm gana la transicion entre el snapshot y la escritura.
	if _, err := repo.MarkPhoneVerified(context.Background(), "a1", time.Now().UTC()); err != nil {
		t.Fatalf("mark verified: %v", err)
	}

	if err := svc.Confirm(context.Background(), account, "777777"); !errors.Is(err, ErrAlreadyVerified) {
		t.Fatalf("expected ErrAlreadyVerified for race loser, got %v", err)
	}
}

func TestPhoneVerificationConfirm_ProviderDown(t *testing.T) {
	repo := newMockAccountRepo()
	account := seedAccount(t, repo, domain.Account{ID: "a1", Username: "user", Email: "user@example.com", Phone: "12312123"})
	down := fmt.Errorf("%w: timeout", verify.ErrUnavailable)
	provider := &mockProvider{valid: true, checkErrs: []error{down, down}}
	svc := NewPhoneVerificationService(zap.NewNop(), repo, provider, allowAllLimiter{})

	if err := svc.Confirm(context.Background(), account, "777777"); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	stored, _ := repo.GetByID(context.Background(), "a1")
	if stored.PhoneVerifiedAt != nil {
		t.Fatalf("expected no transition on provider failure")
	}
}

func TestCodeRateLimiterWindow(t *testing.T) {
	limiter := NewCodeRateLimiter(time.Minute, 2)
	if !limiter.Allow("12312123") || !limiter.Allow("12312123") {
		t.Fatalf("expected first two requests allowed")
	}
	if limiter.Allow("12312123") {
		t.Fatalf("expected third request denied")
	}
	if !limiter.Allow("45645645") {
		t.Fatalf("expected other phone unaffected")
	}
}
