package verify

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type captureSMSSender struct {
	lastPhone string
	lastBody  string
	sent      int
	err       error
}

func (s *captureSMSSender) Send(_ context.Context, phone, body string) error {
	s.lastPhone = phone
	s.lastBody = body
	s.sent++
	return s.err
}

var codePattern = regexp.MustCompile(`\b(\d{6})\b`)

func codeFromBody(t *testing.T, body string) string {
	t.Helper()
	match := codePattern.FindStringSubmatch(body)
	if match == nil {
		t.Fatalf("expected 6-digit code in sms body %q", body)
	}
	return match[1]
}

func setupRedisProvider(t *testing.T) (*RedisProvider, *captureSMSSender, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sender := &captureSMSSender{}
	provider := NewRedisProvider(client, sender, 10*time.Minute)

	cleanup := func() {
		client.Close()
		mr.Close()
	}
	return provider, sender, mr, cleanup
}

func TestRedisProviderSendStoresCode(t *testing.T) {
	provider, sender, mr, cleanup := setupRedisProvider(t)
	defer cleanup()

	if err := provider.Send(context.Background(), "12312123"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if sender.lastPhone != "12312123" {
		t.Fatalf("expected sms to phone, got %q", sender.lastPhone)
	}
	if !strings.Contains(sender.lastBody, "expires in 10 minutes") {
		t.Fatalf("unexpected sms body %q", sender.lastBody)
	}

	code := codeFromBody(t, sender.lastBody)
	stored, err := mr.Get("verify:code:12312123")
	if err != nil {
		t.Fatalf("expected stored code: %v", err)
	}
	if stored != code {
		t.Fatalf("stored code %q does not match sms code %q", stored, code)
	}
	if ttl := mr.TTL("verify:code:12312123"); ttl <= 0 || ttl > 10*time.Minute {
		t.Fatalf("unexpected code TTL %v", ttl)
	}
}

func TestRedisProviderResendReplacesCode(t *testing.T) {
	provider, sender, _, cleanup := setupRedisProvider(t)
	defer cleanup()
	ctx := context.Background()

	if err := provider.Send(ctx, "12312123"); err != nil {
		t.Fatalf("first send failed: %v", err)
	}
	firstCode := codeFromBody(t, sender.lastBody)

	if err := provider.Send(ctx, "12312123"); err != nil {
		t.Fatalf("second send failed: %v", err)
	}
	secondCode := codeFromBody(t, sender.lastBody)

	// Solo el ultimo codigo emitido es valido.
	if firstCode != secondCode {
		ok, err := provider.Check(ctx, "12312123", firstCode)
		if err != nil {
			t.Fatalf("check failed: %v", err)
		}
		if ok {
			t.Fatalf("expected superseded code to be rejected")
		}
	}
	ok, err := provider.Check(ctx, "12312123", secondCode)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected latest code to be accepted")
	}
}

func TestRedisProviderCheckConsumesCode(t *testing.T) {
	provider, sender, _, cleanup := setupRedisProvider(t)
	defer cleanup()
	ctx := context.Background()

	if err := provider.Send(ctx, "12312123"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	code := codeFromBody(t, sender.lastBody)

	ok, err := provider.Check(ctx, "12312123", code)
	if err != nil || !ok {
		t.Fatalf("expected first check to pass, got %v,%v", ok, err)
	}
	ok, err = provider.Check(ctx, "12312123", code)
	if err != nil {
		t.Fatalf("second check failed: %v", err)
	}
	if ok {
		t.Fatalf("expected consumed code to be rejected")
	}
}

func TestRedisProviderCheckWrongCodeNotConsumed(t *testing.T) {
	provider, sender, _, cleanup := setupRedisProvider(t)
	defer cleanup()
	ctx := context.Background()

	if err := provider.Send(ctx, "12312123"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	code := codeFromBody(t, sender.lastBody)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	ok, err := provider.Check(ctx, "12312123", wrong)
	if err != nil || ok {
		t.Fatalf("expected wrong code rejected, got %v,%v", ok, err)
	}

	ok, err = provider.Check(ctx, "12312123", code)
	if err != nil || !ok {
		t.Fatalf("expected real code to remain valid, got %v,%v", ok, err)
	}
}

func TestRedisProviderUnknownPhone(t *testing.T) {
	provider, _, _, cleanup := setupRedisProvider(t)
	defer cleanup()

	ok, err := provider.Check(context.Background(), "99999999", "123456")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if ok {
		t.Fatalf("expected check without pending code to be false")
	}
}

func TestRedisProviderRedisDown(t *testing.T) {
	provider, _, mr, cleanup := setupRedisProvider(t)
	defer cleanup()
	mr.Close()

	if err := provider.Send(context.Background(), "12312123"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on send, got %v", err)
	}
	if _, err := provider.Check(context.Background(), "12312123", "123456"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on check, got %v", err)
	}
}

func TestRedisProviderSMSFailure(t *testing.T) {
	provider, sender, _, cleanup := setupRedisProvider(t)
	defer cleanup()
	sender.err = errors.New("gateway timeout")

	if err := provider.Send(context.Background(), "12312123"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable when sms fails, got %v", err)
	}
}
