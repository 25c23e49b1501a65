package verify

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"accounts-api/internal/sms"
)

const defaultCodeTTL = 10 * time.Minute

// RedisProvider guarda el codigo vigente por telefono en redis y lo entrega
// via un transporte SMS. Un SET con TTL reemplaza el codigo anterior, lo que
// sostiene el invariante de un codigo vivo por telefono.
type RedisProvider struct {
	client *redis.Client
	sms    sms.Sender
	ttl    time.Duration
	prefix string
}

func NewRedisProvider(client *redis.Client, sender sms.Sender, ttl time.Duration) *RedisProvider {
	if ttl <= 0 {
		ttl = defaultCodeTTL
	}
	return &RedisProvider{
		client: client,
		sms:    sender,
		ttl:    ttl,
		prefix: "verify:code:",
	}
}

func (p *RedisProvider) Send(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return fmt.Errorf("phone is required")
	}

	code, err := generateCode()
	if err != nil {
		return err
	}

	if err := p.client.Set(ctx, p.prefix+phone, code, p.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	body := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(p.ttl.Minutes()))
	if err := p.sms.Send(ctx, phone, body); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (p *RedisProvider) Check(ctx context.Context, phone, code string) (bool, error) {
	phone = strings.TrimSpace(phone)
	code = strings.TrimSpace(code)
	if phone == "" || code == "" {
		return false, nil
	}

	stored, err := p.client.Get(ctx, p.prefix+phone).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return false, nil
	}

	// El codigo se consume en el primer check exitoso.
	if err := p.client.Del(ctx, p.prefix+phone).Err(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return true, nil
}
