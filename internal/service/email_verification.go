package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"accounts-api/internal/domain"
	"accounts-api/internal/email"
	"accounts-api/internal/repository"
)

var (
	ErrInvalidOrExpiredToken = errors.New("invalid or expired activation token")
	ErrUnknownAccount        = errors.New("unknown account")
	ErrEmailSendFailure      = errors.New("email send failed")
)

const activationTTL = 48 * time.Hour

// EmailVerificationService gobierna la transicion Unverified -> Verified del
// email de una cuenta usando links de activacion firmados.
//
// El token queda atado a una huella del password hash vigente: cambiar el
// password invalida todos los links pendientes.
type EmailVerificationService struct {
	logger   *zap.Logger
	accounts repository.AccountRepository
	sender   email.Sender
	secret   []byte
	baseURL  string
	issuer   string
	ttl      time.Duration
}

type activationClaims struct {
	Fingerprint string `json:"fp"`
	jwt.RegisteredClaims
}

func NewEmailVerificationService(logger *zap.Logger, accounts repository.AccountRepository, sender email.Sender, secret, baseURL string) *EmailVerificationService {
	return &EmailVerificationService{
		logger:   logger,
		accounts: accounts,
		sender:   sender,
		secret:   []byte(secret),
		baseURL:  strings.TrimRight(baseURL, "/"),
		issuer:   "accounts-api",
		ttl:      activationTTL,
	}
}

// RequestLink firma un token de activacion y lo envia por correo.
func (s *EmailVerificationService) RequestLink(ctx context.Context, account domain.Account) error {
	token, expiresAt, err := s.makeToken(account)
	if err != nil {
		return err
	}

	link := fmt.Sprintf("%s/auth/verify-email?token=%s", s.baseURL, url.QueryEscape(token))
	if s.sender == nil {
		return ErrEmailSendFailure
	}
	if err := s.sender.SendActivationLink(ctx, account.Email, link, expiresAt); err != nil {
		if s.logger != nil {
			s.logger.Warn("send activation link failed", zap.Error(err), zap.String("account_id", account.ID))
		}
		return ErrEmailSendFailure
	}
	return nil
}

// Confirm valida el token y fija email_verified_at. Re-confirmar un email ya
// verificado con un token todavia valido es exito sin efecto, a diferencia
// del confirm de telefono que rechaza con ErrAlreadyVerified.
func (s *EmailVerificationService) Confirm(ctx context.Context, token string) (domain.Account, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return domain.Account{}, err
	}

	account, err := s.accounts.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, ErrUnknownAccount
		}
		return domain.Account{}, err
	}

	if claims.Fingerprint != credentialFingerprint(account) {
		return domain.Account{}, ErrInvalidOrExpiredToken
	}

	if account.EmailVerifiedAt != nil {
		return account, nil
	}

	verifiedAt := time.Now().UTC()
	if err := s.accounts.MarkEmailVerified(ctx, account.ID, verifiedAt); err != nil {
		return domain.Account{}, err
	}
	account.EmailVerifiedAt = &verifiedAt
	return account, nil
}

func (s *EmailVerificationService) makeToken(account domain.Account) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, errors.New("activation secret not configured")
	}
	now := time.Now().UTC()
	expiresAt := now.Add(s.ttl)
	claims := activationClaims{
		Fingerprint: credentialFingerprint(account),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	return signed, expiresAt, err
}

func (s *EmailVerificationService) parseToken(tokenString string) (activationClaims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return activationClaims{}, ErrInvalidOrExpiredToken
	}
	var claims activationClaims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return activationClaims{}, ErrInvalidOrExpiredToken
	}
	if claims.Issuer != s.issuer || strings.TrimSpace(claims.Subject) == "" {
		return activationClaims{}, ErrInvalidOrExpiredToken
	}
	return claims, nil
}

// credentialFingerprint deriva la señal de frescura de la cuenta. Usa el
// password hash: cualquier cambio de credencial rota la huella.
func credentialFingerprint(account domain.Account) string {
	sum := sha256.Sum256([]byte(account.PasswordHash))
	return base64.RawURLEncoding.EncodeToString(sum[:16])
}
