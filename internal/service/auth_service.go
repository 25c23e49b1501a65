package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"accounts-api/internal/domain"
	"accounts-api/internal/repository"
)

var (
	ErrMissingIdentifier  = errors.New("phone or email is required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("account is inactive")
)

// Credentials es el par identificador+password a resolver. Exactamente uno de
// Phone o Email viene poblado.
type Credentials struct {
	Phone    string
	Email    string
	Password string
}

// Authenticator resuelve credenciales a lo sumo a una cuenta. Devuelve
// ErrInvalidCredentials tanto para identificador desconocido como para
// password incorrecto, sin distinguirlos.
type Authenticator interface {
	Resolve(ctx context.Context, creds Credentials) (domain.Account, error)
}

// LoginInput es la entrada del flujo de login.
type LoginInput struct {
	Phone      string
	Email      string
	Password   string
	RememberMe bool
}

// SessionPolicy comunica al emisor de tokens la vida util de la sesion.
type SessionPolicy struct {
	// SessionScoped acorta la credencial para que expire con la sesion
	// actual en lugar de la ventana extendida de remember-me.
	SessionScoped bool
}

// AuthService resuelve credenciales enviadas a cero-o-una cuenta autenticada.
type AuthService struct {
	logger        *zap.Logger
	authenticator Authenticator
}

func NewAuthService(logger *zap.Logger, authenticator Authenticator) *AuthService {
	return &AuthService{
		logger:        logger,
		authenticator: authenticator,
	}
}

// Login intenta exactamente un camino de autenticacion por llamada: telefono
// si viene presente, email en caso contrario.
//
// Politica deliberada: la inactividad solo bloquea el login cuando
// remember_me es true; sin remember-me una cuenta inactiva obtiene una
// sesion corta en lugar de quedar fuera.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (domain.Account, SessionPolicy, error) {
	phone := strings.TrimSpace(input.Phone)
	emailAddr := strings.ToLower(strings.TrimSpace(input.Email))
	if phone == "" && emailAddr == "" {
		return domain.Account{}, SessionPolicy{}, ErrMissingIdentifier
	}

	creds := Credentials{Password: input.Password}
	if phone != "" {
		creds.Phone = phone
	} else {
		creds.Email = emailAddr
	}

	account, err := s.authenticator.Resolve(ctx, creds)
	if err != nil {
		return domain.Account{}, SessionPolicy{}, err
	}

	if input.RememberMe && !account.IsActive {
		return domain.Account{}, SessionPolicy{}, ErrInactiveAccount
	}

	return account, SessionPolicy{SessionScoped: !input.RememberMe}, nil
}

// RepoAuthenticator implementa Authenticator contra el repositorio de cuentas
// y bcrypt. Es la implementacion por defecto; los tests inyectan otras.
type RepoAuthenticator struct {
	accounts repository.AccountRepository
}

func NewRepoAuthenticator(accounts repository.AccountRepository) *RepoAuthenticator {
	return &RepoAuthenticator{accounts: accounts}
}

func (a *RepoAuthenticator) Resolve(ctx context.Context, creds Credentials) (domain.Account, error) {
	if creds.Password == "" {
		return domain.Account{}, ErrInvalidCredentials
	}

	var (
		account domain.Account
		err     error
	)
	switch {
	case creds.Phone != "":
		account, err = a.accounts.GetByPhone(ctx, creds.Phone)
	case creds.Email != "":
		account, err = a.accounts.GetByEmail(ctx, creds.Email)
	default:
		return domain.Account{}, ErrInvalidCredentials
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, ErrInvalidCredentials
		}
		return domain.Account{}, err
	}

	if account.PasswordHash == "" {
		return domain.Account{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(creds.Password)); err != nil {
		return domain.Account{}, ErrInvalidCredentials
	}
	return account, nil
}
