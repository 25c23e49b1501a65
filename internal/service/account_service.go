package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"accounts-api/internal/domain"
	"accounts-api/internal/repository"
)

var ErrAccountNotFound = errors.New("account not found")

// AccountService coordina registro y flujos de actualizacion de cuentas.
//
// Los chequeos de unicidad previos a escribir son un fast-path: la garantia
// real la da la restriccion unique del store. Si dos registros concurrentes
// pasan la validacion con el mismo identificador, el que pierda el commit
// recibe el mismo FieldError `unique` que habria producido el pre-chequeo.
type AccountService struct {
	logger   *zap.Logger
	accounts repository.AccountRepository
}

func NewAccountService(logger *zap.Logger, accounts repository.AccountRepository) *AccountService {
	return &AccountService{
		logger:   logger,
		accounts: accounts,
	}
}

// Register crea una cuenta nueva, activa y sin identificadores verificados.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (domain.Account, error) {
	input.normalize()
	errs := input.validate()

	if input.Email != "" {
		exists, err := s.accounts.ExistsByEmail(ctx, input.Email)
		if err != nil {
			return domain.Account{}, err
		}
		if exists {
			errs = append(errs, FieldError{Field: "email", Code: CodeUnique})
		}
	}
	if input.Phone != "" {
		exists, err := s.accounts.ExistsByPhone(ctx, input.Phone)
		if err != nil {
			return domain.Account{}, err
		}
		if exists {
			errs = append(errs, FieldError{Field: "phone", Code: CodeUnique})
		}
	}
	if input.Username != "" {
		exists, err := s.accounts.ExistsByUsername(ctx, input.Username)
		if err != nil {
			return domain.Account{}, err
		}
		if exists {
			errs = append(errs, FieldError{Field: "username", Code: CodeUnique})
		}
	}
	if len(errs) > 0 {
		return domain.Account{}, errs
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.Account{}, err
	}

	account := domain.Account{
		ID:           uuid.NewString(),
		Username:     input.Username,
		Email:        input.Email,
		Phone:        input.Phone,
		PasswordHash: string(hashBytes),
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		return domain.Account{}, mapDuplicateToValidation(err)
	}
	return account, nil
}

// UpdateEmail cambia el email tras confirmar el password actual. El cambio
// deja el nuevo email sin verificar.
func (s *AccountService) UpdateEmail(ctx context.Context, account domain.Account, newEmail, password string) (domain.Account, error) {
	newEmail = strings.ToLower(strings.TrimSpace(newEmail))
	if newEmail == "" {
		return domain.Account{}, fieldError("new_email", CodeRequired)
	}
	if err := s.confirmPassword(account, password); err != nil {
		return domain.Account{}, err
	}
	if newEmail == account.Email {
		return domain.Account{}, fieldError("new_email", CodeNoChange)
	}

	exists, err := s.accounts.ExistsByEmail(ctx, newEmail)
	if err != nil {
		return domain.Account{}, err
	}
	if exists {
		return domain.Account{}, fieldError("new_email", CodeUnique)
	}

	if err := s.accounts.UpdateEmail(ctx, account.ID, newEmail); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, ErrAccountNotFound
		}
		return domain.Account{}, mapDuplicateToValidation(err)
	}

	account.Email = newEmail
	account.EmailVerifiedAt = nil
	return account, nil
}

// UpdatePhone cambia el telefono tras confirmar el password actual. El cambio
// deja el nuevo telefono sin verificar.
func (s *AccountService) UpdatePhone(ctx context.Context, account domain.Account, newPhone, password string) (domain.Account, error) {
	newPhone = strings.TrimSpace(newPhone)
	if newPhone == "" {
		return domain.Account{}, fieldError("new_phone", CodeRequired)
	}
	if err := s.confirmPassword(account, password); err != nil {
		return domain.Account{}, err
	}
	if newPhone == account.Phone {
		return domain.Account{}, fieldError("new_phone", CodeNoChange)
	}

	exists, err := s.accounts.ExistsByPhone(ctx, newPhone)
	if err != nil {
		return domain.Account{}, err
	}
	if exists {
		return domain.Account{}, fieldError("new_phone", CodeUnique)
	}

	if err := s.accounts.UpdatePhone(ctx, account.ID, newPhone); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, ErrAccountNotFound
		}
		return domain.Account{}, mapDuplicateToValidation(err)
	}

	account.Phone = newPhone
	account.PhoneVerifiedAt = nil
	return account, nil
}

// UpdateProfile actualiza nombre y apellido.
func (s *AccountService) UpdateProfile(ctx context.Context, account domain.Account, input ProfileInput) (domain.Account, error) {
	if errs := input.validate(); len(errs) > 0 {
		return domain.Account{}, errs
	}

	firstName := strings.TrimSpace(input.FirstName)
	lastName := strings.TrimSpace(input.LastName)
	if err := s.accounts.UpdateProfile(ctx, account.ID, firstName, lastName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, ErrAccountNotFound
		}
		return domain.Account{}, err
	}

	account.FirstName = firstName
	account.LastName = lastName
	return account, nil
}

// confirmPassword valida el password enviado contra la credencial almacenada.
func (s *AccountService) confirmPassword(account domain.Account, password string) error {
	if password == "" {
		return fieldError("password", CodeRequired)
	}
	if account.PasswordHash == "" {
		return fieldError("password", CodeInvalid)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return fieldError("password", CodeInvalid)
	}
	return nil
}

// mapDuplicateToValidation re-expone una violacion de unicidad del store con
// la misma forma que el pre-chequeo de validacion.
func mapDuplicateToValidation(err error) error {
	var dup *repository.DuplicateError
	if errors.As(err, &dup) {
		return fieldError(dup.Field, CodeUnique)
	}
	return err
}
