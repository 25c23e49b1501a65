package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"accounts-api/internal/domain"
)

// AccountRepository define el contrato de persistencia para cuentas.
// Los chequeos Exists* son un fast-path: la base impone la unicidad real y un
// escritor concurrente que pierda la carrera recibe DuplicateError igualmente.
type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) error
	GetByID(ctx context.Context, id string) (domain.Account, error)
	GetByEmail(ctx context.Context, email string) (domain.Account, error)
	GetByPhone(ctx context.Context, phone string) (domain.Account, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByPhone(ctx context.Context, phone string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	UpdateEmail(ctx context.Context, id, email string) error
	UpdatePhone(ctx context.Context, id, phone string) error
	UpdateProfile(ctx context.Context, id, firstName, lastName string) error
	MarkPhoneVerified(ctx context.Context, id string, at time.Time) (bool, error)
	MarkEmailVerified(ctx context.Context, id string, at time.Time) error
}

// DuplicateError señala una violación de unicidad atribuida a un campo.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return e.Field + " already exists"
}

const accountColumns = `
	id, username, email, phone, password_hash, first_name, last_name,
	is_active, phone_verified_at, email_verified_at, created_at`

// PgAccountRepository implementa AccountRepository usando pgxpool.
type PgAccountRepository struct {
	pool *pgxpool.Pool
}

func NewPgAccountRepository(pool *pgxpool.Pool) *PgAccountRepository {
	return &PgAccountRepository{pool: pool}
}

func (r *PgAccountRepository) Create(ctx context.Context, account domain.Account) error {
	const query = `
		INSERT INTO accounts (
			id, username, email, phone, password_hash, first_name, last_name,
			is_active, phone_verified_at, email_verified_at, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.pool.Exec(ctx, query,
		account.ID,
		account.Username,
		account.Email,
		account.Phone,
		account.PasswordHash,
		account.FirstName,
		account.LastName,
		account.IsActive,
		account.PhoneVerifiedAt,
		account.EmailVerifiedAt,
		account.CreatedAt,
	)
	return mapDuplicate(err)
}

func (r *PgAccountRepository) GetByID(ctx context.Context, id string) (domain.Account, error) {
	return r.getBy(ctx, "id", id)
}

func (r *PgAccountRepository) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	return r.getBy(ctx, "email", email)
}

func (r *PgAccountRepository) GetByPhone(ctx context.Context, phone string) (domain.Account, error) {
	return r.getBy(ctx, "phone", phone)
}

func (r *PgAccountRepository) getBy(ctx context.Context, column, value string) (domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE ` + column + ` = $1`
	var a domain.Account
	err := r.pool.QueryRow(ctx, query, value).Scan(
		&a.ID,
		&a.Username,
		&a.Email,
		&a.Phone,
		&a.PasswordHash,
		&a.FirstName,
		&a.LastName,
		&a.IsActive,
		&a.PhoneVerifiedAt,
		&a.EmailVerifiedAt,
		&a.CreatedAt,
	)
	if err != nil {
		return domain.Account{}, err
	}
	return a, nil
}

func (r *PgAccountRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.existsBy(ctx, "email", email)
}

func (r *PgAccountRepository) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	return r.existsBy(ctx, "phone", phone)
}

func (r *PgAccountRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.existsBy(ctx, "username", username)
}

func (r *PgAccountRepository) existsBy(ctx context.Context, column, value string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM accounts WHERE ` + column + ` = $1)`
	var exists bool
	err := r.pool.QueryRow(ctx, query, value).Scan(&exists)
	return exists, err
}

// UpdateEmail reemplaza el email y anula email_verified_at en la misma
// escritura: el timestamp solo puede referirse al identificador vigente.
func (r *PgAccountRepository) UpdateEmail(ctx context.Context, id, email string) error {
	const query = `UPDATE accounts SET email = $2, email_verified_at = NULL WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, email)
	if err != nil {
		return mapDuplicate(err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// UpdatePhone reemplaza el telefono y anula phone_verified_at en la misma
// escritura, igual que UpdateEmail.
func (r *PgAccountRepository) UpdatePhone(ctx context.Context, id, phone string) error {
	const query = `UPDATE accounts SET phone = $2, phone_verified_at = NULL WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, phone)
	if err != nil {
		return mapDuplicate(err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgAccountRepository) UpdateProfile(ctx context.Context, id, firstName, lastName string) error {
	const query = `UPDATE accounts SET first_name = $2, last_name = $3 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, firstName, lastName)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// MarkPhoneVerified fija phone_verified_at solo si sigue en NULL. Devuelve
// false cuando otro confirm concurrente ya ganó la transición.
func (r *PgAccountRepository) MarkPhoneVerified(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `
		UPDATE accounts SET phone_verified_at = $2
		WHERE id = $1 AND phone_verified_at IS NULL
	`
	tag, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgAccountRepository) MarkEmailVerified(ctx context.Context, id string, at time.Time) error {
	const query = `
		UPDATE accounts SET email_verified_at = $2
		WHERE id = $1 AND email_verified_at IS NULL
	`
	_, err := r.pool.Exec(ctx, query, id, at)
	return err
}

// mapDuplicate traduce violaciones 23505 al campo en conflicto.
func mapDuplicate(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}
	switch pgErr.ConstraintName {
	case "accounts_username_key":
		return &DuplicateError{Field: "username"}
	case "accounts_email_key":
		return &DuplicateError{Field: "email"}
	case "accounts_phone_key":
		return &DuplicateError{Field: "phone"}
	}
	return &DuplicateError{Field: "account"}
}
