package domain

import "time"

// Account es la entidad central del servicio. Username, email y telefono son
// unicos entre todas las cuentas.
type Account struct {
	ID              string     `json:"id"`
	Username        string     `json:"username"`
	Email           string     `json:"email"`
	Phone           string     `json:"phone"`
	PasswordHash    string     `json:"-"`
	FirstName       string     `json:"first_name,omitempty"`
	LastName        string     `json:"last_name,omitempty"`
	IsActive        bool       `json:"is_active"`
	PhoneVerifiedAt *time.Time `json:"phone_verified_at,omitempty"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// PhoneVerified indica si el telefono fue confirmado con un codigo valido.
func (a Account) PhoneVerified() bool {
	return a.PhoneVerifiedAt != nil
}

// EmailVerified indica si el email fue confirmado con un token valido.
func (a Account) EmailVerified() bool {
	return a.EmailVerifiedAt != nil
}
