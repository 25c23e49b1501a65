package service

import (
	"strings"
)

// Codigos de error de validacion atribuidos a campos.
const (
	CodeRequired         = "required"
	CodeUnique           = "unique"
	CodePasswordMismatch = "password_mismatch"
	CodeNoChange         = "no_change"
	CodeInvalid          = "invalid"
)

// FieldError atribuye una falla de validacion a un campo concreto.
type FieldError struct {
	Field string `json:"field"`
	Code  string `json:"code"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Code
}

// ValidationErrors agrupa fallas de validacion. Nunca se colapsan ni se
// registran en silencio: llegan intactas al caller.
type ValidationErrors []FieldError

func (e ValidationErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Error())
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// fieldError construye el error de un solo campo como ValidationErrors para
// que el caller vea siempre la misma forma.
func fieldError(field, code string) ValidationErrors {
	return ValidationErrors{{Field: field, Code: code}}
}

// RegisterInput es la entrada cruda del flujo de registro.
type RegisterInput struct {
	Username        string
	Email           string
	Phone           string
	Password        string
	PasswordConfirm string
}

func (in *RegisterInput) normalize() {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
}

// validate aplica las reglas puras sobre la entrada: campos requeridos y
// confirmacion de password. La unicidad se chequea aparte contra el snapshot
// mas reciente del repositorio.
func (in RegisterInput) validate() ValidationErrors {
	var errs ValidationErrors
	if in.Username == "" {
		errs = append(errs, FieldError{Field: "username", Code: CodeRequired})
	}
	if in.Email == "" {
		errs = append(errs, FieldError{Field: "email", Code: CodeRequired})
	}
	if in.Phone == "" {
		errs = append(errs, FieldError{Field: "phone", Code: CodeRequired})
	}
	if in.Password == "" {
		errs = append(errs, FieldError{Field: "password", Code: CodeRequired})
	} else if in.Password != in.PasswordConfirm {
		errs = append(errs, FieldError{Field: "password_confirm", Code: CodePasswordMismatch})
	}
	return errs
}

// ProfileInput son los datos editables del perfil. Ambos campos son
// requeridos en el flujo de actualizacion.
type ProfileInput struct {
	FirstName string
	LastName  string
}

func (in ProfileInput) validate() ValidationErrors {
	var errs ValidationErrors
	if strings.TrimSpace(in.FirstName) == "" {
		errs = append(errs, FieldError{Field: "first_name", Code: CodeRequired})
	}
	if strings.TrimSpace(in.LastName) == "" {
		errs = append(errs, FieldError{Field: "last_name", Code: CodeRequired})
	}
	return errs
}
