package auth

import (
	"errors"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// RegisterRequest payload
type RegisterRequest struct {
	FirstName string `form:"firstName" json:"firstName"`
	LastName  string `form:"lastName" json:"lastName"`
	Username  string `form:"username" json:"username"`
	Email     string `form:"email" json:"email"`
	Password  string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Length(0, 200)),
		validation.Field(&r.LastName, validation.Length(0, 200)),
		validation.Field(&r.Username, validation.Length(0, 100)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(1, 72)),
	)
}

func (r RegisterRequest) normalized() RegisterRequest {
	r.Email = NormalizeEmail(r.Email)
	return r
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (r LoginRequest) normalized() LoginRequest {
	r.Email = NormalizeEmail(r.Email)
	return r
}

// FieldErrorsFrom maps ozzo validation errors to field errors, ordered
// by field name.
func FieldErrorsFrom(err error) goerrors.ValidationErrors {
	if err == nil {
		return nil
	}

	var fields validation.Errors
	if !errors.As(err, &fields) {
		return goerrors.ValidationErrors{{Field: "payload", Message: err.Error()}}
	}

	out := make(goerrors.ValidationErrors, 0, len(fields))
	for name, fieldErr := range fields {
		if fieldErr != nil {
			out = append(out, goerrors.FieldError{Field: name, Message: fieldErr.Error()})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

// ValidationErrorFrom wraps a validation failure in an INVALID_PAYLOAD error.
func ValidationErrorFrom(err error) error {
	if err == nil {
		return nil
	}
	return NewValidationError(FieldErrorsFrom(err)...)
}
