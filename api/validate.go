package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/biihlive/authcodes/domain"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Exactly six ASCII digits; the stock numeric tag also accepts signs.
	_ = v.RegisterValidation("otp", func(fl validator.FieldLevel) bool {
		return domain.IsNumericCode(fl.Field().String())
	})
	return v
}

// ValidationError carries a user-facing message for the first failing field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Validate checks req against its struct tags. Surrounding whitespace in
// email fields is the caller's responsibility (see Normalize).
func Validate(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	return &ValidationError{Field: fe.Field(), Message: message(fe)}
}

func message(fe validator.FieldError) string {
	switch fe.Field() {
	case "email":
		if fe.Tag() == "required" {
			return "El correo electrónico es obligatorio"
		}
		return "El correo electrónico no es válido"
	case "code":
		return "El código debe tener 6 dígitos"
	case "newPassword":
		if fe.Tag() == "max" {
			return "La contraseña es demasiado larga"
		}
		return "La contraseña debe tener al menos 6 caracteres"
	case "userId":
		return "El identificador de usuario es obligatorio"
	}
	return "Solicitud no válida"
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
