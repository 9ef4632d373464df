// Package validation checks request shapes before any store call is made.
//
// It wraps go-playground/validator so the rest of the app only sees
// apperror.ValidationFailed. The English translator turns tag failures into
// readable messages ("username is a required field") which are sent to the
// client as-is.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/sakif/user-accounts/internal/apperror"
)

// Validator is safe for concurrent use; validator.Validate caches struct
// metadata internally, so build one and share it.
type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

// New creates a Validator that reports fields by their JSON names.
func New() (*Validator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report "username" instead of "Username". Fields hidden from JSON
	// (json:"-") fall back to the lower-cased Go name.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return strings.ToLower(fld.Name)
		}
		return name
	})

	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(v, trans); err != nil {
		return nil, fmt.Errorf("validation: registering translations: %w", err)
	}

	return &Validator{validate: v, trans: trans}, nil
}

// Struct validates s against its `validate` tags.
//
// Returns nil when s is valid, otherwise an *apperror.AppError wrapping
// apperror.ErrValidation. When several fields fail, the messages are joined
// with ", " and Field names the first one.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		// InvalidValidationError: a programming mistake (nil or non-struct).
		return fmt.Errorf("validation: %w", err)
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, fe.Translate(v.trans))
	}

	return apperror.ValidationFailed(fieldErrs[0].Field(), strings.Join(messages, ", "))
}
