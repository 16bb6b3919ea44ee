package storage

import (
	"fmt"

	"repertoire/internal/core"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.RegisterValidation("color", func(fl validator.FieldLevel) bool {
		c, ok := fl.Field().Interface().(core.Color)
		return ok && c.Valid()
	})
	if err != nil {
		panic(fmt.Sprintf("register color validation: %v", err))
	}
	return v
}

// Validate checks a record against its struct tags before it is written
func Validate(record any) error {
	if err := validate.Struct(record); err != nil {
		return fmt.Errorf("%w: %v", core.ErrMalformedInput, err)
	}
	return nil
}
