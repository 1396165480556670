package validators

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Validator adapts go-playground/validator to Echo's Validator interface
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new Validator
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// Validate validates a bound request struct
func (v *Validator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
