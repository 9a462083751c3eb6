package handlers

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"roadside/internal/types"
)

// RegisterValidators adds the "servicetype" tag to gin's validator. Call once at startup.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("servicetype", func(fl validator.FieldLevel) bool {
		return types.ServiceType(fl.Field().String()).Valid()
	})
}
