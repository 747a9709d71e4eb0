package service

import (
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// registerValidation installs a custom tag on v. A failed registration leaves the
// tag unknown, which makes every struct using it fail validation, so it is logged loudly.
func registerValidation(v *validator.Validate, tag string, fn validator.Func, logger *zap.Logger) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		logger.Error("failed to register validation", zap.String("tag", tag), zap.Error(err))
	}
}
