package core

import (
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"textlens/internal/types"
)

// Validator wraps go-playground/validator for request payload validation.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator with struct validation wired to `validate`
// tags on request types.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	return &Validator{
		validate: v,
		logger:   logger,
	}
}

// ValidateStruct validates the given struct and converts tag failures into a
// *types.AppError with per-field details suitable for the error envelope.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "validation failed", err)
	}

	fields := make(map[string]any, len(validationErrs))
	for _, fe := range validationErrs {
		fields[strings.ToLower(fe.Field())] = fieldErrorMessage(fe)
	}

	return types.NewAppErrorWithDetails(
		types.ErrCodeValidationBadRequest,
		"request validation failed",
		nil,
		map[string]any{"fields": fields},
	)
}

func fieldErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "failed validation rule: " + fe.Tag()
	}
}
