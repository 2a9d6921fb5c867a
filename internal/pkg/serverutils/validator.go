package serverutils

import (
	"fmt"
	"strings"

	"algo-collab-be/internal/apperror"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateRequest checks struct tags and folds violations into a single
// INVALID error the error middleware turns into a 400.
func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	violations, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperror.Invalid(err.Error())
	}

	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		parts = append(parts, fmt.Sprintf("%s failed on %q", v.Field(), v.Tag()))
	}
	return apperror.Invalid(strings.Join(parts, "; "))
}
