package handler

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

func formatValidationError(err error) map[string]string {
	out := make(map[string]string)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["body"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			out[field] = fmt.Sprintf("%s is required", field)
		case "max":
			out[field] = fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		case "gte":
			out[field] = fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
		default:
			out[field] = fmt.Sprintf("%s is invalid", field)
		}
	}
	return out
}
