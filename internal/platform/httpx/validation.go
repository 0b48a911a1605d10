package httpx

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationMessage flattens a validator error into field-level detail
// suitable for clients. Struct namespaces and internal type names never
// reach the response body.
func ValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request body"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		if fe.Param() != "" {
			parts = append(parts, field+" must satisfy "+fe.Tag()+"="+fe.Param())
			continue
		}
		parts = append(parts, field+" must satisfy "+fe.Tag())
	}
	return strings.Join(parts, "; ")
}
