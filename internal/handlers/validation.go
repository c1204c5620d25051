package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/pinkypartner/pinkypartner/pkg/errors"
	"github.com/pinkypartner/pinkypartner/pkg/response"
	appValidator "github.com/pinkypartner/pinkypartner/pkg/validator"
)

// bindAndValidate binds the JSON payload into dest and runs struct validation rules.
// When validation fails, an error response is automatically written and false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, validationError(err))
		return false
	}

	return true
}

// validationError joins the failure messages and keys each one by its field path.
func validationError(err error) *appErrors.AppError {
	var ve appValidator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return appErrors.NewBadRequest("invalid request payload")
	}

	messages := make([]string, 0, len(ve))
	fields := make(map[string]string, len(ve))
	for _, failure := range ve {
		msg := failureMessage(failure)
		messages = append(messages, msg)

		key := failure.Path
		if key == "" {
			key = failure.Field
		}
		if _, seen := fields[key]; !seen {
			fields[key] = msg
		}
	}
	return appErrors.NewValidation(strings.Join(messages, "; "), fields)
}

func failureMessage(failure appValidator.ValidationError) string {
	field := prettifyFieldName(failure.Field)
	switch failure.Tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, failure.Param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, failure.Param)
	case "uuid4", "uuid":
		return fmt.Sprintf("%s must be a valid UUID", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, failure.Param)
	case "weekdays":
		return fmt.Sprintf("%s must list distinct weekdays between 0 and 6", field)
	case "":
		return fmt.Sprintf("%s is invalid", field)
	default:
		if failure.Param != "" {
			return fmt.Sprintf("%s failed validation: %s=%s", field, failure.Tag, failure.Param)
		}
		return fmt.Sprintf("%s failed validation: %s", field, failure.Tag)
	}
}

func prettifyFieldName(name string) string {
	if name == "" {
		return "field"
	}
	name = strings.ReplaceAll(name, "_", " ")
	return strings.ToLower(name)
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
