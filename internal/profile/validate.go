package profile

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError points at a single offending input field, e.g.
// "experience[2].description".
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every field failure of one input document.
type ValidationErrors []*ValidationError

func (ve ValidationErrors) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:")
	for _, err := range ve {
		sb.WriteString(" ")
		sb.WriteString(err.Error())
		sb.WriteString(";")
	}
	return strings.TrimSuffix(sb.String(), ";")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(salaryOrder, SalaryRange{})
	return v
}

func salaryOrder(sl validator.StructLevel) {
	s := sl.Current().Interface().(SalaryRange)
	if s.Min > 0 && s.Max > 0 && s.Min > s.Max {
		sl.ReportError(s.Max, "max", "Max", "gtefield", "min")
	}
}

// Validate checks the candidate profile.
func (c *CandidateProfile) Validate() error {
	return translate("", validate.Struct(c))
}

// Validate checks a single job description.
func (j *JobDescription) Validate() error {
	return translate("", validate.Struct(j))
}

// ValidateCorpus validates every job and requires ids to be unique.
func ValidateCorpus(jobs []JobDescription) error {
	var all ValidationErrors
	seen := make(map[string]int, len(jobs))
	for i := range jobs {
		prefix := fmt.Sprintf("jobs[%d].", i)
		if err := translate(prefix, validate.Struct(&jobs[i])); err != nil {
			var ve ValidationErrors
			if !errors.As(err, &ve) {
				return err
			}
			all = append(all, ve...)
		}
		id := jobs[i].ID
		if id == "" {
			continue
		}
		if first, dup := seen[id]; dup {
			all = append(all, &ValidationError{
				Field:   prefix + "id",
				Message: fmt.Sprintf("duplicate id %q (first seen at jobs[%d])", id, first),
			})
			continue
		}
		seen[id] = i
	}
	if len(all) == 0 {
		return nil
	}
	return all
}

func translate(prefix string, err error) error {
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return fmt.Errorf("validate: %w", err)
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, &ValidationError{
			Field:   prefix + fieldPath(fe.Namespace()),
			Message: describe(fe),
		})
	}
	return out
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if idx := strings.Index(ns, "."); idx != -1 {
		return ns[idx+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "required_with":
		return "must be set when " + fe.Param() + " is set"
	case "gte":
		return "must be >= " + fe.Param()
	case "gtefield":
		return "must be >= " + fe.Param()
	case "url":
		return "must be a valid url"
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
