package validator

import (
	stderrors "errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/skillgate/attempt-service/internal/errors"
	"github.com/skillgate/attempt-service/internal/models"
)

// Validator wraps go-playground struct validation with the domain's custom
// tag validators.
type Validator struct {
	structValidator *validator.Validate
}

// New creates the central validator instance.
func New() *Validator {
	structValidator := validator.New()
	registerCustomValidators(structValidator)

	return &Validator{structValidator: structValidator}
}

// Validate validates struct tags, including the custom domain tags. Field
// failures come back as errors.ValidationErrors with wire-format field names.
func (v *Validator) Validate(s interface{}) error {
	err := v.structValidator.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if stderrors.As(err, &fieldErrs) {
		return errors.ToValidationErrors(err)
	}
	return err
}

func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("question_type", validateQuestionType)
	validate.RegisterValidation("proctoring_event", validateProctoringEvent)

	// Report field names from json tags so errors match the wire format.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateQuestionType(fl validator.FieldLevel) bool {
	switch models.QuestionType(fl.Field().String()) {
	case models.MultipleChoice, models.TrueFalse, models.ShortAnswer:
		return true
	}
	return false
}

func validateProctoringEvent(fl validator.FieldLevel) bool {
	return models.KnownProctoringEvent(models.ProctoringEventKind(fl.Field().String()))
}
