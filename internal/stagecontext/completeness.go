package stagecontext

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"baton/internal/stage"
)

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateCompleteness returns the required top-level sections missing from
// sc for stageType, in declaration order. A context of the wrong variant is
// missing every section.
func ValidateCompleteness(sc Context, stageType stage.ID) []string {
	if sc == nil || sc.StageID() != stageType {
		return RequiredSections(stageType)
	}
	err := validate.Struct(sc)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	missing := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
		}
	}
	return missing
}

// ValidateCampaign reports the first missing campaign identity field.
func ValidateCampaign(c Campaign) error {
	return validate.Struct(c)
}

// RequiredSections lists the required top-level sections of a stage's context.
func RequiredSections(id stage.ID) []string {
	var sample any
	switch id {
	case stage.Content:
		sample = ContentContext{}
	case stage.Design:
		sample = DesignContext{}
	case stage.Quality:
		sample = QualityContext{}
	case stage.Delivery:
		sample = DeliveryContext{}
	default:
		return nil
	}
	t := reflect.TypeOf(sample)
	var sections []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !strings.Contains(field.Tag.Get("validate"), "required") {
			continue
		}
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		sections = append(sections, name)
	}
	return sections
}
