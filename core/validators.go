package core

import (
	"reflect"
	"regexp"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

const (
	alphaNumUnderTag = "alphanum_"
	notBlankTag      = "notblank"
)

var (
	alphaNumUnderRegex = regexp.MustCompile(`^[\w\s]+$`)

	// texts of our own tags, and overrides of the stock english ones
	customTexts = map[string]string{
		alphaNumUnderTag: "only alphanumeric characters and underscores are allowed",
		notBlankTag:      "this field cannot be blank",
	}
	overriddenTexts = map[string]string{
		"required":      "this field is required",
		"required_with": "this field is required",
		"url":           "must be a valid URL",
		"uuid":          "must be a valid identifier",
	}
)

// InitValidators registers the JSON field names, the english translations and the
// validators shared by every domain.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(alphaNumUnderTag, func(fl validator.FieldLevel) bool {
		return alphaNumUnderRegex.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	for tag, text := range customTexts {
		RegisterCustomTranslation(validate, translator, tag, text)
	}
	for tag, text := range overriddenTexts {
		RegisterCustomTranslation(validate, translator, tag, text, true)
	}
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}
