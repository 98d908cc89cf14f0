package validation

import (
	"errors"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/apperr"
)

var (
	Validate   *validator.Validate
	Translator ut.Translator

	// custom validation tags
	notBlankTag  = "notblank"
	uploadExtTag = "upload_ext"
)

// UploadExtensions are the file extensions the server accepts for documents.
var UploadExtensions = []string{
	"aac", "doc", "docx", "flac", "m4a", "md", "mp3", "ogg", "pdf", "ppt", "pptx", "txt", "wav",
}

func init() {
	Validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	Translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(Validate, Translator)

	// Use JSON tag names for errors instead of Go struct names.
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return strings.ToLower(fld.Name)
		}
		return name
	})

	_ = Validate.RegisterValidation(notBlankTag, notBlankValidation)
	_ = Validate.RegisterValidation(uploadExtTag, uploadExtValidation)

	registerFn := func(ut.Translator) error { return nil }
	for _, tag := range []string{notBlankTag, uploadExtTag} {
		_ = Validate.RegisterTranslation(tag, Translator, registerFn, translateCustomValidationErrs)
	}
}

func translateCustomValidationErrs(_ ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case notBlankTag:
		return fe.Field() + " cannot be blank"
	case uploadExtTag:
		return "file type not allowed; use one of: " + strings.Join(UploadExtensions, ", ")
	default:
		return ""
	}
}

func notBlankValidation(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}

func uploadExtValidation(fl validator.FieldLevel) bool {
	name, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return AllowedUpload(name)
}

// AllowedUpload reports whether the file name carries an accepted extension.
func AllowedUpload(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return false
	}
	i := sort.SearchStrings(UploadExtensions, ext)
	return i < len(UploadExtensions) && UploadExtensions[i] == ext
}

// Struct validates v and converts failures into a ValidationFailed error
// whose detail lists every offending field.
func Struct(op string, v any) error {
	return convert(op, Validate.Struct(v))
}

// Var validates a single value against tag.
func Var(op, field string, v any, tag string) error {
	err := Validate.Var(v, tag)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, field+": "+strings.TrimSpace(fe.Translate(Translator)))
		}
		return &apperr.Error{Op: op, Kind: apperr.KindValidationFailed, Detail: strings.Join(msgs, "; "), Err: err}
	}
	return apperr.New(op, apperr.KindValidationFailed, err)
}

func convert(op string, err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.New(op, apperr.KindValidationFailed, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Translate(Translator))
	}
	return &apperr.Error{Op: op, Kind: apperr.KindValidationFailed, Detail: strings.Join(msgs, "; "), Err: err}
}
