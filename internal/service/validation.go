package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/klass-lk/postboard/internal/model"
)

var (
	TitleTooLongMessage = fmt.Sprintf("Title cannot be more than %d characters", model.TitleMaxLength)
	EmptyFieldsMessage  = "Fields cannot be empty"
	InvalidIDMessage    = "Invalid post id"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// ValidateInput checks a create request without side effects, so callers can
// report field errors before doing any work of their own.
func (s *PostService) ValidateInput(in model.PostInput) error {
	return s.validateInput(in.Normalize())
}

// validateInput reports missing fields first, then the title limit.
func (s *PostService) validateInput(in model.PostInput) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	var missing []string
	tooLong := false
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required", "notblank":
			missing = append(missing, fe.Field())
		case "max":
			tooLong = true
		}
	}
	if len(missing) > 0 {
		return model.NewValidationError(model.MissingFieldsMessage, missing...)
	}
	if tooLong {
		return model.NewValidationError(TitleTooLongMessage, "title")
	}
	return model.NewValidationError(err.Error())
}

func (s *PostService) validateUpdate(update model.PostUpdate) error {
	var empty []string
	check := func(name string, value *string) {
		if value != nil && s.validate.Var(*value, "notblank") != nil {
			empty = append(empty, name)
		}
	}
	check("title", update.Title)
	check("content", update.Content)
	check("author", update.Author)
	if len(empty) > 0 {
		return model.NewValidationError(EmptyFieldsMessage, empty...)
	}

	if update.Title != nil && s.validate.Var(*update.Title, fmt.Sprintf("max=%d", model.TitleMaxLength)) != nil {
		return model.NewValidationError(TitleTooLongMessage, "title")
	}
	return nil
}

func (s *PostService) validateImage(image *model.UploadPayload) error {
	if s.maxUploadBytes > 0 && image.Size() > s.maxUploadBytes {
		return model.NewValidationError(
			fmt.Sprintf("Image too large (max %dMB)", s.maxUploadBytes/(1024*1024)), "image")
	}
	return nil
}
