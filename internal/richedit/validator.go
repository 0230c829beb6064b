// Валидация тел запросов сервера редактора. Использует go-playground/validator
// с собственными правилами для длин CSS, маркеров растягивания, ссылок на видео,
// выравнивания и имен команд.
package richedit

import (
	"slices"

	"github.com/aisa-it/richedit/internal/richedit/editor"
	"github.com/aisa-it/richedit/internal/richedit/media"
	"github.com/aisa-it/richedit/internal/richedit/video"
	"github.com/go-playground/validator"
)

type RequestValidator struct {
	validator *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New()
	err := v.RegisterValidation("cssLength", cssLengthValidator)
	if err != nil {
		return nil
	}

	err = v.RegisterValidation("handle", handleValidator)
	if err != nil {
		return nil
	}

	err = v.RegisterValidation("videoURL", videoURLValidator)
	if err != nil {
		return nil
	}

	err = v.RegisterValidation("align", alignValidator)
	if err != nil {
		return nil
	}

	err = v.RegisterValidation("command", commandValidator)
	if err != nil {
		return nil
	}

	err = v.RegisterValidation("exportFormat", exportFormatValidator)
	if err != nil {
		return nil
	}
	return &RequestValidator{v}
}

func (rv *RequestValidator) Validate(i interface{}) error {
	if err := rv.validator.Struct(i); err != nil {
		_, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil
		}
		return err
	}
	return nil
}

// Пустое значение допустимо, обязательность задается тегом required
func cssLengthValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return value == "" || editor.IsCSSLength(value)
}

func handleValidator(fl validator.FieldLevel) bool {
	h := media.ParseHandle(fl.Field().String())
	return slices.Contains([]media.Handle{
		media.HandleTop, media.HandleRight, media.HandleBottom, media.HandleLeft,
		media.HandleTopLeft, media.HandleTopRight, media.HandleBottomLeft, media.HandleBottomRight,
	}, h)
}

func videoURLValidator(fl validator.FieldLevel) bool {
	_, ok := video.NormalizeURL(fl.Field().String())
	return ok
}

func alignValidator(fl validator.FieldLevel) bool {
	return slices.Contains([]string{"left", "center", "right", "justify"}, fl.Field().String())
}

func commandValidator(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if name == "undo" || name == "redo" {
		return true
	}
	_, ok := editor.DefaultSchema().Command(name)
	return ok
}

func exportFormatValidator(fl validator.FieldLevel) bool {
	return slices.Contains(exportFormats, fl.Field().String())
}
