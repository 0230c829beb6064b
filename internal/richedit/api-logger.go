// Обработка ошибок API сервера редактора.
// Содержит функции возврата ошибок с кодами HTTP и их логирования.
//
// Основные возможности:
//   - Единый формат ответа с ошибкой.
//   - Логирование ошибок API с контекстом (метод, URL, сессия).
//   - Перевод ошибок редактора, медиа и изображений в DefinedError.
//   - Обработка слишком больших запросов и неизвестных ошибок.
package richedit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"runtime"

	"github.com/aisa-it/richedit/internal/richedit/apierrors"
	"github.com/aisa-it/richedit/internal/richedit/editor"
	"github.com/aisa-it/richedit/internal/richedit/media"
	stack_error "github.com/aisa-it/richedit/internal/richedit/stack-error"
	"github.com/labstack/echo/v4"
)

// Возврат ошибки с кодом из каталога, неизвестные ошибки логируются и отдаются как 400
func EError(c echo.Context, err error) error {
	if defined, ok := definedError(err); ok {
		return EErrorDefined(c, defined)
	}
	if err == nil {
		slog.Error("Unknown API error",
			"method", c.Request().Method,
			"url", c.Request().URL,
			"session", sessionOf(c),
			getCallerFile(),
		)
	} else if te := (*stack_error.TrackerError)(nil); errors.As(err, &te) {
		stack_error.GetError(c, te)
	} else {
		slog.Error("API error",
			"err", err,
			"method", c.Request().Method,
			"url", c.Request().URL,
			"session", sessionOf(c),
			getCallerFile(),
		)
	}
	return EErrorDefined(c, apierrors.ErrGeneric)
}

// Возврат ошибки <status> с сообщением ошибки
func EErrorMsgStatus(c echo.Context, err error, status int) error {
	if status == http.StatusRequestEntityTooLarge {
		return EErrorDefined(c, apierrors.ErrEntityToLarge)
	}

	er := apierrors.ErrGeneric
	er.StatusCode = status
	if err == nil {
		slog.Error("Unknown API error",
			"method", c.Request().Method,
			slog.Int("status", status),
			"url", c.Request().URL,
			"session", sessionOf(c),
			getCallerFile(),
		)
		return EErrorDefined(c, er)
	}

	// Ignore log 404 error
	if status != http.StatusNotFound {
		slog.Error("API error",
			"err", err,
			"method", c.Request().Method,
			slog.Int("status", status),
			"url", c.Request().URL,
			"session", sessionOf(c),
			getCallerFile(),
		)
	}
	er.Err = err.Error()
	return EErrorDefined(c, er)
}

// EErrorDefined возвращает JSON-ответ с кодом статуса и сообщением об ошибке. Если код статуса не определен, используется 400 Bad Request.
func EErrorDefined(c echo.Context, err apierrors.DefinedError) error {
	// If unknown code use 400 Bad Request
	if http.StatusText(err.StatusCode) == "" {
		err.StatusCode = http.StatusBadRequest
	}
	return c.JSON(err.StatusCode, err)
}

// definedError переводит ошибки пакетов редактора в ответ каталога apierrors.
func definedError(err error) (apierrors.DefinedError, bool) {
	if err == nil {
		return apierrors.DefinedError{}, false
	}

	var defined apierrors.DefinedError
	if errors.As(err, &defined) {
		return defined, true
	}

	switch {
	case errors.Is(err, editor.ErrInvalidPosition):
		return apierrors.ErrInvalidSelection, true
	case errors.Is(err, editor.ErrUnknownCommand):
		return apierrors.ErrUnknownCommand.WithFormattedMessage(detail(err, editor.ErrUnknownCommand)), true
	case errors.Is(err, editor.ErrNotApplicable):
		return apierrors.ErrCommandNotApplicable.WithFormattedMessage(detail(err, editor.ErrNotApplicable)), true
	case errors.Is(err, editor.ErrInvalidAttribute):
		return apierrors.ErrInvalidAttribute.WithFormattedMessage(detail(err, editor.ErrInvalidAttribute)), true
	case errors.Is(err, editor.ErrInvalidArgument):
		return apierrors.ErrInvalidAttribute.WithFormattedMessage(detail(err, editor.ErrInvalidArgument)), true
	case errors.Is(err, editor.ErrUnknownNode):
		return apierrors.ErrInvalidContent, true
	case errors.Is(err, editor.ErrStaleTransaction):
		return apierrors.ErrStaleState, true
	case errors.Is(err, media.ErrNotMedia):
		return apierrors.ErrNotMedia, true
	case errors.Is(err, media.ErrHandleDisabled):
		return apierrors.ErrHandleDisabled.WithFormattedMessage(detail(err, media.ErrHandleDisabled)), true
	case errors.Is(err, media.ErrDragActive):
		return apierrors.ErrDragActive, true
	case errors.Is(err, media.ErrNoDrag):
		return apierrors.ErrNoDrag, true
	case errors.Is(err, media.ErrUnknownSize):
		return apierrors.ErrUnknownSize, true
	case errors.Is(err, media.ErrNodeChanged):
		return apierrors.ErrNodeChanged, true
	case errors.Is(err, context.DeadlineExceeded):
		er := apierrors.ErrGeneric
		er.StatusCode = http.StatusGatewayTimeout
		return er, true
	}
	return apierrors.DefinedError{}, false
}

// detail возвращает часть сообщения после текста сентинела: "unknown command: bold2" -> "bold2".
func detail(err, sentinel error) string {
	msg, prefix := err.Error(), sentinel.Error()+": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return ""
}

func sessionOf(c echo.Context) string {
	id, _ := c.Get(stack_error.SessionContextKey).(string)
	return id
}

// getCallerFile возвращает строку с именем файла и номером строки, из которых была вызвана функция.
func getCallerFile() slog.Attr {
	_, path, no, ok := runtime.Caller(2)
	if !ok {
		return slog.Attr{}
	}
	_, file := filepath.Split(path)
	return slog.String("caller", fmt.Sprintf("%s:%d", file, no))
}
