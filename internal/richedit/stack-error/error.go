package stack_error

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"

	"github.com/labstack/echo/v4"
)

// Ключ echo.Context, под которым обработчики сохраняют идентификатор сессии редактора.
const SessionContextKey = "sessionId"

// TrackerError накапливает места, через которые прошла ошибка, и контекст операции
// (сессия, позиция ноды, команда) для одной записи в журнале.
type TrackerError struct {
	Context  map[string]any
	ErrStack []slog.Attr
	cause    error
}

func TrackErrorStack(err error) *TrackerError {
	if err == nil {
		return nil
	}
	var te *TrackerError
	if errors.As(err, &te) {
		te.ErrStack = append(te.ErrStack, getCallerFile(err))
		return te
	}

	newTe := newTrackError(err)
	newTe.ErrStack = append(newTe.ErrStack, getCallerFile(err))
	return newTe
}

func newTrackError(err error) *TrackerError {
	return &TrackerError{
		Context:  make(map[string]any),
		ErrStack: make([]slog.Attr, 0),
		cause:    err,
	}
}

// AddContext добавляет значение, если ключ еще не задан: побеждает ближайший к источнику.
func (te *TrackerError) AddContext(k string, v any) *TrackerError {
	if _, ok := te.Context[k]; !ok {
		te.Context[k] = v
	}
	return te
}

// GetError пишет ошибку обработчика в журнал вместе с трассой и параметрами запроса.
func GetError(c echo.Context, err error) {
	var trackerError *TrackerError
	var attrs []any

	if errors.As(err, &trackerError) {
		trackerError.traceOut()
		attrs = trackerError.getAttrs()
		attrs = append(attrs, slog.String("error", trackerError.Error()))
	} else {
		attrs = []any{slog.String("raw_error", err.Error())}
	}

	if c != nil {
		attrs = append(attrs,
			slog.String("method", c.Request().Method),
			slog.String("url", c.Request().URL.String()))
		if id, ok := c.Get(SessionContextKey).(string); ok && id != "" {
			attrs = append(attrs, slog.String("session", id))
		}
	}

	slog.With(attrs...).Error("stack error")
}

func (te *TrackerError) Error() string {
	if te.cause != nil {
		return te.cause.Error()
	}
	return "TrackerError"
}

func (te *TrackerError) Unwrap() error {
	return te.cause
}

func (te *TrackerError) getAttrs() []any {
	res := make([]any, 0, len(te.Context))
	for k, v := range te.Context {
		res = append(res, slog.Any(k, v))
	}
	return res
}

func (te *TrackerError) traceOut() {
	for _, attr := range te.ErrStack {
		slog.Info("trace:", attr)
	}
}

func getCallerFile(err error) slog.Attr {
	_, path, no, ok := runtime.Caller(2)
	if !ok {
		return slog.String("trace", "unknown")
	}
	_, file := filepath.Split(path)
	return slog.String("trace", fmt.Sprintf("%s:%d %s", file, no, err.Error()))
}
