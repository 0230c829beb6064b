package stack_error

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDrag = errors.New("drag already active")

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := new(bytes.Buffer)
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return buf
}

func TestTrackErrorStack(t *testing.T) {
	te := TrackErrorStack(errDrag).AddContext("pos", 3)
	te = TrackErrorStack(te).AddContext("pos", 7).AddContext("handle", "right")

	assert.Len(t, te.ErrStack, 2)
	assert.Equal(t, 3, te.Context["pos"])
	assert.Equal(t, "right", te.Context["handle"])
	assert.ErrorIs(t, te, errDrag)
	assert.Equal(t, errDrag.Error(), te.Error())

	assert.Nil(t, TrackErrorStack(nil))
}

func TestGetError(t *testing.T) {
	buf := captureLog(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/abc/resize", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.Set(SessionContextKey, "abc")

	GetError(c, TrackErrorStack(errDrag).AddContext("pos", 2))

	out := buf.String()
	require.Contains(t, out, "stack error")
	assert.Contains(t, out, "session=abc")
	assert.Contains(t, out, "pos=2")
	assert.Contains(t, out, "method=POST")
	assert.True(t, strings.Contains(out, "error_test.go"), "trace must point to the caller")
}

func TestGetErrorRaw(t *testing.T) {
	buf := captureLog(t)
	GetError(nil, errDrag)
	assert.Contains(t, buf.String(), `raw_error="drag already active"`)
}
