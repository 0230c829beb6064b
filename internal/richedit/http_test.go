package richedit

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/aisa-it/richedit/internal/richedit/apierrors"
	"github.com/aisa-it/richedit/internal/richedit/config"
	filestorage "github.com/aisa-it/richedit/internal/richedit/file-storage"
	"github.com/aisa-it/richedit/internal/richedit/images"
	"github.com/gofrs/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	webURL, _ := url.Parse("http://localhost:8080")
	return &config.Config{
		ListenAddr:        ":8080",
		MetricsAddr:       ":2112",
		WebURL:            webURL,
		ImageMaxBytes:     config.DefaultImageMaxBytes,
		ImageResolver:     config.ResolverDataURI,
		BlobTTLMinutes:    60,
		SessionTTLMinutes: 120,
		MaxSessions:       10,
		HistoryLimit:      100,
	}
}

type testServer struct {
	t *testing.T
	s *Services
	e *echo.Echo
}

func newTestServer(t *testing.T, cfg *config.Config, storage filestorage.FileStorage) *testServer {
	t.Helper()
	s, err := NewServices(cfg, storage, "test")
	require.NoError(t, err)
	return &testServer{t: t, s: s, e: s.NewEcho()}
}

func (ts *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, path, nil)
	} else {
		data, err := json.Marshal(body)
		require.NoError(ts.t, err)
		req = httptest.NewRequest(method, path, bytes.NewReader(data))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) upload(path, name string, data []byte) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", name)
	require.NoError(ts.t, err)
	_, err = fw.Write(data)
	require.NoError(ts.t, err)
	require.NoError(ts.t, w.WriteField("alt", "pic"))
	require.NoError(ts.t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	return rec
}

type stateBody struct {
	Id        string `json:"id"`
	Version   uint64 `json:"version"`
	HTML      string `json:"html"`
	Selection struct {
		Anchor int `json:"anchor"`
		Head   int `json:"head"`
	} `json:"selection"`
	Active struct {
		Marks   map[string]bool `json:"marks"`
		CanUndo bool            `json:"can_undo"`
	} `json:"active"`
	Warnings []string `json:"warnings"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func assertAPIError(t *testing.T, rec *httptest.ResponseRecorder, want apierrors.DefinedError) {
	t.Helper()
	assert.Equal(t, want.StatusCode, rec.Code, rec.Body.String())
	got := decode[apierrors.DefinedError](t, rec)
	assert.Equal(t, want.Code, got.Code, rec.Body.String())
}

func (ts *testServer) createSession(content string) stateBody {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/sessions/", map[string]string{"content": content})
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[stateBody](ts.t, rec)
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	for x := 0; x < 4; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
		img.Set(x, 1, color.RGBA{B: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestVersionAndHealth(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)

	rec := ts.do(http.MethodGet, "/api/version/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "RichEdit", rec.Header().Get(echo.HeaderServer))
	v := decode[map[string]any](t, rec)
	assert.Equal(t, "test", v["version"])
	assert.Equal(t, "datauri", v["image_resolver"])

	rec = ts.do(http.MethodGet, "/api/_health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/api/unknown/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateSession(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)

	rec := ts.do(http.MethodPost, "/api/sessions/", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	welcome := decode[stateBody](t, rec)
	assert.Contains(t, welcome.HTML, "Welcome to the Rich Content Editor!")
	assert.NotEmpty(t, welcome.Id)

	doc := map[string]any{
		"type": "doc",
		"content": []any{map[string]any{
			"type":    "paragraph",
			"content": []any{map[string]any{"type": "text", "text": "from json"}},
		}},
	}
	rec = ts.do(http.MethodPost, "/api/sessions/", map[string]any{"doc": doc})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "<p>from json</p>", decode[stateBody](t, rec).HTML)

	got := ts.do(http.MethodGet, "/api/sessions/"+welcome.Id+"/", nil)
	require.Equal(t, http.StatusOK, got.Code)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(got.Body.Bytes(), &raw))
	assert.Contains(t, string(raw["doc"]), `"type":"doc"`)

	rec = ts.do(http.MethodDelete, "/api/sessions/"+welcome.Id+"/", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assertAPIError(t, ts.do(http.MethodGet, "/api/sessions/"+welcome.Id+"/", nil), apierrors.ErrSessionNotFound)
	assertAPIError(t, ts.do(http.MethodGet, "/api/sessions/not-a-uuid/", nil), apierrors.ErrInvalidID)
}

func TestSessionLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSessions = 1
	ts := newTestServer(t, cfg, nil)

	ts.createSession("<p>a</p>")
	assertAPIError(t, ts.do(http.MethodPost, "/api/sessions/", map[string]string{"content": "<p>b</p>"}), apierrors.ErrSessionLimit)
}

func TestPaste(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)
	sess := ts.createSession("<p>one</p><p>two</p><p>three</p>")
	base := "/api/sessions/" + sess.Id + "/"

	rec := ts.do(http.MethodPost, base+"selection/", map[string]int{"anchor": 1, "head": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodPost, base+"paste/", map[string]string{
		"html": `<p onclick="steal()">new <b>bold</b></p><script>alert(1)</script>`,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[struct {
		Phase    string    `json:"phase"`
		Removed  int       `json:"removed"`
		Fallback bool      `json:"fallback"`
		State    stateBody `json:"state"`
	}](t, rec)
	assert.Equal(t, "replaced", out.Phase)
	assert.Equal(t, 2, out.Removed)
	assert.False(t, out.Fallback)
	assert.Equal(t, `<p>one</p><p>new <strong>bold</strong></p><p>three</p>`, out.State.HTML)

	rec = ts.do(http.MethodPost, base+"paste/", map[string]string{"text": "plain <text>"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out = decode[struct {
		Phase    string    `json:"phase"`
		Removed  int       `json:"removed"`
		Fallback bool      `json:"fallback"`
		State    stateBody `json:"state"`
	}](t, rec)
	assert.Equal(t, "pass_through", out.Phase)
	assert.True(t, out.Fallback)
	assert.Contains(t, out.State.HTML, "<p>plain &lt;text&gt;</p>")

	assertAPIError(t, ts.do(http.MethodPost, base+"paste/", map[string]string{}), apierrors.ErrValidation)
}

func TestCommandsAndHistory(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)
	sess := ts.createSession("<p>one</p>")
	base := "/api/sessions/" + sess.Id + "/"

	rec := ts.do(http.MethodPost, base+"selection/", map[string]int{"anchor": 0, "head": 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	selected := decode[stateBody](t, rec)
	assert.Greater(t, selected.Version, sess.Version)

	rec = ts.do(http.MethodPost, base+"commands/", map[string]any{
		"commands": []map[string]any{{"name": "toggleHeading", "args": map[string]any{"level": 2}}},
		"dry_run":  true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[struct {
		Can bool `json:"can"`
	}](t, rec).Can)

	rec = ts.do(http.MethodPost, base+"commands/", map[string]any{
		"commands": []map[string]any{{"name": "toggleBold"}, {"name": "setTextAlign", "args": map[string]any{"alignment": "center"}}},
		"version":  selected.Version,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	state := decode[struct {
		State stateBody `json:"state"`
	}](t, rec).State
	assert.Contains(t, state.HTML, "<strong>one</strong>")
	assert.True(t, state.Active.Marks["bold"])
	assert.True(t, state.Active.CanUndo)

	assertAPIError(t, ts.do(http.MethodPost, base+"commands/", map[string]any{
		"commands": []map[string]any{{"name": "toggleItalic"}},
		"version":  selected.Version,
	}), apierrors.ErrStaleState)

	assertAPIError(t, ts.do(http.MethodPost, base+"commands/", map[string]any{
		"commands": []map[string]any{{"name": "makeItPretty"}},
	}), apierrors.ErrValidation)

	assertAPIError(t, ts.do(http.MethodPost, base+"commands/", map[string]any{
		"commands": []map[string]any{},
	}), apierrors.ErrValidation)

	rec = ts.do(http.MethodPost, base+"undo/", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "<p>one</p>", decode[stateBody](t, rec).HTML)

	assertAPIError(t, ts.do(http.MethodPost, base+"undo/", nil), apierrors.ErrNothingToUndo)

	rec = ts.do(http.MethodPost, base+"redo/", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, decode[stateBody](t, rec).HTML, "<strong>one</strong>")

	assertAPIError(t, ts.do(http.MethodPost, base+"selection/", map[string]int{"anchor": 0, "head": 7}), apierrors.ErrInvalidSelection)
}

func TestResizeMedia(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)
	sess := ts.createSession(`<p>a</p><img src="https://example.com/a.png" width="300" height="200">`)
	media := "/api/sessions/" + sess.Id + "/media/1/"

	rec := ts.do(http.MethodGet, media, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode[MediaResponse](t, rec)
	assert.Equal(t, "image", view.Kind)
	assert.Equal(t, "300px", view.Width)
	assert.Len(t, view.Handles, 4)
	assert.Nil(t, view.Drag)

	rec = ts.do(http.MethodPost, media+"resize/start/", map[string]any{"handle": "bottom-right"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, decode[MediaResponse](t, rec).Drag)

	assertAPIError(t, ts.do(http.MethodPost, media+"resize/start/", map[string]any{"handle": "right"}), apierrors.ErrDragActive)

	rec = ts.do(http.MethodPost, media+"resize/move/", map[string]any{"width": 450, "height": 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"width":450,"height":300}`, rec.Body.String())

	rec = ts.do(http.MethodPost, media+"resize/end/", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view = decode[MediaResponse](t, rec)
	assert.Equal(t, "450px", view.Width)
	assert.Equal(t, "300px", view.Height)
	assert.Nil(t, view.Drag)

	assertAPIError(t, ts.do(http.MethodPost, media+"resize/end/", nil), apierrors.ErrNoDrag)
	assertAPIError(t, ts.do(http.MethodPost, media+"resize/cancel/", nil), apierrors.ErrNoDrag)
	assertAPIError(t, ts.do(http.MethodPost, media+"resize/start/", map[string]any{"handle": "top"}), apierrors.ErrHandleDisabled)
	assertAPIError(t, ts.do(http.MethodPost, media+"resize/start/", map[string]any{"handle": "diagonal"}), apierrors.ErrValidation)

	rec = ts.do(http.MethodPost, media+"resize/start/", map[string]any{"handle": "right"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodPost, media+"resize/cancel/", nil).Code)

	assertAPIError(t, ts.do(http.MethodGet, "/api/sessions/"+sess.Id+"/media/0/", nil), apierrors.ErrNotMedia)
	assertAPIError(t, ts.do(http.MethodGet, "/api/sessions/"+sess.Id+"/media/9/", nil), apierrors.ErrInvalidSelection)

	rec = ts.do(http.MethodGet, "/api/sessions/"+sess.Id+"/", nil)
	assert.Contains(t, decode[stateBody](t, rec).HTML, `width="450px"`)
}

func TestUpdateMedia(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)
	sess := ts.createSession(`<img src="https://example.com/a.png" width="300" height="200">`)
	media := "/api/sessions/" + sess.Id + "/media/0/"

	rec := ts.do(http.MethodPatch, media, map[string]any{"width": "50%", "height": "auto", "align": "center", "alt": "logo"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode[MediaResponse](t, rec)
	assert.Equal(t, "50%", view.Width)
	assert.Equal(t, "auto", view.Height)
	assert.Equal(t, "center", view.Justify)

	rec = ts.do(http.MethodGet, "/api/sessions/"+sess.Id+"/", nil)
	state := decode[stateBody](t, rec)
	assert.Contains(t, state.HTML, `alt="logo"`)
	assert.True(t, state.Active.CanUndo)

	assertAPIError(t, ts.do(http.MethodPatch, media, map[string]any{"width": "wide"}), apierrors.ErrValidation)
	assertAPIError(t, ts.do(http.MethodPatch, media, map[string]any{"align": "middle"}), apierrors.ErrValidation)
	assertAPIError(t, ts.do(http.MethodPatch, media, map[string]any{}), apierrors.ErrValidation)
}

func TestImageUploadDataURI(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)
	sess := ts.createSession("<p>a</p>")
	base := "/api/sessions/" + sess.Id + "/"

	rec := ts.upload(base+"images/", "pic.png", testPNG(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[UploadResponse](t, rec)
	assert.Equal(t, "done", out.Status)
	assert.True(t, strings.HasPrefix(out.Src, "data:image/png;base64,"), out.Src)
	require.NotNil(t, out.State)
	assert.Contains(t, out.State.HTML, `<img src="data:image/png;base64,`)
	assert.Contains(t, out.State.HTML, `alt="pic"`)

	rec = ts.upload(base+"images/", "notes.png", []byte("just some text"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out = decode[UploadResponse](t, rec)
	assert.Equal(t, "failed", out.Status)
	require.NotNil(t, out.Error)
	assert.Equal(t, apierrors.ErrUnsupportedImage.Code, out.Error.Code)

	rec = ts.do(http.MethodPost, base+"images/", map[string]string{"url": "https://example.com/x.png"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "https://example.com/x.png", decode[UploadResponse](t, rec).Src)

	assertAPIError(t, ts.do(http.MethodPost, base+"images/", map[string]string{"url": "  "}), apierrors.ErrImageURLRequired)
	assertAPIError(t, ts.do(http.MethodGet, base+"images/"+sess.Id+"/", nil), apierrors.ErrFileNotFound)
}

func TestImageSizeLimit(t *testing.T) {
	cfg := testConfig()
	cfg.ImageMaxBytes = 64
	ts := newTestServer(t, cfg, nil)
	sess := ts.createSession("<p>a</p>")

	rec := ts.upload("/api/sessions/"+sess.Id+"/images/", "big.png", bytes.Repeat([]byte{1}, 65))
	assertAPIError(t, rec, apierrors.ErrSizeLimit)
	assert.Contains(t, rec.Body.String(), "64B")
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

type onesReader struct{}

func (onesReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 1
	}
	return len(p), nil
}

// streamUpload отправляет файл размера size, не держа его в памяти.
func (ts *testServer) streamUpload(path string, size int64, knownLength bool) (*httptest.ResponseRecorder, int64) {
	ts.t.Helper()
	var head, tail bytes.Buffer
	w := multipart.NewWriter(&head)
	_, err := w.CreateFormFile("file", "huge.png")
	require.NoError(ts.t, err)
	prefix := append([]byte(nil), head.Bytes()...)
	head.Reset()
	require.NoError(ts.t, w.Close())
	tail.Write(head.Bytes())

	body := &countingReader{r: io.MultiReader(bytes.NewReader(prefix), io.LimitReader(onesReader{}, size), &tail)}
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	if knownLength {
		req.ContentLength = int64(len(prefix)) + size + int64(tail.Len())
	}
	rec := httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	return rec, body.n
}

func TestImageUploadBodyLimit(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)
	sess := ts.createSession("<p>a</p>")
	path := "/api/sessions/" + sess.Id + "/images/"
	const huge = 64 << 20

	rec, read := ts.streamUpload(path, huge, false)
	assertAPIError(t, rec, apierrors.ErrSizeLimit)
	assert.Contains(t, rec.Body.String(), "5MB")
	assert.Less(t, read, int64(config.DefaultImageMaxBytes+multipartOverhead+(1<<20)))

	rec, read = ts.streamUpload(path, huge, true)
	assertAPIError(t, rec, apierrors.ErrSizeLimit)
	assert.Zero(t, read)

	rec = ts.do(http.MethodGet, "/api/sessions/"+sess.Id+"/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<p>a</p>", decode[stateBody](t, rec).HTML)
}

func TestImageUploadBlob(t *testing.T) {
	cfg := testConfig()
	cfg.ImageResolver = config.ResolverBlob
	ts := newTestServer(t, cfg, nil)
	sess := ts.createSession("<p>a</p>")

	rec := ts.upload("/api/sessions/"+sess.Id+"/images/", "pic.png", testPNG(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[UploadResponse](t, rec)
	require.True(t, strings.HasPrefix(out.Src, "blob:http://localhost:8080/"), out.Src)

	id, ok := images.ParseBlobURL(out.Src)
	require.True(t, ok)
	rec = ts.do(http.MethodGet, "/api/blob/"+id.String()+"/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, testPNG(t), rec.Body.Bytes())

	rec = ts.do(http.MethodGet, "/api/sessions/"+sess.Id+"/export/?format=html", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "data:image/png;base64,")
	assert.NotContains(t, rec.Body.String(), "blob:")

	assertAPIError(t, ts.do(http.MethodGet, "/api/blob/"+sess.Id+"/", nil), apierrors.ErrBlobNotFound)
}

func TestImageUploadStorage(t *testing.T) {
	storage, err := filestorage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	cfg := testConfig()
	cfg.ImageResolver = config.ResolverStorage
	ts := newTestServer(t, cfg, storage)
	sess := ts.createSession("<p>a</p>")

	rec := ts.upload("/api/sessions/"+sess.Id+"/images/", "pic.png", testPNG(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[UploadResponse](t, rec)
	require.True(t, strings.HasPrefix(out.Src, "http://localhost:8080/api/file/"), out.Src)

	rec = ts.do(http.MethodGet, strings.TrimPrefix(out.Src, "http://localhost:8080"), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, testPNG(t), rec.Body.Bytes())

	assertAPIError(t, ts.do(http.MethodGet, "/api/file/"+sess.Id+"/", nil), apierrors.ErrFileNotFound)
}

func TestFileWithoutStorage(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)
	assertAPIError(t, ts.do(http.MethodGet, "/api/file/"+ts.createSession("").Id+"/", nil), apierrors.ErrStorageDisabled)
}

func TestEmbedVideo(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)
	sess := ts.createSession("<p>a</p>")
	base := "/api/sessions/" + sess.Id + "/"

	rec := ts.do(http.MethodPost, base+"video/", map[string]string{"url": " https://youtu.be/dQw4w9WgXcQ "})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, decode[stateBody](t, rec).HTML, `src="https://www.youtube.com/embed/dQw4w9WgXcQ"`)

	assertAPIError(t, ts.do(http.MethodPost, base+"video/", map[string]string{"url": "https://vimeo.com/1"}), apierrors.ErrVideoURLInvalid)
	assertAPIError(t, ts.do(http.MethodPost, base+"video/", map[string]string{"url": ""}), apierrors.ErrValidation)
}

func TestNormalizeVideoURL(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)

	rec := ts.do(http.MethodPost, "/api/video/normalize/", map[string]string{"url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=10"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, NormalizeResponse{Src: "https://www.youtube.com/embed/dQw4w9WgXcQ", Id: "dQw4w9WgXcQ"}, decode[NormalizeResponse](t, rec))

	assertAPIError(t, ts.do(http.MethodPost, "/api/video/normalize/", map[string]string{"url": "https://example.com"}), apierrors.ErrVideoURLInvalid)
}

func TestSanitize(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)

	rec := ts.do(http.MethodPost, "/api/sanitize/", map[string]any{
		"html": `<p align="center" onclick="x()">hi<script>bad()</script></p>`,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[SanitizeResponse](t, rec)
	assert.Equal(t, `<p>hi</p>`, out.HTML)
	assert.Equal(t, 1, out.Report.RemovedElements["script"])

	rec = ts.do(http.MethodPost, "/api/sanitize/", map[string]any{
		"html":   `<p align="center">hi</p>`,
		"policy": "paste",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, `<p align="center">hi</p>`, decode[SanitizeResponse](t, rec).HTML)

	assertAPIError(t, ts.do(http.MethodPost, "/api/sanitize/", map[string]any{"html": "x", "policy": "none"}), apierrors.ErrValidation)
}

func TestSchema(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)

	rec := ts.do(http.MethodGet, "/api/schema/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[SchemaResponse](t, rec)
	assert.Contains(t, out.Commands, "toggleBold")
	assert.Contains(t, out.Commands, "undo")
	assert.Contains(t, out.Extensions, "youtubeEmbed")
}

func TestExport(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)
	sess := ts.createSession(`<h2>Title</h2><p>Hello <strong>bold</strong></p><ul><li><p>one</p></li></ul>`)
	base := "/api/sessions/" + sess.Id + "/export/"

	rec := ts.do(http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h2>Title</h2>")

	rec = ts.do(http.MethodGet, base+"?format=text", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Equal(t, []string{"Title", "Hello bold", "one"}, lines)

	rec = ts.do(http.MethodGet, base+"?format=markdown", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "## Title")
	assert.Contains(t, rec.Body.String(), "**bold**")

	rec = ts.do(http.MethodGet, base+"?format=pdf&title=Doc", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get(echo.HeaderContentType))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	assertAPIError(t, ts.do(http.MethodGet, base+"?format=docx", nil), apierrors.ErrValidation)
}

func TestMetrics(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)
	sess := ts.createSession("<p>a</p>")
	ts.do(http.MethodPost, "/api/sessions/"+sess.Id+"/paste/", map[string]string{"html": "<p>x<script></script></p>"})

	metrics := echo.New()
	metrics.GET("/metrics", ts.s.MetricsHandler())
	rec := httptest.NewRecorder()
	metrics.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `richedit_paste_total{phase="replaced"} 1`)
	assert.Contains(t, body, "richedit_sessions 1")
	assert.Contains(t, body, "richedit_boot_time")
	assert.Contains(t, body, "requests_total")
}

func TestMaintenanceJobs(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)
	sess := ts.createSession("<p>a</p>")
	id, err := uuid.FromString(sess.Id)
	require.NoError(t, err)
	stored, err := ts.s.sessions.Get(id)
	require.NoError(t, err)
	_, u, err := stored.addUpload(0)
	require.NoError(t, err)
	u.finish("https://example.com/a.png", nil)

	jobs := ts.s.jobs()
	for _, name := range []string{"blob_expire", "upload_expire", "session_expire"} {
		require.Contains(t, jobs, name)
		jobs[name].Func()
	}
	assert.Equal(t, 1, stored.pendingUploads(), "fresh result is kept")
	assert.Equal(t, 1, ts.s.sessions.Len())
}
