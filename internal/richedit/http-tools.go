package richedit

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"github.com/aisa-it/richedit/internal/richedit/apierrors"
	"github.com/aisa-it/richedit/internal/richedit/editor"
	"github.com/aisa-it/richedit/internal/richedit/export"
	filestorage "github.com/aisa-it/richedit/internal/richedit/file-storage"
	"github.com/aisa-it/richedit/internal/richedit/sanitizer"
	"github.com/aisa-it/richedit/internal/richedit/video"
	"github.com/gofrs/uuid"
	"github.com/labstack/echo/v4"
)

const (
	exportHTML     = "html"
	exportText     = "text"
	exportMarkdown = "markdown"
	exportPDF      = "pdf"
)

var exportFormats = []string{exportHTML, exportText, exportMarkdown, exportPDF}

func (s *Services) AddToolServices(g *echo.Group) {
	g.POST("sanitize/", s.sanitizeHTML)
	g.POST("video/normalize/", s.normalizeVideoURL)
	g.GET("schema/", s.getSchema)
}

func normalizeVideo(raw string) (string, bool) {
	return video.NormalizeURL(strings.TrimSpace(raw))
}

type sanitizeRequest struct {
	HTML   string               `json:"html"`
	Policy string               `json:"policy" validate:"omitempty,oneof=general paste"`
	Allow  *sanitizer.AllowList `json:"allow,omitempty"`
}

type SanitizeResponse struct {
	HTML   string           `json:"html"`
	Report sanitizer.Report `json:"report"`
}

// sanitizeHTML godoc
// @id sanitizeHTML
// @Summary tools: очистка HTML
// @Description Очищает HTML по общей политике или политике вставки. allow расширяет выбранную политику.
// @Tags Tools
// @Accept json
// @Produce json
// @Param data body sanitizeRequest true "HTML и политика"
// @Success 200 {object} SanitizeResponse "очищенный HTML"
// @Failure 400 {object} apierrors.DefinedError "Некорректная политика"
// @Router /api/sanitize/ [post]
func (s *Services) sanitizeHTML(c echo.Context) error {
	var req sanitizeRequest
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrInvalidPolicy)
	}
	if err := c.Validate(req); err != nil {
		return EErrorDefined(c, validationError(err))
	}

	policy := sanitizer.GeneralPolicy()
	if req.Policy == "paste" {
		policy = s.paste.Policy()
	}
	if req.Allow != nil {
		policy = policy.Merge(req.Allow)
	}

	out, report := sanitizer.SanitizeWithReport(req.HTML, policy)
	return c.JSON(http.StatusOK, SanitizeResponse{HTML: out, Report: report})
}

type normalizeRequest struct {
	URL string `json:"url" validate:"required,videoURL"`
}

type NormalizeResponse struct {
	Src string `json:"src"`
	Id  string `json:"id"`
}

// normalizeVideoURL godoc
// @id normalizeVideoURL
// @Summary tools: адрес видео для встраивания
// @Tags Tools
// @Accept json
// @Produce json
// @Param data body normalizeRequest true "Ссылка на видео"
// @Success 200 {object} NormalizeResponse "адрес для iframe"
// @Failure 400 {object} apierrors.DefinedError "Ссылка не распознана"
// @Router /api/video/normalize/ [post]
func (s *Services) normalizeVideoURL(c echo.Context) error {
	var req normalizeRequest
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrValidation.WithFormattedMessage("body"))
	}
	if err := c.Validate(req); err != nil {
		return EErrorDefined(c, apierrors.ErrVideoURLInvalid)
	}
	src, _ := normalizeVideo(req.URL)
	return c.JSON(http.StatusOK, NormalizeResponse{Src: src, Id: video.ID(src)})
}

type SchemaResponse struct {
	Extensions []string `json:"extensions"`
	Marks      []string `json:"marks"`
	Commands   []string `json:"commands"`
}

// getSchema godoc
// @id getSchema
// @Summary tools: возможности редактора
// @Tags Tools
// @Produce json
// @Success 200 {object} SchemaResponse "расширения, марки и команды"
// @Router /api/schema/ [get]
func (s *Services) getSchema(c echo.Context) error {
	schema := editor.DefaultSchema()
	return c.JSON(http.StatusOK, SchemaResponse{
		Extensions: schema.Extensions(),
		Marks:      schema.Marks(),
		Commands:   append(schema.Commands(), "undo", "redo"),
	})
}

type exportRequest struct {
	Format string `query:"format" validate:"required,exportFormat"`
	Minify bool   `query:"minify"`
	Title  string `query:"title"`
}

// exportDocument godoc
// @id exportDocument
// @Summary session: экспорт документа
// @Tags Sessions
// @Produce html
// @Produce plain
// @Produce application/pdf
// @Param sessionId path string true "Id сессии"
// @Param format query string true "html, text, markdown или pdf"
// @Param minify query bool false "Минифицировать HTML"
// @Param title query string false "Заголовок PDF"
// @Success 200 {string} string "документ"
// @Failure 400 {object} apierrors.DefinedError "Неизвестный формат"
// @Router /api/sessions/{sessionId}/export/ [get]
func (s *Services) exportDocument(c echo.Context) error {
	sess := c.(SessionContext).Session
	req := exportRequest{Format: exportHTML}
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrValidation.WithFormattedMessage("query"))
	}
	if err := c.Validate(req); err != nil {
		return EErrorDefined(c, validationError(err))
	}

	doc := sess.State.Doc()
	switch req.Format {
	case exportText:
		return c.String(http.StatusOK, export.PlainText(doc))
	case exportMarkdown:
		out, err := export.Markdown(doc)
		if err != nil {
			return EError(c, err)
		}
		return c.Blob(http.StatusOK, "text/markdown; charset=UTF-8", []byte(out))
	case exportPDF:
		var buf bytes.Buffer
		if err := export.PDF(c.Request().Context(), doc, &buf, export.PDFOptions{Title: req.Title, Images: s.loader}); err != nil {
			return EError(c, err)
		}
		c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+sess.Id.String()+`.pdf"`)
		return c.Blob(http.StatusOK, "application/pdf", buf.Bytes())
	}

	out, err := export.HTML(doc, export.Options{Minify: req.Minify || s.cfg.ExportMinify, Blobs: s.blobs})
	if err != nil {
		return EError(c, err)
	}
	return c.HTML(http.StatusOK, out)
}

// getBlob godoc
// @id getBlob
// @Summary files: временное изображение
// @Tags Files
// @Produce image/png
// @Param blobId path string true "Id временного файла"
// @Success 200 {file} binary "изображение"
// @Failure 404 {object} apierrors.DefinedError "Файл не найден или устарел"
// @Router /api/blob/{blobId}/ [get]
func (s *Services) getBlob(c echo.Context) error {
	id, err := uuid.FromString(c.Param("blobId"))
	if err != nil {
		return EErrorDefined(c, apierrors.ErrInvalidID)
	}
	blob, err := s.blobs.Get(id)
	if err != nil {
		return EError(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=300")
	return c.Blob(http.StatusOK, blob.ContentType, blob.Data)
}

// getFile godoc
// @id getFile
// @Summary files: изображение из хранилища
// @Tags Files
// @Produce image/png
// @Param fileName path string true "Id файла"
// @Success 200 {file} binary "изображение"
// @Failure 404 {object} apierrors.DefinedError "Файл не найден"
// @Failure 503 {object} apierrors.DefinedError "Хранилище не настроено"
// @Router /api/file/{fileName}/ [get]
func (s *Services) getFile(c echo.Context) error {
	if s.storage == nil {
		return EErrorDefined(c, apierrors.ErrStorageDisabled)
	}
	id, err := uuid.FromString(c.Param("fileName"))
	if err != nil {
		return EErrorDefined(c, apierrors.ErrInvalidID)
	}

	info, err := s.storage.GetFileInfo(id)
	if err != nil {
		if errors.Is(err, filestorage.ErrNotFound) {
			return EErrorDefined(c, apierrors.ErrFileNotFound)
		}
		return EError(c, err)
	}
	r, err := s.storage.LoadReader(id)
	if err != nil {
		return EError(c, err)
	}
	defer r.Close()

	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=86400, immutable")
	return c.Stream(http.StatusOK, contentType(info.ContentType), r)
}

func contentType(ct string) string {
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}
