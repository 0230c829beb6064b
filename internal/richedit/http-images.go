package richedit

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/aisa-it/richedit/internal/richedit/apierrors"
	"github.com/aisa-it/richedit/internal/richedit/config"
	"github.com/aisa-it/richedit/internal/richedit/editor"
	"github.com/aisa-it/richedit/internal/richedit/images"
	"github.com/gofrs/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Сколько обработчик загрузки ждет результат, прежде чем ответить 202.
const uploadWait = 2 * time.Second

// Столько результат завершенной загрузки ждет запроса клиента.
const uploadTTL = 10 * time.Minute

// Запас на заголовки частей и поля формы сверх IMAGE_MAX_BYTES.
const multipartOverhead = 64 << 10

func (s *Services) AddImageServices(g *echo.Group) {
	g.POST("/images/", s.acquireImage, s.imageBodyLimit())
	g.GET("/images/:uploadId/", s.getUpload)
}

// acquirer собирает Acquirer для сессии по настройкам сервера.
func (s *Services) acquirer(sess *Session) *images.Acquirer {
	var resolver images.Resolver
	switch s.cfg.ImageResolver {
	case config.ResolverBlob:
		resolver = &images.BlobResolver{Store: s.blobs, BaseURL: s.cfg.WebURL, MaxDimension: s.cfg.ImageMaxDimension}
	case config.ResolverStorage:
		resolver = &images.StorageResolver{Storage: s.storage, BaseURL: s.cfg.WebURL, MaxDimension: s.cfg.ImageMaxDimension, SessionId: sess.Id.String()}
	default:
		resolver = &images.DataURIResolver{MaxDimension: s.cfg.ImageMaxDimension}
	}
	return images.NewAcquirer(
		images.WithMaxBytes(int64(s.cfg.ImageMaxBytes)),
		images.WithResolver(resolver),
		images.WithDelay(time.Duration(s.cfg.ImageResolveDelayMs)*time.Millisecond),
	)
}

// imageBodyLimit ограничивает тело запроса загрузки до разбора формы.
// Превышение отдается как ErrSizeLimit, как и проверка размера файла.
func (s *Services) imageBodyLimit() echo.MiddlewareFunc {
	maxBytes := int64(s.cfg.ImageMaxBytes)
	limit := middleware.BodyLimit(strconv.FormatInt(maxBytes+multipartOverhead, 10))
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		h := limit(next)
		return func(c echo.Context) error {
			err := h(c)
			if errors.Is(err, echo.ErrStatusRequestEntityTooLarge) {
				s.metrics.images.WithLabelValues("file", uploadFailed).Inc()
				return EErrorDefined(c, apierrors.ErrSizeLimit.WithFormattedMessage(images.FormatBytes(maxBytes)))
			}
			return err
		}
	}
}

// formFile - файл из multipart формы.
type formFile struct {
	fh *multipart.FileHeader
}

func (f formFile) Name() string                  { return f.fh.Filename }
func (f formFile) Size() int64                   { return f.fh.Size }
func (f formFile) Open() (io.ReadCloser, error) { return f.fh.Open() }

type imageRequest struct {
	URL string `json:"url" form:"url"`
	Alt string `json:"alt" form:"alt"`
}

// UploadResponse - состояние загрузки изображения.
type UploadResponse struct {
	Id     uuid.UUID               `json:"id"`
	Status string                  `json:"status"`
	Src    string                  `json:"src,omitempty"`
	Error  *apierrors.DefinedError `json:"error,omitempty"`
	State  *StateResponse          `json:"state,omitempty"`
}

const (
	uploadPending = "pending"
	uploadDone    = "done"
	uploadFailed  = "failed"
)

// acquireImage godoc
// @id acquireImage
// @Summary images: вставка изображения
// @Description Принимает файл или ссылку. Файл обрабатывается асинхронно, изображение вставляется в позицию курсора на момент запроса.
// @Tags Images
// @Accept multipart/form-data
// @Produce json
// @Param sessionId path string true "Id сессии"
// @Param file formData file false "Файл изображения"
// @Param url formData string false "Ссылка на изображение"
// @Param alt formData string false "Альтернативный текст"
// @Success 200 {object} UploadResponse "изображение вставлено"
// @Success 202 {object} UploadResponse "загрузка выполняется"
// @Failure 400 {object} apierrors.DefinedError "Не указана ссылка или файл не является изображением"
// @Failure 413 {object} apierrors.DefinedError "Файл слишком большой"
// @Router /api/sessions/{sessionId}/images/ [post]
func (s *Services) acquireImage(c echo.Context) error {
	sess := c.(SessionContext).Session

	var src images.Source
	var alt string
	sourceLabel := "file"
	if fh, err := c.FormFile("file"); err == nil {
		src = images.FromFile(formFile{fh})
		alt = c.FormValue("alt")
	} else if errors.Is(err, echo.ErrStatusRequestEntityTooLarge) {
		return err
	} else {
		var req imageRequest
		if err := c.Bind(&req); err != nil {
			return EErrorDefined(c, apierrors.ErrValidation.WithFormattedMessage("body"))
		}
		src = images.FromURL(req.URL)
		alt = req.Alt
		sourceLabel = "url"
	}

	acq := s.acquirer(sess)
	if err := acq.Validate(src); err != nil {
		s.metrics.images.WithLabelValues(sourceLabel, uploadFailed).Inc()
		return EError(c, err)
	}

	pos := sess.State.Selection().To()
	pending := acq.Acquire(c.Request().Context(), src)
	id, u, err := sess.addUpload(pos)
	if err != nil {
		return EError(c, err)
	}

	go func() {
		res, err := pending.Wait(context.Background())
		if err == nil {
			err = insertImage(sess.State, u.pos, res, alt)
		}
		result := uploadDone
		if err != nil {
			result = uploadFailed
		}
		s.metrics.images.WithLabelValues(sourceLabel, result).Inc()
		u.finish(res, err)
	}()

	if !waitUpload(c.Request().Context(), u, uploadWait) {
		return c.JSON(http.StatusAccepted, UploadResponse{Id: id, Status: uploadPending})
	}
	sess.dropUpload(id)
	return c.JSON(http.StatusOK, uploadResponse(id, sess, u))
}

// getUpload godoc
// @id getUpload
// @Summary images: состояние загрузки
// @Description Ждет завершения загрузки не дольше нескольких секунд. Завершенная загрузка возвращается один раз.
// @Tags Images
// @Produce json
// @Param sessionId path string true "Id сессии"
// @Param uploadId path string true "Id загрузки"
// @Success 200 {object} UploadResponse "загрузка завершена"
// @Success 202 {object} UploadResponse "загрузка выполняется"
// @Failure 404 {object} apierrors.DefinedError "Загрузка не найдена"
// @Router /api/sessions/{sessionId}/images/{uploadId}/ [get]
func (s *Services) getUpload(c echo.Context) error {
	sess := c.(SessionContext).Session
	id, err := uuid.FromString(c.Param("uploadId"))
	if err != nil {
		return EErrorDefined(c, apierrors.ErrInvalidID)
	}
	u, ok := sess.getUpload(id)
	if !ok {
		return EErrorDefined(c, apierrors.ErrFileNotFound)
	}
	if !waitUpload(c.Request().Context(), u, uploadWait) {
		return c.JSON(http.StatusAccepted, UploadResponse{Id: id, Status: uploadPending})
	}
	sess.dropUpload(id)
	return c.JSON(http.StatusOK, uploadResponse(id, sess, u))
}

func uploadResponse(id uuid.UUID, sess *Session, u *upload) UploadResponse {
	resp := UploadResponse{Id: id, Status: uploadDone, Src: u.src}
	if u.err != nil {
		defined, ok := definedError(u.err)
		if !ok {
			defined = apierrors.ErrImageUploadFailed
		}
		resp.Status = uploadFailed
		resp.Src = ""
		resp.Error = &defined
		return resp
	}
	state := stateResponse(sess, nil)
	resp.State = &state
	return resp
}

// insertImage вставляет изображение в позицию pos. Если документ с тех пор стал короче,
// изображение добавляется в конец.
func insertImage(state *editor.State, pos int, src, alt string) error {
	return state.Update(func(tr *editor.Transaction) error {
		if err := tr.SetSelection(editor.CursorAt(min(pos, len(tr.Doc().Elements)))); err != nil {
			return err
		}
		setImage, ok := tr.Schema().Command("setImage")
		if !ok {
			return editor.ErrUnknownCommand
		}
		return setImage(tr, editor.Args{"src": src, "alt": alt})
	})
}
