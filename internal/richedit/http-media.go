package richedit

import (
	"net/http"
	"strconv"

	"github.com/aisa-it/richedit/internal/richedit/apierrors"
	"github.com/aisa-it/richedit/internal/richedit/editor"
	"github.com/aisa-it/richedit/internal/richedit/media"
	stack_error "github.com/aisa-it/richedit/internal/richedit/stack-error"
	"github.com/labstack/echo/v4"
)

type MediaContext struct {
	SessionContext
	Controller *media.Controller
}

func (s *Services) MediaMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		sc := c.(SessionContext)
		pos, err := strconv.Atoi(c.Param("pos"))
		if err != nil || pos < 0 {
			return EErrorDefined(c, apierrors.ErrInvalidSelection)
		}
		ctrl, err := sc.Session.Resizer.Controller(pos)
		if err != nil {
			return EError(c, err)
		}
		return next(MediaContext{sc, ctrl})
	}
}

func (s *Services) AddMediaServices(g *echo.Group) {
	mediaGroup := g.Group("/media/:pos", s.MediaMiddleware)
	mediaGroup.GET("/", s.getMedia)
	mediaGroup.PATCH("/", s.updateMedia)
	mediaGroup.POST("/resize/start/", s.startResize)
	mediaGroup.POST("/resize/move/", s.moveResize)
	mediaGroup.POST("/resize/end/", s.endResize)
	mediaGroup.POST("/resize/cancel/", s.cancelResize)
}

// MediaResponse - представление медиа ноды: размеры из атрибутов, выравнивание обертки
// и доступные маркеры.
type MediaResponse struct {
	Pos     int            `json:"pos"`
	Kind    string         `json:"kind"`
	Width   string         `json:"width"`
	Height  string         `json:"height"`
	Justify string         `json:"justify"`
	Handles []media.Handle `json:"handles"`
	Drag    *DragResponse  `json:"drag,omitempty"`
}

type DragResponse struct {
	Handle media.Handle `json:"handle"`
	Start  media.Size   `json:"start"`
	Size   media.Size   `json:"size"`
}

func mediaResponse(ctrl *media.Controller, r *media.Resizer) MediaResponse {
	resp := MediaResponse{
		Pos:     ctrl.Pos(),
		Kind:    ctrl.Kind().String(),
		Width:   ctrl.Width(),
		Height:  ctrl.Height(),
		Justify: ctrl.Justify(),
		Handles: ctrl.Kind().Handles(),
	}
	if d, ok := r.Active(); ok {
		resp.Drag = &DragResponse{Handle: d.Handle(), Start: d.Start(), Size: d.Current()}
	}
	return resp
}

// getMedia godoc
// @id getMedia
// @Summary media: состояние медиа ноды
// @Tags Media
// @Produce json
// @Param sessionId path string true "Id сессии"
// @Param pos path int true "Позиция ноды"
// @Success 200 {object} MediaResponse "медиа нода"
// @Failure 400 {object} apierrors.DefinedError "Нода не является изображением или видео"
// @Router /api/sessions/{sessionId}/media/{pos}/ [get]
func (s *Services) getMedia(c echo.Context) error {
	mc := c.(MediaContext)
	return c.JSON(http.StatusOK, mediaResponse(mc.Controller, mc.Session.Resizer))
}

type mediaAttrsRequest struct {
	Width  string  `json:"width" validate:"omitempty,cssLength"`
	Height string  `json:"height" validate:"omitempty,cssLength"`
	Align  string  `json:"align" validate:"omitempty,align"`
	Alt    *string `json:"alt"`
}

func (req mediaAttrsRequest) attrs(kind media.Kind) editor.Attrs {
	attrs := editor.Attrs{}
	if req.Width != "" {
		attrs["width"] = req.Width
	}
	if req.Height != "" {
		attrs["height"] = req.Height
	}
	if req.Align != "" {
		attrs["textAlign"] = req.Align
	}
	if req.Alt != nil && kind == media.Image {
		attrs["alt"] = *req.Alt
	}
	return attrs
}

// updateMedia godoc
// @id updateMedia
// @Summary media: изменение размеров и выравнивания
// @Description Задает размеры в единицах CSS и выравнивание без растягивания. Изменение записывается в историю.
// @Tags Media
// @Accept json
// @Produce json
// @Param sessionId path string true "Id сессии"
// @Param pos path int true "Позиция ноды"
// @Param data body mediaAttrsRequest true "Новые атрибуты"
// @Success 200 {object} MediaResponse "медиа нода"
// @Failure 400 {object} apierrors.DefinedError "Некорректный размер или выравнивание"
// @Router /api/sessions/{sessionId}/media/{pos}/ [patch]
func (s *Services) updateMedia(c echo.Context) error {
	mc := c.(MediaContext)
	var req mediaAttrsRequest
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrValidation.WithFormattedMessage("body"))
	}
	if err := c.Validate(req); err != nil {
		return EErrorDefined(c, validationError(err))
	}
	attrs := req.attrs(mc.Controller.Kind())
	if len(attrs) == 0 {
		return EErrorDefined(c, apierrors.ErrValidation.WithFormattedMessage("width, height, align or alt"))
	}

	pos := mc.Controller.Pos()
	if err := mc.Session.State.Update(func(tr *editor.Transaction) error {
		return tr.UpdateAttributes(pos, attrs)
	}); err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, mediaResponse(mc.Controller, mc.Session.Resizer))
}

type startResizeRequest struct {
	Handle string  `json:"handle" validate:"required,handle"`
	Width  float64 `json:"width" validate:"min=0"`
	Height float64 `json:"height" validate:"min=0"`
}

// startResize godoc
// @id startResize
// @Summary media: начало растягивания
// @Description Фиксирует пропорции по текущему размеру рамки. Без размера используется размер из атрибутов в пикселях.
// @Tags Media
// @Accept json
// @Produce json
// @Param sessionId path string true "Id сессии"
// @Param pos path int true "Позиция ноды"
// @Param data body startResizeRequest true "Маркер и размер рамки"
// @Success 200 {object} MediaResponse "медиа нода"
// @Failure 400 {object} apierrors.DefinedError "Маркер недоступен или размер неизвестен"
// @Failure 409 {object} apierrors.DefinedError "Уже выполняется растягивание"
// @Router /api/sessions/{sessionId}/media/{pos}/resize/start/ [post]
func (s *Services) startResize(c echo.Context) error {
	mc := c.(MediaContext)
	var req startResizeRequest
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrValidation.WithFormattedMessage("body"))
	}
	if err := c.Validate(req); err != nil {
		return EErrorDefined(c, validationError(err))
	}

	handle := media.ParseHandle(req.Handle)
	if _, err := mc.Controller.StartDrag(handle, media.Size{Width: req.Width, Height: req.Height}); err != nil {
		return EError(c, stack_error.TrackErrorStack(err).AddContext("pos", mc.Controller.Pos()).AddContext("handle", handle))
	}
	return c.JSON(http.StatusOK, mediaResponse(mc.Controller, mc.Session.Resizer))
}

type moveResizeRequest struct {
	Width  float64 `json:"width" validate:"min=0"`
	Height float64 `json:"height" validate:"min=0"`
}

// moveResize godoc
// @id moveResize
// @Summary media: кадр растягивания
// @Description Пересчитывает размер с сохранением пропорций. Документ не меняется до завершения.
// @Tags Media
// @Accept json
// @Produce json
// @Param sessionId path string true "Id сессии"
// @Param pos path int true "Позиция ноды"
// @Param data body moveResizeRequest true "Размер, предложенный указателем"
// @Success 200 {object} media.Size "размер рамки"
// @Failure 409 {object} apierrors.DefinedError "Растягивание не начато"
// @Router /api/sessions/{sessionId}/media/{pos}/resize/move/ [post]
func (s *Services) moveResize(c echo.Context) error {
	mc := c.(MediaContext)
	var req moveResizeRequest
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrValidation.WithFormattedMessage("body"))
	}
	if err := c.Validate(req); err != nil {
		return EErrorDefined(c, validationError(err))
	}

	size, err := mc.Controller.Resize(req.Width, req.Height)
	if err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, size)
}

// endResize godoc
// @id endResize
// @Summary media: завершение растягивания
// @Description Записывает итоговый размер в документ одной транзакцией.
// @Tags Media
// @Produce json
// @Param sessionId path string true "Id сессии"
// @Param pos path int true "Позиция ноды"
// @Success 200 {object} MediaResponse "медиа нода"
// @Failure 409 {object} apierrors.DefinedError "Растягивание не начато или нода изменилась"
// @Router /api/sessions/{sessionId}/media/{pos}/resize/end/ [post]
func (s *Services) endResize(c echo.Context) error {
	mc := c.(MediaContext)
	if _, err := mc.Controller.Release(); err != nil {
		return EError(c, stack_error.TrackErrorStack(err).AddContext("pos", mc.Controller.Pos()))
	}
	s.metrics.resizes.Inc()
	return c.JSON(http.StatusOK, mediaResponse(mc.Controller, mc.Session.Resizer))
}

// cancelResize godoc
// @id cancelResize
// @Summary media: отмена растягивания
// @Tags Media
// @Param sessionId path string true "Id сессии"
// @Param pos path int true "Позиция ноды"
// @Success 204
// @Failure 409 {object} apierrors.DefinedError "Растягивание не начато"
// @Router /api/sessions/{sessionId}/media/{pos}/resize/cancel/ [post]
func (s *Services) cancelResize(c echo.Context) error {
	mc := c.(MediaContext)
	if err := mc.Controller.Cancel(); err != nil {
		return EError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
