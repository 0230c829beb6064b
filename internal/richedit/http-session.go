package richedit

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/aisa-it/richedit/internal/richedit/apierrors"
	"github.com/aisa-it/richedit/internal/richedit/editor"
	"github.com/aisa-it/richedit/internal/richedit/paste"
	stack_error "github.com/aisa-it/richedit/internal/richedit/stack-error"
	"github.com/go-playground/validator"
	"github.com/gofrs/uuid"
	"github.com/labstack/echo/v4"
)

type SessionContext struct {
	echo.Context
	Session *Session
}

func (s *Services) SessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := uuid.FromString(c.Param("sessionId"))
		if err != nil {
			return EErrorDefined(c, apierrors.ErrInvalidID)
		}
		sess, err := s.sessions.Get(id)
		if err != nil {
			return EError(c, err)
		}
		c.Set(stack_error.SessionContextKey, id.String())
		return next(SessionContext{c, sess})
	}
}

func (s *Services) AddSessionServices(g *echo.Group) {
	g.POST("sessions/", s.createSession)

	sessionGroup := g.Group("sessions/:sessionId", s.SessionMiddleware)
	sessionGroup.GET("/", s.getSession)
	sessionGroup.DELETE("/", s.deleteSession)
	sessionGroup.POST("/selection/", s.setSelection)
	sessionGroup.POST("/paste/", s.pasteContent)
	sessionGroup.POST("/commands/", s.execCommands)
	sessionGroup.POST("/undo/", s.historyHandler("undo"))
	sessionGroup.POST("/redo/", s.historyHandler("redo"))
	sessionGroup.POST("/video/", s.embedVideo)
	sessionGroup.GET("/export/", s.exportDocument)

	s.AddMediaServices(sessionGroup)
	s.AddImageServices(sessionGroup)
}

// StateResponse - снимок состояния сессии для клиента.
type StateResponse struct {
	Id        uuid.UUID               `json:"id"`
	CreatedAt time.Time               `json:"created_at"`
	Version   uint64                  `json:"version"`
	Doc       *editor.Document        `json:"doc"`
	HTML      string                  `json:"html"`
	Selection editor.Selection        `json:"selection"`
	Active    editor.ActiveFormatting `json:"active"`
	Warnings  []string                `json:"warnings,omitempty"`
	Uploads   int                     `json:"pending_uploads"`
}

func stateResponse(sess *Session, warnings []editor.ParseWarning) StateResponse {
	st := sess.State
	resp := StateResponse{
		Id:        sess.Id,
		CreatedAt: sess.Created,
		Version:   st.Version(),
		Doc:       st.Doc(),
		HTML:      st.HTML(),
		Selection: st.Selection(),
		Active:    st.ActiveFormatting(),
		Uploads:   sess.pendingUploads(),
	}
	for _, w := range warnings {
		resp.Warnings = append(resp.Warnings, w.String())
	}
	return resp
}

// validationError собирает поля, не прошедшие проверку, в ErrValidation.
func validationError(err error) apierrors.DefinedError {
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return apierrors.ErrValidation.WithFormattedMessage(err.Error())
	}
	fields := make([]string, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, fmt.Sprintf("%s:%s", fe.Field(), fe.Tag()))
	}
	return apierrors.ErrValidation.WithFormattedMessage(strings.Join(fields, ", "))
}

type createSessionRequest struct {
	Content string          `json:"content"`
	Doc     json.RawMessage `json:"doc"`
}

// createSession godoc
// @id createSession
// @Summary session: открытие сессии редактора
// @Description Создает сессию с документом из HTML или TipTap JSON. Без содержимого открывается приветственный документ.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param data body createSessionRequest false "Начальное содержимое"
// @Success 201 {object} StateResponse "состояние сессии"
// @Failure 400 {object} apierrors.DefinedError "Некорректное содержимое"
// @Failure 429 {object} apierrors.DefinedError "Превышено количество сессий"
// @Router /api/sessions/ [post]
func (s *Services) createSession(c echo.Context) error {
	var req createSessionRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return EErrorDefined(c, apierrors.ErrInvalidContent)
		}
	}

	content := req.Content
	if len(req.Doc) > 0 && string(req.Doc) != "null" {
		var doc editor.Document
		if err := json.Unmarshal(req.Doc, &doc); err != nil {
			return EErrorDefined(c, apierrors.ErrInvalidContent)
		}
		content = editor.RenderHTML(&doc)
	}

	sess, warnings, err := s.sessions.Create(content)
	if err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusCreated, stateResponse(sess, warnings))
}

// getSession godoc
// @id getSession
// @Summary session: состояние сессии
// @Tags Sessions
// @Produce json
// @Param sessionId path string true "Id сессии"
// @Success 200 {object} StateResponse "состояние сессии"
// @Failure 404 {object} apierrors.DefinedError "Сессия не найдена"
// @Router /api/sessions/{sessionId}/ [get]
func (s *Services) getSession(c echo.Context) error {
	return c.JSON(http.StatusOK, stateResponse(c.(SessionContext).Session, nil))
}

// deleteSession godoc
// @id deleteSession
// @Summary session: закрытие сессии
// @Tags Sessions
// @Param sessionId path string true "Id сессии"
// @Success 204
// @Failure 404 {object} apierrors.DefinedError "Сессия не найдена"
// @Router /api/sessions/{sessionId}/ [delete]
func (s *Services) deleteSession(c echo.Context) error {
	s.sessions.Delete(c.(SessionContext).Session.Id)
	return c.NoContent(http.StatusNoContent)
}

type selectionRequest struct {
	Anchor int `json:"anchor" validate:"min=0"`
	Head   int `json:"head" validate:"min=0"`
}

// setSelection godoc
// @id setSelection
// @Summary session: установка выделения
// @Description Позиции считаются между блоками верхнего уровня документа.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param sessionId path string true "Id сессии"
// @Param data body selectionRequest true "Выделение"
// @Success 200 {object} StateResponse "состояние сессии"
// @Failure 400 {object} apierrors.DefinedError "Выделение вне документа"
// @Router /api/sessions/{sessionId}/selection/ [post]
func (s *Services) setSelection(c echo.Context) error {
	sess := c.(SessionContext).Session
	var req selectionRequest
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrValidation.WithFormattedMessage("body"))
	}
	if err := c.Validate(req); err != nil {
		return EErrorDefined(c, validationError(err))
	}

	if err := sess.State.SetSelection(editor.Selection{Anchor: req.Anchor, Head: req.Head}); err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, stateResponse(sess, nil))
}

type pasteRequest struct {
	HTML string `json:"html"`
	Text string `json:"text"`
}

// PasteResponse - результат обработки вставки.
type PasteResponse struct {
	Phase    string        `json:"phase"`
	Cleaned  string        `json:"cleaned,omitempty"`
	Removed  int           `json:"removed"`
	Warnings []string      `json:"warnings,omitempty"`
	Fallback bool          `json:"fallback"`
	State    StateResponse `json:"state"`
}

// pasteContent godoc
// @id pasteContent
// @Summary session: вставка из буфера обмена
// @Description HTML очищается по политике вставки и заменяет выделение. Если перехват не нужен, выполняется обычная вставка.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param sessionId path string true "Id сессии"
// @Param data body pasteRequest true "Содержимое буфера обмена"
// @Success 200 {object} PasteResponse "результат вставки"
// @Failure 400 {object} apierrors.DefinedError "Пустой буфер обмена"
// @Router /api/sessions/{sessionId}/paste/ [post]
func (s *Services) pasteContent(c echo.Context) error {
	sess := c.(SessionContext).Session
	var req pasteRequest
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrValidation.WithFormattedMessage("body"))
	}
	if req.HTML == "" && req.Text == "" {
		return EErrorDefined(c, apierrors.ErrValidation.WithFormattedMessage("html or text"))
	}

	clip := paste.Payload{}
	if req.HTML != "" {
		clip[paste.MIMEHTML] = req.HTML
	}
	if req.Text != "" {
		clip[paste.MIMEText] = req.Text
	}

	out := s.paste.HandlePaste(sess.State, clip)
	s.metrics.pastes.WithLabelValues(out.Phase.String()).Inc()

	resp := PasteResponse{
		Phase:   out.Phase.String(),
		Cleaned: out.Cleaned,
		Removed: out.Report.Total(),
	}
	for _, w := range out.Warnings {
		resp.Warnings = append(resp.Warnings, w.String())
	}

	if !out.Handled() {
		if out.Err != nil {
			stack_error.GetError(c, stack_error.TrackErrorStack(out.Err).AddContext("phase", out.Phase.String()))
		}
		if err := defaultPaste(sess.State, clip); err != nil {
			return EError(c, err)
		}
		resp.Fallback = true
	}
	resp.State = stateResponse(sess, nil)
	return c.JSON(http.StatusOK, resp)
}

// defaultPaste - вставка без перехвата: HTML разбирается по схеме как есть, текст
// разбивается на абзацы по строкам.
func defaultPaste(state *editor.State, clip paste.Payload) error {
	raw, ok := clip.Data(paste.MIMEHTML)
	if !ok || raw == "" {
		text, _ := clip.Data(paste.MIMEText)
		var b strings.Builder
		for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
			b.WriteString("<p>" + html.EscapeString(line) + "</p>")
		}
		raw = b.String()
	}
	return state.Exec("insertContent", editor.Args{"html": raw})
}

type commandCall struct {
	Name string      `json:"name" validate:"required,command"`
	Args editor.Args `json:"args"`
}

type commandsRequest struct {
	Commands []commandCall `json:"commands" validate:"required,min=1,dive"`
	DryRun   bool          `json:"dry_run"`
	Version  *uint64       `json:"version"`
}

// CommandsResponse - результат цепочки команд. Для проверки возвращается только Can.
type CommandsResponse struct {
	Can   bool           `json:"can"`
	State *StateResponse `json:"state,omitempty"`
}

// execCommands godoc
// @id execCommands
// @Summary session: выполнение команд редактора
// @Description Команды выполняются цепочкой в одной транзакции. dry_run только проверяет применимость, version включает проверку версии документа.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param sessionId path string true "Id сессии"
// @Param data body commandsRequest true "Цепочка команд"
// @Success 200 {object} CommandsResponse "результат"
// @Failure 400 {object} apierrors.DefinedError "Некорректная команда или аргумент"
// @Failure 409 {object} apierrors.DefinedError "Команда неприменима или документ изменился"
// @Router /api/sessions/{sessionId}/commands/ [post]
func (s *Services) execCommands(c echo.Context) error {
	sess := c.(SessionContext).Session
	var req commandsRequest
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrValidation.WithFormattedMessage("body"))
	}
	if err := c.Validate(req); err != nil {
		return EErrorDefined(c, validationError(err))
	}
	if req.Version != nil && *req.Version != sess.State.Version() {
		return EErrorDefined(c, apierrors.ErrStaleState)
	}

	chain := sess.State.Chain()
	for _, call := range req.Commands {
		chain.Command(call.Name, call.Args)
	}

	if req.DryRun {
		return c.JSON(http.StatusOK, CommandsResponse{Can: chain.Can()})
	}
	if err := chain.Run(); err != nil {
		return EError(c, stack_error.TrackErrorStack(err).AddContext("commands", commandNames(req.Commands)))
	}
	state := stateResponse(sess, nil)
	return c.JSON(http.StatusOK, CommandsResponse{Can: true, State: &state})
}

func commandNames(calls []commandCall) string {
	names := make([]string, len(calls))
	for i, call := range calls {
		names[i] = call.Name
	}
	return strings.Join(names, ",")
}

// historyHandler godoc
// @id history
// @Summary session: отмена и повтор
// @Tags Sessions
// @Produce json
// @Param sessionId path string true "Id сессии"
// @Success 200 {object} StateResponse "состояние сессии"
// @Failure 409 {object} apierrors.DefinedError "Нет действий для отмены или повтора"
// @Router /api/sessions/{sessionId}/undo/ [post]
// @Router /api/sessions/{sessionId}/redo/ [post]
func (s *Services) historyHandler(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess := c.(SessionContext).Session
		if err := sess.State.Exec(name, nil); err != nil {
			if errors.Is(err, editor.ErrNotApplicable) {
				return EErrorDefined(c, apierrors.ErrNothingToUndo.WithFormattedMessage(name))
			}
			return EError(c, err)
		}
		return c.JSON(http.StatusOK, stateResponse(sess, nil))
	}
}

type videoRequest struct {
	URL string `json:"url" validate:"required"`
}

// embedVideo godoc
// @id embedVideo
// @Summary session: встраивание видео
// @Description Ссылка на видео приводится к адресу для встраивания и вставляется на место выделения.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param sessionId path string true "Id сессии"
// @Param data body videoRequest true "Ссылка на видео"
// @Success 200 {object} StateResponse "состояние сессии"
// @Failure 400 {object} apierrors.DefinedError "Ссылка не распознана"
// @Router /api/sessions/{sessionId}/video/ [post]
func (s *Services) embedVideo(c echo.Context) error {
	sess := c.(SessionContext).Session
	var req videoRequest
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrValidation.WithFormattedMessage("body"))
	}
	if err := c.Validate(req); err != nil {
		return EErrorDefined(c, validationError(err))
	}

	src, ok := normalizeVideo(req.URL)
	if !ok {
		return EErrorDefined(c, apierrors.ErrVideoURLInvalid)
	}
	if err := sess.State.Exec("setYoutubeVideo", editor.Args{"src": src}); err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, stateResponse(sess, nil))
}
