// Пакет paste перехватывает вставку HTML из буфера обмена: очищает разметку политикой вставки
// и, если очистка что-то изменила, заменяет выделение разобранным по схеме фрагментом.
// В остальных случаях вставка отдается обработчику по умолчанию.
package paste

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aisa-it/richedit/internal/richedit/editor"
	"github.com/aisa-it/richedit/internal/richedit/sanitizer"
)

// MIMEHTML - формат буфера обмена с разметкой.
const MIMEHTML = "text/html"

// MIMEText - текст без разметки. Перехватчик его не обрабатывает.
const MIMEText = "text/plain"

var ErrNoState = errors.New("paste target state is nil")

// Phase - стадия обработки вставки.
type Phase int

const (
	Idle Phase = iota
	Intercepted
	Replaced
	PassThrough
)

func (p Phase) String() string {
	switch p {
	case Intercepted:
		return "intercepted"
	case Replaced:
		return "replaced"
	case PassThrough:
		return "pass_through"
	default:
		return "idle"
	}
}

// Clipboard - доступ на чтение к данным события вставки.
type Clipboard interface {
	Data(mime string) (string, bool)
}

// Payload - данные буфера обмена по MIME типам.
type Payload map[string]string

func (p Payload) Data(mime string) (string, bool) {
	v, ok := p[mime]
	return v, ok
}

// HTML создает данные вставки с одной HTML разметкой.
func HTML(raw string) Payload {
	return Payload{MIMEHTML: raw}
}

// Options настраивает Interceptor.
type Options struct {
	// Политика очистки. По умолчанию sanitizer.PastePolicy.
	Policy *sanitizer.AllowList

	// Разбирать и вставлять фрагмент даже если очистка ничего не изменила.
	AlwaysReparse bool
}

// Outcome - результат обработки одного события вставки.
type Outcome struct {
	Phase    Phase
	Cleaned  string
	Report   sanitizer.Report
	Warnings []editor.ParseWarning

	// Причина отказа от обработки. Наружу как ошибка не возвращается.
	Err error
}

// Handled сообщает, что вставка обработана и действие по умолчанию нужно отменить.
func (o Outcome) Handled() bool {
	return o.Phase == Replaced
}

type Interceptor struct {
	policy        *sanitizer.AllowList
	alwaysReparse bool
}

func New(opts Options) *Interceptor {
	policy := opts.Policy
	if policy == nil {
		policy = sanitizer.PastePolicy()
	}
	return &Interceptor{policy: policy, alwaysReparse: opts.AlwaysReparse}
}

// Policy возвращает политику очистки перехватчика.
func (i *Interceptor) Policy() *sanitizer.AllowList {
	return i.policy
}

// HandlePaste обрабатывает событие вставки над состоянием. Любая ошибка, включая панику
// при разборе, приводит к PassThrough без изменения документа.
func (i *Interceptor) HandlePaste(state *editor.State, clip Clipboard) (out Outcome) {
	out.Phase = Idle
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Paste handling panic, falling back to default paste", "panic", r)
			out.Phase = PassThrough
			out.Err = fmt.Errorf("paste panic: %v", r)
		}
	}()

	if clip == nil {
		out.Phase = PassThrough
		return out
	}
	raw, ok := clip.Data(MIMEHTML)
	if !ok || raw == "" {
		out.Phase = PassThrough
		return out
	}
	out.Phase = Intercepted

	if state == nil {
		out.Phase = PassThrough
		out.Err = ErrNoState
		return out
	}

	out.Cleaned, out.Report = sanitizer.SanitizeWithReport(promoteLazyImages(raw), i.policy)
	if out.Cleaned == raw && !i.alwaysReparse {
		out.Phase = PassThrough
		return out
	}

	res, err := editor.ParseHTML(strings.NewReader(out.Cleaned), state.Schema())
	if err != nil {
		slog.Warn("Parse cleaned paste", "err", err)
		out.Phase = PassThrough
		out.Err = err
		return out
	}
	out.Warnings = res.Warnings

	if err := state.Update(func(tr *editor.Transaction) error {
		return tr.ReplaceSelection(res.Fragment)
	}); err != nil {
		slog.Warn("Replace selection with pasted content", "err", err)
		out.Phase = PassThrough
		out.Err = err
		return out
	}

	out.Phase = Replaced
	slog.Debug("Paste replaced selection",
		"removed", out.Report.Total(),
		"nodes", len(res.Fragment.Content),
		"warnings", len(out.Warnings),
	)
	return out
}

// Атрибуты, в которых страницы с ленивой загрузкой держат настоящий адрес картинки
var lazyAttributes = []string{
	"data-src",
	"data-lazy-src",
	"data-original",
	"data-actualsrc",
	"data-hi-res-src",
	"data-lazy",
	"data-echo",
}

// promoteLazyImages переносит адрес из атрибутов ленивой загрузки в src, иначе после
// очистки от картинки останется только заглушка. Разметка без таких картинок не меняется.
func promoteLazyImages(raw string) string {
	if !strings.Contains(raw, "data-") {
		return raw
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return raw
	}

	changed := false
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range lazyAttributes {
			lazySrc, exists := s.Attr(attr)
			lazySrc = strings.TrimSpace(lazySrc)
			if !exists || lazySrc == "" {
				continue
			}
			if strings.HasPrefix(lazySrc, "http") || strings.HasPrefix(lazySrc, "/") {
				s.SetAttr("src", lazySrc)
				s.RemoveAttr(attr)
				changed = true
				break
			}
		}
	})
	if !changed {
		return raw
	}

	result, err := doc.Find("body").Html()
	if err != nil {
		return raw
	}
	return result
}
