// Пакет media управляет рамками изображений и видео: размеры по умолчанию, растягивание
// за маркеры с сохранением пропорций и запись итогового размера в документ.
package media

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aisa-it/richedit/internal/richedit/editor"
)

var (
	ErrNotMedia       = errors.New("node is not an image or video")
	ErrHandleDisabled = errors.New("resize handle is disabled")
	ErrDragActive     = errors.New("another resize is in progress")
	ErrNoDrag         = errors.New("no resize in progress")
	ErrUnknownSize    = errors.New("rendered size is unknown")
	ErrNodeChanged    = errors.New("media node changed during resize")
)

// MinSize - минимальная сторона рамки в пикселях.
const MinSize = 1.0

// Resizer следит за растягиванием медиа нод одного состояния. Одновременно активна
// только одна операция, следующая начинается после отпускания.
type Resizer struct {
	mu    sync.Mutex
	state *editor.State
	drag  *Drag
}

func NewResizer(state *editor.State) *Resizer {
	return &Resizer{state: state}
}

// Controller возвращает контроллер медиа ноды на позиции pos.
func (r *Resizer) Controller(pos int) (*Controller, error) {
	node, ok := r.state.Node(pos)
	if !ok {
		return nil, editor.ErrInvalidPosition
	}
	kind, ok := KindOf(node)
	if !ok {
		return nil, fmt.Errorf("%w: %T at %d", ErrNotMedia, node, pos)
	}
	return &Controller{r: r, pos: pos, kind: kind}, nil
}

// Active возвращает текущую операцию растягивания.
func (r *Resizer) Active() (*Drag, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drag, r.drag != nil
}

// Controller - представление одной медиа ноды.
type Controller struct {
	r    *Resizer
	pos  int
	kind Kind
}

func (c *Controller) Kind() Kind { return c.kind }
func (c *Controller) Pos() int   { return c.pos }

func (c *Controller) attrs() (width, height string, align editor.TextAlign, err error) {
	node, ok := c.r.state.Node(c.pos)
	if !ok {
		return "", "", 0, editor.ErrInvalidPosition
	}
	switch n := node.(type) {
	case *editor.Image:
		if c.kind == Image {
			return n.Width, n.Height, n.Align, nil
		}
	case *editor.Video:
		if c.kind == Video {
			return n.Width, n.Height, n.Align, nil
		}
	}
	return "", "", 0, ErrNodeChanged
}

// Width возвращает ширину рамки. Во время растягивания - ширину текущего кадра.
func (c *Controller) Width() string {
	if d := c.activeDrag(); d != nil {
		return FormatPixels(d.Current().Width)
	}
	w, _, _, err := c.attrs()
	if err != nil || w == "" {
		return c.kind.DefaultWidth()
	}
	return w
}

// Height возвращает высоту рамки. Во время растягивания - высоту текущего кадра.
func (c *Controller) Height() string {
	if d := c.activeDrag(); d != nil {
		return FormatPixels(d.Current().Height)
	}
	_, h, _, err := c.attrs()
	if err != nil || h == "" {
		return c.kind.DefaultHeight()
	}
	return h
}

// Justify возвращает justify-content обертки по выравниванию ноды.
func (c *Controller) Justify() string {
	_, _, align, _ := c.attrs()
	return Justify(align)
}

func (c *Controller) activeDrag() *Drag {
	d, ok := c.r.Active()
	if !ok || d.c.pos != c.pos {
		return nil
	}
	return d
}

// StartDrag начинает растягивание за маркер. rendered - фактический размер рамки на экране;
// если он не задан, берется из атрибутов ноды в пикселях. Пропорции фиксируются здесь.
func (c *Controller) StartDrag(h Handle, rendered Size) (*Drag, error) {
	if !c.kind.Allows(h) {
		return nil, fmt.Errorf("%w: %s", ErrHandleDisabled, h)
	}

	node, ok := c.r.state.Node(c.pos)
	if !ok {
		return nil, editor.ErrInvalidPosition
	}
	width, height, _, err := c.attrs()
	if err != nil {
		return nil, err
	}
	start := rendered
	if !start.valid() {
		w, okW := Pixels(width)
		h, okH := Pixels(height)
		if !okW || !okH || w <= 0 || h <= 0 {
			return nil, fmt.Errorf("%w: %s x %s", ErrUnknownSize, width, height)
		}
		start = Size{Width: w, Height: h}
	}

	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	if c.r.drag != nil {
		return nil, ErrDragActive
	}

	d := &Drag{
		c:       c,
		node:    withoutSize(node),
		handle:  h,
		ratio:   start.Width / start.Height,
		start:   start,
		current: start,
	}
	c.r.drag = d
	return d, nil
}

// Resize передает кадр активного растягивания этой ноды.
func (c *Controller) Resize(newWidth, newHeight float64) (Size, error) {
	d := c.activeDrag()
	if d == nil {
		return Size{}, ErrNoDrag
	}
	return d.Move(newWidth, newHeight)
}

// Release завершает активное растягивание этой ноды и записывает размер.
func (c *Controller) Release() (Size, error) {
	d := c.activeDrag()
	if d == nil {
		return Size{}, ErrNoDrag
	}
	return d.Release()
}

// Cancel прерывает активное растягивание этой ноды без записи.
func (c *Controller) Cancel() error {
	d := c.activeDrag()
	if d == nil {
		return ErrNoDrag
	}
	d.Cancel()
	return nil
}

// Drag - одна операция растягивания от нажатия до отпускания.
type Drag struct {
	c      *Controller
	node   any
	handle Handle
	ratio  float64
	start  Size

	mu      sync.Mutex
	current Size
	ended   bool
}

func (d *Drag) Handle() Handle { return d.handle }
func (d *Drag) Start() Size    { return d.start }

func (d *Drag) Current() Size {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// Move пересчитывает кадр с сохранением пропорций. Нижний маркер ведет высота,
// остальные - ширина. В документ кадр не записывается.
func (d *Drag) Move(newWidth, newHeight float64) (Size, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ended {
		return Size{}, ErrNoDrag
	}

	var next Size
	if d.handle == HandleBottom {
		next.Height = max(newHeight, MinSize)
		next.Width = next.Height * d.ratio
	} else {
		next.Width = max(newWidth, MinSize)
		next.Height = next.Width / d.ratio
	}
	d.current = next
	return next, nil
}

// Release записывает итоговый размер в документ одной транзакцией и освобождает Resizer.
// Повторный вызов возвращает ErrNoDrag.
func (d *Drag) Release() (Size, error) {
	final, err := d.finish()
	if err != nil {
		return Size{}, err
	}

	c := d.c
	err = c.r.state.Update(func(tr *editor.Transaction) error {
		// Нода на позиции должна остаться той же, что при нажатии: вставка выше сдвигает позиции
		if pos := c.pos; pos >= len(tr.Doc().Elements) || withoutSize(tr.Doc().Elements[pos]) != d.node {
			return ErrNodeChanged
		}
		return tr.UpdateAttributes(c.pos, editor.Attrs{
			"width":  FormatPixels(final.Width),
			"height": FormatPixels(final.Height),
		})
	})
	if err != nil {
		return Size{}, err
	}

	slog.Debug("Media resized", "kind", c.kind, "pos", c.pos, "width", final.Width, "height", final.Height)
	return final, nil
}

// Cancel завершает растягивание без записи.
func (d *Drag) Cancel() {
	d.finish()
}

// withoutSize возвращает значение медиа ноды без размеров для сравнения.
func withoutSize(node any) any {
	switch n := node.(type) {
	case *editor.Image:
		v := *n
		v.Width, v.Height = "", ""
		return v
	case *editor.Video:
		v := *n
		v.Width, v.Height = "", ""
		return v
	}
	return nil
}

func (d *Drag) finish() (Size, error) {
	d.mu.Lock()
	if d.ended {
		d.mu.Unlock()
		return Size{}, ErrNoDrag
	}
	d.ended = true
	final := d.current
	d.mu.Unlock()

	r := d.c.r
	r.mu.Lock()
	if r.drag == d {
		r.drag = nil
	}
	r.mu.Unlock()
	return final, nil
}
