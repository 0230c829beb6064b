package media

import (
	"math"
	"strconv"
	"strings"

	"github.com/aisa-it/richedit/internal/richedit/editor/edtypes"
)

// Kind - вид медиа ноды.
type Kind int

const (
	Image Kind = iota
	Video
)

// KindOf определяет вид медиа ноды документа.
func KindOf(node any) (Kind, bool) {
	switch node.(type) {
	case *edtypes.Image:
		return Image, true
	case *edtypes.Video:
		return Video, true
	}
	return 0, false
}

func (k Kind) String() string {
	if k == Video {
		return "video"
	}
	return "image"
}

// NodeName - имя ноды в схеме редактора.
func (k Kind) NodeName() string {
	if k == Video {
		return "youtube"
	}
	return "image"
}

func (k Kind) DefaultWidth() string {
	if k == Video {
		return edtypes.DefaultVideoWidth
	}
	return edtypes.DefaultImageWidth
}

func (k Kind) DefaultHeight() string {
	if k == Video {
		return edtypes.DefaultVideoHeight
	}
	return edtypes.DefaultImageHeight
}

// Handles - маркеры, за которые можно тянуть рамку.
func (k Kind) Handles() []Handle {
	return []Handle{HandleRight, HandleBottom, HandleBottomLeft, HandleBottomRight}
}

func (k Kind) Allows(h Handle) bool {
	for _, allowed := range k.Handles() {
		if h == allowed {
			return true
		}
	}
	return false
}

// Handle - край или угол рамки.
type Handle string

const (
	HandleTop         Handle = "top"
	HandleRight       Handle = "right"
	HandleBottom      Handle = "bottom"
	HandleLeft        Handle = "left"
	HandleTopLeft     Handle = "topLeft"
	HandleTopRight    Handle = "topRight"
	HandleBottomLeft  Handle = "bottomLeft"
	HandleBottomRight Handle = "bottomRight"
)

// ParseHandle принимает имена маркеров в camelCase и через дефис.
func ParseHandle(raw string) Handle {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), "-", "")) {
	case "top":
		return HandleTop
	case "right":
		return HandleRight
	case "bottom":
		return HandleBottom
	case "left":
		return HandleLeft
	case "topleft":
		return HandleTopLeft
	case "topright":
		return HandleTopRight
	case "bottomleft":
		return HandleBottomLeft
	case "bottomright":
		return HandleBottomRight
	}
	return Handle(raw)
}

// Justify переводит выравнивание ноды в justify-content обертки.
func Justify(align edtypes.TextAlign) string {
	switch align {
	case edtypes.CenterAlign:
		return "center"
	case edtypes.RightAlign:
		return "flex-end"
	default:
		return "flex-start"
	}
}

// Size - размер рамки в пикселях.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (s Size) valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Pixels читает длину в пикселях. Проценты, auto и другие единицы не переводятся.
func Pixels(length string) (float64, bool) {
	raw, ok := strings.CutSuffix(strings.TrimSpace(length), "px")
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// FormatPixels записывает длину в пикселях с точностью до сотых.
func FormatPixels(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64) + "px"
}
