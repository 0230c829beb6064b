package edtypes

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"image/color"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

type TextAlign int

const (
	LeftAlign TextAlign = iota
	CenterAlign
	RightAlign
	JustifyAlign
)

func (a TextAlign) String() string {
	switch a {
	case CenterAlign:
		return "center"
	case RightAlign:
		return "right"
	case JustifyAlign:
		return "justify"
	default:
		return "left"
	}
}

// ParseTextAlign конвертирует строковое значение выравнивания в TextAlign, неизвестные значения дают LeftAlign.
func ParseTextAlign(raw string) TextAlign {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "center":
		return CenterAlign
	case "right":
		return RightAlign
	case "justify":
		return JustifyAlign
	default:
		return LeftAlign
	}
}

var (
	colorReg  = regexp.MustCompile(`[rgba()#\s"]`)
	lengthReg = regexp.MustCompile(`^(auto|0|\d+(\.\d+)?(px|%|em|rem|vw|vh|pt))$`)
)

// Размеры медиа нод по умолчанию
const (
	DefaultImageWidth  = "300px"
	DefaultImageHeight = "auto"
	DefaultVideoWidth  = "100%"
	DefaultVideoHeight = "auto"
)

// IsCSSLength проверяет, что значение - допустимая CSS длина для width/height медиа нод.
func IsCSSLength(raw string) bool {
	return lengthReg.MatchString(raw)
}

// TipTapParser - функция для парсинга TipTap JSON, устанавливается из tiptap пакета
var TipTapParser func(io.Reader) (*Document, error)

// TipTapSerializer - функция для сериализации Document в TipTap JSON, устанавливается из tiptap пакета
var TipTapSerializer func(*Document) ([]byte, error)

// Node реализуют все блочные и строчные элементы документа.
// Имя совпадает с именем типа ноды в схеме редактора.
type Node interface {
	NodeName() string
}

// Document - дерево документа: упорядоченный список блочных нод (указатели на типы пакета).
type Document struct {
	Elements []any
}

// UnmarshalJSON реализует кастомную десериализацию TipTap JSON в Document.
// Автоматически вызывает зарегистрированный TipTapParser.
func (d *Document) UnmarshalJSON(data []byte) error {
	if TipTapParser == nil {
		return errors.New("TipTapParser not registered, import tiptap package to enable TipTap JSON parsing")
	}

	doc, err := TipTapParser(bytes.NewReader(data))
	if err != nil {
		return err
	}

	d.Elements = doc.Elements
	return nil
}

// MarshalJSON реализует кастомную сериализацию Document в TipTap JSON.
// Автоматически вызывает зарегистрированный TipTapSerializer.
func (d *Document) MarshalJSON() ([]byte, error) {
	if TipTapSerializer == nil {
		return nil, errors.New("TipTapSerializer not registered, import tiptap package to enable TipTap JSON serialization")
	}

	return TipTapSerializer(d)
}

// Clone возвращает глубокую копию документа. Используется историей и транзакциями.
func (d *Document) Clone() *Document {
	if d == nil {
		return &Document{Elements: make([]any, 0)}
	}
	return &Document{Elements: CloneBlocks(d.Elements)}
}

type Paragraph struct {
	Content []any
	Align   TextAlign // для атрибута textAlign
}

func (*Paragraph) NodeName() string { return "paragraph" }

type Heading struct {
	Level   int
	Content []any
	Align   TextAlign
}

func (*Heading) NodeName() string { return "heading" }

type Text struct {
	Content    string
	Size       int // px, 0 = не задан
	FontFamily string

	Strong        bool
	Italic        bool
	Underlined    bool
	Strikethrough bool
	Code          bool
	Sup           bool
	Sub           bool

	Color   *Color
	BgColor *Color

	URL    *url.URL
	Target string
}

func (Text) NodeName() string { return "text" }

// SameMarks сравнивает форматирование двух текстовых фрагментов без учета содержимого.
func (t Text) SameMarks(o Text) bool {
	t.Content, o.Content = "", ""
	if !sameColor(t.Color, o.Color) || !sameColor(t.BgColor, o.BgColor) {
		return false
	}
	if (t.URL == nil) != (o.URL == nil) || (t.URL != nil && t.URL.String() != o.URL.String()) {
		return false
	}
	t.Color, t.BgColor, t.URL = nil, nil, nil
	o.Color, o.BgColor, o.URL = nil, nil, nil
	return t == o
}

func sameColor(a, b *Color) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

type HardBreak struct {
	// Пустая структура для представления переноса строки <br>
}

func (*HardBreak) NodeName() string { return "hardBreak" }

type ListElement struct {
	Content []any // *Paragraph и вложенные *List
}

type List struct {
	Elements []ListElement
	Numbered bool
	Start    int
}

func (l *List) NodeName() string {
	if l.Numbered {
		return "orderedList"
	}
	return "bulletList"
}

type Quote struct {
	Content []any
}

func (*Quote) NodeName() string { return "blockquote" }

type Code struct {
	Content  string
	Language string
}

func (*Code) NodeName() string { return "codeBlock" }

type HorizontalRule struct{}

func (*HorizontalRule) NodeName() string { return "horizontalRule" }

// Image - блочная нода изображения. Width и Height - CSS длины ("300px", "100%", "auto").
type Image struct {
	Src    string
	Alt    string
	Title  string
	Width  string
	Height string
	Align  TextAlign
}

func (*Image) NodeName() string { return "image" }

// Video - встроенное видео (iframe), Src - канонический embed URL.
type Video struct {
	Src    string
	Width  string
	Height string
	Align  TextAlign
}

func (*Video) NodeName() string { return "youtube" }

type Table struct {
	Rows [][]TableCell
}

func (*Table) NodeName() string { return "table" }

// Cols возвращает количество колонок по самой длинной строке с учетом colspan.
func (t *Table) Cols() int {
	cols := 0
	for _, row := range t.Rows {
		n := 0
		for _, c := range row {
			n += max(c.ColSpan, 1)
		}
		cols = max(cols, n)
	}
	return cols
}

type TableCell struct {
	Content  []any
	ColSpan  int
	RowSpan  int
	ColWidth []int
	Header   bool

	// CSS цвет фона ячейки, пустая строка - не задан
	BackgroundColor string
}

func (c *TableCell) NodeName() string {
	if c.Header {
		return "tableHeader"
	}
	return "tableCell"
}

// CloneBlocks копирует список блоков вместе со всем содержимым.
func CloneBlocks(src []any) []any {
	if src == nil {
		return nil
	}
	out := make([]any, 0, len(src))
	for _, e := range src {
		out = append(out, CloneNode(e))
	}
	return out
}

// CloneNode копирует одну ноду документа.
func CloneNode(n any) any {
	switch e := n.(type) {
	case *Paragraph:
		c := *e
		c.Content = cloneInline(e.Content)
		return &c
	case *Heading:
		c := *e
		c.Content = cloneInline(e.Content)
		return &c
	case *List:
		c := *e
		c.Elements = make([]ListElement, len(e.Elements))
		for i, el := range e.Elements {
			c.Elements[i] = ListElement{Content: CloneBlocks(el.Content)}
		}
		return &c
	case *Quote:
		return &Quote{Content: CloneBlocks(e.Content)}
	case *Code:
		c := *e
		return &c
	case *HorizontalRule:
		return &HorizontalRule{}
	case *Image:
		c := *e
		return &c
	case *Video:
		c := *e
		return &c
	case *Table:
		c := &Table{Rows: make([][]TableCell, len(e.Rows))}
		for i, row := range e.Rows {
			c.Rows[i] = make([]TableCell, len(row))
			for j, cell := range row {
				cc := cell
				cc.Content = CloneBlocks(cell.Content)
				cc.ColWidth = append([]int(nil), cell.ColWidth...)
				c.Rows[i][j] = cc
			}
		}
		return c
	case Text:
		return cloneText(e)
	case *HardBreak:
		return &HardBreak{}
	default:
		return n
	}
}

func cloneInline(src []any) []any {
	if src == nil {
		return nil
	}
	out := make([]any, 0, len(src))
	for _, e := range src {
		out = append(out, CloneNode(e))
	}
	return out
}

func cloneText(t Text) Text {
	if t.Color != nil {
		c := *t.Color
		t.Color = &c
	}
	if t.BgColor != nil {
		c := *t.BgColor
		t.BgColor = &c
	}
	if t.URL != nil {
		u := *t.URL
		t.URL = &u
	}
	return t
}

type Color color.RGBA

// ParseColor разбирает цвет в форматах #rgb, #rrggbb, #rrggbbaa, rgb() и rgba().
// Если альфа-канал не указан, цвет непрозрачный.
func ParseColor(raw string) (Color, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Color{}, errors.New("empty color")
	}
	raw = strings.Trim(raw, `"`)
	isDecRGB := strings.HasPrefix(raw, "rgb")
	isHex := strings.HasPrefix(raw, "#")
	if isDecRGB {
		raw = colorReg.ReplaceAllString(raw, "")
		c := Color{A: 255}
		parts := strings.Split(raw, ",")
		if len(parts) < 3 {
			return Color{}, errors.New("unsupported color format")
		}
		for i, n := range parts {
			if i == 3 {
				f, err := strconv.ParseFloat(n, 64)
				if err != nil || f < 0 || f > 1 {
					return Color{}, errors.New("unsupported alpha value")
				}
				c.A = uint8(f * 255)
				continue
			}
			nn, err := strconv.ParseUint(n, 10, 8)
			if err != nil {
				return Color{}, err
			}

			switch i {
			case 0:
				c.R = uint8(nn)
			case 1:
				c.G = uint8(nn)
			case 2:
				c.B = uint8(nn)
			}
		}
		return c, nil
	} else if isHex {
		raw = strings.TrimPrefix(raw, "#")
		if len(raw) == 3 {
			raw = string([]byte{raw[0], raw[0], raw[1], raw[1], raw[2], raw[2]})
		}
		b, err := hex.DecodeString(raw)
		if err != nil {
			return Color{}, err
		}
		if len(b) < 3 {
			return Color{}, errors.New("unsupported color format")
		}
		c := Color{
			R: b[0],
			G: b[1],
			B: b[2],
			A: 255,
		}
		if len(b) > 3 {
			c.A = b[3]
		}
		return c, nil
	}
	return Color{}, errors.New("unsupported color format")
}

// Hex возвращает цвет в формате #rrggbb, для полупрозрачных цветов #rrggbbaa.
func (c Color) Hex() string {
	if c.A == 255 {
		return "#" + hex.EncodeToString([]byte{c.R, c.G, c.B})
	}
	return "#" + hex.EncodeToString([]byte{c.R, c.G, c.B, c.A})
}

func (c Color) MarshalJSON() ([]byte, error) {
	return fmt.Appendf(nil, "%q", c.Hex()), nil
}

func (c *Color) UnmarshalJSON(data []byte) error {
	if string(data) == "null" || string(data) == `""` {
		return nil
	}

	cc, err := ParseColor(string(data))
	*c = cc

	return err
}
