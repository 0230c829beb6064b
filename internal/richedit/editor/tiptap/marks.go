package tiptap

import (
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/aisa-it/richedit/internal/richedit/editor/edtypes"
)

// applyMarks применяет форматирование (marks) к текстовому элементу.
func applyMarks(text *edtypes.Text, marks []TipTapMark) {
	for _, mark := range marks {
		switch mark.Type {
		case "bold":
			text.Strong = true
		case "italic":
			text.Italic = true
		case "underline":
			text.Underlined = true
		case "strike":
			text.Strikethrough = true
		case "code":
			text.Code = true
		case "superscript":
			text.Sup = true
		case "subscript":
			text.Sub = true
		case "textStyle":
			applyTextStyle(text, mark.Attrs)
		case "link":
			applyLink(text, mark.Attrs)
		case "highlight":
			applyHighlight(text, mark.Attrs)
		default:
			slog.Debug("Unknown mark type", "type", mark.Type)
		}
	}
}

// applyTextStyle применяет стили текста (цвет, размер и семейство шрифта).
func applyTextStyle(text *edtypes.Text, attrs map[string]interface{}) {
	if color := getAttrString(attrs, "color"); color != "" {
		c, err := edtypes.ParseColor(color)
		if err == nil {
			text.Color = &c
		}
	}

	if fontSize := getAttrString(attrs, "fontSize"); fontSize != "" {
		size, err := strconv.Atoi(strings.TrimSuffix(fontSize, "px"))
		if err == nil {
			text.Size = size
		}
	} else if size := getAttrInt(attrs, "fontSize"); size > 0 {
		text.Size = size
	}

	if family := getAttrString(attrs, "fontFamily"); family != "" {
		text.FontFamily = family
	}
}

// applyLink применяет ссылку к тексту.
func applyLink(text *edtypes.Text, attrs map[string]interface{}) {
	href := getAttrString(attrs, "href")
	if href != "" {
		u, err := url.Parse(href)
		if err == nil {
			text.URL = u
			text.Target = getAttrString(attrs, "target")
		}
	}
}

// applyHighlight применяет подсветку фона к тексту. Подсветка без цвета - желтая.
func applyHighlight(text *edtypes.Text, attrs map[string]interface{}) {
	c := edtypes.Color{R: 255, G: 255, A: 255}
	if color := getAttrString(attrs, "color"); color != "" {
		parsed, err := edtypes.ParseColor(color)
		if err != nil {
			return
		}
		c = parsed
	}
	text.BgColor = &c
}
