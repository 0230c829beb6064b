package editor

import (
	"sync"

	"github.com/aisa-it/richedit/internal/richedit/editor/edtypes"
)

// Extension - поставщик возможностей редактора: типы нод, марки и команды.
type Extension interface {
	Name() string
	Nodes() []NodeSpec
	Marks() []MarkSpec
	Commands() map[string]Command
}

// AttributeProvider реализуют расширения, которые добавляют атрибуты к чужим типам
// (выравнивание, цвет, размер шрифта).
type AttributeProvider interface {
	GlobalAttributes() []GlobalAttributes
}

type extension struct {
	name     string
	nodes    []NodeSpec
	marks    []MarkSpec
	commands map[string]Command
	globals  []GlobalAttributes
}

func (e *extension) Name() string                         { return e.name }
func (e *extension) Nodes() []NodeSpec                    { return e.nodes }
func (e *extension) Marks() []MarkSpec                    { return e.marks }
func (e *extension) Commands() map[string]Command         { return e.commands }
func (e *extension) GlobalAttributes() []GlobalAttributes { return e.globals }

// DefaultExtensions возвращает набор расширений стандартной конфигурации редактора.
func DefaultExtensions() []Extension {
	return []Extension{
		StarterKit(),
		Underline(),
		Superscript(),
		Subscript(),
		Link(),
		TextAlignment("heading", "paragraph", "youtube", "image"),
		TextStyle(),
		TextColor(),
		Highlight(),
		ImageResize(),
		YoutubeEmbed(),
		FontSize(),
		FontFamily(),
		TableKit(),
		TableCellBackground(),
	}
}

// DefaultSchema - схема из DefaultExtensions. Схема неизменяема и общая для всех состояний.
var DefaultSchema = sync.OnceValue(func() *Schema {
	return MustSchema(DefaultExtensions()...)
})

// StarterKit - базовые ноды и марки: параграфы, заголовки, списки, цитаты, код.
func StarterKit() Extension {
	return &extension{
		name: "starterKit",
		nodes: []NodeSpec{
			{Name: "paragraph", Group: "block", Tags: []string{"p"}},
			{Name: "heading", Group: "block", Tags: []string{"h1", "h2", "h3", "h4", "h5", "h6"},
				Attrs: map[string]AttrSpec{"level": {Default: 1}}},
			{Name: "blockquote", Group: "block", Tags: []string{"blockquote"}},
			{Name: "codeBlock", Group: "block", Tags: []string{"pre"},
				Attrs: map[string]AttrSpec{"language": {}}},
			{Name: "bulletList", Group: "block", Tags: []string{"ul"}},
			{Name: "orderedList", Group: "block", Tags: []string{"ol"},
				Attrs: map[string]AttrSpec{"start": {Default: 1}}},
			{Name: "listItem", Tags: []string{"li"}},
			{Name: "horizontalRule", Group: "block", Tags: []string{"hr"}},
			{Name: "hardBreak", Group: "inline", Tags: []string{"br"}},
			{Name: "text", Group: "inline"},
		},
		marks: []MarkSpec{
			{Name: "bold", Tags: []string{"strong", "b"}},
			{Name: "italic", Tags: []string{"em", "i"}},
			{Name: "strike", Tags: []string{"s", "del", "strike"}},
			{Name: "code", Tags: []string{"code"}},
		},
		commands: map[string]Command{
			"setParagraph":      setParagraph,
			"toggleHeading":     toggleHeading,
			"toggleBold":        toggleMark("bold"),
			"toggleItalic":      toggleMark("italic"),
			"toggleStrike":      toggleMark("strike"),
			"toggleCode":        toggleMark("code"),
			"toggleBulletList":  toggleList(false),
			"toggleOrderedList": toggleList(true),
			"toggleBlockquote":  toggleBlockquote,
			"setHorizontalRule": setHorizontalRule,
			"insertContent":     insertContent,
			"clearNodes":        clearNodes,
			"unsetAllMarks":     unsetAllMarks,
		},
	}
}

func Underline() Extension {
	return &extension{
		name:     "underline",
		marks:    []MarkSpec{{Name: "underline", Tags: []string{"u"}}},
		commands: map[string]Command{"toggleUnderline": toggleMark("underline")},
	}
}

func Superscript() Extension {
	return &extension{
		name:     "superscript",
		marks:    []MarkSpec{{Name: "superscript", Tags: []string{"sup"}}},
		commands: map[string]Command{"toggleSuperscript": toggleMark("superscript")},
	}
}

func Subscript() Extension {
	return &extension{
		name:     "subscript",
		marks:    []MarkSpec{{Name: "subscript", Tags: []string{"sub"}}},
		commands: map[string]Command{"toggleSubscript": toggleMark("subscript")},
	}
}

// Link - ссылки. Атрибуты href и target.
func Link() Extension {
	return &extension{
		name: "link",
		marks: []MarkSpec{{Name: "link", Tags: []string{"a"},
			Attrs: map[string]AttrSpec{"href": {}, "target": {Default: "_blank"}}}},
		commands: map[string]Command{
			"setLink":   setLink,
			"unsetLink": unsetMark("link"),
		},
	}
}

// TextAlignment добавляет атрибут textAlign указанным типам нод.
func TextAlignment(types ...string) Extension {
	return &extension{
		name: "textAlign",
		globals: []GlobalAttributes{{
			Types: types,
			Attrs: map[string]AttrSpec{"textAlign": {Default: "left"}},
		}},
		commands: map[string]Command{
			"setTextAlign":   setTextAlign,
			"unsetTextAlign": unsetTextAlign,
		},
	}
}

// TextStyle - марка span со стилями, атрибуты добавляют TextColor, FontSize и FontFamily.
func TextStyle() Extension {
	return &extension{
		name:     "textStyle",
		marks:    []MarkSpec{{Name: "textStyle", Tags: []string{"span", "font"}}},
		commands: map[string]Command{},
	}
}

// TextColor - атрибут color марки textStyle.
func TextColor() Extension {
	return &extension{
		name:    "color",
		globals: []GlobalAttributes{{Types: []string{"textStyle"}, Attrs: map[string]AttrSpec{"color": {}}}},
		commands: map[string]Command{
			"setColor":   setColor,
			"unsetColor": unsetTextStyle("color"),
		},
	}
}

// Highlight - цвет фона текста (multicolor).
func Highlight() Extension {
	return &extension{
		name:  "highlight",
		marks: []MarkSpec{{Name: "highlight", Tags: []string{"mark"}, Attrs: map[string]AttrSpec{"color": {}}}},
		commands: map[string]Command{
			"setHighlight":    setHighlight,
			"toggleHighlight": toggleHighlight,
			"unsetHighlight":  unsetMark("highlight"),
		},
	}
}

func FontSize() Extension {
	return &extension{
		name:    "fontSize",
		globals: []GlobalAttributes{{Types: []string{"textStyle"}, Attrs: map[string]AttrSpec{"fontSize": {}}}},
		commands: map[string]Command{
			"setFontSize":   setFontSize,
			"unsetFontSize": unsetTextStyle("fontSize"),
		},
	}
}

func FontFamily() Extension {
	return &extension{
		name:    "fontFamily",
		globals: []GlobalAttributes{{Types: []string{"textStyle"}, Attrs: map[string]AttrSpec{"fontFamily": {}}}},
		commands: map[string]Command{
			"setFontFamily":   setFontFamily,
			"unsetFontFamily": unsetTextStyle("fontFamily"),
		},
	}
}

// ImageResize - блочное изображение с размерами по умолчанию 300px x auto.
func ImageResize() Extension {
	return &extension{
		name: "imageResize",
		nodes: []NodeSpec{{
			Name:  "image",
			Group: "block",
			Tags:  []string{"img"},
			Attrs: map[string]AttrSpec{
				"src":    {},
				"alt":    {},
				"title":  {},
				"width":  {Default: edtypes.DefaultImageWidth},
				"height": {Default: edtypes.DefaultImageHeight},
			},
		}},
		commands: map[string]Command{"setImage": setImage},
	}
}

// YoutubeEmbed - блочная нода видео, разбирается из iframe[src].
func YoutubeEmbed() Extension {
	return &extension{
		name: "youtubeEmbed",
		nodes: []NodeSpec{{
			Name:  "youtube",
			Group: "block",
			Tags:  []string{"iframe"},
			Attrs: map[string]AttrSpec{
				"src":    {},
				"width":  {Default: edtypes.DefaultVideoWidth},
				"height": {Default: edtypes.DefaultVideoHeight},
			},
		}},
		commands: map[string]Command{"setYoutubeVideo": setYoutubeVideo},
	}
}

// TableKit - таблицы со строками, ячейками и заголовочными ячейками.
func TableKit() Extension {
	cellAttrs := map[string]AttrSpec{
		"colspan":  {Default: 1},
		"rowspan":  {Default: 1},
		"colwidth": {},
	}
	return &extension{
		name: "table",
		nodes: []NodeSpec{
			{Name: "table", Group: "block", Tags: []string{"table"}},
			{Name: "tableRow", Tags: []string{"tr"}},
			{Name: "tableHeader", Tags: []string{"th"}, Attrs: cellAttrs},
			{Name: "tableCell", Tags: []string{"td"}, Attrs: cellAttrs},
		},
		commands: map[string]Command{
			"insertTable":     insertTable,
			"addRowBefore":    addRow(false),
			"addRowAfter":     addRow(true),
			"addColumnBefore": addColumn(false),
			"addColumnAfter":  addColumn(true),
			"deleteRow":       deleteRow,
			"deleteColumn":    deleteColumn,
			"deleteTable":     deleteTable,
			"toggleHeaderRow": toggleHeaderRow,
		},
	}
}

// TableCellBackground добавляет ячейкам атрибут backgroundColor (data-background-color).
func TableCellBackground() Extension {
	return &extension{
		name: "tableCellBackground",
		globals: []GlobalAttributes{{
			Types: []string{"tableCell", "tableHeader"},
			Attrs: map[string]AttrSpec{"backgroundColor": {}},
		}},
		commands: map[string]Command{"setCellBackground": setCellBackground},
	}
}
