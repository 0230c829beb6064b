package tiptap

import (
	"encoding/json"
	"log/slog"

	"github.com/aisa-it/richedit/internal/richedit/editor/edtypes"
)

// Serialize сериализует edtypes.Document в TipTap JSON.
func Serialize(doc *edtypes.Document) ([]byte, error) {
	tipTapDoc := TipTapDocument{
		Type:    "doc",
		Content: serializeBlocks(doc.Elements),
	}

	return json.Marshal(tipTapDoc)
}

func serializeBlocks(elems []any) []TipTapNode {
	nodes := make([]TipTapNode, 0, len(elems))
	for _, elem := range elems {
		if node := serializeElement(elem); node != nil {
			nodes = append(nodes, *node)
		}
	}
	return nodes
}

// serializeElement преобразует блочный элемент в TipTap ноду.
func serializeElement(elem any) *TipTapNode {
	if elem == nil {
		return nil
	}

	switch e := elem.(type) {
	case *edtypes.Paragraph:
		return serializeParagraph(e)
	case *edtypes.Heading:
		return serializeHeading(e)
	case *edtypes.Code:
		return serializeCode(e)
	case *edtypes.Quote:
		return &TipTapNode{Type: "blockquote", Content: serializeBlocks(e.Content)}
	case *edtypes.List:
		return serializeList(e)
	case *edtypes.HorizontalRule:
		return &TipTapNode{Type: "horizontalRule"}
	case *edtypes.Image:
		return serializeImage(e)
	case *edtypes.Video:
		return serializeVideo(e)
	case *edtypes.Table:
		return serializeTable(e)
	default:
		slog.Warn("Unknown element type for serialization", "type", e)
		return nil
	}
}

// serializeParagraph преобразует Paragraph в TipTap ноду.
func serializeParagraph(p *edtypes.Paragraph) *TipTapNode {
	node := &TipTapNode{
		Type:    "paragraph",
		Content: serializeInline(p.Content),
	}

	if p.Align != edtypes.LeftAlign {
		node.Attrs = map[string]interface{}{"textAlign": p.Align.String()}
	}

	return node
}

func serializeHeading(h *edtypes.Heading) *TipTapNode {
	node := &TipTapNode{
		Type:    "heading",
		Content: serializeInline(h.Content),
		Attrs:   map[string]interface{}{"level": h.Level},
	}

	if h.Align != edtypes.LeftAlign {
		node.Attrs["textAlign"] = h.Align.String()
	}

	return node
}

// serializeInline преобразует строчное содержимое.
func serializeInline(content []any) []TipTapNode {
	nodes := make([]TipTapNode, 0, len(content))
	for _, c := range content {
		switch e := c.(type) {
		case edtypes.Text:
			nodes = append(nodes, *serializeText(&e))
		case *edtypes.HardBreak:
			nodes = append(nodes, TipTapNode{Type: "hardBreak"})
		default:
			slog.Warn("Unknown inline content type for serialization", "type", c)
		}
	}
	return nodes
}

// serializeText преобразует Text в TipTap текстовую ноду.
func serializeText(t *edtypes.Text) *TipTapNode {
	node := &TipTapNode{
		Type: "text",
		Text: t.Content,
	}

	marks := make([]TipTapMark, 0)

	// Ссылка всегда первая, как внешняя марка
	if t.URL != nil {
		attrs := map[string]interface{}{"href": t.URL.String()}
		if t.Target != "" {
			attrs["target"] = t.Target
		}
		marks = append(marks, TipTapMark{Type: "link", Attrs: attrs})
	}
	if t.Strong {
		marks = append(marks, TipTapMark{Type: "bold"})
	}
	if t.Italic {
		marks = append(marks, TipTapMark{Type: "italic"})
	}
	if t.Underlined {
		marks = append(marks, TipTapMark{Type: "underline"})
	}
	if t.Strikethrough {
		marks = append(marks, TipTapMark{Type: "strike"})
	}
	if t.Code {
		marks = append(marks, TipTapMark{Type: "code"})
	}
	if t.Sup {
		marks = append(marks, TipTapMark{Type: "superscript"})
	}
	if t.Sub {
		marks = append(marks, TipTapMark{Type: "subscript"})
	}

	if t.BgColor != nil {
		marks = append(marks, TipTapMark{
			Type:  "highlight",
			Attrs: map[string]interface{}{"color": t.BgColor.Hex()},
		})
	}

	style := make(map[string]interface{})
	if t.Color != nil {
		style["color"] = t.Color.Hex()
	}
	if t.Size > 0 {
		style["fontSize"] = t.Size
	}
	if t.FontFamily != "" {
		style["fontFamily"] = t.FontFamily
	}
	if len(style) > 0 {
		marks = append(marks, TipTapMark{Type: "textStyle", Attrs: style})
	}

	if len(marks) > 0 {
		node.Marks = marks
	}

	return node
}

// serializeCode преобразует Code в TipTap codeBlock ноду.
func serializeCode(c *edtypes.Code) *TipTapNode {
	node := &TipTapNode{
		Type: "codeBlock",
	}

	if c.Language != "" {
		node.Attrs = map[string]interface{}{"language": c.Language}
	}

	// Код хранится как текстовая нода внутри, пустой блок без содержимого
	if c.Content != "" {
		node.Content = []TipTapNode{{Type: "text", Text: c.Content}}
	}

	return node
}

// serializeList преобразует List в TipTap bulletList или orderedList ноду.
func serializeList(l *edtypes.List) *TipTapNode {
	node := &TipTapNode{
		Type:    "bulletList",
		Content: make([]TipTapNode, 0, len(l.Elements)),
	}
	if l.Numbered {
		node.Type = "orderedList"
		if l.Start > 1 {
			node.Attrs = map[string]interface{}{"start": l.Start}
		}
	}

	for _, item := range l.Elements {
		node.Content = append(node.Content, TipTapNode{
			Type:    "listItem",
			Content: serializeBlocks(item.Content),
		})
	}

	return node
}

// serializeImage преобразует Image в TipTap image ноду.
func serializeImage(img *edtypes.Image) *TipTapNode {
	node := &TipTapNode{
		Type: "image",
		Attrs: map[string]interface{}{
			"src":    img.Src,
			"width":  img.Width,
			"height": img.Height,
		},
	}

	if img.Alt != "" {
		node.Attrs["alt"] = img.Alt
	}
	if img.Title != "" {
		node.Attrs["title"] = img.Title
	}
	if img.Align != edtypes.LeftAlign {
		node.Attrs["textAlign"] = img.Align.String()
	}

	return node
}

func serializeVideo(v *edtypes.Video) *TipTapNode {
	node := &TipTapNode{
		Type: "youtube",
		Attrs: map[string]interface{}{
			"src":    v.Src,
			"width":  v.Width,
			"height": v.Height,
		},
	}

	if v.Align != edtypes.LeftAlign {
		node.Attrs["textAlign"] = v.Align.String()
	}

	return node
}

// serializeTable преобразует Table в TipTap table ноду.
func serializeTable(t *edtypes.Table) *TipTapNode {
	node := &TipTapNode{
		Type:    "table",
		Content: make([]TipTapNode, 0, len(t.Rows)),
	}

	for _, row := range t.Rows {
		rowNode := TipTapNode{
			Type:    "tableRow",
			Content: make([]TipTapNode, 0, len(row)),
		}

		for _, cell := range row {
			cellNode := TipTapNode{
				Type:    "tableCell",
				Attrs:   make(map[string]interface{}),
				Content: serializeBlocks(cell.Content),
			}

			if cell.Header {
				cellNode.Type = "tableHeader"
			}
			if cell.ColSpan > 1 {
				cellNode.Attrs["colspan"] = cell.ColSpan
			}
			if cell.RowSpan > 1 {
				cellNode.Attrs["rowspan"] = cell.RowSpan
			}
			if len(cell.ColWidth) > 0 {
				cellNode.Attrs["colwidth"] = cell.ColWidth
			}
			if cell.BackgroundColor != "" {
				cellNode.Attrs["backgroundColor"] = cell.BackgroundColor
			}
			if len(cellNode.Attrs) == 0 {
				cellNode.Attrs = nil
			}

			rowNode.Content = append(rowNode.Content, cellNode)
		}

		node.Content = append(node.Content, rowNode)
	}

	return node
}
