package tiptap

import (
	"log/slog"

	"github.com/aisa-it/richedit/internal/richedit/editor/edtypes"
	"github.com/aisa-it/richedit/internal/richedit/video"
)

// parseText преобразует текстовую ноду TipTap в edtypes.Text.
func parseText(node TipTapNode) edtypes.Text {
	text := edtypes.Text{
		Content: node.Text,
	}

	if len(node.Marks) > 0 {
		applyMarks(&text, node.Marks)
	}

	return text
}

// parseInline разбирает строчное содержимое параграфа или заголовка.
func parseInline(nodes []TipTapNode) []any {
	content := make([]any, 0, len(nodes))
	for _, child := range nodes {
		switch child.Type {
		case "text":
			content = append(content, parseText(child))
		case "hardBreak":
			content = append(content, &edtypes.HardBreak{})
		default:
			slog.Warn("Unknown inline node type", "type", child.Type)
		}
	}
	return content
}

// parseParagraph преобразует параграф TipTap в edtypes.Paragraph.
func parseParagraph(node TipTapNode) *edtypes.Paragraph {
	if node.Type != "paragraph" {
		return nil
	}

	return &edtypes.Paragraph{
		Content: parseInline(node.Content),
		Align:   parseTextAlign(getAttrString(node.Attrs, "textAlign")),
	}
}

// splitParagraph выносит медиа ноды из параграфа на уровень блоков.
func splitParagraph(node TipTapNode) []any {
	align := parseTextAlign(getAttrString(node.Attrs, "textAlign"))

	var (
		out     []any
		pending []TipTapNode
	)
	flush := func(force bool) {
		if len(pending) == 0 && !force {
			return
		}
		out = append(out, &edtypes.Paragraph{Content: parseInline(pending), Align: align})
		pending = nil
	}

	for _, child := range node.Content {
		switch child.Type {
		case "image", "imageResize", "youtube":
			flush(false)
			if media := parseNode(child); media != nil {
				out = append(out, media)
			}
		default:
			pending = append(pending, child)
		}
	}
	flush(len(out) == 0)

	return out
}

// parseHeading преобразует заголовок TipTap в edtypes.Heading.
func parseHeading(node TipTapNode) *edtypes.Heading {
	level := getAttrInt(node.Attrs, "level")
	if level < 1 || level > 6 {
		level = 1
	}

	return &edtypes.Heading{
		Level:   level,
		Content: parseInline(node.Content),
		Align:   parseTextAlign(getAttrString(node.Attrs, "textAlign")),
	}
}

// parseCodeBlock преобразует блок кода TipTap в edtypes.Code.
func parseCodeBlock(node TipTapNode) *edtypes.Code {
	if node.Type != "codeBlock" {
		return nil
	}

	var text string
	for _, child := range node.Content {
		if child.Type == "text" {
			text += child.Text
		}
	}

	return &edtypes.Code{
		Content:  text,
		Language: getAttrString(node.Attrs, "language"),
	}
}

// parseBlockquote преобразует цитату TipTap в edtypes.Quote.
func parseBlockquote(node TipTapNode) *edtypes.Quote {
	if node.Type != "blockquote" {
		return nil
	}

	return &edtypes.Quote{
		Content: parseBlocks(node.Content),
	}
}

// parseImage преобразует изображение TipTap в edtypes.Image.
// Поддерживает как "image", так и "imageResize" типы.
func parseImage(node TipTapNode) *edtypes.Image {
	if node.Type != "image" && node.Type != "imageResize" {
		return nil
	}

	src := getAttrString(node.Attrs, "src")
	if src == "" {
		slog.Warn("Image without src skipped")
		return nil
	}

	img := &edtypes.Image{
		Src:    src,
		Alt:    getAttrString(node.Attrs, "alt"),
		Title:  getAttrString(node.Attrs, "title"),
		Width:  getAttrLength(node.Attrs, "width", edtypes.DefaultImageWidth),
		Height: getAttrLength(node.Attrs, "height", edtypes.DefaultImageHeight),
		Align:  parseTextAlign(getAttrString(node.Attrs, "textAlign")),
	}

	// Старые документы хранят выравнивание в style через float
	if style := getAttrString(node.Attrs, "style"); style != "" && img.Align == edtypes.LeftAlign {
		styles := parseStyleAttr(style)
		switch styles["float"] {
		case "right":
			img.Align = edtypes.RightAlign
		case "none":
			img.Align = edtypes.CenterAlign
		}
	}

	return img
}

// parseVideo преобразует youtube ноду TipTap в edtypes.Video. Ссылка приводится к embed виду.
func parseVideo(node TipTapNode) *edtypes.Video {
	src, ok := video.NormalizeURL(getAttrString(node.Attrs, "src"))
	if !ok {
		slog.Warn("Unsupported video src skipped", "src", getAttrString(node.Attrs, "src"))
		return nil
	}

	return &edtypes.Video{
		Src:    src,
		Width:  getAttrLength(node.Attrs, "width", edtypes.DefaultVideoWidth),
		Height: getAttrLength(node.Attrs, "height", edtypes.DefaultVideoHeight),
		Align:  parseTextAlign(getAttrString(node.Attrs, "textAlign")),
	}
}

// parseList преобразует список TipTap в edtypes.List.
func parseList(node TipTapNode) *edtypes.List {
	list := &edtypes.List{
		Elements: make([]edtypes.ListElement, 0),
	}

	switch node.Type {
	case "bulletList":
		list.Numbered = false
	case "orderedList":
		list.Numbered = true
		list.Start = getAttrInt(node.Attrs, "start")
		if list.Start == 0 {
			list.Start = 1
		}
	default:
		return nil
	}

	for _, child := range node.Content {
		if child.Type == "listItem" {
			list.Elements = append(list.Elements, edtypes.ListElement{
				Content: parseBlocks(child.Content),
			})
		}
	}

	return list
}

// parseTable преобразует таблицу TipTap в edtypes.Table.
func parseTable(node TipTapNode) *edtypes.Table {
	if node.Type != "table" {
		return nil
	}

	table := &edtypes.Table{
		Rows: make([][]edtypes.TableCell, 0),
	}

	for _, rowNode := range node.Content {
		if rowNode.Type != "tableRow" {
			continue
		}

		row := make([]edtypes.TableCell, 0)

		for _, cellNode := range rowNode.Content {
			if cellNode.Type != "tableHeader" && cellNode.Type != "tableCell" {
				continue
			}

			cell := edtypes.TableCell{
				Header:          cellNode.Type == "tableHeader",
				ColSpan:         getAttrInt(cellNode.Attrs, "colspan"),
				RowSpan:         getAttrInt(cellNode.Attrs, "rowspan"),
				ColWidth:        getAttrInts(cellNode.Attrs, "colwidth"),
				BackgroundColor: getAttrString(cellNode.Attrs, "backgroundColor"),
				Content:         parseBlocks(cellNode.Content),
			}

			// Если ColSpan/RowSpan не указаны, по умолчанию 1
			if cell.ColSpan == 0 {
				cell.ColSpan = 1
			}
			if cell.RowSpan == 0 {
				cell.RowSpan = 1
			}

			row = append(row, cell)
		}

		if len(row) > 0 {
			table.Rows = append(table.Rows, row)
		}
	}

	return table
}
