package editor

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// RenderHTML отрисовывает документ в HTML так же, как его выводит редактор.
func RenderHTML(doc *Document) string {
	if doc == nil {
		return ""
	}
	var b strings.Builder
	renderBlocks(&b, doc.Elements)
	return b.String()
}

// RenderFragment отрисовывает фрагмент в HTML.
func RenderFragment(f *Fragment) string {
	if f == nil {
		return ""
	}
	var b strings.Builder
	renderBlocks(&b, f.Content)
	return b.String()
}

func renderBlocks(b *strings.Builder, blocks []any) {
	for _, block := range blocks {
		renderBlock(b, block)
	}
}

func renderBlock(b *strings.Builder, block any) {
	switch e := block.(type) {
	case *Paragraph:
		b.WriteString("<p" + alignAttr(e.Align) + ">")
		renderInline(b, e.Content)
		b.WriteString("</p>")
	case *Heading:
		level := min(max(e.Level, 1), 6)
		fmt.Fprintf(b, "<h%d%s>", level, alignAttr(e.Align))
		renderInline(b, e.Content)
		fmt.Fprintf(b, "</h%d>", level)
	case *Quote:
		b.WriteString("<blockquote>")
		renderBlocks(b, e.Content)
		b.WriteString("</blockquote>")
	case *Code:
		b.WriteString("<pre><code")
		if e.Language != "" {
			b.WriteString(attr("class", "language-"+e.Language))
		}
		b.WriteString(">" + html.EscapeString(e.Content) + "</code></pre>")
	case *List:
		tag := "ul"
		if e.Numbered {
			tag = "ol"
		}
		b.WriteString("<" + tag)
		if e.Numbered && e.Start > 1 {
			b.WriteString(attr("start", strconv.Itoa(e.Start)))
		}
		b.WriteString(">")
		for _, item := range e.Elements {
			b.WriteString("<li>")
			renderBlocks(b, item.Content)
			b.WriteString("</li>")
		}
		b.WriteString("</" + tag + ">")
	case *HorizontalRule:
		b.WriteString("<hr>")
	case *Image:
		b.WriteString("<img" + attr("src", e.Src))
		if e.Alt != "" {
			b.WriteString(attr("alt", e.Alt))
		}
		if e.Title != "" {
			b.WriteString(attr("title", e.Title))
		}
		b.WriteString(attr("width", e.Width) + attr("height", e.Height) + alignAttr(e.Align) + ">")
	case *Video:
		b.WriteString("<iframe" + attr("src", e.Src) + attr("width", e.Width) + attr("height", e.Height) +
			alignAttr(e.Align) + attr("frameborder", "0") + attr("allowfullscreen", "true") + "></iframe>")
	case *Table:
		b.WriteString("<table><tbody>")
		for _, row := range e.Rows {
			b.WriteString("<tr>")
			for _, cell := range row {
				renderCell(b, cell)
			}
			b.WriteString("</tr>")
		}
		b.WriteString("</tbody></table>")
	}
}

func renderCell(b *strings.Builder, cell TableCell) {
	tag := "td"
	if cell.Header {
		tag = "th"
	}
	b.WriteString("<" + tag)
	b.WriteString(attr("colspan", strconv.Itoa(max(cell.ColSpan, 1))))
	b.WriteString(attr("rowspan", strconv.Itoa(max(cell.RowSpan, 1))))
	if len(cell.ColWidth) > 0 {
		widths := make([]string, len(cell.ColWidth))
		for i, w := range cell.ColWidth {
			widths[i] = strconv.Itoa(w)
		}
		b.WriteString(attr("colwidth", strings.Join(widths, ",")))
	}
	if cell.BackgroundColor != "" {
		b.WriteString(attr("data-background-color", cell.BackgroundColor))
		b.WriteString(attr("style", "background-color: "+cell.BackgroundColor))
	}
	b.WriteString(">")
	renderBlocks(b, cell.Content)
	b.WriteString("</" + tag + ">")
}

func renderInline(b *strings.Builder, content []any) {
	for _, item := range content {
		switch e := item.(type) {
		case Text:
			renderText(b, e)
		case *HardBreak:
			b.WriteString("<br>")
		}
	}
}

// renderText оборачивает текст в теги марок. Порядок вложенности фиксирован,
// чтобы одинаковое форматирование всегда давало одинаковую разметку.
func renderText(b *strings.Builder, t Text) {
	var open, closing []string
	wrap := func(start, end string) {
		open = append(open, start)
		closing = append([]string{end}, closing...)
	}

	if t.URL != nil {
		target := t.Target
		if target == "" {
			target = "_blank"
		}
		wrap("<a"+attr("href", t.URL.String())+attr("target", target)+attr("rel", "noopener noreferrer nofollow")+">", "</a>")
	}
	if t.Strong {
		wrap("<strong>", "</strong>")
	}
	if t.Italic {
		wrap("<em>", "</em>")
	}
	if t.Underlined {
		wrap("<u>", "</u>")
	}
	if t.Strikethrough {
		wrap("<s>", "</s>")
	}
	if t.Code {
		wrap("<code>", "</code>")
	}
	if t.Sup {
		wrap("<sup>", "</sup>")
	}
	if t.Sub {
		wrap("<sub>", "</sub>")
	}
	if t.BgColor != nil {
		c := t.BgColor.Hex()
		wrap("<mark"+attr("data-color", c)+attr("style", "background-color: "+c)+">", "</mark>")
	}
	if style := textStyle(t); style != "" {
		wrap("<span"+attr("style", style)+">", "</span>")
	}

	for _, o := range open {
		b.WriteString(o)
	}
	b.WriteString(html.EscapeString(t.Content))
	for _, c := range closing {
		b.WriteString(c)
	}
}

func textStyle(t Text) string {
	var styles []string
	if t.Color != nil {
		styles = append(styles, "color: "+t.Color.Hex())
	}
	if t.Size > 0 {
		styles = append(styles, "font-size: "+strconv.Itoa(t.Size)+"px")
	}
	if t.FontFamily != "" {
		styles = append(styles, "font-family: "+t.FontFamily)
	}
	return strings.Join(styles, "; ")
}

func alignAttr(a TextAlign) string {
	if a == LeftAlign {
		return ""
	}
	return attr("style", "text-align: "+a.String())
}

func attr(key, val string) string {
	return " " + key + `="` + html.EscapeString(val) + `"`
}
