package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/aisa-it/richedit/internal/richedit/editor"
	md "github.com/nao1215/markdown"
)

// Markdown преобразует документ в Markdown. Подчеркивание, цвета, размеры и
// выравнивание в Markdown не выражаются и теряются, видео выводится ссылкой.
func Markdown(doc *editor.Document) (string, error) {
	var buf bytes.Buffer
	m := md.NewMarkdown(&buf)
	if doc != nil {
		writeMarkdownBlocks(m, doc.Elements)
	}
	if err := m.Build(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func writeMarkdownBlocks(m *md.Markdown, blocks []any) {
	for i, block := range blocks {
		if i > 0 {
			m.PlainText("")
		}
		switch e := block.(type) {
		case *editor.Paragraph:
			m.PlainText(markdownInline(e.Content))
		case *editor.Heading:
			text := markdownInline(e.Content)
			switch e.Level {
			case 1:
				m.H1(text)
			case 2:
				m.H2(text)
			case 3:
				m.H3(text)
			case 4:
				m.H4(text)
			case 5:
				m.H5(text)
			default:
				m.H6(text)
			}
		case *editor.Quote:
			m.Blockquote(strings.Join(markdownLines(e.Content), " "))
		case *editor.Code:
			m.CodeBlocks(md.SyntaxHighlight(e.Language), e.Content)
		case *editor.List:
			items := make([]string, 0, len(e.Elements))
			for _, item := range e.Elements {
				items = append(items, strings.Join(markdownLines(item.Content), " "))
			}
			if e.Numbered {
				m.OrderedList(items...)
			} else {
				m.BulletList(items...)
			}
		case *editor.HorizontalRule:
			m.HorizontalRule()
		case *editor.Image:
			m.PlainText(md.Image(e.Alt, e.Src))
		case *editor.Video:
			m.PlainText(md.Link(e.Src, e.Src))
		case *editor.Table:
			writeMarkdownTable(m, e)
		}
	}
}

// markdownLines возвращает текст вложенных блоков без оформления блоков.
func markdownLines(blocks []any) []string {
	var lines []string
	for _, block := range blocks {
		switch e := block.(type) {
		case *editor.Paragraph:
			lines = append(lines, markdownInline(e.Content))
		case *editor.Heading:
			lines = append(lines, md.Bold(markdownInline(e.Content)))
		case *editor.Code:
			lines = append(lines, md.Code(e.Content))
		case *editor.List:
			for _, item := range e.Elements {
				lines = append(lines, markdownLines(item.Content)...)
			}
		case *editor.Quote:
			lines = append(lines, markdownLines(e.Content)...)
		case *editor.Image:
			lines = append(lines, md.Image(e.Alt, e.Src))
		}
	}
	return lines
}

func writeMarkdownTable(m *md.Markdown, t *editor.Table) {
	if len(t.Rows) == 0 {
		return
	}
	cols := t.Cols()
	row := func(cells []editor.TableCell) []string {
		res := make([]string, 0, cols)
		for _, c := range cells {
			res = append(res, strings.Join(markdownLines(c.Content), " "))
			for range max(c.ColSpan, 1) - 1 {
				res = append(res, "")
			}
		}
		for len(res) < cols {
			res = append(res, "")
		}
		return res
	}

	set := md.TableSet{}
	rows := t.Rows
	if isHeaderRow(rows[0]) {
		set.Header = row(rows[0])
		rows = rows[1:]
	} else {
		set.Header = make([]string, cols)
		for i := range set.Header {
			set.Header[i] = fmt.Sprintf("%d", i+1)
		}
	}
	for _, r := range rows {
		set.Rows = append(set.Rows, row(r))
	}

	m.CustomTable(set, md.TableOptions{
		AutoWrapText: false,
	})
}

func isHeaderRow(row []editor.TableCell) bool {
	for _, c := range row {
		if !c.Header {
			return false
		}
	}
	return len(row) > 0
}

func markdownInline(content []any) string {
	var b strings.Builder
	for _, item := range content {
		switch e := item.(type) {
		case editor.Text:
			b.WriteString(markdownText(e))
		case *editor.HardBreak:
			b.WriteString("  \n")
		}
	}
	return b.String()
}

func markdownText(t editor.Text) string {
	text := t.Content
	if strings.TrimSpace(text) == "" {
		return text
	}
	if t.Code {
		text = md.Code(text)
	}
	if t.Strikethrough {
		text = md.Strikethrough(text)
	}
	if t.Italic {
		text = md.Italic(text)
	}
	if t.Strong {
		text = md.Bold(text)
	}
	if t.URL != nil {
		text = md.Link(text, t.URL.String())
	}
	return text
}
