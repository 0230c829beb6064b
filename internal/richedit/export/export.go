// Пакет для экспорта документа редактора во внешние форматы.
//
// Основные возможности:
//   - HTML, очищенный политикой экспорта, с необязательной минификацией.
//   - Обычный текст без разметки.
//   - Markdown.
//   - PDF с изображениями, таблицами и списками.
package export

import (
	"encoding/base64"
	stdhtml "html"
	"strings"

	"github.com/aisa-it/richedit/internal/richedit/editor"
	"github.com/aisa-it/richedit/internal/richedit/images"
	policy "github.com/aisa-it/richedit/internal/richedit/redactor-policy"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
)

var minifier *minify.M = minify.New()

func init() {
	minifier.Add("text/html", &html.Minifier{KeepEndTags: true, KeepQuotes: true})
}

type Options struct {
	Minify bool

	// Временные изображения blob: встраиваются как data URI. Без хранилища
	// такие ссылки удаляются политикой.
	Blobs *images.BlobStore
}

// HTML отрисовывает документ и пропускает результат через политику экспорта.
func HTML(doc *editor.Document, opts Options) (string, error) {
	out := editor.RenderHTML(doc)
	if opts.Blobs != nil {
		out = policy.ReplaceImageSources(out, func(src string) (string, bool) {
			return inlineBlob(opts.Blobs, src)
		})
	}

	out = policy.ExportPolicy.Sanitize(out)

	if opts.Minify {
		return minifier.String("text/html", out)
	}
	return out, nil
}

// PlainText возвращает текст документа: по строке на абзац, заголовок, пункт списка
// и строку таблицы. Ячейки разделены табуляцией.
func PlainText(doc *editor.Document) string {
	if doc == nil {
		return ""
	}
	var lines []string
	plainBlocks(&lines, doc.Elements)
	return strings.Join(lines, "\n")
}

func plainBlocks(lines *[]string, blocks []any) {
	for _, block := range blocks {
		switch e := block.(type) {
		case *editor.Quote:
			plainBlocks(lines, e.Content)
		case *editor.List:
			for _, item := range e.Elements {
				plainBlocks(lines, item.Content)
			}
		case *editor.Table:
			for _, row := range e.Rows {
				cells := make([]string, len(row))
				for i, cell := range row {
					var inner []string
					plainBlocks(&inner, cell.Content)
					cells[i] = strings.Join(inner, " ")
				}
				*lines = append(*lines, strings.Join(cells, "\t"))
			}
		case *editor.Image:
			if e.Alt != "" {
				*lines = append(*lines, e.Alt)
			}
		case *editor.Video:
			*lines = append(*lines, e.Src)
		default:
			if text := stripTags(block); text != "" {
				*lines = append(*lines, text)
			}
		}
	}
}

func stripTags(block any) string {
	rendered := editor.RenderFragment(&editor.Fragment{Content: []any{block}})
	return strings.TrimSpace(stdhtml.UnescapeString(policy.StripTagsPolicy.Sanitize(rendered)))
}

func inlineBlob(store *images.BlobStore, src string) (string, bool) {
	id, ok := images.ParseBlobURL(src)
	if !ok {
		return "", false
	}
	blob, err := store.Get(id)
	if err != nil {
		return "", false
	}
	return "data:" + blob.ContentType + ";base64," + base64.StdEncoding.EncodeToString(blob.Data), true
}
