// Определяет политики безопасности для HTML, который покидает редактор. ExportPolicy пропускает ровно ту разметку, которую выводит отрисовщик документа, и отбрасывает все остальное.
//
// Основные возможности:
//   - Разрешение атрибутов и стилей, которые выставляют расширения редактора (выравнивание, цвет, размер и семейство шрифта, подсветка, ячейки таблиц).
//   - Ограничение значений атрибутов и стилей регулярными выражениями.
//   - Встраивание iframe только для адресов YouTube embed.
//   - Изображения с адресами http(s) и data:image.
//   - Замена адресов изображений перед экспортом (например, blob: на data:).
package policy

import (
	"container/list"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/microcosm-cc/bluemonday"
)

var StripTagsPolicy *bluemonday.Policy = bluemonday.StrictPolicy()
var ExportPolicy *bluemonday.Policy = bluemonday.UGCPolicy()

var (
	colorRegexp    = regexp.MustCompile(`^(#(?:[0-9a-fA-F]{3,4}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})|rgb\((\d+),\s*(\d+),\s*(\d+)\)|inherit)$`)
	sizeRegexp     = regexp.MustCompile(`^(\d+(\.\d+)?(px|em|rem|ex|pt|%|vh|vw)?|auto|inherit)$`)
	fontRegexp     = regexp.MustCompile(`^[a-zA-Z0-9 ,'"-]{1,64}$`)
	alignRegexp    = regexp.MustCompile(`^(left|center|right|justify)$`)
	languageRegexp = regexp.MustCompile(`^language-[a-zA-Z0-9_+#-]+$`)
	colWidthRegexp = regexp.MustCompile(`^\d+(,\d+)*$`)
	targetRegexp   = regexp.MustCompile(`^(_blank|_self)$`)

	// YoutubeEmbedRegexp - адреса, которые допускаются в src у iframe.
	YoutubeEmbedRegexp = regexp.MustCompile(`^https://www\.youtube(-nocookie)?\.com/embed/[\w-]{11}([?#].*)?$`)
)

func init() {
	ExportPolicy.AllowDataURIImages()
	ExportPolicy.RequireNoReferrerOnLinks(true)
	ExportPolicy.AllowAttrs("target").Matching(targetRegexp).OnElements("a")

	ExportPolicy.AllowAttrs("width", "height").Matching(sizeRegexp).OnElements("img", "iframe")
	ExportPolicy.AllowAttrs("alt", "title").OnElements("img")

	ExportPolicy.AllowAttrs("src").Matching(YoutubeEmbedRegexp).OnElements("iframe")
	ExportPolicy.AllowAttrs("frameborder").Matching(regexp.MustCompile(`^0$`)).OnElements("iframe")
	ExportPolicy.AllowAttrs("allowfullscreen").Matching(regexp.MustCompile(`^(true|allowfullscreen)?$`)).OnElements("iframe")

	ExportPolicy.AllowAttrs("class").Matching(languageRegexp).OnElements("code")
	ExportPolicy.AllowAttrs("start").Matching(regexp.MustCompile(`^\d+$`)).OnElements("ol")

	ExportPolicy.AllowAttrs("data-color").Matching(colorRegexp).OnElements("mark")
	ExportPolicy.AllowAttrs("data-background-color").Matching(colorRegexp).OnElements("td", "th")
	ExportPolicy.AllowAttrs("colwidth").Matching(colWidthRegexp).OnElements("td", "th")

	ExportPolicy.AllowAttrs("style").OnElements("span", "mark", "td", "th", "p", "h1", "h2", "h3", "h4", "h5", "h6", "img", "iframe")
	ExportPolicy.AllowStyles("color").Matching(colorRegexp).OnElements("span")
	ExportPolicy.AllowStyles("background-color").Matching(colorRegexp).OnElements("mark", "td", "th")
	ExportPolicy.AllowStyles("font-size").Matching(sizeRegexp).OnElements("span")
	ExportPolicy.AllowStyles("font-family").Matching(fontRegexp).OnElements("span")
	ExportPolicy.AllowStyles("text-align").Matching(alignRegexp).OnElements("p", "h1", "h2", "h3", "h4", "h5", "h6", "img", "iframe")
}

// ReplaceImageSources передает src каждого img в replace и подставляет результат,
// если replace вернул true. Разбирает htmlContent как содержимое body.
func ReplaceImageSources(htmlContent string, replace func(src string) (string, bool)) string {
	if htmlContent == "" {
		return ""
	}

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(htmlContent), body)
	if err != nil {
		return htmlContent
	}

	queue := list.New()
	for _, n := range nodes {
		queue.PushBack(n)
	}

	changed := false
	for queue.Len() > 0 {
		element := queue.Front()
		queue.Remove(element)
		node := element.Value.(*html.Node)

		if node.Type == html.ElementNode && node.DataAtom == atom.Img && replaceSrc(node, replace) {
			changed = true
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			queue.PushBack(child)
		}
	}

	if !changed {
		return htmlContent
	}

	var result strings.Builder
	for _, n := range nodes {
		if err := html.Render(&result, n); err != nil {
			return htmlContent
		}
	}
	return result.String()
}

func replaceSrc(node *html.Node, replace func(src string) (string, bool)) bool {
	for i, attr := range node.Attr {
		if attr.Key != "src" || attr.Namespace != "" {
			continue
		}
		if src, ok := replace(attr.Val); ok {
			node.Attr[i].Val = src
			return true
		}
		return false
	}
	return false
}
