// Пакет sanitizer очищает HTML по строгому списку разрешений: запрещенный элемент
// удаляется вместе со всем содержимым, запрещенный атрибут - молча.
package sanitizer

import (
	"bytes"
	"slices"
	"strings"

	"golang.org/x/net/html"
)

// Report - что было удалено при очистке.
type Report struct {
	RemovedElements   map[string]int `json:"removed_elements,omitempty"`
	RemovedAttributes map[string]int `json:"removed_attributes,omitempty"`
	RemovedComments   int            `json:"removed_comments,omitempty"`
}

// Total - общее количество удалений. Вложенные элементы удаленного элемента не считаются.
func (r Report) Total() int {
	n := r.RemovedComments
	for _, c := range r.RemovedElements {
		n += c
	}
	for _, c := range r.RemovedAttributes {
		n += c
	}
	return n
}

func (r *Report) element(tag string) {
	if r.RemovedElements == nil {
		r.RemovedElements = make(map[string]int)
	}
	r.RemovedElements[tag]++
}

func (r *Report) attribute(tag, attr string) {
	if r.RemovedAttributes == nil {
		r.RemovedAttributes = make(map[string]int)
	}
	r.RemovedAttributes[tag+"@"+attr]++
}

// Элементы с сырым текстом: содержимое не экранируется парсером, поэтому не переносится
var rawTextTags = map[string]bool{
	"iframe": true, "noembed": true, "noframes": true, "noscript": true,
	"plaintext": true, "script": true, "style": true, "xmp": true,
}

// Элементы, которые парсер достраивает сам. Если такой элемент запрещен,
// его дети поднимаются на уровень выше, иначе таблица без tbody в политике теряет все строки.
var impliedTags = map[string]bool{"tbody": true}

// Атрибуты с URL, для которых проверяется схема
var urlAttrs = map[string]bool{"href": true, "src": true, "cite": true}

// Sanitize возвращает очищенный HTML. Повторная очистка результата ничего не меняет.
// Пустая политика заменяется общей.
func Sanitize(raw string, policy *AllowList) string {
	out, _ := SanitizeWithReport(raw, policy)
	return out
}

// SanitizeWithReport очищает HTML и сообщает, что было удалено.
func SanitizeWithReport(raw string, policy *AllowList) (string, Report) {
	var report Report
	if strings.TrimSpace(raw) == "" {
		return "", report
	}
	if policy == nil {
		policy = GeneralPolicy()
	}

	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return "", report
	}

	// Содержимое head (script, style, meta) в результат не попадает
	var body *html.Node
	var walkFind func(*html.Node)
	walkFind = func(n *html.Node) {
		if body != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == "body" {
			body = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == "head" {
				countHead(c, &report)
				continue
			}
			walkFind(c)
		}
	}
	walkFind(doc)
	if body == nil {
		return "", report
	}

	w := &writer{policy: policy.compile(), report: &report}
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		w.node(c)
	}
	return w.buf.String(), report
}

func countHead(head *html.Node, report *Report) {
	for c := head.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.ElementNode:
			report.element(c.Data)
		case html.CommentNode:
			report.RemovedComments++
		}
	}
}

type writer struct {
	buf    bytes.Buffer
	policy *compiled
	report *Report

	// leading: внутри pre, listing или textarea еще ничего не записано
	leading bool
}

func (w *writer) node(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		if n.Data == "" {
			return
		}
		// Парсер съедает первый перевод строки внутри pre, listing и textarea
		if w.leading && strings.HasPrefix(n.Data, "\n") {
			w.buf.WriteByte('\n')
		}
		w.leading = false
		w.buf.WriteString(html.EscapeString(n.Data))
	case html.CommentNode:
		w.report.RemovedComments++
	case html.ElementNode:
		w.element(n)
	}
}

func (w *writer) element(n *html.Node) {
	tag := n.Data
	if n.Namespace != "" || !w.policy.tags[tag] {
		if n.Namespace == "" && impliedTags[tag] {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				w.node(c)
			}
			return
		}
		w.report.element(tag)
		return
	}

	w.leading = false
	w.buf.WriteByte('<')
	w.buf.WriteString(tag)
	for _, a := range n.Attr {
		if !w.attrAllowed(tag, a) {
			w.report.attribute(tag, a.Key)
			continue
		}
		w.buf.WriteByte(' ')
		w.buf.WriteString(a.Key)
		w.buf.WriteString(`="`)
		w.buf.WriteString(html.EscapeString(a.Val))
		w.buf.WriteByte('"')
	}
	w.buf.WriteByte('>')

	if isVoidElement(tag) {
		return
	}

	if !rawTextTags[tag] {
		w.leading = tag == "pre" || tag == "listing" || tag == "textarea"
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			w.node(c)
		}
		w.leading = false
	}

	w.buf.WriteString("</")
	w.buf.WriteString(tag)
	w.buf.WriteByte('>')
}

func (w *writer) attrAllowed(tag string, a html.Attribute) bool {
	if a.Namespace != "" || !w.policy.attrAllowed(tag, a.Key) {
		return false
	}
	if urlAttrs[a.Key] && !w.urlAllowed(tag, a.Val) {
		return false
	}
	if a.Key == "style" && unsafeStyle(a.Val) {
		return false
	}
	return true
}

// urlAllowed проверяет схему URL. Относительные и протокол-относительные ссылки разрешены.
func (w *writer) urlAllowed(tag, val string) bool {
	cleaned := strings.ToLower(strings.Map(func(r rune) rune {
		if r <= ' ' || r == 0x7f {
			return -1
		}
		return r
	}, val))

	colon := strings.IndexByte(cleaned, ':')
	if colon < 0 {
		return true
	}
	if i := strings.IndexAny(cleaned, "/?#"); i >= 0 && i < colon {
		return true
	}
	return w.policy.schemeAllowed(tag, cleaned[:colon])
}

var unsafeStyleTokens = []string{"expression(", "javascript:", "vbscript:", "behavior:", "-moz-binding"}

func unsafeStyle(style string) bool {
	s := strings.ToLower(strings.Join(strings.Fields(style), ""))
	return slices.ContainsFunc(unsafeStyleTokens, func(tok string) bool {
		return strings.Contains(s, tok)
	})
}

func isVoidElement(tag string) bool {
	switch tag {
	case "area", "base", "br", "col", "embed", "hr", "img", "input",
		"link", "meta", "param", "source", "track", "wbr":
		return true
	}
	return false
}
