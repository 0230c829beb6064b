// Пакет editor - модель состояния редактора: схема из расширений, разбор HTML по схеме,
// отрисовка документа в HTML, транзакции, история и команды.
//
// Основные возможности:
//   - Сборка схемы из расширений (ноды, марки, глобальные атрибуты, команды).
//   - Разбор HTML с учетом схемы: неподдерживаемые конструкции отбрасываются.
//   - Атомарные транзакции над документом и выделением, undo/redo.
//   - Вычисление активного форматирования для панели инструментов.
package editor

import (
	"fmt"
	"io"
	"math"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/aisa-it/richedit/internal/richedit/video"
	"golang.org/x/net/html"
)

var (
	whitespaceReg = regexp.MustCompile(`[ \t\r\n\f]+`)
	languageReg   = regexp.MustCompile(`(?:^|\s)language-(\S+)`)
)

// Содержимое этих тегов не разбирается
var ignoredTags = []string{"head", "script", "style", "title", "meta", "link", "template", "noscript", "object", "embed", "svg", "math"}

// Теги-обертки, содержимое которых разбирается как последовательность блоков
var containerTags = []string{"html", "body", "div", "section", "article", "header", "footer", "main", "nav", "aside", "figure", "figcaption", "center", "form", "fieldset", "details", "summary", "address", "dl", "dt", "dd", "thead", "tbody", "tfoot", "tr", "td", "th", "li", "ul", "ol", "table", "caption"}

// Fragment - последовательность блочных нод, полученная разбором HTML.
type Fragment struct {
	Content []any
}

// ParseWarning - конструкция, исправленная или отброшенная при разборе. Не является ошибкой.
type ParseWarning struct {
	Tag    string
	Reason string
}

func (w ParseWarning) String() string {
	return fmt.Sprintf("<%s>: %s", w.Tag, w.Reason)
}

// ParseResult - результат разбора HTML.
type ParseResult struct {
	Fragment *Fragment
	Warnings []ParseWarning
}

// ParseHTML разбирает HTML в фрагмент документа по схеме. Ноды и марки, отсутствующие в схеме,
// не создаются: обертки разворачиваются, содержимое сохраняется, форматирование отбрасывается.
func ParseHTML(r io.Reader, schema *Schema) (*ParseResult, error) {
	rootNode, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	p := &parser{schema: schema}
	body := getBody(rootNode)
	if body == nil {
		return &ParseResult{Fragment: &Fragment{Content: make([]any, 0)}}, nil
	}

	content := p.parseBlocks(body)
	if content == nil {
		content = make([]any, 0)
	}
	return &ParseResult{Fragment: &Fragment{Content: content}, Warnings: p.warnings}, nil
}

// ParseDocument разбирает HTML в документ по стандартной схеме.
func ParseDocument(r io.Reader) (*Document, error) {
	res, err := ParseHTML(r, DefaultSchema())
	if err != nil {
		return nil, err
	}
	return &Document{Elements: res.Fragment.Content}, nil
}

type parser struct {
	schema   *Schema
	warnings []ParseWarning
}

func (p *parser) warn(tag, reason string) {
	p.warnings = append(p.warnings, ParseWarning{Tag: tag, Reason: reason})
}

// parseBlocks разбирает детей контейнера в список блоков. Строчное содержимое вне блоков
// собирается в неявный параграф.
func (p *parser) parseBlocks(parent *html.Node) []any {
	var blocks []any
	var inline []any

	flush := func() {
		blocks = append(blocks, p.splitInline(inline, func(content []any) any {
			return &Paragraph{Content: content}
		}, false)...)
		inline = nil
	}

	for el := parent.FirstChild; el != nil; el = el.NextSibling {
		switch el.Type {
		case html.TextNode:
			if inline == nil && strings.TrimSpace(el.Data) == "" {
				continue
			}
			inline = append(inline, p.parseInline(el, Text{}, false)...)
		case html.ElementNode:
			if slices.Contains(ignoredTags, el.Data) {
				continue
			}
			if name, ok := p.schema.NodeForTag(el.Data); ok && p.schema.IsBlock(name) {
				flush()
				blocks = append(blocks, p.parseBlock(name, el)...)
				continue
			}
			if _, known := p.schema.NodeForTag(el.Data); !known && slices.Contains(structuralTags, el.Data) {
				p.warn(el.Data, "unsupported node unwrapped")
			}
			if slices.Contains(containerTags, el.Data) || slices.Contains(structuralTags, el.Data) {
				flush()
				blocks = append(blocks, p.parseBlocks(el)...)
				continue
			}
			inline = append(inline, p.parseInline(el, Text{}, false)...)
		}
	}
	flush()

	return blocks
}

// Теги блочных нод, которые могут отсутствовать в схеме
var structuralTags = []string{"p", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote", "pre", "hr", "ul", "ol", "table"}

func (p *parser) parseBlock(name string, el *html.Node) []any {
	switch name {
	case "paragraph":
		align := p.parseAlign(name, el)
		return p.splitInline(p.parseInlineChildren(el, Text{}, false), func(content []any) any {
			return &Paragraph{Content: content, Align: align}
		}, true)
	case "heading":
		level, _ := strconv.Atoi(strings.TrimPrefix(el.Data, "h"))
		align := p.parseAlign(name, el)
		return p.splitInline(p.parseInlineChildren(el, Text{}, false), func(content []any) any {
			return &Heading{Level: level, Content: content, Align: align}
		}, true)
	case "blockquote":
		content := p.parseBlocks(el)
		if len(content) == 0 {
			content = []any{&Paragraph{}}
		}
		return []any{&Quote{Content: content}}
	case "codeBlock":
		return []any{p.parseCode(el)}
	case "bulletList", "orderedList":
		if list := p.parseList(el); list != nil {
			return []any{list}
		}
		p.warn(el.Data, "empty list dropped")
		return nil
	case "horizontalRule":
		return []any{&HorizontalRule{}}
	case "table":
		if t := p.parseTable(el); t != nil {
			return []any{t}
		}
		p.warn(el.Data, "empty table dropped")
		return nil
	case "image":
		if img := p.parseImage(el); img != nil {
			return []any{img}
		}
		return nil
	case "youtube":
		if v := p.parseVideo(el); v != nil {
			return []any{v}
		}
		return nil
	}
	return p.parseBlocks(el)
}

// splitInline превращает строчное содержимое в блоки: поднятые медиа ноды разрывают текст.
// keepEmpty сохраняет пустой блок, если в исходном элементе не было медиа.
func (p *parser) splitInline(items []any, wrap func([]any) any, keepEmpty bool) []any {
	var blocks []any
	var cur []any
	lifted := false

	emit := func() {
		content := normalizeInline(cur)
		cur = nil
		if len(content) == 0 {
			return
		}
		blocks = append(blocks, wrap(content))
	}

	for _, item := range items {
		switch item.(type) {
		case *Image, *Video:
			emit()
			blocks = append(blocks, item)
			lifted = true
		default:
			cur = append(cur, item)
		}
	}
	emit()

	if len(blocks) == 0 && keepEmpty && !lifted {
		blocks = append(blocks, wrap(make([]any, 0)))
	}
	return blocks
}

func (p *parser) parseInlineChildren(parent *html.Node, marks Text, pre bool) []any {
	var items []any
	for el := parent.FirstChild; el != nil; el = el.NextSibling {
		items = append(items, p.parseInline(el, marks, pre)...)
	}
	return items
}

// parseInline разбирает строчный элемент с унаследованным форматированием marks.
func (p *parser) parseInline(el *html.Node, marks Text, pre bool) []any {
	switch el.Type {
	case html.TextNode:
		text := marks
		text.Content = el.Data
		if !pre {
			text.Content = whitespaceReg.ReplaceAllString(el.Data, " ")
		}
		if text.Content == "" {
			return nil
		}
		return []any{text}
	case html.ElementNode:
	default:
		return nil
	}

	if slices.Contains(ignoredTags, el.Data) {
		return nil
	}

	switch el.Data {
	case "br":
		if p.schema.HasNode("hardBreak") {
			return []any{&HardBreak{}}
		}
		text := marks
		text.Content = " "
		return []any{text}
	case "img":
		if !p.schema.HasNode("image") {
			p.warn(el.Data, "unsupported node dropped")
			return nil
		}
		if img := p.parseImage(el); img != nil {
			return []any{img}
		}
		return nil
	case "iframe":
		if !p.schema.HasNode("youtube") {
			p.warn(el.Data, "unsupported node dropped")
			return nil
		}
		if v := p.parseVideo(el); v != nil {
			return []any{v}
		}
		return nil
	}

	for _, mark := range p.schema.MarksForTag(el.Data) {
		p.applyTagMark(mark, el, &marks)
	}
	p.parseTextStyles(el, &marks)

	return p.parseInlineChildren(el, marks, pre)
}

func (p *parser) applyTagMark(mark string, el *html.Node, text *Text) {
	switch mark {
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
	case "link":
		href := strings.TrimSpace(getAttrValue("href", el.Attr))
		if u, err := url.Parse(href); err == nil && href != "" {
			text.URL = u
			text.Target = getAttrValue("target", el.Attr)
		}
	case "highlight":
		color := getAttrValue("data-color", el.Attr)
		if color == "" {
			color = styleValue(el, "background-color")
		}
		if c, err := ParseColor(color); err == nil {
			text.BgColor = &c
		} else {
			c := defaultHighlight
			text.BgColor = &c
		}
	case "textStyle":
		if el.Data == "font" && p.schema.HasAttr("textStyle", "color") {
			if c, err := ParseColor(getAttrValue("color", el.Attr)); err == nil {
				text.Color = &c
			}
		}
	}
}

var defaultHighlight = Color{R: 0xff, G: 0xff, B: 0x00, A: 0xff}

// parseTextStyles извлекает форматирование из атрибута style. Учитываются только
// марки и атрибуты, объявленные в схеме.
func (p *parser) parseTextStyles(node *html.Node, text *Text) {
	for _, style := range parseStyles(getAttrValue("style", node.Attr)) {
		if style.Val == "inherit" || style.Val == "" {
			continue
		}

		switch style.Key {
		case "font-weight":
			if p.schema.HasMark("bold") {
				text.Strong = isBoldWeight(style.Val)
			}
		case "font-style":
			if p.schema.HasMark("italic") {
				text.Italic = style.Val == "italic" || style.Val == "oblique"
			}
		case "text-decoration", "text-decoration-line":
			if p.schema.HasMark("underline") && strings.Contains(style.Val, "underline") {
				text.Underlined = true
			}
			if p.schema.HasMark("strike") && strings.Contains(style.Val, "line-through") {
				text.Strikethrough = true
			}
		case "vertical-align":
			if p.schema.HasMark("superscript") && style.Val == "super" {
				text.Sup = true
			}
			if p.schema.HasMark("subscript") && style.Val == "sub" {
				text.Sub = true
			}
		case "font-size":
			if p.schema.HasAttr("textStyle", "fontSize") {
				if size := fontSizeToPx(style.Val); size > 0 {
					text.Size = size
				}
			}
		case "font-family":
			if p.schema.HasAttr("textStyle", "fontFamily") {
				text.FontFamily = strings.Trim(style.Val, `"' `)
			}
		case "color":
			if p.schema.HasAttr("textStyle", "color") {
				if c, err := ParseColor(style.Val); err == nil {
					text.Color = &c
				}
			}
		case "background-color", "background":
			if p.schema.HasMark("highlight") {
				if c, err := ParseColor(style.Val); err == nil {
					text.BgColor = &c
				}
			}
		}
	}
}

func isBoldWeight(raw string) bool {
	switch raw {
	case "bold", "bolder":
		return true
	}
	w, err := strconv.Atoi(raw)
	return err == nil && w >= 600
}

// fontSizeToPx переводит размер шрифта в пиксели, поддерживаются px и pt.
func fontSizeToPx(raw string) int {
	switch {
	case strings.HasSuffix(raw, "px"):
		f, err := strconv.ParseFloat(strings.TrimSuffix(raw, "px"), 64)
		if err != nil {
			return 0
		}
		return int(math.Round(f))
	case strings.HasSuffix(raw, "pt"):
		f, err := strconv.ParseFloat(strings.TrimSuffix(raw, "pt"), 64)
		if err != nil {
			return 0
		}
		return int(math.Round(f * 4 / 3))
	}
	i, _ := strconv.Atoi(raw)
	return i
}

func (p *parser) parseAlign(nodeName string, el *html.Node) TextAlign {
	if !p.schema.HasAttr(nodeName, "textAlign") {
		return LeftAlign
	}
	if v := styleValue(el, "text-align"); v != "" {
		return toTextAlign(v)
	}
	return toTextAlign(getAttrValue("align", el.Attr))
}

func (p *parser) parseCode(root *html.Node) *Code {
	var text strings.Builder
	code := &Code{}
	iterNodes(root, func(child *html.Node) bool {
		if child.Type == html.ElementNode && child.Data == "code" && code.Language == "" {
			if m := languageReg.FindStringSubmatch(getAttrValue("class", child.Attr)); m != nil {
				code.Language = m[1]
			}
		}
		if child.Type == html.ElementNode && child.Data == "br" {
			text.WriteString("\n")
		}
		if child.Type != html.TextNode {
			return false
		}
		text.WriteString(child.Data)
		return false
	})
	code.Content = text.String()
	return code
}

func (p *parser) parseList(root *html.Node) *List {
	list := &List{Numbered: root.Data == "ol"}
	if list.Numbered {
		list.Start, _ = strconv.Atoi(getAttrValue("start", root.Attr))
		if list.Start == 0 {
			list.Start = 1
		}
	}

	for li := root.FirstChild; li != nil; li = li.NextSibling {
		switch {
		case li.Type == html.ElementNode && li.Data == "li":
			list.Elements = append(list.Elements, ListElement{Content: ensureParagraph(p.parseBlocks(li))})
		case li.Type == html.ElementNode && (li.Data == "ul" || li.Data == "ol"):
			// вложенный список без li присоединяется к предыдущему элементу
			nested := p.parseList(li)
			if nested == nil {
				continue
			}
			if n := len(list.Elements); n > 0 {
				list.Elements[n-1].Content = append(list.Elements[n-1].Content, nested)
			} else {
				list.Elements = append(list.Elements, ListElement{Content: []any{&Paragraph{}, nested}})
			}
		case li.Type == html.TextNode && strings.TrimSpace(li.Data) == "":
		default:
			wrapper := &html.Node{Type: html.ElementNode, Data: "li"}
			wrapper.AppendChild(cloneHTML(li))
			list.Elements = append(list.Elements, ListElement{Content: ensureParagraph(p.parseBlocks(wrapper))})
		}
	}

	if len(list.Elements) == 0 {
		return nil
	}
	return list
}

func ensureParagraph(blocks []any) []any {
	if len(blocks) == 0 {
		return []any{&Paragraph{Content: make([]any, 0)}}
	}
	return blocks
}

func (p *parser) parseTable(root *html.Node) *Table {
	table := new(Table)
	headerAllowed := p.schema.HasNode("tableHeader")

	var walkRows func(n *html.Node)
	walkRows = func(n *html.Node) {
		for tr := n.FirstChild; tr != nil; tr = tr.NextSibling {
			if tr.Type != html.ElementNode {
				continue
			}
			switch tr.Data {
			case "thead", "tbody", "tfoot":
				walkRows(tr)
				continue
			case "tr":
			default:
				continue
			}

			var row []TableCell
			for td := tr.FirstChild; td != nil; td = td.NextSibling {
				if td.Type != html.ElementNode || (td.Data != "td" && td.Data != "th") {
					continue
				}
				row = append(row, p.parseCell(td, headerAllowed))
			}
			if len(row) > 0 {
				table.Rows = append(table.Rows, row)
			}
		}
	}
	walkRows(root)

	if len(table.Rows) == 0 {
		return nil
	}
	return table
}

func (p *parser) parseCell(td *html.Node, headerAllowed bool) TableCell {
	cell := TableCell{Header: td.Data == "th" && headerAllowed}

	cell.ColSpan, _ = strconv.Atoi(getAttrValue("colspan", td.Attr))
	cell.RowSpan, _ = strconv.Atoi(getAttrValue("rowspan", td.Attr))
	cell.ColSpan = max(cell.ColSpan, 1)
	cell.RowSpan = max(cell.RowSpan, 1)

	if raw := getAttrValue("colwidth", td.Attr); raw != "" {
		for _, w := range strings.Split(raw, ",") {
			cell.ColWidth = append(cell.ColWidth, sizeToInt(w))
		}
	} else if w := sizeToInt(getAttrValue("width", td.Attr)); w > 0 {
		cell.ColWidth = []int{w}
	}

	if p.schema.HasAttr(cell.NodeName(), "backgroundColor") {
		cell.BackgroundColor = getAttrValue("data-background-color", td.Attr)
		if cell.BackgroundColor == "" {
			if bg := styleValue(td, "background-color"); bg != "" {
				if _, err := ParseColor(bg); err == nil {
					cell.BackgroundColor = bg
				}
			}
		}
	}

	cell.Content = ensureParagraph(p.parseBlocks(td))
	return cell
}

func (p *parser) parseImage(el *html.Node) *Image {
	src := strings.TrimSpace(getAttrValue("src", el.Attr))
	if src == "" {
		p.warn(el.Data, "image without src dropped")
		return nil
	}

	img := &Image{
		Src:    src,
		Alt:    getAttrValue("alt", el.Attr),
		Title:  getAttrValue("title", el.Attr),
		Width:  p.schema.Default("image", "width"),
		Height: p.schema.Default("image", "height"),
		Align:  p.parseAlign("image", el),
	}
	if w := parseLength(el, "width"); w != "" {
		img.Width = w
	}
	if h := parseLength(el, "height"); h != "" {
		img.Height = h
	}
	return img
}

func (p *parser) parseVideo(el *html.Node) *Video {
	src, ok := video.NormalizeURL(strings.TrimSpace(getAttrValue("src", el.Attr)))
	if !ok {
		p.warn(el.Data, "unsupported embed dropped")
		return nil
	}

	v := &Video{
		Src:    src,
		Width:  p.schema.Default("youtube", "width"),
		Height: p.schema.Default("youtube", "height"),
		Align:  p.parseAlign("youtube", el),
	}
	if w := parseLength(el, "width"); w != "" {
		v.Width = w
	}
	if h := parseLength(el, "height"); h != "" {
		v.Height = h
	}
	return v
}

// parseLength читает размер из атрибута или стиля. Число без единиц считается пикселями.
func parseLength(el *html.Node, key string) string {
	raw := strings.TrimSpace(getAttrValue(key, el.Attr))
	if raw == "" {
		raw = styleValue(el, key)
	}
	if raw == "" {
		return ""
	}
	if _, err := strconv.ParseFloat(raw, 64); err == nil {
		raw += "px"
	}
	if !IsCSSLength(raw) {
		return ""
	}
	return raw
}

// normalizeInline склеивает соседние тексты с одинаковым форматированием
// и обрезает пробелы по краям блока.
func normalizeInline(items []any) []any {
	out := make([]any, 0, len(items))
	for _, item := range items {
		t, ok := item.(Text)
		if !ok {
			out = append(out, item)
			continue
		}
		if n := len(out); n > 0 {
			if prev, ok := out[n-1].(Text); ok && prev.SameMarks(t) {
				prev.Content += t.Content
				out[n-1] = prev
				continue
			}
		}
		out = append(out, t)
	}

	if n := len(out); n > 0 {
		if t, ok := out[0].(Text); ok {
			t.Content = strings.TrimLeft(t.Content, " ")
			out[0] = t
		}
		if t, ok := out[n-1].(Text); ok {
			t.Content = strings.TrimRight(t.Content, " ")
			out[n-1] = t
		}
	}

	return slices.DeleteFunc(out, func(item any) bool {
		t, ok := item.(Text)
		return ok && t.Content == ""
	})
}

func findElementByTagName(rootNode *html.Node, tagName string) *html.Node {
	var el *html.Node
	iterNodes(rootNode, func(child *html.Node) bool {
		if el != nil {
			return true
		}
		if child.Type == html.ElementNode && child.Data == tagName {
			el = child
			return true
		}
		return false
	})
	return el
}

func getBody(rootNode *html.Node) *html.Node {
	return findElementByTagName(rootNode, "body")
}

func iterNodes(node *html.Node, f func(child *html.Node) bool) {
	if f(node) {
		return
	}
	for p := node.FirstChild; p != nil; p = p.NextSibling {
		iterNodes(p, f)
	}
}

func getAttrValue(key string, attrs []html.Attribute) string {
	for _, attr := range attrs {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func styleValue(el *html.Node, key string) string {
	for _, style := range parseStyles(getAttrValue("style", el.Attr)) {
		if style.Key == key {
			return style.Val
		}
	}
	return ""
}

func cloneHTML(n *html.Node) *html.Node {
	c := &html.Node{Type: n.Type, Data: n.Data, DataAtom: n.DataAtom, Namespace: n.Namespace, Attr: slices.Clone(n.Attr)}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.AppendChild(cloneHTML(child))
	}
	return c
}

func toTextAlign(raw string) TextAlign {
	return ParseTextAlign(raw)
}

func parseStyles(raw string) []html.Attribute {
	var res []html.Attribute
	for styleRaw := range strings.SplitSeq(raw, ";") {
		key, val, ok := strings.Cut(styleRaw, ":")
		if !ok {
			continue
		}
		res = append(res, html.Attribute{
			Key: strings.ToLower(strings.TrimSpace(key)),
			Val: strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(val), "!important")),
		})
	}
	return res
}

func sizeToInt(raw string) int {
	i, _ := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(raw), "px"))
	return i
}
