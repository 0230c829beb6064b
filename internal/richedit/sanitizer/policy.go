package sanitizer

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
)

// Wildcard - ключ списка атрибутов, разрешенных для всех тегов.
const Wildcard = "*"

// AllowList - политика очистки: разрешенные теги и атрибуты по тегам.
// Все, что не разрешено явно, удаляется.
type AllowList struct {
	Tags       []string            `json:"tags"`
	Attributes map[string][]string `json:"attributes"`

	// Схемы URL для href, src и cite. Относительные ссылки разрешены всегда.
	Schemes      []string            `json:"schemes,omitempty"`
	SchemesByTag map[string][]string `json:"schemes_by_tag,omitempty"`
}

// Теги по умолчанию sanitize-html, общие для обеих политик
var baseTags = []string{
	"address", "article", "aside", "footer", "header",
	"h1", "h2", "h3", "h4", "h5", "h6", "hgroup", "main", "nav", "section",
	"blockquote", "dd", "div", "dl", "dt", "figcaption", "figure", "hr", "li", "ol", "p", "pre", "ul",
	"a", "abbr", "b", "bdi", "bdo", "br", "cite", "code", "data", "dfn", "em", "i", "kbd", "mark",
	"q", "rb", "rp", "rt", "rtc", "ruby", "s", "samp", "small", "span", "strong", "sub", "sup",
	"time", "u", "var", "wbr",
	"caption", "col", "colgroup", "table", "tbody", "td", "tfoot", "th", "thead", "tr",
}

var defaultSchemes = []string{"http", "https", "ftp", "mailto", "tel"}

// GeneralPolicy - политика для произвольного HTML: заголовки, списки, строчное
// форматирование, таблицы, изображения и встроенное видео.
func GeneralPolicy() *AllowList {
	return &AllowList{
		Tags: merged(baseTags, []string{"img", "iframe"}),
		Attributes: map[string][]string{
			Wildcard: {"style", "class"},
			"a":      {"href", "name", "target"},
			"img":    {"src", "width", "height"},
			"iframe": {"src", "width", "height", "allowfullscreen", "frameborder"},
			"td":     {"colspan", "rowspan"},
			"th":     {"colspan", "rowspan"},
		},
		Schemes:      slices.Clone(defaultSchemes),
		SchemesByTag: map[string][]string{"img": {"data", "blob"}},
	}
}

// PastePolicy - политика вставки из текстовых процессоров. Дополнительно разрешает
// align у всех тегов и размеры таблиц и ячеек, на которых держится верстка Word.
func PastePolicy() *AllowList {
	return &AllowList{
		Tags: merged(baseTags, []string{"img", "iframe"}),
		Attributes: map[string][]string{
			Wildcard: {"style", "class", "align"},
			"a":      {"href", "name", "target"},
			"img":    {"src", "width", "height", "alt"},
			"iframe": {"src", "width", "height", "allowfullscreen", "frameborder"},
			"td":     {"colspan", "rowspan", "width"},
			"th":     {"colspan", "rowspan", "width"},
			"table":  {"border", "cellpadding", "cellspacing", "width"},
		},
		Schemes:      slices.Clone(defaultSchemes),
		SchemesByTag: map[string][]string{"img": {"data", "blob"}},
	}
}

// LoadPolicy читает политику из JSON. Имена тегов и атрибутов приводятся к нижнему регистру.
func LoadPolicy(r io.Reader) (*AllowList, error) {
	var a AllowList
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&a); err != nil {
		return nil, fmt.Errorf("decode allow-list: %w", err)
	}
	if len(a.Tags) == 0 {
		return nil, fmt.Errorf("allow-list has no tags")
	}
	return a.normalized(), nil
}

// Merge возвращает новую политику - объединение a и other.
func (a *AllowList) Merge(other *AllowList) *AllowList {
	if other == nil {
		return a.Clone()
	}
	out := a.Clone()
	out.Tags = merged(out.Tags, other.Tags)
	out.Schemes = merged(out.Schemes, other.Schemes)
	for tag, attrs := range other.Attributes {
		out.Attributes[tag] = merged(out.Attributes[tag], attrs)
	}
	for tag, schemes := range other.SchemesByTag {
		out.SchemesByTag[tag] = merged(out.SchemesByTag[tag], schemes)
	}
	return out.normalized()
}

func (a *AllowList) Clone() *AllowList {
	out := &AllowList{
		Tags:         slices.Clone(a.Tags),
		Schemes:      slices.Clone(a.Schemes),
		Attributes:   make(map[string][]string, len(a.Attributes)),
		SchemesByTag: make(map[string][]string, len(a.SchemesByTag)),
	}
	for k, v := range a.Attributes {
		out.Attributes[k] = slices.Clone(v)
	}
	for k, v := range a.SchemesByTag {
		out.SchemesByTag[k] = slices.Clone(v)
	}
	return out
}

// AllowsTag сообщает, разрешен ли тег.
func (a *AllowList) AllowsTag(tag string) bool {
	return slices.Contains(a.Tags, strings.ToLower(tag))
}

// AllowsAttr сообщает, разрешен ли атрибут у тега с учетом общего списка.
func (a *AllowList) AllowsAttr(tag, attr string) bool {
	return slices.Contains(a.Attributes[Wildcard], attr) || slices.Contains(a.Attributes[tag], attr)
}

func (a *AllowList) normalized() *AllowList {
	out := &AllowList{
		Tags:         lowerSorted(a.Tags),
		Schemes:      lowerSorted(a.Schemes),
		Attributes:   make(map[string][]string, len(a.Attributes)),
		SchemesByTag: make(map[string][]string, len(a.SchemesByTag)),
	}
	for k, v := range a.Attributes {
		out.Attributes[strings.ToLower(k)] = lowerSorted(v)
	}
	for k, v := range a.SchemesByTag {
		out.SchemesByTag[strings.ToLower(k)] = lowerSorted(v)
	}
	return out
}

// compiled - политика в виде множеств для одного прохода очистки.
type compiled struct {
	tags         map[string]bool
	attrs        map[string]map[string]bool
	schemes      map[string]bool
	schemesByTag map[string]map[string]bool
}

func (a *AllowList) compile() *compiled {
	c := &compiled{
		tags:         toSet(a.Tags),
		attrs:        make(map[string]map[string]bool, len(a.Attributes)),
		schemes:      toSet(a.Schemes),
		schemesByTag: make(map[string]map[string]bool, len(a.SchemesByTag)),
	}
	for k, v := range a.Attributes {
		c.attrs[strings.ToLower(k)] = toSet(v)
	}
	for k, v := range a.SchemesByTag {
		c.schemesByTag[strings.ToLower(k)] = toSet(v)
	}
	return c
}

func (c *compiled) attrAllowed(tag, attr string) bool {
	return c.attrs[Wildcard][attr] || c.attrs[tag][attr]
}

func (c *compiled) schemeAllowed(tag, scheme string) bool {
	return c.schemes[scheme] || c.schemesByTag[tag][scheme]
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[strings.ToLower(strings.TrimSpace(v))] = true
	}
	return set
}

func merged(a, b []string) []string {
	out := slices.Concat(a, b)
	slices.Sort(out)
	return slices.Compact(out)
}

func lowerSorted(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
