package tiptap

import (
	"strconv"
	"strings"

	"github.com/aisa-it/richedit/internal/richedit/editor/edtypes"
)

// getAttrString безопасно извлекает строковый атрибут из map.
func getAttrString(attrs map[string]interface{}, key string) string {
	if attrs == nil {
		return ""
	}
	val, ok := attrs[key]
	if !ok {
		return ""
	}
	str, ok := val.(string)
	if !ok {
		return ""
	}
	return str
}

// getAttrInt безопасно извлекает целочисленный атрибут из map.
func getAttrInt(attrs map[string]interface{}, key string) int {
	if attrs == nil {
		return 0
	}
	val, ok := attrs[key]
	if !ok {
		return 0
	}

	// Может быть float64 из JSON
	if f, ok := val.(float64); ok {
		return int(f)
	}

	// Может быть int
	if i, ok := val.(int); ok {
		return i
	}

	return 0
}

// getAttrInts извлекает массив чисел (colwidth), null дает nil.
func getAttrInts(attrs map[string]interface{}, key string) []int {
	if ints, ok := attrs[key].([]int); ok {
		return append([]int(nil), ints...)
	}
	raw, ok := attrs[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]int, 0, len(raw))
	for _, v := range raw {
		switch n := v.(type) {
		case float64:
			out = append(out, int(n))
		case int:
			out = append(out, n)
		}
	}
	return out
}

// getAttrLength извлекает CSS длину медиа ноды. Число трактуется как пиксели,
// недопустимое значение заменяется на def.
func getAttrLength(attrs map[string]interface{}, key, def string) string {
	var raw string
	switch v := attrs[key].(type) {
	case string:
		raw = strings.TrimSpace(v)
	case float64:
		raw = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		raw = strconv.Itoa(v)
	default:
		return def
	}

	if _, err := strconv.ParseFloat(raw, 64); err == nil && raw != "0" {
		raw += "px"
	}
	if !edtypes.IsCSSLength(raw) {
		return def
	}
	return raw
}

// parseStyleAttr парсит CSS style строку в map key-value пар.
// Например: "background-color: red; color: blue;" -> {"background-color": "red", "color": "blue"}
func parseStyleAttr(style string) map[string]string {
	result := make(map[string]string)
	if style == "" {
		return result
	}

	parts := strings.Split(style, ";")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		kv := strings.SplitN(part, ":", 2)
		if len(kv) != 2 {
			continue
		}

		key := strings.TrimSpace(kv[0])
		value := strings.TrimSpace(kv[1])
		if key != "" && value != "" {
			result[key] = value
		}
	}

	return result
}

// parseTextAlign конвертирует строковое значение выравнивания в TextAlign.
func parseTextAlign(align string) edtypes.TextAlign {
	return edtypes.ParseTextAlign(align)
}
