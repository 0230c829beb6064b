// Пакет video приводит ссылки на видео к каноническому адресу для встраивания.
package video

import (
	"regexp"
	"strings"
)

const (
	embedPrefix = "https://www.youtube.com/embed/"
	idLength    = 11
)

var youtubeReg = regexp.MustCompile(`^.*(youtu.be\/|v\/|u\/\w\/|embed\/|watch\?v=|&v=)([^#&?]*).*`)

// NormalizeURL возвращает адрес для iframe или false, если ссылка не распознана.
// Уже нормализованные ссылки (содержащие /embed/) возвращаются без изменений.
// Сетевых запросов не выполняет.
func NormalizeURL(input string) (string, bool) {
	if input == "" {
		return "", false
	}

	if strings.Contains(input, "/embed/") {
		return input, true
	}

	match := youtubeReg.FindStringSubmatch(input)
	if match == nil || len(match[2]) != idLength {
		return "", false
	}

	return embedPrefix + match[2], true
}

// ID извлекает идентификатор видео из канонического адреса.
func ID(embedURL string) string {
	_, id, ok := strings.Cut(embedURL, "/embed/")
	if !ok {
		return ""
	}
	if i := strings.IndexAny(id, "?#&/"); i >= 0 {
		id = id[:i]
	}
	return id
}
