package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Exist сообщает, задана ли переменная окружения key, даже пустая.
func Exist(key string) bool {
	_, exist := os.LookupEnv(key)
	return exist
}

// GetEnv возвращает значение переменной без пробелов по краям.
func GetEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// GetIntEnv возвращает числовую переменную, 0 если она не число. Значения
// по умолчанию подставляет Load.
func GetIntEnv(key string) int {
	v, err := strconv.Atoi(GetEnv(key))
	if err != nil {
		return 0
	}
	return v
}

func GetBoolEnv(key string) bool {
	v, _ := strconv.ParseBool(GetEnv(key))
	return v
}

// GetURLEnv разбирает абсолютный http(s) адрес из переменной key. Завершающий
// слэш отбрасывается: адрес служит префиксом для ссылок на blob и файлы.
func GetURLEnv(key string) (*url.URL, error) {
	raw := GetEnv(key)
	if raw == "" {
		return nil, fmt.Errorf("%s is required", key)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s incorrect: %w", key, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%s must be an absolute http(s) URL, got %q", key, raw)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawQuery, u.Fragment = "", ""
	return u, nil
}
