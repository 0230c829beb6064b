// Управление конфигурацией сервера редактора из переменных окружения.
// Содержит структуру Config для хранения параметров и функцию ReadConfig для их загрузки из переменных окружения.
//
// Основные возможности:
//   - Загрузка конфигурации из переменных окружения с использованием тегов struct.
//   - Валидация обязательных переменных.
//   - Маскировка секретных значений в логах.
//   - Значения по умолчанию для лимитов изображений, сессий и истории.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"reflect"
	"slices"
	"strings"
)

const (
	ResolverDataURI = "datauri"
	ResolverBlob    = "blob"
	ResolverStorage = "storage"

	DefaultImageMaxBytes = 5 * 1024 * 1024
)

var ErrWebURLRequired = errors.New("WEB_URL is required")

type Config struct {
	ListenAddr  string `env:"LISTEN_ADDR"`
	MetricsAddr string `env:"METRICS_ADDR"`

	WebURLRaw string `env:"WEB_URL"`
	WebURL    *url.URL

	ImageMaxBytes       int    `env:"IMAGE_MAX_BYTES"`
	ImageResolver       string `env:"IMAGE_RESOLVER"`
	ImageMaxDimension   int    `env:"IMAGE_MAX_DIMENSION"`
	ImageResolveDelayMs int    `env:"IMAGE_RESOLVE_DELAY_MS"`
	BlobTTLMinutes      int    `env:"BLOB_TTL_MINUTES"`

	SessionTTLMinutes int `env:"SESSION_TTL_MINUTES"`
	MaxSessions       int `env:"MAX_SESSIONS"`
	HistoryLimit      int `env:"HISTORY_LIMIT"`

	PastePolicyPath    string `env:"PASTE_POLICY_PATH"`
	PasteAlwaysReparse bool   `env:"PASTE_ALWAYS_REPARSE"`
	ExportMinify       bool   `env:"EXPORT_MINIFY"`

	AWSAccessKey  string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey  string `env:"AWS_SECRET_ACCESS_KEY"`
	AWSEndpoint   string `env:"AWS_S3_ENDPOINT_URL"`
	AWSBucketName string `env:"AWS_S3_BUCKET_NAME"`
	AWSUseSSL     bool   `env:"AWS_S3_USE_SSL"`

	LocalStoragePath string `env:"LOCAL_STORAGE_PATH"`
}

// ReadConfig загружает конфигурацию из переменных окружения. При ошибке приложение завершает работу.
func ReadConfig() *Config {
	config, err := Load()
	if err != nil {
		slog.Error("Read config", "err", err)
		os.Exit(1)
	}
	return config
}

// Load загружает и проверяет конфигурацию, подставляя значения по умолчанию.
func Load() (*Config, error) {
	config := &Config{}

	envConfig("env", config)

	// Check required envs
	if config.WebURLRaw == "" {
		return nil, ErrWebURLRequired
	}
	var err error
	if config.WebURL, err = GetURLEnv("WEB_URL"); err != nil {
		return nil, err
	}

	if config.ListenAddr == "" {
		config.ListenAddr = ":8080"
	}
	if config.MetricsAddr == "" {
		config.MetricsAddr = ":2112"
	}

	if config.ImageMaxBytes <= 0 {
		config.ImageMaxBytes = DefaultImageMaxBytes
	}
	if config.ImageMaxDimension < 0 {
		config.ImageMaxDimension = 0
	}
	if config.ImageResolveDelayMs < 0 {
		config.ImageResolveDelayMs = 0
	}
	config.ImageResolver = strings.ToLower(config.ImageResolver)
	if config.ImageResolver == "" {
		config.ImageResolver = ResolverDataURI
	}
	if !slices.Contains([]string{ResolverDataURI, ResolverBlob, ResolverStorage}, config.ImageResolver) {
		return nil, fmt.Errorf("IMAGE_RESOLVER %q is not one of datauri, blob, storage", config.ImageResolver)
	}
	if config.ImageResolver == ResolverStorage && config.AWSEndpoint == "" && config.LocalStoragePath == "" {
		return nil, fmt.Errorf("IMAGE_RESOLVER=storage requires AWS_S3_ENDPOINT_URL or LOCAL_STORAGE_PATH")
	}

	if config.BlobTTLMinutes <= 0 {
		config.BlobTTLMinutes = 60
	}
	if config.SessionTTLMinutes <= 0 {
		config.SessionTTLMinutes = 120
	}
	if config.MaxSessions <= 0 {
		config.MaxSessions = 1000
	}
	if !Exist("HISTORY_LIMIT") || config.HistoryLimit < 0 {
		config.HistoryLimit = 100
	}

	return config, nil
}

// Присваивает полям в переданной структуре значения переменных. Название переменной для каждого поля лежит в теге этого поля.
func envConfig(key string, s interface{}) {
	v := reflect.ValueOf(s).Elem()
	typeParam := v.Type()
	for i := 0; i < v.NumField(); i++ {
		fName := typeParam.Field(i).Name
		fEnvTag := typeParam.Field(i).Tag.Get(key)

		if !Exist(fEnvTag) {
			continue
		}

		logValue := GetEnv(fEnvTag)
		if logValue == "" {
			continue
		}

		// Secure passwords in log
		if isSecret(fName) {
			logValue = mask(logValue)
		}
		slog.Info("Set config value",
			slog.String("key", typeParam.Name()+"."+fName),
			slog.String("value", logValue),
			slog.String("source", "ENVIRONMENT"),
		)

		switch v.Field(i).Interface().(type) {
		case string:
			v.Field(i).SetString(GetEnv(fEnvTag))
		case int:
			v.Field(i).SetInt(int64(GetIntEnv(fEnvTag)))
		case bool:
			v.Field(i).SetBool(GetBoolEnv(fEnvTag))
		}
	}
}

func isSecret(field string) bool {
	name := strings.ToLower(field)
	return strings.Contains(name, "pass") || strings.Contains(name, "secret") || strings.Contains(name, "token")
}

// mask оставляет первый и последний символ значения.
func mask(value string) string {
	runes := []rune(value)
	if len(runes) <= 2 {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[0]) + strings.Repeat("*", len(runes)-2) + string(runes[len(runes)-1])
}
