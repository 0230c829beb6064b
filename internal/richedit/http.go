// Пакет richedit - сервер редактора форматированного текста. Держит сессии редактирования
// в памяти и предоставляет API для вставки, команд, растягивания медиа, загрузки изображений,
// встраивания видео, очистки HTML и экспорта документа.
//
// Основные возможности:
//   - Сессии редактора с историей изменений и автоматическим завершением по таймауту.
//   - Перехват вставки с очисткой HTML по политике.
//   - Изменение размеров изображений и видео с сохранением пропорций.
//   - Загрузка изображений: data URI, временные blob ссылки или файловое хранилище.
//   - Экспорт в HTML, текст, Markdown и PDF.
package richedit

// @title Rich Content Editor API
// @version 1.0
// @description Editing sessions for the rich content editor.
// @BasePath /
// @query.collection.format multi
import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aisa-it/richedit/internal/richedit/config"
	"github.com/aisa-it/richedit/internal/richedit/cronmanager"
	"github.com/aisa-it/richedit/internal/richedit/editor"
	_ "github.com/aisa-it/richedit/internal/richedit/editor/tiptap"
	"github.com/aisa-it/richedit/internal/richedit/export"
	filestorage "github.com/aisa-it/richedit/internal/richedit/file-storage"
	"github.com/aisa-it/richedit/internal/richedit/images"
	"github.com/aisa-it/richedit/internal/richedit/paste"
	"github.com/aisa-it/richedit/internal/richedit/sanitizer"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type Services struct {
	cfg      *config.Config
	version  string
	sessions *SessionStore
	blobs    *images.BlobStore
	storage  filestorage.FileStorage
	paste    *paste.Interceptor
	loader   *export.ImageLoader
	metrics  *serverMetrics
}

type serverMetrics struct {
	registry *prometheus.Registry
	pastes   *prometheus.CounterVec
	images   *prometheus.CounterVec
	resizes  prometheus.Counter
	sessions prometheus.GaugeFunc
	boot     prometheus.Gauge
}

func newServerMetrics(sessionCount func() float64) *serverMetrics {
	m := &serverMetrics{
		registry: prometheus.NewRegistry(),
		pastes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "richedit",
			Name:      "paste_total",
			Help:      "Paste events by final phase",
		}, []string{"phase"}),
		images: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "richedit",
			Name:      "image_acquire_total",
			Help:      "Image acquisitions by source and result",
		}, []string{"source", "result"}),
		resizes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "richedit",
			Name:      "media_resize_total",
			Help:      "Committed media resizes",
		}),
		sessions: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "richedit",
			Name:      "sessions",
			Help:      "Open editor sessions",
		}, sessionCount),
		boot: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "richedit",
			Name:      "boot_time",
			Help:      "Server startup time",
		}),
	}
	m.boot.Set(float64(time.Now().UnixMilli()))
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.pastes, m.images, m.resizes, m.sessions, m.boot,
	)
	return m
}

// ServerHeader middleware adds a `Server` header to the response.
func ServerHeader(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderServer, "RichEdit")
		return next(c)
	}
}

// NewServices собирает сервисы сервера. storage может быть nil, тогда хранилище файлов отключено.
func NewServices(cfg *config.Config, storage filestorage.FileStorage, version string) (*Services, error) {
	pastePolicy := sanitizer.PastePolicy()
	if cfg.PastePolicyPath != "" {
		f, err := os.Open(cfg.PastePolicyPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		extra, err := sanitizer.LoadPolicy(f)
		if err != nil {
			return nil, err
		}
		pastePolicy = pastePolicy.Merge(extra)
	}

	blobs := images.NewBlobStore(time.Duration(cfg.BlobTTLMinutes) * time.Minute)
	s := &Services{
		cfg:      cfg,
		version:  version,
		sessions: NewSessionStore(editor.DefaultSchema(), time.Duration(cfg.SessionTTLMinutes)*time.Minute, cfg.MaxSessions, cfg.HistoryLimit),
		blobs:    blobs,
		storage:  storage,
		paste:    paste.New(paste.Options{Policy: pastePolicy, AlwaysReparse: cfg.PasteAlwaysReparse}),
		loader:   export.NewImageLoader(blobs, cfg.WebURL, int64(cfg.ImageMaxBytes)),
	}
	s.metrics = newServerMetrics(func() float64 { return float64(s.sessions.Len()) })
	return s, nil
}

// jobs - периодическое обслуживание: просроченные blob, невостребованные загрузки и неактивные сессии.
func (s *Services) jobs() cronmanager.JobRegistry {
	return cronmanager.JobRegistry{
		"blob_expire": cronmanager.Job{
			Func:     func() { s.blobs.Expire() },
			Schedule: cronmanager.Every(time.Minute),
		},
		"upload_expire": cronmanager.Job{
			Func:     func() { s.sessions.ExpireUploads(uploadTTL) },
			Schedule: cronmanager.Every(time.Minute),
		},
		"session_expire": cronmanager.Job{
			Func:     func() { s.sessions.Expire() },
			Schedule: cronmanager.Every(time.Minute),
		},
	}
}

// NewEcho создает echo сервер со всеми маршрутами API.
func (s *Services) NewEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
		}

		// Ignore 404
		if code == http.StatusNotFound {
			c.NoContent(http.StatusNotFound)
			return
		}
		slog.Error("Unhandled error in endpoint", "url", c.Request().URL, "err", err)
		EErrorMsgStatus(c, nil, code)
	}

	// Global middlewares
	e.Use(ServerHeader)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimitWithConfig(middleware.BodyLimitConfig{
		Limit: "5M",
		Skipper: func(c echo.Context) bool {
			// У загрузки изображений свой лимит, см. imageBodyLimit
			return c.Path() == "/api/sessions/:sessionId/images/"
		},
	}))
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level:     9,
		MinLength: 2048,
		Skipper: func(c echo.Context) bool {
			return strings.Contains(c.Request().URL.Path, "/export/")
		},
	}))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "richedit",
		Registerer: s.metrics.registry,
	}))
	e.Pre(middleware.AddTrailingSlash())

	e.Validator = NewRequestValidator()

	apiGroup := e.Group("/api/")

	// Version endpoint
	apiGroup.GET("version/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"version":        s.version,
			"image_resolver": s.cfg.ImageResolver,
			"image_max_size": s.cfg.ImageMaxBytes,
			"storage":        s.storage != nil,
		})
	})

	// Health endpoint
	apiGroup.GET("_health/", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	s.AddToolServices(apiGroup)
	s.AddSessionServices(apiGroup)

	// Temporary and stored images
	apiGroup.GET("blob/:blobId/", s.getBlob)
	apiGroup.GET("file/:fileName/", s.getFile)

	return e
}

// MetricsHandler отдает метрики сервера в формате Prometheus.
func (s *Services) MetricsHandler() echo.HandlerFunc {
	return echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: s.metrics.registry})
}

func newStorage(cfg *config.Config) (filestorage.FileStorage, error) {
	switch {
	case cfg.AWSEndpoint != "":
		return filestorage.NewMinioStorage(cfg.AWSEndpoint, cfg.AWSAccessKey, cfg.AWSSecretKey, cfg.AWSUseSSL, cfg.AWSBucketName)
	case cfg.LocalStoragePath != "":
		return filestorage.NewLocalStorage(cfg.LocalStoragePath)
	}
	return nil, nil
}

func Server(cfg *config.Config, version string) {
	storage, err := newStorage(cfg)
	if err != nil {
		slog.Error("Fail init file storage", "err", err)
		os.Exit(1)
	}

	s, err := NewServices(cfg, storage, version)
	if err != nil {
		slog.Error("Init services", "err", err)
		os.Exit(1)
	}

	cronManager := cronmanager.NewCronManager(s.jobs())
	if err := cronManager.LoadJobs(); err != nil {
		slog.Error("Failed to load cron jobs", "err", err)
		os.Exit(1)
	}
	cronManager.Start()

	e := s.NewEcho()

	// Prometheus metrics
	metrics := echo.New()
	metrics.HideBanner = true
	metrics.GET("/metrics", s.MetricsHandler())
	go func() {
		if err := metrics.Start(cfg.MetricsAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server fail", "err", err)
		}
	}()

	// Create a channel to handle termination signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		slog.Info("Shutting down gracefully, press Ctrl+C again to force")
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			slog.Error("Shutdown server", "err", err)
		}
		metrics.Shutdown(shutdownCtx)
	}()

	slog.Info("Start editor server", "addr", cfg.ListenAddr, "version", version, "resolver", cfg.ImageResolver)
	if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server fail", "err", err)
	}
	cronManager.Stop()
}
