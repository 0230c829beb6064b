// Основной пакет сервера редактора. Читает конфигурацию, настраивает логирование и запускает HTTP сервер.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/aisa-it/richedit/internal/richedit"
	"github.com/aisa-it/richedit/internal/richedit/config"
)

var version string = "DEV"

// Пример запуска: go run main.go --trace
func main() {
	trace := flag.Bool("trace", false, "Verbose logs")
	flag.Parse()

	PrintBanner()

	cfg := config.ReadConfig()

	if *trace {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	// Set prod log format
	if version != "DEV" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{})))
	}

	slog.Info("RichEdit start.")

	richedit.Server(cfg, version)
}

// PrintBanner выводит заголовок приложения с версией.
func PrintBanner() {
	banner := `
 ____  _      _     _____    _ _ _
|  _ \(_) ___| |__ | ____|__| (_) |_
| |_) | |/ __| '_ \|  _| / _  | | __|
|  _ <| | (__| | | | |__| (_| | | |_
|_| \_\_|\___|_| |_|_____\__,_|_|\__| %s
Rich content editor server
----------------------------------------------------
`
	colorReset := "\033[0m"
	colorYellow := "\033[33m"

	formattedVersion := version
	if version == "DEV" {
		formattedVersion = colorYellow + version + colorReset
	}

	fmt.Printf(banner, formattedVersion)
}
