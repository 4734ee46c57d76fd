// Package logger собирает slog.Logger в зависимости от окружения.
package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/magabrotheeeer/entitlement-session/internal/config"
)

// Setup возвращает логгер для окружения env: текстовый для local,
// JSON для dev и prod. Неизвестное окружение трактуется как prod.
func Setup(env string, out io.Writer) *slog.Logger {
	if out == nil {
		out = os.Stderr
	}
	switch env {
	case config.EnvLocal:
		return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case config.EnvDev:
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
}

// Discard возвращает логгер, который ничего не пишет.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}
