package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/linemk/online-store/internal/lib/logger/handlers/slogpretty"
)

// окружения из config.Env
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// ServiceName попадает в каждую JSON-запись, чтобы логи магазина отличались в общем сборщике
const ServiceName = "online-store"

// SetupLogger возвращает логгер для окружения env, вывод в stdout
func SetupLogger(env string) *slog.Logger {
	return New(os.Stdout, env)
}

// New собирает логгер поверх w.
// local — цветной построчный вывод с уровнем Debug, без служебных атрибутов.
// dev и prod — JSON с атрибутами service и env; dev пишет Debug, prod и неизвестные окружения — Info.
func New(w io.Writer, env string) *slog.Logger {
	if env == EnvLocal {
		return newPretty(w)
	}

	level := slog.LevelInfo
	if env == EnvDev {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})

	return slog.New(handler).With(
		slog.String("service", ServiceName),
		slog.String("env", env),
	)
}

func newPretty(w io.Writer) *slog.Logger {
	color.NoColor = false

	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}
	return slog.New(opts.NewPrettyHandler(w))
}
