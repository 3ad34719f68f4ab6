// Command standup-bot runs one IRC standup and exits.
// It:
//   - Loads .env (if present) and initializes structured logging.
//   - Optionally starts OpenTelemetry tracing.
//   - Parses arguments, connects, runs the standup window, and disconnects.
//
// Exit status is 0 when the session ends with a disconnect (or is
// interrupted with SIGINT/SIGTERM) and 1 on any error.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/onnwee/standup-bot/cli"
	"github.com/onnwee/standup-bot/telemetry"
)

const version = "1.0.0"

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	configureLogging()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("standup-bot", version)
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	if telemetry.IsTracingEnabled() {
		slog.Info("tracing enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = cli.Execute(ctx)
	stop()
	shutdown()

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		slog.Info("standup interrupted")
	default:
		slog.Error("standup failed", slog.Any("err", err))
		os.Exit(1)
	}
}

// configureLogging picks level and format from LOG_LEVEL and LOG_FORMAT.
// Defaults: level=info, format=text.
func configureLogging() {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		// unknown level -> keep info but note once using temporary logger
		tmp := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Debug("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))
}
