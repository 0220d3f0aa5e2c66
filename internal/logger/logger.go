package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/getsentry/sentry-go"
	slogmulti "github.com/samber/slog-multi"
	slogsentry "github.com/samber/slog-sentry/v2"
)

// Log is the global logger instance
var Log *slog.Logger

// Options controls how Init builds the process logger.
type Options struct {
	Development bool
	SentryDSN   string
	Environment string
	Output      io.Writer // defaults to os.Stdout
}

// Init installs the global logger.
// Development: text at debug. Production: JSON at info.
// With a Sentry DSN, error records are also forwarded to Sentry.
func Init(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	handlers := []slog.Handler{baseHandler(out, opts.Development)}

	if opts.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              opts.SentryDSN,
			Environment:      opts.Environment,
			TracesSampleRate: 0.2,
		})
		if err != nil {
			slog.New(handlers[0]).Warn("sentry init failed, continuing without it", "error", err)
		} else {
			handlers = append(handlers, slogsentry.Option{
				Level: slog.LevelError,
			}.NewSentryHandler())
		}
	}

	var handler slog.Handler
	if len(handlers) > 1 {
		handler = slogmulti.Fanout(handlers...)
	} else {
		handler = handlers[0]
	}

	Log = slog.New(handler).With("service", "parallel")
	slog.SetDefault(Log)
	return Log
}

func baseHandler(out io.Writer, dev bool) slog.Handler {
	if dev {
		return slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	return slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo})
}
