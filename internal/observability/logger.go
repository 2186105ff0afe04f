package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// LoggerOptions controls the console writer built by NewLogger.
type LoggerOptions struct {
	Out       io.Writer
	Timestamp bool
	NoColor   bool
}

func NewLogger(app string, opts LoggerOptions) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    opts.NoColor,
	}
	if !opts.Timestamp {
		output.PartsExclude = []string{zerolog.TimestampFieldName}
	}
	ctx := zerolog.New(output).With()
	if opts.Timestamp {
		ctx = ctx.Timestamp()
	}
	if app != "" {
		ctx = ctx.Str("app", app)
	}
	return ctx.Logger()
}
