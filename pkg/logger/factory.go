package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/stockline/stockline/pkg/environment"
)

// Format is the log line encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config holds logger settings read from the environment. Empty values keep
// the defaults chosen by the environment.
type Config struct {
	Level  string `env:"LOG_LEVEL"`  // debug, info, warn or error
	Format string `env:"LOG_FORMAT"` // json or text
}

// Option configures New.
type Option func(*options)

type options struct {
	level      slog.Level
	format     Format
	output     io.Writer
	attrs      []slog.Attr
	extractors []ContextExtractor
}

// WithLevel sets the minimum level.
func WithLevel(l slog.Level) Option {
	return func(o *options) { o.level = l }
}

// WithFormat sets the encoding. Unknown formats panic at startup.
func WithFormat(f Format) Option {
	return func(o *options) {
		switch f {
		case FormatJSON, FormatText:
			o.format = f
		default:
			panic(fmt.Errorf("logger: invalid format %q", f))
		}
	}
}

// WithOutput sets the destination. Nil keeps stdout.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.output = w
		}
	}
}

// WithAttr adds static attributes to every record.
func WithAttr(attrs ...slog.Attr) Option {
	return func(o *options) { o.attrs = append(o.attrs, attrs...) }
}

// WithContextExtractors registers extractors run on every record.
func WithContextExtractors(extractors ...ContextExtractor) Option {
	return func(o *options) {
		for _, ex := range extractors {
			if ex != nil {
				o.extractors = append(o.extractors, ex)
			}
		}
	}
}

// WithEnvironment applies the defaults of env and tags every record with the
// service name and environment. Development logs text at debug level;
// staging and production log JSON at info level.
func WithEnvironment(env environment.Environment, service string) Option {
	return func(o *options) {
		if env == environment.Development {
			o.level = slog.LevelDebug
			o.format = FormatText
		} else {
			o.level = slog.LevelInfo
			o.format = FormatJSON
		}
		if service != "" {
			o.attrs = append(o.attrs, slog.String("service", service))
		}
		o.attrs = append(o.attrs, slog.String("env", env.String()))
	}
}

// WithConfig applies the non-empty fields of cfg. Apply it after
// WithEnvironment to override the environment defaults.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		if cfg.Level != "" {
			var l slog.Level
			if err := l.UnmarshalText([]byte(cfg.Level)); err != nil {
				panic(fmt.Errorf("logger: invalid level %q: %w", cfg.Level, err))
			}
			o.level = l
		}
		if cfg.Format != "" {
			WithFormat(Format(strings.ToLower(cfg.Format)))(o)
		}
	}
}

// New creates a logger. Without options it writes JSON at info level to stdout.
func New(opts ...Option) *slog.Logger {
	o := &options{
		level:  slog.LevelInfo,
		format: FormatJSON,
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(o)
	}

	handlerOpts := &slog.HandlerOptions{Level: o.level}
	var h slog.Handler
	if o.format == FormatText {
		h = slog.NewTextHandler(o.output, handlerOpts)
	} else {
		h = slog.NewJSONHandler(o.output, handlerOpts)
	}
	if len(o.attrs) > 0 {
		h = h.WithAttrs(o.attrs)
	}
	return slog.New(NewContextHandler(h, o.extractors...))
}

// SetAsDefault installs l as the slog default logger.
func SetAsDefault(l *slog.Logger) {
	slog.SetDefault(l)
}
