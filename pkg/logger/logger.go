// Package logger configures the process-wide zerolog logger used by every
// fedbench component. Call Init (or InitWithMode) once at startup; services
// then obtain component-scoped loggers via WithComponent.
package logger

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	log zerolog.Logger
	mu  sync.RWMutex
)

type Mode string

const (
	ModeDebug  Mode = "debug"
	ModePretty Mode = "pretty"
	ModeInfo   Mode = "info"
	ModeProd   Mode = "prod"
	ModeTest   Mode = "test"
)

type Config struct {
	Level      zerolog.Level
	Pretty     bool
	TimeFormat string
	WithCaller bool
	NoColor    bool
}

func DefaultConfig() Config {
	return Config{
		Level:      zerolog.InfoLevel,
		Pretty:     true,
		TimeFormat: time.RFC3339,
		WithCaller: true,
	}
}

func ConfigForMode(mode Mode) Config {
	switch mode {
	case ModeDebug:
		return Config{Level: zerolog.DebugLevel, Pretty: true, TimeFormat: time.RFC3339, WithCaller: true}
	case ModePretty:
		return Config{Level: zerolog.InfoLevel, Pretty: true, TimeFormat: time.RFC3339, WithCaller: true}
	case ModeInfo:
		return Config{Level: zerolog.InfoLevel, TimeFormat: time.RFC3339, WithCaller: true}
	case ModeProd:
		return Config{Level: zerolog.InfoLevel, TimeFormat: time.RFC3339Nano, NoColor: true}
	case ModeTest:
		return Config{Level: zerolog.ErrorLevel, TimeFormat: time.RFC3339, NoColor: true}
	default:
		return DefaultConfig()
	}
}

func InitWithMode(mode Mode) {
	Init(ConfigForMode(mode))
}

func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()

	var output io.Writer = os.Stdout
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: cfg.TimeFormat,
			NoColor:    cfg.NoColor,
		}
	}

	zerolog.SetGlobalLevel(cfg.Level)
	zerolog.TimeFieldFormat = cfg.TimeFormat

	ctx := zerolog.New(output).With().Timestamp()
	if cfg.WithCaller {
		ctx = ctx.Caller()
	}

	log = ctx.Logger()
	zerolog.DefaultContextLogger = &log
}

// Disable silences all output, used by tests that exercise noisy paths.
func Disable() {
	mu.Lock()
	defer mu.Unlock()
	zerolog.SetGlobalLevel(zerolog.Disabled)
	log = zerolog.New(io.Discard)
	zerolog.DefaultContextLogger = &log
}

func Get() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

func WithComponent(component string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log.With().Str("component", component).Logger()
}
