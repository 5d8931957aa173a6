package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/stockgame/pkg/config"
)

// Field names shared by every pipeline log line
const (
	FieldModule = "module"
	FieldRunID  = "run_id"
	FieldStage  = "stage"
	FieldTicker = "ticker"
	FieldJob    = "job"
)

// Logger is a structured logger wrapper around zerolog
// ⭐ SSOT: 모든 로깅은 이 패키지를 통해서만 수행
type Logger struct {
	zlog zerolog.Logger
}

// Run identifies one pipeline stage execution
type Run struct {
	ID    string
	Stage string
}

type runKey struct{}

// ContextWithRun tags ctx with a stage run. Loggers bound to the context
// with For stamp run_id and stage on every line.
func ContextWithRun(ctx context.Context, id, stage string) context.Context {
	return context.WithValue(ctx, runKey{}, Run{ID: id, Stage: stage})
}

// RunFromContext returns the run tagged on ctx
func RunFromContext(ctx context.Context) (Run, bool) {
	if ctx == nil {
		return Run{}, false
	}
	run, ok := ctx.Value(runKey{}).(Run)
	return run, ok
}

// runHook copies the run carried by the event context onto the event
var runHook = zerolog.HookFunc(func(e *zerolog.Event, _ zerolog.Level, _ string) {
	if run, ok := RunFromContext(e.GetCtx()); ok {
		e.Str(FieldRunID, run.ID).Str(FieldStage, run.Stage)
	}
})

// New creates a Logger writing to stdout in the configured format
func New(cfg *config.Config) *Logger {
	var output io.Writer = os.Stdout
	if cfg.LogFormat == "console" || cfg.LogFormat == "pretty" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	return NewWithWriter(cfg, output)
}

// NewWithWriter creates a JSON Logger over w.
// The level applies to this logger only, so several loggers with different
// levels can coexist in one process (tests rely on this).
// ⭐ SSOT: zerolog 인스턴스는 여기서만 생성
func NewWithWriter(cfg *config.Config, w io.Writer) *Logger {
	zlog := zerolog.New(w).
		Level(parseLogLevel(cfg.LogLevel)).
		With().
		Timestamp().
		Str("service", "stockgame").
		Str("env", cfg.Env).
		Logger().
		Hook(runHook)

	return &Logger{zlog: zlog}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// parseLogLevel maps LOG_LEVEL onto zerolog, falling back to info
func parseLogLevel(levelStr string) zerolog.Level {
	levelStr = strings.ToLower(strings.TrimSpace(levelStr))
	if levelStr == "warning" {
		levelStr = "warn"
	}

	level, err := zerolog.ParseLevel(levelStr)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func (l *Logger) Debug(msg string) {
	l.zlog.Debug().Msg(msg)
}

func (l *Logger) Info(msg string) {
	l.zlog.Info().Msg(msg)
}

func (l *Logger) Warn(msg string) {
	l.zlog.Warn().Msg(msg)
}

func (l *Logger) Error(msg string) {
	l.zlog.Error().Msg(msg)
}

// Fatal logs and exits the process
func (l *Logger) Fatal(msg string) {
	l.zlog.Fatal().Msg(msg)
}

// WithField returns a new logger with an additional field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{zlog: l.zlog.With().Interface(key, value).Logger()}
}

// WithFields returns a new logger with multiple fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.zlog.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{zlog: ctx.Logger()}
}

// WithError returns a new logger with an error field
func (l *Logger) WithError(err error) *Logger {
	return &Logger{zlog: l.zlog.With().Err(err).Logger()}
}

// For returns a logger bound to ctx, so lines logged inside a stage run
// carry its run_id and stage
func (l *Logger) For(ctx context.Context) *Logger {
	return &Logger{zlog: l.zlog.With().Ctx(ctx).Logger()}
}

// Module returns the per-package child logger
func (l *Logger) Module(name string) *Logger {
	return l.WithField(FieldModule, name)
}

// WithRun stamps a stage run on every line
func (l *Logger) WithRun(id, stage string) *Logger {
	return &Logger{zlog: l.zlog.With().Str(FieldRunID, id).Str(FieldStage, stage).Logger()}
}

// WithTicker stamps the stock a line is about
func (l *Logger) WithTicker(ticker string) *Logger {
	return &Logger{zlog: l.zlog.With().Str(FieldTicker, ticker).Logger()}
}

// WithJob stamps a scheduler job name
func (l *Logger) WithJob(name string) *Logger {
	return &Logger{zlog: l.zlog.With().Str(FieldJob, name).Logger()}
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.zlog.Debug().Msgf(format, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.zlog.Info().Msgf(format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.zlog.Warn().Msgf(format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.zlog.Error().Msgf(format, args...)
}

func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.zlog.Fatal().Msgf(format, args...)
}

// Zerolog returns the underlying zerolog.Logger
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zlog
}
