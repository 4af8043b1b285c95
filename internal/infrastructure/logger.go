package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"riskdash/internal/config"
)

var (
	loggerOnce sync.Once
	appLogger  *slog.Logger

	logFileMu sync.Mutex
	logFile   *os.File
)

type ctxKey int

const (
	traceIDKey ctxKey = iota
	ingestScopeKey
)

// IngestScope names the page slot a request is working on. Every record
// logged with a context carrying a scope gets page and slot attributes.
type IngestScope struct {
	Page string
	Slot string
}

// InitializeLogger builds the process logger from cfg and installs it as the
// slog default. Only the first call configures anything; later calls return
// the same logger.
func InitializeLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	var err error
	loggerOnce.Do(func() {
		var out io.Writer
		out, err = logOutput(cfg)
		if err != nil {
			return
		}
		appLogger = slog.New(&contextHandler{
			Handler: slog.NewJSONHandler(out, &slog.HandlerOptions{
				AddSource: cfg.Development,
				Level:     parseLogLevel(cfg.Level),
			}),
		})
		slog.SetDefault(appLogger)
	})
	return appLogger, err
}

// GetLogger returns the process logger, or slog.Default before
// InitializeLogger has run.
func GetLogger() *slog.Logger {
	if appLogger == nil {
		return slog.Default()
	}
	return appLogger
}

func logOutput(cfg config.LoggingConfig) (io.Writer, error) {
	mode := strings.ToLower(cfg.Output)
	if mode != "file" && mode != "both" {
		return os.Stdout, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	logFileMu.Lock()
	logFile = f
	logFileMu.Unlock()

	if mode == "both" {
		return io.MultiWriter(os.Stdout, f), nil
	}
	return f, nil
}

// contextHandler copies the trace id and ingest scope out of the context onto
// each record.
type contextHandler struct {
	slog.Handler
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := GetTraceID(ctx); id != "" {
		r.AddAttrs(slog.String("trace_id", id))
	}
	if scope, ok := ctx.Value(ingestScopeKey).(IngestScope); ok {
		r.AddAttrs(slog.String("page", scope.Page), slog.String("slot", scope.Slot))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name)}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithTraceID stores traceID on ctx for the log handler and error responses.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// GetTraceID returns the request trace id, falling back to the active OTel
// span's trace id.
func GetTraceID(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return TraceIDFromContext(ctx)
}

// EnsureTraceID returns ctx unchanged if it already carries a trace id,
// otherwise a child context with a fresh UUID.
func EnsureTraceID(ctx context.Context) context.Context {
	if GetTraceID(ctx) != "" {
		return ctx
	}
	return WithTraceID(ctx, uuid.NewString())
}

// WithIngestScope tags ctx with the page slot being processed.
func WithIngestScope(ctx context.Context, page, slot string) context.Context {
	return context.WithValue(ctx, ingestScopeKey, IngestScope{Page: page, Slot: slot})
}

// IngestScopeFrom returns the scope stored by WithIngestScope.
func IngestScopeFrom(ctx context.Context) (IngestScope, bool) {
	scope, ok := ctx.Value(ingestScopeKey).(IngestScope)
	return scope, ok
}

// CloseLogFile closes the log file opened by InitializeLogger, if any.
func CloseLogFile() error {
	logFileMu.Lock()
	defer logFileMu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// ResetLoggerForTesting lets a test call InitializeLogger again.
func ResetLoggerForTesting() {
	_ = CloseLogFile()
	appLogger = nil
	loggerOnce = sync.Once{}
}
