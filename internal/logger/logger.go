// Package logger provides structured logging for standardstore
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps zerolog with standardstore-specific helpers
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // console output for interactive use
	Output     io.Writer
	WithCaller bool
}

// ParseLevel maps a level name to a zerolog level, defaulting to info
func ParseLevel(name string) zerolog.Level {
	switch name {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new structured logger
func NewLogger(cfg Config) *Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	zlog := zerolog.New(output).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service", "standardstore").
		Logger()

	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}

	return &Logger{zlog: zlog}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// OrNop returns l, or a discarding logger when l is nil
func OrNop(l *Logger) *Logger {
	if l == nil {
		return Nop()
	}
	return l
}

// GetZerolog returns the underlying zerolog logger
func (l *Logger) GetZerolog() *zerolog.Logger {
	return &l.zlog
}

// Info logs an info message
func (l *Logger) Info(msg string) *zerolog.Event {
	return l.zlog.Info().Str("msg", msg)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) *zerolog.Event {
	return l.zlog.Debug().Str("msg", msg)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) *zerolog.Event {
	return l.zlog.Warn().Str("msg", msg)
}

// Error logs an error message
func (l *Logger) Error(msg string) *zerolog.Event {
	return l.zlog.Error().Str("msg", msg)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string) *zerolog.Event {
	return l.zlog.Fatal().Str("msg", msg)
}

func (l *Logger) component(name string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("component", name).Logger()}
}

// ProcessorLogger returns a logger for standard set processing
func (l *Logger) ProcessorLogger(setID string) *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", "processor").
			Str("set_id", setID).
			Logger(),
	}
}

// APILogger returns a logger for the standards API client
func (l *Logger) APILogger() *Logger {
	return l.component("csp_api")
}

// IndexLogger returns a logger for vector index operations
func (l *Logger) IndexLogger(namespace string) *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", "index").
			Str("namespace", namespace).
			Logger(),
	}
}

// RPCLogger returns a logger for a gRPC method
func (l *Logger) RPCLogger(method string) *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", "grpc").
			Str("method", method).
			Logger(),
	}
}

// ToolLogger returns a logger for MCP tool calls
func (l *Logger) ToolLogger(tool string) *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", "mcp").
			Str("tool", tool).
			Logger(),
	}
}

// LogRPCRequest logs a completed gRPC request on a logger from RPCLogger
func (l *Logger) LogRPCRequest(duration time.Duration, err error) {
	event := l.zlog.Info()
	if err != nil {
		event = l.zlog.Error().Err(err)
	}
	event.
		Dur("duration_ms", duration).
		Msg("gRPC request completed")
}

// LogProcessRun logs the outcome of processing one standard set on a logger
// from ProcessorLogger
func (l *Logger) LogProcessRun(duration time.Duration, succeeded, failed int, failedIDs []string) {
	event := l.zlog.Info()
	if failed > 0 {
		event = l.zlog.Warn().Strs("failed_ids", failedIDs)
	}
	event.
		Dur("duration_ms", duration).
		Int("succeeded", succeeded).
		Int("failed", failed).
		Msg("Standard set processed")
}

// LogAPIRequest logs one standards API request attempt
func (l *Logger) LogAPIRequest(endpoint string, status int, attempt int, duration time.Duration, err error) {
	event := l.zlog.Debug()
	if err != nil {
		event = l.zlog.Warn().Err(err)
	}
	event.
		Str("component", "csp_api").
		Str("endpoint", endpoint).
		Int("status", status).
		Int("attempt", attempt).
		Dur("duration_ms", duration).
		Msg("API request")
}

// LogBatchUpsert logs one index upsert batch
func (l *Logger) LogBatchUpsert(batch, total, records, attempts int, duration time.Duration, err error) {
	event := l.zlog.Debug()
	if err != nil {
		event = l.zlog.Error().Err(err)
	}
	event.
		Str("component", "index").
		Int("batch", batch).
		Int("total_batches", total).
		Int("records", records).
		Int("attempts", attempts).
		Dur("duration_ms", duration).
		Msg("Upsert batch completed")
}

// LogServerStart logs server startup
func (l *Logger) LogServerStart(port int, indexPath string) {
	l.zlog.Info().
		Str("event", "server_start").
		Int("port", port).
		Str("index", indexPath).
		Msg("standardstore server starting")
}

// LogServerReady logs when server is ready
func (l *Logger) LogServerReady(port int) {
	l.zlog.Info().
		Str("event", "server_ready").
		Int("port", port).
		Msg("standardstore server ready to accept connections")
}

// LogServerShutdown logs server shutdown
func (l *Logger) LogServerShutdown() {
	l.zlog.Info().
		Str("event", "server_shutdown").
		Msg("standardstore server shutting down")
}

var globalLogger *Logger

// InitGlobalLogger initializes the process logger; only main packages call it
func InitGlobalLogger(cfg Config) *Logger {
	globalLogger = NewLogger(cfg)
	log.Logger = *globalLogger.GetZerolog()
	return globalLogger
}
