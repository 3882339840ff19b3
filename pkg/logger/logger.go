package logger

import (
	"bytes"
	"io"
	"os"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

var (
	log zerolog.Logger
	mu  sync.RWMutex
)

// leadingFields are written first so dev logs scan left to right
var leadingFields = []string{"time", "level", "scope", "request_id", "message"}

// orderedWriter rewrites each zerolog line with the leading fields first
type orderedWriter struct {
	out io.Writer
}

// Write reorders one JSON log line; lines that fail to parse pass through untouched
func (w *orderedWriter) Write(p []byte) (int, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(p, &fields); err != nil {
		return w.out.Write(p)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(key string, value json.RawMessage) {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(value)
	}

	for _, key := range leadingFields {
		if value, ok := fields[key]; ok {
			write(key, value)
			delete(fields, key)
		}
	}
	for key, value := range fields {
		write(key, value)
	}
	buf.WriteString("}\n")

	if _, err := w.out.Write(buf.Bytes()); err != nil {
		return 0, err
	}
	return len(p), nil
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	log = zerolog.New(os.Stdout).With().Timestamp().Logger().Level(zerolog.InfoLevel)
}

// Init configures level, timestamp timezone and output format.
// "prod" writes raw zerolog JSON, every other environment writes ordered JSON.
func Init(level, timezone, environment string) {
	loc, tzErr := time.LoadLocation(timezone)
	if tzErr != nil {
		loc = time.UTC
	}

	lvl, lvlErr := zerolog.ParseLevel(level)
	if lvlErr != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	var writer io.Writer = os.Stdout
	if environment != "prod" {
		writer = &orderedWriter{out: os.Stdout}
	}

	zerolog.TimestampFunc = func() time.Time { return time.Now().In(loc) }
	SetOutput(writer, lvl)

	if tzErr != nil {
		Warn().Err(tzErr).Str("timezone", timezone).Msg("Invalid timezone, using UTC")
	}
	Info().
		Str("timezone", loc.String()).
		Str("environment", environment).
		Str("level", lvl.String()).
		Msg("Logger configured")
}

// SetOutput replaces the process logger; tests use it to silence or capture logs
func SetOutput(w io.Writer, level zerolog.Level) {
	mu.Lock()
	defer mu.Unlock()
	log = zerolog.New(w).With().Timestamp().Logger().Level(level)
	zerolog.DefaultContextLogger = &log
}

func current() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := log
	return &l
}

// Debug returns a debug level log event
func Debug() *zerolog.Event {
	return current().Debug()
}

// Info returns an info level log event
func Info() *zerolog.Event {
	return current().Info()
}

// Warn returns a warning level log event
func Warn() *zerolog.Event {
	return current().Warn()
}

// Error returns an error level log event
func Error() *zerolog.Event {
	return current().Error()
}

// Fatal returns a fatal level log event
func Fatal() *zerolog.Event {
	return current().Fatal()
}

// ScopedLogger carries a fixed scope field
type ScopedLogger struct {
	logger zerolog.Logger
	scope  string
}

// WithScope creates a logger that tags every event with scope
func WithScope(scope string) *ScopedLogger {
	return &ScopedLogger{
		logger: current().With().Str("scope", scope).Logger(),
		scope:  scope,
	}
}

// WithRequestID returns a copy tagged with the request id
func (s *ScopedLogger) WithRequestID(requestID string) *ScopedLogger {
	if requestID == "" {
		return s
	}
	return &ScopedLogger{
		logger: s.logger.With().Str("request_id", requestID).Logger(),
		scope:  s.scope,
	}
}

func (s *ScopedLogger) Debug() *zerolog.Event { return s.logger.Debug() }
func (s *ScopedLogger) Info() *zerolog.Event  { return s.logger.Info() }
func (s *ScopedLogger) Warn() *zerolog.Event  { return s.logger.Warn() }
func (s *ScopedLogger) Error() *zerolog.Event { return s.logger.Error() }

// GetScope returns the scope name
func (s *ScopedLogger) GetScope() string {
	return s.scope
}
