// Package logging provides a zerolog-backed implementation of the client's
// key/value Logger interface.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/eshaffer321/apiclient-go/internal/types"
	"github.com/rs/zerolog"
)

const maskValue = "***"

// sensitiveKeys are masked wherever they appear in a key, case-insensitively
var sensitiveKeys = []string{
	"password", "secret", "token", "authorization", "credential",
}

// ZeroLogger adapts zerolog to types.Logger
type ZeroLogger struct {
	zlog zerolog.Logger
}

var _ types.Logger = (*ZeroLogger)(nil)

// New creates a logger writing to stderr. Unknown levels fall back to info.
func New(level string, pretty bool) *ZeroLogger {
	var w io.Writer = os.Stderr
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return NewWithWriter(w, level)
}

// NewWithWriter creates a logger writing JSON lines to w
func NewWithWriter(w io.Writer, level string) *ZeroLogger {
	zLevel, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		zLevel = zerolog.InfoLevel
	}

	l := zerolog.New(w).With().Timestamp().Logger().Level(zLevel)
	return &ZeroLogger{zlog: l}
}

// Nop returns a logger that discards everything
func Nop() *ZeroLogger {
	return &ZeroLogger{zlog: zerolog.Nop()}
}

// Zerolog exposes the underlying logger
func (l *ZeroLogger) Zerolog() *zerolog.Logger {
	return &l.zlog
}

func (l *ZeroLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.write(l.zlog.Debug(), msg, keysAndValues)
}

func (l *ZeroLogger) Info(msg string, keysAndValues ...interface{}) {
	l.write(l.zlog.Info(), msg, keysAndValues)
}

func (l *ZeroLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.write(l.zlog.Warn(), msg, keysAndValues)
}

func (l *ZeroLogger) Error(msg string, keysAndValues ...interface{}) {
	l.write(l.zlog.Error(), msg, keysAndValues)
}

func (l *ZeroLogger) write(e *zerolog.Event, msg string, kv []interface{}) {
	// Disabled levels return a nil event
	if e == nil {
		return
	}

	for i := 0; i < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		if i+1 >= len(kv) {
			e = e.Interface("!BADKEY", key)
			break
		}

		switch v := kv[i+1].(type) {
		case error:
			if key == "error" || key == "err" {
				e = e.AnErr(zerolog.ErrorFieldName, v)
			} else {
				e = e.AnErr(key, v)
			}
		case string:
			e = e.Str(key, maskIfSensitive(key, v))
		case int:
			e = e.Int(key, v)
		case bool:
			e = e.Bool(key, v)
		case time.Duration:
			e = e.Dur(key, v)
		default:
			if isSensitive(key) {
				e = e.Str(key, maskValue)
			} else {
				e = e.Interface(key, v)
			}
		}
	}
	e.Msg(msg)
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func maskIfSensitive(key, value string) string {
	if value != "" && isSensitive(key) {
		return maskValue
	}
	return value
}
