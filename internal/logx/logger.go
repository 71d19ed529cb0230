package logx

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/example/modengine-overrides/internal/logging"
)

type Logger struct {
	mu    sync.Mutex
	base  *log.Logger
	level logging.Level
	now   func() time.Time
}

func New(level logging.Level) *Logger {
	return NewWithWriter(os.Stdout, level)
}

func NewWithWriter(w io.Writer, level logging.Level) *Logger {
	return &Logger{
		base:  log.New(w, "", 0),
		level: level,
		now:   time.Now,
	}
}

func (l *Logger) Trace(msg string, fields map[string]any) {
	l.emit(logging.LevelTrace, msg, fields)
}

func (l *Logger) Debug(msg string, fields map[string]any) {
	l.emit(logging.LevelDebug, msg, fields)
}

func (l *Logger) Info(msg string, fields map[string]any) {
	l.emit(logging.LevelInfo, msg, fields)
}

func (l *Logger) Warn(msg string, fields map[string]any) {
	l.emit(logging.LevelWarn, msg, fields)
}

func (l *Logger) Error(msg string, err error, fields map[string]any) {
	if err != nil {
		withErr := make(map[string]any, len(fields)+1)
		for k, v := range fields {
			withErr[k] = v
		}
		withErr["error"] = err.Error()
		fields = withErr
	}
	l.emit(logging.LevelError, msg, fields)
}

func (l *Logger) Enabled(level logging.Level) bool {
	return level >= l.level
}

func (l *Logger) emit(level logging.Level, msg string, fields map[string]any) {
	if !l.Enabled(level) {
		return
	}
	entry := map[string]any{
		"ts":    l.now().UTC().Format(time.RFC3339Nano),
		"level": level.String(),
		"msg":   msg,
	}
	for k, v := range fields {
		entry[k] = sanitize(k, v)
	}
	b, err := json.Marshal(entry)
	if err != nil {
		b, _ = json.Marshal(map[string]any{"level": level.String(), "msg": msg, "marshal_error": err.Error()})
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.base.Println(string(b))
}

func sanitize(key string, value any) any {
	k := strings.ToLower(key)
	if strings.Contains(k, "password") || strings.Contains(k, "passphrase") || strings.Contains(k, "secret") || strings.Contains(k, "token") || strings.Contains(k, "private_key") {
		return "***"
	}
	return value
}
