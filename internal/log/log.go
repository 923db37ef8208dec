package log

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

var (
	logger     zerolog.Logger
	loggerOnce sync.Once
	mu         sync.RWMutex
)

// initLogger initializes the global logger to write JSON lines to stderr.
func initLogger() {
	loggerOnce.Do(func() {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro
		logger = newLogger(os.Stderr, false)
	})
}

func newLogger(w io.Writer, console bool) zerolog.Logger {
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
	}
	return zerolog.New(w).With().
		Str("service", "taskcal").
		Timestamp().
		Logger().
		Level(zerolog.InfoLevel)
}

// SetOutput replaces the log sink. console selects the human-readable writer.
func SetOutput(w io.Writer, console bool) {
	initLogger()
	mu.Lock()
	defer mu.Unlock()
	lvl := logger.GetLevel()
	logger = newLogger(w, console).Level(lvl)
}

func SetLevel(l Level) {
	initLogger()
	mu.Lock()
	defer mu.Unlock()
	logger = logger.Level(toZerolog(l))
}

// ParseLevel maps a config string onto a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func Debug(msg string, kv ...any) {
	logWithLevel(LevelDebug, nil, msg, kv...)
}

func Info(msg string, kv ...any) {
	logWithLevel(LevelInfo, nil, msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	logWithLevel(LevelError, err, msg, kv...)
}

func logWithLevel(level Level, err error, msg string, kv ...any) {
	initLogger()
	mu.RLock()
	l := logger
	mu.RUnlock()

	var ev *zerolog.Event
	switch level {
	case LevelDebug:
		ev = l.Debug()
	case LevelError:
		ev = l.Error().Err(err)
	default:
		ev = l.Info()
	}
	if ev == nil {
		return
	}

	// kv is expected as pairs: key, value, key, value, ...
	// Non-string keys and a trailing odd value are dropped.
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, kv[i+1])
	}
	ev.Msg(msg)
}

func toZerolog(l Level) zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
