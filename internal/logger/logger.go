// Package logger provides leveled logging in text or JSON-lines format.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents a logging level.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "INFO"
	}
}

// ParseLevel maps a config value to a Level, defaulting to InfoLevel.
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Logger provides leveled logging.
type Logger struct {
	mu     sync.Mutex
	level  Level
	json   bool
	out    io.Writer
	logger *log.Logger
}

var defaultLogger *Logger

// Init initializes the default logger with the specified level and format.
// Format "json" writes one object per line; anything else writes text.
func Init(level string, format string) {
	defaultLogger = newLogger(ParseLevel(level), strings.ToLower(format) == "json", os.Stderr)
}

// SetOutput redirects the default logger, initializing it at debug level if needed.
func SetOutput(w io.Writer) {
	if defaultLogger == nil {
		defaultLogger = newLogger(DebugLevel, false, w)
		return
	}
	defaultLogger = newLogger(defaultLogger.level, defaultLogger.json, w)
}

func newLogger(level Level, jsonFormat bool, w io.Writer) *Logger {
	flags := log.LstdFlags | log.Lmicroseconds | log.Lshortfile
	if jsonFormat {
		flags = 0
	}
	return &Logger{
		level:  level,
		json:   jsonFormat,
		out:    w,
		logger: log.New(w, "", flags),
	}
}

type jsonLine struct {
	Time  string `json:"time"`
	Level string `json:"level"`
	Msg   string `json:"msg"`
}

func (l *Logger) output(level Level, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if !l.json {
		_ = l.logger.Output(4, "["+level.String()+"] "+msg)
		return
	}
	line, err := json.Marshal(jsonLine{
		Time:  time.Now().UTC().Format(time.RFC3339Nano),
		Level: strings.ToLower(level.String()),
		Msg:   msg,
	})
	if err != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(append(line, '\n'))
}

func logAt(level Level, format string, args ...interface{}) {
	if defaultLogger != nil && defaultLogger.level <= level {
		defaultLogger.output(level, format, args...)
	}
}

func Debug(format string, args ...interface{}) { logAt(DebugLevel, format, args...) }

func Info(format string, args ...interface{}) { logAt(InfoLevel, format, args...) }

func Warn(format string, args ...interface{}) { logAt(WarnLevel, format, args...) }

func Error(format string, args ...interface{}) { logAt(ErrorLevel, format, args...) }

// exit is replaced in tests.
var exit = os.Exit

func Fatal(format string, args ...interface{}) {
	if defaultLogger != nil {
		logAt(FatalLevel, format, args...)
	} else {
		fmt.Fprintf(os.Stderr, "[FATAL] "+format+"\n", args...)
	}
	exit(1)
}
