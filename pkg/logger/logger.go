package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Logger struct {
	zl        zerolog.Logger
	collector *LogCollector
}

type Config struct {
	Level      string // debug, info, warn, error, fatal, panic
	Format     string // json or console
	Output     string // stdout, stderr, or file path
	TimeFormat string // time format for log messages
}

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer
	switch cfg.Output {
	case "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("could not open log file: %w", err)
		}
		output = file
	}

	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = cfg.TimeFormat

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: cfg.TimeFormat,
			NoColor:    false,
		}
	}

	zl := zerolog.New(output).
		With().
		Timestamp().
		CallerWithSkipFrameCount(3).
		Logger()

	return &Logger{zl: zl}, nil
}

func (l *Logger) Debug(msg string, fields ...Field) { l.emit(l.zl.Debug(), msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.emit(l.zl.Info(), msg, fields) }

func (l *Logger) Warn(msg string, fields ...Field) {
	l.emit(l.zl.Warn(), msg, fields)
}

func (l *Logger) Error(msg string, fields ...Field) {
	l.emit(l.zl.Error(), msg, fields)
	l.addToCollector("error", msg, fields)
}

func (l *Logger) emit(event *zerolog.Event, msg string, fields []Field) {
	for _, f := range fields {
		f.AddTo(event)
	}
	event.Msg(msg)
}

// AddCollector attaches a deduplicating error collector. An existing one
// is closed first.
func (l *Logger) AddCollector(config *CollectionConfig) {
	if l.collector != nil {
		l.collector.Close()
	}
	l.collector = NewLogCollector(config)
}

func (l *Logger) RemoveCollector() {
	if l.collector != nil {
		l.collector.Close()
	}
}

func (l *Logger) addToCollector(level, msg string, fields []Field) {
	if l.collector == nil {
		return
	}

	// Skip frames: this function -> Error -> user code.
	_, file, line, ok := runtime.Caller(2)
	caller := "unknown"
	if ok {
		parts := strings.Split(file, "crypto-watcher")
		caller = fmt.Sprintf("%s:%d", parts[len(parts)-1], line)
	}

	fieldMap := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		key, value := f.GetKeyValue()
		fieldMap[key] = value
	}
	l.collector.AddLog(level, msg, fieldMap, caller)
}

// Field is one typed key/value pair attached to a log event.
type Field struct {
	Key string
	Val interface{}
}

func (f Field) AddTo(event *zerolog.Event) {
	switch v := f.Val.(type) {
	case string:
		event.Str(f.Key, v)
	case int:
		event.Int(f.Key, v)
	case int64:
		event.Int64(f.Key, v)
	case float64:
		event.Float64(f.Key, v)
	case bool:
		event.Bool(f.Key, v)
	case error:
		event.Err(v)
	default:
		event.Interface(f.Key, v)
	}
}

func (f Field) GetKeyValue() (string, interface{}) {
	if err, ok := f.Val.(error); ok && err != nil {
		return f.Key, err.Error()
	}
	return f.Key, f.Val
}

// --- Field constructors ---

func String(key, value string) Field {
	return Field{Key: key, Val: value}
}

func Strings(key string, value []string) Field {
	return Field{Key: key, Val: strings.Join(value, ", ")}
}

func Int(key string, value int) Field {
	return Field{Key: key, Val: value}
}

func Int32(key string, value int32) Field {
	return Field{Key: key, Val: int(value)}
}

func Int64(key string, value int64) Field {
	return Field{Key: key, Val: value}
}

func Uint(key string, value uint) Field {
	return Field{Key: key, Val: int(value)}
}

func Uint64(key string, value uint64) Field {
	return Field{Key: key, Val: int64(value)}
}

func Float64(key string, value float64) Field {
	return Field{Key: key, Val: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Val: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Val: int(value / time.Millisecond)}
}

func Error(err error) Field {
	return Field{Key: "error", Val: err}
}

func Any(key string, value interface{}) Field {
	return Field{Key: key, Val: value}
}
