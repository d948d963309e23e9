// Package logger provides the named, levelled loggers shared by the client packages.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel is the minimum severity a logger emits
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	}
	return fmt.Sprintf("LogLevel(%d)", int(l))
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel maps a level name to a LogLevel. Unknown names fall back to INFO
// and report ok=false.
func ParseLevel(name string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return DEBUG, true
	case "INFO":
		return INFO, true
	case "WARN", "WARNING":
		return WARN, true
	case "ERROR":
		return ERROR, true
	}
	return INFO, false
}

var (
	globalLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	registryMu sync.Mutex
	registry   []*Logger
	sharedFile *os.File
)

// Package-level loggers, one per subsystem
var (
	Client  = New("client")
	Network = New("network")
	Session = New("session")
	Archive = New("archive")
)

// Logger is a named printf-style logger
type Logger struct {
	name  string
	mu    sync.RWMutex
	sugar *zap.SugaredLogger
	file  *os.File
}

// New creates a logger writing to stderr and, once file logging is
// initialized, to the shared log file as well.
func New(name string) *Logger {
	l := &Logger{name: name}

	registryMu.Lock()
	registry = append(registry, l)
	shared := sharedFile
	registryMu.Unlock()

	l.rebuild(shared)
	return l
}

// SetGlobalLogLevel changes the level of every logger
func SetGlobalLogLevel(level LogLevel) {
	globalLevel.SetLevel(level.zapLevel())
}

// GlobalLogLevel returns the current level shared by every logger
func GlobalLogLevel() LogLevel {
	switch globalLevel.Level() {
	case zapcore.DebugLevel:
		return DEBUG
	case zapcore.WarnLevel:
		return WARN
	case zapcore.ErrorLevel, zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return ERROR
	}
	return INFO
}

// InitializeFileLogging makes every logger also write to dir/schack.log
func InitializeFileLogging(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(dir, "schack.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	registryMu.Lock()
	if sharedFile != nil {
		sharedFile.Close()
	}
	sharedFile = f
	loggers := append([]*Logger(nil), registry...)
	registryMu.Unlock()

	for _, l := range loggers {
		l.rebuild(f)
	}
	return nil
}

// SetFile redirects this logger's file output to path
func (l *Logger) SetFile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	l.mu.Lock()
	if l.file != nil {
		l.file.Close()
	}
	l.file = f
	l.mu.Unlock()

	l.rebuild(f)
	return nil
}

func (l *Logger) rebuild(file *os.File) {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), globalLevel),
	}

	l.mu.RLock()
	own := l.file
	l.mu.RUnlock()
	if own != nil {
		file = own
	}

	if file != nil {
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(file), globalLevel))
	}

	sugar := zap.New(zapcore.NewTee(cores...)).Named(l.name).Sugar()

	l.mu.Lock()
	l.sugar = sugar
	l.mu.Unlock()
}

func (l *Logger) logger() *zap.SugaredLogger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sugar
}

// With returns a child logger carrying the given key/value pairs on every entry.
// The child does not follow later SetFile calls on its parent.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{name: l.name, sugar: l.logger().With(keysAndValues...)}
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.logger().Debugf(format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.logger().Infof(format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.logger().Warnf(format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.logger().Errorf(format, args...)
}

// Sync flushes buffered entries
func (l *Logger) Sync() error {
	return l.logger().Sync()
}
