package logger

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	appDirName  = ".ghupdater"
	logFileName = "debug.log"
)

var (
	instance *Logger
	once     sync.Once
)

type loggerKey struct{}

// Logger handles all application logging
type Logger struct {
	file  *os.File
	log   *logrus.Logger
	debug bool
	path  string
}

// Initialize sets up the logger singleton
func Initialize(debugMode bool) error {
	once.Do(func() {
		instance = newLogger(debugMode)
		// Always try to set up logging, but gracefully fall back on failure
		if err := instance.setupLogFile(); err != nil {
			instance.setupFallbackLogger()
		}
	})
	return nil
}

func newLogger(debugMode bool) *Logger {
	l := &Logger{
		log:   logrus.New(),
		debug: debugMode,
	}
	l.log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		DisableColors:   true,
	})
	l.log.SetLevel(logrus.InfoLevel)
	if debugMode {
		l.log.SetLevel(logrus.DebugLevel)
	}
	return l
}

// GetLogger returns the logger instance
func GetLogger() *Logger {
	if instance == nil {
		Initialize(false)
	}
	return instance
}

// SetLevel changes the minimum level, e.g. from the log_level config key.
// Unknown names are ignored.
func (l *Logger) SetLevel(name string) {
	if l.debug {
		return
	}
	if lvl, err := logrus.ParseLevel(strings.TrimSpace(name)); err == nil {
		l.log.SetLevel(lvl)
	}
}

func (l *Logger) setupLogFile() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	logDir := filepath.Join(homeDir, appDirName)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return err
	}

	logPath := filepath.Join(logDir, logFileName)
	l.file, err = os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	l.path = logPath
	l.log.SetOutput(l.writer(l.file))

	l.Info("=== ghupdater started ===")
	l.Info("Log file: %s", logPath)
	l.Info("Debug mode: %v", l.debug)
	return nil
}

// setupFallbackLogger configures logging to the temp dir or stderr
func (l *Logger) setupFallbackLogger() {
	tmpPath := filepath.Join(os.TempDir(), "ghupdater-debug.log")
	if f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
		l.file = f
		l.path = tmpPath
		l.log.SetOutput(l.writer(f))
		l.Info("Using fallback log path: %s", tmpPath)
		return
	}

	// As last resort, log to stderr only
	l.file = nil
	l.path = ""
	l.log.SetOutput(os.Stderr)
	l.Info("Falling back to stderr logging (no file)")
}

// writer also streams to stderr in debug mode
func (l *Logger) writer(f *os.File) io.Writer {
	if l.debug {
		return io.MultiWriter(f, os.Stderr)
	}
	return f
}

// Close closes the log file
func (l *Logger) Close() {
	if l.file != nil {
		l.Info("=== ghupdater stopped ===")
		l.file.Close()
		l.file = nil
		l.log.SetOutput(io.Discard)
	}
}

// GetLogPath returns the path to the log file
func GetLogPath() string {
	if instance != nil && instance.path != "" {
		return instance.path
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, appDirName, logFileName)
}

// Entry returns a structured entry for field logging
func (l *Logger) Entry() *logrus.Entry {
	if l == nil || l.log == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return logrus.NewEntry(l.log)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.Entry().Debugf(format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.Entry().Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.Entry().Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.Entry().Errorf(format, args...)
}

// WithLogger returns a new context with the provided logger. Use in
// combination with WithField(s) for scoped logging.
func WithLogger(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerKey{}, entry)
}

// G retrieves the logger from the context, falling back to the
// application logger
func G(ctx context.Context) *logrus.Entry {
	if ctx != nil {
		if entry, ok := ctx.Value(loggerKey{}).(*logrus.Entry); ok {
			return entry
		}
	}
	return GetLogger().Entry()
}

// Static functions for easier access
func Debug(format string, args ...interface{}) {
	GetLogger().Debug(format, args...)
}

func Info(format string, args ...interface{}) {
	GetLogger().Info(format, args...)
}

func Warn(format string, args ...interface{}) {
	GetLogger().Warn(format, args...)
}

func Error(format string, args ...interface{}) {
	GetLogger().Error(format, args...)
}
