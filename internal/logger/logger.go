package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"zonewatch/internal/config"
)

const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

// Logger provides leveled logging (debug/info/warning/error) to files and stdout/stderr.
type Logger struct {
	debugLog   *log.Logger
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	logDir     string
	debug      bool
	mu         sync.Mutex
}

// NewLogger creates a Logger and ensures the log directory exists.
func NewLogger(cfg *config.Config) *Logger {
	if err := os.MkdirAll(cfg.LogDirectory, 0755); err != nil {
		log.Fatalf("Failed to create log directory: %v", err)
	}

	l := &Logger{
		logDir: cfg.LogDirectory,
		debug:  cfg.Debug,
	}
	l.setupLoggers()
	return l
}

// New creates a Logger that writes every level to w and keeps no files.
func New(w io.Writer) *Logger {
	l := &Logger{}
	l.debugLog = log.New(w, "🔍 DEBUG   ", log.Ldate|log.Ltime|log.Lshortfile)
	l.infoLog = log.New(w, "ℹ️  INFO    ", log.Ldate|log.Ltime|log.Lshortfile)
	l.warningLog = log.New(w, "⚠️  WARNING ", log.Ldate|log.Ltime|log.Lshortfile)
	l.errorLog = log.New(w, "❌ ERROR   ", log.Ldate|log.Ltime|log.Lshortfile)
	return l
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return New(io.Discard)
}

// setupLoggers initializes writers and per-level loggers.
func (l *Logger) setupLoggers() {
	infoFileHandle := l.openLogFile(filepath.Join(l.logDir, InfoFile))
	warningFileHandle := l.openLogFile(filepath.Join(l.logDir, WarningFile))
	errorFileHandle := l.openLogFile(filepath.Join(l.logDir, ErrorFile))

	infoWriter := io.MultiWriter(os.Stdout, infoFileHandle)
	warningWriter := io.MultiWriter(os.Stdout, warningFileHandle)
	errorWriter := io.MultiWriter(os.Stderr, errorFileHandle)

	l.debugLog = log.New(os.Stdout, "🔍 DEBUG   ", log.Ldate|log.Ltime|log.Lshortfile)
	l.infoLog = log.New(infoWriter, "ℹ️  INFO    ", log.Ldate|log.Ltime|log.Lshortfile)
	l.warningLog = log.New(warningWriter, "⚠️  WARNING ", log.Ldate|log.Ltime|log.Lshortfile)
	l.errorLog = log.New(errorWriter, "❌ ERROR   ", log.Ldate|log.Ltime|log.Lshortfile)
}

// openLogFile opens or creates a log file for appending.
func (l *Logger) openLogFile(filename string) *os.File {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file %s: %v", filename, err)
	}
	return file
}

// SetDebug enables or disables the debug level.
func (l *Logger) SetDebug(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debug = enabled
}

// Debug writes a formatted debug-level entry when debug output is enabled.
func (l *Logger) Debug(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.debug {
		return
	}
	l.debugLog.Output(2, sprintf(format, v...))
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoLog.Output(2, sprintf(format, v...))
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warningLog.Output(2, sprintf(format, v...))
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorLog.Output(2, sprintf(format, v...))
}

// Dir returns the directory holding the level files, empty for writer-backed loggers.
func (l *Logger) Dir() string {
	return l.logDir
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) error {
	if l.logDir == "" {
		return nil
	}
	filePath := filepath.Join(l.logDir, filepath.Base(fileName))
	file, err := os.OpenFile(filePath, os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		l.Error("Error opening file: %v", err)
		return err
	}
	defer file.Close()

	l.Info("File %s has been cleared.", fileName)
	return nil
}

func sprintf(format string, v ...interface{}) string {
	if len(v) == 0 {
		return format
	}
	return fmt.Sprintf(format, v...)
}
