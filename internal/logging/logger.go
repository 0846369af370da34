package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// CallLog represents a single compile_script/call_function invocation,
// whether it ran in-process or through a sandbox supervisor.
type CallLog struct {
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id"`
	Engine      string    `json:"engine"`
	Operation   string    `json:"operation"` // "compile_script" or "call_function"
	Function    string    `json:"function,omitempty"`
	DurationMs  int64     `json:"duration_ms"`
	Sandboxed   bool      `json:"sandboxed"`
	Success     bool      `json:"success"`
	Timeout     bool      `json:"timeout,omitempty"`
	Reentrant   bool      `json:"reentrant,omitempty"`
	Error       string    `json:"error,omitempty"`
	CallbackCnt int       `json:"callback_count,omitempty"`
}

// Logger handles per-call structured logging, separate from the
// operational logger in slog.go.
type Logger struct {
	mu      sync.Mutex
	enabled bool
	file    *os.File
	console bool
}

var defaultLogger = &Logger{enabled: true, console: true}

// Default returns the default logger.
func Default() *Logger {
	return defaultLogger
}

// SetOutput sets the log output file.
func (l *Logger) SetOutput(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	l.file = f
	return nil
}

// SetConsole enables/disables console output.
func (l *Logger) SetConsole(enabled bool) {
	l.mu.Lock()
	l.console = enabled
	l.mu.Unlock()
}

// Log writes a call log entry.
func (l *Logger) Log(entry *CallLog) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return
	}

	entry.Timestamp = time.Now()

	if l.console {
		status := "✓"
		if !entry.Success {
			status = "✗"
		}
		timeout := ""
		if entry.Timeout {
			timeout = " [timeout]"
		}
		fmt.Printf("[call] %s %s %s/%s %dms%s\n",
			status, entry.RequestID, entry.Engine, entry.Operation, entry.DurationMs, timeout)
		if entry.Error != "" {
			fmt.Printf("[call]   error: %s\n", entry.Error)
		}
	}

	if l.file != nil {
		data, _ := json.Marshal(entry)
		l.file.Write(append(data, '\n'))
	}
}

// Close closes the log file.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}
