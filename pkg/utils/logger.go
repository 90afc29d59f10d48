package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

const DefaultLogFile = ".housegen/housegen.log"

// Logger writes pipeline activity to a rotating log file. Console output is
// left to the CLI.
type Logger struct {
	logger        *log.Logger
	closer        io.Closer
	jsonMode      bool
	correlationID string
	mu            sync.Mutex
}

// NewLogger opens a lumberjack-backed logger at path. JSON lines are used when
// jsonMode is set or HOUSEGEN_JSON_LOGS=1.
func NewLogger(path string, jsonMode bool) *Logger {
	if path == "" {
		path = DefaultLogFile
	}
	_ = os.MkdirAll(filepath.Dir(path), 0755)
	logFile := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    15, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	l := &Logger{
		logger:   log.New(logFile, "", log.LstdFlags),
		closer:   logFile,
		jsonMode: jsonMode || os.Getenv("HOUSEGEN_JSON_LOGS") == "1",
	}
	return l
}

// NewWriterLogger logs to an arbitrary writer. Used by tests and by callers
// that want logs on stderr.
func NewWriterLogger(w io.Writer, jsonMode bool) *Logger {
	return &Logger{logger: log.New(w, "", log.LstdFlags), jsonMode: jsonMode}
}

// NopLogger discards everything.
func NopLogger() *Logger {
	return NewWriterLogger(io.Discard, false)
}

// WithCorrelationID sets the id stamped on every JSON record.
func (w *Logger) WithCorrelationID(id string) *Logger {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.correlationID = id
	return w
}

// Close closes the logger resources.
func (w *Logger) Close() error {
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

func (w *Logger) write(level, message string, fields map[string]any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.jsonMode {
		rec := map[string]any{"level": level, "msg": message, "cid": w.correlationID}
		for k, v := range fields {
			rec[k] = v
		}
		_ = json.NewEncoder(w.logger.Writer()).Encode(rec)
		return
	}
	if w.correlationID != "" {
		w.logger.Printf("[%s] [%s] %s%s", level, w.correlationID, message, formatFields(fields))
		return
	}
	w.logger.Printf("[%s] %s%s", level, message, formatFields(fields))
}

// Log logs a general message.
func (w *Logger) Log(message string) {
	w.write("info", message, nil)
}

// Logf logs a formatted general message.
func (w *Logger) Logf(format string, v ...interface{}) {
	w.write("info", fmt.Sprintf(format, v...), nil)
}

// LogStage records a pipeline stage transition with optional fields.
func (w *Logger) LogStage(stage string, fields map[string]any) {
	w.write("info", "stage "+stage, fields)
}

// Warnf logs a recoverable problem such as a skipped render.
func (w *Logger) Warnf(format string, v ...interface{}) {
	w.write("warn", fmt.Sprintf(format, v...), nil)
}

func (w *Logger) LogError(err error) {
	if err == nil {
		return
	}
	w.write("error", err.Error(), nil)
}

func formatFields(fields map[string]any) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for _, k := range keys {
		out += fmt.Sprintf(" %s=%v", k, fields[k])
	}
	return out
}
