package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"go.opentelemetry.io/otel/trace"
)

// ProductionLogger is the structured logger used across the service.
//
// Output format follows LoggingConfig: JSON lines for log aggregation or a
// human-readable text line for local development. Context-aware variants
// attach the active trace and span ids so log lines can be joined with traces.
type ProductionLogger struct {
	level       string
	serviceName string
	component   string
	format      string
	pretty      bool
	output      io.Writer
	mu          *sync.Mutex
}

var levelRank = map[string]int{
	"DEBUG": 0,
	"INFO":  1,
	"WARN":  2,
	"ERROR": 3,
}

// NewProductionLogger creates a logger from logging and development config.
func NewProductionLogger(logging LoggingConfig, dev DevelopmentConfig, serviceName string) *ProductionLogger {
	level := strings.ToUpper(logging.Level)
	if dev.DebugLogging {
		level = "DEBUG"
	}
	if _, ok := levelRank[level]; !ok {
		level = "INFO"
	}

	var out io.Writer = os.Stdout
	if strings.EqualFold(logging.Output, "stderr") {
		out = os.Stderr
	}

	return &ProductionLogger{
		level:       level,
		serviceName: serviceName,
		component:   "guessr",
		format:      strings.ToLower(logging.Format),
		pretty:      dev.PrettyLogs,
		output:      out,
		mu:          &sync.Mutex{},
	}
}

// WithComponent returns a child logger sharing output and level but tagged
// with a different component.
func (l *ProductionLogger) WithComponent(component string) Logger {
	child := *l
	child.component = component
	return &child
}

// SetOutput changes the output writer (useful for testing)
func (l *ProductionLogger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
}

// SetLevel dynamically updates the log level
func (l *ProductionLogger) SetLevel(level string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := levelRank[strings.ToUpper(level)]; ok {
		l.level = strings.ToUpper(level)
	}
}

func (l *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	l.log(context.Background(), "INFO", msg, fields)
}

func (l *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	l.log(context.Background(), "WARN", msg, fields)
}

func (l *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	l.log(context.Background(), "ERROR", msg, fields)
}

func (l *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	l.log(context.Background(), "DEBUG", msg, fields)
}

func (l *ProductionLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log(ctx, "INFO", msg, fields)
}

func (l *ProductionLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log(ctx, "WARN", msg, fields)
}

func (l *ProductionLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log(ctx, "ERROR", msg, fields)
}

func (l *ProductionLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log(ctx, "DEBUG", msg, fields)
}

func (l *ProductionLogger) log(ctx context.Context, level, msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if levelRank[level] < levelRank[l.level] {
		return
	}

	entry := make(map[string]interface{}, len(fields)+4)
	for k, v := range fields {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		entry[k] = v
	}
	if ctx != nil {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			entry["trace_id"] = sc.TraceID().String()
			entry["span_id"] = sc.SpanID().String()
		}
	}

	timestamp := time.Now().Format(time.RFC3339)
	if l.format == "json" {
		l.logJSON(timestamp, level, msg, entry)
		return
	}
	l.logText(timestamp, level, msg, entry)
}

// logJSON outputs structured JSON logs
func (l *ProductionLogger) logJSON(timestamp, level, msg string, fields map[string]interface{}) {
	logEntry := map[string]interface{}{
		"timestamp": timestamp,
		"level":     level,
		"service":   l.serviceName,
		"component": l.component,
		"message":   msg,
	}

	// Avoid overwriting core fields
	for k, v := range fields {
		if _, reserved := logEntry[k]; !reserved {
			logEntry[k] = v
		}
	}

	if data, err := json.Marshal(logEntry); err == nil {
		fmt.Fprintln(l.output, string(data))
	}
}

// logText outputs human-readable text logs with fields sorted by key
func (l *ProductionLogger) logText(timestamp, level, msg string, fields map[string]interface{}) {
	var fieldStr strings.Builder
	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if k == "error" {
				fieldStr.WriteString(fmt.Sprintf(" %s=%q", k, fmt.Sprint(fields[k])))
				continue
			}
			fieldStr.WriteString(fmt.Sprintf(" %s=%v", k, fields[k]))
		}
	}

	levelTag := "[" + level + "]"
	if l.pretty {
		levelTag = colorize(level, levelTag)
	}

	fmt.Fprintf(l.output, "%s %s [%s:%s] %s%s\n",
		timestamp, levelTag, l.serviceName, l.component, msg, fieldStr.String())
}

func colorize(level, s string) string {
	switch level {
	case "ERROR":
		return color.RedString(s)
	case "WARN":
		return color.YellowString(s)
	case "DEBUG":
		return color.CyanString(s)
	default:
		return color.GreenString(s)
	}
}
