// Package logger provides structured JSON logging and run metrics for
// pulep-events.
//
// Every entry is a single JSON object with a timestamp, level, message and
// optional fields. Fields whose key names a credential (cookie,
// authorization, token, password, session) are masked before writing, since
// request headers end up in fetch logs.
//
// Metrics track counters (requests made, detail pages failed), gauges and
// timings, and can be printed at the end of a run.
//
// Example usage:
//
//	logger.Info("fetching results page", logger.Fields{
//	    "page": 2,
//	    "url":  pageURL,
//	})
//
//	logger.IncrCounter("http.requests")
//	logger.RecordTiming("detail.fetch", time.Since(start))
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents log severity
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// MaskValue replaces the value of sensitive fields
const MaskValue = "***REDACTED***"

var levelRank = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

var sensitiveKeywords = []string{"cookie", "authorization", "token", "password", "secret", "session"}

// Logger provides structured logging. It is safe for concurrent use.
type Logger struct {
	mu       sync.Mutex
	minLevel Level
	output   io.Writer
}

// Fields represents structured log fields
type Fields map[string]interface{}

// LogEntry represents a single log entry
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Fields    Fields `json:"fields,omitempty"`
	Error     string `json:"error,omitempty"`
}

var defaultLogger *Logger

func init() {
	defaultLogger = New(LevelInfo, os.Stderr)
}

// New creates a logger that discards messages below level
func New(level Level, output io.Writer) *Logger {
	if _, ok := levelRank[level]; !ok {
		level = LevelInfo
	}
	return &Logger{
		minLevel: level,
		output:   output,
	}
}

// ForVerbosity returns DEBUG when verbose is set, INFO otherwise
func ForVerbosity(verbose bool) Level {
	if verbose {
		return LevelDebug
	}
	return LevelInfo
}

// SetDefault sets the package-level logger used by Debug, Info, Warn and Error
func SetDefault(logger *Logger) {
	defaultLogger = logger
}

// Default returns the package-level logger
func Default() *Logger {
	return defaultLogger
}

func (l *Logger) log(level Level, message string, fields Fields, err error) {
	if !l.shouldLog(level) {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     string(level),
		Message:   message,
		Fields:    sanitize(fields),
	}

	if err != nil {
		entry.Error = err.Error()
	}

	data, marshalErr := json.Marshal(entry)

	l.mu.Lock()
	defer l.mu.Unlock()

	if marshalErr != nil {
		fmt.Fprintf(l.output, "[%s] %s: %s (marshal error: %v)\n",
			entry.Timestamp, entry.Level, entry.Message, marshalErr)
		return
	}

	fmt.Fprintln(l.output, string(data))
}

func (l *Logger) shouldLog(level Level) bool {
	return levelRank[level] >= levelRank[l.minLevel]
}

// Enabled reports whether messages at level would be written
func (l *Logger) Enabled(level Level) bool {
	return l.shouldLog(level)
}

// sanitize returns a copy of fields with credential-like keys masked
func sanitize(fields Fields) Fields {
	if len(fields) == 0 {
		return nil
	}
	out := make(Fields, len(fields))
	for k, v := range fields {
		if isSensitiveKey(k) {
			out[k] = MaskValue
			continue
		}
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		out[k] = v
	}
	return out
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Debug logs detailed diagnostic information such as each fetched URL
func (l *Logger) Debug(message string, fields Fields) {
	l.log(LevelDebug, message, fields, nil)
}

// Info logs general progress of a run
func (l *Logger) Info(message string, fields Fields) {
	l.log(LevelInfo, message, fields, nil)
}

// Warn logs problems that do not stop the run, like a skipped row
func (l *Logger) Warn(message string, fields Fields) {
	l.log(LevelWarn, message, fields, nil)
}

// Error logs failures together with the error that caused them
func (l *Logger) Error(message string, fields Fields, err error) {
	l.log(LevelError, message, fields, err)
}

// Package-level convenience functions using default logger

// Debug logs a debug message with the default logger
func Debug(message string, fields Fields) {
	defaultLogger.Debug(message, fields)
}

// Info logs an info message with the default logger
func Info(message string, fields Fields) {
	defaultLogger.Info(message, fields)
}

// Warn logs a warning message with the default logger
func Warn(message string, fields Fields) {
	defaultLogger.Warn(message, fields)
}

// Error logs an error message with the default logger
func Error(message string, fields Fields, err error) {
	defaultLogger.Error(message, fields, err)
}

// Metrics tracks counters, gauges and timings. All operations are thread-safe.
type Metrics struct {
	mu       sync.Mutex
	counters map[string]int64
	gauges   map[string]float64
	timings  map[string][]time.Duration
}

var defaultMetrics *Metrics

func init() {
	defaultMetrics = NewMetrics()
}

// NewMetrics creates an empty metrics tracker
func NewMetrics() *Metrics {
	return &Metrics{
		counters: make(map[string]int64),
		gauges:   make(map[string]float64),
		timings:  make(map[string][]time.Duration),
	}
}

// IncrCounter increments a counter by 1
func (m *Metrics) IncrCounter(name string) {
	m.AddCounter(name, 1)
}

// AddCounter increments a counter by n
func (m *Metrics) AddCounter(name string, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += n
}

// Counter returns the current value of a counter
func (m *Metrics) Counter(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

// SetGauge sets a gauge, overwriting any previous value
func (m *Metrics) SetGauge(name string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = value
}

// RecordTiming records one duration measurement
func (m *Metrics) RecordTiming(name string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timings[name] = append(m.timings[name], duration)
}

// Reset clears all metrics
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = make(map[string]int64)
	m.gauges = make(map[string]float64)
	m.timings = make(map[string][]time.Duration)
}

// TimingStats summarises the measurements recorded under one name
type TimingStats struct {
	Count   int           `json:"count"`
	Total   time.Duration `json:"total"`
	Average time.Duration `json:"average"`
	Min     time.Duration `json:"min"`
	Max     time.Duration `json:"max"`
}

// Snapshot is a point-in-time copy of a Metrics tracker
type Snapshot struct {
	Counters map[string]int64       `json:"counters"`
	Gauges   map[string]float64     `json:"gauges"`
	Timings  map[string]TimingStats `json:"timings"`
}

func summarise(durations []time.Duration) TimingStats {
	st := TimingStats{Count: len(durations), Min: durations[0], Max: durations[0]}
	for _, d := range durations {
		st.Total += d
		st.Min = min(st.Min, d)
		st.Max = max(st.Max, d)
	}
	st.Average = st.Total / time.Duration(st.Count)
	return st
}

// GetSnapshot copies the current metrics
func (m *Metrics) GetSnapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		Counters: make(map[string]int64, len(m.counters)),
		Gauges:   make(map[string]float64, len(m.gauges)),
		Timings:  make(map[string]TimingStats, len(m.timings)),
	}
	for k, v := range m.counters {
		snap.Counters[k] = v
	}
	for k, v := range m.gauges {
		snap.Gauges[k] = v
	}
	for name, durations := range m.timings {
		if len(durations) > 0 {
			snap.Timings[name] = summarise(durations)
		}
	}
	return snap
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WriteSummary prints counters, gauges and timings as sorted "name value" lines
func (m *Metrics) WriteSummary(w io.Writer) {
	snap := m.GetSnapshot()

	for _, name := range sortedKeys(snap.Counters) {
		fmt.Fprintf(w, "%-24s %d\n", name, snap.Counters[name])
	}
	for _, name := range sortedKeys(snap.Gauges) {
		fmt.Fprintf(w, "%-24s %g\n", name, snap.Gauges[name])
	}
	for _, name := range sortedKeys(snap.Timings) {
		t := snap.Timings[name]
		fmt.Fprintf(w, "%-24s n=%d avg=%s max=%s\n", name, t.Count,
			t.Average.Round(time.Millisecond), t.Max.Round(time.Millisecond))
	}
}

// IncrCounter increments a counter on the default metrics tracker
func IncrCounter(name string) {
	defaultMetrics.IncrCounter(name)
}

// SetGauge sets a gauge on the default metrics tracker
func SetGauge(name string, value float64) {
	defaultMetrics.SetGauge(name, value)
}

// RecordTiming records a timing on the default metrics tracker
func RecordTiming(name string, duration time.Duration) {
	defaultMetrics.RecordTiming(name, duration)
}

// DefaultMetrics returns the package-level metrics tracker
func DefaultMetrics() *Metrics {
	return defaultMetrics
}

// GetMetricsSnapshot returns a snapshot of the default tracker
func GetMetricsSnapshot() Snapshot {
	return defaultMetrics.GetSnapshot()
}
