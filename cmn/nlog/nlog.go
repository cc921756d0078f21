// Package nlog is the orchestration runtime's logger: leveled, writing each
// record synchronously (Flush is a no-op). Adapted from aistore's cmn/nlog -- that implementation
// rotates multi-gigabyte daily log files across long-lived storage daemons;
// a simulation run is a single short-lived process per component, so this
// version drops file rotation and buffer pooling and writes straight to
// stderr (optionally as one jsoniter-encoded line per record).
package nlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/nginfra/movici-simulation-core-sub002/cmn/mono"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

var sevChar = [...]byte{'I', 'W', 'E'}
var sevName = [...]string{"info", "warning", "error"}

// format of log lines written to the sink
type Format int

const (
	FormatPlain Format = iota
	FormatJSON
)

type record struct {
	Time  string `json:"time"`
	Sev   string `json:"level"`
	File  string `json:"file"`
	Line  int    `json:"line"`
	Msg   string `json:"msg"`
}

type logger struct {
	mu     sync.Mutex
	out    io.Writer
	level  severity
	format Format
	last   int64
}

var std = &logger{out: os.Stderr, level: sevInfo}

// SetLevel accepts "info", "warn"/"warning", "error"/"err" (case-insensitive);
// an empty string selects info, and other unrecognized values leave the
// level unchanged, matching MOVICI_LOG_LEVEL.
func SetLevel(s string) {
	switch strings.ToLower(s) {
	case "info", "":
		std.setLevel(sevInfo)
	case "warn", "warning":
		std.setLevel(sevWarn)
	case "error", "err":
		std.setLevel(sevErr)
	}
}

// SetFormat accepts "plain" or "json", matching MOVICI_LOG_FORMAT.
func SetFormat(s string) {
	switch strings.ToLower(s) {
	case "json":
		std.setFormat(FormatJSON)
	default:
		std.setFormat(FormatPlain)
	}
}

func SetOutput(w io.Writer) {
	std.mu.Lock()
	std.out = w
	std.mu.Unlock()
}

func (l *logger) setLevel(s severity) {
	l.mu.Lock()
	l.level = s
	l.mu.Unlock()
}

func (l *logger) setFormat(f Format) {
	l.mu.Lock()
	l.format = f
	l.mu.Unlock()
}

func InfoDepth(depth int, args ...any)    { std.log(sevInfo, depth+1, "", args...) }
func Infoln(args ...any)                  { std.log(sevInfo, 1, "", args...) }
func Infof(format string, args ...any)    { std.log(sevInfo, 1, format, args...) }
func Warningln(args ...any)               { std.log(sevWarn, 1, "", args...) }
func Warningf(format string, args ...any) { std.log(sevWarn, 1, format, args...) }
func ErrorDepth(depth int, args ...any)   { std.log(sevErr, depth+1, "", args...) }
func Errorln(args ...any)                 { std.log(sevErr, 1, "", args...) }
func Errorf(format string, args ...any)   { std.log(sevErr, 1, format, args...) }

// Flush is a no-op retained for call-site parity with a buffered-writer
// logger API; this logger writes synchronously.
func Flush(...bool) {}

func Since() time.Duration {
	std.mu.Lock()
	last := std.last
	std.mu.Unlock()
	if last == 0 {
		return 0
	}
	return time.Duration(mono.NanoTime() - last)
}

func (l *logger) log(sev severity, depth int, format string, args ...any) {
	l.mu.Lock()
	if sev < l.level {
		l.mu.Unlock()
		return
	}
	out, format2 := l.out, l.format
	l.last = mono.NanoTime()
	l.mu.Unlock()

	msg := sprint(format, args...)
	file, line := caller(depth + 1)

	switch format2 {
	case FormatJSON:
		b, err := json.Marshal(record{
			Time: time.Now().Format(time.RFC3339Nano),
			Sev:  sevName[sev],
			File: file,
			Line: line,
			Msg:  msg,
		})
		if err != nil {
			fmt.Fprintf(out, "%c log-marshal-error: %v\n", sevChar[sev], err)
			return
		}
		out.Write(append(b, '\n'))
	default:
		fmt.Fprintf(out, "%c %s %s:%d %s\n", sevChar[sev], time.Now().Format("15:04:05.000000"), file, line, msg)
	}
}

func sprint(format string, args ...any) string {
	if format == "" {
		return strings.TrimSuffix(fmt.Sprintln(args...), "\n")
	}
	return fmt.Sprintf(format, args...)
}

func caller(depth int) (file string, line int) {
	_, fn, ln, ok := runtime.Caller(2 + depth)
	if !ok {
		return "???", 0
	}
	if idx := strings.LastIndexByte(fn, filepath.Separator); idx >= 0 {
		fn = fn[idx+1:]
	}
	return fn, ln
}
