// Package logger implements the indentation-aware text sink used for the
// OmniSharp output log.
package logger

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

const indentSize = 4

// Logger writes text to an underlying writer, indenting every line by the
// current indent level. A Logger is safe for concurrent use.
type Logger struct {
	mu          sync.Mutex
	w           io.Writer
	prefix      string
	indentLevel int
	atLineStart bool
}

// New returns a Logger writing to w. If prefix is non-empty, each line is
// tagged with "[prefix] " after the indentation.
func New(w io.Writer, prefix string) *Logger {
	return &Logger{
		w:           w,
		prefix:      prefix,
		atLineStart: true,
	}
}

func (l *Logger) appendCore(msg string) {
	if l.atLineStart {
		if l.indentLevel > 0 {
			io.WriteString(l.w, strings.Repeat(" ", l.indentLevel*indentSize))
		}
		if l.prefix != "" {
			fmt.Fprintf(l.w, "[%v] ", l.prefix)
		}
		l.atLineStart = false
	}
	io.WriteString(l.w, msg)
}

// IncreaseIndent indents subsequent lines by one more level.
func (l *Logger) IncreaseIndent() {
	l.mu.Lock()
	l.indentLevel++
	l.mu.Unlock()
}

// DecreaseIndent undoes one IncreaseIndent. It never goes below zero.
func (l *Logger) DecreaseIndent() {
	l.mu.Lock()
	if l.indentLevel > 0 {
		l.indentLevel--
	}
	l.mu.Unlock()
}

// Append writes msg without terminating the line.
func (l *Logger) Append(msg string) {
	l.mu.Lock()
	l.appendCore(msg)
	l.mu.Unlock()
}

// AppendLine writes msg and terminates the line.
func (l *Logger) AppendLine(msg string) {
	l.mu.Lock()
	l.appendCore(msg + "\n")
	l.atLineStart = true
	l.mu.Unlock()
}

// Appendf is like Append but formats with fmt.Sprintf.
func (l *Logger) Appendf(format string, a ...interface{}) {
	l.Append(fmt.Sprintf(format, a...))
}

// AppendLinef is like AppendLine but formats with fmt.Sprintf.
func (l *Logger) AppendLinef(format string, a ...interface{}) {
	l.AppendLine(fmt.Sprintf(format, a...))
}
