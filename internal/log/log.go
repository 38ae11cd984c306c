// Package log provides context-aware CLI logging for glimpse.
package log

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

type ctxKey struct{}

// Logger writes progress and diagnostic lines.
type Logger struct {
	out     io.Writer
	verbose bool
	quiet   bool
	glyphs  bool
}

// New creates a new logger. Status glyphs are only printed when out is a terminal.
func New(out io.Writer, verbose, quiet bool) *Logger {
	return &Logger{out: out, verbose: verbose, quiet: quiet, glyphs: isTerminal(out)}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{out: io.Discard, quiet: true}
}

// WithLogger attaches a logger to the context.
func WithLogger(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves the logger from context.
// Returns a no-op logger if none is attached.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok && l != nil {
		return l
	}
	return Discard()
}

// Printf writes formatted output unless quiet.
func (l *Logger) Printf(format string, args ...any) {
	if l.quiet {
		return
	}
	fmt.Fprintf(l.out, format, args...)
}

// Println writes a line of output unless quiet.
func (l *Logger) Println(args ...any) {
	if l.quiet {
		return
	}
	fmt.Fprintln(l.out, args...)
}

// Successf writes a success line.
func (l *Logger) Successf(format string, args ...any) {
	l.status("✓", "ok", format, args...)
}

// Failf writes a failure line.
func (l *Logger) Failf(format string, args ...any) {
	l.status("✗", "fail", format, args...)
}

// Warnf writes a warning. Warnings are printed even when quiet.
func (l *Logger) Warnf(format string, args ...any) {
	prefix := "Warning: "
	if l.glyphs {
		prefix = "⚠️  "
	}
	fmt.Fprintf(l.out, prefix+format+"\n", args...)
}

// Debugf writes a line only in verbose mode.
func (l *Logger) Debugf(format string, args ...any) {
	if !l.verbose {
		return
	}
	fmt.Fprintf(l.out, format+"\n", args...)
}

// Verbose returns true if verbose mode is enabled.
func (l *Logger) Verbose() bool {
	return l.verbose
}

// Writer returns the underlying writer.
func (l *Logger) Writer() io.Writer {
	return l.out
}

func (l *Logger) status(glyph, word, format string, args ...any) {
	if l.quiet {
		return
	}
	prefix := "[" + word + "] "
	if l.glyphs {
		prefix = glyph + " "
	}
	fmt.Fprintf(l.out, prefix+format+"\n", args...)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
