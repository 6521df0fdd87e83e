/*
   a09 - Diagnostic channel: debug/warning/error taxonomy.

   Copyright (c) 2024, Richard Cornwell

   Permission is hereby granted, free of charge, to any person obtaining a
   copy of this software and associated documentation files (the "Software"),
   to deal in the Software without restriction, including without limitation
   the rights to use, copy, modify, merge, publish, distribute, sublicense,
   and/or sell copies of the Software, and to permit persons to whom the
   Software is furnished to do so, subject to the following conditions:

   The above copyright notice and this permission notice shall be included in
   all copies or substantial portions of the Software.

   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.  IN NO EVENT SHALL
   RICHARD CORNWELL BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
   IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
   CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
*/

// Package diag implements the three-level diagnostic taxonomy from the
// assembler's error handling design: Debug, Warning (individually
// suppressible, collectively promotable to Error by -w) and Error (always
// fatal to the current pass).
package diag

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Severity of a diagnostic.
type Severity int

const (
	SevDebug Severity = iota
	SevWarning
	SevError
	SevInternal
)

func (s Severity) String() string {
	switch s {
	case SevDebug:
		return "debug"
	case SevWarning:
		return "warning"
	case SevError:
		return "error"
	case SevInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// bitmapWords holds enough 64-bit words for 10 000 warning tags.
const bitmapWords = (10000 + 63) / 64

// Bitmap is a 10 000-bit suppression table indexed by numeric warning tag.
// The zero value has every warning enabled.
type Bitmap struct {
	bits [bitmapWords]uint64
}

// Disable suppresses warning tag.
func (b *Bitmap) Disable(tag int) {
	if tag < 0 || tag >= 10000 {
		return
	}
	b.bits[tag/64] |= 1 << uint(tag%64)
}

// Enable re-enables warning tag.
func (b *Bitmap) Enable(tag int) {
	if tag < 0 || tag >= 10000 {
		return
	}
	b.bits[tag/64] &^= 1 << uint(tag%64)
}

// Suppressed reports whether tag has been disabled.
func (b *Bitmap) Suppressed(tag int) bool {
	if tag < 0 || tag >= 10000 {
		return false
	}
	return b.bits[tag/64]&(1<<uint(tag%64)) != 0
}

// textHandler is a slog.Handler that tees formatted records to a primary
// writer (the listing/log file) and additionally to stderr when debug is
// enabled or the record is above debug level. Mirrors the teacher's
// util/logger.LogHandler.
type textHandler struct {
	out   io.Writer
	mu    *sync.Mutex
	debug bool
}

func (h *textHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *textHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }

func (h *textHandler) WithGroup(_ string) slog.Handler { return h }

func (h *textHandler) Handle(_ context.Context, rec slog.Record) error {
	line := rec.Time.Format("2006/01/02 15:04:05") + " " + rec.Level.String() + ": " + rec.Message
	attrs := []string{}
	rec.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a.Value.String())
		return true
	})
	if len(attrs) > 0 {
		line += " " + strings.Join(attrs, " ")
	}
	line += "\n"

	h.mu.Lock()
	defer h.mu.Unlock()
	var err error
	if h.out != nil {
		_, err = io.WriteString(h.out, line)
	}
	if h.debug || rec.Level > slog.LevelDebug {
		_, _ = io.WriteString(os.Stderr, line)
	}
	return err
}

func newLogger(out io.Writer, debug bool) *slog.Logger {
	h := &textHandler{out: out, mu: &sync.Mutex{}, debug: debug}
	return slog.New(h)
}

// Reporter accumulates diagnostics for one assembly run: the suppression
// bitmap, the fail-on-warning flag, the any-warning-emitted flag, and the
// current file/line context (so messages render "<file>:<line>: severity: ...").
type Reporter struct {
	mu           sync.Mutex
	logger       *slog.Logger
	bitmap       Bitmap
	failOnWarn   bool
	debug        bool
	anyWarning   bool
	errorCount   int
	file         string
	line         int
}

// New creates a Reporter writing formatted diagnostics to out (typically the
// listing file or stderr) and mirrors debug-level records to stderr when
// debug is true.
func New(out io.Writer, debug bool) *Reporter {
	if out == nil {
		out = os.Stderr
	}
	return &Reporter{
		logger: newLogger(out, debug),
		debug:  debug,
	}
}

// SetFailOnWarning implements the -w flag: any warning upgrades the run's
// final result to an error.
func (r *Reporter) SetFailOnWarning(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failOnWarn = v
}

// SetPosition records the current file/line for subsequent messages.
func (r *Reporter) SetPosition(file string, line int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.file = file
	r.line = line
}

// ClearPosition drops the current line so following messages omit ":<line>".
func (r *Reporter) ClearPosition() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.line = 0
}

func (r *Reporter) prefix() string {
	if r.line == 0 {
		if r.file == "" {
			return ""
		}
		return r.file + ": "
	}
	return fmt.Sprintf("%s:%d: ", r.file, r.line)
}

// Debugf emits a debug-severity message, visible only when -d is active.
func (r *Reporter) Debugf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.debug {
		return
	}
	r.logger.Debug(r.prefix() + fmt.Sprintf(format, args...))
}

// Warnf emits a warning with the given four-digit tag (e.g. 12 for W0012),
// unless the tag has been individually suppressed. Returns true if the
// warning was emitted (and thus should trip -w upgrading).
func (r *Reporter) Warnf(tag int, format string, args ...any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bitmap.Suppressed(tag) {
		return false
	}
	r.anyWarning = true
	msg := fmt.Sprintf(format, args...)
	r.logger.Warn(fmt.Sprintf("%sW%04d: %s", r.prefix(), tag, msg))
	return true
}

// Errorf emits a fatal error with the given four-digit tag (e.g. 29 for
// E0029) and returns an error value the caller should propagate upward.
func (r *Reporter) Errorf(tag int, format string, args ...any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errorCount++
	msg := fmt.Sprintf(format, args...)
	r.logger.Error(fmt.Sprintf("%sE%04d: %s", r.prefix(), tag, msg))
	return fmt.Errorf("E%04d: %s", tag, msg)
}

// Internalf reports an E000x-class internal inconsistency: a defect in the
// assembler itself, never in the input (symbol value drift between passes,
// unbalanced expression stacks).
func (r *Reporter) Internalf(code int, format string, args ...any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errorCount++
	msg := fmt.Sprintf(format, args...)
	r.logger.Error(fmt.Sprintf("%sinternal error: E%04d: %s", r.prefix(), code, msg))
	return fmt.Errorf("E%04d: internal error: %s", code, msg)
}

// DisableWarning / EnableWarning implement OPT *DISABLE Wxxxx / *ENABLE Wxxxx.
func (r *Reporter) DisableWarning(tag int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bitmap.Disable(tag)
}

func (r *Reporter) EnableWarning(tag int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bitmap.Enable(tag)
}

// ExitStatus returns the process exit status per spec.md §6.1: 0 on success,
// 1 on any error, and 1 if -w is set and any warning was emitted.
func (r *Reporter) ExitStatus() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.errorCount > 0 {
		return 1
	}
	if r.failOnWarn && r.anyWarning {
		return 1
	}
	return 0
}

// HadErrors reports whether any fatal error has been recorded.
func (r *Reporter) HadErrors() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errorCount > 0
}

// Logger returns the structured slog.Logger used for ambient session events
// (assembly started/finished, back-end selected) as distinct from the
// spec-formatted diagnostic stream above.
func (r *Reporter) Logger() *slog.Logger {
	return r.logger
}
