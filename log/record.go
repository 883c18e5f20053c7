// MFP - Miulti-Function Printers and scanners toolkit
// Logging facilities
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// Multi-line log records

package log

import (
	"fmt"
	"io"
	"time"
)

// Record accumulates a multi-line log entry (for example, the
// lifecycle of a single job) so the lines are written to the
// destination as one atomic block instead of interleaving with
// unrelated log output from other goroutines.
//
// Create a Record with [Logger.Begin] or the package-level [Begin],
// append lines with its leveled methods, and flush it with Commit.
type Record struct {
	logger *Logger
	prefix string
	lines  []recordLine
}

type recordLine struct {
	level Level
	text  string
}

// Begin starts a new [Record] writing through this Logger.
func (l *Logger) Begin(prefix string) *Record {
	return &Record{logger: l.effective(), prefix: prefix}
}

func (r *Record) add(level Level, format string, v ...any) *Record {
	r.lines = append(r.lines, recordLine{level, fmt.Sprintf(format, v...)})
	return r
}

// Trace appends a Trace-level line to the Record.
func (r *Record) Trace(format string, v ...any) *Record {
	return r.add(LevelTrace, format, v...)
}

// Debug appends a Debug-level line to the Record.
func (r *Record) Debug(format string, v ...any) *Record {
	return r.add(LevelDebug, format, v...)
}

// Info appends an Info-level line to the Record.
func (r *Record) Info(format string, v ...any) *Record {
	return r.add(LevelInfo, format, v...)
}

// Warning appends a Warning-level line to the Record.
func (r *Record) Warning(format string, v ...any) *Record {
	return r.add(LevelWarning, format, v...)
}

// Error appends an Error-level line to the Record.
func (r *Record) Error(format string, v ...any) *Record {
	return r.add(LevelError, format, v...)
}

// Commit writes out every accumulated line, in order, and resets
// the Record so it can be reused.
func (r *Record) Commit() {
	l := r.logger
	ts := time.Now().Format("15:04:05.000")

	l.mu.Lock()
	for _, line := range r.lines {
		if line.level < l.level {
			continue
		}
		full := fmt.Sprintf("%s %-7s %s%s\n", ts, line.level, r.prefix, line.text)
		for _, o := range l.outs {
			if line.level >= o.Level {
				io.WriteString(o.W, full)
			}
		}
	}
	l.mu.Unlock()

	r.lines = r.lines[:0]
}
