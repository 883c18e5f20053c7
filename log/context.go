// MFP - Miulti-Function Printers and scanners toolkit
// Logging facilities
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// Context integration

package log

import "context"

type ctxKey int

const (
	ctxKeyLogger ctxKey = iota
	ctxKeyPrefix
)

// NewContext returns a copy of ctx that carries logger. Subsequent
// calls to the package-level logging functions (Info, Debug, ...)
// with this Context will write through logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, ctxKeyLogger, logger)
}

// CtxLogger returns the [Logger] attached to ctx by [NewContext],
// or [DefaultLogger] if ctx carries none. ctx may be nil.
func CtxLogger(ctx context.Context) *Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKeyLogger).(*Logger); ok {
			return l.effective()
		}
	}
	return DefaultLogger
}

// PrefixContext returns a copy of ctx that prepends prefix to every
// message logged through it (used to tag log lines with a request
// or job identifier).
func PrefixContext(ctx context.Context, prefix string) context.Context {
	return context.WithValue(ctx, ctxKeyPrefix, prefix)
}

// CtxPrefix returns the prefix attached to ctx by [PrefixContext],
// or "" if none. ctx may be nil.
func CtxPrefix(ctx context.Context) string {
	if ctx != nil {
		if p, ok := ctx.Value(ctxKeyPrefix).(string); ok {
			return p
		}
	}
	return ""
}
