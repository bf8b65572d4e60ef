// Package requestctx carries per-request values (logger, trace, locale) across package boundaries.
package requestctx

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	traceKey
	localeKey
)

var nop = zap.NewNop()

// TraceInfo is the trace context resolved for the current request.
type TraceInfo struct {
	TraceID   string
	SpanID    string
	Sampled   bool
	ProjectID string
}

func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// WithLogger attaches a request scoped logger. A nil logger clears any previous one.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(orBackground(ctx), loggerKey, logger)
}

// LoggerFrom reports the request logger and whether one was attached.
func LoggerFrom(ctx context.Context) (*zap.Logger, bool) {
	if ctx == nil {
		return nil, false
	}
	logger, ok := ctx.Value(loggerKey).(*zap.Logger)
	return logger, ok && logger != nil
}

// Logger returns the request logger or a no-op logger.
func Logger(ctx context.Context) *zap.Logger {
	if logger, ok := LoggerFrom(ctx); ok {
		return logger
	}
	return nop
}

// WithTrace attaches trace metadata.
func WithTrace(ctx context.Context, info TraceInfo) context.Context {
	return context.WithValue(orBackground(ctx), traceKey, info)
}

// Trace returns the trace metadata attached by the trace middleware.
func Trace(ctx context.Context) (TraceInfo, bool) {
	if ctx == nil {
		return TraceInfo{}, false
	}
	info, ok := ctx.Value(traceKey).(TraceInfo)
	return info, ok
}

// TraceID is a shortcut for Trace(ctx).TraceID.
func TraceID(ctx context.Context) string {
	info, _ := Trace(ctx)
	return info.TraceID
}

// WithLocale attaches the caller's preferred locale tag, e.g. "ja-JP".
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(orBackground(ctx), localeKey, strings.TrimSpace(locale))
}

// Locale returns the attached locale tag or "".
func Locale(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	locale, _ := ctx.Value(localeKey).(string)
	return locale
}
