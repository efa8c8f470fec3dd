// Package logctx carries a request-scoped zerolog logger through context.Context.
//
// Catalog loads attach a load_id field at the top of the call and every
// component below it logs through FromContext, so all entries for one
// ingestion can be correlated:
//
//	ctx = logctx.WithStr(ctx, "load_id", id)
//	logctx.FromContext(ctx).Info().Msg("normalized report")
package logctx

import (
	"context"

	"github.com/eunmann/lineup/pkg/logging"
	"github.com/rs/zerolog"
)

type loggerKey struct{}

// WithLogger returns a new context with the given logger attached.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext extracts the logger from the context. If the context is nil
// or does not contain a logger, the global logger from pkg/logging is returned.
func FromContext(ctx context.Context) zerolog.Logger {
	if ctx == nil {
		return *logging.L()
	}
	if logger, ok := ctx.Value(loggerKey{}).(zerolog.Logger); ok {
		return logger
	}
	return *logging.L()
}

// WithStr returns a new context with a logger that has the specified string field added.
func WithStr(ctx context.Context, key, value string) context.Context {
	logger := FromContext(ctx).With().Str(key, value).Logger()
	return WithLogger(ctx, logger)
}

// WithInt returns a new context with a logger that has the specified int field added.
func WithInt(ctx context.Context, key string, value int) context.Context {
	logger := FromContext(ctx).With().Int(key, value).Logger()
	return WithLogger(ctx, logger)
}
