package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for structured logging.
// Use these constants instead of raw strings so log queries stay stable.
const (
	FieldRunID     = "run_id"
	FieldRequestID = "request_id"
	FieldComponent = "component"

	FieldMethod = "method"
	FieldPath   = "path"
	FieldRemote = "remote"

	FieldDurationMS = "duration_ms"
	FieldError      = "error"

	FieldCount          = "count"
	FieldItemID         = "item_id"
	FieldCapacity       = "capacity"
	FieldScheduledCount = "scheduled_count"
	FieldRejectedCount  = "rejected_count"
	FieldTotalValue     = "total_value"
	FieldTrendHigh      = "trend_high"
	FieldRecentMean     = "recent_mean"
	FieldThreshold      = "threshold"

	FieldAddress = "address"
	FieldPort    = "port"
)

type contextKey string

const (
	runIDKey     contextKey = "logger_run_id"
	requestIDKey contextKey = "logger_request_id"
)

// WithRunID adds a scheduling run ID to the context for logging
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// WithRequestID adds a request ID to the context for logging
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request ID stored by WithRequestID, if any
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// FieldsFromContext extracts logging fields from context.
// Returns key-value pairs suitable for use with Infow/Errorw/etc.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}

	if runID, ok := ctx.Value(runIDKey).(string); ok && runID != "" {
		fields = append(fields, FieldRunID, runID)
	}
	if requestID, ok := ctx.Value(requestIDKey).(string); ok && requestID != "" {
		fields = append(fields, FieldRequestID, requestID)
	}

	return fields
}

// LoggerFromContext decorates base with the fields carried by ctx.
func LoggerFromContext(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if base == nil {
		base = Logger
	}
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	svc := schedule.NewService(store, settings, logger.ComponentLogger("schedule"))
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name).With(FieldComponent, name)
}
