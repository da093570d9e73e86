package logging

import (
	"context"
	"log/slog"

	"corrflow/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldCorrespondenceID is the standardized key for correspondence identifiers.
	FieldCorrespondenceID = "correspondence_id"
	// FieldStageID is the standardized key for workflow stage identifiers.
	FieldStageID = "stage_id"
	// FieldUserID is the standardized key for the acting user.
	FieldUserID = "user_id"
	// FieldRequestID is the standardized key for request correlation identifiers.
	FieldRequestID = "request_id"
	// FieldEventType classifies a log line for dashboards and alerting.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to try next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields returns the correspondence, user and request ids carried by ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.CorrespondenceIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldCorrespondenceID, id))
	}
	if id, ok := services.UserIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldUserID, id))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRequestID, rid))
	}
	return fields
}

// WithContext binds ContextFields(ctx) to logger.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(toArgs(fields)...)
}
