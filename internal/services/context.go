package services

import "context"

type contextKey string

const (
	correspondenceIDKey contextKey = "correspondence_id"
	userIDKey           contextKey = "user_id"
	requestIDKey        contextKey = "request_id"
	clientIPKey         contextKey = "client_ip"
)

// WithCorrespondenceID annotates context with the correspondence identifier.
func WithCorrespondenceID(ctx context.Context, id int64) context.Context {
	if id <= 0 {
		return ctx
	}
	return context.WithValue(ctx, correspondenceIDKey, id)
}

// CorrespondenceIDFromContext extracts the correspondence identifier if present.
func CorrespondenceIDFromContext(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(correspondenceIDKey).(int64)
	return v, ok && v > 0
}

// WithUserID annotates context with the acting user identifier.
func WithUserID(ctx context.Context, id int64) context.Context {
	if id <= 0 {
		return ctx
	}
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromContext extracts the acting user identifier if present.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(userIDKey).(int64)
	return v, ok && v > 0
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithClientIP annotates context with the remote address of the caller.
func WithClientIP(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIPFromContext extracts the caller address if present.
func ClientIPFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(clientIPKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
