package llm

import (
	"context"

	"go.uber.org/zap"
)

type contextKey string

const (
	capabilityKey contextKey = "llm_capability"
	requestIDKey  contextKey = "llm_request_id"
)

// WithCapability labels ctx with the capability being served.
func WithCapability(ctx context.Context, c Capability) context.Context {
	return context.WithValue(ctx, capabilityKey, c)
}

// CapabilityFromContext returns the capability label, if present.
func CapabilityFromContext(ctx context.Context) (Capability, bool) {
	c, ok := ctx.Value(capabilityKey).(Capability)
	return c, ok
}

// WithRequestID attaches a request identifier for log correlation.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request identifier, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// LogFields returns the zap fields describing ctx.
func LogFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if c, ok := CapabilityFromContext(ctx); ok {
		fields = append(fields, zap.String("capability", string(c)))
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	return fields
}
