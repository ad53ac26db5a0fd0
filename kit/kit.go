// Package kit provides transport glue shared by the domgloss surfaces:
// a transport-neutral Endpoint type, request-scoped context keys, and
// MCP tool registration.
package kit

import "context"

// Endpoint is a transport-neutral handler. HTTP and MCP layers decode
// their wire format into a typed request and delegate here.
type Endpoint func(ctx context.Context, req any) (any, error)

type contextKey string

const (
	// TransportKey records which surface a request arrived on: "http", "mcp".
	TransportKey contextKey = "gloss_transport"
	// RequestIDKey carries the per-request correlation ID.
	RequestIDKey contextKey = "gloss_request_id"
	// SessionIDKey carries the MCP session ID for session-scoped transports.
	SessionIDKey contextKey = "gloss_session_id"
	// RemoteAddrKey carries the peer address as reported by the transport.
	RemoteAddrKey contextKey = "gloss_remote_addr"
)

// WithTransport tags the context with the originating transport.
func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, TransportKey, t)
}

// GetTransport returns the originating transport, defaulting to "http".
func GetTransport(ctx context.Context) string {
	if v, ok := ctx.Value(TransportKey).(string); ok {
		return v
	}
	return "http"
}

// WithRequestID tags the context with a correlation ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// GetRequestID returns the correlation ID, or "" when absent.
func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(RequestIDKey).(string)
	return v
}

// WithSessionID tags the context with a transport session ID.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SessionIDKey, id)
}

// GetSessionID returns the session ID, or "" when absent.
func GetSessionID(ctx context.Context) string {
	v, _ := ctx.Value(SessionIDKey).(string)
	return v
}

// WithRemoteAddr tags the context with the peer address.
func WithRemoteAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, RemoteAddrKey, addr)
}

// GetRemoteAddr returns the peer address, or "" when absent.
func GetRemoteAddr(ctx context.Context) string {
	v, _ := ctx.Value(RemoteAddrKey).(string)
	return v
}
