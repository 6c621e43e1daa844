package grafana

import (
	"context"
	"net/http"
	"sync"
)

// SessionContext is the typed per-session state owned by the transport. It
// caches the resolved Grafana configuration after the first use so every
// tool call in a session sees the same credentials.
type SessionContext struct {
	mu      sync.Mutex
	headers http.Header
	config  *Config
}

// NewSessionContext creates session state bound to the headers of the
// request that opened the session. A nil header set means stdio: the
// configuration then comes from the environment alone.
func NewSessionContext(headers http.Header) *SessionContext {
	return &SessionContext{headers: headers}
}

// Config resolves and caches the Grafana configuration for this session.
func (s *SessionContext) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil {
		var cfg Config
		if s.headers == nil {
			cfg = ConfigFromEnv()
		} else {
			cfg = ConfigFromHeaders(s.headers)
		}
		s.config = &cfg
	}
	return *s.config
}

type sessionContextKey struct{}

// WithSession attaches the session state to a context for handler
// injection.
func WithSession(ctx context.Context, session *SessionContext) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, session)
}

// SessionFromContext returns the session state attached to the context, or
// nil when none is present.
func SessionFromContext(ctx context.Context) *SessionContext {
	session, _ := ctx.Value(sessionContextKey{}).(*SessionContext)
	return session
}

// ConfigFromContext resolves the Grafana configuration for the current
// call, falling back to the environment when no session is attached.
func ConfigFromContext(ctx context.Context) Config {
	if session := SessionFromContext(ctx); session != nil {
		return session.Config()
	}
	return ConfigFromEnv()
}
