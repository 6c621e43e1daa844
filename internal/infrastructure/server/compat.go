package server

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sandersouza/grafanaFastMCP/internal/infrastructure/logging"
)

// Environment variables controlling the streamable HTTP listener timeouts.
const (
	KeepAliveTimeoutEnv = "MCP_STREAMABLE_HTTP_TIMEOUT_KEEP_ALIVE"
	NotifyTimeoutEnv    = "MCP_STREAMABLE_HTTP_TIMEOUT_NOTIFY"
	GracefulTimeoutEnv  = "MCP_STREAMABLE_HTTP_TIMEOUT_GRACEFUL_SHUTDOWN"
)

const (
	contentTypeJSON = "application/json"
	contentTypeSSE  = "text/event-stream"
)

// ListenerTimeouts are the idle, notify, and graceful-shutdown windows
// applied to the HTTP listener.
type ListenerTimeouts struct {
	KeepAlive        time.Duration
	Notify           time.Duration
	GracefulShutdown time.Duration
}

// CompatibilityLayer groups the behavioral overrides that relax the strict
// upstream transport contract. Every install method is idempotent: the
// layer records what has been applied and repeat calls are no-ops, since
// more than one subsystem may request the same override during startup.
type CompatibilityLayer struct {
	mu sync.Mutex

	acceptInstalled       bool
	timeoutsInstalled     bool
	aliasInstalled        bool
	instructionsInstalled bool

	timeouts ListenerTimeouts
	logger   *logging.Logger
}

// NewCompatibilityLayer creates an empty compatibility layer.
func NewCompatibilityLayer(logger *logging.Logger) *CompatibilityLayer {
	if logger == nil {
		logger = logging.Default()
	}
	return &CompatibilityLayer{logger: logger}
}

// InstallLenientAccept switches the server to the relaxed Accept header
// negotiation so clients that only name one of the two media types are
// still served.
func (c *CompatibilityLayer) InstallLenientAccept(s *StreamableServer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.acceptInstalled {
		return
	}
	s.negotiate = NegotiateAccept
	c.acceptInstalled = true
}

// InstallListenerTimeouts reads the timeout environment variables and
// applies them to the HTTP server. The values are cached on first install.
func (c *CompatibilityLayer) InstallListenerTimeouts(srv *http.Server) ListenerTimeouts {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.timeoutsInstalled {
		c.timeouts = timeoutsFromEnv()
		c.logger.Info("streamable HTTP timeouts configured", logging.Fields{
			"keep_alive":        c.timeouts.KeepAlive.String(),
			"notify":            c.timeouts.Notify.String(),
			"graceful_shutdown": c.timeouts.GracefulShutdown.String(),
		})
		c.timeoutsInstalled = true
	}
	if srv != nil {
		srv.IdleTimeout = c.timeouts.KeepAlive
	}
	return c.timeouts
}

// InstallEndpointAlias registers the streamable handler under a second
// path so differently-versioned clients reach the same session map.
func (c *CompatibilityLayer) InstallEndpointAlias(mux *http.ServeMux, s *StreamableServer, alias string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.aliasInstalled || alias == "" || alias == s.path {
		return
	}
	mux.Handle(alias, s)
	c.logger.Debug("registered endpoint alias", logging.Fields{"alias": alias})
	c.aliasInstalled = true
}

// InstallPendingInstructions stores the instructions text delivered once
// per newly initialized session as a session.update frame.
func (c *CompatibilityLayer) InstallPendingInstructions(s *StreamableServer, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.instructionsInstalled {
		return
	}
	s.setPendingInstructions(text)
	c.instructionsInstalled = true
}

func timeoutsFromEnv() ListenerTimeouts {
	keepAlive := envSeconds(KeepAliveTimeoutEnv, 65)
	notify := envSeconds(NotifyTimeoutEnv, 120)
	gracefulDefault := notify
	if gracefulDefault < 120*time.Second {
		gracefulDefault = 120 * time.Second
	}
	graceful := envDuration(GracefulTimeoutEnv, gracefulDefault)
	return ListenerTimeouts{KeepAlive: keepAlive, Notify: notify, GracefulShutdown: graceful}
}

func envSeconds(key string, fallback float64) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return time.Duration(fallback * float64(time.Second))
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return time.Duration(fallback * float64(time.Second))
	}
	return time.Duration(seconds * float64(time.Second))
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return time.Duration(seconds * float64(time.Second))
}

// NegotiateAccept applies the lenient Accept header rules. An absent or
// blank header accepts both modes, as does an explicit */* or bare *.
// JSON is accepted for an exact media type, an application/* wildcard, or
// a +json suffix; the event stream for an exact media type or a text/*
// wildcard. A client that accepts only the event stream is assumed to
// read JSON payloads inside it, so JSON acceptance is implied.
func NegotiateAccept(accept string) (hasJSON, hasSSE bool) {
	if strings.TrimSpace(accept) == "" {
		return true, true
	}

	mediaTypes := normalizeMediaTypes(accept)
	if len(mediaTypes) == 0 {
		return true, true
	}

	for _, media := range mediaTypes {
		if media == "*/*" || media == "*" {
			return true, true
		}
		if strings.HasPrefix(media, contentTypeJSON) ||
			isWildcard(media, "application") ||
			strings.HasSuffix(media, "+json") {
			hasJSON = true
		}
		if strings.HasPrefix(media, contentTypeSSE) || isWildcard(media, "text") {
			hasSSE = true
		}
	}

	if !hasJSON && hasSSE {
		hasJSON = true
	}
	return hasJSON, hasSSE
}

func normalizeMediaTypes(accept string) []string {
	var mediaTypes []string
	for _, raw := range strings.Split(accept, ",") {
		media := strings.TrimSpace(raw)
		if media == "" {
			continue
		}
		base := strings.ToLower(strings.TrimSpace(strings.SplitN(media, ";", 2)[0]))
		if base != "" {
			mediaTypes = append(mediaTypes, base)
		}
	}
	return mediaTypes
}

func isWildcard(media, kind string) bool {
	return strings.HasSuffix(media, "/*") && strings.SplitN(media, "/", 2)[0] == kind
}
