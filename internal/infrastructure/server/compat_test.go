package server

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandersouza/grafanaFastMCP/internal/infrastructure/logging"
)

func TestNegotiateAccept(t *testing.T) {
	cases := []struct {
		name   string
		accept string
		json   bool
		sse    bool
	}{
		{"Blank", "", true, true},
		{"Whitespace", "   ", true, true},
		{"FullWildcard", "*/*", true, true},
		{"BareWildcard", "*", true, true},
		{"JSONOnly", "application/json", true, false},
		{"SSEOnly", "text/event-stream", true, true},
		{"Both", "application/json, text/event-stream", true, true},
		{"ApplicationWildcard", "application/*", true, false},
		{"TextWildcard", "text/*", true, true},
		{"JSONSuffix", "application/vnd.api+json", true, false},
		{"WithParameters", "application/json; q=0.9, text/event-stream;charset=utf-8", true, true},
		{"MixedCase", "Application/JSON", true, false},
		{"Unrelated", "image/png", false, false},
		{"UnrelatedPlusSSE", "image/png, text/event-stream", true, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hasJSON, hasSSE := NegotiateAccept(tc.accept)
			assert.Equal(t, tc.json, hasJSON, "json acceptance for %q", tc.accept)
			assert.Equal(t, tc.sse, hasSSE, "sse acceptance for %q", tc.accept)
		})
	}
}

func TestTimeoutsFromEnv(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		t.Setenv(KeepAliveTimeoutEnv, "")
		t.Setenv(NotifyTimeoutEnv, "")
		t.Setenv(GracefulTimeoutEnv, "")

		timeouts := timeoutsFromEnv()
		assert.Equal(t, 65*time.Second, timeouts.KeepAlive)
		assert.Equal(t, 120*time.Second, timeouts.Notify)
		assert.Equal(t, 120*time.Second, timeouts.GracefulShutdown)
	})

	t.Run("Overrides", func(t *testing.T) {
		t.Setenv(KeepAliveTimeoutEnv, "5")
		t.Setenv(NotifyTimeoutEnv, "240")
		t.Setenv(GracefulTimeoutEnv, "")

		timeouts := timeoutsFromEnv()
		assert.Equal(t, 5*time.Second, timeouts.KeepAlive)
		assert.Equal(t, 240*time.Second, timeouts.Notify)
		// Graceful shutdown tracks the notify window when it is longer
		// than the floor.
		assert.Equal(t, 240*time.Second, timeouts.GracefulShutdown)
	})

	t.Run("FractionalSeconds", func(t *testing.T) {
		t.Setenv(KeepAliveTimeoutEnv, "0.5")
		timeouts := timeoutsFromEnv()
		assert.Equal(t, 500*time.Millisecond, timeouts.KeepAlive)
	})

	t.Run("InvalidFallsBack", func(t *testing.T) {
		t.Setenv(KeepAliveTimeoutEnv, "soon")
		timeouts := timeoutsFromEnv()
		assert.Equal(t, 65*time.Second, timeouts.KeepAlive)
	})

	t.Run("ExplicitGraceful", func(t *testing.T) {
		t.Setenv(NotifyTimeoutEnv, "")
		t.Setenv(GracefulTimeoutEnv, "30")
		timeouts := timeoutsFromEnv()
		assert.Equal(t, 30*time.Second, timeouts.GracefulShutdown)
	})
}

func TestCompatibilityLayerIdempotent(t *testing.T) {
	logger := logging.NewNop()
	compat := NewCompatibilityLayer(logger)
	streamable := NewStreamableServer(nil, WithStreamableLogger(logger))

	t.Run("LenientAccept", func(t *testing.T) {
		compat.InstallLenientAccept(streamable)
		hasJSON, hasSSE := streamable.negotiate("application/json")
		assert.True(t, hasJSON)
		assert.False(t, hasSSE)

		// Repeat installs keep the already-applied negotiation.
		compat.InstallLenientAccept(streamable)
		hasJSON, _ = streamable.negotiate("")
		assert.True(t, hasJSON)
	})

	t.Run("TimeoutsCachedOnFirstInstall", func(t *testing.T) {
		t.Setenv(KeepAliveTimeoutEnv, "7")
		srv := &http.Server{}
		first := compat.InstallListenerTimeouts(srv)
		require.Equal(t, 7*time.Second, srv.IdleTimeout)

		t.Setenv(KeepAliveTimeoutEnv, "99")
		second := compat.InstallListenerTimeouts(&http.Server{})
		assert.Equal(t, first, second)
	})

	t.Run("AliasSkipsOwnPath", func(t *testing.T) {
		mux := http.NewServeMux()
		compat.InstallEndpointAlias(mux, streamable, streamable.path)
		// Registering the primary path afterwards must not panic on a
		// duplicate pattern.
		mux.Handle(streamable.path, streamable)
	})
}

func TestStrictAcceptDefault(t *testing.T) {
	streamable := NewStreamableServer(nil, WithStreamableLogger(logging.NewNop()))

	hasJSON, hasSSE := streamable.negotiate("application/json, text/event-stream")
	assert.True(t, hasJSON)
	assert.True(t, hasSSE)

	hasJSON, hasSSE = streamable.negotiate("application/json")
	assert.True(t, hasJSON)
	assert.False(t, hasSSE)

	hasJSON, hasSSE = streamable.negotiate("")
	assert.False(t, hasJSON)
	assert.False(t, hasSSE)
}
