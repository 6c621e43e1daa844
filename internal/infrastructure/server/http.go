package server

import (
	"context"
	"net/http"

	"github.com/sandersouza/grafanaFastMCP/internal/infrastructure/logging"
	"github.com/sandersouza/grafanaFastMCP/internal/usecases"
)

// HTTPOptions configure the streamable HTTP listener.
type HTTPOptions struct {
	Address string
	// BasePath mounts every route under a prefix.
	BasePath string
	// StreamablePath is the handshake-and-call endpoint, absolute or
	// relative to BasePath. Defaults to "mcp".
	StreamablePath string
	// SSEPrimary mounts the server on the legacy <base>/sse endpoint and
	// aliases the streamable path, instead of the other way around.
	SSEPrimary bool
	// JSONResponse selects buffered replies over SSE streams.
	JSONResponse bool
	// Instructions is the pending text delivered once per session.
	Instructions string
	Logger       *logging.Logger
}

// ServeStreamableHTTP runs the streamable HTTP transport until the context
// is cancelled, then drains connections within the configured graceful
// shutdown window.
func ServeStreamableHTTP(ctx context.Context, dispatcher *usecases.Dispatcher, opts HTTPOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}

	basePath := NormalizeMountPath(opts.BasePath)
	streamablePath := NormalizeStreamablePath(opts.StreamablePath, basePath, "mcp")
	ssePath := JoinPath(basePath, "sse")

	endpoint, alias := streamablePath, ssePath
	if opts.SSEPrimary {
		endpoint, alias = ssePath, streamablePath
	}

	streamable := NewStreamableServer(dispatcher,
		WithStreamablePath(endpoint),
		WithJSONResponse(opts.JSONResponse),
		WithStreamableLogger(logger),
	)

	compat := NewCompatibilityLayer(logger)
	compat.InstallLenientAccept(streamable)
	compat.InstallPendingInstructions(streamable, opts.Instructions)

	mux := http.NewServeMux()
	mux.Handle(endpoint, streamable)
	compat.InstallEndpointAlias(mux, streamable, alias)

	srv := &http.Server{
		Addr:    opts.Address,
		Handler: logging.Middleware(logger)(mux),
	}
	timeouts := compat.InstallListenerTimeouts(srv)

	streamable.Start(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.GracefulShutdown)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown incomplete", logging.Fields{"error": err.Error()})
		}
		streamable.Shutdown()
	}()

	logger.Info("streamable HTTP endpoint available", logging.Fields{
		"address": opts.Address,
		"path":    endpoint,
		"alias":   alias,
	})

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
