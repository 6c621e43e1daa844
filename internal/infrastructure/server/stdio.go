// Package server provides the stdio and streamable HTTP transports that
// carry JSON-RPC traffic to the dispatcher.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"

	"github.com/sandersouza/grafanaFastMCP/internal/domain/mcp"
	"github.com/sandersouza/grafanaFastMCP/internal/grafana"
	"github.com/sandersouza/grafanaFastMCP/internal/infrastructure/logging"
	"github.com/sandersouza/grafanaFastMCP/internal/usecases"
)

// StdioServer reads newline-delimited JSON-RPC messages from stdin and
// writes responses to stdout. The loop is strictly synchronous: one message
// is fully handled and its response flushed before the next line is read,
// so responses can never interleave or reorder.
type StdioServer struct {
	dispatcher *usecases.Dispatcher
	logger     *logging.Logger
	in         io.Reader
	out        io.Writer
}

// StdioOption configures a StdioServer.
type StdioOption func(*StdioServer)

// WithStdioIO overrides the input and output streams. Used by tests.
func WithStdioIO(in io.Reader, out io.Writer) StdioOption {
	return func(s *StdioServer) {
		s.in = in
		s.out = out
	}
}

// WithStdioLogger sets the logger for the server.
func WithStdioLogger(logger *logging.Logger) StdioOption {
	return func(s *StdioServer) {
		s.logger = logger
	}
}

// NewStdioServer creates a stdio server around a dispatcher.
func NewStdioServer(dispatcher *usecases.Dispatcher, opts ...StdioOption) *StdioServer {
	s := &StdioServer{
		dispatcher: dispatcher,
		logger:     logging.Default(),
		in:         os.Stdin,
		out:        os.Stdout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Listen processes messages until EOF or context cancellation. EOF is a
// clean shutdown, not an error.
func (s *StdioServer) Listen(ctx context.Context) error {
	// Stdio peers authenticate through the environment only; the single
	// session spans the whole process lifetime.
	ctx = grafana.WithSession(ctx, grafana.NewSessionContext(nil))

	reader := bufio.NewReader(s.in)
	writer := bufio.NewWriter(s.out)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if len(strings.TrimSpace(line)) > 0 {
				s.handleLine(ctx, line, writer)
			}
			if err == io.EOF {
				s.logger.Info("input stream closed")
				return nil
			}
			return errors.Wrap(err, "error reading stdin")
		}

		s.handleLine(ctx, line, writer)
	}
}

func (s *StdioServer) handleLine(ctx context.Context, line string, writer *bufio.Writer) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	message, parseErr := mcp.ParseMessage([]byte(line))
	if parseErr != nil {
		s.writeResponse(mcp.NewErrorResponse(nil, parseErr), writer)
		return
	}

	switch {
	case message.IsNotification():
		s.dispatcher.HandleNotification(ctx, &mcp.Notification{
			JSONRPC: mcp.JSONRPCVersion,
			Method:  message.Method,
			Params:  message.Params,
		})
	case message.IsRequest():
		req := &mcp.Request{
			JSONRPC: mcp.JSONRPCVersion,
			ID:      message.DecodedID(),
			Method:  message.Method,
			Params:  message.Params,
		}
		s.writeResponse(s.dispatcher.Dispatch(ctx, req), writer)
	default:
		// A client-originated response; this server sends no requests,
		// so there is nothing to correlate it with.
		s.logger.Debug("ignoring response message", logging.Fields{"id": message.DecodedID()})
	}
}

func (s *StdioServer) writeResponse(response *mcp.Response, writer *bufio.Writer) {
	data, err := json.Marshal(response)
	if err != nil {
		s.logger.Error("error marshalling response", logging.Fields{"error": err.Error()})
		return
	}
	if _, err := writer.Write(data); err != nil {
		s.logger.Error("error writing response", logging.Fields{"error": err.Error()})
		return
	}
	if err := writer.WriteByte('\n'); err != nil {
		s.logger.Error("error writing newline", logging.Fields{"error": err.Error()})
		return
	}
	if err := writer.Flush(); err != nil {
		s.logger.Error("error flushing writer", logging.Fields{"error": err.Error()})
	}
}

// ServeStdio runs a stdio server on os.Stdin/os.Stdout with signal handling
// for graceful shutdown on SIGTERM and SIGINT.
func ServeStdio(dispatcher *usecases.Dispatcher, opts ...StdioOption) error {
	s := NewStdioServer(dispatcher, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	go func() {
		sig := <-sigChan
		s.logger.Info("received shutdown signal", logging.Fields{"signal": sig.String()})
		cancel()
	}()

	s.logger.Info("starting MCP server in stdio mode")
	if err := s.Listen(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
