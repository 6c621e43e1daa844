package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/sandersouza/grafanaFastMCP/internal/domain/mcp"
	"github.com/sandersouza/grafanaFastMCP/internal/grafana"
	"github.com/sandersouza/grafanaFastMCP/internal/infrastructure/logging"
	"github.com/sandersouza/grafanaFastMCP/internal/instructions"
	"github.com/sandersouza/grafanaFastMCP/internal/usecases"
)

// SessionIDHeader carries the session id on every message after the
// initialize handshake.
const SessionIDHeader = "mcp-session-id"

// DefaultStreamablePath is the endpoint the streamable handler mounts on.
const DefaultStreamablePath = "/mcp"

type inboundMessage struct {
	message *mcp.Message
	session *grafana.SessionContext
	// reply is the correlation channel registered for this request, nil for
	// notifications and client responses.
	reply chan *mcp.Response
}

// StreamableServer is the HTTP transport. One instance carries at most one
// session at a time; requests within the session may run concurrently, each
// correlated to its caller through a single-slot channel keyed by request
// id. A dispatcher goroutine drains the inbound channel so slow tool calls
// never block accepting the next message.
type StreamableServer struct {
	dispatcher *usecases.Dispatcher
	logger     *logging.Logger
	path       string
	// jsonResponse selects the buffered single-body reply mode instead of
	// an SSE stream.
	jsonResponse bool
	negotiate    func(string) (bool, bool)

	mu                  sync.Mutex
	sessionID           string
	session             *grafana.SessionContext
	instructionsSent    bool
	pendingInstructions string
	requestStreams      map[string]chan *mcp.Response

	inbound   chan inboundMessage
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// StreamableOption configures a StreamableServer.
type StreamableOption func(*StreamableServer)

// WithStreamablePath sets the endpoint path.
func WithStreamablePath(path string) StreamableOption {
	return func(s *StreamableServer) {
		if path != "" {
			s.path = path
		}
	}
}

// WithJSONResponse switches the server to buffered JSON replies.
func WithJSONResponse(enabled bool) StreamableOption {
	return func(s *StreamableServer) {
		s.jsonResponse = enabled
	}
}

// WithStreamableLogger sets the logger for the server.
func WithStreamableLogger(logger *logging.Logger) StreamableOption {
	return func(s *StreamableServer) {
		s.logger = logger
	}
}

// NewStreamableServer creates a streamable HTTP transport around a
// dispatcher. Negotiation starts out strict; the CompatibilityLayer
// installs the lenient variant.
func NewStreamableServer(dispatcher *usecases.Dispatcher, opts ...StreamableOption) *StreamableServer {
	s := &StreamableServer{
		dispatcher:     dispatcher,
		logger:         logging.Default(),
		path:           DefaultStreamablePath,
		negotiate:      strictAccept,
		requestStreams: make(map[string]chan *mcp.Response),
		inbound:        make(chan inboundMessage, 16),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// strictAccept requires both media types to be named explicitly, matching
// the upstream contract before the compatibility layer relaxes it.
func strictAccept(accept string) (bool, bool) {
	var hasJSON, hasSSE bool
	for _, media := range normalizeMediaTypes(accept) {
		if strings.HasPrefix(media, contentTypeJSON) {
			hasJSON = true
		}
		if strings.HasPrefix(media, contentTypeSSE) {
			hasSSE = true
		}
	}
	return hasJSON, hasSSE
}

func (s *StreamableServer) setPendingInstructions(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingInstructions = strings.TrimSpace(text)
}

// Start launches the dispatch loop. Idempotent.
func (s *StreamableServer) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		go s.dispatchLoop(ctx)
	})
}

// Shutdown stops the dispatch loop and closes every open correlation
// channel so no request handler is left waiting.
func (s *StreamableServer) Shutdown() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		for id, ch := range s.requestStreams {
			close(ch)
			delete(s.requestStreams, id)
		}
		s.mu.Unlock()
	})
}

// dispatchLoop drains inbound messages. Requests run in their own
// goroutine so a long tool call cannot stall other requests in the
// session; each response lands in the correlation channel for its id.
func (s *StreamableServer) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			s.Shutdown()
			return
		case in := <-s.inbound:
			msg := in.message
			callCtx := ctx
			if in.session != nil {
				callCtx = grafana.WithSession(ctx, in.session)
			}
			switch {
			case msg.IsNotification():
				s.dispatcher.HandleNotification(callCtx, &mcp.Notification{
					JSONRPC: mcp.JSONRPCVersion,
					Method:  msg.Method,
					Params:  msg.Params,
				})
			case msg.IsRequest():
				req := &mcp.Request{
					JSONRPC: mcp.JSONRPCVersion,
					ID:      msg.DecodedID(),
					Method:  msg.Method,
					Params:  msg.Params,
				}
				reply := in.reply
				go func() {
					s.deliver(requestKey(req.ID), reply, s.dispatcher.Dispatch(callCtx, req))
				}()
			default:
				s.logger.Debug("ignoring client response message", logging.Fields{"id": msg.DecodedID()})
			}
		}
	}
}

func requestKey(id interface{}) string {
	return fmt.Sprint(id)
}

func (s *StreamableServer) registerRequest(id string) chan *mcp.Response {
	ch := make(chan *mcp.Response, 1)
	s.mu.Lock()
	// A duplicate in-flight id is replaced; the prior channel is closed so
	// its waiter unblocks with no response.
	if prev, ok := s.requestStreams[id]; ok {
		close(prev)
	}
	s.requestStreams[id] = ch
	s.mu.Unlock()
	return ch
}

func (s *StreamableServer) releaseRequest(id string, ch chan *mcp.Response) {
	s.mu.Lock()
	if current, ok := s.requestStreams[id]; ok && current == ch {
		delete(s.requestStreams, id)
	}
	s.mu.Unlock()
}

// deliver hands a response to the correlation channel it was registered
// with. A delivery whose channel has been superseded by a duplicate
// in-flight id, or released by session teardown, is dropped; sending there
// would hand the response to the wrong waiter. The channel is single-slot
// and this is its only producer, so the send cannot block while the lock is
// held; closing under the lock keeps teardown from racing a double close.
func (s *StreamableServer) deliver(id string, ch chan *mcp.Response, response *mcp.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.requestStreams[id]; !ok || current != ch {
		s.logger.Debug("dropping response for superseded request", logging.Fields{"id": id})
		return
	}
	ch <- response
	close(ch)
	delete(s.requestStreams, id)
}

func (s *StreamableServer) push(in inboundMessage) bool {
	select {
	case s.inbound <- in:
		return true
	case <-s.done:
		return false
	}
}

// ServeHTTP routes transport traffic: POST carries JSON-RPC messages,
// DELETE tears the session down.
func (s *StreamableServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handlePost(w, r)
	case http.MethodDelete:
		s.handleDelete(w, r)
	default:
		w.Header().Set("Allow", "POST, DELETE")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

func (s *StreamableServer) handlePost(w http.ResponseWriter, r *http.Request) {
	hasJSON, hasSSE := s.negotiate(r.Header.Get("Accept"))
	if !hasJSON || !hasSSE {
		s.writeError(w, http.StatusNotAcceptable, mcp.InvalidRequest,
			"Not Acceptable: Client must accept both application/json and text/event-stream")
		return
	}

	contentType := strings.ToLower(strings.TrimSpace(strings.SplitN(r.Header.Get("Content-Type"), ";", 2)[0]))
	if contentType != contentTypeJSON {
		s.writeError(w, http.StatusUnsupportedMediaType, mcp.InvalidRequest,
			"Unsupported Media Type: Content-Type must be application/json")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, mcp.ParseError, "Parse error: unable to read request body")
		return
	}

	message, parseErr := mcp.ParseMessage(body)
	if parseErr != nil {
		s.writeError(w, http.StatusBadRequest, parseErr.Code, parseErr.Message)
		return
	}
	logging.FromContext(r.Context()).Debug("received transport message", logging.Fields{"rpc_method": message.Method})

	isInitialize := message.IsRequest() && message.Method == "initialize"
	session, ok := s.bindSession(r, isInitialize)
	if !ok {
		s.writeError(w, http.StatusNotFound, mcp.InvalidRequest, "Not Found: Invalid or expired session ID")
		return
	}

	if !message.IsRequest() {
		if !s.push(inboundMessage{message: message, session: session}) {
			s.writeError(w, http.StatusServiceUnavailable, mcp.InternalError, "Server is shutting down")
			return
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	id := requestKey(message.DecodedID())
	ch := s.registerRequest(id)
	defer s.releaseRequest(id, ch)

	// Buffered mode has no stream to carry the session.update frame, so the
	// one-shot instructions stay pending until an SSE initialize consumes
	// them.
	var instructionsText string
	if isInitialize && !s.jsonResponse {
		instructionsText = s.resolveInstructions(r.Header)
	}

	if !s.push(inboundMessage{message: message, session: session, reply: ch}) {
		s.writeError(w, http.StatusServiceUnavailable, mcp.InternalError, "Server is shutting down")
		return
	}

	if s.jsonResponse {
		s.respondBuffered(w, ch)
		return
	}
	s.respondSSE(w, r, ch, instructionsText)
}

// bindSession validates the session header and, on initialize, creates the
// session if none exists yet. The second return value is false when the
// presented id does not match the live session.
func (s *StreamableServer) bindSession(r *http.Request, isInitialize bool) (*grafana.SessionContext, bool) {
	presented := strings.TrimSpace(r.Header.Get(SessionIDHeader))

	s.mu.Lock()
	defer s.mu.Unlock()

	if isInitialize {
		if s.sessionID != "" && presented != "" && presented != s.sessionID {
			return nil, false
		}
		if s.sessionID == "" {
			s.sessionID = uuid.NewString()
			s.session = grafana.NewSessionContext(r.Header.Clone())
			s.instructionsSent = false
			s.logger.Debug("session established", logging.Fields{"session_id": s.sessionID})
		}
		return s.session, true
	}

	if s.sessionID == "" || presented != s.sessionID {
		return nil, false
	}
	return s.session, true
}

// resolveInstructions picks the one-shot instructions text for this
// session, or empty once it has already been delivered.
func (s *StreamableServer) resolveInstructions(headers http.Header) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.instructionsSent {
		return ""
	}
	text := instructions.ResolveForRequest(headers, s.pendingInstructions)
	if text != "" {
		s.instructionsSent = true
	}
	return text
}

func (s *StreamableServer) respondBuffered(w http.ResponseWriter, ch chan *mcp.Response) {
	response, ok := <-ch
	if !ok || response == nil {
		s.logger.Error("no response received before stream closed")
		s.writeError(w, http.StatusInternalServerError, mcp.InternalError,
			"Error processing request: No response received")
		return
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	s.setSessionHeader(w)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("error writing buffered response", logging.Fields{"error": err.Error()})
	}
}

func (s *StreamableServer) respondSSE(w http.ResponseWriter, r *http.Request, ch chan *mcp.Response, instructionsText string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, mcp.InternalError, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", contentTypeSSE)
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	s.setSessionHeader(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case response, open := <-ch:
			if !open || response == nil {
				return
			}
			if err := writeSSEFrame(w, response); err != nil {
				s.logger.Error("error writing SSE frame", logging.Fields{"error": err.Error()})
				return
			}
			// The configuration update rides directly behind the real
			// initialize response, exactly once per session.
			if instructionsText != "" && response.Error == nil {
				update := map[string]interface{}{
					"type":    "session.update",
					"session": map[string]string{"instructions": instructionsText},
				}
				if err := writeSSEFrame(w, update); err != nil {
					s.logger.Error("error writing session.update frame", logging.Fields{"error": err.Error()})
					return
				}
				instructionsText = ""
			}
			flusher.Flush()
			// A response or error frame is terminal for this request.
			return
		}
	}
}

func writeSSEFrame(w io.Writer, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "error marshalling SSE payload")
	}
	if _, err := fmt.Fprintf(w, "event: message\ndata: %s\n\n", data); err != nil {
		return errors.Wrap(err, "error writing SSE frame")
	}
	return nil
}

func (s *StreamableServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	presented := strings.TrimSpace(r.Header.Get(SessionIDHeader))

	s.mu.Lock()
	if s.sessionID == "" || presented != s.sessionID {
		s.mu.Unlock()
		s.writeError(w, http.StatusNotFound, mcp.InvalidRequest, "Not Found: Invalid or expired session ID")
		return
	}
	s.sessionID = ""
	s.session = nil
	s.instructionsSent = false
	for id, ch := range s.requestStreams {
		close(ch)
		delete(s.requestStreams, id)
	}
	s.mu.Unlock()

	s.logger.Debug("session terminated", logging.Fields{"session_id": presented})
	w.WriteHeader(http.StatusOK)
}

func (s *StreamableServer) setSessionHeader(w http.ResponseWriter) {
	s.mu.Lock()
	id := s.sessionID
	s.mu.Unlock()
	if id != "" {
		w.Header().Set(SessionIDHeader, id)
	}
}

func (s *StreamableServer) writeError(w http.ResponseWriter, status int, code mcp.ErrorCode, message string) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	response := mcp.NewErrorResponse(nil, mcp.NewError(code, message))
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("error writing error response", logging.Fields{"error": err.Error()})
	}
}
