package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sandersouza/grafanaFastMCP/internal/domain/mcp"
	"github.com/sandersouza/grafanaFastMCP/internal/infrastructure/logging"
)

// DispatcherConfig contains configuration for a Dispatcher.
type DispatcherConfig struct {
	Name         string
	Version      string
	Instructions string
	// Debug enables the logging capability flag in the initialize result.
	Debug    bool
	Registry *Registry
	Logger   *logging.Logger
}

// Dispatcher is the pure request-routing core shared by every transport.
// Each transport instance owns its own Dispatcher so the initialize state
// machine stays per-peer, while the Registry behind it is shared.
type Dispatcher struct {
	name         string
	version      string
	instructions string
	debug        bool
	registry     *Registry
	logger       *logging.Logger

	mu          sync.RWMutex
	initialized bool
}

// NewDispatcher creates a dispatcher over the given registry.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	return &Dispatcher{
		name:         cfg.Name,
		version:      cfg.Version,
		instructions: cfg.Instructions,
		debug:        cfg.Debug,
		registry:     registry,
		logger:       logger,
	}
}

// Initialized reports whether the initialize handshake has completed.
func (d *Dispatcher) Initialized() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.initialized
}

// Dispatch routes one request to a result or structured error. It never
// panics and never returns nil: handler failures of any kind come back as
// an error response carrying the request id.
func (d *Dispatcher) Dispatch(ctx context.Context, req *mcp.Request) *mcp.Response {
	result, rpcErr := d.call(ctx, req.Method, req.Params)
	if rpcErr != nil {
		return mcp.NewErrorResponse(req.ID, rpcErr)
	}
	return mcp.NewResponse(req.ID, result)
}

// HandleNotification processes a fire-and-forget message. Notifications
// never produce a reply and never propagate errors.
func (d *Dispatcher) HandleNotification(ctx context.Context, note *mcp.Notification) {
	switch note.Method {
	case "logging/setLevel":
		d.setLogLevel(note.Params)
	default:
		d.logger.Debug("ignoring notification", logging.Fields{"method": note.Method})
	}
}

func (d *Dispatcher) call(ctx context.Context, method string, params json.RawMessage) (interface{}, *mcp.Error) {
	switch method {
	case "initialize":
		return d.handleInitialize(params), nil
	case "ping":
		return struct{}{}, nil
	case "tools/list":
		return d.handleToolsList()
	case "tools/call":
		return d.handleToolsCall(ctx, params)
	case "logging/setLevel":
		d.setLogLevel(params)
		return struct{}{}, nil
	default:
		return nil, mcp.NewError(mcp.MethodNotFound, fmt.Sprintf("Method '%s' not found", method))
	}
}

func (d *Dispatcher) handleInitialize(params json.RawMessage) map[string]interface{} {
	var p struct {
		ProtocolVersion string `json:"protocolVersion"`
	}
	if len(params) > 0 {
		_ = json.Unmarshal(params, &p)
	}
	protocol := p.ProtocolVersion
	if protocol == "" {
		protocol = mcp.ProtocolVersion
	}

	capabilities := map[string]interface{}{
		"tools": map[string]interface{}{"listChanged": false},
	}
	if d.debug {
		capabilities["logging"] = struct{}{}
	}

	result := map[string]interface{}{
		"protocolVersion": protocol,
		"capabilities":    capabilities,
		"serverInfo": map[string]string{
			"name":    d.name,
			"version": d.version,
		},
	}
	if d.instructions != "" {
		result["instructions"] = d.instructions
	}

	d.mu.Lock()
	d.initialized = true
	d.mu.Unlock()

	d.logger.Debug("session initialized", logging.Fields{"protocolVersion": protocol})
	return result
}

func (d *Dispatcher) handleToolsList() (interface{}, *mcp.Error) {
	if !d.Initialized() {
		return nil, mcp.NewError(mcp.InvalidRequest, "Server not initialized")
	}

	tools := d.registry.List()
	payload := make([]map[string]interface{}, 0, len(tools))
	for _, tool := range tools {
		entry := map[string]interface{}{
			"name":        tool.Name,
			"title":       tool.Title,
			"description": tool.Description,
			"inputSchema": tool.InputSchema,
			"parameters":  tool.Parameters,
		}
		entry["annotations"] = map[string]interface{}{"title": tool.Title}
		payload = append(payload, entry)
	}

	return map[string]interface{}{"tools": payload}, nil
}

func (d *Dispatcher) handleToolsCall(ctx context.Context, params json.RawMessage) (interface{}, *mcp.Error) {
	if !d.Initialized() {
		return nil, mcp.NewError(mcp.InvalidRequest, "Server not initialized")
	}

	var call struct {
		Name      interface{}     `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &call); err != nil {
			return nil, mcp.NewError(mcp.InvalidParams, "Invalid params")
		}
	}

	name, ok := call.Name.(string)
	if !ok {
		return nil, mcp.NewError(mcp.InvalidParams, "Tool name must be a string")
	}

	tool, found := d.registry.Lookup(name)
	if !found {
		return nil, mcp.NewError(mcp.MethodNotFound, fmt.Sprintf("Tool '%s' not found", name))
	}

	arguments := map[string]interface{}{}
	if len(call.Arguments) > 0 && string(call.Arguments) != "null" {
		if err := json.Unmarshal(call.Arguments, &arguments); err != nil {
			return nil, mcp.NewError(mcp.InvalidParams, "Tool arguments must be an object")
		}
	}

	bound, bindErr := bindArguments(tool, arguments)
	if bindErr != nil {
		return nil, bindErr
	}

	d.logger.Debug("invoking tool", logging.Fields{"tool": name})
	result, err := d.invokeTool(ctx, tool, bound)
	if err != nil {
		if rpcErr, isRPC := err.(*mcp.Error); isRPC {
			return nil, rpcErr
		}
		return nil, mcp.NewError(mcp.InternalError, err.Error())
	}

	content, structured := formatToolResult(result)
	response := map[string]interface{}{
		"content": content,
		"isError": false,
	}
	if structured != nil {
		response["structuredContent"] = structured
	}
	return response, nil
}

// bindArguments matches client arguments against the declared signature.
// Every required parameter without a matching argument fails, naming the
// parameter; unrecognized arguments pass through only for catch-all tools.
func bindArguments(tool *mcp.ToolDefinition, arguments map[string]interface{}) (map[string]interface{}, *mcp.Error) {
	bound := make(map[string]interface{}, len(arguments))
	for _, param := range tool.Signature {
		if value, ok := arguments[param.Name]; ok {
			bound[param.Name] = value
			continue
		}
		if param.Required {
			return nil, mcp.NewError(mcp.InvalidParams, "Missing required argument: "+param.Name)
		}
	}

	if tool.AllowExtra {
		for key, value := range arguments {
			if _, ok := bound[key]; !ok {
				bound[key] = value
			}
		}
	}
	return bound, nil
}

// invokeTool runs the handler, converting panics into plain errors so a
// misbehaving tool can never take down the transport loop.
func (d *Dispatcher) invokeTool(ctx context.Context, tool *mcp.ToolDefinition, args map[string]interface{}) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool handler panicked", logging.Fields{"tool": tool.Name, "panic": fmt.Sprint(r)})
			err = fmt.Errorf("tool '%s' panicked: %v", tool.Name, r)
		}
	}()
	return tool.Handler(ctx, args)
}

// formatToolResult wraps a handler return value into a text content block,
// JSON-serialized unless it already is a plain string. Mapping results are
// additionally exposed verbatim as structured content.
func formatToolResult(result interface{}) ([]map[string]interface{}, map[string]interface{}) {
	var structured map[string]interface{}
	if m, ok := result.(map[string]interface{}); ok {
		structured = m
	}

	var text string
	if s, ok := result.(string); ok {
		text = s
	} else {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			text = fmt.Sprintf("%v", result)
		} else {
			text = string(data)
		}
	}

	content := []map[string]interface{}{
		{"type": "text", "text": text},
	}
	return content, structured
}

func (d *Dispatcher) setLogLevel(params json.RawMessage) {
	var p struct {
		Level string `json:"level"`
	}
	if len(params) > 0 {
		_ = json.Unmarshal(params, &p)
	}
	if p.Level == "" {
		return
	}
	if err := d.logger.SetLevel(p.Level); err != nil {
		d.logger.Warn("ignoring unrecognized log level", logging.Fields{"level": p.Level})
	}
}
