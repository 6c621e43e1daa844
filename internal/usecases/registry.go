// Package usecases implements the transport-independent core of the MCP
// server: the tool registry and the request dispatcher.
package usecases

import (
	"sync"

	"github.com/sandersouza/grafanaFastMCP/internal/domain/mcp"
)

// ToolSpec describes one tool registration.
type ToolSpec struct {
	Name        string
	Title       string
	Description string
	Signature   []mcp.Parameter
	// AllowExtra passes unrecognized arguments through to the handler.
	AllowExtra bool
	Handler    mcp.ToolHandler
}

// Registry is an ordered collection of tool definitions, populated once at
// startup before any transport starts.
//
// Registering the same name twice is accepted: both definitions stay in the
// list in registration order, and the later one shadows the earlier for
// lookup. This mirrors the upstream behavior; a stricter registry would
// reject the duplicate.
type Registry struct {
	mu     sync.RWMutex
	tools  []*mcp.ToolDefinition
	byName map[string]*mcp.ToolDefinition
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*mcp.ToolDefinition)}
}

// Register builds the immutable ToolDefinition for a ToolSpec, computing its
// discovery schema, and appends it. Schema inference never fails, so neither
// does registration.
func (r *Registry) Register(spec ToolSpec) *mcp.ToolDefinition {
	inputSchema := mcp.BuildInputSchema(spec.Signature)

	def := &mcp.ToolDefinition{
		Name:        spec.Name,
		Title:       spec.Title,
		Description: spec.Description,
		InputSchema: inputSchema,
		Parameters:  inputSchema,
		Signature:   append([]mcp.Parameter(nil), spec.Signature...),
		AllowExtra:  spec.AllowExtra,
		Handler:     spec.Handler,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = append(r.tools, def)
	r.byName[def.Name] = def
	return def
}

// List returns the tool definitions in registration order.
func (r *Registry) List() []*mcp.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*mcp.ToolDefinition(nil), r.tools...)
}

// Lookup returns the definition registered under name, favoring the most
// recent registration.
func (r *Registry) Lookup(name string) (*mcp.ToolDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.byName[name]
	return def, ok
}

// Len returns the number of registrations, duplicates included.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
