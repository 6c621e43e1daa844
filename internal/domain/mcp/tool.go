package mcp

import (
	"context"

	"github.com/sandersouza/grafanaFastMCP/internal/domain/schema"
)

// ToolHandler executes a tool call. Arguments arrive already bound against
// the declared signature; the context carries the per-session state injected
// by the transport.
type ToolHandler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// Parameter describes one entry of a tool's signature, in declaration order.
type Parameter struct {
	Name     string
	Type     *schema.Type
	Required bool
}

// ToolDefinition is an immutable record describing a registered tool. It is
// created once at registration and owned by the registry.
type ToolDefinition struct {
	Name        string
	Title       string
	Description string
	// InputSchema is the normalized schema object; Parameters exposes the
	// same object under a second discovery key for client compatibility.
	InputSchema map[string]interface{}
	Parameters  map[string]interface{}
	Signature   []Parameter
	// AllowExtra lets unrecognized arguments pass through to the handler,
	// mirroring a catch-all parameter.
	AllowExtra bool
	Handler    ToolHandler
}

// BuildInputSchema computes the top-level tool schema for a signature:
// always {type:object, properties:{...}}, with required listing every
// mandatory parameter in declaration order, or omitted entirely when empty.
func BuildInputSchema(signature []Parameter) map[string]interface{} {
	properties := make(map[string]interface{}, len(signature))
	var required []string

	for _, param := range signature {
		properties[param.Name] = param.Type.JSON()
		if param.Required {
			required = append(required, param.Name)
		}
	}

	s := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}
