// Package mcp holds the wire-level types shared by every transport: JSON-RPC
// message shapes, the standard error codes, and tool definitions.
package mcp

import (
	"bytes"
	"encoding/json"
)

// JSONRPCVersion is the protocol version stamped on every message.
const JSONRPCVersion = "2.0"

// ProtocolVersion is the MCP protocol revision this server speaks.
const ProtocolVersion = "2025-06-18"

// ErrorCode represents a JSON-RPC error code.
type ErrorCode int

// Standard JSON-RPC error codes.
const (
	ParseError     ErrorCode = -32700
	InvalidRequest ErrorCode = -32600
	MethodNotFound ErrorCode = -32601
	InvalidParams  ErrorCode = -32602
	InternalError  ErrorCode = -32603
)

// Error is a JSON-RPC error object. It implements the error interface so
// dispatch code can return it directly.
type Error struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Error returns the error message.
func (e *Error) Error() string { return e.Message }

// NewError creates a JSON-RPC error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Request is an inbound JSON-RPC request. ID is the decoded client-chosen
// identifier and is echoed verbatim in the response.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Notification is structurally a request without an id; it never receives a
// reply.
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response carries exactly one of Result or Error.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// NewResponse builds a success response for the given request id.
func NewResponse(id interface{}, result interface{}) *Response {
	return &Response{JSONRPC: JSONRPCVersion, ID: id, Result: result}
}

// NewErrorResponse builds an error response for the given request id.
func NewErrorResponse(id interface{}, err *Error) *Response {
	return &Response{JSONRPC: JSONRPCVersion, ID: id, Error: err}
}

// Message is a decoded JSON-RPC envelope before classification. The raw id
// is kept so the presence of an explicit "id" member can be distinguished
// from its absence.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// ParseMessage decodes one JSON-RPC message. It returns a ParseError-coded
// error for malformed JSON and an InvalidParams-coded error for bodies that
// are valid JSON but do not match the request, notification, or response
// shape.
func ParseMessage(data []byte) (*Message, *Error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, NewError(ParseError, "Parse error: message must be a JSON object")
	}

	var msg Message
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return nil, NewError(ParseError, "Parse error: "+err.Error())
	}

	if !msg.valid() {
		return nil, NewError(InvalidParams, "Validation error: message does not match any JSON-RPC shape")
	}
	return &msg, nil
}

// valid reports whether the message matches one of the three JSON-RPC
// shapes. A method makes it a request or notification; otherwise it must
// carry a result or error to pass as a response.
func (m *Message) valid() bool {
	if m.Method != "" {
		return true
	}
	return m.ID != nil && (m.Result != nil || m.Error != nil)
}

// IsRequest reports whether the message expects a reply.
func (m *Message) IsRequest() bool {
	return m.Method != "" && m.ID != nil
}

// IsNotification reports whether the message is a fire-and-forget call.
func (m *Message) IsNotification() bool {
	return m.Method != "" && m.ID == nil
}

// DecodedID returns the client-chosen id as a decoded JSON value, or nil
// when the message carries none.
func (m *Message) DecodedID() interface{} {
	if m.ID == nil {
		return nil
	}
	var id interface{}
	if err := json.Unmarshal(m.ID, &id); err != nil {
		return nil
	}
	return id
}
