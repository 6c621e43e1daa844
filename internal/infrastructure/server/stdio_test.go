package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandersouza/grafanaFastMCP/internal/domain/mcp"
	"github.com/sandersouza/grafanaFastMCP/internal/domain/schema"
	"github.com/sandersouza/grafanaFastMCP/internal/infrastructure/logging"
	"github.com/sandersouza/grafanaFastMCP/internal/usecases"
)

func newStdioDispatcher() *usecases.Dispatcher {
	registry := usecases.NewRegistry()
	registry.Register(usecases.ToolSpec{
		Name:        "echo",
		Description: "Returns its arguments unchanged",
		Signature: []mcp.Parameter{
			{Name: "message", Type: schema.StringType(), Required: true},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return args, nil
		},
	})
	registry.Register(usecases.ToolSpec{
		Name: "fail",
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return nil, fmt.Errorf("backend unreachable")
		},
	})
	return usecases.NewDispatcher(usecases.DispatcherConfig{
		Name:     "test-server",
		Version:  "0.0.1",
		Registry: registry,
		Logger:   logging.NewNop(),
	})
}

// runStdio feeds the scripted input through a stdio server until EOF and
// returns the decoded response lines in order.
func runStdio(t *testing.T, input string) []map[string]interface{} {
	t.Helper()

	var out bytes.Buffer
	s := NewStdioServer(newStdioDispatcher(),
		WithStdioIO(strings.NewReader(input), &out),
		WithStdioLogger(logging.NewNop()))
	require.NoError(t, s.Listen(context.Background()))

	var responses []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &decoded))
		responses = append(responses, decoded)
	}
	return responses
}

func TestStdioSession(t *testing.T) {
	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18"}}`,
		``,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"echo","arguments":{"message":"hi"}}}`,
	}, "\n") + "\n"

	responses := runStdio(t, input)
	require.Len(t, responses, 3)

	assert.Equal(t, float64(1), responses[0]["id"])
	result := responses[0]["result"].(map[string]interface{})
	assert.Equal(t, "2025-06-18", result["protocolVersion"])

	assert.Equal(t, float64(2), responses[1]["id"])
	listResult := responses[1]["result"].(map[string]interface{})
	tools := listResult["tools"].([]interface{})
	assert.Len(t, tools, 2)

	assert.Equal(t, float64(3), responses[2]["id"])
	callResult := responses[2]["result"].(map[string]interface{})
	structured := callResult["structuredContent"].(map[string]interface{})
	assert.Equal(t, "hi", structured["message"])
}

func TestStdioParseErrorGetsNullID(t *testing.T) {
	responses := runStdio(t, "this is not json\n")
	require.Len(t, responses, 1)

	assert.Nil(t, responses[0]["id"])
	errObj := responses[0]["error"].(map[string]interface{})
	assert.Equal(t, float64(mcp.ParseError), errObj["code"])
}

func TestStdioNotificationProducesNoReply(t *testing.T) {
	input := strings.Join([]string{
		`{"jsonrpc":"2.0","method":"logging/setLevel","params":{"level":"debug"}}`,
		`{"jsonrpc":"2.0","id":1,"method":"ping"}`,
	}, "\n") + "\n"

	responses := runStdio(t, input)
	require.Len(t, responses, 1)
	assert.Equal(t, float64(1), responses[0]["id"])
}

func TestStdioHandlerErrorBecomesErrorResponse(t *testing.T) {
	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"fail"}}`,
	}, "\n") + "\n"

	responses := runStdio(t, input)
	require.Len(t, responses, 2)

	errObj := responses[1]["error"].(map[string]interface{})
	assert.Equal(t, float64(mcp.InternalError), errObj["code"])
	assert.Equal(t, "backend unreachable", errObj["message"])
}

func TestStdioFinalLineWithoutNewline(t *testing.T) {
	responses := runStdio(t, `{"jsonrpc":"2.0","id":7,"method":"ping"}`)
	require.Len(t, responses, 1)
	assert.Equal(t, float64(7), responses[0]["id"])
}

func TestStdioClientResponseIgnored(t *testing.T) {
	responses := runStdio(t, `{"jsonrpc":"2.0","id":1,"result":{}}`+"\n")
	assert.Empty(t, responses)
}
