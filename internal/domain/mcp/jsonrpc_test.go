package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessage(t *testing.T) {
	t.Run("Request", func(t *testing.T) {
		msg, parseErr := ParseMessage([]byte(`{"jsonrpc":"2.0","id":7,"method":"ping"}`))
		require.Nil(t, parseErr)
		assert.True(t, msg.IsRequest())
		assert.False(t, msg.IsNotification())
		assert.Equal(t, "ping", msg.Method)
		assert.Equal(t, float64(7), msg.DecodedID())
	})

	t.Run("StringID", func(t *testing.T) {
		msg, parseErr := ParseMessage([]byte(`{"jsonrpc":"2.0","id":"abc","method":"ping"}`))
		require.Nil(t, parseErr)
		assert.Equal(t, "abc", msg.DecodedID())
	})

	t.Run("Notification", func(t *testing.T) {
		msg, parseErr := ParseMessage([]byte(`{"jsonrpc":"2.0","method":"logging/setLevel","params":{"level":"debug"}}`))
		require.Nil(t, parseErr)
		assert.True(t, msg.IsNotification())
		assert.False(t, msg.IsRequest())
		assert.Nil(t, msg.DecodedID())
	})

	t.Run("Response", func(t *testing.T) {
		msg, parseErr := ParseMessage([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}`))
		require.Nil(t, parseErr)
		assert.False(t, msg.IsRequest())
		assert.False(t, msg.IsNotification())
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		_, parseErr := ParseMessage([]byte(`{"jsonrpc":`))
		require.NotNil(t, parseErr)
		assert.Equal(t, ParseError, parseErr.Code)
	})

	t.Run("NonObject", func(t *testing.T) {
		_, parseErr := ParseMessage([]byte(`[1,2,3]`))
		require.NotNil(t, parseErr)
		assert.Equal(t, ParseError, parseErr.Code)
	})

	t.Run("UnknownShape", func(t *testing.T) {
		_, parseErr := ParseMessage([]byte(`{"jsonrpc":"2.0","id":1}`))
		require.NotNil(t, parseErr)
		assert.Equal(t, InvalidParams, parseErr.Code)
	})
}

func TestResponseConstructors(t *testing.T) {
	resp := NewResponse("req-1", map[string]string{"ok": "yes"})
	assert.Equal(t, JSONRPCVersion, resp.JSONRPC)
	assert.Equal(t, "req-1", resp.ID)
	assert.Nil(t, resp.Error)

	errResp := NewErrorResponse(2, NewError(MethodNotFound, "Method 'nope' not found"))
	assert.Nil(t, errResp.Result)
	require.NotNil(t, errResp.Error)
	assert.Equal(t, MethodNotFound, errResp.Error.Code)
	assert.Equal(t, "Method 'nope' not found", errResp.Error.Error())
}
