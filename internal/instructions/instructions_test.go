package instructions

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sandersouza/grafanaFastMCP/internal/version"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "server "+ServerName+" v"+version.Version, Format("server {name} v{version}"))
	assert.Equal(t, "no placeholders", Format("no placeholders"))
}

func TestResolveForRequest(t *testing.T) {
	t.Run("DefaultText", func(t *testing.T) {
		text := ResolveForRequest(http.Header{}, "default guidance")
		assert.Equal(t, "default guidance", text)
	})

	t.Run("EmptyDefaultMeansNone", func(t *testing.T) {
		text := ResolveForRequest(http.Header{}, "  ")
		assert.Empty(t, text)
	})

	t.Run("InlinePreprompt", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("x-preprompt", "inline text for {name}")
		text := ResolveForRequest(headers, "default guidance")
		assert.Equal(t, "inline text for "+ServerName, text)
	})

	t.Run("PrepromptID", func(t *testing.T) {
		t.Setenv("MCP_PREPROMPT_OPS_TEAM", "ops template v{version}")
		headers := http.Header{}
		headers.Set("x-preprompt-id", "ops-team")
		text := ResolveForRequest(headers, "default guidance")
		assert.Equal(t, "ops template v"+version.Version, text)
	})

	t.Run("PrepromptIDMissingEnvFallsThrough", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("x-preprompt-id", "unknown")
		text := ResolveForRequest(headers, "default guidance")
		assert.Equal(t, "default guidance", text)
	})

	t.Run("Tenant", func(t *testing.T) {
		t.Setenv("MCP_PREPROMPT_TENANT_ACME", "tenant template")
		headers := http.Header{}
		headers.Set("x-tenant", "acme")
		text := ResolveForRequest(headers, "default guidance")
		assert.Equal(t, "tenant template", text)
	})

	t.Run("IDWinsOverTenantAndInline", func(t *testing.T) {
		t.Setenv("MCP_PREPROMPT_TEAM_A", "id template")
		t.Setenv("MCP_PREPROMPT_TENANT_ACME", "tenant template")
		headers := http.Header{}
		headers.Set("x-preprompt-id", "team-a")
		headers.Set("x-tenant", "acme")
		headers.Set("x-preprompt", "inline")
		text := ResolveForRequest(headers, "default guidance")
		assert.Equal(t, "id template", text)
	})
}

func TestPrepromptEnvKey(t *testing.T) {
	assert.Equal(t, "MCP_PREPROMPT_OPS_TEAM", prepromptEnvKey("MCP_PREPROMPT_", "ops-team"))
	assert.Equal(t, "MCP_PREPROMPT_TENANT_ACME", prepromptEnvKey("MCP_PREPROMPT_TENANT_", "Acme"))
}
