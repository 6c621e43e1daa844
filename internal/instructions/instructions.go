// Package instructions loads the guidance text advertised to clients in the
// initialize result and streamed as a session.update event over SSE.
package instructions

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sandersouza/grafanaFastMCP/internal/infrastructure/logging"
	"github.com/sandersouza/grafanaFastMCP/internal/version"
)

// PathEnv points at an instructions file that overrides every other source.
const PathEnv = "MCP_INSTRUCTIONS_PATH"

// ServerName is substituted for the {name} placeholder.
const ServerName = "grafana-fastmcp"

const defaultText = `This server provides access to your Grafana instance and the surrounding ecosystem.

Available Capabilities:
- Dashboards: Search, retrieve, summarize, update, and create dashboards. Extract panel queries, individual properties, and datasource information.
- Datasources: List and fetch details for datasources.
- Prometheus & Loki: Run PromQL and LogQL queries, retrieve metric metadata and log statistics, and explore label names/values.
- Alerting: List and fetch alert rules and notification contact points.
- Admin: List teams and organization users.
- Navigation: Generate deeplink URLs for Grafana resources like dashboards, panels, and Explore queries.

When responding, favor concise summaries and include relevant identifiers (dashboard UID, datasource UID, alert rule UID) so the client can follow up with fetch operations. Avoid expanding raw JSON unless explicitly requested; present key fields and next-step suggestions instead.`

var (
	loadOnce sync.Once
	loaded   string
)

// Load returns the instructions text, checking MCP_INSTRUCTIONS_PATH, then
// ./instructions.md, then the built-in default. The result is cached for
// the lifetime of the process.
func Load() string {
	loadOnce.Do(func() {
		loaded = load()
	})
	return loaded
}

func load() string {
	logger := logging.Default()
	for _, path := range candidatePaths() {
		content, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				logger.Warn("failed to read instructions file", logging.Fields{"path": path, "error": err.Error()})
			}
			continue
		}
		if text := strings.TrimSpace(string(content)); text != "" {
			logger.Info("using instructions file", logging.Fields{"path": path})
			return text
		}
	}
	logger.Debug("using built-in instructions text")
	return defaultText
}

func candidatePaths() []string {
	var candidates []string
	if envPath := os.Getenv(PathEnv); envPath != "" {
		candidates = append(candidates, envPath)
	}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, "instructions.md"))
	}
	return candidates
}

// Format expands the {version} and {name} placeholders in an instructions
// template.
func Format(template string) string {
	replacer := strings.NewReplacer(
		"{version}", version.Version,
		"{name}", ServerName,
	)
	return replacer.Replace(template)
}

// ResolveForRequest picks the instructions text for one HTTP request. A
// pre-prompt id or tenant header selects an environment-provided template,
// an inline x-preprompt header is used verbatim, and otherwise the given
// default applies. Empty means no instructions for this request.
func ResolveForRequest(headers http.Header, defaultText string) string {
	if id := strings.TrimSpace(headers.Get("x-preprompt-id")); id != "" {
		if value := os.Getenv(prepromptEnvKey("MCP_PREPROMPT_", id)); value != "" {
			return Format(strings.TrimSpace(value))
		}
	}
	if tenant := strings.TrimSpace(headers.Get("x-tenant")); tenant != "" {
		if value := os.Getenv(prepromptEnvKey("MCP_PREPROMPT_TENANT_", tenant)); value != "" {
			return Format(strings.TrimSpace(value))
		}
	}
	if text := strings.TrimSpace(headers.Get("x-preprompt")); text != "" {
		return Format(text)
	}
	if text := strings.TrimSpace(defaultText); text != "" {
		return Format(text)
	}
	return ""
}

func prepromptEnvKey(prefix, suffix string) string {
	return prefix + strings.ToUpper(strings.ReplaceAll(suffix, "-", "_"))
}
