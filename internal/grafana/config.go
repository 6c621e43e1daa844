// Package grafana resolves per-request Grafana configuration and provides
// the REST client used by the domain tools.
package grafana

import (
	"encoding/base64"
	"net/http"
	"os"
	"strings"

	"github.com/sandersouza/grafanaFastMCP/internal/infrastructure/logging"
)

// DefaultURL is used when no Grafana URL is configured.
const DefaultURL = "http://localhost:3000"

// Environment variables consulted by ConfigFromEnv.
const (
	URLEnv            = "GRAFANA_URL"
	ServiceAccountEnv = "GRAFANA_SERVICE_ACCOUNT_TOKEN"
	APIKeyEnv         = "GRAFANA_API_KEY"
	UsernameEnv       = "GRAFANA_USERNAME"
	PasswordEnv       = "GRAFANA_PASSWORD"
	AccessTokenEnv    = "GRAFANA_ACCESS_TOKEN"
	IDTokenEnv        = "GRAFANA_ID_TOKEN"
)

// Request headers that override the environment per session.
const (
	urlHeader         = "x-grafana-url"
	apiKeyHeader      = "x-grafana-api-key"
	idTokenHeader     = "x-grafana-id"
	accessTokenHeader = "x-access-token"
	authorizationHdr  = "authorization"
)

// BasicAuth carries username/password credentials.
type BasicAuth struct {
	Username string
	Password string
}

// Config represents the Grafana connection settings resolved for one
// session.
type Config struct {
	URL         string
	APIKey      string
	BasicAuth   *BasicAuth
	AccessToken string
	IDToken     string
}

func sanitizeURL(url string) string {
	return strings.TrimRight(url, "/")
}

// ConfigFromEnv builds a configuration from environment variables only.
// GRAFANA_API_KEY is honored as a deprecated fallback for the service
// account token.
func ConfigFromEnv() Config {
	url := sanitizeURL(strings.TrimSpace(os.Getenv(URLEnv)))

	apiKey := strings.TrimSpace(os.Getenv(ServiceAccountEnv))
	if apiKey == "" {
		if legacy := strings.TrimSpace(os.Getenv(APIKeyEnv)); legacy != "" {
			logging.Default().Warn("GRAFANA_API_KEY is deprecated, please use GRAFANA_SERVICE_ACCOUNT_TOKEN instead")
			apiKey = legacy
		}
	}

	var basicAuth *BasicAuth
	if username := os.Getenv(UsernameEnv); username != "" {
		basicAuth = &BasicAuth{Username: username, Password: os.Getenv(PasswordEnv)}
	}

	if url == "" {
		url = DefaultURL
	}
	return Config{
		URL:         url,
		APIKey:      apiKey,
		BasicAuth:   basicAuth,
		AccessToken: strings.TrimSpace(os.Getenv(AccessTokenEnv)),
		IDToken:     strings.TrimSpace(os.Getenv(IDTokenEnv)),
	}
}

// ConfigFromHeaders builds a configuration from request headers layered
// over the environment. Header values win; the environment fills gaps.
func ConfigFromHeaders(headers http.Header) Config {
	cfg := ConfigFromEnv()
	if headers == nil {
		return cfg
	}

	if url := strings.TrimSpace(headers.Get(urlHeader)); url != "" {
		cfg.URL = sanitizeURL(url)
		if cfg.URL == "" {
			cfg.URL = DefaultURL
		}
	}
	if key := strings.TrimSpace(headers.Get(apiKeyHeader)); key != "" {
		cfg.APIKey = key
	}
	if auth := decodeBasicAuth(headers.Get(authorizationHdr)); auth != nil {
		cfg.BasicAuth = auth
	}
	if token := strings.TrimSpace(headers.Get(accessTokenHeader)); token != "" {
		cfg.AccessToken = token
	} else if cfg.AccessToken == "" {
		cfg.AccessToken = bearerToken(headers.Get(authorizationHdr))
	}
	if id := strings.TrimSpace(headers.Get(idTokenHeader)); id != "" {
		cfg.IDToken = id
	}
	return cfg
}

func decodeBasicAuth(authorization string) *BasicAuth {
	if !strings.HasPrefix(strings.ToLower(authorization), "basic ") {
		return nil
	}
	encoded := strings.TrimSpace(authorization[len("basic "):])
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil
	}
	username, password, found := strings.Cut(string(decoded), ":")
	if !found {
		return nil
	}
	return &BasicAuth{Username: username, Password: password}
}

func bearerToken(authorization string) string {
	if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
		return ""
	}
	return strings.TrimSpace(authorization[len("bearer "):])
}
