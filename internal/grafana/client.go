package grafana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/sandersouza/grafanaFastMCP/internal/infrastructure/logging"
	"github.com/sandersouza/grafanaFastMCP/internal/version"
)

const requestTimeout = 30 * time.Second

// UserAgent identifies this server to the Grafana API.
var UserAgent = fmt.Sprintf("mcp-grafana/%s", version.Version)

// APIError is returned when the Grafana API answers with a non-2xx status.
// Its message surfaces as the JSON-RPC error message of the failing tool
// call.
type APIError struct {
	StatusCode int
	Body       string
}

// Error returns the error message.
func (e *APIError) Error() string {
	return fmt.Sprintf("Grafana API request failed with status %d: %s", e.StatusCode, e.Body)
}

// Client is a thin helper over the Grafana REST API. One client is created
// per tool call from the session configuration; it holds no mutable state.
type Client struct {
	config  Config
	baseURL string
	http    *http.Client
	logger  *logging.Logger
}

// NewClient creates a client for the given configuration.
func NewClient(cfg Config) *Client {
	return &Client{
		config:  cfg,
		baseURL: apiBaseURL(cfg.URL),
		http:    &http.Client{Timeout: requestTimeout},
		logger:  logging.Default(),
	}
}

// apiBaseURL rebuilds the configured URL with an /api path suffix, dropping
// any query or fragment.
func apiBaseURL(rawURL string) string {
	if rawURL == "" {
		rawURL = DefaultURL
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return strings.TrimRight(rawURL, "/") + "/api"
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/") + "/api"
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed.String()
}

func (c *Client) headers(req *http.Request) {
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
	if c.config.AccessToken != "" && c.config.IDToken != "" {
		req.Header.Set("X-Access-Token", c.config.AccessToken)
		req.Header.Set("X-Grafana-Id", c.config.IDToken)
	}
	if c.config.BasicAuth != nil {
		req.SetBasicAuth(c.config.BasicAuth.Username, c.config.BasicAuth.Password)
	}
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body interface{}) ([]byte, error) {
	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "error encoding request body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, errors.Wrap(err, "error building request")
	}
	c.headers(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("performing Grafana request", logging.Fields{"method": method, "url": endpoint})
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "error calling Grafana API")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "error reading Grafana response")
	}
	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

// GetJSON performs a GET request and decodes the JSON response.
func (c *Client) GetJSON(ctx context.Context, path string, params url.Values) (interface{}, error) {
	data, err := c.do(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON(data)
}

// PostJSON performs a POST request with a JSON body and decodes the JSON
// response. Non-JSON responses come back as a plain string.
func (c *Client) PostJSON(ctx context.Context, path string, body interface{}) (interface{}, error) {
	data, err := c.do(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return nil, err
	}
	return decodeJSON(data)
}

// Delete performs a DELETE request, discarding the response body.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodDelete, path, nil, nil)
	return err
}

func decodeJSON(data []byte) (interface{}, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var decoded interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return string(data), nil
	}
	return decoded, nil
}
