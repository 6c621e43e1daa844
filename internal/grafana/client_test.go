package grafana

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIBaseURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://grafana.example.com", "https://grafana.example.com/api"},
		{"https://grafana.example.com/", "https://grafana.example.com/api"},
		{"https://grafana.example.com/grafana", "https://grafana.example.com/grafana/api"},
		{"https://grafana.example.com?orgId=1", "https://grafana.example.com/api"},
		{"", DefaultURL + "/api"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, apiBaseURL(tc.in), "input %q", tc.in)
	}
}

func TestClientAuthHeaders(t *testing.T) {
	var captured http.Header
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer backend.Close()

	t.Run("Bearer", func(t *testing.T) {
		client := NewClient(Config{URL: backend.URL, APIKey: "sa-token"})
		_, err := client.GetJSON(context.Background(), "/search", nil)
		require.NoError(t, err)
		assert.Equal(t, "Bearer sa-token", captured.Get("Authorization"))
		assert.Equal(t, UserAgent, captured.Get("User-Agent"))
	})

	t.Run("BasicAuth", func(t *testing.T) {
		client := NewClient(Config{URL: backend.URL, BasicAuth: &BasicAuth{Username: "admin", Password: "secret"}})
		_, err := client.GetJSON(context.Background(), "/search", nil)
		require.NoError(t, err)
		username, password, ok := (&http.Request{Header: captured}).BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "admin", username)
		assert.Equal(t, "secret", password)
	})

	t.Run("AccessTokenPair", func(t *testing.T) {
		client := NewClient(Config{URL: backend.URL, AccessToken: "at", IDToken: "it"})
		_, err := client.GetJSON(context.Background(), "/search", nil)
		require.NoError(t, err)
		assert.Equal(t, "at", captured.Get("X-Access-Token"))
		assert.Equal(t, "it", captured.Get("X-Grafana-Id"))
	})

	t.Run("AccessTokenRequiresBoth", func(t *testing.T) {
		client := NewClient(Config{URL: backend.URL, AccessToken: "at"})
		_, err := client.GetJSON(context.Background(), "/search", nil)
		require.NoError(t, err)
		assert.Empty(t, captured.Get("X-Access-Token"))
	})
}

func TestClientRequests(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/search":
			assert.Equal(t, "cpu", r.URL.Query().Get("query"))
			_, _ = w.Write([]byte(`[{"uid":"abc"}]`))
		case "/api/dashboards/db":
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			_, _ = w.Write([]byte(`{"status":"success"}`))
		case "/api/missing":
			http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
		case "/api/empty":
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer backend.Close()

	client := NewClient(Config{URL: backend.URL})
	ctx := context.Background()

	t.Run("GetWithParams", func(t *testing.T) {
		result, err := client.GetJSON(ctx, "/search", url.Values{"query": []string{"cpu"}})
		require.NoError(t, err)
		list, ok := result.([]interface{})
		require.True(t, ok)
		assert.Len(t, list, 1)
	})

	t.Run("Post", func(t *testing.T) {
		result, err := client.PostJSON(ctx, "/dashboards/db", map[string]interface{}{"dashboard": map[string]interface{}{}})
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"status": "success"}, result)
	})

	t.Run("APIError", func(t *testing.T) {
		_, err := client.GetJSON(ctx, "/missing", nil)
		require.Error(t, err)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
		assert.Contains(t, apiErr.Error(), "Grafana API request failed with status 404")
	})

	t.Run("EmptyBody", func(t *testing.T) {
		result, err := client.GetJSON(ctx, "/empty", nil)
		require.NoError(t, err)
		assert.Nil(t, result)
	})
}
