// Package tools implements the Grafana domain tools exposed through the
// registry: dashboards, datasources, Prometheus, Loki, administration,
// alerting, and navigation helpers.
package tools

import (
	"context"
	"fmt"
	"math"

	"github.com/sandersouza/grafanaFastMCP/internal/grafana"
)

func clientFromContext(ctx context.Context) *grafana.Client {
	return grafana.NewClient(grafana.ConfigFromContext(ctx))
}

func stringArg(args map[string]interface{}, name string) (string, error) {
	value, ok := args[name]
	if !ok || value == nil {
		return "", fmt.Errorf("Parameter '%s' is required", name)
	}
	s, ok := value.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("Parameter '%s' must be a non-empty string", name)
	}
	return s, nil
}

// optString returns "" when the argument is absent or null.
func optString(args map[string]interface{}, name string) (string, error) {
	value, ok := args[name]
	if !ok || value == nil {
		return "", nil
	}
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("Parameter '%s' must be a string", name)
	}
	return s, nil
}

// optInt returns (0, false, nil) when the argument is absent or null. JSON
// numbers decode as float64, so both forms are accepted.
func optInt(args map[string]interface{}, name string) (int, bool, error) {
	value, ok := args[name]
	if !ok || value == nil {
		return 0, false, nil
	}
	switch v := value.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, false, fmt.Errorf("Parameter '%s' must be an integer", name)
		}
		return int(v), true, nil
	case int:
		return v, true, nil
	default:
		return 0, false, fmt.Errorf("Parameter '%s' must be an integer", name)
	}
}

func optBool(args map[string]interface{}, name string) (bool, error) {
	value, ok := args[name]
	if !ok || value == nil {
		return false, nil
	}
	b, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("Parameter '%s' must be a boolean", name)
	}
	return b, nil
}

func optObject(args map[string]interface{}, name string) (map[string]interface{}, error) {
	value, ok := args[name]
	if !ok || value == nil {
		return nil, nil
	}
	m, ok := value.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("Parameter '%s' must be an object", name)
	}
	return m, nil
}

func optArray(args map[string]interface{}, name string) ([]interface{}, error) {
	value, ok := args[name]
	if !ok || value == nil {
		return nil, nil
	}
	list, ok := value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("Parameter '%s' must be an array", name)
	}
	return list, nil
}

func asObject(value interface{}) (map[string]interface{}, bool) {
	m, ok := value.(map[string]interface{})
	return m, ok
}

func asArray(value interface{}) ([]interface{}, bool) {
	list, ok := value.([]interface{})
	return list, ok
}

// stringItems collects the string elements of a decoded JSON array, dropping
// everything else. Always returns a non-nil slice so callers serialize [].
func stringItems(value interface{}) []string {
	items := []string{}
	if list, ok := asArray(value); ok {
		for _, entry := range list {
			if s, ok := entry.(string); ok {
				items = append(items, s)
			}
		}
	}
	return items
}
