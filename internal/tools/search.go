package tools

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/sandersouza/grafanaFastMCP/internal/domain/mcp"
	"github.com/sandersouza/grafanaFastMCP/internal/domain/schema"
	"github.com/sandersouza/grafanaFastMCP/internal/usecases"
)

// searchDashboards wraps the raw /search response in a consolidated object
// so clients that buffer streamable HTTP bodies never chunk a bare array.
func searchDashboards(ctx context.Context, query string) (interface{}, error) {
	client := clientFromContext(ctx)
	params := url.Values{"type": []string{"dash-db"}}
	query = strings.TrimSpace(query)
	if query != "" {
		params.Set("query", query)
	}

	raw, err := client.GetJSON(ctx, "/search", params)
	if err != nil {
		return nil, err
	}
	dashboards, ok := asArray(raw)
	if !ok {
		dashboards = []interface{}{}
	}

	return map[string]interface{}{
		"dashboards":  dashboards,
		"total_count": len(dashboards),
		"query":       query,
		"type":        "dashboard_search_results",
	}, nil
}

// normalizeIdentifier converts strings and integral JSON numbers into a
// trimmed identifier string, dropping everything else.
func normalizeIdentifier(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10)
		}
	case int:
		return strconv.Itoa(v)
	}
	return ""
}

// parseDashboardURL extracts a UID or numeric ID from dashboard-style URLs:
// /d/<uid>/slug, /d-solo/<uid>, /dashboards/uid/<uid>, /dashboards/id/<id>.
func parseDashboardURL(raw string) (string, string) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", ""
	}
	var segments []string
	for _, segment := range strings.Split(parsed.Path, "/") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}

	var uid, numericID string
	if len(segments) >= 2 && (segments[0] == "d" || segments[0] == "d-solo") {
		uid = normalizeIdentifier(segments[1])
	}
	for i, segment := range segments {
		if segment != "dashboards" || i+2 >= len(segments) {
			continue
		}
		value := normalizeIdentifier(segments[i+2])
		if value == "" {
			continue
		}
		switch segments[i+1] {
		case "uid":
			return value, numericID
		case "id":
			return uid, value
		}
	}
	return uid, numericID
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func urlFromObject(obj map[string]interface{}) string {
	if s, ok := obj["url"].(string); ok && s != "" {
		return s
	}
	s, _ := obj["uri"].(string)
	return s
}

// resolveDashboardLookup works out the best UID or numeric ID from the many
// identifier shapes MCP clients send: explicit uid/id arguments, item
// metadata, dashboard URLs, and mixed ids lists.
func resolveDashboardLookup(args map[string]interface{}) (string, string, error) {
	uid := normalizeIdentifier(args["uid"])
	numericID := normalizeIdentifier(args["id"])

	item, err := optObject(args, "item")
	if err != nil {
		return "", "", err
	}
	if uid == "" && item != nil {
		uid = normalizeIdentifier(item["uid"])
	}
	if numericID == "" && item != nil {
		numericID = normalizeIdentifier(item["id"])
	}

	candidateURL, err := optString(args, "url")
	if err != nil {
		return "", "", err
	}
	if candidateURL == "" {
		if candidateURL, err = optString(args, "uri"); err != nil {
			return "", "", err
		}
	}
	if candidateURL == "" && item != nil {
		candidateURL = urlFromObject(item)
	}
	if candidateURL != "" {
		parsedUID, parsedID := parseDashboardURL(candidateURL)
		if uid == "" {
			uid = parsedUID
		}
		if numericID == "" {
			numericID = parsedID
		}
	}

	ids, err := optArray(args, "ids")
	if err != nil {
		return "", "", err
	}
	for _, entry := range ids {
		if uid != "" && numericID != "" {
			break
		}
		if obj, ok := asObject(entry); ok {
			if uid == "" {
				uid = normalizeIdentifier(obj["uid"])
			}
			if numericID == "" {
				numericID = normalizeIdentifier(obj["id"])
			}
			if candidateURL == "" {
				candidateURL = urlFromObject(obj)
			}
		} else if uid == "" {
			uid = normalizeIdentifier(entry)
		}
	}
	if len(ids) > 0 && candidateURL != "" {
		parsedUID, parsedID := parseDashboardURL(candidateURL)
		if uid == "" {
			uid = parsedUID
		}
		if numericID == "" {
			numericID = parsedID
		}
	}

	// Numeric lookups only work against the legacy /dashboards/id route,
	// so anything non-numeric is discarded here.
	if numericID != "" && !isDigits(numericID) {
		numericID = ""
	}
	return uid, numericID, nil
}

func fetchResource(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	typeHint, err := optString(args, "resource_type")
	if err != nil {
		return nil, err
	}
	if typeHint == "" {
		if typeHint, err = optString(args, "type"); err != nil {
			return nil, err
		}
	}
	if typeHint == "" {
		item, err := optObject(args, "item")
		if err != nil {
			return nil, err
		}
		if item != nil {
			typeHint = stringField(item, "type")
		}
	}
	resolvedType := strings.ToLower(strings.TrimSpace(typeHint))
	if resolvedType == "" {
		resolvedType = "dash-db"
	}
	switch resolvedType {
	case "dash-db", "dashboard", "dashboards":
	default:
		return nil, fmt.Errorf("Unsupported resource type '%s' for fetch", resolvedType)
	}

	uid, numericID, err := resolveDashboardLookup(args)
	if err != nil {
		return nil, err
	}
	client := clientFromContext(ctx)
	if uid != "" {
		return client.GetJSON(ctx, "/dashboards/uid/"+uid, nil)
	}
	if numericID != "" {
		return client.GetJSON(ctx, "/dashboards/id/"+numericID, nil)
	}
	return nil, fmt.Errorf("An UID, numeric ID, or URL is required to fetch dashboard details")
}

func registerSearch(registry *usecases.Registry) {
	registry.Register(usecases.ToolSpec{
		Name:  "search_dashboards",
		Title: "Search dashboards",
		Description: "Search Grafana dashboards by a query string. Returns a consolidated " +
			"response object containing matching dashboards, total count, query, and metadata.",
		Signature: []mcp.Parameter{
			{Name: "query", Type: schema.StringType(), Required: true},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			query, err := optString(args, "query")
			if err != nil {
				return nil, err
			}
			return searchDashboards(ctx, query)
		},
	})

	registry.Register(usecases.ToolSpec{
		Name:  "search",
		Title: "Search Grafana",
		Description: "General purpose search endpoint used by MCP clients. Returns a consolidated " +
			"response object containing matching dashboard metadata, total count, and query info.",
		Signature: []mcp.Parameter{
			{Name: "query", Type: schema.StringType(), Required: true},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			query, err := optString(args, "query")
			if err != nil {
				return nil, err
			}
			return searchDashboards(ctx, query)
		},
	})

	registry.Register(usecases.ToolSpec{
		Name:  "fetch",
		Title: "Fetch Grafana resource",
		Description: "Retrieve detailed Grafana resource data using identifiers returned by search " +
			"results. Currently supports dashboards via UID, numeric ID, or dashboard URLs.",
		Signature: []mcp.Parameter{
			{Name: "id", Type: schema.StringType(), Required: true},
			{Name: "uid", Type: schema.Optional(schema.StringType())},
			{Name: "ids", Type: schema.Optional(schema.ArrayOf(schema.AnyType()))},
			{Name: "url", Type: schema.Optional(schema.StringType())},
			{Name: "uri", Type: schema.Optional(schema.StringType())},
			{Name: "type", Type: schema.Optional(schema.StringType())},
			{Name: "resource_type", Type: schema.Optional(schema.StringType())},
			{Name: "item", Type: schema.Optional(schema.ObjectType())},
		},
		Handler: fetchResource,
	})
}
