package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/sandersouza/grafanaFastMCP/internal/domain/mcp"
	"github.com/sandersouza/grafanaFastMCP/internal/domain/schema"
	"github.com/sandersouza/grafanaFastMCP/internal/usecases"
)

const (
	maxLogLimit     = 100
	defaultLogLimit = 10
)

// lokiTimeRange defaults to the last hour when no bounds are given and
// converts both ends to the nanosecond epoch strings Loki expects.
func lokiTimeRange(start, end string) (string, string, error) {
	now := time.Now().UTC()
	startTime := now.Add(-time.Hour)
	endTime := now

	var err error
	if start != "" {
		startTime, err = time.Parse(time.RFC3339, start)
		if err != nil {
			return "", "", fmt.Errorf("Invalid RFC3339 timestamp '%s'", start)
		}
	}
	if end != "" {
		endTime, err = time.Parse(time.RFC3339, end)
		if err != nil {
			return "", "", fmt.Errorf("Invalid RFC3339 timestamp '%s'", end)
		}
	}
	return strconv.FormatInt(startTime.UnixNano(), 10), strconv.FormatInt(endTime.UnixNano(), 10), nil
}

func lokiData(raw interface{}) (interface{}, error) {
	payload, ok := asObject(raw)
	if !ok || payload["status"] != "success" {
		return nil, fmt.Errorf("Unexpected Loki response: %v", raw)
	}
	return payload["data"], nil
}

// formatLogEntries flattens Loki stream frames into one entry per log line,
// decoding numeric lines into values.
func formatLogEntries(streams []interface{}) []interface{} {
	entries := make([]interface{}, 0, len(streams))
	for _, raw := range streams {
		stream, ok := asObject(raw)
		if !ok {
			continue
		}
		labels, _ := asObject(stream["stream"])
		values, ok := asArray(stream["values"])
		if !ok {
			continue
		}
		for _, rawValue := range values {
			pair, ok := asArray(rawValue)
			if !ok || len(pair) < 2 {
				continue
			}
			timestamp := fmt.Sprint(pair[0])
			line, _ := pair[1].(string)

			entry := map[string]interface{}{
				"timestamp": timestamp,
				"labels":    labels,
			}
			var decoded interface{}
			if err := json.Unmarshal([]byte(line), &decoded); err == nil {
				if number, ok := decoded.(float64); ok {
					entry["value"] = number
				} else {
					entry["line"] = line
				}
			} else {
				entry["line"] = line
			}
			entries = append(entries, entry)
		}
	}
	return entries
}

func queryLokiLogs(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	datasourceUID, err := stringArg(args, "datasourceUid")
	if err != nil {
		return nil, err
	}
	logql, err := stringArg(args, "logql")
	if err != nil {
		return nil, err
	}
	start, err := optString(args, "startRfc3339")
	if err != nil {
		return nil, err
	}
	end, err := optString(args, "endRfc3339")
	if err != nil {
		return nil, err
	}
	limit, hasLimit, err := optInt(args, "limit")
	if err != nil {
		return nil, err
	}
	direction, err := optString(args, "direction")
	if err != nil {
		return nil, err
	}

	if err := ensureDatasource(ctx, datasourceUID); err != nil {
		return nil, err
	}

	startNanos, endNanos, err := lokiTimeRange(start, end)
	if err != nil {
		return nil, err
	}

	if !hasLimit {
		limit = defaultLogLimit
	} else if limit < 1 {
		limit = 1
	} else if limit > maxLogLimit {
		limit = maxLogLimit
	}
	if direction == "" {
		direction = "backward"
	}

	params := url.Values{
		"query":     []string{logql},
		"start":     []string{startNanos},
		"end":       []string{endNanos},
		"limit":     []string{strconv.Itoa(limit)},
		"direction": []string{direction},
	}
	raw, err := clientFromContext(ctx).GetJSON(ctx, proxyPath(datasourceUID, "/loki/api/v1/query_range"), params)
	if err != nil {
		return nil, err
	}
	data, err := lokiData(raw)
	if err != nil {
		return nil, err
	}
	payload, _ := asObject(data)
	streams, _ := asArray(payload["result"])
	return formatLogEntries(streams), nil
}

// listLokiLabelItems serves both label name and label value discovery; the
// two endpoints share their parameter and response shapes.
func listLokiLabelItems(ctx context.Context, args map[string]interface{}, path string) (interface{}, error) {
	datasourceUID, err := stringArg(args, "datasourceUid")
	if err != nil {
		return nil, err
	}
	start, err := optString(args, "startRfc3339")
	if err != nil {
		return nil, err
	}
	end, err := optString(args, "endRfc3339")
	if err != nil {
		return nil, err
	}

	if err := ensureDatasource(ctx, datasourceUID); err != nil {
		return nil, err
	}

	params := url.Values{}
	if start != "" || end != "" {
		startNanos, endNanos, err := lokiTimeRange(start, end)
		if err != nil {
			return nil, err
		}
		params.Set("start", startNanos)
		params.Set("end", endNanos)
	}

	raw, err := clientFromContext(ctx).GetJSON(ctx, proxyPath(datasourceUID, path), params)
	if err != nil {
		return nil, err
	}
	data, err := lokiData(raw)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return []string{}, nil
	}
	labels, ok := asArray(data)
	if !ok {
		return nil, fmt.Errorf("Unexpected Loki label response format")
	}
	return labels, nil
}

func listLokiLabelNames(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return listLokiLabelItems(ctx, args, "/loki/api/v1/labels")
}

func listLokiLabelValues(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	labelName, err := stringArg(args, "labelName")
	if err != nil {
		return nil, err
	}
	return listLokiLabelItems(ctx, args, "/loki/api/v1/label/"+url.PathEscape(labelName)+"/values")
}

// queryLokiStats returns the index statistics for the streams matching a
// LogQL selector. The stats endpoint responds with a bare object, not the
// status envelope the query endpoints use.
func queryLokiStats(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	datasourceUID, err := stringArg(args, "datasourceUid")
	if err != nil {
		return nil, err
	}
	logql, err := stringArg(args, "logql")
	if err != nil {
		return nil, err
	}
	start, err := optString(args, "startRfc3339")
	if err != nil {
		return nil, err
	}
	end, err := optString(args, "endRfc3339")
	if err != nil {
		return nil, err
	}

	if err := ensureDatasource(ctx, datasourceUID); err != nil {
		return nil, err
	}

	startNanos, endNanos, err := lokiTimeRange(start, end)
	if err != nil {
		return nil, err
	}
	params := url.Values{
		"query": []string{logql},
		"start": []string{startNanos},
		"end":   []string{endNanos},
	}
	raw, err := clientFromContext(ctx).GetJSON(ctx, proxyPath(datasourceUID, "/loki/api/v1/index/stats"), params)
	if err != nil {
		return nil, err
	}
	payload, ok := asObject(raw)
	if !ok {
		return nil, fmt.Errorf("Unexpected Loki stats response: %v", raw)
	}
	return payload, nil
}

func registerLoki(registry *usecases.Registry) {
	registry.Register(usecases.ToolSpec{
		Name:        "query_loki_logs",
		Title:       "Query Loki logs",
		Description: "Execute a LogQL query against a Loki datasource and return the matching log entries.",
		Signature: []mcp.Parameter{
			{Name: "datasourceUid", Type: schema.StringType(), Required: true},
			{Name: "logql", Type: schema.StringType(), Required: true},
			{Name: "startRfc3339", Type: schema.Optional(schema.StringType())},
			{Name: "endRfc3339", Type: schema.Optional(schema.StringType())},
			{Name: "limit", Type: schema.Optional(schema.IntType())},
			{Name: "direction", Type: schema.Optional(schema.StringType())},
		},
		Handler: queryLokiLogs,
	})

	registry.Register(usecases.ToolSpec{
		Name:        "list_loki_label_names",
		Title:       "List Loki label names",
		Description: "List the label keys available in a Loki datasource for an optional time range.",
		Signature: []mcp.Parameter{
			{Name: "datasourceUid", Type: schema.StringType(), Required: true},
			{Name: "startRfc3339", Type: schema.Optional(schema.StringType())},
			{Name: "endRfc3339", Type: schema.Optional(schema.StringType())},
		},
		Handler: listLokiLabelNames,
	})

	registry.Register(usecases.ToolSpec{
		Name:        "list_loki_label_values",
		Title:       "List Loki label values",
		Description: "List the values for a given label name within a Loki datasource.",
		Signature: []mcp.Parameter{
			{Name: "datasourceUid", Type: schema.StringType(), Required: true},
			{Name: "labelName", Type: schema.StringType(), Required: true},
			{Name: "startRfc3339", Type: schema.Optional(schema.StringType())},
			{Name: "endRfc3339", Type: schema.Optional(schema.StringType())},
		},
		Handler: listLokiLabelValues,
	})

	registry.Register(usecases.ToolSpec{
		Name:        "query_loki_stats",
		Title:       "Get Loki log statistics",
		Description: "Return statistics about the log streams that match a LogQL selector in Loki.",
		Signature: []mcp.Parameter{
			{Name: "datasourceUid", Type: schema.StringType(), Required: true},
			{Name: "logql", Type: schema.StringType(), Required: true},
			{Name: "startRfc3339", Type: schema.Optional(schema.StringType())},
			{Name: "endRfc3339", Type: schema.Optional(schema.StringType())},
		},
		Handler: queryLokiStats,
	})
}
