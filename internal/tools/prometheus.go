package tools

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sandersouza/grafanaFastMCP/internal/domain/mcp"
	"github.com/sandersouza/grafanaFastMCP/internal/domain/schema"
	"github.com/sandersouza/grafanaFastMCP/internal/usecases"
)

var durationPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)(ns|us|µs|ms|s|m|h|d)`)

var durationFactors = map[string]float64{
	"ns": 1e-9,
	"us": 1e-6,
	"µs": 1e-6,
	"ms": 1e-3,
	"s":  1,
	"m":  60,
	"h":  3600,
	"d":  86400,
}

// parseDuration understands compound expressions like "1h30m" including the
// day unit Prometheus-style ranges use.
func parseDuration(expr string) (time.Duration, error) {
	var totalSeconds float64
	for _, match := range durationPattern.FindAllStringSubmatch(expr, -1) {
		value, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			return 0, fmt.Errorf("Unable to parse duration expression '%s'", expr)
		}
		totalSeconds += value * durationFactors[match[2]]
	}
	if totalSeconds == 0 {
		return 0, fmt.Errorf("Unable to parse duration expression '%s'", expr)
	}
	return time.Duration(totalSeconds * float64(time.Second)), nil
}

// parseTimeExpression resolves "now", now-relative offsets, and RFC 3339
// timestamps against the given reference time.
func parseTimeExpression(expr string, now time.Time) (time.Time, error) {
	if expr == "" {
		return time.Time{}, fmt.Errorf("Time expression must be a non-empty string")
	}
	if expr == "now" {
		return now, nil
	}
	if strings.HasPrefix(expr, "now-") {
		d, err := parseDuration(expr[4:])
		if err != nil {
			return time.Time{}, err
		}
		return now.Add(-d), nil
	}
	if strings.HasPrefix(expr, "now+") {
		d, err := parseDuration(expr[4:])
		if err != nil {
			return time.Time{}, err
		}
		return now.Add(d), nil
	}
	parsed, err := time.Parse(time.RFC3339, expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("Invalid RFC3339 timestamp '%s'", expr)
	}
	return parsed, nil
}

func unixSeconds(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixNano())/1e9, 'f', -1, 64)
}

func proxyPath(datasourceUID, path string) string {
	return "/datasources/proxy/uid/" + datasourceUID + path
}

// promData unwraps a Prometheus API envelope, failing on non-success status.
func promData(raw interface{}) (interface{}, error) {
	payload, ok := asObject(raw)
	if !ok {
		return nil, fmt.Errorf("Unexpected response from Prometheus API")
	}
	if payload["status"] != "success" {
		return nil, fmt.Errorf("Prometheus API returned error: %v", payload)
	}
	return payload["data"], nil
}

func queryPrometheus(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	datasourceUID, err := stringArg(args, "datasourceUid")
	if err != nil {
		return nil, err
	}
	expr, err := stringArg(args, "expr")
	if err != nil {
		return nil, err
	}
	startTime, err := stringArg(args, "startTime")
	if err != nil {
		return nil, err
	}
	endTime, err := optString(args, "endTime")
	if err != nil {
		return nil, err
	}
	stepSeconds, hasStep, err := optInt(args, "stepSeconds")
	if err != nil {
		return nil, err
	}
	queryType, err := optString(args, "queryType")
	if err != nil {
		return nil, err
	}

	if err := ensureDatasource(ctx, datasourceUID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	start, err := parseTimeExpression(startTime, now)
	if err != nil {
		return nil, err
	}

	client := clientFromContext(ctx)
	if strings.ToLower(queryType) == "instant" {
		params := url.Values{
			"query": []string{expr},
			"time":  []string{unixSeconds(start)},
		}
		raw, err := client.GetJSON(ctx, proxyPath(datasourceUID, "/api/v1/query"), params)
		if err != nil {
			return nil, err
		}
		return promData(raw)
	}

	if endTime == "" {
		return nil, fmt.Errorf("endTime must be provided for range queries")
	}
	if !hasStep || stepSeconds <= 0 {
		return nil, fmt.Errorf("stepSeconds must be greater than zero for range queries")
	}
	end, err := parseTimeExpression(endTime, now)
	if err != nil {
		return nil, err
	}
	params := url.Values{
		"query": []string{expr},
		"start": []string{unixSeconds(start)},
		"end":   []string{unixSeconds(end)},
		"step":  []string{strconv.Itoa(stepSeconds)},
	}
	raw, err := client.GetJSON(ctx, proxyPath(datasourceUID, "/api/v1/query_range"), params)
	if err != nil {
		return nil, err
	}
	return promData(raw)
}

func listPrometheusMetricNames(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	datasourceUID, err := stringArg(args, "datasourceUid")
	if err != nil {
		return nil, err
	}
	regexArg, err := optString(args, "regex")
	if err != nil {
		return nil, err
	}
	limit, hasLimit, err := optInt(args, "limit")
	if err != nil {
		return nil, err
	}
	page, hasPage, err := optInt(args, "page")
	if err != nil {
		return nil, err
	}

	if err := ensureDatasource(ctx, datasourceUID); err != nil {
		return nil, err
	}

	raw, err := clientFromContext(ctx).GetJSON(ctx, proxyPath(datasourceUID, "/api/v1/label/__name__/values"), nil)
	if err != nil {
		return nil, err
	}
	data, err := promData(raw)
	if err != nil {
		return nil, err
	}

	names := stringItems(data)

	if regexArg != "" {
		pattern, err := regexp.Compile(regexArg)
		if err != nil {
			return nil, fmt.Errorf("Invalid regex '%s'", regexArg)
		}
		filtered := names[:0]
		for _, name := range names {
			if pattern.MatchString(name) {
				filtered = append(filtered, name)
			}
		}
		names = filtered
	}

	if !hasLimit {
		limit = 10
	}
	if !hasPage {
		page = 1
	}
	if limit <= 0 || page <= 0 {
		return nil, fmt.Errorf("limit and page must be positive integers")
	}
	start := (page - 1) * limit
	if start >= len(names) {
		return []string{}, nil
	}
	end := start + limit
	if end > len(names) {
		end = len(names)
	}
	return names[start:end], nil
}

// promSeriesParams builds the shared match[]/start/end parameters for the
// label discovery endpoints from the matches, startRfc3339, and endRfc3339
// arguments.
func promSeriesParams(args map[string]interface{}, now time.Time) (url.Values, error) {
	selectorsRaw, err := optArray(args, "matches")
	if err != nil {
		return nil, err
	}
	selectors, err := parseLabelSelectors(selectorsRaw)
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

	params := url.Values{}
	for _, selector := range selectors {
		rendered, err := selector.promQL()
		if err != nil {
			return nil, err
		}
		params.Add("match[]", rendered)
	}
	if start != "" {
		parsed, err := parseTimeExpression(start, now)
		if err != nil {
			return nil, err
		}
		params.Set("start", unixSeconds(parsed))
	}
	if end != "" {
		parsed, err := parseTimeExpression(end, now)
		if err != nil {
			return nil, err
		}
		params.Set("end", unixSeconds(parsed))
	}
	return params, nil
}

func listPrometheusLabelItems(ctx context.Context, args map[string]interface{}, path string) (interface{}, error) {
	datasourceUID, err := stringArg(args, "datasourceUid")
	if err != nil {
		return nil, err
	}
	params, err := promSeriesParams(args, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := ensureDatasource(ctx, datasourceUID); err != nil {
		return nil, err
	}
	raw, err := clientFromContext(ctx).GetJSON(ctx, proxyPath(datasourceUID, path), params)
	if err != nil {
		return nil, err
	}
	data, err := promData(raw)
	if err != nil {
		return nil, err
	}
	return stringItems(data), nil
}

func listPrometheusLabelNames(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return listPrometheusLabelItems(ctx, args, "/api/v1/labels")
}

func listPrometheusLabelValues(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	labelName, err := stringArg(args, "labelName")
	if err != nil {
		return nil, err
	}
	return listPrometheusLabelItems(ctx, args, "/api/v1/label/"+url.PathEscape(labelName)+"/values")
}

func listPrometheusMetricMetadata(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	datasourceUID, err := stringArg(args, "datasourceUid")
	if err != nil {
		return nil, err
	}
	metric, err := optString(args, "metric")
	if err != nil {
		return nil, err
	}
	limit, hasLimit, err := optInt(args, "limit")
	if err != nil {
		return nil, err
	}

	if err := ensureDatasource(ctx, datasourceUID); err != nil {
		return nil, err
	}

	params := url.Values{}
	if metric != "" {
		params.Set("metric", metric)
	}
	if hasLimit {
		params.Set("limit", strconv.Itoa(limit))
	}
	raw, err := clientFromContext(ctx).GetJSON(ctx, proxyPath(datasourceUID, "/api/v1/metadata"), params)
	if err != nil {
		return nil, err
	}
	return promData(raw)
}

func registerPrometheus(registry *usecases.Registry) {
	registry.Register(usecases.ToolSpec{
		Name:        "query_prometheus",
		Title:       "Query Prometheus",
		Description: "Execute PromQL queries against a Prometheus datasource.",
		Signature: []mcp.Parameter{
			{Name: "datasourceUid", Type: schema.StringType(), Required: true},
			{Name: "expr", Type: schema.StringType(), Required: true},
			{Name: "startTime", Type: schema.StringType(), Required: true},
			{Name: "endTime", Type: schema.Optional(schema.StringType())},
			{Name: "stepSeconds", Type: schema.Optional(schema.IntType())},
			{Name: "queryType", Type: schema.Optional(schema.StringType())},
		},
		Handler: queryPrometheus,
	})

	registry.Register(usecases.ToolSpec{
		Name:        "list_prometheus_metric_names",
		Title:       "List Prometheus metric names",
		Description: "List metric names available in a Prometheus datasource.",
		Signature: []mcp.Parameter{
			{Name: "datasourceUid", Type: schema.StringType(), Required: true},
			{Name: "regex", Type: schema.Optional(schema.StringType())},
			{Name: "limit", Type: schema.Optional(schema.IntType())},
			{Name: "page", Type: schema.Optional(schema.IntType())},
		},
		Handler: listPrometheusMetricNames,
	})

	registry.Register(usecases.ToolSpec{
		Name:        "list_prometheus_label_names",
		Title:       "List Prometheus label names",
		Description: "List label names in a Prometheus datasource, optionally restricted to series matching the given selectors and time range.",
		Signature: []mcp.Parameter{
			{Name: "datasourceUid", Type: schema.StringType(), Required: true},
			{Name: "matches", Type: schema.Optional(schema.ArrayOf(schema.ObjectType()))},
			{Name: "startRfc3339", Type: schema.Optional(schema.StringType())},
			{Name: "endRfc3339", Type: schema.Optional(schema.StringType())},
		},
		Handler: listPrometheusLabelNames,
	})

	registry.Register(usecases.ToolSpec{
		Name:        "list_prometheus_label_values",
		Title:       "List Prometheus label values",
		Description: "List values for a specific label in a Prometheus datasource.",
		Signature: []mcp.Parameter{
			{Name: "datasourceUid", Type: schema.StringType(), Required: true},
			{Name: "labelName", Type: schema.StringType(), Required: true},
			{Name: "matches", Type: schema.Optional(schema.ArrayOf(schema.ObjectType()))},
			{Name: "startRfc3339", Type: schema.Optional(schema.StringType())},
			{Name: "endRfc3339", Type: schema.Optional(schema.StringType())},
		},
		Handler: listPrometheusLabelValues,
	})

	registry.Register(usecases.ToolSpec{
		Name:        "list_prometheus_metric_metadata",
		Title:       "List Prometheus metric metadata",
		Description: "List metadata entries for metrics in a Prometheus datasource.",
		Signature: []mcp.Parameter{
			{Name: "datasourceUid", Type: schema.StringType(), Required: true},
			{Name: "metric", Type: schema.Optional(schema.StringType())},
			{Name: "limit", Type: schema.Optional(schema.IntType())},
		},
		Handler: listPrometheusMetricMetadata,
	})
}
