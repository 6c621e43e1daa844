package tools

import (
	"context"
	"fmt"
	"net/url"

	"github.com/sandersouza/grafanaFastMCP/internal/domain/mcp"
	"github.com/sandersouza/grafanaFastMCP/internal/domain/schema"
	"github.com/sandersouza/grafanaFastMCP/internal/grafana"
	"github.com/sandersouza/grafanaFastMCP/internal/usecases"
)

// fetchAlertRules flattens the grouped Grafana alerting payload into a
// plain rule list.
func fetchAlertRules(ctx context.Context) ([]map[string]interface{}, error) {
	raw, err := clientFromContext(ctx).GetJSON(ctx, "/prometheus/grafana/api/v1/rules", nil)
	if err != nil {
		return nil, err
	}
	payload, ok := asObject(raw)
	if !ok {
		return nil, fmt.Errorf("Unexpected response from Grafana alerting API")
	}
	data, ok := asObject(payload["data"])
	if !ok {
		return nil, nil
	}
	groups, ok := asArray(data["groups"])
	if !ok {
		return nil, nil
	}

	var rules []map[string]interface{}
	for _, rawGroup := range groups {
		group, ok := asObject(rawGroup)
		if !ok {
			continue
		}
		groupRules, ok := asArray(group["rules"])
		if !ok {
			continue
		}
		for _, rawRule := range groupRules {
			if rule, ok := asObject(rawRule); ok {
				rules = append(rules, rule)
			}
		}
	}
	return rules, nil
}

func ruleLabels(rule map[string]interface{}) map[string]string {
	labels := map[string]string{}
	if obj, ok := asObject(rule["labels"]); ok {
		for key, value := range obj {
			if s, ok := value.(string); ok {
				labels[key] = s
			}
		}
	}
	return labels
}

func summarizeAlertRule(rule map[string]interface{}) map[string]interface{} {
	labels, ok := asObject(rule["labels"])
	if !ok {
		labels = map[string]interface{}{}
	}
	return map[string]interface{}{
		"uid":    rule["uid"],
		"title":  rule["name"],
		"state":  rule["state"],
		"labels": labels,
	}
}

func paginate(items []map[string]interface{}, limit, page int) ([]map[string]interface{}, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	if page <= 0 {
		return nil, fmt.Errorf("page must be greater than zero")
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return nil, nil
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], nil
}

func listAlertRules(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	limit, hasLimit, err := optInt(args, "limit")
	if err != nil {
		return nil, err
	}
	page, hasPage, err := optInt(args, "page")
	if err != nil {
		return nil, err
	}
	selectorsRaw, err := optArray(args, "labelSelectors")
	if err != nil {
		return nil, err
	}
	selectors, err := parseLabelSelectors(selectorsRaw)
	if err != nil {
		return nil, err
	}

	rules, err := fetchAlertRules(ctx)
	if err != nil {
		return nil, err
	}

	filtered := rules
	if len(selectors) > 0 {
		filtered = nil
		for _, rule := range rules {
			ok, err := matchesAll(selectors, ruleLabels(rule))
			if err != nil {
				return nil, err
			}
			if ok {
				filtered = append(filtered, rule)
			}
		}
	}

	if !hasLimit {
		limit = 100
	}
	if !hasPage {
		page = 1
	}
	paged, err := paginate(filtered, limit, page)
	if err != nil {
		return nil, err
	}

	summaries := make([]interface{}, 0, len(paged))
	for _, rule := range paged {
		summaries = append(summaries, summarizeAlertRule(rule))
	}

	return map[string]interface{}{
		"alert_rules": summaries,
		"total_count": len(summaries),
		"limit":       limit,
		"page":        page,
		"type":        "alert_rules_result",
	}, nil
}

func getAlertRuleByUID(ctx context.Context, uid string) (interface{}, error) {
	result, err := clientFromContext(ctx).GetJSON(ctx, "/v1/provisioning/alert-rules/"+uid, nil)
	if err != nil {
		if apiErr, ok := err.(*grafana.APIError); ok && apiErr.StatusCode == 404 {
			return nil, fmt.Errorf("Alert rule with UID '%s' not found", uid)
		}
		return nil, err
	}
	return result, nil
}

func listContactPoints(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	limit, hasLimit, err := optInt(args, "limit")
	if err != nil {
		return nil, err
	}
	name, err := optString(args, "name")
	if err != nil {
		return nil, err
	}
	if !hasLimit {
		limit = 100
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	params := url.Values{}
	if name != "" {
		params.Set("name", name)
	}
	raw, err := clientFromContext(ctx).GetJSON(ctx, "/v1/provisioning/contact-points", params)
	if err != nil {
		return nil, err
	}
	points, ok := asArray(raw)
	if !ok {
		return nil, fmt.Errorf("Unexpected response when listing contact points")
	}
	if len(points) > limit {
		points = points[:limit]
	}

	summaries := make([]interface{}, 0, len(points))
	for _, entry := range points {
		point, ok := asObject(entry)
		if !ok {
			continue
		}
		summaries = append(summaries, map[string]interface{}{
			"uid":  point["uid"],
			"name": point["name"],
			"type": point["type"],
		})
	}

	return map[string]interface{}{
		"contact_points": summaries,
		"total_count":    len(summaries),
		"limit":          limit,
		"name":           name,
		"type":           "contact_points_result",
	}, nil
}

func registerAlerting(registry *usecases.Registry) {
	registry.Register(usecases.ToolSpec{
		Name:  "list_alert_rules",
		Title: "List alert rules",
		Description: "List Grafana alert rules with optional pagination and label filtering. " +
			"Returns a consolidated response object containing rule summaries and pagination info.",
		Signature: []mcp.Parameter{
			{Name: "limit", Type: schema.Optional(schema.IntType())},
			{Name: "page", Type: schema.Optional(schema.IntType())},
			{Name: "labelSelectors", Type: schema.Optional(schema.ArrayOf(schema.ObjectType()))},
		},
		Handler: listAlertRules,
	})

	registry.Register(usecases.ToolSpec{
		Name:        "get_alert_rule_by_uid",
		Title:       "Get alert rule details",
		Description: "Retrieve the full configuration for a Grafana alert rule identified by its UID.",
		Signature: []mcp.Parameter{
			{Name: "uid", Type: schema.StringType(), Required: true},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			uid, err := stringArg(args, "uid")
			if err != nil {
				return nil, err
			}
			return getAlertRuleByUID(ctx, uid)
		},
	})

	registry.Register(usecases.ToolSpec{
		Name:  "list_contact_points",
		Title: "List contact points",
		Description: "List Grafana notification contact points with optional name filtering. " +
			"Returns a consolidated response object containing contact point summaries.",
		Signature: []mcp.Parameter{
			{Name: "limit", Type: schema.Optional(schema.IntType())},
			{Name: "name", Type: schema.Optional(schema.StringType())},
		},
		Handler: listContactPoints,
	})
}
