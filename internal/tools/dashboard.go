package tools

import (
	"context"
	"fmt"

	"github.com/sandersouza/grafanaFastMCP/internal/domain/mcp"
	"github.com/sandersouza/grafanaFastMCP/internal/domain/schema"
	"github.com/sandersouza/grafanaFastMCP/internal/usecases"
)

func getDashboardByUID(ctx context.Context, uid string) (map[string]interface{}, error) {
	client := clientFromContext(ctx)
	raw, err := client.GetJSON(ctx, "/dashboards/uid/"+uid, nil)
	if err != nil {
		return nil, err
	}
	payload, ok := asObject(raw)
	if !ok {
		return nil, fmt.Errorf("Unexpected Grafana response when fetching dashboard")
	}
	return payload, nil
}

func postDashboard(ctx context.Context, dashboard map[string]interface{}, folderUID, message string, overwrite bool, userID int, hasUserID bool) (interface{}, error) {
	payload := map[string]interface{}{
		"dashboard": dashboard,
		"overwrite": overwrite,
	}
	if folderUID != "" {
		payload["folderUid"] = folderUID
	}
	if message != "" {
		payload["message"] = message
	}
	if hasUserID {
		payload["userId"] = userID
	}
	return clientFromContext(ctx).PostJSON(ctx, "/dashboards/db", payload)
}

// patchDashboard fetches the current dashboard, applies the JSONPath patch
// operations to it, and saves the result with overwrite set. The folder
// sticks to the dashboard's current one unless folderUid is given.
func patchDashboard(ctx context.Context, uid string, operations []interface{}, folderUID, message string, userID int, hasUserID bool) (interface{}, error) {
	payload, err := getDashboardByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	dashboard, ok := asObject(payload["dashboard"])
	if !ok {
		return nil, fmt.Errorf("Dashboard payload does not contain a JSON object")
	}

	for idx, rawOperation := range operations {
		operation, ok := asObject(rawOperation)
		if !ok {
			return nil, fmt.Errorf("Operation %d must be an object", idx)
		}
		op, _ := operation["op"].(string)
		path, _ := operation["path"].(string)
		if op == "" || path == "" {
			return nil, fmt.Errorf("Operation %d missing op or path", idx)
		}
		switch op {
		case "replace", "add", "remove":
		default:
			return nil, fmt.Errorf("Unsupported patch operation '%s' at index %d", op, idx)
		}
		remove := op == "remove"
		var value interface{}
		if !remove {
			value = operation["value"]
		}
		if err := applyJSONPath(dashboard, path, value, remove); err != nil {
			return nil, fmt.Errorf("Failed to apply operation %d (%s %s): %v", idx, op, path, err)
		}
	}

	if folderUID == "" {
		if meta, ok := asObject(payload["meta"]); ok {
			folderUID = stringField(meta, "folderUid")
		}
	}
	return postDashboard(ctx, dashboard, folderUID, message, true, userID, hasUserID)
}

func updateDashboard(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	dashboard, err := optObject(args, "dashboard")
	if err != nil {
		return nil, err
	}
	uid, err := optString(args, "uid")
	if err != nil {
		return nil, err
	}
	operations, err := optArray(args, "operations")
	if err != nil {
		return nil, err
	}
	folderUID, err := optString(args, "folderUid")
	if err != nil {
		return nil, err
	}
	message, err := optString(args, "message")
	if err != nil {
		return nil, err
	}
	overwrite, err := optBool(args, "overwrite")
	if err != nil {
		return nil, err
	}
	userID, hasUserID, err := optInt(args, "userId")
	if err != nil {
		return nil, err
	}
	if uid != "" && len(operations) > 0 {
		return patchDashboard(ctx, uid, operations, folderUID, message, userID, hasUserID)
	}
	if dashboard != nil {
		return postDashboard(ctx, dashboard, folderUID, message, overwrite, userID, hasUserID)
	}
	return nil, fmt.Errorf("Either dashboard JSON or (uid + operations) must be provided")
}

func stringField(obj map[string]interface{}, key string) string {
	s, _ := obj[key].(string)
	return s
}

func intField(obj map[string]interface{}, key string) int {
	switch v := obj[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func extractTimeRange(dashboard map[string]interface{}) map[string]string {
	timeRange := map[string]string{"from": "", "to": ""}
	if window, ok := asObject(dashboard["time"]); ok {
		timeRange["from"] = stringField(window, "from")
		timeRange["to"] = stringField(window, "to")
	}
	return timeRange
}

func summarizePanel(panel map[string]interface{}) map[string]interface{} {
	targets, _ := asArray(panel["targets"])
	summary := map[string]interface{}{
		"id":         intField(panel, "id"),
		"title":      stringField(panel, "title"),
		"type":       stringField(panel, "type"),
		"queryCount": len(targets),
	}
	if description := stringField(panel, "description"); description != "" {
		summary["description"] = description
	}
	return summary
}

// buildDashboardSummary condenses a dashboard payload to the fields a client
// needs for orientation: panels, variables, time range, and metadata.
func buildDashboardSummary(uid string, dashboard map[string]interface{}, meta interface{}) map[string]interface{} {
	panels, _ := asArray(dashboard["panels"])
	panelSummaries := make([]interface{}, 0, len(panels))
	for _, rawPanel := range panels {
		if panel, ok := asObject(rawPanel); ok {
			panelSummaries = append(panelSummaries, summarizePanel(panel))
		}
	}

	summary := map[string]interface{}{
		"uid":        uid,
		"title":      stringField(dashboard, "title"),
		"panels":     panelSummaries,
		"panelCount": len(panels),
		"timeRange":  extractTimeRange(dashboard),
	}
	if description := stringField(dashboard, "description"); description != "" {
		summary["description"] = description
	}
	if tags := stringItems(dashboard["tags"]); len(tags) > 0 {
		summary["tags"] = tags
	}
	if refresh := stringField(dashboard, "refresh"); refresh != "" {
		summary["refresh"] = refresh
	}

	if templating, ok := asObject(dashboard["templating"]); ok {
		list, _ := asArray(templating["list"])
		variables := make([]interface{}, 0, len(list))
		for _, rawVariable := range list {
			variable, ok := asObject(rawVariable)
			if !ok {
				continue
			}
			entry := map[string]interface{}{
				"name": stringField(variable, "name"),
				"type": stringField(variable, "type"),
			}
			if label := stringField(variable, "label"); label != "" {
				entry["label"] = label
			}
			variables = append(variables, entry)
		}
		if len(variables) > 0 {
			summary["variables"] = variables
		}
	}

	if metaObj, ok := asObject(meta); ok && len(metaObj) > 0 {
		summary["meta"] = metaObj
	}
	return summary
}

// dashboardPanelQueries lists one entry per panel target that carries a
// query expression, together with the panel title and datasource metadata.
func dashboardPanelQueries(ctx context.Context, uid string) (interface{}, error) {
	payload, err := getDashboardByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	dashboard, ok := asObject(payload["dashboard"])
	if !ok {
		return nil, fmt.Errorf("Dashboard payload does not contain a JSON object")
	}
	panels, ok := asArray(dashboard["panels"])
	if !ok {
		return nil, fmt.Errorf("Dashboard does not contain a panels array")
	}

	queries := []interface{}{}
	for _, rawPanel := range panels {
		panel, ok := asObject(rawPanel)
		if !ok {
			continue
		}
		title := stringField(panel, "title")
		datasourceInfo := map[string]interface{}{}
		if datasource, ok := asObject(panel["datasource"]); ok {
			if dsUID, present := datasource["uid"]; present {
				datasourceInfo["uid"] = dsUID
			}
			if dsType, present := datasource["type"]; present {
				datasourceInfo["type"] = dsType
			}
		}
		targets, ok := asArray(panel["targets"])
		if !ok {
			continue
		}
		for _, rawTarget := range targets {
			target, ok := asObject(rawTarget)
			if !ok {
				continue
			}
			expr, _ := target["expr"].(string)
			if expr == "" {
				continue
			}
			queries = append(queries, map[string]interface{}{
				"title":      title,
				"query":      expr,
				"datasource": datasourceInfo,
			})
		}
	}
	return queries, nil
}

func dashboardProperty(ctx context.Context, uid, jsonPath string) (interface{}, error) {
	payload, err := getDashboardByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	dashboard, ok := asObject(payload["dashboard"])
	if !ok {
		return nil, fmt.Errorf("Dashboard payload does not contain a JSON object")
	}
	return evaluateJSONPath(dashboard, jsonPath)
}

func dashboardSummary(ctx context.Context, uid string) (interface{}, error) {
	payload, err := getDashboardByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	dashboard, ok := asObject(payload["dashboard"])
	if !ok {
		return nil, fmt.Errorf("Dashboard payload does not contain a JSON object")
	}
	return buildDashboardSummary(uid, dashboard, payload["meta"]), nil
}

func registerDashboard(registry *usecases.Registry) {
	registry.Register(usecases.ToolSpec{
		Name:        "get_dashboard_by_uid",
		Title:       "Get dashboard details",
		Description: "Retrieve the complete dashboard payload, including metadata and panels, for a given dashboard UID.",
		Signature: []mcp.Parameter{
			{Name: "uid", Type: schema.StringType(), Required: true},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			uid, err := stringArg(args, "uid")
			if err != nil {
				return nil, err
			}
			return getDashboardByUID(ctx, uid)
		},
	})

	registry.Register(usecases.ToolSpec{
		Name:  "update_dashboard",
		Title: "Create or update dashboard",
		Description: "Create a new dashboard or update an existing one. Provide either the full " +
			"dashboard JSON (for create/replace) or supply a dashboard UID with patch operations " +
			"for targeted edits.",
		Signature: []mcp.Parameter{
			{Name: "dashboard", Type: schema.Optional(schema.ObjectType())},
			{Name: "uid", Type: schema.Optional(schema.StringType())},
			{Name: "operations", Type: schema.Optional(schema.ArrayOf(schema.ObjectType()))},
			{Name: "folderUid", Type: schema.Optional(schema.StringType())},
			{Name: "message", Type: schema.Optional(schema.StringType())},
			{Name: "overwrite", Type: schema.Optional(schema.BoolType())},
			{Name: "userId", Type: schema.Optional(schema.IntType())},
		},
		Handler: updateDashboard,
	})

	registry.Register(usecases.ToolSpec{
		Name:  "get_dashboard_panel_queries",
		Title: "Get dashboard panel queries",
		Description: "Return a list of panel queries for the specified dashboard. Each entry includes " +
			"the panel title, the LogQL/PromQL expression, and datasource metadata.",
		Signature: []mcp.Parameter{
			{Name: "uid", Type: schema.StringType(), Required: true},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			uid, err := stringArg(args, "uid")
			if err != nil {
				return nil, err
			}
			return dashboardPanelQueries(ctx, uid)
		},
	})

	registry.Register(usecases.ToolSpec{
		Name:        "get_dashboard_property",
		Title:       "Get dashboard property",
		Description: "Retrieve a specific property from a dashboard using a simplified JSONPath expression.",
		Signature: []mcp.Parameter{
			{Name: "uid", Type: schema.StringType(), Required: true},
			{Name: "jsonPath", Type: schema.StringType(), Required: true},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			uid, err := stringArg(args, "uid")
			if err != nil {
				return nil, err
			}
			jsonPath, err := stringArg(args, "jsonPath")
			if err != nil {
				return nil, err
			}
			return dashboardProperty(ctx, uid, jsonPath)
		},
	})

	registry.Register(usecases.ToolSpec{
		Name:        "get_dashboard_summary",
		Title:       "Get dashboard summary",
		Description: "Return a compact summary of the dashboard including panels, variables, and metadata.",
		Signature: []mcp.Parameter{
			{Name: "uid", Type: schema.StringType(), Required: true},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			uid, err := stringArg(args, "uid")
			if err != nil {
				return nil, err
			}
			return dashboardSummary(ctx, uid)
		},
	})
}
