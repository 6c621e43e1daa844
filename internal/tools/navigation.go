package tools

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sandersouza/grafanaFastMCP/internal/domain/mcp"
	"github.com/sandersouza/grafanaFastMCP/internal/domain/schema"
	"github.com/sandersouza/grafanaFastMCP/internal/grafana"
	"github.com/sandersouza/grafanaFastMCP/internal/usecases"
)

func appendQuery(base string, params url.Values) string {
	if len(params) == 0 {
		return base
	}
	separator := "?"
	if strings.Contains(base, "?") {
		separator = "&"
	}
	return base + separator + params.Encode()
}

func stringValues(raw map[string]interface{}, err error) (map[string]string, error) {
	if err != nil {
		return nil, err
	}
	values := make(map[string]string, len(raw))
	for key, value := range raw {
		if s, ok := value.(string); ok {
			values[key] = s
		}
	}
	return values, nil
}

// generateDeeplink builds navigation URLs without touching the Grafana
// API; only the configured base URL is needed.
func generateDeeplink(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	resourceType, err := stringArg(args, "resourceType")
	if err != nil {
		return nil, err
	}
	dashboardUID, err := optString(args, "dashboardUid")
	if err != nil {
		return nil, err
	}
	datasourceUID, err := optString(args, "datasourceUid")
	if err != nil {
		return nil, err
	}
	panelID, hasPanelID, err := optInt(args, "panelId")
	if err != nil {
		return nil, err
	}
	queryParams, err := stringValues(optObject(args, "queryParams"))
	if err != nil {
		return nil, err
	}
	timeRange, err := stringValues(optObject(args, "timeRange"))
	if err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(grafana.ConfigFromContext(ctx).URL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("Grafana URL not configured. Set GRAFANA_URL or provide the X-Grafana-URL header.")
	}

	var deeplink string
	switch strings.ToLower(resourceType) {
	case "dashboard":
		if dashboardUID == "" {
			return nil, fmt.Errorf("dashboardUid is required for dashboard links")
		}
		deeplink = baseURL + "/d/" + dashboardUID
	case "panel":
		if dashboardUID == "" || !hasPanelID {
			return nil, fmt.Errorf("dashboardUid and panelId are required for panel links")
		}
		deeplink = fmt.Sprintf("%s/d/%s?viewPanel=%d", baseURL, dashboardUID, panelID)
	case "explore":
		if datasourceUID == "" {
			return nil, fmt.Errorf("datasourceUid is required for Explore links")
		}
		state := url.Values{"left": []string{fmt.Sprintf(`{"datasource":"%s"}`, datasourceUID)}}
		deeplink = baseURL + "/explore?" + state.Encode()
	default:
		return nil, fmt.Errorf("Unsupported resource type. Supported values are: dashboard, panel, explore.")
	}

	rangeParams := url.Values{}
	if from := timeRange["from"]; from != "" {
		rangeParams.Set("from", from)
	}
	if to := timeRange["to"]; to != "" {
		rangeParams.Set("to", to)
	}
	deeplink = appendQuery(deeplink, rangeParams)

	extraParams := url.Values{}
	for key, value := range queryParams {
		extraParams.Set(key, value)
	}
	return appendQuery(deeplink, extraParams), nil
}

func registerNavigation(registry *usecases.Registry) {
	registry.Register(usecases.ToolSpec{
		Name:  "generate_deeplink",
		Title: "Generate navigation deeplink",
		Description: "Generate navigation URLs for dashboards, panels, or the Explore view. " +
			"Optional time ranges and custom query parameters are supported.",
		Signature: []mcp.Parameter{
			{Name: "resourceType", Type: schema.StringType(), Required: true},
			{Name: "dashboardUid", Type: schema.Optional(schema.StringType())},
			{Name: "datasourceUid", Type: schema.Optional(schema.StringType())},
			{Name: "panelId", Type: schema.Optional(schema.IntType())},
			{Name: "queryParams", Type: schema.Optional(schema.ObjectType())},
			{Name: "timeRange", Type: schema.Optional(schema.ObjectType())},
		},
		Handler: generateDeeplink,
	})
}
