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

func summarizeDatasource(ds map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"id":        ds["id"],
		"uid":       ds["uid"],
		"name":      ds["name"],
		"type":      ds["type"],
		"isDefault": ds["isDefault"],
	}
}

func listDatasources(ctx context.Context, dsType string) (interface{}, error) {
	raw, err := clientFromContext(ctx).GetJSON(ctx, "/datasources", nil)
	if err != nil {
		return nil, err
	}
	list, ok := asArray(raw)
	if !ok {
		return nil, fmt.Errorf("Unexpected response format from Grafana while listing datasources")
	}

	filter := strings.ToLower(dsType)
	summaries := make([]interface{}, 0, len(list))
	for _, entry := range list {
		ds, ok := asObject(entry)
		if !ok {
			continue
		}
		if filter != "" {
			typeName, _ := ds["type"].(string)
			if !strings.Contains(strings.ToLower(typeName), filter) {
				continue
			}
		}
		summaries = append(summaries, summarizeDatasource(ds))
	}
	return summaries, nil
}

func getDatasource(ctx context.Context, path, notFound string) (interface{}, error) {
	result, err := clientFromContext(ctx).GetJSON(ctx, path, nil)
	if err != nil {
		if apiErr, ok := err.(*grafana.APIError); ok && apiErr.StatusCode == 404 {
			return nil, fmt.Errorf("%s", notFound)
		}
		return nil, err
	}
	return result, nil
}

func registerDatasources(registry *usecases.Registry) {
	registry.Register(usecases.ToolSpec{
		Name:  "list_datasources",
		Title: "List datasources",
		Description: "List available Grafana datasources. Optionally filter the list by a substring " +
			"matching the datasource type, for example 'prometheus' or 'loki'.",
		Signature: []mcp.Parameter{
			{Name: "datasourceType", Type: schema.Optional(schema.StringType())},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			dsType, err := optString(args, "datasourceType")
			if err != nil {
				return nil, err
			}
			return listDatasources(ctx, dsType)
		},
	})

	registry.Register(usecases.ToolSpec{
		Name:        "get_datasource_by_uid",
		Title:       "Get datasource by UID",
		Description: "Retrieve full metadata for a datasource using its unique identifier.",
		Signature: []mcp.Parameter{
			{Name: "uid", Type: schema.StringType(), Required: true},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			uid, err := stringArg(args, "uid")
			if err != nil {
				return nil, err
			}
			return getDatasource(ctx, "/datasources/uid/"+uid,
				fmt.Sprintf("Datasource with UID '%s' not found", uid))
		},
	})

	registry.Register(usecases.ToolSpec{
		Name:        "get_datasource_by_name",
		Title:       "Get datasource by name",
		Description: "Retrieve full metadata for a datasource using its configured name.",
		Signature: []mcp.Parameter{
			{Name: "name", Type: schema.StringType(), Required: true},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			name, err := stringArg(args, "name")
			if err != nil {
				return nil, err
			}
			return getDatasource(ctx, "/datasources/name/"+url.PathEscape(name),
				fmt.Sprintf("Datasource with name '%s' not found", name))
		},
	})
}

// ensureDatasource verifies a datasource UID exists before a proxy query.
func ensureDatasource(ctx context.Context, uid string) error {
	_, err := getDatasource(ctx, "/datasources/uid/"+uid,
		fmt.Sprintf("Datasource with UID '%s' not found", uid))
	return err
}
