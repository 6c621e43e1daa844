package tools

import (
	"context"
	"net/url"

	"github.com/sandersouza/grafanaFastMCP/internal/domain/mcp"
	"github.com/sandersouza/grafanaFastMCP/internal/domain/schema"
	"github.com/sandersouza/grafanaFastMCP/internal/usecases"
)

func listTeams(ctx context.Context, query string) (interface{}, error) {
	params := url.Values{}
	if query != "" {
		params.Set("query", query)
	}
	raw, err := clientFromContext(ctx).GetJSON(ctx, "/teams/search", params)
	if err != nil {
		return nil, err
	}

	var teams []interface{}
	if payload, ok := asObject(raw); ok {
		teams, _ = asArray(payload["teams"])
	} else if list, ok := asArray(raw); ok {
		teams = list
	}
	if teams == nil {
		teams = []interface{}{}
	}

	return map[string]interface{}{
		"teams":       teams,
		"total_count": len(teams),
		"query":       query,
		"type":        "teams_search_result",
	}, nil
}

func listUsersByOrg(ctx context.Context) (interface{}, error) {
	raw, err := clientFromContext(ctx).GetJSON(ctx, "/org/users", nil)
	if err != nil {
		return nil, err
	}
	users, ok := asArray(raw)
	if !ok {
		users = []interface{}{}
	}
	return map[string]interface{}{
		"users":       users,
		"total_count": len(users),
		"type":        "org_users_result",
	}, nil
}

func registerAdmin(registry *usecases.Registry) {
	registry.Register(usecases.ToolSpec{
		Name:  "list_teams",
		Title: "List teams",
		Description: "Search for Grafana teams by name. Returns a consolidated response object " +
			"containing team metadata, search query, and total count.",
		Signature: []mcp.Parameter{
			{Name: "query", Type: schema.Optional(schema.StringType())},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			query, err := optString(args, "query")
			if err != nil {
				return nil, err
			}
			return listTeams(ctx, query)
		},
	})

	registry.Register(usecases.ToolSpec{
		Name:        "list_users_by_org",
		Title:       "List users by organization",
		Description: "Return all users that belong to the current Grafana organization.",
		Signature:   []mcp.Parameter{},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return listUsersByOrg(ctx)
		},
	})
}
