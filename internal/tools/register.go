package tools

import "github.com/sandersouza/grafanaFastMCP/internal/usecases"

// RegisterAll populates the registry with every Grafana tool. Called once
// at startup before any transport starts.
func RegisterAll(registry *usecases.Registry) {
	registerSearch(registry)
	registerDashboard(registry)
	registerDatasources(registry)
	registerPrometheus(registry)
	registerLoki(registry)
	registerAdmin(registry)
	registerAlerting(registry)
	registerNavigation(registry)
}
