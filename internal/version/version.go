// Package version holds the build version reported in serverInfo and the
// Grafana client User-Agent.
package version

// Version is the server version string.
const Version = "1.1.0"
