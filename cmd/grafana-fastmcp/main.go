// Command grafana-fastmcp runs the Grafana MCP server over stdio or
// streamable HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sandersouza/grafanaFastMCP/internal/grafana"
	"github.com/sandersouza/grafanaFastMCP/internal/infrastructure/logging"
	"github.com/sandersouza/grafanaFastMCP/internal/infrastructure/server"
	"github.com/sandersouza/grafanaFastMCP/internal/instructions"
	"github.com/sandersouza/grafanaFastMCP/internal/tools"
	"github.com/sandersouza/grafanaFastMCP/internal/usecases"
	"github.com/sandersouza/grafanaFastMCP/internal/version"
)

const serverName = "mcp-grafana"

type options struct {
	envFile            string
	address            string
	basePath           string
	logLevel           string
	debug              bool
	showVersion        bool
	transport          string
	streamableHTTPPath string

	grafanaURL            string
	grafanaServiceAccount string
	grafanaAPIKey         string
	grafanaUsername       string
	grafanaPassword       string
	grafanaAccessToken    string
	grafanaIDToken        string
}

func envDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// preScanEnvFile resolves --env-file before the real flag parse so the
// .env values can feed the other flags' defaults.
func preScanEnvFile(args []string) string {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--env-file" || arg == "-env-file" {
			if i+1 < len(args) {
				return args[i+1]
			}
			return ""
		}
		for _, prefix := range []string{"--env-file=", "-env-file="} {
			if strings.HasPrefix(arg, prefix) {
				return strings.TrimPrefix(arg, prefix)
			}
		}
	}
	return ""
}

func loadEnvFile(explicit string) {
	candidates := []string{
		explicit,
		os.Getenv("ENV_FILE"),
		".env",
	}
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		path, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		// CLI arguments still override these values after parsing.
		_ = godotenv.Overload(path)
		return
	}
}

func parseOptions(args []string) (*options, error) {
	loadEnvFile(preScanEnvFile(args))

	opts := &options{}
	fs := flag.NewFlagSet(serverName, flag.ContinueOnError)
	fs.StringVar(&opts.envFile, "env-file", "", "Path to a .env file to load before starting")
	fs.StringVar(&opts.address, "address", envDefault("APP_ADDRESS", "localhost:8000"), "Host and port to bind the server")
	fs.StringVar(&opts.basePath, "base-path", envDefault("BASE_PATH", "/"), "Base path when using the SSE or Streamable HTTP transports")
	fs.StringVar(&opts.logLevel, "log-level", envDefault("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	fs.BoolVar(&opts.debug, "debug", false, "Enable debug mode")
	fs.BoolVar(&opts.showVersion, "version", false, "Print version and exit")
	fs.StringVar(&opts.transport, "transport", envDefault("TRANSPORT", "stdio"), "Transport protocol to run (sse, streamable-http, or stdio)")
	fs.StringVar(&opts.streamableHTTPPath, "streamable-http-path", envDefault("STREAMABLE_HTTP_PATH", "mcp"), "Path for the streamable HTTP endpoint (absolute or relative to the base path)")

	fs.StringVar(&opts.grafanaURL, "grafana-url", "", "Grafana base URL. Overrides the GRAFANA_URL environment variable when provided")
	fs.StringVar(&opts.grafanaServiceAccount, "grafana-service-account-token", "", "Grafana service account token. Overrides GRAFANA_SERVICE_ACCOUNT_TOKEN when provided")
	fs.StringVar(&opts.grafanaAPIKey, "grafana-api-key", "", "Legacy Grafana API key. Overrides GRAFANA_API_KEY when provided")
	fs.StringVar(&opts.grafanaUsername, "grafana-username", "", "Grafana username for basic auth. Overrides GRAFANA_USERNAME when provided")
	fs.StringVar(&opts.grafanaPassword, "grafana-password", "", "Grafana password for basic auth. Overrides GRAFANA_PASSWORD when provided")
	fs.StringVar(&opts.grafanaAccessToken, "grafana-access-token", "", "Grafana access token. Overrides GRAFANA_ACCESS_TOKEN when provided")
	fs.StringVar(&opts.grafanaIDToken, "grafana-id-token", "", "Grafana ID token. Overrides GRAFANA_ID_TOKEN when provided")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}

// exportGrafanaFlags pushes CLI-provided credentials into the environment
// so the per-session configuration resolution sees them.
func exportGrafanaFlags(opts *options) {
	overrides := map[string]string{
		grafana.URLEnv:            opts.grafanaURL,
		grafana.ServiceAccountEnv: opts.grafanaServiceAccount,
		grafana.APIKeyEnv:         opts.grafanaAPIKey,
		grafana.UsernameEnv:       opts.grafanaUsername,
		grafana.PasswordEnv:       opts.grafanaPassword,
		grafana.AccessTokenEnv:    opts.grafanaAccessToken,
		grafana.IDTokenEnv:        opts.grafanaIDToken,
	}
	for key, value := range overrides {
		if value != "" {
			os.Setenv(key, value)
		}
	}
}

func buildLogger(opts *options) *logging.Logger {
	config := logging.DefaultConfig()
	config.Level = logging.LogLevel(strings.ToLower(opts.logLevel))
	if opts.debug {
		config.Development = true
		config.Level = logging.DebugLevel
	}
	logger, err := logging.New(config)
	if err != nil {
		fallback, _ := logging.New(logging.DefaultConfig())
		fallback.Warn("invalid log level, falling back to info", logging.Fields{"level": opts.logLevel})
		return fallback
	}
	return logger
}

func run() error {
	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		return err
	}
	if opts.showVersion {
		fmt.Println(version.Version)
		return nil
	}

	exportGrafanaFlags(opts)

	logger := buildLogger(opts)
	logging.SetDefault(logger)
	defer func() { _ = logger.Sync() }()

	instructionsText := instructions.Load()

	registry := usecases.NewRegistry()
	tools.RegisterAll(registry)

	dispatcher := usecases.NewDispatcher(usecases.DispatcherConfig{
		Name:         serverName,
		Version:      version.Version,
		Instructions: instructionsText,
		Debug:        opts.debug,
		Registry:     registry,
		Logger:       logger,
	})

	switch opts.transport {
	case "stdio":
		if opts.basePath != "" && opts.basePath != "/" {
			logger.Info("ignoring base path because the stdio transport does not expose HTTP routes",
				logging.Fields{"base_path": opts.basePath})
		}
		return server.ServeStdio(dispatcher, server.WithStdioLogger(logger))
	case "streamable-http", "sse":
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return server.ServeStreamableHTTP(ctx, dispatcher, server.HTTPOptions{
			Address:        opts.address,
			BasePath:       opts.basePath,
			StreamablePath: opts.streamableHTTPPath,
			SSEPrimary:     opts.transport == "sse",
			Instructions:   instructionsText,
			Logger:         logger,
		})
	default:
		return fmt.Errorf("unsupported transport %q (expected sse, streamable-http, or stdio)", opts.transport)
	}
}

func main() {
	if err := run(); err != nil {
		logging.Default().Error("server exited with error", logging.Fields{"error": err.Error()})
		os.Exit(1)
	}
}
