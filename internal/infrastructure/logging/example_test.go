package logging_test

import (
	"fmt"

	"github.com/sandersouza/grafanaFastMCP/internal/infrastructure/logging"
)

func Example() {
	// Create a development logger (with debug level enabled)
	logger, err := logging.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Simple logging
	logger.Debug("Debug message")
	logger.Info("Info message")
	logger.Warn("Warning message")
	logger.Error("Error message")

	// Logging with fields
	logger.Info("User logged in", logging.Fields{
		"user_id": 123,
		"email":   "user@example.com",
	})

	// Using With to create a logger with default fields
	sessionLogger := logger.With(logging.Fields{
		"session_id": "2f9a6c1e",
	})
	sessionLogger.Info("Session established")

	// Formatted logging (using sugar)
	logger.Infof("Tool %q finished in %dms", "query_prometheus", 42)
	logger.Errorf("Failed to reach Grafana: %v", fmt.Errorf("connection refused"))

	// Runtime level changes, as driven by logging/setLevel
	if err := logger.SetLevel("warn"); err != nil {
		panic(err)
	}
	logger.Info("No longer visible")
}

func Example_customConfig() {
	config := logging.Config{
		Level:       logging.DebugLevel,
		Development: true,
		OutputPaths: []string{"stderr", "logs/app.log"},
		InitialFields: logging.Fields{
			"app": "grafana-fastmcp",
		},
	}

	logger, err := logging.New(config)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Application started")
}
