package logging

import (
	"bytes"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type testingWriter struct {
	logs *bytes.Buffer
}

func (w *testingWriter) Write(p []byte) (int, error) {
	return w.logs.Write(p)
}

func (w *testingWriter) Sync() error {
	return nil
}

func newTestLogger(t *testing.T) (*Logger, *bytes.Buffer) {
	t.Helper()

	buf := &bytes.Buffer{}
	writer := &testingWriter{logs: buf}

	encoderConfig := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	atomicLevel := zap.NewAtomicLevelAt(zapcore.DebugLevel)
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(writer),
		atomicLevel,
	)

	zapLogger := zap.New(core)
	return &Logger{
		logger: zapLogger,
		sugar:  zapLogger.Sugar(),
		level:  atomicLevel,
	}, buf
}

func TestLoggerLevels(t *testing.T) {
	testLogger, buf := newTestLogger(t)
	defer func() { _ = testLogger.Sync() }()

	testLogger.Debug("debug message")
	testLogger.Info("info message")
	testLogger.Warn("warning message")
	testLogger.Error("error message")

	output := buf.String()
	for _, want := range []string{
		"debug message", "info message", "warning message", "error message",
		`"level":"debug"`, `"level":"info"`, `"level":"warn"`, `"level":"error"`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected output to contain %q", want)
		}
	}
}

func TestLoggerWithFields(t *testing.T) {
	testLogger, buf := newTestLogger(t)
	defer func() { _ = testLogger.Sync() }()

	testLogger.Info("user login", Fields{
		"user_id": 123,
		"action":  "login",
	})

	output := buf.String()
	if !strings.Contains(output, `"user_id":123`) {
		t.Error("user_id field not found in logs")
	}
	if !strings.Contains(output, `"action":"login"`) {
		t.Error("action field not found in logs")
	}
}

func TestLoggerWithFormattedMessages(t *testing.T) {
	testLogger, buf := newTestLogger(t)
	defer func() { _ = testLogger.Sync() }()

	testLogger.Infof("User %d logged in from %s", 123, "192.168.1.1")

	if !strings.Contains(buf.String(), "User 123 logged in from 192.168.1.1") {
		t.Error("Formatted message not found in logs")
	}
}

func TestSetLevel(t *testing.T) {
	testLogger, buf := newTestLogger(t)
	defer func() { _ = testLogger.Sync() }()

	if err := testLogger.SetLevel("warn"); err != nil {
		t.Fatalf("SetLevel(warn) error = %v", err)
	}
	testLogger.Info("suppressed")
	testLogger.Warn("visible")

	output := buf.String()
	if strings.Contains(output, "suppressed") {
		t.Error("Info message logged despite warn level")
	}
	if !strings.Contains(output, "visible") {
		t.Error("Warn message not logged")
	}
	if testLogger.Level() != WarnLevel {
		t.Errorf("Expected warn level, got %v", testLogger.Level())
	}
}

func TestSetLevelAliases(t *testing.T) {
	testLogger, _ := newTestLogger(t)

	tests := []struct {
		level string
		want  LogLevel
	}{
		{"information", InfoLevel},
		{"warning", WarnLevel},
		{"DEBUG", DebugLevel},
		{"error", ErrorLevel},
	}
	for _, tt := range tests {
		if err := testLogger.SetLevel(tt.level); err != nil {
			t.Errorf("SetLevel(%q) error = %v", tt.level, err)
			continue
		}
		if testLogger.Level() != tt.want {
			t.Errorf("SetLevel(%q) = %v, want %v", tt.level, testLogger.Level(), tt.want)
		}
	}
}

func TestSetLevelInvalid(t *testing.T) {
	testLogger, _ := newTestLogger(t)

	if err := testLogger.SetLevel("debug"); err != nil {
		t.Fatalf("SetLevel(debug) error = %v", err)
	}
	if err := testLogger.SetLevel("verbose"); err == nil {
		t.Error("Expected error for unrecognized level")
	}
	if testLogger.Level() != DebugLevel {
		t.Error("Invalid level must leave the current level untouched")
	}
}

func TestWithSharesLevel(t *testing.T) {
	testLogger, buf := newTestLogger(t)
	child := testLogger.With(Fields{"component": "transport"})

	if err := testLogger.SetLevel("error"); err != nil {
		t.Fatalf("SetLevel(error) error = %v", err)
	}
	child.Warn("suppressed by parent level change")
	if strings.Contains(buf.String(), "suppressed by parent level change") {
		t.Error("Child logger did not share the parent level handle")
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "Default config",
			config: DefaultConfig(),
		},
		{
			name:   "Development config",
			config: DevelopmentConfig(),
		},
		{
			name: "With initial fields",
			config: Config{
				Level:       InfoLevel,
				OutputPaths: []string{"stderr"},
				InitialFields: Fields{
					"service": "test-service",
					"version": "1.0.0",
				},
			},
		},
		{
			// Unknown levels fall back to info instead of failing startup.
			name: "Unknown level",
			config: Config{
				Level:       LogLevel("unknown"),
				OutputPaths: []string{"stderr"},
			},
		},
		{
			name: "Invalid output path",
			config: Config{
				Level:       InfoLevel,
				OutputPaths: []string{"/invalid/path/that/doesnt/exist"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("Expected non-nil logger")
			}
		})
	}
}

func TestDefaultConfigWritesToStderr(t *testing.T) {
	config := DefaultConfig()
	if config.Level != InfoLevel {
		t.Errorf("Expected InfoLevel, got %v", config.Level)
	}
	// Stdout carries the stdio transport's JSON-RPC traffic, so logs must
	// never go there.
	if len(config.OutputPaths) != 1 || config.OutputPaths[0] != "stderr" {
		t.Errorf("Expected OutputPaths to be [stderr], got %v", config.OutputPaths)
	}
}

func TestWithEmptyFields(t *testing.T) {
	testLogger, _ := newTestLogger(t)
	if testLogger.With(Fields{}) != testLogger {
		t.Error("Expected same logger instance when With is called with empty fields")
	}
}

func TestNopLogger(t *testing.T) {
	logger := NewNop()
	logger.Info("discarded")
	if err := logger.SetLevel("debug"); err != nil {
		t.Errorf("SetLevel on nop logger error = %v", err)
	}
}

func TestDefaultLogger(t *testing.T) {
	if Default() == nil {
		t.Error("Expected non-nil default logger")
	}

	previous := Default()
	defer SetDefault(previous)

	testLogger, _ := newTestLogger(t)
	SetDefault(testLogger)
	if Default() != testLogger {
		t.Error("Expected SetDefault to set the default logger")
	}
}
