// Package config loads genetix configuration.
//
// Values come from three layers: built-in defaults, an optional YAML file and
// GENETIX_* environment variables, later layers overriding earlier ones.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is the complete genetix configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Engine    EngineConfig    `koanf:"engine"`
	Model     ModelConfig     `koanf:"model"`
	Workspace WorkspaceConfig `koanf:"workspace"`
	Store     StoreConfig     `koanf:"store"`
	Journal   JournalConfig   `koanf:"journal"`
	NATS      NATSConfig      `koanf:"nats"`
	Temporal  TemporalConfig  `koanf:"temporal"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	// RatePerMinute bounds message creation per client IP. Zero disables limiting.
	RatePerMinute int `koanf:"rate_per_minute"`
	// Dispatcher selects how runs are started: "inprocess" or "temporal".
	Dispatcher string `koanf:"dispatcher"`
}

// EngineConfig bounds agent runs.
type EngineConfig struct {
	MaxIterations int      `koanf:"max_iterations"`
	RunTimeout    Duration `koanf:"run_timeout"`
	StepTimeout   Duration `koanf:"step_timeout"`
	SandboxPort   int      `koanf:"sandbox_port"`
}

// ModelConfig selects the completion provider.
type ModelConfig struct {
	// Provider is "openai", "googleai" or "scripted".
	Provider string `koanf:"provider"`
	Name     string `koanf:"name"`
	BaseURL  string `koanf:"base_url"`
	APIKey   Secret `koanf:"api_key"`
}

// WorkspaceConfig selects the sandbox backend.
type WorkspaceConfig struct {
	// Backend is "local" or "dagger".
	Backend string `koanf:"backend"`
	Root    string `koanf:"root"`
	Image   string `koanf:"image"`
}

// StoreConfig selects message persistence.
type StoreConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `koanf:"backend"`
	Path    string `koanf:"path"`
}

// JournalConfig selects where step records are kept.
type JournalConfig struct {
	// Backend is "memory" or "nats".
	Backend string `koanf:"backend"`
}

// NATSConfig is used by the step journal and the run event emitter.
type NATSConfig struct {
	URL    string `koanf:"url"`
	Bucket string `koanf:"bucket"`
	Events bool   `koanf:"events"`
}

// TemporalConfig configures the durable workflow runner.
type TemporalConfig struct {
	HostPort  string `koanf:"host_port"`
	Namespace string `koanf:"namespace"`
	TaskQueue string `koanf:"task_queue"`
}

// TelemetryConfig toggles OpenTelemetry export.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Endpoint    string `koanf:"endpoint"`
	Protocol    string `koanf:"protocol"`
	Insecure    bool   `koanf:"insecure"`
	ServiceName string `koanf:"service_name"`
}

// LoggingConfig overrides the logger defaults.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns a configuration that runs entirely in-process.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            3001,
			ShutdownTimeout: Duration(10 * time.Second),
			RatePerMinute:   30,
			Dispatcher:      "inprocess",
		},
		Engine: EngineConfig{
			MaxIterations: 15,
			RunTimeout:    Duration(30 * time.Minute),
			StepTimeout:   Duration(10 * time.Minute),
			SandboxPort:   3000,
		},
		Model: ModelConfig{
			Provider: "openai",
			Name:     "gpt-4.1",
		},
		Workspace: WorkspaceConfig{
			Backend: "local",
			Image:   "node:21-slim",
		},
		Store: StoreConfig{
			Backend: "memory",
		},
		Journal: JournalConfig{
			Backend: "memory",
		},
		NATS: NATSConfig{
			URL:    "nats://127.0.0.1:4222",
			Bucket: "genetix-steps",
		},
		Temporal: TemporalConfig{
			HostPort:  "localhost:7233",
			Namespace: "default",
			TaskQueue: "code-agent",
		},
		Telemetry: TelemetryConfig{
			Endpoint:    "localhost:4317",
			Protocol:    "grpc",
			Insecure:    true,
			ServiceName: "genetix",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Server.RatePerMinute < 0 {
		return errors.New("rate_per_minute cannot be negative")
	}
	if !oneOf(c.Server.Dispatcher, "inprocess", "temporal") {
		return fmt.Errorf("unknown dispatcher %q", c.Server.Dispatcher)
	}

	if c.Engine.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be >= 1, got %d", c.Engine.MaxIterations)
	}
	if c.Engine.RunTimeout <= 0 || c.Engine.StepTimeout <= 0 {
		return errors.New("run and step timeouts must be positive")
	}
	if c.Engine.StepTimeout > c.Engine.RunTimeout {
		return errors.New("step_timeout cannot exceed run_timeout")
	}
	if c.Engine.SandboxPort < 1 || c.Engine.SandboxPort > 65535 {
		return fmt.Errorf("invalid sandbox port: %d", c.Engine.SandboxPort)
	}

	if !oneOf(c.Model.Provider, "openai", "googleai", "scripted") {
		return fmt.Errorf("unknown model provider %q", c.Model.Provider)
	}
	if c.Model.Provider != "scripted" && c.Model.Name == "" {
		return errors.New("model name required")
	}

	if !oneOf(c.Workspace.Backend, "local", "dagger") {
		return fmt.Errorf("unknown workspace backend %q", c.Workspace.Backend)
	}
	if c.Workspace.Backend == "dagger" && c.Workspace.Image == "" {
		return errors.New("workspace image required for dagger backend")
	}

	if !oneOf(c.Store.Backend, "memory", "sqlite") {
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Backend == "sqlite" && c.Store.Path == "" {
		return errors.New("store path required for sqlite backend")
	}

	if !oneOf(c.Journal.Backend, "memory", "nats") {
		return fmt.Errorf("unknown journal backend %q", c.Journal.Backend)
	}
	if (c.Journal.Backend == "nats" || c.NATS.Events) && c.NATS.URL == "" {
		return errors.New("nats url required")
	}
	if c.Journal.Backend == "nats" && c.NATS.Bucket == "" {
		return errors.New("nats bucket required for nats journal")
	}

	if c.Server.Dispatcher == "temporal" && c.Temporal.TaskQueue == "" {
		return errors.New("temporal task queue required")
	}

	if c.Telemetry.Enabled && c.Telemetry.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}

	return nil
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}
