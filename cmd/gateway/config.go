// In file: cmd/gateway/config.go
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dileep-u-k/swarm-bridge/internal/bridge"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig holds all configuration for the gateway, loaded from the
// environment and an optional config.yaml.
type AppConfig struct {
	// VegaMCPPath is the tool server's installation root. The server entry
	// point and working directory are derived from it.
	VegaMCPPath string
	Port        string
	MountPrefix string
	Bridge      BridgeSettings
	HealthCheck bool
}

// BridgeSettings are the yaml-tunable knobs for reaching the tool server.
// Zero values mean "use the defaults derived from VegaMCPPath".
type BridgeSettings struct {
	Command        string `yaml:"command"`
	Entry          string `yaml:"entry"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type fileConfig struct {
	MountPrefix string         `yaml:"mount_prefix"`
	Bridge      BridgeSettings `yaml:"bridge"`
}

// LoadConfig loads configuration from a .env file, environment variables,
// and an optional config.yaml.
func LoadConfig() (*AppConfig, error) {
	// Only attempt to load a .env file in local development. In release
	// deployments configuration is provided directly as environment
	// variables.
	if os.Getenv("GIN_MODE") != "release" {
		if err := godotenv.Load(); err != nil {
			log.Println("WARNING: No .env file found for local development.")
		}
	}

	cfg := &AppConfig{
		VegaMCPPath: os.Getenv("VEGAMCP_PATH"),
		Port:        os.Getenv("PORT"),
		MountPrefix: "/api/v1/swarm",
		HealthCheck: os.Getenv("HEALTH_CHECK") != "off",
	}
	if cfg.VegaMCPPath == "" {
		return nil, fmt.Errorf("VEGAMCP_PATH environment variable is not set")
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	// config.yaml is optional; it only overrides the defaults above.
	raw, err := os.ReadFile("config.yaml")
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
		return cfg, nil
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config.yaml: %w", err)
	}
	if fc.MountPrefix != "" {
		cfg.MountPrefix = fc.MountPrefix
	}
	cfg.Bridge = fc.Bridge
	return cfg, nil
}

// BridgeConfig translates the loaded settings into the bridge's injected
// configuration.
func (c *AppConfig) BridgeConfig() bridge.Config {
	bc := bridge.Config{Command: c.Bridge.Command}
	if c.Bridge.Entry != "" {
		bc.Args = []string{c.Bridge.Entry}
	}
	if c.Bridge.TimeoutSeconds > 0 {
		bc.Timeout = time.Duration(c.Bridge.TimeoutSeconds) * time.Second
	}
	return bc
}
