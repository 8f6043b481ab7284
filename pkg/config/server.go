// Copyright 2025 RagForge
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"time"
)

// ServerConfig configures the HTTP listener.
//
// Example YAML:
//
//	server:
//	  host: 0.0.0.0
//	  port: 8000
//	  cors_enabled: true
type ServerConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`

	// Name and Version identify the server in MCP initialize responses
	// and on the info endpoint.
	Name    string `yaml:"name,omitempty"`
	Version string `yaml:"version,omitempty"`

	CORSEnabled *bool `yaml:"cors_enabled,omitempty"`

	ReadTimeout     time.Duration `yaml:"read_timeout,omitempty"`
	WriteTimeout    time.Duration `yaml:"write_timeout,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8000
	}
	if c.Name == "" {
		c.Name = "mcp-rag"
	}
	if c.Version == "" {
		c.Version = "2.0.0"
	}
	if c.CORSEnabled == nil {
		c.CORSEnabled = BoolPtr(true)
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 120 * time.Second
	}
	if c.WriteTimeout <= 0 {
		// Uploads with VLM escalation can legitimately take minutes.
		c.WriteTimeout = 10 * time.Minute
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 15 * time.Second
	}
}

func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	return nil
}

// Address returns the host:port listen address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuthConfig configures optional JWT bearer authentication.
//
// When enabled, requests to the MCP and tool endpoints must carry a bearer
// token verifiable against the JWKS endpoint.
type AuthConfig struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	JWKSURL  string `yaml:"jwks_url,omitempty"`
	Issuer   string `yaml:"issuer,omitempty"`
	Audience string `yaml:"audience,omitempty"`
}

func (c *AuthConfig) SetDefaults() {}

func (c *AuthConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.JWKSURL == "" {
		return fmt.Errorf("jwks_url is required when auth is enabled")
	}
	if c.Issuer == "" {
		return fmt.Errorf("issuer is required when auth is enabled")
	}
	return nil
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level,omitempty"`

	// Format: simple or verbose.
	Format string `yaml:"format,omitempty"`

	// File redirects logs to a file; empty means stderr.
	File string `yaml:"file,omitempty"`
}

func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "simple"
	}
}

func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level %q (valid: debug, info, warn, error)", c.Level)
	}
	switch c.Format {
	case "", "simple", "verbose":
	default:
		return fmt.Errorf("invalid log format %q (valid: simple, verbose)", c.Format)
	}
	return nil
}

// TraceSinkConfig configures best-effort delivery of tool-call trace events
// to an external aggregator. Failures never affect tool calls.
type TraceSinkConfig struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`

	// Environment tags every event (development, staging, production).
	Environment string `yaml:"environment,omitempty"`

	BufferSize    int           `yaml:"buffer_size,omitempty"`
	FlushInterval time.Duration `yaml:"flush_interval,omitempty"`
}

func (c *TraceSinkConfig) SetDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 256
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 5 * time.Second
	}
}

func (c *TraceSinkConfig) Validate() error {
	if c.Enabled && c.Endpoint == "" {
		return fmt.Errorf("endpoint is required when trace_sink is enabled")
	}
	return nil
}
