package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Server defaults.
const (
	DefaultListenAddr = ":3001"
	DefaultSendBuffer = 256
)

// ServerConfig configures the signaling server.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`

	// AllowedOrigins restricts browser origins on the websocket endpoint.
	// Empty allows every origin.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// SendBuffer is the outbound queue length per participant.
	SendBuffer int `yaml:"send_buffer"`

	// Metrics exposes /metrics when true.
	Metrics bool `yaml:"metrics"`

	LogLevel string `yaml:"log_level"`
}

// ServerOptions carries flag overrides.
type ServerOptions struct {
	ListenAddr string
	LogLevel   string
}

// LoadServer builds the server configuration. Priority, highest first:
// flags, environment (LISTEN_ADDR, ALLOWED_ORIGINS, LOG_LEVEL), the YAML file
// at path (optional), defaults.
func LoadServer(path string, opts ServerOptions) (*ServerConfig, error) {
	cfg := &ServerConfig{
		ListenAddr: DefaultListenAddr,
		SendBuffer: DefaultSendBuffer,
		Metrics:    true,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if opts.ListenAddr != "" {
		cfg.ListenAddr = opts.ListenAddr
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}

	if cfg.ListenAddr == "" {
		return nil, errors.New("listen address is empty")
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultSendBuffer
	}
	return cfg, nil
}

// OriginAllowed reports whether a browser Origin header may connect.
func (c *ServerConfig) OriginAllowed(origin string) bool {
	if len(c.AllowedOrigins) == 0 || origin == "" {
		return true
	}
	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
