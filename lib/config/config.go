// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shibukawa/configdir"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the config file when --config is not given.
const EnvironmentVariable = "TETHER_CONFIG"

// Transport modes.
const (
	ModeNative = "native"
	ModeHosted = "hosted"
)

// Transport protocols for native mode.
const (
	ProtocolHTTP1 = "http1"
	ProtocolHTTP3 = "http3"
)

// Config is the configuration shared by tether-backend and tether-call.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Endpoint  EndpointConfig  `yaml:"endpoint" json:"endpoint"`
	Paths     PathsConfig     `yaml:"paths" json:"paths"`
	Readiness ReadinessConfig `yaml:"readiness" json:"readiness"`
	Transport TransportConfig `yaml:"transport" json:"transport"`
	Backend   BackendConfig   `yaml:"backend" json:"backend"`
}

// EndpointConfig is where the front-end reaches the backend.
type EndpointConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
	Path string `yaml:"path" json:"path"`
}

// Address returns host:port.
func (e EndpointConfig) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// URL returns https://host:port/path.
func (e EndpointConfig) URL() string {
	return "https://" + e.Address() + e.Path
}

// PathsConfig configures file locations.
type PathsConfig struct {
	// DataDir holds the backend certificate and key.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// Certificate is the certificate file the front-end loads.
	// Default: ${TETHER_DATA}/certificate
	Certificate string `yaml:"certificate" json:"certificate"`

	// Pins is the front-end's certificate pin store. Empty disables
	// pinning. Default: ${TETHER_DATA}/pins.cbor
	Pins string `yaml:"pins" json:"pins"`
}

// ReadinessConfig configures how long the front-end waits for the
// backend.
type ReadinessConfig struct {
	// Attempts is the total number of readiness probes. Default: 11
	Attempts int `yaml:"attempts" json:"attempts"`

	// Interval separates consecutive probes. Default: 1s
	Interval Duration `yaml:"interval" json:"interval"`

	// Timeout bounds the wait for the out-of-band readiness line.
	// Default: 30s
	Timeout Duration `yaml:"timeout" json:"timeout"`
}

// TransportConfig configures the front-end transport.
type TransportConfig struct {
	// Mode is native or hosted. Default: native
	Mode string `yaml:"mode" json:"mode"`

	// Protocol is http1 or http3; native mode only. Default: http1
	Protocol string `yaml:"protocol" json:"protocol"`

	// Timeout bounds one request. Default: 30s
	Timeout Duration `yaml:"timeout" json:"timeout"`

	// Compression advertises zstd and lz4 response encodings.
	// Default: true
	Compression bool `yaml:"compression" json:"compression"`
}

// BackendConfig configures tether-backend.
type BackendConfig struct {
	// Listen is the TCP address to serve on. Default: localhost:53017
	Listen string `yaml:"listen" json:"listen"`

	// HTTP3 additionally serves HTTP/3 on the same UDP port.
	// Default: false
	HTTP3 bool `yaml:"http3" json:"http3"`

	// MaxClients bounds the number of key-exchanged clients kept; the
	// least recently used is evicted beyond it. Default: 64
	MaxClients int `yaml:"max_clients" json:"max_clients"`

	// Compression allows zstd and lz4 response encodings when the
	// client asks for them. Default: true
	Compression bool `yaml:"compression" json:"compression"`
}

// DefaultDataDir returns the per-user tether configuration directory.
func DefaultDataDir() string {
	folders := configdir.New("tether", "tether").QueryFolders(configdir.Global)
	if len(folders) == 0 {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "tether", "tether")
	}
	return folders[0].Path
}

// Default returns the configuration used when no file is given, and the
// base that a file is merged into.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Endpoint: EndpointConfig{
			Host: "localhost",
			Port: 53017,
			Path: "/rpc",
		},
		Paths: PathsConfig{
			DataDir:     DefaultDataDir(),
			Certificate: "${TETHER_DATA}/certificate",
			Pins:        "${TETHER_DATA}/pins.cbor",
		},
		Readiness: ReadinessConfig{
			Attempts: 11,
			Interval: Duration(time.Second),
			Timeout:  Duration(30 * time.Second),
		},
		Transport: TransportConfig{
			Mode:        ModeNative,
			Protocol:    ProtocolHTTP1,
			Timeout:     Duration(30 * time.Second),
			Compression: true,
		},
		Backend: BackendConfig{
			Listen:      "localhost:53017",
			MaxClients:  64,
			Compression: true,
		},
	}
}

// Load reads the file at path, or the file named by TETHER_CONFIG when
// path is empty. With neither, it returns the expanded defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvironmentVariable)
	}
	if path == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(path)
}

// LoadFile reads configuration from path, merged over Default.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in path
// fields. DataDir is expanded first so the others can refer to it as
// ${TETHER_DATA}.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Paths.DataDir = expandVars(c.Paths.DataDir, vars)
	vars["TETHER_DATA"] = c.Paths.DataDir

	c.Paths.Certificate = expandVars(c.Paths.Certificate, vars)
	c.Paths.Pins = expandVars(c.Paths.Pins, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}

	if c.Endpoint.Host == "" {
		errs = append(errs, errors.New("endpoint.host is required"))
	}
	if c.Endpoint.Port < 1 || c.Endpoint.Port > 65535 {
		errs = append(errs, fmt.Errorf("endpoint.port %d out of range", c.Endpoint.Port))
	}
	if !strings.HasPrefix(c.Endpoint.Path, "/") {
		errs = append(errs, fmt.Errorf("endpoint.path %q must start with /", c.Endpoint.Path))
	}

	if c.Paths.DataDir == "" {
		errs = append(errs, errors.New("paths.data_dir is required"))
	}
	if c.Paths.Certificate == "" {
		errs = append(errs, errors.New("paths.certificate is required"))
	}

	if c.Readiness.Attempts < 1 {
		errs = append(errs, fmt.Errorf("readiness.attempts must be at least 1, got %d", c.Readiness.Attempts))
	}
	if c.Readiness.Interval <= 0 {
		errs = append(errs, fmt.Errorf("readiness.interval must be positive, got %s", c.Readiness.Interval))
	}
	if c.Readiness.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("readiness.timeout must be positive, got %s", c.Readiness.Timeout))
	}

	switch c.Transport.Mode {
	case ModeNative, ModeHosted:
	default:
		errs = append(errs, fmt.Errorf("transport.mode %q must be %s or %s", c.Transport.Mode, ModeNative, ModeHosted))
	}
	switch c.Transport.Protocol {
	case ProtocolHTTP1, ProtocolHTTP3:
	default:
		errs = append(errs, fmt.Errorf("transport.protocol %q must be %s or %s", c.Transport.Protocol, ProtocolHTTP1, ProtocolHTTP3))
	}
	if c.Transport.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("transport.timeout must be positive, got %s", c.Transport.Timeout))
	}

	if _, _, err := net.SplitHostPort(c.Backend.Listen); err != nil {
		errs = append(errs, fmt.Errorf("backend.listen: %w", err))
	}
	if c.Backend.MaxClients < 1 {
		errs = append(errs, fmt.Errorf("backend.max_clients must be at least 1, got %d", c.Backend.MaxClients))
	}

	return errors.Join(errs...)
}
