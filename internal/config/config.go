package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Cache capacity bounds.
const (
	DefaultCacheCapacity = 100
	MinCacheCapacity     = 1
	MaxCacheCapacity     = 1000
)

// Config holds the docindex server configuration.
type Config struct {
	Documents DocumentsConfig `yaml:"documents"`
	Cache     CacheConfig     `yaml:"cache"`
	Store     StoreConfig     `yaml:"store"`
	IPC       IPCConfig       `yaml:"ipc"`
	Search    SearchConfig    `yaml:"search"`
	Scanner   ScannerConfig   `yaml:"scanner"`
	Admin     AdminConfig     `yaml:"admin"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DocumentsConfig holds the document folder settings.
type DocumentsConfig struct {
	BaseFolder string `yaml:"base_folder"` // document paths are relative to it
}

// CacheConfig holds document cache settings.
type CacheConfig struct {
	Capacity int `yaml:"capacity"`
}

// StoreConfig holds metadata store settings.
type StoreConfig struct {
	Path string `yaml:"path"` // default: database.bin in the working directory
}

// IPCConfig holds named pipe settings.
type IPCConfig struct {
	ServerPipe       string `yaml:"server_pipe"`
	ClientPipeFormat string `yaml:"client_pipe_format"` // must contain one %d for the client pid
}

// SearchConfig holds keyword search settings.
type SearchConfig struct {
	MaxWorkers      int `yaml:"max_workers"`
	SerialThreshold int `yaml:"serial_threshold"`
	MaxResults      int `yaml:"max_results"`
}

// ScannerConfig holds keyword matching settings.
type ScannerConfig struct {
	Mode string `yaml:"mode"` // substring (default), word
}

// AdminConfig holds the optional admin HTTP listener. Empty Addr disables it.
type AdminConfig struct {
	Addr            string `yaml:"addr"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec"`
	ShutdownSec     int    `yaml:"shutdown_timeout_sec"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error (default: determined by env)
	Output string `yaml:"output"` // file path, stdout or stderr (default: stderr)
}

// Load reads configuration. An explicit path must exist; otherwise
// config/<env>.yaml is used when present and defaults when not.
// Defaults and validation are left to the caller so command line
// arguments can be applied first.
func Load(env, path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = findConfigPath(env)
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes YAML after substituting ${VAR} and ${VAR:-default}.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ClampCapacity bounds n to [MinCacheCapacity, MaxCacheCapacity].
// Reports whether n had to be changed.
func ClampCapacity(n int) (int, bool) {
	switch {
	case n < MinCacheCapacity:
		return MinCacheCapacity, true
	case n > MaxCacheCapacity:
		return MaxCacheCapacity, true
	default:
		return n, false
	}
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Cache.Capacity == 0 {
		c.Cache.Capacity = DefaultCacheCapacity
	}
	if c.Store.Path == "" {
		c.Store.Path = "database.bin"
	}
	if c.IPC.ServerPipe == "" {
		c.IPC.ServerPipe = "/tmp/server_pipe"
	}
	if c.IPC.ClientPipeFormat == "" {
		c.IPC.ClientPipeFormat = "/tmp/client_pipe_%d"
	}
	if c.Search.MaxWorkers <= 0 {
		c.Search.MaxWorkers = 20
	}
	if c.Search.SerialThreshold <= 0 {
		c.Search.SerialThreshold = 10
	}
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = 1000
	}
	if c.Scanner.Mode == "" {
		c.Scanner.Mode = "substring"
	}
	if c.Admin.ReadTimeoutSec <= 0 {
		c.Admin.ReadTimeoutSec = 10
	}
	if c.Admin.WriteTimeoutSec <= 0 {
		c.Admin.WriteTimeoutSec = 10
	}
	if c.Admin.ShutdownSec <= 0 {
		c.Admin.ShutdownSec = 5
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.Documents.BaseFolder == "" {
		return fmt.Errorf("documents.base_folder is required")
	}
	if c.Cache.Capacity < MinCacheCapacity || c.Cache.Capacity > MaxCacheCapacity {
		return fmt.Errorf("cache.capacity must be between %d and %d, got %d",
			MinCacheCapacity, MaxCacheCapacity, c.Cache.Capacity)
	}
	if strings.Count(c.IPC.ClientPipeFormat, "%d") != 1 {
		return fmt.Errorf("ipc.client_pipe_format must contain exactly one %%d, got %q", c.IPC.ClientPipeFormat)
	}
	if c.Search.MaxWorkers > 20 {
		return fmt.Errorf("search.max_workers must be at most 20, got %d", c.Search.MaxWorkers)
	}
	if c.Search.MaxResults > 1000 {
		return fmt.Errorf("search.max_results must be at most 1000, got %d", c.Search.MaxResults)
	}
	switch c.Scanner.Mode {
	case "substring", "word":
		// ok
	default:
		return fmt.Errorf("scanner.mode must be \"substring\" or \"word\", got %q", c.Scanner.Mode)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
