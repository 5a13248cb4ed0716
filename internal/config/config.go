// Package config provides configuration management for the Poseidon CLI.
// It reads the application credentials and client settings from the config
// file, an optional .env file and POSEIDON_* environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultAPIPath is the default Poken REST endpoint
	DefaultAPIPath = "https://api.poken.com/rest081/"

	// DefaultFormat is the only response format the client decodes
	DefaultFormat = "json"

	// DefaultUserAgent identifies the client release
	DefaultUserAgent = "Poseidon/2.0"

	// DefaultTimeoutSeconds bounds every request
	DefaultTimeoutSeconds = 120

	// ConfigDirName is the name of the config directory
	ConfigDirName = ".poseidon"

	// ConfigFileName is the name of the config file
	ConfigFileName = "config.json"

	// SessionFileName holds the user session
	SessionFileName = "session.json"

	// CacheFileName holds the shared cache of the file backend
	CacheFileName = "cache.json"

	// EnvPrefix prefixes every environment override
	EnvPrefix = "POSEIDON_"
)

// Cache backends for the shared token cache
const (
	CacheFile      = "file"
	CacheMemory    = "memory"
	CacheRedis     = "redis"
	CacheMemcached = "memcached"
)

// Config represents the CLI configuration
type Config struct {
	// ClientID and ClientSecret are the application credentials
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`

	// APIPath is the REST base URL
	APIPath string `json:"api_path,omitempty"`

	Format         string `json:"format,omitempty"`
	UserAgent      string `json:"user_agent,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`

	// Cache selects the shared token cache backend
	Cache            string   `json:"cache,omitempty"`
	RedisURL         string   `json:"redis_url,omitempty"`
	MemcachedServers []string `json:"memcached_servers,omitempty"`

	SessionFile string `json:"session_file,omitempty"`
	CacheFile   string `json:"cache_file,omitempty"`
}

// Timeout returns the request timeout
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Validate checks that the client can be built from c
func (c *Config) Validate() error {
	if c.ClientID == "" || c.ClientSecret == "" {
		return fmt.Errorf("client credentials are not configured. Set %sCLIENT_ID and %sCLIENT_SECRET or run 'poseidon configure'", EnvPrefix, EnvPrefix)
	}
	switch c.Cache {
	case CacheFile, CacheMemory:
	case CacheRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("redis cache requires redis_url")
		}
	case CacheMemcached:
		if len(c.MemcachedServers) == 0 {
			return fmt.Errorf("memcached cache requires memcached_servers")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache)
	}
	return nil
}

// Manager handles configuration file operations
type Manager struct {
	configPath string
	getenv     func(string) string
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(homeDir, ConfigDirName, ConfigFileName)
	return &Manager{configPath: configPath, getenv: os.Getenv}, nil
}

// NewManagerWithPath creates a new configuration manager with a custom path
// This is useful for testing
func NewManagerWithPath(configPath string) *Manager {
	return &Manager{configPath: configPath, getenv: os.Getenv}
}

// WithGetenv replaces the environment lookup, for tests.
func (m *Manager) WithGetenv(getenv func(string) string) *Manager {
	m.getenv = getenv
	return m
}

// LoadDotEnv loads path into the process environment when it exists.
// Variables already set are not overridden.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load reads the configuration from disk and applies environment overrides
// and defaults. A missing file is not an error.
func (m *Manager) Load() (*Config, error) {
	config, err := m.read()
	if err != nil {
		return nil, err
	}
	if err := m.applyEnv(config); err != nil {
		return nil, err
	}
	m.applyDefaults(config)
	return config, nil
}

func (m *Manager) read() (*Config, error) {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", m.configPath, err)
	}
	return &config, nil
}

// GetEnv returns the POSEIDON_ prefixed variable or defaultValue
func (m *Manager) GetEnv(name, defaultValue string) string {
	value := m.getenv(EnvPrefix + name)
	if value == "" {
		return defaultValue
	}
	return value
}

func (m *Manager) applyEnv(c *Config) error {
	c.ClientID = m.GetEnv("CLIENT_ID", c.ClientID)
	c.ClientSecret = m.GetEnv("CLIENT_SECRET", c.ClientSecret)
	c.APIPath = m.GetEnv("API_PATH", c.APIPath)
	c.Format = m.GetEnv("FORMAT", c.Format)
	c.UserAgent = m.GetEnv("USER_AGENT", c.UserAgent)
	c.Cache = m.GetEnv("CACHE", c.Cache)
	c.RedisURL = m.GetEnv("REDIS_URL", c.RedisURL)
	c.SessionFile = m.GetEnv("SESSION_FILE", c.SessionFile)
	c.CacheFile = m.GetEnv("CACHE_FILE", c.CacheFile)

	if servers := m.GetEnv("MEMCACHED_SERVERS", ""); servers != "" {
		c.MemcachedServers = strings.Split(servers, ",")
	}
	if timeout := m.GetEnv("TIMEOUT", ""); timeout != "" {
		seconds, err := strconv.Atoi(timeout)
		if err != nil {
			return fmt.Errorf("invalid %sTIMEOUT %q: %w", EnvPrefix, timeout, err)
		}
		c.TimeoutSeconds = seconds
	}
	return nil
}

func (m *Manager) applyDefaults(c *Config) {
	if c.APIPath == "" {
		c.APIPath = DefaultAPIPath
	}
	if c.Format == "" {
		c.Format = DefaultFormat
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.Cache == "" {
		c.Cache = CacheFile
	}
	if c.SessionFile == "" {
		c.SessionFile = filepath.Join(m.Dir(), SessionFileName)
	}
	if c.CacheFile == "" {
		c.CacheFile = filepath.Join(m.Dir(), CacheFileName)
	}
}

// Save writes the configuration to disk. Environment overrides are not
// persisted since only the file content is written.
func (m *Manager) Save(config *Config) error {
	// Ensure the config directory exists
	if err := os.MkdirAll(m.Dir(), 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	// Write with restricted permissions (owner read/write only)
	return os.WriteFile(m.configPath, data, 0600)
}

// SaveClientCredentials stores the application credentials in the config file
func (m *Manager) SaveClientCredentials(clientID, clientSecret string) error {
	config, err := m.read()
	if err != nil {
		return err
	}

	config.ClientID = clientID
	config.ClientSecret = clientSecret

	return m.Save(config)
}

// Delete removes the config file entirely
func (m *Manager) Delete() error {
	err := os.Remove(m.configPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// ConfigPath returns the path to the config file
func (m *Manager) ConfigPath() string {
	return m.configPath
}

// Dir returns the config directory
func (m *Manager) Dir() string {
	return filepath.Dir(m.configPath)
}
