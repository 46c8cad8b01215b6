// Package config loads the session-auth service configuration from YAML
// and environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SESSION_AUTH_"

const (
	// DirectoryDriver is the only database driver the directory supports
	DirectoryDriver = "sqlite"
	// DefaultPingTimeout bounds the connection check on startup
	DefaultPingTimeout = 5 * time.Second
)

// Config represents the complete service configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Access    TokenConfig     `yaml:"access"`
	Refresh   TokenConfig     `yaml:"refresh"`
	Issuer    string          `yaml:"issuer"`
	Audience  []string        `yaml:"audience"`
	Cookie    CookieConfig    `yaml:"cookie"`
	Directory DirectoryConfig `yaml:"directory"`
	Redis     RedisConfig     `yaml:"redis"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Debug           bool          `yaml:"debug"`
}

// TokenConfig configures one token class
type TokenConfig struct {
	// SecretKey signs and verifies the tokens of this class
	SecretKey string `yaml:"secret_key"`
	// Lifetime is how long an issued token stays valid
	Lifetime time.Duration `yaml:"lifetime"`
}

// CookieConfig configures the token cookies
type CookieConfig struct {
	AccessName  string `yaml:"access_name"`
	RefreshName string `yaml:"refresh_name"`
	Domain      string `yaml:"domain"`
	Path        string `yaml:"path"`
}

// DirectoryConfig configures the user directory and its persistence client
type DirectoryConfig struct {
	// DSN is the sqlite data source, empty means in memory users
	DSN     string        `yaml:"dsn"`
	Timeout time.Duration `yaml:"timeout"`
	// PasswordCost is the bcrypt cost for new users, zero uses the default
	PasswordCost int  `yaml:"password_cost"`
	HashidIDs    bool `yaml:"hashid_ids"`
	// Debug logs every query, otherwise only failed ones
	Debug       bool          `yaml:"debug"`
	PingTimeout time.Duration `yaml:"ping_timeout"`
	// OtelIdentifier enables query tracing under that database name
	OtelIdentifier string `yaml:"otel_identifier"`
}

// RedisConfig configures the refresh token revocation list
type RedisConfig struct {
	// Addr enables revocation when set
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// DefaultConfig returns a Config with sensible defaults. Signing keys
// have no default.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Access: TokenConfig{
			Lifetime: 15 * time.Minute,
		},
		Refresh: TokenConfig{
			Lifetime: 7 * 24 * time.Hour,
		},
		Issuer: "session-auth",
		Cookie: CookieConfig{
			AccessName:  "accessToken",
			RefreshName: "refreshToken",
			Path:        "/",
		},
		Directory: DirectoryConfig{
			Timeout:     5 * time.Second,
			PingTimeout: DefaultPingTimeout,
		},
		Redis: RedisConfig{
			Prefix: "auth:revoked",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Access.SecretKey == "" {
		return fmt.Errorf("access.secret_key is required")
	}
	if c.Refresh.SecretKey == "" {
		return fmt.Errorf("refresh.secret_key is required")
	}
	if c.Access.SecretKey == c.Refresh.SecretKey {
		return fmt.Errorf("access.secret_key and refresh.secret_key must differ")
	}
	if c.Access.Lifetime <= 0 {
		return fmt.Errorf("access.lifetime must be positive")
	}
	if c.Refresh.Lifetime <= c.Access.Lifetime {
		return fmt.Errorf("refresh.lifetime must be longer than access.lifetime")
	}
	if c.Directory.Timeout < 0 {
		return fmt.Errorf("directory.timeout must not be negative")
	}
	if c.Directory.PingTimeout < 0 {
		return fmt.Errorf("directory.ping_timeout must not be negative")
	}
	if c.Cookie.AccessName != "" && c.Cookie.AccessName == c.Cookie.RefreshName {
		return fmt.Errorf("cookie.access_name and cookie.refresh_name must differ")
	}
	return nil
}

// Load applies, in order, the defaults, the YAML file at path (skipped
// when empty) and the environment overrides, then validates.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides fields from SESSION_AUTH_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		return nil
	}

	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return "", false
		}
		return strings.TrimSpace(v), true
	}

	if v, ok := get("ACCESS_SECRET_KEY"); ok {
		c.Access.SecretKey = v
	}
	if v, ok := get("REFRESH_SECRET_KEY"); ok {
		c.Refresh.SecretKey = v
	}
	if v, ok := get("EXPIRATION"); ok {
		d, err := ParseLifetime(v)
		if err != nil {
			return fmt.Errorf("%sEXPIRATION: %w", EnvPrefix, err)
		}
		c.Access.Lifetime = d
	}
	if v, ok := get("REFRESH_EXPIRATION"); ok {
		d, err := ParseLifetime(v)
		if err != nil {
			return fmt.Errorf("%sREFRESH_EXPIRATION: %w", EnvPrefix, err)
		}
		c.Refresh.Lifetime = d
	}
	if v, ok := get("ISSUER"); ok {
		c.Issuer = v
	}
	if v, ok := get("AUDIENCE"); ok {
		c.Audience = splitList(v)
	}
	if v, ok := get("COOKIE_DOMAIN"); ok {
		c.Cookie.Domain = v
	}
	if v, ok := get("ADDR"); ok && v != "" {
		c.Server.Addr = v
	}
	if v, ok := get("DSN"); ok {
		c.Directory.DSN = v
	}
	if v, ok := get("DIRECTORY_TIMEOUT"); ok {
		d, err := ParseLifetime(v)
		if err != nil {
			return fmt.Errorf("%sDIRECTORY_TIMEOUT: %w", EnvPrefix, err)
		}
		c.Directory.Timeout = d
	}
	if v, ok := get("DB_DEBUG"); ok {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sDB_DEBUG: %w", EnvPrefix, err)
		}
		c.Directory.Debug = debug
	}
	if v, ok := get("REDIS_ADDR"); ok {
		c.Redis.Addr = v
	}
	if v, ok := get("REDIS_PASSWORD"); ok {
		c.Redis.Password = v
	}

	return nil
}

// ParseLifetime accepts a Go duration ("15m") or a bare number of
// milliseconds ("900000").
func ParseLifetime(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, fmt.Errorf("empty duration")
	}

	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", v, err)
	}
	return d, nil
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	out.Audience = append([]string(nil), c.Audience...)
	if out.Access.SecretKey != "" {
		out.Access.SecretKey = "********"
	}
	if out.Refresh.SecretKey != "" {
		out.Refresh.SecretKey = "********"
	}
	if out.Redis.Password != "" {
		out.Redis.Password = "********"
	}
	return &out
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

func (c *Config) GetAccessSigningKey() string { return c.Access.SecretKey }
func (c *Config) GetRefreshSigningKey() string { return c.Refresh.SecretKey }
func (c *Config) GetAccessTokenLifetime() time.Duration { return c.Access.Lifetime }
func (c *Config) GetRefreshTokenLifetime() time.Duration { return c.Refresh.Lifetime }
func (c *Config) GetIssuer() string { return c.Issuer }
func (c *Config) GetAudience() []string { return c.Audience }
func (c *Config) GetAccessCookieName() string { return c.Cookie.AccessName }
func (c *Config) GetRefreshCookieName() string { return c.Cookie.RefreshName }
func (c *Config) GetCookieDomain() string { return c.Cookie.Domain }
func (c *Config) GetCookiePath() string { return c.Cookie.Path }
func (c *Config) GetDirectoryTimeout() time.Duration { return c.Directory.Timeout }

// GetPersistence returns the persistence client settings.
func (c *Config) GetPersistence() DirectoryConfig { return c.Directory }

func (d DirectoryConfig) GetDebug() bool { return d.Debug }
func (d DirectoryConfig) GetDriver() string { return DirectoryDriver }
func (d DirectoryConfig) GetServer() string { return d.DSN }
func (d DirectoryConfig) GetOtelIdentifier() string { return d.OtelIdentifier }

// GetDatabase returns the database file named by the DSN.
func (d DirectoryConfig) GetDatabase() string {
	name := strings.TrimPrefix(d.DSN, "file:")
	if i := strings.IndexByte(name, '?'); i >= 0 {
		name = name[:i]
	}
	return name
}

// GetPingTimeout falls back to DefaultPingTimeout when unset.
func (d DirectoryConfig) GetPingTimeout() time.Duration {
	if d.PingTimeout > 0 {
		return d.PingTimeout
	}
	return DefaultPingTimeout
}
