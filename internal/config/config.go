package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/simp-lee/layover/internal/route"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Console  ConsoleConfig  `koanf:"console"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Auth     AuthConfig     `koanf:"auth"`

	// Addons declared in the file. Nil when the addons key is absent, which
	// is distinct from an empty items list.
	Addons *route.Addons `koanf:"addons"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string     `koanf:"host"`
	Port           int        `koanf:"port"`
	Mode           string     `koanf:"mode"`
	Timeout        string     `koanf:"timeout"`
	TrustRequestID bool       `koanf:"trust_request_id"`
	CORS           CORSConfig `koanf:"cors"`
}

// CORSConfig holds CORS middleware settings for the JSON API.
type CORSConfig struct {
	AllowOrigins     []string `koanf:"allow_origins"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           string   `koanf:"max_age"`
}

// DatabaseConfig holds database connection settings for the addon registry.
type DatabaseConfig struct {
	Driver      string         `koanf:"driver"`
	AutoMigrate bool           `koanf:"auto_migrate"`
	SQLite      SQLiteConfig   `koanf:"sqlite"`
	Postgres    PostgresConfig `koanf:"postgres"`
	Pool        PoolConfig     `koanf:"pool"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	DBName   string `koanf:"dbname"`
	SSLMode  string `koanf:"sslmode"`
}

// PoolConfig holds database connection pool settings.
type PoolConfig struct {
	MaxIdleConns    int    `koanf:"max_idle_conns"`
	MaxOpenConns    int    `koanf:"max_open_conns"`
	ConnMaxLifetime string `koanf:"conn_max_lifetime"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level           string `koanf:"level"`
	Format          string `koanf:"format"`
	Color           *bool  `koanf:"color"`
	FilePath        string `koanf:"file_path"`
	MaxSizeMB       int    `koanf:"max_size_mb"`
	RetentionDays   int    `koanf:"retention_days"`
	MaxBackups      int    `koanf:"max_backups"`
	CompressRotated *bool  `koanf:"compress_rotated"`
}

// ConsoleConfig holds settings for the console pages.
type ConsoleConfig struct {
	Title string `koanf:"title"`

	// AddonDir is served under /cp/layover/ so addon section templates can
	// be loaded. Empty disables addon template serving.
	AddonDir string `koanf:"addon_dir"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Namespace string `koanf:"namespace"`
	Path      string `koanf:"path"`
}

// AuthConfig guards addon registry and store writes with bearer tokens
// issued to one administrator.
type AuthConfig struct {
	Enabled     bool        `koanf:"enabled"`
	JWTSecret   string      `koanf:"jwt_secret"`
	TokenExpiry string      `koanf:"token_expiry"`
	Admin       AdminConfig `koanf:"admin"`
}

// AdminConfig holds the administrator's credentials. PasswordHash is a
// bcrypt hash, never the password itself.
type AdminConfig struct {
	Username     string `koanf:"username"`
	PasswordHash string `koanf:"password_hash"`
}

const (
	defaultTitle            = "Layover"
	defaultMetricsNamespace = "layover"
	defaultMetricsPath      = "/metrics"
	defaultTimeout          = 60 * time.Second
)

var metricNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Load reads configuration from a YAML file and overlays environment variables.
// Environment variables use the prefix "APP__" and double-underscore as the
// hierarchy separator; single underscores stay part of the key name.
// For example, APP__SERVER__PORT=9090 overrides server.port and
// APP__CONSOLE__ADDON_DIR=/srv/addons overrides console.addon_dir.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}

	if err := k.Load(env.Provider("APP__", ".", func(s string) string {
		key := strings.TrimPrefix(s, "APP__")
		return strings.ReplaceAll(strings.ToLower(key), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks supported values and cross-field constraints, normalizing
// whitespace and filling defaults as it goes.
func (c *Config) Validate() error {
	for _, check := range []func() error{
		c.validateServer,
		c.validateDatabase,
		c.validateLog,
		c.validateConsole,
		c.validateMetrics,
		c.validateAddons,
		c.validateAuth,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	mode := strings.TrimSpace(c.Server.Mode)
	switch mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		c.Server.Mode = mode
	default:
		return fmt.Errorf("invalid server.mode %q: must be one of %q, %q, %q", c.Server.Mode, gin.DebugMode, gin.ReleaseMode, gin.TestMode)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", c.Server.Port)
	}

	host := strings.TrimSpace(c.Server.Host)
	if host == "" {
		return fmt.Errorf("server.host is required")
	}
	c.Server.Host = host

	c.Server.Timeout = strings.TrimSpace(c.Server.Timeout)
	if err := checkDuration("server.timeout", c.Server.Timeout); err != nil {
		return err
	}

	c.Server.CORS.MaxAge = strings.TrimSpace(c.Server.CORS.MaxAge)
	if err := checkDuration("server.cors.max_age", c.Server.CORS.MaxAge); err != nil {
		return err
	}
	for i, o := range c.Server.CORS.AllowOrigins {
		c.Server.CORS.AllowOrigins[i] = strings.TrimSpace(o)
		if c.Server.CORS.AllowOrigins[i] == "" {
			return fmt.Errorf("server.cors.allow_origins[%d] cannot be empty", i)
		}
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "sqlite":
		p := strings.TrimSpace(c.Database.SQLite.Path)
		if p == "" {
			return fmt.Errorf("database.sqlite.path is required when driver is sqlite")
		}
		c.Database.SQLite.Path = p
	case "postgres":
		if err := c.validatePostgres(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid database.driver %q: must be one of %q, %q", c.Database.Driver, "sqlite", "postgres")
	}

	c.Database.Pool.ConnMaxLifetime = strings.TrimSpace(c.Database.Pool.ConnMaxLifetime)
	return checkDuration("database.pool.conn_max_lifetime", c.Database.Pool.ConnMaxLifetime)
}

func (c *Config) validatePostgres() error {
	pg := &c.Database.Postgres
	pg.Host = strings.TrimSpace(pg.Host)
	pg.User = strings.TrimSpace(pg.User)
	pg.DBName = strings.TrimSpace(pg.DBName)
	pg.SSLMode = strings.TrimSpace(pg.SSLMode)

	switch {
	case pg.Host == "":
		return fmt.Errorf("database.postgres.host is required when driver is postgres")
	case pg.Port < 1 || pg.Port > 65535:
		return fmt.Errorf("invalid database.postgres.port %d: must be between 1 and 65535", pg.Port)
	case pg.User == "":
		return fmt.Errorf("database.postgres.user is required when driver is postgres")
	case pg.DBName == "":
		return fmt.Errorf("database.postgres.dbname is required when driver is postgres")
	}

	switch pg.SSLMode {
	case "require", "verify-ca", "verify-full":
	case "disable", "allow", "prefer":
		if c.Server.Mode == gin.ReleaseMode {
			return fmt.Errorf("invalid database.postgres.sslmode %q for server.mode %q: must be one of %q, %q, %q", pg.SSLMode, gin.ReleaseMode, "require", "verify-ca", "verify-full")
		}
	default:
		return fmt.Errorf("invalid database.postgres.sslmode %q: must be one of %q, %q, %q, %q, %q, %q", pg.SSLMode, "disable", "allow", "prefer", "require", "verify-ca", "verify-full")
	}
	return nil
}

func (c *Config) validateLog() error {
	level := strings.ToLower(strings.TrimSpace(c.Log.Level))
	if _, ok := logLevels[level]; !ok {
		return fmt.Errorf("invalid log.level %q: must be one of debug, info, warn, error", c.Log.Level)
	}
	format := strings.ToLower(strings.TrimSpace(c.Log.Format))
	if _, ok := logFormats[format]; !ok {
		return fmt.Errorf("invalid log.format %q: must be text or json", c.Log.Format)
	}
	c.Log.Level, c.Log.Format = level, format
	return nil
}

func (c *Config) validateConsole() error {
	c.Console.Title = strings.TrimSpace(c.Console.Title)
	if c.Console.Title == "" {
		c.Console.Title = defaultTitle
	}

	c.Console.AddonDir = strings.TrimSpace(c.Console.AddonDir)
	if dir := c.Console.AddonDir; dir != "" {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("invalid console.addon_dir %q: %w", dir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("invalid console.addon_dir %q: not a directory", dir)
		}
	}
	return nil
}

func (c *Config) validateMetrics() error {
	c.Metrics.Namespace = strings.TrimSpace(c.Metrics.Namespace)
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = defaultMetricsNamespace
	}
	if !metricNamePattern.MatchString(c.Metrics.Namespace) {
		return fmt.Errorf("invalid metrics.namespace %q: must match %s", c.Metrics.Namespace, metricNamePattern)
	}

	c.Metrics.Path = strings.TrimSpace(c.Metrics.Path)
	if c.Metrics.Path == "" {
		c.Metrics.Path = defaultMetricsPath
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") || strings.HasPrefix(c.Metrics.Path, "/api/") {
		return fmt.Errorf("invalid metrics.path %q: must start with / and lie outside /api/", c.Metrics.Path)
	}
	return nil
}

// validateAddons only rejects duplicate names. Section contents are checked
// when the route table is mounted.
func (c *Config) validateAddons() error {
	if c.Addons == nil {
		return nil
	}
	seen := make(map[string]int, len(c.Addons.Items))
	for i, d := range c.Addons.Items {
		if d.Name == "" {
			continue
		}
		if j, ok := seen[d.Name]; ok {
			return fmt.Errorf("addons.items[%d]: name %q already used by addons.items[%d]", i, d.Name, j)
		}
		seen[d.Name] = i
	}
	return nil
}

func (c *Config) validateAuth() error {
	if !c.Auth.Enabled {
		return nil
	}

	secret := strings.TrimSpace(c.Auth.JWTSecret)
	if secret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth is enabled")
	}
	if len(secret) < 32 {
		return fmt.Errorf("invalid auth.jwt_secret: must be at least 32 characters")
	}
	if c.Server.Mode == gin.ReleaseMode && secretClasses(secret) < 3 {
		return fmt.Errorf("auth.jwt_secret must include at least 3 character classes (lowercase, uppercase, digit, symbol) in release mode")
	}
	c.Auth.JWTSecret = secret

	c.Auth.TokenExpiry = strings.TrimSpace(c.Auth.TokenExpiry)
	if c.Auth.TokenExpiry == "" {
		return fmt.Errorf("auth.token_expiry is required when auth is enabled")
	}
	if err := checkDuration("auth.token_expiry", c.Auth.TokenExpiry); err != nil {
		return err
	}

	admin := &c.Auth.Admin
	admin.Username = strings.TrimSpace(admin.Username)
	admin.PasswordHash = strings.TrimSpace(admin.PasswordHash)
	if admin.Username == "" {
		return fmt.Errorf("auth.admin.username is required when auth is enabled")
	}
	if _, err := bcrypt.Cost([]byte(admin.PasswordHash)); err != nil {
		return fmt.Errorf("invalid auth.admin.password_hash: must be a bcrypt hash: %w", err)
	}
	return nil
}

// secretClasses counts the character classes (lowercase, uppercase, digit,
// other) present in secret.
func secretClasses(secret string) int {
	var lower, upper, digit, other int
	for _, r := range secret {
		switch {
		case unicode.IsLower(r):
			lower = 1
		case unicode.IsUpper(r):
			upper = 1
		case unicode.IsDigit(r):
			digit = 1
		default:
			other = 1
		}
	}
	return lower + upper + digit + other
}

// TokenTTL returns auth.token_expiry as a duration, or 0 when unset.
func (a AuthConfig) TokenTTL() time.Duration {
	d, _ := time.ParseDuration(a.TokenExpiry)
	return d
}

// RequestTimeout returns server.timeout, or 60s when unset.
func (s ServerConfig) RequestTimeout() time.Duration {
	if d, err := time.ParseDuration(s.Timeout); err == nil && d > 0 {
		return d
	}
	return defaultTimeout
}

// checkDuration accepts an empty value or a positive Go duration.
func checkDuration(key, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if d <= 0 {
		return fmt.Errorf("invalid %s %q: must be greater than 0", key, value)
	}
	return nil
}
