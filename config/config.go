// Package config loads the YAML configuration of the allowance server.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Defaults applied by Load when a value is left empty.
const (
	DefaultListenAddr   = ":8080"
	DefaultSQLitePath   = "meals.db"
	DefaultDailyRate    = 8000
	DefaultEmployeesTTL = 10 * time.Minute
	DefaultLeavesTTL    = 5 * time.Minute
	DefaultLockCheck    = time.Hour
)

// Config is the whole application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Allowance AllowanceConfig `yaml:"allowance"`
	Cache     CacheConfig     `yaml:"cache"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ReadTimeout     time.Duration `yaml:"-"`
	WriteTimeout    time.Duration `yaml:"-"`
	IdleTimeout     time.Duration `yaml:"-"`
	ReadTimeoutRaw  string        `yaml:"read_timeout"`
	WriteTimeoutRaw string        `yaml:"write_timeout"`
	IdleTimeoutRaw  string        `yaml:"idle_timeout"`
}

// StorageConfig selects the repository implementation.
type StorageConfig struct {
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlite_path"`
}

// DatabaseConfig configures the PostgreSQL connection. Only validated when
// the postgres driver is selected.
type DatabaseConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name"`
	SSLMode            string        `yaml:"ssl_mode"`
	MaxOpenConns       int           `yaml:"max_open_conns"`
	MaxIdleConns       int           `yaml:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `yaml:"-"`
	ConnMaxIdleTime    time.Duration `yaml:"-"`
	ConnMaxLifetimeRaw string        `yaml:"conn_max_lifetime"`
	ConnMaxIdleTimeRaw string        `yaml:"conn_max_idle_time"`
}

// AllowanceConfig configures the calculation.
type AllowanceConfig struct {
	DailyRate  int64  `yaml:"daily_rate"`
	PolicyFile string `yaml:"policy_file"`
}

// CacheConfig sets the lifetimes of cached boundary reads. "0s" disables
// caching of that family.
type CacheConfig struct {
	EmployeesTTL    time.Duration `yaml:"-"`
	LeavesTTL       time.Duration `yaml:"-"`
	EmployeesTTLRaw string        `yaml:"employees_ttl"`
	LeavesTTLRaw    string        `yaml:"leaves_ttl"`
}

// SchedulerConfig configures the automatic month close.
type SchedulerConfig struct {
	AutoLockAfterDays int           `yaml:"auto_lock_after_days"` // 0 disables
	CheckInterval     time.Duration `yaml:"-"`
	CheckIntervalRaw  string        `yaml:"check_interval"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}
	return Parse(b)
}

// Parse decodes and validates YAML content.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	// An empty config always normalizes.
	_ = cfg.validateAndNormalize()
	return cfg
}

func (c *Config) validateAndNormalize() error {
	if err := c.Server.validateAndNormalize(); err != nil {
		return err
	}

	switch c.Storage.Driver {
	case "":
		c.Storage.Driver = DriverSQLite
		fallthrough
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			c.Storage.SQLitePath = DefaultSQLitePath
		}
	case DriverPostgres:
		if err := c.Database.validateAndNormalize(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("config: storage.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Storage.Driver)
	}

	if c.Allowance.DailyRate < 0 {
		return fmt.Errorf("config: allowance.daily_rate must not be negative")
	}
	if c.Allowance.DailyRate == 0 {
		c.Allowance.DailyRate = DefaultDailyRate
	}

	if err := c.Cache.validateAndNormalize(); err != nil {
		return err
	}
	return c.Scheduler.validateAndNormalize()
}

func (s *ServerConfig) validateAndNormalize() error {
	if s.ListenAddr == "" {
		s.ListenAddr = DefaultListenAddr
	}
	if len(s.AllowedOrigins) == 0 {
		s.AllowedOrigins = []string{"*"}
	}

	var err error
	if s.ReadTimeout, err = parseDurationOr(s.ReadTimeoutRaw, 15*time.Second); err != nil {
		return fmt.Errorf("config: server.read_timeout: %w", err)
	}
	if s.WriteTimeout, err = parseDurationOr(s.WriteTimeoutRaw, 30*time.Second); err != nil {
		return fmt.Errorf("config: server.write_timeout: %w", err)
	}
	if s.IdleTimeout, err = parseDurationOr(s.IdleTimeoutRaw, 60*time.Second); err != nil {
		return fmt.Errorf("config: server.idle_timeout: %w", err)
	}
	return nil
}

func (d *DatabaseConfig) validateAndNormalize() error {
	if d.Host == "" {
		return fmt.Errorf("config: database.host must be set")
	}
	if d.Port == 0 {
		return fmt.Errorf("config: database.port must be set")
	}
	if d.User == "" {
		return fmt.Errorf("config: database.user must be set")
	}
	if d.Name == "" {
		return fmt.Errorf("config: database.name must be set")
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}

	lifetime, err := parseDurationOr(d.ConnMaxLifetimeRaw, 0)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_lifetime: %w", err)
	}
	d.ConnMaxLifetime = lifetime

	idleTime, err := parseDurationOr(d.ConnMaxIdleTimeRaw, 0)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_idle_time: %w", err)
	}
	d.ConnMaxIdleTime = idleTime

	return nil
}

func (c *CacheConfig) validateAndNormalize() error {
	var err error
	if c.EmployeesTTL, err = parseDurationOr(c.EmployeesTTLRaw, DefaultEmployeesTTL); err != nil {
		return fmt.Errorf("config: cache.employees_ttl: %w", err)
	}
	if c.LeavesTTL, err = parseDurationOr(c.LeavesTTLRaw, DefaultLeavesTTL); err != nil {
		return fmt.Errorf("config: cache.leaves_ttl: %w", err)
	}
	return nil
}

func (s *SchedulerConfig) validateAndNormalize() error {
	if s.AutoLockAfterDays < 0 {
		return fmt.Errorf("config: scheduler.auto_lock_after_days must not be negative")
	}
	var err error
	if s.CheckInterval, err = parseDurationOr(s.CheckIntervalRaw, DefaultLockCheck); err != nil {
		return fmt.Errorf("config: scheduler.check_interval: %w", err)
	}
	if s.CheckInterval == 0 {
		s.CheckInterval = DefaultLockCheck
	}
	return nil
}

func parseDurationOr(raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", raw)
	}
	return d, nil
}

// DSN returns the pgx connection string. Credentials are URL-escaped.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + strconv.Itoa(d.Port),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}
