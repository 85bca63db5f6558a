package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix        = "RECEIPTD"
	fallbackWorkerID = "receiptd-worker"
)

type Config struct {
	Server   ServerConfig    `yaml:"server" toml:"server"`
	Database DatabaseConfig  `yaml:"database" toml:"database"`
	Worker   WorkerConfig    `yaml:"worker" toml:"worker"`
	Printer  PrinterConfig   `yaml:"printer" toml:"printer"`
	Logging  LoggingConfig   `yaml:"logging" toml:"logging"`
	Webhooks []WebhookConfig `yaml:"webhooks" toml:"webhooks"`
}

type ServerConfig struct {
	Port           int      `yaml:"port" toml:"port"`
	ReadTimeout    Duration `yaml:"read_timeout" toml:"read_timeout"`
	WriteTimeout   Duration `yaml:"write_timeout" toml:"write_timeout"`
	CORSOrigins    []string `yaml:"cors_origins" toml:"cors_origins"`
	RecentLimit    int      `yaml:"recent_limit" toml:"recent_limit"`
	MaxRecentLimit int      `yaml:"max_recent_limit" toml:"max_recent_limit"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" toml:"driver"`
	Path   string `yaml:"path" toml:"path"`
	DSN    string `yaml:"dsn" toml:"dsn"`
}

type WorkerConfig struct {
	APIBase        string   `yaml:"api_base" toml:"api_base"`
	WorkerID       string   `yaml:"worker_id" toml:"worker_id"`
	VendorID       string   `yaml:"vendor_id" toml:"vendor_id"`
	ProductID      string   `yaml:"product_id" toml:"product_id"`
	PollInterval   Duration `yaml:"poll_interval" toml:"poll_interval"`
	ReconnectDelay Duration `yaml:"reconnect_delay" toml:"reconnect_delay"`
	RequestTimeout Duration `yaml:"request_timeout" toml:"request_timeout"`
	ItemPause      Duration `yaml:"item_pause" toml:"item_pause"`
	ClaimLease     Duration `yaml:"claim_lease" toml:"claim_lease"`
	LockPath       string   `yaml:"lock_path" toml:"lock_path"`
	Hotplug        bool     `yaml:"hotplug" toml:"hotplug"`
}

type PrinterConfig struct {
	DevicePath string   `yaml:"device_path" toml:"device_path"`
	SysfsRoot  string   `yaml:"sysfs_root" toml:"sysfs_root"`
	DevRoot    string   `yaml:"dev_root" toml:"dev_root"`
	LineWidth  int      `yaml:"line_width" toml:"line_width"`
	Brand      []string `yaml:"brand" toml:"brand"`
	Recipient  string   `yaml:"recipient" toml:"recipient"`
	Footer     string   `yaml:"footer" toml:"footer"`
	UTCOffset  Duration `yaml:"utc_offset" toml:"utc_offset"`
	ZoneLabel  string   `yaml:"zone_label" toml:"zone_label"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

type WebhookConfig struct {
	Name   string   `yaml:"name" toml:"name"`
	URL    string   `yaml:"url" toml:"url"`
	Secret string   `yaml:"secret" toml:"secret"`
	Events []string `yaml:"events" toml:"events"`
}

// Duration is a time.Duration that decodes from strings such as "30s" in
// YAML, TOML and environment values.
type Duration time.Duration

func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(v)
	return nil
}

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			ReadTimeout:    Duration(30 * time.Second),
			WriteTimeout:   Duration(30 * time.Second),
			CORSOrigins:    []string{"*"},
			RecentLimit:    10,
			MaxRecentLimit: 50,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "./data/receiptd.db",
		},
		Worker: WorkerConfig{
			PollInterval:   Duration(5 * time.Second),
			ReconnectDelay: Duration(30 * time.Second),
			RequestTimeout: Duration(10 * time.Second),
			ItemPause:      Duration(2 * time.Second),
			ClaimLease:     Duration(2 * time.Minute),
			LockPath:       "./data/receiptd-worker.lock",
			Hotplug:        true,
		},
		Printer: PrinterConfig{
			SysfsRoot: "/sys",
			DevRoot:   "/dev",
			LineWidth: 48,
			Brand:     []string{"RECEIPT", "ME"},
			Recipient: "Andy, Annie, Newt & Harold",
			Footer:    "receiptme.xyz",
			UTCOffset: Duration(-7 * time.Hour),
			ZoneLabel: "MST",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the config file at path (YAML, or TOML when the extension is
// .toml) on top of the defaults and then applies RECEIPTD_* environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := decode(path, data, cfg); err != nil {
				return nil, err
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if cfg.Worker.WorkerID == "" {
		cfg.Worker.WorkerID = defaultWorkerID()
	}

	return cfg, nil
}

// defaultWorkerID must survive restarts: a claim held under an old id would
// otherwise hide the oldest message until its lease expires.
func defaultWorkerID() string {
	host, err := os.Hostname()
	if err != nil || strings.TrimSpace(host) == "" {
		return fallbackWorkerID
	}
	return host
}

func decode(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

type envOverrides struct {
	Port           string   `envconfig:"PORT"`
	CORSOrigins    []string `envconfig:"CORS_ORIGINS"`
	DBDriver       string   `envconfig:"DB_DRIVER"`
	DBPath         string   `envconfig:"DB_PATH"`
	DBDSN          string   `envconfig:"DB_DSN"`
	APIBase        string   `envconfig:"API_BASE"`
	WorkerID       string   `envconfig:"WORKER_ID"`
	VendorID       string   `envconfig:"VENDOR_ID"`
	ProductID      string   `envconfig:"PRODUCT_ID"`
	PollInterval   string   `envconfig:"POLL_INTERVAL"`
	ReconnectDelay string   `envconfig:"RECONNECT_DELAY"`
	RequestTimeout string   `envconfig:"REQUEST_TIMEOUT"`
	LockPath       string   `envconfig:"LOCK_PATH"`
	DevicePath     string   `envconfig:"DEVICE_PATH"`
	LogLevel       string   `envconfig:"LOG_LEVEL"`
	LogFormat      string   `envconfig:"LOG_FORMAT"`
}

func applyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}

	if env.Port != "" {
		port, err := strconv.Atoi(env.Port)
		if err != nil {
			return fmt.Errorf("invalid %s_PORT: %w", EnvPrefix, err)
		}
		cfg.Server.Port = port
	}
	if len(env.CORSOrigins) > 0 {
		cfg.Server.CORSOrigins = env.CORSOrigins
	}

	setString(&cfg.Database.Driver, env.DBDriver)
	setString(&cfg.Database.Path, env.DBPath)
	setString(&cfg.Database.DSN, env.DBDSN)
	setString(&cfg.Worker.APIBase, env.APIBase)
	setString(&cfg.Worker.WorkerID, env.WorkerID)
	setString(&cfg.Worker.VendorID, env.VendorID)
	setString(&cfg.Worker.ProductID, env.ProductID)
	setString(&cfg.Worker.LockPath, env.LockPath)
	setString(&cfg.Printer.DevicePath, env.DevicePath)
	setString(&cfg.Logging.Level, env.LogLevel)
	setString(&cfg.Logging.Format, env.LogFormat)

	durations := []struct {
		name  string
		value string
		dst   *Duration
	}{
		{"POLL_INTERVAL", env.PollInterval, &cfg.Worker.PollInterval},
		{"RECONNECT_DELAY", env.ReconnectDelay, &cfg.Worker.ReconnectDelay},
		{"REQUEST_TIMEOUT", env.RequestTimeout, &cfg.Worker.RequestTimeout},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		if err := d.dst.UnmarshalText([]byte(d.value)); err != nil {
			return fmt.Errorf("invalid %s_%s: %w", EnvPrefix, d.name, err)
		}
	}

	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be non-negative")
	}

	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server write timeout must be non-negative")
	}

	if c.Server.RecentLimit < 1 {
		return fmt.Errorf("recent limit must be at least 1")
	}

	if c.Server.MaxRecentLimit < c.Server.RecentLimit {
		return fmt.Errorf("max recent limit must be at least the recent limit (%d)", c.Server.RecentLimit)
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid database driver: %s (valid: sqlite, postgres)", c.Database.Driver)
	}

	if c.Worker.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}

	if c.Worker.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect delay must be positive")
	}

	if c.Worker.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}

	if c.Worker.ItemPause < 0 {
		return fmt.Errorf("item pause must be non-negative")
	}

	if c.Worker.ClaimLease < 0 {
		return fmt.Errorf("claim lease must be non-negative")
	}

	if c.Printer.LineWidth < 16 {
		return fmt.Errorf("printer line width must be at least 16, got %d", c.Printer.LineWidth)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json":    true,
		"text":    true,
		"console": true,
	}

	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (valid: json, text, console)", c.Logging.Format)
	}

	for i, w := range c.Webhooks {
		if w.URL == "" {
			return fmt.Errorf("webhook %d: url is required", i)
		}
		if len(w.Events) == 0 {
			return fmt.Errorf("webhook %d: at least one event is required", i)
		}
	}

	return nil
}

// ValidateWorker checks the settings the worker cannot start without. A
// missing printer vendor/product pair is a configuration error, never a
// runtime retry condition.
func (c *Config) ValidateWorker() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if strings.TrimSpace(c.Worker.APIBase) == "" {
		return fmt.Errorf("worker api_base is required")
	}

	if _, _, err := c.Worker.USBIDs(); err != nil {
		return err
	}

	return nil
}

// USBIDs parses the configured hex vendor and product ids.
func (w WorkerConfig) USBIDs() (vendor, product uint16, err error) {
	vendor, err = parseUSBID("vendor_id", w.VendorID)
	if err != nil {
		return 0, 0, err
	}
	product, err = parseUSBID("product_id", w.ProductID)
	if err != nil {
		return 0, 0, err
	}
	return vendor, product, nil
}

func parseUSBID(name, raw string) (uint16, error) {
	s := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(raw)), "0x")
	if s == "" {
		return 0, fmt.Errorf("printer %s is not configured (run lsusb to find it)", name)
	}
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("printer %s %q is not a 4-digit hex value: %w", name, raw, err)
	}
	if v == 0 {
		return 0, fmt.Errorf("printer %s is not configured (run lsusb to find it)", name)
	}
	return uint16(v), nil
}
