package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Search    SearchConfig    `yaml:"search"`
	Source    SourceConfig    `yaml:"source"`
	Cache     CacheConfig     `yaml:"cache"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Listen     string `yaml:"listen"`
	GRPCListen string `yaml:"grpc_listen"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

type SearchConfig struct {
	Threshold          int           `yaml:"threshold"`
	LengthPolicy       string        `yaml:"length_policy"`
	IncludeVendorCodes bool          `yaml:"include_vendor_codes"`
	Debounce           time.Duration `yaml:"debounce"`
	HistoryLimit       int           `yaml:"history_limit"`
	FavoritesLimit     int           `yaml:"favorites_limit"`
	Locale             string        `yaml:"locale"`
}

type SourceConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
	VendorLimit   int           `yaml:"vendor_limit"`
	Menus         string        `yaml:"menus"`
	MenusDir      string        `yaml:"menus_dir"`
	WatchMenus    bool          `yaml:"watch_menus"`
	SnappfoodURL  string        `yaml:"snappfood_url"`
	TapsifoodURL  string        `yaml:"tapsifood_url"`
	VendorTTL     time.Duration `yaml:"vendor_ttl"`
	VendorListTTL time.Duration `yaml:"vendor_list_ttl"`
}

type CacheConfig struct {
	Disabled   bool `yaml:"disabled"`
	MaxEntries int  `yaml:"max_entries"`
}

type SessionsConfig struct {
	MaxSessions int           `yaml:"max_sessions"`
	IdleTTL     time.Duration `yaml:"idle_ttl"`
}

type SchedulerConfig struct {
	CacheCleanup  time.Duration `yaml:"cache_cleanup"`
	VendorRefresh time.Duration `yaml:"vendor_refresh"`
	SessionSweep  time.Duration `yaml:"session_sweep"`
}

type HeartbeatConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

const (
	LengthPenalty = "penalty"
	LengthBonus   = "bonus"

	StoreSQLite = "sqlite"
	StoreFile   = "file"
	StoreMemory = "memory"

	MenusFile = "file"
	MenusHTTP = "http"
)

func Load(path string) (*Config, error) {
	path = expandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes YAML config bytes and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.normalize()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Default returns a config with every default applied, as if loaded from an
// empty file.
func Default() *Config {
	var cfg Config
	cfg.normalize()
	return &cfg
}

func (c *Config) normalize() {
	c.Store.Path = expandClean(c.Store.Path)
	c.Source.MenusDir = expandClean(c.Source.MenusDir)
	c.Logging.File = expandClean(c.Logging.File)

	if c.Server.Listen == "" {
		c.Server.Listen = "127.0.0.1:19190"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = StoreSQLite
	}
	if c.Store.Path == "" && c.Store.Driver != StoreMemory {
		c.Store.Path = defaultStorePath(c.Store.Driver)
	}
	if c.Search.Threshold == 0 {
		c.Search.Threshold = 10
	}
	if c.Search.LengthPolicy == "" {
		c.Search.LengthPolicy = LengthPenalty
	}
	if c.Search.Debounce == 0 {
		c.Search.Debounce = 150 * time.Millisecond
	}
	if c.Search.HistoryLimit == 0 {
		c.Search.HistoryLimit = 20
	}
	if c.Search.FavoritesLimit == 0 {
		c.Search.FavoritesLimit = 50
	}
	if c.Search.Locale == "" {
		c.Search.Locale = "fa"
	}
	if c.Source.BaseURL == "" {
		c.Source.BaseURL = "http://127.0.0.1:8000"
	}
	c.Source.BaseURL = strings.TrimRight(c.Source.BaseURL, "/")
	if c.Source.Timeout == 0 {
		c.Source.Timeout = 30 * time.Second
	}
	if c.Source.VendorLimit == 0 {
		c.Source.VendorLimit = 1000
	}
	if c.Source.Menus == "" {
		c.Source.Menus = MenusHTTP
		if c.Source.MenusDir != "" {
			c.Source.Menus = MenusFile
		}
	}
	if c.Source.SnappfoodURL == "" {
		c.Source.SnappfoodURL = "https://snappfood.ir/mobile/v2/restaurant/details/dynamic?lat=35.715&long=51.404&vendorCode={code}&optionalClient=WEBSITE&client=WEBSITE&deviceType=WEBSITE&appVersion=8.1.1"
	}
	if c.Source.TapsifoodURL == "" {
		c.Source.TapsifoodURL = "https://api.tapsi.food/v1/api/Vendor/{code}/vendor?latitude=35.7559&longitude=51.4132"
	}
	if c.Source.VendorTTL == 0 {
		c.Source.VendorTTL = 5 * time.Minute
	}
	if c.Source.VendorListTTL == 0 {
		c.Source.VendorListTTL = 10 * time.Minute
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = 500
	}
	if c.Sessions.MaxSessions == 0 {
		c.Sessions.MaxSessions = 256
	}
	if c.Sessions.IdleTTL == 0 {
		c.Sessions.IdleTTL = 30 * time.Minute
	}
	if c.Scheduler.CacheCleanup == 0 {
		c.Scheduler.CacheCleanup = time.Minute
	}
	if c.Scheduler.VendorRefresh == 0 {
		c.Scheduler.VendorRefresh = c.Source.VendorListTTL
	}
	if c.Scheduler.SessionSweep == 0 {
		c.Scheduler.SessionSweep = 5 * time.Minute
	}
	if c.Heartbeat.Interval == 0 {
		c.Heartbeat.Interval = 60 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case StoreSQLite, StoreFile, StoreMemory:
	default:
		return fmt.Errorf("store.driver %q is not one of sqlite, file, memory", c.Store.Driver)
	}
	switch c.Search.LengthPolicy {
	case LengthPenalty, LengthBonus:
	default:
		return fmt.Errorf("search.length_policy %q is not one of penalty, bonus", c.Search.LengthPolicy)
	}
	if c.Search.Threshold < 0 {
		return fmt.Errorf("search.threshold must not be negative")
	}
	if c.Search.Debounce < 0 {
		return fmt.Errorf("search.debounce must not be negative")
	}
	if c.Search.HistoryLimit < 0 || c.Search.FavoritesLimit < 0 {
		return fmt.Errorf("search.history_limit and search.favorites_limit must not be negative")
	}
	if _, err := url.ParseRequestURI(c.Source.BaseURL); err != nil {
		return fmt.Errorf("source.base_url is invalid: %w", err)
	}
	switch c.Source.Menus {
	case MenusHTTP:
	case MenusFile:
		if c.Source.MenusDir == "" {
			return fmt.Errorf("source.menus_dir is required when source.menus is file")
		}
	default:
		return fmt.Errorf("source.menus %q is not one of http, file", c.Source.Menus)
	}
	if c.Sessions.MaxSessions < 0 {
		return fmt.Errorf("sessions.max_sessions must not be negative")
	}
	return nil
}

func defaultStorePath(driver string) string {
	base := "~/.local/share/pricecmp"
	if driver == StoreFile {
		return expandPath(base + "/state")
	}
	return expandPath(base + "/pricecmp.db")
}

func expandPath(p string) string {
	p = os.ExpandEnv(p)
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[2:])
		}
	}
	return filepath.Clean(p)
}

func expandClean(p string) string {
	if p == "" {
		return ""
	}
	return expandPath(p)
}
