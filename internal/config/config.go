package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	defaultPageSize       = 50
	defaultHTTPTimeoutSec = 20
	defaultLogLevel       = "info"
)

const (
	appFolderName     = "selfoss-cli"
	configFileName    = "config.toml"
	configPathEnvName = "XDG_CONFIG_HOME"
	envPrefix         = "SELFOSS_"
	dotEnvFile        = ".env"
)

// Config holds runtime settings for the CLI app.
type Config struct {
	BaseURL       string
	Username      string
	Password      string
	DBPath        string
	PageSize      int
	HTTPTimeout   time.Duration
	RetentionDays int
	LogLevel      string
	LogPath       string

	OfflineEnabled        bool
	AutoMarkAsRead        bool
	AutoCollapse          bool
	AutoHideReadOnMobile  bool
	ScrollToArticleHeader bool
	AutoStreamMore        bool
}

// Load builds the configuration from defaults, the TOML file, a .env file in
// the working directory and SELFOSS_* environment variables, in that order.
// An explicit path must exist; otherwise the XDG location is optional.
func Load(path string) (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	cfg := defaults(home)

	configPath, hasConfig := path, path != ""
	if !hasConfig {
		configPath, hasConfig, err = findConfigPath(home)
		if err != nil {
			return Config{}, err
		}
	}
	if hasConfig {
		fileCfg, err := loadFileConfig(configPath)
		if err != nil {
			return Config{}, err
		}
		applyFileConfig(&cfg, fileCfg)
	}

	dotEnv, err := readDotEnv(dotEnvFile)
	if err != nil {
		return Config{}, err
	}
	if err := applyEnvOverrides(&cfg, envLookup(dotEnv)); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaults(home string) Config {
	return Config{
		DBPath:                filepath.Join(home, ".local", "share", appFolderName, "selfoss.db"),
		PageSize:              defaultPageSize,
		HTTPTimeout:           defaultHTTPTimeoutSec * time.Second,
		LogLevel:              defaultLogLevel,
		LogPath:               filepath.Join(home, ".local", "state", appFolderName, "selfoss.log"),
		OfflineEnabled:        true,
		AutoMarkAsRead:        true,
		ScrollToArticleHeader: true,
		AutoStreamMore:        true,
	}
}

func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("SELFOSS_BASE_URL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("BaseURL must be an http(s) URL: %s", c.BaseURL)
	}
	if strings.HasSuffix(c.BaseURL, "/") {
		return fmt.Errorf("BaseURL must not end with '/': %s", c.BaseURL)
	}
	if c.Password != "" && c.Username == "" {
		return errors.New("SELFOSS_USERNAME is required when a password is set")
	}
	if c.DBPath == "" {
		return errors.New("DBPath is required")
	}
	if c.PageSize < 1 {
		return fmt.Errorf("PageSize must be positive: %d", c.PageSize)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTPTimeout must be positive: %s", c.HTTPTimeout)
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("RetentionDays must be >= 0: %d", c.RetentionDays)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LogLevel must be debug, info, warn or error: %s", c.LogLevel)
	}
	return nil
}

type fileConfig struct {
	BaseURL        *string `toml:"base_url"`
	Username       *string `toml:"username"`
	Password       *string `toml:"password"`
	DBPath         *string `toml:"db_path"`
	PageSize       *int    `toml:"page_size"`
	HTTPTimeoutSec *int    `toml:"http_timeout_seconds"`
	RetentionDays  *int    `toml:"retention_days"`
	LogLevel       *string `toml:"log_level"`
	LogPath        *string `toml:"log_path"`

	Reading struct {
		OfflineEnabled        *bool `toml:"offline"`
		AutoMarkAsRead        *bool `toml:"auto_mark_as_read"`
		AutoCollapse          *bool `toml:"auto_collapse"`
		AutoHideReadOnMobile  *bool `toml:"auto_hide_read_on_narrow"`
		ScrollToArticleHeader *bool `toml:"scroll_to_article_header"`
		AutoStreamMore        *bool `toml:"auto_stream_more"`
	} `toml:"reading"`
}

func findConfigPath(home string) (string, bool, error) {
	candidates := make([]string, 0, 2)
	if xdgConfigHome := strings.TrimSpace(os.Getenv(configPathEnvName)); xdgConfigHome != "" {
		candidates = append(candidates, filepath.Join(xdgConfigHome, appFolderName, configFileName))
	}
	candidates = append(candidates, filepath.Join(home, ".config", appFolderName, configFileName))

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", false, fmt.Errorf("config path %q is a directory; expected a file", candidate)
			}
			return candidate, true, nil
		}
		if os.IsNotExist(err) {
			continue
		}
		return "", false, fmt.Errorf("failed to read config path %q: %w", candidate, err)
	}
	return "", false, nil
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return fileConfig{}, fmt.Errorf("invalid config file %q: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		unknown := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			unknown = append(unknown, key.String())
		}
		sort.Strings(unknown)
		return fileConfig{}, fmt.Errorf("invalid config file %q: unknown key(s): %s", path, strings.Join(unknown, ", "))
	}
	if cfg.PageSize != nil && *cfg.PageSize < 1 {
		return fileConfig{}, fmt.Errorf("invalid config file %q: page_size must be >= 1", path)
	}
	if cfg.HTTPTimeoutSec != nil && *cfg.HTTPTimeoutSec <= 0 {
		return fileConfig{}, fmt.Errorf("invalid config file %q: http_timeout_seconds must be > 0", path)
	}
	if cfg.DBPath != nil && strings.TrimSpace(*cfg.DBPath) == "" {
		return fileConfig{}, fmt.Errorf("invalid config file %q: db_path must be non-empty when provided", path)
	}
	return cfg, nil
}

func applyFileConfig(cfg *Config, f fileConfig) {
	setString(&cfg.BaseURL, f.BaseURL)
	setString(&cfg.Username, f.Username)
	setString(&cfg.Password, f.Password)
	setString(&cfg.DBPath, f.DBPath)
	setString(&cfg.LogLevel, f.LogLevel)
	setString(&cfg.LogPath, f.LogPath)
	if f.PageSize != nil {
		cfg.PageSize = *f.PageSize
	}
	if f.HTTPTimeoutSec != nil {
		cfg.HTTPTimeout = time.Duration(*f.HTTPTimeoutSec) * time.Second
	}
	if f.RetentionDays != nil {
		cfg.RetentionDays = *f.RetentionDays
	}
	setBool(&cfg.OfflineEnabled, f.Reading.OfflineEnabled)
	setBool(&cfg.AutoMarkAsRead, f.Reading.AutoMarkAsRead)
	setBool(&cfg.AutoCollapse, f.Reading.AutoCollapse)
	setBool(&cfg.AutoHideReadOnMobile, f.Reading.AutoHideReadOnMobile)
	setBool(&cfg.ScrollToArticleHeader, f.Reading.ScrollToArticleHeader)
	setBool(&cfg.AutoStreamMore, f.Reading.AutoStreamMore)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// readDotEnv returns the variables of an optional .env file.
func readDotEnv(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return values, nil
}

// envLookup prefers the process environment over .env values.
func envLookup(dotEnv map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotEnv[key]
		return v, ok
	}
}

func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("BASE_URL", &cfg.BaseURL)
	str("USERNAME", &cfg.Username)
	str("PASSWORD", &cfg.Password)
	str("DB_PATH", &cfg.DBPath)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_PATH", &cfg.LogPath)

	ints := []struct {
		name string
		set  func(int)
	}{
		{"PAGE_SIZE", func(n int) { cfg.PageSize = n }},
		{"HTTP_TIMEOUT_SECONDS", func(n int) { cfg.HTTPTimeout = time.Duration(n) * time.Second }},
		{"RETENTION_DAYS", func(n int) { cfg.RetentionDays = n }},
	}
	for _, item := range ints {
		v, ok := lookup(envPrefix + item.name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s must be an integer: %q", envPrefix, item.name, v)
		}
		item.set(n)
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"OFFLINE", &cfg.OfflineEnabled},
		{"AUTO_MARK_AS_READ", &cfg.AutoMarkAsRead},
		{"AUTO_COLLAPSE", &cfg.AutoCollapse},
		{"AUTO_HIDE_READ_ON_NARROW", &cfg.AutoHideReadOnMobile},
		{"SCROLL_TO_ARTICLE_HEADER", &cfg.ScrollToArticleHeader},
		{"AUTO_STREAM_MORE", &cfg.AutoStreamMore},
	}
	for _, item := range bools {
		v, ok := lookup(envPrefix + item.name)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s must be a boolean: %q", envPrefix, item.name, v)
		}
		*item.dst = b
	}
	return nil
}
