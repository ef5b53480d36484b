// Package config loads application configuration from environment variables,
// an optional JSON login file and an optional TOML publish-settings file.
package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/ericfisherdev/travelerpub/internal/domain/model"
)

// envPrefix is prepended to every variable name Load reads.
const envPrefix = "TRAVELERPUB_"

// Defaults applied when the corresponding variable is unset.
const (
	DefaultReferer      = "https://wsdot.maps.arcgis.com"
	DefaultDBPath       = "travelerpub.db"
	DefaultListenAddr   = "127.0.0.1:8080"
	DefaultSyncInterval = time.Hour
	DefaultPackagePath  = "TravelerInfo.gdb.zip"
	DefaultStagingDir   = "staging"
	DefaultRateLimit    = 5.0
	DefaultItemTitle    = "TravelerInfo"
	DefaultItemCulture  = "en-US"
)

// DefaultItemTags are the tags applied to uploaded items when no settings file
// overrides them.
var DefaultItemTags = []string{"WSDOT", "traffic", "traveler", "transportation"}

var feedNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Config holds the application configuration.
type Config struct {
	Username string
	Password string
	RootURI  string
	Referer  string

	DBPath     string
	ListenAddr string

	SyncInterval    time.Duration
	JobPollInterval time.Duration
	JobTimeout      time.Duration
	JobMaxAttempts  int

	PackagePath  string
	StagingDir   string
	BuildCommand []string
	AccessCode   string
	RateLimit    float64

	// SecretKey is the 32-byte AES-256 key for the credential store. Nil
	// disables stored credentials.
	SecretKey []byte

	LogLevel  string
	LogFormat string

	Settings model.PublishSettings
	// Feeds maps feed names to endpoint URLs. Nil means the fetcher defaults.
	Feeds map[string]string
}

// Credential returns the portal credential described by the configuration.
func (c *Config) Credential() model.Credential {
	return model.Credential{
		Username: c.Username,
		Password: c.Password,
		Referer:  c.Referer,
		RootURI:  c.RootURI,
	}
}

// loginFile is the layout of TRAVELERPUB_LOGIN_FILE.
type loginFile struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// settingsFile is the layout of TRAVELERPUB_CONFIG_FILE.
type settingsFile struct {
	Item struct {
		Title       string   `toml:"title"`
		Folder      *string  `toml:"folder"`
		Tags        []string `toml:"tags"`
		Culture     string   `toml:"culture"`
		Description string   `toml:"description"`
		ServiceName string   `toml:"service_name"`
	} `toml:"item"`
	Export struct {
		Format string `toml:"format"`
	} `toml:"export"`
	Feeds map[string]string `toml:"feeds"`
}

// Load reads configuration from TRAVELERPUB_* environment variables and
// returns a validated Config. Portal credentials are optional here; commands
// that talk to the portal resolve them against the credential store.
//
// Variables set in the environment override the login file, which only fills
// in an empty username or password.
func Load() (*Config, error) {
	cfg := &Config{
		Username:        os.Getenv(envPrefix + "ARCGIS_USERNAME"),
		Password:        os.Getenv(envPrefix + "ARCGIS_PASSWORD"),
		RootURI:         lookup("ARCGIS_ROOT_URI", model.DefaultRootURI),
		Referer:         lookup("ARCGIS_REFERER", DefaultReferer),
		DBPath:          lookup("DB_PATH", DefaultDBPath),
		ListenAddr:      lookup("LISTEN_ADDR", DefaultListenAddr),
		PackagePath:     lookup("PACKAGE_PATH", DefaultPackagePath),
		StagingDir:      lookup("STAGING_DIR", DefaultStagingDir),
		BuildCommand:    strings.Fields(os.Getenv(envPrefix + "BUILD_COMMAND")),
		AccessCode:      os.Getenv(envPrefix + "ACCESS_CODE"),
		LogLevel:        lookup("LOG_LEVEL", "info"),
		LogFormat:       lookup("LOG_FORMAT", "text"),
		SyncInterval:    DefaultSyncInterval,
		JobPollInterval: model.DefaultJobPollInterval,
		JobTimeout:      model.DefaultJobTimeout,
		RateLimit:       DefaultRateLimit,
		Settings: model.PublishSettings{
			Title:        DefaultItemTitle,
			Folder:       DefaultItemTitle,
			Tags:         append([]string(nil), DefaultItemTags...),
			Culture:      DefaultItemCulture,
			ExportFormat: model.DefaultExportFormat,
		},
	}

	var err error
	if cfg.SyncInterval, err = durationVar("SYNC_INTERVAL", cfg.SyncInterval); err != nil {
		return nil, err
	}
	if cfg.JobPollInterval, err = durationVar("JOB_POLL_INTERVAL", cfg.JobPollInterval); err != nil {
		return nil, err
	}
	if cfg.JobTimeout, err = durationVar("JOB_TIMEOUT", cfg.JobTimeout); err != nil {
		return nil, err
	}
	if cfg.SyncInterval <= 0 {
		return nil, fmt.Errorf("%sSYNC_INTERVAL must be positive", envPrefix)
	}
	if cfg.JobPollInterval <= 0 {
		return nil, fmt.Errorf("%sJOB_POLL_INTERVAL must be positive", envPrefix)
	}
	if cfg.JobTimeout < 0 {
		return nil, fmt.Errorf("%sJOB_TIMEOUT must not be negative", envPrefix)
	}

	if v, ok := os.LookupEnv(envPrefix + "JOB_MAX_ATTEMPTS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%sJOB_MAX_ATTEMPTS has invalid value %q: must be a non-negative integer", envPrefix, v)
		}
		cfg.JobMaxAttempts = n
	}

	if v, ok := os.LookupEnv(envPrefix + "RATE_LIMIT"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return nil, fmt.Errorf("%sRATE_LIMIT has invalid value %q: must be a non-negative number", envPrefix, v)
		}
		cfg.RateLimit = f
	}

	if v := os.Getenv(envPrefix + "SECRET_KEY"); v != "" {
		key, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("%sSECRET_KEY is not valid hex: %w", envPrefix, err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("%sSECRET_KEY must be 32 bytes (64 hex chars), got %d bytes", envPrefix, len(key))
		}
		cfg.SecretKey = key
	}

	if path := os.Getenv(envPrefix + "LOGIN_FILE"); path != "" {
		if err := cfg.mergeLoginFile(path); err != nil {
			return nil, err
		}
	}

	if path := os.Getenv(envPrefix + "CONFIG_FILE"); path != "" {
		if err := cfg.mergeSettingsFile(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (c *Config) mergeLoginFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read login file: %w", err)
	}

	var login loginFile
	if err := json.Unmarshal(data, &login); err != nil {
		return fmt.Errorf("parse login file %s: %w", path, err)
	}

	if c.Username == "" {
		c.Username = login.Username
	}
	if c.Password == "" {
		c.Password = login.Password
	}
	return nil
}

func (c *Config) mergeSettingsFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var f settingsFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	s := &c.Settings
	if f.Item.Title != "" {
		s.Title = f.Item.Title
	}
	// An explicit empty folder selects the root folder.
	if f.Item.Folder != nil {
		s.Folder = *f.Item.Folder
	}
	if len(f.Item.Tags) > 0 {
		s.Tags = f.Item.Tags
	}
	if f.Item.Culture != "" {
		s.Culture = f.Item.Culture
	}
	if f.Item.Description != "" {
		s.Description = f.Item.Description
	}
	if f.Item.ServiceName != "" {
		s.ServiceName = f.Item.ServiceName
	}
	if f.Export.Format != "" {
		s.ExportFormat = f.Export.Format
	}

	if len(f.Feeds) > 0 {
		for name, u := range f.Feeds {
			if !feedNamePattern.MatchString(name) {
				return fmt.Errorf("config file %s: invalid feed name %q", path, name)
			}
			if u == "" {
				return fmt.Errorf("config file %s: feed %q has no url", path, name)
			}
		}
		c.Feeds = f.Feeds
	}
	return nil
}

func lookup(name, def string) string {
	if v, ok := os.LookupEnv(envPrefix + name); ok && v != "" {
		return v
	}
	return def
}

func durationVar(name string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(envPrefix + name)
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s%s has invalid duration %q: %w", envPrefix, name, v, err)
	}
	return d, nil
}
