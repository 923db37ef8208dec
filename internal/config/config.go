package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"taskcal/internal/model"
)

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// Category is applied to every imported event. Defaults to Other.
	Category model.Category `yaml:"category" json:"category"`
}

// SourceID returns the identifier imported events are tagged with.
func (c ICSConfig) SourceID() string {
	switch {
	case c.ID != "":
		return c.ID
	case c.Name != "":
		return c.Name
	default:
		return c.URL
	}
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone local timestamps are interpreted in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "monday" (default) or "sunday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron is the cron schedule for subscription refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays / BackfillDays bound subscription expansion around now.
	HorizonDays  int `yaml:"horizon_days" json:"horizon_days"`
	BackfillDays int `yaml:"backfill_days" json:"backfill_days"`

	// CacheDir holds the ICS HTTP cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// CORSOrigins lists browser origins allowed to call the API.
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// PreferencesPath is where display preferences are persisted.
	PreferencesPath string `yaml:"preferences_path" json:"preferences_path"`

	Users []model.User `yaml:"users" json:"users"`

	// ICS is the list of subscribed ICS sources.
	ICS []ICSConfig `yaml:"ics" json:"ics"`
}

// envOverrides are read from TASKCAL_* variables and win over the file.
type envOverrides struct {
	Listen          string   `envconfig:"LISTEN"`
	Timezone        string   `envconfig:"TIMEZONE"`
	RefreshCron     string   `envconfig:"REFRESH"`
	CacheDir        string   `envconfig:"CACHE_DIR"`
	LogLevel        string   `envconfig:"LOG_LEVEL"`
	PreferencesPath string   `envconfig:"PREFERENCES_PATH"`
	CORSOrigins     []string `envconfig:"CORS_ORIGINS"`
}

const envPrefix = "TASKCAL"

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:          "127.0.0.1:8080",
		Timezone:        "Local",
		WeekStart:       "monday",
		RefreshCron:     "*/15 * * * *",
		HorizonDays:     30,
		BackfillDays:    7,
		CacheDir:        "./cache/ics-cache",
		CORSOrigins:     []string{"http://localhost:3000"},
		LogLevel:        "info",
		PreferencesPath: "./preferences.yaml",
		Users:           []model.User{},
		ICS:             []ICSConfig{},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	switch c.WeekStart {
	case "monday", "sunday":
	default:
		// Unknown value; fall back to monday to avoid surprising layouts.
		c.WeekStart = def.WeekStart
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = def.HorizonDays
	}
	if c.BackfillDays < 0 {
		c.BackfillDays = 0
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.CORSOrigins == nil {
		c.CORSOrigins = def.CORSOrigins
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.PreferencesPath == "" {
		c.PreferencesPath = def.PreferencesPath
	}
	if c.Users == nil {
		c.Users = []model.User{}
	}
	for i := range c.Users {
		if c.Users[i].ID == "" {
			c.Users[i].ID = uuid.NewString()
		}
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
}

// Validate rejects values Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	for _, u := range c.Users {
		if _, err := uuid.Parse(u.ID); err != nil {
			return fmt.Errorf("user %q: invalid id %q: %w", u.Name, u.ID, err)
		}
	}
	return nil
}

// Location resolves Timezone. "Local" maps to time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// FirstWeekday maps WeekStart to a time.Weekday.
func (c *Config) FirstWeekday() time.Weekday {
	if c.WeekStart == "sunday" {
		return time.Sunday
	}
	return time.Monday
}

// ApplyEnv overlays TASKCAL_* environment variables onto c.
func (c *Config) ApplyEnv() error {
	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return err
	}
	if env.Listen != "" {
		c.Listen = env.Listen
	}
	if env.Timezone != "" {
		c.Timezone = env.Timezone
	}
	if env.RefreshCron != "" {
		c.RefreshCron = env.RefreshCron
	}
	if env.CacheDir != "" {
		c.CacheDir = env.CacheDir
	}
	if env.LogLevel != "" {
		c.LogLevel = env.LogLevel
	}
	if env.PreferencesPath != "" {
		c.PreferencesPath = env.PreferencesPath
	}
	if len(env.CORSOrigins) > 0 {
		c.CORSOrigins = env.CORSOrigins
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is unmarshalled and normalized.
//
// Environment overrides are applied last in both cases.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	cfg, err := loadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically with
// 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

// writeFileAtomic writes to a temp file in the target directory, then
// renames it over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".taskcal-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
