// Package config loads and persists the application configuration as a
// TOML file under the user's home directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/navali-creations/soothsayer-sub010/internal/storage/models"
)

// Config represents the application configuration.
type Config struct {
	// Game selection and client process settings
	Game GameConfig `toml:"game"`

	// Client log monitoring settings
	Log LogConfig `toml:"log"`

	// Local database settings
	Database DatabaseConfig `toml:"database"`

	// Remote pricing settings
	Pricing PricingConfig `toml:"pricing"`
}

// GameConfig selects the tracked game and how to find its process.
type GameConfig struct {
	Game         string   `toml:"game"`          // "poe1" or "poe2"
	League       string   `toml:"league"`        // league name, e.g. "Settlers"
	ProcessNames []string `toml:"process_names"` // client binary names, first is canonical
	PollInterval string   `toml:"poll_interval"` // liveness poll cadence (e.g., "2s")
}

// LogConfig contains client log monitoring settings.
type LogConfig struct {
	FilePath  string `toml:"file_path"` // path to the client's Client.txt
	TailLines int    `toml:"tail_lines"`
	Debounce  string `toml:"debounce"` // settle time after a write burst (e.g., "250ms")
}

// DatabaseConfig contains local database and backup settings.
type DatabaseConfig struct {
	Path           string `toml:"path"`       // empty = <config dir>/soothsayer.db
	BackupDir      string `toml:"backup_dir"` // empty = <config dir>/backups
	BackupKeep     int    `toml:"backup_keep"`
	BackupPassword string `toml:"backup_password"` // empty = unencrypted backups
}

// PricingConfig contains remote pricing settings.
type PricingConfig struct {
	BaseURL             string `toml:"base_url"`
	ReuseThreshold      string `toml:"reuse_threshold"`       // snapshot age still served without a fetch
	AutoRefreshInterval string `toml:"auto_refresh_interval"` // background refetch cadence
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Game: GameConfig{
			Game:         string(models.GamePoE1),
			League:       "Standard",
			ProcessNames: []string{"PathOfExile.exe", "PathOfExileSteam.exe", "PathOfExile"},
			PollInterval: "2s",
		},
		Log: LogConfig{
			FilePath:  "",
			TailLines: 10,
			Debounce:  "250ms",
		},
		Database: DatabaseConfig{
			Path:       "",
			BackupDir:  "",
			BackupKeep: 5,
		},
		Pricing: PricingConfig{
			BaseURL:             "",
			ReuseThreshold:      "4h",
			AutoRefreshInterval: "8h",
		},
	}
}

// Dir returns the application configuration directory, creating it if
// needed.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".soothsayer")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}

	return configDir, nil
}

func configPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load loads the configuration from the default path. Returns the
// default config if the file doesn't exist.
func Load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom loads the configuration from an explicit path. Returns the
// default config if the file doesn't exist.
func LoadFrom(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return &config, nil
}

// Save saves the configuration to the default path.
func (c *Config) Save() error {
	path, err := configPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo saves the configuration to an explicit path.
func (c *Config) SaveTo(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	if !models.Game(c.Game.Game).Valid() {
		return fmt.Errorf("unknown game %q", c.Game.Game)
	}

	if c.Game.League == "" {
		return fmt.Errorf("league name cannot be empty")
	}

	if len(c.Game.ProcessNames) == 0 {
		return fmt.Errorf("at least one process name is required")
	}

	if _, err := time.ParseDuration(c.Game.PollInterval); err != nil {
		return fmt.Errorf("invalid poll interval %q: %w", c.Game.PollInterval, err)
	}

	if c.Log.TailLines <= 0 {
		return fmt.Errorf("tail lines must be positive: %d", c.Log.TailLines)
	}

	if _, err := time.ParseDuration(c.Log.Debounce); err != nil {
		return fmt.Errorf("invalid debounce %q: %w", c.Log.Debounce, err)
	}

	if c.Database.BackupKeep < 0 {
		return fmt.Errorf("backup keep cannot be negative: %d", c.Database.BackupKeep)
	}

	if _, err := time.ParseDuration(c.Pricing.ReuseThreshold); err != nil {
		return fmt.Errorf("invalid reuse threshold %q: %w", c.Pricing.ReuseThreshold, err)
	}

	if _, err := time.ParseDuration(c.Pricing.AutoRefreshInterval); err != nil {
		return fmt.Errorf("invalid auto-refresh interval %q: %w", c.Pricing.AutoRefreshInterval, err)
	}

	return nil
}

// GetPollInterval returns the liveness poll interval as a duration.
func (c *Config) GetPollInterval() (time.Duration, error) {
	return time.ParseDuration(c.Game.PollInterval)
}

// GetDebounce returns the log watch debounce as a duration.
func (c *Config) GetDebounce() (time.Duration, error) {
	return time.ParseDuration(c.Log.Debounce)
}

// GetReuseThreshold returns the snapshot reuse threshold as a duration.
func (c *Config) GetReuseThreshold() (time.Duration, error) {
	return time.ParseDuration(c.Pricing.ReuseThreshold)
}

// GetAutoRefreshInterval returns the auto-refresh cadence as a duration.
func (c *Config) GetAutoRefreshInterval() (time.Duration, error) {
	return time.ParseDuration(c.Pricing.AutoRefreshInterval)
}

// DatabasePath resolves the database file path, defaulting into the
// config directory.
func (c *Config) DatabasePath() (string, error) {
	if c.Database.Path != "" {
		return c.Database.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "soothsayer.db"), nil
}

// BackupDir resolves the backup directory, defaulting into the config
// directory.
func (c *Config) BackupDir() (string, error) {
	if c.Database.BackupDir != "" {
		return c.Database.BackupDir, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "backups"), nil
}
