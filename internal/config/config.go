package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Global settings
	Format  string `mapstructure:"format"`
	Level   string `mapstructure:"level"`
	Quiet   bool   `mapstructure:"quiet"`
	Verbose bool   `mapstructure:"verbose"`

	Ingest  IngestConfig  `mapstructure:"ingest"`
	Capture CaptureConfig `mapstructure:"capture"`
	Bridge  BridgeConfig  `mapstructure:"bridge"`
}

// IngestConfig points the SDK at its backend.
type IngestConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
}

// CaptureConfig holds pipeline defaults. Durations are strings ("5s") and
// parsed where they are used.
type CaptureConfig struct {
	FlushInterval  string   `mapstructure:"flush_interval"`
	MaxBatch       int      `mapstructure:"max_batch"`
	RedactedFields []string `mapstructure:"redacted_fields"`
	ConsoleLevels  []string `mapstructure:"console_levels"`
	EntryURL       string   `mapstructure:"entry_url"`
	StatePath      string   `mapstructure:"state_path"`
}

// BridgeConfig configures the local ingest bridge.
type BridgeConfig struct {
	Listen string `mapstructure:"listen"`
}

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		Format:  "auto",
		Level:   "info",
		Quiet:   false,
		Verbose: false,
		Capture: CaptureConfig{
			FlushInterval: "5s",
			MaxBatch:      50,
			ConsoleLevels: []string{"error", "warn"},
		},
		Bridge: BridgeConfig{
			Listen: "127.0.0.1:8787",
		},
	}
}

// Load loads configuration from files and environment
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and type
	v.SetConfigName("swing")
	v.SetConfigType("yaml")

	// Add config paths (in order of precedence, lowest first)
	// 1. System-wide config
	v.AddConfigPath("/etc/swing/")
	// 2. User config directory
	if configDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(configDir, "swing"))
	}
	// 3. Home directory (as .swingrc.yaml or .swing.yaml)
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
		v.SetConfigName(".swing")
	}
	// 4. Current directory
	v.AddConfigPath(".")

	// Also check for .swingrc file
	v.SetConfigName(".swingrc")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}

	// Environment variables
	v.SetEnvPrefix("SWING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Bind specific environment variables
	v.BindEnv("format", "SWING_FORMAT")
	v.BindEnv("level", "SWING_LEVEL")
	v.BindEnv("quiet", "SWING_QUIET")
	v.BindEnv("verbose", "SWING_VERBOSE")
	v.BindEnv("ingest.url", "SWING_INGEST_URL")
	v.BindEnv("ingest.api_key", "SWING_API_KEY")

	// Set defaults
	cfg := Default()
	v.SetDefault("format", cfg.Format)
	v.SetDefault("level", cfg.Level)
	v.SetDefault("quiet", cfg.Quiet)
	v.SetDefault("verbose", cfg.Verbose)
	v.SetDefault("capture.flush_interval", cfg.Capture.FlushInterval)
	v.SetDefault("capture.max_batch", cfg.Capture.MaxBatch)
	v.SetDefault("capture.console_levels", cfg.Capture.ConsoleLevels)
	v.SetDefault("bridge.listen", cfg.Bridge.Listen)

	// Try to read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error occurred
			return nil, err
		}
		// Config file not found; use defaults
	}

	// Unmarshal into struct
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ConfigFile returns the config file Load would read, preferring the current
// directory over the home directory and .yaml over .yml. Empty when only
// defaults apply.
func ConfigFile() string {
	for _, name := range []string{".swing.yaml", ".swing.yml", "swing.yaml", "swing.yml", ".swingrc"} {
		if _, err := os.Stat(name); err == nil {
			if abs, err := filepath.Abs(name); err == nil {
				return abs
			}
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		for _, name := range []string{".swing.yaml", ".swing.yml", ".swingrc"} {
			p := filepath.Join(home, name)
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}
	return ""
}

// applyEnvOverrides forces well-known environment variables over whatever
// the files said.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SWING_FORMAT"); v != "" {
		cfg.Format = v
	}
	if v := os.Getenv("SWING_LEVEL"); v != "" {
		cfg.Level = v
	}
	if v := os.Getenv("SWING_QUIET"); v == "true" || v == "1" {
		cfg.Quiet = true
	}
	if v := os.Getenv("SWING_VERBOSE"); v == "true" || v == "1" {
		cfg.Verbose = true
	}
	if v := os.Getenv("SWING_INGEST_URL"); v != "" {
		cfg.Ingest.URL = v
	}
	if v := os.Getenv("SWING_API_KEY"); v != "" {
		cfg.Ingest.APIKey = v
	}
}
