package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// Config holds all configuration for the SkySense runtime
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Remote     RemoteConfig     `mapstructure:"remote"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Reminders  RemindersConfig  `mapstructure:"reminders"`
	Sync       SyncConfig       `mapstructure:"sync"`
	Appearance AppearanceConfig `mapstructure:"appearance"`
	Security   SecurityConfig   `mapstructure:"security"`
	Watch      WatchConfig      `mapstructure:"watch"`
}

// ServerConfig holds the local control API settings
type ServerConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Address      string `mapstructure:"address"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// RemoteConfig holds the remote profile service settings
type RemoteConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	APIKey          string        `mapstructure:"api_key"`
	Timeout         time.Duration `mapstructure:"timeout"`
	ProbeTimeout    time.Duration `mapstructure:"probe_timeout"`
	RatePerSecond   float64       `mapstructure:"rate_per_second"`
	Burst           int           `mapstructure:"burst"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

// StorageConfig holds database settings
type StorageConfig struct {
	DataDir    string `mapstructure:"data_dir"`
	SQLitePath string `mapstructure:"sqlite_path"`
	BadgerPath string `mapstructure:"badger_path"`
}

// RemindersConfig holds medication reminder settings
type RemindersConfig struct {
	Snooze              time.Duration `mapstructure:"snooze"`
	ToastDuration       time.Duration `mapstructure:"toast_duration"`
	PermissionDelay     time.Duration `mapstructure:"permission_delay"`
	WelcomeDelay        time.Duration `mapstructure:"welcome_delay"`
	MarkerRetentionDays int           `mapstructure:"marker_retention_days"`
}

// SyncConfig holds settings sync pipeline settings
type SyncConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// AppearanceConfig holds the ambient theme preference: auto, dark or light
type AppearanceConfig struct {
	Theme string `mapstructure:"theme"`
}

// SecurityConfig holds security settings
type SecurityConfig struct {
	JWTSecret    string   `mapstructure:"jwt_secret"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// WatchConfig holds the settings override file watcher settings
type WatchConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	SettingsFile string `mapstructure:"settings_file"`
}

// Load loads configuration from file, env, and defaults
func Load(configPath, dataDir string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if dataDir == "" {
		dataDir = getDefaultDataDir()
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	v.Set("storage.data_dir", dataDir)
	v.SetDefault("storage.sqlite_path", filepath.Join(dataDir, "skysense.db"))
	v.SetDefault("storage.badger_path", filepath.Join(dataDir, "badger"))
	v.SetDefault("watch.settings_file", filepath.Join(dataDir, "settings.yaml"))

	if configPath == "" {
		configPath = filepath.Join(dataDir, "skysense.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Environment variables (SKYSENSE_REMOTE_BASE_URL, SKYSENSE_SERVER_PORT, etc.)
	v.SetEnvPrefix("SKYSENSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	if cfg.Security.JWTSecret == "" {
		secret, err := loadOrCreateSecret(filepath.Join(cfg.Storage.DataDir, SecretFile))
		if err != nil {
			return nil, err
		}
		cfg.Security.JWTSecret = secret
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.address", "127.0.0.1")
	v.SetDefault("server.port", 8787)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)

	v.SetDefault("remote.timeout", "15s")
	v.SetDefault("remote.probe_timeout", "5s")
	v.SetDefault("remote.rate_per_second", 5.0)
	v.SetDefault("remote.burst", 5)
	v.SetDefault("remote.breaker_failures", 5)
	v.SetDefault("remote.breaker_timeout", "30s")

	v.SetDefault("reminders.snooze", "5m")
	v.SetDefault("reminders.toast_duration", "10s")
	v.SetDefault("reminders.permission_delay", "2s")
	v.SetDefault("reminders.welcome_delay", "1s")
	v.SetDefault("reminders.marker_retention_days", 2)

	v.SetDefault("sync.debounce", "1s")

	v.SetDefault("appearance.theme", "auto")

	v.SetDefault("security.allow_origins", []string{"*"})

	v.SetDefault("watch.enabled", true)
}

func getDefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "skysense")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}

	return filepath.Join(home, ".local", "share", "skysense")
}

// loadEnvOverrides applies aliased env vars that AutomaticEnv cannot see
func loadEnvOverrides(cfg *Config) {
	if key := ResolveEnvWithAliases("SKYSENSE_REMOTE_API_KEY"); key != "" {
		cfg.Remote.APIKey = key
	}
	if url := ResolveEnvWithAliases("SKYSENSE_REMOTE_BASE_URL"); url != "" {
		cfg.Remote.BaseURL = url
	}
	if secret := ResolveEnvWithAliases("SKYSENSE_SECURITY_JWT_SECRET"); secret != "" {
		cfg.Security.JWTSecret = secret
	}
	if port := os.Getenv("SKYSENSE_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
}

func validate(cfg *Config) error {
	switch cfg.Appearance.Theme {
	case "auto", "dark", "light":
	default:
		return fmt.Errorf("appearance.theme must be auto, dark or light, got %q", cfg.Appearance.Theme)
	}

	if cfg.Remote.ProbeTimeout <= 0 {
		return fmt.Errorf("remote.probe_timeout must be positive")
	}
	if cfg.Sync.Debounce <= 0 {
		return fmt.Errorf("sync.debounce must be positive")
	}
	if cfg.Reminders.MarkerRetentionDays < 1 {
		cfg.Reminders.MarkerRetentionDays = 1
	}

	cfg.Remote.BaseURL = strings.TrimRight(cfg.Remote.BaseURL, "/")

	return nil
}

// SecretFile holds the generated control API signing secret inside the data dir
const SecretFile = "jwt_secret"

// loadOrCreateSecret reads the signing secret at path, generating it on first
// use so the daemon and CLI invocations sign with the same key.
func loadOrCreateSecret(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if secret := strings.TrimSpace(string(data)); secret != "" {
			return secret, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read jwt secret: %w", err)
	}

	secret := generateRandomString(32)
	if err := os.WriteFile(path, []byte(secret+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("failed to write jwt secret: %w", err)
	}
	return secret, nil
}

func generateRandomString(n int) string {
	var sb strings.Builder
	for sb.Len() < n {
		sb.WriteString(strings.ReplaceAll(uuid.NewString(), "-", ""))
	}
	return sb.String()[:n]
}

// Offline reports whether no remote profile service is configured
func (c *Config) Offline() bool {
	return c.Remote.BaseURL == ""
}
