package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/philtim/multiclock/catalog"
)

// EnvPrefix prefixes environment overrides, e.g. MULTICLOCK_MAX_CLOCKS
const EnvPrefix = "MULTICLOCK"

// StorageConfig selects the persistence backend
type StorageConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend" validate:"oneof=file redis memory"`
	Path    string `mapstructure:"path" yaml:"path,omitempty"`
}

// RedisConfig is used when the storage backend is redis
type RedisConfig struct {
	URL    string `mapstructure:"url" yaml:"url,omitempty" validate:"required_if=Enabled true"`
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
	// Enabled mirrors storage.backend == redis; it is not read from file.
	Enabled bool `mapstructure:"-" yaml:"-"`
}

// UIConfig tunes the terminal renderer
type UIConfig struct {
	FrameInterval time.Duration `mapstructure:"frame_interval" yaml:"frame_interval" validate:"gte=10ms,lte=1s"`
}

// LogConfig configures slog
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
	File   string `mapstructure:"file" yaml:"file,omitempty"`
}

// Config represents the application configuration
type Config struct {
	MaxClocks   int           `mapstructure:"max_clocks" yaml:"max_clocks" validate:"gte=1,lte=24"`
	DefaultZone string        `mapstructure:"default_zone" yaml:"default_zone" validate:"required,catalogzone"`
	LocalZone   string        `mapstructure:"local_zone" yaml:"local_zone,omitempty" validate:"omitempty,timezone"`
	Storage     StorageConfig `mapstructure:"storage" yaml:"storage"`
	Redis       RedisConfig   `mapstructure:"redis" yaml:"redis"`
	UI          UIConfig      `mapstructure:"ui" yaml:"ui"`
	Log         LogConfig     `mapstructure:"log" yaml:"log"`
}

// Default returns the configuration written on first run
func Default() Config {
	return Config{
		MaxClocks:   8,
		DefaultZone: catalog.DefaultZone,
		Storage:     StorageConfig{Backend: "file"},
		Redis:       RedisConfig{Prefix: "multiclock:"},
		UI:          UIConfig{FrameInterval: 100 * time.Millisecond},
		Log:         LogConfig{Level: "info", Format: "text"},
	}
}

// SetDefaults registers every key with v so env overrides reach Unmarshal
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("max_clocks", d.MaxClocks)
	v.SetDefault("default_zone", d.DefaultZone)
	v.SetDefault("local_zone", "")
	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.path", "")
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.prefix", d.Redis.Prefix)
	v.SetDefault("ui.frame_interval", d.UI.FrameInterval)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", "")
}

// Load reads the configuration from path (~/.config/multiclock.yaml when
// empty) through v, so flags bound to v take precedence.
// If the file doesn't exist, it creates a default one
func Load(v *viper.Viper, path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = Path()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := Default().Save(path); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	SetDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.RegisterValidation("catalogzone", func(fl validator.FieldLevel) bool {
		return catalog.Default().Contains(fl.Field().String())
	})
	if err != nil {
		panic(err)
	}
	return v
}

// Validate checks ranges, enums and that zones exist
func (c *Config) Validate() error {
	c.Redis.Enabled = c.Storage.Backend == "redis"

	err := validate.Struct(c)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := lo.Map(verrs, func(fe validator.FieldError, _ int) string {
			return describe(fe)
		})
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "catalogzone":
		return fmt.Sprintf("%s '%v' is not a catalog timezone", field, fe.Value())
	case "timezone":
		return fmt.Sprintf("%s '%v' is not a valid timezone", field, fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	default:
		return fmt.Sprintf("%s fails %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value())
	}
}

// Path returns ~/.config/multiclock.yaml
func Path() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "multiclock.yaml"), nil
}

// Save writes the configuration to path atomically
func (c Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Atomic write: write to temp file, then rename
	tempFile, err := os.CreateTemp(configDir, "multiclock-*.yaml.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// AmbientZone returns the zone of the Local clock: local_zone when set,
// otherwise the system timezone
func (c *Config) AmbientZone() string {
	if c.LocalZone != "" {
		return c.LocalZone
	}
	return SystemTimezone()
}

// SystemTimezone returns the system's IANA timezone name.
// It checks $TZ, then the /etc/localtime symlink, then falls back to UTC.
func SystemTimezone() string {
	return systemTimezone(os.Getenv("TZ"), "/etc/localtime")
}

func systemTimezone(tzEnv, localtime string) string {
	if tz := strings.TrimPrefix(tzEnv, ":"); tz != "" && tz != "Local" {
		if _, err := time.LoadLocation(tz); err == nil {
			return tz
		}
	}

	if target, err := filepath.EvalSymlinks(localtime); err == nil {
		if _, name, ok := strings.Cut(target, "zoneinfo/"); ok {
			if _, err := time.LoadLocation(name); err == nil {
				return name
			}
		}
	}

	if name := time.Local.String(); name != "Local" && name != "" {
		return name
	}
	return catalog.UTCZone
}
