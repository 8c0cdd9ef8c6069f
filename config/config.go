package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultHomeName is the directory under the user's home that holds all
// diskcli state.
const DefaultHomeName = ".diskcli"

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for diskcli.
type Config struct {
	Home    string        `mapstructure:"home" validate:"required"`
	Backend BackendConfig `mapstructure:"backend"`
	List    ListConfig    `mapstructure:"list"`
	Log     LogConfig     `mapstructure:"log"`
}

// BackendConfig holds remote storage configuration.
type BackendConfig struct {
	Endpoint string        `mapstructure:"endpoint" validate:"required,url"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// ListConfig holds listing output configuration.
type ListConfig struct {
	// NameWidth fixes the name column width; 0 sizes it to the widest name.
	NameWidth int `mapstructure:"name_width" validate:"min=0,max=200"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"endpoint":   "backend.endpoint",
	"timeout":    "backend.timeout",
	"name-width": "list.name_width",
	"log-level":  "log.level",
	"log-format": "log.format",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		// Use custom mapping if it exists, otherwise use flag name as-is
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// DefaultHome returns ~/.diskcli, or .diskcli in the working directory when
// the user's home cannot be determined.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultHomeName
	}
	return filepath.Join(home, DefaultHomeName)
}

// setDefaults configures default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("home", DefaultHome())

	v.SetDefault("backend.endpoint", "http://localhost:5708")
	v.SetDefault("backend.timeout", "30s")

	v.SetDefault("list.name_width", 0) // 0 means fit the widest name

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
//
// Without config files, config.yaml is looked up in the home directory.
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Bind environment variables and flags first so that the home
	// directory used for the config lookup honors them.
	v.SetEnvPrefix("DISKCLI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		bindFlags(v, flags)
	}

	// 3. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFiles[0], err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("merge config file %s: %w", cf, err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(ExpandHome(v.GetString("home")))

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 4. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Home = ExpandHome(cfg.Home)

	// 5. Validate using go-playground/validator
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
