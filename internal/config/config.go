package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/KaramelBytes/edaloom/internal/utils"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	Host string `mapstructure:"host" yaml:"host" validate:"required"`
	Port int    `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`

	// Storage
	UploadDir   string `mapstructure:"upload_dir" yaml:"upload_dir" validate:"required"`
	PlotDir     string `mapstructure:"plot_dir" yaml:"plot_dir" validate:"required"`
	MaxUploadMB int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" validate:"min=1,max=4096"`
	KeepReports int    `mapstructure:"keep_reports" yaml:"keep_reports" validate:"min=0"`

	RequestTimeoutSec int `mapstructure:"request_timeout_sec" yaml:"request_timeout_sec" validate:"min=1"`

	// Analysis
	MaxRows                int `mapstructure:"max_rows" yaml:"max_rows" validate:"min=0"`
	CategoricalMaxDistinct int `mapstructure:"categorical_max_distinct" yaml:"categorical_max_distinct" validate:"min=1"`
	BinaryMaxDistinct      int `mapstructure:"binary_max_distinct" yaml:"binary_max_distinct" validate:"min=1"`

	// Observability
	LogLevel       string   `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat      string   `mapstructure:"log_format" yaml:"log_format" validate:"oneof=console json"`
	MetricsEnabled bool     `mapstructure:"metrics_enabled" yaml:"metrics_enabled"`
	CORSOrigins    []string `mapstructure:"cors_origins" yaml:"cors_origins" validate:"dive,required"`
}

// Addr is the listen address.
func (c *Global) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MaxUploadBytes is the request body limit for uploads.
func (c *Global) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// RequestTimeout bounds a single analysis request.
func (c *Global) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

var validate = validator.New()

// Validate checks value ranges.
func (c *Global) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func defaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".edaloom", "config.yaml"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.edaloom/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		p, err := defaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. A bare PORT variable wins over EDALOOM_PORT.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("EDALOOM")
	v.AutomaticEnv()
	if err := v.BindEnv("port", "PORT", "EDALOOM_PORT"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	// Defaults
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 5000)
	v.SetDefault("upload_dir", filepath.Join("static", "uploads"))
	v.SetDefault("plot_dir", filepath.Join("static", "plots"))
	v.SetDefault("max_upload_mb", 32)
	v.SetDefault("keep_reports", 5)
	v.SetDefault("request_timeout_sec", 120)
	v.SetDefault("max_rows", 0)
	v.SetDefault("categorical_max_distinct", 10)
	v.SetDefault("binary_max_distinct", 2)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("metrics_enabled", true)
	v.SetDefault("cors_origins", []string{})

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		v.AddConfigPath(filepath.Join(home, ".edaloom"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// optional read
		_ = v.ReadInConfig()
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
