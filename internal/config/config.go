// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. SCALPEL_LAYOUT_LAYOUT_VIEWPORT_WIDTH.
const EnvPrefix = "SCALPEL_LAYOUT"

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Layout  LayoutConfig  `mapstructure:"layout" yaml:"layout"`
	Manager ManagerConfig `mapstructure:"manager" yaml:"manager"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// LayoutConfig configures the layout engine itself.
type LayoutConfig struct {
	ViewportWidth        float64 `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight       float64 `mapstructure:"viewport_height" yaml:"viewport_height"`
	EnableParallelLayout bool    `mapstructure:"enable_parallel_layout" yaml:"enable_parallel_layout"`
	ParallelThreshold    int     `mapstructure:"parallel_threshold" yaml:"parallel_threshold"`
	// ParallelWorkers bounds the goroutines used per fanned-out block. 0 means GOMAXPROCS.
	ParallelWorkers   int     `mapstructure:"parallel_workers" yaml:"parallel_workers"`
	EnableLayoutCache bool    `mapstructure:"enable_layout_cache" yaml:"enable_layout_cache"`
	DefaultFontSize   float64 `mapstructure:"default_font_size" yaml:"default_font_size"`
}

// ManagerConfig configures the frame-level wrapper around the engine.
type ManagerConfig struct {
	MaxLayoutTime  time.Duration `mapstructure:"max_layout_time" yaml:"max_layout_time"`
	MaxMemoryMB    int           `mapstructure:"max_memory_mb" yaml:"max_memory_mb"`
	CacheSizeLimit int           `mapstructure:"cache_size_limit" yaml:"cache_size_limit"`
	// MaxFPS paces ComputeLayout calls. 0 disables pacing.
	MaxFPS float64 `mapstructure:"max_fps" yaml:"max_fps"`
}

// NewDefaultConfig creates a new configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "scalpel-layout")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Layout --
	v.SetDefault("layout.viewport_width", 1280.0)
	v.SetDefault("layout.viewport_height", 720.0)
	v.SetDefault("layout.enable_parallel_layout", true)
	v.SetDefault("layout.parallel_threshold", 100)
	v.SetDefault("layout.parallel_workers", 0)
	v.SetDefault("layout.enable_layout_cache", true)
	v.SetDefault("layout.default_font_size", 16.0)

	// -- Manager --
	// 16ms targets 60 frames per second.
	v.SetDefault("manager.max_layout_time", "16ms")
	v.SetDefault("manager.max_memory_mb", 512)
	v.SetDefault("manager.cache_size_limit", 10000)
	v.SetDefault("manager.max_fps", 0.0)
}

// BindEnv wires environment overrides under EnvPrefix.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// NewConfigFromViper unmarshals and validates a configuration held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.Layout.Validate(); err != nil {
		return fmt.Errorf("layout configuration invalid: %w", err)
	}
	if err := c.Manager.Validate(); err != nil {
		return fmt.Errorf("manager configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the layout configuration.
func (l *LayoutConfig) Validate() error {
	if l.ViewportWidth < 0 || l.ViewportHeight < 0 {
		return fmt.Errorf("viewport dimensions must not be negative")
	}
	if l.ParallelThreshold <= 0 {
		return fmt.Errorf("parallel_threshold must be a positive integer")
	}
	if l.ParallelWorkers < 0 {
		return fmt.Errorf("parallel_workers must not be negative")
	}
	if l.DefaultFontSize <= 0 {
		return fmt.Errorf("default_font_size must be positive")
	}
	return nil
}

// Validate checks the manager configuration.
func (m *ManagerConfig) Validate() error {
	if m.MaxLayoutTime <= 0 {
		return fmt.Errorf("max_layout_time must be a positive duration")
	}
	if m.MaxMemoryMB <= 0 {
		return fmt.Errorf("max_memory_mb must be a positive integer")
	}
	if m.CacheSizeLimit <= 0 {
		return fmt.Errorf("cache_size_limit must be a positive integer")
	}
	if m.MaxFPS < 0 {
		return fmt.Errorf("max_fps must not be negative")
	}
	return nil
}
