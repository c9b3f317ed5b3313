// Package config loads and validates hidswatch configuration
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	_ "time/tzdata" // reference zones must resolve on hosts without a zoneinfo database

	"github.com/go-playground/validator/v10"
	hidserrors "github.com/hidswatch/hidswatch/pkg/errors"
	"github.com/hidswatch/hidswatch/pkg/logger"
	"github.com/hidswatch/hidswatch/pkg/utils"
	"github.com/spf13/viper"
)

const (
	// DirName is the per-user state directory under $HOME
	DirName = ".hidswatch"

	// DefaultTimezone is the reference zone for alert timestamps
	DefaultTimezone = "Europe/London"
)

// Config is the complete hidswatch configuration
type Config struct {
	Watch   WatchConfig   `mapstructure:"watch" yaml:"watch"`
	Alerts  AlertsConfig  `mapstructure:"alerts" yaml:"alerts"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// WatchConfig controls what is monitored
type WatchConfig struct {
	RootPath     string        `mapstructure:"root_path" yaml:"root_path" validate:"required"`
	Recursive    bool          `mapstructure:"recursive" yaml:"recursive"`
	TickInterval time.Duration `mapstructure:"tick_interval" yaml:"tick_interval" validate:"gt=0"`
}

// AlertsConfig controls how alerts are rendered and stored
type AlertsConfig struct {
	LogFile         string  `mapstructure:"log_file" yaml:"log_file" validate:"required"`
	Timezone        string  `mapstructure:"timezone" yaml:"timezone" validate:"required"`
	DebounceSeconds float64 `mapstructure:"debounce_seconds" yaml:"debounce_seconds" validate:"gte=0"`
}

// LoggingConfig controls the diagnostic log
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups" validate:"gte=0"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age" validate:"gte=0"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
	JSON       bool   `mapstructure:"json" yaml:"json"`
}

// Dir returns the per-user state directory
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DirName
	}
	return filepath.Join(home, DirName)
}

// Defaults returns every default keyed by its dotted viper key
func Defaults() map[string]interface{} {
	dir := Dir()
	return map[string]interface{}{
		"watch.root_path":         "",
		"watch.recursive":         true,
		"watch.tick_interval":     "10s",
		"alerts.log_file":         filepath.Join(dir, "hids_notifications.txt"),
		"alerts.timezone":         DefaultTimezone,
		"alerts.debounce_seconds": 1.0,
		"logging.level":           "info",
		"logging.file":            filepath.Join(dir, "logs", "hidswatch.log"),
		"logging.max_size":        100,
		"logging.max_backups":     5,
		"logging.max_age":         30,
		"logging.compress":        true,
		"logging.json":            false,
	}
}

// DefaultDocument returns the defaults nested by section, ready for YAML
func DefaultDocument() map[string]interface{} {
	doc := make(map[string]interface{})
	for key, value := range Defaults() {
		section, name, _ := strings.Cut(key, ".")
		inner, ok := doc[section].(map[string]interface{})
		if !ok {
			inner = make(map[string]interface{})
			doc[section] = inner
		}
		inner[name] = value
	}
	return doc
}

// Keys returns the recognised configuration keys, sorted
func Keys() []string {
	keys := make([]string, 0, len(Defaults()))
	for k := range Defaults() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetDefaults registers every default on v
func SetDefaults(v *viper.Viper) {
	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}
}

// Load unmarshals, normalises and validates the configuration held by v
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, hidserrors.NewConfigError("failed to decode configuration", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	for _, p := range []*string{&c.Watch.RootPath, &c.Alerts.LogFile, &c.Logging.File} {
		expanded, err := utils.ExpandPath(*p)
		if err != nil {
			return hidserrors.NewConfigError("failed to resolve path", err).WithContext("path", *p)
		}
		*p = expanded
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	return nil
}

// Validate checks field constraints and that the timezone resolves
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return hidserrors.NewConfigError("invalid configuration", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the reference timezone
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Alerts.Timezone)
	if err != nil {
		return nil, hidserrors.NewConfigError(fmt.Sprintf("unknown timezone %q", c.Alerts.Timezone), err)
	}
	return loc, nil
}

// DebounceWindow converts the configured seconds to a duration
func (c *Config) DebounceWindow() time.Duration {
	return time.Duration(c.Alerts.DebounceSeconds * float64(time.Second))
}

// LoadLogging reads only the logging section from v. It works before a
// watch root is known, so the diagnostic logger can start first.
func LoadLogging(v *viper.Viper) (LoggingConfig, error) {
	SetDefaults(v)

	lc := LoggingConfig{
		Level:      strings.ToLower(v.GetString("logging.level")),
		MaxSize:    v.GetInt("logging.max_size"),
		MaxBackups: v.GetInt("logging.max_backups"),
		MaxAge:     v.GetInt("logging.max_age"),
		Compress:   v.GetBool("logging.compress"),
		JSON:       v.GetBool("logging.json"),
	}

	file, err := utils.ExpandPath(v.GetString("logging.file"))
	if err != nil {
		return lc, hidserrors.NewConfigError("failed to resolve path", err).WithContext("path", v.GetString("logging.file"))
	}
	lc.File = file

	if err := validator.New().Struct(lc); err != nil {
		return lc, hidserrors.NewConfigError("invalid logging configuration", err)
	}
	return lc, nil
}

// LogConfig maps the logging section onto the diagnostic logger's settings.
// Verbose mode logs to stderr at debug level.
func (l LoggingConfig) LogConfig(verbose bool) *logger.LogConfig {
	cfg := &logger.LogConfig{
		Level:      l.Level,
		OutputPath: l.File,
		MaxSize:    l.MaxSize,
		MaxBackups: l.MaxBackups,
		MaxAge:     l.MaxAge,
		Compress:   l.Compress,
		EnableJSON: l.JSON,
	}
	if verbose {
		cfg.Level = "debug"
		cfg.Console = true
	}
	return cfg
}
