// Package config loads inkpage settings from a YAML file and INKPAGE_
// environment variables, and reloads them when the file changes.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tsawler/inkpage/cachedir"
	"github.com/tsawler/inkpage/htmldoc"
	"github.com/tsawler/inkpage/layout"
	"github.com/tsawler/inkpage/logging"
)

// EnvPrefix prefixes environment overrides, e.g. INKPAGE_LAYOUT_FONT_SIZE.
const EnvPrefix = "INKPAGE"

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	v         *viper.Viper
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
	log       *logging.Logger
}

// NewManager creates a config manager and loads the initial config. An
// empty cfgFile searches ./config.yaml and $HOME/.inkpage/config.yaml; a
// missing file is not an error.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{v: viper.New(), log: logging.Noop()}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	v := cm.v
	for key, value := range defaultKeys(DefaultConfig()) {
		v.SetDefault(key, value)
	}

	// Environment variables with INKPAGE_ prefix; nested keys use "_".
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.inkpage")
	}

	// Try to read config file (not required)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// defaultKeys flattens defaults into "section.field" keys, so every leaf
// is known to viper and can be overridden from the environment.
func defaultKeys(defaults *Config) map[string]any {
	data, err := yaml.Marshal(defaults)
	if err != nil {
		return nil
	}
	var tree map[string]map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil
	}
	keys := make(map[string]any)
	for section, fields := range tree {
		for field, value := range fields {
			keys[section+"."+field] = value
		}
	}
	return keys
}

// load parses the current viper state into a Config.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Get returns the current configuration.
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ConfigFile returns the file the config was read from, if any.
func (cm *Manager) ConfigFile() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// SetLogger sets the logger that reports reloads. The logger is usually
// built from the config itself, so it is set after NewManager.
func (cm *Manager) SetLogger(l *logging.Logger) {
	if l == nil {
		l = logging.Noop()
	}
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.log = l.WithComponent("config")
}

func (cm *Manager) logger() *logging.Logger {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.log
}

// WatchConfig enables hot-reloading. An edit that fails to parse or
// validate keeps the previous config and is logged.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		if err := cm.v.ReadInConfig(); err != nil {
			cm.logger().Warn("config reload rejected, keeping previous config", "file", e.Name, "error", err)
			return
		}
		cm.reload()
	})
	cm.v.WatchConfig()
}

func (cm *Manager) reload() error {
	cfg, err := cm.load()
	if err != nil {
		cm.logger().Warn("config reload rejected, keeping previous config",
			"file", cm.v.ConfigFileUsed(), "error", err)
		return err
	}

	cm.mu.Lock()
	cm.config = cfg
	callbacks := make([]func(*Config), len(cm.callbacks))
	copy(callbacks, cm.callbacks)
	cm.mu.Unlock()

	cm.logger().Info("config reloaded", "file", cm.v.ConfigFileUsed())
	for _, fn := range callbacks {
		fn(cfg)
	}
	return nil
}

// Validate checks values that have no safe fallback.
func (c *Config) Validate() error {
	if err := c.LayoutParams().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := c.CatalogTimeout(); err != nil {
		return fmt.Errorf("config: catalog timeout: %w", err)
	}
	return nil
}

// LayoutParams converts the layout section.
func (c *Config) LayoutParams() layout.Params {
	l := c.Layout
	return layout.Params{
		ScreenWidth:      l.ScreenWidth,
		ScreenHeight:     l.ScreenHeight,
		MarginTop:        l.MarginTop,
		MarginRight:      l.MarginRight,
		MarginBottom:     l.MarginBottom,
		MarginLeft:       l.MarginLeft,
		FontFace:         l.FontFace,
		FontSize:         l.FontSize,
		LineSpacing:      l.LineSpacing,
		ParagraphSpacing: l.ParagraphSpacing,
		ListIndent:       l.ListIndent,
	}
}

// Strategy returns the cache fingerprint strategy.
func (c *Config) Strategy() cachedir.Strategy {
	return cachedir.ParseStrategy(c.Cache.Fingerprint)
}

// Exclusion returns the EPUB navigation exclusion mode.
func (c *Config) Exclusion() htmldoc.NavigationExclusionMode {
	switch strings.ToLower(c.Reader.ExcludeNavigation) {
	case "explicit":
		return htmldoc.NavigationExclusionExplicit
	case "standard":
		return htmldoc.NavigationExclusionStandard
	default:
		return htmldoc.NavigationExclusionNone
	}
}

// CatalogTimeout parses the per-request timeout. Empty means zero.
func (c *Config) CatalogTimeout() (time.Duration, error) {
	if c.Catalog.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Catalog.Timeout)
}

// NewsDir returns the sync destination, relative to the library root
// unless absolute.
func (c *Config) NewsDir() string {
	if filepath.IsAbs(c.Library.NewsDir) {
		return c.Library.NewsDir
	}
	return filepath.Join(c.Library.Root, c.Library.NewsDir)
}

// Logger builds the logger described by the log section.
func (c *Config) Logger(w io.Writer) *logging.Logger {
	level := logging.ParseLevel(c.Log.Level)
	if strings.EqualFold(c.Log.Format, "json") {
		return logging.NewJSON(w, level)
	}
	return logging.NewText(w, level)
}

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() slog.Level {
	return logging.ParseLevel(c.Log.Level)
}

// WriteDefault writes the default configuration to path.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# inkpage configuration
# Every key can be overridden with an INKPAGE_ environment variable,
# e.g. INKPAGE_LAYOUT_FONT_SIZE=20.

`)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(header, data...), 0o644)
}
