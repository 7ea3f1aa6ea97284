package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
)

// PluginConfig stores plugin-specific configuration as key-value pairs.
type PluginConfig map[string]any

// Config wraps viper and provides typed accessors.
type Config struct {
	v       *viper.Viper
	plugins map[string]PluginConfig

	mu       sync.RWMutex
	settings Settings
}

// Load reads a config file and prepares defaults. A missing path yields the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PRAWNLOADER")
	v.AutomaticEnv()

	setDefaults(v)

	c := &Config{
		v:       v,
		plugins: make(map[string]PluginConfig),
	}

	switch {
	case strings.TrimSpace(path) == "":
	case strings.EqualFold(filepath.Ext(path), ".ini"):
		file, err := loadINI(v, path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		loadPlugins(file, c)
	default:
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		loadViperPlugins(v, c)
	}

	settings := Settings{
		OutputDir:        v.GetString("OutputDir"),
		AudioFormat:      strings.ToLower(strings.TrimSpace(v.GetString("AudioFormat"))),
		MergeTracks:      v.GetBool("MergeTracks"),
		SplitByChapters:  v.GetBool("SplitByChapters"),
		CollectionFolder: v.GetBool("CollectionFolder"),
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c.settings = settings

	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("OutputDir", "./downloads")
	v.SetDefault("AudioFormat", FormatMP3)
	v.SetDefault("MergeTracks", false)
	v.SetDefault("SplitByChapters", false)
	v.SetDefault("CollectionFolder", true)
	v.SetDefault("WorkerCount", 4)
	v.SetDefault("QueueSize", 256)
	v.SetDefault("MemberRetries", 5)
	v.SetDefault("MemberRetryWaitMinMs", 250)
	v.SetDefault("MemberRetryWaitMaxMs", 5000)
	v.SetDefault("MemberTimeoutSec", 120)
	v.SetDefault("MemberConcurrency", 0)
	v.SetDefault("DownloadTimeout", 60)
	v.SetDefault("DownloadMaxRetries", 3)
	v.SetDefault("CheckMD5", true)
	v.SetDefault("RedirectTimeoutSec", 10)
	v.SetDefault("FFmpegPath", "ffmpeg")
	v.SetDefault("EmbedTags", true)
	v.SetDefault("CoverMaxSize", 600)
	v.SetDefault("Database", "history.db")
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFormat", "text")
	v.SetDefault("LogSource", false)
	v.SetDefault("LogDir", "./log")
	v.SetDefault("GormLogLevel", "warn")
}

// GetString returns a string value.
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt returns an int value.
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 returns a float64 value.
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool returns a bool value.
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetPluginConfig retrieves plugin-specific configuration by plugin name.
func (c *Config) GetPluginConfig(name string) (PluginConfig, bool) {
	cfg, ok := c.plugins[name]
	return cfg, ok
}

// PluginNames returns the configured plugin names.
func (c *Config) PluginNames() []string {
	if len(c.plugins) == 0 {
		return nil
	}
	names := make([]string, 0, len(c.plugins))
	for name := range c.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetPluginString returns a string value from plugin configuration.
func (c *Config) GetPluginString(plugin, key string) string {
	val, ok := c.pluginValue(plugin, key)
	if !ok {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return fmt.Sprintf("%v", val)
}

// GetPluginInt returns an int value from plugin configuration, or 0.
func (c *Config) GetPluginInt(plugin, key string) int {
	val, ok := c.pluginValue(plugin, key)
	if !ok {
		return 0
	}
	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		num, _ := strconv.Atoi(strings.TrimSpace(v))
		return num
	default:
		return 0
	}
}

// GetPluginFloat returns a float value from plugin configuration, or 0.
func (c *Config) GetPluginFloat(plugin, key string) float64 {
	val, ok := c.pluginValue(plugin, key)
	if !ok {
		return 0
	}
	switch v := val.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		num, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return num
	default:
		return 0
	}
}

// GetPluginBool returns a bool value from plugin configuration, or false.
func (c *Config) GetPluginBool(plugin, key string) bool {
	val, ok := c.pluginValue(plugin, key)
	if !ok {
		return false
	}
	switch v := val.(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true") || v == "1"
	case int:
		return v != 0
	case int64:
		return v != 0
	default:
		return false
	}
}

// PluginEnabled reports whether a plugin may be loaded. Plugins without an
// explicit "enabled" key are enabled.
func (c *Config) PluginEnabled(plugin string) bool {
	if _, ok := c.pluginValue(plugin, "enabled"); !ok {
		return true
	}
	return c.GetPluginBool(plugin, "enabled")
}

func (c *Config) pluginValue(plugin, key string) (any, bool) {
	cfg, ok := c.plugins[plugin]
	if !ok {
		return nil, false
	}
	val, ok := cfg[key]
	return val, ok
}

func loadINI(v *viper.Viper, path string) (*ini.File, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, err
	}

	for _, key := range file.Section("").Keys() {
		v.Set(key.Name(), key.Value())
	}

	return file, nil
}

const pluginPrefix = "plugins."

func loadPlugins(file *ini.File, c *Config) {
	for _, section := range file.Sections() {
		name := section.Name()
		if !strings.HasPrefix(name, pluginPrefix) {
			continue
		}
		pluginCfg := make(PluginConfig)
		for _, key := range section.Keys() {
			pluginCfg[key.Name()] = key.Value()
		}
		c.plugins[strings.TrimPrefix(name, pluginPrefix)] = pluginCfg
	}
}

func loadViperPlugins(v *viper.Viper, c *Config) {
	for name, raw := range v.GetStringMap("plugins") {
		section, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		c.plugins[name] = PluginConfig(section)
	}
}
