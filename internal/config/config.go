package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Resource parameter names as they appear in the metadata document and in
// the OCF_RESKEY_ environment.
const (
	ParamName        = "name"
	ParamDevice      = "device"
	ParamCacheDevice = "cache_device"

	// DefaultName is the mapping name used when none is configured.
	DefaultName = "flashcache"

	resourceEnvPrefix = "OCF_RESKEY_"
	agentEnvPrefix    = "FLASHCACHE_AGENT"
)

// Resource is the immutable per-invocation description of the managed mapping.
type Resource struct {
	Name          string
	BackingDevice string
	CacheDevice   string
}

// Config holds all agent configuration
type Config struct {
	// Resource parameters (OCF_RESKEY_*)
	Name        string `mapstructure:"name"`
	Device      string `mapstructure:"device"`
	CacheDevice string `mapstructure:"cache_device"`

	// Cluster manager meta attributes
	CRMInterval string `mapstructure:"crm-meta-interval"`

	// Host layout
	MapperDir   string `mapstructure:"mapper-dir"`
	ProcDevices string `mapstructure:"proc-devices"`
	ProcModules string `mapstructure:"proc-modules"`
	Module      string `mapstructure:"module"`

	// Convergence polling
	PollInterval time.Duration `mapstructure:"poll-interval"`

	// Durable transition runner and journal (empty disables)
	StateDir    string `mapstructure:"state-dir"`
	JournalPath string `mapstructure:"journal-path"`

	LogLevel string `mapstructure:"log-level"`
}

// Resource returns the resource parameters.
func (c *Config) Resource() Resource {
	return Resource{
		Name:          c.Name,
		BackingDevice: c.Device,
		CacheDevice:   c.CacheDevice,
	}
}

// IsProbe reports whether the invocation is a cluster manager probe: a
// monitor with a zero interval.
func (c *Config) IsProbe(action string) bool {
	return (action == "monitor" || action == "status") && c.CRMInterval == "0"
}

// Load reads configuration from the OCF environment, agent environment,
// command-line flags, config file and defaults
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault(ParamName, DefaultName)
	v.SetDefault("mapper-dir", "/dev/mapper")
	v.SetDefault("proc-devices", "/proc/devices")
	v.SetDefault("proc-modules", "/proc/modules")
	v.SetDefault("module", "flashcache")
	v.SetDefault("poll-interval", time.Second)
	v.SetDefault("state-dir", "/run/flashcache-agent")
	v.SetDefault("journal-path", "/var/lib/flashcache-agent/journal.db")
	v.SetDefault("log-level", "info")

	// Resource parameters keep the framework's exact, case-sensitive names
	for _, key := range []string{ParamName, ParamDevice, ParamCacheDevice} {
		if err := v.BindEnv(key, resourceEnvPrefix+key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	if err := v.BindEnv("crm-meta-interval", resourceEnvPrefix+"CRM_meta_interval"); err != nil {
		return nil, fmt.Errorf("failed to bind crm-meta-interval: %w", err)
	}

	// Environment variables (will be FLASHCACHE_AGENT_POLL_INTERVAL, etc.)
	v.SetEnvPrefix(agentEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/flashcache-agent")

	// Read config file (ignore if not found)
	_ = v.ReadInConfig()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks agent settings for errors. Resource parameters are checked
// by the validation package so that they map to the configured-error status.
func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll-interval must be positive")
	}
	if c.MapperDir == "" {
		return fmt.Errorf("mapper-dir cannot be empty")
	}
	if c.Module == "" {
		return fmt.Errorf("module cannot be empty")
	}
	return nil
}
