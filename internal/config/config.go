// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"firestige.xyz/p4calc/internal/core"
	"firestige.xyz/p4calc/internal/link"
	"firestige.xyz/p4calc/internal/log"
	"firestige.xyz/p4calc/internal/p4calc"
)

// Config is the effective configuration. Maps to the `p4calc:` root key in
// YAML; env vars use the P4CALC_ prefix (e.g. P4CALC_LINK_INTERFACE).
type Config struct {
	Log      log.LoggerConfig `mapstructure:"log" yaml:"log"`
	Link     LinkConfig       `mapstructure:"link" yaml:"link"`
	Exchange ExchangeConfig   `mapstructure:"exchange" yaml:"exchange"`
	Metrics  MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
}

// ─── Link ───

// LinkConfig selects the driver used for raw frame access.
type LinkConfig struct {
	Driver    string                 `mapstructure:"driver" yaml:"driver"` // afpacket | pcap
	Interface string                 `mapstructure:"interface" yaml:"interface"`
	Options   map[string]interface{} `mapstructure:"options" yaml:"options,omitempty"` // driver specific, see link.AFPacketOptions / link.PCAPOptions
}

// ─── Exchange ───

// ExchangeConfig holds request defaults; CLI flags override them.
type ExchangeConfig struct {
	Destination string        `mapstructure:"destination" yaml:"destination"`
	EtherType   uint16        `mapstructure:"ethertype" yaml:"ethertype"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Op          string        `mapstructure:"op" yaml:"op"`
	Seed        int32         `mapstructure:"seed" yaml:"seed"`
}

// DestinationMAC parses Destination.
func (e ExchangeConfig) DestinationMAC() (net.HardwareAddr, error) {
	mac, err := net.ParseMAC(e.Destination)
	if err != nil {
		return nil, fmt.Errorf("%w: exchange.destination: %v", core.ErrConfigInvalid, err)
	}
	if len(mac) != 6 {
		return nil, fmt.Errorf("%w: exchange.destination %q is not an Ethernet address", core.ErrConfigInvalid, e.Destination)
	}
	return mac, nil
}

// Binding returns the link binding for the configured Ethertype.
func (e ExchangeConfig) Binding() link.Binding {
	return link.Binding{EtherType: layers.EthernetType(e.EtherType)}
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `p4calc: ...`.
type configRoot struct {
	P4calc Config `mapstructure:"p4calc"`
}

// Load loads configuration from path. An empty path yields defaults plus
// environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `p4calc.` key prefix maps to `P4CALC_` in env vars via the key
	// replacer (e.g. key "p4calc.log.level" → env "P4CALC_LOG_LEVEL").
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.P4calc

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default values for configuration. AutomaticEnv only
// resolves keys viper knows about, so every leaf gets a default.
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("p4calc.log.level", "info")
	v.SetDefault("p4calc.log.pattern", log.DefaultPattern)
	v.SetDefault("p4calc.log.time", log.DefaultTimeLayout)
	v.SetDefault("p4calc.log.file.enabled", false)
	v.SetDefault("p4calc.log.file.filename", "")
	v.SetDefault("p4calc.log.file.max_size", 100)
	v.SetDefault("p4calc.log.file.max_backups", 5)
	v.SetDefault("p4calc.log.file.max_age", 30)
	v.SetDefault("p4calc.log.file.compress", false)

	// Link defaults
	v.SetDefault("p4calc.link.driver", string(link.DriverAFPacket))
	v.SetDefault("p4calc.link.interface", "eth0")

	// Exchange defaults
	v.SetDefault("p4calc.exchange.destination", "00:04:00:00:00:00")
	v.SetDefault("p4calc.exchange.ethertype", uint16(link.DefaultEtherType))
	v.SetDefault("p4calc.exchange.timeout", "1s")
	v.SetDefault("p4calc.exchange.op", string(p4calc.OpGet))
	v.SetDefault("p4calc.exchange.seed", 1234)

	// Metrics defaults
	v.SetDefault("p4calc.metrics.enabled", false)
	v.SetDefault("p4calc.metrics.listen", ":9091")
	v.SetDefault("p4calc.metrics.path", "/metrics")
}

// ValidateAndApplyDefaults validates configuration and normalizes values.
func (cfg *Config) ValidateAndApplyDefaults() error {
	// ── Log ──
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("%w: invalid log level: %s (must be trace/debug/info/warn/error)", core.ErrConfigInvalid, cfg.Log.Level)
	}
	if cfg.Log.File.Enabled && cfg.Log.File.Filename == "" {
		return fmt.Errorf("%w: log.file.filename is required when log.file.enabled=true", core.ErrConfigInvalid)
	}

	// ── Link ──
	driver, err := link.ParseDriver(cfg.Link.Driver)
	if err != nil {
		return err
	}
	cfg.Link.Driver = string(driver)
	if cfg.Link.Interface == "" {
		return fmt.Errorf("%w: link.interface is required", core.ErrConfigInvalid)
	}

	// ── Exchange ──
	if _, err := cfg.Exchange.DestinationMAC(); err != nil {
		return err
	}
	if cfg.Exchange.EtherType < 0x0600 {
		return fmt.Errorf("%w: exchange.ethertype 0x%04x is a length, not a type", core.ErrConfigInvalid, cfg.Exchange.EtherType)
	}
	if cfg.Exchange.Timeout <= 0 {
		return fmt.Errorf("%w: exchange.timeout must be positive", core.ErrConfigInvalid)
	}
	if _, err := p4calc.ParseOperation(cfg.Exchange.Op); err != nil {
		return fmt.Errorf("%w: exchange.op: %v", core.ErrConfigInvalid, err)
	}

	// ── Metrics ──
	if cfg.Metrics.Enabled {
		if cfg.Metrics.Listen == "" {
			return fmt.Errorf("%w: metrics.listen is required when metrics.enabled=true", core.ErrConfigInvalid)
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			return fmt.Errorf("%w: metrics.path must start with '/'", core.ErrConfigInvalid)
		}
	}
	return nil
}

// Dump renders cfg as YAML under the root key.
func Dump(cfg *Config) ([]byte, error) {
	out, err := yaml.Marshal(map[string]*Config{"p4calc": cfg})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return out, nil
}
