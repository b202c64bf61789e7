// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"firestige.xyz/shipswitch/internal/core"
)

// GlobalConfig represents the top-level static configuration.
// Maps to the `shipswitch:` root key in YAML.
type GlobalConfig struct {
	Log        LogConfig     `mapstructure:"log"`
	Metrics    MetricsConfig `mapstructure:"metrics"`
	Backend    BackendConfig `mapstructure:"backend"`
	Capture    CaptureConfig `mapstructure:"capture"`
	PolicyFile string        `mapstructure:"policy_file"` // relative paths resolve against the config file
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level"`   // trace / debug / info / warn / error
	Format  string           `mapstructure:"format"`  // json / text / pattern
	Pattern string           `mapstructure:"pattern"` // used by format=pattern
	Time    string           `mapstructure:"time"`    // Go time layout for %time
	Outputs LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains log output destinations besides stdout.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`  // MB
	MaxAgeDays int  `mapstructure:"max_age_days"` // Days
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Backend ───

// Backend types.
const (
	BackendAFPacket = "afpacket"
	BackendMemory   = "memory"
)

// BackendConfig selects and sizes the packet I/O backend.
type BackendConfig struct {
	Type         string `mapstructure:"type"`           // afpacket | memory
	FrameSize    int    `mapstructure:"frame_size"`     // bytes per buffer chunk
	NumFrames    int    `mapstructure:"num_frames"`     // chunks per port
	SnapLen      int    `mapstructure:"snap_len"`       // afpacket capture length
	BufferSizeMB int    `mapstructure:"buffer_size_mb"` // afpacket ring size
	PollTimeout  string `mapstructure:"poll_timeout"`   // "0" blocks until traffic

	// PollTimeoutDuration is PollTimeout parsed by ValidateAndApplyDefaults.
	PollTimeoutDuration time.Duration `mapstructure:"-"`
}

// ─── Capture ───

// CaptureConfig configures the pcap tap on transmitted frames.
type CaptureConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	SnapLen int    `mapstructure:"snap_len"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `shipswitch: ...`.
type configRoot struct {
	Shipswitch GlobalConfig `mapstructure:"shipswitch"`
}

// Load loads configuration from file.
// The YAML file uses `shipswitch:` as root key; env vars use the SHIPSWITCH_ prefix (e.g., SHIPSWITCH_LOG_LEVEL).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()

	// Set config file path
	v.SetConfigFile(path)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %v", core.ErrConfigInvalid, err)
	}

	// Environment variable overrides.
	// The `shipswitch.` key prefix maps to `SHIPSWITCH_` via the key replacer.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Unmarshal into wrapper → extract inner GlobalConfig
	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal config: %v", core.ErrConfigInvalid, err)
	}
	cfg := root.Shipswitch

	if cfg.PolicyFile != "" && !filepath.IsAbs(cfg.PolicyFile) {
		cfg.PolicyFile = filepath.Join(filepath.Dir(path), cfg.PolicyFile)
	}

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use the "shipswitch." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("shipswitch.log.level", "info")
	v.SetDefault("shipswitch.log.format", "text")
	v.SetDefault("shipswitch.log.pattern", DefaultLogPattern)
	v.SetDefault("shipswitch.log.time", DefaultLogTime)
	v.SetDefault("shipswitch.log.outputs.file.enabled", false)
	v.SetDefault("shipswitch.log.outputs.file.path", "/var/log/shipswitch/shipswitch.log")
	v.SetDefault("shipswitch.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("shipswitch.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("shipswitch.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("shipswitch.log.outputs.file.rotation.compress", true)

	// Metrics defaults
	v.SetDefault("shipswitch.metrics.enabled", true)
	v.SetDefault("shipswitch.metrics.listen", ":9092")
	v.SetDefault("shipswitch.metrics.path", "/metrics")

	// Backend defaults
	v.SetDefault("shipswitch.backend.type", BackendAFPacket)
	v.SetDefault("shipswitch.backend.frame_size", DefaultFrameSize)
	v.SetDefault("shipswitch.backend.num_frames", DefaultNumFrames)
	v.SetDefault("shipswitch.backend.snap_len", DefaultFrameSize)
	v.SetDefault("shipswitch.backend.buffer_size_mb", 2)
	v.SetDefault("shipswitch.backend.poll_timeout", "1s")

	// Capture defaults
	v.SetDefault("shipswitch.capture.enabled", false)
	v.SetDefault("shipswitch.capture.path", "/var/lib/shipswitch/tx.pcap")
	v.SetDefault("shipswitch.capture.snap_len", 65535)

	v.SetDefault("shipswitch.policy_file", "policy.toml")
}

// Defaults shared with callers that build a config without a file.
const (
	DefaultLogPattern = "%time [%level] %caller: %msg%field\n"
	DefaultLogTime    = "2006-01-02 15:04:05.000"
	DefaultFrameSize  = 2048
	DefaultNumFrames  = 4096
)

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	if err := cfg.Log.Validate(); err != nil {
		return err
	}

	// ── Metrics ──
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return fmt.Errorf("%w: metrics.listen is required when metrics.enabled=true", core.ErrConfigInvalid)
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	// ── Backend ──
	if err := cfg.Backend.validate(); err != nil {
		return err
	}

	// ── Capture ──
	if cfg.Capture.Enabled && cfg.Capture.Path == "" {
		return fmt.Errorf("%w: capture.path is required when capture.enabled=true", core.ErrConfigInvalid)
	}
	if cfg.Capture.SnapLen <= 0 {
		cfg.Capture.SnapLen = 65535
	}

	// ── Policy ──
	if cfg.PolicyFile == "" {
		return fmt.Errorf("%w: policy_file is required", core.ErrConfigInvalid)
	}
	if _, err := os.Stat(cfg.PolicyFile); err != nil {
		return fmt.Errorf("%w: policy_file: %v", core.ErrConfigInvalid, err)
	}

	return nil
}

// Validate checks level and format and fills pattern/time defaults.
func (lc *LogConfig) Validate() error {
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(lc.Level)] {
		return fmt.Errorf("%w: invalid log level: %s (must be trace/debug/info/warn/error)", core.ErrConfigInvalid, lc.Level)
	}
	switch strings.ToLower(lc.Format) {
	case "json", "text", "pattern":
	default:
		return fmt.Errorf("%w: invalid log format: %s (must be json/text/pattern)", core.ErrConfigInvalid, lc.Format)
	}
	if lc.Pattern == "" {
		lc.Pattern = DefaultLogPattern
	}
	if lc.Time == "" {
		lc.Time = DefaultLogTime
	}
	if lc.Outputs.File.Enabled && lc.Outputs.File.Path == "" {
		return fmt.Errorf("%w: log.outputs.file.path is required when file output is enabled", core.ErrConfigInvalid)
	}
	return nil
}

func (bc *BackendConfig) validate() error {
	switch bc.Type {
	case BackendAFPacket, BackendMemory:
	default:
		return fmt.Errorf("%w: unsupported backend.type: %s (must be afpacket/memory)", core.ErrConfigInvalid, bc.Type)
	}
	if bc.FrameSize <= 0 {
		bc.FrameSize = DefaultFrameSize
	}
	if bc.NumFrames <= 0 {
		bc.NumFrames = DefaultNumFrames
	}
	if bc.SnapLen <= 0 || bc.SnapLen > bc.FrameSize {
		bc.SnapLen = bc.FrameSize
	}
	if bc.BufferSizeMB <= 0 {
		bc.BufferSizeMB = 2
	}

	timeout := bc.PollTimeout
	if timeout == "" {
		timeout = "0"
	}
	d, err := time.ParseDuration(timeout)
	if err != nil || d < 0 {
		return fmt.Errorf("%w: invalid backend.poll_timeout: %q", core.ErrConfigInvalid, bc.PollTimeout)
	}
	bc.PollTimeoutDuration = d
	return nil
}
