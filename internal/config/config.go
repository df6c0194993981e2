// Package config loads mkvengine's runtime configuration via Viper, the
// same cobra+viper+pflag composition the cmd layer builds on, following
// jmylchreest-tvarr's internal/config wiring pattern (layered defaults,
// then config file, then environment variables, then flags) scaled down to
// the handful of knobs this engine exposes.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix every setting is bound
// under, e.g. MKVENGINE_MUX_CLUSTER_BLOCK_LIMIT.
const EnvPrefix = "MKVENGINE"

// Config holds every tunable knob this engine exposes.
type Config struct {
	Pool PoolConfig `mapstructure:"pool"`
	Mux  MuxConfig  `mapstructure:"mux"`
	Log  LogConfig  `mapstructure:"log"`
}

// PoolConfig configures the shared pool.MemoryPool.
type PoolConfig struct {
	MaxAllocations  int `mapstructure:"max_allocations"`
	DefaultCapacity int `mapstructure:"default_capacity"`
}

// MuxConfig configures the mux.Muxer.
type MuxConfig struct {
	ClusterBlockLimit int    `mapstructure:"cluster_block_limit"`
	ScratchInitialSize int   `mapstructure:"scratch_initial_size"`
	WriteCues         bool   `mapstructure:"write_cues"`
	WritingApp        string `mapstructure:"writing_app"`
	MuxingApp         string `mapstructure:"muxing_app"`
}

// LogConfig configures the logging package.
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
	Debug bool   `mapstructure:"debug"`
}

// SetDefaults installs this package's default values onto v, before any
// config file or environment variable is read.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("pool.max_allocations", 0)
	v.SetDefault("pool.default_capacity", 64*1024)

	v.SetDefault("mux.cluster_block_limit", 30)
	v.SetDefault("mux.scratch_initial_size", 4*1024)
	v.SetDefault("mux.write_cues", true)
	v.SetDefault("mux.writing_app", "mkvengine")
	v.SetDefault("mux.muxing_app", "mkvengine")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.debug", false)
}

// Load reads configuration from an optional file, environment variables
// (prefixed MKVENGINE_), and flags bound onto fs (may be nil), in that
// increasing order of precedence.
func Load(configPath string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("mkvengine")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.mkvengine")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("config: binding flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}
	return &cfg, nil
}
