package bpm

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config configures a Pool. Grounded on the teacher's LoadConfig
// (internal/config.go): a mapstructure-tagged struct unmarshalled from a
// viper instance rather than parsed by hand.
type Config struct {
	NumFrames int    `mapstructure:"num_frames"`
	K         int    `mapstructure:"lru_k"`
	DiskPath  string `mapstructure:"disk_path"`
}

// DefaultConfig mirrors the teacher's DefaultCapacity pattern: a package
// level fallback used whenever the caller does not load one from disk.
var DefaultConfig = Config{
	NumFrames: 128,
	K:         2,
	DiskPath:  "bufpool.db",
}

// LoadConfig reads a YAML config file at path into a Config, applying
// DefaultConfig for any field viper does not find set.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("num_frames", DefaultConfig.NumFrames)
	v.SetDefault("lru_k", DefaultConfig.K)
	v.SetDefault("disk_path", DefaultConfig.DiskPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("bpm: read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("bpm: unmarshal config: %w", err)
	}
	return &cfg, nil
}
