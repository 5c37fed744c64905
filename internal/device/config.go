package device

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds configuration for opening F2FS images
type Config struct {
	AutoDetectOffset bool   `mapstructure:"auto_detect_offset" yaml:"auto_detect_offset" json:"auto_detect_offset"`
	PartitionOffset  int64  `mapstructure:"partition_offset" yaml:"partition_offset" json:"partition_offset"`
	BufferPool       bool   `mapstructure:"buffer_pool" yaml:"buffer_pool" json:"buffer_pool"`
	MaxReadBlocks    uint32 `mapstructure:"max_read_blocks" yaml:"max_read_blocks" json:"max_read_blocks"`
	Metrics          bool   `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
	LogLevel         string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	OutputFormat     string `mapstructure:"output_format" yaml:"output_format" json:"output_format"`
	VerifyNodeFooter bool   `mapstructure:"verify_node_footer" yaml:"verify_node_footer" json:"verify_node_footer"`
}

// DefaultConfig returns the configuration used when no config file or
// environment overrides are present.
func DefaultConfig() *Config {
	return &Config{
		AutoDetectOffset: true,
		PartitionOffset:  0,
		BufferPool:       true,
		MaxReadBlocks:    DefaultMaxReadBlocks,
		Metrics:          false,
		LogLevel:         "warn",
		OutputFormat:     "table",
		VerifyNodeFooter: true,
	}
}

// LoadConfig loads image configuration using Viper
func LoadConfig(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.GetViper()
	}

	v.SetConfigName("f2fs-config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.myf2fs")
	v.AddConfigPath("/etc/myf2fs")

	def := DefaultConfig()
	v.SetDefault("auto_detect_offset", def.AutoDetectOffset)
	v.SetDefault("partition_offset", def.PartitionOffset)
	v.SetDefault("buffer_pool", def.BufferPool)
	v.SetDefault("max_read_blocks", def.MaxReadBlocks)
	v.SetDefault("metrics", def.Metrics)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("output_format", def.OutputFormat)
	v.SetDefault("verify_node_footer", def.VerifyNodeFooter)

	v.SetEnvPrefix("MYF2FS")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}
