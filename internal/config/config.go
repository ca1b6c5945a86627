package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	Secret     string        `mapstructure:"secret"`
	Spatial    SpatialConfig `mapstructure:"spatial"`
	Voice      VoiceConfig   `mapstructure:"voice"`
}

// SpatialConfig holds the distance-to-gain curve defaults. An authority push
// may override the distances at runtime.
type SpatialConfig struct {
	MinDistance   float64 `mapstructure:"min_distance"`
	MaxDistance   float64 `mapstructure:"max_distance"`
	RolloffFactor float64 `mapstructure:"rolloff_factor"`
}

type VoiceConfig struct {
	Sensitivity    string        `mapstructure:"sensitivity"` // low | medium | high
	SampleInterval time.Duration `mapstructure:"sample_interval"`
	SilenceHold    time.Duration `mapstructure:"silence_hold"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("spatial.min_distance", 5.0)
	v.SetDefault("spatial.max_distance", 50.0)
	v.SetDefault("spatial.rolloff_factor", 1.5)
	v.SetDefault("voice.sensitivity", "medium")
	v.SetDefault("voice.sample_interval", "100ms")
	v.SetDefault("voice.silence_hold", "500ms")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
