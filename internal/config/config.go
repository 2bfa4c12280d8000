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
	DataDir    string        `mapstructure:"data_dir"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	SendBuffer int           `mapstructure:"send_buffer"`

	// SessionGrace is how long a disconnected session keeps its room seat
	// before the pending leave fires. RoomGrace is how long an empty room
	// survives before disposal.
	SessionGrace time.Duration `mapstructure:"session_grace"`
	RoomGrace    time.Duration `mapstructure:"room_grace"`

	// IdentifyTimeout bounds how long a fresh connection may stay silent
	// before it must have sent its identify event.
	IdentifyTimeout time.Duration `mapstructure:"identify_timeout"`

	STUNURLs []string `mapstructure:"stun_urls"`
	TURNURL  string   `mapstructure:"turn_url"`
	TURNUser string   `mapstructure:"turn_user"`
	TURNPass string   `mapstructure:"turn_pass"`
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
	v.SetDefault("data_dir", "./data")
	v.SetDefault("log_level", "info")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("session_grace", "10s")
	v.SetDefault("room_grace", "30s")
	v.SetDefault("identify_timeout", "15s")
	v.SetDefault("stun_urls", []string{"stun:stun.l.google.com:19302"})

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
