package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// global configuration structure
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Nats     NatsConfig     `mapstructure:"nats"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Chat     ChatConfig     `mapstructure:"chat"`
}

type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Charset  string `mapstructure:"charset"`
}

// NATS bridge settings; disabled means all fan-out stays in-process.
type NatsConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	Stream        string `mapstructure:"stream"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// logging configuration
type LoggerConfig struct {
	Directory string            `mapstructure:"directory"`
	Level     string            `mapstructure:"level"`
	Rotation  LogRotationConfig `mapstructure:"rotation"`
}

// log rotation settings
type LogRotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

type ChatConfig struct {
	DefaultDestructSeconds int `mapstructure:"default_destruct_seconds"`
	SendQueueSize          int `mapstructure:"send_queue_size"`
	MaxMessageBytes        int `mapstructure:"max_message_bytes"`
	PongWaitSeconds        int `mapstructure:"pong_wait_seconds"`
}

var cfg *Config

func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg = &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return cfg, nil
}

func Get() *Config {
	if cfg == nil {
		cfg, _ = Load("")
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", "127.0.0.1:3000")

	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.username", "ember")
	v.SetDefault("database.dbname", "ember")
	v.SetDefault("database.charset", "utf8mb4")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.stream", "EMBER")
	v.SetDefault("nats.subject_prefix", "ember")

	v.SetDefault("logger.directory", "logs")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.rotation.max_size", 100)
	v.SetDefault("logger.rotation.max_backups", 7)
	v.SetDefault("logger.rotation.max_age", 30)
	v.SetDefault("logger.rotation.compress", true)

	v.SetDefault("chat.default_destruct_seconds", 30)
	v.SetDefault("chat.send_queue_size", 64)
	v.SetDefault("chat.max_message_bytes", 16384)
	v.SetDefault("chat.pong_wait_seconds", 60)
}
