package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env         string        `yaml:"env" env-default:"local"`
	DatabaseDSN string        `yaml:"database_dsn" env:"DATABASE_URL" env-required:"true"`
	HTTPServer  HTTPServer    `yaml:"http_server"`
	Auth        AuthConfig    `yaml:"auth"`
	WS          WSConfig      `yaml:"ws"`
	Uploads     UploadsConfig `yaml:"uploads"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env-default:"localhost:8082"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

type AuthConfig struct {
	Secret   string        `yaml:"secret" env:"AUTH_SECRET" env-required:"true"`
	TokenTTL time.Duration `yaml:"token_ttl" env-default:"24h"`
}

type WSConfig struct {
	// SendRateLimit caps mutating client events (send-message, mark-as-read)
	// per connection, events per minute.
	SendRateLimit int `yaml:"send_rate_limit" env-default:"120"`
	SendBurst     int `yaml:"send_burst" env-default:"20"`
}

type UploadsConfig struct {
	MaxFileSize   int64 `yaml:"max_file_size" env-default:"10485760"`
	PresignTTLSec int   `yaml:"presign_ttl_sec" env-default:"300"`
}

func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exist: %s", configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config %s", err)
	}

	return &cfg
}
