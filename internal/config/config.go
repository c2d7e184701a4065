package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"gigmarket/pkg/config"
)

// WorkerConfig tunes the MQ consumers.
type WorkerConfig struct {
	DedupTTL   time.Duration `yaml:"dedup_ttl"`
	RetryTTL   time.Duration `yaml:"retry_ttl"`
	MaxRetries int64         `yaml:"max_retries"`
	HTTPPort   string        `yaml:"http_port"`
}

type Config struct {
	Env    string              `yaml:"env"`
	DB     config.DBConfig     `yaml:"db"`
	MQ     config.MQConfig     `yaml:"mq"`
	Redis  config.RedisConfig  `yaml:"redis"`
	JWT    config.JWTConfig    `yaml:"jwt"`
	Server config.ServerConfig `yaml:"server"`
	Otel   config.OtelConfig   `yaml:"otel"`
	Outbox config.OutboxConfig `yaml:"outbox"`
	Worker WorkerConfig        `yaml:"worker"`
}

// Load reads the configuration or exits. With CONFIG_DIR set the layered
// base/<env>/secrets files are used, otherwise CONFIG_FILE (default
// config.yaml).
func Load() *Config {
	var (
		cfg *Config
		err error
	)
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		cfg, err = LoadDir(config.GetConfigEnv(), dir)
	} else {
		cfg, err = LoadFile(config.GetEnv("CONFIG_FILE", "config.yaml"))
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return finish(&cfg), nil
}

func LoadDir(env, dir string) (*Config, error) {
	var cfg Config
	if err := config.Decode(env, dir, &cfg); err != nil {
		return nil, err
	}
	if cfg.Env == "" {
		cfg.Env = env
	}
	return finish(&cfg), nil
}

func finish(cfg *Config) *Config {
	// 环境变量覆盖
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideOtelFromEnv(&cfg.Otel)
	if env := os.Getenv("APP_ENV"); env != "" {
		cfg.Env = env
	}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Env == "" {
		cfg.Env = "production"
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	if cfg.Worker.HTTPPort == "" {
		cfg.Worker.HTTPPort = ":8085"
	}
	if cfg.Worker.DedupTTL == 0 {
		cfg.Worker.DedupTTL = 24 * time.Hour
	}
	if cfg.Worker.RetryTTL == 0 {
		cfg.Worker.RetryTTL = time.Hour
	}
	if cfg.Worker.MaxRetries == 0 {
		cfg.Worker.MaxRetries = 3
	}
}
