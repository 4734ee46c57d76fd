// Package config предоставляет структуры и функции для загрузки конфигурации клиента.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// Config общая структура для хранения настроек
type Config struct {
	Env     string `yaml:"env" env:"STOCKPICKS_ENV" env-default:"local"`
	API     `yaml:"api"`
	Storage `yaml:"storage"`
	Session `yaml:"session"`
	Metrics `yaml:"metrics"`
}

// API настройки подключения к backend REST API
type API struct {
	BaseURL   string        `yaml:"base_url" env:"STOCKPICKS_API_BASE_URL" env-default:"http://localhost:8080/api"`
	Timeout   time.Duration `yaml:"timeout" env:"STOCKPICKS_API_TIMEOUT" env-default:"10s"`
	RateLimit float64       `yaml:"rate_limit" env:"STOCKPICKS_API_RATE_LIMIT" env-default:"5"`
	RateBurst int           `yaml:"rate_burst" env:"STOCKPICKS_API_RATE_BURST" env-default:"10"`
}

// Storage настройки хранилища сессии
type Storage struct {
	Driver          string `yaml:"driver" env:"STOCKPICKS_STORAGE_DRIVER" env-default:"file"`
	Path            string `yaml:"path" env:"STOCKPICKS_STORAGE_PATH" env-default:".stockpicks/session.json"`
	KeyPrefix       string `yaml:"key_prefix" env:"STOCKPICKS_STORAGE_KEY_PREFIX" env-default:"stockpicks:"`
	RedisConnection `yaml:"redis_connection"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"STOCKPICKS_REDIS_ADDR" env-default:"localhost:6379"`
	Password     string        `yaml:"password" env:"STOCKPICKS_REDIS_PASSWORD"`
	User         string        `yaml:"user" env:"STOCKPICKS_REDIS_USER"`
	DB           int           `yaml:"db" env:"STOCKPICKS_REDIS_DB"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// Session настройки поведения сессии
type Session struct {
	AutoRefresh        bool          `yaml:"auto_refresh" env:"STOCKPICKS_AUTO_REFRESH" env-default:"false"`
	RefreshTimeout     time.Duration `yaml:"refresh_timeout" env-default:"15s"`
	MinRefreshInterval time.Duration `yaml:"min_refresh_interval" env-default:"30s"`
	DropExpiredTokens  bool          `yaml:"drop_expired_tokens" env:"STOCKPICKS_DROP_EXPIRED_TOKENS" env-default:"false"`
}

// Metrics настройки экспорта метрик
type Metrics struct {
	Address string `yaml:"address" env:"STOCKPICKS_METRICS_ADDR"`
}

// Load читает конфиг из YAML-файла, если путь задан, иначе только из окружения.
func Load(configPath string) (*Config, error) {
	const op = "config.Load"
	var cfg Config

	if configPath == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return &cfg, nil
	}
	if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// MustLoad загружает конфиг по пути из CONFIG_PATH и завершает процесс при ошибке.
func MustLoad() *Config {
	cfg, err := Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"API:\n"+
			"  BaseURL: %s\n"+
			"  Timeout: %s\n"+
			"  RateLimit: %g/%d\n"+
			"Storage:\n"+
			"  Driver: %s\n"+
			"  Path: %s\n"+
			"  KeyPrefix: %s\n"+
			"  Redis: %s db=%d\n"+
			"Session:\n"+
			"  AutoRefresh: %t\n"+
			"  RefreshTimeout: %s\n"+
			"  MinRefreshInterval: %s\n"+
			"  DropExpiredTokens: %t\n",
		c.Env,
		c.BaseURL,
		c.API.Timeout,
		c.RateLimit,
		c.RateBurst,
		c.Driver,
		c.Path,
		c.KeyPrefix,
		c.AddressRedis,
		c.DB,
		c.AutoRefresh,
		c.RefreshTimeout,
		c.MinRefreshInterval,
		c.DropExpiredTokens,
	)
}
