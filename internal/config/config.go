// Package config предоставляет структуры и функции для парсинга и загрузки конфига.
// Разрешение конфигурации выполняется один раз на старте и падает громко:
// отсутствующее обязательное значение — типизированная ошибка, а не молчаливая
// подстановка плейсхолдера в точке использования.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек.
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string `yaml:"migrations_path" env-default:"./migrations"`
	RedisConnection         `yaml:"redis_connection"`
	RabbitConnection        `yaml:"rabbit_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	Billing                 `yaml:"billing"`
}

// HTTPServer структура для настройки сервера.
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:"0.0.0.0:8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"5s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis.
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// RabbitConnection структура для настройки подключения к RabbitMQ.
type RabbitConnection struct {
	URLRabbit  string        `yaml:"urlrabbit"`
	Retries    int           `yaml:"retries" env-default:"5"`
	RetryDelay time.Duration `yaml:"retry_delay" env-default:"3s"`
}

// JWTToken структура для работы с jwt-токеном и сессиями.
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// Billing структура с настройками обработки биллинговых событий.
type Billing struct {
	WebhookSecret  string        `yaml:"webhook_secret" env:"BILLING_WEBHOOK_SECRET"`
	FallbackWindow time.Duration `yaml:"fallback_window" env-default:"720h"` // 30 дней, если провайдер не прислал expiration_at_ms
}

// ConfigError описывает отсутствующее обязательное значение конфигурации.
type ConfigError struct {
	Field string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: required field %q is not set", e.Field)
}

// Load загружает конфиг по пути из CONFIG_PATH и проверяет обязательные поля.
func Load() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		return nil, &ConfigError{Field: "CONFIG_PATH"}
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file %s does not exist", configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет обязательные значения конфига.
func (c *Config) Validate() error {
	switch {
	case c.StorageConnectionString == "":
		return &ConfigError{Field: "storage_connection_string"}
	case c.AddressRedis == "":
		return &ConfigError{Field: "redis_connection.addressredis"}
	case c.JWTSecretKey == "":
		return &ConfigError{Field: "jwttoken.jwt_secret_key"}
	case c.WebhookSecret == "":
		return &ConfigError{Field: "billing.webhook_secret"}
	}
	return nil
}

// MustLoad загружает конфиг и завершает процесс при любой ошибке.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}
