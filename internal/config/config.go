// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string            `yaml:"env" env:"ENV" env-default:"development"`
	StorageConnectionString string            `yaml:"storage_connection_string" env:"DATABASE_URL"`
	Plans                   map[string]string `yaml:"plans"` // план подписки -> price ID провайдера
	Stripe                  `yaml:"stripe"`
	RedisConnection         `yaml:"redis_connection"`
	RabbitConnection        `yaml:"rabbit_connection"`
	HTTPServer              `yaml:"http_server"`
}

// Stripe структура для настройки клиента платежного провайдера.
// Ключи передаются в клиент при создании, глобальное состояние SDK не используется.
type Stripe struct {
	SecretKey     string `yaml:"secret_key" env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `yaml:"webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"30s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// RabbitConnection структура для настройки подключения к RabbitMQ.
// Пустой URL отключает публикацию событий о выдаче и отзыве доступа.
type RabbitConnection struct {
	URL        string        `yaml:"url"`
	Retries    int           `yaml:"retries" env-default:"3"`
	RetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// IsDevelopment сообщает, запущен ли сервис в окружении разработки.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// MustLoad функция для загрузки конфига, путь берётся из переменной CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}
