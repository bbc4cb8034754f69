// Package config загружает настройки flowgraph.
//
// Порядок: значения по умолчанию → YAML файл (если задан) → переменные окружения.
//
//	server:
//	  addr: ":8080"
//	storage:
//	  driver: postgres        # postgres | sqlite
//	  dsn: postgresql://...
//	mq:
//	  url: amqp://...         # пусто — события в RabbitMQ не публикуются
//	simulation:
//	  step_interval: 500ms
//	  max_delay: 1s
//	  max_expression_length: 4096
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Переменные окружения.
const (
	EnvAddr          = "FLOWGRAPH_ADDR"
	EnvPort          = "API_PORT"
	EnvDriver        = "FLOWGRAPH_STORAGE_DRIVER"
	EnvDSN           = "DB_URL"
	EnvMQURL         = "RABBITMQ_URL"
	EnvStepInterval  = "FLOWGRAPH_STEP_INTERVAL"
	EnvMaxDelay      = "FLOWGRAPH_MAX_DELAY"
	EnvMaxExprLength = "FLOWGRAPH_MAX_EXPRESSION_LENGTH"
)

// ErrInvalidConfig — некорректное значение настройки.
var ErrInvalidConfig = errors.New("invalid config")

// Config — настройки сервера и симуляции.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	MQ         MQConfig         `yaml:"mq"`
	Simulation SimulationConfig `yaml:"simulation"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type MQConfig struct {
	URL string `yaml:"url"`
}

type SimulationConfig struct {
	StepInterval        time.Duration `yaml:"step_interval"`
	MaxDelay            time.Duration `yaml:"max_delay"`
	MaxExpressionLength int           `yaml:"max_expression_length"`
}

// Default возвращает настройки по умолчанию.
func Default() Config {
	return Config{
		Server:  ServerConfig{Addr: ":8080"},
		Storage: StorageConfig{Driver: "postgres"},
		Simulation: SimulationConfig{
			StepInterval:        500 * time.Millisecond,
			MaxDelay:            time.Second,
			MaxExpressionLength: 4096,
		},
	}
}

// Load читает настройки. Пустой path — только значения по умолчанию и окружение.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv переопределяет значения из окружения.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPort); ok && v != "" {
		c.Server.Addr = ":" + strings.TrimPrefix(v, ":")
	}
	if v, ok := lookup(EnvAddr); ok && v != "" {
		c.Server.Addr = v
	}
	if v, ok := lookup(EnvDriver); ok && v != "" {
		c.Storage.Driver = v
	}
	if v, ok := lookup(EnvDSN); ok {
		c.Storage.DSN = v
	}
	if v, ok := lookup(EnvMQURL); ok {
		c.MQ.URL = v
	}

	if v, ok := lookup(EnvStepInterval); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvStepInterval, err)
		}
		c.Simulation.StepInterval = d
	}
	if v, ok := lookup(EnvMaxDelay); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvMaxDelay, err)
		}
		c.Simulation.MaxDelay = d
	}
	if v, ok := lookup(EnvMaxExprLength); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvMaxExprLength, err)
		}
		c.Simulation.MaxExpressionLength = n
	}
	return nil
}

// Validate проверяет значения.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("%w: storage.driver must be postgres or sqlite, got %q", ErrInvalidConfig, c.Storage.Driver)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr is empty", ErrInvalidConfig)
	}
	if c.Simulation.StepInterval <= 0 {
		return fmt.Errorf("%w: simulation.step_interval must be positive", ErrInvalidConfig)
	}
	if c.Simulation.MaxDelay < 0 {
		return fmt.Errorf("%w: simulation.max_delay must not be negative", ErrInvalidConfig)
	}
	if c.Simulation.MaxExpressionLength <= 0 {
		return fmt.Errorf("%w: simulation.max_expression_length must be positive", ErrInvalidConfig)
	}
	return nil
}
