package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

type Config struct {
	LogLevel string  `yaml:"log-level" env-default:"info"`
	HTTPPort string  `yaml:"http-port" env-default:"5000"`
	Engine   Engine  `yaml:"engine"`
	Storage  Storage `yaml:"storage"`
	Redis    Redis   `yaml:"redis"`
}

type Engine struct {
	// BinPath overrides the default location next to the server binary.
	BinPath string        `yaml:"bin-path" env-default:""`
	Timeout time.Duration `yaml:"timeout" env-default:"30s"`
}

type Storage struct {
	Type string `yaml:"type" env-default:"memory"`
}

type Redis struct {
	Host string `yaml:"host" env-default:"localhost"`
	Port string `yaml:"port" env-default:"6379"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
