package config

import (
	"github.com/caarlos0/env/v11"
	"log"
)

type Config struct {
	AppEnv        string `env:"APP_ENV" envDefault:"development"`
	HTTPAddr      string `env:"HTTP_ADDR" envDefault:":8080"`
	PostgresDSN   string `env:"POSTGRES_DSN,notEmpty"`
	RedisAddr     string `env:"REDIS_ADDR,notEmpty"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	ExportDir     string `env:"EXPORT_DIR" envDefault:"exports"`
	ExportWorkers int    `env:"EXPORT_WORKERS" envDefault:"4"`
	JobTimeoutSec int    `env:"JOB_TIMEOUT_SEC" envDefault:"600"`
	RetentionDays int    `env:"RETENTION_DAYS" envDefault:"30"`
	CleanupAt     string `env:"CLEANUP_AT" envDefault:"03:00"`
}

func Load() Config {
	var c Config
	if err := env.Parse(&c); err != nil {
		log.Fatal(err)
	}
	return c
}
