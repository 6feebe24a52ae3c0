package config

import (
	"github.com/caarlos0/env/v11"
)

// Config holds the server settings, all overridable via environment.
type Config struct {
	Port      int    `env:"PORT" envDefault:"3000"`
	DataDir   string `env:"DATA_DIR" envDefault:"./data"`
	StaticDir string `env:"STATIC_DIR" envDefault:"."`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
