package apiclient

import (
	"errors"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config locates the order backend.
type Config struct {
	BaseURL string        `envconfig:"CONSOLE_API_URL" default:"http://localhost:8080"`
	Timeout time.Duration `envconfig:"CONSOLE_API_TIMEOUT" default:"10s"`
}

// LoadConfig reads the console settings from .env files and the environment.
func LoadConfig(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("console api url must be absolute")
	}
	if c.Timeout <= 0 {
		return errors.New("console api timeout must be positive")
	}
	return nil
}
