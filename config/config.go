package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the gateway and client configuration. Values load from an
// optional YAML file with ${VAR} expansion, then environment variables
// override the file.
type Config struct {
	Server struct {
		Port      string        `yaml:"port"`
		JWTSecret string        `yaml:"jwt_secret"`
		TokenTTL  time.Duration `yaml:"token_ttl"`
	} `yaml:"server"`

	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongo"`

	OpenAI struct {
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url"`
		Model   string `yaml:"model"`
	} `yaml:"openai"`

	Gateway struct {
		// BaseURL is where the CLI client finds the gateway.
		BaseURL string `yaml:"base_url"`
		Token   string `yaml:"token"`
	} `yaml:"gateway"`
}

// Load reads configuration. A missing file is not an error; environment
// variables alone are a valid configuration.
func Load(path string) (*Config, error) {
	// Local development keys live in .env; absence is fine.
	godotenv.Load()

	cfg := &Config{}
	cfg.applyDefaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			expanded := os.ExpandEnv(string(raw))
			if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Server.JWTSecret = v
	}
	if v := os.Getenv("MONGODB_URI"); v != "" {
		c.Mongo.URI = v
	}
	if v := os.Getenv("MONGODB_DATABASE"); v != "" {
		c.Mongo.Database = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.OpenAI.BaseURL = v
	}
	if v := os.Getenv("OPENAI_REALTIME_MODEL"); v != "" {
		c.OpenAI.Model = v
	}
	if v := os.Getenv("COZYCHAT_GATEWAY_URL"); v != "" {
		c.Gateway.BaseURL = v
	}
	if v := os.Getenv("COZYCHAT_TOKEN"); v != "" {
		c.Gateway.Token = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.TokenTTL == 0 {
		c.Server.TokenTTL = 7 * 24 * time.Hour
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "cozychat"
	}
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if c.Gateway.BaseURL == "" {
		c.Gateway.BaseURL = "http://localhost:8080"
	}
}
