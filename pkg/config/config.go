package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Store struct {
		Dir string `yaml:"dir"`
	} `yaml:"store"`

	LLM struct {
		Model   string `yaml:"model"`
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"-"` // supplied via OPENAI_API_KEY only
	} `yaml:"llm"`

	Scraper struct {
		Mode           string  `yaml:"mode"`
		TimeoutSeconds int     `yaml:"timeout_seconds"`
		RateLimit      float64 `yaml:"rate_limit"`
		UserAgent      string  `yaml:"user_agent"`
	} `yaml:"scraper"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/pagechat/config.yaml"),
			"/etc/pagechat/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
	if config.Store.Dir == "" {
		config.Store.Dir = "scraped_data"
	}
	if config.LLM.Model == "" {
		config.LLM.Model = "gpt-3.5-turbo"
	}
	if config.Scraper.Mode == "" {
		config.Scraper.Mode = "body"
	}
	if config.Scraper.UserAgent == "" {
		config.Scraper.UserAgent = "pagechat/1.0"
	}
}

func mergeWithEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Addr = ":" + port
	}
	if dir := os.Getenv("PAGECHAT_DATA_DIR"); dir != "" {
		config.Store.Dir = dir
	}
}
