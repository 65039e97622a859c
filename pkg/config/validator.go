package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if c.Server.Addr == "" {
		errors = append(errors, ValidationError{
			Field:   "server.addr",
			Message: "listen address is required",
		})
	}

	if c.Store.Dir == "" {
		errors = append(errors, ValidationError{
			Field:   "store.dir",
			Message: "store directory is required",
		})
	}

	if c.LLM.Model == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.model",
			Message: "model is required",
		})
	}

	if c.LLM.BaseURL != "" {
		if _, err := url.Parse(c.LLM.BaseURL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "invalid provider base URL",
			})
		}
	}

	if c.Scraper.Mode != "body" && c.Scraper.Mode != "article" {
		errors = append(errors, ValidationError{
			Field:   "scraper.mode",
			Message: fmt.Sprintf("mode must be \"body\" or \"article\", got %q", c.Scraper.Mode),
		})
	}

	if c.Scraper.TimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "scraper.timeout_seconds",
			Message: "timeout_seconds cannot be negative",
		})
	}

	if c.Scraper.RateLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "scraper.rate_limit",
			Message: "rate_limit cannot be negative",
		})
	}

	return errors
}
