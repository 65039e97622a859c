package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"pagechat/internal/models"
)

// ErrNoAnswer means the provider replied without any usable message content,
// e.g. a moderation refusal with an empty payload.
var ErrNoAnswer = errors.New("provider returned no answer")

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Model          string
	APIKey         string
	BaseURL        string // override for the OpenAI-compatible endpoint
	SystemTemplate string
}

// ChatEngine answers questions about a scraped page through an
// OpenAI-compatible chat completion API.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

// NewWithConfig creates a new ChatEngine with the given configuration.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	if config.Model == "" {
		config.Model = "gpt-3.5-turbo"
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = "You are a helpful assistant. Answer the user's question using the scraped web page content they provide."
	}

	opts := []openai.Option{openai.WithModel(config.Model)}
	if config.APIKey != "" {
		opts = append(opts, openai.WithToken(config.APIKey))
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &ChatEngine{
		config: config,
		llm:    llm,
	}, nil
}

// Ask sends the record's full extracted text plus the question to the
// provider and returns the first completion choice's content. The page text
// goes out verbatim; no truncation or summarization.
func (ce *ChatEngine) Ask(ctx context.Context, rec models.ScrapeRecord, question string) (string, error) {
	pageContext := fmt.Sprintf(
		"Here is the content scraped from %s at %s:\n\n%s",
		rec.SourceURL, rec.CapturedAt, rec.ExtractedText,
	)

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, ce.config.SystemTemplate),
		llms.TextParts(llms.ChatMessageTypeHuman, pageContext),
		llms.TextParts(llms.ChatMessageTypeHuman, question),
	}

	response, err := ce.llm.GenerateContent(ctx, content)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}

	if response == nil || len(response.Choices) == 0 || response.Choices[0] == nil {
		return "", ErrNoAnswer
	}
	answer := response.Choices[0].Content
	if answer == "" {
		return "", ErrNoAnswer
	}
	return answer, nil
}
