package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/xhad/screener/internal/models"
)

// ErrNoPassages is returned when a question is asked without any résumé context.
var ErrNoPassages = errors.New("no resume passages to answer from")

// ChatConfig represents the configuration for the screening assistant.
type ChatConfig struct {
	Provider        string
	Model           string
	BaseURL         string
	APIKey          string
	Temperature     float64
	MaxTokens       int
	SystemTemplate  string
	ContextTemplate string
}

const defaultSystemTemplate = "You are a recruiting assistant. Answer the recruiter's question using only the résumés provided. " +
	"Refer to candidates by name. If the résumés do not contain the answer, say so."

const defaultContextTemplate = "Résumés:\n%s\nQuestion: %s"

func (c *ChatConfig) applyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderOllama
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 2000
	}
	if c.SystemTemplate == "" {
		c.SystemTemplate = defaultSystemTemplate
	}
	if c.ContextTemplate == "" {
		c.ContextTemplate = defaultContextTemplate
	}
}

// NewChatModel opens the configured chat backend.
func NewChatModel(config ChatConfig) (llms.Model, error) {
	config.applyDefaults()

	switch config.Provider {
	case ProviderOllama:
		if config.Model == "" {
			config.Model = "qwen2.5"
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434" // Default Ollama URL
		}
		llm, err := ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize LLM: %w", err)
		}
		return llm, nil
	case ProviderOpenAI:
		opts := []openai.Option{openai.WithToken(config.APIKey)}
		if config.Model != "" {
			opts = append(opts, openai.WithModel(config.Model))
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize LLM: %w", err)
		}
		return llm, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", config.Provider)
	}
}

// Assistant answers recruiter questions about retrieved résumés. It does not
// rank or score candidates.
type Assistant struct {
	config ChatConfig
	llm    llms.Model
}

func NewAssistant(model llms.Model, config ChatConfig) (*Assistant, error) {
	if model == nil {
		return nil, errors.New("llm model is required")
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	}
	config.applyDefaults()

	return &Assistant{config: config, llm: model}, nil
}

func (a *Assistant) messages(question string, passages []models.RetrievedPassage) []llms.MessageContent {
	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, a.config.SystemTemplate),
		llms.TextParts(llms.ChatMessageTypeHuman, fmt.Sprintf(a.config.ContextTemplate, formatPassages(passages), question)),
	}
}

func (a *Assistant) options(extra ...llms.CallOption) []llms.CallOption {
	opts := []llms.CallOption{
		llms.WithTemperature(a.config.Temperature),
		llms.WithMaxTokens(a.config.MaxTokens),
	}
	return append(opts, extra...)
}

// Ask answers question from passages.
func (a *Assistant) Ask(ctx context.Context, question string, passages []models.RetrievedPassage) (string, error) {
	if len(passages) == 0 {
		return "", ErrNoPassages
	}

	resp, err := a.llm.GenerateContent(ctx, a.messages(question, passages), a.options()...)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", errors.New("chat error: no response from LLM")
	}

	return strings.TrimSpace(resp.Choices[0].Content), nil
}

// AskStream is Ask with each generated chunk passed to onChunk as it arrives.
func (a *Assistant) AskStream(ctx context.Context, question string, passages []models.RetrievedPassage, onChunk func(string) error) error {
	if len(passages) == 0 {
		return ErrNoPassages
	}

	stream := llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
		return onChunk(string(chunk))
	})
	if _, err := a.llm.GenerateContent(ctx, a.messages(question, passages), a.options(stream)...); err != nil {
		return fmt.Errorf("chat error: %w", err)
	}
	return nil
}

func formatPassages(passages []models.RetrievedPassage) string {
	var b strings.Builder
	for i, p := range passages {
		fmt.Fprintf(&b, "[%d] Candidate: %s (%s)\n%s\n\n", i+1, p.Metadata.CandidateName, p.Metadata.FileName, p.Text)
	}
	return b.String()
}
