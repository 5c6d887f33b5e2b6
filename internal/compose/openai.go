package compose

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const systemPrompt = `You are HealthGuard AI, a medical verification assistant.
Your goal is to answer the user's query based ONLY on the provided retrieval evidence.
1. If the verdict is TRUE, confirm it and cite the specific evidence.
2. If the verdict is MISLEADING/FALSE, debunk it using the evidence.
3. If the verdict is INSUFFICIENT EVIDENCE, politely state you don't know.
4. BE CONCISE. No fluff. Maximum 3 sentences.
5. ALWAYS allow for "Consult a doctor" advice if relevant.
DO NOT use outside knowledge not present in the snippets.`

// OpenAIConfig configures the grounded-text generator.
//
// BaseURL may point at any OpenAI-compatible endpoint. An empty APIKey
// means the generator is not configured and the composer should run
// fallback-only.
type OpenAIConfig struct {
	// BaseURL is the API endpoint (default: https://api.openai.com/v1).
	BaseURL string `koanf:"base_url"`
	// Model is the chat model name.
	Model string `koanf:"model"`
	// APIKey authenticates against the endpoint.
	APIKey string `koanf:"api_key"`
	// Temperature controls sampling randomness.
	Temperature float64 `koanf:"temperature"`
}

// ApplyDefaults sets default values for unset fields.
func (c *OpenAIConfig) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.3
	}
}

// Enabled reports whether the generator has credentials to run.
func (c OpenAIConfig) Enabled() bool {
	return c.APIKey != ""
}

// OpenAIGenerator calls an OpenAI-compatible chat endpoint via
// langchaingo and grounds the answer in the supplied evidence.
type OpenAIGenerator struct {
	llm    *openai.LLM
	config OpenAIConfig
}

// NewOpenAIGenerator creates a generator from config.
//
// Returns ErrInvalidConfig if no API key is set; callers should check
// config.Enabled() first and skip construction for fallback-only mode.
func NewOpenAIGenerator(config OpenAIConfig) (*OpenAIGenerator, error) {
	config.ApplyDefaults()
	if !config.Enabled() {
		return nil, fmt.Errorf("%w: API key required", ErrInvalidConfig)
	}

	llm, err := openai.New(
		openai.WithBaseURL(config.BaseURL),
		openai.WithModel(config.Model),
		openai.WithToken(config.APIKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	return &OpenAIGenerator{llm: llm, config: config}, nil
}

// Generate produces a concise, evidence-grounded answer.
func (g *OpenAIGenerator) Generate(ctx context.Context, query, verdict string, evidence []Evidence) (string, error) {
	resp, err := g.llm.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
			llms.TextParts(llms.ChatMessageTypeHuman, buildUserPrompt(query, verdict, evidence)),
		},
		llms.WithTemperature(g.config.Temperature),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}

func buildUserPrompt(query, verdict string, evidence []Evidence) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\nVerdict: %s\n\nEvidence:\n", query, verdict)
	for _, e := range evidence {
		source := e.Source
		if source == "" {
			source = "Unknown"
		}
		fmt.Fprintf(&b, "- [%s (%.2f)]: %s (Source: %s)\n",
			strings.ToUpper(e.Kind), e.Score, e.Content, source)
	}
	b.WriteString("\nGenerate a patient-friendly response:")
	return b.String()
}
