package aisuggest

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used when none is configured.
const DefaultModelName = "gemini-2.5-flash"

// Generator sends a prompt to a language model and returns the text answer.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeminiGenerator calls the Gemini API through the genai SDK.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a client using the ambient GOOGLE_API_KEY or
// Vertex AI settings.
func NewGeminiGenerator(ctx context.Context, model string) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiGenerator: create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("Generate: generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("Generate: empty response from model")
	}
	return text, nil
}

// Suggester asks a model to pick one of the user's category names for a
// transaction description.
type Suggester struct {
	gen Generator
}

// NewSuggester wraps a generator.
func NewSuggester(gen Generator) *Suggester {
	return &Suggester{gen: gen}
}

// SuggestCategory returns the model's answer with formatting removed. The
// caller decides whether the answer names a real category; "" means the
// model declined.
func (s *Suggester) SuggestCategory(ctx context.Context, description string, categories []string) (string, error) {
	answer, err := s.gen.Generate(ctx, buildPrompt(description, categories))
	if err != nil {
		return "", fmt.Errorf("SuggestCategory: %w", err)
	}
	answer = cleanAnswer(answer)
	if strings.EqualFold(answer, "none") {
		return "", nil
	}
	return answer, nil
}

func buildPrompt(description string, categories []string) string {
	var b strings.Builder
	b.WriteString("You classify bank statement withdrawals into spending categories.\n\n")
	b.WriteString("Categories:\n")
	for _, c := range categories {
		b.WriteString("- " + c + "\n")
	}
	b.WriteString("\nTransaction description: " + description + "\n\n")
	b.WriteString("Answer with exactly one category name from the list, copied verbatim.\n")
	b.WriteString("If none fits, answer NONE.\n")
	b.WriteString("Do NOT add explanations, quotes or Markdown.\n")
	return b.String()
}

// cleanAnswer strips code fences, quotes, list markers and trailing
// punctuation a model sometimes adds.
func cleanAnswer(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "\n"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimPrefix(s, "- ")
	s = strings.TrimRight(s, ".")
	s = strings.Trim(s, "\"'`*")
	return strings.TrimSpace(s)
}
