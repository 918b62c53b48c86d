// Package answer adapts the external grounded-answer generator.
//
// The generator is instructed to answer only from the supplied numbered
// sources and to cite with the same bracket numbers. Its output is passed
// through as opaque prose: the gateway does not verify that cited indices
// exist in the source list.
package answer

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Generator produces a grounded answer for a question given a pre-numbered
// sources block. Implementations must be safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, question, sourcesText string) (string, error)
}

const promptTemplate = `You are a course search assistant.

Answer the user's question using ONLY the provided sources.

Rules:
- If the sources do not contain enough information, say you don't know based on the sources.
- Cite sources inline using bracketed numbers like [1], [2], matching the numbering in Sources.
- Be concise: 4-10 sentences max.
- Do not invent facts not present in Sources.

Question:
%s

Sources (numbered):
%s

Return only the answer text with citations.`

// GeminiGenerator generates answers using Google's Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGemini creates a GeminiGenerator.
func NewGemini(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("answer: Gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("answer: create genai client: %w", err)
	}

	return &GeminiGenerator{client: client, model: model}, nil
}

// Generate implements Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, question, sourcesText string) (string, error) {
	prompt := fmt.Sprintf(promptTemplate, question, sourcesText)

	result, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("answer: generate: %w", err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", fmt.Errorf("answer: generator returned an empty answer")
	}
	return text, nil
}
