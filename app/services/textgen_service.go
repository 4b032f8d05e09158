package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// TextGenService produces short completions for keyword variations and
// personalized outreach copy. Callers must tolerate failure and fall back
// to deterministic output.
type TextGenService interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// GenAITextService generates text using Google's Gemini API
type GenAITextService struct {
	client *genai.Client
	model  string
}

// NewGenAITextService creates a new text generation service
func NewGenAITextService(apiKey, model string) (*GenAITextService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAITextService{
		client: client,
		model:  model,
	}, nil
}

// Complete generates a single short completion for the prompt
func (s *GenAITextService) Complete(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	result, err := s.client.Models.GenerateContent(ctx, s.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.9),
	})
	if err != nil {
		return "", fmt.Errorf("GenAI completion failed: %w", err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", errors.New("empty completion returned")
	}

	return text, nil
}

// Name returns the service name
func (s *GenAITextService) Name() string {
	return fmt.Sprintf("genai:%s", s.model)
}
