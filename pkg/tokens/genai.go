package tokens

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

var errMissingGeminiKey = errors.New("gemini token counting not configured")

type contentCounter interface {
	CountTokens(ctx context.Context, model string, contents []*genai.Content, config *genai.CountTokensConfig) (*genai.CountTokensResponse, error)
}

// GenAIService counts through the Gemini API Models.CountTokens call.
type GenAIService struct {
	models contentCounter
}

// NewGenAIService creates a Gemini API client from an API key.
func NewGenAIService(ctx context.Context, apiKey string) (*GenAIService, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: please export GEMINI_API_KEY", errMissingGeminiKey)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating Gemini API client: %w", err)
	}
	return &GenAIService{models: client.Models}, nil
}

func newGenAIServiceWithClient(models contentCounter) *GenAIService {
	return &GenAIService{models: models}
}

// CountTokens implements Service.
func (s *GenAIService) CountTokens(ctx context.Context, model, text string) (*TokenCount, error) {
	if strings.TrimSpace(model) == "" {
		model = defaultGeminiModel
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(text)}, genai.RoleUser),
	}

	resp, err := s.models.CountTokens(ctx, model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("error counting tokens: %w", err)
	}
	if resp == nil {
		return nil, errNoCount
	}
	return &TokenCount{TotalTokens: int(resp.TotalTokens)}, nil
}
