package tokens

import "context"

// TokenCount is the answer of a counting service.
type TokenCount struct {
	TotalTokens int
}

// Service counts tokens for a model. Implementations may fail in any way; the
// Counter absorbs every failure.
type Service interface {
	CountTokens(ctx context.Context, model, text string) (*TokenCount, error)
}

// ServiceFunc adapts a function to Service.
type ServiceFunc func(ctx context.Context, model, text string) (*TokenCount, error)

func (f ServiceFunc) CountTokens(ctx context.Context, model, text string) (*TokenCount, error) {
	return f(ctx, model, text)
}

// EstimateService answers with the length estimate and never fails.
type EstimateService struct{}

func (EstimateService) CountTokens(_ context.Context, _ string, text string) (*TokenCount, error) {
	return &TokenCount{TotalTokens: Estimate(text)}, nil
}
