package tokens

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const fallbackEncoding = "cl100k_base"

// TiktokenService counts locally with a BPE encoder. Models tiktoken does not
// know are counted with cl100k_base.
type TiktokenService struct {
	mu       sync.Mutex
	encoders map[string]*tiktoken.Tiktoken
}

// NewTiktokenService creates a local counting service.
func NewTiktokenService() *TiktokenService {
	return &TiktokenService{encoders: make(map[string]*tiktoken.Tiktoken)}
}

// CountTokens implements Service.
func (s *TiktokenService) CountTokens(ctx context.Context, model, text string) (*TokenCount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	encoder, err := s.encoderFor(model)
	if err != nil {
		return nil, err
	}
	return &TokenCount{TotalTokens: len(encoder.Encode(text, nil, nil))}, nil
}

func (s *TiktokenService) encoderFor(model string) (*tiktoken.Tiktoken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if encoder, ok := s.encoders[model]; ok {
		return encoder, nil
	}

	encoder, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoder, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("get encoding: %w", err)
		}
	}
	s.encoders[model] = encoder
	return encoder, nil
}
