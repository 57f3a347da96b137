package tokens

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/kcaldas/tubechan/pkg/logging"
)

const (
	tokenCounterEndpoint = "/utils/token_counter"
	maxResponseBytes     = 1 << 20
)

var (
	errNoBaseURL         = errors.New("token counter base URL not configured")
	errMalformedResponse = errors.New("token counter returned a malformed response")
)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPOption configures the HTTP token service.
type HTTPOption func(*HTTPService)

// WithHTTPClient injects a custom HTTP client.
func WithHTTPClient(client httpDoer) HTTPOption {
	return func(s *HTTPService) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithAPIKey sends the key as a bearer token.
func WithAPIKey(apiKey string) HTTPOption {
	return func(s *HTTPService) {
		s.apiKey = strings.TrimSpace(apiKey)
	}
}

// HTTPService calls the completion provider's token counter endpoint:
// POST {baseURL}/utils/token_counter with {"model", "prompt"}, answered by
// {"total_tokens": n}.
type HTTPService struct {
	baseURL    string
	apiKey     string
	httpClient httpDoer
	logger     logging.Logger
}

// NewHTTPService creates a service rooted at baseURL.
func NewHTTPService(baseURL string, opts ...HTTPOption) *HTTPService {
	s := &HTTPService{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: http.DefaultClient,
		logger:     logging.NewServiceLogger("token_counter"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type tokenCounterRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// CountTokens implements Service.
func (s *HTTPService) CountTokens(ctx context.Context, model, text string) (*TokenCount, error) {
	if s.baseURL == "" {
		return nil, errNoBaseURL
	}

	body, err := json.Marshal(tokenCounterRequest{Model: model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("encoding token counter request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+tokenCounterEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building token counter request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token counter request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading token counter response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("token counter returned status %d", resp.StatusCode)
	}

	return parseTokenCount(payload)
}

func parseTokenCount(payload []byte) (*TokenCount, error) {
	if !gjson.ValidBytes(payload) {
		return nil, errMalformedResponse
	}

	total := gjson.GetBytes(payload, "total_tokens")
	if !total.Exists() {
		return nil, fmt.Errorf("%w: missing total_tokens", errMalformedResponse)
	}
	if total.Type != gjson.Number || total.Int() < 0 {
		return nil, fmt.Errorf("%w: total_tokens is %q", errMalformedResponse, total.Raw)
	}
	return &TokenCount{TotalTokens: int(total.Int())}, nil
}
