package model

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	wardenerrors "warden/pkg/errors"
)

const (
	openAIBaseURL  = "https://api.openai.com/v1"
	defaultTimeout = 5 * time.Minute
)

// OpenAIProvider streams completions from any OpenAI-compatible
// chat completions endpoint.
type OpenAIProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAIProvider builds a provider using the supplied API key. An
// empty baseURL falls back to the official OpenAI endpoint.
func NewOpenAIProvider(apiKey, baseURL string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = openAIBaseURL
	}
	return &OpenAIProvider{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// ID returns the provider identifier.
func (p *OpenAIProvider) ID() string {
	return "openai"
}

// SetTimeout updates the HTTP client timeout (0 disables it).
func (p *OpenAIProvider) SetTimeout(timeout time.Duration) {
	if p.httpClient != nil {
		p.httpClient.Timeout = timeout
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Stream      bool      `json:"stream"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// GenerateStreaming posts the conversation and relays SSE deltas to
// onChunk. The handler always receives a final Done chunk on success.
func (p *OpenAIProvider) GenerateStreaming(ctx context.Context, messages []Message, cfg Config, onChunk ChunkHandler) error {
	body, err := json.Marshal(chatRequest{
		Model:       cfg.Model,
		Messages:    messages,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Stream:      true,
	})
	if err != nil {
		return wardenerrors.Wrap(err, wardenerrors.ErrCodeProvider, "marshaling request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return wardenerrors.Wrap(err, wardenerrors.ErrCodeProvider, "creating request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return wardenerrors.Wrap(err, wardenerrors.ErrCodeProvider, "streaming request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return wardenerrors.New(wardenerrors.ErrCodeProvider,
			fmt.Sprintf("streaming request failed: %s", resp.Status))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		data := scanner.Text()
		if data == "" {
			continue
		}
		if strings.HasPrefix(data, "data: ") {
			data = data[6:]
		}
		if data == "[DONE]" {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return wardenerrors.Wrap(err, wardenerrors.ErrCodeProvider, "decoding chunk")
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				if err := onChunk(Chunk{Content: choice.Delta.Content}); err != nil {
					return err
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return wardenerrors.Wrap(err, wardenerrors.ErrCodeProvider, "reading stream")
	}

	return onChunk(Chunk{Done: true})
}
