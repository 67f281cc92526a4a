package memory

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	tokenEncoder *tiktoken.Tiktoken
	encoderOnce  sync.Once
	encoderErr   error
)

func initTokenEncoder() error {
	encoderOnce.Do(func() {
		tokenEncoder, encoderErr = tiktoken.GetEncoding("cl100k_base")
	})
	return encoderErr
}

// EstimateTokens approximates token cost as one token per four
// characters, rounded up. All budget decisions use this estimator so
// that trimming behavior is deterministic across environments.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// CountTokens returns a precise token count via tiktoken, falling back
// to the estimator when the encoding data is unavailable. Used for
// usage reporting only, never for budget decisions.
func CountTokens(text string) int {
	if err := initTokenEncoder(); err != nil {
		return EstimateTokens(text)
	}
	return len(tokenEncoder.Encode(text, nil, nil))
}
