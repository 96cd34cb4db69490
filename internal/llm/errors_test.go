package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		message string
		want    ErrorKind
	}{
		{"unauthorized", 401, "invalid api key", KindAuth},
		{"forbidden", 403, "forbidden", KindAuth},
		{"throttled", 429, "rate limit exceeded", KindRateLimit},
		{"unknown model", 404, "model not found", KindModelNotFound},
		{"request timeout", 408, "timeout", KindTimeout},
		{"server error", 500, "internal error", KindUpstream},
		{"bad gateway", 502, "bad gateway", KindUpstream},
		{"content policy 400", 400, "your request was rejected by our content policy", KindContentPolicy},
		{"safety 400", 400, "prompt blocked by safety system", KindContentPolicy},
		{"model 400", 400, "the model `gpt-x` does not exist", KindModelNotFound},
		{"plain 400", 400, "missing required field prompt", KindInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyStatus("openai", tt.status, tt.message)
			assert.Equal(t, tt.want, got.Kind)
			assert.Equal(t, tt.status, got.StatusCode)
		})
	}
}

func TestClassifyErr(t *testing.T) {
	t.Run("passes through provider errors", func(t *testing.T) {
		orig := &ProviderError{Family: "gemini", Kind: KindContentPolicy, Message: "blocked"}
		assert.Same(t, orig, ClassifyErr("gemini", orig))
	})

	t.Run("openai api error uses status", func(t *testing.T) {
		err := &openai.APIError{HTTPStatusCode: 429, Message: "slow down"}
		got := ClassifyErr("openai", err)
		assert.Equal(t, KindRateLimit, got.Kind)
	})

	t.Run("deadline exceeded is timeout", func(t *testing.T) {
		got := ClassifyErr("openai", context.DeadlineExceeded)
		assert.Equal(t, KindTimeout, got.Kind)
	})

	t.Run("unknown errors default to upstream", func(t *testing.T) {
		got := ClassifyErr("openai", errors.New("connection reset by peer"))
		assert.Equal(t, KindUpstream, got.Kind)
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, ClassifyErr("openai", nil))
	})
}

func TestRetrySemantics(t *testing.T) {
	retryCred := []ErrorKind{KindAuth, KindRateLimit, KindTimeout, KindUpstream, KindModelNotFound}
	for _, kind := range retryCred {
		err := &ProviderError{Kind: kind}
		assert.True(t, err.RetryNextCredential(), "kind %s should retry next credential", kind)
		assert.True(t, err.RetryNextCandidate(), "kind %s should retry next candidate", kind)
	}

	policy := &ProviderError{Kind: KindContentPolicy}
	assert.False(t, policy.RetryNextCredential())
	assert.True(t, policy.RetryNextCandidate())

	invalid := &ProviderError{Kind: KindInvalidRequest}
	assert.False(t, invalid.RetryNextCredential())
	assert.False(t, invalid.RetryNextCandidate())
}
