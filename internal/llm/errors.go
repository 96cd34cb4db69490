package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrorKind classifies a provider failure for the failover loop.
type ErrorKind string

const (
	// KindAuth covers rejected or expired credentials; always retried with the
	// next key.
	KindAuth ErrorKind = "auth"
	// KindRateLimit covers 429-style throttling and provider-side quota
	// exhaustion; retried against the next credential/provider.
	KindRateLimit ErrorKind = "rate_limit"
	// KindTimeout covers deadline expiry waiting on an outbound call.
	KindTimeout ErrorKind = "timeout"
	// KindUpstream covers 5xx and transport-level failures.
	KindUpstream ErrorKind = "upstream"
	// KindModelNotFound covers a model the current key cannot use; retryable
	// since another key or provider may accept it.
	KindModelNotFound ErrorKind = "model_not_found"
	// KindContentPolicy covers content-based rejections. Not retried against
	// other credentials of the same candidate (the rejection follows the
	// content, not the key) but a different provider may still accept it.
	KindContentPolicy ErrorKind = "content_policy"
	// KindInvalidRequest covers caller errors such as missing required fields;
	// fatal, the whole chain is aborted.
	KindInvalidRequest ErrorKind = "invalid_request"
)

// ProviderError is the classified outcome of one provider attempt.
type ProviderError struct {
	Family     string
	StatusCode int
	Kind       ErrorKind
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: http %d (%s): %s", e.Family, e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Family, e.Kind, e.Message)
}

// RetryNextCredential reports whether the failover loop should try the next
// credential of the same candidate after this error.
func (e *ProviderError) RetryNextCredential() bool {
	switch e.Kind {
	case KindAuth, KindRateLimit, KindTimeout, KindUpstream, KindModelNotFound:
		return true
	default:
		return false
	}
}

// RetryNextCandidate reports whether the failover loop should move on to the
// next candidate after this error.
func (e *ProviderError) RetryNextCandidate() bool {
	return e.Kind != KindInvalidRequest
}

// ClassifyStatus maps an HTTP-style status code onto the failover taxonomy.
func ClassifyStatus(family string, status int, message string) *ProviderError {
	kind := KindUpstream
	switch {
	case status == 401 || status == 403:
		kind = KindAuth
	case status == 429:
		kind = KindRateLimit
	case status == 404:
		kind = KindModelNotFound
	case status == 400:
		kind = classifyBadRequest(message)
	case status == 408:
		kind = KindTimeout
	case status >= 500:
		kind = KindUpstream
	}
	return &ProviderError{Family: family, StatusCode: status, Kind: kind, Message: message}
}

// classifyBadRequest splits 400s into content-policy rejections, unknown
// models (some gateways report those as 400) and genuine caller errors.
func classifyBadRequest(message string) ErrorKind {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "content policy"),
		strings.Contains(lower, "content_policy"),
		strings.Contains(lower, "safety"),
		strings.Contains(lower, "blocked"):
		return KindContentPolicy
	case strings.Contains(lower, "model"):
		return KindModelNotFound
	default:
		return KindInvalidRequest
	}
}

// ClassifyErr normalizes an arbitrary provider error. It understands the
// go-openai error types, context deadlines and net timeouts; everything else
// is treated as a retryable upstream failure.
func ClassifyErr(family string, err error) *ProviderError {
	if err == nil {
		return nil
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return ClassifyStatus(family, apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return ClassifyStatus(family, reqErr.HTTPStatusCode, reqErr.Error())
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Family: family, Kind: KindTimeout, Message: err.Error()}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ProviderError{Family: family, Kind: KindTimeout, Message: err.Error()}
	}

	return &ProviderError{Family: family, Kind: KindUpstream, Message: err.Error()}
}
