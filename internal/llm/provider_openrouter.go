package llm

import (
	"context"
	"strings"

	"genstudio/internal/credential"
)

// OpenRouter speaks the OpenAI chat-completions protocol against the
// OpenRouter gateway. It serves as the cross-family fallback for text and
// vision candidates.
type OpenRouter struct {
	inner *OpenAI
}

// NewOpenRouter creates the OpenRouter adapter. baseURL defaults to the
// public gateway when blank.
func NewOpenRouter(baseURL string) *OpenRouter {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	return &OpenRouter{inner: NewOpenAI(baseURL)}
}

func (o *OpenRouter) Family() string {
	return credential.FamilyOpenRouter
}

func (o *OpenRouter) GenerateCompletion(ctx context.Context, apiKey, model string, parts []Part) (*Result, error) {
	result, err := o.inner.GenerateCompletion(ctx, apiKey, model, parts)
	if err != nil {
		return nil, retagFamily(o.Family(), err)
	}
	return result, nil
}

// GenerateImage is not offered through this family; the chain simply moves on
// to an image-capable provider.
func (o *OpenRouter) GenerateImage(ctx context.Context, apiKey, model, prompt, size string) (*Result, error) {
	return nil, &ProviderError{
		Family:  o.Family(),
		Kind:    KindModelNotFound,
		Message: "image generation is not supported by this provider family",
	}
}

// retagFamily reattributes a classified error to the wrapping family so
// diagnostics name the provider that was actually called.
func retagFamily(family string, err error) error {
	classified := ClassifyErr(family, err)
	classified.Family = family
	return classified
}

var _ ProviderClient = (*OpenRouter)(nil)
