package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"genstudio/internal/credential"
)

// OpenAI wraps the OpenAI chat-completions and images APIs. A fresh client is
// built per call so the failover executor can rotate credentials freely.
type OpenAI struct {
	baseURL string
}

// NewOpenAI creates the OpenAI adapter. baseURL is optional and exists for
// gateway deployments.
func NewOpenAI(baseURL string) *OpenAI {
	return &OpenAI{baseURL: strings.TrimSpace(baseURL)}
}

func (o *OpenAI) Family() string {
	return credential.FamilyOpenAI
}

func (o *OpenAI) client(apiKey string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// GenerateCompletion issues one chat completion. Image parts are forwarded as
// image_url content so the same call path serves plain text and vision.
func (o *OpenAI) GenerateCompletion(ctx context.Context, apiKey, model string, parts []Part) (*Result, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &ProviderError{Family: o.Family(), Kind: KindAuth, Message: "api key missing"}
	}
	parts = trimParts(parts)
	if len(parts) == 0 {
		return nil, &ProviderError{Family: o.Family(), Kind: KindInvalidRequest, Message: "no request content"}
	}

	message := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if len(parts) == 1 && parts[0].Type == PartText {
		message.Content = parts[0].Text
	} else {
		for _, p := range parts {
			switch p.Type {
			case PartText:
				message.MultiContent = append(message.MultiContent, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeText,
					Text: p.Text,
				})
			case PartImageURL:
				message.MultiContent = append(message.MultiContent, openai.ChatMessagePart{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: p.URL},
				})
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"model":      model,
		"part_count": len(parts),
	}).Debug("openai chat completion request")

	resp, err := o.client(apiKey).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: []openai.ChatCompletionMessage{message},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Family: o.Family(), Kind: KindUpstream, Message: "empty choices in completion response"}
	}

	return &Result{
		Text:      strings.TrimSpace(resp.Choices[0].Message.Content),
		RequestID: resp.ID,
	}, nil
}

// GenerateImage issues one image generation and normalizes the output into a
// data URL or remote URL payload.
func (o *OpenAI) GenerateImage(ctx context.Context, apiKey, model, prompt, size string) (*Result, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &ProviderError{Family: o.Family(), Kind: KindAuth, Message: "api key missing"}
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, &ProviderError{Family: o.Family(), Kind: KindInvalidRequest, Message: "prompt is required"}
	}

	req := openai.ImageRequest{
		Model:  model,
		Prompt: prompt,
		N:      1,
		Size:   normalizeImageSize(size),
	}
	// gpt-image-1 always returns base64 and rejects an explicit
	// response_format; only the dall-e models accept it.
	if strings.HasPrefix(model, "dall-e") {
		req.ResponseFormat = openai.CreateImageResponseFormatB64JSON
	}

	logrus.WithFields(logrus.Fields{
		"model": model,
		"size":  req.Size,
	}).Debug("openai image generation request")

	resp, err := o.client(apiKey).CreateImage(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, &ProviderError{Family: o.Family(), Kind: KindUpstream, Message: "empty data in image response"}
	}

	item := resp.Data[0]
	switch {
	case item.B64JSON != "":
		return &Result{ImagePayload: fmt.Sprintf("data:image/png;base64,%s", item.B64JSON)}, nil
	case item.URL != "":
		return &Result{ImagePayload: item.URL}, nil
	default:
		return nil, errors.New("image response contained neither url nor base64 payload")
	}
}

// normalizeImageSize maps arbitrary requested dimensions onto the square
// sizes the upstream providers actually accept. Aspect-ratio correction is
// the post-processor's job.
func normalizeImageSize(size string) string {
	switch strings.TrimSpace(size) {
	case "256x256", "512x512", "1024x1024":
		return size
	default:
		return "1024x1024"
	}
}

var _ ProviderClient = (*OpenAI)(nil)
