package llm

import (
	"context"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/volcengine/volcengine-go-sdk/service/arkruntime"
	volcModel "github.com/volcengine/volcengine-go-sdk/service/arkruntime/model"
	"github.com/volcengine/volcengine-go-sdk/volcengine"

	"genstudio/internal/credential"
)

// Volcengine drives the Ark image-generation API (doubao-seedream family).
// The API only streams, so a single image request still walks the event
// stream until a url arrives or the stream reports failure.
type Volcengine struct{}

func NewVolcengine() *Volcengine {
	return &Volcengine{}
}

func (v *Volcengine) Family() string {
	return credential.FamilyVolcengine
}

// GenerateCompletion is not offered through this family; the chain moves on
// to a text-capable provider.
func (v *Volcengine) GenerateCompletion(ctx context.Context, apiKey, model string, parts []Part) (*Result, error) {
	return nil, &ProviderError{
		Family:  v.Family(),
		Kind:    KindModelNotFound,
		Message: "text completion is not supported by this provider family",
	}
}

func (v *Volcengine) GenerateImage(ctx context.Context, apiKey, model, prompt, size string) (*Result, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &ProviderError{Family: v.Family(), Kind: KindAuth, Message: "api key missing"}
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, &ProviderError{Family: v.Family(), Kind: KindInvalidRequest, Message: "prompt is required"}
	}

	client := arkruntime.NewClientWithApiKey(apiKey)

	// One request, one image. Group generation stays disabled because the
	// job model stores a single result reference.
	sequential := volcModel.SequentialImageGeneration("disabled")
	generateReq := volcModel.GenerateImagesRequest{
		Model:                     model,
		Prompt:                    prompt,
		Size:                      volcengine.String(normalizeArkSize(size)),
		ResponseFormat:            volcengine.String(volcModel.GenerateImagesResponseFormatURL),
		Watermark:                 volcengine.Bool(false),
		SequentialImageGeneration: &sequential,
	}

	logrus.WithFields(logrus.Fields{
		"model": model,
		"size":  normalizeArkSize(size),
	}).Debug("volcengine image generation request")

	stream, err := client.GenerateImagesStreaming(ctx, generateReq)
	if err != nil {
		return nil, ClassifyErr(v.Family(), err)
	}
	defer stream.Close()

	var imageURL string
	var failureMessage string
	for {
		recv, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ClassifyErr(v.Family(), err)
		}

		switch recv.Type {
		case "image_generation.partial_failed":
			if recv.Error != nil {
				failureMessage = recv.Error.Message
				logrus.WithFields(logrus.Fields{
					"code":    recv.Error.Code,
					"message": recv.Error.Message,
				}).Warn("volcengine partial failure")
				if strings.EqualFold(recv.Error.Code, "InternalServiceError") {
					return nil, &ProviderError{Family: v.Family(), Kind: KindUpstream, Message: recv.Error.Message}
				}
			}
		case "image_generation.partial_succeeded":
			if recv.Error == nil && recv.Url != nil {
				imageURL = *recv.Url
			}
		case "image_generation.completed":
			// Terminal event; usage accounting lives upstream.
		}
	}

	if imageURL == "" {
		message := failureMessage
		if message == "" {
			message = "image stream ended without a result"
		}
		return nil, classifyArkFailure(v.Family(), message)
	}
	return &Result{ImagePayload: imageURL}, nil
}

// classifyArkFailure maps Ark stream failure text onto the retry taxonomy.
func classifyArkFailure(family, message string) *ProviderError {
	lower := strings.ToLower(message)
	kind := KindUpstream
	switch {
	case strings.Contains(lower, "sensitive") || strings.Contains(lower, "risk") || strings.Contains(lower, "policy"):
		kind = KindContentPolicy
	case strings.Contains(lower, "quota") || strings.Contains(lower, "rate"):
		kind = KindRateLimit
	case strings.Contains(lower, "authentication") || strings.Contains(lower, "api key"):
		kind = KindAuth
	}
	return &ProviderError{Family: family, Kind: kind, Message: message}
}

// normalizeArkSize converts WxH requests into the coarse resolution classes
// the Ark API accepts. Exact dimensions come from the post-processor.
func normalizeArkSize(size string) string {
	switch strings.TrimSpace(size) {
	case "1K", "2K", "4K":
		return size
	case "256x256", "512x512", "1024x1024":
		return "1K"
	default:
		return "2K"
	}
}

var _ ProviderClient = (*Volcengine)(nil)
