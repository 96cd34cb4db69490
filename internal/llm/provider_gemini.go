package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"genstudio/internal/credential"
	"genstudio/internal/utils"
)

// Gemini uses the Google generateContent endpoint instead of the
// OpenAI-compatible one, so the request/response contracts live here.
const geminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"

type (
	geminiInlineData struct {
		MimeType string `json:"mimeType,omitempty"`
		Data     string `json:"data,omitempty"`
	}
	geminiPart struct {
		Text       string            `json:"text,omitempty"`
		InlineData *geminiInlineData `json:"inlineData,omitempty"`
	}
	geminiContent struct {
		Role  string       `json:"role,omitempty"`
		Parts []geminiPart `json:"parts"`
	}
	geminiRequest struct {
		Contents []geminiContent `json:"contents"`
	}
)

type (
	geminiCandidateResp struct {
		FinishReason string        `json:"finishReason,omitempty"`
		Content      geminiContent `json:"content"`
	}
	geminiErrorBody struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	}
	geminiResponse struct {
		Candidates []geminiCandidateResp `json:"candidates"`
		Error      *geminiErrorBody      `json:"error,omitempty"`
	}
)

// Gemini wraps the Google generative language API for both text completion
// and image generation (image-output models return inlineData parts).
type Gemini struct {
	baseURL string
	httpCli *http.Client
}

// NewGemini creates the Gemini adapter. baseURL overrides the public
// endpoint for gateway deployments; it may contain a %s model placeholder.
func NewGemini(baseURL string) *Gemini {
	return &Gemini{
		baseURL: strings.TrimSpace(baseURL),
		httpCli: &http.Client{},
	}
}

func (g *Gemini) Family() string {
	return credential.FamilyGemini
}

func (g *Gemini) GenerateCompletion(ctx context.Context, apiKey, model string, parts []Part) (*Result, error) {
	resp, err := g.call(ctx, apiKey, model, parts)
	if err != nil {
		return nil, err
	}
	text, _ := collectGeminiOutput(resp)
	if strings.TrimSpace(text) == "" {
		return nil, &ProviderError{Family: g.Family(), Kind: KindUpstream, Message: "gemini response contained no text"}
	}
	return &Result{Text: strings.TrimSpace(text)}, nil
}

func (g *Gemini) GenerateImage(ctx context.Context, apiKey, model, prompt, size string) (*Result, error) {
	resp, err := g.call(ctx, apiKey, model, TextParts(prompt))
	if err != nil {
		return nil, err
	}
	text, images := collectGeminiOutput(resp)
	if len(images) == 0 {
		return nil, &ProviderError{Family: g.Family(), Kind: KindUpstream, Message: "gemini response did not include image data"}
	}
	return &Result{ImagePayload: images[0], Text: strings.TrimSpace(text)}, nil
}

func (g *Gemini) call(ctx context.Context, apiKey, model string, parts []Part) (*geminiResponse, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &ProviderError{Family: g.Family(), Kind: KindAuth, Message: "api key missing"}
	}
	if strings.TrimSpace(model) == "" {
		return nil, &ProviderError{Family: g.Family(), Kind: KindInvalidRequest, Message: "model is required"}
	}

	gParts, skipped := buildGeminiParts(ctx, trimParts(parts))
	if len(gParts) == 0 {
		return nil, &ProviderError{Family: g.Family(), Kind: KindInvalidRequest, Message: "no valid prompt or image parts"}
	}
	if len(skipped) > 0 {
		logrus.WithFields(logrus.Fields{
			"error_count": len(skipped),
			"errors":      strings.Join(skipped, "; "),
		}).Warn("gemini: some reference images could not be parsed")
	}

	bodyBytes, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: gParts}},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.resolveEndpoint(model), bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("gemini create request: %w", err)
	}
	// Header keeps the API key out of URLs and therefore out of logs.
	req.Header.Set("x-goog-api-key", apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpCli.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gemini read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var parsed geminiResponse
		message := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &parsed) == nil && parsed.Error != nil {
			message = parsed.Error.Message
		}
		logrus.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"model":  model,
		}).Warn("gemini http error")
		return nil, ClassifyStatus(g.Family(), resp.StatusCode, message)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("gemini decode response: %w", err)
	}
	if parsed.Error != nil && strings.TrimSpace(parsed.Error.Message) != "" {
		return nil, ClassifyStatus(g.Family(), parsed.Error.Code, parsed.Error.Message)
	}
	return &parsed, nil
}

func (g *Gemini) resolveEndpoint(model string) string {
	base := g.baseURL
	if base == "" {
		return fmt.Sprintf(geminiEndpoint, model)
	}
	if strings.Contains(base, "%s") {
		return fmt.Sprintf(base, model)
	}
	base = strings.TrimRight(base, "/")
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent", base, model)
}

// collectGeminiOutput flattens candidates into text plus image data URLs.
func collectGeminiOutput(resp *geminiResponse) (string, []string) {
	var textParts []string
	var images []string
	seen := make(map[string]struct{})

	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if part.Text != "" {
				textParts = append(textParts, part.Text)
			}
			if part.InlineData != nil && strings.TrimSpace(part.InlineData.Data) != "" {
				dataURL := fmt.Sprintf("data:%s;base64,%s", fallbackMime(part.InlineData.MimeType), strings.TrimSpace(part.InlineData.Data))
				if _, ok := seen[dataURL]; !ok {
					seen[dataURL] = struct{}{}
					images = append(images, dataURL)
				}
			}
		}
	}
	return strings.Join(textParts, "\n"), images
}

// buildGeminiParts converts router parts into the Gemini shape. Bad image
// references are skipped (and reported) so one broken attachment does not
// block the whole request.
func buildGeminiParts(ctx context.Context, parts []Part) ([]geminiPart, []string) {
	var out []geminiPart
	var errs []string

	for idx, p := range parts {
		switch p.Type {
		case PartText:
			out = append(out, geminiPart{Text: strings.TrimSpace(p.Text)})
		case PartImageURL:
			gp, err := buildGeminiImagePart(ctx, p.URL)
			if err != nil {
				errs = append(errs, fmt.Sprintf("part %d: %v", idx, err))
				continue
			}
			out = append(out, gp)
		}
	}
	return out, errs
}

// buildGeminiImagePart normalizes an image payload into inlineData. Remote
// URLs are fetched and re-encoded; data URLs and bare base64 are parsed.
func buildGeminiImagePart(ctx context.Context, payload string) (geminiPart, error) {
	if strings.HasPrefix(payload, "http://") || strings.HasPrefix(payload, "https://") {
		b64, mimeType, err := downloadImageAsBase64(ctx, payload)
		if err != nil {
			return geminiPart{}, fmt.Errorf("download reference: %w", err)
		}
		return geminiPart{InlineData: &geminiInlineData{MimeType: mimeType, Data: b64}}, nil
	}

	mimeType, base64Payload := utils.SplitDataURL(utils.EnsureDataURL(payload))
	base64Payload = strings.TrimSpace(base64Payload)
	if base64Payload == "" {
		return geminiPart{}, fmt.Errorf("empty base64 payload")
	}
	raw, err := base64.StdEncoding.DecodeString(base64Payload)
	if err != nil {
		return geminiPart{}, fmt.Errorf("decode base64: %w", err)
	}

	// Re-encode to strip whitespace and keep a clean payload.
	return geminiPart{InlineData: &geminiInlineData{
		MimeType: fallbackMime(mimeType),
		Data:     base64.StdEncoding.EncodeToString(raw),
	}}, nil
}

func downloadImageAsBase64(ctx context.Context, url string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", fmt.Errorf("create download request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("download image http %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("read image body: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return base64.StdEncoding.EncodeToString(data), fallbackMime(mimeType), nil
}

// fallbackMime normalizes empty/unknown mime types to a sensible default.
func fallbackMime(mimeType string) string {
	v := strings.TrimSpace(mimeType)
	if v == "" {
		return "image/jpeg"
	}
	if idx := strings.Index(v, ";"); idx > 0 {
		return strings.TrimSpace(v[:idx])
	}
	return v
}

var _ ProviderClient = (*Gemini)(nil)
