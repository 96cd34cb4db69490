package llm

import (
	"context"
	"strings"
)

// CandidateKind distinguishes the call style a candidate uses.
type CandidateKind string

const (
	KindCompletion CandidateKind = "completion"
	KindVision     CandidateKind = "vision"
	KindImage      CandidateKind = "image"
)

// Candidate is one (provider family, model) pair in a failover chain. It is
// built per-request by the content router and never persisted.
type Candidate struct {
	Family string
	Model  string
	Kind   CandidateKind
}

// PartType marks the modality of one content part.
type PartType string

const (
	PartText     PartType = "text"
	PartImageURL PartType = "image_url"
)

// Part is one piece of multi-modal request content. Image parts carry either
// an http(s) URL or a data URL.
type Part struct {
	Type PartType
	Text string
	URL  string
}

// Request is the provider-agnostic call payload assembled by the router.
type Request struct {
	Prompt string
	Parts  []Part
	// Size is the requested image size hint for image candidates ("1024x1024").
	Size string
}

// TextParts builds a single-text-part request.
func TextParts(prompt string) []Part {
	return []Part{{Type: PartText, Text: prompt}}
}

// Result is the normalized provider output. Exactly one of Text or
// ImagePayload is expected to be meaningful depending on the candidate kind;
// ImagePayload holds a remote URL or a data URL.
type Result struct {
	Text         string
	ImagePayload string
	RequestID    string
}

// ProviderClient wraps one external generation API behind a uniform call
// signature. The credential is passed per call so the failover executor can
// rotate keys without rebuilding clients.
type ProviderClient interface {
	Family() string
	GenerateCompletion(ctx context.Context, apiKey, model string, parts []Part) (*Result, error)
	GenerateImage(ctx context.Context, apiKey, model, prompt, size string) (*Result, error)
}

// trimParts drops empty parts so providers never see blank content entries.
func trimParts(parts []Part) []Part {
	out := make([]Part, 0, len(parts))
	for _, p := range parts {
		switch p.Type {
		case PartText:
			if strings.TrimSpace(p.Text) != "" {
				out = append(out, p)
			}
		case PartImageURL:
			if strings.TrimSpace(p.URL) != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
