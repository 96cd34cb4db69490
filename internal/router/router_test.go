package router

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genstudio/internal/credential"
	"genstudio/internal/entity"
	"genstudio/internal/llm"
)

func TestRouteIdentityShortCircuit(t *testing.T) {
	r := NewRouter("Acme Studio", nil)
	d := r.Route(entity.SubmitGenerationRequest{Kind: entity.JobKindChat, Prompt: "who created you?"})
	assert.True(t, d.Identity)
	assert.Contains(t, d.IdentityText, "Acme Studio")
	assert.Empty(t, d.Chain)
}

func TestRouteIdentityNotAppliedToImageJobs(t *testing.T) {
	r := NewRouter("Acme", nil)
	d := r.Route(entity.SubmitGenerationRequest{Kind: entity.JobKindImage, Prompt: "who created you, painted in oil"})
	assert.False(t, d.Identity)
	assert.NotEmpty(t, d.Chain)
}

func TestRoutePlainText(t *testing.T) {
	r := NewRouter("Acme", nil)
	d := r.Route(entity.SubmitGenerationRequest{Kind: entity.JobKindChat, Prompt: "explain photosynthesis"})
	require.NotEmpty(t, d.Chain)
	assert.Equal(t, llm.KindCompletion, d.Chain[0].Kind)
	assert.Equal(t, "explain photosynthesis", d.Request.Prompt)
	assert.Empty(t, d.Request.Parts)
}

func TestRouteVision(t *testing.T) {
	r := NewRouter("Acme", nil)
	d := r.Route(entity.SubmitGenerationRequest{
		Kind:   entity.JobKindChat,
		Prompt: "what is in this photo",
		Attachments: []entity.Attachment{
			{Kind: entity.AttachmentKindImage, URL: "https://cdn.example/img.png"},
		},
	})
	require.NotEmpty(t, d.Chain)
	assert.Equal(t, llm.KindVision, d.Chain[0].Kind)
	require.Len(t, d.Request.Parts, 2)
	assert.Equal(t, llm.PartText, d.Request.Parts[0].Type)
	assert.Equal(t, llm.PartImageURL, d.Request.Parts[1].Type)
}

func TestRouteDocumentUsesInlineTextAndCache(t *testing.T) {
	reads := 0
	readDoc := func(path string) ([]byte, error) {
		reads++
		if path == "docs/missing.txt" {
			return nil, errors.New("not found")
		}
		return []byte("stored document body"), nil
	}
	r := NewRouter("Acme", readDoc)

	// Inline text wins, no storage read.
	d := r.Route(entity.SubmitGenerationRequest{
		Kind:   entity.JobKindChat,
		Prompt: "summarize",
		Attachments: []entity.Attachment{
			{Kind: entity.AttachmentKindDocument, Filename: "notes.txt", Text: "inline body"},
		},
	})
	assert.Contains(t, d.Request.Prompt, "inline body")
	assert.Equal(t, 0, reads)

	// Storage-backed document is read once, then served from cache.
	req := entity.SubmitGenerationRequest{
		Kind:   entity.JobKindChat,
		Prompt: "summarize",
		Attachments: []entity.Attachment{
			{Kind: entity.AttachmentKindDocument, Filename: "report.txt", StoragePath: "docs/report.txt"},
		},
	}
	d = r.Route(req)
	assert.Contains(t, d.Request.Prompt, "stored document body")
	assert.Equal(t, 1, reads)

	d = r.Route(req)
	assert.Contains(t, d.Request.Prompt, "stored document body")
	assert.Equal(t, 1, reads, "second request served from cache")

	// Read failure degrades to a placeholder, never an error.
	d = r.Route(entity.SubmitGenerationRequest{
		Kind:   entity.JobKindChat,
		Prompt: "summarize",
		Attachments: []entity.Attachment{
			{Kind: entity.AttachmentKindDocument, Filename: "missing.txt", StoragePath: "docs/missing.txt"},
		},
	})
	assert.Contains(t, d.Request.Prompt, "could not be loaded")
}

func TestRouteCombinedImageAndDocument(t *testing.T) {
	r := NewRouter("Acme", nil)
	d := r.Route(entity.SubmitGenerationRequest{
		Kind:   entity.JobKindChat,
		Prompt: "compare",
		Attachments: []entity.Attachment{
			{Kind: entity.AttachmentKindImage, URL: "https://cdn.example/img.png"},
			{Kind: entity.AttachmentKindDocument, Filename: "spec.txt", Text: "doc body"},
		},
	})
	assert.Equal(t, llm.KindVision, d.Chain[0].Kind)
	assert.Contains(t, d.Request.Prompt, "doc body")
	require.Len(t, d.Request.Parts, 2)
}

func TestRouteCitedSynthesis(t *testing.T) {
	r := NewRouter("Acme", nil)
	d := r.Route(entity.SubmitGenerationRequest{
		Kind:   entity.JobKindChat,
		Prompt: "what changed",
		SearchResults: []entity.SearchResultRef{
			{Title: "First", URL: "https://a.example", Summary: "first summary"},
			{Title: "Second", URL: "https://b.example"},
		},
	})
	assert.Contains(t, d.Request.Prompt, "[1] First")
	assert.Contains(t, d.Request.Prompt, "[2] Second")
	assert.Contains(t, d.Request.Prompt, "first summary")
}

func TestBuildChainExplicitModelFirst(t *testing.T) {
	chain := buildChain("gpt-image-1", llm.KindImage, imageLadder)
	require.NotEmpty(t, chain)
	assert.Equal(t, "gpt-image-1", chain[0].Model)
	assert.Equal(t, credential.FamilyOpenAI, chain[0].Family)
	// Pinned model appears exactly once.
	count := 0
	for _, c := range chain {
		if c.Model == "gpt-image-1" {
			count++
		}
	}
	assert.Equal(t, 1, count)
	// Fallbacks follow the pinned model.
	assert.Greater(t, len(chain), 1)
}

func TestBuildChainAutoUsesLadder(t *testing.T) {
	for _, selection := range []string{"", "auto", "BEST"} {
		chain := buildChain(selection, llm.KindCompletion, completionLadder)
		assert.Equal(t, completionLadder, chain, "selection %q", selection)
	}
}

func TestInferFamily(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"gpt-4o", credential.FamilyOpenAI},
		{"gemini-2.5-flash", credential.FamilyGemini},
		{"doubao-seedream-4-0-250828", credential.FamilyVolcengine},
		{"anthropic/claude-sonnet-4", credential.FamilyOpenRouter},
		{"o3-mini", credential.FamilyOpenAI},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, inferFamily(tt.model), "model %q", tt.model)
	}
}
