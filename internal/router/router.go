package router

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"genstudio/internal/credential"
	"genstudio/internal/entity"
	"genstudio/internal/llm"
)

// Model selections that mean "pick for me".
const (
	SelectionAuto = "auto"
	SelectionBest = "best"
)

// Preference ladders tried when the caller does not pin a model. Order is
// cheapest-capable first within each call style.
var (
	completionLadder = []llm.Candidate{
		{Family: credential.FamilyOpenAI, Model: "gpt-4o-mini", Kind: llm.KindCompletion},
		{Family: credential.FamilyGemini, Model: "gemini-2.5-flash", Kind: llm.KindCompletion},
		{Family: credential.FamilyOpenRouter, Model: "anthropic/claude-sonnet-4", Kind: llm.KindCompletion},
	}
	visionLadder = []llm.Candidate{
		{Family: credential.FamilyOpenAI, Model: "gpt-4o", Kind: llm.KindVision},
		{Family: credential.FamilyGemini, Model: "gemini-2.5-flash", Kind: llm.KindVision},
		{Family: credential.FamilyOpenRouter, Model: "anthropic/claude-sonnet-4", Kind: llm.KindVision},
	}
	imageLadder = []llm.Candidate{
		{Family: credential.FamilyGemini, Model: "gemini-2.5-flash-image-preview", Kind: llm.KindImage},
		{Family: credential.FamilyOpenAI, Model: "gpt-image-1", Kind: llm.KindImage},
		{Family: credential.FamilyVolcengine, Model: "doubao-seedream-4-0-250828", Kind: llm.KindImage},
	}
)

// Decision is the routing outcome. Either Identity is set and the fixed
// answer is returned without touching providers, or Chain and Request drive
// the failover executor.
type Decision struct {
	Identity     bool
	IdentityText string
	Chain        []llm.Candidate
	Request      llm.Request
}

// DocumentReader loads stored document bytes for prompt assembly.
type DocumentReader func(storagePath string) ([]byte, error)

// Router classifies request content and assembles the prompt and candidate
// chain for the failover executor.
type Router struct {
	brandName string
	docCache  *DocCache
	readDoc   DocumentReader
}

// NewRouter creates a content router. readDoc may be nil when document
// attachments are always submitted with inline text.
func NewRouter(brandName string, readDoc DocumentReader) *Router {
	return &Router{
		brandName: brandName,
		docCache:  NewDocCache(256, 6*time.Hour),
		readDoc:   readDoc,
	}
}

// Route inspects the payload and produces the routing decision. The identity
// check runs first and short-circuits everything else.
func (r *Router) Route(req entity.SubmitGenerationRequest) Decision {
	if req.Kind != entity.JobKindImage && IsIdentityQuestion(req.Prompt) {
		logrus.WithField("kind", req.Kind).Debug("identity question short-circuited")
		return Decision{Identity: true, IdentityText: IdentityAnswer(r.brandName)}
	}

	if req.Kind == entity.JobKindImage {
		return r.routeImage(req)
	}
	return r.routeChat(req)
}

func (r *Router) routeImage(req entity.SubmitGenerationRequest) Decision {
	size := "1024x1024"
	if req.Width > 0 && req.Height > 0 {
		size = fmt.Sprintf("%dx%d", req.Width, req.Height)
	}
	return Decision{
		Chain:   buildChain(req.ModelSelection, llm.KindImage, imageLadder),
		Request: llm.Request{Prompt: req.Prompt, Size: size},
	}
}

func (r *Router) routeChat(req entity.SubmitGenerationRequest) Decision {
	images, documents := splitAttachments(req.Attachments)

	var prompt string
	var parts []llm.Part
	kind := llm.KindCompletion

	switch {
	case len(images) > 0 && len(documents) > 0:
		prompt = r.combinedAnalysisPrompt(req.Prompt, documents)
		parts = withImageParts(prompt, images)
		kind = llm.KindVision
	case len(images) > 0:
		prompt = visionPrompt(req.Prompt)
		parts = withImageParts(prompt, images)
		kind = llm.KindVision
	case len(documents) > 0:
		prompt = r.documentPrompt(req.Prompt, documents)
	case len(req.SearchResults) > 0:
		prompt = citedSynthesisPrompt(req.Prompt, req.SearchResults)
	default:
		prompt = req.Prompt
	}

	ladder := completionLadder
	if kind == llm.KindVision {
		ladder = visionLadder
	}
	return Decision{
		Chain:   buildChain(req.ModelSelection, kind, ladder),
		Request: llm.Request{Prompt: prompt, Parts: parts},
	}
}

// buildChain pins the explicitly requested model first, then appends the
// preference ladder minus duplicates. An empty or auto selection is just the
// ladder. Families without credentials stay in the chain; the executor skips
// them so the next candidate still gets its turn.
func buildChain(selection string, kind llm.CandidateKind, ladder []llm.Candidate) []llm.Candidate {
	selection = strings.TrimSpace(selection)
	if selection == "" || strings.EqualFold(selection, SelectionAuto) || strings.EqualFold(selection, SelectionBest) {
		return append([]llm.Candidate(nil), ladder...)
	}

	pinned := llm.Candidate{
		Family: inferFamily(selection),
		Model:  selection,
		Kind:   kind,
	}
	chain := []llm.Candidate{pinned}
	for _, c := range ladder {
		if c.Family == pinned.Family && c.Model == pinned.Model {
			continue
		}
		chain = append(chain, c)
	}
	return chain
}

// inferFamily maps a model identifier onto its provider family. Slash-scoped
// names are OpenRouter routes.
func inferFamily(model string) string {
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "/"):
		return credential.FamilyOpenRouter
	case strings.HasPrefix(lower, "gemini"):
		return credential.FamilyGemini
	case strings.HasPrefix(lower, "doubao") || strings.HasPrefix(lower, "seedream"):
		return credential.FamilyVolcengine
	default:
		return credential.FamilyOpenAI
	}
}

func splitAttachments(attachments []entity.Attachment) (images, documents []entity.Attachment) {
	for _, a := range attachments {
		switch a.Kind {
		case entity.AttachmentKindImage:
			images = append(images, a)
		case entity.AttachmentKindDocument:
			documents = append(documents, a)
		}
	}
	return images, documents
}

func withImageParts(prompt string, images []entity.Attachment) []llm.Part {
	parts := []llm.Part{{Type: llm.PartText, Text: prompt}}
	for _, img := range images {
		if strings.TrimSpace(img.URL) == "" {
			continue
		}
		parts = append(parts, llm.Part{Type: llm.PartImageURL, URL: img.URL})
	}
	return parts
}

func visionPrompt(userText string) string {
	return fmt.Sprintf("Analyze the attached image(s) and answer the question below.\n\nQuestion: %s", userText)
}

func (r *Router) combinedAnalysisPrompt(userText string, documents []entity.Attachment) string {
	var b strings.Builder
	b.WriteString("Analyze the attached image(s) together with the document content below and answer the question.\n\n")
	r.writeDocumentSections(&b, documents)
	fmt.Fprintf(&b, "Question: %s", userText)
	return b.String()
}

func (r *Router) documentPrompt(userText string, documents []entity.Attachment) string {
	var b strings.Builder
	b.WriteString("Answer the question below based on the document content provided.\n\n")
	r.writeDocumentSections(&b, documents)
	fmt.Fprintf(&b, "Question: %s", userText)
	return b.String()
}

// writeDocumentSections renders each document's text, preferring inline text,
// then the summary cache, then a storage read.
func (r *Router) writeDocumentSections(b *strings.Builder, documents []entity.Attachment) {
	for i, doc := range documents {
		name := doc.Filename
		if name == "" {
			name = fmt.Sprintf("document %d", i+1)
		}
		fmt.Fprintf(b, "--- %s ---\n%s\n\n", name, r.documentText(doc))
	}
}

func (r *Router) documentText(doc entity.Attachment) string {
	if text := strings.TrimSpace(doc.Text); text != "" {
		return text
	}
	if doc.StoragePath == "" {
		return "(no content available)"
	}
	if cached, ok := r.docCache.Get(doc.StoragePath, doc.Filename); ok {
		return cached
	}
	if r.readDoc == nil {
		return "(no content available)"
	}

	raw, err := r.readDoc(doc.StoragePath)
	if err != nil {
		logrus.WithError(err).WithField("path", doc.StoragePath).Warn("document read failed")
		return "(document could not be loaded)"
	}
	text := strings.TrimSpace(string(raw))
	if len(text) > 8000 {
		text = text[:8000]
	}
	r.docCache.Put(doc.StoragePath, doc.Filename, text)
	return text
}

// citedSynthesisPrompt enumerates attached search results with ordinal
// markers and asks for grounded citations.
func citedSynthesisPrompt(userText string, results []entity.SearchResultRef) string {
	var b strings.Builder
	b.WriteString("Answer the question using the numbered sources below. Cite sources inline with [n] markers.\n\nSources:\n")
	for i, ref := range results {
		fmt.Fprintf(&b, "[%d] %s (%s)", i+1, ref.Title, ref.URL)
		if ref.Summary != "" {
			fmt.Fprintf(&b, ": %s", ref.Summary)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nQuestion: %s", userText)
	return b.String()
}
