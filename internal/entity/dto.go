package entity

import "time"

// Attachment kinds accepted on submission.
const (
	AttachmentKindImage    = "image"
	AttachmentKindDocument = "document"
)

// Attachment references an uploaded asset included with a generation request.
// Images arrive as URLs or data URLs; documents carry either extracted text or
// a storage path the router can read from.
type Attachment struct {
	Kind        string `json:"kind"`
	URL         string `json:"url,omitempty"`
	StoragePath string `json:"storage_path,omitempty"`
	Filename    string `json:"filename,omitempty"`
	Text        string `json:"text,omitempty"`
}

// SearchResultRef is a previously retrieved source attached to a text request
// so the router can build a citation-grounded synthesis prompt.
type SearchResultRef struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Summary string `json:"summary,omitempty"`
}

// SubmitGenerationRequest is the submit-generation payload.
type SubmitGenerationRequest struct {
	JobID          string            `json:"job_id,omitempty"`
	Kind           string            `json:"kind" binding:"required"`
	Prompt         string            `json:"prompt" binding:"required"`
	Attachments    []Attachment      `json:"attachments,omitempty"`
	SearchResults  []SearchResultRef `json:"search_results,omitempty"`
	ModelSelection string            `json:"model_selection,omitempty"`
	Width          int               `json:"width,omitempty"`
	Height         int               `json:"height,omitempty"`
}

// SubmitGenerationResponse is returned immediately after a job is accepted.
type SubmitGenerationResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// JobView is the polled representation of a generation job.
type JobView struct {
	JobID        string     `json:"job_id"`
	Kind         string     `json:"kind"`
	Status       string     `json:"status"`
	ResultRef    string     `json:"result_ref,omitempty"`
	ResultText   string     `json:"result_text,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Provider     string     `json:"provider,omitempty"`
	Model        string     `json:"model,omitempty"`
	Attempts     int        `json:"attempts,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// ResearchRequest is the research-query payload.
type ResearchRequest struct {
	Query string `json:"query" binding:"required"`
}

// ResearchSourceView is a retrieved and optionally enriched source.
type ResearchSourceView struct {
	URL            string   `json:"url"`
	Title          string   `json:"title"`
	Snippet        string   `json:"snippet,omitempty"`
	Thumbnail      string   `json:"thumbnail,omitempty"`
	ContentExcerpt string   `json:"content_excerpt,omitempty"`
	Summary        string   `json:"summary,omitempty"`
	KeyPoints      []string `json:"key_points,omitempty"`
}

// ResearchResponse carries retrieval results plus the async synthesis job.
type ResearchResponse struct {
	Sources            []ResearchSourceView `json:"sources"`
	SynthesisAvailable bool                 `json:"synthesis_available"`
	SynthesisJobID     string               `json:"synthesis_job_id,omitempty"`
}
