package entity

import "time"

// Job kinds accepted by the orchestrator.
const (
	JobKindChat     = "chat"
	JobKindImage    = "image"
	JobKindResearch = "research"
)

// Job statuses. A job enters "generating" on submission or regeneration and
// moves exactly once into a terminal state per attempt.
const (
	JobStatusGenerating = "generating"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// DbGenerationJob is the persisted unit of asynchronous generation work.
type DbGenerationJob struct {
	ID        uint      `gorm:"primarykey" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`

	JobID      string `gorm:"column:job_id;type:varchar(64);uniqueIndex;not null" json:"job_id"`
	OwnerEmail string `gorm:"column:owner_email;type:varchar(255);index;not null" json:"owner_email"`
	Kind       string `gorm:"column:kind;type:varchar(32);index;not null" json:"kind"`

	Prompt         string      `gorm:"column:prompt;type:text" json:"prompt"`
	Attachments    StringArray `gorm:"column:attachments;type:json" json:"attachments"`
	ModelSelection string      `gorm:"column:model_selection;type:varchar(255)" json:"model_selection"`
	Width          int         `gorm:"column:width" json:"width"`
	Height         int         `gorm:"column:height" json:"height"`

	Status       string     `gorm:"column:status;type:varchar(32);index;not null" json:"status"`
	ResultRef    string     `gorm:"column:result_ref;type:text" json:"result_ref"`
	ResultText   string     `gorm:"column:result_text;type:text" json:"result_text"`
	ErrorMessage string     `gorm:"column:error_message;type:text" json:"error_message"`
	Diagnostic   string     `gorm:"column:diagnostic;type:text" json:"-"`
	CompletedAt  *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`

	// Filled on success for operator visibility.
	Provider string `gorm:"column:provider;type:varchar(64)" json:"provider,omitempty"`
	Model    string `gorm:"column:model;type:varchar(255)" json:"model,omitempty"`
	Attempts int    `gorm:"column:attempts" json:"attempts"`
}

// TableName overrides the default pluralised name.
func (DbGenerationJob) TableName() string {
	return "generation_jobs"
}

// IsTerminal reports whether the job reached a final state.
func (j *DbGenerationJob) IsTerminal() bool {
	if j == nil {
		return false
	}
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// JobQuery supports listing jobs with pagination.
type JobQuery struct {
	BaseParams
	OwnerEmail string `form:"-"`
	Kind       string `form:"kind"`
	Status     string `form:"status"`
	IncludeAll bool   `form:"-"`
}

// JobCompletion carries the fields written by a successful terminal update.
type JobCompletion struct {
	ResultRef  string
	ResultText string
	Provider   string
	Model      string
	Attempts   int
}

// JobFailure carries the fields written by a failed terminal update.
type JobFailure struct {
	ErrorMessage string
	Diagnostic   string
	Attempts     int
}
