package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"genstudio/internal/entity"
	"genstudio/internal/llm"
	"genstudio/internal/research"
	"genstudio/internal/router"
	"genstudio/internal/storage"
)

// memRepo is an in-memory Repository good enough for orchestrator tests. Its
// terminal transitions mirror the SQL conditional updates.
type memRepo struct {
	mu         sync.Mutex
	jobs       map[string]*entity.DbGenerationJob
	usage      []entity.DbUsageEntry
	usageCount int64
	countErr   error
}

func newMemRepo() *memRepo {
	return &memRepo{jobs: make(map[string]*entity.DbGenerationJob)}
}

func (r *memRepo) job(jobID string) *entity.DbGenerationJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil
	}
	clone := *job
	return &clone
}

func (r *memRepo) usageEntries() []entity.DbUsageEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entity.DbUsageEntry, len(r.usage))
	copy(out, r.usage)
	return out
}

func (r *memRepo) CreateUser(ctx context.Context, user *entity.DbUser) error { return nil }
func (r *memRepo) UpdateUser(ctx context.Context, id uint, updates entity.UserUpdates) error {
	return nil
}
func (r *memRepo) GetUserByEmail(ctx context.Context, email string) (*entity.DbUser, error) {
	return nil, gorm.ErrRecordNotFound
}
func (r *memRepo) GetUserByID(ctx context.Context, id uint) (*entity.DbUser, error) {
	return nil, gorm.ErrRecordNotFound
}
func (r *memRepo) ListUsers(ctx context.Context, params *entity.UserQuery) ([]entity.DbUser, *entity.Meta, error) {
	return nil, nil, nil
}
func (r *memRepo) DeleteUser(ctx context.Context, id uint) error { return nil }
func (r *memRepo) CountUsers(ctx context.Context) (int64, error) { return 0, nil }

func (r *memRepo) CreateJob(ctx context.Context, job *entity.DbGenerationJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job.Status == "" {
		job.Status = entity.JobStatusGenerating
	}
	job.CreatedAt = time.Now()
	clone := *job
	r.jobs[job.JobID] = &clone
	return nil
}

func (r *memRepo) GetJobByJobID(ctx context.Context, jobID string) (*entity.DbGenerationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *job
	return &clone, nil
}

func (r *memRepo) ListJobs(ctx context.Context, params *entity.JobQuery) ([]entity.DbGenerationJob, *entity.Meta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.DbGenerationJob
	for _, job := range r.jobs {
		if params != nil && !params.IncludeAll && params.OwnerEmail != "" && job.OwnerEmail != params.OwnerEmail {
			continue
		}
		out = append(out, *job)
	}
	return out, &entity.Meta{Total: int64(len(out))}, nil
}

func (r *memRepo) CompleteJob(ctx context.Context, jobID string, completion entity.JobCompletion) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.Status != entity.JobStatusGenerating {
		return false, nil
	}
	now := time.Now()
	job.Status = entity.JobStatusCompleted
	job.ResultRef = completion.ResultRef
	job.ResultText = completion.ResultText
	job.ErrorMessage = ""
	job.Diagnostic = ""
	job.Provider = completion.Provider
	job.Model = completion.Model
	job.Attempts = completion.Attempts
	job.CompletedAt = &now
	return true, nil
}

func (r *memRepo) FailJob(ctx context.Context, jobID string, failure entity.JobFailure) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.Status != entity.JobStatusGenerating {
		return false, nil
	}
	now := time.Now()
	job.Status = entity.JobStatusFailed
	job.ErrorMessage = failure.ErrorMessage
	job.Diagnostic = failure.Diagnostic
	job.Attempts = failure.Attempts
	job.CompletedAt = &now
	return true, nil
}

func (r *memRepo) ResetJobForRegeneration(ctx context.Context, jobID string, prompt, modelSelection string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return false, nil
	}
	if job.Status != entity.JobStatusCompleted && job.Status != entity.JobStatusFailed {
		return false, nil
	}
	job.Status = entity.JobStatusGenerating
	job.ResultRef = ""
	job.ResultText = ""
	job.ErrorMessage = ""
	job.Diagnostic = ""
	job.Provider = ""
	job.Model = ""
	job.Attempts = 0
	job.CompletedAt = nil
	if prompt != "" {
		job.Prompt = prompt
	}
	if modelSelection != "" {
		job.ModelSelection = modelSelection
	}
	return true, nil
}

func (r *memRepo) CreateUsageEntry(ctx context.Context, entry *entity.DbUsageEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.CreatedAt = time.Now()
	r.usage = append(r.usage, *entry)
	return nil
}

func (r *memRepo) CountUsageSince(ctx context.Context, ownerEmail, operation string, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.countErr != nil {
		return 0, r.countErr
	}
	return r.usageCount, nil
}

func (r *memRepo) ListUsageEntries(ctx context.Context, params *entity.UsageQuery) ([]entity.DbUsageEntry, *entity.Meta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entity.DbUsageEntry, len(r.usage))
	copy(out, r.usage)
	return out, &entity.Meta{Total: int64(len(out))}, nil
}

// fakeRouter returns a scripted decision and records what it saw.
type fakeRouter struct {
	mu       sync.Mutex
	decision router.Decision
	seen     []entity.SubmitGenerationRequest
}

func (f *fakeRouter) Route(req entity.SubmitGenerationRequest) router.Decision {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, req)
	return f.decision
}

func (f *fakeRouter) routed() []entity.SubmitGenerationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]entity.SubmitGenerationRequest, len(f.seen))
	copy(out, f.seen)
	return out
}

// fakeExecutor replays scripted outcomes in call order.
type fakeExecutor struct {
	mu       sync.Mutex
	outcomes []*llm.Outcome
	errs     []error
	calls    int
}

func (f *fakeExecutor) Execute(ctx context.Context, chain []llm.Candidate, req llm.Request) (*llm.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	f.calls++
	var outcome *llm.Outcome
	var err error
	if idx < len(f.outcomes) {
		outcome = f.outcomes[idx]
	}
	if idx < len(f.errs) {
		err = f.errs[idx]
	}
	if outcome == nil && err == nil {
		err = errors.New("unscripted executor call")
	}
	return outcome, err
}

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakePipeline returns a scripted research report.
type fakePipeline struct {
	report *research.Report
	err    error
}

func (f *fakePipeline) Run(ctx context.Context, query string) (*research.Report, error) {
	return f.report, f.err
}

// memStorage keeps saved payloads in a map keyed by the returned ref.
type memStorage struct {
	mu    sync.Mutex
	saved map[string][]byte
	seq   int
	err   error
}

func newMemStorage() *memStorage {
	return &memStorage{saved: make(map[string][]byte)}
}

func (s *memStorage) Save(ctx context.Context, data []byte, opts storage.SaveOptions) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.seq++
	ref := opts.Category + "/obj-" + opts.Extension
	s.saved[ref] = append([]byte(nil), data...)
	return ref, nil
}

func (s *memStorage) Load(ctx context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.saved[path]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func waitForTerminal(t *testing.T, repo *memRepo, jobID string) *entity.DbGenerationJob {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if job := repo.job(jobID); job != nil && job.IsTerminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal state in time", jobID)
	return nil
}
