package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"genstudio/internal/entity"
	"genstudio/internal/imaging"
	"genstudio/internal/llm"
	"genstudio/internal/model"
	"genstudio/internal/research"
	"genstudio/internal/router"
	"genstudio/internal/storage"
	"genstudio/internal/utils"
)

// ErrJobNotFound is returned for jobs that do not exist or belong to another
// user.
var ErrJobNotFound = errors.New("job not found")

// ErrJobStillRunning is returned when a regeneration targets a job that has
// not reached a terminal state yet.
var ErrJobStillRunning = errors.New("job is still generating")

// ErrResearchUnavailable is returned when no search collaborator is
// configured.
var ErrResearchUnavailable = errors.New("research is not configured")

// ChainExecutor runs a candidate chain until one provider call succeeds.
type ChainExecutor interface {
	Execute(ctx context.Context, chain []llm.Candidate, req llm.Request) (*llm.Outcome, error)
}

// ResearchRunner executes the retrieval and enrichment pipeline.
type ResearchRunner interface {
	Run(ctx context.Context, query string) (*research.Report, error)
}

// ContentRouter classifies a payload into a candidate chain and prompt.
type ContentRouter interface {
	Route(req entity.SubmitGenerationRequest) router.Decision
}

// Orchestrator drives the submit/poll generation lifecycle: it accepts jobs,
// runs them asynchronously through the failover executor and finalises them
// with conditional state transitions.
type Orchestrator struct {
	repo     model.Repository
	store    storage.Storage
	router   ContentRouter
	executor ChainExecutor
	pipeline ResearchRunner
	quota    *QuotaGate
	locks    *keyedLock
}

// NewOrchestrator wires the orchestrator. pipeline may be nil when research
// is not configured.
func NewOrchestrator(repo model.Repository, store storage.Storage, contentRouter ContentRouter, executor ChainExecutor, pipeline ResearchRunner, quota *QuotaGate) *Orchestrator {
	return &Orchestrator{
		repo:     repo,
		store:    store,
		router:   contentRouter,
		executor: executor,
		pipeline: pipeline,
		quota:    quota,
		locks:    newKeyedLock(),
	}
}

// Submit validates a generation request, records it and kicks off the
// asynchronous attempt. The response returns immediately with the job id.
func (o *Orchestrator) Submit(ctx context.Context, user *entity.DbUser, req entity.SubmitGenerationRequest) (*entity.SubmitGenerationResponse, error) {
	if o.repo == nil {
		return nil, errors.New("repository not available")
	}
	if user == nil {
		return nil, errors.New("user is required")
	}

	kind := strings.TrimSpace(req.Kind)
	if kind != entity.JobKindChat && kind != entity.JobKindImage {
		return nil, fmt.Errorf("unsupported job kind: %q", req.Kind)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, errors.New("prompt is required")
	}

	operation := entity.OperationChat
	if kind == entity.JobKindImage {
		operation = entity.OperationImage
	}
	if err := o.quota.Allow(ctx, user, operation); err != nil {
		return nil, err
	}

	jobID := strings.TrimSpace(req.JobID)
	if jobID == "" {
		jobID = uuid.NewString()
	}

	job := &entity.DbGenerationJob{
		JobID:          jobID,
		OwnerEmail:     user.Email,
		Kind:           kind,
		Prompt:         req.Prompt,
		Attachments:    attachmentRefs(req.Attachments),
		ModelSelection: req.ModelSelection,
		Width:          req.Width,
		Height:         req.Height,
		Status:         entity.JobStatusGenerating,
	}
	if err := o.repo.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	o.recordUsage(user.Email, operation, jobID)
	go o.run(*job, req)

	return &entity.SubmitGenerationResponse{JobID: jobID, Status: entity.JobStatusGenerating}, nil
}

// Poll returns the job's current view. A record that has not appeared yet is
// reported as generating rather than missing, since the write may still be in
// flight.
func (o *Orchestrator) Poll(ctx context.Context, user *entity.DbUser, jobID string) (*entity.JobView, error) {
	if o.repo == nil {
		return nil, errors.New("repository not available")
	}

	job, err := o.repo.GetJobByJobID(ctx, jobID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &entity.JobView{JobID: jobID, Status: entity.JobStatusGenerating}, nil
	}
	if err != nil {
		return nil, err
	}
	if !o.canAccess(user, job) {
		return nil, ErrJobNotFound
	}
	return jobView(job), nil
}

// ListJobs returns the caller's jobs, or everyone's for admins.
func (o *Orchestrator) ListJobs(ctx context.Context, user *entity.DbUser, params *entity.JobQuery) ([]entity.JobView, *entity.Meta, error) {
	if o.repo == nil {
		return nil, nil, errors.New("repository not available")
	}
	if params == nil {
		params = &entity.JobQuery{}
	}
	if user != nil && !isAdmin(user) {
		params.OwnerEmail = user.Email
		params.IncludeAll = false
	}

	jobs, meta, err := o.repo.ListJobs(ctx, params)
	if err != nil {
		return nil, nil, err
	}
	views := make([]entity.JobView, 0, len(jobs))
	for i := range jobs {
		views = append(views, *jobView(&jobs[i]))
	}
	return views, meta, nil
}

// Regenerate resets a terminal job back to generating and replays it.
// Resets of the same job are serialized so concurrent callers cannot race
// the conditional update.
func (o *Orchestrator) Regenerate(ctx context.Context, user *entity.DbUser, jobID string, req entity.SubmitGenerationRequest) (*entity.SubmitGenerationResponse, error) {
	if o.repo == nil {
		return nil, errors.New("repository not available")
	}

	o.locks.Lock(jobID)
	defer o.locks.Unlock(jobID)

	job, err := o.repo.GetJobByJobID(ctx, jobID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	if !o.canAccess(user, job) {
		return nil, ErrJobNotFound
	}
	if !job.IsTerminal() {
		return nil, ErrJobStillRunning
	}

	operation := entity.OperationChat
	if job.Kind == entity.JobKindImage {
		operation = entity.OperationImage
	}
	if err := o.quota.Allow(ctx, user, operation); err != nil {
		return nil, err
	}

	reset, err := o.repo.ResetJobForRegeneration(ctx, jobID, req.Prompt, req.ModelSelection)
	if err != nil {
		return nil, fmt.Errorf("reset job: %w", err)
	}
	if !reset {
		// Lost the conditional update to a concurrent writer.
		return nil, ErrJobStillRunning
	}

	replay := entity.SubmitGenerationRequest{
		JobID:          jobID,
		Kind:           job.Kind,
		Prompt:         job.Prompt,
		ModelSelection: job.ModelSelection,
		Width:          job.Width,
		Height:         job.Height,
	}
	if p := strings.TrimSpace(req.Prompt); p != "" {
		replay.Prompt = p
	}
	if m := strings.TrimSpace(req.ModelSelection); m != "" {
		replay.ModelSelection = m
	}

	refreshed := *job
	refreshed.Prompt = replay.Prompt
	refreshed.ModelSelection = replay.ModelSelection
	refreshed.Status = entity.JobStatusGenerating

	o.recordUsage(job.OwnerEmail, operation, jobID)
	go o.run(refreshed, replay)

	return &entity.SubmitGenerationResponse{JobID: jobID, Status: entity.JobStatusGenerating}, nil
}

// Research runs retrieval synchronously and submits the synthesis as a
// regular async chat job. With zero sources the synthesis falls back to
// direct-knowledge generation.
func (o *Orchestrator) Research(ctx context.Context, user *entity.DbUser, query string) (*entity.ResearchResponse, error) {
	if o.pipeline == nil {
		return nil, ErrResearchUnavailable
	}
	if err := o.quota.Allow(ctx, user, entity.OperationResearch); err != nil {
		return nil, err
	}

	report, err := o.pipeline.Run(ctx, query)
	if err != nil && !errors.Is(err, research.ErrNoSources) {
		return nil, err
	}

	resp := &entity.ResearchResponse{Sources: []entity.ResearchSourceView{}}
	prompt := query
	if report != nil && len(report.Sources) > 0 {
		resp.SynthesisAvailable = true
		prompt = report.SynthesisPrompt
		for _, s := range report.Sources {
			resp.Sources = append(resp.Sources, entity.ResearchSourceView{
				URL:            s.URL,
				Title:          s.Title,
				Snippet:        s.Snippet,
				Thumbnail:      s.Thumbnail,
				ContentExcerpt: s.ContentExcerpt,
				Summary:        s.Summary,
				KeyPoints:      s.KeyPoints,
			})
		}
	}

	jobID := uuid.NewString()
	job := &entity.DbGenerationJob{
		JobID:      jobID,
		OwnerEmail: user.Email,
		Kind:       entity.JobKindResearch,
		Prompt:     prompt,
		Status:     entity.JobStatusGenerating,
	}
	if err := o.repo.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create synthesis job: %w", err)
	}
	resp.SynthesisJobID = jobID

	o.recordUsage(user.Email, entity.OperationResearch, jobID)
	go o.run(*job, entity.SubmitGenerationRequest{
		JobID:  jobID,
		Kind:   entity.JobKindChat,
		Prompt: prompt,
	})

	return resp, nil
}

// run executes one generation attempt end to end and finalises the job with
// a single conditional terminal update.
func (o *Orchestrator) run(job entity.DbGenerationJob, req entity.SubmitGenerationRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	decision := o.router.Route(req)
	if decision.Identity {
		o.completeJob(ctx, job.JobID, entity.JobCompletion{ResultText: decision.IdentityText})
		return
	}

	outcome, err := o.executor.Execute(ctx, decision.Chain, decision.Request)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"job_id": job.JobID,
			"kind":   job.Kind,
		}).Error("generation attempt exhausted")
		o.failJob(ctx, job.JobID, entity.JobFailure{
			ErrorMessage: userFacingError(err),
			Diagnostic:   llm.DescribeFailure(err),
			Attempts:     attemptCount(err),
		})
		return
	}

	completion := entity.JobCompletion{
		Provider: outcome.Family,
		Model:    outcome.Model,
		Attempts: len(outcome.Attempts),
	}

	if job.Kind == entity.JobKindImage {
		ref, err := o.persistImage(ctx, outcome.Result.ImagePayload, outcome.Model, job.Width, job.Height)
		if err != nil {
			logrus.WithError(err).WithField("job_id", job.JobID).Error("failed to persist generated image")
			o.failJob(ctx, job.JobID, entity.JobFailure{
				ErrorMessage: "generated image could not be stored, please retry",
				Diagnostic:   err.Error(),
				Attempts:     len(outcome.Attempts),
			})
			return
		}
		completion.ResultRef = ref
		completion.ResultText = outcome.Result.Text
	} else {
		completion.ResultText = outcome.Result.Text
	}

	o.completeJob(ctx, job.JobID, completion)
}

// persistImage downloads or decodes the provider payload, corrects the
// aspect ratio and writes the final bytes to storage.
func (o *Orchestrator) persistImage(ctx context.Context, payload, modelName string, width, height int) (string, error) {
	if o.store == nil {
		return "", errors.New("storage not configured")
	}

	data, ext, err := resolveImagePayload(ctx, payload)
	if err != nil {
		return "", fmt.Errorf("resolve image payload: %w", err)
	}

	data = imaging.Normalize(data, width, height)

	base := storage.SanitizeToken(modelName)
	if base == "" {
		base = "model"
	}
	if len(base) > 32 {
		base = base[:32]
	}

	ref, err := o.store.Save(ctx, data, storage.SaveOptions{
		Category:  "generations",
		Extension: ext,
		BaseName:  fmt.Sprintf("%s_%d", base, time.Now().UTC().UnixNano()),
	})
	if err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}
	return ref, nil
}

// resolveImagePayload turns a provider result (remote URL, data URL or bare
// base64) into raw bytes plus a file extension.
func resolveImagePayload(ctx context.Context, payload string) ([]byte, string, error) {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return nil, "", errors.New("empty image payload")
	}

	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		reqCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, trimmed, nil)
		if err != nil {
			return nil, "", fmt.Errorf("create request: %w", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, "", fmt.Errorf("download image: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, "", fmt.Errorf("download image http %d", resp.StatusCode)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, "", fmt.Errorf("read image body: %w", err)
		}

		ext := utils.ExtensionFromMime(resp.Header.Get("Content-Type"))
		if ext == "" {
			ext = utils.ExtensionFromMime(http.DetectContentType(data))
		}
		if ext == "" {
			ext = "bin"
		}
		return data, ext, nil
	}

	return utils.DecodeMediaPayload(trimmed)
}

func (o *Orchestrator) completeJob(ctx context.Context, jobID string, completion entity.JobCompletion) {
	applied, err := o.repo.CompleteJob(ctx, jobID, completion)
	if err != nil {
		logrus.WithError(err).WithField("job_id", jobID).Error("failed to complete job")
		return
	}
	if !applied {
		logrus.WithField("job_id", jobID).Warn("completion skipped: job no longer generating")
		return
	}
	logrus.WithFields(logrus.Fields{
		"job_id":   jobID,
		"provider": completion.Provider,
		"model":    completion.Model,
		"attempts": completion.Attempts,
	}).Info("job completed")
}

func (o *Orchestrator) failJob(ctx context.Context, jobID string, failure entity.JobFailure) {
	applied, err := o.repo.FailJob(ctx, jobID, failure)
	if err != nil {
		logrus.WithError(err).WithField("job_id", jobID).Error("failed to record job failure")
		return
	}
	if !applied {
		logrus.WithField("job_id", jobID).Warn("failure update skipped: job no longer generating")
	}
}

func (o *Orchestrator) recordUsage(ownerEmail, operation, jobID string) {
	if o.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entry := &entity.DbUsageEntry{
		OwnerEmail: ownerEmail,
		Operation:  operation,
		JobID:      jobID,
	}
	if err := o.repo.CreateUsageEntry(ctx, entry); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"owner":     ownerEmail,
			"operation": operation,
		}).Error("failed to append usage entry")
	}
}

func (o *Orchestrator) canAccess(user *entity.DbUser, job *entity.DbGenerationJob) bool {
	if user == nil || job == nil {
		return false
	}
	return isAdmin(user) || strings.EqualFold(job.OwnerEmail, user.Email)
}

func isAdmin(user *entity.DbUser) bool {
	return user != nil && (user.Role == entity.UserRoleAdmin || user.Role == entity.UserRoleSuperAdmin)
}

func jobView(job *entity.DbGenerationJob) *entity.JobView {
	return &entity.JobView{
		JobID:        job.JobID,
		Kind:         job.Kind,
		Status:       job.Status,
		ResultRef:    job.ResultRef,
		ResultText:   job.ResultText,
		ErrorMessage: job.ErrorMessage,
		Provider:     job.Provider,
		Model:        job.Model,
		Attempts:     job.Attempts,
		CreatedAt:    job.CreatedAt,
		CompletedAt:  job.CompletedAt,
	}
}

func attachmentRefs(attachments []entity.Attachment) entity.StringArray {
	var refs entity.StringArray
	for _, a := range attachments {
		switch {
		case a.StoragePath != "":
			refs = append(refs, a.StoragePath)
		case a.URL != "":
			refs = append(refs, a.URL)
		}
	}
	return refs
}

// userFacingError maps an exhausted failover chain onto a short message a
// client can show. Operator detail stays in the diagnostic column.
func userFacingError(err error) string {
	var agg *llm.AggregateError
	if errors.As(err, &agg) && agg.LastErr != nil {
		switch agg.LastErr.Kind {
		case llm.KindContentPolicy:
			return "the request was declined by the provider's content policy"
		case llm.KindRateLimit:
			return "provider capacity is exhausted, please retry in a moment"
		case llm.KindTimeout:
			return "generation timed out, please retry"
		case llm.KindModelNotFound:
			return "the requested model is not available"
		case llm.KindInvalidRequest:
			return "the request was rejected as invalid"
		}
	}
	return "generation failed, please retry"
}

func attemptCount(err error) int {
	var agg *llm.AggregateError
	if errors.As(err, &agg) {
		return len(agg.Attempts)
	}
	return 0
}
