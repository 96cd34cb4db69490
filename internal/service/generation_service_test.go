package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genstudio/internal/config"
	"genstudio/internal/entity"
	"genstudio/internal/llm"
	"genstudio/internal/research"
	"genstudio/internal/router"
)

func chatDecision() router.Decision {
	return router.Decision{
		Chain:   []llm.Candidate{{Family: "openai", Model: "gpt-4o-mini", Kind: llm.KindCompletion}},
		Request: llm.Request{Prompt: "hello"},
	}
}

func chatOutcome(text string) *llm.Outcome {
	return &llm.Outcome{
		Result:   &llm.Result{Text: text},
		Family:   "openai",
		Model:    "gpt-4o-mini",
		Attempts: []llm.Attempt{{Family: "openai", Model: "gpt-4o-mini"}},
	}
}

func pngDataURL(t *testing.T, width, height int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestSubmitCompletesChatJob(t *testing.T) {
	repo := newMemRepo()
	rt := &fakeRouter{decision: chatDecision()}
	exec := &fakeExecutor{outcomes: []*llm.Outcome{chatOutcome("the answer")}}
	orch := NewOrchestrator(repo, newMemStorage(), rt, exec, nil, nil)

	resp, err := orch.Submit(context.Background(), freeUser(), entity.SubmitGenerationRequest{
		Kind:   entity.JobKindChat,
		Prompt: "explain goroutines",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusGenerating, resp.Status)
	assert.NotEmpty(t, resp.JobID)

	job := waitForTerminal(t, repo, resp.JobID)
	assert.Equal(t, entity.JobStatusCompleted, job.Status)
	assert.Equal(t, "the answer", job.ResultText)
	assert.Equal(t, "openai", job.Provider)
	assert.Equal(t, "gpt-4o-mini", job.Model)
	assert.Equal(t, 1, job.Attempts)
	require.NotNil(t, job.CompletedAt)

	entries := repo.usageEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, entity.OperationChat, entries[0].Operation)
	assert.Equal(t, resp.JobID, entries[0].JobID)
}

func TestSubmitIdentityShortCircuit(t *testing.T) {
	repo := newMemRepo()
	rt := &fakeRouter{decision: router.Decision{Identity: true, IdentityText: "I am the assistant."}}
	exec := &fakeExecutor{}
	orch := NewOrchestrator(repo, newMemStorage(), rt, exec, nil, nil)

	resp, err := orch.Submit(context.Background(), freeUser(), entity.SubmitGenerationRequest{
		Kind:   entity.JobKindChat,
		Prompt: "who are you?",
	})
	require.NoError(t, err)

	job := waitForTerminal(t, repo, resp.JobID)
	assert.Equal(t, entity.JobStatusCompleted, job.Status)
	assert.Equal(t, "I am the assistant.", job.ResultText)
	assert.Zero(t, exec.callCount())
}

func TestSubmitValidatesKindAndPrompt(t *testing.T) {
	orch := NewOrchestrator(newMemRepo(), newMemStorage(), &fakeRouter{}, &fakeExecutor{}, nil, nil)

	_, err := orch.Submit(context.Background(), freeUser(), entity.SubmitGenerationRequest{Kind: "video", Prompt: "x"})
	assert.Error(t, err)

	_, err = orch.Submit(context.Background(), freeUser(), entity.SubmitGenerationRequest{Kind: entity.JobKindChat, Prompt: "   "})
	assert.Error(t, err)
}

func TestSubmitRejectsOverQuota(t *testing.T) {
	repo := newMemRepo()
	repo.usageCount = 1
	gate := NewQuotaGate(repo, config.Config{FreeDailyChatLimit: 1})
	orch := NewOrchestrator(repo, newMemStorage(), &fakeRouter{}, &fakeExecutor{}, nil, gate)

	_, err := orch.Submit(context.Background(), freeUser(), entity.SubmitGenerationRequest{
		Kind:   entity.JobKindChat,
		Prompt: "one too many",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Empty(t, repo.usageEntries())
}

func TestSubmitImageJobStoresResult(t *testing.T) {
	repo := newMemRepo()
	store := newMemStorage()
	rt := &fakeRouter{decision: router.Decision{
		Chain:   []llm.Candidate{{Family: "gemini", Model: "gemini-2.5-flash-image-preview", Kind: llm.KindImage}},
		Request: llm.Request{Prompt: "a fox", Size: "1024x1024"},
	}}
	exec := &fakeExecutor{outcomes: []*llm.Outcome{{
		Result:   &llm.Result{ImagePayload: pngDataURL(t, 32, 32)},
		Family:   "gemini",
		Model:    "gemini-2.5-flash-image-preview",
		Attempts: []llm.Attempt{{Family: "gemini"}},
	}}}
	orch := NewOrchestrator(repo, store, rt, exec, nil, nil)

	resp, err := orch.Submit(context.Background(), freeUser(), entity.SubmitGenerationRequest{
		Kind:   entity.JobKindImage,
		Prompt: "a fox",
		Width:  32,
		Height: 32,
	})
	require.NoError(t, err)

	job := waitForTerminal(t, repo, resp.JobID)
	assert.Equal(t, entity.JobStatusCompleted, job.Status)
	assert.NotEmpty(t, job.ResultRef)

	data, err := store.Load(context.Background(), job.ResultRef)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestExhaustedChainFailsJobWithUserMessage(t *testing.T) {
	repo := newMemRepo()
	rt := &fakeRouter{decision: chatDecision()}
	agg := &llm.AggregateError{
		Attempts: []llm.Attempt{
			{Family: "openai", Model: "gpt-4o-mini", Err: "429"},
			{Family: "gemini", Model: "gemini-2.5-flash", Err: "429"},
		},
		LastErr: &llm.ProviderError{Family: "gemini", StatusCode: 429, Kind: llm.KindRateLimit, Message: "quota"},
	}
	exec := &fakeExecutor{errs: []error{agg}}
	orch := NewOrchestrator(repo, newMemStorage(), rt, exec, nil, nil)

	resp, err := orch.Submit(context.Background(), freeUser(), entity.SubmitGenerationRequest{
		Kind:   entity.JobKindChat,
		Prompt: "hi",
	})
	require.NoError(t, err)

	job := waitForTerminal(t, repo, resp.JobID)
	assert.Equal(t, entity.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "capacity")
	assert.Contains(t, job.Diagnostic, "attempt 1")
	assert.Equal(t, 2, job.Attempts)
}

func TestStorageFailureFailsImageJob(t *testing.T) {
	repo := newMemRepo()
	store := newMemStorage()
	store.err = assert.AnError
	rt := &fakeRouter{decision: router.Decision{
		Chain:   []llm.Candidate{{Family: "openai", Model: "gpt-image-1", Kind: llm.KindImage}},
		Request: llm.Request{Prompt: "a fox"},
	}}
	exec := &fakeExecutor{outcomes: []*llm.Outcome{{
		Result: &llm.Result{ImagePayload: pngDataURL(t, 8, 8)},
		Family: "openai",
		Model:  "gpt-image-1",
	}}}
	orch := NewOrchestrator(repo, store, rt, exec, nil, nil)

	resp, err := orch.Submit(context.Background(), freeUser(), entity.SubmitGenerationRequest{
		Kind:   entity.JobKindImage,
		Prompt: "a fox",
	})
	require.NoError(t, err)

	job := waitForTerminal(t, repo, resp.JobID)
	assert.Equal(t, entity.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "stored")
}

func TestPollUnknownJobReportsGenerating(t *testing.T) {
	orch := NewOrchestrator(newMemRepo(), newMemStorage(), &fakeRouter{}, &fakeExecutor{}, nil, nil)

	view, err := orch.Poll(context.Background(), freeUser(), "missing-id")
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusGenerating, view.Status)
	assert.Equal(t, "missing-id", view.JobID)
}

func TestPollHidesForeignJobs(t *testing.T) {
	repo := newMemRepo()
	require.NoError(t, repo.CreateJob(context.Background(), &entity.DbGenerationJob{
		JobID:      "job-1",
		OwnerEmail: "other@example.com",
		Kind:       entity.JobKindChat,
		Status:     entity.JobStatusCompleted,
	}))
	orch := NewOrchestrator(repo, newMemStorage(), &fakeRouter{}, &fakeExecutor{}, nil, nil)

	_, err := orch.Poll(context.Background(), freeUser(), "job-1")
	assert.ErrorIs(t, err, ErrJobNotFound)

	admin := &entity.DbUser{Email: "admin@example.com", Role: entity.UserRoleSuperAdmin}
	view, err := orch.Poll(context.Background(), admin, "job-1")
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusCompleted, view.Status)
}

func TestRegenerateRequiresTerminalState(t *testing.T) {
	repo := newMemRepo()
	user := freeUser()
	require.NoError(t, repo.CreateJob(context.Background(), &entity.DbGenerationJob{
		JobID:      "job-busy",
		OwnerEmail: user.Email,
		Kind:       entity.JobKindChat,
		Status:     entity.JobStatusGenerating,
	}))
	orch := NewOrchestrator(repo, newMemStorage(), &fakeRouter{}, &fakeExecutor{}, nil, nil)

	_, err := orch.Regenerate(context.Background(), user, "job-busy", entity.SubmitGenerationRequest{})
	assert.ErrorIs(t, err, ErrJobStillRunning)
}

func TestRegenerateResetsAndReplays(t *testing.T) {
	repo := newMemRepo()
	user := freeUser()
	require.NoError(t, repo.CreateJob(context.Background(), &entity.DbGenerationJob{
		JobID:      "job-redo",
		OwnerEmail: user.Email,
		Kind:       entity.JobKindChat,
		Prompt:     "old prompt",
		Status:     entity.JobStatusFailed,
	}))
	rt := &fakeRouter{decision: chatDecision()}
	exec := &fakeExecutor{outcomes: []*llm.Outcome{chatOutcome("second try")}}
	orch := NewOrchestrator(repo, newMemStorage(), rt, exec, nil, nil)

	resp, err := orch.Regenerate(context.Background(), user, "job-redo", entity.SubmitGenerationRequest{
		Prompt: "new prompt",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusGenerating, resp.Status)

	job := waitForTerminal(t, repo, "job-redo")
	assert.Equal(t, entity.JobStatusCompleted, job.Status)
	assert.Equal(t, "second try", job.ResultText)
	assert.Equal(t, "new prompt", job.Prompt)

	routed := rt.routed()
	require.Len(t, routed, 1)
	assert.Equal(t, "new prompt", routed[0].Prompt)
}

func TestRegenerateUnknownJob(t *testing.T) {
	orch := NewOrchestrator(newMemRepo(), newMemStorage(), &fakeRouter{}, &fakeExecutor{}, nil, nil)

	_, err := orch.Regenerate(context.Background(), freeUser(), "nope", entity.SubmitGenerationRequest{})
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestResearchSubmitsSynthesisJob(t *testing.T) {
	repo := newMemRepo()
	rt := &fakeRouter{decision: chatDecision()}
	exec := &fakeExecutor{outcomes: []*llm.Outcome{chatOutcome("synthesized report")}}
	pipeline := &fakePipeline{report: &research.Report{
		Query: "go concurrency",
		Sources: []research.Source{
			{URL: "https://example.com/a", Title: "A", Summary: "summary a"},
			{URL: "https://example.com/b", Title: "B"},
		},
		SynthesisPrompt: "synthesize with citations",
	}}
	orch := NewOrchestrator(repo, newMemStorage(), rt, exec, pipeline, nil)

	resp, err := orch.Research(context.Background(), freeUser(), "go concurrency")
	require.NoError(t, err)
	assert.True(t, resp.SynthesisAvailable)
	require.Len(t, resp.Sources, 2)
	assert.Equal(t, "https://example.com/a", resp.Sources[0].URL)
	require.NotEmpty(t, resp.SynthesisJobID)

	job := waitForTerminal(t, repo, resp.SynthesisJobID)
	assert.Equal(t, entity.JobStatusCompleted, job.Status)
	assert.Equal(t, "synthesized report", job.ResultText)
	assert.Equal(t, entity.JobKindResearch, job.Kind)
	assert.Equal(t, "synthesize with citations", job.Prompt)
}

func TestResearchNoSourcesFallsBackToDirectKnowledge(t *testing.T) {
	repo := newMemRepo()
	rt := &fakeRouter{decision: chatDecision()}
	exec := &fakeExecutor{outcomes: []*llm.Outcome{chatOutcome("from memory")}}
	pipeline := &fakePipeline{err: research.ErrNoSources}
	orch := NewOrchestrator(repo, newMemStorage(), rt, exec, pipeline, nil)

	resp, err := orch.Research(context.Background(), freeUser(), "obscure topic")
	require.NoError(t, err)
	assert.False(t, resp.SynthesisAvailable)
	assert.Empty(t, resp.Sources)
	require.NotEmpty(t, resp.SynthesisJobID)

	job := waitForTerminal(t, repo, resp.SynthesisJobID)
	assert.Equal(t, entity.JobStatusCompleted, job.Status)
	assert.Equal(t, "obscure topic", job.Prompt)
}
