package sql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"genstudio/internal/entity"
)

// CreateJob persists a new generation job in its initial state.
func (r *GormRepository) CreateJob(ctx context.Context, job *entity.DbGenerationJob) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	if strings.TrimSpace(job.JobID) == "" {
		return fmt.Errorf("job id is empty")
	}
	if job.Status == "" {
		job.Status = entity.JobStatusGenerating
	}
	return r.db.WithContext(ctx).Create(job).Error
}

// GetJobByJobID loads one job by its external identifier.
func (r *GormRepository) GetJobByJobID(ctx context.Context, jobID string) (*entity.DbGenerationJob, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	trimmed := strings.TrimSpace(jobID)
	if trimmed == "" {
		return nil, fmt.Errorf("job id is empty")
	}
	var job entity.DbGenerationJob
	if err := r.db.WithContext(ctx).Where("job_id = ?", trimmed).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs returns paginated jobs, newest first.
func (r *GormRepository) ListJobs(ctx context.Context, params *entity.JobQuery) ([]entity.DbGenerationJob, *entity.Meta, error) {
	if r == nil || r.db == nil {
		return nil, nil, fmt.Errorf("repository not initialised")
	}

	query := r.db.WithContext(ctx).Model(&entity.DbGenerationJob{})
	if params != nil {
		if !params.IncludeAll {
			if trimmed := strings.TrimSpace(params.OwnerEmail); trimmed != "" {
				query = query.Where("owner_email = ?", trimmed)
			}
		}
		if trimmed := strings.TrimSpace(params.Kind); trimmed != "" {
			query = query.Where("kind = ?", trimmed)
		}
		if trimmed := strings.TrimSpace(params.Status); trimmed != "" {
			query = query.Where("status = ?", trimmed)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, nil, err
	}

	page := 1
	pageSize := 20
	if params != nil {
		if params.Page > 0 {
			page = int(params.Page)
		}
		if params.PageSize > 0 {
			pageSize = int(params.PageSize)
		}
	}

	offset := (page - 1) * pageSize
	if offset < 0 {
		offset = 0
	}

	var jobs []entity.DbGenerationJob
	if err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(pageSize).Find(&jobs).Error; err != nil {
		return nil, nil, err
	}

	meta := r.calculatePagination(total, page, pageSize)
	return jobs, meta, nil
}

// CompleteJob moves a job from generating to completed in one conditional
// update. Returns false when the job was not in generating state, meaning
// another writer already finalised it.
func (r *GormRepository) CompleteJob(ctx context.Context, jobID string, completion entity.JobCompletion) (bool, error) {
	if r == nil || r.db == nil {
		return false, fmt.Errorf("repository not initialised")
	}
	trimmed := strings.TrimSpace(jobID)
	if trimmed == "" {
		return false, fmt.Errorf("job id is empty")
	}

	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&entity.DbGenerationJob{}).
		Where("job_id = ? AND status = ?", trimmed, entity.JobStatusGenerating).
		Updates(map[string]interface{}{
			"status":        entity.JobStatusCompleted,
			"result_ref":    completion.ResultRef,
			"result_text":   completion.ResultText,
			"error_message": "",
			"diagnostic":    "",
			"provider":      completion.Provider,
			"model":         completion.Model,
			"attempts":      completion.Attempts,
			"completed_at":  &now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FailJob moves a job from generating to failed in one conditional update.
// Returns false when the job was not in generating state.
func (r *GormRepository) FailJob(ctx context.Context, jobID string, failure entity.JobFailure) (bool, error) {
	if r == nil || r.db == nil {
		return false, fmt.Errorf("repository not initialised")
	}
	trimmed := strings.TrimSpace(jobID)
	if trimmed == "" {
		return false, fmt.Errorf("job id is empty")
	}

	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&entity.DbGenerationJob{}).
		Where("job_id = ? AND status = ?", trimmed, entity.JobStatusGenerating).
		Updates(map[string]interface{}{
			"status":        entity.JobStatusFailed,
			"error_message": failure.ErrorMessage,
			"diagnostic":    failure.Diagnostic,
			"attempts":      failure.Attempts,
			"completed_at":  &now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ResetJobForRegeneration re-enters generating from a terminal state,
// clearing the previous result and error in the same statement so clients
// never observe stale completed data next to a generating status. Returns
// false when the job is still generating.
func (r *GormRepository) ResetJobForRegeneration(ctx context.Context, jobID string, prompt, modelSelection string) (bool, error) {
	if r == nil || r.db == nil {
		return false, fmt.Errorf("repository not initialised")
	}
	trimmed := strings.TrimSpace(jobID)
	if trimmed == "" {
		return false, fmt.Errorf("job id is empty")
	}

	updates := map[string]interface{}{
		"status":        entity.JobStatusGenerating,
		"result_ref":    "",
		"result_text":   "",
		"error_message": "",
		"diagnostic":    "",
		"provider":      "",
		"model":         "",
		"attempts":      0,
		"completed_at":  nil,
	}
	if p := strings.TrimSpace(prompt); p != "" {
		updates["prompt"] = p
	}
	if m := strings.TrimSpace(modelSelection); m != "" {
		updates["model_selection"] = m
	}

	result := r.db.WithContext(ctx).
		Model(&entity.DbGenerationJob{}).
		Where("job_id = ? AND status IN ?", trimmed, []string{entity.JobStatusCompleted, entity.JobStatusFailed}).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
