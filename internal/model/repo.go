package model

import (
	"context"
	"time"

	"genstudio/internal/entity"
)

// Repository defines the persistence operations used by the service layer.
type Repository interface {
	// User management
	CreateUser(ctx context.Context, user *entity.DbUser) error
	UpdateUser(ctx context.Context, id uint, updates entity.UserUpdates) error
	GetUserByEmail(ctx context.Context, email string) (*entity.DbUser, error)
	GetUserByID(ctx context.Context, id uint) (*entity.DbUser, error)
	ListUsers(ctx context.Context, params *entity.UserQuery) ([]entity.DbUser, *entity.Meta, error)
	DeleteUser(ctx context.Context, id uint) error
	CountUsers(ctx context.Context) (int64, error)

	// Generation jobs. Terminal transitions are single conditional updates:
	// they report false when another writer got there first.
	CreateJob(ctx context.Context, job *entity.DbGenerationJob) error
	GetJobByJobID(ctx context.Context, jobID string) (*entity.DbGenerationJob, error)
	ListJobs(ctx context.Context, params *entity.JobQuery) ([]entity.DbGenerationJob, *entity.Meta, error)
	CompleteJob(ctx context.Context, jobID string, completion entity.JobCompletion) (bool, error)
	FailJob(ctx context.Context, jobID string, failure entity.JobFailure) (bool, error)
	ResetJobForRegeneration(ctx context.Context, jobID string, prompt, modelSelection string) (bool, error)

	// Usage ledger
	CreateUsageEntry(ctx context.Context, entry *entity.DbUsageEntry) error
	CountUsageSince(ctx context.Context, ownerEmail, operation string, since time.Time) (int64, error)
	ListUsageEntries(ctx context.Context, params *entity.UsageQuery) ([]entity.DbUsageEntry, *entity.Meta, error)
}
