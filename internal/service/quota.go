package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"genstudio/internal/config"
	"genstudio/internal/entity"
	"genstudio/internal/model"
)

// ErrQuotaExceeded is returned when a free-plan user hits their window limit.
var ErrQuotaExceeded = errors.New("quota exceeded for current plan")

// QuotaGate enforces per-plan usage limits by counting ledger entries inside
// the operation's window. Image and chat quotas use a daily window, research
// a monthly one. Pro-plan users are never count-limited.
type QuotaGate struct {
	repo            model.Repository
	dailyImage      int
	dailyChat       int
	monthlyResearch int
}

// NewQuotaGate builds the gate from configured free-tier limits.
func NewQuotaGate(repo model.Repository, cfg config.Config) *QuotaGate {
	return &QuotaGate{
		repo:            repo,
		dailyImage:      cfg.FreeDailyImageLimit,
		dailyChat:       cfg.FreeDailyChatLimit,
		monthlyResearch: cfg.FreeMonthlyResearchLimit,
	}
}

// Allow reports whether the user may perform one more operation of the given
// type. A zero or negative configured limit disables the check.
func (q *QuotaGate) Allow(ctx context.Context, user *entity.DbUser, operation string) error {
	if q == nil || q.repo == nil || user == nil {
		return nil
	}
	if user.IsUnlimited() {
		return nil
	}

	limit, since := q.window(operation)
	if limit <= 0 {
		return nil
	}

	count, err := q.repo.CountUsageSince(ctx, user.Email, operation, since)
	if err != nil {
		return fmt.Errorf("count usage: %w", err)
	}
	if count >= int64(limit) {
		return fmt.Errorf("%w: %s limit of %d reached", ErrQuotaExceeded, operation, limit)
	}
	return nil
}

// window resolves the limit and window start for an operation.
func (q *QuotaGate) window(operation string) (int, time.Time) {
	now := time.Now().UTC()
	switch operation {
	case entity.OperationImage:
		return q.dailyImage, startOfDay(now)
	case entity.OperationChat:
		return q.dailyChat, startOfDay(now)
	case entity.OperationResearch:
		return q.monthlyResearch, startOfMonth(now)
	default:
		return 0, now
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
