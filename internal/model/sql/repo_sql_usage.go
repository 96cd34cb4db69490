package sql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"genstudio/internal/entity"
)

// CreateUsageEntry appends one row to the usage ledger.
func (r *GormRepository) CreateUsageEntry(ctx context.Context, entry *entity.DbUsageEntry) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if entry == nil {
		return fmt.Errorf("entry is nil")
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// CountUsageSince counts ledger entries for an owner and operation within the
// current quota window.
func (r *GormRepository) CountUsageSince(ctx context.Context, ownerEmail, operation string, since time.Time) (int64, error) {
	if r == nil || r.db == nil {
		return 0, fmt.Errorf("repository not initialised")
	}
	trimmed := strings.TrimSpace(ownerEmail)
	if trimmed == "" {
		return 0, fmt.Errorf("owner email is empty")
	}

	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.DbUsageEntry{}).
		Where("owner_email = ? AND operation = ? AND created_at >= ?", trimmed, operation, since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ListUsageEntries retrieves paginated ledger entries, newest first.
func (r *GormRepository) ListUsageEntries(ctx context.Context, params *entity.UsageQuery) ([]entity.DbUsageEntry, *entity.Meta, error) {
	if r == nil || r.db == nil {
		return nil, nil, fmt.Errorf("repository not initialised")
	}

	query := r.db.WithContext(ctx).Model(&entity.DbUsageEntry{})
	if params != nil {
		if !params.IncludeAll {
			if trimmed := strings.TrimSpace(params.OwnerEmail); trimmed != "" {
				query = query.Where("owner_email = ?", trimmed)
			}
		}
		if trimmed := strings.TrimSpace(params.Operation); trimmed != "" {
			query = query.Where("operation = ?", trimmed)
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

	var entries []entity.DbUsageEntry
	if err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(pageSize).Find(&entries).Error; err != nil {
		return nil, nil, err
	}

	meta := r.calculatePagination(total, page, pageSize)
	return entries, meta, nil
}
