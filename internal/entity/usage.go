package entity

import "time"

// Operation types recorded in the usage ledger.
const (
	OperationChat     = "chat"
	OperationImage    = "image"
	OperationResearch = "research"
)

// DbUsageEntry is an append-only ledger row. Entries are created once per
// accepted request and never mutated; quota windows are computed by counting.
type DbUsageEntry struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	OwnerEmail string  `gorm:"column:owner_email;type:varchar(255);index;not null" json:"owner_email"`
	Operation  string  `gorm:"column:operation;type:varchar(32);index;not null" json:"operation"`
	JobID      string  `gorm:"column:job_id;type:varchar(64);index" json:"job_id"`
	Metadata   JSONMap `gorm:"column:metadata;type:json" json:"metadata,omitempty"`
}

// TableName overrides the default pluralised name.
func (DbUsageEntry) TableName() string {
	return "usage_entries"
}

// UsageQuery supports listing usage entries with pagination.
type UsageQuery struct {
	BaseParams
	OwnerEmail string `form:"-"`
	Operation  string `form:"operation"`
	IncludeAll bool   `form:"-"`
}
