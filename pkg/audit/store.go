package audit

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// EventRecord is one recorded admin action.
type EventRecord struct {
	ID         string    `gorm:"column:id;primaryKey"`
	Merchant   string    `gorm:"column:merchant;index:idx_audit_merchant"`
	Operator   string    `gorm:"column:operator"`
	RequestID  string    `gorm:"column:request_id"`
	Method     string    `gorm:"column:method;not null"`
	Path       string    `gorm:"column:path;not null"`
	Resource   string    `gorm:"column:resource"`
	Action     string    `gorm:"column:action"`
	Outcome    string    `gorm:"column:outcome;not null"` // success, denied, error
	StatusCode int       `gorm:"column:status_code"`
	DurationMS int64     `gorm:"column:duration_ms"`
	CreatedAt  time.Time `gorm:"column:created_at;index"`
}

func (EventRecord) TableName() string {
	return "audit_events"
}

// Store persists audit events.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new audit Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the audit_events table.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&EventRecord{}); err != nil {
		return fmt.Errorf("auto-migrate audit_events: %w", err)
	}
	return nil
}

// Append records an event.
func (s *Store) Append(event *EventRecord) error {
	if err := s.db.Create(event).Error; err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// List returns events for a merchant, newest first. pageToken is an
// RFC3339Nano timestamp; events created before it are returned.
func (s *Store) List(merchant string, pageSize int, pageToken string) ([]EventRecord, string, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	query := s.db.Where("merchant = ?", merchant).
		Order("created_at DESC").Limit(pageSize + 1)
	if pageToken != "" {
		t, err := time.Parse(time.RFC3339Nano, pageToken)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token")
		}
		query = query.Where("created_at < ?", t)
	}

	var records []EventRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, "", fmt.Errorf("list audit events: %w", err)
	}

	var nextToken string
	if len(records) > pageSize {
		nextToken = records[pageSize-1].CreatedAt.Format(time.RFC3339Nano)
		records = records[:pageSize]
	}

	return records, nextToken, nil
}

// DeleteOlderThan removes events created before the cutoff and returns the
// number of rows deleted.
func (s *Store) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := s.db.Where("created_at < ?", cutoff).Delete(&EventRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete audit events: %w", result.Error)
	}
	return result.RowsAffected, nil
}
