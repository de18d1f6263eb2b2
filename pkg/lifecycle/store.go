package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/openfleet/fleet-registry/pkg/registry"
)

// ContentStore persists authored content records.
type ContentStore struct {
	db *gorm.DB
}

// NewContentStore creates a new ContentStore.
func NewContentStore(db *gorm.DB) *ContentStore {
	return &ContentStore{db: db}
}

// WithTx returns a ContentStore bound to the given transaction.
func (s *ContentStore) WithTx(tx *gorm.DB) *ContentStore {
	return &ContentStore{db: tx}
}

// AutoMigrate creates or updates the authored_contents table.
func (s *ContentStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&ContentRecord{}); err != nil {
		return fmt.Errorf("auto-migrate authored_contents: %w", err)
	}
	return nil
}

// Get retrieves a content record scoped to a merchant. Returns nil, nil if
// no record exists.
func (s *ContentStore) Get(merchant, id string) (*ContentRecord, error) {
	var record ContentRecord
	err := s.db.Where("merchant = ? AND id = ?", merchant, id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get content record: %w", err)
	}
	return &record, nil
}

// HighestTag returns the numerically greatest version tag minted for a
// parent key, or "" when the parent has no revisions yet.
func (s *ContentStore) HighestTag(merchant, parentKey string) (string, error) {
	var tags []string
	err := s.db.Model(&ContentRecord{}).
		Where("merchant = ? AND parent_key = ?", merchant, parentKey).
		Pluck("version_tag", &tags).Error
	if err != nil {
		return "", fmt.Errorf("list version tags: %w", err)
	}

	highest := ""
	for _, tag := range tags {
		if highest == "" || tagValue(tag) > tagValue(highest) {
			highest = tag
		}
	}
	return highest, nil
}

// List returns the revisions of a parent key, newest tag first.
func (s *ContentStore) List(merchant, parentKey string) ([]ContentRecord, error) {
	var records []ContentRecord
	err := s.db.Where("merchant = ? AND parent_key = ?", merchant, parentKey).
		Order("created_at DESC").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list content records: %w", err)
	}
	return records, nil
}

// create inserts a record after validating its identity fields.
func (s *ContentStore) create(record *ContentRecord) error {
	if err := s.db.Create(record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: revision %s of %s already minted", registry.ErrConflict,
				record.VersionTag, record.ParentKey)
		}
		return fmt.Errorf("create content record: %w", err)
	}
	return nil
}

// save persists the full record state.
func (s *ContentStore) save(record *ContentRecord) error {
	if err := s.db.Save(record).Error; err != nil {
		return fmt.Errorf("save content record: %w", err)
	}
	return nil
}

// markPublished transitions a submitted record to published. The status
// guard in the WHERE clause makes the transition fail if the record was
// deleted or moved out of submitted since it was read.
func (s *ContentStore) markPublished(merchant, id string, at time.Time) error {
	result := s.db.Model(&ContentRecord{}).
		Where("merchant = ? AND id = ? AND status = ?", merchant, id, string(StatusSubmitted)).
		Updates(map[string]any{"status": string(StatusPublished), "published_at": at})
	if result.Error != nil {
		return fmt.Errorf("mark content record published: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: content record %s is no longer submitted", registry.ErrConflict, id)
	}
	return nil
}

// delete removes a record. Only the workflow may call this, and only for
// drafts.
func (s *ContentStore) delete(merchant, id string) error {
	result := s.db.Where("merchant = ? AND id = ?", merchant, id).Delete(&ContentRecord{})
	if result.Error != nil {
		return fmt.Errorf("delete content record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: content record %s", registry.ErrNotFound, id)
	}
	return nil
}
