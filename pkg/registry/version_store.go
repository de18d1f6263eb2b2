package registry

import (
	"errors"
	"fmt"
	"hash/crc32"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openfleet/fleet-registry/pkg/blob"
)

// VersionStore provides operations on immutable artifact version records.
// Bytes are delegated to the blob collaborator; the store keeps only the
// returned reference plus size and CRC-32 checksum.
type VersionStore struct {
	db    *gorm.DB
	blobs blob.Store
}

// NewVersionStore creates a new VersionStore backed by the given blob store.
func NewVersionStore(db *gorm.DB, blobs blob.Store) *VersionStore {
	return &VersionStore{db: db, blobs: blobs}
}

// WithTx returns a VersionStore bound to the given transaction.
func (s *VersionStore) WithTx(tx *gorm.DB) *VersionStore {
	return &VersionStore{db: tx, blobs: s.blobs}
}

// AutoMigrate creates or updates the artifact_versions table.
func (s *VersionStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&ArtifactVersionRecord{}); err != nil {
		return fmt.Errorf("auto-migrate artifact_versions: %w", err)
	}
	return nil
}

// Checksum computes the CRC-32 (IEEE) checksum recorded on versions,
// rendered as 8 lowercase hex digits.
func Checksum(data []byte) string {
	return fmt.Sprintf("%08x", crc32.ChecksumIEEE(data))
}

// CreateVersion records a new immutable version of an artifact. The
// (merchant, typeCode) pair must exist in the catalog, and the derived
// (merchant, fullKey, versionTag) identity must be unused. The payload bytes
// are handed to the blob collaborator; a save failure surfaces as
// ErrStorageUnavailable.
func (s *VersionStore) CreateVersion(merchant, typeCode, parameter, versionTag string, payload []byte, operator string) (*ArtifactVersionRecord, error) {
	if merchant == "" || typeCode == "" || versionTag == "" {
		return nil, fmt.Errorf("%w: merchant, typeCode and versionTag are required", ErrValidation)
	}

	var typeCount int64
	if err := s.db.Model(&ArtifactTypeRecord{}).
		Where("merchant = ? AND type_code = ?", merchant, typeCode).
		Count(&typeCount).Error; err != nil {
		return nil, fmt.Errorf("check artifact type: %w", err)
	}
	if typeCount == 0 {
		return nil, fmt.Errorf("%w: artifact type %s not registered for merchant %s", ErrNotFound, typeCode, merchant)
	}

	fullKey := typeCode + parameter

	existing, err := s.GetByTag(merchant, fullKey, versionTag)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: version %s of %s already exists for merchant %s", ErrConflict, versionTag, fullKey, merchant)
	}

	ref, err := s.blobs.Save(payload, fullKey+"_"+versionTag, operator)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	record := &ArtifactVersionRecord{
		ID:            uuid.New().String(),
		Merchant:      merchant,
		TypeCode:      typeCode,
		Parameter:     parameter,
		FullKey:       fullKey,
		VersionTag:    versionTag,
		SizeBytes:     int64(len(payload)),
		Checksum:      Checksum(payload),
		SourceBlobRef: ref,
		CreatedBy:     operator,
	}
	if err := s.db.Create(record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: version %s of %s already exists for merchant %s", ErrConflict, versionTag, fullKey, merchant)
		}
		return nil, fmt.Errorf("create artifact version: %w", err)
	}
	return record, nil
}

// GetVersion retrieves a version record by its ID, including soft-deleted
// ones. Returns nil, nil if no record exists.
func (s *VersionStore) GetVersion(versionID string) (*ArtifactVersionRecord, error) {
	var record ArtifactVersionRecord
	err := s.db.Where("id = ?", versionID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get artifact version: %w", err)
	}
	return &record, nil
}

// GetByTag retrieves the live (not soft-deleted) version record for a
// (merchant, fullKey, versionTag) identity. Returns nil, nil if none exists.
func (s *VersionStore) GetByTag(merchant, fullKey, versionTag string) (*ArtifactVersionRecord, error) {
	var record ArtifactVersionRecord
	err := s.db.Where(
		"merchant = ? AND full_key = ? AND version_tag = ? AND deleted = ?",
		merchant, fullKey, versionTag, false,
	).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get artifact version by tag: %w", err)
	}
	return &record, nil
}

// SoftDelete marks a version deleted. Returns ErrConflict while any active
// publish assignment still references the version's (fullKey, versionTag).
func (s *VersionStore) SoftDelete(versionID string) error {
	record, err := s.GetVersion(versionID)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("%w: artifact version %s", ErrNotFound, versionID)
	}
	if record.Deleted {
		return nil
	}

	var refs int64
	if err := s.db.Model(&PublishAssignmentRecord{}).
		Where("merchant = ? AND full_key = ? AND version_tag = ?",
			record.Merchant, record.FullKey, record.VersionTag).
		Count(&refs).Error; err != nil {
		return fmt.Errorf("count assignment references: %w", err)
	}
	if refs > 0 {
		return fmt.Errorf("%w: version %s of %s is still published to %d target(s)",
			ErrConflict, record.VersionTag, record.FullKey, refs)
	}

	if err := s.db.Model(&ArtifactVersionRecord{}).
		Where("id = ?", versionID).
		Update("deleted", true).Error; err != nil {
		return fmt.Errorf("soft-delete artifact version: %w", err)
	}
	return nil
}

// ReadPayload returns the artifact bytes for a version from the blob
// collaborator, verifying the recorded checksum. A mismatch on bytes the
// registry itself wrote is reported as ErrIntegrity.
func (s *VersionStore) ReadPayload(record *ArtifactVersionRecord) ([]byte, error) {
	data, err := s.blobs.Read(record.SourceBlobRef)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, fmt.Errorf("%w: blob %s for version %s of %s",
				ErrNotFound, record.SourceBlobRef, record.VersionTag, record.FullKey)
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if got := Checksum(data); got != record.Checksum {
		return nil, fmt.Errorf("%w: version %s of %s has checksum %s, stored bytes hash to %s",
			ErrIntegrity, record.VersionTag, record.FullKey, record.Checksum, got)
	}
	return data, nil
}

// ListVersions returns paginated live version records for a (merchant,
// fullKey), newest first. pageToken is an RFC3339Nano timestamp; versions
// created before it are returned.
func (s *VersionStore) ListVersions(merchant, fullKey string, pageSize int, pageToken string) ([]ArtifactVersionRecord, string, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	query := s.db.Where("merchant = ? AND full_key = ? AND deleted = ?", merchant, fullKey, false).
		Order("created_at DESC").Limit(pageSize + 1)
	if pageToken != "" {
		t, err := time.Parse(time.RFC3339Nano, pageToken)
		if err != nil {
			return nil, "", fmt.Errorf("%w: invalid page token", ErrValidation)
		}
		query = query.Where("created_at < ?", t)
	}

	var records []ArtifactVersionRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, "", fmt.Errorf("list artifact versions: %w", err)
	}

	var nextToken string
	if len(records) > pageSize {
		nextToken = records[pageSize-1].CreatedAt.Format(time.RFC3339Nano)
		records = records[:pageSize]
	}

	return records, nextToken, nil
}
