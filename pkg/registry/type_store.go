package registry

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TypeStore provides operations on the artifact catalog: the named artifact
// types a merchant may publish under.
type TypeStore struct {
	db *gorm.DB
}

// NewTypeStore creates a new TypeStore.
func NewTypeStore(db *gorm.DB) *TypeStore {
	return &TypeStore{db: db}
}

// AutoMigrate creates or updates the artifact_types table.
func (s *TypeStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&ArtifactTypeRecord{}); err != nil {
		return fmt.Errorf("auto-migrate artifact_types: %w", err)
	}
	return nil
}

// RegisterType creates a new artifact type for a merchant. Returns
// ErrConflict if the (merchant, typeCode) pair already exists.
func (s *TypeStore) RegisterType(merchant, typeCode, name, operator string) (*ArtifactTypeRecord, error) {
	if merchant == "" || typeCode == "" {
		return nil, fmt.Errorf("%w: merchant and typeCode are required", ErrValidation)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: type name is required", ErrValidation)
	}

	existing, err := s.GetType(merchant, typeCode)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: artifact type %s already registered for merchant %s", ErrConflict, typeCode, merchant)
	}

	record := &ArtifactTypeRecord{
		ID:        uuid.New().String(),
		Merchant:  merchant,
		TypeCode:  typeCode,
		Name:      name,
		CreatedBy: operator,
	}
	if err := s.db.Create(record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: artifact type %s already registered for merchant %s", ErrConflict, typeCode, merchant)
		}
		return nil, fmt.Errorf("create artifact type: %w", err)
	}
	return record, nil
}

// GetType retrieves an artifact type. Returns nil, nil if no record exists.
func (s *TypeStore) GetType(merchant, typeCode string) (*ArtifactTypeRecord, error) {
	var record ArtifactTypeRecord
	err := s.db.Where("merchant = ? AND type_code = ?", merchant, typeCode).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get artifact type: %w", err)
	}
	return &record, nil
}

// DeleteType removes an artifact type. Returns ErrNotFound if the type does
// not exist and ErrConflict if any version still references it.
func (s *TypeStore) DeleteType(merchant, typeCode string) error {
	existing, err := s.GetType(merchant, typeCode)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("%w: artifact type %s for merchant %s", ErrNotFound, typeCode, merchant)
	}

	var refs int64
	if err := s.db.Model(&ArtifactVersionRecord{}).
		Where("merchant = ? AND type_code = ?", merchant, typeCode).
		Count(&refs).Error; err != nil {
		return fmt.Errorf("count type references: %w", err)
	}
	if refs > 0 {
		return fmt.Errorf("%w: artifact type %s still referenced by %d version(s)", ErrConflict, typeCode, refs)
	}

	if err := s.db.Where("merchant = ? AND type_code = ?", merchant, typeCode).
		Delete(&ArtifactTypeRecord{}).Error; err != nil {
		return fmt.Errorf("delete artifact type: %w", err)
	}
	return nil
}

// ListTypes returns paginated artifact types for a merchant, ordered by type
// code. pageToken is the typeCode of the last record from the previous page;
// pass "" for the first page.
func (s *TypeStore) ListTypes(merchant string, pageSize int, pageToken string) ([]ArtifactTypeRecord, string, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	query := s.db.Where("merchant = ?", merchant).Order("type_code ASC").Limit(pageSize + 1)
	if pageToken != "" {
		query = query.Where("type_code > ?", pageToken)
	}

	var records []ArtifactTypeRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, "", fmt.Errorf("list artifact types: %w", err)
	}

	var nextToken string
	if len(records) > pageSize {
		nextToken = records[pageSize-1].TypeCode
		records = records[:pageSize]
	}

	return records, nextToken, nil
}
