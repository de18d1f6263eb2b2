package registry

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeviceStore is the read model over the device registry. The resolve path
// consults it to recover a device's line when the caller omits it; writes
// happen only through registry sync (Upsert).
type DeviceStore struct {
	db *gorm.DB
}

// NewDeviceStore creates a new DeviceStore.
func NewDeviceStore(db *gorm.DB) *DeviceStore {
	return &DeviceStore{db: db}
}

// AutoMigrate creates or updates the devices table.
func (s *DeviceStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&DeviceRecord{}); err != nil {
		return fmt.Errorf("auto-migrate devices: %w", err)
	}
	return nil
}

// Get retrieves a device by its merchant-scoped device ID.
// Returns nil, nil if no record exists.
func (s *DeviceStore) Get(merchant, deviceID string) (*DeviceRecord, error) {
	var record DeviceRecord
	err := s.db.Where("merchant = ? AND device_id = ?", merchant, deviceID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get device: %w", err)
	}
	return &record, nil
}

// Upsert creates or updates a device record on the (merchant, device_id)
// unique index. Used by the registry sync feed.
func (s *DeviceStore) Upsert(record *DeviceRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "merchant"}, {Name: "device_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"line_id", "serial", "updated_at"}),
	}).Create(record).Error
}

// List returns all devices for a merchant, ordered by device ID.
func (s *DeviceStore) List(merchant string) ([]DeviceRecord, error) {
	var records []DeviceRecord
	err := s.db.Where("merchant = ?", merchant).Order("device_id ASC").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return records, nil
}
