// Package registry implements the hierarchical publishing and
// version-resolution core of the fleet registry: the artifact catalog,
// immutable version store, publish ledger with append-only history, and the
// resolution engine consulted by devices.
package registry

import (
	"fmt"
	"time"
)

// TargetLevel is the granularity at which a publish applies.
type TargetLevel string

const (
	// LevelTerminal targets a single device or a membership group of devices.
	LevelTerminal TargetLevel = "terminal"
	// LevelLine targets all devices sharing a line.
	LevelLine TargetLevel = "line"
	// LevelMerchant targets every device of a tenant.
	LevelMerchant TargetLevel = "merchant"
)

// ParseTargetLevel converts a wire string to a TargetLevel.
func ParseTargetLevel(s string) (TargetLevel, error) {
	switch TargetLevel(s) {
	case LevelTerminal, LevelLine, LevelMerchant:
		return TargetLevel(s), nil
	default:
		return "", fmt.Errorf("%w: unknown target level %q (expected terminal, line or merchant)", ErrValidation, s)
	}
}

// OperationType classifies a publish history row.
type OperationType string

const (
	OpPublish OperationType = "publish"
	OpRevoke  OperationType = "revoke"
)

// ArtifactTypeRecord identifies a named artifact type within a merchant,
// e.g. a firmware slot or a pricing-table type.
type ArtifactTypeRecord struct {
	ID        string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	Merchant  string    `gorm:"column:merchant;uniqueIndex:idx_type_identity,priority:1;not null"`
	TypeCode  string    `gorm:"column:type_code;uniqueIndex:idx_type_identity,priority:2;not null"`
	Name      string    `gorm:"column:name;not null"`
	CreatedBy string    `gorm:"column:created_by"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the GORM table name.
func (ArtifactTypeRecord) TableName() string { return "artifact_types" }

// ArtifactVersionRecord is an immutable content descriptor: one row per
// uploaded or rendered artifact revision. Only the Deleted flag ever changes
// after creation.
type ArtifactVersionRecord struct {
	ID            string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	Merchant      string    `gorm:"column:merchant;uniqueIndex:idx_version_identity,priority:1;not null"`
	TypeCode      string    `gorm:"column:type_code;not null"`
	Parameter     string    `gorm:"column:parameter"`
	FullKey       string    `gorm:"column:full_key;uniqueIndex:idx_version_identity,priority:2;not null"`
	VersionTag    string    `gorm:"column:version_tag;uniqueIndex:idx_version_identity,priority:3;not null"`
	SizeBytes     int64     `gorm:"column:size_bytes;not null"`
	Checksum      string    `gorm:"column:checksum;not null"` // CRC-32 (IEEE), 8 lowercase hex digits
	SourceBlobRef string    `gorm:"column:source_blob_ref;not null"`
	Deleted       bool      `gorm:"column:deleted;not null;default:false"`
	CreatedBy     string    `gorm:"column:created_by"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the GORM table name.
func (ArtifactVersionRecord) TableName() string { return "artifact_versions" }

// PublishAssignmentRecord is the current "what applies where" state. The
// unique index enforces at most one assignment per
// (merchant, fullKey, targetLevel, targetKey).
type PublishAssignmentRecord struct {
	ID          string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	Merchant    string    `gorm:"column:merchant;uniqueIndex:idx_assignment_target,priority:1;not null"`
	FullKey     string    `gorm:"column:full_key;uniqueIndex:idx_assignment_target,priority:2;not null"`
	TargetLevel string    `gorm:"column:target_level;uniqueIndex:idx_assignment_target,priority:3;not null"`
	TargetKey   string    `gorm:"column:target_key;uniqueIndex:idx_assignment_target,priority:4;not null"`
	VersionTag  string    `gorm:"column:version_tag;not null"`
	SizeBytes   int64     `gorm:"column:size_bytes;not null"`
	Checksum    string    `gorm:"column:checksum;not null"`
	PublishedAt time.Time `gorm:"column:published_at;not null"`
	Operator    string    `gorm:"column:operator;not null"`
}

// TableName returns the GORM table name.
func (PublishAssignmentRecord) TableName() string { return "publish_assignments" }

// PublishHistoryRecord is the append-only audit trail of record: one row per
// publish or revoke operation. Rows are never updated or deleted. The
// auto-increment key gives a total order even for rows written in the same
// transaction.
type PublishHistoryRecord struct {
	ID          uint64    `gorm:"primaryKey;column:id;autoIncrement"`
	Merchant    string    `gorm:"column:merchant;index:idx_history_key,priority:1;not null"`
	FullKey     string    `gorm:"column:full_key;index:idx_history_key,priority:2;not null"`
	TargetLevel string    `gorm:"column:target_level;not null"`
	TargetKey   string    `gorm:"column:target_key;not null"`
	VersionTag  string    `gorm:"column:version_tag;not null"`
	SizeBytes   int64     `gorm:"column:size_bytes"`
	Checksum    string    `gorm:"column:checksum"`
	Operation   string    `gorm:"column:operation;not null"` // publish, revoke
	Operator    string    `gorm:"column:operator;not null"`
	Remark      string    `gorm:"column:remark"`
	CreatedAt   time.Time `gorm:"column:created_at;index:idx_history_key,priority:3;autoCreateTime"`
}

// TableName returns the GORM table name.
func (PublishHistoryRecord) TableName() string { return "publish_history" }

// DeviceRecord is the read model supplied by the device registry. The core
// only consults it to map a device to its line on the resolve path.
type DeviceRecord struct {
	ID       string `gorm:"primaryKey;column:id;type:varchar(36)"`
	Merchant string `gorm:"column:merchant;uniqueIndex:idx_device_identity,priority:1;not null"`
	DeviceID string `gorm:"column:device_id;uniqueIndex:idx_device_identity,priority:2;not null"`
	LineID   string `gorm:"column:line_id"`
	Serial   string `gorm:"column:serial"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the GORM table name.
func (DeviceRecord) TableName() string { return "devices" }
