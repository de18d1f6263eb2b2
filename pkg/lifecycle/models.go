package lifecycle

import "time"

// ContentStatus is the state of an authored content record.
type ContentStatus string

const (
	StatusDraft     ContentStatus = "draft"
	StatusSubmitted ContentStatus = "submitted"
	StatusPublished ContentStatus = "published"
)

// ContentRecord is one authored revision of structured content, typically a
// line-pricing table. A record starts as an editable draft, becomes an
// immutable artifact version on submit, and a live assignment on publish.
//
// ParentKey groups revisions of the same logical content; version tags are
// minted per parent. It equals the artifact fullKey (typeCode + parameter).
type ContentRecord struct {
	ID       string `gorm:"column:id;primaryKey"`
	Merchant string `gorm:"column:merchant;index:idx_content_parent,priority:1;uniqueIndex:uq_content_revision,priority:1;not null"`

	TypeCode  string `gorm:"column:type_code;not null"`
	Parameter string `gorm:"column:parameter"`
	ParentKey string `gorm:"column:parent_key;index:idx_content_parent,priority:2;uniqueIndex:uq_content_revision,priority:2;not null"`
	// Tags are minted per parent; the unique index makes concurrent mints of
	// the same tag fail at create rather than surfacing later at submit.
	VersionTag string `gorm:"column:version_tag;uniqueIndex:uq_content_revision,priority:3;not null"`
	Status     string `gorm:"column:status;not null"`

	// Target selection carried on the record itself; publish derives the
	// ledger target from these.
	TargetLevel string `gorm:"column:target_level;not null"`
	TargetKey   string `gorm:"column:target_key;not null"`

	// Structured content. ExtraParams and Discounts hold JSON documents.
	Fare        string `gorm:"column:fare"`
	ExtraParams string `gorm:"column:extra_params"`
	Discounts   string `gorm:"column:discounts"`

	// Filled on submit.
	RenderedPayload string `gorm:"column:rendered_payload"`
	Checksum        string `gorm:"column:checksum"`
	LinkedVersionID string `gorm:"column:linked_version_id"`

	CreatedBy   string     `gorm:"column:created_by"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
	SubmittedAt *time.Time `gorm:"column:submitted_at"`
	PublishedAt *time.Time `gorm:"column:published_at"`
}

func (ContentRecord) TableName() string {
	return "authored_contents"
}

// DiscountEntry is one row of a content record's discount table.
type DiscountEntry struct {
	Code   string `json:"code"`
	Label  string `json:"label,omitempty"`
	Amount string `json:"amount"`
}
