package lifecycle

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openfleet/fleet-registry/pkg/registry"
)

// Workflow drives authored content through draft, submitted and published.
// Submit renders the canonical payload and creates an artifact version;
// publish hands the linked version to the publish ledger using the record's
// own target selection.
type Workflow struct {
	db       *gorm.DB
	contents *ContentStore
	versions *registry.VersionStore
	ledger   *registry.Ledger
}

// NewWorkflow creates a new Workflow.
func NewWorkflow(db *gorm.DB, contents *ContentStore, versions *registry.VersionStore, ledger *registry.Ledger) *Workflow {
	return &Workflow{db: db, contents: contents, versions: versions, ledger: ledger}
}

// ContentInput carries the editable fields of a content record.
type ContentInput struct {
	TypeCode    string
	Parameter   string
	TargetLevel string
	TargetKey   string
	Fare        string
	ExtraParams string // JSON object
	Discounts   string // JSON array of DiscountEntry
}

func (in *ContentInput) validate(forCreate bool) error {
	if forCreate {
		if in.TypeCode == "" {
			return fmt.Errorf("%w: typeCode is required", registry.ErrValidation)
		}
	}
	if in.TargetLevel != "" {
		if _, err := registry.ParseTargetLevel(in.TargetLevel); err != nil {
			return err
		}
	}
	if in.ExtraParams != "" && !json.Valid([]byte(in.ExtraParams)) {
		return fmt.Errorf("%w: extraParams must be a JSON document", registry.ErrValidation)
	}
	if in.Discounts != "" && !json.Valid([]byte(in.Discounts)) {
		return fmt.Errorf("%w: discounts must be a JSON document", registry.ErrValidation)
	}
	return nil
}

// Create mints a new draft. The version tag is one past the highest tag of
// the same parent key, wrapping modulo 0x10000.
func (w *Workflow) Create(merchant string, in ContentInput, operator string) (*ContentRecord, error) {
	if merchant == "" {
		return nil, fmt.Errorf("%w: merchant is required", registry.ErrValidation)
	}
	if err := in.validate(true); err != nil {
		return nil, err
	}

	record := &ContentRecord{
		ID:          uuid.New().String(),
		Merchant:    merchant,
		TypeCode:    in.TypeCode,
		Parameter:   in.Parameter,
		ParentKey:   in.TypeCode + in.Parameter,
		Status:      string(StatusDraft),
		TargetLevel: in.TargetLevel,
		TargetKey:   in.TargetKey,
		Fare:        in.Fare,
		ExtraParams: in.ExtraParams,
		Discounts:   in.Discounts,
		CreatedBy:   operator,
	}

	err := w.db.Transaction(func(tx *gorm.DB) error {
		contents := w.contents.WithTx(tx)
		highest, err := contents.HighestTag(merchant, record.ParentKey)
		if err != nil {
			return err
		}
		record.VersionTag = NextTag(highest)
		return contents.create(record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Update replaces the editable fields of a draft. The identity fields
// (typeCode, parameter, version tag) are fixed at create time.
func (w *Workflow) Update(merchant, id string, in ContentInput) (*ContentRecord, error) {
	if err := in.validate(false); err != nil {
		return nil, err
	}

	record, err := w.contents.Get(merchant, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: content record %s", registry.ErrNotFound, id)
	}
	if record.Status != string(StatusDraft) {
		return nil, fmt.Errorf("%w: content record %s is %s, only drafts are editable", registry.ErrConflict, id, record.Status)
	}

	record.TargetLevel = in.TargetLevel
	record.TargetKey = in.TargetKey
	record.Fare = in.Fare
	record.ExtraParams = in.ExtraParams
	record.Discounts = in.Discounts

	if err := w.contents.save(record); err != nil {
		return nil, err
	}
	return record, nil
}

// Submit renders a draft into its canonical payload, records it as an
// artifact version and transitions the record to submitted. The rendered
// payload, its checksum and the version identity are fixed on the record.
// Re-submitting a non-draft fails with a conflict.
func (w *Workflow) Submit(merchant, id, operator string) (*ContentRecord, error) {
	var record *ContentRecord

	err := w.db.Transaction(func(tx *gorm.DB) error {
		contents := w.contents.WithTx(tx)

		var err error
		record, err = contents.Get(merchant, id)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("%w: content record %s", registry.ErrNotFound, id)
		}
		if record.Status != string(StatusDraft) {
			return fmt.Errorf("%w: content record %s already %s", registry.ErrConflict, id, record.Status)
		}
		if record.Fare == "" {
			return fmt.Errorf("%w: fare is required before submit", registry.ErrValidation)
		}

		payload, err := Render(record)
		if err != nil {
			return fmt.Errorf("%w: %v", registry.ErrValidation, err)
		}

		version, err := w.versions.WithTx(tx).CreateVersion(
			merchant, record.TypeCode, record.Parameter, record.VersionTag, payload, operator)
		if err != nil {
			return err
		}

		now := time.Now()
		record.Status = string(StatusSubmitted)
		record.RenderedPayload = string(payload)
		record.Checksum = version.Checksum
		record.LinkedVersionID = version.ID
		record.SubmittedAt = &now
		return contents.WithTx(tx).save(record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// PublishContent publishes a submitted record's linked version through the
// ledger, to the target carried on the record itself, and transitions the
// record to published. The status transition runs inside the ledger's own
// transaction and key lock, so the assignment and the record state commit
// or roll back together.
func (w *Workflow) PublishContent(merchant, id, operator string) (*ContentRecord, error) {
	record, err := w.contents.Get(merchant, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: content record %s", registry.ErrNotFound, id)
	}
	if record.Status == string(StatusPublished) {
		return nil, fmt.Errorf("%w: content record %s is already published", registry.ErrConflict, id)
	}
	if record.Status != string(StatusSubmitted) {
		return nil, fmt.Errorf("%w: content record %s is %s, submit it first", registry.ErrConflict, id, record.Status)
	}
	if record.TargetKey == "" {
		return nil, fmt.Errorf("%w: content record %s has no publish target", registry.ErrValidation, id)
	}

	level, err := registry.ParseTargetLevel(record.TargetLevel)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	_, err = w.ledger.PublishThen(merchant, record.LinkedVersionID, level, record.TargetKey, operator,
		func(tx *gorm.DB) error {
			return w.contents.WithTx(tx).markPublished(merchant, id, now)
		})
	if err != nil {
		return nil, err
	}

	record.Status = string(StatusPublished)
	record.PublishedAt = &now
	return record, nil
}

// CopyForward duplicates a submitted or published record into a fresh draft
// with a newly minted version tag, for iterative editing without mutating
// history.
func (w *Workflow) CopyForward(merchant, sourceID, operator string) (*ContentRecord, error) {
	source, err := w.contents.Get(merchant, sourceID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, fmt.Errorf("%w: content record %s", registry.ErrNotFound, sourceID)
	}
	if source.Status == string(StatusDraft) {
		return nil, fmt.Errorf("%w: content record %s is still a draft, edit it directly", registry.ErrConflict, sourceID)
	}

	record := &ContentRecord{
		ID:          uuid.New().String(),
		Merchant:    merchant,
		TypeCode:    source.TypeCode,
		Parameter:   source.Parameter,
		ParentKey:   source.ParentKey,
		Status:      string(StatusDraft),
		TargetLevel: source.TargetLevel,
		TargetKey:   source.TargetKey,
		Fare:        source.Fare,
		ExtraParams: source.ExtraParams,
		Discounts:   source.Discounts,
		CreatedBy:   operator,
	}

	err = w.db.Transaction(func(tx *gorm.DB) error {
		contents := w.contents.WithTx(tx)
		highest, err := contents.HighestTag(merchant, record.ParentKey)
		if err != nil {
			return err
		}
		record.VersionTag = NextTag(highest)
		return contents.create(record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Delete removes a draft. Submitted and published records are retained for
// audit and cannot be deleted.
func (w *Workflow) Delete(merchant, id string) error {
	record, err := w.contents.Get(merchant, id)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("%w: content record %s", registry.ErrNotFound, id)
	}
	if record.Status != string(StatusDraft) {
		return fmt.Errorf("%w: content record %s is %s and is retained for audit", registry.ErrValidation, id, record.Status)
	}
	return w.contents.delete(merchant, id)
}

// Get returns a content record scoped to a merchant.
func (w *Workflow) Get(merchant, id string) (*ContentRecord, error) {
	return w.contents.Get(merchant, id)
}

// List returns the revisions of a parent key.
func (w *Workflow) List(merchant, parentKey string) ([]ContentRecord, error) {
	return w.contents.List(merchant, parentKey)
}
