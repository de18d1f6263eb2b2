package registry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChangeListener is notified after a publish or revoke commits, e.g. to
// invalidate resolve caches.
type ChangeListener func(merchant, fullKey string)

// Ledger maintains the active assignment table and the append-only publish
// history. Publish and revoke against the same target key are serialized by
// an in-process key lock on top of the storage uniqueness constraint.
type Ledger struct {
	db        *gorm.DB
	locks     *keyLock
	listeners []ChangeListener
}

// NewLedger creates a new Ledger.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db, locks: newKeyLock()}
}

// OnChange registers a listener invoked after every committed publish/revoke.
func (l *Ledger) OnChange(fn ChangeListener) {
	l.listeners = append(l.listeners, fn)
}

// AutoMigrate creates or updates the assignment and history tables.
func (l *Ledger) AutoMigrate() error {
	if err := l.db.AutoMigrate(&PublishAssignmentRecord{}); err != nil {
		return fmt.Errorf("auto-migrate publish_assignments: %w", err)
	}
	if err := l.db.AutoMigrate(&PublishHistoryRecord{}); err != nil {
		return fmt.Errorf("auto-migrate publish_history: %w", err)
	}
	return nil
}

func targetLockKey(merchant, fullKey string, level TargetLevel, targetKey string) string {
	return strings.Join([]string{merchant, fullKey, string(level), targetKey}, "\x00")
}

// Publish makes the given version the active assignment for a target. If the
// target already has an assignment it is replaced, and the displaced
// assignment is recorded as an implicit revoke so history always shows
// revoke-then-publish rather than a silent overwrite. The whole operation is
// a single transaction.
func (l *Ledger) Publish(merchant, versionID string, level TargetLevel, targetKey, operator string) (*PublishAssignmentRecord, error) {
	return l.PublishThen(merchant, versionID, level, targetKey, operator, nil)
}

// PublishThen is Publish with a follow-up executed inside the same
// transaction and key lock, so callers can commit their own state change
// atomically with the assignment. A failing follow-up rolls back the
// publish entirely: no assignment, no history rows.
func (l *Ledger) PublishThen(merchant, versionID string, level TargetLevel, targetKey, operator string, then func(tx *gorm.DB) error) (*PublishAssignmentRecord, error) {
	if targetKey == "" {
		return nil, fmt.Errorf("%w: target key is required", ErrValidation)
	}

	var version ArtifactVersionRecord
	err := l.db.Where("id = ?", versionID).First(&version).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: artifact version %s", ErrNotFound, versionID)
		}
		return nil, fmt.Errorf("resolve version: %w", err)
	}
	if version.Deleted {
		return nil, fmt.Errorf("%w: artifact version %s is deleted", ErrNotFound, versionID)
	}
	if version.Merchant != merchant {
		return nil, fmt.Errorf("%w: version %s belongs to merchant %s, not %s",
			ErrTenantBoundary, versionID, version.Merchant, merchant)
	}

	lockKey := targetLockKey(merchant, version.FullKey, level, targetKey)
	l.locks.Lock(lockKey)
	defer l.locks.Unlock(lockKey)

	now := time.Now()
	assignment := &PublishAssignmentRecord{
		ID:          uuid.New().String(),
		Merchant:    merchant,
		FullKey:     version.FullKey,
		TargetLevel: string(level),
		TargetKey:   targetKey,
		VersionTag:  version.VersionTag,
		SizeBytes:   version.SizeBytes,
		Checksum:    version.Checksum,
		PublishedAt: now,
		Operator:    operator,
	}

	err = l.db.Transaction(func(tx *gorm.DB) error {
		var displaced PublishAssignmentRecord
		err := tx.Where(
			"merchant = ? AND full_key = ? AND target_level = ? AND target_key = ?",
			merchant, version.FullKey, string(level), targetKey,
		).First(&displaced).Error
		switch {
		case err == nil:
			// Record the implicit revoke of the displaced assignment first.
			if err := tx.Create(historyFromAssignment(&displaced, OpRevoke, operator,
				fmt.Sprintf("replaced by version %s", version.VersionTag))).Error; err != nil {
				return fmt.Errorf("append implicit revoke history: %w", err)
			}
			if err := tx.Delete(&PublishAssignmentRecord{}, "id = ?", displaced.ID).Error; err != nil {
				return fmt.Errorf("remove displaced assignment: %w", err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			// First publish to this target.
		default:
			return fmt.Errorf("check existing assignment: %w", err)
		}

		if err := tx.Create(assignment).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: concurrent publish to %s/%s %s %s",
					ErrConflict, merchant, version.FullKey, level, targetKey)
			}
			return fmt.Errorf("create assignment: %w", err)
		}

		if err := tx.Create(historyFromAssignment(assignment, OpPublish, operator, "")).Error; err != nil {
			return fmt.Errorf("append publish history: %w", err)
		}
		if then != nil {
			return then(tx)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.notify(merchant, version.FullKey)
	return assignment, nil
}

// Revoke removes the active assignment for a target and appends the revoke
// to history. Returns ErrNotFound if no assignment exists.
func (l *Ledger) Revoke(merchant, fullKey string, level TargetLevel, targetKey, operator string) error {
	lockKey := targetLockKey(merchant, fullKey, level, targetKey)
	l.locks.Lock(lockKey)
	defer l.locks.Unlock(lockKey)

	err := l.db.Transaction(func(tx *gorm.DB) error {
		var assignment PublishAssignmentRecord
		err := tx.Where(
			"merchant = ? AND full_key = ? AND target_level = ? AND target_key = ?",
			merchant, fullKey, string(level), targetKey,
		).First(&assignment).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: no assignment for %s/%s at %s %s",
					ErrNotFound, merchant, fullKey, level, targetKey)
			}
			return fmt.Errorf("find assignment: %w", err)
		}

		if err := tx.Delete(&PublishAssignmentRecord{}, "id = ?", assignment.ID).Error; err != nil {
			return fmt.Errorf("remove assignment: %w", err)
		}

		if err := tx.Create(historyFromAssignment(&assignment, OpRevoke, operator, "manual revoke")).Error; err != nil {
			return fmt.Errorf("append revoke history: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	l.notify(merchant, fullKey)
	return nil
}

// GetAssignment retrieves the active assignment for an exact target.
// Returns nil, nil if none exists.
func (l *Ledger) GetAssignment(merchant, fullKey string, level TargetLevel, targetKey string) (*PublishAssignmentRecord, error) {
	var record PublishAssignmentRecord
	err := l.db.Where(
		"merchant = ? AND full_key = ? AND target_level = ? AND target_key = ?",
		merchant, fullKey, string(level), targetKey,
	).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	return &record, nil
}

// ListAssignments returns the active assignments for a (merchant, fullKey),
// most recently published first.
func (l *Ledger) ListAssignments(merchant, fullKey string) ([]PublishAssignmentRecord, error) {
	var records []PublishAssignmentRecord
	err := l.db.Where("merchant = ? AND full_key = ?", merchant, fullKey).
		Order("published_at DESC").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return records, nil
}

// ListHistory returns paginated history rows for a (merchant, fullKey),
// newest first. pageToken is the row ID from the previous page; rows with a
// smaller ID are returned.
func (l *Ledger) ListHistory(merchant, fullKey string, pageSize int, pageToken string) ([]PublishHistoryRecord, string, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	query := l.db.Where("merchant = ? AND full_key = ?", merchant, fullKey).
		Order("id DESC").Limit(pageSize + 1)
	if pageToken != "" {
		id, err := strconv.ParseUint(pageToken, 10, 64)
		if err != nil {
			return nil, "", fmt.Errorf("%w: invalid page token", ErrValidation)
		}
		query = query.Where("id < ?", id)
	}

	var records []PublishHistoryRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, "", fmt.Errorf("list publish history: %w", err)
	}

	var nextToken string
	if len(records) > pageSize {
		nextToken = strconv.FormatUint(records[pageSize-1].ID, 10)
		records = records[:pageSize]
	}

	return records, nextToken, nil
}

func historyFromAssignment(a *PublishAssignmentRecord, op OperationType, operator, remark string) *PublishHistoryRecord {
	return &PublishHistoryRecord{
		Merchant:    a.Merchant,
		FullKey:     a.FullKey,
		TargetLevel: a.TargetLevel,
		TargetKey:   a.TargetKey,
		VersionTag:  a.VersionTag,
		SizeBytes:   a.SizeBytes,
		Checksum:    a.Checksum,
		Operation:   string(op),
		Operator:    operator,
		Remark:      remark,
	}
}

func (l *Ledger) notify(merchant, fullKey string) {
	for _, fn := range l.listeners {
		fn(merchant, fullKey)
	}
}
