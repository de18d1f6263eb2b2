package registry

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Resolver answers the question devices poll constantly: which version of a
// fullKey currently applies to me. It reads only the publish ledger and has
// no side effects.
type Resolver struct {
	db *gorm.DB
}

// NewResolver creates a new Resolver.
func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// Resolve returns the version tag that applies to a device, or "" when no
// assignment covers it. Override order is fixed, first match wins:
//
//  1. Terminal assignment whose target key equals the device ID or contains
//     it (terminal targets may name a group of devices in one string)
//  2. Line assignment for the device's line
//  3. Merchant-wide assignment
//
// Absence of configuration is a valid steady state, not an error.
func (r *Resolver) Resolve(merchant, fullKey, deviceID, lineID string) (string, error) {
	a, err := r.resolveAssignment(merchant, fullKey, deviceID, lineID)
	if err != nil || a == nil {
		return "", err
	}
	return a.VersionTag, nil
}

// ResolveWithDate returns the version tag concatenated with the assignment's
// publish date (yyyyMMdd), a stale-cache busting signal for devices. Returns
// "" when no assignment applies.
func (r *Resolver) ResolveWithDate(merchant, fullKey, deviceID, lineID string) (string, error) {
	a, err := r.resolveAssignment(merchant, fullKey, deviceID, lineID)
	if err != nil || a == nil {
		return "", err
	}
	return a.VersionTag + a.PublishedAt.Format("20060102"), nil
}

// ResolveAssignment returns the winning assignment record, or nil when no
// level matches.
func (r *Resolver) ResolveAssignment(merchant, fullKey, deviceID, lineID string) (*PublishAssignmentRecord, error) {
	return r.resolveAssignment(merchant, fullKey, deviceID, lineID)
}

func (r *Resolver) resolveAssignment(merchant, fullKey, deviceID, lineID string) (*PublishAssignmentRecord, error) {
	if deviceID != "" {
		a, err := r.terminalMatch(merchant, fullKey, deviceID)
		if err != nil {
			return nil, err
		}
		if a != nil {
			return a, nil
		}
	}

	if lineID != "" {
		a, err := r.exactMatch(merchant, fullKey, LevelLine, lineID)
		if err != nil {
			return nil, err
		}
		if a != nil {
			return a, nil
		}
	}

	return r.exactMatch(merchant, fullKey, LevelMerchant, merchant)
}

// terminalMatch finds a terminal-level assignment targeting the device,
// either exactly or via a membership-style group target containing the
// device ID. The most recent publish wins if several groups match.
func (r *Resolver) terminalMatch(merchant, fullKey, deviceID string) (*PublishAssignmentRecord, error) {
	var record PublishAssignmentRecord
	err := r.db.Where(
		"merchant = ? AND full_key = ? AND target_level = ? AND (target_key = ? OR target_key LIKE ?)",
		merchant, fullKey, string(LevelTerminal), deviceID, "%"+deviceID+"%",
	).Order("published_at DESC").First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve terminal assignment: %w", err)
	}
	return &record, nil
}

func (r *Resolver) exactMatch(merchant, fullKey string, level TargetLevel, targetKey string) (*PublishAssignmentRecord, error) {
	var record PublishAssignmentRecord
	err := r.db.Where(
		"merchant = ? AND full_key = ? AND target_level = ? AND target_key = ?",
		merchant, fullKey, string(level), targetKey,
	).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve %s assignment: %w", level, err)
	}
	return &record, nil
}
