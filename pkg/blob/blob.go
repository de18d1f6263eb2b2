// Package blob defines the byte-storage collaborator consumed by the version
// store, plus filesystem and in-memory implementations. The registry core
// never persists artifact bytes itself; it stores only the opaque reference
// returned by Save.
package blob

import "errors"

// ErrNotFound is returned by Read when the reference has no stored bytes.
var ErrNotFound = errors.New("blob not found")

// Store is the blob collaborator contract.
type Store interface {
	// Save persists the given bytes and returns an opaque reference.
	// suggestedName is advisory; implementations may mangle it.
	Save(data []byte, suggestedName, operator string) (string, error)
	// Read returns the bytes previously stored under ref.
	Read(ref string) ([]byte, error)
}
