package cache

import "net/http"

// Manager holds separate cache instances for the resolve endpoints and the
// payload download endpoint, each with its own TTL. Resolve answers change
// on every publish and revoke; payload bytes are immutable per version tag.
type Manager struct {
	resolve  *LRUCache
	payloads *LRUCache
}

// NewManager creates a Manager from the given configuration. If cfg is nil
// or disabled, it returns nil; a nil Manager is safe to call.
func NewManager(cfg *Config) *Manager {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	return &Manager{
		resolve:  NewLRUCache(cfg.MaxSize, cfg.ResolveTTL),
		payloads: NewLRUCache(cfg.MaxSize, cfg.PayloadTTL),
	}
}

// OnLedgerChange is wired as a publish ledger change listener. Cache keys
// are request URIs and carry device and line parameters, so entries for one
// (merchant, fullKey) cannot be addressed individually; the whole resolve
// cache is dropped instead. The payload cache survives: version bytes do
// not change when assignments do.
func (m *Manager) OnLedgerChange(merchant, fullKey string) {
	if m == nil {
		return
	}
	m.resolve.InvalidateAll()
}

// InvalidateAll clears every cache.
func (m *Manager) InvalidateAll() {
	if m == nil {
		return
	}
	m.resolve.InvalidateAll()
	m.payloads.InvalidateAll()
}

// ResolveMiddleware returns HTTP middleware for /File/GetVer and
// /File/GetVerAndDate. Returns a pass-through when the manager is nil.
func (m *Manager) ResolveMiddleware() func(http.Handler) http.Handler {
	if m == nil {
		return passthrough
	}
	return Middleware(m.resolve)
}

// PayloadMiddleware returns HTTP middleware for /File/Down. Returns a
// pass-through when the manager is nil.
func (m *Manager) PayloadMiddleware() func(http.Handler) http.Handler {
	if m == nil {
		return passthrough
	}
	return Middleware(m.payloads)
}

func passthrough(next http.Handler) http.Handler {
	return next
}
