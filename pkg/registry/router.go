package registry

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewAdminRouter creates a chi router with the admin-facing registry routes:
// catalog, versions, publish ledger, history and the device registry feed.
// Tenant middleware is expected to be applied by the mounting server.
func NewAdminRouter(types *TypeStore, versions *VersionStore, ledger *Ledger, devices *DeviceStore) chi.Router {
	r := chi.NewRouter()

	r.Route("/types", func(r chi.Router) {
		r.Get("/", listTypesHandler(types))
		r.Post("/", registerTypeHandler(types))
		r.Delete("/{typeCode}", deleteTypeHandler(types))
	})

	r.Route("/versions", func(r chi.Router) {
		r.Get("/", listVersionsHandler(versions))
		r.Post("/", createVersionHandler(versions))
		r.Delete("/{id}", deleteVersionHandler(versions))
	})

	r.Route("/devices", func(r chi.Router) {
		r.Get("/", listDevicesHandler(devices))
		r.Post("/", upsertDeviceHandler(devices))
	})

	r.Post("/publish", publishHandler(ledger))
	r.Post("/revoke", revokeHandler(ledger))
	r.Get("/assignments", listAssignmentsHandler(ledger))
	r.Get("/history", listHistoryHandler(ledger))

	return r
}

// Middleware is a chi-compatible HTTP middleware.
type Middleware = func(http.Handler) http.Handler

// NewDeviceRouter creates a chi router with the device-facing read
// endpoints. devices may be nil when no registry feed is configured; line
// lookup by machine ID is then skipped. resolveMW and payloadMW wrap the
// resolve and download endpoints respectively (response caches); either may
// be nil.
func NewDeviceRouter(resolver *Resolver, versions *VersionStore, devices *DeviceStore, resolveMW, payloadMW Middleware) chi.Router {
	r := chi.NewRouter()

	r.Group(func(g chi.Router) {
		if resolveMW != nil {
			g.Use(resolveMW)
		}
		g.Get("/GetVer", getVerHandler(resolver, devices))
		g.Get("/GetVerAndDate", getVerAndDateHandler(resolver, devices))
	})

	r.Group(func(g chi.Router) {
		if payloadMW != nil {
			g.Use(payloadMW)
		}
		g.Get("/Down", downHandler(versions))
	})

	return r
}
