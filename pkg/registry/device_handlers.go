package registry

import (
	"errors"
	"net/http"

	"github.com/openfleet/fleet-registry/pkg/tenancy"
)

// Device-facing read endpoints. These are the hot poll path for firmware and
// agents; responses are plain text (or raw bytes for Down), matching what
// the devices in the field expect.

// getVerHandler serves GET /File/GetVer?merchant&line&machineid&file and
// responds with the applicable version tag, or an empty body when no
// assignment covers the device.
func getVerHandler(resolver *Resolver, devices *DeviceStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveResolve(w, r, resolver, devices, false)
	}
}

// getVerAndDateHandler serves GET /File/GetVerAndDate, responding with the
// version tag concatenated with the publish date (yyyyMMdd).
func getVerAndDateHandler(resolver *Resolver, devices *DeviceStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveResolve(w, r, resolver, devices, true)
	}
}

func serveResolve(w http.ResponseWriter, r *http.Request, resolver *Resolver, devices *DeviceStore, withDate bool) {
	merchant := tenancy.MerchantFromContext(r.Context())
	q := r.URL.Query()
	fullKey := q.Get("file")
	deviceID := q.Get("machineid")
	lineID := q.Get("line")

	if fullKey == "" {
		http.Error(w, "file parameter is required", http.StatusBadRequest)
		return
	}

	// Devices that only know their ID get the line from the registry feed.
	if lineID == "" && deviceID != "" && devices != nil {
		device, err := devices.Get(merchant, deviceID)
		if err != nil {
			http.Error(w, "device lookup failed", http.StatusInternalServerError)
			return
		}
		if device != nil {
			lineID = device.LineID
		}
	}

	var tag string
	var err error
	if withDate {
		tag, err = resolver.ResolveWithDate(merchant, fullKey, deviceID, lineID)
	} else {
		tag, err = resolver.Resolve(merchant, fullKey, deviceID, lineID)
	}
	if err != nil {
		http.Error(w, "resolve failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(tag))
}

// downHandler serves GET /File/Down?merchant&file&ver with the raw artifact
// bytes. Responds 404 when the (merchant, file, ver) triple has no version
// record or the referenced blob is missing.
func downHandler(versions *VersionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchant := tenancy.MerchantFromContext(r.Context())
		q := r.URL.Query()
		fullKey := q.Get("file")
		versionTag := q.Get("ver")

		if fullKey == "" || versionTag == "" {
			http.Error(w, "file and ver parameters are required", http.StatusBadRequest)
			return
		}

		record, err := versions.GetByTag(merchant, fullKey, versionTag)
		if err != nil {
			http.Error(w, "version lookup failed", http.StatusInternalServerError)
			return
		}
		if record == nil {
			http.NotFound(w, r)
			return
		}

		data, err := versions.ReadPayload(record)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "artifact read failed", HTTPStatus(err))
			return
		}

		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
