// Package httpapi is the HTTP surface of the access control service.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"zonegate.org/internal/access"
	"zonegate.org/internal/auth"
	"zonegate.org/internal/obs"
)

// ReadyProbe reports whether backing storage is reachable.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the access services.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	zones    *access.ZoneService
	engine   *access.Engine
	alerts   *access.AlertService
	history  *access.HistoryTracker
	perms    *access.PermissionService
	verifier *auth.Verifier
}

// Options carries the service dependencies for New.
type Options struct {
	Ready    ReadyProbe
	Version  string
	Zones    *access.ZoneService
	Engine   *access.Engine
	Alerts   *access.AlertService
	History  *access.HistoryTracker
	Perms    *access.PermissionService
	Verifier *auth.Verifier
}

func New(opts Options) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: opts.Ready,
		version:    opts.Version,
		zones:      opts.Zones,
		engine:     opts.Engine,
		alerts:     opts.Alerts,
		history:    opts.History,
		perms:      opts.Perms,
		verifier:   opts.Verifier,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/access/evaluate", a.handleEvaluate)
	a.mux.HandleFunc("/v1/permissions", a.handlePermissionsCollection)
	a.mux.HandleFunc("/v1/permissions/check", a.handlePermissionCheck)
	a.mux.HandleFunc("/v1/zones", a.handleZonesCollection)
	a.mux.HandleFunc("/v1/zones/", a.handleZoneResource)
	a.mux.HandleFunc("/v1/alerts", a.handleAlertsCollection)
	a.mux.HandleFunc("/v1/alerts/", a.handleAlertResource)
	a.mux.HandleFunc("/v1/users/", a.handleUserResource)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler wraps the mux with auth, metrics and request logging.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.withAuth(a.mux))
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "zonegate-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "zonegate-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
