package httpapi

import (
	"net/http"
	"strings"

	"zonegate.org/internal/access"
	"zonegate.org/internal/audit"
)

type createZoneRequest struct {
	Name           string            `json:"name"`
	Level          int               `json:"level"`
	ParentID       string            `json:"parent_id"`
	RequiredAccess []string          `json:"required_access"`
	Locations      []string          `json:"locations"`
	Schedules      []access.Schedule `json:"schedules"`
	Metadata       map[string]any    `json:"metadata"`
}

type updateZoneRequest struct {
	Name           *string           `json:"name"`
	Level          *int              `json:"level"`
	ParentID       *string           `json:"parent_id"`
	RequiredAccess []string          `json:"required_access"`
	Locations      []string          `json:"locations"`
	Schedules      []access.Schedule `json:"schedules"`
	Metadata       map[string]any    `json:"metadata"`
}

func (a *API) handleZonesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listZones(w, r)
	case http.MethodPost:
		a.createZone(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleZoneResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/zones/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	switch {
	case len(parts) == 1:
		a.zoneByID(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "ancestors":
		a.zoneAncestors(w, r, parts[0])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) listZones(w http.ResponseWriter, r *http.Request) {
	zones, err := a.zones.List(r.Context())
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	if zones == nil {
		zones = []access.Zone{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": zones})
}

func (a *API) createZone(w http.ResponseWriter, r *http.Request) {
	if !a.ensurePermission(w, r, "zones", "manage") {
		return
	}
	var req createZoneRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	zone, err := a.zones.Create(r.Context(), access.Zone{
		Name:           req.Name,
		Level:          req.Level,
		ParentID:       req.ParentID,
		RequiredAccess: req.RequiredAccess,
		Locations:      req.Locations,
		Schedules:      req.Schedules,
		Metadata:       req.Metadata,
	})
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "zones.create", map[string]any{
		"zone_id": zone.ID,
		"name":    zone.Name,
	})
	w.Header().Set("Location", "/v1/zones/"+zone.ID)
	writeJSON(w, http.StatusCreated, zone)
}

func (a *API) zoneByID(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		zone, err := a.zones.Get(r.Context(), id)
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, zone)
	case http.MethodPut:
		a.updateZone(w, r, id)
	case http.MethodDelete:
		a.deleteZone(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) updateZone(w http.ResponseWriter, r *http.Request, id string) {
	if !a.ensurePermission(w, r, "zones", "manage") {
		return
	}
	var req updateZoneRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	zone, err := a.zones.Update(r.Context(), id, access.ZoneUpdate{
		Name:           req.Name,
		Level:          req.Level,
		ParentID:       req.ParentID,
		RequiredAccess: req.RequiredAccess,
		Locations:      req.Locations,
		Schedules:      req.Schedules,
		Metadata:       req.Metadata,
	})
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "zones.update", map[string]any{
		"zone_id": zone.ID,
	})
	writeJSON(w, http.StatusOK, zone)
}

func (a *API) deleteZone(w http.ResponseWriter, r *http.Request, id string) {
	if !a.ensurePermission(w, r, "zones", "manage") {
		return
	}
	if err := a.zones.Delete(r.Context(), id); err != nil {
		handleAccessError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "zones.delete", map[string]any{
		"zone_id": id,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) zoneAncestors(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	ancestors, err := a.zones.Ancestors(r.Context(), id)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	if ancestors == nil {
		ancestors = []access.Zone{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"zone_id": id,
		"items":   ancestors,
	})
}
