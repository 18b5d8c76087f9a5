package httpapi

import (
	"net/http"
	"strings"
	"time"

	"zonegate.org/internal/access"
	"zonegate.org/internal/audit"
)

type evaluateRequest struct {
	UserID    string `json:"user_id"`
	ZoneID    string `json:"zone_id"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
}

type permissionRequest struct {
	Role     string         `json:"role"`
	Resource string         `json:"resource"`
	Action   string         `json:"action"`
	Location string         `json:"location"`
	Metadata map[string]any `json:"metadata"`
}

type permissionCheckResponse struct {
	Allowed bool `json:"allowed"`
}

func (a *API) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req evaluateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ts := time.Now().UTC()
	if strings.TrimSpace(req.Timestamp) != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "timestamp must be RFC 3339")
			return
		}
		ts = parsed
	}
	action := req.Action
	if strings.TrimSpace(action) == "" {
		action = access.ActionEnter
	}

	decision, err := a.engine.EvaluateAccess(r.Context(), req.UserID, req.ZoneID, ts, action)
	if err != nil {
		if decision.Reason == access.ReasonSystemError {
			writeJSON(w, http.StatusServiceUnavailable, decision)
			return
		}
		handleAccessError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "access.evaluate", map[string]any{
		"subject_id": req.UserID,
		"zone_id":    req.ZoneID,
		"action":     action,
		"allowed":    decision.Allowed,
		"reason":     decision.Reason,
	})

	// Denials are valid verdicts, not request failures.
	writeJSON(w, http.StatusOK, decision)
}

func (a *API) handlePermissionsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listPermissions(w, r)
	case http.MethodPost:
		a.upsertPermission(w, r)
	case http.MethodDelete:
		a.deletePermission(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

func (a *API) listPermissions(w http.ResponseWriter, r *http.Request) {
	if !a.ensurePermission(w, r, "permissions", "manage") {
		return
	}
	perms, err := a.perms.List(r.Context())
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": perms})
}

func (a *API) upsertPermission(w http.ResponseWriter, r *http.Request) {
	if !a.ensurePermission(w, r, "permissions", "manage") {
		return
	}
	var req permissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	perm, err := a.perms.Upsert(r.Context(), access.Permission{
		Role:     req.Role,
		Resource: req.Resource,
		Action:   req.Action,
		Location: req.Location,
		Metadata: req.Metadata,
	})
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "permissions.upsert", map[string]any{
		"role":     perm.Role,
		"resource": perm.Resource,
		"action":   perm.Action,
		"location": perm.Location,
	})
	writeJSON(w, http.StatusCreated, perm)
}

func (a *API) deletePermission(w http.ResponseWriter, r *http.Request) {
	if !a.ensurePermission(w, r, "permissions", "manage") {
		return
	}
	q := r.URL.Query()
	role := q.Get("role")
	resource := q.Get("resource")
	action := q.Get("action")
	location := q.Get("location")
	if err := a.perms.Delete(r.Context(), role, resource, action, location); err != nil {
		handleAccessError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "permissions.delete", map[string]any{
		"role":     role,
		"resource": resource,
		"action":   action,
		"location": location,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handlePermissionCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req permissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	allowed, err := a.perms.Resolve(r.Context(), req.Role, req.Resource, req.Action, req.Location)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, permissionCheckResponse{Allowed: allowed})
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/users/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "history" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	userID := parts[0]
	action := r.URL.Query().Get("action")
	if strings.TrimSpace(action) == "" {
		action = access.ActionEnter
	}
	entries, err := a.history.List(r.Context(), userID, action)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	if entries == nil {
		entries = []access.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"action":  action,
		"items":   entries,
	})
}
