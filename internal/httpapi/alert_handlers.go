package httpapi

import (
	"net/http"
	"strings"

	"zonegate.org/internal/access"
	"zonegate.org/internal/audit"
	"zonegate.org/internal/auth"
)

type resolveAlertRequest struct {
	ResolvedBy string `json:"resolved_by"`
}

func (a *API) handleAlertsCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	alerts, err := a.alerts.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	if alerts == nil {
		alerts = []access.AccessAlert{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": alerts})
}

func (a *API) handleAlertResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/alerts/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		alert, err := a.alerts.Get(r.Context(), parts[0])
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, alert)
	case len(parts) == 2 && parts[1] == "resolve":
		a.resolveAlert(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "dismiss":
		a.dismissAlert(w, r, parts[0])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) resolveAlert(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.ensurePermission(w, r, "alerts", "manage") {
		return
	}
	resolvedBy := ""
	if principal, ok := auth.PrincipalFromContext(r.Context()); ok {
		resolvedBy = principal.UserID
	}
	if r.ContentLength != 0 {
		var req resolveAlertRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.ResolvedBy) != "" {
			resolvedBy = req.ResolvedBy
		}
	}
	if err := a.alerts.Resolve(r.Context(), id, resolvedBy); err != nil {
		handleAccessError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "alerts.resolve", map[string]any{
		"alert_id":    id,
		"resolved_by": resolvedBy,
	})
	alert, err := a.alerts.Get(r.Context(), id)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func (a *API) dismissAlert(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.ensurePermission(w, r, "alerts", "manage") {
		return
	}
	if err := a.alerts.Dismiss(r.Context(), id); err != nil {
		handleAccessError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "alerts.dismiss", map[string]any{
		"alert_id": id,
	})
	alert, err := a.alerts.Get(r.Context(), id)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}
