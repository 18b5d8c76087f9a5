package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"zonegate.org/internal/ids"
)

// AlertService creates and transitions access alerts. An alert is created
// active and becomes immutable once resolved or dismissed.
type AlertService struct {
	store AlertRepository
	now   func() time.Time
}

func NewAlertService(store AlertRepository) (*AlertService, error) {
	if store == nil {
		return nil, errors.New("alert repository is required")
	}
	return &AlertService{store: store, now: time.Now}, nil
}

// Raise records a new active alert and returns it.
func (s *AlertService) Raise(ctx context.Context, alertType, zoneID, userID string, details AlertDetails) (AccessAlert, error) {
	switch alertType {
	case AlertUnauthorized, AlertRestricted, AlertHighSecurity:
	default:
		return AccessAlert{}, fmt.Errorf("%w: unknown alert type %q", ErrInvalidInput, alertType)
	}
	zoneID = strings.TrimSpace(zoneID)
	userID = strings.TrimSpace(userID)
	if zoneID == "" || userID == "" {
		return AccessAlert{}, fmt.Errorf("%w: zone_id and user_id are required", ErrInvalidInput)
	}

	alert := AccessAlert{
		ID:        ids.New(),
		Type:      alertType,
		ZoneID:    zoneID,
		UserID:    userID,
		Details:   details,
		Status:    AlertStatusActive,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Create(ctx, &alert); err != nil {
		return AccessAlert{}, err
	}
	return alert, nil
}

// Resolve marks an active alert resolved. Resolving an alert that already
// left the active state returns ErrConflict and changes nothing.
func (s *AlertService) Resolve(ctx context.Context, alertID, resolvedBy string) error {
	alertID = strings.TrimSpace(alertID)
	resolvedBy = strings.TrimSpace(resolvedBy)
	if alertID == "" {
		return fmt.Errorf("%w: alert_id is required", ErrInvalidInput)
	}
	if resolvedBy == "" {
		return fmt.Errorf("%w: resolved_by is required", ErrInvalidInput)
	}
	return s.store.Transition(ctx, alertID, AlertStatusResolved, resolvedBy, s.now().UTC())
}

// Dismiss marks an active alert dismissed under the same immutability rule.
func (s *AlertService) Dismiss(ctx context.Context, alertID string) error {
	alertID = strings.TrimSpace(alertID)
	if alertID == "" {
		return fmt.Errorf("%w: alert_id is required", ErrInvalidInput)
	}
	return s.store.Transition(ctx, alertID, AlertStatusDismissed, "", s.now().UTC())
}

// Get returns a single alert.
func (s *AlertService) Get(ctx context.Context, alertID string) (AccessAlert, error) {
	alertID = strings.TrimSpace(alertID)
	if alertID == "" {
		return AccessAlert{}, fmt.Errorf("%w: alert_id is required", ErrInvalidInput)
	}
	alert, err := s.store.Find(ctx, alertID)
	if err != nil {
		return AccessAlert{}, err
	}
	return *alert, nil
}

// List returns alerts, optionally filtered by status.
func (s *AlertService) List(ctx context.Context, status string) ([]AccessAlert, error) {
	status = strings.TrimSpace(status)
	if status != "" && status != AlertStatusActive && status != AlertStatusResolved && status != AlertStatusDismissed {
		return nil, fmt.Errorf("%w: unknown alert status %q", ErrInvalidInput, status)
	}
	alerts, err := s.store.List(ctx, status)
	if err != nil {
		return nil, err
	}
	out := make([]AccessAlert, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, *a)
	}
	return out, nil
}
