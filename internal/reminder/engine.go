// Package reminder evaluates each vehicle's maintenance-interval state
// against the current odometer and date, producing a severity-ranked list
// of alerts. The engine never raises past its boundary: malformed dates
// degrade to "no data for this check" with a log line.
package reminder

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/kvarga/wheelbook/internal/stats"
	"github.com/kvarga/wheelbook/internal/storage"
	"github.com/kvarga/wheelbook/pkg/types"
)

// dangerDays is the escalation threshold: an expiry within this many days
// is reported as danger even inside the warning window.
const dangerDays = 7

// Config holds the per-installation reminder thresholds. Constructed once
// at startup and passed in explicitly; the oil interval itself is
// per-vehicle.
type Config struct {
	// WarnDaysBefore is the inspection warning window in days (default 30).
	WarnDaysBefore int

	// OilWarningKm is the oil-change warning distance (default 1000).
	OilWarningKm int

	// InsuranceWarnDays is the insurance expiry warning window in days
	// (default 30).
	InsuranceWarnDays int
}

// DefaultConfig returns the documented threshold defaults.
func DefaultConfig() Config {
	return Config{WarnDaysBefore: 30, OilWarningKm: 1000, InsuranceWarnDays: 30}
}

// Engine computes reminders. It is stateless between invocations: every
// check reads fresh data through the store and query layer.
type Engine struct {
	store storage.Store
	stats *stats.Service
	cfg   Config

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// New creates a reminder engine. Zero thresholds in cfg fall back to the
// defaults.
func New(store storage.Store, statsSvc *stats.Service, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.WarnDaysBefore <= 0 {
		cfg.WarnDaysBefore = def.WarnDaysBefore
	}
	if cfg.OilWarningKm <= 0 {
		cfg.OilWarningKm = def.OilWarningKm
	}
	if cfg.InsuranceWarnDays <= 0 {
		cfg.InsuranceWarnDays = def.InsuranceWarnDays
	}

	return &Engine{store: store, stats: statsSvc, cfg: cfg, now: time.Now}
}

// CheckAll evaluates every vehicle and returns the due and upcoming alerts,
// grouped by vehicle in stored order.
func (e *Engine) CheckAll(ctx context.Context) ([]types.Alert, error) {
	vehicles, err := e.store.ListVehicles(ctx)
	if err != nil {
		return nil, fmt.Errorf("reminder: failed to list vehicles: %w", err)
	}

	var alerts []types.Alert
	for _, v := range vehicles {
		if a := e.checkInspection(v); a != nil {
			alerts = append(alerts, *a)
		}
		if a := e.checkOil(ctx, v); a != nil {
			alerts = append(alerts, *a)
		}
		if a := e.checkInsurance(ctx, v); a != nil {
			alerts = append(alerts, *a)
		}
	}
	return alerts, nil
}

// checkInspection evaluates the technical-inspection expiry date.
func (e *Engine) checkInspection(v *types.Vehicle) *types.Alert {
	return e.checkExpiry(v.Name(), types.AlertInspection, "inspection", v.InspectionExpiry, e.cfg.WarnDaysBefore)
}

// checkInsurance evaluates the latest policy's coverage end date.
func (e *Engine) checkInsurance(ctx context.Context, v *types.Vehicle) *types.Alert {
	policy, err := e.store.LatestPolicy(ctx, v.ID)
	if err != nil {
		// No policy with an end date: nothing to check.
		return nil
	}
	return e.checkExpiry(v.Name(), types.AlertInsurance, "insurance", policy.CoverageEnd, e.cfg.InsuranceWarnDays)
}

// checkExpiry derives the {OK, WARNING, EXPIRED} state shared by the
// inspection and insurance checks. Within the warning window, dangerDays or
// fewer days left escalates the severity to danger.
func (e *Engine) checkExpiry(vehicle string, kind types.AlertKind, label, dateStr string, warnDays int) *types.Alert {
	if strings.TrimSpace(dateStr) == "" || dateStr == "---" {
		return nil
	}

	expiry, err := types.ParseDate(dateStr)
	if err != nil {
		log.Printf("reminder: invalid %s date for %s: %v", label, vehicle, err)
		return nil
	}

	daysLeft := types.DaysUntil(expiry, e.now())

	switch {
	case daysLeft < 0:
		return &types.Alert{
			Vehicle:  vehicle,
			Kind:     kind,
			Message:  fmt.Sprintf("%s EXPIRED %d days ago (%s)", label, -daysLeft, dateStr),
			Severity: types.SeverityDanger,
			Margin:   daysLeft,
		}
	case daysLeft <= warnDays:
		severity := types.SeverityWarning
		if daysLeft <= dangerDays {
			severity = types.SeverityDanger
		}
		return &types.Alert{
			Vehicle:  vehicle,
			Kind:     kind,
			Message:  fmt.Sprintf("%s expires in %d days (%s)", label, daysLeft, dateStr),
			Severity: severity,
			Margin:   daysLeft,
		}
	default:
		return nil
	}
}

// checkOil evaluates the distance since the last oil-change event against
// the vehicle's interval.
func (e *Engine) checkOil(ctx context.Context, v *types.Vehicle) *types.Alert {
	status, err := e.OilStatus(ctx, v)
	if err != nil {
		log.Printf("reminder: oil check failed for %s: %v", v.Name(), err)
		return nil
	}
	if !status.HasData {
		// Eligible for immediate logging; no numeric reminder.
		return nil
	}

	switch {
	case status.Remaining <= 0:
		return &types.Alert{
			Vehicle:  v.Name(),
			Kind:     types.AlertOil,
			Message:  fmt.Sprintf("oil change DUE: %d km over (%d km since last change)", -status.Remaining, status.DistanceSince),
			Severity: types.SeverityDanger,
			Margin:   status.Remaining,
		}
	case status.Remaining <= e.cfg.OilWarningKm:
		return &types.Alert{
			Vehicle:  v.Name(),
			Kind:     types.AlertOil,
			Message:  fmt.Sprintf("oil change approaching: %d km left (%d km since last change)", status.Remaining, status.DistanceSince),
			Severity: types.SeverityWarning,
			Margin:   status.Remaining,
		}
	default:
		return nil
	}
}

// OilState is the oil check's severity tier.
type OilState string

const (
	OilOK      OilState = "ok"
	OilWarning OilState = "warning"
	OilDue     OilState = "due"
	// OilNoData means no prior oil-change event exists; the vehicle is
	// eligible for immediate logging.
	OilNoData OilState = "no_data"
)

// OilReport is the detailed oil-change state for one vehicle, exposed for
// UI panels that render more than the alert list.
type OilReport struct {
	HasData       bool
	DistanceSince int
	Remaining     int
	State         OilState
}

// OilStatus computes the oil-change state from the newest qualifying
// service event.
func (e *Engine) OilStatus(ctx context.Context, v *types.Vehicle) (*OilReport, error) {
	lastOil, ok, err := e.stats.LastOilChange(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &OilReport{State: OilNoData}, nil
	}

	since := v.Odometer - lastOil
	remaining := v.OilInterval() - since

	report := &OilReport{HasData: true, DistanceSince: since, Remaining: remaining, State: OilOK}
	switch {
	case remaining <= 0:
		report.State = OilDue
	case remaining <= e.cfg.OilWarningKm:
		report.State = OilWarning
	}
	return report, nil
}

// Headline selects the single alert worth pushing as a notification:
// the first danger, else the first alert. Returns nil for an empty list.
func Headline(alerts []types.Alert) *types.Alert {
	if len(alerts) == 0 {
		return nil
	}
	for i := range alerts {
		if alerts[i].Severity == types.SeverityDanger {
			return &alerts[i]
		}
	}
	return &alerts[0]
}

// FormatSummary renders the alert list as a multi-line startup summary.
func FormatSummary(alerts []types.Alert) string {
	if len(alerts) == 0 {
		return "All good, no active reminders."
	}

	var b strings.Builder
	for i, a := range alerts {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "  %s  [%s]", a.Message, a.Vehicle)
	}
	return b.String()
}
