// Package types defines the core domain entities for the WheelBook
// vehicle-expense logbook: vehicles, service entries, insurance policies,
// categories, and the alerts produced by the reminder engine.
package types

// Built-in category names. These categories are seeded on first run and
// cannot be deleted. Insurance is structurally distinct: it owns its own
// entity (InsurancePolicy) rather than living in ServiceEntry.
const (
	CategoryFuel        = "Fuel"
	CategoryMaintenance = "Maintenance"
	CategoryOther       = "Other"
	CategoryInsurance   = "Insurance"
)

// BuiltinCategories returns the fixed set of non-deletable categories with
// their display attributes.
func BuiltinCategories() []Category {
	return []Category{
		{Name: CategoryFuel, Icon: "⛽", Color: "#3b82f6", Builtin: true},
		{Name: CategoryMaintenance, Icon: "🔧", Color: "#10b981", Builtin: true},
		{Name: CategoryOther, Icon: "📦", Color: "#f97316", Builtin: true},
		{Name: CategoryInsurance, Icon: "🛡", Color: "#8b5cf6", Builtin: true},
	}
}

// ServiceType is an explicit service-event subtype tag on maintenance
// entries. It replaces the legacy convention of encoding the event kind in
// free-text notes; readers still honor the old keyword heuristic for rows
// written before the tag existed.
type ServiceType string

const (
	// ServiceNone marks an entry with no specific subtype.
	ServiceNone ServiceType = ""

	// ServiceOilChange marks a maintenance entry as an oil change. The
	// reminder engine resets the oil interval from the newest such entry.
	ServiceOilChange ServiceType = "oil_change"
)

// AlertKind identifies which check produced a reminder alert.
type AlertKind string

const (
	AlertInspection AlertKind = "inspection"
	AlertOil        AlertKind = "oil"
	AlertInsurance  AlertKind = "insurance"
)

// Severity ranks how urgent an alert is. Danger outranks warning when a
// single headline alert is selected for notification.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
)

// Alert is a single due or upcoming maintenance/compliance event for one
// vehicle, produced by the reminder engine.
type Alert struct {
	// Vehicle is the display name of the affected vehicle ("Make Model").
	Vehicle string `json:"vehicle"`

	// Kind is the check that produced the alert.
	Kind AlertKind `json:"kind"`

	// Message is the human-readable description.
	Message string `json:"message"`

	// Severity is warning or danger.
	Severity Severity `json:"severity"`

	// Margin is the numeric distance to (or past) the threshold: days left
	// for inspection/insurance (negative when expired), distance units
	// remaining for oil (negative when overdue).
	Margin int `json:"margin"`
}
