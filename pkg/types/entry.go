package types

import "fmt"

// ServiceEntry is a single logged expense belonging to exactly one vehicle.
// Category-specific fields (FuelVolume, UnitPrice, Station) are optional and
// only meaningful for fuel entries.
type ServiceEntry struct {
	ID        int64  `json:"id"`
	VehicleID int64  `json:"vehicle_id"`
	Date      string `json:"date"`
	Category  string `json:"category"`
	Amount    float64 `json:"amount"`

	// Odometer is the reading at the time of the entry, nil when not logged.
	Odometer *int `json:"odometer,omitempty"`

	FuelVolume *float64 `json:"fuel_volume,omitempty"`
	UnitPrice  *float64 `json:"unit_price,omitempty"`
	Station    string   `json:"station,omitempty"`

	Note string `json:"note,omitempty"`

	// ServiceType is the explicit subtype tag for maintenance events.
	ServiceType ServiceType `json:"service_type,omitempty"`

	// AttachmentPath is a file path relative to the attachments directory,
	// empty when no attachment exists.
	AttachmentPath string `json:"attachment_path,omitempty"`
}

// Validate checks the fields required to persist an entry.
func (e *ServiceEntry) Validate() error {
	if e.VehicleID == 0 {
		return fmt.Errorf("entry vehicle is required")
	}
	if e.Category == "" {
		return fmt.Errorf("entry category is required")
	}
	if _, err := ParseDate(e.Date); err != nil {
		return fmt.Errorf("invalid entry date: %w", err)
	}
	if e.Amount < 0 {
		return fmt.Errorf("entry amount cannot be negative")
	}
	if e.Odometer != nil && *e.Odometer < 0 {
		return fmt.Errorf("entry odometer cannot be negative")
	}
	return nil
}

// InsurancePolicy is an insurance contract belonging to one vehicle.
// Expiry checks use the policy with the latest coverage end date.
type InsurancePolicy struct {
	ID        int64  `json:"id"`
	VehicleID int64  `json:"vehicle_id"`
	IssueDate string `json:"issue_date"`
	Provider  string `json:"provider,omitempty"`

	CoverageStart string `json:"coverage_start,omitempty"`
	CoverageEnd   string `json:"coverage_end,omitempty"`

	Amount float64 `json:"amount"`
	Note   string  `json:"note,omitempty"`

	AttachmentPath string `json:"attachment_path,omitempty"`
}

// Validate checks the fields required to persist a policy.
func (p *InsurancePolicy) Validate() error {
	if p.VehicleID == 0 {
		return fmt.Errorf("policy vehicle is required")
	}
	if _, err := ParseDate(p.IssueDate); err != nil {
		return fmt.Errorf("invalid policy issue date: %w", err)
	}
	if p.CoverageEnd != "" {
		if _, err := ParseDate(p.CoverageEnd); err != nil {
			return fmt.Errorf("invalid policy coverage end: %w", err)
		}
	}
	if p.Amount < 0 {
		return fmt.Errorf("policy amount cannot be negative")
	}
	return nil
}

// Category maps an entry classification name to display attributes. Built-in
// categories cannot be deleted; deleting a custom category reassigns its
// entries to Other.
type Category struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Icon    string `json:"icon,omitempty"`
	Color   string `json:"color,omitempty"`
	Builtin bool   `json:"builtin"`
}
