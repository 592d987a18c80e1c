package types

import "fmt"

// DefaultOilInterval is the distance between oil changes when a vehicle
// does not specify its own interval.
const DefaultOilInterval = 10000

// Vehicle is a single vehicle tracked by the logbook. It exclusively owns
// its service entries and insurance policies: deleting a vehicle cascades
// to both.
type Vehicle struct {
	ID        int64  `json:"id"`
	Make      string `json:"make"`
	Model     string `json:"model"`
	ModelYear string `json:"model_year,omitempty"`

	// Odometer is the current reading in distance units. It is kept as the
	// maximum of all entry readings; the store re-establishes this after
	// every entry mutation.
	Odometer int `json:"odometer"`

	VIN   string `json:"vin,omitempty"`
	Plate string `json:"plate,omitempty"`

	// InspectionExpiry is the technical-inspection expiry date in DateFormat,
	// empty when unknown.
	InspectionExpiry string `json:"inspection_expiry,omitempty"`

	// OilChangeInterval is the per-vehicle oil-change distance. Zero means
	// DefaultOilInterval.
	OilChangeInterval int `json:"oil_change_interval,omitempty"`
}

// Name returns the display name used in alerts and summaries.
func (v *Vehicle) Name() string {
	return fmt.Sprintf("%s %s", v.Make, v.Model)
}

// OilInterval returns the effective oil-change interval.
func (v *Vehicle) OilInterval() int {
	if v.OilChangeInterval > 0 {
		return v.OilChangeInterval
	}
	return DefaultOilInterval
}

// Validate checks the fields required to persist a vehicle.
func (v *Vehicle) Validate() error {
	if v.Make == "" {
		return fmt.Errorf("vehicle make is required")
	}
	if v.Model == "" {
		return fmt.Errorf("vehicle model is required")
	}
	if v.Odometer < 0 {
		return fmt.Errorf("odometer cannot be negative")
	}
	if v.InspectionExpiry != "" {
		if _, err := ParseDate(v.InspectionExpiry); err != nil {
			return fmt.Errorf("invalid inspection expiry: %w", err)
		}
	}
	return nil
}
