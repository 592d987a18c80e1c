package types

import (
	"testing"
	"time"
)

func TestParseDateBothFormats(t *testing.T) {
	want := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	for _, s := range []string{"2025.03.14", "2025-03-14", "  2025.03.14 "} {
		got, err := ParseDate(s)
		if err != nil {
			t.Fatalf("ParseDate(%q) failed: %v", s, err)
		}
		if !got.Equal(want) {
			t.Errorf("ParseDate(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestParseDateRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "---", "not a date", "14.03.2025", "2025/03/14"} {
		if _, err := ParseDate(s); err == nil {
			t.Errorf("ParseDate(%q): expected error", s)
		}
	}
}

func TestFormatDateRoundTrip(t *testing.T) {
	d := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	s := FormatDate(d)
	if s != "2024.12.01" {
		t.Errorf("FormatDate = %q, want 2024.12.01", s)
	}
}

func TestDaysUntil(t *testing.T) {
	today := time.Date(2025, 6, 10, 15, 30, 0, 0, time.UTC)

	cases := []struct {
		date string
		want int
	}{
		{"2025.06.10", 0},
		{"2025.06.17", 7},
		{"2025.06.05", -5},
		{"2025.07.10", 30},
	}

	for _, c := range cases {
		d, err := ParseDate(c.date)
		if err != nil {
			t.Fatalf("ParseDate(%q): %v", c.date, err)
		}
		if got := DaysUntil(d, today); got != c.want {
			t.Errorf("DaysUntil(%s) = %d, want %d", c.date, got, c.want)
		}
	}
}

func TestVehicleValidate(t *testing.T) {
	v := &Vehicle{Make: "Opel", Model: "Astra", Odometer: 120000}
	if err := v.Validate(); err != nil {
		t.Errorf("valid vehicle rejected: %v", err)
	}

	if err := (&Vehicle{Model: "Astra"}).Validate(); err == nil {
		t.Error("expected error for missing make")
	}
	if err := (&Vehicle{Make: "Opel", Model: "Astra", InspectionExpiry: "garbage"}).Validate(); err == nil {
		t.Error("expected error for malformed inspection expiry")
	}
}

func TestVehicleOilIntervalDefault(t *testing.T) {
	v := &Vehicle{Make: "Opel", Model: "Astra"}
	if got := v.OilInterval(); got != DefaultOilInterval {
		t.Errorf("OilInterval = %d, want %d", got, DefaultOilInterval)
	}

	v.OilChangeInterval = 15000
	if got := v.OilInterval(); got != 15000 {
		t.Errorf("OilInterval = %d, want 15000", got)
	}
}

func TestServiceEntryValidate(t *testing.T) {
	km := 152000
	e := &ServiceEntry{VehicleID: 1, Date: "2025.01.05", Category: CategoryFuel, Amount: 25000, Odometer: &km}
	if err := e.Validate(); err != nil {
		t.Errorf("valid entry rejected: %v", err)
	}

	bad := []*ServiceEntry{
		{Date: "2025.01.05", Category: CategoryFuel},          // no vehicle
		{VehicleID: 1, Category: CategoryFuel},                // no date
		{VehicleID: 1, Date: "2025.01.05"},                    // no category
		{VehicleID: 1, Date: "2025.01.05", Category: CategoryFuel, Amount: -1},
	}
	for i, e := range bad {
		if err := e.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestPolicyValidate(t *testing.T) {
	p := &InsurancePolicy{VehicleID: 1, IssueDate: "2025.01.01", CoverageEnd: "2026.01.01", Amount: 90000}
	if err := p.Validate(); err != nil {
		t.Errorf("valid policy rejected: %v", err)
	}

	if err := (&InsurancePolicy{VehicleID: 1, IssueDate: "bad"}).Validate(); err == nil {
		t.Error("expected error for malformed issue date")
	}
}
