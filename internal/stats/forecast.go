package stats

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/kvarga/wheelbook/pkg/types"
)

// Forecast projects a vehicle's mileage from its dated odometer readings.
type Forecast struct {
	// MonthlyKm is the average distance per 30 days.
	MonthlyKm float64

	// YearlyKm is the projected distance per year.
	YearlyKm float64

	// TotalKm is the measured span between the first and last reading.
	TotalKm int

	// Days is the calendar span the measurement covers.
	Days int

	// OilChangeInDays estimates when the next oil change falls due, in
	// days from now. Zero when no estimate is possible (no prior oil
	// change, no mileage trend, or already overdue).
	OilChangeInDays int
}

// MileageForecast projects monthly and yearly mileage from the first and
// last dated odometer readings, and estimates the time to the next oil
// change. Returns nil when fewer than two usable readings exist.
func (s *Service) MileageForecast(ctx context.Context, vehicleID int64) (*Forecast, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_date, odometer FROM service_entries
		WHERE vehicle_id = ? AND odometer IS NOT NULL
		ORDER BY REPLACE(entry_date, '-', '.') ASC`,
		vehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query odometer readings: %w", err)
	}
	defer rows.Close()

	type reading struct {
		date     string
		odometer int
	}
	var (
		first, last reading
		count       int
	)
	for rows.Next() {
		var r reading
		if err := rows.Scan(&r.date, &r.odometer); err != nil {
			return nil, fmt.Errorf("failed to scan odometer reading: %w", err)
		}
		if count == 0 {
			first = r
		}
		last = r
		count++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if count < 2 {
		return nil, nil
	}

	firstDate, err1 := types.ParseDate(first.date)
	lastDate, err2 := types.ParseDate(last.date)
	if err1 != nil || err2 != nil {
		log.Printf("stats: unparseable odometer reading dates for vehicle %d, skipping forecast", vehicleID)
		return nil, nil
	}

	days := types.DaysUntil(lastDate, firstDate)
	totalKm := last.odometer - first.odometer
	if days <= 0 || totalKm <= 0 {
		return nil, nil
	}

	f := &Forecast{
		MonthlyKm: float64(totalKm) / float64(days) * 30,
		TotalKm:   totalKm,
		Days:      days,
	}
	f.YearlyKm = f.MonthlyKm * 12

	f.OilChangeInDays = s.estimateOilChange(ctx, vehicleID, f.MonthlyKm)
	return f, nil
}

// estimateOilChange projects days until the next oil change from the
// current mileage trend. Returns 0 when no estimate is possible.
func (s *Service) estimateOilChange(ctx context.Context, vehicleID int64, monthlyKm float64) int {
	if monthlyKm <= 0 {
		return 0
	}

	var currKm, interval sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT odometer, oil_change_interval FROM vehicles WHERE id = ?", vehicleID).
		Scan(&currKm, &interval)
	if err != nil {
		return 0
	}

	lastOil, ok, err := s.LastOilChange(ctx, vehicleID)
	if err != nil || !ok {
		return 0
	}

	oilInterval := int(interval.Int64)
	if oilInterval <= 0 {
		oilInterval = types.DefaultOilInterval
	}

	remaining := oilInterval - (int(currKm.Int64) - lastOil)
	if remaining <= 0 {
		return 0
	}
	return int(float64(remaining) / monthlyKm * 30)
}
