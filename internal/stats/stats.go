// Package stats is the read-only query layer: side-effect-free aggregate
// computations over a vehicle's service entries. All operations return
// empty or zero results rather than erroring when no data exists.
package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kvarga/wheelbook/pkg/types"
)

// oilKeywords is the legacy case-insensitive note-matching convention for
// recognizing oil-change events in rows written before the explicit
// service_type tag existed.
var oilKeywords = []string{"olaj", "oil"}

// Service runs aggregate queries against the logbook database.
type Service struct {
	db *sql.DB
}

// New creates a stats service over an open logbook database.
func New(db *sql.DB) *Service {
	return &Service{db: db}
}

// FuelPoint is one fill-up in a vehicle's fuel series.
type FuelPoint struct {
	Date     string
	Amount   float64
	Volume   float64
	Odometer int
}

// FuelSeries returns a vehicle's fuel entries that carry an odometer
// reading, ascending by odometer. Used for the consumption trend.
func (s *Service) FuelSeries(ctx context.Context, vehicleID int64) ([]FuelPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_date, amount, COALESCE(fuel_volume, 0), odometer
		FROM service_entries
		WHERE vehicle_id = ? AND category = ? AND odometer IS NOT NULL
		ORDER BY odometer ASC`,
		vehicleID, types.CategoryFuel)
	if err != nil {
		return nil, fmt.Errorf("failed to query fuel series: %w", err)
	}
	defer rows.Close()

	var series []FuelPoint
	for rows.Next() {
		var p FuelPoint
		if err := rows.Scan(&p.Date, &p.Amount, &p.Volume, &p.Odometer); err != nil {
			return nil, fmt.Errorf("failed to scan fuel point: %w", err)
		}
		series = append(series, p)
	}
	return series, rows.Err()
}

// CategoryTotals returns the amount sum and entry count for one category of
// a vehicle.
func (s *Service) CategoryTotals(ctx context.Context, vehicleID int64, category string) (float64, int, error) {
	var (
		sum   sql.NullFloat64
		count int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT SUM(amount), COUNT(id) FROM service_entries
		WHERE vehicle_id = ? AND category = ?`,
		vehicleID, category).Scan(&sum, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to query category totals: %w", err)
	}
	return sum.Float64, count, nil
}

// LastOilChange returns the highest odometer reading among a vehicle's
// oil-change events. Events are recognized by the explicit service_type tag
// or, for legacy rows, by the oil keyword heuristic on Maintenance notes.
// Returns ok=false when no such event exists.
func (s *Service) LastOilChange(ctx context.Context, vehicleID int64) (int, bool, error) {
	query := `
		SELECT odometer FROM service_entries
		WHERE vehicle_id = ? AND odometer IS NOT NULL
		AND (service_type = ?
		     OR (category = ? AND (`
	args := []any{vehicleID, string(types.ServiceOilChange), types.CategoryMaintenance}

	for i, kw := range oilKeywords {
		if i > 0 {
			query += " OR "
		}
		query += "LOWER(COALESCE(note, '')) LIKE ?"
		args = append(args, "%"+kw+"%")
	}
	query += `)))
		ORDER BY odometer DESC LIMIT 1`

	var odometer int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&odometer)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to query last oil change: %w", err)
	}
	return odometer, true, nil
}

// PeriodTotal is one month's (or year's) aggregate for a category.
type PeriodTotal struct {
	// Period is "YYYY.MM" for monthly rollups and "YYYY" for yearly ones.
	Period string
	Sum    float64
	Count  int
}

// MonthlyRollup groups a vehicle's entries of one category by calendar
// month within [from, to], newest month first. Legacy dashed dates are
// normalized before grouping.
func (s *Service) MonthlyRollup(ctx context.Context, vehicleID int64, category string, from, to time.Time) ([]PeriodTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT substr(REPLACE(entry_date, '-', '.'), 1, 7) AS month,
		       SUM(amount), COUNT(id)
		FROM service_entries
		WHERE vehicle_id = ? AND category = ?
		  AND REPLACE(entry_date, '-', '.') >= ? AND REPLACE(entry_date, '-', '.') <= ?
		GROUP BY month
		ORDER BY month DESC`,
		vehicleID, category, types.FormatDate(from), types.FormatDate(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly rollup: %w", err)
	}
	defer rows.Close()

	return scanPeriodTotals(rows)
}

// YearCategoryTotal is one year's aggregate for one category.
type YearCategoryTotal struct {
	Year     string
	Category string
	Sum      float64
	Count    int
}

// YearlyRollup groups all of a vehicle's entries by calendar year and
// category, newest year first.
func (s *Service) YearlyRollup(ctx context.Context, vehicleID int64) ([]YearCategoryTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT substr(entry_date, 1, 4) AS year, category, SUM(amount), COUNT(id)
		FROM service_entries
		WHERE vehicle_id = ?
		GROUP BY year, category
		ORDER BY year DESC`,
		vehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query yearly rollup: %w", err)
	}
	defer rows.Close()

	var totals []YearCategoryTotal
	for rows.Next() {
		var t YearCategoryTotal
		var sum sql.NullFloat64
		if err := rows.Scan(&t.Year, &t.Category, &sum, &t.Count); err != nil {
			return nil, fmt.Errorf("failed to scan yearly rollup: %w", err)
		}
		t.Sum = sum.Float64
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

func scanPeriodTotals(rows *sql.Rows) ([]PeriodTotal, error) {
	var totals []PeriodTotal
	for rows.Next() {
		var t PeriodTotal
		var sum sql.NullFloat64
		if err := rows.Scan(&t.Period, &sum, &t.Count); err != nil {
			return nil, fmt.Errorf("failed to scan rollup row: %w", err)
		}
		t.Sum = sum.Float64
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// AverageConsumption computes liters per 100 distance units from a fuel
// series under the fill-to-full assumption. The first entry's volume is
// excluded because it cannot be attributed to a distance interval. Returns
// 0 with fewer than 2 points or a non-positive distance span.
func AverageConsumption(series []FuelPoint) float64 {
	if len(series) < 2 {
		return 0
	}

	dist := series[len(series)-1].Odometer - series[0].Odometer
	if dist <= 0 {
		return 0
	}

	var volume float64
	for _, p := range series[1:] {
		volume += p.Volume
	}
	return volume / float64(dist) * 100
}

// ConsumptionPoint is one interval's consumption in the trend chart.
type ConsumptionPoint struct {
	Date   string
	Per100 float64
}

// ConsumptionHistory computes the per-interval consumption between
// consecutive fill-ups. Intervals with a non-positive distance or a missing
// volume are skipped.
func ConsumptionHistory(series []FuelPoint) []ConsumptionPoint {
	var history []ConsumptionPoint
	for i := 1; i < len(series); i++ {
		dist := series[i].Odometer - series[i-1].Odometer
		if dist <= 0 || series[i].Volume == 0 {
			continue
		}
		history = append(history, ConsumptionPoint{
			Date:   series[i].Date,
			Per100: series[i].Volume / float64(dist) * 100,
		})
	}
	return history
}
