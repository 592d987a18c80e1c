// Package importer moves service entries in and out of CSV files. Import
// is forgiving: malformed rows are counted and skipped with throttled
// warnings, never fatal, so one bad line cannot sink a thousand good ones.
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kvarga/wheelbook/internal/storage"
	"github.com/kvarga/wheelbook/pkg/types"
)

// Result summarizes one import run.
type Result struct {
	Imported int
	Skipped  int
}

// warnEvery throttles malformed-row warnings so a pathological file does
// not flood the log.
var warnEvery = rate.Sometimes{First: 3, Interval: 2 * time.Second}

// ImportCSV reads entries of one category from r and inserts them for the
// given vehicle. The first row is skipped when it does not parse as a
// date (header). Column layouts by category:
//
//	Fuel:        date, odometer, volume, unit price, amount[, currency, station]
//	Maintenance: date, odometer, type, description, amount[, station, note]
//	other:       date, type, description, amount[, note]
//
// Amounts tolerate embedded spaces, a comma decimal separator and a "Ft"
// suffix.
func ImportCSV(ctx context.Context, store storage.EntryStore, vehicleID int64, category string, r io.Reader) (Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var res Result
	first := true
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A structurally broken line; csv.Reader recovers on the next.
			res.Skipped++
			warnEvery.Do(func() { log.Printf("importer: unreadable row: %v", err) })
			continue
		}

		if first {
			first = false
			if len(record) > 0 {
				if _, err := types.ParseDate(strings.TrimSpace(record[0])); err != nil {
					continue // header row
				}
			}
		}

		entry, err := parseRow(record, vehicleID, category)
		if err != nil {
			res.Skipped++
			warnEvery.Do(func() { log.Printf("importer: skipping row: %v", err) })
			continue
		}

		if err := store.CreateEntry(ctx, entry); err != nil {
			res.Skipped++
			warnEvery.Do(func() { log.Printf("importer: failed to insert row: %v", err) })
			continue
		}
		res.Imported++
	}

	log.Printf("importer: imported %d rows, skipped %d (%s)", res.Imported, res.Skipped, category)
	return res, nil
}

func parseRow(record []string, vehicleID int64, category string) (*types.ServiceEntry, error) {
	for i := range record {
		record[i] = strings.TrimSpace(record[i])
	}

	switch category {
	case types.CategoryFuel:
		return parseFuelRow(record, vehicleID)
	case types.CategoryMaintenance:
		return parseMaintenanceRow(record, vehicleID)
	default:
		return parseGenericRow(record, vehicleID, category)
	}
}

func parseFuelRow(record []string, vehicleID int64) (*types.ServiceEntry, error) {
	if len(record) < 5 {
		return nil, fmt.Errorf("fuel row needs at least 5 columns, got %d", len(record))
	}

	date, err := normalizeDate(record[0])
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(record[4])
	if err != nil {
		return nil, err
	}

	e := &types.ServiceEntry{
		VehicleID: vehicleID,
		Date:      date,
		Category:  types.CategoryFuel,
		Amount:    amount,
	}
	if e.Odometer, err = parseOptionalInt(record[1]); err != nil {
		return nil, fmt.Errorf("bad odometer %q: %w", record[1], err)
	}
	if e.FuelVolume, err = parseOptionalFloat(record[2]); err != nil {
		return nil, fmt.Errorf("bad volume %q: %w", record[2], err)
	}
	if e.UnitPrice, err = parseOptionalFloat(record[3]); err != nil {
		return nil, fmt.Errorf("bad unit price %q: %w", record[3], err)
	}
	if len(record) > 6 {
		e.Station = record[6]
	}
	return e, nil
}

func parseMaintenanceRow(record []string, vehicleID int64) (*types.ServiceEntry, error) {
	if len(record) < 5 {
		return nil, fmt.Errorf("maintenance row needs at least 5 columns, got %d", len(record))
	}

	date, err := normalizeDate(record[0])
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(record[4])
	if err != nil {
		return nil, err
	}

	e := &types.ServiceEntry{
		VehicleID: vehicleID,
		Date:      date,
		Category:  types.CategoryMaintenance,
		Amount:    amount,
		Note:      record[3],
	}
	if e.Odometer, err = parseOptionalInt(record[1]); err != nil {
		return nil, fmt.Errorf("bad odometer %q: %w", record[1], err)
	}
	if record[2] == string(types.ServiceOilChange) {
		e.ServiceType = types.ServiceOilChange
	}
	if len(record) > 5 {
		e.Station = record[5]
	}
	if len(record) > 6 && record[6] != "" {
		if e.Note != "" {
			e.Note += "; "
		}
		e.Note += record[6]
	}
	return e, nil
}

func parseGenericRow(record []string, vehicleID int64, category string) (*types.ServiceEntry, error) {
	if len(record) < 4 {
		return nil, fmt.Errorf("row needs at least 4 columns, got %d", len(record))
	}

	date, err := normalizeDate(record[0])
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(record[3])
	if err != nil {
		return nil, err
	}

	e := &types.ServiceEntry{
		VehicleID: vehicleID,
		Date:      date,
		Category:  category,
		Amount:    amount,
		Note:      record[2],
	}
	if len(record) > 4 {
		if e.Note != "" && record[4] != "" {
			e.Note += "; "
		}
		e.Note += record[4]
	}
	return e, nil
}

// normalizeDate validates the row date and re-renders it canonically.
func normalizeDate(s string) (string, error) {
	d, err := types.ParseDate(s)
	if err != nil {
		return "", fmt.Errorf("bad date %q: %w", s, err)
	}
	return types.FormatDate(d), nil
}

// parseAmount parses an amount that may carry thousands spaces, a comma
// decimal separator or a "Ft" suffix, e.g. "14 500 Ft" or "14500,50".
func parseAmount(s string) (float64, error) {
	cleaned := strings.ReplaceAll(s, " ", "")
	cleaned = strings.ReplaceAll(cleaned, "\u00a0", "") // non-breaking space
	cleaned = strings.TrimSuffix(strings.TrimSuffix(cleaned, "Ft"), "ft")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	if cleaned == "" {
		return 0, fmt.Errorf("empty amount")
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("bad amount %q: %w", s, err)
	}
	return v, nil
}

func parseOptionalInt(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseOptionalFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ExportCSV writes a vehicle's entries of one category to w, one row per
// entry in the same positional layout ImportCSV reads.
func ExportCSV(ctx context.Context, store storage.EntryStore, vehicleID int64, category string, w io.Writer) error {
	entries, err := store.ListEntries(ctx, vehicleID, storage.EntryFilter{Category: category})
	if err != nil {
		return fmt.Errorf("importer: failed to list entries: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(headerFor(category)); err != nil {
		return err
	}

	for _, e := range entries {
		if err := cw.Write(rowFor(e, category)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func headerFor(category string) []string {
	switch category {
	case types.CategoryFuel:
		return []string{"date", "odometer", "volume", "unit_price", "amount", "currency", "station"}
	case types.CategoryMaintenance:
		return []string{"date", "odometer", "type", "description", "amount", "station", "note"}
	default:
		return []string{"date", "type", "description", "amount", "note"}
	}
}

func rowFor(e *types.ServiceEntry, category string) []string {
	amount := strconv.FormatFloat(e.Amount, 'f', -1, 64)
	switch category {
	case types.CategoryFuel:
		return []string{
			e.Date, formatOptionalInt(e.Odometer), formatOptionalFloat(e.FuelVolume),
			formatOptionalFloat(e.UnitPrice), amount, "", e.Station,
		}
	case types.CategoryMaintenance:
		return []string{
			e.Date, formatOptionalInt(e.Odometer), string(e.ServiceType),
			e.Note, amount, e.Station, "",
		}
	default:
		return []string{e.Date, string(e.ServiceType), e.Note, amount, ""}
	}
}

func formatOptionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatOptionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
