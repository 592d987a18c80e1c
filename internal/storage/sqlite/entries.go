package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kvarga/wheelbook/internal/storage"
	"github.com/kvarga/wheelbook/pkg/types"
)

// CreateEntry inserts a service entry and re-establishes the owning
// vehicle's odometer invariant in the same transaction.
func (s *Store) CreateEntry(ctx context.Context, e *types.ServiceEntry) error {
	if e == nil {
		return storage.ErrInvalidInput
	}
	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO service_entries
				(vehicle_id, entry_date, category, amount, odometer, fuel_volume,
				 unit_price, station, note, service_type, attachment_path)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.VehicleID, e.Date, e.Category, e.Amount, e.Odometer, e.FuelVolume,
			e.UnitPrice, e.Station, e.Note, string(e.ServiceType), e.AttachmentPath)
		if err != nil {
			return fmt.Errorf("failed to insert entry: %w", err)
		}
		if e.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		return syncVehicleOdometer(ctx, tx, e.VehicleID)
	})
}

// GetEntry returns an entry by ID.
func (s *Store) GetEntry(ctx context.Context, id int64) (*types.ServiceEntry, error) {
	row := s.db.QueryRowContext(ctx, entrySelect+" WHERE id = ?", id)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return e, nil
}

// ListEntries returns a vehicle's entries, newest date first, optionally
// narrowed by the filter.
func (s *Store) ListEntries(ctx context.Context, vehicleID int64, filter storage.EntryFilter) ([]*types.ServiceEntry, error) {
	query := entrySelect + " WHERE vehicle_id = ?"
	args := []any{vehicleID}

	if filter.Category != "" {
		query += " AND category = ?"
		args = append(args, filter.Category)
	}
	if filter.Year > 0 {
		query += " AND substr(entry_date, 1, 4) = ?"
		args = append(args, strconv.Itoa(filter.Year))
	}
	if filter.Search != "" {
		query += " AND (LOWER(COALESCE(note, '')) LIKE ? OR LOWER(COALESCE(station, '')) LIKE ?)"
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		args = append(args, pattern, pattern)
	}
	query += " ORDER BY entry_date DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []*types.ServiceEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpdateEntry updates an entry and re-establishes the odometer invariant.
func (s *Store) UpdateEntry(ctx context.Context, e *types.ServiceEntry) error {
	if e == nil || e.ID == 0 {
		return storage.ErrInvalidInput
	}
	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE service_entries
			SET entry_date = ?, category = ?, amount = ?, odometer = ?, fuel_volume = ?,
			    unit_price = ?, station = ?, note = ?, service_type = ?, attachment_path = ?
			WHERE id = ?`,
			e.Date, e.Category, e.Amount, e.Odometer, e.FuelVolume,
			e.UnitPrice, e.Station, e.Note, string(e.ServiceType), e.AttachmentPath, e.ID)
		if err != nil {
			return fmt.Errorf("failed to update entry: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return storage.ErrNotFound
		}
		return syncVehicleOdometer(ctx, tx, e.VehicleID)
	})
}

// DeleteEntry removes an entry, its attachment file, and re-establishes the
// odometer invariant.
func (s *Store) DeleteEntry(ctx context.Context, id int64) error {
	var attachment string

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var vehicleID int64
		err := tx.QueryRowContext(ctx,
			"SELECT vehicle_id, COALESCE(attachment_path, '') FROM service_entries WHERE id = ?", id).
			Scan(&vehicleID, &attachment)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM service_entries WHERE id = ?", id); err != nil {
			return err
		}
		return syncVehicleOdometer(ctx, tx, vehicleID)
	})
	if err != nil {
		return err
	}

	s.removeAttachmentFile(attachment)
	return nil
}

// syncVehicleOdometer re-establishes the odometer-synchronization invariant:
// the vehicle's stored odometer equals the maximum reading among its entries.
// When no entry carries a reading the stored value is left unchanged.
func syncVehicleOdometer(ctx context.Context, tx *sql.Tx, vehicleID int64) error {
	var maxOdo sql.NullInt64
	err := tx.QueryRowContext(ctx,
		"SELECT MAX(odometer) FROM service_entries WHERE vehicle_id = ? AND odometer IS NOT NULL",
		vehicleID).Scan(&maxOdo)
	if err != nil {
		return fmt.Errorf("failed to compute max odometer: %w", err)
	}

	if !maxOdo.Valid {
		return nil
	}

	_, err = tx.ExecContext(ctx, "UPDATE vehicles SET odometer = ? WHERE id = ?", maxOdo.Int64, vehicleID)
	if err != nil {
		return fmt.Errorf("failed to sync vehicle odometer: %w", err)
	}
	return nil
}

const entrySelect = `
	SELECT id, vehicle_id, entry_date, category, amount, odometer, fuel_volume,
	       unit_price, COALESCE(station, ''), COALESCE(note, ''),
	       COALESCE(service_type, ''), COALESCE(attachment_path, '')
	FROM service_entries`

func scanEntry(r rowScanner) (*types.ServiceEntry, error) {
	var (
		e        types.ServiceEntry
		odometer sql.NullInt64
		volume   sql.NullFloat64
		price    sql.NullFloat64
		svcType  string
	)
	err := r.Scan(&e.ID, &e.VehicleID, &e.Date, &e.Category, &e.Amount, &odometer,
		&volume, &price, &e.Station, &e.Note, &svcType, &e.AttachmentPath)
	if err != nil {
		return nil, err
	}

	if odometer.Valid {
		v := int(odometer.Int64)
		e.Odometer = &v
	}
	if volume.Valid {
		v := volume.Float64
		e.FuelVolume = &v
	}
	if price.Valid {
		v := price.Float64
		e.UnitPrice = &v
	}
	e.ServiceType = types.ServiceType(svcType)
	return &e, nil
}
