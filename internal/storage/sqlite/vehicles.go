package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kvarga/wheelbook/internal/storage"
	"github.com/kvarga/wheelbook/pkg/types"
)

// CreateVehicle inserts a new vehicle and assigns its ID.
func (s *Store) CreateVehicle(ctx context.Context, v *types.Vehicle) error {
	if v == nil {
		return storage.ErrInvalidInput
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO vehicles (make, model, model_year, odometer, vin, plate, inspection_expiry, oil_change_interval)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.Make, v.Model, v.ModelYear, v.Odometer, v.VIN, v.Plate, v.InspectionExpiry, v.OilInterval())
	if err != nil {
		return fmt.Errorf("failed to insert vehicle: %w", err)
	}

	v.ID, err = res.LastInsertId()
	return err
}

// GetVehicle returns a vehicle by ID.
func (s *Store) GetVehicle(ctx context.Context, id int64) (*types.Vehicle, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, make, model, COALESCE(model_year, ''), COALESCE(odometer, 0),
		       COALESCE(vin, ''), COALESCE(plate, ''), COALESCE(inspection_expiry, ''),
		       COALESCE(oil_change_interval, 0)
		FROM vehicles WHERE id = ?`, id)

	v, err := scanVehicle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vehicle: %w", err)
	}
	return v, nil
}

// ListVehicles returns all vehicles in stored (insertion) order.
func (s *Store) ListVehicles(ctx context.Context) ([]*types.Vehicle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, make, model, COALESCE(model_year, ''), COALESCE(odometer, 0),
		       COALESCE(vin, ''), COALESCE(plate, ''), COALESCE(inspection_expiry, ''),
		       COALESCE(oil_change_interval, 0)
		FROM vehicles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []*types.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vehicle: %w", err)
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

// UpdateVehicle updates all mutable fields of a vehicle.
func (s *Store) UpdateVehicle(ctx context.Context, v *types.Vehicle) error {
	if v == nil || v.ID == 0 {
		return storage.ErrInvalidInput
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE vehicles
		SET make = ?, model = ?, model_year = ?, odometer = ?, vin = ?, plate = ?,
		    inspection_expiry = ?, oil_change_interval = ?
		WHERE id = ?`,
		v.Make, v.Model, v.ModelYear, v.Odometer, v.VIN, v.Plate,
		v.InspectionExpiry, v.OilInterval(), v.ID)
	if err != nil {
		return fmt.Errorf("failed to update vehicle: %w", err)
	}

	n, _ := res.RowsAffected()
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteVehicle removes a vehicle together with its entries and policies.
// The cascade is performed explicitly inside one transaction so the
// ownership invariant holds even without FK enforcement, and attachment
// files referenced by the deleted rows are removed afterwards.
func (s *Store) DeleteVehicle(ctx context.Context, id int64) error {
	var attachments []string

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT attachment_path FROM service_entries WHERE vehicle_id = ? AND attachment_path != ''
			UNION ALL
			SELECT attachment_path FROM insurance_policies WHERE vehicle_id = ? AND attachment_path != ''`,
			id, id)
		if err != nil {
			return err
		}
		for rows.Next() {
			var p string
			if err := rows.Scan(&p); err != nil {
				rows.Close()
				return err
			}
			attachments = append(attachments, p)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM service_entries WHERE vehicle_id = ?", id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM insurance_policies WHERE vehicle_id = ?", id); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, "DELETE FROM vehicles WHERE id = ?", id)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete vehicle: %w", err)
	}

	for _, p := range attachments {
		s.removeAttachmentFile(p)
	}
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanVehicle(r rowScanner) (*types.Vehicle, error) {
	var v types.Vehicle
	err := r.Scan(&v.ID, &v.Make, &v.Model, &v.ModelYear, &v.Odometer,
		&v.VIN, &v.Plate, &v.InspectionExpiry, &v.OilChangeInterval)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
