package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kvarga/wheelbook/internal/storage"
	"github.com/kvarga/wheelbook/pkg/types"
)

// CreatePolicy inserts an insurance policy and assigns its ID.
func (s *Store) CreatePolicy(ctx context.Context, p *types.InsurancePolicy) error {
	if p == nil {
		return storage.ErrInvalidInput
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO insurance_policies
			(vehicle_id, issue_date, provider, coverage_start, coverage_end, amount, note, attachment_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.VehicleID, p.IssueDate, p.Provider, p.CoverageStart, p.CoverageEnd,
		p.Amount, p.Note, p.AttachmentPath)
	if err != nil {
		return fmt.Errorf("failed to insert policy: %w", err)
	}

	p.ID, err = res.LastInsertId()
	return err
}

// GetPolicy returns a policy by ID.
func (s *Store) GetPolicy(ctx context.Context, id int64) (*types.InsurancePolicy, error) {
	row := s.db.QueryRowContext(ctx, policySelect+" WHERE id = ?", id)

	p, err := scanPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}
	return p, nil
}

// ListPolicies returns a vehicle's policies, latest coverage end first.
func (s *Store) ListPolicies(ctx context.Context, vehicleID int64) ([]*types.InsurancePolicy, error) {
	rows, err := s.db.QueryContext(ctx,
		policySelect+" WHERE vehicle_id = ? ORDER BY coverage_end DESC, id DESC", vehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	defer rows.Close()

	var policies []*types.InsurancePolicy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

// LatestPolicy returns the policy with the latest coverage end date for the
// vehicle. Policies without an end date are ignored.
func (s *Store) LatestPolicy(ctx context.Context, vehicleID int64) (*types.InsurancePolicy, error) {
	row := s.db.QueryRowContext(ctx, policySelect+`
		WHERE vehicle_id = ? AND coverage_end IS NOT NULL AND coverage_end != ''
		ORDER BY coverage_end DESC LIMIT 1`, vehicleID)

	p, err := scanPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest policy: %w", err)
	}
	return p, nil
}

// UpdatePolicy updates all mutable fields of a policy.
func (s *Store) UpdatePolicy(ctx context.Context, p *types.InsurancePolicy) error {
	if p == nil || p.ID == 0 {
		return storage.ErrInvalidInput
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE insurance_policies
		SET issue_date = ?, provider = ?, coverage_start = ?, coverage_end = ?,
		    amount = ?, note = ?, attachment_path = ?
		WHERE id = ?`,
		p.IssueDate, p.Provider, p.CoverageStart, p.CoverageEnd,
		p.Amount, p.Note, p.AttachmentPath, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update policy: %w", err)
	}

	n, _ := res.RowsAffected()
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeletePolicy removes a policy and its attachment file.
func (s *Store) DeletePolicy(ctx context.Context, id int64) error {
	var attachment string
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(attachment_path, '') FROM insurance_policies WHERE id = ?", id).
		Scan(&attachment)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to look up policy: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM insurance_policies WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete policy: %w", err)
	}

	s.removeAttachmentFile(attachment)
	return nil
}

const policySelect = `
	SELECT id, vehicle_id, issue_date, COALESCE(provider, ''), COALESCE(coverage_start, ''),
	       COALESCE(coverage_end, ''), amount, COALESCE(note, ''), COALESCE(attachment_path, '')
	FROM insurance_policies`

func scanPolicy(r rowScanner) (*types.InsurancePolicy, error) {
	var p types.InsurancePolicy
	err := r.Scan(&p.ID, &p.VehicleID, &p.IssueDate, &p.Provider, &p.CoverageStart,
		&p.CoverageEnd, &p.Amount, &p.Note, &p.AttachmentPath)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
