// Package storage provides composable storage interfaces for the WheelBook
// logbook and the sentinel errors shared by their implementations.
package storage

import (
	"context"

	"github.com/kvarga/wheelbook/pkg/types"
)

// VehicleStore manages vehicles. Deleting a vehicle cascades to its service
// entries and insurance policies.
type VehicleStore interface {
	CreateVehicle(ctx context.Context, v *types.Vehicle) error
	GetVehicle(ctx context.Context, id int64) (*types.Vehicle, error)
	ListVehicles(ctx context.Context) ([]*types.Vehicle, error)
	UpdateVehicle(ctx context.Context, v *types.Vehicle) error
	DeleteVehicle(ctx context.Context, id int64) error
}

// EntryStore manages service entries. Every mutation re-establishes the
// odometer-synchronization invariant: the owning vehicle's odometer equals
// the maximum reading among its entries.
type EntryStore interface {
	CreateEntry(ctx context.Context, e *types.ServiceEntry) error
	GetEntry(ctx context.Context, id int64) (*types.ServiceEntry, error)
	ListEntries(ctx context.Context, vehicleID int64, filter EntryFilter) ([]*types.ServiceEntry, error)
	UpdateEntry(ctx context.Context, e *types.ServiceEntry) error
	DeleteEntry(ctx context.Context, id int64) error
}

// PolicyStore manages insurance policies.
type PolicyStore interface {
	CreatePolicy(ctx context.Context, p *types.InsurancePolicy) error
	GetPolicy(ctx context.Context, id int64) (*types.InsurancePolicy, error)
	ListPolicies(ctx context.Context, vehicleID int64) ([]*types.InsurancePolicy, error)
	// LatestPolicy returns the policy with the latest coverage end date for
	// the vehicle, or ErrNotFound when none has an end date.
	LatestPolicy(ctx context.Context, vehicleID int64) (*types.InsurancePolicy, error)
	UpdatePolicy(ctx context.Context, p *types.InsurancePolicy) error
	DeletePolicy(ctx context.Context, id int64) error
}

// CategoryStore manages entry categories. Built-in categories reject
// deletion; deleting a custom category reassigns its entries to Other.
type CategoryStore interface {
	CreateCategory(ctx context.Context, c *types.Category) error
	ListCategories(ctx context.Context) ([]*types.Category, error)
	DeleteCategory(ctx context.Context, name string) error
}

// Store is the full persistence surface used by the application core.
type Store interface {
	VehicleStore
	EntryStore
	PolicyStore
	CategoryStore

	Close() error
}
