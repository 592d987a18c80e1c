package importer

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvarga/wheelbook/internal/storage"
	"github.com/kvarga/wheelbook/internal/storage/sqlite"
	"github.com/kvarga/wheelbook/pkg/types"
)

func newTestStore(t *testing.T) (*sqlite.Store, int64) {
	t.Helper()
	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	v := &types.Vehicle{Make: "Opel", Model: "Astra"}
	require.NoError(t, store.CreateVehicle(context.Background(), v))
	return store, v.ID
}

func TestImportFuelCSV(t *testing.T) {
	store, vid := newTestStore(t)
	ctx := context.Background()

	input := strings.Join([]string{
		"date,odometer,volume,unit_price,amount,currency,station",
		"2025.01.05,12000,32.5,610,19 825 Ft,HUF,Shell",
		"2025-01-20,12400,30,615,18450,,MOL",
		"not-a-date,12800,31,620,19220,,",
		"2025.02.01,12800",
		"2025.02.10,13200,29,625,18 125,,OMV",
	}, "\n")

	res, err := ImportCSV(ctx, store, vid, types.CategoryFuel, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Imported)
	assert.Equal(t, 2, res.Skipped)

	entries, err := store.ListEntries(ctx, vid, storage.EntryFilter{Category: types.CategoryFuel})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Newest first; amounts parsed through spaces and the Ft suffix, legacy
	// dashed dates normalized.
	assert.Equal(t, "2025.02.10", entries[0].Date)
	assert.Equal(t, 18125.0, entries[0].Amount)
	assert.Equal(t, "2025.01.20", entries[1].Date)
	assert.Equal(t, 19825.0, entries[2].Amount)
	assert.Equal(t, "Shell", entries[2].Station)

	// Odometer followed the imported maximum.
	v, err := store.GetVehicle(ctx, vid)
	require.NoError(t, err)
	assert.Equal(t, 13200, v.Odometer)
}

func TestImportMaintenanceCSV(t *testing.T) {
	store, vid := newTestStore(t)
	ctx := context.Background()

	input := strings.Join([]string{
		"date,odometer,type,description,amount,station,note",
		"2025.03.01,15000,oil_change,Annual service,45 000 Ft,Dealer,filter included",
		"2025.04.01,15500,,Brake pads,28000,,",
	}, "\n")

	res, err := ImportCSV(ctx, store, vid, types.CategoryMaintenance, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Zero(t, res.Skipped)

	entries, err := store.ListEntries(ctx, vid, storage.EntryFilter{Category: types.CategoryMaintenance})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	oil := entries[1]
	assert.Equal(t, types.ServiceOilChange, oil.ServiceType)
	assert.Equal(t, "Annual service; filter included", oil.Note)
	assert.Equal(t, "Dealer", oil.Station)
	assert.Equal(t, 45000.0, oil.Amount)
}

func TestImportGenericCSV(t *testing.T) {
	store, vid := newTestStore(t)
	ctx := context.Background()

	input := strings.Join([]string{
		"2025.05.01,toll,Highway sticker,5450,yearly",
		"2025.06.01,,Parking,1200",
	}, "\n")

	res, err := ImportCSV(ctx, store, vid, types.CategoryOther, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)

	entries, err := store.ListEntries(ctx, vid, storage.EntryFilter{Category: types.CategoryOther})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Highway sticker; yearly", entries[1].Note)
}

func TestImportEmptyAndCommaAmounts(t *testing.T) {
	_, err := parseAmount("14 500 Ft")
	require.NoError(t, err)

	v, err := parseAmount("14500,50")
	require.NoError(t, err)
	assert.Equal(t, 14500.50, v)

	_, err = parseAmount("")
	assert.Error(t, err)

	_, err = parseAmount("Ft")
	assert.Error(t, err)
}

func TestExportImportRoundTrip(t *testing.T) {
	src, srcVID := newTestStore(t)
	ctx := context.Background()

	odo1, odo2 := 12000, 12400
	vol := 32.0
	price := 610.0
	for _, e := range []*types.ServiceEntry{
		{VehicleID: srcVID, Date: "2025.01.05", Category: types.CategoryFuel, Amount: 19520, Odometer: &odo1, FuelVolume: &vol, UnitPrice: &price, Station: "Shell"},
		{VehicleID: srcVID, Date: "2025.01.20", Category: types.CategoryFuel, Amount: 18300, Odometer: &odo2},
	} {
		require.NoError(t, src.CreateEntry(ctx, e))
	}

	var buf bytes.Buffer
	require.NoError(t, ExportCSV(ctx, src, srcVID, types.CategoryFuel, &buf))

	dst, dstVID := newTestStore(t)
	res, err := ImportCSV(ctx, dst, dstVID, types.CategoryFuel, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Zero(t, res.Skipped)

	entries, err := dst.ListEntries(ctx, dstVID, storage.EntryFilter{Category: types.CategoryFuel})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Shell", entries[1].Station)
	require.NotNil(t, entries[1].FuelVolume)
	assert.Equal(t, 32.0, *entries[1].FuelVolume)
}
