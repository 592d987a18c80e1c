package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvarga/wheelbook/internal/stats"
	"github.com/kvarga/wheelbook/internal/storage/sqlite"
	"github.com/kvarga/wheelbook/pkg/types"
)

// testNow is the fixed clock all engine tests run against.
var testNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	e := New(store, stats.New(store.DB()), DefaultConfig())
	e.now = func() time.Time { return testNow }
	return e, store
}

func addVehicle(t *testing.T, store *sqlite.Store, v *types.Vehicle) *types.Vehicle {
	t.Helper()
	if v.Make == "" {
		v.Make = "Ford"
	}
	if v.Model == "" {
		v.Model = "Focus"
	}
	require.NoError(t, store.CreateVehicle(context.Background(), v))
	return v
}

// addOdoEntry inserts a dated entry carrying an odometer reading, which
// also syncs the vehicle's odometer to the running maximum.
func addOdoEntry(t *testing.T, store *sqlite.Store, vid int64, odometer int, serviceType types.ServiceType) {
	t.Helper()
	e := &types.ServiceEntry{
		VehicleID: vid, Date: "2025.01.01", Category: types.CategoryMaintenance,
		Amount: 100, Odometer: &odometer, ServiceType: serviceType,
	}
	require.NoError(t, store.CreateEntry(context.Background(), e))
}

func dateFromNow(days int) string {
	return types.FormatDate(testNow.AddDate(0, 0, days))
}

func findAlert(alerts []types.Alert, kind types.AlertKind) *types.Alert {
	for i := range alerts {
		if alerts[i].Kind == kind {
			return &alerts[i]
		}
	}
	return nil
}

func TestInspectionExpired(t *testing.T) {
	e, store := newTestEngine(t)
	addVehicle(t, store, &types.Vehicle{InspectionExpiry: dateFromNow(-5)})

	alerts, err := e.CheckAll(context.Background())
	require.NoError(t, err)

	a := findAlert(alerts, types.AlertInspection)
	require.NotNil(t, a)
	assert.Equal(t, types.SeverityDanger, a.Severity)
	assert.Equal(t, -5, a.Margin)
	assert.Contains(t, a.Message, "EXPIRED 5 days ago")
}

func TestInspectionWarningWindow(t *testing.T) {
	e, store := newTestEngine(t)
	addVehicle(t, store, &types.Vehicle{InspectionExpiry: dateFromNow(20)})

	alerts, err := e.CheckAll(context.Background())
	require.NoError(t, err)

	a := findAlert(alerts, types.AlertInspection)
	require.NotNil(t, a)
	assert.Equal(t, types.SeverityWarning, a.Severity)
	assert.Equal(t, 20, a.Margin)
	assert.Contains(t, a.Message, "expires in 20 days")
}

// Within 7 days of expiry, the warning escalates to danger.
func TestInspectionDangerEscalation(t *testing.T) {
	e, store := newTestEngine(t)
	addVehicle(t, store, &types.Vehicle{InspectionExpiry: dateFromNow(7)})

	alerts, err := e.CheckAll(context.Background())
	require.NoError(t, err)

	a := findAlert(alerts, types.AlertInspection)
	require.NotNil(t, a)
	assert.Equal(t, types.SeverityDanger, a.Severity)
}

func TestInspectionFarAwayNoAlert(t *testing.T) {
	e, store := newTestEngine(t)
	addVehicle(t, store, &types.Vehicle{InspectionExpiry: dateFromNow(90)})

	alerts, err := e.CheckAll(context.Background())
	require.NoError(t, err)
	assert.Nil(t, findAlert(alerts, types.AlertInspection))
}

// A malformed expiry date, as written by older releases, is skipped, not
// raised. The store API rejects such dates, so the rows are corrupted
// directly.
func TestInspectionMalformedDate(t *testing.T) {
	e, store := newTestEngine(t)
	v1 := addVehicle(t, store, &types.Vehicle{})
	v2 := addVehicle(t, store, &types.Vehicle{Make: "Opel"})

	_, err := store.DB().Exec("UPDATE vehicles SET inspection_expiry = 'next spring' WHERE id = ?", v1.ID)
	require.NoError(t, err)
	_, err = store.DB().Exec("UPDATE vehicles SET inspection_expiry = '---' WHERE id = ?", v2.ID)
	require.NoError(t, err)

	alerts, err := e.CheckAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestOilWithinInterval(t *testing.T) {
	e, store := newTestEngine(t)
	v := addVehicle(t, store, &types.Vehicle{})

	addOdoEntry(t, store, v.ID, 10000, types.ServiceOilChange)
	addOdoEntry(t, store, v.ID, 15500, types.ServiceNone)

	alerts, err := e.CheckAll(context.Background())
	require.NoError(t, err)
	assert.Nil(t, findAlert(alerts, types.AlertOil))

	got, err := store.GetVehicle(context.Background(), v.ID)
	require.NoError(t, err)
	report, err := e.OilStatus(context.Background(), got)
	require.NoError(t, err)
	assert.Equal(t, OilOK, report.State)
	assert.Equal(t, 4500, report.Remaining)
	assert.Equal(t, 5500, report.DistanceSince)
}

func TestOilOverdue(t *testing.T) {
	e, store := newTestEngine(t)
	v := addVehicle(t, store, &types.Vehicle{})

	addOdoEntry(t, store, v.ID, 10000, types.ServiceOilChange)
	addOdoEntry(t, store, v.ID, 20200, types.ServiceNone)

	alerts, err := e.CheckAll(context.Background())
	require.NoError(t, err)

	a := findAlert(alerts, types.AlertOil)
	require.NotNil(t, a)
	assert.Equal(t, types.SeverityDanger, a.Severity)
	assert.Equal(t, -200, a.Margin)
	assert.Contains(t, a.Message, "200 km over")
}

func TestOilApproaching(t *testing.T) {
	e, store := newTestEngine(t)
	v := addVehicle(t, store, &types.Vehicle{})

	addOdoEntry(t, store, v.ID, 10000, types.ServiceOilChange)
	addOdoEntry(t, store, v.ID, 19400, types.ServiceNone)

	alerts, err := e.CheckAll(context.Background())
	require.NoError(t, err)

	a := findAlert(alerts, types.AlertOil)
	require.NotNil(t, a)
	assert.Equal(t, types.SeverityWarning, a.Severity)
	assert.Equal(t, 600, a.Margin)
}

// Without a recorded oil change there is no reminder; the status exposes
// the eligibility instead.
func TestOilNoPriorChange(t *testing.T) {
	e, store := newTestEngine(t)
	v := addVehicle(t, store, &types.Vehicle{})
	addOdoEntry(t, store, v.ID, 25000, types.ServiceNone)

	alerts, err := e.CheckAll(context.Background())
	require.NoError(t, err)
	assert.Nil(t, findAlert(alerts, types.AlertOil))

	got, err := store.GetVehicle(context.Background(), v.ID)
	require.NoError(t, err)
	report, err := e.OilStatus(context.Background(), got)
	require.NoError(t, err)
	assert.False(t, report.HasData)
	assert.Equal(t, OilNoData, report.State)
}

func TestOilCustomInterval(t *testing.T) {
	e, store := newTestEngine(t)
	v := addVehicle(t, store, &types.Vehicle{OilChangeInterval: 15000})

	addOdoEntry(t, store, v.ID, 10000, types.ServiceOilChange)
	addOdoEntry(t, store, v.ID, 21000, types.ServiceNone)

	// 11000 since last, 4000 remaining of 15000: still OK.
	alerts, err := e.CheckAll(context.Background())
	require.NoError(t, err)
	assert.Nil(t, findAlert(alerts, types.AlertOil))
}

func TestInsuranceUsesLatestPolicy(t *testing.T) {
	e, store := newTestEngine(t)
	v := addVehicle(t, store, &types.Vehicle{})
	ctx := context.Background()

	expired := &types.InsurancePolicy{
		VehicleID: v.ID, IssueDate: dateFromNow(-400), CoverageEnd: dateFromNow(-35), Provider: "Alfa",
	}
	current := &types.InsurancePolicy{
		VehicleID: v.ID, IssueDate: dateFromNow(-30), CoverageEnd: dateFromNow(10), Provider: "Beta",
	}
	require.NoError(t, store.CreatePolicy(ctx, expired))
	require.NoError(t, store.CreatePolicy(ctx, current))

	alerts, err := e.CheckAll(ctx)
	require.NoError(t, err)

	a := findAlert(alerts, types.AlertInsurance)
	require.NotNil(t, a)
	assert.Equal(t, types.SeverityWarning, a.Severity)
	assert.Equal(t, 10, a.Margin)
}

func TestInsuranceNoPolicyNoAlert(t *testing.T) {
	e, store := newTestEngine(t)
	addVehicle(t, store, &types.Vehicle{})

	alerts, err := e.CheckAll(context.Background())
	require.NoError(t, err)
	assert.Nil(t, findAlert(alerts, types.AlertInsurance))
}

func TestHeadline(t *testing.T) {
	assert.Nil(t, Headline(nil))

	warn1 := types.Alert{Message: "w1", Severity: types.SeverityWarning}
	warn2 := types.Alert{Message: "w2", Severity: types.SeverityWarning}
	danger := types.Alert{Message: "d", Severity: types.SeverityDanger}

	// First danger wins over an earlier warning.
	got := Headline([]types.Alert{warn1, danger, warn2})
	require.NotNil(t, got)
	assert.Equal(t, "d", got.Message)

	// No danger: first alert.
	got = Headline([]types.Alert{warn1, warn2})
	require.NotNil(t, got)
	assert.Equal(t, "w1", got.Message)
}

func TestFormatSummary(t *testing.T) {
	assert.Equal(t, "All good, no active reminders.", FormatSummary(nil))

	alerts := []types.Alert{
		{Vehicle: "Ford Focus", Message: "inspection expires in 10 days (2025.06.25)", Severity: types.SeverityWarning},
		{Vehicle: "Ford Focus", Message: "oil change DUE: 200 km over (10200 km since last change)", Severity: types.SeverityDanger},
	}
	summary := FormatSummary(alerts)
	assert.Contains(t, summary, "inspection expires in 10 days")
	assert.Contains(t, summary, "oil change DUE")
}
