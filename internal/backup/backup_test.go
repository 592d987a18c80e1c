package backup

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kvarga/wheelbook/internal/storage/sqlite"
	"github.com/kvarga/wheelbook/pkg/types"
)

// newTestEnv creates a live database with one vehicle and a backup engine
// over it.
func newTestEnv(t *testing.T) (*Engine, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "wheelbook.db")

	seedVehicle(t, dbPath, "Opel")

	e, err := NewEngine(Config{
		DBPath:         dbPath,
		BackupDir:      filepath.Join(dir, "backups"),
		AttachmentsDir: filepath.Join(dir, "attachments"),
		KeepDays:       30,
	})
	require.NoError(t, err)
	return e, dbPath
}

// seedVehicle adds one vehicle to the database at path, creating it if
// needed.
func seedVehicle(t *testing.T, dbPath, brand string) {
	t.Helper()
	store, err := sqlite.NewStore(dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	v := &types.Vehicle{Make: brand, Model: "Test"}
	require.NoError(t, store.CreateVehicle(context.Background(), v))
}

// vehicleMakes reads the vehicle makes stored in the database at path.
func vehicleMakes(t *testing.T, dbPath string) []string {
	t.Helper()
	store, err := sqlite.NewStore(dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	vehicles, err := store.ListVehicles(context.Background())
	require.NoError(t, err)

	var makes []string
	for _, v := range vehicles {
		makes = append(makes, v.Make)
	}
	return makes
}

func TestRunDailyBackupIdempotent(t *testing.T) {
	e, _ := newTestEnv(t)

	created, err := e.RunDailyBackup()
	require.NoError(t, err)
	assert.True(t, created)

	name := autoPrefix + time.Now().Format(snapshotDateLayout) + ".db"
	_, err = os.Stat(filepath.Join(e.backupDir, name))
	require.NoError(t, err)

	// Second run the same day is a no-op.
	created, err = e.RunDailyBackup()
	require.NoError(t, err)
	assert.False(t, created)

	snapshots, err := e.ListSnapshots()
	require.NoError(t, err)
	assert.Len(t, snapshots, 1)
}

func TestRunDailyBackupMissingDatabase(t *testing.T) {
	dir := t.TempDir()
	e, err := NewEngine(Config{
		DBPath:    filepath.Join(dir, "missing.db"),
		BackupDir: filepath.Join(dir, "backups"),
	})
	require.NoError(t, err)

	created, err := e.RunDailyBackup()
	assert.False(t, created)
	assert.Error(t, err)
}

func TestPruneOlderThan(t *testing.T) {
	e, _ := newTestEnv(t)
	now := time.Now()

	writeAuto := func(age int) string {
		name := autoPrefix + now.AddDate(0, 0, -age).Format(snapshotDateLayout) + ".db"
		path := filepath.Join(e.backupDir, name)
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		return path
	}

	fresh := writeAuto(1)
	middle := writeAuto(10)
	expired := writeAuto(40)

	// Safety snapshots and oddly named files survive any retention pass.
	safety := filepath.Join(e.backupDir, "pre_import_20200101_120000.db")
	require.NoError(t, os.WriteFile(safety, []byte("x"), 0o644))
	odd := filepath.Join(e.backupDir, "auto_notadate.db")
	require.NoError(t, os.WriteFile(odd, []byte("x"), 0o644))

	removed, err := e.PruneOlderThan(30)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	for _, path := range []string{fresh, middle, safety, odd} {
		_, err := os.Stat(path)
		assert.NoError(t, err, "expected %s to survive", filepath.Base(path))
	}
	_, err = os.Stat(expired)
	assert.True(t, os.IsNotExist(err), "expected expired snapshot to be removed")
}

func TestListSnapshotsNewestFirst(t *testing.T) {
	e, _ := newTestEnv(t)
	now := time.Now()

	for _, age := range []int{5, 1, 3} {
		name := autoPrefix + now.AddDate(0, 0, -age).Format(snapshotDateLayout) + ".db"
		require.NoError(t, os.WriteFile(filepath.Join(e.backupDir, name), []byte("x"), 0o644))
	}
	safety := filepath.Join(e.backupDir, "pre_import_20250101_120000.db")
	require.NoError(t, os.WriteFile(safety, []byte("x"), 0o644))

	// Automatic snapshots only, safety snapshots have their own listing.
	snapshots, err := e.ListSnapshots()
	require.NoError(t, err)
	require.Len(t, snapshots, 3)

	for i := 0; i < len(snapshots)-1; i++ {
		assert.False(t, snapshots[i].Safety)
		assert.False(t, snapshots[i].Created.Before(snapshots[i+1].Created))
	}

	safeties, err := e.ListSafetySnapshots()
	require.NoError(t, err)
	require.Len(t, safeties, 1)
	assert.True(t, safeties[0].Safety)
	assert.Equal(t, "pre_import_20250101_120000.db", safeties[0].Name)
}

func TestRestoreSnapshot(t *testing.T) {
	e, dbPath := newTestEnv(t)

	// Snapshot the single-vehicle state, then diverge.
	snap, err := e.SafetySnapshot("test")
	require.NoError(t, err)

	seedVehicle(t, dbPath, "Suzuki")
	require.Len(t, vehicleMakes(t, dbPath), 2)

	require.NoError(t, e.RestoreSnapshot(snap))
	assert.Equal(t, []string{"Opel"}, vehicleMakes(t, dbPath))

	// The diverged state is preserved in a pre_restore snapshot.
	safeties, err := e.ListSafetySnapshots()
	require.NoError(t, err)
	var found bool
	for _, s := range safeties {
		if strings.HasPrefix(s.Name, "pre_restore_") {
			found = true
		}
	}
	assert.True(t, found, "expected a pre_restore safety snapshot")
}

func TestRestoreSnapshotCorruptRollsBack(t *testing.T) {
	e, dbPath := newTestEnv(t)

	corrupt := filepath.Join(e.backupDir, "auto_2025-01-01.db")
	require.NoError(t, os.WriteFile(corrupt, []byte("this is not a database"), 0o644))

	err := e.RestoreSnapshot(corrupt)
	require.Error(t, err)

	// The previous state survives.
	assert.Equal(t, []string{"Opel"}, vehicleMakes(t, dbPath))
}

func TestExportBundleContents(t *testing.T) {
	e, _ := newTestEnv(t)

	require.NoError(t, os.MkdirAll(e.attachmentsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(e.attachmentsDir, "img_receipt.jpg"), []byte("jpeg"), 0o644))

	bundle := filepath.Join(t.TempDir(), "export.zip")
	require.NoError(t, e.ExportBundle(bundle))

	zr, err := zip.OpenReader(bundle)
	require.NoError(t, err)
	defer func() { _ = zr.Close() }()

	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	assert.True(t, names[DBFileName])
	assert.True(t, names[manifestName])
	assert.True(t, names[attachmentsEntry+"img_receipt.jpg"])

	// Manifest parses and records the attachment count.
	for _, f := range zr.File {
		if f.Name != manifestName {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		var m Manifest
		require.NoError(t, yaml.NewDecoder(rc).Decode(&m))
		_ = rc.Close()
		assert.Equal(t, 1, m.AttachmentCount)
		assert.Equal(t, DBFileName, m.DBFile)
	}
}

func TestImportBundleRoundTrip(t *testing.T) {
	src, _ := newTestEnv(t)
	require.NoError(t, os.MkdirAll(src.attachmentsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src.attachmentsDir, "img_a.jpg"), []byte("a"), 0o644))

	bundle := filepath.Join(t.TempDir(), "export.zip")
	require.NoError(t, src.ExportBundle(bundle))

	// Import into a diverged installation.
	dst, dstDB := newTestEnv(t)
	seedVehicle(t, dstDB, "Suzuki")

	require.NoError(t, dst.ImportBundle(bundle))

	assert.Equal(t, []string{"Opel"}, vehicleMakes(t, dstDB))

	// Attachment arrived; a pre_import snapshot preserves the old state.
	_, err := os.Stat(filepath.Join(dst.attachmentsDir, "img_a.jpg"))
	assert.NoError(t, err)

	safeties, err := dst.ListSafetySnapshots()
	require.NoError(t, err)
	var safety string
	for _, s := range safeties {
		if strings.HasPrefix(s.Name, "pre_import_") {
			safety = s.Path
		}
	}
	require.NotEmpty(t, safety, "expected a pre_import safety snapshot")

	// Rolling back the import by restoring the safety snapshot recovers
	// both vehicles.
	require.NoError(t, dst.RestoreSnapshot(safety))
	assert.Len(t, vehicleMakes(t, dstDB), 2)
}

// Bundle attachments replace same-named local files; files only present
// locally survive the merge.
func TestImportBundleOverwritesAttachments(t *testing.T) {
	src, _ := newTestEnv(t)
	require.NoError(t, os.MkdirAll(src.attachmentsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src.attachmentsDir, "img_a.jpg"), []byte("bundle"), 0o644))

	bundle := filepath.Join(t.TempDir(), "export.zip")
	require.NoError(t, src.ExportBundle(bundle))

	dst, _ := newTestEnv(t)
	require.NoError(t, os.MkdirAll(dst.attachmentsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dst.attachmentsDir, "img_a.jpg"), []byte("stale-local"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dst.attachmentsDir, "img_local.jpg"), []byte("keep"), 0o644))

	require.NoError(t, dst.ImportBundle(bundle))

	got, err := os.ReadFile(filepath.Join(dst.attachmentsDir, "img_a.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "bundle", string(got))

	kept, err := os.ReadFile(filepath.Join(dst.attachmentsDir, "img_local.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "keep", string(kept))
}

func TestImportBundleInvalid(t *testing.T) {
	e, dbPath := newTestEnv(t)
	before, err := os.ReadFile(dbPath)
	require.NoError(t, err)

	// Not an archive at all.
	garbage := filepath.Join(t.TempDir(), "garbage.zip")
	require.NoError(t, os.WriteFile(garbage, []byte("not a zip"), 0o644))
	assert.ErrorIs(t, e.ImportBundle(garbage), ErrInvalidBundle)

	// A valid archive without a database entry.
	noDB := filepath.Join(t.TempDir(), "nodb.zip")
	writeZip(t, noDB, map[string][]byte{"readme.txt": []byte("hi")})
	assert.ErrorIs(t, e.ImportBundle(noDB), ErrInvalidBundle)

	// A database entry that is not a valid database.
	badDB := filepath.Join(t.TempDir(), "baddb.zip")
	writeZip(t, badDB, map[string][]byte{DBFileName: []byte("corrupt")})
	assert.ErrorIs(t, e.ImportBundle(badDB), ErrInvalidBundle)

	// The live database never changed.
	after, err := os.ReadFile(dbPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func writeZip(t *testing.T, path string, entries map[string][]byte) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, data := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestExportBundleRemovesPartialOnFailure(t *testing.T) {
	dir := t.TempDir()
	e, err := NewEngine(Config{
		DBPath:    filepath.Join(dir, "missing.db"),
		BackupDir: filepath.Join(dir, "backups"),
	})
	require.NoError(t, err)

	bundle := filepath.Join(dir, "export.zip")
	require.Error(t, e.ExportBundle(bundle))

	_, err = os.Stat(bundle)
	assert.True(t, os.IsNotExist(err), "expected no partial bundle on failure")
}