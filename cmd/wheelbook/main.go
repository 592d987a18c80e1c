// Command wheelbook is the vehicle logbook's headless entry point: it
// opens the store, runs the daily backup, evaluates reminders, and moves
// entries in and out of CSV files.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/kvarga/wheelbook/internal/backup"
	"github.com/kvarga/wheelbook/internal/config"
	"github.com/kvarga/wheelbook/internal/importer"
	"github.com/kvarga/wheelbook/internal/notify"
	"github.com/kvarga/wheelbook/internal/reminder"
	"github.com/kvarga/wheelbook/internal/stats"
	"github.com/kvarga/wheelbook/internal/storage/sqlite"
	"github.com/kvarga/wheelbook/internal/updater"
)

const appVersion = "1.4.0"

var (
	dataDir     = flag.String("data", "", "Data directory (overrides WHEELBOOK_DATA_DIR)")
	dbFlag      = flag.String("db", "", "Database file (overrides WHEELBOOK_DB_PATH)")
	importCSV   = flag.String("import-csv", "", "Import entries from a CSV file and exit")
	exportCSV   = flag.String("export-csv", "", "Export entries to a CSV file and exit")
	vehicleFlag = flag.Int64("vehicle", 0, "Vehicle ID for CSV import/export")
	category    = flag.String("category", "Fuel", "Entry category for CSV import/export")
	updateURL   = flag.String("update-url", "", "Release endpoint for update checks (disabled when empty)")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags)

	paths, err := config.ResolvePaths()
	if err != nil {
		log.Fatalf("Failed to resolve paths: %v", err)
	}
	if *dataDir != "" {
		paths.DataDir = *dataDir
	}
	if *dbFlag != "" {
		paths.DBPath = *dbFlag
	}

	settings := config.Load(paths.SettingsPath())

	store, err := sqlite.NewStore(paths.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() { _ = store.Close() }()
	if err := store.SetAttachmentsDir(paths.AttachmentsDir()); err != nil {
		log.Printf("Attachments disabled: %v", err)
	}

	ctx := context.Background()

	if *importCSV != "" {
		runImport(ctx, store, *importCSV)
		return
	}
	if *exportCSV != "" {
		runExport(ctx, store, *exportCSV)
		return
	}

	engine, err := backup.NewEngine(backup.Config{
		DBPath:         paths.DBPath,
		BackupDir:      paths.BackupDir,
		AttachmentsDir: paths.AttachmentsDir(),
		KeepDays:       settings.BackupKeepDays,
		AppVersion:     appVersion,
	})
	if err != nil {
		log.Fatalf("Failed to create backup engine: %v", err)
	}

	if settings.AutoBackup {
		if created, err := engine.RunDailyBackup(); err != nil {
			log.Printf("Daily backup failed: %v", err)
		} else if created {
			log.Println("Daily backup created")
		}
	}

	rem := reminder.New(store, stats.New(store.DB()), reminder.Config{
		WarnDaysBefore:    settings.ReminderDaysBefore,
		OilWarningKm:      settings.OilWarningKm,
		InsuranceWarnDays: settings.InsuranceWarningDays,
	})

	alerts, err := rem.CheckAll(ctx)
	if err != nil {
		log.Fatalf("Reminder check failed: %v", err)
	}
	fmt.Println(reminder.FormatSummary(alerts))

	if headline := reminder.Headline(alerts); headline != nil {
		writer := notify.NewAlertWriter(paths.DataDir)
		if err := writer.Publish(*headline); err != nil {
			log.Printf("Failed to publish alert: %v", err)
		}
	}

	if *updateURL != "" {
		checkForUpdate(ctx, engine)
	}
}

// checkForUpdate performs a bounded background release check.
func checkForUpdate(ctx context.Context, engine *backup.Engine) {
	u := updater.New(updater.Config{
		BaseURL:        *updateURL,
		CurrentVersion: appVersion,
		Backup:         engine,
	})

	done := make(chan struct{})
	u.CheckAsync(ctx, func(rel *updater.Release, err error) {
		defer close(done)
		if err != nil {
			log.Printf("Update check failed: %v", err)
			return
		}
		if rel.Newer {
			fmt.Printf("Update available: %s\n", rel.Version)
			if rel.Changelog != "" {
				fmt.Println(rel.Changelog)
			}
		}
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Println("Update check timed out")
	}
}

func runImport(ctx context.Context, store *sqlite.Store, path string) {
	if *vehicleFlag == 0 {
		log.Fatal("CSV import requires -vehicle")
	}

	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("Failed to open CSV: %v", err)
	}
	defer func() { _ = f.Close() }()

	res, err := importer.ImportCSV(ctx, store, *vehicleFlag, *category, f)
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}
	fmt.Printf("Imported %d rows, skipped %d\n", res.Imported, res.Skipped)
}

func runExport(ctx context.Context, store *sqlite.Store, path string) {
	if *vehicleFlag == 0 {
		log.Fatal("CSV export requires -vehicle")
	}

	f, err := os.Create(path)
	if err != nil {
		log.Fatalf("Failed to create CSV: %v", err)
	}
	defer func() { _ = f.Close() }()

	if err := importer.ExportCSV(ctx, store, *vehicleFlag, *category, f); err != nil {
		log.Fatalf("Export failed: %v", err)
	}
	fmt.Printf("Exported %s entries to %s\n", *category, path)
}
