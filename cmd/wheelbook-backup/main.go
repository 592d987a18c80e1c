// Command wheelbook-backup manages database snapshots and portable
// bundles: daily snapshots, retention pruning, export/import, restore and
// listing. The main application must be closed for restore and import.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/kvarga/wheelbook/internal/backup"
	"github.com/kvarga/wheelbook/internal/config"
)

var (
	dbPath    = flag.String("db", "", "Database file (overrides WHEELBOOK_DB_PATH)")
	backupDir = flag.String("backup-dir", "", "Backup directory (overrides WHEELBOOK_BACKUP_DIR)")
	keepDays  = flag.Int("keep-days", 0, "Retention window in days (overrides settings)")

	daily      = flag.Bool("daily", false, "Create today's snapshot if missing and exit")
	pruneDays  = flag.Int("prune", 0, "Prune automatic snapshots older than N days and exit")
	exportPath = flag.String("export", "", "Export a portable bundle to the given path and exit")
	importPath = flag.String("import", "", "Import a bundle, replacing the database, and exit")
	restore    = flag.String("restore", "", "Restore the database from a snapshot file and exit")
	listCmd    = flag.Bool("list", false, "List snapshots, newest first, and exit")
)

func main() {
	flag.Parse()

	paths, err := config.ResolvePaths()
	if err != nil {
		log.Fatalf("Failed to resolve paths: %v", err)
	}
	if *dbPath != "" {
		paths.DBPath = *dbPath
	}
	if *backupDir != "" {
		paths.BackupDir = *backupDir
	}

	settings := config.Load(paths.SettingsPath())
	keep := settings.BackupKeepDays
	if *keepDays > 0 {
		keep = *keepDays
	}

	engine, err := backup.NewEngine(backup.Config{
		DBPath:         paths.DBPath,
		BackupDir:      paths.BackupDir,
		AttachmentsDir: paths.AttachmentsDir(),
		KeepDays:       keep,
	})
	if err != nil {
		log.Fatalf("Failed to create backup engine: %v", err)
	}

	switch {
	case *daily:
		created, err := engine.RunDailyBackup()
		if err != nil {
			log.Fatalf("Daily backup failed: %v", err)
		}
		if created {
			fmt.Println("Snapshot created")
		} else {
			fmt.Println("Snapshot already exists for today")
		}

	case *pruneDays > 0:
		removed, err := engine.PruneOlderThan(*pruneDays)
		if err != nil {
			log.Fatalf("Prune failed: %v", err)
		}
		fmt.Printf("Removed %d snapshots\n", removed)

	case *exportPath != "":
		if err := engine.ExportBundle(*exportPath); err != nil {
			log.Fatalf("Export failed: %v", err)
		}
		fmt.Printf("Bundle written to %s\n", *exportPath)

	case *importPath != "":
		if err := engine.ImportBundle(*importPath); err != nil {
			log.Fatalf("Import failed: %v", err)
		}
		fmt.Println("Bundle imported; restart the application")

	case *restore != "":
		if err := engine.RestoreSnapshot(*restore); err != nil {
			log.Fatalf("Restore failed: %v", err)
		}
		fmt.Println("Database restored; restart the application")

	case *listCmd:
		snapshots, err := engine.ListSnapshots()
		if err != nil {
			log.Fatalf("Failed to list snapshots: %v", err)
		}
		safeties, err := engine.ListSafetySnapshots()
		if err != nil {
			log.Fatalf("Failed to list safety snapshots: %v", err)
		}
		snapshots = append(snapshots, safeties...)
		if len(snapshots) == 0 {
			fmt.Println("No snapshots found")
			return
		}
		for _, s := range snapshots {
			kind := "auto"
			if s.Safety {
				kind = "safety"
			}
			fmt.Printf("%-40s %-8s %10d bytes  %s\n",
				s.Name, kind, s.Size, s.Created.Format("2006-01-02"))
		}

	default:
		flag.Usage()
	}
}
