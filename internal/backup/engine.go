package backup

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Config holds the backup engine's paths and retention window.
type Config struct {
	// DBPath is the live database file.
	DBPath string

	// BackupDir is where snapshots are stored.
	BackupDir string

	// AttachmentsDir is the receipt-photo directory included in bundles.
	// May be empty when attachments are not in use.
	AttachmentsDir string

	// KeepDays is the automatic-snapshot retention window (default 30).
	KeepDays int

	// AppVersion is recorded in exported bundle manifests.
	AppVersion string
}

// Engine performs snapshots, retention pruning, bundle export/import and
// restores. All operations that replace the live database require it to
// be closed first.
type Engine struct {
	dbPath         string
	backupDir      string
	attachmentsDir string
	keepDays       int
	appVersion     string

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// NewEngine creates a backup engine and ensures the backup directory
// exists.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if cfg.BackupDir == "" {
		return nil, fmt.Errorf("backup directory is required")
	}
	if cfg.KeepDays <= 0 {
		cfg.KeepDays = 30
	}

	if err := os.MkdirAll(cfg.BackupDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	return &Engine{
		dbPath:         cfg.DBPath,
		backupDir:      cfg.BackupDir,
		attachmentsDir: cfg.AttachmentsDir,
		keepDays:       cfg.KeepDays,
		appVersion:     cfg.AppVersion,
		now:            time.Now,
	}, nil
}

// RunDailyBackup creates today's automatic snapshot unless it already
// exists, then prunes snapshots past the retention window. Returns true
// when a new snapshot was created. Designed for unconditional invocation
// at startup: failures are logged and returned, never fatal to the
// caller's flow.
func (e *Engine) RunDailyBackup() (bool, error) {
	name := autoPrefix + e.now().Format(snapshotDateLayout) + ".db"
	target := filepath.Join(e.backupDir, name)

	if _, err := os.Stat(target); err == nil {
		return false, nil
	}

	if _, err := os.Stat(e.dbPath); err != nil {
		return false, fmt.Errorf("database not found: %w", err)
	}

	if err := snapshotDB(e.dbPath, target); err != nil {
		log.Printf("backup: daily snapshot failed: %v", err)
		return false, err
	}
	if err := verifySnapshot(target); err != nil {
		log.Printf("backup: daily snapshot failed verification, removing: %v", err)
		_ = os.Remove(target)
		return false, err
	}

	log.Printf("backup: created daily snapshot %s", name)

	if removed, err := e.PruneOlderThan(e.keepDays); err != nil {
		log.Printf("backup: retention pruning failed: %v", err)
	} else if removed > 0 {
		log.Printf("backup: pruned %d expired snapshots", removed)
	}
	return true, nil
}

// PruneOlderThan removes automatic snapshots whose embedded filename date
// is more than the given number of days old. Safety snapshots and files
// with unparseable names are never touched. Returns the number of files
// removed.
func (e *Engine) PruneOlderThan(days int) (int, error) {
	entries, err := os.ReadDir(e.backupDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read backup directory: %w", err)
	}

	cutoff := e.now().AddDate(0, 0, -days)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, autoPrefix) || !strings.HasSuffix(name, ".db") {
			continue
		}

		dateStr := strings.TrimSuffix(strings.TrimPrefix(name, autoPrefix), ".db")
		date, err := time.Parse(snapshotDateLayout, dateStr)
		if err != nil {
			// Not ours to judge; leave it alone.
			continue
		}

		if date.Before(cutoff) {
			if err := os.Remove(filepath.Join(e.backupDir, name)); err != nil {
				log.Printf("backup: failed to prune %s: %v", name, err)
				continue
			}
			removed++
		}
	}
	return removed, nil
}

// SafetySnapshot snapshots the live database before a risky operation,
// e.g. pre_import_20250615_103000.db. Returns the snapshot path.
func (e *Engine) SafetySnapshot(operation string) (string, error) {
	name := fmt.Sprintf("%s%s_%s.db", safetyPrefix, operation, e.now().Format(safetyStampLayout))
	path := filepath.Join(e.backupDir, name)

	if err := snapshotDB(e.dbPath, path); err != nil {
		return "", fmt.Errorf("failed to create %s snapshot: %w", operation, err)
	}
	return path, nil
}

// SafetyCopy preserves an arbitrary file in the backup directory before
// it is overwritten, e.g. pre_update_20250615_103000_wheelbook for the
// application binary. Unlike SafetySnapshot it is a plain byte copy, not
// a database snapshot. Returns the copy's path.
func (e *Engine) SafetyCopy(srcPath, operation string) (string, error) {
	name := fmt.Sprintf("%s%s_%s_%s",
		safetyPrefix, operation, e.now().Format(safetyStampLayout), filepath.Base(srcPath))
	destPath := filepath.Join(e.backupDir, name)

	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for backup: %w", filepath.Base(srcPath), err)
	}
	defer func() { _ = src.Close() }()

	dest, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("failed to create %s backup: %w", operation, err)
	}
	if _, err := io.Copy(dest, src); err != nil {
		_ = dest.Close()
		_ = os.Remove(destPath)
		return "", fmt.Errorf("failed to write %s backup: %w", operation, err)
	}
	if err := dest.Close(); err != nil {
		_ = os.Remove(destPath)
		return "", err
	}
	return destPath, nil
}

// RestoreSnapshot replaces the live database with the given snapshot.
// The current state is preserved in a pre_restore safety snapshot first;
// if the replacement fails, the previous state is rolled back. The
// database must be closed before calling this.
func (e *Engine) RestoreSnapshot(snapshotPath string) error {
	if _, err := os.Stat(snapshotPath); err != nil {
		return fmt.Errorf("snapshot not found: %w", err)
	}

	var safety string
	if _, err := os.Stat(e.dbPath); err == nil {
		safety, err = e.SafetySnapshot("restore")
		if err != nil {
			return err
		}
	}

	if err := replaceDB(snapshotPath, e.dbPath); err != nil {
		if safety != "" {
			if rbErr := replaceDB(safety, e.dbPath); rbErr != nil {
				return fmt.Errorf("restore failed and rollback failed: %v (restore error: %w)", rbErr, err)
			}
			return fmt.Errorf("restore failed, previous state rolled back: %w", err)
		}
		return err
	}

	log.Printf("backup: database restored from %s", filepath.Base(snapshotPath))
	return nil
}

// ListSnapshots returns the automatic snapshots in the backup directory,
// newest first. Safety snapshots are not included; see
// ListSafetySnapshots.
func (e *Engine) ListSnapshots() ([]SnapshotInfo, error) {
	return e.listSnapshots(autoPrefix)
}

// ListSafetySnapshots returns the pre-operation safety snapshots, newest
// first.
func (e *Engine) ListSafetySnapshots() ([]SnapshotInfo, error) {
	return e.listSnapshots(safetyPrefix)
}

func (e *Engine) listSnapshots(prefix string) ([]SnapshotInfo, error) {
	entries, err := os.ReadDir(e.backupDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var snapshots []SnapshotInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".db") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		s := SnapshotInfo{
			Path:    filepath.Join(e.backupDir, name),
			Name:    name,
			Created: info.ModTime(),
			Size:    info.Size(),
			Safety:  prefix == safetyPrefix,
		}
		if prefix == autoPrefix {
			dateStr := strings.TrimSuffix(strings.TrimPrefix(name, autoPrefix), ".db")
			if date, err := time.Parse(snapshotDateLayout, dateStr); err == nil {
				s.Created = date
			}
		}
		snapshots = append(snapshots, s)
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Created.After(snapshots[j].Created)
	})
	return snapshots, nil
}
