package backup

import (
	"archive/zip"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// attachmentsEntry is the directory prefix for receipt photos inside a
// bundle.
const attachmentsEntry = "attachments/"

// ExportBundle writes a portable ZIP bundle containing a consistent
// database snapshot, all attachments, and a YAML manifest. A partial
// archive is removed on failure.
func (e *Engine) ExportBundle(destPath string) (err error) {
	tmpSnap := filepath.Join(e.backupDir, ".export_snapshot.db")
	if err := snapshotDB(e.dbPath, tmpSnap); err != nil {
		return fmt.Errorf("failed to snapshot database for export: %w", err)
	}
	defer func() { _ = os.Remove(tmpSnap) }()

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create bundle: %w", err)
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = os.Remove(destPath)
		}
	}()

	zw := zip.NewWriter(out)

	if err = addFileToZip(zw, tmpSnap, DBFileName); err != nil {
		return fmt.Errorf("failed to add database to bundle: %w", err)
	}

	count, err := e.addAttachments(zw)
	if err != nil {
		return fmt.Errorf("failed to add attachments to bundle: %w", err)
	}

	manifest := Manifest{
		CreatedAt:       e.now().Format("2006-01-02 15:04:05"),
		AppVersion:      e.appVersion,
		DBFile:          DBFileName,
		AttachmentCount: count,
	}
	data, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	w, err := zw.Create(manifestName)
	if err != nil {
		return fmt.Errorf("failed to create manifest entry: %w", err)
	}
	if _, err = w.Write(data); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	if err = zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize bundle: %w", err)
	}
	if err = out.Close(); err != nil {
		return fmt.Errorf("failed to close bundle: %w", err)
	}

	log.Printf("backup: exported bundle %s (%d attachments)", filepath.Base(destPath), count)
	return nil
}

func (e *Engine) addAttachments(zw *zip.Writer) (int, error) {
	if e.attachmentsDir == "" {
		return 0, nil
	}
	entries, err := os.ReadDir(e.attachmentsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		src := filepath.Join(e.attachmentsDir, entry.Name())
		if err := addFileToZip(zw, src, attachmentsEntry+entry.Name()); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func addFileToZip(zw *zip.Writer, srcPath, entryName string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	w, err := zw.Create(entryName)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

// ImportBundle replaces the live database with the one inside the bundle
// and merges the bundle's attachments in, overwriting same-named local
// files and keeping local-only ones. The current state is
// preserved in a pre_import safety snapshot and rolled back if the
// replacement fails. The bundle is fully validated before anything is
// touched. The database must be closed before calling this; on success
// the caller must reopen it.
func (e *Engine) ImportBundle(bundlePath string) error {
	zr, err := zip.OpenReader(bundlePath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	defer func() { _ = zr.Close() }()

	var dbEntry *zip.File
	for _, f := range zr.File {
		if f.Name == DBFileName {
			dbEntry = f
			break
		}
	}
	if dbEntry == nil {
		return fmt.Errorf("%w: missing %s entry", ErrInvalidBundle, DBFileName)
	}

	// Extract and validate the database before touching the live file.
	tmpDB := filepath.Join(e.backupDir, ".import_candidate.db")
	if err := extractZipEntry(dbEntry, tmpDB); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	defer func() { _ = os.Remove(tmpDB) }()

	if err := verifySnapshot(tmpDB); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}

	var safety string
	if _, err := os.Stat(e.dbPath); err == nil {
		safety, err = e.SafetySnapshot("import")
		if err != nil {
			return err
		}
	}

	if err := replaceDB(tmpDB, e.dbPath); err != nil {
		if safety != "" {
			if rbErr := replaceDB(safety, e.dbPath); rbErr != nil {
				return fmt.Errorf("import failed and rollback failed: %v (import error: %w)", rbErr, err)
			}
			return fmt.Errorf("import failed, previous state rolled back: %w", err)
		}
		return err
	}

	// Attachments merge additively: bundle files overwrite same-named
	// local files, local-only files are kept.
	if e.attachmentsDir != "" {
		for _, f := range zr.File {
			if !strings.HasPrefix(f.Name, attachmentsEntry) || f.FileInfo().IsDir() {
				continue
			}
			name := filepath.Base(f.Name)
			if err := extractZipEntry(f, filepath.Join(e.attachmentsDir, name)); err != nil {
				log.Printf("backup: failed to extract attachment %s: %v", name, err)
			}
		}
	}

	log.Printf("backup: imported bundle %s", filepath.Base(bundlePath))
	return nil
}

func extractZipEntry(f *zip.File, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		_ = os.Remove(destPath)
		return err
	}
	return out.Close()
}
