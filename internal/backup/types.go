// Package backup provides crash-safe database snapshots, retention
// pruning, portable bundle export/import, and restore with rollback.
package backup

import (
	"errors"
	"time"
)

// Snapshot filename prefixes. Automatic daily snapshots embed their date;
// safety snapshots embed the operation that created them and are never
// pruned by retention.
const (
	autoPrefix   = "auto_"
	safetyPrefix = "pre_"

	// snapshotDateLayout is the date embedded in automatic snapshot names,
	// e.g. auto_2025-06-15.db.
	snapshotDateLayout = "2006-01-02"

	// safetyStampLayout timestamps safety snapshots, e.g.
	// pre_import_20250615_103000.db.
	safetyStampLayout = "20060102_150405"
)

// DBFileName is the database entry name inside an exported bundle.
const DBFileName = "wheelbook.db"

// manifestName is the metadata entry inside an exported bundle.
const manifestName = "backup_info.yaml"

// ErrInvalidBundle reports a bundle that is not a readable archive or
// does not contain a valid database.
var ErrInvalidBundle = errors.New("invalid backup bundle")

// SnapshotInfo describes one snapshot file in the backup directory.
type SnapshotInfo struct {
	// Path is the full path to the snapshot file.
	Path string

	// Name is the bare filename.
	Name string

	// Created is the snapshot's creation time: the embedded date for
	// automatic snapshots, the file modification time otherwise.
	Created time.Time

	// Size is the file size in bytes.
	Size int64

	// Safety marks pre-operation safety snapshots.
	Safety bool
}

// Manifest is the metadata document written into every exported bundle.
type Manifest struct {
	CreatedAt       string `yaml:"created_at"`
	AppVersion      string `yaml:"app_version"`
	DBFile          string `yaml:"db_file"`
	AttachmentCount int    `yaml:"attachment_count"`
}
