package sqlite

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// SetAttachmentsDir configures the flat directory that attachment paths are
// relative to. Attachment handling is disabled while unset.
func (s *Store) SetAttachmentsDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create attachments directory: %w", err)
	}
	s.attachmentsDir = dir
	return nil
}

// AttachmentsDir returns the configured attachments directory, empty when
// attachment handling is disabled.
func (s *Store) AttachmentsDir() string {
	return s.attachmentsDir
}

// StoreAttachment copies a source file into the attachments directory under
// a collision-free name and returns the path relative to that directory.
func (s *Store) StoreAttachment(srcPath string) (string, error) {
	if s.attachmentsDir == "" {
		return "", fmt.Errorf("attachments directory is not configured")
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("failed to open attachment source: %w", err)
	}
	defer src.Close()

	name := fmt.Sprintf("img_%s%s", uuid.NewString(), filepath.Ext(srcPath))
	dst, err := os.Create(filepath.Join(s.attachmentsDir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create attachment: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("failed to copy attachment: %w", err)
	}

	return name, nil
}

// removeAttachmentFile deletes an attachment by relative path. A missing
// file or unconfigured directory is not an error.
func (s *Store) removeAttachmentFile(relPath string) {
	if relPath == "" || s.attachmentsDir == "" {
		return
	}

	full := filepath.Join(s.attachmentsDir, relPath)
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		log.Printf("sqlite: failed to remove attachment %s: %v", relPath, err)
	}
}
