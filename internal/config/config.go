// Package config manages the persisted settings document and the
// process-level path overrides. Settings live in a JSON file the user may
// edit by hand: unknown keys written by newer versions are preserved
// across a load/save round trip, and a corrupt file degrades to defaults
// instead of blocking startup.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// settingsFileName is the settings document inside the data directory.
const settingsFileName = "settings.json"

// Settings is the typed view of the settings document.
type Settings struct {
	FontSize             int               `json:"font_size"`
	AppearanceMode       string            `json:"appearance_mode"`
	AutoBackup           bool              `json:"auto_backup"`
	BackupKeepDays       int               `json:"backup_keep_days"`
	ReminderDaysBefore   int               `json:"reminder_days_before"`
	OilWarningKm         int               `json:"oil_warning_km"`
	DefaultOilInterval   int               `json:"default_oil_interval"`
	InsuranceWarningDays int               `json:"insurance_warning_days"`
	ThemeColors          map[string]string `json:"theme_colors"`

	// extra holds keys this version does not understand; they survive
	// a save unchanged.
	extra map[string]json.RawMessage
}

// Defaults returns the documented default settings.
func Defaults() *Settings {
	return &Settings{
		FontSize:             14,
		AppearanceMode:       "light",
		AutoBackup:           true,
		BackupKeepDays:       30,
		ReminderDaysBefore:   30,
		OilWarningKm:         1000,
		DefaultOilInterval:   10000,
		InsuranceWarningDays: 30,
		ThemeColors: map[string]string{
			"accent":  "#2563eb",
			"warning": "#d97706",
			"danger":  "#dc2626",
		},
	}
}

// knownKeys are the JSON keys owned by this version.
var knownKeys = map[string]bool{
	"font_size": true, "appearance_mode": true, "auto_backup": true,
	"backup_keep_days": true, "reminder_days_before": true,
	"oil_warning_km": true, "default_oil_interval": true,
	"insurance_warning_days": true, "theme_colors": true,
}

// Load reads the settings document at path. A missing or corrupt file
// yields the defaults; only the corrupt case is logged.
func Load(path string) *Settings {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("config: failed to read %s, using defaults: %v", path, err)
		}
		return Defaults()
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Printf("config: corrupt settings file %s, using defaults: %v", path, err)
		return Defaults()
	}

	// Defaults fill anything the document omits.
	s := Defaults()
	if err := json.Unmarshal(data, s); err != nil {
		log.Printf("config: unreadable settings in %s, using defaults: %v", path, err)
		return Defaults()
	}

	for key, value := range raw {
		if !knownKeys[key] {
			if s.extra == nil {
				s.extra = map[string]json.RawMessage{}
			}
			s.extra[key] = value
		}
	}
	return s
}

// Save writes the settings document atomically, carrying unknown keys
// through unchanged.
func Save(path string, s *Settings) error {
	typed, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("config: failed to marshal settings: %w", err)
	}

	doc := map[string]json.RawMessage{}
	for key, value := range s.extra {
		doc[key] = value
	}
	if err := json.Unmarshal(typed, &doc); err != nil {
		return fmt.Errorf("config: failed to merge settings: %w", err)
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("config: failed to render settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: failed to create settings directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("config: failed to write settings: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("config: failed to replace settings: %w", err)
	}
	return nil
}

// Paths are the filesystem locations the application uses. Each can be
// overridden through the environment; unset values derive from DataDir.
type Paths struct {
	DataDir   string `env:"WHEELBOOK_DATA_DIR"`
	DBPath    string `env:"WHEELBOOK_DB_PATH"`
	BackupDir string `env:"WHEELBOOK_BACKUP_DIR"`
}

// ResolvePaths reads the environment overrides and fills in derived
// defaults. The default data directory is ~/.wheelbook, falling back to
// ./data when the home directory is unknown.
func ResolvePaths() (Paths, error) {
	var p Paths
	if err := env.Parse(&p); err != nil {
		return Paths{}, fmt.Errorf("config: parse env: %w", err)
	}

	if p.DataDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			p.DataDir = filepath.Join(home, ".wheelbook")
		} else {
			p.DataDir = "data"
		}
	}
	if p.DBPath == "" {
		p.DBPath = filepath.Join(p.DataDir, "wheelbook.db")
	}
	if p.BackupDir == "" {
		p.BackupDir = filepath.Join(p.DataDir, "backups")
	}
	return p, nil
}

// SettingsPath is the settings document location for the given paths.
func (p Paths) SettingsPath() string {
	return filepath.Join(p.DataDir, settingsFileName)
}

// AttachmentsDir is the receipt-photo directory for the given paths.
func (p Paths) AttachmentsDir() string {
	return filepath.Join(p.DataDir, "attachments")
}
