// Package notify carries reminder alerts across processes through
// filesystem events, so a tray helper or desktop notifier can react to
// alerts raised by the main application or the backup tool.
package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kvarga/wheelbook/pkg/types"
)

// envelope is the payload written to an alert file.
type envelope struct {
	Alert types.Alert `json:"alert"`
	Time  int64       `json:"time"`
}

// AlertWriter writes alert files to a shared directory.
type AlertWriter struct {
	dir string
}

// NewAlertWriter creates a writer that emits alerts to
// {dataPath}/notifications/.
func NewAlertWriter(dataPath string) *AlertWriter {
	return &AlertWriter{dir: filepath.Join(dataPath, "notifications")}
}

// Publish writes one alert file. Safe to call concurrently. Errors are
// returned but not fatal.
func (w *AlertWriter) Publish(alert types.Alert) error {
	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return fmt.Errorf("notify: mkdir %s: %w", w.dir, err)
	}
	env := envelope{Alert: alert, Time: time.Now().UnixNano()}
	data, _ := json.Marshal(env)
	filename := fmt.Sprintf("%d-%s.alert", env.Time, sanitizeName(string(alert.Kind)+"-"+alert.Vehicle))
	path := filepath.Join(w.dir, filename)
	return os.WriteFile(path, data, 0o600)
}

// sanitizeName replaces characters unsafe for filenames.
func sanitizeName(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		switch name[i] {
		case '/', ':', ' ':
			out[i] = '_'
		default:
			out[i] = name[i]
		}
	}
	return string(out)
}
