package notify

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/kvarga/wheelbook/pkg/types"
)

// AlertWatcher watches the notifications directory and dispatches
// callbacks. Each alert file is consumed exactly once.
type AlertWatcher struct {
	dir      string
	callback func(alert types.Alert)
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// NewAlertWatcher creates a watcher for {dataPath}/notifications/.
func NewAlertWatcher(dataPath string, callback func(alert types.Alert)) *AlertWatcher {
	return &AlertWatcher{
		dir:      filepath.Join(dataPath, "notifications"),
		callback: callback,
		done:     make(chan struct{}),
	}
}

// Start begins watching. It drains any existing alert files first,
// then watches for new ones. Call Stop() to clean up.
func (aw *AlertWatcher) Start() error {
	if err := os.MkdirAll(aw.dir, 0o700); err != nil {
		return err
	}

	aw.drainExisting()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(aw.dir); err != nil {
		_ = w.Close()
		return err
	}
	aw.watcher = w

	go aw.loop()
	log.Printf("notify: watching %s for reminder alerts", aw.dir)
	return nil
}

// Stop shuts down the watcher.
func (aw *AlertWatcher) Stop() {
	if aw.watcher != nil {
		_ = aw.watcher.Close()
	}
	<-aw.done
}

func (aw *AlertWatcher) loop() {
	defer close(aw.done)
	for {
		select {
		case evt, ok := <-aw.watcher.Events:
			if !ok {
				return
			}
			if evt.Op&fsnotify.Create != 0 && strings.HasSuffix(evt.Name, ".alert") {
				aw.processFile(evt.Name)
			}
		case err, ok := <-aw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("notify: watcher error: %v", err)
		}
	}
}

func (aw *AlertWatcher) drainExisting() {
	entries, err := os.ReadDir(aw.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".alert") {
			aw.processFile(filepath.Join(aw.dir, entry.Name()))
		}
	}
}

func (aw *AlertWatcher) processFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return // file already consumed by another process
	}
	_ = os.Remove(path)

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("notify: invalid alert file %s: %v", filepath.Base(path), err)
		return
	}

	if env.Alert.Message != "" && aw.callback != nil {
		aw.callback(env.Alert)
	}
}
