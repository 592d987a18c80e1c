// Package updater checks a release endpoint for newer application
// versions and installs them. Network failures are isolated behind a
// circuit breaker so a dead update server cannot slow application
// startup with repeated timeouts.
package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kvarga/wheelbook/internal/backup"
)

// ErrUpdateUnavailable is returned when the release endpoint cannot be
// reached, including while the circuit breaker is open.
var ErrUpdateUnavailable = errors.New("update server unavailable")

// Release describes the latest published version.
type Release struct {
	// Version is the dotted version string from version.txt.
	Version string

	// Changelog is a best-effort snippet from changelog.txt; empty when
	// the file is missing.
	Changelog string

	// Newer is true when Version is greater than the running version.
	Newer bool
}

// Config holds the updater's endpoint and collaborators.
type Config struct {
	// BaseURL is the release endpoint root, expected to serve
	// version.txt, changelog.txt and the versioned binaries.
	BaseURL string

	// CurrentVersion is the running application version.
	CurrentVersion string

	// Client is the HTTP client; a 10 s timeout client is used when nil.
	Client *http.Client

	// Backup, when set, preserves the file being replaced in the backup
	// directory before an install.
	Backup *backup.Engine
}

// Updater performs release checks and installs.
type Updater struct {
	baseURL string
	current string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	backup  *backup.Engine
}

// New creates an updater. The breaker opens after three consecutive
// fetch failures and allows a probe again after one minute.
func New(cfg Config) *Updater {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	settings := gobreaker.Settings{
		Name:    "UpdateCheck",
		Timeout: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("updater: breaker %s -> %s", from, to)
		},
	}

	return &Updater{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		current: cfg.CurrentVersion,
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(settings),
		backup:  cfg.Backup,
	}
}

// Check fetches the published version and changelog snippet.
func (u *Updater) Check(ctx context.Context) (*Release, error) {
	result, err := u.breaker.Execute(func() (interface{}, error) {
		return u.fetch(ctx, "version.txt")
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open", ErrUpdateUnavailable)
		}
		return nil, fmt.Errorf("%w: %v", ErrUpdateUnavailable, err)
	}

	version := strings.TrimSpace(strings.SplitN(result.(string), "\n", 2)[0])
	if version == "" {
		return nil, fmt.Errorf("%w: empty version file", ErrUpdateUnavailable)
	}

	rel := &Release{
		Version: version,
		Newer:   CompareVersions(version, u.current) > 0,
	}

	// The changelog is decorative; its absence is not a failure.
	if snippet, err := u.fetch(ctx, "changelog.txt"); err == nil {
		rel.Changelog = changelogSnippet(snippet)
	}
	return rel, nil
}

// CheckAsync runs Check in the background and delivers the result to the
// callback. Startup code uses this so a slow server never blocks the UI.
func (u *Updater) CheckAsync(ctx context.Context, callback func(*Release, error)) {
	go func() {
		rel, err := u.Check(ctx)
		callback(rel, err)
	}()
}

// DownloadAndInstall fetches the versioned binary and replaces the file
// at destPath via a temp file and rename. When a backup engine is
// configured, the file being replaced is first copied into the backup
// directory as pre_update_*.
func (u *Updater) DownloadAndInstall(ctx context.Context, rel *Release, destPath string) error {
	if u.backup != nil {
		if _, err := os.Stat(destPath); err == nil {
			if _, err := u.backup.SafetyCopy(destPath, "update"); err != nil {
				return fmt.Errorf("pre-update backup failed: %w", err)
			}
		}
	}

	url := fmt.Sprintf("%s/wheelbook-%s", u.baseURL, rel.Version)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpdateUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %d", ErrUpdateUnavailable, resp.StatusCode)
	}

	tmpPath := destPath + ".download"
	out, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("failed to create download file: %w", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("download interrupted: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to install update: %w", err)
	}

	log.Printf("updater: installed version %s to %s", rel.Version, destPath)
	return nil
}

func (u *Updater) fetch(ctx context.Context, name string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.baseURL+"/"+name, nil)
	if err != nil {
		return "", err
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, name)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// changelogSnippet keeps the first ten non-empty lines.
func changelogSnippet(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, strings.TrimRight(line, "\r"))
		if len(lines) == 10 {
			break
		}
	}
	return strings.Join(lines, "\n")
}

// CompareVersions compares two dotted version strings numerically,
// returning -1, 0 or 1. Missing segments count as zero; non-numeric
// segments count as zero, so "1.2.x" equals "1.2".
func CompareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")

	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		av, bv := 0, 0
		if i < len(as) {
			av, _ = strconv.Atoi(strings.TrimSpace(as[i]))
		}
		if i < len(bs) {
			bv, _ = strconv.Atoi(strings.TrimSpace(bs[i]))
		}
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
	}
	return 0
}
