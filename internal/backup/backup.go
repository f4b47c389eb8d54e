// Package backup snapshots the SQLite database file on a twice-daily
// schedule and prunes old snapshots.
package backup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// snapshotWindow is how far past the scheduled hour a snapshot still runs.
const snapshotWindow = 5 * time.Minute

// Snapshotter copies the database file into the backup directory. Snapshots
// run at hours 0 and 12; one snapshot per slot, keyed by the file name.
type Snapshotter struct {
	dbPath    string
	dir       string
	retention int
	now       func() time.Time
}

func NewSnapshotter(dbPath, dir string, retention int) *Snapshotter {
	return &Snapshotter{
		dbPath:    dbPath,
		dir:       dir,
		retention: retention,
		now:       time.Now,
	}
}

// MaybeSnapshot takes a snapshot if the current time falls inside a
// scheduled slot and that slot has not been snapshotted yet. It returns the
// snapshot path, or an empty string when nothing was done.
func (s *Snapshotter) MaybeSnapshot(ctx context.Context) (string, error) {
	now := s.now()
	if now.Hour() != 0 && now.Hour() != 12 {
		return "", nil
	}
	if time.Duration(now.Minute())*time.Minute >= snapshotWindow {
		return "", nil
	}

	target := filepath.Join(s.dir, s.snapshotName(now))
	if _, err := os.Stat(target); err == nil {
		return "", nil // slot already snapshotted
	}

	return s.Snapshot(ctx)
}

// Snapshot copies the database file unconditionally and prunes old
// snapshots down to the retention limit.
func (s *Snapshotter) Snapshot(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	target := filepath.Join(s.dir, s.snapshotName(s.now()))
	if err := copyFile(s.dbPath, target); err != nil {
		return "", fmt.Errorf("copy database: %w", err)
	}

	slog.InfoContext(ctx, "Database snapshot created", "path", target)

	if err := s.prune(ctx); err != nil {
		return target, fmt.Errorf("prune snapshots: %w", err)
	}
	return target, nil
}

// prune keeps the newest snapshots up to the retention limit.
func (s *Snapshotter) prune(ctx context.Context) error {
	snapshots, err := s.list()
	if err != nil {
		return err
	}
	if len(snapshots) <= s.retention {
		return nil
	}

	// Names embed the slot timestamp, so lexical order is chronological.
	sort.Sort(sort.Reverse(sort.StringSlice(snapshots)))
	for _, name := range snapshots[s.retention:] {
		path := filepath.Join(s.dir, name)
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove old snapshot %s: %w", name, err)
		}
		slog.InfoContext(ctx, "Old snapshot removed", "path", path)
	}
	return nil
}

func (s *Snapshotter) list() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read backup directory: %w", err)
	}

	base := snapshotPrefix(s.dbPath)
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), base) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (s *Snapshotter) snapshotName(now time.Time) string {
	return fmt.Sprintf("%s_%s.db", snapshotPrefix(s.dbPath), now.Format("20060102_15"))
}

func snapshotPrefix(dbPath string) string {
	return strings.TrimSuffix(filepath.Base(dbPath), filepath.Ext(dbPath))
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
