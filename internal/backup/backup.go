package backup

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"fwagent/internal/validation"
)

const (
	timeFormat        = "20060102-150405"
	DefaultKeep       = 10
	DefaultDir        = "/var/lib/fwagent/backups"
	preRestoreSuffix  = ".pre-restore."
	maxDescriptionLen = 40
)

var (
	zoneConfigDir = "/etc/firewalld/zones"
	zoneSystemDir = "/usr/lib/firewalld/zones"
)

type Backup struct {
	Path        string
	Zone        string
	Time        time.Time
	Size        int64
	Description string
}

// Store keeps timestamped copies of firewalld zone files.
type Store struct {
	Dir  string
	Keep int
}

func NewStore(dir string, keep int) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	if keep <= 0 {
		keep = DefaultKeep
	}
	return &Store{Dir: dir, Keep: keep}
}

// Snapshot copies the zone's persisted configuration before a change.
func (s *Store) Snapshot(zone, reason string) error {
	_, err := s.Create(zone, reason)
	return err
}

func (s *Store) Create(zone, description string) (Backup, error) {
	src, err := zoneFilePath(zone)
	if err != nil {
		return Backup{}, err
	}
	if err := os.MkdirAll(s.Dir, 0o750); err != nil {
		return Backup{}, err
	}

	ts := time.Now()
	suffix := ""
	desc := truncateDescription(strings.TrimSpace(description), maxDescriptionLen)
	if desc != "" {
		suffix = "__" + url.PathEscape(desc)
	}
	dest := filepath.Join(s.Dir, fmt.Sprintf("zone-%s-%s%s.xml", zone, ts.Format(timeFormat), suffix))
	if err := copyFile(src, dest); err != nil {
		return Backup{}, err
	}
	slog.Info("backup created", "zone", zone, "src", src, "dest", dest)

	info, err := os.Stat(dest)
	if err != nil {
		return Backup{}, err
	}
	if err := s.prune(zone); err != nil {
		slog.Warn("backup prune failed", "zone", zone, "error", err)
	}
	return Backup{
		Path:        dest,
		Zone:        zone,
		Time:        ts,
		Size:        info.Size(),
		Description: desc,
	}, nil
}

// List returns the zone's backups, newest first.
func (s *Store) List(zone string) ([]Backup, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	prefix := "zone-" + zone + "-"
	var items []Backup
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".xml") {
			continue
		}
		tsPart := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".xml")
		desc := ""
		if head, tail, ok := strings.Cut(tsPart, "__"); ok {
			tsPart = head
			desc = tail
			if decoded, err := url.PathUnescape(tail); err == nil {
				desc = decoded
			}
		}
		ts, err := time.ParseInLocation(timeFormat, tsPart, time.Local)
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		items = append(items, Backup{
			Path:        filepath.Join(s.Dir, name),
			Zone:        zone,
			Time:        ts,
			Size:        info.Size(),
			Description: desc,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Time.After(items[j].Time)
	})
	return items, nil
}

// Restore writes the backup over the zone file. The current file is kept
// as a pre-restore copy and the new content is moved into place with a
// rename, so a failed restore leaves the old file untouched.
func Restore(zone string, b Backup) error {
	if b.Path == "" {
		return fmt.Errorf("backup path is empty")
	}
	dest, err := ZoneDestinationPath(zone)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	if fileExists(dest) {
		pre := dest + preRestoreSuffix + strconv.FormatInt(time.Now().UnixNano(), 10)
		if err := copyFile(dest, pre); err != nil {
			return fmt.Errorf("save pre-restore copy: %w", err)
		}
	}

	tmp := dest + ".tmp"
	if err := copyFile(b.Path, tmp); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	slog.Info("zone restored", "zone", zone, "backup", b.Path)
	return nil
}

// ZoneDestinationPath is where firewalld reads the zone's user configuration.
func ZoneDestinationPath(zone string) (string, error) {
	if err := validation.IsValidZoneName(zone); err != nil {
		return "", err
	}
	return filepath.Join(zoneConfigDir, zone+".xml"), nil
}

// GetPreRestoreBackupPath returns the newest pre-restore copy of the zone.
func GetPreRestoreBackupPath(zone string) (string, error) {
	dest, err := ZoneDestinationPath(zone)
	if err != nil {
		return "", err
	}
	matches, err := filepath.Glob(dest + preRestoreSuffix + "*")
	if err != nil {
		return "", err
	}
	latest, latestN := "", int64(-1)
	for _, m := range matches {
		n, err := strconv.ParseInt(m[strings.LastIndex(m, ".")+1:], 10, 64)
		if err != nil {
			continue
		}
		if n > latestN {
			latest, latestN = m, n
		}
	}
	return latest, nil
}

func CleanupPreRestoreBackup(zone string) error {
	path, err := GetPreRestoreBackupPath(zone)
	if err != nil || path == "" {
		return err
	}
	return os.Remove(path)
}

func zoneFilePath(zone string) (string, error) {
	if err := validation.IsValidZoneName(zone); err != nil {
		return "", err
	}
	for _, dir := range []string{zoneConfigDir, zoneSystemDir} {
		path := filepath.Join(dir, zone+".xml")
		if fileExists(path) {
			return path, nil
		}
	}
	return "", fmt.Errorf("zone file for %s: %w", zone, os.ErrNotExist)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

func (s *Store) prune(zone string) error {
	items, err := s.List(zone)
	if err != nil {
		return err
	}
	if len(items) <= s.Keep {
		return nil
	}
	for _, b := range items[s.Keep:] {
		_ = os.Remove(b.Path)
	}
	return nil
}

func truncateDescription(desc string, max int) string {
	if max <= 0 || desc == "" {
		return ""
	}
	if utf8.RuneCountInString(desc) <= max {
		return desc
	}
	return string([]rune(desc)[:max])
}
