package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

const (
	namePrefix = "snapshot-"
	nameLayout = "20060102-150405"
)

// BackupData is one snapshot. Each section holds a JSON document owned by
// whoever wrote it.
type BackupData struct {
	Version   string                     `json:"version"`
	Timestamp time.Time                  `json:"timestamp"`
	Sections  map[string]json.RawMessage `json:"sections,omitempty"`
	Metadata  map[string]interface{}     `json:"metadata,omitempty"`
}

// Put marshals v into the named section.
func (d *BackupData) Put(section string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal section %s: %w", section, err)
	}
	if d.Sections == nil {
		d.Sections = make(map[string]json.RawMessage)
	}
	d.Sections[section] = raw
	return nil
}

// Get unmarshals the named section into v and reports whether it was present.
func (d *BackupData) Get(section string, v interface{}) (bool, error) {
	raw, ok := d.Sections[section]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("failed to unmarshal section %s: %w", section, err)
	}
	return true, nil
}

type Storage interface {
	Save(ctx context.Context, name string, data io.Reader) error
	Load(ctx context.Context, name string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, name string) error
}

type BackupService struct {
	storage Storage
	version string
	now     func() time.Time
}

func NewBackupService(storage Storage, version string) *BackupService {
	return &BackupService{
		storage: storage,
		version: version,
		now:     time.Now,
	}
}

// CreateBackup stamps data and writes it under a name derived from its time.
func (bs *BackupService) CreateBackup(ctx context.Context, data *BackupData) (string, error) {
	data.Version = bs.version
	data.Timestamp = bs.now().UTC()

	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal backup data: %w", err)
	}

	name := BackupName(data.Timestamp)
	if err := bs.storage.Save(ctx, name, bytes.NewReader(jsonData)); err != nil {
		return "", fmt.Errorf("failed to save backup: %w", err)
	}
	return name, nil
}

func (bs *BackupService) RestoreBackup(ctx context.Context, name string) (*BackupData, error) {
	reader, err := bs.storage.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load backup: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup data: %w", err)
	}

	var backupData BackupData
	if err := json.Unmarshal(data, &backupData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal backup data: %w", err)
	}
	if backupData.Version == "" {
		return nil, fmt.Errorf("invalid backup %s: missing version", name)
	}
	return &backupData, nil
}

// ListBackups returns snapshot names oldest first.
func (bs *BackupService) ListBackups(ctx context.Context) ([]string, error) {
	names, err := bs.storage.List(ctx, namePrefix)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Latest returns the newest snapshot taken at or before at. ok is false when
// there is none.
func (bs *BackupService) Latest(ctx context.Context, at time.Time) (name string, ok bool, err error) {
	names, err := bs.ListBackups(ctx)
	if err != nil {
		return "", false, fmt.Errorf("failed to list backups: %w", err)
	}
	var newest time.Time
	for _, n := range names {
		ts, valid := BackupTime(n)
		if !valid || ts.After(at) {
			continue
		}
		if !ok || ts.After(newest) {
			name, newest, ok = n, ts, true
		}
	}
	return name, ok, nil
}

// Prune deletes snapshots older than cutoff and returns how many it removed.
func (bs *BackupService) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	names, err := bs.ListBackups(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list backups: %w", err)
	}
	removed := 0
	for _, n := range names {
		ts, ok := BackupTime(n)
		if !ok || !ts.Before(cutoff) {
			continue
		}
		if err := bs.storage.Delete(ctx, n); err != nil {
			return removed, fmt.Errorf("failed to delete backup %s: %w", n, err)
		}
		removed++
	}
	return removed, nil
}

func (bs *BackupService) DeleteBackup(ctx context.Context, name string) error {
	return bs.storage.Delete(ctx, name)
}

func BackupName(t time.Time) string {
	return namePrefix + t.UTC().Format(nameLayout) + ".json"
}

// BackupTime parses the timestamp out of a name produced by BackupName.
func BackupTime(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, namePrefix) || !strings.HasSuffix(name, ".json") {
		return time.Time{}, false
	}
	ts := strings.TrimSuffix(strings.TrimPrefix(name, namePrefix), ".json")
	t, err := time.Parse(nameLayout, ts)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
