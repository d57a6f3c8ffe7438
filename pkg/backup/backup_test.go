package backup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listing struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func newTestService(t *testing.T) (*BackupService, string, *time.Time) {
	t.Helper()
	dir := t.TempDir()
	storage, err := NewFileStorage(dir)
	require.NoError(t, err)

	now := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	service := NewBackupService(storage, "1")
	service.now = func() time.Time { return now }
	return service, dir, &now
}

func TestBackupService_CreateAndRestore(t *testing.T) {
	service, dir, _ := newTestService(t)
	ctx := context.Background()

	data := &BackupData{}
	require.NoError(t, data.Put("streams", []listing{{ID: "1", Title: "Sourdough Masterclass"}}))

	name, err := service.CreateBackup(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, "snapshot-20260314-150000.json", name)
	_, err = os.Stat(filepath.Join(dir, name))
	require.NoError(t, err)

	restored, err := service.RestoreBackup(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, "1", restored.Version)

	var streams []listing
	ok, err := restored.Get("streams", &streams)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []listing{{ID: "1", Title: "Sourdough Masterclass"}}, streams)

	ok, err = restored.Get("auctions", &streams)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBackupService_LatestAndPrune(t *testing.T) {
	service, _, now := newTestService(t)
	ctx := context.Background()

	start := *now
	for i := 0; i < 3; i++ {
		*now = start.Add(time.Duration(i) * time.Hour)
		_, err := service.CreateBackup(ctx, &BackupData{})
		require.NoError(t, err)
	}

	names, err := service.ListBackups(ctx)
	require.NoError(t, err)
	assert.Len(t, names, 3)

	name, ok, err := service.Latest(ctx, start.Add(90*time.Minute))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, BackupName(start.Add(time.Hour)), name)

	_, ok, err = service.Latest(ctx, start.Add(-time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	removed, err := service.Prune(ctx, start.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	names, err = service.ListBackups(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{BackupName(start.Add(2 * time.Hour))}, names)
}

func TestBackupService_RestoreRejectsUnversioned(t *testing.T) {
	service, dir, _ := newTestService(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "snapshot-20260314-150000.json"), []byte(`{"sections":{}}`), 0o644))

	_, err := service.RestoreBackup(context.Background(), "snapshot-20260314-150000.json")
	assert.Error(t, err)
}

func TestBackupTime(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	got, ok := BackupTime(BackupName(at))
	require.True(t, ok)
	assert.True(t, got.Equal(at))

	for _, name := range []string{"backup-20260102-030405.json", "snapshot-garbage.json", "snapshot-20260102-030405.txt"} {
		_, ok := BackupTime(name)
		assert.False(t, ok, name)
	}
}

func TestFileStorage(t *testing.T) {
	storage, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, storage.Save(ctx, "test.txt", strings.NewReader("test data")))

	loaded, err := storage.Load(ctx, "test.txt")
	require.NoError(t, err)
	loaded.Close()

	files, err := storage.List(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, []string{"test.txt"}, files)

	require.NoError(t, storage.Delete(ctx, "test.txt"))
	files, err = storage.List(ctx, "test")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestFileStorage_RejectsPaths(t *testing.T) {
	storage, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "../escape.json", "a/b.json", ".hidden"} {
		assert.Error(t, storage.Save(context.Background(), name, strings.NewReader("x")), name)
	}
}
