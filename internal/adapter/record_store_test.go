package adapter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	m "lunacov.dev/pkg/lunacov/internal/model"
)

func sampleRecords() []m.FileCoverageRecord {
	record := m.FileCoverageRecord{
		Path:        "script.lua",
		Fingerprint: "abc",
		Lines: []m.LineRecord{
			{Classification: m.Executable, ExecutionCount: 2, Covered: true},
			{Classification: m.NonExecutable},
		},
		OverallWeights: m.DefaultOverallWeights(),
	}
	record.Recompute()

	return []m.FileCoverageRecord{record}
}

func TestRecordStore_SaveLoadRoundTrip(t *testing.T) {
	store := NewRecordStore()
	dir := m.Path(filepath.Join(t.TempDir(), "reports"))

	require.NoError(t, store.SaveRecords(dir, sampleRecords()))

	loaded, err := store.LoadRecords(dir)
	require.NoError(t, err)
	require.Equal(t, sampleRecords(), loaded)
}

func TestRecordStore_LoadMissingDir(t *testing.T) {
	store := NewRecordStore()

	_, err := store.LoadRecords(m.Path(filepath.Join(t.TempDir(), "nope")))
	require.Error(t, err)
}

func TestRecordStore_RejectsNewerSchema(t *testing.T) {
	dir := t.TempDir()

	doc := `{"schema_version": 99, "records": []}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "coverage.json"), []byte(doc), 0o600))

	_, err := NewRecordStore().LoadRecords(m.Path(dir))
	require.ErrorContains(t, err, "schema version")
}

func TestRecordStore_ShardDirs(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "shard_1"), 0o750))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "shard_0"), 0o750))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "cache"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shard_x"), []byte("file"), 0o600))

	dirs, err := NewRecordStore().ShardDirs(m.Path(dir))
	require.NoError(t, err)

	require.Equal(t, []m.Path{
		m.Path(filepath.Join(dir, "shard_0")),
		m.Path(filepath.Join(dir, "shard_1")),
	}, dirs)
}
