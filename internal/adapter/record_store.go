package adapter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	m "lunacov.dev/pkg/lunacov/internal/model"
)

// recordsFileName is the per-worker coverage record document.
const recordsFileName = "coverage.json"

// RecordStore persists and retrieves the coverage record sets produced by
// independent workers, for merging after all workers terminate.
type RecordStore interface {
	SaveRecords(dir m.Path, records []m.FileCoverageRecord) error
	LoadRecords(dir m.Path) ([]m.FileCoverageRecord, error)

	// ShardDirs lists the shard_* subdirectories of dir, sorted.
	ShardDirs(dir m.Path) ([]m.Path, error)
}

type recordStore struct{}

// NewRecordStore constructs the JSON-file-backed RecordStore.
func NewRecordStore() RecordStore {
	return &recordStore{}
}

type recordsDocument struct {
	SchemaVersion int                    `json:"schema_version"`
	Records       []m.FileCoverageRecord `json:"records"`
}

func (rs *recordStore) SaveRecords(dir m.Path, records []m.FileCoverageRecord) error {
	if err := os.MkdirAll(string(dir), 0o750); err != nil {
		return fmt.Errorf("create reports dir: %w", err)
	}

	doc := recordsDocument{
		SchemaVersion: m.ReportSchemaVersion,
		Records:       records,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}

	target := filepath.Join(string(dir), recordsFileName)
	if err := os.WriteFile(target, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}

	return nil
}

func (rs *recordStore) LoadRecords(dir m.Path) ([]m.FileCoverageRecord, error) {
	target := filepath.Join(string(dir), recordsFileName)

	data, err := os.ReadFile(target)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", target, err)
	}

	var doc recordsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", target, err)
	}

	if doc.SchemaVersion > m.ReportSchemaVersion {
		return nil, fmt.Errorf("%s: schema version %d is newer than supported %d",
			target, doc.SchemaVersion, m.ReportSchemaVersion)
	}

	return doc.Records, nil
}

func (rs *recordStore) ShardDirs(dir m.Path) ([]m.Path, error) {
	matches, err := filepath.Glob(filepath.Join(string(dir), "shard_*"))
	if err != nil {
		return nil, err
	}

	var dirs []m.Path

	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || !info.IsDir() {
			continue
		}

		dirs = append(dirs, m.Path(match))
	}

	sort.Slice(dirs, func(i, j int) bool { return dirs[i] < dirs[j] })

	return dirs, nil
}
