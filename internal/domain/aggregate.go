package domain

import (
	"fmt"
	"sort"

	m "lunacov.dev/pkg/lunacov/internal/model"
)

// Merge combines the coverage records of two independent workers for the
// same file: execution counts sum, executed/covered flags OR. The static
// structure of both records must be identical (same fingerprint); divergence
// is a loud StructuralMismatch, never a silent drop. Merge is associative
// and commutative, so worker results can be combined in any order.
//
// An unreadable record carries no structure, so one worker hitting a
// transient read error must not poison the merge: the readable side wins.
func Merge(a, b m.FileCoverageRecord) (m.FileCoverageRecord, error) {
	if a.Path != b.Path {
		return m.FileCoverageRecord{}, fmt.Errorf("%w: %s vs %s", m.ErrStructuralMismatch, a.Path, b.Path)
	}

	if a.Unreadable != b.Unreadable {
		readable := a
		if a.Unreadable {
			readable = b
		}

		return readable, nil
	}

	if err := checkStructure(a, b); err != nil {
		return m.FileCoverageRecord{}, err
	}

	merged := a

	merged.Lines = append([]m.LineRecord(nil), a.Lines...)
	for i := range merged.Lines {
		merged.Lines[i].ExecutionCount += b.Lines[i].ExecutionCount
		merged.Lines[i].Covered = merged.Lines[i].Covered || b.Lines[i].Covered
	}

	merged.Blocks = append([]m.Block(nil), a.Blocks...)
	for i := range merged.Blocks {
		merged.Blocks[i].ExecutionCount += b.Blocks[i].ExecutionCount
		merged.Blocks[i].Executed = merged.Blocks[i].Executed || b.Blocks[i].Executed
	}

	merged.Functions = append([]m.FunctionRecord(nil), a.Functions...)
	for i := range merged.Functions {
		merged.Functions[i].CallCount += b.Functions[i].CallCount
		merged.Functions[i].Executed = merged.Functions[i].Executed || b.Functions[i].Executed
	}

	merged.Unreadable = a.Unreadable && b.Unreadable
	merged.Recompute()

	return merged, nil
}

func checkStructure(a, b m.FileCoverageRecord) error {
	if a.Fingerprint != b.Fingerprint {
		return fmt.Errorf("%w: %s fingerprints %.12s vs %.12s",
			m.ErrStructuralMismatch, a.Path, a.Fingerprint, b.Fingerprint)
	}

	if len(a.Lines) != len(b.Lines) || len(a.Blocks) != len(b.Blocks) || len(a.Functions) != len(b.Functions) {
		return fmt.Errorf("%w: %s has diverging analysis shapes", m.ErrStructuralMismatch, a.Path)
	}

	for i := range a.Lines {
		if a.Lines[i].Classification != b.Lines[i].Classification {
			return fmt.Errorf("%w: %s line %d classified differently", m.ErrStructuralMismatch, a.Path, i+1)
		}
	}

	for i := range a.Blocks {
		if a.Blocks[i].StartLine != b.Blocks[i].StartLine ||
			a.Blocks[i].EndLine != b.Blocks[i].EndLine ||
			a.Blocks[i].Kind != b.Blocks[i].Kind {
			return fmt.Errorf("%w: %s block %d differs", m.ErrStructuralMismatch, a.Path, i)
		}
	}

	return nil
}

// MergeRecordSets folds any number of worker record sets into one set,
// keyed by path. Files present in only some workers pass through unchanged.
func MergeRecordSets(sets ...[]m.FileCoverageRecord) ([]m.FileCoverageRecord, error) {
	byPath := map[m.Path]m.FileCoverageRecord{}

	for _, set := range sets {
		for _, record := range set {
			existing, ok := byPath[record.Path]
			if !ok {
				byPath[record.Path] = record
				continue
			}

			merged, err := Merge(existing, record)
			if err != nil {
				return nil, err
			}

			byPath[record.Path] = merged
		}
	}

	records := make([]m.FileCoverageRecord, 0, len(byPath))
	for _, record := range byPath {
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })

	return records, nil
}
