package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"lunacov.dev/pkg/lunacov/internal/adapter"
	"lunacov.dev/pkg/lunacov/internal/controller"
	m "lunacov.dev/pkg/lunacov/internal/model"
	"lunacov.dev/pkg/lunacov/pkg"
)

// RunArgs contains the arguments for running scripts under coverage.
type RunArgs struct {
	Scripts     []m.Path
	Roots       []m.Path
	Config      m.SessionConfig
	Reports     m.Path
	ShardIndex  int
	TotalShards int
	Threads     int
}

// ReportArgs contains the arguments for rendering a stored report.
type ReportArgs struct {
	Reports  m.Path
	JSONPath m.Path
}

// MergeArgs contains the arguments for merging sharded reports.
type MergeArgs struct {
	Reports m.Path
	Threads int
}

// ListArgs contains the arguments for the static analysis listing.
type ListArgs struct {
	Paths   []m.Path
	Include []string
	Exclude []string
	Threads int
}

// ViewArgs contains the arguments for viewing stored coverage.
type ViewArgs struct {
	Reports m.Path
}

// Workflow ties the coverage engine to the CLI commands.
type Workflow interface {
	Run(ctx context.Context, args RunArgs) error
	Report(ctx context.Context, args ReportArgs) error
	Merge(ctx context.Context, args MergeArgs) error
	List(ctx context.Context, args ListArgs) error
	View(ctx context.Context, args ViewArgs) error
}

// EngineFactory builds a fresh script engine per run.
type EngineFactory func() adapter.ScriptEngine

type workflow struct {
	adapter.SourceFSAdapter
	adapter.RecordStore
	controller.UI

	analyzer *Analyzer
	engines  EngineFactory
}

// NewWorkflow creates a Workflow instance with the provided dependencies.
func NewWorkflow(
	fsAdapter adapter.SourceFSAdapter,
	recordStore adapter.RecordStore,
	ui controller.UI,
	analyzer *Analyzer,
	engines EngineFactory,
) Workflow {
	return &workflow{
		SourceFSAdapter: fsAdapter,
		RecordStore:     recordStore,
		UI:              ui,
		analyzer:        analyzer,
		engines:         engines,
	}
}

// Run executes the selected scripts under a fresh coverage session and
// persists the resulting records.
func (w *workflow) Run(ctx context.Context, args RunArgs) error {
	session := NewCoverageSession(w.analyzer)

	if err := session.Start(args.Config); err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	if err := w.preTrack(ctx, session, args); err != nil {
		return err
	}

	tracker, err := NewTracker(session, w.analyzer)
	if err != nil {
		return err
	}

	engine := w.engines()
	defer func() {
		_ = engine.Close()
	}()

	if err := tracker.Attach(engine); err != nil {
		if errors.Is(err, m.ErrLineHookUnsupported) {
			return fmt.Errorf("backend %q unavailable on this engine, use %q: %w",
				m.BackendTraceHook, m.BackendInstrument, err)
		}

		return fmt.Errorf("attach tracker: %w", err)
	}

	var scriptErrs []error

	for _, script := range shardScripts(args.Scripts, args.ShardIndex, args.TotalShards) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			break
		}

		if err := engine.Run(ctx, script); err != nil {
			// A failing script still produced valid partial coverage.
			slog.Warn("script failed", "path", script, "error", err)
			scriptErrs = append(scriptErrs, err)
		}
	}

	if err := tracker.Flush(); err != nil {
		return fmt.Errorf("flush tracker: %w", err)
	}

	records := session.Stop()

	if err := w.SaveRecords(w.reportsDir(args), records); err != nil {
		return fmt.Errorf("save records: %w", err)
	}

	if err := w.DisplaySummary(ctx, records); err != nil {
		return err
	}

	if len(scriptErrs) > 0 {
		return fmt.Errorf("%d script(s) failed: %w", len(scriptErrs), errors.Join(scriptErrs...))
	}

	return nil
}

// preTrack warms the analysis cache in parallel and registers every
// discovered file with the session, so files that never execute still show
// up red in the report.
func (w *workflow) preTrack(ctx context.Context, session *CoverageSession, args RunArgs) error {
	roots := args.Roots
	if len(roots) == 0 {
		roots = []m.Path{"."}
	}

	files, err := w.Discover(ctx, roots, args.Config.IncludePatterns, args.Config.ExcludePatterns)
	if err != nil {
		return fmt.Errorf("discover sources: %w", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(normalizeThreads(args.Threads))

	for _, file := range files {
		file := file
		group.Go(func() error {
			// Cache fill only; tracking happens single-threaded below.
			_, err := w.analyzer.Analyze(groupCtx, file)
			if err != nil {
				slog.Debug("pre-analysis failed", "path", file, "error", err)
			}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}

	for _, file := range files {
		if err := session.Track(ctx, file); err != nil {
			slog.Warn("tracking file failed", "path", file, "error", err)
		}
	}

	return nil
}

// Report loads stored records and renders or exports the report data.
func (w *workflow) Report(ctx context.Context, args ReportArgs) error {
	records, err := w.LoadRecords(args.Reports)
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}

	data := BuildReportData(records, reportWeights(records))

	if args.JSONPath != "" {
		encoded, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}

		if err := w.WriteFile(args.JSONPath, encoded, 0o600); err != nil {
			return fmt.Errorf("write report: %w", err)
		}

		slog.Info("report written", "path", args.JSONPath)

		return nil
	}

	if err := w.DisplayReport(ctx, data); err != nil {
		return err
	}

	return w.DisplaySummary(ctx, records)
}

// Merge folds shard_* record sets into a single record set at the reports
// root. Shards load in parallel; ordering does not matter because the merge
// operation is associative and commutative.
func (w *workflow) Merge(ctx context.Context, args MergeArgs) error {
	shardDirs, err := w.ShardDirs(args.Reports)
	if err != nil {
		return fmt.Errorf("list shards: %w", err)
	}

	if len(shardDirs) == 0 {
		return fmt.Errorf("no shard directories under %s", args.Reports)
	}

	spill, err := pkg.NewFileSpill[m.FileCoverageRecord]()
	if err != nil {
		return fmt.Errorf("create spill: %w", err)
	}

	defer func() {
		_ = spill.Close()
	}()

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(normalizeThreads(args.Threads))

	for _, dir := range shardDirs {
		dir := dir
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			records, err := w.LoadRecords(dir)
			if err != nil {
				return fmt.Errorf("load shard %s: %w", dir, err)
			}

			return spill.AppendBatch(records)
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}

	byPath := map[m.Path]m.FileCoverageRecord{}

	err = spill.Range(func(_ uint64, record m.FileCoverageRecord) error {
		existing, ok := byPath[record.Path]
		if !ok {
			byPath[record.Path] = record
			return nil
		}

		merged, err := Merge(existing, record)
		if err != nil {
			return err
		}

		byPath[record.Path] = merged

		return nil
	})
	if err != nil {
		return fmt.Errorf("merge shards: %w", err)
	}

	records := make([]m.FileCoverageRecord, 0, len(byPath))
	for _, record := range byPath {
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })

	if err := w.SaveRecords(args.Reports, records); err != nil {
		return fmt.Errorf("save merged records: %w", err)
	}

	w.DisplayMergeInfo(ctx, len(shardDirs), len(records))

	return nil
}

// List runs static analysis only and displays the per-file counts.
func (w *workflow) List(ctx context.Context, args ListArgs) error {
	paths := args.Paths
	if len(paths) == 0 {
		paths = []m.Path{"."}
	}

	files, err := w.Discover(ctx, paths, args.Include, args.Exclude)
	if err != nil {
		return fmt.Errorf("discover sources: %w", err)
	}

	var (
		mu       sync.Mutex
		analyses []m.FileAnalysis
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(normalizeThreads(args.Threads))

	for _, file := range files {
		file := file
		group.Go(func() error {
			analysis, err := w.analyzer.Analyze(groupCtx, file)
			if err != nil {
				slog.Warn("analysis failed", "path", file, "error", err)
				return nil
			}

			mu.Lock()
			analyses = append(analyses, analysis)
			mu.Unlock()

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}

	sort.Slice(analyses, func(i, j int) bool { return analyses[i].Path < analyses[j].Path })

	return w.DisplayAnalysis(ctx, analyses)
}

// View loads stored records plus their sources and opens the viewer.
func (w *workflow) View(ctx context.Context, args ViewArgs) error {
	records, err := w.LoadRecords(args.Reports)
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}

	files := make([]controller.FileView, 0, len(records))

	for _, record := range records {
		view := controller.FileView{Record: record}

		if !record.Unreadable {
			src, err := w.ReadFile(record.Path)
			if err != nil {
				slog.Warn("source unavailable for view", "path", record.Path, "error", err)
			} else {
				view.Source = SplitLines(src)
			}
		}

		files = append(files, view)
	}

	return w.UI.View(ctx, files)
}

func (w *workflow) reportsDir(args RunArgs) m.Path {
	if args.TotalShards > 1 {
		return m.Path(filepath.Join(string(args.Reports), fmt.Sprintf("shard_%d", args.ShardIndex)))
	}

	return args.Reports
}

// shardScripts selects this worker's subset by index modulo total.
func shardScripts(scripts []m.Path, index, total int) []m.Path {
	if total <= 1 {
		return scripts
	}

	var subset []m.Path

	for i, script := range scripts {
		if i%total == index {
			subset = append(subset, script)
		}
	}

	return subset
}

// reportWeights recovers the overall formula carried in the records, so the
// rendered number matches what the session computed.
func reportWeights(records []m.FileCoverageRecord) m.OverallWeights {
	for _, record := range records {
		if record.OverallWeights != (m.OverallWeights{}) {
			return record.OverallWeights
		}
	}

	return m.DefaultOverallWeights()
}

func normalizeThreads(threads int) int {
	if threads < 1 {
		return 1
	}

	return threads
}
