package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"mediamirror/internal/dedup"
	"mediamirror/internal/logger"
)

// Result reports the outcome of one source's run
type Result struct {
	SourceID     string        `json:"sourceId"`
	Materialized uint64        `json:"materialized"`
	Duplicates   uint64        `json:"duplicates"`
	Failures     uint64        `json:"failures"`
	Bytes        int64         `json:"bytes"`
	Pages        int           `json:"pages"`
	ItemsSeen    uint64        `json:"itemsSeen"`
	Rehydrated   int           `json:"rehydrated"`
	State        State         `json:"state"`
	Err          error         `json:"-"`
	Error        string        `json:"error,omitempty"`
	StartedAt    time.Time     `json:"startedAt"`
	Elapsed      time.Duration `json:"elapsed"`
}

// Succeeded reports whether the source ended without a catalog failure
func (r Result) Succeeded() bool {
	return r.State == StateExhaustedEmpty || r.State == StateExhaustedDuplicateThreshold
}

// Phase is one listing walked during a source's run. Phases run in order
// and share the run's index.
type Phase struct {
	Name    string
	Catalog Catalog
	// Optional phases log their failure instead of failing the run
	Optional bool
}

// Orchestrator runs retrieval for content sources. Each run gets its own
// index and session; nothing mutable is shared between sources.
type Orchestrator struct {
	phases    []Phase
	fetcher   Fetcher
	assembler Assembler
	hasher    Hasher
	opts      Options
	log       *slog.Logger

	mu      sync.RWMutex
	running map[string]time.Time
	results map[string]Result
}

// New creates a new orchestrator over a single catalog
func New(catalog Catalog, fetcher Fetcher, assembler Assembler, hasher Hasher, opts Options, log *slog.Logger) (*Orchestrator, error) {
	return NewPhased([]Phase{{Name: "catalog", Catalog: catalog}}, fetcher, assembler, hasher, opts, log)
}

// NewPhased creates an orchestrator that walks phases in order for every
// source
func NewPhased(phases []Phase, fetcher Fetcher, assembler Assembler, hasher Hasher, opts Options, log *slog.Logger) (*Orchestrator, error) {
	if len(phases) == 0 {
		return nil, ErrNoCatalog
	}
	for _, p := range phases {
		if p.Catalog == nil {
			return nil, ErrNoCatalog
		}
	}
	if opts.Root == "" {
		return nil, ErrInvalidRoot
	}
	return &Orchestrator{
		phases:    append([]Phase(nil), phases...),
		fetcher:   fetcher,
		assembler: assembler,
		hasher:    hasher,
		opts:      opts,
		log:       logger.Or(log).With("component", "retrieval"),
		running:   make(map[string]time.Time),
		results:   make(map[string]Result),
	}, nil
}

// Layout returns the destination layout in use
func (o *Orchestrator) Layout() Layout {
	return Layout{
		Root:             o.opts.Root,
		UseFolderSuffix:  o.opts.UseFolderSuffix,
		SeparatePreviews: o.opts.SeparatePreviews,
	}
}

// Run retrieves one source until it is exhausted, trips the duplicate
// breaker, fails or ctx is cancelled. The returned error is the cause of a
// Failed or Aborted run.
func (o *Orchestrator) Run(ctx context.Context, sourceID string) (Result, error) {
	started, err := o.reserve(sourceID)
	if err != nil {
		return Result{SourceID: sourceID, State: StateFailed, Err: err, Error: err.Error()}, err
	}
	result := o.execute(ctx, sourceID, started)
	return result, result.Err
}

// Start reserves sourceID and retrieves it in the background. A busy
// source is rejected with ErrSourceRunning before anything starts. done,
// when set, receives the result once the run ends.
func (o *Orchestrator) Start(ctx context.Context, sourceID string, done func(Result, error)) error {
	started, err := o.reserve(sourceID)
	if err != nil {
		return err
	}
	go func() {
		result := o.execute(ctx, sourceID, started)
		if done != nil {
			done(result, result.Err)
		}
	}()
	return nil
}

// reserve marks sourceID as running
func (o *Orchestrator) reserve(sourceID string) (time.Time, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, busy := o.running[sourceID]; busy {
		return time.Time{}, fmt.Errorf("%w: %s", ErrSourceRunning, sourceID)
	}
	started := time.Now()
	o.running[sourceID] = started
	return started, nil
}

// execute runs a reserved source and records its result
func (o *Orchestrator) execute(ctx context.Context, sourceID string, started time.Time) Result {
	log := o.log.With("source", sourceID)
	ctx = logger.WithContext(ctx, log)

	result := o.run(ctx, sourceID, log)
	result.StartedAt = started
	result.Elapsed = time.Since(started)

	o.mu.Lock()
	delete(o.running, sourceID)
	o.results[sourceID] = result
	o.mu.Unlock()

	log.Info("source finished",
		"state", result.State.String(),
		"materialized", result.Materialized,
		"duplicates", result.Duplicates,
		"failures", result.Failures,
		"elapsed", result.Elapsed.Round(time.Millisecond))
	return result
}

func (o *Orchestrator) run(ctx context.Context, sourceID string, log *slog.Logger) Result {
	layout := o.Layout()
	sourceDir, err := layout.SourceDir(sourceID)
	if err != nil {
		return Result{SourceID: sourceID, State: StateFailed, Err: err, Error: err.Error()}
	}

	index := dedup.NewIndex(log)
	rehydrated := 0
	for _, dir := range layout.Dirs(sourceDir) {
		report, err := index.RehydrateFromDirectory(dir)
		if err != nil {
			err = fmt.Errorf("failed to rehydrate %s: %w", dir, err)
			return Result{SourceID: sourceID, State: StateFailed, Err: err, Error: err.Error()}
		}
		rehydrated += report.Identifiers
	}
	log.Debug("index rehydrated", "tracked", index.TrackedCount(), "files", rehydrated)

	mat := &materializer{
		fetcher:   o.fetcher,
		assembler: o.assembler,
		hasher:    o.hasher,
		index:     index,
	}
	session := newSession(sourceID, sourceDir, o.phases, mat, index, layout, o.opts, log)
	session.run(ctx)

	result := session.Result()
	result.Rehydrated = rehydrated
	return result
}

// RunAll runs every source, up to SourceConcurrency at once, and
// aggregates their results. Per-source failures are reported in the
// summary, not as an error.
func (o *Orchestrator) RunAll(ctx context.Context, sources []string) (Summary, error) {
	if len(sources) == 0 {
		return Summary{}, ErrNoSources
	}

	sources = uniqueSources(sources)
	started := time.Now()
	results := make([]Result, len(sources))

	var g errgroup.Group
	g.SetLimit(o.opts.sourceConcurrency())
	for i, src := range sources {
		g.Go(func() error {
			results[i], _ = o.Run(ctx, src)
			return nil
		})
	}
	g.Wait()

	summary := NewSummary(results)
	summary.Elapsed = time.Since(started)
	return summary, nil
}

func uniqueSources(sources []string) []string {
	seen := make(map[string]bool, len(sources))
	out := make([]string, 0, len(sources))
	for _, src := range sources {
		if seen[src] {
			continue
		}
		seen[src] = true
		out = append(out, src)
	}
	return out
}

// Status is a snapshot of the orchestrator's activity
type Status struct {
	Running []string `json:"running"`
	Results []Result `json:"results"`
	Summary Summary  `json:"summary"`
}

// Status returns the sources in progress and the last result per source
func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()

	st := Status{
		Running: make([]string, 0, len(o.running)),
		Results: make([]Result, 0, len(o.results)),
	}
	for src := range o.running {
		st.Running = append(st.Running, src)
	}
	for _, r := range o.results {
		st.Results = append(st.Results, r)
	}
	sort.Strings(st.Running)
	sort.Slice(st.Results, func(i, j int) bool {
		return st.Results[i].SourceID < st.Results[j].SourceID
	})
	st.Summary = NewSummary(st.Results)
	return st
}
