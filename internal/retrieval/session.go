package retrieval

import (
	"context"
	"log/slog"

	"github.com/dustin/go-humanize"

	"mediamirror/internal/dedup"
	"mediamirror/internal/hls"
	"mediamirror/pkg/models"
)

// Session is the state machine of one source's run. Pages, batches and
// items are handled sequentially.
type Session struct {
	SourceID              string
	State                 State
	Cursor                string
	ConsecutiveEmptyPages int
	TotalItemsSeen        uint64
	PagesFetched          int
	Materialized          uint64
	Failures              uint64
	Bytes                 int64
	Err                   error

	page        models.CatalogPage
	descriptors []models.Descriptor

	sourceDir string
	phases    []Phase
	phase     int
	catalog   Catalog
	mat       *materializer
	index     *dedup.Index
	layout    Layout
	opts      Options
	log       *slog.Logger

	pagePace  *pacer
	batchPace *pacer
	itemPace  *pacer

	// muxMissing is set once a missing mux tool has been reported
	muxMissing bool

	// settled is the state the previous phase ended in
	settled State
	// the breaker only counts what the current phase has seen
	phaseSeen       uint64
	phaseDupsBefore uint64
}

func newSession(sourceID, sourceDir string, phases []Phase, mat *materializer, index *dedup.Index, layout Layout, opts Options, log *slog.Logger) *Session {
	return &Session{
		SourceID:  sourceID,
		State:     StateFetching,
		sourceDir: sourceDir,
		phases:    phases,
		catalog:   phases[0].Catalog,
		mat:       mat,
		index:     index,
		layout:    layout,
		opts:      opts,
		log:       log,
		pagePace:  newPacer(opts.PageInterval),
		batchPace: newPacer(opts.BatchInterval),
		itemPace:  newPacer(opts.ItemInterval),
	}
}

// run steps the machine through every phase until it reaches a terminal
// state
func (s *Session) run(ctx context.Context) {
	for {
		for !s.State.IsTerminal() {
			s.step(ctx)
		}
		if !s.nextPhase() {
			return
		}
	}
}

// nextPhase starts the following listing with a fresh cursor. A failed
// optional phase is logged and the run keeps the state it had before it.
func (s *Session) nextPhase() bool {
	current := s.phases[s.phase]
	if s.State == StateFailed && current.Optional {
		s.log.Warn("optional listing failed", "phase", current.Name, "error", s.Err)
		s.State, s.Err = s.settled, nil
	}
	if s.State == StateFailed || s.State == StateAborted || s.phase+1 >= len(s.phases) {
		return false
	}

	s.settled = s.State
	s.phase++
	s.catalog = s.phases[s.phase].Catalog
	s.Cursor = ""
	s.ConsecutiveEmptyPages = 0
	s.phaseSeen = 0
	s.phaseDupsBefore = s.index.DuplicateCount()
	s.State = StateFetching
	s.log.Info("starting listing", "phase", s.phases[s.phase].Name)
	return true
}

func (s *Session) step(ctx context.Context) {
	switch s.State {
	case StateFetching:
		s.fetch(ctx)
	case StateResolving:
		s.resolve(ctx)
	case StateProcessing:
		s.process(ctx)
	}
}

func (s *Session) fetch(ctx context.Context) {
	if err := s.pagePace.Wait(ctx); err != nil {
		s.abort(err)
		return
	}

	page, err := s.catalog.FetchPage(ctx, s.SourceID, s.Cursor)
	if err != nil {
		if ctx.Err() != nil {
			s.abort(ctx.Err())
			return
		}
		s.fail(&SourceFetchError{SourceID: s.SourceID, Op: "fetch page", Cursor: s.Cursor, Err: err})
		return
	}
	s.PagesFetched++

	if len(page.Items) == 0 {
		if page.Advance && !page.Final && page.NextCursor != "" && page.NextCursor != s.Cursor {
			s.ConsecutiveEmptyPages = 0
			s.Cursor = page.NextCursor
			s.State = StateFetching
			return
		}
		if page.Final {
			s.log.Info("no more items", "pages", s.PagesFetched, "cursor", s.Cursor)
			s.State = StateExhaustedEmpty
			return
		}
		s.emptyPage(ctx)
		return
	}

	s.ConsecutiveEmptyPages = 0
	s.TotalItemsSeen += uint64(len(page.Items))
	s.phaseSeen += uint64(len(page.Items))
	s.page = page
	s.State = StateResolving
}

// emptyPage retries the current cursor after a delay until the retry
// budget is spent
func (s *Session) emptyPage(ctx context.Context) {
	s.ConsecutiveEmptyPages++
	if s.ConsecutiveEmptyPages > s.opts.EmptyPageRetries {
		s.log.Info("no more items", "pages", s.PagesFetched, "cursor", s.Cursor)
		s.State = StateExhaustedEmpty
		return
	}

	s.log.Debug("empty page, retrying", "attempt", s.ConsecutiveEmptyPages, "delay", s.opts.EmptyPageDelay)
	if err := sleep(ctx, s.opts.EmptyPageDelay); err != nil {
		s.abort(err)
		return
	}
	s.State = StateFetching
}

func (s *Session) resolve(ctx context.Context) {
	ids := uniqueIDs(s.page.Items)
	s.descriptors = s.descriptors[:0]

	for _, batch := range batches(ids, s.opts.batchSize()) {
		if err := s.batchPace.Wait(ctx); err != nil {
			s.abort(err)
			return
		}
		descriptors, err := s.catalog.Resolve(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				s.abort(ctx.Err())
				return
			}
			s.fail(&SourceFetchError{SourceID: s.SourceID, Op: "resolve items", Cursor: s.Cursor, Err: err})
			return
		}
		s.descriptors = append(s.descriptors, descriptors...)
	}

	s.State = StateProcessing
}

func (s *Session) process(ctx context.Context) {
	for _, d := range s.descriptors {
		if err := ctx.Err(); err != nil {
			s.abort(err)
			return
		}
		s.processItem(ctx, d)
	}

	duplicates := s.index.DuplicateCount() - s.phaseDupsBefore
	if s.opts.Breaker.Tripped(duplicates, s.phaseSeen) {
		s.log.Info("duplicate threshold reached",
			"duplicates", duplicates,
			"threshold", s.opts.Breaker.Threshold(s.phaseSeen),
			"items_seen", s.phaseSeen)
		s.State = StateExhaustedDuplicateThreshold
		return
	}

	if s.page.Final {
		s.log.Info("listing complete", "pages", s.PagesFetched)
		s.State = StateExhaustedEmpty
		return
	}

	next := s.page.NextCursor
	if next == "" && len(s.page.Items) > 0 {
		next = s.page.Items[len(s.page.Items)-1].ID
	}
	if next == "" || next == s.Cursor {
		// refetching a cursor that does not move would repeat this page forever
		s.log.Info("cursor did not advance", "cursor", s.Cursor)
		s.State = StateExhaustedEmpty
		return
	}
	s.Cursor = next
	s.State = StateFetching
}

func (s *Session) processItem(ctx context.Context, d models.Descriptor) {
	log := s.log.With("item", d.ID, "kind", d.Kind.String())

	if d.IsPreview && !s.opts.IncludePreviews {
		log.Debug("skipping preview")
		return
	}
	if s.index.IsIdentifierSeen(d.ID, d.Kind) {
		s.duplicate(log, "identifier seen")
		return
	}

	if err := s.itemPace.Wait(ctx); err != nil {
		return
	}

	dir := s.layout.KindDir(s.sourceDir, d.Kind, d.IsPreview)
	res, err := s.mat.Materialize(ctx, d, dir)
	if err != nil {
		s.Failures++
		if hls.IsToolNotFound(err) {
			if !s.muxMissing {
				s.muxMissing = true
				log.Error("cannot assemble segmented streams", "error", err)
			}
			return
		}
		log.Warn("failed to materialize item", "url", d.DownloadURL, "error", err)
		return
	}

	switch res.Outcome {
	case OutcomeDuplicate:
		s.duplicate(log, res.Reason)
	case OutcomeMaterialized:
		s.Materialized++
		s.Bytes += res.Bytes
		level := slog.LevelDebug
		if s.opts.ShowDownloads {
			level = slog.LevelInfo
		}
		log.Log(ctx, level, "downloaded", "path", res.Path, "size", humanize.Bytes(uint64(res.Bytes)))
	}
}

func (s *Session) duplicate(log *slog.Logger, reason string) {
	s.index.RecordDuplicate()
	if s.opts.ShowSkipped {
		log.Debug("skipping duplicate", "reason", reason)
	}
}

func (s *Session) fail(err error) {
	s.Err = err
	s.State = StateFailed
	s.log.Error("source failed", "error", err)
}

func (s *Session) abort(err error) {
	s.Err = err
	s.State = StateAborted
	s.log.Info("run aborted", "error", err)
}

// Result snapshots the session counters
func (s *Session) Result() Result {
	r := Result{
		SourceID:     s.SourceID,
		Materialized: s.Materialized,
		Duplicates:   s.index.DuplicateCount(),
		Failures:     s.Failures,
		Bytes:        s.Bytes,
		Pages:        s.PagesFetched,
		ItemsSeen:    s.TotalItemsSeen,
		State:        s.State,
		Err:          s.Err,
	}
	if s.Err != nil {
		r.Error = s.Err.Error()
	}
	return r
}

// uniqueIDs returns item identifiers in page order without repeats
func uniqueIDs(items []models.CatalogItem) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it.ID == "" {
			continue
		}
		if _, ok := seen[it.ID]; ok {
			continue
		}
		seen[it.ID] = struct{}{}
		ids = append(ids, it.ID)
	}
	return ids
}

func batches(ids []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}
