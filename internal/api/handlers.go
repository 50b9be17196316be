package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mediamirror/internal/library"
	"mediamirror/internal/naming"
	"mediamirror/internal/retrieval"
	"mediamirror/pkg/models"
)

type statusResponse struct {
	Version string             `json:"version"`
	Running []string           `json:"running"`
	Results []retrieval.Result `json:"results"`
	Summary summaryResponse    `json:"summary"`
}

type summaryResponse struct {
	Sources      int    `json:"sources"`
	Failed       int    `json:"failed"`
	Aborted      int    `json:"aborted"`
	Materialized uint64 `json:"materialized"`
	Duplicates   uint64 `json:"duplicates"`
	Failures     uint64 `json:"failures"`
	Bytes        int64  `json:"bytes"`
	HumanBytes   string `json:"humanBytes"`
}

type libraryResponse struct {
	Source  string                 `json:"source"`
	Count   int                    `json:"count"`
	Size    int64                  `json:"size"`
	Kinds   map[string]int         `json:"kinds"`
	Entries []*models.LibraryEntry `json:"entries"`
}

// handleHealth handles health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleStatus reports sources in progress and the last result of each
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.runner.Status()

	for i := range st.Results {
		if st.Results[i].Err != nil && st.Results[i].Error == "" {
			st.Results[i].Error = st.Results[i].Err.Error()
		}
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Version: s.version,
		Running: st.Running,
		Results: st.Results,
		Summary: summaryResponse{
			Sources:      st.Summary.Sources,
			Failed:       st.Summary.Failed,
			Aborted:      st.Summary.Aborted,
			Materialized: st.Summary.Materialized,
			Duplicates:   st.Summary.Duplicates,
			Failures:     st.Summary.Failures,
			Bytes:        st.Summary.Bytes,
			HumanBytes:   st.Summary.HumanBytes(),
		},
	})
}

// handleLibrary rescans a source folder and lists what it holds
func (s *Server) handleLibrary(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")
	if _, err := naming.SafeComponent(source); err != nil {
		writeError(w, http.StatusBadRequest, "invalid source")
		return
	}

	count, err := s.library.Scan(source)
	if errors.Is(err, library.ErrSourceNotFound) {
		writeError(w, http.StatusNotFound, "source not found")
		return
	}
	if err != nil {
		s.log.Error("library scan failed", slog.String("source", source), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to scan library")
		return
	}

	entries, err := s.library.ListEntries(source)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list library")
		return
	}

	kinds := make(map[string]int)
	for kind, n := range s.library.Counts(source) {
		kinds[kind.String()] = n
	}

	writeJSON(w, http.StatusOK, libraryResponse{
		Source:  source,
		Count:   count,
		Size:    s.library.GetSize(source),
		Kinds:   kinds,
		Entries: entries,
	})
}

// handleLibraryFile serves the file of one catalog identifier
func (s *Server) handleLibraryFile(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")
	id := chi.URLParam(r, "id")
	if _, err := naming.SafeComponent(source); err != nil {
		writeError(w, http.StatusBadRequest, "invalid source")
		return
	}

	path, err := s.library.GetFilePath(source, id)
	if errors.Is(err, library.ErrEntryNotFound) {
		// the folder may have changed since the last scan
		if _, err := s.library.Scan(source); err != nil {
			if errors.Is(err, library.ErrSourceNotFound) {
				writeError(w, http.StatusNotFound, "source not found")
				return
			}
			s.log.Error("library scan failed", slog.String("source", source), slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "failed to scan library")
			return
		}
		path, err = s.library.GetFilePath(source, id)
	}
	if err != nil {
		writeError(w, http.StatusNotFound, "entry not found")
		return
	}

	http.ServeFile(w, r, path)
}

// handleFetch starts a background run for one source
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")
	if _, err := naming.SafeComponent(source); err != nil {
		writeError(w, http.StatusBadRequest, "invalid source")
		return
	}

	s.mu.RLock()
	ctx := s.ctx
	if ctx.Err() != nil {
		s.mu.RUnlock()
		writeError(w, http.StatusServiceUnavailable, "server is stopping")
		return
	}
	s.jobs.Add(1)
	s.mu.RUnlock()

	err := s.runner.Start(ctx, source, func(_ retrieval.Result, err error) {
		defer s.jobs.Done()
		if err != nil {
			s.log.Warn("fetch failed", slog.String("source", source), slog.Any("error", err))
		}
	})
	if err != nil {
		s.jobs.Done()
		if errors.Is(err, retrieval.ErrSourceRunning) {
			writeError(w, http.StatusConflict, "source is already running")
			return
		}
		s.log.Error("failed to start fetch", slog.String("source", source), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to start fetch")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "queued",
		"source": source,
	})
}
