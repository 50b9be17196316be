// Package dedup tracks which items a content source has already materialized.
//
// Two identity channels are kept per media kind: catalog identifiers and
// content hashes. Sets only grow. An Index is owned by one source's
// retrieval loop and is not safe for concurrent use.
package dedup

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"mediamirror/internal/logger"
	"mediamirror/internal/naming"
	"mediamirror/pkg/models"
)

type set map[string]struct{}

// Index holds the seen identifiers and hashes of one content source
type Index struct {
	ids        map[models.MediaKind]set
	hashes     map[models.MediaKind]set
	duplicates uint64
	log        *slog.Logger
}

// RehydrateReport summarizes one directory scan
type RehydrateReport struct {
	Hashes      int
	Identifiers int
	Skipped     int
}

// NewIndex creates an empty index
func NewIndex(log *slog.Logger) *Index {
	idx := &Index{
		ids:    make(map[models.MediaKind]set, len(models.Kinds)),
		hashes: make(map[models.MediaKind]set, len(models.Kinds)),
		log:    logger.Or(log),
	}
	for _, k := range models.Kinds {
		idx.ids[k] = set{}
		idx.hashes[k] = set{}
	}
	return idx
}

// IsIdentifierSeen reports whether a catalog identifier was marked for kind
func (x *Index) IsIdentifierSeen(id string, kind models.MediaKind) bool {
	return x.ids[kind].has(id)
}

// MarkIdentifierSeen records a catalog identifier. Unknown kinds are not tracked.
func (x *Index) MarkIdentifierSeen(id string, kind models.MediaKind) {
	if s, ok := x.ids[kind]; ok && id != "" {
		s[id] = struct{}{}
	}
}

// IsHashSeen reports whether a content hash was marked for kind
func (x *Index) IsHashSeen(hash string, kind models.MediaKind) bool {
	return x.hashes[kind].has(hash)
}

// MarkHashSeen records a content hash. Unknown kinds are not tracked.
func (x *Index) MarkHashSeen(hash string, kind models.MediaKind) {
	if s, ok := x.hashes[kind]; ok && hash != "" {
		s[hash] = struct{}{}
	}
}

// IsContentSeen is IsHashSeen for a ContentHash
func (x *Index) IsContentSeen(h models.ContentHash) bool {
	return x.IsHashSeen(h.Value, h.Kind)
}

// MarkContentSeen is MarkHashSeen for a ContentHash
func (x *Index) MarkContentSeen(h models.ContentHash) {
	x.MarkHashSeen(h.Value, h.Kind)
}

// RecordDuplicate counts one skipped duplicate
func (x *Index) RecordDuplicate() {
	x.duplicates++
}

// DuplicateCount returns the number of duplicates recorded
func (x *Index) DuplicateCount() uint64 {
	return x.duplicates
}

// TrackedCount returns the total number of identifiers and hashes held
func (x *Index) TrackedCount() int {
	n := 0
	for _, k := range models.Kinds {
		n += len(x.ids[k]) + len(x.hashes[k])
	}
	return n
}

// RehydrateFromDirectory marks the identity of every regular file directly
// inside dir. The hash is always recovered when the name carries one; the
// catalog identifier is recovered as well when present. Unfinished
// downloads, files of unknown kind and undecodable names are skipped. A missing directory is not an
// error.
func (x *Index) RehydrateFromDirectory(dir string) (RehydrateReport, error) {
	var report RehydrateReport

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return report, nil
		}
		return report, fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		name := entry.Name()
		if naming.IsPartial(name) {
			x.log.Debug("skipping unfinished download", "dir", dir, "file", name)
			report.Skipped++
			continue
		}
		kind := models.KindFromExtension(filepath.Ext(name))
		if kind == models.KindUnknown {
			report.Skipped++
			continue
		}

		decoded, err := naming.Decode(name)
		if err != nil {
			x.log.Debug("skipping file without identity", "dir", dir, "file", name, "error", err)
			report.Skipped++
			continue
		}

		if decoded.Hash != "" {
			x.MarkHashSeen(decoded.Hash, kind)
			report.Hashes++
		}
		if decoded.CatalogID != "" {
			x.MarkIdentifierSeen(decoded.CatalogID, kind)
			report.Identifiers++
		}
	}

	return report, nil
}

func (s set) has(key string) bool {
	if s == nil {
		return false
	}
	_, ok := s[key]
	return ok
}
