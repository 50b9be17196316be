// Package library indexes the files already materialized under the
// download root so they can be listed and served.
package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"mediamirror/internal/naming"
	"mediamirror/internal/retrieval"
	"mediamirror/pkg/models"
)

var (
	ErrEntryNotFound  = errors.New("library entry not found")
	ErrSourceNotFound = errors.New("source not found")
)

// Manager holds the scanned entries of every source
type Manager struct {
	mu      sync.RWMutex
	layout  retrieval.Layout
	entries map[string][]*models.LibraryEntry
}

// NewManager creates a new library manager over layout.Root
func NewManager(layout retrieval.Layout) *Manager {
	return &Manager{
		layout:  layout,
		entries: make(map[string][]*models.LibraryEntry),
	}
}

// Root returns the download root
func (m *Manager) Root() string {
	return m.layout.Root
}

// Scan rebuilds the entries of one source from disk and returns how many
// files carry a recoverable identity
func (m *Manager) Scan(source string) (int, error) {
	sourceDir, err := m.layout.SourceDir(source)
	if err != nil {
		return 0, err
	}
	if _, err := os.Stat(sourceDir); err != nil {
		if os.IsNotExist(err) {
			return 0, ErrSourceNotFound
		}
		return 0, fmt.Errorf("failed to stat source directory: %w", err)
	}

	var found []*models.LibraryEntry
	for _, dir := range m.layout.Dirs(sourceDir) {
		entries, err := scanDir(m.layout.Root, source, dir)
		if err != nil {
			return 0, err
		}
		found = append(found, entries...)
	}

	sort.Slice(found, func(i, j int) bool {
		return found[i].Modified.After(found[j].Modified)
	})

	m.mu.Lock()
	m.entries[source] = found
	m.mu.Unlock()

	return len(found), nil
}

func scanDir(root, source, dir string) ([]*models.LibraryEntry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var out []*models.LibraryEntry
	for _, de := range dirEntries {
		if !de.Type().IsRegular() {
			continue
		}
		name := de.Name()
		kind := models.KindFromExtension(filepath.Ext(name))
		if kind == models.KindUnknown || naming.IsPartial(name) {
			continue
		}
		decoded, err := naming.Decode(name)
		if err != nil {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}

		full := filepath.Join(dir, name)
		rel, err := filepath.Rel(root, full)
		if err != nil {
			rel = full
		}
		out = append(out, &models.LibraryEntry{
			Source:    source,
			CatalogID: decoded.CatalogID,
			Kind:      kind,
			IsPreview: decoded.IsPreview,
			Hash:      decoded.Hash,
			FileName:  name,
			RelPath:   filepath.ToSlash(rel),
			Size:      info.Size(),
			Modified:  info.ModTime(),
		})
	}
	return out, nil
}

// ListEntries returns copies of a source's entries, most recent first
func (m *Manager) ListEntries(source string) ([]*models.LibraryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries, ok := m.entries[source]
	if !ok {
		return nil, ErrSourceNotFound
	}

	out := make([]*models.LibraryEntry, 0, len(entries))
	for _, e := range entries {
		entryCopy := *e
		out = append(out, &entryCopy)
	}
	return out, nil
}

// GetEntry retrieves the entry of a catalog identifier
func (m *Manager) GetEntry(source, catalogID string) (*models.LibraryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.entries[source] {
		if e.CatalogID == catalogID {
			entryCopy := *e
			return &entryCopy, nil
		}
	}
	return nil, ErrEntryNotFound
}

// GetFilePath returns the absolute path of a catalog identifier's file
func (m *Manager) GetFilePath(source, catalogID string) (string, error) {
	entry, err := m.GetEntry(source, catalogID)
	if err != nil {
		return "", err
	}
	return filepath.Join(m.layout.Root, filepath.FromSlash(entry.RelPath)), nil
}

// GetSize returns the total size of a source's scanned files
func (m *Manager) GetSize(source string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total int64
	for _, e := range m.entries[source] {
		total += e.Size
	}
	return total
}

// Counts returns the number of scanned entries per kind for a source
func (m *Manager) Counts(source string) map[models.MediaKind]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[models.MediaKind]int, len(models.Kinds))
	for _, e := range m.entries[source] {
		counts[e.Kind]++
	}
	return counts
}
