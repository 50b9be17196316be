package library

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediamirror/internal/naming"
	"mediamirror/internal/retrieval"
	"mediamirror/pkg/models"
)

func newLayout(t *testing.T) retrieval.Layout {
	return retrieval.Layout{Root: t.TempDir(), UseFolderSuffix: true, SeparatePreviews: true}
}

func writeItem(t *testing.T, l retrieval.Layout, source string, kind models.MediaKind, preview bool, n naming.Name, data string, mod time.Time) string {
	t.Helper()
	sourceDir, err := l.SourceDir(source)
	require.NoError(t, err)
	dir := l.KindDir(sourceDir, kind, preview)
	require.NoError(t, os.MkdirAll(dir, 0755))

	path := filepath.Join(dir, naming.Encode(n))
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	require.NoError(t, os.Chtimes(path, mod, mod))
	return path
}

func TestScanAndList(t *testing.T) {
	l := newLayout(t)
	m := NewManager(l)
	base := time.Unix(1700000000, 0)

	writeItem(t, l, "alice", models.KindImage, false,
		naming.Name{CreatedAt: base, CatalogID: "101", Hash: "abc", Extension: "jpg"}, "img", base)
	writeItem(t, l, "alice", models.KindVideo, true,
		naming.Name{CreatedAt: base, CatalogID: "102", IsPreview: true, Hash: "def", Extension: "mp4"}, "video!", base.Add(time.Hour))

	count, err := m.Scan("alice")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	entries, err := m.ListEntries("alice")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// most recent first
	assert.Equal(t, "102", entries[0].CatalogID)
	assert.True(t, entries[0].IsPreview)
	assert.Equal(t, models.KindVideo, entries[0].Kind)
	assert.Equal(t, "def", entries[0].Hash)
	assert.Equal(t, "alice_mirror/Videos/Previews/"+entries[0].FileName, entries[0].RelPath)

	assert.Equal(t, "101", entries[1].CatalogID)
	assert.Equal(t, models.KindImage, entries[1].Kind)
	assert.Equal(t, int64(3), entries[1].Size)

	assert.Equal(t, int64(9), m.GetSize("alice"))
	counts := m.Counts("alice")
	assert.Equal(t, 1, counts[models.KindImage])
	assert.Equal(t, 1, counts[models.KindVideo])
	assert.Equal(t, 0, counts[models.KindAudio])
}

func TestScanSkipsPartialAndForeignFiles(t *testing.T) {
	l := newLayout(t)
	m := NewManager(l)
	base := time.Unix(1700000000, 0)

	path := writeItem(t, l, "alice", models.KindVideo, false,
		naming.Name{CreatedAt: base, CatalogID: "201", Extension: "mp4"}, "x", base)
	dir := filepath.Dir(path)

	require.NoError(t, os.WriteFile(path+".part", []byte("partial"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "holiday.mp4"), []byte("foreign"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("text"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".m3u8_temp_x"), 0755))

	count, err := m.Scan("alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestScanUnknownSource(t *testing.T) {
	m := NewManager(newLayout(t))

	_, err := m.Scan("nobody")
	assert.ErrorIs(t, err, ErrSourceNotFound)

	_, err = m.Scan("..")
	assert.Error(t, err)

	_, err = m.ListEntries("nobody")
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestGetEntry(t *testing.T) {
	l := newLayout(t)
	m := NewManager(l)
	base := time.Unix(1700000000, 0)

	path := writeItem(t, l, "alice", models.KindAudio, false,
		naming.Name{CreatedAt: base, CatalogID: "301", Hash: "aa", Extension: "mp3"}, "song", base)
	_, err := m.Scan("alice")
	require.NoError(t, err)

	entry, err := m.GetEntry("alice", "301")
	require.NoError(t, err)
	assert.Equal(t, models.KindAudio, entry.Kind)

	got, err := m.GetFilePath("alice", "301")
	require.NoError(t, err)
	assert.Equal(t, path, got)

	_, err = m.GetEntry("alice", "999")
	assert.ErrorIs(t, err, ErrEntryNotFound)
	_, err = m.GetFilePath("alice", "999")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestListEntriesReturnsCopies(t *testing.T) {
	l := newLayout(t)
	m := NewManager(l)
	base := time.Unix(1700000000, 0)

	writeItem(t, l, "alice", models.KindImage, false,
		naming.Name{CreatedAt: base, CatalogID: "401", Extension: "png"}, "p", base)
	_, err := m.Scan("alice")
	require.NoError(t, err)

	entries, err := m.ListEntries("alice")
	require.NoError(t, err)
	entries[0].CatalogID = "tampered"

	_, err = m.GetEntry("alice", "401")
	assert.NoError(t, err)
}

func TestRescanReplacesEntries(t *testing.T) {
	l := newLayout(t)
	m := NewManager(l)
	base := time.Unix(1700000000, 0)

	path := writeItem(t, l, "alice", models.KindImage, false,
		naming.Name{CreatedAt: base, CatalogID: "501", Extension: "png"}, "p", base)
	_, err := m.Scan("alice")
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	count, err := m.Scan("alice")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	entries, err := m.ListEntries("alice")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
