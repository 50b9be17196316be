// Package naming encodes item identity into filenames and recovers it again.
//
// Layout (version "hash2"):
//
//	{timestamp}_{id|preview_id}_{catalog id}[_hash2_{hash}].{ext}
//
// The timestamp is UTC formatted as 2006-01-02T15-04-05. Older runs wrote
// "_hash1_" and "_hash_" markers; those are still understood when decoding.
package naming

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"mediamirror/pkg/models"
)

// Version is the marker written in front of the content hash.
const Version = "hash2"

// TimestampLayout is the time format used for the leading field.
const TimestampLayout = "2006-01-02T15-04-05"

const (
	idTag      = "id"
	previewTag = "preview"
)

// PartMarker tags a download that has not been moved into place yet.
// It is appended to the name ("x.mp3.part") or put before the extension
// ("x.part.mp4").
const PartMarker = ".part"

// hashMarkers in decode priority order
var hashMarkers = []string{"_hash2_", "_hash1_", "_hash_"}

var (
	ErrInvalidIdentity = errors.New("no identity recoverable from filename")
)

// Name is the information a filename carries
type Name struct {
	CreatedAt time.Time
	IsPreview bool
	CatalogID string
	Hash      string
	Extension string
}

// Decoded is what could be recovered from an existing filename
type Decoded struct {
	Kind      models.MediaKind
	CatalogID string
	Hash      string
	IsPreview bool
}

// NameFor builds the Name for a descriptor, without a hash
func NameFor(d models.Descriptor) Name {
	return Name{
		CreatedAt: d.CreatedTime(),
		IsPreview: d.IsPreview,
		CatalogID: d.ID,
		Extension: d.EffectiveExtension(),
	}
}

// Encode renders n as a filename
func Encode(n Name) string {
	tag := idTag
	if n.IsPreview {
		tag = previewTag + "_" + idTag
	}

	var b strings.Builder
	b.WriteString(n.CreatedAt.UTC().Format(TimestampLayout))
	b.WriteByte('_')
	b.WriteString(tag)
	b.WriteByte('_')
	b.WriteString(Sanitize(n.CatalogID))
	if n.Hash != "" {
		b.WriteString("_" + Version + "_")
		b.WriteString(Sanitize(n.Hash))
	}
	if ext := strings.TrimPrefix(n.Extension, "."); ext != "" {
		b.WriteByte('.')
		b.WriteString(ext)
	}
	return b.String()
}

// ExtractHash returns the hash embedded in filename, if any
func ExtractHash(filename string) (string, bool) {
	for _, m := range hashMarkers {
		pos := strings.Index(filename, m)
		if pos < 0 {
			continue
		}
		rest := filename[pos+len(m):]
		if dot := strings.IndexByte(rest, '.'); dot >= 0 {
			rest = rest[:dot]
		}
		if rest == "" {
			return "", false
		}
		return rest, true
	}
	return "", false
}

// ExtractCatalogID returns the catalog identifier embedded in filename.
// The current layout is tried first; otherwise the last all-digit field
// longer than five characters directly before the extension is used.
func ExtractCatalogID(filename string) (id string, preview bool, ok bool) {
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	if pos := markerIndex(stem); pos >= 0 {
		stem = stem[:pos]
	}

	fields := strings.Split(stem, "_")
	for i := 1; i < len(fields)-1; i++ {
		if fields[i] != idTag {
			continue
		}
		rest := strings.Join(fields[i+1:], "_")
		if rest == "" {
			break
		}
		return rest, fields[i-1] == previewTag, true
	}

	// Legacy names: find a long numeric token that ends at the extension
	if len(fields) < 3 || ext == "" {
		return "", false, false
	}
	last := fields[len(fields)-1]
	if len(last) > 5 && isDigits(last) {
		return last, strings.Contains(stem, previewTag+"_"+idTag), true
	}
	return "", false, false
}

// Decode recovers identity from a filename. It never panics; names that
// carry neither a hash nor an identifier yield ErrInvalidIdentity.
func Decode(filename string) (Decoded, error) {
	base := filepath.Base(filename)
	out := Decoded{Kind: models.KindFromExtension(filepath.Ext(base))}

	if h, ok := ExtractHash(base); ok {
		out.Hash = h
	}
	if id, preview, ok := ExtractCatalogID(base); ok {
		out.CatalogID = id
		out.IsPreview = preview
	}
	if out.Hash == "" && out.CatalogID == "" {
		return out, fmt.Errorf("%w: %s", ErrInvalidIdentity, base)
	}
	return out, nil
}

// Sanitize replaces characters that are not allowed in filenames
func Sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if unicode.IsControl(r) {
			return '_'
		}
		return r
	}, name)
}

// IsPartial reports whether filename is an unfinished download
func IsPartial(filename string) bool {
	return strings.HasSuffix(filename, PartMarker) || strings.Contains(filename, PartMarker+".")
}

// SafeComponent sanitizes a directory name and rejects traversal attempts
func SafeComponent(name string) (string, error) {
	clean := Sanitize(strings.TrimSpace(name))
	if clean == "" || clean == "." || clean == ".." || strings.Contains(clean, "..") {
		return "", fmt.Errorf("invalid path component %q", name)
	}
	return clean, nil
}

func markerIndex(s string) int {
	for _, m := range hashMarkers {
		if pos := strings.Index(s, m); pos >= 0 {
			return pos
		}
	}
	return -1
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
