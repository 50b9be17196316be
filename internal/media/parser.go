// Package media converts platform media records into download descriptors.
package media

import (
	"net/url"
	"path"
	"strings"

	"mediamirror/pkg/models"
)

const maxExtensionLen = 10

var mimeExtensions = map[string]string{
	"image/jpeg":                    "jpg",
	"image/png":                     "png",
	"image/gif":                     "gif",
	"image/webp":                    "webp",
	"video/mp4":                     "mp4",
	"video/webm":                    "webm",
	"video/quicktime":               "mov",
	"application/vnd.apple.mpegurl": "mp4",
	"audio/mpeg":                    "mp3",
	"audio/mp4":                     "m4a",
	"audio/ogg":                     "ogg",
	"audio/wav":                     "wav",
}

// Parse builds a descriptor for the best available rendition of m.
// Records with access yield the full media; otherwise the preview is used
// when includePreviews is set. ok is false when nothing is downloadable.
func Parse(m AccountMedia, includePreviews bool) (d models.Descriptor, ok bool) {
	var (
		details   *Details
		isPreview bool
	)
	switch {
	case m.Access && m.Media != nil:
		details = m.Media
	case !m.Access && includePreviews && m.Preview != nil:
		details, isPreview = m.Preview, true
	default:
		return models.Descriptor{}, false
	}

	best, ok := selectBestVariant(details)
	if !ok {
		return models.Descriptor{}, false
	}

	return models.Descriptor{
		ID:          m.ID,
		Kind:        models.KindFromMIME(best.mime),
		MIME:        best.mime,
		IsPreview:   isPreview,
		CreatedAt:   details.CreatedAt,
		DownloadURL: best.url,
		Extension:   Extension(best.url, best.mime),
		Width:       best.width,
		Height:      best.height,
		Metadata:    best.metadata,
	}, true
}

type variantChoice struct {
	url           string
	mime          string
	width, height int
	metadata      map[string]string
}

func (v variantChoice) resolution() int64 {
	return int64(v.width) * int64(v.height)
}

// selectBestVariant starts from the default location and upgrades to any
// variant of the same base type with a strictly larger area
func selectBestVariant(d *Details) (variantChoice, bool) {
	best := variantChoice{mime: d.MIME, width: d.Width, height: d.Height}
	if len(d.Locations) > 0 {
		best.url = d.Locations[0].Location
		best.metadata = d.Locations[0].Metadata
	}

	for _, v := range d.Variants {
		if baseType(v.MIME) != baseType(best.mime) || len(v.Locations) == 0 {
			continue
		}
		candidate := variantChoice{
			url:      v.Locations[0].Location,
			mime:     v.MIME,
			width:    v.Width,
			height:   v.Height,
			metadata: v.Locations[0].Metadata,
		}
		if candidate.resolution() > best.resolution() {
			best = candidate
		}
	}

	return best, best.url != ""
}

func baseType(mime string) string {
	base, _, _ := strings.Cut(mime, "/")
	return base
}

// Extension returns the file extension for a download, taken from the URL
// path when it looks like one and from the MIME type otherwise
func Extension(rawURL, mime string) string {
	if ext, ok := extensionFromURL(rawURL); ok {
		return ext
	}
	return ExtensionForMIME(mime)
}

// ExtensionForMIME maps a MIME type to an extension, "bin" when unknown
func ExtensionForMIME(mime string) string {
	if ext, ok := mimeExtensions[strings.ToLower(strings.TrimSpace(mime))]; ok {
		return ext
	}
	return "bin"
}

func extensionFromURL(rawURL string) (string, bool) {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	} else if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		p = rawURL[:i]
	}

	ext := strings.TrimPrefix(path.Ext(p), ".")
	if ext == "" || len(ext) > maxExtensionLen {
		return "", false
	}
	for _, c := range ext {
		if !isASCIIAlnum(c) {
			return "", false
		}
	}
	return strings.ToLower(ext), true
}

func isASCIIAlnum(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// MediaIDs lists the media identifiers referenced by a page: direct records
// first, then bundle members, without duplicates and in order
func MediaIDs(records []AccountMedia, bundles []Bundle) []string {
	seen := make(map[string]struct{}, len(records))
	ids := make([]string, 0, len(records))
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	for _, r := range records {
		add(r.ID)
	}
	for _, b := range bundles {
		for _, id := range b.AccountMediaIDs {
			add(id)
		}
	}
	return ids
}
