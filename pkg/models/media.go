package models

import (
	"net/url"
	"strings"
	"time"
)

// MediaKind represents the broad type of a media item
type MediaKind int

const (
	KindUnknown MediaKind = iota
	KindImage
	KindVideo
	KindAudio
)

// MarshalText renders the kind by name
func (k MediaKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name; unrecognized names yield KindUnknown
func (k *MediaKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "image":
		*k = KindImage
	case "video":
		*k = KindVideo
	case "audio":
		*k = KindAudio
	default:
		*k = KindUnknown
	}
	return nil
}

func (k MediaKind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// FolderName returns the directory name items of this kind are stored under
func (k MediaKind) FolderName() string {
	switch k {
	case KindImage:
		return "Pictures"
	case KindVideo:
		return "Videos"
	case KindAudio:
		return "Audio"
	default:
		return "Other"
	}
}

// Kinds lists the kinds that carry dedup state
var Kinds = []MediaKind{KindImage, KindVideo, KindAudio}

// KindFromMIME derives a MediaKind from a MIME type string.
// HLS manifests (application/vnd.apple.mpegurl, audio/mpegurl) are video.
func KindFromMIME(mime string) MediaKind {
	mime = strings.ToLower(strings.TrimSpace(mime))
	switch {
	case strings.Contains(mime, "mpegurl"):
		return KindVideo
	case strings.HasPrefix(mime, "image"):
		return KindImage
	case strings.HasPrefix(mime, "video"):
		return KindVideo
	case strings.HasPrefix(mime, "audio"):
		return KindAudio
	default:
		return KindUnknown
	}
}

// KindFromExtension derives a MediaKind from a file extension, with or
// without the leading dot
func KindFromExtension(ext string) MediaKind {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "jpg", "jpeg", "png", "gif", "webp":
		return KindImage
	case "mp4", "webm", "mov", "ts":
		return KindVideo
	case "mp3", "m4a", "ogg", "wav":
		return KindAudio
	default:
		return KindUnknown
	}
}

// ItemIdentity identifies one catalog item
type ItemIdentity struct {
	CatalogID string    `json:"catalogId"`
	Kind      MediaKind `json:"kind"`
	IsPreview bool      `json:"isPreview"`
}

// ContentHash is an identity hash computed from file bytes
type ContentHash struct {
	Value string    `json:"value"`
	Kind  MediaKind `json:"kind"`
}

// IsZero reports whether no hash value is present
func (h ContentHash) IsZero() bool {
	return h.Value == ""
}

// CatalogItem is one entry of a catalog page
type CatalogItem struct {
	ID string `json:"id"`
}

// CatalogPage is one page of a paginated source listing
type CatalogPage struct {
	Items []CatalogItem `json:"items"`
	// NextCursor is optional; when empty the last item's ID is the cursor
	NextCursor string `json:"nextCursor,omitempty"`
	// Final marks the last page of a listing; no further page is fetched
	Final bool `json:"final,omitempty"`
	// Advance marks a page without items whose NextCursor still moves on.
	// Such a page is not counted as empty.
	Advance bool `json:"advance,omitempty"`
}

// Descriptor is a resolved, downloadable item
type Descriptor struct {
	ID          string            `json:"id"`
	Kind        MediaKind         `json:"kind"`
	MIME        string            `json:"mimetype"`
	IsPreview   bool              `json:"isPreview"`
	CreatedAt   int64             `json:"createdAt"`
	DownloadURL string            `json:"downloadUrl"`
	Extension   string            `json:"extension"`
	Width       int               `json:"width,omitempty"`
	Height      int               `json:"height,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Identity returns the item identity of the descriptor
func (d Descriptor) Identity() ItemIdentity {
	return ItemIdentity{CatalogID: d.ID, Kind: d.Kind, IsPreview: d.IsPreview}
}

// IsSegmented reports whether the item is delivered as an HLS stream
func (d Descriptor) IsSegmented() bool {
	if strings.Contains(strings.ToLower(d.MIME), "mpegurl") {
		return true
	}
	path := d.DownloadURL
	if u, err := url.Parse(d.DownloadURL); err == nil {
		path = u.Path
	}
	return strings.Contains(strings.ToLower(path), ".m3u8")
}

// EffectiveExtension returns the extension the materialized file will carry
func (d Descriptor) EffectiveExtension() string {
	if d.IsSegmented() {
		return "mp4"
	}
	if d.Extension == "" {
		return "bin"
	}
	return d.Extension
}

// CreatedTime converts CreatedAt to a time. Values below 1e12 are treated
// as seconds, larger ones as milliseconds.
func (d Descriptor) CreatedTime() time.Time {
	return TimeFromEpoch(d.CreatedAt)
}

// TimeFromEpoch converts a platform timestamp in seconds or milliseconds
func TimeFromEpoch(ts int64) time.Time {
	if ts < 1_000_000_000_000 {
		return time.Unix(ts, 0).UTC()
	}
	return time.UnixMilli(ts).UTC()
}
