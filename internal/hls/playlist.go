// Package hls resolves HLS manifests and assembles their segments into a
// single local file.
package hls

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/grafov/m3u8"
)

// Rendition is one variant of a master playlist
type Rendition struct {
	Bandwidth uint32
	URI       string
}

// Segment is one media chunk, numbered by its position in the playlist
type Segment struct {
	Sequence uint32
	URI      string
}

// Manifest is a parsed playlist. Exactly one of Renditions or Segments is
// set, depending on whether the document was a master or a media playlist.
type Manifest struct {
	Renditions []Rendition
	Segments   []Segment
}

// IsMaster reports whether the manifest lists renditions
func (m *Manifest) IsMaster() bool {
	return len(m.Renditions) > 0
}

// ParseManifest parses playlist text fetched from baseURL. Relative URIs are
// resolved against baseURL.
func ParseManifest(baseURL, text string) (*Manifest, error) {
	if !strings.HasPrefix(strings.TrimSpace(text), "#EXTM3U") {
		return nil, &PlaylistError{URL: baseURL, Err: fmt.Errorf("missing #EXTM3U header")}
	}

	playlist, listType, err := m3u8.DecodeFrom(strings.NewReader(text), false)
	if err != nil {
		return nil, &PlaylistError{URL: baseURL, Err: err}
	}

	manifest := &Manifest{}
	switch listType {
	case m3u8.MASTER:
		master := playlist.(*m3u8.MasterPlaylist)
		for _, v := range master.Variants {
			if v == nil || v.URI == "" {
				continue
			}
			uri, err := ResolveURL(baseURL, v.URI)
			if err != nil {
				return nil, &PlaylistError{URL: baseURL, Err: err}
			}
			manifest.Renditions = append(manifest.Renditions, Rendition{Bandwidth: v.Bandwidth, URI: uri})
		}
		if len(manifest.Renditions) == 0 {
			return nil, &PlaylistError{URL: baseURL, Err: ErrNoRenditions}
		}
	case m3u8.MEDIA:
		media := playlist.(*m3u8.MediaPlaylist)
		// Segments is a ring buffer padded with nil entries
		for _, s := range media.Segments {
			if s == nil {
				break
			}
			uri, err := ResolveURL(baseURL, s.URI)
			if err != nil {
				return nil, &PlaylistError{URL: baseURL, Err: err}
			}
			manifest.Segments = append(manifest.Segments, Segment{
				Sequence: uint32(len(manifest.Segments)),
				URI:      uri,
			})
		}
		if len(manifest.Segments) == 0 {
			return nil, &PlaylistError{URL: baseURL, Err: ErrNoSegments}
		}
	default:
		return nil, &PlaylistError{URL: baseURL, Err: fmt.Errorf("unrecognized playlist type")}
	}

	return manifest, nil
}

// SelectRendition returns the rendition with the highest bandwidth. Ties go
// to the one listed first.
func SelectRendition(renditions []Rendition) (Rendition, bool) {
	if len(renditions) == 0 {
		return Rendition{}, false
	}
	best := renditions[0]
	for _, r := range renditions[1:] {
		if r.Bandwidth > best.Bandwidth {
			best = r
		}
	}
	return best, true
}

// ResolveURL resolves ref against base. Absolute references are returned
// unchanged.
func ResolveURL(base, ref string) (string, error) {
	refURL, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("invalid reference %q: %w", ref, err)
	}
	if refURL.IsAbs() {
		return refURL.String(), nil
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base %q: %w", base, err)
	}
	return baseURL.ResolveReference(refURL).String(), nil
}
