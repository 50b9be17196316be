package hls

import (
	"errors"
	"fmt"
)

var (
	ErrMuxToolNotFound = errors.New("mux tool not found")
	ErrNoSegments      = errors.New("playlist has no segments")
	ErrNoRenditions    = errors.New("master playlist has no renditions")
)

// PlaylistError reports a manifest that could not be fetched, parsed or used
type PlaylistError struct {
	URL string
	Err error
}

func (e *PlaylistError) Error() string {
	return fmt.Sprintf("playlist %s: %v", e.URL, e.Err)
}

func (e *PlaylistError) Unwrap() error {
	return e.Err
}

// SegmentFetchError reports a segment that could not be downloaded
type SegmentFetchError struct {
	Sequence uint32
	URL      string
	Err      error
}

func (e *SegmentFetchError) Error() string {
	return fmt.Sprintf("failed to fetch segment %d (%s): %v", e.Sequence, e.URL, e.Err)
}

func (e *SegmentFetchError) Unwrap() error {
	return e.Err
}

// MuxError reports a failed concatenation step. Missing tools set NotFound
// and wrap ErrMuxToolNotFound.
type MuxError struct {
	Tool     string
	NotFound bool
	Output   string
	Err      error
}

func (e *MuxError) Error() string {
	if e.NotFound {
		return fmt.Sprintf("%s not found: install %s and ensure it is on PATH", e.Tool, e.Tool)
	}
	if e.Output != "" {
		return fmt.Sprintf("%s failed: %v: %s", e.Tool, e.Err, e.Output)
	}
	return fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
}

func (e *MuxError) Unwrap() error {
	return e.Err
}

// IsToolNotFound reports whether err is caused by a missing mux tool
func IsToolNotFound(err error) bool {
	return errors.Is(err, ErrMuxToolNotFound)
}
