package retrieval

import (
	"errors"
	"fmt"
)

var (
	ErrNoSources     = errors.New("no sources configured")
	ErrNoCatalog     = errors.New("catalog is required")
	ErrInvalidRoot   = errors.New("download directory is required")
	ErrSourceRunning = errors.New("source is already running")
)

// SourceFetchError reports a catalog failure that ends a source's run
type SourceFetchError struct {
	SourceID string
	Op       string
	Cursor   string
	Err      error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("source %s: failed to %s at cursor %q: %v", e.SourceID, e.Op, e.Cursor, e.Err)
}

func (e *SourceFetchError) Unwrap() error {
	return e.Err
}
