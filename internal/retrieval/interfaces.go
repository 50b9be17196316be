// Package retrieval drives paginated catalog retrieval for one or more
// content sources and materializes every novel item exactly once.
package retrieval

import (
	"context"
	"io"

	"mediamirror/pkg/models"
)

// Catalog lists and resolves the items of a content source
type Catalog interface {
	FetchPage(ctx context.Context, sourceID, cursor string) (models.CatalogPage, error)
	Resolve(ctx context.Context, ids []string) ([]models.Descriptor, error)
}

// Fetcher downloads raw bytes or text
type Fetcher interface {
	Stream(ctx context.Context, url string) (io.ReadCloser, error)
	Text(ctx context.Context, url string) (string, error)
}

// Hasher computes the identity hash of a materialized file
type Hasher interface {
	Compute(path string, kind models.MediaKind) (models.ContentHash, error)
}

// Assembler reconstructs a segmented stream into one file
type Assembler interface {
	Assemble(ctx context.Context, playlistURL, outputPath string) (string, error)
	Extension() string
}
