package models

import "time"

// LibraryEntry is one materialized file recovered from disk
type LibraryEntry struct {
	Source    string    `json:"source"`
	CatalogID string    `json:"catalogId"`
	Kind      MediaKind `json:"kind"`
	IsPreview bool      `json:"isPreview"`
	Hash      string    `json:"hash,omitempty"`
	FileName  string    `json:"fileName"`
	RelPath   string    `json:"path"`
	Size      int64     `json:"size"`
	Modified  time.Time `json:"modified"`
}
