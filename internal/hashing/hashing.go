// Package hashing computes content identity hashes for materialized files.
//
// Images get a perceptual hash, MP4-family videos a digest over their
// structural boxes with metadata boxes left out, everything else a plain
// digest of the whole file. The result depends only on file bytes.
package hashing

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"

	"github.com/zeebo/blake3"

	"mediamirror/pkg/models"
)

var (
	ErrUnknownDigest = errors.New("unknown digest algorithm")
	ErrNotContainer  = errors.New("not a parseable media container")
)

// HashError reports a failure to compute the identity hash of one file
type HashError struct {
	Path string
	Kind models.MediaKind
	Err  error
}

func (e *HashError) Error() string {
	return fmt.Sprintf("failed to hash %s file %s: %v", e.Kind, e.Path, e.Err)
}

func (e *HashError) Unwrap() error {
	return e.Err
}

// Hasher computes identity hashes using a configured digest
type Hasher struct {
	digest    string
	newDigest func() hash.Hash
}

// NewHasher creates a hasher for the named digest ("md5" or "blake3").
// An empty name selects md5, which matches names written by earlier runs.
func NewHasher(digest string) (*Hasher, error) {
	switch digest {
	case "", models.DigestMD5:
		return &Hasher{digest: models.DigestMD5, newDigest: md5.New}, nil
	case models.DigestBlake3:
		return &Hasher{digest: models.DigestBlake3, newDigest: func() hash.Hash { return blake3.New() }}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDigest, digest)
	}
}

var defaultHasher = &Hasher{digest: models.DigestMD5, newDigest: md5.New}

// Default returns the md5-backed hasher
func Default() *Hasher {
	return defaultHasher
}

// Compute hashes path with the default hasher
func Compute(path string, kind models.MediaKind) (models.ContentHash, error) {
	return defaultHasher.Compute(path, kind)
}

// Digest returns the digest algorithm name
func (h *Hasher) Digest() string {
	return h.digest
}

// Compute returns the identity hash of the file at path for the given kind
func (h *Hasher) Compute(path string, kind models.MediaKind) (models.ContentHash, error) {
	var (
		value string
		err   error
	)

	switch kind {
	case models.KindImage:
		value, err = imageHash(path)
	case models.KindVideo:
		value, err = h.videoHash(path)
	default:
		value, err = h.fileDigest(path)
	}
	if err != nil {
		return models.ContentHash{}, &HashError{Path: path, Kind: kind, Err: err}
	}

	return models.ContentHash{Value: value, Kind: kind}, nil
}

func encode(d hash.Hash) string {
	return hex.EncodeToString(d.Sum(nil))
}
