package retrieval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"mediamirror/internal/dedup"
	"mediamirror/internal/logger"
	"mediamirror/internal/naming"
	"mediamirror/pkg/models"
)

// Outcome is what happened to one descriptor
type Outcome int

const (
	OutcomeMaterialized Outcome = iota
	OutcomeDuplicate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMaterialized:
		return "materialized"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// ItemResult describes one processed descriptor
type ItemResult struct {
	Outcome Outcome
	Path    string
	Hash    models.ContentHash
	Bytes   int64
	Reason  string
}

// materializer writes descriptors into a directory, consulting and
// updating the index of their source
type materializer struct {
	fetcher   Fetcher
	assembler Assembler
	hasher    Hasher
	index     *dedup.Index
}

// Materialize downloads d into dir unless its identifier or content hash
// is already known. The file only appears under its final name once the
// hash is checked.
func (m *materializer) Materialize(ctx context.Context, d models.Descriptor, dir string) (ItemResult, error) {
	if m.index.IsIdentifierSeen(d.ID, d.Kind) {
		return ItemResult{Outcome: OutcomeDuplicate, Reason: "identifier seen"}, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return ItemResult{}, fmt.Errorf("failed to create directory: %w", err)
	}

	name := naming.NameFor(d)
	if d.IsSegmented() && m.assembler != nil {
		name.Extension = m.assembler.Extension()
	}
	plain := filepath.Join(dir, naming.Encode(name))
	if fileExists(plain) {
		m.index.MarkIdentifierSeen(d.ID, d.Kind)
		return ItemResult{Outcome: OutcomeDuplicate, Path: plain, Reason: "file exists"}, nil
	}

	temp, err := m.download(ctx, d, plain)
	if err != nil {
		return ItemResult{}, err
	}

	hash, err := m.hasher.Compute(temp, d.Kind)
	if err != nil {
		removeStaged(ctx, temp)
		return ItemResult{}, err
	}

	if m.index.IsContentSeen(hash) {
		removeStaged(ctx, temp)
		m.index.MarkIdentifierSeen(d.ID, d.Kind)
		return ItemResult{Outcome: OutcomeDuplicate, Hash: hash, Reason: "hash seen"}, nil
	}

	// unknown kinds are untracked and keep the plain name
	final := plain
	if d.Kind != models.KindUnknown {
		name.Hash = hash.Value
		final = filepath.Join(dir, naming.Encode(name))
	}
	if fileExists(final) {
		removeStaged(ctx, temp)
		m.index.MarkIdentifierSeen(d.ID, d.Kind)
		return ItemResult{Outcome: OutcomeDuplicate, Path: final, Hash: hash, Reason: "file exists"}, nil
	}

	if err := os.Rename(temp, final); err != nil {
		removeStaged(ctx, temp)
		return ItemResult{}, fmt.Errorf("failed to move file into place: %w", err)
	}

	m.index.MarkIdentifierSeen(d.ID, d.Kind)
	m.index.MarkContentSeen(hash)

	var size int64
	if info, err := os.Stat(final); err == nil {
		size = info.Size()
	}
	return ItemResult{Outcome: OutcomeMaterialized, Path: final, Hash: hash, Bytes: size}, nil
}

// download writes d next to final under a temporary name and returns it
func (m *materializer) download(ctx context.Context, d models.Descriptor, final string) (string, error) {
	if d.IsSegmented() {
		if m.assembler == nil {
			return "", errors.New("segmented stream without assembler")
		}
		ext := filepath.Ext(final)
		temp := strings.TrimSuffix(final, ext) + naming.PartMarker + ext
		return m.assembler.Assemble(ctx, d.DownloadURL, temp)
	}

	temp := final + naming.PartMarker
	if err := m.stream(ctx, d.DownloadURL, temp); err != nil {
		removeStaged(ctx, temp)
		return "", err
	}
	return temp, nil
}

func (m *materializer) stream(ctx context.Context, url, path string) error {
	body, err := m.fetcher.Stream(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to download: %w", err)
	}
	defer body.Close()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// removeStaged deletes a temporary download, logging through the run's
// logger when the file cannot be removed
func removeStaged(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.FromContext(ctx).Warn("failed to remove staged file", "path", path, "error", err)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
