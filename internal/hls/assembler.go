package hls

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"mediamirror/internal/logger"
)

const (
	// DefaultConcurrency is the number of segments fetched at once
	DefaultConcurrency = 4
	// MaxPlaylistDepth bounds master to master indirection
	MaxPlaylistDepth = 3

	tempDirPrefix  = ".m3u8_temp_"
	segmentPrefix  = "segment_"
	segmentPattern = segmentPrefix + "%05d.ts"
)

// Fetcher is the transport used to download playlists and segments
type Fetcher interface {
	Stream(ctx context.Context, url string) (io.ReadCloser, error)
	Text(ctx context.Context, url string) (string, error)
}

// Assembler turns an HLS playlist into one local media file
type Assembler struct {
	fetcher     Fetcher
	muxer       Muxer
	concurrency int
	log         *slog.Logger
}

// NewAssembler creates a new assembler. A concurrency below 1 uses
// DefaultConcurrency.
func NewAssembler(fetcher Fetcher, muxer Muxer, concurrency int, log *slog.Logger) *Assembler {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Assembler{
		fetcher:     fetcher,
		muxer:       muxer,
		concurrency: concurrency,
		log:         logger.Or(log).With("component", "hls"),
	}
}

// Extension returns the extension of files produced by Assemble
func (a *Assembler) Extension() string {
	return a.muxer.Extension()
}

// OutputPath returns outputPath with its extension replaced by the muxer's
func (a *Assembler) OutputPath(outputPath string) string {
	return strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + "." + a.muxer.Extension()
}

// Assemble resolves playlistURL down to a media playlist, downloads every
// segment and muxes them into outputPath. The returned path carries the
// muxer's extension.
func (a *Assembler) Assemble(ctx context.Context, playlistURL, outputPath string) (string, error) {
	segments, err := a.Resolve(ctx, playlistURL)
	if err != nil {
		return "", err
	}

	output := a.OutputPath(outputPath)
	tempDir := filepath.Join(filepath.Dir(output), tempDirPrefix+uuid.NewString())
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			a.log.Warn("failed to remove temp directory", "dir", tempDir, "error", err)
		}
	}()

	paths, err := a.fetchSegments(ctx, segments, tempDir)
	if err != nil {
		return "", err
	}
	sortSegmentPaths(paths)

	a.log.Debug("muxing segments", "count", len(paths), "tool", a.muxer.Name(), "output", output)
	if err := a.muxer.Mux(ctx, paths, output); err != nil {
		os.Remove(output)
		return "", err
	}

	return output, nil
}

// Resolve follows master playlists and returns the segments of the selected
// media playlist
func (a *Assembler) Resolve(ctx context.Context, playlistURL string) ([]Segment, error) {
	return a.resolve(ctx, playlistURL, 0)
}

func (a *Assembler) resolve(ctx context.Context, playlistURL string, depth int) ([]Segment, error) {
	if depth >= MaxPlaylistDepth {
		return nil, &PlaylistError{URL: playlistURL, Err: fmt.Errorf("nested deeper than %d playlists", MaxPlaylistDepth)}
	}

	text, err := a.fetcher.Text(ctx, playlistURL)
	if err != nil {
		return nil, &PlaylistError{URL: playlistURL, Err: err}
	}

	manifest, err := ParseManifest(playlistURL, text)
	if err != nil {
		return nil, err
	}

	if manifest.IsMaster() {
		best, _ := SelectRendition(manifest.Renditions)
		a.log.Debug("selected rendition", "bandwidth", best.Bandwidth, "uri", best.URI)
		return a.resolve(ctx, best.URI, depth+1)
	}

	return manifest.Segments, nil
}

func (a *Assembler) fetchSegments(ctx context.Context, segments []Segment, dir string) ([]string, error) {
	if len(segments) == 0 {
		return nil, ErrNoSegments
	}

	var (
		mu    sync.Mutex
		paths = make([]string, 0, len(segments))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for _, seg := range segments {
		g.Go(func() error {
			path := filepath.Join(dir, fmt.Sprintf(segmentPattern, seg.Sequence))
			if err := a.fetchSegment(gctx, seg.URI, path); err != nil {
				return &SegmentFetchError{Sequence: seg.Sequence, URL: seg.URI, Err: err}
			}
			mu.Lock()
			paths = append(paths, path)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return paths, nil
}

func (a *Assembler) fetchSegment(ctx context.Context, url, path string) error {
	body, err := a.fetcher.Stream(ctx, url)
	if err != nil {
		return err
	}
	defer body.Close()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// sortSegmentPaths orders segment files by the index encoded in their names
func sortSegmentPaths(paths []string) {
	sort.SliceStable(paths, func(i, j int) bool {
		return segmentIndex(paths[i]) < segmentIndex(paths[j])
	})
}

func segmentIndex(path string) int {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	n, err := strconv.Atoi(strings.TrimPrefix(name, segmentPrefix))
	if err != nil {
		return -1
	}
	return n
}
