package hls

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Muxer joins ordered segment files into one output file
type Muxer interface {
	// Name identifies the tool in logs and errors
	Name() string
	// Extension is the extension of the output container, without a dot
	Extension() string
	Mux(ctx context.Context, segments []string, output string) error
}

// FFmpegMuxer concatenates segments with the ffmpeg concat demuxer and
// stream copy
type FFmpegMuxer struct {
	path string
}

// NewFFmpegMuxer creates a muxer invoking the ffmpeg binary at path.
// An empty path looks ffmpeg up on PATH.
func NewFFmpegMuxer(path string) *FFmpegMuxer {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpegMuxer{path: path}
}

func (m *FFmpegMuxer) Name() string      { return "ffmpeg" }
func (m *FFmpegMuxer) Extension() string { return "mp4" }

// Mux writes a concat list next to the first segment and runs ffmpeg on it
func (m *FFmpegMuxer) Mux(ctx context.Context, segments []string, output string) error {
	if len(segments) == 0 {
		return ErrNoSegments
	}

	listPath := filepath.Join(filepath.Dir(segments[0]), "concat.txt")
	if err := writeConcatList(listPath, segments); err != nil {
		return &MuxError{Tool: m.Name(), Err: err}
	}

	cmd := exec.CommandContext(ctx, m.path,
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "concat", "-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-f", "mp4",
		output,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return &MuxError{Tool: m.Name(), NotFound: true, Err: fmt.Errorf("%w: %v", ErrMuxToolNotFound, err)}
		}
		return &MuxError{Tool: m.Name(), Err: err, Output: strings.TrimSpace(string(out))}
	}
	return nil
}

func writeConcatList(path string, segments []string) error {
	var buf bytes.Buffer
	for _, seg := range segments {
		abs, err := filepath.Abs(seg)
		if err != nil {
			return err
		}
		// concat list quoting: close the quote, escape, reopen
		fmt.Fprintf(&buf, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// ConcatMuxer appends raw segment bytes in order. MPEG-TS segments remain
// playable when joined this way, so the output keeps the .ts extension.
type ConcatMuxer struct{}

func (ConcatMuxer) Name() string      { return "concat" }
func (ConcatMuxer) Extension() string { return "ts" }

func (c ConcatMuxer) Mux(ctx context.Context, segments []string, output string) error {
	if len(segments) == 0 {
		return ErrNoSegments
	}

	out, err := os.Create(output)
	if err != nil {
		return &MuxError{Tool: c.Name(), Err: err}
	}

	for _, seg := range segments {
		if err := ctx.Err(); err != nil {
			out.Close()
			return err
		}
		if err := appendFile(out, seg); err != nil {
			out.Close()
			return &MuxError{Tool: c.Name(), Err: err}
		}
	}

	if err := out.Close(); err != nil {
		return &MuxError{Tool: c.Name(), Err: err}
	}
	return nil
}

func appendFile(dst io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(dst, f)
	return err
}
