package models

import (
	"fmt"
	"slices"
	"time"
)

// Config represents the application configuration
type Config struct {
	Log       LogConfig       `toml:"log" yaml:"log"`
	Download  DownloadConfig  `toml:"download" yaml:"download"`
	Retrieval RetrievalConfig `toml:"retrieval" yaml:"retrieval"`
	Platform  PlatformConfig  `toml:"platform" yaml:"platform"`
	Server    ServerConfig    `toml:"server" yaml:"server"`
}

// LogConfig holds logging level and format (text or json)
type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// DownloadConfig controls where and how items are materialized
type DownloadConfig struct {
	Directory          string `toml:"directory" yaml:"directory"`
	IncludePreviews    bool   `toml:"include_previews" yaml:"include_previews"`
	SeparatePreviews   bool   `toml:"separate_previews" yaml:"separate_previews"`
	UseFolderSuffix    bool   `toml:"use_folder_suffix" yaml:"use_folder_suffix"`
	ShowDownloads      bool   `toml:"show_downloads" yaml:"show_downloads"`
	ShowSkipped        bool   `toml:"show_skipped" yaml:"show_skipped"`
	MuxTool            string `toml:"mux_tool" yaml:"mux_tool"`
	FFmpegPath         string `toml:"ffmpeg_path" yaml:"ffmpeg_path"`
	SegmentConcurrency int    `toml:"segment_concurrency" yaml:"segment_concurrency"`
	Digest             string `toml:"digest" yaml:"digest"`
}

// RetrievalConfig controls pagination, pacing and the duplicate breaker
type RetrievalConfig struct {
	BatchSize             int      `toml:"batch_size" yaml:"batch_size"`
	EmptyPageRetries      int      `toml:"empty_page_retries" yaml:"empty_page_retries"`
	EmptyPageDelay        Duration `toml:"empty_page_delay" yaml:"empty_page_delay"`
	PageInterval          Duration `toml:"page_interval" yaml:"page_interval"`
	BatchInterval         Duration `toml:"batch_interval" yaml:"batch_interval"`
	ItemInterval          Duration `toml:"item_interval" yaml:"item_interval"`
	UseDuplicateThreshold bool     `toml:"use_duplicate_threshold" yaml:"use_duplicate_threshold"`
	DuplicateFloor        uint64   `toml:"duplicate_floor" yaml:"duplicate_floor"`
	DuplicatePercent      float64  `toml:"duplicate_percent" yaml:"duplicate_percent"`
	SourceConcurrency     int      `toml:"source_concurrency" yaml:"source_concurrency"`
}

// PlatformConfig holds the catalog endpoint and the sources to retrieve
type PlatformConfig struct {
	BaseURL            string   `toml:"base_url" yaml:"base_url"`
	AuthorizationToken string   `toml:"authorization_token" yaml:"authorization_token"`
	UserAgent          string   `toml:"user_agent" yaml:"user_agent"`
	Mode               string   `toml:"mode" yaml:"mode"`
	PostID             string   `toml:"post_id" yaml:"post_id"`
	Sources            []string `toml:"sources" yaml:"sources"`
}

// ServerConfig holds the status server port
type ServerConfig struct {
	Port int `toml:"port" yaml:"port"`
}

// Mux tool names
const (
	MuxToolFFmpeg = "ffmpeg"
	MuxToolConcat = "concat"
)

// Retrieval modes select which listing of a source is walked
const (
	ModeNormal     = "normal"
	ModeTimeline   = "timeline"
	ModeMessages   = "messages"
	ModeSingle     = "single"
	ModeCollection = "collection"
)

// Modes lists every retrieval mode
var Modes = []string{ModeNormal, ModeTimeline, ModeMessages, ModeSingle, ModeCollection}

// ValidMode reports whether mode names a retrieval mode
func ValidMode(mode string) bool {
	return slices.Contains(Modes, mode)
}

// Digest names
const (
	DigestMD5    = "md5"
	DigestBlake3 = "blake3"
)

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Download: DownloadConfig{
			Directory:          "",
			IncludePreviews:    true,
			SeparatePreviews:   false,
			UseFolderSuffix:    true,
			ShowDownloads:      true,
			ShowSkipped:        true,
			MuxTool:            MuxToolFFmpeg,
			FFmpegPath:         "ffmpeg",
			SegmentConcurrency: 4,
			Digest:             DigestMD5,
		},
		Retrieval: RetrievalConfig{
			BatchSize:             150,
			EmptyPageRetries:      1,
			EmptyPageDelay:        Duration(10 * time.Second),
			PageInterval:          Duration(3 * time.Second),
			BatchInterval:         Duration(500 * time.Millisecond),
			ItemInterval:          Duration(500 * time.Millisecond),
			UseDuplicateThreshold: false,
			DuplicateFloor:        50,
			DuplicatePercent:      0.2,
			SourceConcurrency:     1,
		},
		Platform: PlatformConfig{
			BaseURL:   "",
			UserAgent: "mediamirror/0.1",
			Mode:      ModeNormal,
			Sources:   []string{},
		},
		Server: ServerConfig{
			Port: 9797,
		},
	}
}

// Duration is a time.Duration that reads and writes as a string like "10s"
type Duration time.Duration

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}
