package retrieval

import (
	"time"

	"mediamirror/pkg/models"
)

// FolderSuffix is appended to source folders when UseFolderSuffix is set
const FolderSuffix = "_mirror"

// PreviewFolder holds previews when SeparatePreviews is set
const PreviewFolder = "Previews"

// Options configures retrieval runs
type Options struct {
	Root             string
	IncludePreviews  bool
	SeparatePreviews bool
	UseFolderSuffix  bool
	ShowDownloads    bool
	ShowSkipped      bool

	BatchSize         int
	EmptyPageRetries  int
	EmptyPageDelay    time.Duration
	PageInterval      time.Duration
	BatchInterval     time.Duration
	ItemInterval      time.Duration
	SourceConcurrency int

	Breaker Breaker
}

// DefaultOptions returns options matching models.DefaultConfig
func DefaultOptions() Options {
	return OptionsFromConfig(models.DefaultConfig())
}

// OptionsFromConfig extracts retrieval options from cfg
func OptionsFromConfig(cfg *models.Config) Options {
	return Options{
		Root:              cfg.Download.Directory,
		IncludePreviews:   cfg.Download.IncludePreviews,
		SeparatePreviews:  cfg.Download.SeparatePreviews,
		UseFolderSuffix:   cfg.Download.UseFolderSuffix,
		ShowDownloads:     cfg.Download.ShowDownloads,
		ShowSkipped:       cfg.Download.ShowSkipped,
		BatchSize:         cfg.Retrieval.BatchSize,
		EmptyPageRetries:  cfg.Retrieval.EmptyPageRetries,
		EmptyPageDelay:    cfg.Retrieval.EmptyPageDelay.Std(),
		PageInterval:      cfg.Retrieval.PageInterval.Std(),
		BatchInterval:     cfg.Retrieval.BatchInterval.Std(),
		ItemInterval:      cfg.Retrieval.ItemInterval.Std(),
		SourceConcurrency: cfg.Retrieval.SourceConcurrency,
		Breaker: Breaker{
			Enabled: cfg.Retrieval.UseDuplicateThreshold,
			Floor:   cfg.Retrieval.DuplicateFloor,
			Percent: cfg.Retrieval.DuplicatePercent,
		},
	}
}

func (o Options) batchSize() int {
	if o.BatchSize < 1 {
		return 150
	}
	return o.BatchSize
}

func (o Options) sourceConcurrency() int {
	if o.SourceConcurrency < 1 {
		return 1
	}
	return o.SourceConcurrency
}
