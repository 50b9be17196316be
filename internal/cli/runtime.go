package cli

import (
	"fmt"
	"log/slog"

	"mediamirror/internal/config"
	"mediamirror/internal/hashing"
	"mediamirror/internal/hls"
	"mediamirror/internal/logger"
	"mediamirror/internal/platform"
	"mediamirror/internal/retrieval"
	"mediamirror/internal/transport"
	"mediamirror/pkg/models"
)

// runtime is the component graph built from one configuration
type runtime struct {
	config    *models.Config
	manager   *config.Manager
	log       *slog.Logger
	fetcher   *transport.Fetcher
	hasher    *hashing.Hasher
	assembler *hls.Assembler
}

func (a *App) loadConfig() (*config.Manager, *models.Config, error) {
	manager, err := config.NewManager(a.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	cfg := manager.Get()
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	logger.InitWriter(a.stderr, cfg.Log.Level, cfg.Log.Format)
	return manager, cfg, nil
}

func (a *App) newRuntime() (*runtime, error) {
	manager, cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	cfg.Download.Directory = manager.DownloadDir()

	hasher, err := hashing.NewHasher(cfg.Download.Digest)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	log := logger.L
	fetcher := transport.NewFetcher(cfg.Platform.UserAgent, cfg.Platform.AuthorizationToken)

	return &runtime{
		config:    cfg,
		manager:   manager,
		log:       log,
		fetcher:   fetcher,
		hasher:    hasher,
		assembler: hls.NewAssembler(fetcher, newMuxer(cfg.Download), cfg.Download.SegmentConcurrency, log),
	}, nil
}

func newMuxer(dl models.DownloadConfig) hls.Muxer {
	if dl.MuxTool == models.MuxToolConcat {
		return hls.ConcatMuxer{}
	}
	return hls.NewFFmpegMuxer(dl.FFmpegPath)
}

// orchestrator wires the listings of the configured mode into a retrieval
// orchestrator
func (rt *runtime) orchestrator() (*retrieval.Orchestrator, error) {
	client, err := platform.NewClient(rt.config.Platform.BaseURL, rt.fetcher, rt.config.Download.IncludePreviews, rt.log)
	if err != nil {
		return nil, err
	}
	phases, err := client.Phases(rt.config.Platform.Mode, rt.config.Platform.PostID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return retrieval.NewPhased(phases, rt.fetcher, rt.assembler, rt.hasher, retrieval.OptionsFromConfig(rt.config), rt.log)
}

func (rt *runtime) layout() retrieval.Layout {
	return retrieval.Layout{
		Root:             rt.config.Download.Directory,
		UseFolderSuffix:  rt.config.Download.UseFolderSuffix,
		SeparatePreviews: rt.config.Download.SeparatePreviews,
	}
}
