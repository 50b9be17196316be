package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"mediamirror/pkg/models"
)

// TokenEnv overrides the platform authorization token when set
const TokenEnv = "MEDIAMIRROR_TOKEN"

var (
	ErrInvalidPort        = errors.New("invalid port: must be between 1 and 65535")
	ErrInvalidBatchSize   = errors.New("invalid batch size: must be between 1 and 1000")
	ErrInvalidPercent     = errors.New("invalid duplicate percent: must be between 0 and 1")
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be between 1 and 64")
	ErrInvalidDigest      = errors.New("invalid digest: must be md5 or blake3")
	ErrInvalidMuxTool     = errors.New("invalid mux tool: must be ffmpeg or concat")
	ErrInvalidRetries     = errors.New("invalid empty page retries: must be non-negative")
	ErrInvalidMode        = errors.New("invalid mode: must be normal, timeline, messages, single or collection")
)

// Manager handles configuration loading, saving, and updates
type Manager struct {
	mu         sync.RWMutex
	config     *models.Config
	configPath string
	// token comes from TokenEnv and is never written back to disk
	token string
}

// NewManager creates a new configuration manager
// If the config file doesn't exist, it creates one with default values
func NewManager(configPath string) (*Manager, error) {
	manager := &Manager{
		configPath: configPath,
		config:     models.DefaultConfig(),
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := manager.load(); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	} else {
		configDir := filepath.Dir(configPath)
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}

		if err := manager.Save(); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
	}

	manager.token = os.Getenv(TokenEnv)

	if err := Validate(manager.config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return manager, nil
}

// Path returns the configuration file path
func (m *Manager) Path() string {
	return m.configPath
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *models.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg := *m.config
	cfg.Platform.Sources = append([]string(nil), m.config.Platform.Sources...)
	if m.token != "" {
		cfg.Platform.AuthorizationToken = m.token
	}
	return &cfg
}

// Update applies a function to the configuration and saves it
func (m *Manager) Update(fn func(*models.Config)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := *m.config
	next.Platform.Sources = append([]string(nil), m.config.Platform.Sources...)
	fn(&next)

	if err := Validate(&next); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	m.config = &next
	return m.save()
}

// Save writes the current configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.save()
}

// DownloadDir returns the configured download directory. An empty setting
// resolves to a "downloads" folder next to the config file.
func (m *Manager) DownloadDir() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if dir := m.config.Download.Directory; dir != "" {
		return dir
	}
	return filepath.Join(filepath.Dir(m.configPath), "downloads")
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// load reads configuration from disk. Keys missing from the file keep
// their default values.
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := models.DefaultConfig()
	if isYAML(m.configPath) {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config YAML: %w", err)
		}
	} else {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("failed to parse config TOML: %w", err)
		}
	}

	m.config = mergeWithDefaults(cfg)
	return nil
}

// save writes configuration to disk (must be called with lock held)
func (m *Manager) save() error {
	var (
		data []byte
		err  error
	)
	if isYAML(m.configPath) {
		data, err = yaml.Marshal(m.config)
	} else {
		var buf bytes.Buffer
		err = toml.NewEncoder(&buf).Encode(m.config)
		data = buf.Bytes()
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// mergeWithDefaults fills in defaults for values explicitly left empty
func mergeWithDefaults(cfg *models.Config) *models.Config {
	defaults := models.DefaultConfig()

	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaults.Log.Format
	}
	if cfg.Download.MuxTool == "" {
		cfg.Download.MuxTool = defaults.Download.MuxTool
	}
	if cfg.Download.FFmpegPath == "" {
		cfg.Download.FFmpegPath = defaults.Download.FFmpegPath
	}
	if cfg.Download.SegmentConcurrency == 0 {
		cfg.Download.SegmentConcurrency = defaults.Download.SegmentConcurrency
	}
	if cfg.Download.Digest == "" {
		cfg.Download.Digest = defaults.Download.Digest
	}
	if cfg.Retrieval.BatchSize == 0 {
		cfg.Retrieval.BatchSize = defaults.Retrieval.BatchSize
	}
	if cfg.Retrieval.SourceConcurrency == 0 {
		cfg.Retrieval.SourceConcurrency = defaults.Retrieval.SourceConcurrency
	}
	if cfg.Platform.UserAgent == "" {
		cfg.Platform.UserAgent = defaults.Platform.UserAgent
	}
	if cfg.Platform.Mode == "" {
		cfg.Platform.Mode = defaults.Platform.Mode
	}
	if cfg.Platform.Sources == nil {
		cfg.Platform.Sources = defaults.Platform.Sources
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}

	return cfg
}

// Validate checks if the configuration is valid
func Validate(cfg *models.Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return ErrInvalidPort
	}

	if cfg.Retrieval.BatchSize < 1 || cfg.Retrieval.BatchSize > 1000 {
		return ErrInvalidBatchSize
	}

	if cfg.Retrieval.EmptyPageRetries < 0 {
		return ErrInvalidRetries
	}

	if cfg.Retrieval.DuplicatePercent < 0 || cfg.Retrieval.DuplicatePercent > 1 {
		return ErrInvalidPercent
	}

	if !inRange(cfg.Retrieval.SourceConcurrency, 1, 64) || !inRange(cfg.Download.SegmentConcurrency, 1, 64) {
		return ErrInvalidConcurrency
	}

	switch cfg.Download.Digest {
	case models.DigestMD5, models.DigestBlake3:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDigest, cfg.Download.Digest)
	}

	switch cfg.Download.MuxTool {
	case models.MuxToolFFmpeg, models.MuxToolConcat:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMuxTool, cfg.Download.MuxTool)
	}

	if !models.ValidMode(cfg.Platform.Mode) {
		return fmt.Errorf("%w: %q", ErrInvalidMode, cfg.Platform.Mode)
	}

	return nil
}

func inRange(v, lo, hi int) bool {
	return v >= lo && v <= hi
}

// GetDataDir returns the application data directory
func GetDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		dataDir := filepath.Join(dir, "mediamirror")
		os.MkdirAll(dataDir, 0755)
		return dataDir
	}

	if home, err := os.UserHomeDir(); err == nil {
		dataDir := filepath.Join(home, ".mediamirror")
		os.MkdirAll(dataDir, 0755)
		return dataDir
	}

	return "."
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() string {
	return filepath.Join(GetDataDir(), "config.toml")
}
