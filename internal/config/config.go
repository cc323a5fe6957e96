// Package config provides the configuration structure for needText2Audio.
package config

import (
	"errors"
	"fmt"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// Speed bounds enforced by the remote Kokoro service.
const (
	MinSpeed = 0.5
	MaxSpeed = 2.0
)

// Validation errors.
var (
	ErrChunkSizeInvalid     = errors.New("chunk_size must be greater than zero")
	ErrMaxTextLengthInvalid = errors.New("max_text_length must be at least chunk_size")
	ErrFetchWorkersInvalid  = errors.New("fetch_workers must be at least one")
	ErrSpeedOutOfRange      = errors.New("speed must be between 0.5 and 2.0")
)

// KokoroConfig holds the settings for the remote Kokoro TTS API and the
// chunked synthesis pipeline driving it.
type KokoroConfig struct {
	Host           string  `toml:"host"`
	Port           int     `toml:"port"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	MaxTextLength  int     `toml:"max_text_length"`
	ChunkSize      int     `toml:"chunk_size"`
	DefaultVoice   string  `toml:"default_voice"`
	Speed          float64 `toml:"speed"`
	UseGPU         bool    `toml:"use_gpu"`
	FetchWorkers   int     `toml:"fetch_workers"`
}

// ServiceURL returns the base URL of the Kokoro API service.
func (k *KokoroConfig) ServiceURL() string {
	return fmt.Sprintf("http://%s:%d", k.Host, k.Port)
}

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                    string `toml:"url"`
	TTSJobsSubject         string `toml:"tts_jobs_subject"`
	AudioObjectStoreBucket string `toml:"audio_object_store_bucket"`
	TextObjectStoreBucket  string `toml:"text_object_store_bucket"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
	OutputDir   string `toml:"output_dir"`
}

// Config is the root configuration structure.
type Config struct {
	Kokoro KokoroConfig `toml:"kokoro"`
	NATS   NATSConfig   `toml:"nats"`
	Paths  PathsConfig  `toml:"paths"`
}

// Validate checks the pipeline settings the rest of the system depends on.
// Load calls it; it is exported so tests and callers building a Config by
// hand can reuse it.
func (c *Config) Validate() error {
	if c.Kokoro.ChunkSize <= 0 {
		return ErrChunkSizeInvalid
	}

	if c.Kokoro.MaxTextLength < c.Kokoro.ChunkSize {
		return ErrMaxTextLengthInvalid
	}

	if c.Kokoro.FetchWorkers < 1 {
		return ErrFetchWorkersInvalid
	}

	if c.Kokoro.Speed < MinSpeed || c.Kokoro.Speed > MaxSpeed {
		return fmt.Errorf("%w: got %.2f", ErrSpeedOutOfRange, c.Kokoro.Speed)
	}

	return nil
}

// Load loads and validates the configuration for needText2Audio.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &cfg, nil
}
