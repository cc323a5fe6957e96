// Package core defines the core business logic and interfaces for the
// chunked text-to-speech pipeline.
package core

import "context"

// SynthesisRequest holds the parameters for one remote synthesis call.
// The parameters are fixed for the whole job; only Text differs per chunk.
type SynthesisRequest struct {
	Text  string
	Voice string
	Speed float64
	// UseGPU asks the remote service to run inference on the GPU. The
	// service silently falls back to CPU when no GPU is available.
	UseGPU bool
}

// SynthesisResult is the outcome of one remote synthesis call. AudioRef is a
// server-side reference to the generated artifact; it stays valid until an
// explicit delete. Tokens is the optional phonetic-token string the service
// produced alongside the audio.
type SynthesisResult struct {
	AudioRef string
	Tokens   string
}

// Voice describes one entry of the remote service's voice catalogue.
type Voice struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Language    string `json:"language"`
	Gender      string `json:"gender"`
	Description string `json:"description,omitempty"`
}

// Synthesizer defines the contract of the remote speech synthesis service.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (SynthesisResult, error)
	FetchAudio(ctx context.Context, audioRef string) ([]byte, error)
	DeleteAudio(ctx context.Context, audioRef string) error
}

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// ProgressFunc receives the fraction of a synthesis job completed so far,
// in [0, 1]. Implementations must tolerate being called from the goroutine
// running the job; values are monotonically non-decreasing within one job.
type ProgressFunc func(fraction float64)
