package tts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"golang.org/x/sync/errgroup"

	"github.com/needahmed/needText2Audio/internal/config"
	"github.com/needahmed/needText2Audio/internal/core"
	"github.com/needahmed/needText2Audio/internal/tts/audio"
	"github.com/needahmed/needText2Audio/internal/tts/text"
)

const (
	// HealthCheckTimeout defines the timeout for health check operations.
	HealthCheckTimeout = 10 * time.Second

	// cleanupTimeout bounds the best-effort artifact deletion that runs
	// after a job, detached from the job context so a cancelled job still
	// gets its artifacts removed.
	cleanupTimeout = 30 * time.Second
)

// Input validation errors, reported before any remote call.
var (
	// ErrTextEmpty indicates the input is empty after normalization.
	ErrTextEmpty = errors.New("text cannot be empty")

	// ErrTextTooLong indicates the input exceeds the configured maximum.
	ErrTextTooLong = errors.New("text exceeds the configured maximum length")
)

// ChunkError reports that the remote synthesis call for one chunk failed,
// aborting the whole job. Index is 1-based.
type ChunkError struct {
	Index int
	Total int
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d/%d synthesis failed: %v", e.Index, e.Total, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}

// FetchError reports that one synthesized artifact could not be retrieved or
// decoded, aborting the combine step.
type FetchError struct {
	Ref string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching audio %q failed: %v", e.Ref, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Job describes one chunked synthesis invocation. Zero-valued fields fall
// back to the configured defaults; OnProgress may be nil.
type Job struct {
	Text       string
	Voice      string
	Speed      float64
	UseGPU     bool
	ChunkSize  int
	OnProgress core.ProgressFunc
}

// Result is the combined output of a successful job. WAV holds the complete
// encoded container, ready for playback or download. Tokens collects the
// per-chunk phonetic-token strings in chunk order (empty entries omitted).
type Result struct {
	WAV        []byte
	SampleRate int
	Channels   int
	Frames     int
	Chunks     int
	Tokens     []string
}

// Duration returns the playback length of the combined audio in seconds.
func (r *Result) Duration() float64 {
	if r.SampleRate <= 0 {
		return 0
	}

	return float64(r.Frames) / float64(r.SampleRate)
}

// Engine orchestrates the chunked synthesis pipeline: segmentation,
// strictly-ordered per-chunk remote synthesis, concurrent fetch-and-decode,
// concatenation into a single WAV, and best-effort artifact cleanup.
type Engine struct {
	synth core.Synthesizer
	cfg   *config.Config
	log   *logger.Logger
}

// NewEngine creates an engine backed by an HTTP client for the configured
// Kokoro TTS API.
func NewEngine(cfg *config.Config, log *logger.Logger) *Engine {
	timeout := time.Duration(cfg.Kokoro.TimeoutSeconds) * time.Second
	client := NewHTTPClient(cfg.Kokoro.ServiceURL(), timeout)

	return NewEngineWithSynthesizer(cfg, log, client)
}

// NewEngineWithSynthesizer creates an engine with a custom synthesizer.
// Tests use it to inject fakes while keeping the engine behavior intact.
func NewEngineWithSynthesizer(
	cfg *config.Config,
	log *logger.Logger,
	synth core.Synthesizer,
) *Engine {
	return &Engine{
		synth: synth,
		cfg:   cfg,
		log:   log,
	}
}

// Synthesize runs one complete job: validate, segment, synthesize each chunk
// in order, fetch and decode the clips, and stitch them into a single WAV.
// Any chunk or fetch failure aborts the job with no partial result; the
// artifacts already created on the server are deleted best-effort in every
// outcome.
func (e *Engine) Synthesize(ctx context.Context, job Job) (result *Result, err error) {
	chunks, jobErr := e.prepareChunks(job)
	if jobErr != nil {
		return nil, jobErr
	}

	tracker := newProgressTracker(job.OnProgress, 2*len(chunks)+1)
	tracker.begin()

	var artifacts []string

	defer func() {
		e.cleanupArtifacts(artifacts)
	}()

	synthesized, synthErr := e.synthesizeChunks(ctx, job, chunks, &artifacts, tracker)
	if synthErr != nil {
		return nil, synthErr
	}

	buffers, fetchErr := e.fetchAndDecode(ctx, synthesized, tracker)
	if fetchErr != nil {
		return nil, fetchErr
	}

	combined, skipped, combineErr := audio.Concat(buffers)
	if combineErr != nil {
		return nil, fmt.Errorf("failed to combine audio: %w", combineErr)
	}

	for _, index := range skipped {
		e.log.Warn(
			"Skipping chunk %d audio: format differs from first chunk (%d ch @ %d Hz)",
			index+1, combined.Channels, combined.SampleRate,
		)
	}

	wav, encodeErr := audio.EncodeWAV(combined)
	if encodeErr != nil {
		return nil, fmt.Errorf("failed to encode combined audio: %w", encodeErr)
	}

	tracker.finish()

	tokens := make([]string, 0, len(synthesized))
	for _, item := range synthesized {
		if item.Tokens != "" {
			tokens = append(tokens, item.Tokens)
		}
	}

	return &Result{
		WAV:        wav,
		SampleRate: combined.SampleRate,
		Channels:   combined.Channels,
		Frames:     combined.FrameCount(),
		Chunks:     len(chunks),
		Tokens:     tokens,
	}, nil
}

// HealthCheck verifies the remote service before a job when the configured
// synthesizer supports it.
func (e *Engine) HealthCheck(ctx context.Context) error {
	checker, ok := e.synth.(interface{ HealthCheck(context.Context) error })
	if !ok {
		return nil
	}

	healthCtx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()

	err := checker.HealthCheck(healthCtx)
	if err != nil {
		return fmt.Errorf("TTS service health check failed: %w", err)
	}

	return nil
}

// prepareChunks validates the job input and segments it, applying configured
// defaults. Validation failures are reported before any remote call.
func (e *Engine) prepareChunks(job Job) ([]string, error) {
	normalized := text.Normalize(job.Text)
	if normalized == "" {
		return nil, ErrTextEmpty
	}

	if len(normalized) > e.cfg.Kokoro.MaxTextLength {
		return nil, fmt.Errorf(
			"%w: %d characters, maximum %d",
			ErrTextTooLong, len(normalized), e.cfg.Kokoro.MaxTextLength)
	}

	chunkSize := job.ChunkSize
	if chunkSize <= 0 {
		chunkSize = e.cfg.Kokoro.ChunkSize
	}

	return text.Segment(normalized, chunkSize), nil
}

// synthesizeChunks runs the strictly sequential per-chunk synthesis loop.
// Chunk i+1 is not started before chunk i's call resolved: output order
// depends on it. Every confirmed artifact reference is appended to
// *artifacts so cleanup covers exactly the artifacts that exist.
func (e *Engine) synthesizeChunks(
	ctx context.Context,
	job Job,
	chunks []string,
	artifacts *[]string,
	tracker *progressTracker,
) ([]core.SynthesisResult, error) {
	voice := job.Voice
	if voice == "" {
		voice = e.cfg.Kokoro.DefaultVoice
	}

	speed := clampSpeed(job.Speed, e.cfg.Kokoro.Speed)

	results := make([]core.SynthesisResult, 0, len(chunks))

	for i, chunk := range chunks {
		e.log.Info("Synthesizing chunk %d/%d (%d chars)", i+1, len(chunks), len(chunk))

		result, err := e.synth.Synthesize(ctx, core.SynthesisRequest{
			Text:   chunk,
			Voice:  voice,
			Speed:  speed,
			UseGPU: job.UseGPU,
		})
		if err != nil {
			return nil, &ChunkError{Index: i + 1, Total: len(chunks), Err: err}
		}

		*artifacts = append(*artifacts, result.AudioRef)

		results = append(results, result)
		tracker.step()
	}

	return results, nil
}

// fetchAndDecode retrieves and decodes every chunk's audio concurrently.
// Buffers land in an index-keyed slice so concatenation order matches chunk
// order regardless of which fetch finishes first.
func (e *Engine) fetchAndDecode(
	ctx context.Context,
	synthesized []core.SynthesisResult,
	tracker *progressTracker,
) ([]*audio.Buffer, error) {
	buffers := make([]*audio.Buffer, len(synthesized))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.cfg.Kokoro.FetchWorkers)

	for i, item := range synthesized {
		group.Go(func() error {
			data, fetchErr := e.synth.FetchAudio(groupCtx, item.AudioRef)
			if fetchErr != nil {
				return &FetchError{Ref: item.AudioRef, Err: fetchErr}
			}

			buffer, decodeErr := audio.DecodeWAV(data)
			if decodeErr != nil {
				return &FetchError{Ref: item.AudioRef, Err: decodeErr}
			}

			buffers[i] = buffer
			tracker.step()

			return nil
		})
	}

	err := group.Wait()
	if err != nil {
		return nil, err
	}

	return buffers, nil
}

// cleanupArtifacts issues a best-effort delete for every artifact created
// during the job. Failures are logged and swallowed: cleanup is advisory and
// never part of the job's success or failure.
func (e *Engine) cleanupArtifacts(artifacts []string) {
	if len(artifacts) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	for _, ref := range artifacts {
		deleteErr := e.synth.DeleteAudio(ctx, ref)
		if deleteErr != nil {
			e.log.Warn("Failed to delete chunk artifact %q: %v", ref, deleteErr)
		}
	}
}

// clampSpeed applies the configured default for an unset speed and clamps
// the result to the range the remote service accepts.
func clampSpeed(speed, fallback float64) float64 {
	if speed == 0 {
		speed = fallback
	}

	if speed < config.MinSpeed {
		return config.MinSpeed
	}

	if speed > config.MaxSpeed {
		return config.MaxSpeed
	}

	return speed
}

// progressTracker turns completed pipeline steps into monotonically
// non-decreasing fraction callbacks. Synthesis and decode steps may report
// from different goroutines, so updates are serialized.
type progressTracker struct {
	mu        sync.Mutex
	report    core.ProgressFunc
	completed int
	total     int
	last      float64
}

func newProgressTracker(report core.ProgressFunc, total int) *progressTracker {
	return &progressTracker{
		mu:        sync.Mutex{},
		report:    report,
		completed: 0,
		total:     total,
		last:      0,
	}
}

// begin reports the initial zero fraction.
func (p *progressTracker) begin() {
	if p.report == nil {
		return
	}

	p.report(0)
}

// step marks one pipeline step complete.
func (p *progressTracker) step() {
	if p.report == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.completed++

	fraction := float64(p.completed) / float64(p.total)
	if fraction > p.last {
		p.last = fraction
		p.report(fraction)
	}
}

// finish reports completion.
func (p *progressTracker) finish() {
	if p.report == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.last < 1 {
		p.last = 1
		p.report(1)
	}
}
