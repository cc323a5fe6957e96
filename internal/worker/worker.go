// Package worker provides a NATS worker that turns text-processed events
// into synthesized audio chunks.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/needahmed/needText2Audio/internal/config"
	"github.com/needahmed/needText2Audio/internal/core"
	"github.com/needahmed/needText2Audio/internal/tts"
)

// jobTimeout bounds one event's full pipeline run, including every remote
// synthesis call for a long text.
const jobTimeout = 5 * time.Minute

// ErrTextKeyEmpty indicates that the event carries no text object key.
var ErrTextKeyEmpty = errors.New("text key cannot be empty")

// SynthesisEngine is the part of the pipeline engine the worker drives.
type SynthesisEngine interface {
	Synthesize(ctx context.Context, job tts.Job) (*tts.Result, error)
}

// NatsWorker listens for text-processed events on a NATS subject, runs the
// chunked synthesis pipeline for each, and replies with an
// AudioChunkCreatedEvent pointing at the uploaded WAV.
type NatsWorker struct {
	natsConnection   *nats.Conn
	jetstreamContext nats.JetStreamContext
	subject          string
	textStore        core.ObjectStore
	audioStore       core.ObjectStore
	engine           SynthesisEngine
	cfg              *config.Config
	log              *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker. Text payloads are
// read from textStore; finished WAV files are written to audioStore. Speed
// and GPU use come from the service configuration; the event chooses the
// voice.
func NewNatsWorker(
	natsConnection *nats.Conn,
	jetstreamContext nats.JetStreamContext,
	subject string,
	textStore core.ObjectStore,
	audioStore core.ObjectStore,
	engine SynthesisEngine,
	cfg *config.Config,
	log *logger.Logger,
) (*NatsWorker, error) {
	return &NatsWorker{
		natsConnection:   natsConnection,
		jetstreamContext: jetstreamContext,
		subject:          subject,
		textStore:        textStore,
		audioStore:       audioStore,
		engine:           engine,
		cfg:              cfg,
		log:              log,
	}, nil
}

// Run starts the worker and begins listening for messages.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	event, err := w.parseAndValidateEvent(msg)
	if err != nil {
		w.log.Error("Failed to parse and validate event: %v", err)

		return
	}

	audioKey, processErr := w.processSynthesisJob(ctx, event)
	if processErr != nil {
		w.log.Error(
			"Failed to process synthesis job for workflow %s: %v",
			event.Header.WorkflowID, processErr)

		return
	}

	replyEvent := &events.AudioChunkCreatedEvent{
		Header:     event.Header,
		AudioKey:   audioKey,
		PageNumber: event.PageNumber,
		TotalPages: event.TotalPages,
	}

	err = w.publishReplyEvent(msg, replyEvent)
	if err != nil {
		w.log.Error(
			"Failed to publish reply event for workflow %s: %v",
			event.Header.WorkflowID, err)
	}
}

// processSynthesisJob downloads the text payload, runs the chunked pipeline,
// and uploads the combined WAV under a fresh key.
func (w *NatsWorker) processSynthesisJob(
	ctx context.Context,
	event *events.TextProcessedEvent,
) (string, error) {
	textData, err := w.textStore.Download(ctx, event.TextKey)
	if err != nil {
		return "", fmt.Errorf("failed to download text data for key '%s': %w", event.TextKey, err)
	}

	result, err := w.engine.Synthesize(ctx, tts.Job{
		Text:       string(textData),
		Voice:      event.Voice,
		Speed:      w.cfg.Kokoro.Speed,
		UseGPU:     w.cfg.Kokoro.UseGPU,
		ChunkSize:  0,
		OnProgress: nil,
	})
	if err != nil {
		return "", fmt.Errorf("failed to synthesize text: %w", err)
	}

	w.log.Info(
		"Synthesized %d chunks (%.1fs audio) for workflow %s",
		result.Chunks, result.Duration(), event.Header.WorkflowID)

	audioKey := uuid.NewString() + ".wav"

	err = w.audioStore.Upload(ctx, audioKey, result.WAV)
	if err != nil {
		return "", fmt.Errorf("failed to upload audio data for key '%s': %w", audioKey, err)
	}

	// The text payload is consumed; retire it best-effort. A failed delete
	// leaves a stale object behind but never fails the job.
	deleteErr := w.textStore.Delete(ctx, event.TextKey)
	if deleteErr != nil {
		w.log.Warn("Failed to delete consumed text object '%s': %v", event.TextKey, deleteErr)
	}

	return audioKey, nil
}

// publishReplyEvent marshals and responds with the AudioChunkCreatedEvent.
func (w *NatsWorker) publishReplyEvent(msg *nats.Msg, replyEvent *events.AudioChunkCreatedEvent) error {
	replyData, err := json.Marshal(replyEvent)
	if err != nil {
		return fmt.Errorf("failed to marshal reply event: %w", err)
	}

	err = msg.Respond(replyData)
	if err != nil {
		return fmt.Errorf("failed to publish reply event: %w", err)
	}

	return nil
}

func (w *NatsWorker) parseAndValidateEvent(msg *nats.Msg) (*events.TextProcessedEvent, error) {
	var event events.TextProcessedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	if event.TextKey == "" {
		return nil, ErrTextKeyEmpty
	}

	return &event, nil
}
