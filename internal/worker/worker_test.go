// Package worker_test tests the NATS worker for the synthesis pipeline.
package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/needahmed/needText2Audio/internal/config"
	"github.com/needahmed/needText2Audio/internal/tts"
	"github.com/needahmed/needText2Audio/internal/worker"
)

var (
	errMockDownload  = errors.New("mock download error")
	errMockUpload    = errors.New("mock upload error")
	errMockDelete    = errors.New("mock delete error")
	errMockSynthesis = errors.New("mock synthesis error")
)

// mockObjectStore is a mock implementation of the ObjectStore interface.
type mockObjectStore struct {
	downloadShouldFail bool
	uploadShouldFail   bool
	deleteShouldFail   bool
	downloadedKey      string
	uploadedKey        string
	uploadedData       []byte
	deletedKey         string
}

func (m *mockObjectStore) Download(_ context.Context, key string) ([]byte, error) {
	if m.downloadShouldFail {
		return nil, errMockDownload
	}

	m.downloadedKey = key

	return []byte("The quick brown fox jumps over the lazy dog."), nil
}

func (m *mockObjectStore) Upload(_ context.Context, key string, data []byte) error {
	if m.uploadShouldFail {
		return errMockUpload
	}

	m.uploadedKey = key
	m.uploadedData = data

	return nil
}

func (m *mockObjectStore) Delete(_ context.Context, key string) error {
	m.deletedKey = key

	if m.deleteShouldFail {
		return errMockDelete
	}

	return nil
}

// mockEngine is a mock implementation of the SynthesisEngine interface.
type mockEngine struct {
	synthesizeShouldFail bool
	job                  tts.Job
}

func (m *mockEngine) Synthesize(_ context.Context, job tts.Job) (*tts.Result, error) {
	if m.synthesizeShouldFail {
		return nil, errMockSynthesis
	}

	m.job = job

	return &tts.Result{
		WAV:        []byte("sample audio"),
		SampleRate: 24000,
		Channels:   1,
		Frames:     24000,
		Chunks:     1,
		Tokens:     nil,
	}, nil
}

func workerConfig() *config.Config {
	return &config.Config{
		Kokoro: config.KokoroConfig{
			Host:           "localhost",
			Port:           8880,
			TimeoutSeconds: 30,
			MaxTextLength:  25000,
			ChunkSize:      2500,
			DefaultVoice:   "af_heart",
			Speed:          1.0,
			UseGPU:         true,
			FetchWorkers:   4,
		},
		NATS: config.NATSConfig{
			URL:                    "",
			TTSJobsSubject:         "test_subject",
			AudioObjectStoreBucket: "audio",
			TextObjectStoreBucket:  "text",
		},
		Paths: config.PathsConfig{},
	}
}

func createTestNatsClient(t *testing.T) (*nats.Conn, func()) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	opts.JetStream = true
	server := test.RunServer(&opts)

	natsConnection, err := nats.Connect(server.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	cleanup := func() {
		server.Shutdown()
		natsConnection.Close()
	}

	return natsConnection, cleanup
}

func setupTest(t *testing.T) (
	*worker.NatsWorker,
	*mockObjectStore,
	*mockObjectStore,
	*mockEngine,
	context.Context,
	context.CancelFunc,
	*nats.Conn,
) {
	t.Helper()

	textStore := &mockObjectStore{
		downloadShouldFail: false,
		uploadShouldFail:   false,
		deleteShouldFail:   false,
		downloadedKey:      "",
		uploadedKey:        "",
		uploadedData:       nil,
		deletedKey:         "",
	}
	audioStore := &mockObjectStore{
		downloadShouldFail: false,
		uploadShouldFail:   false,
		deleteShouldFail:   false,
		downloadedKey:      "",
		uploadedKey:        "",
		uploadedData:       nil,
		deletedKey:         "",
	}
	engine := &mockEngine{
		synthesizeShouldFail: false,
		job:                  tts.Job{},
	}

	natsConnection, natsCleanup := createTestNatsClient(t)
	t.Cleanup(natsCleanup)

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	testLogger, err := logger.New(t.TempDir(), "test-log.log")
	require.NoError(t, err)

	workerInstance, err := worker.NewNatsWorker(
		natsConnection, jetstreamContext, "test_subject",
		textStore, audioStore, engine, workerConfig(), testLogger,
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	return workerInstance, textStore, audioStore, engine, ctx, cancel, natsConnection
}

func testEvent() *events.TextProcessedEvent {
	return &events.TextProcessedEvent{
		Header: events.EventHeader{
			Timestamp:  time.Now(),
			WorkflowID: uuid.NewString(),
			EventID:    uuid.NewString(),
			UserID:     "",
			TenantID:   "",
		},
		TextKey:           "test-text-key",
		PNGKey:            "",
		PageNumber:        3,
		TotalPages:        7,
		Voice:             "bm_george",
		Seed:              0,
		NGL:               0,
		TopP:              0,
		RepetitionPenalty: 0,
		Temperature:       0,
	}
}

func TestMessageHandler_Success(t *testing.T) {
	t.Parallel()

	workerInstance, textStore, audioStore, engine, ctx, cancel, natsConnection := setupTest(t)
	defer cancel()

	errChan := make(chan error, 1)

	go func() {
		errChan <- workerInstance.Run(ctx)
	}()

	event := testEvent()

	eventData, err := json.Marshal(event)
	require.NoError(t, err)

	replyMsg, err := natsConnection.Request("test_subject", eventData, 5*time.Second)
	require.NoError(t, err, "Request should succeed and receive a reply")

	var replyEvent events.AudioChunkCreatedEvent

	err = json.Unmarshal(replyMsg.Data, &replyEvent)
	require.NoError(t, err)

	assert.Equal(t, "test-text-key", textStore.downloadedKey)

	// The consumed text payload is retired after a successful upload.
	assert.Equal(t, "test-text-key", textStore.deletedKey)

	// The event chooses the voice; speed and GPU use come from config.
	assert.Equal(t, "bm_george", engine.job.Voice)
	assert.InDelta(t, 1.0, engine.job.Speed, 0.0001)
	assert.True(t, engine.job.UseGPU)

	assert.NotEmpty(t, audioStore.uploadedKey, "An audio key should have been generated and uploaded")
	assert.True(t, strings.HasSuffix(audioStore.uploadedKey, ".wav"))
	assert.Equal(t, []byte("sample audio"), audioStore.uploadedData)

	assert.Equal(t, audioStore.uploadedKey, replyEvent.AudioKey)
	assert.Equal(t, event.Header.WorkflowID, replyEvent.Header.WorkflowID)
	assert.Equal(t, event.PageNumber, replyEvent.PageNumber)
	assert.Equal(t, event.TotalPages, replyEvent.TotalPages)

	cancel()

	shutdownErr := <-errChan
	assert.NoError(t, shutdownErr, "worker.Run should not error on graceful shutdown")
}

func TestMessageHandler_SynthesisFailure(t *testing.T) {
	t.Parallel()

	workerInstance, textStore, audioStore, engine, ctx, cancel, natsConnection := setupTest(t)
	defer cancel()

	engine.synthesizeShouldFail = true

	errChan := make(chan error, 1)

	go func() {
		errChan <- workerInstance.Run(ctx)
	}()

	eventData, err := json.Marshal(testEvent())
	require.NoError(t, err)

	// No reply is published when synthesis fails.
	_, err = natsConnection.Request("test_subject", eventData, 500*time.Millisecond)
	require.Error(t, err)

	assert.Empty(t, audioStore.uploadedKey)

	// The text payload is only retired after a successful upload.
	assert.Empty(t, textStore.deletedKey)

	cancel()

	shutdownErr := <-errChan
	assert.NoError(t, shutdownErr)
}

func TestMessageHandler_TextDeleteFailureStillReplies(t *testing.T) {
	t.Parallel()

	workerInstance, textStore, audioStore, _, ctx, cancel, natsConnection := setupTest(t)
	defer cancel()

	textStore.deleteShouldFail = true

	errChan := make(chan error, 1)

	go func() {
		errChan <- workerInstance.Run(ctx)
	}()

	eventData, err := json.Marshal(testEvent())
	require.NoError(t, err)

	// Retiring the consumed text is advisory: the reply still goes out.
	replyMsg, err := natsConnection.Request("test_subject", eventData, 5*time.Second)
	require.NoError(t, err)

	var replyEvent events.AudioChunkCreatedEvent

	err = json.Unmarshal(replyMsg.Data, &replyEvent)
	require.NoError(t, err)

	assert.Equal(t, audioStore.uploadedKey, replyEvent.AudioKey)
	assert.Equal(t, "test-text-key", textStore.deletedKey)

	cancel()

	shutdownErr := <-errChan
	assert.NoError(t, shutdownErr)
}

func TestMessageHandler_MissingTextKey(t *testing.T) {
	t.Parallel()

	workerInstance, textStore, _, _, ctx, cancel, natsConnection := setupTest(t)
	defer cancel()

	errChan := make(chan error, 1)

	go func() {
		errChan <- workerInstance.Run(ctx)
	}()

	event := testEvent()
	event.TextKey = ""

	eventData, err := json.Marshal(event)
	require.NoError(t, err)

	_, err = natsConnection.Request("test_subject", eventData, 500*time.Millisecond)
	require.Error(t, err)

	assert.Empty(t, textStore.downloadedKey)

	cancel()

	shutdownErr := <-errChan
	assert.NoError(t, shutdownErr)
}
