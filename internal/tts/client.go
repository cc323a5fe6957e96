// Package tts drives chunked long-text speech synthesis against a remote
// Kokoro TTS API: it segments input text, synthesizes each chunk through the
// remote service, stitches the resulting clips into one WAV, and cleans up
// the per-chunk server artifacts afterwards.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/needahmed/needText2Audio/internal/core"
)

// API endpoints and paths.
const (
	apiTTS    = "/api/tts"
	apiVoices = "/api/voices"
	apiHealth = "/api/health"
	apiAudio  = "/api/audio"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
)

// Static errors.
var (
	ErrEmptyAudioRef = errors.New("service returned no audio reference")
	ErrEmptyAudio    = errors.New("received empty audio data")
	ErrUnhealthy     = errors.New("service reported unhealthy status")
)

// Error message formats.
const (
	errFmtServiceErrorWithCode = "TTS service error (%s): %s (code: %s)"
	errFmtServiceNonOKStatus   = "TTS service returned non-OK status: %s, body: %s"
)

// HTTPClient is a client for the remote Kokoro TTS API. It implements
// core.Synthesizer and additionally exposes the voice catalogue and the
// health endpoint.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
}

// Compile-time interface assertion.
var _ core.Synthesizer = (*HTTPClient)(nil)

// synthesisPayload is the JSON body for POST /api/tts.
type synthesisPayload struct {
	Text   string  `json:"text"`
	Voice  string  `json:"voice"`
	Speed  float64 `json:"speed"`
	UseGPU bool    `json:"use_gpu"`
}

// synthesisResponse is the JSON body returned by POST /api/tts.
type synthesisResponse struct {
	Message  string `json:"message"`
	AudioURL string `json:"audio_url"`
	Tokens   string `json:"tokens,omitempty"`
}

// voicesResponse is the JSON body returned by GET /api/voices.
type voicesResponse struct {
	Voices []core.Voice `json:"voices"`
}

// healthResponse is the JSON body returned by GET /api/health.
type healthResponse struct {
	Status        string `json:"status"`
	Service       string `json:"service"`
	Initialized   bool   `json:"initialized"`
	CUDAAvailable bool   `json:"cuda_available"`
}

// serviceError is the structured error body the service returns on failure.
type serviceError struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// NewHTTPClient creates a client for the Kokoro TTS API at baseURL
// (e.g. "http://localhost:8000"). The timeout applies to every request.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Synthesize sends one chunk of text to POST /api/tts and returns the
// server-side reference of the generated audio artifact together with the
// optional phonetic-token string. A response with no audio reference is
// treated as a failed call.
func (c *HTTPClient) Synthesize(
	ctx context.Context,
	req core.SynthesisRequest,
) (core.SynthesisResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return core.SynthesisResult{}, ErrTextEmpty
	}

	payload := synthesisPayload{
		Text:   req.Text,
		Voice:  req.Voice,
		Speed:  req.Speed,
		UseGPU: req.UseGPU,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return core.SynthesisResult{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+apiTTS,
		bytes.NewReader(body),
	)
	if err != nil {
		return core.SynthesisResult{}, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeJSON)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return core.SynthesisResult{}, fmt.Errorf(
			"failed to send request to TTS service at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return core.SynthesisResult{}, c.parseErrorResponse(resp)
	}

	var parsed synthesisResponse

	err = json.NewDecoder(resp.Body).Decode(&parsed)
	if err != nil {
		return core.SynthesisResult{}, fmt.Errorf("failed to decode response: %w", err)
	}

	if parsed.AudioURL == "" {
		return core.SynthesisResult{}, ErrEmptyAudioRef
	}

	return core.SynthesisResult{
		AudioRef: parsed.AudioURL,
		Tokens:   parsed.Tokens,
	}, nil
}

// FetchAudio downloads the raw WAV bytes of a synthesized artifact. audioRef
// is the server-relative reference returned by Synthesize
// (e.g. "/audio/<uuid>.wav").
func (c *HTTPClient) FetchAudio(ctx context.Context, audioRef string) ([]byte, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		c.resolveRef(audioRef),
		http.NoBody,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch audio %q: %w", audioRef, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(
			"failed to fetch audio %q: status %s", audioRef, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio %q: %w", audioRef, err)
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrEmptyAudio, audioRef)
	}

	return data, nil
}

// DeleteAudio asks the service to remove a synthesized artifact via
// DELETE /api/audio/{filename}. Callers treat failures as advisory.
func (c *HTTPClient) DeleteAudio(ctx context.Context, audioRef string) error {
	filename := path.Base(audioRef)

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodDelete,
		c.baseURL+apiAudio+"/"+filename,
		http.NoBody,
	)
	if err != nil {
		return fmt.Errorf("failed to create delete request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to delete audio %q: %w", audioRef, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf(
			"failed to delete audio %q: status %s", audioRef, resp.Status)
	}

	return nil
}

// Voices retrieves the service's voice catalogue.
func (c *HTTPClient) Voices(ctx context.Context) ([]core.Voice, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		c.baseURL+apiVoices,
		http.NoBody,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create voices request: %w", err)
	}

	req.Header.Set(headerAccept, contentTypeJSON)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list voices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var parsed voicesResponse

	err = json.NewDecoder(resp.Body).Decode(&parsed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode voices response: %w", err)
	}

	return parsed.Voices, nil
}

// HealthCheck verifies that the TTS service is reachable and reports itself
// healthy and initialized. Performing it before a large job fails fast with
// clear diagnostics instead of failing on the first chunk.
func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		c.baseURL+apiHealth,
		http.NoBody,
	)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf(
			"health check failed for service at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %s", resp.Status)
	}

	var parsed healthResponse

	err = json.NewDecoder(resp.Body).Decode(&parsed)
	if err != nil {
		return fmt.Errorf("failed to decode health response: %w", err)
	}

	if parsed.Status != "healthy" || !parsed.Initialized {
		return fmt.Errorf(
			"%w: status=%q initialized=%t", ErrUnhealthy, parsed.Status, parsed.Initialized)
	}

	return nil
}

// resolveRef turns a server-relative audio reference into an absolute URL,
// passing absolute references through unchanged.
func (c *HTTPClient) resolveRef(audioRef string) string {
	if strings.HasPrefix(audioRef, "http://") || strings.HasPrefix(audioRef, "https://") {
		return audioRef
	}

	if !strings.HasPrefix(audioRef, "/") {
		return c.baseURL + "/" + audioRef
	}

	return c.baseURL + audioRef
}

// parseErrorResponse attempts to decode a structured JSON error from the
// service, falling back to the raw body so diagnostics are never lost.
func (c *HTTPClient) parseErrorResponse(resp *http.Response) error {
	var parsed serviceError

	err := json.NewDecoder(resp.Body).Decode(&parsed)
	if err == nil && parsed.Detail != "" {
		return fmt.Errorf(errFmtServiceErrorWithCode,
			resp.Status, parsed.Detail, parsed.ErrorCode)
	}

	body, _ := io.ReadAll(resp.Body)

	return fmt.Errorf(errFmtServiceNonOKStatus, resp.Status, string(body))
}
