// Command tts-client drives the chunked synthesis pipeline from the command
// line: it reads text, synthesizes it through the Kokoro TTS API, and writes
// the combined WAV file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-expert/logger"

	"github.com/needahmed/needText2Audio/internal/config"
	"github.com/needahmed/needText2Audio/internal/tts"
	"github.com/needahmed/needText2Audio/internal/tts/ttsutils"
)

// Flag names.
const (
	flagText      = "text"
	flagFile      = "file"
	flagOutput    = "output"
	flagVoice     = "voice"
	flagSpeed     = "speed"
	flagChunkSize = "chunk-size"
	flagVerbose   = "verbose"
	flagHealth    = "health"
	flagVoices    = "voices"
)

// Flag descriptions.
const (
	flagTextDesc      = "Text to convert to speech"
	flagFileDesc      = "Text file to convert to speech"
	flagOutputDesc    = "Output file path (.wav)"
	flagVoiceDesc     = "Voice id (defaults to the configured voice)"
	flagSpeedDesc     = "Speech speed between 0.5 and 2.0 (0 uses the configured speed)"
	flagChunkSizeDesc = "Maximum characters per synthesis chunk (0 uses the configured size)"
	flagVerboseDesc   = "Enable verbose logging"
	flagHealthDesc    = "Check TTS service health and exit"
	flagVoicesDesc    = "List available voices and exit"
)

// Error and log messages.
const (
	errEitherTextOrFile  = "either --text or --file must be provided"
	errCannotSpecifyBoth = "cannot specify both --text and --file"
	errServiceNotHealthy = "TTS service is not healthy: %v\n"
	msgServiceHealthy    = "TTS service is healthy"
)

var errUnsupportedInputFile = errors.New("unsupported input file type")

// File names.
const (
	logFileNameDefault = "tts-client.log"
	logFileNameVerbose = "tts-client-verbose.log"
	defaultOutputFile  = "output.wav"
	outputFilePerm     = 0o600
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	text      string
	file      string
	output    string
	voice     string
	speed     float64
	chunkSize int
	verbose   bool
	health    bool
	voices    bool
}

func main() {
	err := run()
	if err != nil {
		// The logger might not be initialized yet, so use the standard log package.
		log.Fatalf("Error: %v", err)
	}
}

// run is the main application entry point, returning an error on failure.
func run() error {
	flags := parseFlags()

	cfg, finalLog, err := setup(flags.verbose)
	if err != nil {
		return err
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
		}
	}()

	engine := tts.NewEngine(cfg, finalLog)

	if flags.health {
		return handleHealthCheck(engine, finalLog)
	}

	if flags.voices {
		return handleListVoices(cfg)
	}

	return handleSynthesis(engine, cfg, finalLog, flags)
}

// parseFlags defines and parses command-line flags, returning them in a struct.
func parseFlags() appFlags {
	var flags appFlags

	flag.StringVar(&flags.text, flagText, "", flagTextDesc)
	flag.StringVar(&flags.file, flagFile, "", flagFileDesc)
	flag.StringVar(&flags.output, flagOutput, "", flagOutputDesc)
	flag.StringVar(&flags.voice, flagVoice, "", flagVoiceDesc)
	flag.Float64Var(&flags.speed, flagSpeed, 0, flagSpeedDesc)
	flag.IntVar(&flags.chunkSize, flagChunkSize, 0, flagChunkSizeDesc)
	flag.BoolVar(&flags.verbose, flagVerbose, false, flagVerboseDesc)
	flag.BoolVar(&flags.health, flagHealth, false, flagHealthDesc)
	flag.BoolVar(&flags.voices, flagVoices, false, flagVoicesDesc)
	flag.Parse()

	return flags
}

// setup loads the configuration and initializes the logger.
func setup(verbose bool) (*config.Config, *logger.Logger, error) {
	bootstrapLog, err := logger.New(os.TempDir(), "tts-client-bootstrap.log")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create bootstrap logger: %w", err)
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logFileName := logFileNameDefault
	if verbose {
		logFileName = logFileNameVerbose
	}

	finalLog, err := logger.New(cfg.Paths.BaseLogsDir, logFileName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, finalLog, nil
}

// handleHealthCheck performs a service health check and prints the result.
func handleHealthCheck(engine *tts.Engine, log *logger.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), tts.HealthCheckTimeout)
	defer cancel()

	err := engine.HealthCheck(ctx)
	if err != nil {
		log.Error("Health check failed: %v", err)
		fmt.Printf(errServiceNotHealthy, err)

		return err
	}

	fmt.Println(msgServiceHealthy)

	return nil
}

// handleListVoices fetches the voice catalog and prints it.
func handleListVoices(cfg *config.Config) error {
	timeout := time.Duration(cfg.Kokoro.TimeoutSeconds) * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client := tts.NewHTTPClient(cfg.Kokoro.ServiceURL(), timeout)

	voices, err := client.Voices(ctx)
	if err != nil {
		return fmt.Errorf("failed to list voices: %w", err)
	}

	for _, voice := range voices {
		fmt.Printf("%-16s %-12s %-20s %s\n", voice.ID, voice.Gender, voice.Language, voice.Name)
	}

	return nil
}

// handleSynthesis validates the flags, runs the pipeline, and writes the WAV.
func handleSynthesis(
	engine *tts.Engine,
	cfg *config.Config,
	log *logger.Logger,
	flags appFlags,
) error {
	text, err := resolveInputText(flags)
	if err != nil {
		flag.Usage()

		return err
	}

	outputPath := flags.output
	if outputPath == "" {
		outputPath = filepath.Join(cfg.Paths.OutputDir, defaultOutputName(flags.file))
	}

	dirErr := ttsutils.EnsureDir(filepath.Dir(outputPath))
	if dirErr != nil {
		return dirErr
	}

	log.Info("Synthesizing %d characters to %s", len(text), outputPath)

	result, err := engine.Synthesize(context.Background(), tts.Job{
		Text:       text,
		Voice:      flags.voice,
		Speed:      flags.speed,
		UseGPU:     cfg.Kokoro.UseGPU,
		ChunkSize:  flags.chunkSize,
		OnProgress: printProgress,
	})

	// Finish the progress line before reporting the outcome.
	fmt.Println()

	if err != nil {
		log.Error("Synthesis failed: %v", err)

		return fmt.Errorf("synthesis failed: %w", err)
	}

	writeErr := os.WriteFile(outputPath, result.WAV, outputFilePerm)
	if writeErr != nil {
		return fmt.Errorf("failed to write output file %s: %w", outputPath, writeErr)
	}

	log.Info("Generated %s (%d chunks, %s audio)",
		outputPath, result.Chunks, ttsutils.FormatDuration(result.Duration()))
	fmt.Printf("Generated: %s (%s, %s of audio)\n",
		outputPath,
		ttsutils.FormatFileSize(int64(len(result.WAV))),
		ttsutils.FormatDuration(result.Duration()))

	return nil
}

// resolveInputText returns the text to synthesize from either flag.
func resolveInputText(flags appFlags) (string, error) {
	if flags.text == "" && flags.file == "" {
		return "", errors.New(errEitherTextOrFile)
	}

	if flags.text != "" && flags.file != "" {
		return "", errors.New(errCannotSpecifyBoth)
	}

	if flags.text != "" {
		return flags.text, nil
	}

	if !ttsutils.IsValidTextFile(flags.file) {
		return "", fmt.Errorf(
			"%w: .%s", errUnsupportedInputFile, ttsutils.GetFileExtension(flags.file))
	}

	data, err := os.ReadFile(flags.file)
	if err != nil {
		return "", fmt.Errorf("failed to read input file %s: %w", flags.file, err)
	}

	return string(data), nil
}

// defaultOutputName derives the output file name from the input file when
// one was given, falling back to a fixed name for --text input.
func defaultOutputName(inputFile string) string {
	if inputFile == "" {
		return defaultOutputFile
	}

	base := filepath.Base(inputFile)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	return ttsutils.SanitizeFilename(base) + ".wav"
}

// printProgress renders a single updating progress line.
func printProgress(fraction float64) {
	fmt.Printf("\rSynthesizing... %3.0f%%", fraction*100)
}
