// Package engine wraps the pretrained Qwen3-TTS voice design model, which runs
// as a local inference binary. The binary is loaded once at startup and treated
// as an opaque collaborator afterwards.
package engine

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/book-expert/logger"

	"github.com/di-osc/qwen3-design-api/internal/core"
)

const (
	defaultTimeout = 120 * time.Second
	probeTimeout   = 10 * time.Minute
)

// Static errors.
var (
	ErrTextEmpty     = errors.New("text cannot be empty")
	ErrInstructEmpty = errors.New("instruct cannot be empty")
	ErrNoSampleRate  = errors.New("inference binary reported no sample rate")
	ErrOddPCMOutput  = errors.New("inference output is not 16-bit aligned")
)

// Config holds the invocation parameters for the inference binary.
type Config struct {
	// BinaryPath locates the qwen3-tts inference binary.
	BinaryPath string

	// ModelPath points at the pretrained VoiceDesign checkpoint directory.
	ModelPath string

	// Device selects the inference device, e.g. "cuda:0".
	Device string

	// Timeout bounds a single generation. Zero means the default.
	Timeout time.Duration
}

// Qwen3 implements core.VoiceDesigner by calling the qwen3-tts binary.
// It is immutable after construction and safe for concurrent use.
type Qwen3 struct {
	cfg Config
	log *logger.Logger
}

// New creates a Qwen3 engine from the given configuration.
func New(cfg Config, log *logger.Logger) *Qwen3 {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	return &Qwen3{cfg: cfg, log: log}
}

// Probe runs the inference binary in probe mode, loading the model and
// exiting. Startup must abort when this fails: a service that accepted
// requests without a loaded model could only ever answer with errors.
func (q *Qwen3) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, q.cfg.BinaryPath,
		"--model", q.cfg.ModelPath,
		"--device", q.cfg.Device,
		"--probe",
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("model probe failed: %w - output: %s", err, string(output))
	}

	q.log.Info("Model probe succeeded: %s", q.cfg.ModelPath)

	return nil
}

// GenerateVoiceDesign synthesizes speech for the given text, language and
// instruct. The binary writes raw s16le mono PCM to a temp file and prints
// the sample rate on stdout.
func (q *Qwen3) GenerateVoiceDesign(ctx context.Context, req core.Request) (*core.Audio, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrTextEmpty
	}

	if strings.TrimSpace(req.Instruct) == "" {
		return nil, ErrInstructEmpty
	}

	tempFile, err := os.CreateTemp("", "voicedesign-*.pcm")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file for inference output: %w", err)
	}

	defer func() {
		removeErr := os.Remove(tempFile.Name())
		if removeErr != nil {
			q.log.Warn("Failed to remove temp file '%s': %v", tempFile.Name(), removeErr)
		}
	}()

	closeErr := tempFile.Close()
	if closeErr != nil {
		return nil, fmt.Errorf("failed to close temp file: %w", closeErr)
	}

	ctx, cancel := context.WithTimeout(ctx, q.cfg.Timeout)
	defer cancel()

	sampleRate, err := q.runInference(ctx, req, tempFile.Name())
	if err != nil {
		return nil, err
	}

	samples, err := readPCMFile(tempFile.Name())
	if err != nil {
		return nil, err
	}

	return &core.Audio{Samples: samples, SampleRate: sampleRate}, nil
}

// runInference execs the binary and parses the sample rate from its stdout.
func (q *Qwen3) runInference(ctx context.Context, req core.Request, outputPath string) (int, error) {
	args := BuildArgs(q.cfg, req, outputPath)

	// #nosec G204 -- binary and model paths come from trusted service configuration
	cmd := exec.CommandContext(ctx, q.cfg.BinaryPath, args...)

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return 0, fmt.Errorf(
				"inference binary execution failed: %w - output: %s",
				err, strings.TrimSpace(string(exitErr.Stderr)),
			)
		}

		return 0, fmt.Errorf("inference binary execution failed: %w", err)
	}

	return ParseSampleRate(string(output))
}

// BuildArgs assembles the inference binary argument list for a request.
func BuildArgs(cfg Config, req core.Request, outputPath string) []string {
	return []string{
		"--model", cfg.ModelPath,
		"--device", cfg.Device,
		"--text", req.Text,
		"--language", req.Language,
		"--instruct", req.Instruct,
		"--output", outputPath,
	}
}

// ParseSampleRate extracts the integer sample rate the binary prints as the
// last non-empty stdout line.
func ParseSampleRate(stdout string) (int, error) {
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}

		rate, err := strconv.Atoi(line)
		if err != nil {
			return 0, fmt.Errorf("%w: unparseable stdout line %q", ErrNoSampleRate, line)
		}

		if rate <= 0 {
			return 0, fmt.Errorf("%w: got %d", ErrNoSampleRate, rate)
		}

		return rate, nil
	}

	return 0, ErrNoSampleRate
}

func readPCMFile(path string) ([]int16, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inference output: %w", err)
	}

	if len(data)%2 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrOddPCMOutput, len(data))
	}

	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
	}

	return samples, nil
}
