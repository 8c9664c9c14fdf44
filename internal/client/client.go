// Package client provides a client for the voice design API: status checks,
// single and batch audio generation, and audio file discovery.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/book-expert/logger"
)

// API paths.
const (
	apiRoot          = "/"
	apiGenerateAudio = "/generate_audio"
)

// Defaults matching the service contract.
const (
	DefaultLanguage = "Chinese"
	DefaultInstruct = "温柔的女声"
	DefaultTimeout  = 60 * time.Second
)

// File handling constants.
const (
	copyChunkSize   = 8192
	filePermissions = 0o600
	dirPermissions  = 0o750

	// Files smaller than this are almost certainly truncated or empty audio.
	minPlausibleAudioBytes = 1000

	sanitizedPrefixLimit = 20
)

// Static errors.
var (
	ErrTextEmpty        = errors.New("text cannot be empty")
	ErrInstructEmpty    = errors.New("instruct cannot be empty")
	ErrGenerationFailed = errors.New("audio generation failed")
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
	ErrMalformedStatus  = errors.New("malformed status response")
)

// Status is the liveness payload returned by the service root endpoint.
type Status struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

// errorResponse mirrors the service's structured error body.
type errorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// GenerateOptions holds the parameters for a single generation call.
type GenerateOptions struct {
	// Text is the content to synthesize. Required.
	Text string

	// Language of the text. Defaults to Chinese.
	Language string

	// Instruct describes the desired voice characteristics. Required.
	Instruct string

	// OutputFile is the destination path. When empty a name is derived
	// from a timestamp and a sanitized prefix of the text.
	OutputFile string
}

// Client calls the voice design service and persists results. It performs
// no retries and no concurrent requests.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        *logger.Logger
}

// New creates a client for the service at baseURL (e.g.
// "http://localhost:8867"). The timeout applies to every request; zero
// selects the default.
func New(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// CheckStatus issues the liveness request and returns the decoded payload.
func (c *Client) CheckStatus(ctx context.Context) (*Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiRoot, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create status request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status check failed for service at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status check returned %s", ErrUnexpectedStatus, resp.Status)
	}

	var status Status

	err = json.NewDecoder(resp.Body).Decode(&status)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedStatus, err)
	}

	return &status, nil
}

// GenerateAudio requests one voice design generation and streams the WAV
// response to disk. It returns the path of the written file.
func (c *Client) GenerateAudio(ctx context.Context, opts GenerateOptions) (string, error) {
	if strings.TrimSpace(opts.Text) == "" {
		return "", ErrTextEmpty
	}

	if strings.TrimSpace(opts.Instruct) == "" {
		return "", ErrInstructEmpty
	}

	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}

	outputFile := opts.OutputFile
	if outputFile == "" {
		outputFile = DefaultFilename(opts.Text, time.Now().Unix())
	}

	dirErr := os.MkdirAll(filepath.Dir(outputFile), dirPermissions)
	if dirErr != nil {
		return "", fmt.Errorf("failed to create output directory: %w", dirErr)
	}

	c.log.Info("Generating audio: %s (language: %s, instruct: %s)",
		truncateRunes(opts.Text, 50), opts.Language, opts.Instruct)

	start := time.Now()

	resp, err := c.postGenerate(ctx, opts)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.translateErrorResponse(resp)
	}

	written, err := streamToFile(resp.Body, outputFile)
	if err != nil {
		return "", err
	}

	c.log.Info("Audio saved: %s (%d bytes, %.1fs)",
		outputFile, written, time.Since(start).Seconds())

	if written < minPlausibleAudioBytes {
		c.log.Warn("Generated file %s is only %d bytes; audio may be truncated or empty",
			outputFile, written)
	}

	return outputFile, nil
}

// postGenerate sends the generation request with the parameters encoded in
// the query string, per the service contract.
func (c *Client) postGenerate(ctx context.Context, opts GenerateOptions) (*http.Response, error) {
	params := url.Values{}
	params.Set("text", opts.Text)
	params.Set("language", opts.Language)
	params.Set("instruct", opts.Instruct)

	requestURL := c.baseURL + apiGenerateAudio + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create generation request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to service at %s: %w", c.baseURL, err)
	}

	return resp, nil
}

// translateErrorResponse maps a non-200 response to a tagged error. A 500
// carries the server's own message; anything else becomes a generic status
// error. Structured JSON bodies are preferred, raw bodies are the fallback.
func (c *Client) translateErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	detail := string(body)

	var structured errorResponse
	if json.Unmarshal(body, &structured) == nil && structured.Detail != "" {
		detail = structured.Detail
	}

	if resp.StatusCode == http.StatusInternalServerError {
		return fmt.Errorf("%w: %s", ErrGenerationFailed, detail)
	}

	return fmt.Errorf("%w: %s: %s", ErrUnexpectedStatus, resp.Status, detail)
}

// streamToFile writes the response body to the destination in fixed-size
// chunks, closing the file on all exit paths.
func streamToFile(body io.Reader, path string) (int64, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePermissions)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}

	buf := make([]byte, copyChunkSize)

	written, copyErr := io.CopyBuffer(file, body, buf)
	closeErr := file.Close()

	if copyErr != nil {
		return written, fmt.Errorf("failed to save audio file: %w", copyErr)
	}

	if closeErr != nil {
		return written, fmt.Errorf("failed to close audio file: %w", closeErr)
	}

	return written, nil
}

// DefaultFilename derives an output filename from a timestamp and a
// sanitized prefix of the text: "voice_<ts>_<prefix>.wav", degrading to
// "voice_<ts>.wav" when nothing of the text survives sanitization.
func DefaultFilename(text string, timestamp int64) string {
	safe := SanitizeText(text)
	if safe == "" {
		return fmt.Sprintf("voice_%d.wav", timestamp)
	}

	return fmt.Sprintf("voice_%d_%s.wav", timestamp, safe)
}

// SanitizeText keeps only letters, digits, spaces, underscores and hyphens
// from the first 20 runes of the text, trimming surrounding spaces.
func SanitizeText(text string) string {
	runes := []rune(text)
	if len(runes) > sanitizedPrefixLimit {
		runes = runes[:sanitizedPrefixLimit]
	}

	var builder strings.Builder

	for _, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			builder.WriteRune(r)
		case r == ' ' || r == '_' || r == '-':
			builder.WriteRune(r)
		}
	}

	return strings.TrimSpace(builder.String())
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}

	return string(runes[:limit]) + "..."
}
