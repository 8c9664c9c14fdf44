// Package client_test tests the voice design API client.
package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/di-osc/qwen3-design-api/internal/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWAVBody = "RIFF....WAVEfake-audio-payload"

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "client-test.log")
	require.NoError(t, err)

	t.Cleanup(func() { _ = log.Close() })

	return log
}

// newCountingServer serves successful generations and counts how many
// requests actually arrived.
func newCountingServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)

		if r.URL.Path == "/" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"message": "voice design API running", "version": "1.0.0"}`))

			return
		}

		w.Header().Set("Content-Type", "audio/wav")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(testWAVBody))
	})

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return server
}

func TestCheckStatus_Success(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64

	server := newCountingServer(t, &hits)
	c := client.New(server.URL, 10*time.Second, newTestLogger(t))

	status, err := c.CheckStatus(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "1.0.0", status.Version)
	assert.Equal(t, "voice design API running", status.Message)
}

func TestCheckStatus_MalformedBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("not json at all"))
		},
	))
	defer server.Close()

	c := client.New(server.URL, 10*time.Second, newTestLogger(t))

	_, err := c.CheckStatus(context.Background())
	require.ErrorIs(t, err, client.ErrMalformedStatus)
}

func TestCheckStatus_ConnectionRefused(t *testing.T) {
	t.Parallel()

	c := client.New("http://127.0.0.1:1", 2*time.Second, newTestLogger(t))

	_, err := c.CheckStatus(context.Background())
	require.Error(t, err)
}

func TestGenerateAudio_Success(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64

	server := newCountingServer(t, &hits)
	c := client.New(server.URL, 10*time.Second, newTestLogger(t))

	outputFile := filepath.Join(t.TempDir(), "nested", "hello.wav")

	path, err := c.GenerateAudio(context.Background(), client.GenerateOptions{
		Text:       "你好",
		Instruct:   "温柔的女声",
		OutputFile: outputFile,
	})
	require.NoError(t, err)
	assert.Equal(t, outputFile, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, testWAVBody, string(data))
}

func TestGenerateAudio_EmptyTextFailsBeforeRequest(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64

	server := newCountingServer(t, &hits)
	c := client.New(server.URL, 10*time.Second, newTestLogger(t))

	_, err := c.GenerateAudio(context.Background(), client.GenerateOptions{
		Text:     "  ",
		Instruct: "gentle",
	})
	require.ErrorIs(t, err, client.ErrTextEmpty)
	assert.Equal(t, int64(0), hits.Load())
}

func TestGenerateAudio_EmptyInstructFailsBeforeRequest(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64

	server := newCountingServer(t, &hits)
	c := client.New(server.URL, 10*time.Second, newTestLogger(t))

	_, err := c.GenerateAudio(context.Background(), client.GenerateOptions{
		Text: "hello",
	})
	require.ErrorIs(t, err, client.ErrInstructEmpty)
	assert.Equal(t, int64(0), hits.Load())
}

func TestGenerateAudio_ServerErrorCarriesMessage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"detail": "model error: CUDA out of memory"}`))
		},
	))
	defer server.Close()

	c := client.New(server.URL, 10*time.Second, newTestLogger(t))

	_, err := c.GenerateAudio(context.Background(), client.GenerateOptions{
		Text:       "hello",
		Instruct:   "gentle",
		OutputFile: filepath.Join(t.TempDir(), "out.wav"),
	})
	require.ErrorIs(t, err, client.ErrGenerationFailed)
	assert.Contains(t, err.Error(), "CUDA out of memory")
}

func TestGenerateAudio_PlainTextServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("model error: X"))
		},
	))
	defer server.Close()

	c := client.New(server.URL, 10*time.Second, newTestLogger(t))

	_, err := c.GenerateAudio(context.Background(), client.GenerateOptions{
		Text:       "hello",
		Instruct:   "gentle",
		OutputFile: filepath.Join(t.TempDir(), "out.wav"),
	})
	require.ErrorIs(t, err, client.ErrGenerationFailed)
	assert.Contains(t, err.Error(), "X")
}

func TestGenerateAudio_OtherStatusIsGenericError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		},
	))
	defer server.Close()

	c := client.New(server.URL, 10*time.Second, newTestLogger(t))

	_, err := c.GenerateAudio(context.Background(), client.GenerateOptions{
		Text:       "hello",
		Instruct:   "gentle",
		OutputFile: filepath.Join(t.TempDir(), "out.wav"),
	})
	require.ErrorIs(t, err, client.ErrUnexpectedStatus)
}

func TestGenerateAudio_TimeoutCreatesNoFile(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			time.Sleep(500 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		},
	))
	defer server.Close()

	c := client.New(server.URL, 50*time.Millisecond, newTestLogger(t))

	outputFile := filepath.Join(t.TempDir(), "never.wav")

	_, err := c.GenerateAudio(context.Background(), client.GenerateOptions{
		Text:       "hello",
		Instruct:   "gentle",
		OutputFile: outputFile,
	})
	require.Error(t, err)

	_, statErr := os.Stat(outputFile)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDefaultFilename(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "voice_1700000000_你好.wav", client.DefaultFilename("你好", 1700000000))
	assert.Equal(t, "voice_1700000000.wav", client.DefaultFilename("!!!???", 1700000000))
}

func TestSanitizeText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "hello world", client.SanitizeText("hello, world!"))
	assert.Equal(t, "你好", client.SanitizeText("你好。"))
	assert.Equal(t, "a_b-c", client.SanitizeText("a_b-c"))
	assert.Equal(t, "", client.SanitizeText("..."))

	// Only the first 20 runes are considered.
	long := client.SanitizeText("abcdefghijklmnopqrstuvwxyz")
	assert.Equal(t, "abcdefghijklmnopqrst", long)
}

func TestBatchGenerate_AllOutcomesRecorded(t *testing.T) {
	t.Parallel()

	// Fail every other request.
	var counter atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			if counter.Add(1)%2 == 0 {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"detail": "model error: overloaded"}`))

				return
			}

			w.Header().Set("Content-Type", "audio/wav")
			_, _ = w.Write([]byte(testWAVBody))
		},
	))
	defer server.Close()

	c := client.New(server.URL, 10*time.Second, newTestLogger(t))

	items := []client.BatchItem{
		{Text: "第一句", Instruct: "温柔的女声"},
		{Text: "第二句", Instruct: "温柔的女声"},
		{Text: "第三句", Instruct: "温柔的女声"},
	}

	results, err := c.BatchGenerate(context.Background(), items, t.TempDir(), 0)
	require.NoError(t, err)
	require.Len(t, results, len(items))

	failures := 0

	for _, outcome := range results {
		if len(outcome) >= 6 && outcome[:6] == "ERROR:" {
			failures++
		}
	}

	assert.Equal(t, 1, failures)
}

func TestBatchGenerate_AllItemsFail(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"detail": "model not loaded"}`))
		},
	))
	defer server.Close()

	c := client.New(server.URL, 10*time.Second, newTestLogger(t))

	items := []client.BatchItem{
		{Text: "one", Instruct: "gentle"},
		{Text: "two", Instruct: "gentle"},
	}

	results, err := c.BatchGenerate(context.Background(), items, t.TempDir(), 0)
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, outcome := range results {
		assert.Contains(t, outcome, "ERROR:")
		assert.Contains(t, outcome, "model not loaded")
	}
}

func TestBatchGenerate_DuplicateTextsKeepAllOutcomes(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64

	server := newCountingServer(t, &hits)
	c := client.New(server.URL, 10*time.Second, newTestLogger(t))

	items := []client.BatchItem{
		{Text: "same text", Instruct: "gentle"},
		{Text: "same text", Instruct: "gentle"},
		{Text: "same text", Instruct: "gentle"},
	}

	results, err := c.BatchGenerate(context.Background(), items, t.TempDir(), 0)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestBatchGenerate_CustomFilename(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64

	server := newCountingServer(t, &hits)
	c := client.New(server.URL, 10*time.Second, newTestLogger(t))

	outputDir := t.TempDir()
	items := []client.BatchItem{
		{Text: "hello", Instruct: "gentle", Filename: "custom.wav"},
	}

	results, err := c.BatchGenerate(context.Background(), items, outputDir, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, filepath.Join(outputDir, "custom.wav"), results["hello..."])

	_, statErr := os.Stat(filepath.Join(outputDir, "custom.wav"))
	require.NoError(t, statErr)
}

func TestBatchGenerate_EmptyTextItemRecordedAsError(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64

	server := newCountingServer(t, &hits)
	c := client.New(server.URL, 10*time.Second, newTestLogger(t))

	items := []client.BatchItem{
		{Text: "", Instruct: "gentle"},
	}

	results, err := c.BatchGenerate(context.Background(), items, t.TempDir(), 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results["..."], "ERROR:")
	assert.Equal(t, int64(0), hits.Load())
}

func TestListAudioFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	for _, name := range []string{"b.wav", "a.mp3", "c.FLAC", "notes.txt", "d.ogg", "e.m4a"} {
		err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600)
		require.NoError(t, err)
	}

	// Subdirectories are excluded even with audio-like names.
	err := os.Mkdir(filepath.Join(dir, "sub.wav"), 0o750)
	require.NoError(t, err)

	c := client.New("http://localhost:8867", time.Second, newTestLogger(t))

	files, err := c.ListAudioFiles(dir)
	require.NoError(t, err)

	expected := []string{
		filepath.Join(dir, "a.mp3"),
		filepath.Join(dir, "b.wav"),
		filepath.Join(dir, "c.FLAC"),
		filepath.Join(dir, "d.ogg"),
		filepath.Join(dir, "e.m4a"),
	}
	assert.Equal(t, expected, files)
}

func TestListAudioFiles_MissingDirectory(t *testing.T) {
	t.Parallel()

	c := client.New("http://localhost:8867", time.Second, newTestLogger(t))

	_, err := c.ListAudioFiles(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
